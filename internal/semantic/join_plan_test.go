package semantic

import "testing"

func chainModel() *Model {
	return &Model{
		Name: "chain",
		Tables: map[string]*Table{
			"orders":    {Key: "orders", Name: "orders"},
			"customers": {Key: "customers", Name: "customers"},
			"regions":   {Key: "regions", Name: "regions"},
			"shipping":  {Key: "shipping", Name: "shipping"},
		},
		Relationships: []Relationship{
			{Name: "orders_customer", From: "orders", To: "customers", Type: RelManyToOne, JoinOn: "orders.customer_id = customers.id"},
			{Name: "customer_region", From: "customers", To: "regions", Type: RelManyToOne, JoinOn: "customers.region_id = regions.id"},
			{Name: "orders_shipping", From: "orders", To: "shipping", Type: RelOneToMany, JoinOn: "orders.id = shipping.order_id"},
		},
	}
}

func TestPlanJoinsPrunesToRequiredTables(t *testing.T) {
	model := chainModel()
	r := NewResolver(model)

	plan, err := r.PlanJoins("orders", map[string]bool{"orders": true, "regions": true})
	if err != nil {
		t.Fatalf("PlanJoins: %v", err)
	}

	joined := map[string]bool{}
	for _, step := range plan.Steps {
		to := step.Relationship.To
		if step.Reversed {
			to = step.Relationship.From
		}
		joined[to] = true
	}

	if !joined["customers"] {
		t.Error("customers must be joined: it is on the shortest path from orders to regions")
	}
	if !joined["regions"] {
		t.Error("regions is required and must be joined")
	}
	if joined["shipping"] {
		t.Error("shipping is reachable but not required, and must not be joined (one_to_many would widen the result)")
	}
	if len(plan.Steps) != 2 {
		t.Errorf("len(steps) = %d, want 2 (orders->customers, customers->regions)", len(plan.Steps))
	}
}

func TestPlanJoinsWithNoExtraRequirementsEmitsNoSteps(t *testing.T) {
	model := chainModel()
	r := NewResolver(model)

	plan, err := r.PlanJoins("orders", map[string]bool{"orders": true})
	if err != nil {
		t.Fatalf("PlanJoins: %v", err)
	}
	if len(plan.Steps) != 0 {
		t.Errorf("len(steps) = %d, want 0 when only the base table is required", len(plan.Steps))
	}
}

func TestPlanJoinsUnreachableTable(t *testing.T) {
	model := chainModel()
	model.Tables["orphan"] = &Table{Key: "orphan", Name: "orphan"}
	r := NewResolver(model)

	_, err := r.PlanJoins("orders", map[string]bool{"orders": true, "orphan": true})
	if err == nil {
		t.Fatal("expected an unreachable-table error")
	}
}

func TestPlanJoinsAliasesAreDeterministicAcrossCalls(t *testing.T) {
	model := chainModel()
	r := NewResolver(model)
	required := map[string]bool{"orders": true, "regions": true, "shipping": true}

	first, err := r.PlanJoins("orders", required)
	if err != nil {
		t.Fatalf("PlanJoins: %v", err)
	}
	second, err := r.PlanJoins("orders", required)
	if err != nil {
		t.Fatalf("PlanJoins: %v", err)
	}
	for table, alias := range first.Aliases {
		if second.Aliases[table] != alias {
			t.Errorf("alias for %q changed across calls: %q vs %q", table, alias, second.Aliases[table])
		}
	}
}

func TestChooseBaseTablePrefersMeasureOverDimension(t *testing.T) {
	model := chainModel()
	model.Tables["orders"].Measures = []Measure{{Name: "amount", Type: TypeDecimal, Aggregation: AggSum}}
	model.Tables["customers"].Dimensions = []Dimension{{Name: "name", Type: TypeString}}
	r := NewResolver(model)

	q := &Query{Measures: []string{"orders.amount"}, Dimensions: []string{"customers.name"}}
	table, err := r.ChooseBaseTable(q)
	if err != nil {
		t.Fatalf("ChooseBaseTable: %v", err)
	}
	if table != "orders" {
		t.Errorf("base table = %q, want %q (measures take precedence)", table, "orders")
	}
}
