package translator_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/basegraph/analystcore/internal/semantic"
	"github.com/basegraph/analystcore/internal/semantic/translator"
)

func ordersModel() *semantic.Model {
	return &semantic.Model{
		Name: "commerce",
		Tables: map[string]*semantic.Table{
			"orders": {
				Key:    "orders",
				Schema: "public",
				Name:   "orders",
				Dimensions: []semantic.Dimension{
					{Name: "created_at", Type: semantic.TypeTimestamp},
					{Name: "status", Type: semantic.TypeString},
				},
				Measures: []semantic.Measure{
					{Name: "amount", Type: semantic.TypeDecimal, Aggregation: semantic.AggSum},
				},
				Filters: map[string]string{
					"completed": "t0.status = 'completed'",
				},
			},
			"customers": {
				Key:    "customers",
				Schema: "public",
				Name:   "customers",
				Dimensions: []semantic.Dimension{
					{Name: "region", Type: semantic.TypeString},
				},
			},
		},
		Relationships: []semantic.Relationship{
			{Name: "orders_customer", From: "orders", To: "customers", Type: semantic.RelManyToOne, JoinOn: "orders.customer_id = customers.id"},
		},
	}
}

var _ = Describe("Translator.Build", func() {
	It("compiles the time-dimension scenario to quoted, deterministic SQL", func() {
		tr := translator.New(ordersModel())
		q := &semantic.Query{
			Measures: []string{"orders.amount"},
			TimeDimensions: []semantic.TimeDimension{
				{Dimension: "public.orders.created_at", Granularity: semantic.GranularityDay},
			},
			Order: []semantic.OrderItem{
				{Member: "public.orders.created_at", Direction: "desc"},
			},
		}

		tree, err := tr.Build(q, translator.Postgres)
		Expect(err).NotTo(HaveOccurred())

		emitter, err := translator.EmitterFor(translator.Postgres)
		Expect(err).NotTo(HaveOccurred())
		sql, err := emitter.Emit(tree)
		Expect(err).NotTo(HaveOccurred())

		Expect(sql).To(ContainSubstring(`DATE_TRUNC('DAY', t0."created_at") AS "orders__created_at_day"`))
		Expect(sql).To(ContainSubstring(`SUM(t0."amount")`))
		Expect(sql).To(ContainSubstring(`GROUP BY DATE_TRUNC('DAY', t0."created_at")`))
		Expect(sql).To(ContainSubstring(`ORDER BY "orders__created_at_day" DESC`))
	})

	It("resolves ORDER BY against every qualified spelling of a projected member", func() {
		tr := translator.New(ordersModel())
		base := &semantic.Query{Dimensions: []string{"orders.status"}}

		spellings := []string{"status", "orders.status", "public.orders.status"}
		for _, member := range spellings {
			q := *base
			q.Order = []semantic.OrderItem{{Member: member, Direction: "asc"}}
			tree, err := tr.Build(&q, translator.Postgres)
			Expect(err).NotTo(HaveOccurred(), "member spelling %q", member)
			Expect(tree.OrderBy).To(HaveLen(1))
			Expect(tree.OrderBy[0].Expression).To(Equal("orders__status"))
		}
	})

	It("rejects an order reference to an unprojected member", func() {
		tr := translator.New(ordersModel())
		q := &semantic.Query{
			Dimensions: []string{"orders.status"},
			Order:      []semantic.OrderItem{{Member: "customers.region", Direction: "asc"}},
		}
		_, err := tr.Build(q, translator.Postgres)
		Expect(err).To(HaveOccurred())
	})

	It("quotes plain column expressions but leaves custom measure formulas untouched", func() {
		model := ordersModel()
		model.Tables["orders"].Measures = append(model.Tables["orders"].Measures, semantic.Measure{
			Name: "net_amount", Type: semantic.TypeDecimal, Aggregation: semantic.AggSum,
			Expression: "amount - refunded_amount",
		})
		tr := translator.New(model)
		q := &semantic.Query{Measures: []string{"orders.net_amount"}}
		tree, err := tr.Build(q, translator.Postgres)
		Expect(err).NotTo(HaveOccurred())
		Expect(tree.Selects[0].Expression).To(Equal("SUM(t0.amount - refunded_amount)"))
	})

	It("prunes join steps to tables on the path to a required member only", func() {
		model := ordersModel()
		model.Tables["shipping"] = &semantic.Table{
			Key: "shipping", Schema: "public", Name: "shipping",
			Dimensions: []semantic.Dimension{{Name: "carrier", Type: semantic.TypeString}},
		}
		model.Relationships = append(model.Relationships, semantic.Relationship{
			Name: "orders_shipping", From: "orders", To: "shipping", Type: semantic.RelOneToMany, JoinOn: "orders.id = shipping.order_id",
		})

		tr := translator.New(model)
		q := &semantic.Query{Measures: []string{"orders.amount"}}
		tree, err := tr.Build(q, translator.Postgres)
		Expect(err).NotTo(HaveOccurred())

		for _, j := range tree.Joins {
			Expect(strings.ToLower(j.TableRef)).NotTo(ContainSubstring("shipping"))
			Expect(strings.ToLower(j.TableRef)).NotTo(ContainSubstring("customers"))
		}
		Expect(tree.Joins).To(BeEmpty())
	})

	It("joins a required table reached through a relationship", func() {
		tr := translator.New(ordersModel())
		q := &semantic.Query{
			Measures:   []string{"orders.amount"},
			Dimensions: []string{"customers.region"},
		}
		tree, err := tr.Build(q, translator.Postgres)
		Expect(err).NotTo(HaveOccurred())
		Expect(tree.Joins).To(HaveLen(1))
		Expect(tree.Joins[0].Type).To(Equal("LEFT"))
	})
})
