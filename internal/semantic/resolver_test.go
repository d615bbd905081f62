package semantic

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func billingModel() *Model {
	return &Model{
		Name: "billing",
		Tables: map[string]*Table{
			"orders": {
				Key: "orders", Schema: "public", Name: "orders",
				Dimensions: []Dimension{{Name: "status", Type: TypeString}, {Name: "id", Type: TypeInteger}},
				Measures:   []Measure{{Name: "amount", Type: TypeDecimal, Aggregation: AggSum}},
				Filters:    map[string]string{"completed": "t0.status = 'completed'"},
			},
			"shipments": {
				Key: "shipments", Schema: "public", Name: "shipments",
				Dimensions: []Dimension{{Name: "status", Type: TypeString}},
			},
		},
		Metrics: map[string]string{
			"net_revenue": "orders.amount - orders.refunds",
		},
	}
}

var _ = Describe("Resolver", func() {
	var r *Resolver

	BeforeEach(func() {
		r = NewResolver(billingModel())
	})

	Describe("ResolveDimension", func() {
		It("resolves an exact <table>.<column> reference", func() {
			ref, err := r.ResolveDimension("orders.status")
			Expect(err).NotTo(HaveOccurred())
			Expect(ref.Table).To(Equal("orders"))
			Expect(ref.Column).To(Equal("status"))
		})

		It("resolves a schema-qualified compound reference", func() {
			ref, err := r.ResolveDimension("public.orders.status")
			Expect(err).NotTo(HaveOccurred())
			Expect(ref.Table).To(Equal("orders"))
		})

		It("resolves an unambiguous bare name", func() {
			ref, err := r.ResolveDimension("id")
			Expect(err).NotTo(HaveOccurred())
			Expect(ref.Table).To(Equal("orders"))
		})

		It("rejects an ambiguous bare name present on two tables", func() {
			_, err := r.ResolveDimension("status")
			Expect(err).To(HaveOccurred())
		})

		It("rejects an unknown member", func() {
			_, err := r.ResolveDimension("orders.nonexistent")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ResolveMeasureOrMetric", func() {
		It("resolves a metric by name, marking IsMetric", func() {
			ref, err := r.ResolveMeasureOrMetric("net_revenue")
			Expect(err).NotTo(HaveOccurred())
			Expect(ref.IsMetric).To(BeTrue())
			Expect(ref.MetricKey).To(Equal("net_revenue"))
		})

		It("falls back to a plain measure when the name isn't a metric", func() {
			ref, err := r.ResolveMeasureOrMetric("orders.amount")
			Expect(err).NotTo(HaveOccurred())
			Expect(ref.IsMetric).To(BeFalse())
			Expect(ref.Table).To(Equal("orders"))
		})
	})

	Describe("ResolveSegment", func() {
		It("resolves a table-scoped filter by <table>.<key>", func() {
			seg, err := r.ResolveSegment("orders.completed")
			Expect(err).NotTo(HaveOccurred())
			Expect(seg.Condition).To(Equal("t0.status = 'completed'"))
		})

		It("resolves a filter by its bare key when unambiguous", func() {
			seg, err := r.ResolveSegment("completed")
			Expect(err).NotTo(HaveOccurred())
			Expect(seg.Table).To(Equal("orders"))
		})
	})

	Describe("ExtractTablesFromExpression", func() {
		It("finds every table key referenced by a dotted prefix", func() {
			tables := r.ExtractTablesFromExpression("orders.amount - orders.refunds")
			Expect(tables).To(HaveKey("orders"))
			Expect(tables).NotTo(HaveKey("shipments"))
		})
	})
})
