// Package semantic implements the semantic model loader (C1), the query AST
// (C2), the resolver and join planner (C3), and the unified model composer
// (C5).
//
// Grounded on internal/spec/spec.go's declarative-YAML-to-struct loader
// shape from the teacher, and on the field names observed in
// original_source/langbridge/packages/semantic/langbridge_semantic.
package semantic

import (
	"fmt"

	"github.com/basegraph/analystcore/internal/apperr"
	"gopkg.in/yaml.v3"
)

// DimensionType enumerates the scalar types a Dimension's physical column
// may hold.
type DimensionType string

const (
	TypeString    DimensionType = "string"
	TypeInteger   DimensionType = "integer"
	TypeDecimal   DimensionType = "decimal"
	TypeFloat     DimensionType = "float"
	TypeDate      DimensionType = "date"
	TypeTimestamp DimensionType = "timestamp"
	TypeBoolean   DimensionType = "boolean"
)

// Aggregation enumerates the SQL aggregate function a Measure compiles to.
type Aggregation string

const (
	AggSum           Aggregation = "sum"
	AggAvg           Aggregation = "avg"
	AggMin           Aggregation = "min"
	AggMax           Aggregation = "max"
	AggCount         Aggregation = "count"
	AggCountDistinct Aggregation = "count_distinct"
	AggNone          Aggregation = "none"
)

// RelationshipType enumerates the join semantics of a Relationship.
type RelationshipType string

const (
	RelInner       RelationshipType = "inner"
	RelLeft        RelationshipType = "left"
	RelRight       RelationshipType = "right"
	RelFull        RelationshipType = "full"
	RelOneToMany   RelationshipType = "one_to_many"
	RelManyToOne   RelationshipType = "many_to_one"
	RelOneToOne    RelationshipType = "one_to_one"
)

// VectorValue is one cached (value, embedding) pair used to resolve
// ambiguous entity references against a vectorized dimension's known values.
type VectorValue struct {
	Value     string    `yaml:"value" json:"value"`
	Embedding []float64 `yaml:"embedding" json:"embedding"`
}

// Dimension is a queryable, non-aggregated member of a Table.
type Dimension struct {
	Name         string        `yaml:"name" json:"name"`
	Type         DimensionType `yaml:"type" json:"type"`
	Expression   string        `yaml:"expression,omitempty" json:"expression,omitempty"`
	PrimaryKey   bool          `yaml:"primaryKey,omitempty" json:"primaryKey,omitempty"`
	Synonyms     []string      `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
	Vectorized   bool          `yaml:"vectorized,omitempty" json:"vectorized,omitempty"`
	// VectorIndex names the ManagedVectorDB collection holding this
	// dimension's entity embeddings.
	VectorIndex  string        `yaml:"vectorIndex,omitempty" json:"vectorIndex,omitempty"`
	// VectorValues caches a bounded set of (value, embedding) pairs synced
	// from VectorIndex, used for in-process similarity matching without a
	// round trip per query.
	VectorValues []VectorValue `yaml:"vectorValues,omitempty" json:"vectorValues,omitempty"`
}

// ColumnExpression returns the physical SQL expression for this dimension,
// defaulting to the bare column name per spec §3.
func (d Dimension) ColumnExpression() string {
	if d.Expression != "" {
		return d.Expression
	}
	return d.Name
}

// Measure is an aggregated member of a Table.
type Measure struct {
	Name        string        `yaml:"name" json:"name"`
	Type        DimensionType `yaml:"type" json:"type"`
	Aggregation Aggregation   `yaml:"aggregation" json:"aggregation"`
	Expression  string        `yaml:"expression,omitempty" json:"expression,omitempty"`
}

func (m Measure) ColumnExpression() string {
	if m.Expression != "" {
		return m.Expression
	}
	return m.Name
}

// Table is a named schema entity with queryable dimensions and measures.
type Table struct {
	Key         string               `yaml:"-" json:"key"`
	Catalog     string               `yaml:"catalog,omitempty" json:"catalog,omitempty"`
	Schema      string               `yaml:"schema,omitempty" json:"schema,omitempty"`
	Name        string               `yaml:"name" json:"name"`
	Synonyms    []string             `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
	Dimensions  []Dimension          `yaml:"dimensions,omitempty" json:"dimensions,omitempty"`
	Measures    []Measure            `yaml:"measures,omitempty" json:"measures,omitempty"`
	Filters     map[string]string    `yaml:"filters,omitempty" json:"filters,omitempty"`
	Description string               `yaml:"description,omitempty" json:"description,omitempty"`
	SourceConnectorID string         `yaml:"-" json:"sourceConnectorId,omitempty"`
}

// Relationship is a directed join edge between two tables.
type Relationship struct {
	Name     string           `yaml:"name" json:"name"`
	From     string           `yaml:"fromTable" json:"fromTable"`
	To       string           `yaml:"toTable" json:"toTable"`
	Type     RelationshipType `yaml:"type" json:"type"`
	JoinOn   string           `yaml:"joinOn" json:"joinOn"`
}

// Model is a named, validated semantic schema: the runtime form of a
// SemanticModelRecord (spec §3 treats the persisted record as an external
// collaborator; Model is what the core operates on).
type Model struct {
	Name          string                  `yaml:"name" json:"name"`
	Dialect       string                  `yaml:"dialect,omitempty" json:"dialect,omitempty"`
	Tags          []string                `yaml:"tags,omitempty" json:"tags,omitempty"`
	Description   string                  `yaml:"description,omitempty" json:"description,omitempty"`
	Tables        map[string]*Table       `yaml:"tables" json:"tables"`
	Relationships []Relationship          `yaml:"relationships,omitempty" json:"relationships,omitempty"`
	Metrics       map[string]string       `yaml:"metrics,omitempty" json:"metrics,omitempty"`
}

// LoadModel parses and validates a semantic model from its YAML form.
func LoadModel(data []byte) (*Model, error) {
	var raw struct {
		Name          string                    `yaml:"name"`
		Dialect       string                    `yaml:"dialect"`
		Tags          []string                  `yaml:"tags"`
		Description   string                    `yaml:"description"`
		Tables        map[string]*Table         `yaml:"tables"`
		Relationships []Relationship            `yaml:"relationships"`
		Metrics       map[string]string         `yaml:"metrics"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, apperr.New(apperr.KindSemanticModel, fmt.Errorf("parse semantic model: %w", err))
	}

	m := &Model{
		Name:          raw.Name,
		Dialect:       raw.Dialect,
		Tags:          raw.Tags,
		Description:   raw.Description,
		Tables:        raw.Tables,
		Relationships: raw.Relationships,
		Metrics:       raw.Metrics,
	}
	for key, t := range m.Tables {
		t.Key = key
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the invariants of spec §3: unique table keys (guaranteed
// by the map representation), every relationship's fromTable and toTable
// name a known table, and dimension/measure names are unique within their
// table. The join_on expression itself is not checked.
func (m *Model) Validate() error {
	if len(m.Tables) == 0 {
		return apperr.Newf(apperr.KindSemanticModel, "semantic model %q declares no tables", m.Name)
	}
	for key, t := range m.Tables {
		seen := map[string]bool{}
		for _, d := range t.Dimensions {
			if seen[d.Name] {
				return apperr.Newf(apperr.KindSemanticModel, "table %q: duplicate dimension %q", key, d.Name)
			}
			seen[d.Name] = true
		}
		for _, mm := range t.Measures {
			if seen[mm.Name] {
				return apperr.Newf(apperr.KindSemanticModel, "table %q: duplicate measure %q", key, mm.Name)
			}
			seen[mm.Name] = true
		}
	}
	for _, rel := range m.Relationships {
		if _, ok := m.Tables[rel.From]; !ok {
			return apperr.Newf(apperr.KindSemanticModel, "relationship %q: unknown from_table %q", rel.Name, rel.From)
		}
		if _, ok := m.Tables[rel.To]; !ok {
			return apperr.Newf(apperr.KindSemanticModel, "relationship %q: unknown to_table %q", rel.Name, rel.To)
		}
	}
	return nil
}

// Clone returns a deep copy of the model, used when tenant-aware rewriting
// must not mutate the shared, read-only model (spec §5 shared-resource
// policy).
func (m *Model) Clone() *Model {
	out := &Model{
		Name:        m.Name,
		Dialect:     m.Dialect,
		Description: m.Description,
		Tables:      make(map[string]*Table, len(m.Tables)),
		Metrics:     make(map[string]string, len(m.Metrics)),
	}
	out.Tags = append(out.Tags, m.Tags...)
	out.Relationships = append(out.Relationships, m.Relationships...)
	for k, v := range m.Metrics {
		out.Metrics[k] = v
	}
	for key, t := range m.Tables {
		clone := *t
		clone.Dimensions = append([]Dimension(nil), t.Dimensions...)
		clone.Measures = append([]Measure(nil), t.Measures...)
		if t.Filters != nil {
			clone.Filters = make(map[string]string, len(t.Filters))
			for k, v := range t.Filters {
				clone.Filters[k] = v
			}
		}
		out.Tables[key] = &clone
	}
	return out
}
