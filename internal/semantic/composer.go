package semantic

import (
	"fmt"

	"github.com/basegraph/analystcore/internal/apperr"
)

// SourceModel pairs a model with the connector it was loaded from, so the
// composed model can remember which physical source owns each table.
// Grounded on
// original_source/.../unified_query.py's UnifiedSourceModel.
type SourceModel struct {
	Model       *Model
	ConnectorID string
}

// TenantContext carries the identifiers used to derive a tenant's
// per-table catalog token. Grounded on
// original_source/.../unified_query.py's TenantAwareQueryContext.
type TenantContext struct {
	OrganizationID       string
	ExecutionConnectorID string
}

// Compose merges N source models into one unified Model (C5), returning the
// merged model and a table_key -> connector_id map recording provenance.
// Grounded on
// original_source/.../unified_query.py's build_unified_semantic_model.
func Compose(sources []SourceModel, joins []Relationship, metrics map[string]string, name, description, dialect string) (*Model, map[string]string, error) {
	if len(sources) == 0 {
		return nil, nil, apperr.New(apperr.KindSemanticModel, fmt.Errorf("at least one source model is required to compose a unified model"))
	}

	unified := &Model{
		Name:        name,
		Description: description,
		Dialect:     dialect,
		Tables:      map[string]*Table{},
		Metrics:     map[string]string{},
	}
	tableConnector := map[string]string{}

	for _, src := range sources {
		for tableKey, t := range src.Model.Tables {
			if _, exists := unified.Tables[tableKey]; exists {
				return nil, nil, apperr.Newf(apperr.KindSemanticModel, "duplicate table key %q while composing unified model", tableKey)
			}
			clone := *t
			clone.Dimensions = append([]Dimension(nil), t.Dimensions...)
			clone.Measures = append([]Measure(nil), t.Measures...)
			unified.Tables[tableKey] = &clone
			tableConnector[tableKey] = src.ConnectorID
		}
		unified.Relationships = append(unified.Relationships, src.Model.Relationships...)
		for k, v := range src.Model.Metrics {
			unified.Metrics[k] = v
		}
	}
	unified.Relationships = append(unified.Relationships, joins...)
	for k, v := range metrics {
		unified.Metrics[k] = v
	}

	if err := unified.Validate(); err != nil {
		return nil, nil, err
	}
	return unified, tableConnector, nil
}

// ApplyTenantContext returns a copy of model with a deterministic per-table
// Trino catalog assigned to every table that doesn't already declare one,
// so each table's physical location is pinned to the tenant's own source
// connectors rather than shared across organizations. Grounded on
// original_source/.../unified_query.py's apply_tenant_aware_context /
// _build_catalog_token.
func ApplyTenantContext(model *Model, ctx TenantContext, tableConnector map[string]string) *Model {
	out := model.Clone()
	for tableKey, t := range out.Tables {
		if t.Catalog != "" {
			continue
		}

		schema := t.Schema
		if idx := indexOfDot(schema); idx >= 0 {
			t.Catalog = schema[:idx]
			t.Schema = schema[idx+1:]
			continue
		}

		connectorID := ctx.ExecutionConnectorID
		if id, ok := tableConnector[tableKey]; ok {
			connectorID = id
		}
		t.Catalog = catalogToken(ctx.OrganizationID, connectorID)
	}
	return out
}

func catalogToken(organizationID, connectorID string) string {
	return fmt.Sprintf("org_%s__src_%s", shortToken(organizationID), shortToken(connectorID))
}

// shortToken takes the first 12 characters of an identifier, matching the
// original's org.hex[:12] truncation but working over opaque string IDs
// rather than Python UUID.hex.
func shortToken(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}

func indexOfDot(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}
