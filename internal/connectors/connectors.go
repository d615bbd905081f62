// Package connectors defines the capability interfaces the orchestrator core
// depends on for executing SQL against a tenant's data warehouse and for
// embedding text for vector similarity search, plus the concrete adapters
// that satisfy them for each supported dialect.
//
// Grounded on
// _examples/original_source/langbridge/packages/connectors/langbridge_connectors's
// SqlConnector protocol and langbridge_common's EmbeddingProvider protocol.
package connectors

import "context"

// QueryResult is the normalized result of a SqlConnector.Execute call.
type QueryResult struct {
	Columns   []string
	Rows      [][]any
	RowCount  int
	ElapsedMs int64
	SQL       string
}

// SqlConnector executes SQL text against a physical data source and returns
// a normalized tabular result. Implementations exist per target dialect
// (postgres, tsql, mysql, sqlite); all share this capability.
type SqlConnector interface {
	Execute(ctx context.Context, sql string, maxRows int) (*QueryResult, error)
	Dialect() string
	Close() error
}

// Embedder produces vector embeddings for a batch of text phrases, used to
// resolve ambiguous entity references against a semantic model's vectorized
// dimension values.
type Embedder interface {
	Embed(ctx context.Context, phrases []string) ([][]float64, error)
}
