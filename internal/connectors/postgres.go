package connectors

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresConnector executes SQL against a tenant Postgres source via pgx's
// native pool, independent of the application's own pgx pool in core/db.
type postgresConnector struct {
	pool *pgxpool.Pool
}

// NewPostgresConnector dials dsn and returns a SqlConnector backed by pgx.
func NewPostgresConnector(ctx context.Context, dsn string) (SqlConnector, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres source: %w", err)
	}
	return &postgresConnector{pool: pool}, nil
}

func (c *postgresConnector) Execute(ctx context.Context, sql string, maxRows int) (*QueryResult, error) {
	start := time.Now()
	rows, err := c.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("execute postgres query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = string(f.Name)
	}

	var result [][]any
	for rows.Next() {
		if maxRows > 0 && len(result) >= maxRows {
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan postgres row: %w", err)
		}
		result = append(result, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate postgres rows: %w", err)
	}

	return &QueryResult{
		Columns:   columns,
		Rows:      result,
		RowCount:  len(result),
		ElapsedMs: time.Since(start).Milliseconds(),
		SQL:       sql,
	}, nil
}

func (c *postgresConnector) Dialect() string { return "postgres" }

func (c *postgresConnector) Close() error {
	c.pool.Close()
	return nil
}
