package connectors

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// genericSQLConnector executes SQL against any database/sql driver, used for
// the dialect targets that don't get the native pgx treatment (tsql, mysql,
// sqlite). Grounded on the teacher's single-pool-per-connector shape in
// core/db/db.go, generalized to database/sql since those three drivers don't
// expose a pgx-style native pool.
type genericSQLConnector struct {
	db      *sql.DB
	dialect string
}

// NewMSSQLConnector opens a SQL Server connection via
// github.com/microsoft/go-mssqldb.
func NewMSSQLConnector(dsn string) (SqlConnector, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mssql source: %w", err)
	}
	return &genericSQLConnector{db: db, dialect: "tsql"}, nil
}

// NewMySQLConnector opens a MySQL connection via
// github.com/go-sql-driver/mysql.
func NewMySQLConnector(dsn string) (SqlConnector, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql source: %w", err)
	}
	return &genericSQLConnector{db: db, dialect: "mysql"}, nil
}

// NewSQLiteConnector opens a SQLite file (or in-memory) source via
// modernc.org/sqlite, used for the embedded demo connector.
func NewSQLiteConnector(path string) (SqlConnector, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite source: %w", err)
	}
	return &genericSQLConnector{db: db, dialect: "sqlite"}, nil
}

func (c *genericSQLConnector) Execute(ctx context.Context, query string, maxRows int) (*QueryResult, error) {
	start := time.Now()
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute %s query: %w", c.dialect, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read %s columns: %w", c.dialect, err)
	}

	var result [][]any
	for rows.Next() {
		if maxRows > 0 && len(result) >= maxRows {
			break
		}
		raw := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", c.dialect, err)
		}
		result = append(result, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", c.dialect, err)
	}

	return &QueryResult{
		Columns:   columns,
		Rows:      result,
		RowCount:  len(result),
		ElapsedMs: time.Since(start).Milliseconds(),
		SQL:       query,
	}, nil
}

func (c *genericSQLConnector) Dialect() string { return c.dialect }

func (c *genericSQLConnector) Close() error { return c.db.Close() }
