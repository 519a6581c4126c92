// Package duckdb provides a DuckDB catalog driver for leapcomplete.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapcomplete/pkg/catalog"
	"github.com/leapstack-labs/leapcomplete/pkg/core"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// DefaultSchema is listed when the source has no schema configured.
const DefaultSchema = "main"

// Driver implements catalog.Driver for DuckDB.
type Driver struct {
	catalog.BaseSQLDriver
}

var _ catalog.Driver = (*Driver)(nil)

// New creates a new DuckDB driver instance.
func New(logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Driver{
		BaseSQLDriver: catalog.BaseSQLDriver{Logger: logger},
	}
}

// Connect opens the database file in cfg.Database.
// Use ":memory:" (or leave it empty) for an in-memory database.
func (d *Driver) Connect(ctx context.Context, cfg catalog.Config) error {
	path := cfg.Database
	if path == "" {
		path = ":memory:"
	}

	d.Logger.Debug("opening duckdb", slog.String("path", path))

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	d.DB = db
	d.Cfg = cfg
	return nil
}

func (d *Driver) schema() string {
	if d.Cfg.Schema != "" {
		return d.Cfg.Schema
	}
	return DefaultSchema
}

const listTablesQuery = `
	SELECT table_name, comment FROM duckdb_tables() WHERE schema_name = ?
	UNION ALL
	SELECT view_name, comment FROM duckdb_views() WHERE schema_name = ? AND NOT internal
	ORDER BY 1
`

// ListTables returns the tables and views of the configured schema.
func (d *Driver) ListTables(ctx context.Context) ([]core.TableStub, error) {
	schema := d.schema()
	return d.QueryStubs(ctx, listTablesQuery, schema, schema)
}

const describeColumnsQuery = `
	SELECT
		c.column_name,
		c.data_type,
		c.comment,
		EXISTS (
			SELECT 1 FROM duckdb_constraints() k
			WHERE k.schema_name = c.schema_name
			  AND k.table_name = c.table_name
			  AND k.constraint_type = 'PRIMARY KEY'
			  AND list_contains(k.constraint_column_names, c.column_name)
		) AS is_primary_key,
		c.is_nullable
	FROM duckdb_columns() c
	WHERE c.schema_name = ? AND c.table_name = ?
	ORDER BY c.column_index
`

const tableCommentQuery = `SELECT comment FROM duckdb_tables() WHERE schema_name = ? AND table_name = ?`

// DescribeTable returns the columns of a table.
func (d *Driver) DescribeTable(ctx context.Context, table string) (*core.TableDetail, error) {
	schema, name := catalog.SplitQualifiedName(table, d.schema())

	columns, err := d.QueryColumns(ctx, table, describeColumnsQuery, schema, name)
	if err != nil {
		return nil, err
	}

	comment, err := d.QueryComment(ctx, tableCommentQuery, schema, name)
	if err != nil {
		return nil, err
	}

	return &core.TableDetail{Name: table, Comment: comment, Columns: columns}, nil
}
