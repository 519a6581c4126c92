// Package postgres provides a PostgreSQL catalog driver for leapcomplete.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/leapstack-labs/leapcomplete/pkg/catalog"
	"github.com/leapstack-labs/leapcomplete/pkg/core"
)

// DefaultSchema is listed when the source has no schema configured.
const DefaultSchema = "public"

// Driver implements catalog.Driver for PostgreSQL.
type Driver struct {
	catalog.BaseSQLDriver
}

var _ catalog.Driver = (*Driver)(nil)

// New creates a new PostgreSQL driver instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Driver{
		BaseSQLDriver: catalog.BaseSQLDriver{Logger: logger},
	}
}

// Connect establishes a connection to PostgreSQL.
func (d *Driver) Connect(ctx context.Context, cfg catalog.Config) error {
	dsn := buildPostgresDSN(cfg)

	d.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	d.DB = db
	d.Cfg = cfg
	return nil
}

// buildPostgresDSN constructs a PostgreSQL connection string.
func buildPostgresDSN(cfg catalog.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.User != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.User)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}

	return dsn
}

func (d *Driver) schema() string {
	if d.Cfg.Schema != "" {
		return d.Cfg.Schema
	}
	return DefaultSchema
}

const listTablesQuery = `
	SELECT
		c.relname AS table_name,
		obj_description(c.oid, 'pg_class') AS table_comment
	FROM pg_class c
	JOIN pg_namespace n ON n.oid = c.relnamespace
	WHERE n.nspname = $1
	  AND c.relkind IN ('r', 'p', 'v', 'm', 'f')
	ORDER BY c.relname
`

// ListTables returns the tables, views and foreign tables of the configured schema.
func (d *Driver) ListTables(ctx context.Context) ([]core.TableStub, error) {
	return d.QueryStubs(ctx, listTablesQuery, d.schema())
}

const tableCommentQuery = `
	SELECT obj_description(c.oid, 'pg_class')
	FROM pg_class c
	JOIN pg_namespace n ON n.oid = c.relnamespace
	WHERE n.nspname = $1 AND c.relname = $2
`

const describeColumnsQuery = `
	SELECT
		a.attname AS column_name,
		format_type(a.atttypid, a.atttypmod) AS data_type,
		col_description(c.oid, a.attnum) AS column_comment,
		COALESCE(pk.is_pk, false) AS is_primary_key,
		NOT a.attnotnull AS is_nullable
	FROM pg_attribute a
	JOIN pg_class c ON c.oid = a.attrelid
	JOIN pg_namespace n ON n.oid = c.relnamespace
	LEFT JOIN (
		SELECT ix.indrelid, unnest(ix.indkey) AS attnum, true AS is_pk
		FROM pg_index ix
		WHERE ix.indisprimary
	) pk ON pk.indrelid = c.oid AND pk.attnum = a.attnum
	WHERE n.nspname = $1
	  AND c.relname = $2
	  AND a.attnum > 0
	  AND NOT a.attisdropped
	ORDER BY a.attnum
`

// DescribeTable returns the columns of a table. A schema-qualified name
// overrides the configured schema.
func (d *Driver) DescribeTable(ctx context.Context, table string) (*core.TableDetail, error) {
	schema, name := catalog.SplitQualifiedName(table, d.schema())

	columns, err := d.QueryColumns(ctx, table, describeColumnsQuery, schema, name)
	if err != nil {
		return nil, err
	}

	comment, err := d.QueryComment(ctx, tableCommentQuery, schema, name)
	if err != nil {
		d.Logger.Debug("table comment unavailable", slog.String("table", table), slog.String("error", err.Error()))
	}

	return &core.TableDetail{Name: table, Comment: comment, Columns: columns}, nil
}
