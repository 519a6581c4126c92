// Package sqlite provides a SQLite catalog driver for leapcomplete.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapcomplete/pkg/catalog"
	"github.com/leapstack-labs/leapcomplete/pkg/core"

	_ "modernc.org/sqlite" // pure Go sqlite driver
)

// Driver implements catalog.Driver for SQLite database files.
// SQLite has no table or column comments; stubs and columns carry none.
type Driver struct {
	catalog.BaseSQLDriver
}

var _ catalog.Driver = (*Driver)(nil)

// New creates a new SQLite driver instance.
func New(logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Driver{
		BaseSQLDriver: catalog.BaseSQLDriver{Logger: logger},
	}
}

// Connect opens the database file in cfg.Database in read-only mode.
// An empty path opens a private in-memory database.
func (d *Driver) Connect(ctx context.Context, cfg catalog.Config) error {
	dsn := ":memory:"
	if cfg.Database != "" && cfg.Database != ":memory:" {
		dsn = fmt.Sprintf("file:%s?mode=ro", cfg.Database)
	}

	d.Logger.Debug("opening sqlite", slog.String("dsn", dsn))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if dsn == ":memory:" {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}

	d.DB = db
	d.Cfg = cfg
	return nil
}

const listTablesQuery = `
	SELECT name, NULL
	FROM sqlite_master
	WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
	ORDER BY name
`

// ListTables returns the tables and views of the database.
func (d *Driver) ListTables(ctx context.Context) ([]core.TableStub, error) {
	return d.QueryStubs(ctx, listTablesQuery)
}

const describeColumnsQuery = `
	SELECT name, type, NULL, pk > 0, "notnull" = 0
	FROM pragma_table_info(?)
	ORDER BY cid
`

// DescribeTable returns the columns of a table.
func (d *Driver) DescribeTable(ctx context.Context, table string) (*core.TableDetail, error) {
	columns, err := d.QueryColumns(ctx, table, describeColumnsQuery, table)
	if err != nil {
		return nil, err
	}
	return &core.TableDetail{Name: table, Columns: columns}, nil
}
