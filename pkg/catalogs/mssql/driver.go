// Package mssql provides a SQL Server catalog driver for leapcomplete.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/leapstack-labs/leapcomplete/pkg/catalog"
	"github.com/leapstack-labs/leapcomplete/pkg/core"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver
)

// DefaultSchema is listed when the source has no schema configured.
const DefaultSchema = "dbo"

// Driver implements catalog.Driver for SQL Server.
// Comments come from MS_Description extended properties.
type Driver struct {
	catalog.BaseSQLDriver
}

var _ catalog.Driver = (*Driver)(nil)

// New creates a new SQL Server driver instance.
func New(logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Driver{
		BaseSQLDriver: catalog.BaseSQLDriver{Logger: logger},
	}
}

// Connect establishes a connection to SQL Server.
func (d *Driver) Connect(ctx context.Context, cfg catalog.Config) error {
	d.Logger.Debug("connecting to sql server", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("sqlserver", buildConnString(cfg))
	if err != nil {
		return fmt.Errorf("failed to open sql server connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sql server: %w", err)
	}

	d.DB = db
	d.Cfg = cfg
	return nil
}

// buildConnString constructs a sqlserver:// URL. Options are passed through
// as query parameters (encrypt, TrustServerCertificate, ...).
func buildConnString(cfg catalog.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 1433
	}

	query := url.Values{}
	if cfg.Database != "" {
		query.Set("database", cfg.Database)
	}
	for k, v := range cfg.Options {
		query.Set(k, v)
	}

	u := url.URL{
		Scheme:   "sqlserver",
		Host:     host + ":" + strconv.Itoa(port),
		RawQuery: query.Encode(),
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	return u.String()
}

func (d *Driver) schema() string {
	if d.Cfg.Schema != "" {
		return d.Cfg.Schema
	}
	return DefaultSchema
}

const listTablesQuery = `
	SET NOCOUNT ON;
	SELECT
	    o.name AS table_name,
	    CAST(ep.value AS NVARCHAR(4000)) AS table_comment
	FROM sys.objects o
	LEFT JOIN sys.extended_properties ep
	    ON ep.major_id = o.object_id AND ep.minor_id = 0 AND ep.name = 'MS_Description'
	WHERE o.type IN ('U', 'V')
	  AND o.is_ms_shipped = 0
	  AND SCHEMA_NAME(o.schema_id) = @schema
	ORDER BY o.name
`

// ListTables returns the user tables and views of the configured schema.
func (d *Driver) ListTables(ctx context.Context) ([]core.TableStub, error) {
	return d.QueryStubs(ctx, listTablesQuery, sql.Named("schema", d.schema()))
}

const describeColumnsQuery = `
	SET NOCOUNT ON;
	SELECT
	    c.name AS column_name,
	    tp.name AS data_type,
	    CAST(ep.value AS NVARCHAR(4000)) AS column_comment,
	    CAST(CASE WHEN pk.column_id IS NOT NULL THEN 1 ELSE 0 END AS BIT) AS is_primary_key,
	    c.is_nullable
	FROM sys.columns c
	INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
	LEFT JOIN (
	    SELECT ic.object_id, ic.column_id
	    FROM sys.index_columns ic
	    INNER JOIN sys.indexes i ON ic.object_id = i.object_id AND ic.index_id = i.index_id
	    WHERE i.is_primary_key = 1
	) pk ON c.object_id = pk.object_id AND c.column_id = pk.column_id
	LEFT JOIN sys.extended_properties ep
	    ON ep.major_id = c.object_id AND ep.minor_id = c.column_id AND ep.name = 'MS_Description'
	WHERE c.object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
	ORDER BY c.column_id
`

const tableCommentQuery = `
	SET NOCOUNT ON;
	SELECT CAST(value AS NVARCHAR(4000))
	FROM sys.extended_properties
	WHERE major_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
	  AND minor_id = 0 AND name = 'MS_Description'
`

// DescribeTable returns the columns of a table.
func (d *Driver) DescribeTable(ctx context.Context, table string) (*core.TableDetail, error) {
	schema, name := catalog.SplitQualifiedName(table, d.schema())
	args := []any{sql.Named("schema", schema), sql.Named("table", name)}

	columns, err := d.QueryColumns(ctx, table, describeColumnsQuery, args...)
	if err != nil {
		return nil, err
	}

	comment, err := d.QueryComment(ctx, tableCommentQuery, args...)
	if err != nil {
		return nil, err
	}

	return &core.TableDetail{Name: table, Comment: comment, Columns: columns}, nil
}
