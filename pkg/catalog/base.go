package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapcomplete/pkg/core"
)

// ErrNotConnected is returned when a driver is used before Connect.
var ErrNotConnected = errors.New("database connection not established")

// BaseSQLDriver provides common database/sql functionality for drivers.
// Embed this struct in concrete drivers to get Close and the row scanning
// helpers shared by every SQL catalog query.
type BaseSQLDriver struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLDriver) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection", slog.String("type", b.Cfg.Type))
		}
		return b.DB.Close()
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLDriver) IsConnected() bool {
	return b.DB != nil
}

// SplitQualifiedName splits a table reference into schema and name.
// defaultSchema is used when the reference is not qualified.
func SplitQualifiedName(table, defaultSchema string) (schema, name string) {
	if parts := strings.SplitN(table, ".", 2); len(parts) == 2 {
		return parts[0], parts[1]
	}
	return defaultSchema, table
}

// QueryStubs runs a listing query whose rows are (name, comment).
// A NULL comment scans as empty.
func (b *BaseSQLDriver) QueryStubs(ctx context.Context, query string, args ...any) ([]core.TableStub, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}

	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stubs []core.TableStub
	for rows.Next() {
		var name string
		var comment sql.NullString
		if err := rows.Scan(&name, &comment); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		stubs = append(stubs, core.TableStub{Name: name, Comment: comment.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return stubs, nil
}

// QueryColumns runs a column query whose rows are
// (name, data_type, comment, is_primary_key, is_nullable).
// It returns core.ErrTableNotFound when the query yields no rows.
func (b *BaseSQLDriver) QueryColumns(ctx context.Context, table string, query string, args ...any) ([]core.Column, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}

	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []core.Column
	for rows.Next() {
		var col core.Column
		var comment sql.NullString
		if err := rows.Scan(&col.Name, &col.DataType, &comment, &col.IsPrimaryKey, &col.IsNullable); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Comment = comment.String
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrTableNotFound, table)
	}
	return columns, nil
}

// QueryComment runs a single-value query returning a table comment.
// Missing rows and NULL comments yield an empty string.
func (b *BaseSQLDriver) QueryComment(ctx context.Context, query string, args ...any) (string, error) {
	if b.DB == nil {
		return "", ErrNotConnected
	}

	var comment sql.NullString
	err := b.DB.QueryRowContext(ctx, query, args...).Scan(&comment)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query table comment: %w", err)
	}
	return comment.String, nil
}
