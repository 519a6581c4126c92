// Package catalog connects catalog sources to the schema cache.
//
// A Driver talks to one database or catalog service. Sources multiplexes
// the configured drivers behind core.CatalogFetcher and validates every
// payload before it reaches the cache.
package catalog

import (
	"context"

	"github.com/leapstack-labs/leapcomplete/pkg/core"
)

// Config is the connection configuration handed to a driver.
type Config = core.SourceConfig

// Driver reads catalog metadata from a single connected source.
type Driver interface {
	// Connect establishes the connection described by cfg.
	Connect(ctx context.Context, cfg Config) error

	// Close releases the connection.
	Close() error

	// ListTables returns the tables visible in the configured schema.
	ListTables(ctx context.Context) ([]core.TableStub, error)

	// DescribeTable returns the columns of a table.
	// Implementations return core.ErrTableNotFound when the table has no columns.
	DescribeTable(ctx context.Context, table string) (*core.TableDetail, error)
}
