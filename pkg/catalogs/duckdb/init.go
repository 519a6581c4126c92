// Package duckdb provides a DuckDB catalog driver for leapcomplete.
//
// This file registers the DuckDB driver with the catalog registry.
// Import this package with a blank identifier to register the driver:
//
//	import _ "github.com/leapstack-labs/leapcomplete/pkg/catalogs/duckdb"
package duckdb

import (
	"log/slog"

	"github.com/leapstack-labs/leapcomplete/pkg/catalog"
)

func init() {
	catalog.Register("duckdb", func(logger *slog.Logger) catalog.Driver { return New(logger) })
}
