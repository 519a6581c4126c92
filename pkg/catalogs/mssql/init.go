// Package mssql provides a SQL Server catalog driver for leapcomplete.
//
// This file registers the SQL Server driver with the catalog registry.
// Import this package with a blank identifier to register the driver:
//
//	import _ "github.com/leapstack-labs/leapcomplete/pkg/catalogs/mssql"
package mssql

import (
	"log/slog"

	"github.com/leapstack-labs/leapcomplete/pkg/catalog"
)

func init() {
	catalog.Register("mssql", func(logger *slog.Logger) catalog.Driver { return New(logger) })
}
