// Package postgres provides a PostgreSQL catalog driver for leapcomplete.
//
// This file registers the PostgreSQL driver with the catalog registry.
// Import this package with a blank identifier to register the driver:
//
//	import _ "github.com/leapstack-labs/leapcomplete/pkg/catalogs/postgres"
package postgres

import (
	"log/slog"

	"github.com/leapstack-labs/leapcomplete/pkg/catalog"
)

func init() {
	catalog.Register("postgres", func(logger *slog.Logger) catalog.Driver { return New(logger) })
}
