// Package sqlite provides a SQLite catalog driver for leapcomplete.
//
// This file registers the SQLite driver with the catalog registry.
// Import this package with a blank identifier to register the driver:
//
//	import _ "github.com/leapstack-labs/leapcomplete/pkg/catalogs/sqlite"
package sqlite

import (
	"log/slog"

	"github.com/leapstack-labs/leapcomplete/pkg/catalog"
)

func init() {
	catalog.Register("sqlite", func(logger *slog.Logger) catalog.Driver { return New(logger) })
}
