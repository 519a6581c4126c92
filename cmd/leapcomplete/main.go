// Package main provides the leapcomplete CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/leapcomplete/internal/cli"

	// Catalog drivers register themselves with the catalog registry.
	_ "github.com/leapstack-labs/leapcomplete/pkg/catalogs/duckdb"
	_ "github.com/leapstack-labs/leapcomplete/pkg/catalogs/httpapi"
	_ "github.com/leapstack-labs/leapcomplete/pkg/catalogs/mssql"
	_ "github.com/leapstack-labs/leapcomplete/pkg/catalogs/postgres"
	_ "github.com/leapstack-labs/leapcomplete/pkg/catalogs/sqlite"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
