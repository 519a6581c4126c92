// Package core defines the shared language of the leapcomplete system.
//
// This package contains:
//   - Catalog entities (TableStub, TableDetail, Column)
//   - The CatalogFetcher boundary consumed by the schema cache
//   - Source configuration (SourceConfig)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
