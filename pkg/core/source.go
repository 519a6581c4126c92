package core

// SourceConfig holds the connection settings of one catalog source.
type SourceConfig struct {
	Type string `koanf:"type"` // postgres, duckdb, sqlite, mssql, http

	// File-based databases (DuckDB, SQLite)
	Database string `koanf:"database"` // file path or database name

	// Network databases
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	// Common
	Schema string `koanf:"schema"`

	// Catalog service (http)
	URL          string `koanf:"url"`
	Token        string `koanf:"token"`
	DatasourceID string `koanf:"datasource_id"`

	// Table name filters (glob patterns)
	Include []string `koanf:"include"`
	Exclude []string `koanf:"exclude"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options"`
}

// IsFileBased reports whether the source reads a local database file.
func (c *SourceConfig) IsFileBased() bool {
	switch c.Type {
	case "duckdb", "sqlite":
		return c.Database != "" && c.Database != ":memory:"
	default:
		return false
	}
}
