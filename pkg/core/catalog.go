package core

import (
	"context"
	"errors"
)

// SourceID identifies a configured catalog source.
type SourceID string

// TableStub is the cheap identity of a table returned by a catalog listing.
type TableStub struct {
	Name    string `json:"name" yaml:"name"`
	Comment string `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// Column describes one column of a table.
type Column struct {
	Name         string `json:"name" yaml:"name"`
	DataType     string `json:"dataType" yaml:"data_type"`
	Comment      string `json:"comment,omitempty" yaml:"comment,omitempty"`
	IsPrimaryKey bool   `json:"isPrimaryKey" yaml:"is_primary_key"`
	IsNullable   bool   `json:"isNullable" yaml:"is_nullable"`
}

// TableDetail holds the full column metadata for one table.
// A detail handed out by the schema cache is shared and must not be modified.
type TableDetail struct {
	Name    string   `json:"name" yaml:"name"`
	Comment string   `json:"comment,omitempty" yaml:"comment,omitempty"`
	Columns []Column `json:"columns" yaml:"columns"`
}

// Column returns the column with the given name.
func (d *TableDetail) Column(name string) (Column, bool) {
	if d == nil {
		return Column{}, false
	}
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// CatalogFetcher reads catalog metadata from a remote source.
// Both calls are side-effect free and may be slow or fail transiently.
type CatalogFetcher interface {
	// ListTables returns the table stubs of a source.
	ListTables(ctx context.Context, source SourceID) ([]TableStub, error)

	// GetTableDetail returns the columns of a single table.
	GetTableDetail(ctx context.Context, source SourceID, table string) (*TableDetail, error)
}

var (
	// ErrTableNotFound is returned by fetchers when a table has no columns or does not exist.
	ErrTableNotFound = errors.New("table not found")

	// ErrUnknownSource is returned when a source id is not configured.
	ErrUnknownSource = errors.New("unknown catalog source")
)
