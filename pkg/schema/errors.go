package schema

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/leapcomplete/pkg/core"
)

var (
	// ErrUnknownTable is returned when a detail is requested for a table
	// that is not part of the current listing.
	ErrUnknownTable = errors.New("table not in catalog listing")

	// ErrNoSource is returned by Refresh before any source was selected.
	ErrNoSource = errors.New("no catalog source selected")

	// ErrRebuilt is returned to a blocked caller when the cache was rebuilt
	// while it was waiting.
	ErrRebuilt = errors.New("schema cache was rebuilt")
)

// ListFetchError is a failed table listing. The whole source is unusable
// until Initialize or Refresh is called again.
type ListFetchError struct {
	Source core.SourceID
	Err    error
}

func (e *ListFetchError) Error() string {
	return fmt.Sprintf("failed to list tables of %s: %v", e.Source, e.Err)
}

func (e *ListFetchError) Unwrap() error { return e.Err }

// DetailFetchError is a failed detail fetch for one table.
type DetailFetchError struct {
	Table string
	Err   error
}

func (e *DetailFetchError) Error() string {
	return fmt.Sprintf("failed to load table %s: %v", e.Table, e.Err)
}

func (e *DetailFetchError) Unwrap() error { return e.Err }
