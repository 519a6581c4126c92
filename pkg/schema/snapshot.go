package schema

import (
	"strings"

	"github.com/leapstack-labs/leapcomplete/pkg/core"
)

// TableEntry is the cached state of one table.
type TableEntry struct {
	Stub   core.TableStub
	Detail *core.TableDetail
	State  LoadState
	Err    error
}

// Name returns the table name.
func (e TableEntry) Name() string { return e.Stub.Name }

// Snapshot is an immutable view of the cache at one point in time.
// Details are shared with the cache and must be treated as read-only.
type Snapshot struct {
	Source     core.SourceID
	Generation uint64
	ListState  ListState
	ListErr    error
	Tables     []TableEntry
}

// Table looks up an entry by name, exact match first, then case-insensitive.
func (s Snapshot) Table(name string) (TableEntry, bool) {
	for _, t := range s.Tables {
		if t.Stub.Name == name {
			return t, true
		}
	}
	for _, t := range s.Tables {
		if strings.EqualFold(t.Stub.Name, name) {
			return t, true
		}
	}
	return TableEntry{}, false
}

// Loaded returns the entries whose detail is available.
func (s Snapshot) Loaded() []TableEntry {
	var out []TableEntry
	for _, t := range s.Tables {
		if t.State == Loaded && t.Detail != nil {
			out = append(out, t)
		}
	}
	return out
}

// Count returns the number of entries in each load state.
func (s Snapshot) Count() map[LoadState]int {
	counts := make(map[LoadState]int, 4)
	for _, t := range s.Tables {
		counts[t.State]++
	}
	return counts
}
