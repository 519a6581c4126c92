package schema

import "github.com/leapstack-labs/leapcomplete/pkg/core"

// EventKind identifies a cache state change.
type EventKind int

// Event kinds.
const (
	EventRebuilt EventKind = iota
	EventListLoaded
	EventListFailed
	EventDetailLoading
	EventDetailLoaded
	EventDetailFailed
)

func (k EventKind) String() string {
	switch k {
	case EventRebuilt:
		return "rebuilt"
	case EventListLoaded:
		return "list_loaded"
	case EventListFailed:
		return "list_failed"
	case EventDetailLoading:
		return "detail_loading"
	case EventDetailLoaded:
		return "detail_loaded"
	case EventDetailFailed:
		return "detail_failed"
	default:
		return "unknown"
	}
}

// Event describes a state change. Events are delivered outside the cache
// lock and may interleave across goroutines; listeners that render should
// read a fresh Snapshot rather than replay events.
type Event struct {
	Kind       EventKind
	Source     core.SourceID
	Generation uint64
	Table      string
	Err        error
}
