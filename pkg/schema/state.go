package schema

// LoadState is the detail load state of a single table.
type LoadState int

// Per-table states. Transitions are NotLoaded -> Loading -> Loaded|Failed
// and Failed -> Loading on retry. Loaded is terminal until a rebuild.
const (
	NotLoaded LoadState = iota
	Loading
	Loaded
	Failed
)

func (s LoadState) String() string {
	switch s {
	case NotLoaded:
		return "not_loaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// NeedsFetch reports whether a detail request would start a fetch.
func (s LoadState) NeedsFetch() bool {
	return s == NotLoaded || s == Failed
}

// ListState is the state of the table listing of the active source.
type ListState int

// Listing states.
const (
	ListEmpty ListState = iota
	ListLoading
	ListLoaded
	ListFailed
)

func (s ListState) String() string {
	switch s {
	case ListEmpty:
		return "empty"
	case ListLoading:
		return "loading"
	case ListLoaded:
		return "loaded"
	case ListFailed:
		return "failed"
	default:
		return "unknown"
	}
}
