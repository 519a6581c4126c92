package catalog

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Factory creates a driver bound to logger.
type Factory func(logger *slog.Logger) Driver

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a driver factory to the registry.
// Called by driver implementations in their init() functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = factory
}

// Get retrieves a driver factory by name.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[strings.ToLower(name)]
	return f, ok
}

// NewDriver creates a driver for the source type in cfg.
// A nil logger is replaced by a discard logger.
func NewDriver(cfg Config, logger *slog.Logger) (Driver, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("source type not specified")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownDriverError{
			Type:      cfg.Type,
			Available: ListDrivers(),
		}
	}
	return factory(logger), nil
}

// ListDrivers returns all registered driver names (sorted).
func ListDrivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a driver type is registered.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// UnknownDriverError is returned when an unknown source type is requested.
type UnknownDriverError struct {
	Type      string
	Available []string
}

func (e *UnknownDriverError) Error() string {
	return fmt.Sprintf("unknown source type %q\nAvailable types: %v\nHint: Check sources.<id>.type in leapcomplete.yaml", e.Type, e.Available)
}
