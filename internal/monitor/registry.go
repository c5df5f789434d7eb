package monitor

import "sync"

// Constructor builds one monitor instance from its context. Concrete
// monitors register their constructor from an init() in their own file;
// there is no filesystem scan, unlike the plug-in-by-decorator pattern this
// replaces — the registry is fixed at compile time.
type Constructor func(ctx Context) Monitor

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register adds a monitor type to the compile-time registry. Called only
// from package-level init() functions; panics on a duplicate type, which can
// only happen from a programming error, not user input.
func Register(monitorType string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[monitorType]; exists {
		panic("monitor: duplicate registration for type " + monitorType)
	}
	registry[monitorType] = ctor
}

// IsRegistered reports whether monitorType has a registered constructor.
func IsRegistered(monitorType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[monitorType]
	return ok
}

// RegisteredTypes returns every registered monitor type, in registration
// order is not guaranteed (map iteration); callers that need a stable order
// should sort the result.
func RegisteredTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	return types
}

// New constructs a monitor of the given type. Returns false if the type is
// unregistered.
func New(monitorType string, ctx Context) (Monitor, bool) {
	registryMu.RLock()
	ctor, ok := registry[monitorType]
	registryMu.RUnlock()
	if !ok {
		return nil, false
	}
	return ctor(ctx), true
}
