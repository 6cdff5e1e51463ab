package runtime

import (
	"sort"
	"strings"
	"sync"

	"github.com/loomworks/loom/pkg/model"
)

// Factory builds a plugin instance from its plugin-local configuration.
type Factory func(config map[string]interface{}) (Plugin, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register adds a plugin factory under a case-insensitive name. Plugin
// packages call this from init; re-registering replaces the factory, which
// is how tests substitute stubs.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = f
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[strings.ToLower(name)]
	return f, ok
}

// Registered lists the registered plugin names, sorted.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// build instantiates one plugin from its spec: registry first, then the
// resolver's dynamic loader if one is installed.
func build(spec model.PluginSpec, loader func(model.PluginSpec) (Plugin, error)) (Plugin, error) {
	if f, ok := Lookup(spec.Name); ok {
		return f(spec.Config)
	}
	if loader != nil && (spec.Path != "" || spec.Package != "") {
		return loader(spec)
	}
	return nil, model.NewConfigurationError("unknown plugin", nil).
		WithCode(model.ErrCodeBadReference).
		WithDetail("plugin", spec.Name)
}
