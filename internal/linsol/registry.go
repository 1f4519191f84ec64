package linsol

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/weigaofei/casadi/internal/options"
)

// Version is reported by the built-in backends in their plugin records.
const Version = "0.1.0"

// Plugin is the registration record for a backend: everything the function
// core needs to bind a backend by name without referencing its package.
type Plugin struct {
	// Name is the registry key.
	Name string

	// Doc is a one-line description shown in listings.
	Doc string

	// Version of the backend implementation.
	Version string

	// Options declares the option names the backend accepts at Create.
	Options *options.Schema

	// Creator constructs the (stateless) backend.
	Creator func() Backend
}

var registry = struct {
	sync.RWMutex
	plugins map[string]Plugin
}{plugins: make(map[string]Plugin)}

var logger = slog.Default().With(slog.String("component", "linsol"))

// Register adds a plugin to the process-wide registry. Registering a name
// that already exists overwrites the previous record; the overwrite is
// logged, not an error. Registration is expected to happen once at startup;
// steady-state lookups are pure reads.
func Register(p Plugin) error {
	if p.Name == "" {
		return fmt.Errorf("linsol: plugin with empty name")
	}
	if p.Creator == nil {
		return fmt.Errorf("linsol: plugin %q has no creator", p.Name)
	}
	registry.Lock()
	defer registry.Unlock()
	if _, exists := registry.plugins[p.Name]; exists {
		logger.Info("overwriting linear solver plugin", slog.String("name", p.Name))
	} else {
		logger.Debug("registered linear solver plugin", slog.String("name", p.Name))
	}
	registry.plugins[p.Name] = p
	return nil
}

// Find returns the plugin registered under name.
func Find(name string) (Plugin, error) {
	registry.RLock()
	defer registry.RUnlock()
	p, ok := registry.plugins[name]
	if !ok {
		return Plugin{}, fmt.Errorf("%w: %q, registered: %s", ErrNotFound, name, strings.Join(namesLocked(), ", "))
	}
	return p, nil
}

// Names returns the registered backend names, sorted.
func Names() []string {
	registry.RLock()
	defer registry.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	names := make([]string, 0, len(registry.plugins))
	for name := range registry.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
