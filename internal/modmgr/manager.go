// Package modmgr loads and unloads service modules at runtime. Compiled-in
// modules come from the interfaces registry; script modules are discovered
// in the configured scripts directory. Every method must be called from the
// service loop.
package modmgr

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mfulz/ircgeist/interfaces"
	"github.com/mfulz/ircgeist/internal/luamod"
)

var (
	ErrUnknownModule = errors.New("modmgr: unknown module")
	ErrLoaded        = errors.New("modmgr: module already loaded")
	ErrNotLoaded     = errors.New("modmgr: module not loaded")
)

// Module kinds reported by List.
const (
	KindBuiltin = "builtin"
	KindScript  = "script"
)

// Info describes one available module.
type Info struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Loaded bool   `json:"loaded"`
}

// Manager tracks the loaded modules of one host.
type Manager struct {
	host      *interfaces.Host
	scriptDir string

	loaded map[string]interfaces.Module
	order  []string
}

// New creates a manager for host. scriptDir may be empty.
func New(host *interfaces.Host, scriptDir string) *Manager {
	return &Manager{
		host:      host,
		scriptDir: scriptDir,
		loaded:    make(map[string]interfaces.Module),
	}
}

// Load instantiates and initializes the named module. Compiled-in modules
// shadow script modules of the same name.
func (m *Manager) Load(name string) error {
	if _, ok := m.loaded[name]; ok {
		return fmt.Errorf("%w: %s", ErrLoaded, name)
	}

	mod, err := m.resolve(name)
	if err != nil {
		return err
	}
	if err := mod.Init(m.host); err != nil {
		return fmt.Errorf("init module '%s': %w", name, err)
	}

	m.loaded[name] = mod
	m.order = append(m.order, name)
	m.host.Log.Infof("[modmgr] Loaded module '%s'", name)
	return nil
}

// Unload cleans the named module up and forgets it, even if its cleanup
// reported an error.
func (m *Manager) Unload(name string) error {
	mod, ok := m.loaded[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, name)
	}

	err := mod.Cleanup(m.host)
	delete(m.loaded, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}
	if err != nil {
		return fmt.Errorf("cleanup module '%s': %w", name, err)
	}
	m.host.Log.Infof("[modmgr] Unloaded module '%s'", name)
	return nil
}

// LoadAutoload loads every listed module, logging and collecting failures
// instead of stopping at the first one.
func (m *Manager) LoadAutoload(names []string) error {
	var errs []error
	for _, name := range names {
		m.host.Log.Infof("[modmgr] Autoload enabled for '%s'", name)
		if err := m.Load(name); err != nil {
			m.host.Log.Errorf("[modmgr] Failed to load '%s': %v", name, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// UnloadAll unloads modules in reverse load order.
func (m *Manager) UnloadAll() {
	for i := len(m.order) - 1; i >= 0; i-- {
		name := m.order[i]
		m.host.Log.Infof("[modmgr] Shutting down '%s'...", name)
		if err := m.Unload(name); err != nil {
			m.host.Log.Warnf("[modmgr] %v", err)
		}
	}
}

// Loaded returns the loaded module names in load order.
func (m *Manager) Loaded() []string {
	return append([]string(nil), m.order...)
}

// List returns every available module, sorted by name.
func (m *Manager) List() ([]Info, error) {
	seen := make(map[string]bool)
	var out []Info
	for _, name := range interfaces.Modules() {
		seen[name] = true
		out = append(out, Info{Name: name, Kind: KindBuiltin, Loaded: m.loaded[name] != nil})
	}

	scripts, err := m.scripts()
	if err != nil {
		return nil, err
	}
	for _, name := range luamod.Names(scripts) {
		if seen[name] {
			continue
		}
		out = append(out, Info{Name: name, Kind: KindScript, Loaded: m.loaded[name] != nil})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Manager) resolve(name string) (interfaces.Module, error) {
	if mod, err := interfaces.GetModule(name); err == nil {
		return mod, nil
	}
	scripts, err := m.scripts()
	if err != nil {
		return nil, err
	}
	dir, ok := scripts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, name)
	}
	return luamod.Open(dir)
}

func (m *Manager) scripts() (map[string]string, error) {
	if m.scriptDir == "" {
		return map[string]string{}, nil
	}
	return luamod.Discover(m.scriptDir)
}
