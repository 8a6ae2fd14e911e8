// Package interfaces defines the contract between the services core and
// feature modules. Compiled-in modules register a factory from init();
// the module manager instantiates them by name.
package interfaces

import (
	"fmt"
	"sort"
)

// Module is a unit of functionality that can be loaded and unloaded while
// the daemon runs.
type Module interface {
	// Name returns the unique module name.
	Name() string

	// Init registers the module's commands and hook subscriptions.
	// If it fails, the module must leave nothing registered behind.
	Init(host *Host) error

	// Cleanup releases every command and hook handle the module holds.
	// It is called before the module is forgotten.
	Cleanup(host *Host) error
}

// ModuleFactory creates a fresh module instance.
type ModuleFactory func() Module

var registeredModules = make(map[string]ModuleFactory)

// RegisterModule adds a module factory to the global registry under a
// unique name. It panics on duplicates.
func RegisterModule(name string, factory ModuleFactory) {
	if _, exists := registeredModules[name]; exists {
		panic(fmt.Sprintf("module already registered: %s", name))
	}
	registeredModules[name] = factory
}

// GetModule creates a new instance of a registered module.
func GetModule(name string) (Module, error) {
	f, ok := registeredModules[name]
	if !ok {
		return nil, fmt.Errorf("no module registered with name: %s", name)
	}
	return f(), nil
}

// Modules returns the names of all registered modules, sorted.
func Modules() []string {
	names := make([]string, 0, len(registeredModules))
	for n := range registeredModules {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
