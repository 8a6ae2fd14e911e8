// Package configloader locates config files and keeps a typed registry of
// loaded configuration instances, so that the daemon and the CLI can share
// ambient packages such as logging without passing configs around.
//
// Typical usage:
//
//	configloader.SetConfig(&cfg.Logger)
//	logCfg := configloader.MustGetConfig[*logging.Config]()
package configloader

import (
	"fmt"
	"reflect"
	"sync"
)

var registry sync.Map // key = reflect.Type of T, value = registered instance

func typeKey[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// RegisterConfig registers a config instance of type T for global access.
// It panics if a config of the same type is already registered.
func RegisterConfig[T any](cfg T) {
	if _, loaded := registry.LoadOrStore(typeKey[T](), cfg); loaded {
		panic(fmt.Sprintf("config already registered for type %v", typeKey[T]()))
	}
}

// SetConfig registers cfg, replacing any earlier instance of type T.
// Defaults registered at init time are overridden this way once the real
// config file has been read.
func SetConfig[T any](cfg T) {
	registry.Store(typeKey[T](), cfg)
}

// MustGetConfig retrieves the registered config instance of type T.
// It panics if no config of type T has been registered.
func MustGetConfig[T any]() T {
	if val, ok := registry.Load(typeKey[T]()); ok {
		return val.(T)
	}
	panic(fmt.Sprintf("no config registered for type %v", typeKey[T]()))
}

// TryGetConfig retrieves the registered config instance of type T.
// It returns (zero-value, false) if the config was not found.
func TryGetConfig[T any]() (T, bool) {
	if val, ok := registry.Load(typeKey[T]()); ok {
		return val.(T), true
	}
	var zero T
	return zero, false
}
