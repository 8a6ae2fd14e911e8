// Package luamod loads service modules written in Lua. Each module lives in
// its own directory with a module.yaml manifest and an entry script; the
// script registers commands and hook subscribers through the global
// "services" table.
package luamod

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the manifest name looked up in a module directory.
const ManifestFile = "module.yaml"

// ErrNoManifest is returned for directories without a manifest.
var ErrNoManifest = errors.New("luamod: no module.yaml")

// Manifest describes one script module.
type Manifest struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
	Script      string `yaml:"script"` // entry file, defaults to main.lua
}

// LoadManifest reads and validates dir/module.yaml.
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w in %s", ErrNoManifest, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest in %s: %w", dir, err)
	}
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		m.Name = filepath.Base(dir)
	}
	if m.Script == "" {
		m.Script = "main.lua"
	}
	if filepath.IsAbs(m.Script) || strings.Contains(filepath.ToSlash(m.Script), "..") {
		return nil, fmt.Errorf("module %s: script must stay inside the module directory", m.Name)
	}
	return &m, nil
}

// Discover returns the manifests found in the direct subdirectories of
// root, keyed by module name. A missing root yields no modules.
func Discover(root string) (map[string]string, error) {
	entries, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	found := make(map[string]string)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		m, err := LoadManifest(dir)
		if errors.Is(err, ErrNoManifest) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if prev, dup := found[m.Name]; dup {
			return nil, fmt.Errorf("module %s defined in both %s and %s", m.Name, prev, dir)
		}
		found[m.Name] = dir
	}
	return found, nil
}

// Names returns the keys of a Discover result, sorted.
func Names(found map[string]string) []string {
	names := make([]string, 0, len(found))
	for n := range found {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
