package configloader

import (
	"os"
	"path/filepath"
	"testing"
)

type sampleConfig struct{ Name string }

func TestRegistry(t *testing.T) {
	if _, ok := TryGetConfig[*sampleConfig](); ok {
		t.Fatalf("unexpected config before registration")
	}

	RegisterConfig(&sampleConfig{Name: "first"})
	if got := MustGetConfig[*sampleConfig](); got.Name != "first" {
		t.Fatalf("got %q", got.Name)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Errorf("expected panic on duplicate registration")
			}
		}()
		RegisterConfig(&sampleConfig{Name: "dup"})
	}()

	SetConfig(&sampleConfig{Name: "second"})
	if got, ok := TryGetConfig[*sampleConfig](); !ok || got.Name != "second" {
		t.Fatalf("got %+v, %v", got, ok)
	}
}

func TestResolveConfigPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvConfig, "")

	if got, err := ResolveConfigPath("/explicit.yaml", "ircgeistd", "ircgeistd.yaml"); err != nil || got != "/explicit.yaml" {
		t.Fatalf("explicit = %q, %v", got, err)
	}

	userPath := filepath.Join(home, ".ircgeist", "ircgeistd", "ircgeistd.yaml")
	if err := os.MkdirAll(filepath.Dir(userPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(userPath, []byte("services: {}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got, err := ResolveConfigPath("", "ircgeistd", "ircgeistd.yaml"); err != nil || got != userPath {
		t.Fatalf("user path = %q, %v", got, err)
	}

	t.Setenv(EnvConfig, "/from/env.yaml")
	if got, _ := ResolveConfigPath("", "ircgeistd", "ircgeistd.yaml"); got != "/from/env.yaml" {
		t.Fatalf("env path = %q", got)
	}
}
