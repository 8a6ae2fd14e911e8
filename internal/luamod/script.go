package luamod

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mfulz/ircgeist/interfaces"
	lua "github.com/yuin/gopher-lua"
)

// ErrUnloaded is returned by handlers that fire after their script was
// unloaded.
var ErrUnloaded = errors.New("luamod: module unloaded")

// Script is a Lua module. Its state is only touched from the service loop.
type Script struct {
	manifest Manifest
	dir      string

	L    *lua.LState
	host *interfaces.Host
	reg  interfaces.Registrations
}

var _ interfaces.Module = (*Script)(nil)

// Open reads the manifest in dir. The script itself runs on Init.
func Open(dir string) (*Script, error) {
	m, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}
	return &Script{manifest: *m, dir: dir}, nil
}

// Name returns the manifest name.
func (s *Script) Name() string { return s.manifest.Name }

// Init creates a fresh sandboxed state, installs the services API and runs
// the entry script. If the script fails, everything it registered so far
// is released again.
func (s *Script) Init(h *interfaces.Host) error {
	s.host = h
	s.L = newState()
	s.installAPI()

	path := filepath.Join(s.dir, s.manifest.Script)
	if err := s.L.DoFile(path); err != nil {
		s.teardown()
		return fmt.Errorf("module %s: %w", s.manifest.Name, err)
	}
	h.Log.Debugf("[luamod] %s loaded from %s", s.manifest.Name, path)
	return nil
}

// Cleanup calls the optional global on_unload function, then releases every
// command and subscription and closes the state.
func (s *Script) Cleanup(h *interfaces.Host) error {
	if s.L == nil {
		return nil
	}
	var err error
	if fn := s.L.GetGlobal("on_unload"); fn.Type() == lua.LTFunction {
		err = s.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true})
		if err != nil {
			err = fmt.Errorf("module %s: on_unload: %w", s.manifest.Name, err)
		}
	}
	s.teardown()
	return err
}

func (s *Script) teardown() {
	s.reg.Release(s.host)
	s.L.Close()
	s.L = nil
}

// newState opens only the side-effect free standard libraries.
func newState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}
