package luamod

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mfulz/ircgeist/dispatch"
	"github.com/mfulz/ircgeist/hook"
	"github.com/mfulz/ircgeist/interfaces"
	"github.com/mfulz/ircgeist/internal/network"
	lua "github.com/yuin/gopher-lua"
)

// installAPI sets the global "services" table.
func (s *Script) installAPI() {
	L := s.L
	mod := L.NewTable()
	L.SetField(mod, "server_name", lua.LString(s.host.ServerName))
	L.SetField(mod, "module", lua.LString(s.manifest.Name))

	L.SetField(mod, "register_command", L.NewFunction(s.registerCommand))
	L.SetField(mod, "unregister_command", L.NewFunction(s.unregisterCommand))
	L.SetField(mod, "register_numeric", L.NewFunction(s.registerNumeric))
	L.SetField(mod, "unregister_numeric", L.NewFunction(s.unregisterNumeric))
	L.SetField(mod, "subscribe", L.NewFunction(s.subscribe))
	L.SetField(mod, "unsubscribe", L.NewFunction(s.unsubscribe))
	L.SetField(mod, "send", L.NewFunction(s.send))
	L.SetField(mod, "gnotice", L.NewFunction(s.gnotice))
	L.SetField(mod, "umode", L.NewFunction(s.umode))
	L.SetField(mod, "cloak", L.NewFunction(s.cloak))
	L.SetField(mod, "find_client", L.NewFunction(s.findClient))
	L.SetField(mod, "log", L.NewFunction(s.log))

	L.SetGlobal("services", mod)
}

// register_command{name=, min_params=, max_params=, server=fn, client=fn, unregistered=fn}
// A handler may return a string, which is sent back over the link.
func (s *Script) registerCommand(L *lua.LState) int {
	opts := L.CheckTable(1)
	name := strings.ToUpper(lua.LVAsString(L.GetField(opts, "name")))
	if name == "" {
		L.ArgError(1, "name is required")
		return 0
	}

	cmd := &dispatch.Command{
		Name:      name,
		MinParams: int(lua.LVAsNumber(L.GetField(opts, "min_params"))),
		MaxParams: int(lua.LVAsNumber(L.GetField(opts, "max_params"))),
	}
	slots := map[string]dispatch.Role{
		"unregistered": dispatch.RoleUnregistered,
		"client":       dispatch.RoleClient,
		"server":       dispatch.RoleServerLink,
	}
	bound := 0
	for field, role := range slots {
		v := L.GetField(opts, field)
		if v == lua.LNil {
			continue
		}
		fn, ok := v.(*lua.LFunction)
		if !ok {
			L.ArgError(1, field+" must be a function")
			return 0
		}
		cmd.Handlers[role] = s.commandHandler(fn)
		bound++
	}
	if bound == 0 {
		L.ArgError(1, "at least one handler is required")
		return 0
	}

	if err := s.reg.Command(s.host, cmd); err != nil {
		L.RaiseError("register_command: %v", err)
		return 0
	}
	return 0
}

// unregister_command(name) -> bool
func (s *Script) unregisterCommand(L *lua.LState) int {
	L.Push(lua.LBool(s.reg.DropCommand(s.host, L.CheckString(1))))
	return 1
}

// register_numeric(code, fn) binds a handler for a numeric reply from the
// uplink.
func (s *Script) registerNumeric(L *lua.LState) int {
	code := L.CheckInt(1)
	fn := L.CheckFunction(2)
	cmd := &dispatch.Command{Name: fmt.Sprintf("%03d", code)}
	cmd.Handlers[dispatch.RoleNumeric] = s.commandHandler(fn)
	if err := s.reg.Numeric(s.host, code, cmd); err != nil {
		L.RaiseError("register_numeric: %v", err)
	}
	return 0
}

// unregister_numeric(code) -> bool
func (s *Script) unregisterNumeric(L *lua.LState) int {
	L.Push(lua.LBool(s.reg.DropNumeric(s.host, L.CheckInt(1))))
	return 1
}

func (s *Script) commandHandler(fn *lua.LFunction) dispatch.HandlerFunc {
	return func(r *dispatch.Request) error {
		if s.L == nil {
			return ErrUnloaded
		}
		L := s.L
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, s.requestTable(r)); err != nil {
			return fmt.Errorf("module %s: %s handler: %w", s.manifest.Name, r.Message.Command, err)
		}
		ret := L.Get(-1)
		L.Pop(1)
		if str, ok := ret.(lua.LString); ok && str != "" {
			return r.Reply("%s", string(str))
		}
		return nil
	}
}

func (s *Script) requestTable(r *dispatch.Request) *lua.LTable {
	L := s.L
	t := L.NewTable()
	L.SetField(t, "command", lua.LString(r.Message.Command))
	L.SetField(t, "prefix", lua.LString(r.Message.Prefix))
	L.SetField(t, "origin", lua.LString(r.Origin.Name()))
	L.SetField(t, "link", lua.LString(r.Link.Name()))
	L.SetField(t, "role", lua.LString(r.Link.Role().String()))
	params := L.NewTable()
	for _, p := range r.Params() {
		params.Append(lua.LString(p))
	}
	L.SetField(t, "params", params)
	return t
}

// subscribe(hook, fn) -> id
func (s *Script) subscribe(L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)
	hooks := s.host.Hooks

	var h *hook.Handle
	switch name {
	case interfaces.HookConnected:
		h = hooks.Connected.Subscribe(func(c interfaces.Connected) {
			s.callHook(name, fn, s.fields("server", c.Server))
		})
	case interfaces.HookGNotice:
		h = hooks.GNotice.Subscribe(func(n interfaces.GNotice) {
			s.callHook(name, fn, s.fields("source", n.Source, "text", n.Text))
		})
	case interfaces.HookUMode:
		h = hooks.UMode.Subscribe(func(u interfaces.UMode) {
			s.callHook(name, fn, s.fields("target", u.Target, "mode", u.Mode))
		})
	case interfaces.HookCloak:
		h = hooks.Cloak.Subscribe(func(c interfaces.Cloak) {
			s.callHook(name, fn, s.fields("target", c.Target, "cloak", c.Cloak))
		})
	case interfaces.HookNewClient:
		h = hooks.NewClient.Subscribe(func(c *network.Client) {
			s.callHook(name, fn, s.clientTable(c))
		})
	case interfaces.HookClientExit:
		h = hooks.ClientExit.Subscribe(func(e interfaces.ClientExit) {
			t := s.clientTable(e.Client)
			s.L.SetField(t, "reason", lua.LString(e.Reason))
			s.callHook(name, fn, t)
		})
	default:
		L.ArgError(1, "unknown hook "+name)
		return 0
	}
	s.reg.Hook(h)
	L.Push(lua.LString(h.ID.String()))
	return 1
}

// unsubscribe(id) -> bool
func (s *Script) unsubscribe(L *lua.LState) int {
	id, err := uuid.Parse(L.CheckString(1))
	if err != nil {
		L.Push(lua.LFalse)
		return 1
	}
	L.Push(lua.LBool(s.reg.DropHook(s.host, id)))
	return 1
}

func (s *Script) callHook(name string, fn *lua.LFunction, arg *lua.LTable) {
	if s.L == nil {
		return
	}
	if err := s.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, arg); err != nil {
		s.host.Log.Warnf("[luamod] %s: %s subscriber failed: %v", s.manifest.Name, name, err)
	}
}

// send(line) -> true | nil, err
func (s *Script) send(L *lua.LState) int {
	if err := s.host.Send("%s", L.CheckString(1)); err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

// gnotice(text [, source])
func (s *Script) gnotice(L *lua.LState) int {
	text := L.CheckString(1)
	source := L.OptString(2, s.host.ServerName)
	s.host.Hooks.GNotice.Fire(interfaces.GNotice{Source: source, Text: text})
	return 0
}

// umode(target, mode)
func (s *Script) umode(L *lua.LState) int {
	s.host.Hooks.UMode.Fire(interfaces.UMode{Target: L.CheckString(1), Mode: L.CheckString(2)})
	return 0
}

// cloak(target, cloak)
func (s *Script) cloak(L *lua.LState) int {
	s.host.Hooks.Cloak.Fire(interfaces.Cloak{Target: L.CheckString(1), Cloak: L.CheckString(2)})
	return 0
}

// find_client(nick) -> table | nil
func (s *Script) findClient(L *lua.LState) int {
	c, ok := s.host.Network.Client(L.CheckString(1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(s.clientTable(c))
	return 1
}

// log(level, message)
func (s *Script) log(L *lua.LState) int {
	level := L.CheckString(1)
	msg := L.CheckString(2)
	log := s.host.Log
	prefix := "[lua:" + s.manifest.Name + "] "
	switch level {
	case "debug":
		log.Debug(prefix + msg)
	case "warn":
		log.Warn(prefix + msg)
	case "error":
		log.Error(prefix + msg)
	default:
		log.Info(prefix + msg)
	}
	return 0
}

func (s *Script) clientTable(c *network.Client) *lua.LTable {
	t := s.fields(
		"nick", c.Nick,
		"user", c.User,
		"host", c.Host,
		"server", c.Server,
		"modes", c.Modes,
		"gecos", c.Gecos,
	)
	s.L.SetField(t, "signed_on", lua.LNumber(c.SignedOn))
	return t
}

// fields builds a table from alternating keys and values.
func (s *Script) fields(kv ...string) *lua.LTable {
	t := s.L.NewTable()
	for i := 0; i+1 < len(kv); i += 2 {
		s.L.SetField(t, kv[i], lua.LString(kv[i+1]))
	}
	return t
}
