package luamod

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mfulz/ircgeist/interfaces"
	"github.com/mfulz/ircgeist/internal/network"
	"github.com/mfulz/ircgeist/internal/testutil/linktest"
	"github.com/mfulz/ircgeist/irc"
	lua "github.com/yuin/gopher-lua"
)

func writeModule(t *testing.T, root, dir, manifest, script string) string {
	t.Helper()
	path := filepath.Join(root, dir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(path, ManifestFile), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if script != "" {
		if err := os.WriteFile(filepath.Join(path, "main.lua"), []byte(script), 0o644); err != nil {
			t.Fatalf("write script: %v", err)
		}
	}
	return path
}

const echoScript = `
services.register_command{
  name = "echo",
  min_params = 1,
  server = function(req)
    return ":" .. services.server_name .. " NOTICE " .. req.origin .. " :" .. req.params[#req.params]
  end,
}

services.subscribe("newclient", function(c)
  services.send(":" .. services.server_name .. " NOTICE " .. c.nick .. " :welcome " .. c.user .. "@" .. c.host)
end)

function on_unload()
  services.gnotice("echo unloading")
end
`

func loadScript(t *testing.T, script string) (*Script, *interfaces.Host, *linktest.Recorder) {
	t.Helper()
	dir := writeModule(t, t.TempDir(), "echo", "name: echo\ndescription: test module\n", script)
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	h, rec := linktest.NewHost(t, nil)
	if err := s.Init(h); err != nil {
		t.Fatalf("init: %v", err)
	}
	return s, h, rec
}

func TestScriptCommandReplies(t *testing.T) {
	_, h, rec := loadScript(t, echoScript)

	linktest.Feed(t, h, "ECHO one :two three")
	sent := rec.Take()
	if len(sent) != 1 || sent[0] != ":services.test NOTICE hub.test :two three" {
		t.Fatalf("sent = %q", sent)
	}

	cmd, ok := h.Dispatcher.Find("echo")
	if !ok || cmd.MinParams != 1 {
		t.Fatalf("command = %+v", cmd)
	}
}

func TestScriptHookSubscriber(t *testing.T) {
	_, h, rec := loadScript(t, echoScript)

	h.Hooks.NewClient.Fire(&network.Client{Nick: "alice", User: "al", Host: "example.org"})
	sent := rec.Take()
	if len(sent) != 1 || sent[0] != ":services.test NOTICE alice :welcome al@example.org" {
		t.Fatalf("sent = %q", sent)
	}
}

func TestScriptUnloadReleasesEverything(t *testing.T) {
	s, h, _ := loadScript(t, echoScript)

	var notices []interfaces.GNotice
	h.Hooks.GNotice.Subscribe(func(n interfaces.GNotice) { notices = append(notices, n) })

	if err := s.Cleanup(h); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if len(notices) != 1 || notices[0].Text != "echo unloading" || notices[0].Source != "services.test" {
		t.Fatalf("on_unload not run: %+v", notices)
	}
	if _, ok := h.Dispatcher.Find("ECHO"); ok {
		t.Fatalf("command survived unload")
	}
	if len(h.Bus.Subscribers(interfaces.HookNewClient)) != 0 {
		t.Fatalf("subscription survived unload")
	}
	if err := s.Cleanup(h); err != nil {
		t.Fatalf("second cleanup: %v", err)
	}
}

func TestScriptErrorRollsBack(t *testing.T) {
	dir := writeModule(t, t.TempDir(), "broken", "name: broken\n", `
services.register_command{ name = "half", server = function(req) end }
error("boom")
`)
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	h, _ := linktest.NewHost(t, nil)
	if err := s.Init(h); err == nil {
		t.Fatalf("expected init error")
	}
	if _, ok := h.Dispatcher.Find("HALF"); ok {
		t.Fatalf("partial registration left behind")
	}
}

func TestScriptHandlerErrorPropagates(t *testing.T) {
	_, h, _ := loadScript(t, `
services.register_command{ name = "fail", server = function(req) error("nope") end }
`)
	err := h.Dispatcher.Parse(irc.NewContext(), h.Uplink, "FAIL x")
	if err == nil {
		t.Fatalf("expected handler error")
	}
}

func TestScriptUnsubscribeAndUnregister(t *testing.T) {
	_, h, rec := loadScript(t, `
local id = services.subscribe("umode", function(u) services.send("MODE " .. u.target) end)
services.register_command{ name = "temp", server = function(req) end }
assert(services.unsubscribe(id) == true)
assert(services.unsubscribe(id) == false)
assert(services.unregister_command("temp") == true)
assert(services.unregister_command("PING") == false)
`)
	h.Hooks.UMode.Fire(interfaces.UMode{Target: "x", Mode: "+i"})
	if len(rec.Sent) != 0 {
		t.Fatalf("sent = %q", rec.Sent)
	}
	if _, ok := h.Dispatcher.Find("TEMP"); ok {
		t.Fatalf("temp still registered")
	}
}

func TestScriptSandbox(t *testing.T) {
	_, _, _ = loadScript(t, `
assert(os == nil)
assert(io == nil)
assert(dofile == nil)
assert(loadstring == nil)
assert(string.upper("x") == "X")
`)
}

func TestUnknownHookRejected(t *testing.T) {
	dir := writeModule(t, t.TempDir(), "bad", "name: bad\n", `services.subscribe("nope", function() end)`)
	s, _ := Open(dir)
	h, _ := linktest.NewHost(t, nil)
	if err := s.Init(h); err == nil {
		t.Fatalf("expected error for unknown hook")
	}
}

func TestManifestDefaultsAndDiscover(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "greeter", "description: no name\n", "")
	writeModule(t, root, "named", "name: other\nscript: init.lua\n", "")
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	m, err := LoadManifest(filepath.Join(root, "greeter"))
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if m.Name != "greeter" || m.Script != "main.lua" {
		t.Fatalf("manifest = %+v", m)
	}

	found, err := Discover(root)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	names := Names(found)
	if len(names) != 2 || names[0] != "greeter" || names[1] != "other" {
		t.Fatalf("names = %q", names)
	}

	if _, err := LoadManifest(filepath.Join(root, "empty")); !errors.Is(err, ErrNoManifest) {
		t.Fatalf("expected ErrNoManifest, got %v", err)
	}
	missing, err := Discover(filepath.Join(root, "nope"))
	if err != nil || len(missing) != 0 {
		t.Fatalf("missing root = %v, %v", missing, err)
	}
}

func TestManifestRejectsEscapingScript(t *testing.T) {
	dir := writeModule(t, t.TempDir(), "evil", "name: evil\nscript: ../../etc/passwd\n", "")
	if _, err := LoadManifest(dir); err == nil {
		t.Fatalf("expected error for escaping script path")
	}
}

const numericScript = `
services.register_numeric(433, function(req)
  return ":" .. services.server_name .. " NOTICE " .. req.params[2] .. " :" .. req.command
end)

function drop()
  return services.unregister_numeric(433)
end
`

func TestScriptNumericHandler(t *testing.T) {
	s, h, rec := loadScript(t, numericScript)

	linktest.Feed(t, h, ":hub.test 433 services.test Guest :Nickname is already in use")
	sent := rec.Take()
	if len(sent) != 1 || sent[0] != ":services.test NOTICE Guest :433" {
		t.Fatalf("sent = %q", sent)
	}

	other, err := Open(writeModule(t, t.TempDir(), "other", "name: other\n", numericScript))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := other.Init(h); err == nil {
		t.Fatalf("second module took numeric 433")
	}
	if _, ok := h.Dispatcher.FindNumeric(433); !ok {
		t.Fatalf("failed init released the first module's numeric")
	}

	if err := s.L.CallByParam(lua.P{Fn: s.L.GetGlobal("drop"), NRet: 1, Protect: true}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if ret := s.L.Get(-1); ret != lua.LTrue {
		t.Fatalf("unregister_numeric = %v", ret)
	}
	s.L.Pop(1)
	if _, ok := h.Dispatcher.FindNumeric(433); ok {
		t.Fatalf("numeric still bound")
	}

	linktest.Feed(t, h, ":hub.test 433 services.test Guest :Nickname is already in use")
	if len(rec.Sent) != 0 {
		t.Fatalf("sent after unregister = %q", rec.Sent)
	}
}

func TestScriptUnloadReleasesNumeric(t *testing.T) {
	s, h, _ := loadScript(t, numericScript)
	if err := s.Cleanup(h); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, ok := h.Dispatcher.FindNumeric(433); ok {
		t.Fatalf("numeric survived unload")
	}
}
