// Package oftc speaks the OFTC-hybrid extensions: it turns the host's
// gnotice, umode and cloak requests into GNOTICE, SVSMODE and SVSCLOAK
// lines and accepts incoming GNOTICE without acting on it.
package oftc

import (
	"github.com/mfulz/ircgeist/dispatch"
	"github.com/mfulz/ircgeist/interfaces"
)

// Name is the module name used in configuration.
const Name = "oftc"

type module struct {
	reg  interfaces.Registrations
	host *interfaces.Host
}

func init() {
	interfaces.RegisterModule(Name, New)
}

// New returns an unloaded oftc module.
func New() interfaces.Module {
	return &module{}
}

func (m *module) Name() string { return Name }

func (m *module) Init(h *interfaces.Host) error {
	m.host = h

	gnotice := &dispatch.Command{Name: "GNOTICE", MaxParams: 3}
	gnotice.Handlers[dispatch.RoleClient] = dispatch.Ignore
	gnotice.Handlers[dispatch.RoleServerLink] = dispatch.Ignore
	if err := m.reg.Command(h, gnotice); err != nil {
		return err
	}

	m.reg.Hook(h.Hooks.GNotice.Subscribe(m.sendGNotice))
	m.reg.Hook(h.Hooks.UMode.Subscribe(m.sendSVSMode))
	m.reg.Hook(h.Hooks.Cloak.Subscribe(m.sendSVSCloak))
	return nil
}

func (m *module) Cleanup(h *interfaces.Host) error {
	m.reg.Release(h)
	return nil
}

func (m *module) sendGNotice(n interfaces.GNotice) {
	m.send(":%s GNOTICE %s 1 :%s", n.Source, n.Source, n.Text)
}

func (m *module) sendSVSMode(u interfaces.UMode) {
	m.send(":%s SVSMODE %s :%s", m.host.ServerName, u.Target, u.Mode)
}

func (m *module) sendSVSCloak(c interfaces.Cloak) {
	m.send(":%s SVSCLOAK %s :%s", m.host.ServerName, c.Target, c.Cloak)
}

func (m *module) send(format string, args ...any) {
	if err := m.host.Send(format, args...); err != nil {
		m.host.Log.Warnf("[oftc] dropped line: %v", err)
	}
}
