// Package core implements the server protocol commands the daemon needs
// to stay linked and to keep its view of the network current enough for
// origin resolution.
package core

import (
	"strconv"

	"github.com/mfulz/ircgeist/dispatch"
	"github.com/mfulz/ircgeist/interfaces"
	"github.com/mfulz/ircgeist/internal/network"
)

// Name is the module name used in configuration.
const Name = "core"

// splitReason is the quit reason given to clients lost in a netsplit.
const splitReason = "*.net *.split"

type module struct {
	reg  interfaces.Registrations
	host *interfaces.Host
}

func init() {
	interfaces.RegisterModule(Name, New)
}

// New returns an unloaded core module.
func New() interfaces.Module {
	return &module{}
}

func (m *module) Name() string { return Name }

func (m *module) Init(h *interfaces.Host) error {
	m.host = h
	cmds := []*dispatch.Command{
		serverCommand("PING", 1, m.ping),
		serverCommand("ERROR", 0, m.uplinkError),
		serverCommand("SERVER", 3, m.server),
		serverCommand("SQUIT", 1, m.squit),
		serverCommand("NICK", 1, m.nick),
		serverCommand("QUIT", 0, m.quit),
		serverCommand("KILL", 1, m.kill),
		serverCommand("PASS", 0, dispatch.Ignore),
		serverCommand("CAPAB", 0, dispatch.Ignore),
		serverCommand("SVINFO", 0, dispatch.Ignore),
	}
	for _, c := range cmds {
		if err := m.reg.Command(h, c); err != nil {
			m.reg.Release(h)
			return err
		}
	}
	return nil
}

func (m *module) Cleanup(h *interfaces.Host) error {
	m.reg.Release(h)
	return nil
}

func serverCommand(name string, minParams int, fn dispatch.HandlerFunc) *dispatch.Command {
	c := &dispatch.Command{Name: name, MinParams: minParams}
	c.Handlers[dispatch.RoleServerLink] = fn
	return c
}

// ping answers the uplink's keepalive.
func (m *module) ping(r *dispatch.Request) error {
	token := r.Message.Param(0)
	if token == "" {
		token = r.Link.Name()
	}
	return r.Reply(":%s PONG %s :%s", m.host.ServerName, m.host.ServerName, token)
}

func (m *module) uplinkError(r *dispatch.Request) error {
	m.host.Log.Errorf("[core] uplink %s reported error: %s", r.Link.Name(), r.Message.Param(0))
	return nil
}

// server records an introduced server. Without a prefix the line is our
// peer introducing itself.
func (m *module) server(r *dispatch.Request) error {
	if len(r.Params()) < 2 {
		return nil
	}
	hops, _ := strconv.Atoi(r.Message.Param(1))
	s := &network.Server{
		ServerName:  r.Message.Param(0),
		Hops:        hops,
		Description: r.Message.Param(len(r.Params()) - 1),
	}
	if r.Message.Prefix == "" {
		if n, ok := r.Link.(interface{ SetName(string) }); ok {
			n.SetName(s.ServerName)
		}
	} else {
		s.Uplink = r.Origin.Name()
	}
	if err := m.host.Network.AddServer(s); err != nil {
		m.host.Log.Warnf("[core] %v", err)
	}
	return nil
}

func (m *module) squit(r *dispatch.Request) error {
	name := r.Message.Param(0)
	if name == "" {
		return nil
	}
	lost, err := m.host.Network.RemoveServer(name)
	if err != nil {
		m.host.Log.Debugf("[core] squit: %v", err)
		return nil
	}
	for _, c := range lost {
		m.host.Hooks.ClientExit.Fire(interfaces.ClientExit{Client: c, Reason: splitReason})
	}
	return nil
}

// nick handles both a nick change from a known client and the
// introduction of a new client:
//
//	NICK <nick> <hops> <ts> <umodes> <user> <host> <server> :<gecos>
func (m *module) nick(r *dispatch.Request) error {
	if c, ok := r.Origin.(*network.Client); ok {
		if _, err := m.host.Network.RenameClient(c.Nick, r.Message.Param(0)); err != nil {
			m.host.Log.Warnf("[core] nick change: %v", err)
		}
		return nil
	}
	p := r.Params()
	if len(p) < 8 {
		m.host.Log.Debugf("[core] short client introduction from %s: %q", r.Link.Name(), p)
		return nil
	}
	ts, _ := strconv.ParseInt(p[2], 10, 64)
	c := &network.Client{
		Nick:     p[0],
		SignedOn: ts,
		Modes:    p[3],
		User:     p[4],
		Host:     p[5],
		Server:   p[6],
		Gecos:    p[7],
	}
	if err := m.host.Network.AddClient(c); err != nil {
		m.host.Log.Warnf("[core] %v", err)
		return nil
	}
	m.host.Hooks.NewClient.Fire(c)
	return nil
}

func (m *module) quit(r *dispatch.Request) error {
	c, ok := r.Origin.(*network.Client)
	if !ok {
		return nil
	}
	m.exit(c.Nick, r.Message.Param(0))
	return nil
}

func (m *module) kill(r *dispatch.Request) error {
	m.exit(r.Message.Param(0), r.Message.Param(1))
	return nil
}

func (m *module) exit(nick, reason string) {
	c, ok := m.host.Network.RemoveClient(nick)
	if !ok {
		return
	}
	m.host.Hooks.ClientExit.Fire(interfaces.ClientExit{Client: c, Reason: reason})
}
