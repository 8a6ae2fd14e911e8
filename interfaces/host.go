package interfaces

import (
	"errors"
	"fmt"

	"github.com/mfulz/ircgeist/dispatch"
	"github.com/mfulz/ircgeist/hook"
	"github.com/mfulz/ircgeist/internal/network"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by Host.Send while no uplink is attached.
var ErrNotConnected = errors.New("host: uplink not connected")

// Hook names defined on every host bus.
const (
	HookConnected  = "connected"
	HookGNotice    = "gnotice"
	HookUMode      = "umode"
	HookCloak      = "cloak"
	HookNewClient  = "newclient"
	HookClientExit = "clientexit"
)

// Connected is fired once the uplink has been registered.
type Connected struct {
	Server string
}

// GNotice requests a global notice from Source.
type GNotice struct {
	Source string
	Text   string
}

// UMode requests a user mode change on Target.
type UMode struct {
	Target string
	Mode   string
}

// Cloak requests a hostname cloak on Target.
type Cloak struct {
	Target string
	Cloak  string
}

// ClientExit is fired after a client has left the network.
type ClientExit struct {
	Client *network.Client
	Reason string
}

// Hooks holds the typed points every host defines.
type Hooks struct {
	Connected  *hook.Point[Connected]
	GNotice    *hook.Point[GNotice]
	UMode      *hook.Point[UMode]
	Cloak      *hook.Point[Cloak]
	NewClient  *hook.Point[*network.Client]
	ClientExit *hook.Point[ClientExit]
}

// DefineHooks creates the host hook points on bus.
func DefineHooks(bus *hook.Bus) Hooks {
	return Hooks{
		Connected:  hook.MustDefine[Connected](bus, HookConnected),
		GNotice:    hook.MustDefine[GNotice](bus, HookGNotice),
		UMode:      hook.MustDefine[UMode](bus, HookUMode),
		Cloak:      hook.MustDefine[Cloak](bus, HookCloak),
		NewClient:  hook.MustDefine[*network.Client](bus, HookNewClient),
		ClientExit: hook.MustDefine[ClientExit](bus, HookClientExit),
	}
}

// Host is everything a module may touch. All of it is owned by the
// service loop; modules only use it from handlers, hook subscribers, Init
// and Cleanup.
type Host struct {
	ServerName  string
	Description string

	Dispatcher *dispatch.Dispatcher
	Bus        *hook.Bus
	Hooks      Hooks
	Network    *network.Directory
	Store      DataStore

	// Uplink is nil while disconnected.
	Uplink dispatch.Link

	Log *zap.SugaredLogger
}

// NewHost wires a host around a fresh dispatcher, bus and directory. The
// dispatcher resolves origins against the host's directory.
func NewHost(serverName string, store DataStore, log *zap.SugaredLogger, opts ...dispatch.Option) *Host {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	bus := hook.NewBus()
	dir := network.New()
	opts = append([]dispatch.Option{
		dispatch.WithLogger(log),
		dispatch.WithResolver(dir),
	}, opts...)
	return &Host{
		ServerName: serverName,
		Dispatcher: dispatch.New(opts...),
		Bus:        bus,
		Hooks:      DefineHooks(bus),
		Network:    dir,
		Store:      store,
		Log:        log,
	}
}

// Send formats a line and queues it on the uplink.
func (h *Host) Send(format string, args ...any) error {
	if h.Uplink == nil {
		return ErrNotConnected
	}
	return h.Uplink.Send(fmt.Sprintf(format, args...))
}
