package dispatch

import (
	"fmt"

	"github.com/mfulz/ircgeist/irc"
)

// Role classifies the peer a message is dispatched on behalf of and selects
// the handler slot that runs.
type Role int

const (
	RoleUnregistered Role = iota
	RoleClient
	RoleServerLink
	// RoleNumeric is the slot used for three-digit replies.
	RoleNumeric

	roleCount
)

func (r Role) String() string {
	switch r {
	case RoleUnregistered:
		return "unregistered"
	case RoleClient:
		return "client"
	case RoleServerLink:
		return "server"
	case RoleNumeric:
		return "numeric"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Link is the transport-level sender of a line.
type Link interface {
	irc.Origin
	Role() Role
	Send(line string) error
}

// Request is handed to a handler for one dispatched line. It is only valid
// during the handler call.
type Request struct {
	Link    Link
	Origin  irc.Origin
	Message *irc.Message
	Command *Command
}

// Params returns the message parameters.
func (r *Request) Params() []string {
	return r.Message.Params
}

// Reply formats a line and sends it back over the link.
func (r *Request) Reply(format string, args ...any) error {
	return r.Link.Send(fmt.Sprintf(format, args...))
}

// HandlerFunc defines the signature of a command handler.
type HandlerFunc func(req *Request) error

// Handlers is a total handler table; a nil slot means the role is not
// served.
type Handlers [roleCount]HandlerFunc

// Command describes one registered command token.
type Command struct {
	Name      string
	MinParams int
	// MaxParams caps tokenizing; 0 means irc.MaxParams.
	MaxParams int
	Handlers  Handlers

	count       uint64
	remoteCount uint64
	bytes       uint64
}

// Handler returns the handler for role, or nil.
func (c *Command) Handler(role Role) HandlerFunc {
	if role < 0 || role >= roleCount {
		return nil
	}
	return c.Handlers[role]
}

// Usage is a point-in-time copy of a command's counters.
type Usage struct {
	Name        string `json:"name"`
	Count       uint64 `json:"count"`
	Bytes       uint64 `json:"bytes"`
	RemoteCount uint64 `json:"remote_count"`
}

// Usage returns the current counters.
func (c *Command) Usage() Usage {
	return Usage{Name: c.Name, Count: c.count, Bytes: c.bytes, RemoteCount: c.remoteCount}
}

// Ignore accepts a command and does nothing with it.
func Ignore(*Request) error {
	return nil
}
