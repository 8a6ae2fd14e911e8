package interfaces

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mfulz/ircgeist/dispatch"
	"github.com/mfulz/ircgeist/hook"
)

// ErrCommandTaken is returned when another module already owns a token.
var ErrCommandTaken = errors.New("module: command already registered")

// Registrations records what a module added to a host so that all of it
// can be released again on Cleanup or after a failed Init.
type Registrations struct {
	commands []string
	numerics []int
	handles  []*hook.Handle
}

// Command registers cmd and remembers its token.
func (r *Registrations) Command(h *Host, cmd *dispatch.Command) error {
	added, err := h.Dispatcher.Register(cmd)
	if err != nil {
		return err
	}
	if !added {
		return fmt.Errorf("%w: %s", ErrCommandTaken, cmd.Name)
	}
	r.commands = append(r.commands, cmd.Name)
	return nil
}

// Numeric binds cmd to a free numeric code and remembers it.
func (r *Registrations) Numeric(h *Host, code int, cmd *dispatch.Command) error {
	if _, taken := h.Dispatcher.FindNumeric(code); taken {
		return fmt.Errorf("%w: %03d", ErrCommandTaken, code)
	}
	if err := h.Dispatcher.RegisterNumeric(code, cmd); err != nil {
		return err
	}
	r.numerics = append(r.numerics, code)
	return nil
}

// Hook remembers a subscription handle.
func (r *Registrations) Hook(handle *hook.Handle) {
	r.handles = append(r.handles, handle)
}

// Release unregisters everything in reverse order and forgets it.
func (r *Registrations) Release(h *Host) {
	for i := len(r.handles) - 1; i >= 0; i-- {
		h.Bus.Unsubscribe(r.handles[i])
	}
	for i := len(r.numerics) - 1; i >= 0; i-- {
		h.Dispatcher.UnregisterNumeric(r.numerics[i])
	}
	for i := len(r.commands) - 1; i >= 0; i-- {
		h.Dispatcher.Unregister(r.commands[i])
	}
	r.commands, r.numerics, r.handles = nil, nil, nil
}

// DropCommand unregisters one token recorded here. It reports false if the
// token was not registered through r.
func (r *Registrations) DropCommand(h *Host, token string) bool {
	for i, c := range r.commands {
		if strings.EqualFold(c, token) {
			r.commands = append(r.commands[:i:i], r.commands[i+1:]...)
			return h.Dispatcher.Unregister(c)
		}
	}
	return false
}

// DropNumeric clears one numeric code recorded here.
func (r *Registrations) DropNumeric(h *Host, code int) bool {
	for i, c := range r.numerics {
		if c == code {
			r.numerics = append(r.numerics[:i:i], r.numerics[i+1:]...)
			h.Dispatcher.UnregisterNumeric(c)
			return true
		}
	}
	return false
}

// DropHook releases one subscription recorded here.
func (r *Registrations) DropHook(h *Host, id uuid.UUID) bool {
	for i, hd := range r.handles {
		if hd.ID == id {
			r.handles = append(r.handles[:i:i], r.handles[i+1:]...)
			return h.Bus.Unsubscribe(hd)
		}
	}
	return false
}
