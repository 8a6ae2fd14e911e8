// Package dispatch routes tokenized protocol lines to the handlers that
// modules register. Command tokens live in a trie, numerics in a fixed
// table. Unknown commands and unserved roles are dropped without any reply.
//
// A Dispatcher is not safe for concurrent use: lines are dispatched one at a
// time and registrations happen between dispatches.
package dispatch

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mfulz/ircgeist/irc"
	"github.com/mfulz/ircgeist/registry"
	"go.uber.org/zap"
)

// NumericCount is the size of the numeric table (000-999).
const NumericCount = 1000

var (
	// ErrInvalidCommand is returned for descriptors that cannot be registered.
	ErrInvalidCommand = errors.New("dispatch: invalid command")

	// ErrNumericRange is returned for codes outside 0-999.
	ErrNumericRange = errors.New("dispatch: numeric out of range")
)

// Dispatcher maps command tokens and numerics to their descriptors.
type Dispatcher struct {
	commands  *registry.Trie[*Command]
	numerics  [NumericCount]*Command
	tokenizer irc.Tokenizer
	log       *zap.SugaredLogger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for debug tracing.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(d *Dispatcher) {
		d.log = l
	}
}

// WithResolver sets the origin resolver used by Parse.
func WithResolver(r irc.Resolver) Option {
	return func(d *Dispatcher) {
		d.tokenizer.Resolver = r
	}
}

// WithAlphabet replaces the command trie alphabet.
func WithAlphabet(width int, fn registry.BranchFunc) Option {
	return func(d *Dispatcher) {
		d.commands = registry.New[*Command](registry.WithAlphabet(width, fn))
	}
}

// New creates a new Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		commands: registry.New[*Command](),
		log:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.tokenizer.Limit = d.limit
	return d
}

// Register binds cmd to its token. It reports false, and leaves the table
// unchanged, when the token is already registered. Counters of a newly
// registered command start at zero.
func (d *Dispatcher) Register(cmd *Command) (bool, error) {
	if cmd == nil {
		return false, fmt.Errorf("%w: nil descriptor", ErrInvalidCommand)
	}
	added, err := d.commands.Insert(cmd.Name, cmd)
	if err != nil {
		return false, fmt.Errorf("%w: %q: %w", ErrInvalidCommand, cmd.Name, err)
	}
	if !added {
		d.log.Debugf("[dispatch] %s already registered", cmd.Name)
		return false, nil
	}
	cmd.count, cmd.remoteCount, cmd.bytes = 0, 0, 0
	return true, nil
}

// Unregister removes the command bound to token. It reports false if none
// was registered.
func (d *Dispatcher) Unregister(token string) bool {
	return d.commands.Remove(token)
}

// Find returns the command bound to token.
func (d *Dispatcher) Find(token string) (*Command, bool) {
	return d.commands.Lookup(token)
}

// RegisterNumeric binds cmd to a numeric code, replacing any previous one.
func (d *Dispatcher) RegisterNumeric(code int, cmd *Command) error {
	if code < 0 || code >= NumericCount {
		return fmt.Errorf("%w: %d", ErrNumericRange, code)
	}
	d.numerics[code] = cmd
	return nil
}

// FindNumeric returns the command bound to a numeric code.
func (d *Dispatcher) FindNumeric(code int) (*Command, bool) {
	if code < 0 || code >= NumericCount || d.numerics[code] == nil {
		return nil, false
	}
	return d.numerics[code], true
}

// UnregisterNumeric clears a numeric code.
func (d *Dispatcher) UnregisterNumeric(code int) {
	if code >= 0 && code < NumericCount {
		d.numerics[code] = nil
	}
}

// Commands returns the usage counters of every registered command, sorted
// by name.
func (d *Dispatcher) Commands() []Usage {
	var out []Usage
	d.commands.Walk(func(c *Command) {
		out = append(out, c.Usage())
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Verify checks the command trie invariants.
func (d *Dispatcher) Verify() error {
	return d.commands.Verify()
}

// Parse tokenizes one line into ctx and dispatches it. Empty lines are
// ignored.
func (d *Dispatcher) Parse(ctx *irc.Context, link Link, line string) error {
	msg, err := d.tokenizer.Tokenize(ctx, link, line)
	if errors.Is(err, irc.ErrEmptyMessage) {
		return nil
	}
	if err != nil {
		return err
	}
	if msg.Prefix != "" && !msg.Resolved {
		d.log.Debugf("[dispatch] unknown origin %q from %s", msg.Prefix, link.Name())
	}
	return d.Dispatch(link, msg)
}

// Dispatch executes the handler selected for msg. Handler errors are
// returned as they are.
func (d *Dispatcher) Dispatch(link Link, msg *irc.Message) error {
	var cmd *Command
	role := link.Role()
	slot := role

	if msg.IsNumeric() {
		cmd = d.numerics[msg.Numeric]
		slot = RoleNumeric
	} else {
		cmd, _ = d.commands.Lookup(msg.Command)
	}
	if cmd == nil {
		return nil
	}

	handler := cmd.Handler(slot)
	if handler == nil {
		return nil
	}

	cmd.count++
	if role == RoleServerLink {
		cmd.remoteCount++
	}
	cmd.bytes += uint64(len(msg.Trailer))

	if len(msg.Params) < cmd.MinParams {
		d.log.Debugf("[dispatch] %s from %s with %d params, expected %d",
			msg.Command, link.Name(), len(msg.Params), cmd.MinParams)
	}

	return handler(&Request{
		Link:    link,
		Origin:  msg.Origin,
		Message: msg,
		Command: cmd,
	})
}

// limit feeds the tokenizer with the declared cap of known commands.
func (d *Dispatcher) limit(token string) int {
	if cmd, ok := d.commands.Lookup(token); ok {
		return cmd.MaxParams
	}
	return 0
}
