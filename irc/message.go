// Package irc implements the server-to-server line tokenizer: it splits one
// protocol line into its origin, command token or numeric, and parameters.
// It has no knowledge of which commands exist.
package irc

import "errors"

const (
	// MaxLineLength is the protocol ceiling for one line, terminator excluded.
	MaxLineLength = 512

	// MaxParams is the parameter cap for numerics and for commands that do
	// not declare their own.
	MaxParams = 15
)

var (
	// ErrEmptyMessage means nothing was left after prefix handling. Callers
	// drop the line silently.
	ErrEmptyMessage = errors.New("irc: empty message")

	// ErrLineTooLong means the caller handed over more than MaxLineLength bytes.
	ErrLineTooLong = errors.New("irc: line exceeds 512 bytes")
)

// Origin is anything a line can come from: a client, a server, or the link
// itself.
type Origin interface {
	Name() string
}

// Resolver looks up prefix candidates. FindClient receives the link the line
// arrived on so implementations can scope identities to it.
type Resolver interface {
	FindClient(link Origin, name string) Origin
	FindServer(name string) Origin
}

// LimitFunc returns the parameter cap for a command token. A value <= 0
// selects MaxParams.
type LimitFunc func(command string) int

// Message is one tokenized line. Params are substrings of the original line
// stored in the Context's slots: the Message is only valid until the same
// Context tokenizes another line.
type Message struct {
	// Prefix is the raw origin candidate without the leading ':'.
	Prefix string
	// Origin is the resolved client or server, or the link when the prefix
	// was absent, empty, or unknown.
	Origin Origin
	// Resolved is false when a non-empty prefix fell back to the link.
	Resolved bool

	Command string
	Numeric int // valid when IsNumeric

	// Trailer is the raw text after the command token, used for byte
	// accounting.
	Trailer string
	Params  []string

	numeric bool
}

// IsNumeric reports whether the line carried a three-digit reply code.
func (m *Message) IsNumeric() bool {
	return m.numeric
}

// Param returns the i-th parameter or "" when absent.
func (m *Message) Param(i int) string {
	if i < 0 || i >= len(m.Params) {
		return ""
	}
	return m.Params[i]
}

// Context is the scratch storage for one tokenize+dispatch cycle. It is
// reused across lines; code that tokenizes while another line is being
// dispatched must use its own Context.
type Context struct {
	msg    Message
	params [MaxParams]string
}

// NewContext returns an empty tokenizer context.
func NewContext() *Context {
	return &Context{}
}
