// Package linktest provides an in-memory server link and host for tests.
package linktest

import (
	"testing"

	"github.com/mfulz/ircgeist/dispatch"
	"github.com/mfulz/ircgeist/interfaces"
	"github.com/mfulz/ircgeist/irc"
	"go.uber.org/zap/zaptest"
)

// Recorder is a dispatch.Link that keeps every line it is asked to send.
type Recorder struct {
	LinkName string
	LinkRole dispatch.Role
	Sent     []string
	Err      error
}

func (r *Recorder) Name() string        { return r.LinkName }
func (r *Recorder) Role() dispatch.Role { return r.LinkRole }

// SetName lets the recorder stand in for an uplink that learns its name.
func (r *Recorder) SetName(name string) { r.LinkName = name }

func (r *Recorder) Send(line string) error {
	if r.Err != nil {
		return r.Err
	}
	r.Sent = append(r.Sent, line)
	return nil
}

// Take returns the recorded lines and clears them.
func (r *Recorder) Take() []string {
	out := r.Sent
	r.Sent = nil
	return out
}

// NewHost returns a host named services.test with a recorder uplink
// called hub.test.
func NewHost(t *testing.T, store interfaces.DataStore) (*interfaces.Host, *Recorder) {
	t.Helper()
	h := interfaces.NewHost("services.test", store, zaptest.NewLogger(t).Sugar())
	rec := &Recorder{LinkName: "hub.test", LinkRole: dispatch.RoleServerLink}
	h.Uplink = rec
	return h, rec
}

// Feed parses lines as if they arrived on the host uplink and fails the
// test on any dispatch error.
func Feed(t *testing.T, h *interfaces.Host, lines ...string) {
	t.Helper()
	ctx := irc.NewContext()
	for _, line := range lines {
		if err := h.Dispatcher.Parse(ctx, h.Uplink, line); err != nil {
			t.Fatalf("parse %q: %v", line, err)
		}
	}
}
