// Package akill pushes the stored network bans to the uplink once the
// link is registered, after purging the ones that have run out.
package akill

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mfulz/ircgeist/dispatch"
	"github.com/mfulz/ircgeist/interfaces"
)

// Name is the module name used in configuration.
const Name = "akill"

const storeTimeout = 10 * time.Second

// ErrNoStore is returned when the host has no data store.
var ErrNoStore = errors.New("akill: no store configured")

type module struct {
	reg  interfaces.Registrations
	host *interfaces.Host
	now  func() time.Time

	// bursts tracks running burst goroutines.
	bursts sync.WaitGroup
}

func init() {
	interfaces.RegisterModule(Name, New)
}

// New returns an unloaded akill module.
func New() interfaces.Module {
	return &module{now: time.Now}
}

func (m *module) Name() string { return Name }

func (m *module) Init(h *interfaces.Host) error {
	m.host = h
	m.reg.Hook(h.Hooks.Connected.Subscribe(m.connected))
	return nil
}

// Cleanup unsubscribes and waits for a running burst.
func (m *module) Cleanup(h *interfaces.Host) error {
	m.reg.Release(h)
	m.bursts.Wait()
	return nil
}

// connected runs on the service loop. The store is read from a separate
// goroutine that writes to the uplink captured here.
func (m *module) connected(interfaces.Connected) {
	if m.host.Store == nil {
		m.host.Log.Warnf("[akill] no store configured, skipping burst")
		return
	}
	up := m.host.Uplink
	if up == nil {
		return
	}
	m.bursts.Add(1)
	go func() {
		defer m.bursts.Done()
		m.burst(up)
	}()
}

func (m *module) burst(up dispatch.Link) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	now := m.now()
	if err := m.purge(ctx, now); err != nil {
		m.host.Log.Errorf("[akill] purge expired: %v", err)
	}

	list, err := m.host.Store.ListAkills(ctx)
	if err != nil {
		m.host.Log.Errorf("[akill] list: %v", err)
		return
	}
	sent := 0
	for _, a := range list {
		if a.Expired(now) {
			continue
		}
		if err := up.Send(kline(m.host.ServerName, a, now)); err != nil {
			m.host.Log.Warnf("[akill] burst stopped after %d akills: %v", sent, err)
			return
		}
		sent++
	}
	m.host.Log.Infof("[akill] sent %d akills", sent)
}

func (m *module) purge(ctx context.Context, now time.Time) error {
	expired, err := m.host.Store.ExpiredAkills(ctx, now)
	if err != nil {
		return err
	}
	for _, a := range expired {
		if err := m.host.Store.DeleteAkill(ctx, a.ID); err != nil {
			return err
		}
		m.host.Log.Infof("[akill] expired %s (set by %s)", a.Mask, a.Setter)
	}
	return nil
}

func kline(me string, a interfaces.Akill, now time.Time) string {
	user, host := a.UserHost()
	return fmt.Sprintf(":%s KLINE * %d %s %s :%s",
		me, int64(a.Remaining(now)/time.Second), user, host, a.Reason)
}

// Add stores a new akill and returns it with its id and set time filled
// in. It does not touch the uplink and may run off the service loop.
func Add(ctx context.Context, store interfaces.DataStore, a interfaces.Akill) (interfaces.Akill, error) {
	if store == nil {
		return a, ErrNoStore
	}
	if a.TimeSet.IsZero() {
		a.TimeSet = time.Now()
	}
	id, err := store.AddAkill(ctx, a)
	if err != nil {
		return a, err
	}
	a.ID = id
	return a, nil
}

// Remove deletes the akill with id and returns it. It may run off the
// service loop.
func Remove(ctx context.Context, store interfaces.DataStore, id int64) (interfaces.Akill, error) {
	if store == nil {
		return interfaces.Akill{}, ErrNoStore
	}
	list, err := store.ListAkills(ctx)
	if err != nil {
		return interfaces.Akill{}, err
	}
	for _, a := range list {
		if a.ID != id {
			continue
		}
		if err := store.DeleteAkill(ctx, id); err != nil {
			return interfaces.Akill{}, err
		}
		return a, nil
	}
	return interfaces.Akill{}, fmt.Errorf("%w: %d", interfaces.ErrAkillNotFound, id)
}

// Ban applies a stored akill to the network while linked. Must run on the
// service loop.
func Ban(h *interfaces.Host, a interfaces.Akill) error {
	h.Log.Infof("[akill] %s added %s (%s)", a.Setter, a.Mask, a.Reason)
	if h.Uplink == nil {
		return nil
	}
	return h.Uplink.Send(kline(h.ServerName, a, a.TimeSet))
}

// Lift removes a deleted akill from the network while linked. Must run on
// the service loop.
func Lift(h *interfaces.Host, a interfaces.Akill) error {
	h.Log.Infof("[akill] removed %s", a.Mask)
	if h.Uplink == nil {
		return nil
	}
	user, host := a.UserHost()
	return h.Send(":%s UNKLINE * %s %s", h.ServerName, user, host)
}
