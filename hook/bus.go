// Package hook provides named, typed notification points that modules
// subscribe to. Firing a point calls every current subscriber synchronously
// in subscription order; subscribers return nothing and cannot cancel.
//
// A Bus is not safe for concurrent use.
package hook

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/google/uuid"
)

// ErrTypeMismatch is returned when a hook name is defined twice with
// different argument types.
var ErrTypeMismatch = errors.New("hook: argument type mismatch")

// Handle identifies one subscription. The module that subscribed owns it
// and must release it no later than its own unload.
type Handle struct {
	ID   uuid.UUID
	Name string
}

type subscriber struct {
	id uuid.UUID
	fn any
}

type point struct {
	name string
	typ  reflect.Type
	subs []subscriber
}

// Bus holds all hook points by name.
type Bus struct {
	points map[string]*point
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{points: make(map[string]*point)}
}

// Point is the typed view of one named hook.
type Point[A any] struct {
	p *point
}

// Define returns the point called name, creating it on first use. Every
// definition of the same name must use the same argument type.
func Define[A any](b *Bus, name string) (*Point[A], error) {
	typ := reflect.TypeOf((*A)(nil)).Elem()
	if p, ok := b.points[name]; ok {
		if p.typ != typ {
			return nil, fmt.Errorf("%w: %q is %v, not %v", ErrTypeMismatch, name, p.typ, typ)
		}
		return &Point[A]{p: p}, nil
	}
	p := &point{name: name, typ: typ}
	b.points[name] = p
	return &Point[A]{p: p}, nil
}

// MustDefine is Define for hook points set up at startup.
func MustDefine[A any](b *Bus, name string) *Point[A] {
	p, err := Define[A](b, name)
	if err != nil {
		panic(err)
	}
	return p
}

// Name returns the hook name.
func (p *Point[A]) Name() string {
	return p.p.name
}

// Subscribe appends fn to the subscriber list.
func (p *Point[A]) Subscribe(fn func(A)) *Handle {
	h := &Handle{ID: uuid.New(), Name: p.p.name}
	p.p.subs = append(p.p.subs, subscriber{id: h.ID, fn: fn})
	return h
}

// Fire calls the subscribers present when Fire starts, in order. A
// subscriber that fires the same point again recurses; guarding against
// that is the subscriber's job.
func (p *Point[A]) Fire(arg A) {
	subs := make([]subscriber, len(p.p.subs))
	copy(subs, p.p.subs)
	for _, s := range subs {
		s.fn.(func(A))(arg)
	}
}

// Unsubscribe releases h. It reports false if h was already released.
func (b *Bus) Unsubscribe(h *Handle) bool {
	if h == nil {
		return false
	}
	p, ok := b.points[h.Name]
	if !ok {
		return false
	}
	for i, s := range p.subs {
		if s.id == h.ID {
			p.subs = append(p.subs[:i:i], p.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Names returns all defined hook names, sorted.
func (b *Bus) Names() []string {
	names := make([]string, 0, len(b.points))
	for n := range b.points {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Subscribers returns the subscription IDs of name in firing order.
func (b *Bus) Subscribers(name string) []uuid.UUID {
	p, ok := b.points[name]
	if !ok {
		return nil
	}
	ids := make([]uuid.UUID, len(p.subs))
	for i, s := range p.subs {
		ids[i] = s.id
	}
	return ids
}
