// Package services runs the daemon's service loop. One goroutine owns the
// dispatcher, the hook bus, the network directory and every module; uplink
// lines and control requests are both serialized through it.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mfulz/ircgeist/interfaces"
	"github.com/mfulz/ircgeist/internal/link"
	"github.com/mfulz/ircgeist/internal/modmgr"
	"github.com/mfulz/ircgeist/irc"
)

// ErrStopped is returned by Do once Run has returned.
var ErrStopped = errors.New("services: loop stopped")

const (
	defaultReconnectDelay = 30 * time.Second
	lineBuffer            = 64
)

// Config controls the service loop.
type Config struct {
	Uplink         link.Config   `mapstructure:"uplink"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	Autoload       []string      `mapstructure:"autoload"`
}

// Dialer establishes a fresh uplink.
type Dialer func(ctx context.Context) (*link.Uplink, error)

// Option customizes a Service.
type Option func(*Service)

// WithDialer replaces the TCP dialer built from Config.Uplink.
func WithDialer(d Dialer) Option {
	return func(s *Service) { s.dial = d }
}

type call struct {
	fn     func() error
	result chan error
}

// Service is the single-threaded core of the daemon.
type Service struct {
	host    *interfaces.Host
	modules *modmgr.Manager
	cfg     Config
	dial    Dialer

	calls   chan call
	stopped chan struct{}
	pctx    *irc.Context
}

// New creates a service for host. Modules are loaded when Run starts.
func New(host *interfaces.Host, modules *modmgr.Manager, cfg Config, opts ...Option) *Service {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	s := &Service{
		host:    host,
		modules: modules,
		cfg:     cfg,
		calls:   make(chan call),
		stopped: make(chan struct{}),
		pctx:    irc.NewContext(),
	}
	s.dial = func(ctx context.Context) (*link.Uplink, error) {
		return link.Dial(ctx, s.cfg.Uplink, s.host.Log)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Host returns the host the service drives. Only touch it from Do.
func (s *Service) Host() *interfaces.Host { return s.host }

// Modules returns the module manager. Only touch it from Do.
func (s *Service) Modules() *modmgr.Manager { return s.modules }

// Run loads the autoload modules, then keeps an uplink attached until ctx
// is done. Lost links are redialed after Config.ReconnectDelay. On return
// every module has been unloaded.
func (s *Service) Run(ctx context.Context) error {
	defer close(s.stopped)
	defer s.modules.UnloadAll()

	if err := s.modules.LoadAutoload(s.cfg.Autoload); err != nil {
		s.host.Log.Warnf("[services] Some modules failed to load: %v", err)
	}

	for {
		err := s.connect(ctx)
		if ctx.Err() != nil {
			s.host.Log.Info("[services] Shutting down")
			return nil
		}
		s.host.Log.Warnf("[services] Uplink lost: %v; reconnecting in %s", err, s.cfg.ReconnectDelay)
		if s.idle(ctx, s.cfg.ReconnectDelay) != nil {
			s.host.Log.Info("[services] Shutting down")
			return nil
		}
	}
}

func (s *Service) connect(ctx context.Context) error {
	s.host.Log.Infof("[services] Connecting to %s", s.cfg.Uplink.Address)
	up, err := s.dial(ctx)
	if err != nil {
		return err
	}
	return s.Serve(ctx, up)
}

// Serve registers with up and processes its lines until the link fails or
// ctx is done. The link is closed and the network directory cleared before
// Serve returns.
func (s *Service) Serve(ctx context.Context, up *link.Uplink) error {
	if err := up.Register(s.cfg.Uplink.Password, s.host.ServerName, s.host.Description); err != nil {
		_ = up.Close()
		return err
	}
	s.host.Uplink = up
	defer s.detach(up)

	s.host.Log.Infof("[services] Linked to %s", up.Name())
	s.host.Hooks.Connected.Fire(interfaces.Connected{Server: up.Name()})

	lines := make(chan string, lineBuffer)
	readErr := make(chan error, 1)
	go func() { readErr <- up.ReadLines(ctx, lines) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line := <-lines:
			s.handle(up, line)
		case c := <-s.calls:
			c.result <- c.fn()
		case err := <-readErr:
			for {
				select {
				case line := <-lines:
					s.handle(up, line)
				default:
					return fmt.Errorf("uplink %s: %w", up.Name(), err)
				}
			}
		}
	}
}

func (s *Service) handle(up *link.Uplink, line string) {
	if err := s.host.Dispatcher.Parse(s.pctx, up, line); err != nil {
		s.host.Log.Errorw("[services] Dispatch failed", "link", up.Name(), "line", line, "error", err)
	}
}

func (s *Service) detach(up *link.Uplink) {
	_ = up.Close()
	s.host.Uplink = nil
	clients, servers := s.host.Network.Counts()
	s.host.Network.Reset()
	s.host.Log.Infof("[services] Detached from %s (dropped %d clients, %d servers)", up.Name(), clients, servers)
}

// idle serves control calls while waiting for d to pass.
func (s *Service) idle(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case c := <-s.calls:
			c.result <- c.fn()
		}
	}
}

// Do runs fn on the service loop between two dispatches and returns its
// error.
func (s *Service) Do(ctx context.Context, fn func() error) error {
	c := call{fn: fn, result: make(chan error, 1)}
	select {
	case s.calls <- c:
	case <-s.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-c.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
