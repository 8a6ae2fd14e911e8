// Package control provides the daemon side of the control interface: it
// accepts ircgeistctl connections on unix sockets or TCP listeners and
// answers newline-delimited JSON requests.
package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/mfulz/ircgeist/internal/configd"
	"github.com/mfulz/ircgeist/protocol"
	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

// Server is one listening control instance.
type Server struct {
	instance configd.ControlInstance
	router   Router
	listener net.Listener
	log      *zap.SugaredLogger

	wg     sync.WaitGroup
	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
}

// Listen binds the instance's socket. A stale unix socket file is removed
// first and the new one is restricted to the daemon's user.
func Listen(instance configd.ControlInstance, router Router, log *zap.SugaredLogger) (*Server, error) {
	var (
		l   net.Listener
		err error
	)
	switch instance.Mode {
	case "unix":
		if _, statErr := os.Stat(instance.Listen); statErr == nil {
			_ = os.Remove(instance.Listen)
		}
		l, err = net.Listen("unix", instance.Listen)
		if err == nil {
			err = os.Chmod(instance.Listen, 0o600)
			if err != nil {
				_ = l.Close()
			}
		}
	case "tcp":
		l, err = net.Listen("tcp", instance.Listen)
	default:
		return nil, fmt.Errorf("control %s: unknown mode %q", instance.Name, instance.Mode)
	}
	if err != nil {
		return nil, fmt.Errorf("control %s: bind %s: %w", instance.Name, instance.Listen, err)
	}

	log.Infof("[control] Listening on %s %s (%s)", instance.Mode, l.Addr(), instance.Name)
	return &Server{
		instance: instance,
		router:   router,
		listener: l,
		log:      log,
		conns:    make(map[net.Conn]struct{}),
	}, nil
}

// StartAll listens on every enabled instance and serves each until ctx is
// done. On error the servers already started are closed again.
func StartAll(ctx context.Context, instances []configd.ControlInstance, router Router, log *zap.SugaredLogger) ([]*Server, error) {
	var servers []*Server
	for _, inst := range instances {
		if !inst.Enabled {
			log.Debugf("[control] Instance %s disabled", inst.Name)
			continue
		}
		srv, err := Listen(inst, router, log)
		if err != nil {
			for _, s := range servers {
				_ = s.Close()
			}
			return nil, err
		}
		servers = append(servers, srv)
		go func() { _ = srv.Serve(ctx) }()
	}
	return servers, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Serve accepts connections until ctx is done or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warnf("[control] Accept error: %v", err)
			continue
		}
		if !s.track(conn) {
			_ = conn.Close()
			continue
		}
		go func() {
			defer s.untrack(conn)
			s.handleConn(ctx, conn)
		}()
	}
}

// Close stops accepting, drops open connections and waits for their
// handlers.
func (s *Server) Close() error {
	err := s.listener.Close()
	s.mu.Lock()
	s.closed = true
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// track registers conn unless the server is already closing.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
}

// handleConn answers requests on conn until the peer hangs up.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	reader := protocol.NewReader(conn)
	for {
		req, err := protocol.ReadRequest(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Debugf("[control] %s: read failed: %v", s.instance.Name, err)
				_ = protocol.WriteResponse(conn, fail(err))
			}
			return
		}

		resp := s.dispatch(ctx, req)
		if err := protocol.WriteResponse(conn, resp); err != nil {
			s.log.Debugf("[control] %s: write failed: %v", s.instance.Name, err)
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req *protocol.Request) *protocol.Response {
	user := protocol.UnauthenticatedUser
	if req.Auth != nil {
		user = req.Auth.User
	}
	handler, ok := s.router[req.Type]
	if !ok {
		s.log.Debugf("[control] %s: unknown request %q from %s", s.instance.Name, req.Type, user)
		return &protocol.Response{Status: protocol.StatusError, Error: "unknown command"}
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	resp := handler(ctx, req)
	if resp.Status == protocol.StatusError {
		s.log.Infof("[control] %s: %s by %s failed: %s", s.instance.Name, req.Type, user, resp.Error)
	} else {
		s.log.Debugf("[control] %s: %s by %s", s.instance.Name, req.Type, user)
	}
	return resp
}
