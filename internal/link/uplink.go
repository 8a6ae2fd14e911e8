// Package link manages the services daemon's connection to its uplink
// server: dialing, registration, reading lines and queueing writes.
package link

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/mfulz/ircgeist/dispatch"
	"github.com/mfulz/ircgeist/irc"
	"go.uber.org/zap"
)

// MaxLineContent is the longest line handed to the parser; the remaining
// two bytes of the protocol limit belong to the CRLF terminator.
const MaxLineContent = irc.MaxLineLength - 2

const (
	defaultSendQueue   = 512
	defaultDialTimeout = 30 * time.Second
)

var (
	// ErrSendQueueFull is returned by Send when the writer cannot keep up.
	ErrSendQueueFull = errors.New("link: send queue full")

	// ErrClosed is returned by Send after the link has been closed.
	ErrClosed = errors.New("link: closed")
)

// Config describes how to reach and register with the uplink.
type Config struct {
	Address     string        `mapstructure:"address"`
	Password    string        `mapstructure:"password"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	SendQueue   int           `mapstructure:"send_queue"`
}

// Uplink is the server link the daemon is attached to. All methods may be
// called from any goroutine.
type Uplink struct {
	conn  net.Conn
	sendq chan string
	done  chan struct{}
	once  sync.Once
	log   *zap.SugaredLogger

	mu   sync.RWMutex
	name string
}

var _ dispatch.Link = (*Uplink)(nil)

// Dial connects to cfg.Address within cfg.DialTimeout.
func Dial(ctx context.Context, cfg Config, log *zap.SugaredLogger) (*Uplink, error) {
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("dial uplink %s: %w", cfg.Address, err)
	}
	return New(conn, cfg.Address, cfg.SendQueue, log), nil
}

// New wraps an established connection and starts its writer.
func New(conn net.Conn, name string, queue int, log *zap.SugaredLogger) *Uplink {
	if queue <= 0 {
		queue = defaultSendQueue
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	u := &Uplink{
		conn:  conn,
		name:  name,
		sendq: make(chan string, queue),
		done:  make(chan struct{}),
		log:   log,
	}
	go u.writeLoop()
	return u
}

// Name returns the peer's server name, or its address before the peer
// introduced itself.
func (u *Uplink) Name() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.name
}

// SetName records the name the peer announced.
func (u *Uplink) SetName(name string) {
	u.mu.Lock()
	u.name = name
	u.mu.Unlock()
}

// Role reports the uplink as a server link.
func (u *Uplink) Role() dispatch.Role { return dispatch.RoleServerLink }

// Send queues one line without its terminator. It never blocks.
func (u *Uplink) Send(line string) error {
	select {
	case <-u.done:
		return ErrClosed
	default:
	}
	select {
	case u.sendq <- line:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Register sends the server registration burst.
func (u *Uplink) Register(password, serverName, description string) error {
	for _, line := range []string{
		fmt.Sprintf("PASS %s TS", password),
		"CAPAB :TS EX IE HOPS",
		fmt.Sprintf("SERVER %s 1 :%s", serverName, description),
	} {
		if err := u.Send(line); err != nil {
			return fmt.Errorf("register: %w", err)
		}
	}
	return nil
}

// ReadLines delivers every non-empty line to out until the connection
// fails, the link is closed or ctx is done. Lines longer than
// MaxLineContent are truncated.
func (u *Uplink) ReadLines(ctx context.Context, out chan<- string) error {
	r := bufio.NewReaderSize(u.conn, 2*irc.MaxLineLength)
	for {
		line, err := readLine(r)
		if err != nil {
			select {
			case <-u.done:
				return ErrClosed
			default:
			}
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			return fmt.Errorf("read uplink: %w", err)
		}
		if line == "" {
			continue
		}
		select {
		case out <- line:
		case <-ctx.Done():
			return ctx.Err()
		case <-u.done:
			return ErrClosed
		}
	}
}

// Done is closed once the link is closed.
func (u *Uplink) Done() <-chan struct{} { return u.done }

// Close shuts the connection down. Queued lines that were not written yet
// are dropped.
func (u *Uplink) Close() error {
	var err error
	u.once.Do(func() {
		close(u.done)
		err = u.conn.Close()
	})
	return err
}

func (u *Uplink) writeLoop() {
	w := bufio.NewWriter(u.conn)
	for {
		select {
		case <-u.done:
			return
		case line := <-u.sendq:
			if err := u.write(w, line); err != nil {
				u.log.Warnf("[link] write to %s failed: %v", u.Name(), err)
				_ = u.Close()
				return
			}
		}
	}
}

// write sends line plus whatever else is already queued in one flush.
func (u *Uplink) write(w *bufio.Writer, line string) error {
	for {
		if _, err := w.WriteString(line); err != nil {
			return err
		}
		if _, err := w.WriteString("\r\n"); err != nil {
			return err
		}
		select {
		case line = <-u.sendq:
			continue
		default:
		}
		return w.Flush()
	}
}

// readLine reads up to the next LF, strips CR/LF and drops everything past
// MaxLineContent.
func readLine(r *bufio.Reader) (string, error) {
	var buf []byte
	for {
		frag, isPrefix, err := r.ReadLine()
		if err != nil {
			return "", err
		}
		if room := MaxLineContent - len(buf); room > 0 {
			if len(frag) > room {
				frag = frag[:room]
			}
			buf = append(buf, frag...)
		}
		if !isPrefix {
			return string(buf), nil
		}
	}
}
