// Package network tracks the clients and servers the services link has
// been told about, so that line prefixes can be resolved to origins.
package network

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mfulz/ircgeist/irc"
)

var (
	ErrNickInUse     = errors.New("network: nick already in use")
	ErrUnknownClient = errors.New("network: unknown client")
	ErrServerExists  = errors.New("network: server already known")
	ErrUnknownServer = errors.New("network: unknown server")
)

// Client is a user introduced by the uplink.
type Client struct {
	Nick     string
	User     string
	Host     string
	Server   string
	Modes    string
	Gecos    string
	SignedOn int64
}

// Name returns the nick.
func (c *Client) Name() string { return c.Nick }

// Mask returns nick!user@host.
func (c *Client) Mask() string {
	return fmt.Sprintf("%s!%s@%s", c.Nick, c.User, c.Host)
}

// Server is a server known to be on the network.
type Server struct {
	ServerName  string
	Description string
	Hops        int
	// Uplink is the server that introduced this one; empty for our peer.
	Uplink string
}

// Name returns the server name.
func (s *Server) Name() string { return s.ServerName }

// Directory holds clients and servers keyed by their case-folded names.
// It is not safe for concurrent use.
type Directory struct {
	clients map[string]*Client
	servers map[string]*Server
}

// New returns an empty directory.
func New() *Directory {
	return &Directory{
		clients: make(map[string]*Client),
		servers: make(map[string]*Server),
	}
}

// FindClient resolves a nick. The link is accepted for scoping but all
// clients behind the single uplink share one namespace.
func (d *Directory) FindClient(_ irc.Origin, nick string) irc.Origin {
	if c, ok := d.clients[Fold(nick)]; ok {
		return c
	}
	return nil
}

// FindServer resolves a server name.
func (d *Directory) FindServer(name string) irc.Origin {
	if s, ok := d.servers[Fold(name)]; ok {
		return s
	}
	return nil
}

// Client returns the client with the given nick.
func (d *Directory) Client(nick string) (*Client, bool) {
	c, ok := d.clients[Fold(nick)]
	return c, ok
}

// Server returns the named server.
func (d *Directory) Server(name string) (*Server, bool) {
	s, ok := d.servers[Fold(name)]
	return s, ok
}

// AddClient introduces a new client.
func (d *Directory) AddClient(c *Client) error {
	key := Fold(c.Nick)
	if _, ok := d.clients[key]; ok {
		return fmt.Errorf("%w: %s", ErrNickInUse, c.Nick)
	}
	d.clients[key] = c
	return nil
}

// RenameClient changes a client's nick. A change in case only is allowed.
func (d *Directory) RenameClient(oldNick, newNick string) (*Client, error) {
	oldKey, newKey := Fold(oldNick), Fold(newNick)
	c, ok := d.clients[oldKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClient, oldNick)
	}
	if oldKey != newKey {
		if _, taken := d.clients[newKey]; taken {
			return nil, fmt.Errorf("%w: %s", ErrNickInUse, newNick)
		}
		delete(d.clients, oldKey)
		d.clients[newKey] = c
	}
	c.Nick = newNick
	return c, nil
}

// RemoveClient drops a client and returns it.
func (d *Directory) RemoveClient(nick string) (*Client, bool) {
	key := Fold(nick)
	c, ok := d.clients[key]
	if ok {
		delete(d.clients, key)
	}
	return c, ok
}

// AddServer introduces a server.
func (d *Directory) AddServer(s *Server) error {
	key := Fold(s.ServerName)
	if _, ok := d.servers[key]; ok {
		return fmt.Errorf("%w: %s", ErrServerExists, s.ServerName)
	}
	d.servers[key] = s
	return nil
}

// RemoveServer drops a server, every server behind it, and every client on
// those servers. The removed clients are returned in nick order.
func (d *Directory) RemoveServer(name string) ([]*Client, error) {
	if _, ok := d.servers[Fold(name)]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownServer, name)
	}

	gone := map[string]bool{Fold(name): true}
	for changed := true; changed; {
		changed = false
		for key, s := range d.servers {
			if !gone[key] && s.Uplink != "" && gone[Fold(s.Uplink)] {
				gone[key] = true
				changed = true
			}
		}
	}
	for key := range gone {
		delete(d.servers, key)
	}

	var lost []*Client
	for key, c := range d.clients {
		if gone[Fold(c.Server)] {
			lost = append(lost, c)
			delete(d.clients, key)
		}
	}
	sort.Slice(lost, func(i, j int) bool { return lost[i].Nick < lost[j].Nick })
	return lost, nil
}

// Counts returns the number of known clients and servers.
func (d *Directory) Counts() (clients, servers int) {
	return len(d.clients), len(d.servers)
}

// Reset forgets everything, as after a lost uplink.
func (d *Directory) Reset() {
	clear(d.clients)
	clear(d.servers)
}

// Fold maps a name to its rfc1459 case-insensitive key.
func Fold(s string) string {
	b := []byte(s)
	for i, c := range b {
		switch {
		case c >= 'A' && c <= 'Z':
			b[i] = c + ('a' - 'A')
		case c == '[':
			b[i] = '{'
		case c == ']':
			b[i] = '}'
		case c == '\\':
			b[i] = '|'
		case c == '^':
			b[i] = '~'
		}
	}
	return string(b)
}
