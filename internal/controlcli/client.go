// Package controlcli handles daemon communication and request encoding from ircgeistctl.
package controlcli

import (
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/mfulz/ircgeist/internal/configcli"
	"github.com/mfulz/ircgeist/protocol"
)

const dialTimeout = 2 * time.Second

// SendCommandWithAuth connects to a configured daemon and sends a request
// authenticated as userName.
func SendCommandWithAuth(cfg *configcli.Config, daemonName, userName, command string, data interface{}) (*protocol.Response, error) {
	daemon, ok := cfg.Daemons[daemonName]
	if !ok {
		return nil, fmt.Errorf("daemon '%s' not found", daemonName)
	}

	user, ok := cfg.Users[userName]
	if !ok {
		return nil, fmt.Errorf("user '%s' not found", userName)
	}

	var network, addr string
	switch {
	case daemon.Socket != "":
		network, addr = "unix", daemon.Socket
	case daemon.TCP != "":
		network, addr = "tcp", daemon.TCP
	default:
		return nil, fmt.Errorf("invalid daemon config: no socket or tcp defined")
	}

	return roundTrip(network, addr, &protocol.Request{
		Type: command,
		Data: data,
		Auth: &protocol.Auth{User: userName, Token: user.Token},
	})
}

// SendDirectCommand bypasses the daemon list. addr is a socket path if it
// starts with "/" and a TCP address otherwise.
func SendDirectCommand(addr, token, userName, command string, data interface{}) (*protocol.Response, error) {
	network := "tcp"
	if strings.HasPrefix(addr, "/") {
		network = "unix"
	}
	req := &protocol.Request{Type: command, Data: data}
	if userName != "" {
		req.Auth = &protocol.Auth{User: userName, Token: token}
	}
	return roundTrip(network, addr, req)
}

func roundTrip(network, addr string, req *protocol.Request) (*protocol.Response, error) {
	conn, err := net.DialTimeout(network, addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s %s: %w", network, addr, err)
	}
	defer conn.Close()

	if err := protocol.WriteRequest(conn, req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	resp, err := protocol.ReadResponse(protocol.NewReader(conn))
	if err != nil {
		return nil, fmt.Errorf("invalid response: %w", err)
	}
	return resp, nil
}

// ListAvailableDaemons returns the configured daemon names, sorted.
func ListAvailableDaemons(cfg *configcli.Config) []string {
	list := make([]string, 0, len(cfg.Daemons))
	for name := range cfg.Daemons {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

// GuessDefaultDaemon returns the configured default, or the first daemon
// by name, or "" if none are configured.
func GuessDefaultDaemon(cfg *configcli.Config) string {
	if cfg.DefaultDaemon != "" {
		return cfg.DefaultDaemon
	}
	if list := ListAvailableDaemons(cfg); len(list) > 0 {
		return list[0]
	}
	return ""
}
