// Package protocol defines the message structures and types used for communication
// between ircgeistctl and the ircgeistd daemon. It can be used externally to build
// additional tooling or integrations.
package protocol

import "time"

// Command types for Request.Type
const (
	CmdPing          = "system.ping"
	CmdStatsCommands = "stats.commands"
	CmdStatsNetwork  = "stats.network"
	CmdModuleList    = "module.list"
	CmdModuleLoad    = "module.load"
	CmdModuleUnload  = "module.unload"
	CmdModuleReload  = "module.reload"
	CmdHookList      = "hook.list"
	CmdAkillList     = "akill.list"
	CmdAkillAdd      = "akill.add"
	CmdAkillDel      = "akill.del"
)

// Response statuses
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// UnauthenticatedUser names requests that carry no auth block.
const UnauthenticatedUser = "unauthenticated"

// Request represents a message sent from a client to the daemon.
type Request struct {
	Type string      `json:"type"`           // e.g. "module.load", "stats.commands"
	Auth *Auth       `json:"auth,omitempty"` // Optional auth block
	Data interface{} `json:"data,omitempty"` // Optional payload
}

// Response represents a message sent from the daemon to a client.
type Response struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // Optional result
	Error  string      `json:"error,omitempty"` // Optional error message
}

// Auth holds authentication information for a client.
type Auth struct {
	User  string `json:"user"`
	Token string `json:"token"`
}

// --- Payload Types ---

// PingResponse identifies the answering daemon.
type PingResponse struct {
	Server    string `json:"server"`
	Connected bool   `json:"connected"`
}

// ModuleRequest names a module for load, unload and reload.
type ModuleRequest struct {
	Name string `json:"name"`
}

// ModuleInfo describes one available module.
type ModuleInfo struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"` // "builtin" or "script"
	Loaded bool   `json:"loaded"`
}

// ModuleListResponse lists every module the daemon knows about.
type ModuleListResponse struct {
	Modules []ModuleInfo `json:"modules"`
}

// CommandStats is the usage report of one registered command.
type CommandStats struct {
	Name        string `json:"name"`
	Count       uint64 `json:"count"`
	Bytes       uint64 `json:"bytes"`
	RemoteCount uint64 `json:"remote_count"`
}

// CommandStatsResponse holds the usage report sorted by command name.
type CommandStatsResponse struct {
	Commands []CommandStats `json:"commands"`
}

// NetworkResponse summarizes the uplink and the known network.
type NetworkResponse struct {
	Uplink    string `json:"uplink,omitempty"`
	Connected bool   `json:"connected"`
	Clients   int    `json:"clients"`
	Servers   int    `json:"servers"`
}

// HookInfo lists the subscriber handles of one hook point.
type HookInfo struct {
	Name        string   `json:"name"`
	Subscribers []string `json:"subscribers"`
}

// HookListResponse lists every hook point on the daemon's bus.
type HookListResponse struct {
	Hooks []HookInfo `json:"hooks"`
}

// AkillInfo describes one stored network ban. Durations are in seconds
// and zero means permanent.
type AkillInfo struct {
	ID        int64     `json:"id"`
	Setter    string    `json:"setter"`
	Mask      string    `json:"mask"`
	Reason    string    `json:"reason"`
	SetAt     time.Time `json:"set_at"`
	Duration  int64     `json:"duration"`
	Remaining int64     `json:"remaining"`
}

// AkillListResponse lists the stored akills.
type AkillListResponse struct {
	Akills []AkillInfo `json:"akills"`
}

// AkillAddRequest bans a user@host mask.
type AkillAddRequest struct {
	Mask     string `json:"mask"`
	Reason   string `json:"reason"`
	Duration int64  `json:"duration,omitempty"`
}

// AkillAddResponse carries the id of the new akill.
type AkillAddResponse struct {
	ID int64 `json:"id"`
}

// AkillDelRequest removes an akill by id.
type AkillDelRequest struct {
	ID int64 `json:"id"`
}
