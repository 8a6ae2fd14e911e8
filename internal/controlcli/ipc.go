package controlcli

import (
	"fmt"

	"github.com/mfulz/ircgeist/internal/configcli"
	"github.com/mfulz/ircgeist/internal/logging"
	"github.com/mfulz/ircgeist/protocol"
)

// Target selects the daemon and identity for one command. Addr and Token
// override the configured daemon list when Addr is set.
type Target struct {
	Daemon string
	User   string
	Addr   string
	Token  string
}

// execWithAuth dispatches a command to a daemon using configured or
// overridden settings and turns error responses into errors.
func execWithAuth(cfg *configcli.Config, t Target, cmd string, payload interface{}) (*protocol.Response, error) {
	user := t.User
	if user == "" {
		user = cfg.DefaultUser
	}

	var resp *protocol.Response
	var err error
	if t.Addr != "" {
		resp, err = SendDirectCommand(t.Addr, t.Token, user, cmd, payload)
	} else {
		daemon := t.Daemon
		if daemon == "" {
			daemon = GuessDefaultDaemon(cfg)
		}
		resp, err = SendCommandWithAuth(cfg, daemon, user, cmd, payload)
	}
	if err != nil {
		return nil, err
	}
	if resp.Status != protocol.StatusOK {
		return resp, fmt.Errorf("%s", resp.Error)
	}
	logging.Log.Debugf("[controlcli] %s ok", cmd)
	return resp, nil
}

func decodeInto[T any](cfg *configcli.Config, t Target, cmd string, payload interface{}) (*T, error) {
	resp, err := execWithAuth(cfg, t, cmd, payload)
	if err != nil {
		return nil, err
	}
	var out T
	if err := protocol.DecodeData(resp.Data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", cmd, err)
	}
	return &out, nil
}

// Ping sends CmdPing.
func Ping(cfg *configcli.Config, t Target) (*protocol.PingResponse, error) {
	return decodeInto[protocol.PingResponse](cfg, t, protocol.CmdPing, nil)
}

// CommandStats sends CmdStatsCommands.
func CommandStats(cfg *configcli.Config, t Target) (*protocol.CommandStatsResponse, error) {
	return decodeInto[protocol.CommandStatsResponse](cfg, t, protocol.CmdStatsCommands, nil)
}

// NetworkStats sends CmdStatsNetwork.
func NetworkStats(cfg *configcli.Config, t Target) (*protocol.NetworkResponse, error) {
	return decodeInto[protocol.NetworkResponse](cfg, t, protocol.CmdStatsNetwork, nil)
}

// ListModules sends CmdModuleList.
func ListModules(cfg *configcli.Config, t Target) (*protocol.ModuleListResponse, error) {
	return decodeInto[protocol.ModuleListResponse](cfg, t, protocol.CmdModuleList, nil)
}

// LoadModule sends CmdModuleLoad for name.
func LoadModule(cfg *configcli.Config, t Target, name string) error {
	_, err := execWithAuth(cfg, t, protocol.CmdModuleLoad, protocol.ModuleRequest{Name: name})
	return err
}

// UnloadModule sends CmdModuleUnload for name.
func UnloadModule(cfg *configcli.Config, t Target, name string) error {
	_, err := execWithAuth(cfg, t, protocol.CmdModuleUnload, protocol.ModuleRequest{Name: name})
	return err
}

// ReloadModule sends CmdModuleReload for name.
func ReloadModule(cfg *configcli.Config, t Target, name string) error {
	_, err := execWithAuth(cfg, t, protocol.CmdModuleReload, protocol.ModuleRequest{Name: name})
	return err
}

// ListHooks sends CmdHookList.
func ListHooks(cfg *configcli.Config, t Target) (*protocol.HookListResponse, error) {
	return decodeInto[protocol.HookListResponse](cfg, t, protocol.CmdHookList, nil)
}

// ListAkills sends CmdAkillList.
func ListAkills(cfg *configcli.Config, t Target) (*protocol.AkillListResponse, error) {
	return decodeInto[protocol.AkillListResponse](cfg, t, protocol.CmdAkillList, nil)
}

// AddAkill sends CmdAkillAdd and returns the new id.
func AddAkill(cfg *configcli.Config, t Target, req protocol.AkillAddRequest) (int64, error) {
	resp, err := decodeInto[protocol.AkillAddResponse](cfg, t, protocol.CmdAkillAdd, req)
	if err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// DeleteAkill sends CmdAkillDel for id.
func DeleteAkill(cfg *configcli.Config, t Target, id int64) error {
	_, err := execWithAuth(cfg, t, protocol.CmdAkillDel, protocol.AkillDelRequest{ID: id})
	return err
}
