package control

import (
	"context"
	"errors"
	"time"

	"github.com/mfulz/ircgeist/interfaces"
	"github.com/mfulz/ircgeist/internal/acl"
	"github.com/mfulz/ircgeist/internal/modules/akill"
	"github.com/mfulz/ircgeist/internal/services"
	"github.com/mfulz/ircgeist/protocol"
)

// Handler answers one control request.
type Handler func(ctx context.Context, req *protocol.Request) *protocol.Response

// Router maps request types to handlers.
type Router map[string]Handler

func fail(err error) *protocol.Response {
	return &protocol.Response{Status: protocol.StatusError, Error: err.Error()}
}

func ok(data any) *protocol.Response {
	return &protocol.Response{Status: protocol.StatusOK, Data: data}
}

// NewRouter builds the handler table for svc. moduleACLs holds optional
// per-module rule sets for load and unload.
func NewRouter(svc *services.Service, moduleACLs map[string]acl.ACLRuleSet) Router {
	return Router{
		protocol.CmdPing:          PingHandler(svc),
		protocol.CmdStatsCommands: StatsCommandsHandler(svc),
		protocol.CmdStatsNetwork:  StatsNetworkHandler(svc),
		protocol.CmdModuleList:    ModuleListHandler(svc),
		protocol.CmdModuleLoad:    ModuleLoadHandler(svc, moduleACLs),
		protocol.CmdModuleUnload:  ModuleUnloadHandler(svc, moduleACLs),
		protocol.CmdModuleReload:  ModuleReloadHandler(svc, moduleACLs),
		protocol.CmdHookList:      HookListHandler(svc),
		protocol.CmdAkillList:     AkillListHandler(svc),
		protocol.CmdAkillAdd:      AkillAddHandler(svc),
		protocol.CmdAkillDel:      AkillDelHandler(svc),
	}
}

func PingHandler(svc *services.Service) Handler {
	return func(ctx context.Context, req *protocol.Request) *protocol.Response {
		if err := acl.Check(req.Auth, acl.PermPing, acl.ACLRuleSet{}); err != nil {
			return fail(err)
		}
		var out protocol.PingResponse
		err := svc.Do(ctx, func() error {
			h := svc.Host()
			out = protocol.PingResponse{Server: h.ServerName, Connected: h.Uplink != nil}
			return nil
		})
		if err != nil {
			return fail(err)
		}
		return ok(out)
	}
}

// StatsCommandsHandler reports per-command usage counters.
func StatsCommandsHandler(svc *services.Service) Handler {
	return func(ctx context.Context, req *protocol.Request) *protocol.Response {
		if err := acl.Check(req.Auth, acl.PermStats, acl.ACLRuleSet{}); err != nil {
			return fail(err)
		}
		var out protocol.CommandStatsResponse
		err := svc.Do(ctx, func() error {
			for _, u := range svc.Host().Dispatcher.Commands() {
				out.Commands = append(out.Commands, protocol.CommandStats{
					Name:        u.Name,
					Count:       u.Count,
					Bytes:       u.Bytes,
					RemoteCount: u.RemoteCount,
				})
			}
			return nil
		})
		if err != nil {
			return fail(err)
		}
		return ok(out)
	}
}

func StatsNetworkHandler(svc *services.Service) Handler {
	return func(ctx context.Context, req *protocol.Request) *protocol.Response {
		if err := acl.Check(req.Auth, acl.PermStats, acl.ACLRuleSet{}); err != nil {
			return fail(err)
		}
		var out protocol.NetworkResponse
		err := svc.Do(ctx, func() error {
			h := svc.Host()
			if h.Uplink != nil {
				out.Connected = true
				out.Uplink = h.Uplink.Name()
			}
			out.Clients, out.Servers = h.Network.Counts()
			return nil
		})
		if err != nil {
			return fail(err)
		}
		return ok(out)
	}
}

func ModuleListHandler(svc *services.Service) Handler {
	return func(ctx context.Context, req *protocol.Request) *protocol.Response {
		if err := acl.Check(req.Auth, acl.PermModuleList, acl.ACLRuleSet{}); err != nil {
			return fail(err)
		}
		var out protocol.ModuleListResponse
		err := svc.Do(ctx, func() error {
			list, err := svc.Modules().List()
			if err != nil {
				return err
			}
			for _, m := range list {
				out.Modules = append(out.Modules, protocol.ModuleInfo{Name: m.Name, Kind: m.Kind, Loaded: m.Loaded})
			}
			return nil
		})
		if err != nil {
			return fail(err)
		}
		return ok(out)
	}
}

// moduleOp decodes the module name, checks every perm against the module's
// rule set and runs op on the service loop.
func moduleOp(svc *services.Service, rules map[string]acl.ACLRuleSet, op func(name string) error, perms ...acl.Permission) Handler {
	return func(ctx context.Context, req *protocol.Request) *protocol.Response {
		var payload protocol.ModuleRequest
		if err := protocol.DecodeData(req.Data, &payload); err != nil {
			return fail(err)
		}
		if payload.Name == "" {
			return &protocol.Response{Status: protocol.StatusError, Error: "module name required"}
		}
		for _, perm := range perms {
			if err := acl.Check(req.Auth, perm, rules[payload.Name]); err != nil {
				return fail(err)
			}
		}
		if err := svc.Do(ctx, func() error { return op(payload.Name) }); err != nil {
			return fail(err)
		}
		return ok(nil)
	}
}

func ModuleLoadHandler(svc *services.Service, rules map[string]acl.ACLRuleSet) Handler {
	return moduleOp(svc, rules, func(name string) error {
		return svc.Modules().Load(name)
	}, acl.PermModuleLoad)
}

func ModuleUnloadHandler(svc *services.Service, rules map[string]acl.ACLRuleSet) Handler {
	return moduleOp(svc, rules, func(name string) error {
		return svc.Modules().Unload(name)
	}, acl.PermModuleUnload)
}

// ModuleReloadHandler unloads and loads a module in one step on the loop,
// so no uplink line is dispatched in between.
func ModuleReloadHandler(svc *services.Service, rules map[string]acl.ACLRuleSet) Handler {
	return moduleOp(svc, rules, func(name string) error {
		if err := svc.Modules().Unload(name); err != nil {
			return err
		}
		return svc.Modules().Load(name)
	}, acl.PermModuleUnload, acl.PermModuleLoad)
}

func HookListHandler(svc *services.Service) Handler {
	return func(ctx context.Context, req *protocol.Request) *protocol.Response {
		if err := acl.Check(req.Auth, acl.PermHookList, acl.ACLRuleSet{}); err != nil {
			return fail(err)
		}
		var out protocol.HookListResponse
		err := svc.Do(ctx, func() error {
			bus := svc.Host().Bus
			for _, name := range bus.Names() {
				info := protocol.HookInfo{Name: name, Subscribers: []string{}}
				for _, id := range bus.Subscribers(name) {
					info.Subscribers = append(info.Subscribers, id.String())
				}
				out.Hooks = append(out.Hooks, info)
			}
			return nil
		})
		if err != nil {
			return fail(err)
		}
		return ok(out)
	}
}

// AkillListHandler reads the store off the service loop.
func AkillListHandler(svc *services.Service) Handler {
	return func(ctx context.Context, req *protocol.Request) *protocol.Response {
		if err := acl.Check(req.Auth, acl.PermAkillList, acl.ACLRuleSet{}); err != nil {
			return fail(err)
		}
		store := svc.Host().Store
		if store == nil {
			return fail(akill.ErrNoStore)
		}
		list, err := store.ListAkills(ctx)
		if err != nil {
			return fail(err)
		}
		now := time.Now()
		out := protocol.AkillListResponse{Akills: []protocol.AkillInfo{}}
		for _, a := range list {
			out.Akills = append(out.Akills, protocol.AkillInfo{
				ID:        a.ID,
				Setter:    a.Setter,
				Mask:      a.Mask,
				Reason:    a.Reason,
				SetAt:     a.TimeSet,
				Duration:  int64(a.Duration / time.Second),
				Remaining: int64(a.Remaining(now) / time.Second),
			})
		}
		return ok(out)
	}
}

func AkillAddHandler(svc *services.Service) Handler {
	return func(ctx context.Context, req *protocol.Request) *protocol.Response {
		if err := acl.Check(req.Auth, acl.PermAkillAdd, acl.ACLRuleSet{}); err != nil {
			return fail(err)
		}
		var payload protocol.AkillAddRequest
		if err := protocol.DecodeData(req.Data, &payload); err != nil {
			return fail(err)
		}
		if payload.Mask == "" {
			return fail(errors.New("akill mask required"))
		}
		if payload.Duration < 0 {
			return fail(errors.New("akill duration must not be negative"))
		}
		setter := protocol.UnauthenticatedUser
		if req.Auth != nil {
			setter = req.Auth.User
		}
		a := interfaces.Akill{
			Setter:   setter,
			Mask:     payload.Mask,
			Reason:   payload.Reason,
			Duration: time.Duration(payload.Duration) * time.Second,
		}
		a, err := akill.Add(ctx, svc.Host().Store, a)
		if err != nil {
			return fail(err)
		}
		if err := svc.Do(ctx, func() error { return akill.Ban(svc.Host(), a) }); err != nil {
			return fail(err)
		}
		return ok(protocol.AkillAddResponse{ID: a.ID})
	}
}

func AkillDelHandler(svc *services.Service) Handler {
	return func(ctx context.Context, req *protocol.Request) *protocol.Response {
		if err := acl.Check(req.Auth, acl.PermAkillDel, acl.ACLRuleSet{}); err != nil {
			return fail(err)
		}
		var payload protocol.AkillDelRequest
		if err := protocol.DecodeData(req.Data, &payload); err != nil {
			return fail(err)
		}
		a, err := akill.Remove(ctx, svc.Host().Store, payload.ID)
		if err != nil {
			return fail(err)
		}
		if err := svc.Do(ctx, func() error { return akill.Lift(svc.Host(), a) }); err != nil {
			return fail(err)
		}
		return ok(nil)
	}
}
