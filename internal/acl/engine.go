// Package acl provides a simple role- and group-based access control layer
// for the control socket. Users authenticate with a token; roles grant
// permissions; optional per-object rule sets narrow them further (e.g. which
// operators may load a given module).
//
// Example usage:
//
//	acl.Init(cfg.ACL, acl.Permissions)
//	if err := acl.Check(req.Auth, acl.PermModuleLoad, rules); err != nil {
//		return err
//	}
package acl

import (
	"errors"
	"fmt"
	"slices"

	"github.com/mfulz/ircgeist/internal/logging"
	"github.com/mfulz/ircgeist/protocol"
)

// Permission defines a named right or capability.
type Permission string

// Permissions understood by the control server.
const (
	PermPing         Permission = "ping"
	PermStats        Permission = "stats"
	PermModuleList   Permission = "module_list"
	PermModuleLoad   Permission = "module_load"
	PermModuleUnload Permission = "module_unload"
	PermHookList     Permission = "hook_list"
	PermAkillList    Permission = "akill_list"
	PermAkillAdd     Permission = "akill_add"
	PermAkillDel     Permission = "akill_del"
)

// Permissions is the full set passed to Init by the daemon.
var Permissions = []Permission{
	PermPing,
	PermStats,
	PermModuleList,
	PermModuleLoad,
	PermModuleUnload,
	PermHookList,
	PermAkillList,
	PermAkillAdd,
	PermAkillDel,
}

var (
	ErrUnauthenticated = errors.New("acl: authentication failed")
	ErrForbidden       = errors.New("acl: not allowed")
)

// ACLRuleSet defines a set of permissions for a module or other object.
type ACLRuleSet struct {
	Rules []ACLRule `mapstructure:"rules"`
}

// ACLRule defines permissions for a module or other object.
type ACLRule struct {
	Description string       `mapstructure:"description"`
	Subjects    []string     `mapstructure:"subjects"`
	Permissions []Permission `mapstructure:"permissions,omitempty"`
	Deny        bool         `mapstructure:"deny"`
}

// User defines a named operator of the control socket.
type User struct {
	Name   string   `mapstructure:"name"`
	Roles  []string `mapstructure:"roles"`
	Token  string   `mapstructure:"token"`
	groups []string
}

// Group defines a named group of users.
type Group struct {
	Name    string   `mapstructure:"name"`
	Members []string `mapstructure:"members"`
	Roles   []string `mapstructure:"roles"`
}

// Role defines a named role, grouping one or more permissions.
type Role struct {
	Name        string       `mapstructure:"name"`
	Permissions []Permission `mapstructure:"permissions"`
}

// ACLConfig defines the global ACL structure loaded from config.
type ACLConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Users   map[string]User  `mapstructure:"users"`
	Groups  map[string]Group `mapstructure:"groups"`
	Roles   map[string]Role  `mapstructure:"roles"`
}

// aclChecker represents the internal ACL state and evaluation logic.
type aclChecker struct {
	enabled bool
	users   map[string]User
	groups  map[string]Group
	roles   map[string]Role
}

// aclhandle is the globally accessible instance used for all ACL checks.
var aclhandle *aclChecker

// Init initializes the global ACL engine from config. perms is the set of
// permission names roles may reference.
func Init(cfg ACLConfig, perms []Permission) error {
	pmap := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		pmap[p] = struct{}{}
	}

	roles := make(map[string]Role, len(cfg.Roles))
	for roleName, role := range cfg.Roles {
		for _, perm := range role.Permissions {
			if _, ok := pmap[perm]; !ok {
				return fmt.Errorf("invalid permission '%s' in role '%s'", perm, roleName)
			}
		}
		if role.Name == "" {
			role.Name = roleName
		}
		roles[roleName] = role
	}

	users := make(map[string]User, len(cfg.Users))
	for name, user := range cfg.Users {
		if user.Name == "" {
			user.Name = name
		}
		user.groups = nil
		users[name] = user
	}

	groups := make(map[string]Group, len(cfg.Groups))
	for name, group := range cfg.Groups {
		if group.Name == "" {
			group.Name = name
		}
		for _, member := range group.Members {
			u, ok := users[member]
			if !ok {
				return fmt.Errorf("invalid user '%s' in group '%s'", member, group.Name)
			}
			u.groups = append(u.groups, group.Name)
			users[member] = u
		}
		groups[name] = group
	}

	aclhandle = &aclChecker{
		enabled: cfg.Enabled,
		users:   users,
		groups:  groups,
		roles:   roles,
	}
	return nil
}

// aclValid checks whether ACLs are ready and enabled.
// Returns (true, false) → reject: uninitialized
// Returns (true, true)  → allow: disabled in config
// Returns (false, _)    → continue with normal check
func aclValid() (bool, bool) {
	if aclhandle == nil {
		return true, false
	}
	if !aclhandle.enabled {
		return true, true
	}
	return false, false
}

// Can checks whether user holds perm and passes the object rules.
func Can(user string, perm Permission, rules ACLRuleSet) bool {
	if handled, result := aclValid(); handled {
		return result
	}
	return aclhandle.can(user, perm, rules)
}

// Authenticate checks if user uses correct token
func Authenticate(authReq *protocol.Auth) bool {
	if handled, result := aclValid(); handled {
		return result
	}
	if authReq == nil {
		return false
	}
	return aclhandle.userCredsValid(authReq.User, authReq.Token)
}

// Check combines Authenticate and Can for a control request.
func Check(auth *protocol.Auth, perm Permission, rules ACLRuleSet) error {
	if !Authenticate(auth) {
		return ErrUnauthenticated
	}
	user := protocol.UnauthenticatedUser
	if auth != nil {
		user = auth.User
	}
	if !Can(user, perm, rules) {
		return fmt.Errorf("%w: %s needs %s", ErrForbidden, user, perm)
	}
	return nil
}

// hasPerm checks if the ACLRule has the permission. If perms are empty it matches all
func (r *ACLRule) hasPerm(perm Permission) bool {
	if len(r.Permissions) == 0 {
		return true
	}
	return slices.Contains(r.Permissions, perm)
}

// hasSubject checks if the ACLRule has the subject.
func (r *ACLRule) hasSubject(a *aclChecker, user string) bool {
	for _, s := range r.Subjects {
		if a.userMatches(user, s) {
			return true
		}
	}
	return false
}

func (a *aclChecker) userCredsValid(user, token string) bool {
	u, ok := a.users[user]
	if !ok || u.Token == "" {
		return false
	}
	return u.Token == token
}

// can evaluates the role permission first, then the object rules in order.
// Any matching deny rule wins.
func (a *aclChecker) can(user string, perm Permission, rules ACLRuleSet) bool {
	if !a.userHasPermission(user, perm) {
		return false
	}
	if len(rules.Rules) == 0 {
		return true
	}

	logging.Log.Debugf("[acl] Evaluating %d rules for %s/%s", len(rules.Rules), user, perm)
	matches := false
	for _, rule := range rules.Rules {
		if !rule.hasPerm(perm) || !rule.hasSubject(a, user) {
			continue
		}
		if rule.Deny {
			return false
		}
		matches = true
	}
	return matches
}

// userRoles collects the user's own roles and those of its groups.
func (a *aclChecker) userRoles(user User) []string {
	ret := append([]string(nil), user.Roles...)
	for _, groupName := range user.groups {
		if group, ok := a.groups[groupName]; ok {
			ret = append(ret, group.Roles...)
		}
	}
	return ret
}

func (a *aclChecker) userHasPermission(user string, perm Permission) bool {
	u, ok := a.users[user]
	if !ok {
		return false
	}
	for _, roleName := range a.userRoles(u) {
		if role, ok := a.roles[roleName]; ok && slices.Contains(role.Permissions, perm) {
			return true
		}
	}
	return false
}

// userMatches returns true if the subject matches the user or one of their groups.
func (a *aclChecker) userMatches(user string, subject string) bool {
	if subject == user {
		return true
	}
	u, ok := a.users[user]
	if !ok {
		return false
	}
	return slices.Contains(u.groups, subject)
}
