// Moderation state for users and groups: warning counts, mutes, blacklists,
// and per-group defense configuration. All expiring state (mutes, cooldowns)
// uses lazy expiry: a timestamp in the past is equivalent to the value being
// absent, and every read goes through GetIfLive so there is exactly one expiry
// semantics in the codebase.
package modstore

import (
	"context"
	"time"
)

// DefenseMode controls how detected violations map to actions.
type DefenseMode string

const (
	ModeNormal   DefenseMode = "normal"
	ModeStrict   DefenseMode = "strict"
	ModeLockdown DefenseMode = "lockdown"
)

// ParseDefenseMode validates a mode string from a config or command boundary.
func ParseDefenseMode(s string) (DefenseMode, bool) {
	switch DefenseMode(s) {
	case ModeNormal, ModeStrict, ModeLockdown:
		return DefenseMode(s), true
	}
	return "", false
}

// UserRecord is the per-user moderation state. The zero value (plus UserID) is
// a valid record for a user with no history; records are created on first
// violation or command use and never deleted, only cleared field by field.
type UserRecord struct {
	UserID       string               `json:"user_id"`
	WarningCount int                  `json:"warning_count"`
	MuteUntil    *time.Time           `json:"mute_until,omitempty"`
	Blacklisted  bool                 `json:"blacklisted"`
	Disabled     bool                 `json:"disabled"`
	Cooldowns    map[string]time.Time `json:"cooldowns,omitempty"`
}

// Muted reports whether the user is muted at the given instant.
func (u *UserRecord) Muted(now time.Time) bool {
	if u.MuteUntil == nil {
		return false
	}
	_, live := GetIfLive(*u.MuteUntil, now)
	return live
}

// CooldownRemaining returns how long until the user may run the named command
// again, or zero if no live cooldown exists.
func (u *UserRecord) CooldownRemaining(command string, now time.Time) time.Duration {
	exp, ok := u.Cooldowns[command]
	if !ok {
		return 0
	}
	until, live := GetIfLive(exp, now)
	if !live {
		return 0
	}
	return until.Sub(now)
}

// SetCooldown records a cooldown expiry for a command, allocating the map on
// first use.
func (u *UserRecord) SetCooldown(command string, until time.Time) {
	if u.Cooldowns == nil {
		u.Cooldowns = make(map[string]time.Time)
	}
	u.Cooldowns[command] = until
}

// PruneCooldowns drops expired cooldown entries. Optional for correctness
// (reads go through GetIfLive), useful to keep persisted records small.
func (u *UserRecord) PruneCooldowns(now time.Time) {
	for cmd, exp := range u.Cooldowns {
		if _, live := GetIfLive(exp, now); !live {
			delete(u.Cooldowns, cmd)
		}
	}
}

// GroupSettings is the per-group defense configuration. The zero value is not
// used directly; DefaultGroupSettings supplies defaults when a group has no
// stored settings yet.
type GroupSettings struct {
	GroupID        string          `json:"group_id"`
	DefenseMode    DefenseMode     `json:"defense_mode"`
	EnabledModules map[string]bool `json:"enabled_modules,omitempty"`
	Protected      bool            `json:"protected"`
	Whitelisted    bool            `json:"whitelisted"`
}

// ModuleEnabled reports whether a detection module is on for this group.
// Modules are on unless explicitly switched off.
func (g *GroupSettings) ModuleEnabled(name string) bool {
	enabled, ok := g.EnabledModules[name]
	if !ok {
		return true
	}
	return enabled
}

// SetModule toggles a detection module for this group.
func (g *GroupSettings) SetModule(name string, enabled bool) {
	if g.EnabledModules == nil {
		g.EnabledModules = make(map[string]bool)
	}
	g.EnabledModules[name] = enabled
}

// DefaultGroupSettings is what a group looks like before anyone configures it:
// normal mode, every module enabled, not protected, not whitelisted.
func DefaultGroupSettings(groupID string) GroupSettings {
	return GroupSettings{
		GroupID:     groupID,
		DefenseMode: ModeNormal,
	}
}

// GetIfLive treats an expiry timestamp at or before now as absent. Every mute
// and cooldown read must pass through here.
func GetIfLive(expiry time.Time, now time.Time) (time.Time, bool) {
	if !expiry.After(now) {
		return time.Time{}, false
	}
	return expiry, true
}

// ModStore persists moderation records. Update methods apply fn to the current
// record under per-key mutual exclusion, so read-modify-write cycles on the
// same user or group never lose updates.
type ModStore interface {
	GetUser(ctx context.Context, userID string) (UserRecord, error)
	UpdateUser(ctx context.Context, userID string, fn func(*UserRecord)) (UserRecord, error)
	GetGroup(ctx context.Context, groupID string) (GroupSettings, error)
	UpdateGroup(ctx context.Context, groupID string, fn func(*GroupSettings)) (GroupSettings, error)
}
