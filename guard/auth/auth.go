// Role resolution and command authorization. Roles are global: the author and
// owner lists are process-wide configuration, not per-group state.
package auth

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/harbor-social/warden/guard/modstore"
)

// Role is ordered; higher values may do everything lower values may.
type Role int

const (
	RoleMember Role = 1
	RoleOwner  Role = 2
	RoleAuthor Role = 3
)

func (r Role) String() string {
	switch r {
	case RoleMember:
		return "member"
	case RoleOwner:
		return "owner"
	case RoleAuthor:
		return "author"
	}
	return "unknown"
}

// Denial reasons, stable strings for logs and user-facing messages.
const (
	ReasonDisabled         = "disabled"
	ReasonBlacklisted      = "blacklisted"
	ReasonRestrictedMode   = "restricted_mode"
	ReasonInsufficientRole = "insufficient_role"
)

// Decision is the outcome of one authorization check.
type Decision struct {
	Allowed bool
	Reason  string
	Role    Role
}

// Resolver derives a user's effective role and decides whether they may run
// an operation requiring a given role. Checks run in a fixed order and stop
// at the first failure; every call is logged either way.
type Resolver struct {
	Store  modstore.ModStore
	Logger *slog.Logger

	mu      sync.RWMutex
	authors map[string]bool
	owners  map[string]bool

	// restricted switches the process to author-only operation
	restricted atomic.Bool
}

func NewResolver(store modstore.ModStore, logger *slog.Logger, authors, owners []string) *Resolver {
	r := &Resolver{
		Store:   store,
		Logger:  logger,
		authors: make(map[string]bool, len(authors)),
		owners:  make(map[string]bool, len(owners)),
	}
	for _, id := range authors {
		r.authors[id] = true
	}
	for _, id := range owners {
		r.owners[id] = true
	}
	return r
}

// SetRestricted toggles author-only mode for the whole process.
func (r *Resolver) SetRestricted(on bool) {
	r.restricted.Store(on)
}

// Restricted reports whether author-only mode is on.
func (r *Resolver) Restricted() bool {
	return r.restricted.Load()
}

// GrantOwner adds a user to the process-wide owner set.
func (r *Resolver) GrantOwner(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[userID] = true
}

// RevokeOwner removes a user from the owner set.
func (r *Resolver) RevokeOwner(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.owners, userID)
}

// EffectiveRole returns the highest role the user holds.
func (r *Resolver) EffectiveRole(userID string) Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch {
	case r.authors[userID]:
		return RoleAuthor
	case r.owners[userID]:
		return RoleOwner
	}
	return RoleMember
}

// Authorize runs the ordered checks: disabled, blacklisted, restricted mode,
// then role comparison. The returned Decision always carries the effective
// role, even on denial.
func (r *Resolver) Authorize(ctx context.Context, userID string, required Role) Decision {
	dec := r.authorize(ctx, userID, required)

	logger := r.Logger.With("user", userID, "required", required.String(), "role", dec.Role.String())
	if dec.Allowed {
		logger.Debug("authorization granted")
	} else {
		logger.Info("authorization denied", "reason", dec.Reason)
	}
	return dec
}

func (r *Resolver) authorize(ctx context.Context, userID string, required Role) Decision {
	role := r.EffectiveRole(userID)

	u, err := r.Store.GetUser(ctx, userID)
	if err != nil {
		// store trouble must not lock the author out of their own bot
		r.Logger.Warn("reading user record for authorization", "user", userID, "err", err)
	} else {
		if u.Disabled {
			return Decision{Reason: ReasonDisabled, Role: role}
		}
		if u.Blacklisted {
			return Decision{Reason: ReasonBlacklisted, Role: role}
		}
	}

	if r.Restricted() && role < RoleAuthor {
		return Decision{Reason: ReasonRestrictedMode, Role: role}
	}
	if role < required {
		return Decision{Reason: ReasonInsufficientRole, Role: role}
	}
	return Decision{Allowed: true, Role: role}
}
