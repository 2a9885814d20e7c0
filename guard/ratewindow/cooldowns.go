package ratewindow

import (
	"context"
	"time"

	"github.com/harbor-social/warden/guard/modstore"
)

// DefaultCooldown applies to any command without an explicit override.
const DefaultCooldown = 3 * time.Second

// Cooldowns answers "how long until this user may run this command again" and
// commits new cooldowns. Expiries live in the user's moderation record so they
// survive restarts; expiry itself is lazy via modstore.GetIfLive.
//
// Role exemptions are the dispatcher's business: callers decide whether to
// consult this at all.
type Cooldowns struct {
	Store     modstore.ModStore
	Default   time.Duration
	Overrides map[string]time.Duration
}

func NewCooldowns(store modstore.ModStore, overrides map[string]time.Duration) *Cooldowns {
	return &Cooldowns{
		Store:     store,
		Default:   DefaultCooldown,
		Overrides: overrides,
	}
}

// Duration returns the configured cooldown for a command.
func (c *Cooldowns) Duration(command string) time.Duration {
	if d, ok := c.Overrides[command]; ok {
		return d
	}
	return c.Default
}

// Remaining returns the time left on a live cooldown, or zero.
func (c *Cooldowns) Remaining(ctx context.Context, userID, command string, now time.Time) (time.Duration, error) {
	u, err := c.Store.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return u.CooldownRemaining(command, now), nil
}

// Commit starts the command's cooldown for the user, pruning any expired
// entries while the record is open.
func (c *Cooldowns) Commit(ctx context.Context, userID, command string, now time.Time) error {
	until := now.Add(c.Duration(command))
	_, err := c.Store.UpdateUser(ctx, userID, func(u *modstore.UserRecord) {
		u.PruneCooldowns(now)
		u.SetCooldown(command, until)
	})
	return err
}
