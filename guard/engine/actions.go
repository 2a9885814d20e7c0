package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/harbor-social/warden/guard/detectors"
	"github.com/harbor-social/warden/guard/modstore"
)

// Action is what the engine does about a violation.
type Action string

const (
	ActionNone Action = "none"
	ActionWarn Action = "warn"
	ActionMute Action = "mute"
	ActionKick Action = "kick"
)

// ActionFor maps (defense mode, severity) to an action. Pure function;
// critical severity forces a kick no matter the mode.
func ActionFor(mode modstore.DefenseMode, sev detectors.Severity) Action {
	if sev == detectors.SeverityCritical {
		return ActionKick
	}
	switch mode {
	case modstore.ModeStrict:
		if sev == detectors.SeverityLow {
			return ActionWarn
		}
		return ActionMute
	case modstore.ModeLockdown:
		if sev == detectors.SeverityLow {
			return ActionWarn
		}
		return ActionKick
	default:
		// normal mode, and the safe reading of an unknown mode
		return ActionWarn
	}
}

// WarnResult reports the outcome of one applied warning.
type WarnResult struct {
	// Count is the warning count after this warning (zero when Kicked).
	Count int
	// Kicked is set when this warning reached the maximum and converted into
	// a kick, resetting the count.
	Kicked bool
}

// Warn applies one warning to a user. This is the single escalation path:
// both the defense pipeline and the warn command go through here, so the
// reset-and-kick condition can't drift between them. When the warning count
// reaches the maximum the count resets to zero and the user is kicked from
// the group.
func (e *Engine) Warn(ctx context.Context, groupID, userID string) (WarnResult, error) {
	var res WarnResult
	_, err := e.Store.UpdateUser(ctx, userID, func(u *modstore.UserRecord) {
		u.WarningCount++
		if u.WarningCount >= e.maxWarnings() {
			u.WarningCount = 0
			res.Kicked = true
		}
		res.Count = u.WarningCount
	})
	if err != nil {
		return WarnResult{}, fmt.Errorf("applying warning: %w", err)
	}
	if res.Kicked {
		if err := e.Kick(ctx, groupID, userID); err != nil {
			e.Logger.Error("escalation kick failed", "user", userID, "group", groupID, "err", err)
		}
	}
	return res, nil
}

// Unwarn removes one warning, flooring at zero. Policy choice: decrement, not
// reset, so partial forgiveness is possible.
func (e *Engine) Unwarn(ctx context.Context, userID string) (int, error) {
	u, err := e.Store.UpdateUser(ctx, userID, func(u *modstore.UserRecord) {
		if u.WarningCount > 0 {
			u.WarningCount--
		}
	})
	if err != nil {
		return 0, fmt.Errorf("removing warning: %w", err)
	}
	return u.WarningCount, nil
}

// Mute silences a user until now + the configured duration. Enforcement is
// lazy: the engine deletes messages from muted users as they arrive.
func (e *Engine) Mute(ctx context.Context, userID string, d time.Duration) (time.Time, error) {
	if d <= 0 {
		d = e.muteDuration()
	}
	until := time.Now().Add(d)
	_, err := e.Store.UpdateUser(ctx, userID, func(u *modstore.UserRecord) {
		u.MuteUntil = &until
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("applying mute: %w", err)
	}
	return until, nil
}

// Unmute clears a user's mute.
func (e *Engine) Unmute(ctx context.Context, userID string) error {
	_, err := e.Store.UpdateUser(ctx, userID, func(u *modstore.UserRecord) {
		u.MuteUntil = nil
	})
	if err != nil {
		return fmt.Errorf("clearing mute: %w", err)
	}
	return nil
}

// Kick removes a participant from a group. The roster cache is consulted
// first so a user who already left doesn't produce a spurious removal call;
// a cache failure just means we kick unconditionally.
func (e *Engine) Kick(ctx context.Context, groupID, userID string) error {
	if present, known := e.rosterHas(ctx, groupID, userID); known && !present {
		e.Logger.Debug("kick target no longer in group", "user", userID, "group", groupID)
		return nil
	}
	if err := e.Transport.RemoveParticipants(ctx, groupID, []string{userID}); err != nil {
		return fmt.Errorf("removing participant: %w", err)
	}
	e.purgeRoster(ctx, groupID)
	return nil
}
