package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/harbor-social/warden/guard/auth"
	"github.com/harbor-social/warden/guard/countstore"
	"github.com/harbor-social/warden/guard/ratewindow"
	"github.com/harbor-social/warden/transport"
)

// Dispatcher runs the pipeline around every command invocation, in a fixed
// order: authorization, cooldown, validation, request budget, then the
// handler. The cooldown only commits after the handler succeeds, so a refused
// or failed invocation never costs the user their cooldown.
//
// Owners and the author are exempt from cooldowns and the request budget, not
// from validation.
type Dispatcher struct {
	Logger    *slog.Logger
	Registry  *Registry
	Auth      *auth.Resolver
	Cooldowns *ratewindow.Cooldowns
	Budget    *ratewindow.Budget
	Transport transport.Transport
	// Counters is optional; when set, successful invocations increment a
	// per-command usage counter.
	Counters countstore.CountStore
}

// Dispatch handles one inbound command event. The returned error describes
// why the invocation was refused or failed; user-facing replies have already
// been sent by then.
func (d *Dispatcher) Dispatch(ctx context.Context, evt transport.MessageEvent) error {
	if !evt.IsCommand {
		return nil
	}
	start := time.Now()
	outcome := "ok"
	// metric labels carry the canonical registered name only; arbitrary input
	// must not mint new series
	cmdLabel := "unknown"
	defer func() {
		commandHandleDuration.WithLabelValues(cmdLabel).Observe(time.Since(start).Seconds())
		commandHandleCount.WithLabelValues(cmdLabel, outcome).Inc()
	}()

	logger := d.Logger.With("command", evt.Command, "user", evt.Sender, "chat", evt.From)

	cmd := d.Registry.Resolve(evt.Command)
	if cmd == nil {
		outcome = "unknown"
		logger.Debug("unknown command")
		return fmt.Errorf("%w: %s", ErrUnknownCommand, evt.Command)
	}
	cmdLabel = cmd.Name

	inv := &Invocation{
		Event:   evt,
		UserID:  evt.Sender,
		GroupID: evt.GroupID,
		Args:    evt.Args,
	}

	dec := d.Auth.Authorize(ctx, evt.Sender, cmd.RequiredRole)
	if !dec.Allowed {
		outcome = "denied"
		d.reply(ctx, logger, inv, denialText(dec.Reason))
		return fmt.Errorf("%w: %s", ErrNotAuthorized, dec.Reason)
	}
	inv.Role = dec.Role
	exempt := dec.Role >= auth.RoleOwner

	now := time.Now()
	if !exempt {
		remaining, err := d.Cooldowns.Remaining(ctx, evt.Sender, cmd.Name, now)
		if err != nil {
			logger.Warn("reading cooldown state", "err", err)
		} else if remaining > 0 {
			outcome = "cooldown"
			d.reply(ctx, logger, inv, fmt.Sprintf("slow down, try again in %s", remaining.Round(time.Second)))
			return &CooldownError{Command: cmd.Name, Remaining: remaining}
		}
	}

	if err := d.validate(cmd, inv); err != nil {
		outcome = "invalid"
		text := err.Error()
		if cmd.Usage != "" {
			text = fmt.Sprintf("%s\nusage: %s", text, cmd.Usage)
		}
		d.reply(ctx, logger, inv, text)
		return err
	}

	if !exempt && !d.Budget.Allow(evt.Sender, now) {
		outcome = "budget"
		d.reply(ctx, logger, inv, "too many requests, give it a minute")
		return ErrBudgetExhausted
	}

	if err := d.runHandler(ctx, cmd, inv); err != nil {
		outcome = "error"
		logger.Error("command failed", "err", err)
		d.reply(ctx, logger, inv, "something went wrong running that command")
		return err
	}

	if !exempt {
		if err := d.Cooldowns.Commit(ctx, evt.Sender, cmd.Name, time.Now()); err != nil {
			logger.Warn("committing cooldown", "err", err)
		}
	}
	if d.Counters != nil {
		if err := d.Counters.Increment(ctx, "command", cmd.Name); err != nil {
			logger.Warn("incrementing usage counter", "err", err)
		}
	}
	logger.Info("command handled", "role", dec.Role.String())
	return nil
}

// denialText maps an authorization denial to the single explanatory message
// the caller sees.
func denialText(reason string) string {
	switch reason {
	case auth.ReasonDisabled:
		return "your access to this bot is disabled"
	case auth.ReasonBlacklisted:
		return "you are blacklisted from using commands"
	case auth.ReasonRestrictedMode:
		return "the bot is currently in restricted mode"
	default:
		return "you are not allowed to use this command"
	}
}

// validate applies the descriptor's shape checks then its custom rule.
func (d *Dispatcher) validate(cmd *Command, inv *Invocation) error {
	if cmd.GroupOnly && !inv.Event.IsGroup {
		return ErrGroupOnly
	}
	if cmd.RequireQuoted && inv.Event.QuotedSender == "" {
		return ErrQuotedRequired
	}
	if len(inv.Args) < cmd.MinArgs {
		return fmt.Errorf("%w: expected at least %d argument(s)", ErrBadArguments, cmd.MinArgs)
	}
	if cmd.MaxArgs > 0 && len(inv.Args) > cmd.MaxArgs {
		return fmt.Errorf("%w: expected at most %d argument(s)", ErrBadArguments, cmd.MaxArgs)
	}
	if cmd.Validate != nil {
		return cmd.Validate(inv)
	}
	return nil
}

// runHandler contains a panicking handler so one bad command can't take the
// event loop down.
func (d *Dispatcher) runHandler(ctx context.Context, cmd *Command, inv *Invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			commandPanicCount.WithLabelValues(cmd.Name).Inc()
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return cmd.Handler(ctx, inv)
}

func (d *Dispatcher) reply(ctx context.Context, logger *slog.Logger, inv *Invocation, text string) {
	if err := inv.Reply(ctx, d.Transport, text); err != nil {
		logger.Warn("sending command reply", "err", err)
	}
}
