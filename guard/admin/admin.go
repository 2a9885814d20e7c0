// The operator command set: group configuration, manual moderation, and the
// couple of commands every member may run. Handlers contain no policy of
// their own; they parse, call into the moderation core, and reply.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/harbor-social/warden/guard/auth"
	"github.com/harbor-social/warden/guard/command"
	"github.com/harbor-social/warden/guard/detectors"
	"github.com/harbor-social/warden/guard/engine"
	"github.com/harbor-social/warden/guard/modstore"
	"github.com/harbor-social/warden/transport"
)

// Deps is everything the command handlers reach into.
type Deps struct {
	Logger    *slog.Logger
	Engine    *engine.Engine
	Store     modstore.ModStore
	Auth      *auth.Resolver
	Transport transport.Transport
	StartedAt time.Time
}

var moduleNames = map[string]bool{
	detectors.ModuleFlood:     true,
	detectors.ModuleCharFlood: true,
	detectors.ModuleProfanity: true,
	detectors.ModuleLink:      true,
	detectors.ModuleGeo:       true,
	detectors.ModuleSpam:      true,
}

// Register wires the full command set into a registry. Safe to call again
// after reconfiguration; entries are replaced, not duplicated.
func Register(reg *command.Registry, d Deps) {
	reg.Register(d.setmode())
	reg.Register(d.moduleToggle("enable", true))
	reg.Register(d.moduleToggle("disable", false))
	reg.Register(d.groupFlag("protect", "protection", func(g *modstore.GroupSettings, on bool) { g.Protected = on }))
	reg.Register(d.groupFlag("whitelist", "whitelisting", func(g *modstore.GroupSettings, on bool) { g.Whitelisted = on }))
	reg.Register(d.warn())
	reg.Register(d.unwarn())
	reg.Register(d.mute())
	reg.Register(d.unmute())
	reg.Register(d.blacklist())
	reg.Register(d.ping(reg))
	reg.Register(d.help(reg))
}

// target picks who a moderation command acts on: the quoted message's sender
// when present, otherwise the first argument.
func target(inv *command.Invocation) string {
	if inv.Event.QuotedSender != "" {
		return inv.Event.QuotedSender
	}
	if len(inv.Args) > 0 {
		return inv.Args[0]
	}
	return ""
}

func requireTarget(inv *command.Invocation) error {
	if target(inv) == "" {
		return fmt.Errorf("%w: quote a message or name a user", command.ErrBadArguments)
	}
	return nil
}

func (d Deps) reply(ctx context.Context, inv *command.Invocation, format string, args ...any) error {
	return inv.Reply(ctx, d.Transport, fmt.Sprintf(format, args...))
}

func (d Deps) setmode() *command.Command {
	return &command.Command{
		Name:         "setmode",
		Description:  "set the group defense mode",
		Usage:        "setmode <normal|strict|lockdown>",
		RequiredRole: auth.RoleOwner,
		GroupOnly:    true,
		MinArgs:      1,
		MaxArgs:      1,
		Validate: func(inv *command.Invocation) error {
			if _, ok := modstore.ParseDefenseMode(strings.ToLower(inv.Args[0])); !ok {
				return fmt.Errorf("%w: mode must be normal, strict or lockdown", command.ErrBadArguments)
			}
			return nil
		},
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			mode, _ := modstore.ParseDefenseMode(strings.ToLower(inv.Args[0]))
			_, err := d.Store.UpdateGroup(ctx, inv.GroupID, func(g *modstore.GroupSettings) {
				g.DefenseMode = mode
			})
			if err != nil {
				return fmt.Errorf("updating defense mode: %w", err)
			}
			return d.reply(ctx, inv, "defense mode set to %s", mode)
		},
	}
}

func (d Deps) moduleToggle(name string, enable bool) *command.Command {
	return &command.Command{
		Name:         name,
		Description:  name + " a detection module for this group",
		Usage:        name + " <module>",
		RequiredRole: auth.RoleOwner,
		GroupOnly:    true,
		MinArgs:      1,
		MaxArgs:      1,
		Validate: func(inv *command.Invocation) error {
			if !moduleNames[strings.ToLower(inv.Args[0])] {
				return fmt.Errorf("%w: unknown module %q", command.ErrBadArguments, inv.Args[0])
			}
			return nil
		},
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			module := strings.ToLower(inv.Args[0])
			_, err := d.Store.UpdateGroup(ctx, inv.GroupID, func(g *modstore.GroupSettings) {
				g.SetModule(module, enable)
			})
			if err != nil {
				return fmt.Errorf("toggling module: %w", err)
			}
			state := "disabled"
			if enable {
				state = "enabled"
			}
			return d.reply(ctx, inv, "module %s %s", module, state)
		},
	}
}

func (d Deps) groupFlag(name, noun string, set func(*modstore.GroupSettings, bool)) *command.Command {
	return &command.Command{
		Name:         name,
		Description:  "turn group " + noun + " on or off",
		Usage:        name + " <on|off>",
		RequiredRole: auth.RoleOwner,
		GroupOnly:    true,
		MinArgs:      1,
		MaxArgs:      1,
		Validate:     validateOnOff,
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			on := strings.EqualFold(inv.Args[0], "on")
			_, err := d.Store.UpdateGroup(ctx, inv.GroupID, func(g *modstore.GroupSettings) {
				set(g, on)
			})
			if err != nil {
				return fmt.Errorf("updating group %s: %w", noun, err)
			}
			return d.reply(ctx, inv, "%s %s", noun, inv.Args[0])
		},
	}
}

func validateOnOff(inv *command.Invocation) error {
	switch strings.ToLower(inv.Args[0]) {
	case "on", "off":
		return nil
	}
	return fmt.Errorf("%w: expected on or off", command.ErrBadArguments)
}

func (d Deps) warn() *command.Command {
	return &command.Command{
		Name:         "warn",
		Description:  "warn a user; enough warnings and they are removed",
		Usage:        "warn <user> (or quote their message)",
		RequiredRole: auth.RoleOwner,
		GroupOnly:    true,
		Validate:     requireTarget,
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			who := target(inv)
			res, err := d.Engine.Warn(ctx, inv.GroupID, who)
			if err != nil {
				return err
			}
			if res.Kicked {
				return d.reply(ctx, inv, "%s removed after repeated warnings", who)
			}
			return d.reply(ctx, inv, "%s warned: %d warning(s) on record", who, res.Count)
		},
	}
}

func (d Deps) unwarn() *command.Command {
	return &command.Command{
		Name:         "unwarn",
		Description:  "remove one warning from a user",
		Usage:        "unwarn <user> (or quote their message)",
		RequiredRole: auth.RoleOwner,
		GroupOnly:    true,
		Validate:     requireTarget,
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			who := target(inv)
			count, err := d.Engine.Unwarn(ctx, who)
			if err != nil {
				return err
			}
			return d.reply(ctx, inv, "%s now has %d warning(s)", who, count)
		},
	}
}

func (d Deps) mute() *command.Command {
	return &command.Command{
		Name:         "mute",
		Description:  "mute a user; their messages are deleted until it expires",
		Usage:        "mute <user> [minutes]",
		RequiredRole: auth.RoleOwner,
		GroupOnly:    true,
		Validate: func(inv *command.Invocation) error {
			if err := requireTarget(inv); err != nil {
				return err
			}
			if m := muteMinutesArg(inv); m != "" {
				if n, err := strconv.Atoi(m); err != nil || n <= 0 {
					return fmt.Errorf("%w: minutes must be a positive number", command.ErrBadArguments)
				}
			}
			return nil
		},
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			who := target(inv)
			var dur time.Duration
			if m := muteMinutesArg(inv); m != "" {
				n, _ := strconv.Atoi(m)
				dur = time.Duration(n) * time.Minute
			}
			until, err := d.Engine.Mute(ctx, who, dur)
			if err != nil {
				return err
			}
			return d.reply(ctx, inv, "%s muted until %s", who, until.Format(time.Kitchen))
		},
	}
}

// muteMinutesArg returns the duration argument, which is the first arg when
// the target came from a quote and the second otherwise.
func muteMinutesArg(inv *command.Invocation) string {
	args := inv.Args
	if inv.Event.QuotedSender == "" && len(args) > 0 {
		args = args[1:]
	}
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func (d Deps) unmute() *command.Command {
	return &command.Command{
		Name:         "unmute",
		Description:  "lift a user's mute",
		Usage:        "unmute <user> (or quote their message)",
		RequiredRole: auth.RoleOwner,
		GroupOnly:    true,
		Validate:     requireTarget,
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			who := target(inv)
			if err := d.Engine.Unmute(ctx, who); err != nil {
				return err
			}
			return d.reply(ctx, inv, "%s unmuted", who)
		},
	}
}

func (d Deps) blacklist() *command.Command {
	return &command.Command{
		Name:         "blacklist",
		Aliases:      []string{"bl"},
		Description:  "add or remove a user from the blacklist",
		Usage:        "blacklist <user> <on|off>",
		RequiredRole: auth.RoleOwner,
		Validate: func(inv *command.Invocation) error {
			if err := requireTarget(inv); err != nil {
				return err
			}
			flag := blacklistFlagArg(inv)
			if flag != "on" && flag != "off" {
				return fmt.Errorf("%w: expected on or off", command.ErrBadArguments)
			}
			return nil
		},
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			who := target(inv)
			on := blacklistFlagArg(inv) == "on"
			_, err := d.Store.UpdateUser(ctx, who, func(u *modstore.UserRecord) {
				u.Blacklisted = on
			})
			if err != nil {
				return fmt.Errorf("updating blacklist: %w", err)
			}
			if on {
				return d.reply(ctx, inv, "%s blacklisted", who)
			}
			return d.reply(ctx, inv, "%s removed from the blacklist", who)
		},
	}
}

func blacklistFlagArg(inv *command.Invocation) string {
	args := inv.Args
	if inv.Event.QuotedSender == "" && len(args) > 0 {
		args = args[1:]
	}
	if len(args) > 0 {
		return strings.ToLower(args[0])
	}
	return ""
}

func (d Deps) ping(reg *command.Registry) *command.Command {
	return &command.Command{
		Name:        "ping",
		Description: "check the bot is alive",
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			uptime := time.Since(d.StartedAt).Round(time.Second)
			return d.reply(ctx, inv, "pong (up %s, %d commands)", uptime, len(reg.All()))
		},
	}
}

func (d Deps) help(reg *command.Registry) *command.Command {
	return &command.Command{
		Name:        "help",
		Aliases:     []string{"commands"},
		Description: "list the commands you may use",
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			var b strings.Builder
			b.WriteString("commands:\n")
			for _, c := range reg.All() {
				if c.RequiredRole > inv.Role {
					continue
				}
				fmt.Fprintf(&b, "  %s", c.Name)
				if c.Description != "" {
					fmt.Fprintf(&b, " - %s", c.Description)
				}
				b.WriteString("\n")
			}
			return inv.Reply(ctx, d.Transport, strings.TrimRight(b.String(), "\n"))
		},
	}
}
