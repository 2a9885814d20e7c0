package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/harbor-social/warden/transport"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "warden",
		Usage:   "group chat moderation daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL; omit to run on in-memory stores",
			EnvVars: []string{"WARDEN_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			EnvVars: []string{"WARDEN_LOG_LEVEL"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3989",
			EnvVars: []string{"WARDEN_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "command-prefix",
			Value:   "!",
			EnvVars: []string{"WARDEN_COMMAND_PREFIX"},
		},
		&cli.StringSliceFlag{
			Name:    "author",
			Usage:   "user ID with the author role; repeatable",
			EnvVars: []string{"WARDEN_AUTHORS"},
		},
		&cli.StringSliceFlag{
			Name:    "owner",
			Usage:   "user ID with the owner role; repeatable",
			EnvVars: []string{"WARDEN_OWNERS"},
		},
		&cli.StringSliceFlag{
			Name:    "allow-country-code",
			Usage:   "country calling code whose joiners are accepted; repeatable",
			Value:   cli.NewStringSlice("62"),
			EnvVars: []string{"WARDEN_ALLOW_COUNTRY_CODES"},
		},
		&cli.StringSliceFlag{
			Name:    "allow-id",
			Usage:   "full user ID exempt from the origin check; repeatable",
			EnvVars: []string{"WARDEN_ALLOW_IDS"},
		},
		&cli.StringSliceFlag{
			Name:    "allow-link-domain",
			Usage:   "domain exempt from link detection; repeatable",
			EnvVars: []string{"WARDEN_ALLOW_LINK_DOMAINS"},
		},
		&cli.StringFlag{
			Name:    "audit-webhook-url",
			Usage:   "incoming-webhook URL receiving every moderation action",
			EnvVars: []string{"WARDEN_AUDIT_WEBHOOK_URL"},
		},
		&cli.IntFlag{
			Name:    "max-warnings",
			Usage:   "warnings before a user is removed",
			Value:   3,
			EnvVars: []string{"WARDEN_MAX_WARNINGS"},
		},
		&cli.IntFlag{
			Name:    "mute-minutes",
			Usage:   "default mute duration in minutes",
			Value:   10,
			EnvVars: []string{"WARDEN_MUTE_MINUTES"},
		},
		&cli.IntFlag{
			Name:    "budget-per-minute",
			Usage:   "max command invocations per user per minute",
			Value:   20,
			EnvVars: []string{"WARDEN_BUDGET_PER_MINUTE"},
		},
		&cli.Float64Flag{
			Name:    "send-rate-limit",
			Usage:   "max outbound transport actions per second",
			Value:   4,
			EnvVars: []string{"WARDEN_SEND_RATE_LIMIT"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLogLevel(cctx.String("log-level")),
		}))
		slog.SetDefault(logger)

		// a real deployment plugs its chat session client in here; the
		// console transport reads events from stdin for local runs
		console := NewConsoleTransport(logger, "warden")
		tr := transport.NewLimited(console, cctx.Float64("send-rate-limit"), 3)

		srv, err := NewServer(Config{
			Logger:              logger,
			Transport:           tr,
			RedisURL:            cctx.String("redis-url"),
			WebhookURL:          cctx.String("audit-webhook-url"),
			CommandPrefix:       cctx.String("command-prefix"),
			Authors:             cctx.StringSlice("author"),
			Owners:              cctx.StringSlice("owner"),
			AllowedCountryCodes: cctx.StringSlice("allow-country-code"),
			AllowedIDs:          cctx.StringSlice("allow-id"),
			AllowedLinkDomains:  cctx.StringSlice("allow-link-domain"),
			MaxWarnings:         cctx.Int("max-warnings"),
			MuteDuration:        time.Duration(cctx.Int("mute-minutes")) * time.Minute,
			BudgetLimit:         cctx.Int("budget-per-minute"),
			BudgetSpan:          time.Minute,
		})
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		events := console.ReadEvents(ctx, os.Stdin)
		if err := srv.Run(ctx, events); err != nil {
			return fmt.Errorf("failed to run moderation service: %w", err)
		}
		return nil
	},
}

func parseLogLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
