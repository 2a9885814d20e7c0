package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harbor-social/warden/guard/auth"
	"github.com/harbor-social/warden/guard/countstore"
	"github.com/harbor-social/warden/guard/modstore"
	"github.com/harbor-social/warden/guard/ratewindow"
	"github.com/harbor-social/warden/transport"
)

func TestRegistryResolvesNamesAndAliases(t *testing.T) {
	assert := assert.New(t)
	reg := NewRegistry()
	reg.Register(&Command{Name: "warn", Aliases: []string{"w"}})
	reg.Register(&Command{Name: "ping", Aliases: []string{"p", "pong"}})

	assert.Equal("warn", reg.Resolve("warn").Name)
	assert.Equal("warn", reg.Resolve("WARN").Name)
	assert.Equal("warn", reg.Resolve("w").Name)
	assert.Equal("ping", reg.Resolve("pong").Name)
	assert.Nil(reg.Resolve("nope"))
}

func TestRegistryReRegisterReplaces(t *testing.T) {
	assert := assert.New(t)
	reg := NewRegistry()
	reg.Register(&Command{Name: "ping", Aliases: []string{"p"}, Description: "v1"})
	reg.Register(&Command{Name: "ping", Aliases: []string{"pong"}, Description: "v2"})

	assert.Equal("v2", reg.Resolve("ping").Description)
	assert.Equal("v2", reg.Resolve("pong").Description)
	assert.Nil(reg.Resolve("p"))
	assert.Len(reg.All(), 1)
}

func TestRegistryAliasNeverHijacks(t *testing.T) {
	assert := assert.New(t)
	reg := NewRegistry()
	reg.Register(&Command{Name: "warn"})
	reg.Register(&Command{Name: "mute", Aliases: []string{"warn", "m"}})

	assert.Equal("warn", reg.Resolve("warn").Name)
	assert.Equal("mute", reg.Resolve("m").Name)
}

func TestRegistryAllSorted(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Command{Name: "warn"})
	reg.Register(&Command{Name: "ping"})
	reg.Register(&Command{Name: "help"})

	var names []string
	for _, c := range reg.All() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"help", "ping", "warn"}, names)
}

type dispatchFixture struct {
	store *modstore.MemModStore
	fake  *transport.FakeTransport
	disp  *Dispatcher
}

func newDispatchFixture() *dispatchFixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := modstore.NewMemModStore()
	fake := transport.NewFakeTransport("warden-self")
	return &dispatchFixture{
		store: store,
		fake:  fake,
		disp: &Dispatcher{
			Logger:    logger,
			Registry:  NewRegistry(),
			Auth:      auth.NewResolver(store, logger, []string{"author-1"}, []string{"owner-1"}),
			Cooldowns: ratewindow.NewCooldowns(store, nil),
			Budget:    ratewindow.NewBudget(30, time.Minute),
			Transport: fake,
			Counters:  countstore.NewMemCountStore(),
		},
	}
}

func cmdEvent(sender, name string, args ...string) transport.MessageEvent {
	return transport.MessageEvent{
		From:      "g1",
		Sender:    sender,
		IsGroup:   true,
		GroupID:   "g1",
		IsCommand: true,
		Command:   name,
		Args:      args,
	}
}

func TestDispatchRunsHandler(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fix := newDispatchFixture()

	var gotRole auth.Role
	fix.disp.Registry.Register(&Command{
		Name: "ping",
		Handler: func(ctx context.Context, inv *Invocation) error {
			gotRole = inv.Role
			return inv.Reply(ctx, fix.fake, "pong")
		},
	})

	err := fix.disp.Dispatch(ctx, cmdEvent("alice", "ping"))
	assert.NoError(err)
	assert.Equal(auth.RoleMember, gotRole)
	replies := fix.fake.SentTo("g1")
	require.Len(t, replies, 1)
	assert.Equal("pong", replies[0].Content)

	used, err := fix.disp.Counters.GetCount(ctx, "command", "ping", countstore.PeriodTotal)
	assert.NoError(err)
	assert.Equal(1, used)
}

func TestDispatchIgnoresNonCommands(t *testing.T) {
	fix := newDispatchFixture()
	called := false
	fix.disp.Registry.Register(&Command{
		Name:    "ping",
		Handler: func(context.Context, *Invocation) error { called = true; return nil },
	})

	evt := cmdEvent("alice", "ping")
	evt.IsCommand = false
	assert.NoError(t, fix.disp.Dispatch(context.Background(), evt))
	assert.False(t, called)
}

func TestDispatchUnknownCommand(t *testing.T) {
	fix := newDispatchFixture()
	err := fix.disp.Dispatch(context.Background(), cmdEvent("alice", "frobnicate"))
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestDispatchAuthBeforeEverything(t *testing.T) {
	assert := assert.New(t)
	fix := newDispatchFixture()
	called := false
	fix.disp.Registry.Register(&Command{
		Name:         "setmode",
		RequiredRole: auth.RoleOwner,
		MinArgs:      1,
		Handler:      func(context.Context, *Invocation) error { called = true; return nil },
	})

	// wrong args AND wrong role: the role denial must win
	err := fix.disp.Dispatch(context.Background(), cmdEvent("alice", "setmode"))
	assert.ErrorIs(err, ErrNotAuthorized)
	assert.False(called)
	replies := fix.fake.SentTo("g1")
	require.Len(t, replies, 1)
	assert.Contains(replies[0].Content, "not allowed")
}

func TestDispatchBlacklistedGetsExplanation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fix := newDispatchFixture()
	fix.disp.Registry.Register(&Command{
		Name:    "ping",
		Handler: func(context.Context, *Invocation) error { return nil },
	})
	_, err := fix.store.UpdateUser(ctx, "mallory", func(u *modstore.UserRecord) {
		u.Blacklisted = true
	})
	require.NoError(t, err)

	err = fix.disp.Dispatch(ctx, cmdEvent("mallory", "ping"))
	assert.ErrorIs(err, ErrNotAuthorized)
	replies := fix.fake.SentTo("g1")
	require.Len(t, replies, 1)
	assert.Contains(replies[0].Content, "blacklisted")
}

func TestDispatchCooldownBlocksSecondCall(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fix := newDispatchFixture()
	fix.disp.Registry.Register(&Command{
		Name:    "ping",
		Handler: func(context.Context, *Invocation) error { return nil },
	})

	assert.NoError(fix.disp.Dispatch(ctx, cmdEvent("alice", "ping")))

	err := fix.disp.Dispatch(ctx, cmdEvent("alice", "ping"))
	assert.ErrorIs(err, ErrOnCooldown)
	var ce *CooldownError
	require.ErrorAs(t, err, &ce)
	assert.Greater(ce.Remaining, time.Duration(0))
}

func TestDispatchOwnerExemptFromCooldown(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fix := newDispatchFixture()
	calls := 0
	fix.disp.Registry.Register(&Command{
		Name:    "ping",
		Handler: func(context.Context, *Invocation) error { calls++; return nil },
	})

	for i := 0; i < 5; i++ {
		assert.NoError(fix.disp.Dispatch(ctx, cmdEvent("owner-1", "ping")))
	}
	assert.Equal(5, calls)
}

func TestDispatchFailedHandlerDoesNotCommitCooldown(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fix := newDispatchFixture()
	boom := errors.New("storage offline")
	fix.disp.Registry.Register(&Command{
		Name:    "ping",
		Handler: func(context.Context, *Invocation) error { return boom },
	})

	assert.ErrorIs(fix.disp.Dispatch(ctx, cmdEvent("alice", "ping")), boom)
	// the retry reaches the handler again instead of hitting the cooldown gate
	assert.ErrorIs(fix.disp.Dispatch(ctx, cmdEvent("alice", "ping")), boom)
}

func TestDispatchValidation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fix := newDispatchFixture()
	fix.disp.Registry.Register(&Command{
		Name:    "warn",
		MinArgs: 1,
		MaxArgs: 2,
		Usage:   "warn <user> [reason]",
		Handler: func(context.Context, *Invocation) error { return nil },
	})
	fix.disp.Registry.Register(&Command{
		Name:      "setmode",
		GroupOnly: true,
		Handler:   func(context.Context, *Invocation) error { return nil },
	})
	fix.disp.Registry.Register(&Command{
		Name:          "muteq",
		RequireQuoted: true,
		Handler:       func(context.Context, *Invocation) error { return nil },
	})

	err := fix.disp.Dispatch(ctx, cmdEvent("alice", "warn"))
	assert.ErrorIs(err, ErrBadArguments)
	replies := fix.fake.SentTo("g1")
	require.Len(t, replies, 1)
	assert.Contains(replies[0].Content, "warn <user> [reason]")

	err = fix.disp.Dispatch(ctx, cmdEvent("bob", "warn", "a", "b", "c"))
	assert.ErrorIs(err, ErrBadArguments)

	dm := cmdEvent("carol", "setmode")
	dm.IsGroup = false
	dm.GroupID = ""
	assert.ErrorIs(fix.disp.Dispatch(ctx, dm), ErrGroupOnly)

	assert.ErrorIs(fix.disp.Dispatch(ctx, cmdEvent("dave", "muteq")), ErrQuotedRequired)

	quoted := cmdEvent("erin", "muteq")
	quoted.QuotedSender = "mallory"
	assert.NoError(fix.disp.Dispatch(ctx, quoted))
}

func TestDispatchCustomValidate(t *testing.T) {
	assert := assert.New(t)
	fix := newDispatchFixture()
	bad := errors.New("mode must be normal, strict or lockdown")
	fix.disp.Registry.Register(&Command{
		Name:    "setmode",
		MinArgs: 1,
		Validate: func(inv *Invocation) error {
			if inv.Args[0] != "strict" {
				return bad
			}
			return nil
		},
		Handler: func(context.Context, *Invocation) error { return nil },
	})

	assert.ErrorIs(fix.disp.Dispatch(context.Background(), cmdEvent("alice", "setmode", "sideways")), bad)
	assert.NoError(fix.disp.Dispatch(context.Background(), cmdEvent("bob", "setmode", "strict")))
}

func TestDispatchBudgetExhaustion(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fix := newDispatchFixture()
	// no cooldown so the budget gate is what trips
	fix.disp.Cooldowns = &ratewindow.Cooldowns{Store: fix.store}
	fix.disp.Budget = ratewindow.NewBudget(2, time.Minute)
	fix.disp.Registry.Register(&Command{
		Name:    "ping",
		Handler: func(context.Context, *Invocation) error { return nil },
	})

	assert.NoError(fix.disp.Dispatch(ctx, cmdEvent("alice", "ping")))
	assert.NoError(fix.disp.Dispatch(ctx, cmdEvent("alice", "ping")))
	assert.ErrorIs(fix.disp.Dispatch(ctx, cmdEvent("alice", "ping")), ErrBudgetExhausted)

	// per-user budgets: another member is unaffected
	assert.NoError(fix.disp.Dispatch(ctx, cmdEvent("bob", "ping")))
}

func TestDispatchMetricsBoundedByRegisteredNames(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fix := newDispatchFixture()

	// a burst of distinct unregistered names must all land on the one
	// "unknown" label, never on the attacker-chosen strings
	for i := 0; i < 50; i++ {
		err := fix.disp.Dispatch(ctx, cmdEvent("alice", fmt.Sprintf("zzz-unregistered-%d", i)))
		assert.ErrorIs(err, ErrUnknownCommand)
	}

	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	sawUnknown := false
	for _, mf := range mfs {
		name := mf.GetName()
		if name != "warden_command_handled" && name != "warden_command_duration_sec" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() != "command" {
					continue
				}
				assert.NotContains(lp.GetValue(), "zzz-unregistered")
				if lp.GetValue() == "unknown" {
					sawUnknown = true
				}
			}
		}
	}
	assert.True(sawUnknown)
}

func TestDispatchHandlerPanicContained(t *testing.T) {
	assert := assert.New(t)
	fix := newDispatchFixture()
	fix.disp.Registry.Register(&Command{
		Name:    "ping",
		Handler: func(context.Context, *Invocation) error { panic("handler exploded") },
	})

	err := fix.disp.Dispatch(context.Background(), cmdEvent("alice", "ping"))
	require.Error(t, err)
	assert.Contains(err.Error(), "panic")
}
