package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harbor-social/warden/guard/countstore"
	"github.com/harbor-social/warden/guard/detectors"
	"github.com/harbor-social/warden/guard/modstore"
	"github.com/harbor-social/warden/transport"
)

func protectGroup(t *testing.T, eng *Engine, groupID string) {
	t.Helper()
	_, err := eng.Store.UpdateGroup(context.Background(), groupID, func(g *modstore.GroupSettings) {
		g.Protected = true
	})
	require.NoError(t, err)
}

func seedRoster(eng *Engine, groupID string, userIDs ...string) {
	fake := eng.Transport.(*transport.FakeTransport)
	for _, id := range userIDs {
		fake.Rosters[groupID] = append(fake.Rosters[groupID], transport.Participant{ID: id})
	}
}

func groupMsg(sender, groupID, text string) transport.MessageEvent {
	return transport.MessageEvent{
		From:    groupID,
		Sender:  sender,
		IsGroup: true,
		GroupID: groupID,
		Text:    text,
		Ref:     transport.MessageRef{ID: "msg-" + sender, ChatID: groupID, Sender: sender},
	}
}

func TestCharacterFloodWarns(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	fake := eng.Transport.(*transport.FakeTransport)
	protectGroup(t, eng, "g1")
	seedRoster(eng, "g1", "alice")

	blocked, err := eng.ProcessMessage(ctx, groupMsg("alice", "g1", strings.Repeat("a", 60)))
	assert.NoError(err)
	assert.True(blocked)

	assert.Len(fake.Deleted, 1)
	notices := fake.SentTo("g1")
	require.Len(t, notices, 1)
	assert.Contains(notices[0].Content, "1/3")

	u, err := eng.Store.GetUser(ctx, "alice")
	assert.NoError(err)
	assert.Equal(1, u.WarningCount)
	assert.Empty(fake.Removed["g1"])
}

func TestThirdWarningKicksAndResets(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	fake := eng.Transport.(*transport.FakeTransport)
	protectGroup(t, eng, "g1")
	seedRoster(eng, "g1", "alice")

	for i, c := range []string{"a", "b", "c"} {
		blocked, err := eng.ProcessMessage(ctx, groupMsg("alice", "g1", strings.Repeat(c, 60)))
		assert.NoError(err)
		assert.True(blocked, "message %d", i)
	}

	u, err := eng.Store.GetUser(ctx, "alice")
	assert.NoError(err)
	assert.Equal(0, u.WarningCount)
	assert.Equal([]string{"alice"}, fake.Removed["g1"])

	notices := fake.SentTo("g1")
	require.Len(t, notices, 3)
	assert.Contains(notices[2].Content, "removed")
}

func TestDetectorPriorityOrder(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	protectGroup(t, eng, "g1")
	seedRoster(eng, "g1", "alice")

	// long enough to trip the length check, which runs before profanity
	text := strings.Repeat("word ", 250) + "fuck"
	blocked, err := eng.ProcessMessage(ctx, groupMsg("alice", "g1", text))
	assert.NoError(err)
	assert.True(blocked)

	floods, err := eng.Counters.GetCount(ctx, detectors.ModuleFlood, "alice", countstore.PeriodTotal)
	assert.NoError(err)
	assert.Equal(1, floods)
	profane, err := eng.Counters.GetCount(ctx, detectors.ModuleProfanity, "alice", countstore.PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, profane)
}

func TestStrictModeMutesThenDropsSilently(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	fake := eng.Transport.(*transport.FakeTransport)
	protectGroup(t, eng, "g1")
	_, err := eng.Store.UpdateGroup(ctx, "g1", func(g *modstore.GroupSettings) {
		g.DefenseMode = modstore.ModeStrict
	})
	require.NoError(t, err)

	blocked, err := eng.ProcessMessage(ctx, groupMsg("alice", "g1", "join here https://bit.ly/abc123"))
	assert.NoError(err)
	assert.True(blocked)

	u, err := eng.Store.GetUser(ctx, "alice")
	assert.NoError(err)
	require.NotNil(t, u.MuteUntil)
	assert.True(u.Muted(time.Now()))
	notices := fake.SentTo("g1")
	require.Len(t, notices, 1)
	assert.Contains(notices[0].Content, "muted")

	// while muted, messages are dropped with no further notices
	blocked, err = eng.ProcessMessage(ctx, groupMsg("alice", "g1", "a perfectly fine message"))
	assert.NoError(err)
	assert.True(blocked)
	assert.Len(fake.Deleted, 2)
	assert.Len(fake.SentTo("g1"), 1)
}

func TestBlacklistedUserDroppedSilently(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	fake := eng.Transport.(*transport.FakeTransport)
	protectGroup(t, eng, "g1")
	_, err := eng.Store.UpdateUser(ctx, "mallory", func(u *modstore.UserRecord) {
		u.Blacklisted = true
	})
	require.NoError(t, err)

	blocked, err := eng.ProcessMessage(ctx, groupMsg("mallory", "g1", "hello"))
	assert.NoError(err)
	assert.True(blocked)
	assert.Len(fake.Deleted, 1)
	assert.Empty(fake.Sent)
}

func TestElevatedRolesExempt(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	fake := eng.Transport.(*transport.FakeTransport)
	protectGroup(t, eng, "g1")

	for _, sender := range []string{"owner-1", "author-1", "warden-self"} {
		blocked, err := eng.ProcessMessage(ctx, groupMsg(sender, "g1", strings.Repeat("a", 60)))
		assert.NoError(err)
		assert.False(blocked, "sender %s", sender)
	}
	assert.Empty(fake.Deleted)
}

func TestUnprotectedGroupIgnored(t *testing.T) {
	assert := assert.New(t)
	eng := EngineTestFixture()
	fake := eng.Transport.(*transport.FakeTransport)

	blocked, err := eng.ProcessMessage(context.Background(), groupMsg("alice", "g1", strings.Repeat("a", 60)))
	assert.NoError(err)
	assert.False(blocked)
	assert.Empty(fake.Deleted)
}

func TestDisabledUserIgnored(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	fake := eng.Transport.(*transport.FakeTransport)
	protectGroup(t, eng, "g1")
	_, err := eng.Store.UpdateUser(ctx, "alice", func(u *modstore.UserRecord) {
		u.Disabled = true
	})
	require.NoError(t, err)

	blocked, err := eng.ProcessMessage(ctx, groupMsg("alice", "g1", strings.Repeat("a", 60)))
	assert.NoError(err)
	assert.False(blocked)
	assert.Empty(fake.Deleted)
}

func TestModuleToggleDisablesDetection(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	protectGroup(t, eng, "g1")
	_, err := eng.Store.UpdateGroup(ctx, "g1", func(g *modstore.GroupSettings) {
		g.SetModule(detectors.ModuleCharFlood, false)
		g.SetModule(detectors.ModuleSpam, false)
	})
	require.NoError(t, err)

	blocked, err := eng.ProcessMessage(ctx, groupMsg("alice", "g1", strings.Repeat("a", 60)))
	assert.NoError(err)
	assert.False(blocked)
}

func TestDeleteFailureStillModerates(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	fake := eng.Transport.(*transport.FakeTransport)
	fake.FailDelete = errors.New("message already gone")
	protectGroup(t, eng, "g1")

	blocked, err := eng.ProcessMessage(ctx, groupMsg("alice", "g1", strings.Repeat("a", 60)))
	assert.NoError(err)
	assert.True(blocked)

	u, err := eng.Store.GetUser(ctx, "alice")
	assert.NoError(err)
	assert.Equal(1, u.WarningCount)
	require.Len(t, fake.SentTo("g1"), 1)
}

type panicDetector struct{}

func (panicDetector) Name() string { return "boom" }
func (panicDetector) Detect(detectors.Input) detectors.Verdict {
	panic("detector exploded")
}
func (panicDetector) IsEnabledForGroup(context.Context, string) bool { return true }

func TestDetectorPanicFailsOpen(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	fake := eng.Transport.(*transport.FakeTransport)
	eng.Detectors = append([]detectors.Detector{panicDetector{}}, eng.Detectors...)
	protectGroup(t, eng, "g1")

	blocked, err := eng.ProcessMessage(ctx, groupMsg("alice", "g1", "an ordinary message"))
	assert.NoError(err)
	assert.False(blocked)
	assert.Empty(fake.Deleted)
}

func TestDuplicateSpamDetected(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	protectGroup(t, eng, "g1")
	seedRoster(eng, "g1", "alice")

	for i := 0; i < 2; i++ {
		blocked, err := eng.ProcessMessage(ctx, groupMsg("alice", "g1", "buy my stuff"))
		assert.NoError(err)
		assert.False(blocked, "message %d", i)
	}
	blocked, err := eng.ProcessMessage(ctx, groupMsg("alice", "g1", "buy my stuff"))
	assert.NoError(err)
	assert.True(blocked)

	n, err := eng.Counters.GetCount(ctx, detectors.ModuleSpam, "alice", countstore.PeriodTotal)
	assert.NoError(err)
	assert.Equal(1, n)
}

func TestJoinFromBlockedRegionKicked(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	fake := eng.Transport.(*transport.FakeTransport)
	protectGroup(t, eng, "g1")
	joiner := "2348012345678"
	seedRoster(eng, "g1", joiner)

	blocked, err := eng.ProcessJoin(ctx, "g1", joiner)
	assert.NoError(err)
	assert.True(blocked)
	assert.Equal([]string{joiner}, fake.Removed["g1"])

	notices := fake.SentTo("g1")
	require.Len(t, notices, 1)
	assert.Contains(notices[0].Content, "Nigeria")
}

func TestJoinFromAllowedRegionClean(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	fake := eng.Transport.(*transport.FakeTransport)
	protectGroup(t, eng, "g1")

	blocked, err := eng.ProcessJoin(ctx, "g1", "628123456789")
	assert.NoError(err)
	assert.False(blocked)
	assert.Empty(fake.Removed["g1"])
}

func TestAuditNotifierReceivesEntry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	protectGroup(t, eng, "g1")

	var got []AuditEntry
	eng.Notifier = notifierFunc(func(ctx context.Context, entry AuditEntry) error {
		got = append(got, entry)
		return nil
	})

	_, err := eng.ProcessMessage(ctx, groupMsg("alice", "g1", strings.Repeat("a", 60)))
	assert.NoError(err)
	require.Len(t, got, 1)
	assert.Equal("alice", got[0].Actor)
	assert.Equal("g1", got[0].Group)
	assert.Equal(detectors.ModuleCharFlood, got[0].Module)
	assert.Equal(ActionWarn, got[0].Action)
}

type notifierFunc func(ctx context.Context, entry AuditEntry) error

func (f notifierFunc) SendViolation(ctx context.Context, entry AuditEntry) error {
	return f(ctx, entry)
}

func TestNotifierFailureDoesNotBlockPipeline(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	protectGroup(t, eng, "g1")
	eng.Notifier = notifierFunc(func(context.Context, AuditEntry) error {
		return fmt.Errorf("webhook down")
	})

	blocked, err := eng.ProcessMessage(ctx, groupMsg("alice", "g1", strings.Repeat("a", 60)))
	assert.NoError(err)
	assert.True(blocked)
}
