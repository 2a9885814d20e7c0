package modstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetIfLive(t *testing.T) {
	assert := assert.New(t)
	now := time.Now()

	_, live := GetIfLive(now.Add(-time.Second), now)
	assert.False(live)

	_, live = GetIfLive(now, now)
	assert.False(live)

	exp, live := GetIfLive(now.Add(time.Minute), now)
	assert.True(live)
	assert.Equal(now.Add(time.Minute), exp)
}

func TestUserRecordLazyExpiry(t *testing.T) {
	assert := assert.New(t)
	now := time.Now()

	u := UserRecord{UserID: "u1"}
	assert.False(u.Muted(now))

	until := now.Add(10 * time.Minute)
	u.MuteUntil = &until
	assert.True(u.Muted(now))
	assert.False(u.Muted(now.Add(11*time.Minute)))

	assert.Equal(time.Duration(0), u.CooldownRemaining("ping", now))
	u.SetCooldown("ping", now.Add(5*time.Second))
	rem := u.CooldownRemaining("ping", now)
	assert.True(rem > 0 && rem <= 5*time.Second)
	assert.Equal(time.Duration(0), u.CooldownRemaining("ping", now.Add(6*time.Second)))

	u.PruneCooldowns(now.Add(6 * time.Second))
	assert.Empty(u.Cooldowns)
}

func TestGroupSettingsDefaults(t *testing.T) {
	assert := assert.New(t)

	g := DefaultGroupSettings("g1")
	assert.Equal(ModeNormal, g.DefenseMode)
	assert.False(g.Protected)
	assert.True(g.ModuleEnabled("profanity"))

	g.SetModule("profanity", false)
	assert.False(g.ModuleEnabled("profanity"))
	assert.True(g.ModuleEnabled("link"))

	_, ok := ParseDefenseMode("strict")
	assert.True(ok)
	_, ok = ParseDefenseMode("angry")
	assert.False(ok)
}

func TestMemModStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewMemModStore()

	u, err := s.GetUser(ctx, "u1")
	assert.NoError(err)
	assert.Equal("u1", u.UserID)
	assert.Equal(0, u.WarningCount)

	u, err = s.UpdateUser(ctx, "u1", func(r *UserRecord) {
		r.WarningCount++
		r.Blacklisted = true
	})
	assert.NoError(err)
	assert.Equal(1, u.WarningCount)

	u, err = s.GetUser(ctx, "u1")
	assert.NoError(err)
	assert.Equal(1, u.WarningCount)
	assert.True(u.Blacklisted)

	g, err := s.UpdateGroup(ctx, "g1", func(gs *GroupSettings) {
		gs.Protected = true
		gs.DefenseMode = ModeStrict
	})
	assert.NoError(err)
	assert.True(g.Protected)

	g, err = s.GetGroup(ctx, "g1")
	assert.NoError(err)
	assert.Equal(ModeStrict, g.DefenseMode)
}

func TestMemModStoreConcurrentUpdates(t *testing.T) {
	// run with -race; also asserts no increments are lost
	assert := assert.New(t)
	ctx := context.Background()

	s := NewMemModStore()

	var wg sync.WaitGroup
	const workers = 8
	const perWorker = 50
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := s.UpdateUser(ctx, "shared", func(r *UserRecord) {
					r.WarningCount++
				})
				assert.NoError(err)
			}
		}()
	}
	wg.Wait()

	u, err := s.GetUser(ctx, "shared")
	assert.NoError(err)
	assert.Equal(workers*perWorker, u.WarningCount)
}

func TestMemModStoreCopiesRecords(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewMemModStore()
	_, err := s.UpdateUser(ctx, "u1", func(r *UserRecord) {
		r.SetCooldown("ping", time.Now().Add(time.Minute))
	})
	assert.NoError(err)

	u, err := s.GetUser(ctx, "u1")
	assert.NoError(err)
	// mutating the returned copy must not leak into the store
	u.Cooldowns["ping"] = time.Now().Add(-time.Hour)
	again, err := s.GetUser(ctx, "u1")
	assert.NoError(err)
	assert.True(again.CooldownRemaining("ping", time.Now()) > 0)
}
