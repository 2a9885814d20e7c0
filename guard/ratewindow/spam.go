package ratewindow

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/spaolacci/murmur3"

	"github.com/harbor-social/warden/guard/keyword"
)

// SpamKind is the first matching message-volume condition, in priority order.
type SpamKind string

const (
	SpamNone           SpamKind = ""
	SpamRapidFire      SpamKind = "rapid_fire"
	SpamDuplicate      SpamKind = "duplicate"
	SpamCharacterFlood SpamKind = "character_flood"
)

// SpamConfig tunes the message-volume tracker.
type SpamConfig struct {
	Span           time.Duration
	RapidFireCount int
	DuplicateCount int
	CharRunLength  int
}

func DefaultSpamConfig() SpamConfig {
	return SpamConfig{
		Span:           10 * time.Second,
		RapidFireCount: 7,
		DuplicateCount: 3,
		CharRunLength:  25,
	}
}

// SpamTracker keeps, per user, a sliding Window of message timestamps plus the
// normalized body hashes inside the same span. Observe is the only mutation
// path; all state for one user is guarded by that user's own lock, so
// concurrent messages from different users never contend.
type SpamTracker struct {
	cfg   SpamConfig
	users *xsync.MapOf[string, *userSpam]
}

type userSpam struct {
	mu     sync.Mutex
	msgs   *Window
	bodies []bodyEntry
}

type bodyEntry struct {
	at   time.Time
	hash uint64
}

func NewSpamTracker(cfg SpamConfig) *SpamTracker {
	return &SpamTracker{
		cfg:   cfg,
		users: xsync.NewMapOf[string, *userSpam](),
	}
}

// Observe records one message and returns the first matching spam condition:
// rapid_fire, then duplicate, then character_flood.
func (t *SpamTracker) Observe(userID, body string, now time.Time) SpamKind {
	us, _ := t.users.LoadOrCompute(userID, func() *userSpam {
		return &userSpam{msgs: NewWindow(t.cfg.Span)}
	})

	us.mu.Lock()
	defer us.mu.Unlock()

	us.pruneBodies(now.Add(-t.cfg.Span))
	h := bodyHash(body)
	us.bodies = append(us.bodies, bodyEntry{at: now, hash: h})

	if us.msgs.Add(now) >= t.cfg.RapidFireCount {
		return SpamRapidFire
	}

	dupes := 0
	for _, e := range us.bodies {
		if e.hash == h {
			dupes++
		}
	}
	if dupes >= t.cfg.DuplicateCount {
		return SpamDuplicate
	}

	if longestRun(body) >= t.cfg.CharRunLength {
		return SpamCharacterFlood
	}
	return SpamNone
}

// Sweep removes users with no activity inside the window. Timestamps and body
// hashes are appended together, so an empty message window means the whole
// record is stale.
func (t *SpamTracker) Sweep(now time.Time) {
	t.users.Range(func(userID string, us *userSpam) bool {
		us.mu.Lock()
		empty := us.msgs.Count(now) == 0
		us.mu.Unlock()
		if empty {
			t.users.Delete(userID)
		}
		return true
	})
}

// Size returns the number of tracked users, for metrics.
func (t *SpamTracker) Size() int {
	return t.users.Size()
}

// caller must hold us.mu
func (us *userSpam) pruneBodies(cutoff time.Time) {
	j := 0
	for j < len(us.bodies) && !us.bodies[j].at.After(cutoff) {
		j++
	}
	if j > 0 {
		us.bodies = append(us.bodies[:0], us.bodies[j:]...)
	}
}

// bodyHash hashes the slugified body so trivial edits (punctuation, spacing,
// case) still count as duplicates.
func bodyHash(body string) uint64 {
	return murmur3.Sum64([]byte(keyword.Slugify(body)))
}

// longestRun returns the length of the longest run of a single rune.
func longestRun(s string) int {
	var prev rune
	run, best := 0, 0
	for _, r := range s {
		if r == prev {
			run++
		} else {
			prev = r
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}
