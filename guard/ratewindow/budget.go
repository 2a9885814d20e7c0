package ratewindow

import (
	"sync/atomic"
	"time"

	"github.com/RussellLuo/slidingwindow"
	"github.com/puzpuzpuz/xsync/v3"
)

// Budget enforces the global request limit: at most Limit requests per Span
// per user, across all commands. Independent of per-command cooldowns.
type Budget struct {
	limit    int
	span     time.Duration
	limiters *xsync.MapOf[string, *userLimiter]
}

type userLimiter struct {
	lim      *slidingwindow.Limiter
	stop     slidingwindow.StopFunc
	lastUsed atomic.Int64
}

func NewBudget(limit int, span time.Duration) *Budget {
	return &Budget{
		limit:    limit,
		span:     span,
		limiters: xsync.NewMapOf[string, *userLimiter](),
	}
}

func windowFunc() (slidingwindow.Window, slidingwindow.StopFunc) {
	return slidingwindow.NewLocalWindow()
}

// Allow consumes one unit of the user's budget, reporting whether the request
// fits. Limiters are created on first use.
func (b *Budget) Allow(userID string, now time.Time) bool {
	ul, _ := b.limiters.LoadOrCompute(userID, func() *userLimiter {
		lim, stop := slidingwindow.NewLimiter(b.span, int64(b.limit), windowFunc)
		return &userLimiter{lim: lim, stop: stop}
	})
	ul.lastUsed.Store(now.UnixNano())
	return ul.lim.Allow()
}

// Sweep drops limiters idle for longer than the window span. Memory
// reclamation only; a user whose limiter is dropped simply starts fresh.
func (b *Budget) Sweep(now time.Time) {
	cutoff := now.Add(-2 * b.span).UnixNano()
	b.limiters.Range(func(userID string, ul *userLimiter) bool {
		if ul.lastUsed.Load() < cutoff {
			ul.stop()
			b.limiters.Delete(userID)
		}
		return true
	})
}

// Size returns the number of tracked users, for metrics.
func (b *Budget) Size() int {
	return b.limiters.Size()
}
