// Sliding-window rate tracking for the moderation core: per-command cooldowns,
// a per-user global request budget, and message-volume spam detection. All
// windows prune lazily on access; the periodic Sweep only reclaims memory for
// idle users and is never needed for correctness.
package ratewindow

import (
	"sync"
	"time"
)

// Window is an ordered set of timestamps bounded by a time span. Entries older
// than the span are discarded on every access. Safe for concurrent use.
type Window struct {
	mu     sync.Mutex
	span   time.Duration
	stamps []time.Time
}

func NewWindow(span time.Duration) *Window {
	return &Window{span: span}
}

// Add records an event at the given instant and returns the number of events
// currently inside the window, including this one.
func (w *Window) Add(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(now)
	w.stamps = append(w.stamps, now)
	return len(w.stamps)
}

// Count returns the number of events inside [now-span, now].
func (w *Window) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(now)
	return len(w.stamps)
}

// caller must hold w.mu
func (w *Window) prune(now time.Time) {
	cutoff := now.Add(-w.span)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}
