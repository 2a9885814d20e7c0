// Violation and usage counters for the moderation core, bucketed by time
// period. Counters drive observability and follow-up tooling, never the
// escalation policy itself (warning counts live in modstore).
package countstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	PeriodTotal = "total"
	PeriodDay   = "day"
	PeriodHour  = "hour"
)

// CountStore tracks named counters ("name" is the namespace, eg a module name;
// "val" the specific counter, eg a user ID) and distinct-value counters.
type CountStore interface {
	GetCount(ctx context.Context, name, val, period string) (int, error)
	Increment(ctx context.Context, name, val string) error
	GetCountDistinct(ctx context.Context, name, bucket, period string) (int, error)
	IncrementDistinct(ctx context.Context, name, bucket, val string) error
}

// bucket key layouts; hour buckets carry the date so they never collide
// across days
const (
	dayLayout  = "2006-01-02"
	hourLayout = "2006-01-02T15"
)

func periodBucket(name, val, period string) string {
	now := time.Now().UTC()
	switch period {
	case PeriodTotal:
		return fmt.Sprintf("%s/%s", name, val)
	case PeriodDay:
		return fmt.Sprintf("%s/%s/%s", name, val, now.Format(dayLayout))
	case PeriodHour:
		return fmt.Sprintf("%s/%s/%s", name, val, now.Format(hourLayout))
	default:
		slog.Warn("unhandled counter period", "period", period)
		return fmt.Sprintf("%s/%s", name, val)
	}
}
