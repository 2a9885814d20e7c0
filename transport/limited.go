package transport

import (
	"context"

	"golang.org/x/time/rate"
)

// Limited wraps a Transport with a token-bucket rate limiter so that bursts of
// moderation actions don't trip the upstream session's own flood protection.
// Reads (roster, self ID) are not limited.
type Limited struct {
	inner   Transport
	limiter *rate.Limiter
}

// NewLimited returns a rate-limited transport allowing roughly perSec actions
// per second with the given burst.
func NewLimited(inner Transport, perSec float64, burst int) *Limited {
	return &Limited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
	}
}

func (l *Limited) SendMessage(ctx context.Context, target string, content string) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	return l.inner.SendMessage(ctx, target, content)
}

func (l *Limited) DeleteMessage(ctx context.Context, target string, ref MessageRef) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	return l.inner.DeleteMessage(ctx, target, ref)
}

func (l *Limited) RemoveParticipants(ctx context.Context, groupID string, ids []string) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	return l.inner.RemoveParticipants(ctx, groupID, ids)
}

func (l *Limited) PromoteParticipants(ctx context.Context, groupID string, ids []string) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	return l.inner.PromoteParticipants(ctx, groupID, ids)
}

func (l *Limited) DemoteParticipants(ctx context.Context, groupID string, ids []string) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	return l.inner.DemoteParticipants(ctx, groupID, ids)
}

func (l *Limited) GetGroupRoster(ctx context.Context, groupID string) ([]Participant, error) {
	return l.inner.GetGroupRoster(ctx, groupID)
}

func (l *Limited) SelfID() string {
	return l.inner.SelfID()
}
