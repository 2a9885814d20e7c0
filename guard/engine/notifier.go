package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/harbor-social/warden/guard/detectors"
)

// AuditEntry is one applied moderation action, as sent to the ops channel.
type AuditEntry struct {
	Actor    string
	Group    string
	Module   string
	Severity detectors.Severity
	Action   Action
	Evidence string
	At       time.Time
}

// Notifier receives every applied moderation action.
type Notifier interface {
	SendViolation(ctx context.Context, entry AuditEntry) error
}

// WebhookNotifier posts a simple text payload to an "incoming webhook" style
// endpoint. The webhook must already be configured on the receiving side.
type WebhookNotifier struct {
	WebhookURL string
}

var _ Notifier = (*WebhookNotifier)(nil)

type webhookBody struct {
	Text string `json:"text"`
}

func (n *WebhookNotifier) SendViolation(ctx context.Context, entry AuditEntry) error {
	msg := fmt.Sprintf("⚠️ moderation action ⚠️\nuser: `%s`\ngroup: `%s`\nmodule: %s (%s)\naction: %s\nevidence: %s",
		entry.Actor, entry.Group, entry.Module, entry.Severity, entry.Action, entry.Evidence)

	body, err := json.Marshal(webhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
