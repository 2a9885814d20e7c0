// Runtime for the defense pipeline: runs the detection modules against
// inbound events in priority order, maps verdicts to actions through the
// group's defense mode, applies the actions, and records everything.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/harbor-social/warden/guard/auth"
	"github.com/harbor-social/warden/guard/cachestore"
	"github.com/harbor-social/warden/guard/countstore"
	"github.com/harbor-social/warden/guard/detectors"
	"github.com/harbor-social/warden/guard/modstore"
	"github.com/harbor-social/warden/guard/ratewindow"
	"github.com/harbor-social/warden/transport"
)

const (
	DefaultMaxWarnings  = 3
	DefaultMuteDuration = 10 * time.Minute
)

// Engine evaluates messages and joins. All collaborators are injected;
// nothing here reaches for globals, so tests run against fakes.
//
// Detectors must be in priority order: the first positive verdict wins and
// later modules never run.
type Engine struct {
	Logger    *slog.Logger
	Store     modstore.ModStore
	Counters  countstore.CountStore
	Cache     cachestore.CacheStore
	Transport transport.Transport
	Auth      *auth.Resolver
	Spam      *ratewindow.SpamTracker
	Detectors []detectors.Detector
	// Notifier is optional; nil means no audit webhook.
	Notifier Notifier

	MaxWarnings  int
	MuteDuration time.Duration
}

func (e *Engine) maxWarnings() int {
	if e.MaxWarnings > 0 {
		return e.MaxWarnings
	}
	return DefaultMaxWarnings
}

func (e *Engine) muteDuration() time.Duration {
	if e.MuteDuration > 0 {
		return e.MuteDuration
	}
	return DefaultMuteDuration
}

// ProcessMessage evaluates one inbound group message. The returned bool
// reports whether the message was blocked (deleted or otherwise acted on).
// Detector failures are treated as "no detection": moderation fails open
// rather than blocking legitimate traffic.
func (e *Engine) ProcessMessage(ctx context.Context, evt transport.MessageEvent) (blocked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Error("defense pipeline panic", "err", r, "user", evt.Sender, "group", evt.GroupID)
			eventErrorCount.WithLabelValues("message").Inc()
			blocked, err = false, nil
		}
	}()
	start := time.Now()
	defer func() {
		eventProcessDuration.WithLabelValues("message").Observe(time.Since(start).Seconds())
		eventProcessCount.WithLabelValues("message").Inc()
	}()

	if !evt.IsGroup {
		return false, nil
	}
	logger := e.Logger.With("user", evt.Sender, "group", evt.GroupID)

	settings, err := e.Store.GetGroup(ctx, evt.GroupID)
	if err != nil {
		logger.Error("reading group settings", "err", err)
		eventErrorCount.WithLabelValues("message").Inc()
		return false, nil
	}
	if !settings.Protected {
		return false, nil
	}
	if e.exemptActor(evt.Sender) {
		return false, nil
	}

	u, err := e.Store.GetUser(ctx, evt.Sender)
	if err != nil {
		logger.Error("reading user record", "err", err)
		u = modstore.UserRecord{UserID: evt.Sender}
	}
	if u.Disabled {
		return false, nil
	}
	now := time.Now()
	if u.Blacklisted || u.Muted(now) {
		// silent drop: no notice for users already excluded
		e.deleteMessage(ctx, logger, evt)
		logger.Debug("message dropped", "blacklisted", u.Blacklisted, "muted", u.Muted(now))
		return true, nil
	}

	input := detectors.Input{
		Text:    evt.Text,
		UserID:  evt.Sender,
		GroupID: evt.GroupID,
	}
	for _, d := range e.Detectors {
		if d.Name() == detectors.ModuleGeo {
			// join-only module
			continue
		}
		if !d.IsEnabledForGroup(ctx, evt.GroupID) {
			continue
		}
		v := e.safeDetect(d, input)
		if v.Detected {
			e.handleViolation(ctx, logger, settings, evt, v)
			return true, nil
		}
	}

	if e.Spam != nil && settings.ModuleEnabled(detectors.ModuleSpam) {
		if kind := e.Spam.Observe(evt.Sender, evt.Text, now); kind != ratewindow.SpamNone {
			v := detectors.Verdict{
				Detected: true,
				Module:   detectors.ModuleSpam,
				Severity: spamSeverity(kind),
				Evidence: string(kind),
			}
			e.handleViolation(ctx, logger, settings, evt, v)
			return true, nil
		}
	}

	logger.Debug("message clean")
	return false, nil
}

// ProcessJoin evaluates one joining participant. Only modules that understand
// join inputs will fire; in practice that is the geographic-origin module.
func (e *Engine) ProcessJoin(ctx context.Context, groupID, participantID string) (blocked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Error("defense pipeline panic", "err", r, "user", participantID, "group", groupID)
			eventErrorCount.WithLabelValues("join").Inc()
			blocked, err = false, nil
		}
	}()
	start := time.Now()
	defer func() {
		eventProcessDuration.WithLabelValues("join").Observe(time.Since(start).Seconds())
		eventProcessCount.WithLabelValues("join").Inc()
	}()

	logger := e.Logger.With("user", participantID, "group", groupID)

	settings, err := e.Store.GetGroup(ctx, groupID)
	if err != nil {
		logger.Error("reading group settings", "err", err)
		eventErrorCount.WithLabelValues("join").Inc()
		return false, nil
	}
	if !settings.Protected {
		return false, nil
	}
	if e.exemptActor(participantID) {
		return false, nil
	}

	input := detectors.Input{
		UserID:  participantID,
		GroupID: groupID,
		Join:    true,
	}
	for _, d := range e.Detectors {
		if !d.IsEnabledForGroup(ctx, groupID) {
			continue
		}
		v := e.safeDetect(d, input)
		if !v.Detected {
			continue
		}
		if err := e.Kick(ctx, groupID, participantID); err != nil {
			logger.Error("removing joining participant", "err", err)
		}
		e.notice(ctx, logger, groupID, fmt.Sprintf("removed %s: %s", participantID, v.Evidence))
		e.record(ctx, logger, settings, participantID, v, ActionKick)
		return true, nil
	}

	logger.Debug("join clean")
	return false, nil
}

// exemptActor: the bot itself and elevated roles are never moderated.
func (e *Engine) exemptActor(userID string) bool {
	if userID == e.Transport.SelfID() {
		return true
	}
	return e.Auth.EffectiveRole(userID) >= auth.RoleOwner
}

// safeDetect runs one module, converting a panic or misbehavior into a clean
// verdict.
func (e *Engine) safeDetect(d detectors.Detector, input detectors.Input) (v detectors.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Error("detection module panic", "module", d.Name(), "err", r)
			detectorErrorCount.WithLabelValues(d.Name()).Inc()
			v = detectors.Verdict{Module: d.Name()}
		}
	}()
	return d.Detect(input)
}

// handleViolation deletes the offending message, applies the configured
// action, posts exactly one moderation notice, and records the outcome.
func (e *Engine) handleViolation(ctx context.Context, logger *slog.Logger, settings modstore.GroupSettings, evt transport.MessageEvent, v detectors.Verdict) {
	logger = logger.With("module", v.Module, "severity", string(v.Severity))

	e.deleteMessage(ctx, logger, evt)

	action := ActionFor(settings.DefenseMode, v.Severity)
	var noticeText string
	switch action {
	case ActionWarn:
		res, err := e.Warn(ctx, evt.GroupID, evt.Sender)
		if err != nil {
			logger.Error("applying warning", "err", err)
			break
		}
		if res.Kicked {
			action = ActionKick
			noticeText = fmt.Sprintf("%s removed after repeated violations (%s)", evt.Sender, v.Module)
		} else {
			noticeText = fmt.Sprintf("%s warned (%s): warning %d/%d", evt.Sender, v.Module, res.Count, e.maxWarnings())
		}
	case ActionMute:
		until, err := e.Mute(ctx, evt.Sender, e.muteDuration())
		if err != nil {
			logger.Error("applying mute", "err", err)
			break
		}
		noticeText = fmt.Sprintf("%s muted until %s (%s)", evt.Sender, until.Format(time.Kitchen), v.Module)
	case ActionKick:
		if err := e.Kick(ctx, evt.GroupID, evt.Sender); err != nil {
			logger.Error("applying kick", "err", err)
		}
		noticeText = fmt.Sprintf("%s removed (%s)", evt.Sender, v.Module)
	}

	if noticeText != "" {
		e.notice(ctx, logger, evt.GroupID, noticeText)
	}
	e.record(ctx, logger, settings, evt.Sender, v, action)

	logger.Info("violation handled",
		"action", string(action),
		"evidence", v.Evidence,
	)
}

// deleteMessage is best-effort: a transport failure is logged and the rest of
// the pipeline continues (at-least-attempted, not exactly-once).
func (e *Engine) deleteMessage(ctx context.Context, logger *slog.Logger, evt transport.MessageEvent) {
	if evt.Ref.ID == "" {
		return
	}
	if err := e.Transport.DeleteMessage(ctx, evt.From, evt.Ref); err != nil {
		logger.Warn("deleting message", "err", err)
		transportErrorCount.WithLabelValues("delete").Inc()
	}
}

// notice posts the single user-visible moderation message for a violation.
func (e *Engine) notice(ctx context.Context, logger *slog.Logger, groupID, text string) {
	if err := e.Transport.SendMessage(ctx, groupID, text); err != nil {
		logger.Warn("sending moderation notice", "err", err)
		transportErrorCount.WithLabelValues("send").Inc()
	}
}

// record commits the audit trail for an applied action: prometheus counters,
// persistent per-module violation counts, and the optional webhook.
func (e *Engine) record(ctx context.Context, logger *slog.Logger, settings modstore.GroupSettings, userID string, v detectors.Verdict, action Action) {
	violationCount.WithLabelValues(v.Module, string(v.Severity)).Inc()
	actionCount.WithLabelValues(string(action)).Inc()

	if e.Counters != nil {
		if err := e.Counters.Increment(ctx, v.Module, userID); err != nil {
			logger.Warn("incrementing violation counter", "err", err)
		}
		if err := e.Counters.IncrementDistinct(ctx, "violators", settings.GroupID, userID); err != nil {
			logger.Warn("incrementing violator counter", "err", err)
		}
	}

	if e.Notifier != nil {
		entry := AuditEntry{
			Actor:    userID,
			Group:    settings.GroupID,
			Module:   v.Module,
			Severity: v.Severity,
			Action:   action,
			Evidence: v.Evidence,
			At:       time.Now(),
		}
		if err := e.Notifier.SendViolation(ctx, entry); err != nil {
			logger.Warn("sending audit notification", "err", err)
		}
	}
}

func spamSeverity(kind ratewindow.SpamKind) detectors.Severity {
	switch kind {
	case ratewindow.SpamCharacterFlood:
		return detectors.SeverityHigh
	default:
		return detectors.SeverityMedium
	}
}
