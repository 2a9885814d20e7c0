package guard

import (
	"github.com/harbor-social/warden/guard/countstore"
	"github.com/harbor-social/warden/guard/detectors"
	"github.com/harbor-social/warden/guard/engine"
	"github.com/harbor-social/warden/guard/modstore"
)

type Engine = engine.Engine
type Action = engine.Action
type WarnResult = engine.WarnResult

type Notifier = engine.Notifier
type WebhookNotifier = engine.WebhookNotifier
type AuditEntry = engine.AuditEntry

type Detector = detectors.Detector
type Verdict = detectors.Verdict
type Severity = detectors.Severity

type DefenseMode = modstore.DefenseMode
type UserRecord = modstore.UserRecord
type GroupSettings = modstore.GroupSettings

var (
	ActionNone = engine.ActionNone
	ActionWarn = engine.ActionWarn
	ActionMute = engine.ActionMute
	ActionKick = engine.ActionKick

	ModeNormal   = modstore.ModeNormal
	ModeStrict   = modstore.ModeStrict
	ModeLockdown = modstore.ModeLockdown

	SeverityLow      = detectors.SeverityLow
	SeverityMedium   = detectors.SeverityMedium
	SeverityHigh     = detectors.SeverityHigh
	SeverityCritical = detectors.SeverityCritical

	PeriodTotal = countstore.PeriodTotal
	PeriodDay   = countstore.PeriodDay
	PeriodHour  = countstore.PeriodHour
)
