// The detection modules. Each inspects one inbound message or one joining
// identity and returns a structured verdict; the engine owns ordering and
// everything that happens after a positive verdict. Detect must be pure for a
// fixed input and configuration so verdicts can be asserted exactly in tests.
package detectors

import (
	"context"

	"github.com/harbor-social/warden/guard/modstore"
)

// Module name constants, used for per-group toggles and violation counters.
const (
	ModuleFlood     = "flood"
	ModuleCharFlood = "charflood"
	ModuleProfanity = "profanity"
	ModuleLink      = "link"
	ModuleGeo       = "geo"
	ModuleSpam      = "spam"
)

// Severity of a detection, ordered.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the numeric order of a severity; unknown values rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// Verdict is the outcome of one module inspecting one input. Ephemeral; only
// aggregate counts are ever persisted.
type Verdict struct {
	Detected bool
	Module   string
	Severity Severity
	Evidence string
}

// Input is what a module gets to look at. Text is set for message events;
// Join marks membership-join evaluation, where UserID is the joining identity.
type Input struct {
	Text    string
	UserID  string
	GroupID string
	Join    bool
}

// SettingsSource is the slice of modstore a module needs for its per-group
// toggle.
type SettingsSource interface {
	GetGroup(ctx context.Context, groupID string) (modstore.GroupSettings, error)
}

// Detector is one detection module.
type Detector interface {
	Name() string
	Detect(input Input) Verdict
	IsEnabledForGroup(ctx context.Context, groupID string) bool
}

// base carries the name and per-group toggle shared by all modules.
type base struct {
	name     string
	settings SettingsSource
}

func (b base) Name() string {
	return b.name
}

// IsEnabledForGroup treats a settings read failure as "enabled".
func (b base) IsEnabledForGroup(ctx context.Context, groupID string) bool {
	g, err := b.settings.GetGroup(ctx, groupID)
	if err != nil {
		return true
	}
	return g.ModuleEnabled(b.name)
}

func clean(name string) Verdict {
	return Verdict{Module: name}
}

func hit(name string, sev Severity, evidence string) Verdict {
	return Verdict{Detected: true, Module: name, Severity: sev, Evidence: evidence}
}
