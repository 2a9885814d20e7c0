package detectors

import (
	"fmt"
	"unicode/utf8"
)

// FloodConfig sets the message-length bands. A message at or above HardMax is
// reported at medium severity or higher no matter where the bands sit.
type FloodConfig struct {
	Low      int
	Medium   int
	High     int
	Critical int
	HardMax  int
}

func DefaultFloodConfig() FloodConfig {
	return FloodConfig{
		Low:      1_000,
		Medium:   4_000,
		High:     10_000,
		Critical: 25_000,
		HardMax:  50_000,
	}
}

// Flood flags oversized messages, the cheapest crash-pattern check, so it runs
// before everything else.
type Flood struct {
	base
	cfg FloodConfig
}

var _ Detector = (*Flood)(nil)

func NewFlood(settings SettingsSource, cfg FloodConfig) *Flood {
	return &Flood{
		base: base{name: ModuleFlood, settings: settings},
		cfg:  cfg,
	}
}

// convenience for engine wiring with defaults
func NewDefaultFlood(settings SettingsSource) *Flood {
	return NewFlood(settings, DefaultFloodConfig())
}

func (d *Flood) Detect(input Input) Verdict {
	n := utf8.RuneCountInString(input.Text)

	var sev Severity
	switch {
	case n >= d.cfg.Critical:
		sev = SeverityCritical
	case n >= d.cfg.High:
		sev = SeverityHigh
	case n >= d.cfg.Medium:
		sev = SeverityMedium
	case n >= d.cfg.Low:
		sev = SeverityLow
	}
	// the hard maximum applies even when it sits below every band
	if d.cfg.HardMax > 0 && n >= d.cfg.HardMax && sev.Rank() < SeverityMedium.Rank() {
		sev = SeverityMedium
	}
	if sev == "" {
		return clean(d.name)
	}
	return hit(d.name, sev, fmt.Sprintf("message length %d", n))
}
