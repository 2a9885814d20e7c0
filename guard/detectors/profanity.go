package detectors

import (
	"fmt"
	"strings"

	"github.com/harbor-social/warden/guard/keyword"
)

// Default blacklist. Deployments replace this with their own lists; tier-1
// words always escalate to high severity on a single match.
var (
	DefaultProfanityWords = []string{
		"fuck", "shit", "bitch", "asshole", "bastard", "dick", "cunt",
		"whore", "slut", "wanker", "prick", "twat",
	}
	DefaultProfanityTier1 = []string{"cunt", "whore", "slut"}
)

// Profanity checks messages against a word blacklist after leetspeak
// normalization. Severity scales with how much matched: any tier-1 word or
// three distinct words is high, two is medium, one is low.
type Profanity struct {
	base
	matcher *keyword.Matcher
}

var _ Detector = (*Profanity)(nil)

func NewProfanity(settings SettingsSource, words, tier1 []string) (*Profanity, error) {
	m, err := keyword.NewMatcher(words, tier1)
	if err != nil {
		return nil, err
	}
	return &Profanity{
		base:    base{name: ModuleProfanity, settings: settings},
		matcher: m,
	}, nil
}

func NewDefaultProfanity(settings SettingsSource) *Profanity {
	p, err := NewProfanity(settings, DefaultProfanityWords, DefaultProfanityTier1)
	if err != nil {
		// default lists are static; a compile failure is a programming error
		panic(err)
	}
	return p
}

func (d *Profanity) Detect(input Input) Verdict {
	res := d.matcher.Match(input.Text)
	if len(res.Words) == 0 {
		return clean(d.name)
	}

	var sev Severity
	switch {
	case res.Tier1 || len(res.Words) >= 3:
		sev = SeverityHigh
	case len(res.Words) == 2:
		sev = SeverityMedium
	default:
		sev = SeverityLow
	}
	return hit(d.name, sev, fmt.Sprintf("matched: %s", strings.Join(res.Words, ", ")))
}
