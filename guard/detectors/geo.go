package detectors

import (
	"fmt"
	"sort"
	"strings"
)

// country calling codes the module can name; longest-prefix match wins
var countryCodes = map[string]string{
	"1":   "US/Canada",
	"7":   "Russia/Kazakhstan",
	"20":  "Egypt",
	"27":  "South Africa",
	"33":  "France",
	"34":  "Spain",
	"44":  "United Kingdom",
	"49":  "Germany",
	"55":  "Brazil",
	"60":  "Malaysia",
	"62":  "Indonesia",
	"63":  "Philippines",
	"65":  "Singapore",
	"66":  "Thailand",
	"81":  "Japan",
	"84":  "Vietnam",
	"86":  "China",
	"90":  "Turkey",
	"91":  "India",
	"92":  "Pakistan",
	"94":  "Sri Lanka",
	"95":  "Myanmar",
	"212": "Morocco",
	"234": "Nigeria",
	"880": "Bangladesh",
	"966": "Saudi Arabia",
	"971": "UAE",
}

// Geo classifies a joining participant's phone-shaped identifier by country
// calling code. It only runs on join events, never on message content. A
// verdict is critical: geography policy is kick-on-sight regardless of mode.
type Geo struct {
	base
	allowedCodes map[string]bool
	allowedIDs   map[string]bool
	prefixes     []string // country codes, longest first
}

var _ Detector = (*Geo)(nil)

// NewGeo builds the module. allowedCodes are country calling codes without
// the plus sign; allowedIDs are full identifiers exempt from the check.
func NewGeo(settings SettingsSource, allowedCodes, allowedIDs []string) *Geo {
	codes := make(map[string]bool, len(allowedCodes))
	for _, c := range allowedCodes {
		codes[strings.TrimPrefix(c, "+")] = true
	}
	ids := make(map[string]bool, len(allowedIDs))
	for _, id := range allowedIDs {
		ids[id] = true
	}
	prefixes := make([]string, 0, len(countryCodes))
	for c := range countryCodes {
		prefixes = append(prefixes, c)
	}
	sort.Slice(prefixes, func(i, j int) bool {
		if len(prefixes[i]) != len(prefixes[j]) {
			return len(prefixes[i]) > len(prefixes[j])
		}
		return prefixes[i] < prefixes[j]
	})
	return &Geo{
		base:         base{name: ModuleGeo, settings: settings},
		allowedCodes: codes,
		allowedIDs:   ids,
		prefixes:     prefixes,
	}
}

func (d *Geo) Detect(input Input) Verdict {
	if !input.Join {
		return clean(d.name)
	}
	if d.allowedIDs[input.UserID] {
		return clean(d.name)
	}

	digits := leadingDigits(input.UserID)
	if digits == "" {
		// not phone-shaped; nothing to classify
		return clean(d.name)
	}

	code, country := d.classify(digits)
	if code == "" {
		return clean(d.name)
	}
	if d.allowedCodes[code] {
		return clean(d.name)
	}
	return hit(d.name, SeverityCritical, fmt.Sprintf("country %s (+%s)", country, code))
}

// classify matches the longest known country-code prefix.
func (d *Geo) classify(digits string) (code, country string) {
	for _, p := range d.prefixes {
		if strings.HasPrefix(digits, p) {
			return p, countryCodes[p]
		}
	}
	return "", ""
}

// leadingDigits strips a leading plus and returns the digit prefix of an
// identifier like "+6281234@server" or "14155552671".
func leadingDigits(id string) string {
	s := strings.TrimPrefix(id, "+")
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}
