package detectors

import (
	"fmt"
	"unicode"
)

// CharFlood flags three independent character-abuse patterns, first match
// wins: a run of one visible character, a pile of zero-width/invisible
// characters, or a wall of consecutive emoji. RE2 has no backreferences, so
// the run detection is a plain rune scan.
type CharFlood struct {
	base

	RepeatRun      int // visible-character run length
	InvisibleCount int // total invisible characters
	EmojiRun       int // consecutive emoji
}

var _ Detector = (*CharFlood)(nil)

func NewCharFlood(settings SettingsSource) *CharFlood {
	return &CharFlood{
		base:           base{name: ModuleCharFlood, settings: settings},
		RepeatRun:      10,
		InvisibleCount: 20,
		EmojiRun:       30,
	}
}

func (d *CharFlood) Detect(input Input) Verdict {
	if run, r := longestVisibleRun(input.Text); run >= d.RepeatRun {
		return hit(d.name, SeverityHigh, fmt.Sprintf("%d repeated %q", run, r))
	}
	if n := countInvisible(input.Text); n >= d.InvisibleCount {
		return hit(d.name, SeverityMedium, fmt.Sprintf("%d invisible characters", n))
	}
	if run := longestEmojiRun(input.Text); run >= d.EmojiRun {
		return hit(d.name, SeverityMedium, fmt.Sprintf("%d consecutive emoji", run))
	}
	return clean(d.name)
}

func longestVisibleRun(s string) (int, rune) {
	var prev, bestRune rune
	run, best := 0, 0
	for _, r := range s {
		// emoji runs are the emoji check's business
		if unicode.IsSpace(r) || isInvisible(r) || isEmoji(r) {
			prev = 0
			run = 0
			continue
		}
		if r == prev {
			run++
		} else {
			prev = r
			run = 1
		}
		if run > best {
			best = run
			bestRune = r
		}
	}
	return best, bestRune
}

func countInvisible(s string) int {
	n := 0
	for _, r := range s {
		if isInvisible(r) {
			n++
		}
	}
	return n
}

func longestEmojiRun(s string) int {
	run, best := 0, 0
	for _, r := range s {
		if isEmoji(r) {
			run++
			if run > best {
				best = run
			}
		} else if !unicode.IsSpace(r) && r != 0xFE0F {
			run = 0
		}
	}
	return best
}

// zero-width and otherwise invisible code points used for filter evasion
func isInvisible(r rune) bool {
	switch r {
	case 0x00AD, // soft hyphen
		0x180E, // mongolian vowel separator
		0x200B, // zero width space
		0x200C, // zero width non-joiner
		0x200D, // zero width joiner
		0x200E, // left-to-right mark
		0x200F, // right-to-left mark
		0x2060, // word joiner
		0x2061, 0x2062, 0x2063, 0x2064,
		0xFEFF: // byte order mark
		return true
	}
	return false
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF: // pictographs, emoticons, symbols
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF: // regional indicators
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols and dingbats
		return true
	}
	return false
}
