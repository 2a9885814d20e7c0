// Text normalization helpers shared by the detection modules: tokenization,
// slug folding, and leetspeak de-substitution. Everything here is pure string
// processing so detector verdicts stay deterministic.
package keyword

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonTokenChars = regexp.MustCompile(`[^\pL\pN\s]+`)

// TokenizeText splits free-form text into lower-cased tokens, with unicode
// normalization and accent folding, so that look-alike spellings land on the
// same token.
func TokenizeText(text string) []string {
	// the transform chain is stateful and must not be shared between calls
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	bare := strings.ToLower(nonTokenChars.ReplaceAllString(text, " "))
	folded, _, err := transform.String(normFunc, bare)
	if err != nil {
		slog.Warn("unicode normalization error", "err", err)
		folded = bare
	}
	return strings.Fields(folded)
}
