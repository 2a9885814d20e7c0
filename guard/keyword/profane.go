package keyword

import (
	"fmt"
	"regexp"
	"strings"
)

// separator tolerated between the letters of a masked word: up to three
// non-alphanumeric characters ("f-u-c-k", "f u c k", "f..u..c..k")
const denseSep = `[^\pL\pN]{0,3}`

// Matcher matches text against a word blacklist two ways: a dense per-word
// regex tolerating separator characters between letters, and exact matches
// over normalized tokens. Input should be de-leeted first; Match does this
// itself.
type Matcher struct {
	words  []string
	dense  []*regexp.Regexp
	tokens map[string]bool
	tier1  map[string]bool
}

// MatchResult lists the distinct blacklist words found, and whether any of
// them is tier-1.
type MatchResult struct {
	Words []string
	Tier1 bool
}

// NewMatcher compiles a matcher from a blacklist and a tier-1 subset. Words
// must be plain lower-case letters.
func NewMatcher(words []string, tier1 []string) (*Matcher, error) {
	m := &Matcher{
		tokens: make(map[string]bool, len(words)),
		tier1:  make(map[string]bool, len(tier1)),
	}
	for _, w := range tier1 {
		m.tier1[strings.ToLower(w)] = true
	}
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		re, err := compileDense(w)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern for %q: %w", w, err)
		}
		m.words = append(m.words, w)
		m.dense = append(m.dense, re)
		m.tokens[w] = true
	}
	return m, nil
}

// compileDense builds the spread-out pattern for one word, guarded on both
// sides so that longer innocent words don't match ("class" vs "ass").
func compileDense(word string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString(`(?:^|[^\pL\pN])`)
	for i, r := range word {
		if i > 0 {
			b.WriteString(denseSep)
		}
		b.WriteString(regexp.QuoteMeta(string(r)))
	}
	b.WriteString(`(?:$|[^\pL\pN])`)
	return regexp.Compile(b.String())
}

// Match reports every distinct blacklist word present in the text.
func (m *Matcher) Match(text string) MatchResult {
	folded := Deleet(text)
	found := make(map[string]bool)

	for i, re := range m.dense {
		if re.MatchString(folded) {
			found[m.words[i]] = true
		}
	}
	for _, tok := range TokenizeText(folded) {
		if m.tokens[tok] {
			found[tok] = true
		}
	}

	var res MatchResult
	for _, w := range m.words {
		if found[w] {
			res.Words = append(res.Words, w)
			if m.tier1[w] {
				res.Tier1 = true
			}
		}
	}
	return res
}
