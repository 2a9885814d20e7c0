package keyword

import "strings"

// common digit/symbol substitutions seen in filter evasion
var leetReplacer = strings.NewReplacer(
	"0", "o",
	"1", "i",
	"2", "z",
	"3", "e",
	"4", "a",
	"5", "s",
	"6", "g",
	"7", "t",
	"8", "b",
	"9", "g",
	"@", "a",
	"$", "s",
	"!", "i",
	"+", "t",
	"(", "c",
)

// Deleet folds leetspeak substitutions back to plain letters and lower-cases
// the result. Applied before profanity matching so "f4gg0t" style spellings
// hit the same patterns as the plain word.
func Deleet(s string) string {
	return leetReplacer.Replace(strings.ToLower(s))
}
