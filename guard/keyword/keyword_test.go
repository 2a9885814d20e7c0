package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeText(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		text string
		out  []string
	}{
		{text: "", out: []string{}},
		{text: "Hello, World!", out: []string{"hello", "world"}},
		{text: "naïve café", out: []string{"naive", "cafe"}},
		{text: "one  two\tthree", out: []string{"one", "two", "three"}},
	}

	for _, fix := range fixtures {
		assert.ElementsMatch(fix.out, TokenizeText(fix.text))
	}
}

func TestSlugify(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("helloworld", Slugify("Hello, World!"))
	assert.Equal("spaced", Slugify("s p a c e d"))
	assert.Equal("", Slugify("!!! ---"))
}

func TestDeleet(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("asshole", Deleet("4ssh0le"))
	assert.Equal("shit", Deleet("5h!7"))
	assert.Equal("plain", Deleet("plain"))
}

func TestMatcher(t *testing.T) {
	assert := assert.New(t)

	m, err := NewMatcher([]string{"fuck", "shit", "bitch"}, []string{"fuck"})
	assert.NoError(err)

	fixtures := []struct {
		text  string
		words []string
		tier1 bool
	}{
		{text: "", words: nil},
		{text: "have a nice day", words: nil},
		{text: "fuck", words: []string{"fuck"}, tier1: true},
		{text: "F-U-C-K", words: []string{"fuck"}, tier1: true},
		{text: "f u c k", words: []string{"fuck"}, tier1: true},
		{text: "fvck", words: nil},
		{text: "5h1t happens", words: []string{"shit"}},
		{text: "shit and b1tch", words: []string{"shit", "bitch"}},
		// innocent containment must not match
		{text: "shiitake mushrooms", words: nil},
		{text: "classy", words: nil},
	}

	for _, fix := range fixtures {
		res := m.Match(fix.text)
		assert.ElementsMatch(fix.words, res.Words, "text=%q", fix.text)
		assert.Equal(fix.tier1, res.Tier1, "text=%q", fix.text)
	}
}

func TestMatcherDeterministic(t *testing.T) {
	assert := assert.New(t)
	m, err := NewMatcher([]string{"shit", "bitch"}, nil)
	assert.NoError(err)
	first := m.Match("shit b!tch shit")
	for i := 0; i < 10; i++ {
		assert.Equal(first, m.Match("shit b!tch shit"))
	}
}
