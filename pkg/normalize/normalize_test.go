package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercases and strips punctuation",
			input:    "Save the Children International!",
			expected: "save children",
		},
		{
			name:     "decodes html entities",
			input:    "M&eacute;decins Sans Fronti&egrave;res",
			expected: "médecins sans frontières",
		},
		{
			name:     "keeps accented letters",
			input:    "Médecins Sans Frontières",
			expected: "médecins sans frontières",
		},
		{
			name:     "removes stop words",
			input:    "The International Rescue Committee of Jordan",
			expected: "international rescue committee",
		},
		{
			name:     "strips one trailing country suffix",
			input:    "Norwegian Refugee Council Somalia",
			expected: "norwegian refugee council",
		},
		{
			name:     "longest suffix wins",
			input:    "World Vision South Sudan",
			expected: "world vision",
		},
		{
			name:     "only strips a single suffix",
			input:    "Relief International Yemen",
			expected: "relief international",
		},
		{
			name:     "collapses whitespace",
			input:    "  ZOA   Refugee   Care  ",
			expected: "zoa refugee care",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "ampersand treated as punctuation",
			input:    "Care & Relief Foundation",
			expected: "care relief foundation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Name(tt.input))
		})
	}
}

// Only one trailing suffix is stripped per pass, so a name ending in
// two suffixes normalizes differently the second time around. Callers
// must normalize a raw name exactly once.
func TestNameStripsOneSuffixPerPass(t *testing.T) {
	once := Name("ZOA International Sudan")
	assert.Equal(t, "zoa international", once)
	assert.Equal(t, "zoa", Name(once))
}

func TestNameIdempotent(t *testing.T) {
	inputs := []string{
		"Save the Children International",
		"Médecins Sans Frontières",
		"Norwegian Refugee Council Somalia",
		"ZOA",
	}

	for _, input := range inputs {
		once := Name(input)
		assert.Equal(t, once, Name(once), "normalizing %q twice changed the result", input)
	}
}

func TestTokens(t *testing.T) {
	tokens := Tokens("save children fund")
	assert.Len(t, tokens, 3)
	assert.Contains(t, tokens, "save")
	assert.Contains(t, tokens, "children")
	assert.Contains(t, tokens, "fund")

	assert.Empty(t, Tokens(""))
}

func TestAcronym(t *testing.T) {
	assert.Equal(t, "UNICEF", Acronym(" unicef "))
	assert.Equal(t, "", Acronym("  "))
}

func TestJaccard(t *testing.T) {
	a := Tokens("save children fund")
	b := Tokens("save children")
	assert.InDelta(t, 2.0/3.0, Jaccard(a, b), 1e-9)

	assert.Equal(t, 1.0, Jaccard(a, a))
	assert.Equal(t, 0.0, Jaccard(a, Tokens("oxfam")))
	assert.Equal(t, 0.0, Jaccard(a, Tokens("")))
	assert.Equal(t, 0.0, Jaccard(Tokens(""), Tokens("")))
}

func TestJaccardSymmetric(t *testing.T) {
	a := Tokens("norwegian refugee council")
	b := Tokens("danish refugee council")
	assert.Equal(t, Jaccard(a, b), Jaccard(b, a))
}
