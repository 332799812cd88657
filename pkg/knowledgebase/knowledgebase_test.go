package knowledgebase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindExact(t *testing.T) {
	kb := New()

	e, ok := kb.Find("Save the Children International")
	require.True(t, ok)
	assert.Equal(t, "Save the Children International", e.StandardName)
	assert.Equal(t, 10, e.Priority)
}

func TestFindNormalizedVariant(t *testing.T) {
	kb := New()

	// the country suffix and stop words disappear during normalization
	e, ok := kb.Find("save the children")
	require.True(t, ok)
	assert.Equal(t, "Save the Children International", e.StandardName)

	e, ok = kb.Find("Norwegian Refugee Council Somalia")
	require.True(t, ok)
	assert.Equal(t, "Norwegian Refugee Council", e.StandardName)
}

func TestFindAlias(t *testing.T) {
	kb := New()

	e, ok := kb.Find("Doctors Without Borders")
	require.True(t, ok)
	assert.Equal(t, "Médecins Sans Frontières", e.StandardName)

	e, ok = kb.Find("UNHCR")
	require.True(t, ok)
	assert.Equal(t, "United Nations High Commissioner for Refugees", e.StandardName)
}

func TestFindSubstring(t *testing.T) {
	kb := New()

	e, ok := kb.Find("Mercy Corps Europe Liaison Office")
	require.True(t, ok)
	assert.Equal(t, "Mercy Corps", e.StandardName)
}

func TestFindMiss(t *testing.T) {
	kb := New()

	_, ok := kb.Find("Completely Unrelated Widgets Ltd")
	assert.False(t, ok)

	_, ok = kb.Find("")
	assert.False(t, ok)
}

func TestRecommendScoring(t *testing.T) {
	kb := New()

	rec := kb.Recommend("Save the Children", 12)
	assert.True(t, rec.KBMatch)
	assert.Equal(t, "Save the Children International", rec.StandardName)
	// priority 10*4 + usage capped at 40 + 17 chars / 2
	assert.InDelta(t, 40+40+8.5, rec.Score, 1e-9)

	rec = kb.Recommend("Unknown Org", 2)
	assert.False(t, rec.KBMatch)
	// usage 2*4 + 11 chars / 2
	assert.InDelta(t, 8+5.5, rec.Score, 1e-9)
}

func TestRecommendCaps(t *testing.T) {
	kb := New()

	long := "An Organization With An Exceptionally Long And Descriptive Name For Testing"
	rec := kb.Recommend(long, 1000)
	assert.LessOrEqual(t, rec.Score-float64(rec.KBPriority*4), 60.0)
}

func TestNewWithEntries(t *testing.T) {
	kb := NewWithEntries([]Entry{
		{StandardName: "Test Relief Agency", Acronym: "TRA", Priority: 5},
	})

	e, ok := kb.Find("test relief agency")
	require.True(t, ok)
	assert.Equal(t, 5, e.Priority)

	_, ok = kb.Find("Save the Children")
	assert.False(t, ok)
}
