package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldScore(t *testing.T) {
	overlap := NewRecord(1, "Save the Children", "")
	overlapB := NewRecord(2, "Save the Children Fund", "")
	assert.True(t, ShouldScore(overlap, overlapB))

	disjoint := NewRecord(3, "Oxfam", "")
	assert.False(t, ShouldScore(overlap, disjoint))

	// disjoint tokens still score when the acronyms match exactly
	acrA := NewRecord(4, "Norwegian Refugee Council", "NRC")
	acrB := NewRecord(5, "Flyktninghjelpen", "NRC")
	assert.False(t, ShouldScore(NewRecord(4, "Norwegian Refugee Council", ""), NewRecord(5, "Flyktninghjelpen", "")))
	assert.True(t, ShouldScore(acrA, acrB))
}

func TestScoreIdentical(t *testing.T) {
	a := NewRecord(1, "Save the Children", "")
	b := NewRecord(2, "Save the Children", "")
	assert.Equal(t, 100.0, Score(a, b))
}

func TestScoreNormalizedCollisionCapped(t *testing.T) {
	// both normalize to "save children" but the raw names differ, so
	// the pair can never report a perfect match
	a := NewRecord(1, "Save the Children", "")
	b := NewRecord(2, "Save the Children International", "")

	score := Score(a, b)
	assert.Greater(t, score, 0.0)
	assert.LessOrEqual(t, score, 98.0)
	assert.InDelta(t, SequenceRatio("save the children", "save the children international")*100, score, 1e-9)
}

func TestScoreAcronymDominates(t *testing.T) {
	a := NewRecord(1, "Norwegian Refugee Council", "NRC")
	b := NewRecord(2, "Norwegian Refugee Council Somalia Office", "NRC")

	score := Score(a, b)
	assert.GreaterOrEqual(t, score, 75.0)
	assert.LessOrEqual(t, score, 100.0)
}

func TestScoreWeightedFormula(t *testing.T) {
	a := NewRecord(1, "Danish Refugee Council", "")
	b := NewRecord(2, "Norwegian Refugee Council", "")

	seq := SequenceRatio(a.Normalized, b.Normalized) * 100
	tok := 2.0 / 4.0 * 100 // {refugee,council} of {danish,norwegian,refugee,council}
	expected := seq*0.5 + tok*0.3

	assert.InDelta(t, expected, Score(a, b), 1e-9)
}

func TestScoreSymmetric(t *testing.T) {
	a := NewRecord(1, "Save the Children International", "SCI")
	b := NewRecord(2, "Save the Children UK", "SC")
	assert.Equal(t, Score(a, b), Score(b, a))
}

func TestScoreEmptyNames(t *testing.T) {
	empty := NewRecord(1, "", "")
	other := NewRecord(2, "Oxfam", "")
	assert.Equal(t, 0.0, Score(empty, other))
	assert.Equal(t, 0.0, Score(empty, empty))
}

func TestClampThreshold(t *testing.T) {
	assert.Equal(t, DefaultThreshold, ClampThreshold(0))
	assert.Equal(t, 0.0, ClampThreshold(-5))
	assert.Equal(t, 100.0, ClampThreshold(250))
	assert.Equal(t, 85.0, ClampThreshold(85))
}
