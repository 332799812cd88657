package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pairIDs(records []Record, pairs []CandidatePair) map[[2]int64]struct{} {
	out := make(map[[2]int64]struct{}, len(pairs))
	for _, p := range pairs {
		lo, hi := records[p.A].ID, records[p.B].ID
		if lo > hi {
			lo, hi = hi, lo
		}
		out[[2]int64{lo, hi}] = struct{}{}
	}
	return out
}

func TestCandidatePairsSharedFirstToken(t *testing.T) {
	records := []Record{
		NewRecord(1, "Save the Children International", ""),
		NewRecord(2, "Save the Children UK", ""),
		NewRecord(3, "Oxfam GB", ""),
	}

	pairs, skipped := CandidatePairs(records, 0)
	assert.Zero(t, skipped)

	ids := pairIDs(records, pairs)
	assert.Contains(t, ids, [2]int64{1, 2})
	assert.NotContains(t, ids, [2]int64{1, 3})
	assert.NotContains(t, ids, [2]int64{2, 3})
}

func TestCandidatePairsAcronymBucket(t *testing.T) {
	// no token overlap at all, only the acronym connects them
	records := []Record{
		NewRecord(1, "Norwegian Refugee Council", "NRC"),
		NewRecord(2, "Flyktninghjelpen", "NRC"),
	}

	pairs, _ := CandidatePairs(records, 0)
	ids := pairIDs(records, pairs)
	assert.Contains(t, ids, [2]int64{1, 2})
}

func TestCandidatePairsDeduplicated(t *testing.T) {
	// shares the acronym, first token, prefix and two-token buckets,
	// but must be emitted exactly once
	records := []Record{
		NewRecord(1, "World Vision International", "WVI"),
		NewRecord(2, "World Vision Somalia", "WVI"),
	}

	pairs, _ := CandidatePairs(records, 0)
	require.Len(t, pairs, 1)
}

func TestCandidatePairsOversizedBucketSkipped(t *testing.T) {
	records := make([]Record, 5)
	for i := range records {
		records[i] = NewRecord(int64(i+1), "Relief Agency", "")
	}

	pairs, skipped := CandidatePairs(records, 3)
	assert.Empty(t, pairs)
	assert.Positive(t, skipped)
}

func TestCandidatePairsAcronymLengthBounds(t *testing.T) {
	// single-letter and oversized acronyms never form buckets
	records := []Record{
		NewRecord(1, "Alpha Org", "A"),
		NewRecord(2, "Beta Org", "A"),
		NewRecord(3, "Gamma Org", "ABCDEFGHIJKLM"),
		NewRecord(4, "Delta Org", "ABCDEFGHIJKLM"),
	}

	pairs, _ := CandidatePairs(records, 0)
	ids := pairIDs(records, pairs)
	assert.NotContains(t, ids, [2]int64{1, 2})
	assert.NotContains(t, ids, [2]int64{3, 4})
}

func TestBlockKeysEmptyName(t *testing.T) {
	r := NewRecord(1, "", "")
	assert.Empty(t, blockKeys(r))
}
