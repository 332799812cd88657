package similarity

import (
	"strings"

	"github.com/CBPFGMS/GOmapping/pkg/normalize"
)

// DefaultThreshold is the minimum score for a pair to become an edge
const DefaultThreshold = 70.0

// jaccardFloor is the pre-filter cutoff: pairs below it are discarded
// before scoring unless their acronyms match exactly.
const jaccardFloor = 0.10

// ShouldScore applies the Jaccard pre-filter to a candidate pair
func ShouldScore(a, b Record) bool {
	if normalize.Jaccard(a.Tokens, b.Tokens) >= jaccardFloor {
		return true
	}
	return a.Acronym != "" && b.Acronym != "" && a.Acronym == b.Acronym
}

// Score computes the weighted similarity of two records in [0,100].
// Symmetric in its arguments.
func Score(a, b Record) float64 {
	if a.Normalized == "" || b.Normalized == "" {
		return 0
	}

	if a.Normalized == b.Normalized {
		rawA := strings.TrimSpace(strings.ToLower(a.Raw))
		rawB := strings.TrimSpace(strings.ToLower(b.Raw))
		if rawA == "" {
			rawA = a.Normalized
		}
		if rawB == "" {
			rawB = b.Normalized
		}

		if rawA == rawB {
			return 100
		}

		// A normalized collision whose originals differ never reports
		// a perfect match.
		rawSim := SequenceRatio(rawA, rawB) * 100
		return min(rawSim, 98)
	}

	seqSim := SequenceRatio(a.Normalized, b.Normalized) * 100
	tokenSim := normalize.Jaccard(a.Tokens, b.Tokens) * 100
	acronymSim := 0.0
	if a.Acronym != "" && b.Acronym != "" && a.Acronym == b.Acronym {
		acronymSim = 100
	}

	var score float64
	if acronymSim == 100 {
		score = 75 + seqSim*0.15 + tokenSim*0.10
	} else {
		score = seqSim*0.5 + tokenSim*0.3 + acronymSim*0.2
	}

	return min(score, 100)
}

// ClampThreshold bounds an externally supplied threshold to [0,100].
// Zero means unset and maps to DefaultThreshold; to accept every pair
// pass a negative value, which clamps to 0.
func ClampThreshold(threshold float64) float64 {
	if threshold == 0 {
		return DefaultThreshold
	}
	if threshold < 0 {
		return 0
	}
	if threshold > 100 {
		return 100
	}
	return threshold
}
