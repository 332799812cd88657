package similarity

import (
	"sort"
	"strings"

	"github.com/CBPFGMS/GOmapping/pkg/normalize"
)

// DefaultMaxBucket is the bucket-size cap above which a block key is
// skipped entirely rather than compared pairwise.
const DefaultMaxBucket = 250

const (
	minAcronymLen = 2
	maxAcronymLen = 12
)

// Record is the read-only per-organization snapshot shared by the
// blocking index and the scorer.
type Record struct {
	ID         int64
	Raw        string
	Normalized string
	Tokens     map[string]struct{}
	Acronym    string
}

// NewRecord prepares a scoring record from a raw name and acronym
func NewRecord(id int64, name string, acronym string) Record {
	norm := normalize.Name(name)
	return Record{
		ID:         id,
		Raw:        name,
		Normalized: norm,
		Tokens:     normalize.Tokens(norm),
		Acronym:    normalize.Acronym(acronym),
	}
}

// CandidatePair holds indices into the record slice
type CandidatePair struct {
	A int
	B int
}

// blockKeys computes the block keys for one record: exact acronym,
// first token, 3-char prefix of the first token, first two tokens
// joined, and a 4-char prefix of the shortest token.
func blockKeys(r Record) []string {
	keys := make([]string, 0, 5)

	if n := len(r.Acronym); n >= minAcronymLen && n <= maxAcronymLen {
		keys = append(keys, "acr:"+r.Acronym)
	}

	words := strings.Fields(r.Normalized)
	if len(words) > 0 {
		keys = append(keys, "t0:"+words[0])
		keys = append(keys, "p3:"+runePrefix(words[0], 3))
		if len(words) >= 2 {
			keys = append(keys, "t01:"+words[0]+"_"+words[1])
		}
	}

	if len(r.Tokens) > 0 {
		shortest := shortestToken(r.Tokens)
		if len([]rune(shortest)) >= 4 {
			keys = append(keys, "sh:"+runePrefix(shortest, 4))
		}
	}

	return dedupeKeys(keys)
}

// CandidatePairs builds the blocking index and emits every unordered
// pair sharing a bucket of size in [2, maxBucket]. Pairs are
// deduplicated globally on the canonical (min id, max id) key so a pair
// sharing several block keys is emitted once. Returns the pairs and the
// number of oversized buckets skipped.
func CandidatePairs(records []Record, maxBucket int) ([]CandidatePair, int) {
	if maxBucket <= 0 {
		maxBucket = DefaultMaxBucket
	}

	buckets := make(map[string][]int)
	for idx, r := range records {
		for _, k := range blockKeys(r) {
			buckets[k] = append(buckets[k], idx)
		}
	}

	type idPair struct {
		lo, hi int64
	}
	seen := make(map[idPair]struct{})
	pairs := make([]CandidatePair, 0)
	skipped := 0

	for _, idxs := range buckets {
		if len(idxs) < 2 {
			continue
		}
		if len(idxs) > maxBucket {
			skipped++
			continue
		}
		for i := 0; i < len(idxs); i++ {
			for j := i + 1; j < len(idxs); j++ {
				a, b := idxs[i], idxs[j]
				lo, hi := records[a].ID, records[b].ID
				if lo > hi {
					lo, hi = hi, lo
				}
				key := idPair{lo, hi}
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				pairs = append(pairs, CandidatePair{A: a, B: b})
			}
		}
	}

	return pairs, skipped
}

func runePrefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// shortestToken picks the shortest token, breaking length ties
// lexicographically so key generation is deterministic.
func shortestToken(tokens map[string]struct{}) string {
	all := make([]string, 0, len(tokens))
	for t := range tokens {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool {
		if len(all[i]) != len(all[j]) {
			return len(all[i]) < len(all[j])
		}
		return all[i] < all[j]
	})
	return all[0]
}

func dedupeKeys(keys []string) []string {
	out := keys[:0]
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
