package similarity

// SequenceRatio computes a character-level similarity ratio in [0,1]
// using the classic longest-matching-block recursion: repeatedly find
// the longest common contiguous block, then recurse on the pieces to
// its left and right, and return 2*M/(len(a)+len(b)) where M is the
// total matched length.
func SequenceRatio(a, b string) float64 {
	ar := []rune(a)
	br := []rune(b)
	if len(ar)+len(br) == 0 {
		return 1
	}

	b2j := make(map[rune][]int, len(br))
	for j, c := range br {
		b2j[c] = append(b2j[c], j)
	}

	type span struct {
		alo, ahi, blo, bhi int
	}

	matched := 0
	stack := []span{{0, len(ar), 0, len(br)}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		apos, bpos, size := longestMatch(ar, b2j, s.alo, s.ahi, s.blo, s.bhi)
		if size == 0 {
			continue
		}
		matched += size
		stack = append(stack,
			span{s.alo, apos, s.blo, bpos},
			span{apos + size, s.ahi, bpos + size, s.bhi},
		)
	}

	return 2 * float64(matched) / float64(len(ar)+len(br))
}

// longestMatch finds the longest block of a[alo:ahi] that occurs in
// b[blo:bhi], preferring the earliest in a, then earliest in b.
func longestMatch(a []rune, b2j map[rune][]int, alo, ahi, blo, bhi int) (besti, bestj, bestsize int) {
	besti, bestj = alo, blo

	// j2len[j] is the length of the longest match ending at a[i-1], b[j]
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		next := make(map[int]int)
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = next
	}

	return besti, bestj, bestsize
}
