package extract

import "sort"

// Candidate is a provisional extraction result carrying a plausibility
// score. Higher is better; penalties are negative deltas.
type Candidate[T any] struct {
	Value T
	Score int
}

// Best returns the highest-scoring candidate. On equal scores the
// candidate encountered first wins.
func Best[T any](cands []Candidate[T]) (Candidate[T], bool) {
	var best Candidate[T]
	found := false
	for _, c := range cands {
		if !found || c.Score > best.Score {
			best = c
			found = true
		}
	}
	return best, found
}

// BestPositive is Best restricted to candidates with a score above zero.
func BestPositive[T any](cands []Candidate[T]) (Candidate[T], bool) {
	c, ok := Best(cands)
	if !ok || c.Score <= 0 {
		var zero Candidate[T]
		return zero, false
	}
	return c, true
}

// Rank returns a copy of cands ordered by descending score, preserving
// encounter order among equal scores.
func Rank[T any](cands []Candidate[T]) []Candidate[T] {
	out := make([]Candidate[T], len(cands))
	copy(out, cands)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
