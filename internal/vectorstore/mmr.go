// Package vectorstore holds the ranking math shared by the index backends.
package vectorstore

import (
	"math"
	"sort"

	"pdfchat/internal/domain"
)

const (
	DefaultK      = 6
	DefaultFetchK = 20
	DefaultLambda = 0.25
)

// Normalize fills unset Type, K and FetchK with defaults and keeps FetchK >= K.
// Lambda 0 is a valid setting; only out-of-range values are replaced.
func Normalize(opts domain.SearchOptions) domain.SearchOptions {
	if opts.Type == "" {
		opts.Type = domain.SearchMMR
	}
	if opts.K <= 0 {
		opts.K = DefaultK
	}
	if opts.FetchK <= 0 {
		opts.FetchK = DefaultFetchK
	}
	if opts.FetchK < opts.K {
		opts.FetchK = opts.K
	}
	if opts.Lambda < 0 || opts.Lambda > 1 {
		opts.Lambda = DefaultLambda
	}
	return opts
}

// Cosine returns the cosine similarity of a and b, 0 if either is a zero vector.
func Cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// IsZero reports whether v has no non-zero component.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// TopK returns the indexes of the k highest scores, best first. Ties keep input order.
func TopK(scores []float64, k int) []int {
	idxs := make([]int, len(scores))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return scores[idxs[a]] > scores[idxs[b]] })
	if k < len(idxs) {
		idxs = idxs[:k]
	}
	return idxs
}

// MMR picks up to k of the candidate vectors by maximal marginal relevance.
// The first pick is the candidate most similar to the query; each further pick
// maximises lambda*sim(query) - (1-lambda)*max sim(already picked).
func MMR(query []float32, candidates [][]float32, k int, lambda float64) []int {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	k = min(k, len(candidates))
	simQ := make([]float64, len(candidates))
	for i, c := range candidates {
		simQ[i] = Cosine(query, c)
	}

	selected := []int{TopK(simQ, 1)[0]}
	picked := make([]bool, len(candidates))
	picked[selected[0]] = true
	// Running max similarity of each candidate to the selected set.
	redundancy := make([]float64, len(candidates))
	for i := range redundancy {
		redundancy[i] = math.Inf(-1)
	}

	for len(selected) < k {
		last := candidates[selected[len(selected)-1]]
		best, bestScore := -1, math.Inf(-1)
		for i, c := range candidates {
			if picked[i] {
				continue
			}
			if s := Cosine(c, last); s > redundancy[i] {
				redundancy[i] = s
			}
			score := lambda*simQ[i] - (1-lambda)*redundancy[i]
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}
		selected = append(selected, best)
		picked[best] = true
	}
	return selected
}

// Rank orders vectors against query according to opts and returns
// (position, similarity-to-query) pairs, best first.
func Rank(query []float32, vectors [][]float32, opts domain.SearchOptions) []Ranked {
	opts = Normalize(opts)
	scores := make([]float64, len(vectors))
	for i, v := range vectors {
		scores[i] = Cosine(query, v)
	}
	if opts.Type == domain.SearchSimilarity {
		top := TopK(scores, opts.K)
		out := make([]Ranked, len(top))
		for i, j := range top {
			out[i] = Ranked{Position: j, Score: scores[j]}
		}
		return out
	}

	pool := TopK(scores, opts.FetchK)
	candidates := make([][]float32, len(pool))
	for i, j := range pool {
		candidates[i] = vectors[j]
	}
	picks := MMR(query, candidates, opts.K, opts.Lambda)
	out := make([]Ranked, len(picks))
	for i, p := range picks {
		j := pool[p]
		out[i] = Ranked{Position: j, Score: scores[j]}
	}
	return out
}

// Ranked is one entry of a Rank result.
type Ranked struct {
	Position int
	Score    float64
}
