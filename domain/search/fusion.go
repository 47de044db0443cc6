package search

import "sort"

// Fusion combines ranked lists from the lexical and vector retrieval paths
// using Reciprocal Rank Fusion.
type Fusion struct {
	k float64
}

// NewFusion creates a Fusion with the default RRF constant (60).
func NewFusion() Fusion {
	return Fusion{k: 60.0}
}

// NewFusionWithK creates a Fusion with a custom RRF constant.
func NewFusionWithK(k float64) Fusion {
	if k <= 0 {
		k = 60.0
	}
	return Fusion{k: k}
}

// Fuse merges the ranked lists. Each input must be sorted by score
// descending; the output is sorted by combined RRF score descending.
func (f Fusion) Fuse(lists ...[]Result) []Result {
	if len(lists) == 0 {
		return []Result{}
	}

	scores := make(map[string]float64)
	for _, list := range lists {
		for rank, r := range list {
			scores[r.DocumentID()] += 1.0 / (f.k + float64(rank))
		}
	}

	fused := make([]Result, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, NewResult(id, score))
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score() == fused[j].Score() {
			return fused[i].DocumentID() < fused[j].DocumentID()
		}
		return fused[i].Score() > fused[j].Score()
	})
	return fused
}

// FuseTopK merges the ranked lists and returns at most topK results.
func (f Fusion) FuseTopK(topK int, lists ...[]Result) []Result {
	fused := f.Fuse(lists...)
	if topK <= 0 || topK >= len(fused) {
		return fused
	}
	return fused[:topK]
}
