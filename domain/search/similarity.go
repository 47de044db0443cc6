package search

import (
	"math"
	"sort"
)

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns a value between -1 (opposite) and 1 (identical), or 0 if the
// vectors differ in length or either has zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}

	if magA == 0 || magB == 0 {
		return 0
	}

	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// StoredVector holds a document's embedding with its identifier, for
// in-memory similarity search on backends without native vector support.
type StoredVector struct {
	documentID string
	embedding  []float32
}

// NewStoredVector creates a StoredVector, copying the embedding.
func NewStoredVector(documentID string, embedding []float32) StoredVector {
	vec := make([]float32, len(embedding))
	copy(vec, embedding)
	return StoredVector{
		documentID: documentID,
		embedding:  vec,
	}
}

// DocumentID returns the document identifier.
func (v StoredVector) DocumentID() string { return v.documentID }

// Embedding returns a copy of the embedding vector.
func (v StoredVector) Embedding() []float32 {
	cp := make([]float32, len(v.embedding))
	copy(cp, v.embedding)
	return cp
}

// TopKSimilar finds the k vectors most similar to the query, sorted by
// similarity descending with document ID as the tie-break.
func TopKSimilar(query []float32, vectors []StoredVector, k int) []Result {
	if len(vectors) == 0 || k <= 0 {
		return []Result{}
	}

	results := make([]Result, 0, len(vectors))
	for _, v := range vectors {
		results = append(results, NewResult(v.documentID, CosineSimilarity(query, v.embedding)))
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score() != results[j].Score() {
			return results[i].Score() > results[j].Score()
		}
		return results[i].DocumentID() < results[j].DocumentID()
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k]
}
