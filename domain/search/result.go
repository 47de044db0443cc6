package search

// Result represents one ranked hit: a document ID and its score under a
// single retrieval method (lexical or vector).
type Result struct {
	documentID string
	score      float64
}

// NewResult creates a Result.
func NewResult(documentID string, score float64) Result {
	return Result{
		documentID: documentID,
		score:      score,
	}
}

// DocumentID returns the matched document's composite identifier.
func (r Result) DocumentID() string { return r.documentID }

// Score returns the retrieval score.
func (r Result) Score() float64 { return r.score }
