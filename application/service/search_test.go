package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchsync/searchsync/domain/document"
	"github.com/searchsync/searchsync/domain/search"
)

type fakeSearcher struct {
	lexical    []search.Result
	vector     []search.Result
	docs       map[string]document.Document
	lexicalErr error

	vectorCalled bool
}

func (f *fakeSearcher) SearchLexical(context.Context, search.Query) ([]search.Result, error) {
	return f.lexical, f.lexicalErr
}

func (f *fakeSearcher) SearchVector(context.Context, search.Query, []float32) ([]search.Result, error) {
	f.vectorCalled = true
	return f.vector, nil
}

func (f *fakeSearcher) GetByID(_ context.Context, id string) (document.Document, bool, error) {
	doc, ok := f.docs[id]
	return doc, ok, nil
}

func searchDoc(record, title, body string) document.Document {
	return document.NewDocument("docs", "pages", record, "en",
		document.NewPayload(title, body, "/"+record, "en", nil))
}

func newFakeSearcher(docs ...document.Document) *fakeSearcher {
	m := make(map[string]document.Document, len(docs))
	for _, d := range docs {
		m[d.ID()] = d
	}
	return &fakeSearcher{docs: m}
}

func TestSearchValidatesInput(t *testing.T) {
	svc := NewSearchService(newFakeSearcher(), nil, 10, nil, nil)

	_, err := svc.Search(context.Background(), search.NewQuery("docs", "  ", search.Filters{}, 10))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Search(context.Background(), search.NewQuery("", "hello", search.Filters{}, 10))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSearchLexicalOnlyWithoutEmbedder(t *testing.T) {
	doc := searchDoc("1", "Getting started", "How to get started with the product.")
	searcher := newFakeSearcher(doc)
	searcher.lexical = []search.Result{search.NewResult(doc.ID(), 3)}

	svc := NewSearchService(searcher, nil, 10, nil, nil)
	hits, err := svc.Search(context.Background(), search.NewQuery("docs", "started", search.Filters{}, 10))
	require.NoError(t, err)

	require.Len(t, hits, 1)
	assert.Equal(t, "Getting started", hits[0].Document.Payload().Title())
	assert.False(t, searcher.vectorCalled)
}

func TestSearchFusesLexicalAndVectorRankings(t *testing.T) {
	a := searchDoc("a", "Alpha", "alpha body")
	b := searchDoc("b", "Beta", "beta body")
	c := searchDoc("c", "Gamma", "gamma body")

	searcher := newFakeSearcher(a, b, c)
	searcher.lexical = []search.Result{
		search.NewResult(a.ID(), 5),
		search.NewResult(b.ID(), 2),
	}
	searcher.vector = []search.Result{
		search.NewResult(b.ID(), 0.9),
		search.NewResult(c.ID(), 0.7),
	}

	emb := &fixedEmbedder{vector: []float32{0.1, 0.2}}
	svc := NewSearchService(searcher, emb, 10, nil, nil)

	hits, err := svc.Search(context.Background(), search.NewQuery("docs", "body", search.Filters{}, 10))
	require.NoError(t, err)

	require.Len(t, hits, 3)
	// b appears in both rankings, so reciprocal rank fusion puts it first.
	assert.Equal(t, b.ID(), hits[0].Document.ID())
	assert.True(t, searcher.vectorCalled)
}

func TestSearchAppliesDefaultLimit(t *testing.T) {
	var docs []document.Document
	var results []search.Result
	for _, r := range []string{"1", "2", "3", "4", "5"} {
		d := searchDoc(r, "Title "+r, "body")
		docs = append(docs, d)
		results = append(results, search.NewResult(d.ID(), float64(10-len(results))))
	}
	searcher := newFakeSearcher(docs...)
	searcher.lexical = results

	svc := NewSearchService(searcher, nil, 3, nil, nil)
	hits, err := svc.Search(context.Background(), search.NewQuery("docs", "body", search.Filters{}, 0))
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestSearchEmbeddingFailureFallsBackToLexical(t *testing.T) {
	doc := searchDoc("1", "Title", "body text")
	searcher := newFakeSearcher(doc)
	searcher.lexical = []search.Result{search.NewResult(doc.ID(), 1)}

	emb := &fixedEmbedder{err: errors.New("provider down")}
	svc := NewSearchService(searcher, emb, 10, nil, nil)

	hits, err := svc.Search(context.Background(), search.NewQuery("docs", "body", search.Filters{}, 10))
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.False(t, searcher.vectorCalled)
}

func TestSearchLexicalErrorPropagates(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.lexicalErr = errors.New("db gone")

	svc := NewSearchService(searcher, nil, 10, nil, nil)
	_, err := svc.Search(context.Background(), search.NewQuery("docs", "body", search.Filters{}, 10))
	assert.ErrorContains(t, err, "db gone")
}

func TestSearchDropsVanishedDocuments(t *testing.T) {
	doc := searchDoc("1", "Title", "body")
	searcher := newFakeSearcher(doc)
	searcher.lexical = []search.Result{
		search.NewResult("docs/pages/gone/en", 5),
		search.NewResult(doc.ID(), 1),
	}

	svc := NewSearchService(searcher, nil, 10, nil, nil)
	hits, err := svc.Search(context.Background(), search.NewQuery("docs", "body", search.Filters{}, 10))
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, doc.ID(), hits[0].Document.ID())
}

func TestSnippetCentersOnMatch(t *testing.T) {
	body := strings.Repeat("filler words here ", 40) + "the needle sits deep in the text " + strings.Repeat("more filler ", 20)

	out := snippet(body, "needle")
	assert.Contains(t, out, "needle")
	assert.True(t, strings.HasPrefix(out, "..."))
	assert.LessOrEqual(t, len([]rune(out)), snippetMaxRunes+6)
}

func TestSnippetShortBodyUnchanged(t *testing.T) {
	assert.Equal(t, "short body", snippet("short body", "missing"))
	assert.Equal(t, "", snippet("", "query"))
}
