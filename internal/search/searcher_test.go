package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corvusscan/postings/internal/analysis"
	"corvusscan/postings/internal/index"
)

func newTestIndex(t *testing.T) *index.Index {
	t.Helper()
	cfg := index.DefaultConfig(t.TempDir())
	cfg.Analyzer = analysis.NewSimple()
	cfg.FlushThreshold = 1000000
	idx, err := index.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func docIDs(results []Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.DocID
	}
	return ids
}

func TestRunQueryStringTermMatch(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Index("doc1", map[string]any{"body": "the quick brown fox"}))
	require.NoError(t, idx.Index("doc2", map[string]any{"body": "the lazy dog"}))
	require.NoError(t, idx.Flush())

	snap, err := idx.Snapshot()
	require.NoError(t, err)
	s := New(snap)

	results, err := s.RunQueryString("fox")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"doc1"}, docIDs(results))
}

func TestRunQueryStringBooleanAndOr(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Index("doc1", map[string]any{"body": "apple banana"}))
	require.NoError(t, idx.Index("doc2", map[string]any{"body": "apple cherry"}))
	require.NoError(t, idx.Index("doc3", map[string]any{"body": "cherry date"}))
	require.NoError(t, idx.Flush())

	snap, err := idx.Snapshot()
	require.NoError(t, err)
	s := New(snap)

	results, err := s.RunQueryString("apple AND banana")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"doc1"}, docIDs(results))

	results, err = s.RunQueryString("banana OR date")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"doc1", "doc3"}, docIDs(results))

	results, err = s.RunQueryString("apple NOT banana")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"doc2"}, docIDs(results))
}

// TestRunQueryStringPhraseAdjacencyWithinOr locks in the tree-scoped phrase
// check: a document matching only one branch of an OR of two phrases must
// not be rejected because the other phrase's words are entirely absent.
func TestRunQueryStringPhraseAdjacencyWithinOr(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Index("doc12", map[string]any{"body": "i live in new york city"}))
	require.NoError(t, idx.Index("doc13", map[string]any{"body": "los angeles is sunny"}))
	require.NoError(t, idx.Index("doc14", map[string]any{"body": "new and york are separate words here"}))
	require.NoError(t, idx.Flush())

	snap, err := idx.Snapshot()
	require.NoError(t, err)
	s := New(snap)

	results, err := s.RunQueryString(`"new york" OR "los angeles"`)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"doc12", "doc13"}, docIDs(results))
}

func TestRunQueryStringPrefixAndFuzzy(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Index("doc1", map[string]any{"body": "testing tester test"}))
	require.NoError(t, idx.Index("doc2", map[string]any{"body": "unrelated content"}))
	require.NoError(t, idx.Flush())

	snap, err := idx.Snapshot()
	require.NoError(t, err)
	s := New(snap)

	results, err := s.RunQueryString("test*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"doc1"}, docIDs(results))

	results, err = s.RunQueryString("tost~1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"doc1"}, docIDs(results))
}

func TestRunQueryStringRegex(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Index("doc1", map[string]any{"body": "hello world"}))
	require.NoError(t, idx.Index("doc2", map[string]any{"body": "goodbye world"}))
	require.NoError(t, idx.Flush())

	snap, err := idx.Snapshot()
	require.NoError(t, err)
	s := New(snap)

	results, err := s.RunQueryString("/hel.*/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"doc1"}, docIDs(results))
}

func TestRunQueryStringEmptyReturnsNoResults(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Index("doc1", map[string]any{"body": "hello world"}))
	require.NoError(t, idx.Flush())

	snap, err := idx.Snapshot()
	require.NoError(t, err)
	s := New(snap)

	results, err := s.RunQueryString("   ")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRunQueryStringSpansMultipleSegments(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Index("doc1", map[string]any{"body": "apple banana"}))
	require.NoError(t, idx.Flush())
	require.NoError(t, idx.Index("doc2", map[string]any{"body": "apple cherry"}))
	require.NoError(t, idx.Flush())
	require.Equal(t, 2, idx.NumSegments())

	snap, err := idx.Snapshot()
	require.NoError(t, err)
	s := New(snap)

	results, err := s.RunQueryString("apple")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"doc1", "doc2"}, docIDs(results))
}

func TestRunQueryStringSkipsDeletedDocuments(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Index("doc1", map[string]any{"body": "apple banana"}))
	require.NoError(t, idx.Index("doc2", map[string]any{"body": "apple cherry"}))
	require.NoError(t, idx.Flush())
	require.NoError(t, idx.Delete("doc1"))

	snap, err := idx.Snapshot()
	require.NoError(t, err)
	s := New(snap)

	results, err := s.RunQueryString("apple")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"doc2"}, docIDs(results))
}

func TestFieldlessQuerySearchesAcrossFields(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Index("doc1", map[string]any{"title": "fox", "body": "nothing relevant"}))
	require.NoError(t, idx.Index("doc2", map[string]any{"title": "nothing relevant", "body": "fox"}))
	require.NoError(t, idx.Flush())

	snap, err := idx.Snapshot()
	require.NoError(t, err)
	s := New(snap)

	results, err := s.RunQueryString("fox")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"doc1", "doc2"}, docIDs(results))
}

func TestAndSearchOrSearch(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Index("doc1", map[string]any{"body": "apple banana"}))
	require.NoError(t, idx.Index("doc2", map[string]any{"body": "apple cherry"}))
	require.NoError(t, idx.Flush())

	snap, err := idx.Snapshot()
	require.NoError(t, err)
	s := New(snap)

	results, err := s.AndSearch([]string{"apple", "banana"}, "body")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"doc1"}, docIDs(results))

	results, err = s.OrSearch([]string{"banana", "cherry"}, "body")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"doc1", "doc2"}, docIDs(results))
}
