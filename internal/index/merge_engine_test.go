package index

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corvusscan/postings/internal/analysis"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	cfg := DefaultConfig(t.TempDir())
	cfg.Analyzer = analysis.NewSimple()
	cfg.FlushThreshold = 1000000 // never auto-flush; tests flush explicitly
	idx, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestMergeGenerationsProducesCorrectlyAlignedSegment(t *testing.T) {
	idx := newTestIndex(t)

	require.NoError(t, idx.Index("doc-a", map[string]any{"body": "apple banana"}))
	require.NoError(t, idx.Index("doc-b", map[string]any{"body": "banana cherry"}))
	require.NoError(t, idx.Flush())

	require.NoError(t, idx.Index("doc-c", map[string]any{"body": "cherry date"}))
	require.NoError(t, idx.Index("doc-d", map[string]any{"body": "date apple"}))
	require.NoError(t, idx.Flush())

	require.Equal(t, 2, idx.NumSegments())

	// Delete doc-b so the merge must renumber survivors densely and keep
	// the remaining documents' postings addressing the new docNum space.
	require.NoError(t, idx.Delete("doc-b"))

	segIDs := make([]string, 0, 2)
	for _, s := range idx.Segments() {
		segIDs = append(segIDs, s.ID)
	}
	sort.Strings(segIDs)

	require.NoError(t, idx.MergeGenerations(segIDs))
	require.Equal(t, 1, idx.NumSegments())

	merged := idx.Segments()[0]
	assert.Equal(t, uint64(3), merged.NumDocs)

	// Every surviving document's postings must decode to a docNum that
	// actually holds that document's stored content — this is the
	// invariant the dense-renumbering/docID-remap fix restores.
	for _, term := range []string{"apple", "banana", "cherry", "date"} {
		entries, err := idx.DumpPostings("body", term)
		require.NoError(t, err)
		for _, e := range entries {
			doc, err := idx.LoadDoc(e.SegmentID, e.DocNum)
			require.NoErrorf(t, err, "term %q docNum %d", term, e.DocNum)
			body, _ := doc["body"].(string)
			assert.Containsf(t, body, term, "docNum %d body %q should contain term %q", e.DocNum, body, term)
		}
	}

	// doc-b is gone: "banana" now only appears in a document whose body
	// also contains "apple" (doc-a), never standing alone.
	entries, err := idx.DumpPostings("body", "banana")
	require.NoError(t, err)
	for _, e := range entries {
		doc, err := idx.LoadDoc(e.SegmentID, e.DocNum)
		require.NoError(t, err)
		body, _ := doc["body"].(string)
		assert.Equal(t, "apple banana", body)
	}
}

func TestMergeGenerationsRequiresTwoSegments(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Index("doc-a", map[string]any{"body": "apple"}))
	require.NoError(t, idx.Flush())

	segIDs := []string{idx.Segments()[0].ID}
	err := idx.MergeGenerations(segIDs)
	assert.Error(t, err)
}

func TestMergeGenerationsRejectsUnknownSegment(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Index("doc-a", map[string]any{"body": "apple"}))
	require.NoError(t, idx.Flush())
	require.NoError(t, idx.Index("doc-b", map[string]any{"body": "banana"}))
	require.NoError(t, idx.Flush())

	err := idx.MergeGenerations([]string{idx.Segments()[0].ID, "does-not-exist"})
	assert.Error(t, err)
}
