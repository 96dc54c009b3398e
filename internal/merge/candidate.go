// Package merge implements the multi-way term-level merge of postings
// across segment generations, honoring per-generation deletion masks and
// the retention rules that decide which generations a caller still
// needs to track after a merge.
package merge

import (
	"sort"

	"corvusscan/postings/internal/postings"
	"corvusscan/postings/internal/registry"

	"github.com/RoaringBitmap/roaring"
)

// TermCursor walks a segment's term dictionary in lexicographic order,
// pairing each term with its posting-list location.
type TermCursor interface {
	Done() bool
	Cur() (term string, ctx postings.TermIndexCtx)
	Next()
}

// Candidate is one segment generation participating in a merge. Access
// may be nil when the generation contributes only a tombstone mask (see
// Collection.Commit).
type Candidate struct {
	Gen    uint64
	Access postings.CodecAccess
	Terms  TermCursor
	Masked *roaring.Bitmap
}

// Collection holds the candidates for one merge operation and, after
// Commit, the tombstone sets any given candidate's registry must see:
// every strictly-newer candidate's mask.
type Collection struct {
	candidates []Candidate
	// all is the flattened list of masked-document sets contributed by
	// candidates in gen-DESC order; contributed[i] is how many of the
	// leading entries of all belong to candidates[0:i+1].
	all         []*roaring.Bitmap
	contributed []int
}

// New builds an (uncommitted) collection from the given candidates.
func New(candidates []Candidate) *Collection {
	return &Collection{candidates: candidates}
}

// Commit sorts candidates by generation descending and prepares the
// per-candidate tombstone registry lookup. Must be called before Merge
// or ScannerRegistryFor.
func (c *Collection) Commit() {
	sort.SliceStable(c.candidates, func(i, j int) bool {
		return c.candidates[i].Gen > c.candidates[j].Gen
	})

	c.all = c.all[:0]
	c.contributed = make([]int, len(c.candidates))
	for i, cand := range c.candidates {
		if cand.Masked != nil {
			c.all = append(c.all, cand.Masked)
		}
		c.contributed[i] = len(c.all)
	}
}

// ScannerRegistryFor returns the tombstone registry a decoder for
// candidate idx must consult: the masks of every candidate strictly
// newer than idx (those sort before it after Commit).
func (c *Collection) ScannerRegistryFor(idx int) *registry.Registry {
	n := 0
	if idx > 0 {
		n = c.contributed[idx-1]
	}
	return registry.Make(c.all, n)
}

// Candidates returns the committed, gen-DESC ordered candidate slice.
func (c *Collection) Candidates() []Candidate {
	return c.candidates
}
