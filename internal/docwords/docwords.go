// Package docwords implements DocWordsSpace: a fixed-capacity, per-document
// scratch structure that records, for each token position, which execution
// term IDs hit that position. It enables O(1) adjacency/proximity probes for
// phrase and near query evaluation without re-scanning hit lists.
package docwords

import "github.com/bits-and-blooms/bitset"

// ExecTermID is a segment-local, execution-space term identifier assigned
// by the query executor when it translates query tokens against one
// segment's term dictionary. It is meaningless outside that translation.
type ExecTermID = uint32

// TokenPos is a position within a document's token stream.
type TokenPos = uint32

// Space is reset once per candidate document and stamped with every
// matched term's hit positions before a scorer sees the document.
// Capacity equals Limits.MaxPosition: positions at or beyond capacity are
// silently dropped rather than growing the structure, since a document's
// token stream length is bounded by the analyzer/builder at index time.
type Space struct {
	capacity uint32
	// termsAtPos[pos] has bit termID set iff termID hits position pos.
	termsAtPos []*bitset.BitSet
	// touched tracks which positions were stamped this document, so Reset
	// only has to clear what was actually written.
	touched []uint32
}

// New creates a DocWordsSpace with the given position capacity.
func New(capacity uint32) *Space {
	return &Space{
		capacity:   capacity,
		termsAtPos: make([]*bitset.BitSet, capacity),
	}
}

// Reset clears all stamps from the previous document.
func (s *Space) Reset() {
	for _, pos := range s.touched {
		if bs := s.termsAtPos[pos]; bs != nil {
			bs.ClearAll()
		}
	}
	s.touched = s.touched[:0]
}

// Stamp records that termID occurs at position pos in the current
// document. Out-of-range positions are ignored (see Space doc comment).
func (s *Space) Stamp(pos TokenPos, termID ExecTermID) {
	if pos >= s.capacity {
		return
	}
	bs := s.termsAtPos[pos]
	if bs == nil {
		bs = bitset.New(64)
		s.termsAtPos[pos] = bs
	}
	if !bs.Any() {
		s.touched = append(s.touched, pos)
	}
	bs.Set(uint(termID))
}

// HitsAt reports whether termID was stamped at position pos.
func (s *Space) HitsAt(pos TokenPos, termID ExecTermID) bool {
	if pos >= s.capacity {
		return false
	}
	bs := s.termsAtPos[pos]
	return bs != nil && bs.Test(uint(termID))
}

// Adjacent reports whether termA occurs immediately before termB at the
// given position, i.e. termA hits pos and termB hits pos+1.
// This is the primitive phrase/near query evaluation is built on.
func (s *Space) Adjacent(termA, termB ExecTermID, pos TokenPos) bool {
	if pos+1 >= s.capacity {
		return false
	}
	return s.HitsAt(pos, termA) && s.HitsAt(pos+1, termB)
}

// Capacity returns the configured maximum position.
func (s *Space) Capacity() uint32 {
	return s.capacity
}
