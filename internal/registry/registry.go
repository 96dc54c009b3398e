// Package registry implements the masked-documents registry: a stack of
// borrowed tombstone sets tested in O(k) for a small k. It borrows its
// sets and never resizes or mutates them; lifetime is the enclosing
// execution or merge.
package registry

import "github.com/RoaringBitmap/roaring"

// DocID is a dense, segment-local document identifier.
type DocID = uint32

// Registry tests membership across a stack of tombstone sets.
type Registry struct {
	sets []*roaring.Bitmap
}

// Make constructs a registry over the first n sets of the provided slice.
// Nil entries are tolerated (treated as empty) so callers can pass a
// candidate's optional tombstone set directly.
func Make(sets []*roaring.Bitmap, n int) *Registry {
	return &Registry{sets: sets[:n]}
}

// Empty returns true when the registry has no non-empty sets, letting
// hot paths skip the per-document Test call entirely.
func (r *Registry) Empty() bool {
	if r == nil {
		return true
	}
	for _, s := range r.sets {
		if s != nil && !s.IsEmpty() {
			return false
		}
	}
	return true
}

// Test reports whether id is masked by any set in the registry.
func (r *Registry) Test(id DocID) bool {
	if r == nil {
		return false
	}
	for _, s := range r.sets {
		if s != nil && s.Contains(id) {
			return true
		}
	}
	return false
}
