package qexec

import (
	"container/heap"
	"fmt"

	"corvusscan/postings/internal/docwords"
	"corvusscan/postings/internal/postings"
)

// InvariantViolation is raised (via panic, recovered at ExecQuery's
// boundary) when a decoder or encoder breaks a structural invariant
// (out-of-order docIDs, zero-freq present document). It mirrors the
// require() assertion macro in the originating C++ design.
type InvariantViolation struct {
	Reason string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("qexec: invariant violation: %s", e.Reason)
}

// Segment is the minimal surface ExecQuery needs from a segment: a way
// to translate a token to this segment's codec access and term index
// context, and the DocWordsSpace capacity to allocate.
type Segment interface {
	// Resolve looks up a (field, token) pair's TermIndexCtx in this
	// segment, returning ok=false if the term is absent from that
	// field's dictionary.
	Resolve(field, token string) (postings.TermIndexCtx, bool)
	// CodecAccess returns the decoder factory for field's posting
	// storage. Distinct fields may use distinct underlying byte
	// regions but share one codec identifier within a segment.
	CodecAccess(field string) postings.CodecAccess
	MaxPosition() uint32
}

type leafState struct {
	ctx *QueryTermCtx
	dec postings.Decoder
}

func (s *leafState) contains(id DocID) bool {
	cur := s.dec.CurDocID()
	if cur == postings.MaxDocID {
		return false
	}
	if cur < id {
		if !s.dec.Seek(id) {
			return false
		}
		cur = s.dec.CurDocID()
	}
	return cur == id
}

// candidateHeap drives ascending-docID candidate generation across every
// distinct leaf decoder referenced by the query tree.
type candidateHeap []*leafState

func (h candidateHeap) Len() int { return len(h) }
func (h candidateHeap) Less(i, j int) bool {
	return h[i].dec.CurDocID() < h[j].dec.CurDocID()
}
func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)   { *h = append(*h, x.(*leafState)) }
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// ExecQuery walks plan over seg, delivering every accepted document to
// scorer in ascending docID order.
func ExecQuery(plan *Node, seg Segment, masked MaskTester, scorer Scorer, preFilter DocumentsFilter, flags ExecFlags) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if iv, ok := r.(*InvariantViolation); ok {
				err = iv
				return
			}
			panic(r)
		}
	}()

	if plan == nil {
		return nil
	}

	dws := docwords.New(seg.MaxPosition())
	queryIndicesTerms := BuildQueryIndexTerms(plan, flags)
	scorer.Prepare(dws, queryIndicesTerms)

	leaves := plan.Leaves()
	states := make(map[ExecTermID]*leafState, len(leaves))
	for _, l := range leaves {
		if l == nil {
			continue
		}
		if _, exists := states[l.TermID]; exists {
			continue
		}
		ctx, ok := seg.Resolve(l.Field, l.Token)
		if !ok || ctx.Documents == 0 {
			continue
		}
		access := seg.CodecAccess(l.Field)
		dec := access.NewDecoder(ctx)
		dec.Begin()
		states[l.TermID] = &leafState{ctx: l, dec: dec}
	}

	h := make(candidateHeap, 0, len(states))
	for _, st := range states {
		if st.dec.CurDocID() != postings.MaxDocID {
			h = append(h, st)
		}
	}
	heap.Init(&h)

	documentsOnly := flags&DocumentsOnly != 0
	hitsByTerm := make(map[ExecTermID]*termHits)

	var lastEmitted DocID
	haveEmitted := false

	for h.Len() > 0 {
		candidate := h[0].dec.CurDocID()

		// Drain every leaf currently positioned at candidate so the
		// next heap pop sees a fresh docID, then re-seed the heap with
		// their advanced positions.
		var atCandidate []*leafState
		for h.Len() > 0 && h[0].dec.CurDocID() == candidate {
			atCandidate = append(atCandidate, heap.Pop(&h).(*leafState))
		}

		accepted := masked == nil || !masked.Test(candidate)
		if accepted && preFilter != nil && preFilter.Filter(candidate) {
			accepted = false
		}
		if accepted && !evalTree(plan, candidate, states) {
			accepted = false
		}

		if accepted {
			if haveEmitted && candidate <= lastEmitted {
				panic(&InvariantViolation{Reason: fmt.Sprintf("docID %d not strictly greater than previously emitted %d", candidate, lastEmitted)})
			}
			haveEmitted = true
			lastEmitted = candidate

			match := MatchedDocument{ID: candidate}
			if !documentsOnly {
				dws.Reset()
				match.MatchedTerms = materializeMatch(plan, candidate, states, hitsByTerm, dws)
			}

			resp := scorer.Consider(match)
			if resp == Abort {
				return nil
			}
		}

		for _, st := range atCandidate {
			if st.dec.Next() {
				heap.Push(&h, st)
			}
		}
	}

	return nil
}

// evalTree evaluates the boolean tree at docID id using each leaf's
// current decoder position (seeking forward as needed via contains).
func evalTree(n *Node, id DocID, states map[ExecTermID]*leafState) bool {
	switch n.Kind {
	case NodeTerm:
		st, ok := states[n.Term.TermID]
		if !ok {
			return false
		}
		return st.contains(id)
	case NodeAnd:
		for _, c := range n.Children {
			if !evalTree(c, id, states) {
				return false
			}
		}
		return true
	case NodeOr:
		for _, c := range n.Children {
			if evalTree(c, id, states) {
				return true
			}
		}
		return false
	case NodeNot:
		return !evalTree(n.Children[0], id, states)
	default:
		return false
	}
}

// materializeMatch walks the distinct terms used by a matching tree at id
// and produces the matched-terms slice, stamping DocWordsSpace along the
// way.
func materializeMatch(n *Node, id DocID, states map[ExecTermID]*leafState, scratch map[ExecTermID]*termHits, dws *docwords.Space) []MatchedQueryTerm {
	var out []MatchedQueryTerm
	seen := make(map[ExecTermID]bool)
	collectMatchedTerms(n, id, states, scratch, dws, seen, &out)
	return out
}

func collectMatchedTerms(n *Node, id DocID, states map[ExecTermID]*leafState, scratch map[ExecTermID]*termHits, dws *docwords.Space, seen map[ExecTermID]bool, out *[]MatchedQueryTerm) {
	switch n.Kind {
	case NodeTerm:
		st, ok := states[n.Term.TermID]
		if !ok || seen[n.Term.TermID] || !st.contains(id) {
			return
		}
		seen[n.Term.TermID] = true

		th, ok := scratch[n.Term.TermID]
		if !ok {
			th = &termHits{}
			scratch[n.Term.TermID] = th
		}
		freq := st.dec.CurFreq()
		th.setFreq(freq)
		st.dec.MaterializeHits(n.Term.TermID, dws, th.slice())

		hits := make([]postings.Hit, freq)
		copy(hits, th.slice())
		*out = append(*out, MatchedQueryTerm{QueryCtx: n.Term, Hits: hits})
	case NodeNot:
		// Negated terms contribute no hits.
		return
	default:
		for _, c := range n.Children {
			collectMatchedTerms(c, id, states, scratch, dws, seen, out)
		}
	}
}
