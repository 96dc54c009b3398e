package merge

import (
	"container/heap"
	"fmt"
	"reflect"
	"strings"

	"corvusscan/postings/internal/docwords"
	"corvusscan/postings/internal/postings"
)

// InvariantViolation mirrors the require() assertion macro of the
// source this package is modeled on.
type InvariantViolation struct {
	Reason string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("merge: invariant violation: %s", e.Reason)
}

// TermEntry is one output term produced by Merge.
type TermEntry struct {
	Term string
	Ctx  postings.TermIndexCtx
}

type activeCandidate struct {
	idx  int
	cand Candidate
}

// Merge runs the outer term-level merge-sort over c's committed
// candidates (gen-DESC order; call Commit first), emitting one encoded
// posting list per surviving term to out via enc, and appending every
// surviving (term, ctx) pair to *terms.
//
// flushFreq is accepted for interface parity with the source this is
// grounded on; wiring it to an incremental writer is not implemented.
// See flush.go.
func (c *Collection) Merge(out postings.CodecAccess, terms *[]TermEntry, flushFreq uint32) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if iv, ok := r.(*InvariantViolation); ok {
				err = iv
				return
			}
			panic(r)
		}
	}()

	noteFlush(flushFreq)

	var active []*activeCandidate
	for i, cand := range c.candidates {
		if cand.Terms != nil && !cand.Terms.Done() && cand.Access != nil {
			active = append(active, &activeCandidate{idx: i, cand: cand})
		}
	}
	if len(active) == 0 {
		return nil
	}

	outCodec := out.CodecIdentifier()
	enc := out.NewEncoder()
	dws := docwords.New(1) // MaterializeHits stamps positions into it; nothing here reads them back
	scratch := &mergeScratch{}

	for len(active) > 0 {
		selectedTerm, selectedCtx := active[0].cand.Terms.Cur()
		codec := active[0].cand.Access.CodecIdentifier()
		sameCodec := true

		group := []*activeCandidate{active[0]}
		for _, ac := range active[1:] {
			term, ctx := ac.cand.Terms.Cur()
			r := strings.Compare(term, selectedTerm)
			if r < 0 {
				selectedTerm, selectedCtx = term, ctx
				codec = ac.cand.Access.CodecIdentifier()
				sameCodec = true
				group = []*activeCandidate{ac}
			} else if r == 0 {
				if sameCodec && ac.cand.Access.CodecIdentifier() != codec {
					sameCodec = false
				}
				group = append(group, ac)
			}
		}

		fastPath := sameCodec && codec == outCodec
		for _, ac := range group {
			// A verbatim chunk copy only works between accesses of the same
			// concrete codec type; wrapped views (BiasAccess, a segment's
			// field codec) report the same identifier but are re-encoded.
			if reflect.TypeOf(ac.cand.Access) != reflect.TypeOf(out) {
				fastPath = false
			}
		}

		if len(group) == 1 {
			mergeSingle(c, group[0], selectedTerm, selectedCtx, fastPath, out, enc, dws, scratch, terms)
		} else {
			mergeGroup(c, group, selectedTerm, fastPath, out, enc, dws, scratch, terms)
		}

		for _, ac := range group {
			ac.cand.Terms.Next()
			if ac.cand.Terms.Done() {
				active = removeActive(active, ac)
			}
		}
	}

	return nil
}

func removeActive(active []*activeCandidate, target *activeCandidate) []*activeCandidate {
	out := active[:0]
	for _, ac := range active {
		if ac != target {
			out = append(out, ac)
		}
	}
	return out
}

type mergeScratch struct {
	hits []postings.Hit
}

func (s *mergeScratch) ensure(freq uint32) []postings.Hit {
	if int(freq) > cap(s.hits) {
		s.hits = make([]postings.Hit, freq+128)
	}
	return s.hits[:freq]
}

func mergeSingle(c *Collection, ac *activeCandidate, term string, ctx postings.TermIndexCtx, fastPath bool, out postings.CodecAccess, enc postings.Encoder, dws *docwords.Space, scratch *mergeScratch, terms *[]TermEntry) {
	reg := c.ScannerRegistryFor(ac.idx)

	if fastPath && reg.Empty() {
		if ctx.Documents == 0 {
			return
		}
		loc := out.AppendChunk(ac.cand.Access, ctx)
		*terms = append(*terms, TermEntry{Term: term, Ctx: postings.TermIndexCtx{Documents: ctx.Documents, Chunk: loc}})
		return
	}

	if ctx.Documents == 0 {
		return
	}

	dec := ac.cand.Access.NewDecoder(ctx)
	dec.Begin()
	enc.BeginTerm()

	for {
		docID := dec.CurDocID()
		freq := dec.CurFreq()
		if docID == postings.MaxDocID {
			panic(&InvariantViolation{Reason: "decoder yielded sentinel docID mid-stream"})
		}

		if !reg.Test(docID) {
			hits := scratch.ensure(freq)
			dec.MaterializeHits(0, dws, hits)
			enc.BeginDocument(docID)
			for i := uint32(0); i < freq; i++ {
				h := hits[i]
				enc.NewHit(h.Pos, h.Payload[:h.PayloadLen])
			}
			enc.EndDocument()
		}

		if !dec.Next() {
			break
		}
	}

	var tctx postings.TermIndexCtx
	enc.EndTerm(&tctx)
	if tctx.Documents > 0 {
		*terms = append(*terms, TermEntry{Term: term, Ctx: tctx})
	}
}

type liveParticipant struct {
	ac  *activeCandidate
	ctx postings.TermIndexCtx
}

func mergeGroup(c *Collection, group []*activeCandidate, term string, fastPath bool, out postings.CodecAccess, enc postings.Encoder, dws *docwords.Space, scratch *mergeScratch, terms *[]TermEntry) {
	var live []liveParticipant
	for _, ac := range group {
		_, ctx := ac.cand.Terms.Cur()
		if ctx.Documents > 0 {
			live = append(live, liveParticipant{ac: ac, ctx: ctx})
		}
	}
	if len(live) == 0 {
		return
	}

	if fastPath {
		participants := make([]postings.MergeParticipant, len(live))
		for i, p := range live {
			participants[i] = postings.MergeParticipant{
				Access: p.ac.cand.Access,
				Ctx:    p.ctx,
				Masked: c.ScannerRegistryFor(p.ac.idx),
			}
		}
		enc.BeginTerm()
		tctx, ok := out.Merge(participants, enc)
		if ok {
			var finalCtx postings.TermIndexCtx
			enc.EndTerm(&finalCtx)
			if tctx.Documents > 0 {
				// Codec-native Merge already populated the encoder; EndTerm's
				// own tally is used, and the codec-reported ctx only when
				// EndTerm counted no documents.
				if finalCtx.Documents == 0 {
					finalCtx = tctx
				}
				*terms = append(*terms, TermEntry{Term: term, Ctx: finalCtx})
			}
			return
		}
		// Codec declined the fast path (returned ok=false); its
		// BeginTerm call was a no-op for it, fall through to the
		// generic decode/re-encode merge below using a fresh term.
	}

	mergeGroupGeneric(c, live, term, out, enc, dws, scratch, terms)
}

type decEntry struct {
	regIdx int
	dec    postings.Decoder
	reg    postings.MaskTester
}

type decHeap []decEntry

func (h decHeap) Len() int { return len(h) }
func (h decHeap) Less(i, j int) bool {
	a, b := h[i].dec.CurDocID(), h[j].dec.CurDocID()
	if a != b {
		return a < b
	}
	// Equal docIDs: the lower candidate index (newer generation) first.
	return h[i].regIdx < h[j].regIdx
}
func (h decHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *decHeap) Push(x any)   { *h = append(*h, x.(decEntry)) }
func (h *decHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func mergeGroupGeneric(c *Collection, live []liveParticipant, term string, out postings.CodecAccess, enc postings.Encoder, dws *docwords.Space, scratch *mergeScratch, terms *[]TermEntry) {
	h := make(decHeap, 0, len(live))
	for _, p := range live {
		dec := p.ac.cand.Access.NewDecoder(p.ctx)
		dec.Begin()
		h = append(h, decEntry{regIdx: p.ac.idx, dec: dec, reg: c.ScannerRegistryFor(p.ac.idx)})
	}
	heap.Init(&h)

	enc.BeginTerm()
	for h.Len() > 0 {
		lowest := h[0].dec.CurDocID()

		var group []decEntry
		for h.Len() > 0 && h[0].dec.CurDocID() == lowest {
			group = append(group, heap.Pop(&h).(decEntry))
		}

		// Gen-DESC ordering of candidates (enforced by Collection.Commit)
		// means group[0] is always the newest surviving copy; it wins
		// ties across generations.
		winner := group[0]
		if !winner.reg.Test(lowest) {
			freq := winner.dec.CurFreq()
			hits := scratch.ensure(freq)
			winner.dec.MaterializeHits(0, dws, hits)
			enc.BeginDocument(lowest)
			for i := uint32(0); i < freq; i++ {
				hit := hits[i]
				enc.NewHit(hit.Pos, hit.Payload[:hit.PayloadLen])
			}
			enc.EndDocument()
		}

		for _, e := range group {
			if e.dec.Next() {
				heap.Push(&h, e)
			}
		}
	}

	var tctx postings.TermIndexCtx
	enc.EndTerm(&tctx)
	if tctx.Documents > 0 {
		*terms = append(*terms, TermEntry{Term: term, Ctx: tctx})
	}
}
