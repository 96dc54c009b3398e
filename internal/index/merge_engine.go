package index

import (
	"fmt"
	"os"
	"sort"

	"github.com/RoaringBitmap/roaring"

	"corvusscan/postings/internal/merge"
	"corvusscan/postings/internal/postings"
	"corvusscan/postings/internal/segment"
	"corvusscan/postings/internal/store"
)

// MergeGenerations merges the named sealed segments directly at the
// posting-stream level via internal/merge, rather than re-tokenizing
// their stored documents (idx.Merge's approach). It honors each
// segment's own generation and base docID while merging, then renumbers
// the surviving documents densely into the merged segment's own 0-based
// docNum space, rewriting their postings to match.
func (idx *Index) MergeGenerations(segmentIDs []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return fmt.Errorf("index is closed")
	}
	if len(segmentIDs) < 2 {
		return fmt.Errorf("need at least 2 segments to merge")
	}

	idSet := make(map[string]bool, len(segmentIDs))
	for _, id := range segmentIDs {
		idSet[id] = true
	}

	var merging []*segment.Segment
	var remaining []*segment.Segment
	for _, seg := range idx.segments {
		if idSet[seg.ID()] {
			merging = append(merging, seg)
		} else {
			remaining = append(remaining, seg)
		}
	}
	if len(merging) != len(segmentIDs) {
		return fmt.Errorf("some segments not found")
	}

	// Segments' global docID ranges never overlap (BaseDocID is allocated
	// from a monotonic counter), so ordering by BaseDocID ascending makes
	// per-segment-local iteration equivalent to global docID order. Both
	// collectSurvivors and the per-field merge below depend on that to
	// keep the survivor remap order-preserving.
	sort.Slice(merging, func(i, j int) bool { return merging[i].BaseDocID() < merging[j].BaseDocID() })

	deletions := make(map[string]*roaring.Bitmap, len(merging))
	for _, seg := range merging {
		bm, err := idx.getDeletions(seg.ID())
		if err != nil {
			return err
		}
		deletions[seg.ID()] = bm
	}

	fieldNames := unionFieldNames(merging)

	docs, docIDs, fieldLengths, docIDRemap := collectSurvivors(merging, deletions, fieldNames)

	var mergedFields []segment.MergedField
	for _, field := range fieldNames {
		mf, err := mergeField(merging, deletions, field, docIDRemap)
		if err != nil {
			return err
		}
		if mf != nil {
			mergedFields = append(mergedFields, *mf)
		}
	}
	fillFieldStats(mergedFields, fieldLengths)

	currentEpoch, err := idx.meta.GetEpoch()
	if err != nil {
		return err
	}
	newSegmentID := fmt.Sprintf("%012d", currentEpoch+1)

	// The merged segment gets its own freshly allocated, contiguous global
	// docID range (same as a segment built by idx.Merge or idx.Flush)
	// rather than reusing any source segment's range: stored documents are
	// densely renumbered with deletions removed, so local docNum i no
	// longer corresponds to any single source segment's original docID.
	// The actual reservation happens transactionally below, alongside the
	// rest of this merge's metadata commit; this is only the value
	// WriteMergedSegment's footer needs up front.
	newBaseDocID, err := idx.meta.GetDocIDBase()
	if err != nil {
		return err
	}

	segPath, err := segment.WriteMergedSegment(idx.dir, newSegmentID, docs, docIDs, fieldLengths, mergedFields, currentEpoch+1, newBaseDocID)
	if err != nil {
		return err
	}

	newSeg, err := segment.Open(segPath, newSegmentID)
	if err != nil {
		return err
	}

	newSegments := make([]*segment.Segment, 0, len(remaining)+1)
	newSegments = append(newSegments, remaining...)
	newSegments = append(newSegments, newSeg)

	// Tracked-source bookkeeping for segments outside this merge. The
	// tracked generations are those of the remaining segments, none of
	// which is a candidate of this merge, so ConsiderTrackedSources
	// classifies every one as RetainAll and the Delete handling below
	// drops nothing. Only a Delete decision has a concrete action here;
	// RetainDocumentIDsUpdates has none.
	var trackedGens []uint64
	genToSeg := make(map[uint64]*segment.Segment, len(remaining))
	for _, seg := range remaining {
		trackedGens = append(trackedGens, seg.Generation())
		genToSeg[seg.Generation()] = seg
	}

	mergedGenCandidates := make([]merge.Candidate, len(merging))
	for i, seg := range merging {
		mergedGenCandidates[i] = merge.Candidate{Gen: seg.Generation()}
	}
	genColl := merge.New(mergedGenCandidates)
	genColl.Commit()
	decisions := genColl.ConsiderTrackedSources(trackedGens)

	var droppedPaths []string
	for _, d := range decisions {
		if d.Retention != merge.Delete {
			continue
		}
		seg, ok := genToSeg[d.Gen]
		if !ok {
			continue
		}
		filtered := newSegments[:0]
		for _, s := range newSegments {
			if s != seg {
				filtered = append(filtered, s)
			}
		}
		newSegments = filtered
		droppedPaths = append(droppedPaths, seg.Path())
		seg.Close()
	}

	removedPaths := make([]string, 0, len(merging))
	for _, seg := range merging {
		removedPaths = append(removedPaths, seg.Path())
		seg.Close()
	}

	var epoch uint64
	err = idx.meta.Update(func(tx *store.Tx) error {
		epoch, err = tx.IncrementEpoch()
		if err != nil {
			return err
		}
		if _, err := tx.AllocateDocIDBase(uint64(len(docs))); err != nil {
			return err
		}
		for i, externalID := range docIDs {
			if err := tx.SetDocMapping(externalID, newSegmentID, uint64(i)); err != nil {
				return err
			}
		}
		for _, segID := range segmentIDs {
			if err := tx.DeleteDeletions(segID); err != nil {
				return err
			}
		}
		segmentIDList := make([]string, len(newSegments))
		for i, seg := range newSegments {
			segmentIDList[i] = seg.ID()
		}
		return tx.SetSegments(segmentIDList)
	})
	if err != nil {
		newSeg.Close()
		return err
	}

	idx.segments = newSegments
	idx.epoch = epoch

	for _, path := range removedPaths {
		os.Remove(path)
	}
	for _, path := range droppedPaths {
		os.Remove(path)
	}

	return nil
}

func unionFieldNames(segs []*segment.Segment) []string {
	seen := make(map[string]bool)
	var names []string
	for _, seg := range segs {
		for _, f := range seg.Fields() {
			if !seen[f] {
				seen[f] = true
				names = append(names, f)
			}
		}
	}
	return names
}

// mergeField runs the term-level multi-way merge for one field across
// the merging segments, biasing each segment's local docIDs into the
// shared append-log space before the merge sees them, then rewrites the
// merged postings a second time through docIDRemap so they address the
// merged segment's own dense, 0-based local docNum space instead of the
// original sparse global docIDs (survivors are renumbered once deletions
// are dropped, so the two spaces no longer coincide).
func mergeField(segs []*segment.Segment, deletions map[string]*roaring.Bitmap, field string, docIDRemap map[postings.DocID]postings.DocID) (*segment.MergedField, error) {
	var candidates []merge.Candidate
	for _, seg := range segs {
		cursor, err := seg.Terms(field)
		if err != nil {
			continue
		}
		access := merge.BiasAccess(seg.CodecAccess(field), postings.DocID(seg.BaseDocID()))
		masked := biasBitmap(deletions[seg.ID()], seg.BaseDocID())
		candidates = append(candidates, merge.Candidate{
			Gen:    seg.Generation(),
			Access: access,
			Terms:  cursor,
			Masked: masked,
		})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	coll := merge.New(candidates)
	coll.Commit()

	globalOut := postings.NewVDelta1()
	var terms []merge.TermEntry
	if err := coll.Merge(globalOut, &terms, 0); err != nil {
		return nil, fmt.Errorf("index: merge field %s: %w", field, err)
	}
	if len(terms) == 0 {
		return nil, nil
	}

	local := postings.NewVDelta1()
	enc := local.NewEncoder()
	offsets := make(map[string]uint64, len(terms))
	var hitsBuf []postings.Hit

	for _, te := range terms {
		dec := globalOut.NewDecoder(te.Ctx)
		dec.Begin()
		enc.BeginTerm()
		for dec.CurDocID() != postings.MaxDocID {
			localID, ok := docIDRemap[dec.CurDocID()]
			if !ok {
				dec.Next()
				continue
			}
			freq := dec.CurFreq()
			if cap(hitsBuf) < int(freq) {
				hitsBuf = make([]postings.Hit, freq)
			}
			hitsBuf = hitsBuf[:freq]
			dec.MaterializeHits(0, nil, hitsBuf)

			enc.BeginDocument(localID)
			for _, h := range hitsBuf {
				enc.NewHit(h.Pos, h.Payload[:h.PayloadLen])
			}
			enc.EndDocument()
			dec.Next()
		}
		var ctx postings.TermIndexCtx
		enc.EndTerm(&ctx)
		if ctx.Documents > 0 {
			offsets[te.Term] = ctx.Chunk.Offset
		}
	}
	if len(offsets) == 0 {
		return nil, nil
	}

	return &segment.MergedField{
		Name:        field,
		Postings:    local.Bytes(),
		TermOffsets: offsets,
	}, nil
}

// fillFieldStats computes TotalTokens/DocCount for every merged field
// from the merged segment's own field-length table, the same way
// Builder.Build derives BM25 stats for a freshly tokenized segment.
func fillFieldStats(mergedFields []segment.MergedField, fieldLengths map[string][]uint64) {
	for i := range mergedFields {
		lengths := fieldLengths[mergedFields[i].Name]
		var total, count uint64
		for _, l := range lengths {
			if l > 0 {
				total += l
				count++
			}
		}
		mergedFields[i].TotalTokens = total
		mergedFields[i].DocCount = count
	}
}

// biasBitmap shifts a segment-local deletion bitmap into global docID
// space so it can serve as a merge.Candidate's masked-documents set.
func biasBitmap(bm *roaring.Bitmap, bias uint64) *roaring.Bitmap {
	if bm == nil || bm.IsEmpty() || bias == 0 {
		return bm
	}
	shifted := roaring.New()
	it := bm.Iterator()
	for it.HasNext() {
		shifted.Add(uint32(uint64(it.Next()) + bias))
	}
	return shifted
}

// collectSurvivors walks every merging segment's stored documents in
// (segment, local docNum) order — segs must already be sorted by
// ascending BaseDocID — skipping deleted ones, and rebuilds the per-field
// token-length table the merged segment's footer needs for BM25/TFIDF
// averages. It also returns the mapping from each survivor's original
// global docID to its new dense local docNum in the merged segment, used
// to rewrite merged postings onto the merged segment's own docID space.
func collectSurvivors(segs []*segment.Segment, deletions map[string]*roaring.Bitmap, fieldNames []string) ([]map[string]any, []string, map[string][]uint64, map[postings.DocID]postings.DocID) {
	var docs []map[string]any
	var docIDs []string
	fieldLengths := make(map[string][]uint64, len(fieldNames))
	for _, f := range fieldNames {
		fieldLengths[f] = nil
	}
	remap := make(map[postings.DocID]postings.DocID)

	for _, seg := range segs {
		deleted := deletions[seg.ID()]
		base := seg.BaseDocID()
		for docNum := uint64(0); docNum < seg.NumDocs(); docNum++ {
			if deleted != nil && deleted.Contains(uint32(docNum)) {
				continue
			}
			doc, err := seg.LoadDoc(docNum)
			if err != nil {
				continue
			}
			extID, ok := seg.ExternalID(docNum)
			if !ok {
				continue
			}
			remap[postings.DocID(base+docNum)] = postings.DocID(len(docs))
			docs = append(docs, doc)
			docIDs = append(docIDs, extID)
			for _, f := range fieldNames {
				fieldLengths[f] = append(fieldLengths[f], seg.FieldLength(f, docNum))
			}
		}
	}

	return docs, docIDs, fieldLengths, remap
}
