package merge

import "sort"

// SourceRetention tells a caller what to do with one generation it was
// tracking once a merge naming a (possibly different) set of candidates
// has completed.
type SourceRetention uint8

const (
	// RetainAll: this generation did not participate in the merge at
	// all; keep tracking it exactly as before.
	RetainAll SourceRetention = iota
	// RetainDocumentIDsUpdates: this generation was merged, but some
	// other tracked generation older than it was not a merge candidate
	// (and so still needs this generation's document-ID mapping to stay
	// valid); keep only the document-ID bookkeeping.
	RetainDocumentIDsUpdates
	// Delete: this generation was merged and nothing older still
	// depends on it; it can be removed entirely.
	Delete
)

// TrackedSourceDecision pairs a generation with the retention action a
// caller should take for it.
type TrackedSourceDecision struct {
	Gen       uint64
	Retention SourceRetention
}

// ConsiderTrackedSources decides, for each generation in trackedSources,
// whether the caller should retain it fully, retain only its document-ID
// updates, or delete it, given the generations that just participated in
// this merge (c.Candidates(), already committed).
//
// trackedSources is sorted ascending as a side effect.
func (c *Collection) ConsiderTrackedSources(trackedSources []uint64) []TrackedSourceDecision {
	candidateGens := make(map[uint64]struct{}, len(c.candidates))
	for _, cand := range c.candidates {
		candidateGens[cand.Gen] = struct{}{}
	}

	sort.Slice(trackedSources, func(i, j int) bool { return trackedSources[i] < trackedSources[j] })

	res := make([]TrackedSourceDecision, 0, len(trackedSources))
	lastNotCandidateIdx := -1

	for i, gen := range trackedSources {
		if _, isCandidate := candidateGens[gen]; !isCandidate {
			lastNotCandidateIdx = i
			res = append(res, TrackedSourceDecision{Gen: gen, Retention: RetainAll})
			continue
		}
		if lastNotCandidateIdx >= 0 && lastNotCandidateIdx < i {
			res = append(res, TrackedSourceDecision{Gen: gen, Retention: RetainDocumentIDsUpdates})
		} else {
			res = append(res, TrackedSourceDecision{Gen: gen, Retention: Delete})
		}
	}

	return res
}
