package qexec

import "sort"

// MaskTester reports whether a docID is masked (deleted/obsoleted).
// Structurally satisfied by *registry.Registry without an import cycle.
type MaskTester interface {
	Test(id DocID) bool
}

// BuildQueryIndexTerms groups every term instance in plan by its
// originating query index (QueryTermInstance.Index) and produces one
// uniqued, sorted QueryIndexTerms table per index slot. When
// DisregardTokenFlagsForQueryIndicesTerms is set, Flags is excluded from
// both the uniquing key and the emitted entries.
func BuildQueryIndexTerms(plan *Node, flags ExecFlags) []QueryIndexTerms {
	disregardFlags := flags&DisregardTokenFlagsForQueryIndicesTerms != 0

	byIndex := make(map[uint16]map[QueryIndexTerm]struct{})
	var order []uint16

	for _, term := range plan.Leaves() {
		if term == nil {
			continue
		}
		for _, inst := range term.Instances {
			entry := QueryIndexTerm{TermID: term.TermID, ToNextSpan: inst.ToNextSpan, Flags: inst.Flags}
			if disregardFlags {
				entry.Flags = 0
			}
			set, ok := byIndex[inst.Index]
			if !ok {
				set = make(map[QueryIndexTerm]struct{})
				byIndex[inst.Index] = set
				order = append(order, inst.Index)
			}
			set[entry] = struct{}{}
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	out := make([]QueryIndexTerms, 0, len(order))
	for _, idx := range order {
		set := byIndex[idx]
		uniques := make([]QueryIndexTerm, 0, len(set))
		for entry := range set {
			uniques = append(uniques, entry)
		}
		sort.Slice(uniques, func(i, j int) bool {
			a, b := uniques[i], uniques[j]
			if a.TermID != b.TermID {
				return a.TermID < b.TermID
			}
			if a.ToNextSpan != b.ToNextSpan {
				return a.ToNextSpan < b.ToNextSpan
			}
			return a.Flags < b.Flags
		})
		out = append(out, QueryIndexTerms{Uniques: uniques})
	}
	return out
}
