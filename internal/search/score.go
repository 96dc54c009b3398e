package search

import (
	"math"

	"corvusscan/postings/internal/docwords"
	"corvusscan/postings/internal/index"
	"corvusscan/postings/internal/qexec"
	"corvusscan/postings/internal/segment"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// bm25Scorer is one qexec.Scorer instance bound to a single segment. It
// accumulates BM25 or TF-IDF contributions across every matched query
// term in a document, summing term scores for multi-term boolean trees
// (the teacher's scorer only ever saw one term at a time), and rejects
// candidates where a phrase clause's words all matched but were not
// adjacent in the document — a check ExecQuery's boolean tree evaluation
// does not perform on its own.
type bm25Scorer struct {
	plan         *qexec.Node
	seg          *segment.Segment
	mode         index.ScoringMode
	totalDocs    uint64
	docFreq      map[qexec.ExecTermID]uint32
	avgFieldLen  map[string]float64
	defaultField string

	dws  *docwords.Space
	hits []Result
}

func (b *bm25Scorer) Prepare(dws *docwords.Space, _ []qexec.QueryIndexTerms) {
	b.dws = dws
}

func (b *bm25Scorer) Consider(match qexec.MatchedDocument) qexec.ConsiderResponse {
	present := make(map[qexec.ExecTermID]bool, len(match.MatchedTerms))
	for _, mt := range match.MatchedTerms {
		present[mt.QueryCtx.TermID] = true
	}
	if !phraseOK(b.plan, present, b.dws) {
		return qexec.Continue
	}

	extID, ok := b.seg.ExternalID(uint64(match.ID))
	if !ok {
		return qexec.Continue
	}

	var score float64
	seenTerm := make(map[string]bool, len(match.MatchedTerms))
	terms := make([]string, 0, len(match.MatchedTerms))

	for _, mt := range match.MatchedTerms {
		field := mt.QueryCtx.Field
		if field == "" {
			field = b.defaultField
		}
		score += b.termScore(mt, field, match.ID)

		if !seenTerm[mt.QueryCtx.Token] {
			seenTerm[mt.QueryCtx.Token] = true
			terms = append(terms, mt.QueryCtx.Token)
		}
	}

	b.hits = append(b.hits, Result{DocID: extID, Score: score, MatchedTerms: terms})
	return qexec.Continue
}

func (b *bm25Scorer) termScore(mt qexec.MatchedQueryTerm, field string, docID qexec.DocID) float64 {
	tf := float64(len(mt.Hits))
	df := b.docFreq[mt.QueryCtx.TermID]
	if df == 0 {
		df = 1
	}

	avg := b.avgFieldLen[field]
	if avg == 0 {
		avg = 1
	}
	fieldLen := float64(b.seg.FieldLength(field, uint64(docID)))
	if fieldLen == 0 {
		fieldLen = avg
	}

	if b.mode == index.ScoringBM25 {
		idf := math.Log(1 + (float64(b.totalDocs)-float64(df)+0.5)/(float64(df)+0.5))
		return idf * (tf * (bm25K1 + 1)) / (tf + bm25K1*(1-bm25B+bm25B*fieldLen/avg))
	}

	tfPrime := 0.0
	if tf > 0 {
		tfPrime = 1 + math.Log(tf)
	}
	idf := math.Log(float64(b.totalDocs+1)/float64(df+1)) + 1.0
	return tfPrime * idf
}

// phraseOK mirrors qexec's own evalTree recursion (presence-only AND/OR/NOT)
// but additionally requires, for every NodeAnd whose direct children form a
// phrase's word chain, that the chain's terms actually appear adjacent in
// the document per dws. Because the check is scoped to the node rather
// than to a flat list of query terms, a phrase nested inside one branch of
// an OR is verified independently of any other phrase in a sibling branch.
func phraseOK(n *qexec.Node, present map[qexec.ExecTermID]bool, dws *docwords.Space) bool {
	if n == nil {
		return true
	}
	switch n.Kind {
	case qexec.NodeTerm:
		return present[n.Term.TermID]
	case qexec.NodeAnd:
		for _, c := range n.Children {
			if !phraseOK(c, present, dws) {
				return false
			}
		}
		return phraseChainOK(n.Children, dws)
	case qexec.NodeOr:
		for _, c := range n.Children {
			if phraseOK(c, present, dws) {
				return true
			}
		}
		return false
	case qexec.NodeNot:
		if len(n.Children) == 0 {
			return true
		}
		return !phraseOK(n.Children[0], present, dws)
	default:
		return false
	}
}

// phraseChainOK scans children for runs of NodeTerm nodes linked by a
// non-zero ToNextSpan (the shape query.Compile gives a phrase's words) and
// verifies each run is actually adjacent in the document.
func phraseChainOK(children []*qexec.Node, dws *docwords.Space) bool {
	i := 0
	for i < len(children) {
		if !chainStart(children[i]) {
			i++
			continue
		}
		j := i
		for j < len(children) && chainStart(children[j]) {
			j++
		}
		if j >= len(children) {
			j = len(children) - 1
		}
		if !phraseRunMatches(dws, children[i:j+1]) {
			return false
		}
		i = j + 1
	}
	return true
}

func chainStart(n *qexec.Node) bool {
	return n.Kind == qexec.NodeTerm && len(n.Term.Instances) > 0 && n.Term.Instances[0].ToNextSpan != 0
}

func phraseRunMatches(dws *docwords.Space, run []*qexec.Node) bool {
	if len(run) < 2 || dws == nil {
		return true
	}
	capacity := dws.Capacity()
	first := run[0].Term.TermID
	for pos := uint32(0); pos+uint32(len(run)-1) < capacity; pos++ {
		if !dws.HitsAt(pos, first) {
			continue
		}
		ok := true
		cur := pos
		for k := 1; k < len(run); k++ {
			if !dws.Adjacent(run[k-1].Term.TermID, run[k].Term.TermID, cur) {
				ok = false
				break
			}
			cur++
		}
		if ok {
			return true
		}
	}
	return false
}
