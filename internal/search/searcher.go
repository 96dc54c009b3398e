// Package search exposes the public query surface used by the CLI tools:
// it compiles a query string or primitive term/phrase/boolean request into
// a qexec plan, fans it out across every flushed segment with fanout.Run,
// and scores the accepted documents.
package search

import (
	"context"
	"sort"

	"corvusscan/postings/internal/fanout"
	"corvusscan/postings/internal/index"
	"corvusscan/postings/internal/qexec"
	"corvusscan/postings/internal/query"
)

// Result represents a search hit with score.
type Result struct {
	DocID        string
	Score        float64
	Doc          map[string]any
	MatchedTerms []string
}

// Searcher performs searches on an index snapshot.
type Searcher struct {
	snapshot *index.IndexSnapshot
}

// New creates a new searcher for a snapshot.
func New(snapshot *index.IndexSnapshot) *Searcher {
	return &Searcher{snapshot: snapshot}
}

// Close releases searcher resources.
func (s *Searcher) Close() error {
	return nil
}

// RunQueryString tokenizes, parses and executes a full query string
// against the default (all-fields) scope.
func (s *Searcher) RunQueryString(queryString string) ([]Result, error) {
	tokens, err := query.Tokenize(queryString)
	if err != nil {
		return nil, err
	}
	ast, err := query.Parse(tokens)
	if err != nil {
		return nil, err
	}
	return s.execute(ast, "")
}

// Query is an alias for RunQueryString.
func (s *Searcher) Query(queryString string) ([]Result, error) {
	return s.RunQueryString(queryString)
}

// Search searches for a term, optionally in a specific field.
func (s *Searcher) Search(term, field string) ([]Result, error) {
	return s.execute(&query.TermQuery{Field: field, Term: term}, field)
}

// PhraseSearch searches for an exact phrase, optionally in a specific field.
func (s *Searcher) PhraseSearch(phrase, field string) ([]Result, error) {
	return s.execute(&query.PhraseQuery{Field: field, Phrase: phrase}, field)
}

// RegexSearch searches for documents containing terms matching pattern.
func (s *Searcher) RegexSearch(pattern, field string) ([]Result, error) {
	return s.execute(&query.RegexQuery{Field: field, Pattern: pattern}, field)
}

// PrefixSearch searches for documents containing terms starting with prefix.
func (s *Searcher) PrefixSearch(prefix, field string) ([]Result, error) {
	return s.execute(&query.PrefixQuery{Field: field, Prefix: prefix}, field)
}

// FuzzySearch searches for documents containing terms within fuzziness edit
// distance of term.
func (s *Searcher) FuzzySearch(term string, fuzziness uint8, field string) ([]Result, error) {
	return s.execute(&query.FuzzyQuery{Field: field, Term: term, Fuzziness: fuzziness}, field)
}

// execute compiles ast once against the union of every flushed segment's
// term dictionary and runs the resulting plan through fanout.Run, each
// segment scored by its own bm25Scorer instance. Documents still sitting
// in the in-memory builder (not yet flushed to a segment) are not
// searched; they become visible to queries after the next flush.
func (s *Searcher) execute(ast query.Query, field string) ([]Result, error) {
	if _, ok := ast.(*query.MatchAllQuery); ok {
		return nil, nil
	}

	snaps := s.snapshot.Segments()
	if len(snaps) == 0 {
		return nil, nil
	}

	fields := s.fieldsOf(field)
	defaultField := field
	if defaultField == "" && len(fields) == 1 {
		defaultField = fields[0]
	}
	ast = expandField(ast, fields)

	segs := make([]qexec.Segment, len(snaps))
	sources := make(unionTermSource, len(snaps))
	for i, sn := range snaps {
		segs[i] = sn.Segment()
		sources[i] = sn.Segment()
	}

	plan, err := query.Compile(ast, sources, defaultField)
	if err != nil {
		return nil, err
	}

	docFreq := globalDocFreq(plan, segs)
	avgFieldLen := s.avgFieldLenTable(fields, defaultField)

	masked := make([]qexec.MaskTester, len(snaps))
	for i, sn := range snaps {
		if del := sn.Deleted(); del != nil && !del.IsEmpty() {
			masked[i] = deletedMask{del}
		}
	}

	totalDocs := s.snapshot.TotalDocs()
	scoringMode := s.snapshot.ScoringMode()

	next := 0
	newScorer := func() qexec.Scorer {
		idx := next
		next++
		return &bm25Scorer{
			plan:         plan,
			seg:          snaps[idx].Segment(),
			mode:         scoringMode,
			totalDocs:    totalDocs,
			docFreq:      docFreq,
			avgFieldLen:  avgFieldLen,
			defaultField: defaultField,
		}
	}

	scorers, err := fanout.Run(context.Background(), plan, segs, masked, nil, 0, newScorer)
	if err != nil {
		return nil, err
	}

	// Newest segment wins a duplicate external ID, matching the
	// dedup direction used throughout the rest of the index.
	seen := make(map[string]bool)
	var results []Result
	for i := len(scorers) - 1; i >= 0; i-- {
		bs, ok := scorers[i].(*bm25Scorer)
		if !ok {
			continue
		}
		for _, r := range bs.hits {
			if seen[r.DocID] {
				continue
			}
			seen[r.DocID] = true
			results = append(results, r)
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// globalDocFreq computes, for every distinct term the plan references, the
// total document count across every segment's term dictionary. Boolean
// trees spanning several segments need this global figure; a single
// segment's local match count (what the teacher's scorer used) is not a
// meaningful document frequency once a query can span many segments.
func globalDocFreq(plan *qexec.Node, segs []qexec.Segment) map[qexec.ExecTermID]uint32 {
	freq := make(map[qexec.ExecTermID]uint32)
	for _, leaf := range plan.Leaves() {
		if leaf == nil {
			continue
		}
		if _, ok := freq[leaf.TermID]; ok {
			continue
		}
		var total uint32
		for _, seg := range segs {
			if ctx, ok := seg.Resolve(leaf.Field, leaf.Token); ok {
				total += ctx.Documents
			}
		}
		freq[leaf.TermID] = total
	}
	return freq
}

// avgFieldLenTable precomputes every field's average length once so it can
// be read concurrently by per-segment scorer goroutines without locking.
func (s *Searcher) avgFieldLenTable(fields []string, defaultField string) map[string]float64 {
	table := make(map[string]float64, len(fields)+1)
	add := func(f string) {
		if _, ok := table[f]; ok {
			return
		}
		avg := s.snapshot.AvgFieldLength(f)
		if avg == 0 {
			avg = 1
		}
		table[f] = avg
	}
	for _, f := range fields {
		add(f)
	}
	if defaultField != "" {
		add(defaultField)
	}
	return table
}
