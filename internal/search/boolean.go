package search

import "corvusscan/postings/internal/query"

// AndSearch returns documents that contain ALL of the given terms.
// If field is empty, searches all fields.
func (s *Searcher) AndSearch(terms []string, field string) ([]Result, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	must := make([]query.Query, len(terms))
	for i, t := range terms {
		must[i] = &query.TermQuery{Field: field, Term: t}
	}
	if len(must) == 1 {
		return s.execute(must[0], field)
	}
	return s.execute(&query.BoolQuery{Must: must}, field)
}

// OrSearch returns documents that contain ANY of the given terms.
// If field is empty, searches all fields.
func (s *Searcher) OrSearch(terms []string, field string) ([]Result, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	should := make([]query.Query, len(terms))
	for i, t := range terms {
		should[i] = &query.TermQuery{Field: field, Term: t}
	}
	if len(should) == 1 {
		return s.execute(should[0], field)
	}
	return s.execute(&query.BoolQuery{Should: should}, field)
}
