package search

import (
	"sort"

	"corvusscan/postings/internal/query"
)

// fieldsOf returns the single explicit field to search, or every indexed
// field (excluding the reserved "_id" field) when none was given.
func (s *Searcher) fieldsOf(field string) []string {
	if field != "" {
		return []string{field}
	}

	fieldSet := make(map[string]bool)
	for _, sn := range s.snapshot.Segments() {
		for _, f := range sn.Segment().Fields() {
			if f != "_id" {
				fieldSet[f] = true
			}
		}
	}

	fields := make([]string, 0, len(fieldSet))
	for f := range fieldSet {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// expandField rewrites any leaf query node left with no explicit field
// (the bare-word case) into a disjunction over every field in fields, so
// an unfielded query searches the whole document instead of a literal
// field named "". Nodes that already name a field are left untouched.
func expandField(q query.Query, fields []string) query.Query {
	if len(fields) <= 1 {
		return q
	}

	switch t := q.(type) {
	case *query.TermQuery:
		if t.Field != "" {
			return q
		}
		return orAcrossFields(fields, func(f string) query.Query {
			return &query.TermQuery{Field: f, Term: t.Term}
		})
	case *query.PhraseQuery:
		if t.Field != "" {
			return q
		}
		return orAcrossFields(fields, func(f string) query.Query {
			return &query.PhraseQuery{Field: f, Phrase: t.Phrase}
		})
	case *query.PrefixQuery:
		if t.Field != "" {
			return q
		}
		return orAcrossFields(fields, func(f string) query.Query {
			return &query.PrefixQuery{Field: f, Prefix: t.Prefix}
		})
	case *query.RegexQuery:
		if t.Field != "" {
			return q
		}
		return orAcrossFields(fields, func(f string) query.Query {
			return &query.RegexQuery{Field: f, Pattern: t.Pattern}
		})
	case *query.FuzzyQuery:
		if t.Field != "" {
			return q
		}
		return orAcrossFields(fields, func(f string) query.Query {
			return &query.FuzzyQuery{Field: f, Term: t.Term, Fuzziness: t.Fuzziness}
		})
	case *query.BoolQuery:
		out := &query.BoolQuery{}
		for _, m := range t.Must {
			out.Must = append(out.Must, expandField(m, fields))
		}
		for _, sh := range t.Should {
			out.Should = append(out.Should, expandField(sh, fields))
		}
		for _, mn := range t.MustNot {
			out.MustNot = append(out.MustNot, expandField(mn, fields))
		}
		return out
	default:
		return q
	}
}

func orAcrossFields(fields []string, mk func(string) query.Query) query.Query {
	if len(fields) == 0 {
		return &query.MatchAllQuery{}
	}
	clauses := make([]query.Query, len(fields))
	for i, f := range fields {
		clauses[i] = mk(f)
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return &query.BoolQuery{Should: clauses}
}

// unionTermSource merges wildcard expansion across every segment's term
// dictionary into one set before compiling, since a single compiled plan
// is reused across all segments by fanout.Run.
type unionTermSource []query.TermSource

func (u unionTermSource) PrefixTerms(prefix, field string) ([]string, error) {
	return u.union(func(src query.TermSource) ([]string, error) {
		return src.PrefixTerms(prefix, field)
	})
}

func (u unionTermSource) MatchingTerms(pattern, field string) ([]string, error) {
	return u.union(func(src query.TermSource) ([]string, error) {
		return src.MatchingTerms(pattern, field)
	})
}

func (u unionTermSource) FuzzyTerms(term string, fuzziness uint8, field string) ([]string, error) {
	return u.union(func(src query.TermSource) ([]string, error) {
		return src.FuzzyTerms(term, fuzziness, field)
	})
}

func (u unionTermSource) union(f func(query.TermSource) ([]string, error)) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, src := range u {
		terms, err := f(src)
		if err != nil {
			return nil, err
		}
		for _, t := range terms {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out, nil
}
