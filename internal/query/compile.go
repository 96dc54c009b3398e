package query

import (
	"fmt"
	"strings"

	"corvusscan/postings/internal/qexec"
)

// TermSource is the subset of *segment.Segment a compiled plan needs to
// expand wildcard-shaped clauses (prefix/regex/fuzzy) against one
// term dictionary before execution. Compile expands against whichever
// source it is given; internal/search passes the union of every
// segment's term dictionary and shares the one compiled plan across all
// segments.
type TermSource interface {
	MatchingTerms(pattern, field string) ([]string, error)
	FuzzyTerms(term string, fuzziness uint8, field string) ([]string, error)
	PrefixTerms(prefix, field string) ([]string, error)
}

// compiler assigns a dense ExecTermID per distinct (field, token) pair
// and a monotonic query-index slot per original query clause, so the
// executor and scorer can agree on term identity without ever seeing a
// string.
type compiler struct {
	src        TermSource
	nextTermID uint32
	nextIndex  uint16
	termIDs    map[string]uint32 // field + "\x00" + token -> TermID
	terms      map[uint32]*qexec.QueryTermCtx
}

// Compile translates a parsed Query into an executable plan against src's
// term dictionary. defaultField is used for clauses with no explicit
// field (the bare-word case the lexer/parser already allows).
func Compile(q Query, src TermSource, defaultField string) (*qexec.Node, error) {
	c := &compiler{
		src:     src,
		termIDs: make(map[string]uint32),
		terms:   make(map[uint32]*qexec.QueryTermCtx),
	}
	return c.compile(q, defaultField)
}

func (c *compiler) fieldOf(field, defaultField string) string {
	if field == "" {
		return defaultField
	}
	return field
}

func (c *compiler) leaf(field, token string, toNextSpan uint8) *qexec.Node {
	key := field + "\x00" + token
	id, ok := c.termIDs[key]
	if !ok {
		id = c.nextTermID
		c.nextTermID++
		c.termIDs[key] = id
		c.terms[id] = &qexec.QueryTermCtx{TermID: id, Field: field, Token: token}
	}
	ctx := c.terms[id]
	ctx.Instances = append(ctx.Instances, qexec.QueryTermInstance{
		Index:      c.nextIndex,
		ToNextSpan: toNextSpan,
	})
	c.nextIndex++
	return &qexec.Node{Kind: qexec.NodeTerm, Term: ctx}
}

// orOf synthesizes a disjunction over a set of literal terms discovered
// by expanding a prefix/regex/fuzzy clause against the segment's term
// dictionary. An empty match set compiles to a node that can never
// accept any document, mirroring the empty-OR-is-false convention used
// for Should clauses below.
func (c *compiler) orOf(field string, terms []string) *qexec.Node {
	if len(terms) == 0 {
		return &qexec.Node{Kind: qexec.NodeOr}
	}
	children := make([]*qexec.Node, 0, len(terms))
	for _, t := range terms {
		children = append(children, c.leaf(field, t, 0))
	}
	if len(children) == 1 {
		return children[0]
	}
	return &qexec.Node{Kind: qexec.NodeOr, Children: children}
}

func (c *compiler) compile(q Query, defaultField string) (*qexec.Node, error) {
	switch t := q.(type) {
	case *MatchAllQuery:
		// An empty query string reports zero results rather than the
		// whole index; qexec has no dedicated match-all node, so this
		// compiles to the same never-accepting OR used for an empty
		// wildcard expansion.
		return &qexec.Node{Kind: qexec.NodeOr}, nil

	case *TermQuery:
		return c.leaf(c.fieldOf(t.Field, defaultField), t.Term, 0), nil

	case *PhraseQuery:
		words := strings.Fields(t.Phrase)
		if len(words) == 0 {
			return &qexec.Node{Kind: qexec.NodeOr}, nil
		}
		field := c.fieldOf(t.Field, defaultField)
		children := make([]*qexec.Node, len(words))
		for i, w := range words {
			// ToNextSpan records the adjacency gap to the following word
			// (1 == immediately adjacent); the last word has nothing to
			// span to next.
			span := uint8(0)
			if i < len(words)-1 {
				span = 1
			}
			children[i] = c.leaf(field, w, span)
		}
		if len(children) == 1 {
			return children[0], nil
		}
		return &qexec.Node{Kind: qexec.NodeAnd, Children: children}, nil

	case *PrefixQuery:
		field := c.fieldOf(t.Field, defaultField)
		matches, err := c.src.PrefixTerms(t.Prefix, field)
		if err != nil {
			return nil, fmt.Errorf("query: expand prefix %q: %w", t.Prefix, err)
		}
		return c.orOf(field, matches), nil

	case *RegexQuery:
		field := c.fieldOf(t.Field, defaultField)
		matches, err := c.src.MatchingTerms(t.Pattern, field)
		if err != nil {
			return nil, fmt.Errorf("query: expand regex %q: %w", t.Pattern, err)
		}
		return c.orOf(field, matches), nil

	case *FuzzyQuery:
		field := c.fieldOf(t.Field, defaultField)
		matches, err := c.src.FuzzyTerms(t.Term, t.Fuzziness, field)
		if err != nil {
			return nil, fmt.Errorf("query: expand fuzzy %q: %w", t.Term, err)
		}
		return c.orOf(field, matches), nil

	case *BoolQuery:
		return c.compileBool(t, defaultField)

	default:
		return nil, fmt.Errorf("query: unsupported query node %T", q)
	}
}

func (c *compiler) compileBool(b *BoolQuery, defaultField string) (*qexec.Node, error) {
	var and []*qexec.Node

	for _, m := range b.Must {
		n, err := c.compile(m, defaultField)
		if err != nil {
			return nil, err
		}
		and = append(and, n)
	}

	if len(b.Should) > 0 {
		or := make([]*qexec.Node, 0, len(b.Should))
		for _, s := range b.Should {
			n, err := c.compile(s, defaultField)
			if err != nil {
				return nil, err
			}
			or = append(or, n)
		}
		if len(or) == 1 {
			and = append(and, or[0])
		} else {
			and = append(and, &qexec.Node{Kind: qexec.NodeOr, Children: or})
		}
	}

	for _, mn := range b.MustNot {
		n, err := c.compile(mn, defaultField)
		if err != nil {
			return nil, err
		}
		and = append(and, &qexec.Node{Kind: qexec.NodeNot, Children: []*qexec.Node{n}})
	}

	if len(and) == 0 {
		return &qexec.Node{Kind: qexec.NodeOr}, nil
	}
	if len(and) == 1 {
		return and[0], nil
	}
	return &qexec.Node{Kind: qexec.NodeAnd, Children: and}, nil
}
