// Package qexec implements the query executor: it walks a query tree over
// one segment's postings, materializes per-document hits, and invokes a
// caller-supplied scorer callback for every accepted document.
package qexec

import (
	"corvusscan/postings/internal/docwords"
	"corvusscan/postings/internal/postings"
)

// DocID is a dense, segment-local document identifier.
type DocID = postings.DocID

// ExecTermID is a segment-local term identifier assigned when a query's
// tokens are translated against one segment's term dictionary.
type ExecTermID = docwords.ExecTermID

// QueryTermFlags carries token-flag bits assigned by the (external, out of
// scope) query rewriter/parser — e.g. whether a term was produced by
// alias expansion. The executor treats these as opaque.
type QueryTermFlags = uint16

// QueryIndexTerm is one (termID, toNextSpan, flags) triple associated with
// a query index slot.
type QueryIndexTerm struct {
	TermID     ExecTermID
	ToNextSpan uint8
	Flags      QueryTermFlags
}

// QueryIndexTerms is the uniqued, sorted table of QueryIndexTerm values
// sharing one query index. Uniques are sorted (TermID ASC, ToNextSpan ASC,
// Flags ASC).
type QueryIndexTerms struct {
	Uniques []QueryIndexTerm
}

// RewriteCtx records provenance for a term instance produced by query
// rewriting; rewriting itself is out of scope, so these are typically
// zero-valued placeholders threaded through from internal/query.
type RewriteCtx struct {
	RangeStart          uint16
	RangeEnd            uint8
	TranslationCoeff    float32
	SourceSeqSize       uint8
}

// QueryTermInstance is one occurrence of a term in the original query.
type QueryTermInstance struct {
	Index      uint16
	Flags      QueryTermFlags
	Rep        uint8
	ToNextSpan uint8
	Rewrite    RewriteCtx
}

// QueryTermCtx is produced by the query pre-processor and consumed
// read-only by both the executor and the scorer.
type QueryTermCtx struct {
	TermID    ExecTermID
	Field     string
	Token     string
	Instances []QueryTermInstance
}

// MatchedQueryTerm pairs a query term's context with its materialized
// hits for the document currently under consideration.
type MatchedQueryTerm struct {
	QueryCtx *QueryTermCtx
	Hits     []postings.Hit
}

// MatchedDocument is ephemeral: valid only during one Scorer.Consider call.
type MatchedDocument struct {
	ID           DocID
	MatchedTerms []MatchedQueryTerm
}

// ConsiderResponse is returned by Scorer.Consider to drive the executor's
// control flow.
type ConsiderResponse uint8

const (
	// Continue proceeds to the next candidate document.
	Continue ConsiderResponse = iota
	// Abort terminates execution immediately; no further documents are
	// visited and no further side effects occur.
	Abort
)

// Scorer is the caller-supplied callback interface (MatchedIndexDocumentsFilter
// in the originating design).
type Scorer interface {
	// Prepare is called once before execution begins.
	Prepare(dws *docwords.Space, queryIndicesTerms []QueryIndexTerms)
	// Consider is called once per accepted document, in ascending docID order.
	Consider(match MatchedDocument) ConsiderResponse
}

// DocumentsFilter is an optional pre-filter invoked before hit
// materialization and before query evaluation for a candidate document.
// Filter returns true to discard the document.
type DocumentsFilter interface {
	Filter(id DocID) bool
}

// ExecFlags is a 32-bit execution flags bitmask.
type ExecFlags uint32

const (
	// DocumentsOnly: the scorer receives only MatchedDocument.ID;
	// MatchedTerms is empty. Roughly doubles throughput when the caller
	// only needs document identity.
	DocumentsOnly ExecFlags = 1 << iota
	// DisregardTokenFlagsForQueryIndicesTerms: uniquing of QueryIndexTerm
	// ignores Flags, producing one entry per (TermID, ToNextSpan); Flags
	// is zeroed in emitted entries.
	DisregardTokenFlagsForQueryIndicesTerms
)
