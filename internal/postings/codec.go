package postings

import "corvusscan/postings/internal/docwords"

// Decoder iterates a single term's posting list in ascending docID order.
type Decoder interface {
	// Begin positions the cursor at the first document. After Begin,
	// CurDocID/CurFreq are valid (or CurDocID() == MaxDocID if the term
	// has no documents).
	Begin()

	// Next advances to the next document, returning false when exhausted.
	// After it returns false, CurDocID() == MaxDocID.
	Next() bool

	CurDocID() DocID
	CurFreq() uint32

	// MaterializeHits writes the current document's CurFreq() hits into
	// out, ascending by position. If dws is non-nil, every position is
	// also stamped into it under termHint.
	MaterializeHits(termHint docwords.ExecTermID, dws *docwords.Space, out []Hit)

	// Seek advances to the first document >= target, returning false if
	// none exists. Optional fast-path; callers must tolerate a decoder
	// that only implements it via repeated Next().
	Seek(target DocID) bool
}

// Encoder is the symmetric writer for one segment's posting storage.
type Encoder interface {
	BeginTerm()
	// BeginDocument opens a new document; docID must be strictly greater
	// than the previous one written within this term.
	BeginDocument(docID DocID)
	// NewHit appends a hit; pos must be strictly greater than the
	// previous position written within the current document.
	NewHit(pos TokenPos, payload []byte)
	EndDocument()
	// EndTerm finalizes the term's posting list, writing the resulting
	// TermIndexCtx into out.
	EndTerm(out *TermIndexCtx)
}

// MergeParticipant is one input to a codec-native multi-way merge.
type MergeParticipant struct {
	Access CodecAccess
	Ctx    TermIndexCtx
	Masked MaskTester
}

// MaskTester is the minimal surface Merge needs from a masked-documents
// registry, avoiding an import-cycle-prone dependency on internal/registry.
type MaskTester interface {
	Test(id DocID) bool
}

// CodecAccess is the per-segment handle a codec exposes: it can create
// decoders/encoders, and optionally provide fast paths exercised by the
// merge engine.
type CodecAccess interface {
	// CodecIdentifier is a short, stable string; equality between a
	// source and destination CodecAccess determines fast-path
	// eligibility in the merge engine.
	CodecIdentifier() string

	NewDecoder(ctx TermIndexCtx) Decoder
	NewEncoder() Encoder

	// AppendChunk copies a same-codec posting chunk verbatim into this
	// CodecAccess's storage, without decoding/re-encoding. Callers must
	// only invoke this when src.CodecIdentifier() == this.CodecIdentifier().
	AppendChunk(src CodecAccess, ctx TermIndexCtx) CodecLocator

	// Merge is an optional codec-native multi-way merge fast path. ok is
	// false when the codec has none, in which case callers fall back to
	// the generic decode/re-encode merge.
	Merge(participants []MergeParticipant, enc Encoder) (TermIndexCtx, bool)
}
