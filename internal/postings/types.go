// Package postings defines the posting-list codec contract: the pair of
// Decoder/Encoder interfaces every on-disk term representation must honor,
// plus the default delta-varint codec.
package postings

import "math"

// DocID is a dense, segment-local document identifier.
type DocID = uint32

// MaxDocID is the end-of-stream sentinel. A Decoder positions
// CurDocID() at this value once Next() has returned false.
const MaxDocID DocID = math.MaxUint32

// TokenPos is a position within a document's token stream.
type TokenPos = uint32

// MaxPayloadLen bounds the opaque per-hit payload carried alongside a
// position (e.g. a sub-token type or weight byte).
const MaxPayloadLen = 8

// Hit is one occurrence of a term in a document.
type Hit struct {
	Pos        TokenPos
	Payload    [MaxPayloadLen]byte
	PayloadLen uint8
}

// CodecLocator is an opaque, codec-specific pointer to where a term's
// posting chunk lives in the segment's storage.
type CodecLocator struct {
	Offset uint64
	Length uint64
}

// TermIndexCtx is what a term dictionary maps a token to: how many
// documents carry the term, and where its postings live.
type TermIndexCtx struct {
	Documents uint32
	Chunk     CodecLocator
}
