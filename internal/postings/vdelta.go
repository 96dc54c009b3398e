package postings

import (
	"encoding/binary"
	"fmt"

	"corvusscan/postings/internal/docwords"
)

// VDelta1Identifier is the codec identifier for the default delta-varint
// codec.
const VDelta1Identifier = "vdelta1"

// VDelta1 stores, per posting-list chunk:
//   uvarint(docCount)
//   docCount * uvarint(docID delta)
//   docCount * uvarint(freq)
//   for each document, its freq hits, each as: uvarint(pos delta),
//     uint8(payloadLen), payloadLen raw bytes
//
// The hit count of a document is its freq; no separate count is stored.
//
// Document IDs and positions are delta-encoded; each hit additionally
// carries an opaque, length-prefixed payload.
type VDelta1 struct {
	store *chunkStore
}

// NewVDelta1 creates a codec bound to a single growable backing buffer
// (one per segment builder / segment file region).
func NewVDelta1() *VDelta1 {
	return &VDelta1{store: &chunkStore{}}
}

func (c *VDelta1) CodecIdentifier() string { return VDelta1Identifier }

func (c *VDelta1) NewDecoder(ctx TermIndexCtx) Decoder {
	data := c.store.slice(ctx.Chunk)
	return &vdelta1Decoder{data: data}
}

func (c *VDelta1) NewEncoder() Encoder {
	return &vdelta1Encoder{store: c.store}
}

// AppendChunk copies a same-codec chunk's bytes verbatim into this
// codec's backing store and returns the new locator. src must itself be a
// *VDelta1: any other access panics, even one reporting this identifier.
func (c *VDelta1) AppendChunk(src CodecAccess, ctx TermIndexCtx) CodecLocator {
	srcCodec, ok := src.(*VDelta1)
	if !ok {
		panic("postings: AppendChunk requires a same-codec source")
	}
	raw := srcCodec.store.slice(ctx.Chunk)
	return c.store.append(raw)
}

// Merge has no codec-native fast path for vdelta1; for a term held by
// several candidates the merge engine always falls back to the generic
// decode/re-encode algorithm.
func (c *VDelta1) Merge([]MergeParticipant, Encoder) (TermIndexCtx, bool) {
	return TermIndexCtx{}, false
}

// Bytes returns the codec's backing storage, for persisting a segment.
func (c *VDelta1) Bytes() []byte { return c.store.buf }

// LoadVDelta1 wraps an existing byte region (e.g. mmap'd segment data) as
// a read-only VDelta1 codec access.
func LoadVDelta1(data []byte) *VDelta1 {
	return &VDelta1{store: &chunkStore{buf: data}}
}

// chunkStore is an append-only byte buffer addressed by CodecLocator.
type chunkStore struct {
	buf []byte
}

func (s *chunkStore) append(data []byte) CodecLocator {
	off := uint64(len(s.buf))
	s.buf = append(s.buf, data...)
	return CodecLocator{Offset: off, Length: uint64(len(data))}
}

func (s *chunkStore) slice(loc CodecLocator) []byte {
	return s.buf[loc.Offset : loc.Offset+loc.Length]
}

type vdelta1Encoder struct {
	store *chunkStore

	termBuf     []byte
	docCount    uint32
	docIDs      []DocID
	freqs       []uint32
	hitsPerDoc  [][]Hit
	curDocID    DocID
	curHits     []Hit
	haveDocID   bool
	lastDocID   DocID
	lastPos     TokenPos
}

func (e *vdelta1Encoder) BeginTerm() {
	e.docCount = 0
	e.docIDs = e.docIDs[:0]
	e.freqs = e.freqs[:0]
	e.hitsPerDoc = e.hitsPerDoc[:0]
	e.haveDocID = false
	e.lastDocID = 0
}

func (e *vdelta1Encoder) BeginDocument(docID DocID) {
	if e.haveDocID && docID <= e.lastDocID {
		panic(fmt.Sprintf("postings: docID %d out of order after %d", docID, e.lastDocID))
	}
	e.curDocID = docID
	e.curHits = e.curHits[:0]
	e.lastPos = 0
	e.haveDocID = true
	e.lastDocID = docID
}

func (e *vdelta1Encoder) NewHit(pos TokenPos, payload []byte) {
	if len(e.curHits) > 0 && pos <= e.lastPos {
		panic(fmt.Sprintf("postings: position %d out of order after %d", pos, e.lastPos))
	}
	var h Hit
	h.Pos = pos
	h.PayloadLen = uint8(len(payload))
	copy(h.Payload[:], payload)
	e.curHits = append(e.curHits, h)
	e.lastPos = pos
}

func (e *vdelta1Encoder) EndDocument() {
	if len(e.curHits) == 0 {
		panic("postings: freq == 0 for a present document")
	}
	e.docIDs = append(e.docIDs, e.curDocID)
	e.freqs = append(e.freqs, uint32(len(e.curHits)))
	hits := make([]Hit, len(e.curHits))
	copy(hits, e.curHits)
	e.hitsPerDoc = append(e.hitsPerDoc, hits)
	e.docCount++
}

func (e *vdelta1Encoder) EndTerm(out *TermIndexCtx) {
	if e.docCount == 0 {
		*out = TermIndexCtx{}
		return
	}

	buf := e.termBuf[:0]
	var tmp [binary.MaxVarintLen64]byte

	n := binary.PutUvarint(tmp[:], uint64(e.docCount))
	buf = append(buf, tmp[:n]...)

	var prevDocNum DocID
	for _, id := range e.docIDs {
		n = binary.PutUvarint(tmp[:], uint64(id-prevDocNum))
		buf = append(buf, tmp[:n]...)
		prevDocNum = id
	}
	for _, f := range e.freqs {
		n = binary.PutUvarint(tmp[:], uint64(f))
		buf = append(buf, tmp[:n]...)
	}
	for _, hits := range e.hitsPerDoc {
		var prevPos TokenPos
		for _, h := range hits {
			n = binary.PutUvarint(tmp[:], uint64(h.Pos-prevPos))
			buf = append(buf, tmp[:n]...)
			prevPos = h.Pos
			buf = append(buf, h.PayloadLen)
			buf = append(buf, h.Payload[:h.PayloadLen]...)
		}
	}

	e.termBuf = buf
	loc := e.store.append(buf)
	*out = TermIndexCtx{Documents: e.docCount, Chunk: loc}
}

type vdelta1Decoder struct {
	data []byte
	pos  int

	docsLeft  uint32
	docsTotal uint32

	docIDs []DocID
	freqs  []uint32
	hitPos int // byte offset where per-document hit streams begin

	idx      uint32
	curDocID DocID
	curFreq  uint32

	hitsCursor int // byte position within the hits section for curDocID
}

func (d *vdelta1Decoder) Begin() {
	r := &byteReader{data: d.data}
	count, _ := r.uvarint()
	d.docsTotal = uint32(count)
	d.docsLeft = d.docsTotal

	d.docIDs = make([]DocID, d.docsTotal)
	var prev DocID
	for i := range d.docIDs {
		delta, _ := r.uvarint()
		prev += DocID(delta)
		d.docIDs[i] = prev
	}

	d.freqs = make([]uint32, d.docsTotal)
	for i := range d.freqs {
		f, _ := r.uvarint()
		d.freqs[i] = uint32(f)
	}

	d.hitPos = r.pos
	d.idx = 0
	if d.docsTotal == 0 {
		d.curDocID = MaxDocID
		return
	}
	d.curDocID = d.docIDs[0]
	d.curFreq = d.freqs[0]
	d.hitsCursor = d.hitPos
}

func (d *vdelta1Decoder) Next() bool {
	// Skip over the current document's hit bytes before advancing.
	d.skipCurrentHits()

	d.idx++
	if d.idx >= d.docsTotal {
		d.curDocID = MaxDocID
		return false
	}
	d.curDocID = d.docIDs[d.idx]
	d.curFreq = d.freqs[d.idx]
	return true
}

func (d *vdelta1Decoder) skipCurrentHits() {
	r := &byteReader{data: d.data, pos: d.hitsCursor}
	for i := uint32(0); i < d.curFreq; i++ {
		r.uvarint() // pos delta
		plen, _ := r.uvarint()
		r.pos += int(plen)
	}
	d.hitsCursor = r.pos
}

func (d *vdelta1Decoder) CurDocID() DocID { return d.curDocID }
func (d *vdelta1Decoder) CurFreq() uint32 { return d.curFreq }

func (d *vdelta1Decoder) MaterializeHits(termHint docwords.ExecTermID, dws *docwords.Space, out []Hit) {
	r := &byteReader{data: d.data, pos: d.hitsCursor}
	var prevPos TokenPos
	for i := uint32(0); i < d.curFreq && i < uint32(len(out)); i++ {
		delta, _ := r.uvarint()
		prevPos += TokenPos(delta)
		plen, _ := r.uvarint()

		var h Hit
		h.Pos = prevPos
		h.PayloadLen = uint8(plen)
		if plen > 0 {
			copy(h.Payload[:], d.data[r.pos:r.pos+int(plen)])
		}
		r.pos += int(plen)
		out[i] = h

		if dws != nil {
			dws.Stamp(prevPos, termHint)
		}
	}
}

func (d *vdelta1Decoder) Seek(target DocID) bool {
	for d.curDocID != MaxDocID && d.curDocID < target {
		if !d.Next() {
			return false
		}
	}
	return d.curDocID != MaxDocID
}

type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		return 0, fmt.Errorf("postings: malformed varint at offset %d", r.pos)
	}
	r.pos += n
	return v, nil
}
