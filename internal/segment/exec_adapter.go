package segment

import (
	"encoding/binary"

	"corvusscan/postings/internal/docwords"
	"corvusscan/postings/internal/postings"

	"github.com/couchbase/vellum"
)

// Limits.MaxPosition in the originating design; bounded so DocWordsSpace
// allocates a fixed, modest scratch array regardless of how long a
// document's text actually is.
const MaxPosition = 65535

// MaxPosition satisfies qexec.Segment.
func (s *Segment) MaxPosition() uint32 { return MaxPosition }

// Resolve looks up (field, token) against that field's FST dictionary
// and returns a TermIndexCtx locating its posting chunk within the
// field's postings region. 1-hit encoded terms are translated into a
// synthetic single-document chunk on the fly via oneHitCodec.
func (s *Segment) Resolve(field, token string) (postings.TermIndexCtx, bool) {
	fst, err := s.getFST(field)
	if err != nil {
		return postings.TermIndexCtx{}, false
	}

	val, exists, err := fst.Get([]byte(token))
	if err != nil || !exists {
		return postings.TermIndexCtx{}, false
	}

	if IsOneHit(val) {
		return postings.TermIndexCtx{
			Documents: 1,
			Chunk:     postings.CodecLocator{Offset: DecodeOneHit(val), Length: 0},
		}, true
	}

	meta := s.getFieldMeta(field)
	if meta == nil {
		return postings.TermIndexCtx{}, false
	}
	region := s.data[meta.PostingsOffset : meta.PostingsOffset+meta.PostingsSize]
	docs, _ := binary.Uvarint(region[val:])

	return postings.TermIndexCtx{
		Documents: uint32(docs),
		Chunk:     postings.CodecLocator{Offset: val, Length: uint64(len(region)) - val},
	}, true
}

// CodecAccess returns the codec bound to field's posting region. Terms
// resolved with a zero-length chunk (the 1-hit encoding) are served by a
// dedicated oneHitCodec instead, transparently to the caller: Resolve
// never returns a zero-length chunk for a field whose FieldMeta reports
// PostingsSize > 0 unless the match was 1-hit, so CodecAccess callers
// always get the right decoder by checking Chunk.Length == 0.
func (s *Segment) CodecAccess(field string) postings.CodecAccess {
	meta := s.getFieldMeta(field)
	if meta == nil {
		return oneHitCodec{}
	}
	region := s.data[meta.PostingsOffset : meta.PostingsOffset+meta.PostingsSize]
	return fieldCodec{vdelta: postings.LoadVDelta1(region)}
}

// fieldCodec dispatches to oneHitCodec for zero-length (1-hit) chunks
// and to the field's vdelta1 region otherwise.
type fieldCodec struct {
	vdelta postings.CodecAccess
}

func (c fieldCodec) CodecIdentifier() string { return c.vdelta.CodecIdentifier() }

func (c fieldCodec) NewDecoder(ctx postings.TermIndexCtx) postings.Decoder {
	if ctx.Chunk.Length == 0 {
		return oneHitCodec{}.NewDecoder(ctx)
	}
	return c.vdelta.NewDecoder(ctx)
}

func (c fieldCodec) NewEncoder() postings.Encoder { return c.vdelta.NewEncoder() }

func (c fieldCodec) AppendChunk(src postings.CodecAccess, ctx postings.TermIndexCtx) postings.CodecLocator {
	if ctx.Chunk.Length == 0 {
		return ctx.Chunk
	}
	return c.vdelta.AppendChunk(src, ctx)
}

func (c fieldCodec) Merge(participants []postings.MergeParticipant, enc postings.Encoder) (postings.TermIndexCtx, bool) {
	return c.vdelta.Merge(participants, enc)
}

// oneHitCodec decodes the segment's inline single-document FST
// encoding as a degenerate one-posting, one-hit term.
type oneHitCodec struct{}

func (oneHitCodec) CodecIdentifier() string { return "onehit" }

func (oneHitCodec) NewDecoder(ctx postings.TermIndexCtx) postings.Decoder {
	return &oneHitDecoder{docID: postings.DocID(ctx.Chunk.Offset)}
}

func (oneHitCodec) NewEncoder() postings.Encoder {
	panic("segment: oneHitCodec does not support encoding; 1-hit terms are written by the FST builder directly")
}

func (oneHitCodec) AppendChunk(postings.CodecAccess, postings.TermIndexCtx) postings.CodecLocator {
	panic("segment: oneHitCodec does not support AppendChunk")
}

func (oneHitCodec) Merge([]postings.MergeParticipant, postings.Encoder) (postings.TermIndexCtx, bool) {
	return postings.TermIndexCtx{}, false
}

type oneHitDecoder struct {
	docID postings.DocID
	done  bool
}

func (d *oneHitDecoder) Begin() { d.done = false }

func (d *oneHitDecoder) Next() bool {
	d.done = true
	return false
}

func (d *oneHitDecoder) CurDocID() postings.DocID {
	if d.done {
		return postings.MaxDocID
	}
	return d.docID
}

func (d *oneHitDecoder) CurFreq() uint32 { return 1 }

func (d *oneHitDecoder) MaterializeHits(termHint docwords.ExecTermID, dws *docwords.Space, out []postings.Hit) {
	if len(out) == 0 {
		return
	}
	out[0] = postings.Hit{Pos: 0, PayloadLen: 0}
	if dws != nil {
		dws.Stamp(0, termHint)
	}
}

func (d *oneHitDecoder) Seek(target postings.DocID) bool {
	if !d.done && d.docID >= target {
		return true
	}
	d.done = true
	return false
}

// Terms returns a lexicographic cursor over field's term dictionary,
// pairing each term with its TermIndexCtx, for use by internal/merge.
func (s *Segment) Terms(field string) (TermCursor, error) {
	fst, err := s.getFST(field)
	if err != nil {
		return nil, err
	}
	itr, err := fst.Iterator(nil, nil)
	if err != nil && err != vellum.ErrIteratorDone {
		return nil, err
	}
	return &fstTermCursor{seg: s, field: field, itr: itr, done: err == vellum.ErrIteratorDone}, nil
}

// TermCursor matches merge.TermCursor without importing internal/merge
// from internal/segment (that would invert the dependency direction).
type TermCursor interface {
	Done() bool
	Cur() (term string, ctx postings.TermIndexCtx)
	Next()
}

type fstTermCursor struct {
	seg   *Segment
	field string
	itr   *vellum.FSTIterator
	done  bool
}

func (c *fstTermCursor) Done() bool { return c.done }

func (c *fstTermCursor) Cur() (string, postings.TermIndexCtx) {
	if c.done {
		return "", postings.TermIndexCtx{}
	}
	key, val := c.itr.Current()
	ctx, _ := s_resolveValue(c.seg, c.field, val)
	return string(key), ctx
}

func (c *fstTermCursor) Next() {
	if c.done {
		return
	}
	if err := c.itr.Next(); err != nil {
		c.done = true
	}
}

// s_resolveValue shares Resolve's FST-value-to-TermIndexCtx translation
// without re-running the FST lookup (the iterator already has the value).
func s_resolveValue(s *Segment, field string, val uint64) (postings.TermIndexCtx, bool) {
	if IsOneHit(val) {
		return postings.TermIndexCtx{
			Documents: 1,
			Chunk:     postings.CodecLocator{Offset: DecodeOneHit(val), Length: 0},
		}, true
	}
	meta := s.getFieldMeta(field)
	if meta == nil {
		return postings.TermIndexCtx{}, false
	}
	region := s.data[meta.PostingsOffset : meta.PostingsOffset+meta.PostingsSize]
	docs, _ := binary.Uvarint(region[val:])
	return postings.TermIndexCtx{
		Documents: uint32(docs),
		Chunk:     postings.CodecLocator{Offset: val, Length: uint64(len(region)) - val},
	}, true
}
