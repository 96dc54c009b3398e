package merge

import (
	"corvusscan/postings/internal/docwords"
	"corvusscan/postings/internal/postings"
)

// BiasAccess wraps a segment-local CodecAccess so every docID it ever
// produces or accepts is translated by bias, letting candidates whose
// native postings use a per-segment-local 0-based docNum space
// participate in a merge keyed by the append-log's global docID space.
// NewEncoder/AppendChunk/Merge are not meaningful on a bias-shifted view
// and are never called by Merge against a Candidate.Access built this
// way (Candidate.Access only ever serves as a merge SOURCE).
func BiasAccess(delegate postings.CodecAccess, bias postings.DocID) postings.CodecAccess {
	if bias == 0 {
		return delegate
	}
	return biasedAccess{delegate: delegate, bias: bias}
}

type biasedAccess struct {
	delegate postings.CodecAccess
	bias     postings.DocID
}

func (a biasedAccess) CodecIdentifier() string { return a.delegate.CodecIdentifier() }

func (a biasedAccess) NewDecoder(ctx postings.TermIndexCtx) postings.Decoder {
	return &biasedDecoder{dec: a.delegate.NewDecoder(ctx), bias: a.bias}
}

func (a biasedAccess) NewEncoder() postings.Encoder { return a.delegate.NewEncoder() }

func (a biasedAccess) AppendChunk(src postings.CodecAccess, ctx postings.TermIndexCtx) postings.CodecLocator {
	return a.delegate.AppendChunk(src, ctx)
}

func (a biasedAccess) Merge(participants []postings.MergeParticipant, enc postings.Encoder) (postings.TermIndexCtx, bool) {
	return a.delegate.Merge(participants, enc)
}

type biasedDecoder struct {
	dec  postings.Decoder
	bias postings.DocID
}

func (d *biasedDecoder) Begin() { d.dec.Begin() }

func (d *biasedDecoder) Next() bool { return d.dec.Next() }

func (d *biasedDecoder) CurDocID() postings.DocID {
	cur := d.dec.CurDocID()
	if cur == postings.MaxDocID {
		return postings.MaxDocID
	}
	return cur + d.bias
}

func (d *biasedDecoder) CurFreq() uint32 { return d.dec.CurFreq() }

func (d *biasedDecoder) MaterializeHits(termHint docwords.ExecTermID, dws *docwords.Space, out []postings.Hit) {
	d.dec.MaterializeHits(termHint, dws, out)
}

func (d *biasedDecoder) Seek(target postings.DocID) bool {
	if target <= d.bias {
		return d.dec.CurDocID() != postings.MaxDocID
	}
	return d.dec.Seek(target - d.bias)
}
