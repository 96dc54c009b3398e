package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corvusscan/postings/internal/postings"
)

func buildSingleTermCodec(t *testing.T, docs []postings.DocID) (*postings.VDelta1, postings.TermIndexCtx) {
	t.Helper()
	codec := postings.NewVDelta1()
	enc := codec.NewEncoder()
	enc.BeginTerm()
	for _, d := range docs {
		enc.BeginDocument(d)
		enc.NewHit(1, nil)
		enc.EndDocument()
	}
	var ctx postings.TermIndexCtx
	enc.EndTerm(&ctx)
	return codec, ctx
}

func TestBiasAccessZeroBiasIsIdentity(t *testing.T) {
	codec, _ := buildSingleTermCodec(t, []postings.DocID{1})
	access := BiasAccess(codec, 0)
	assert.Same(t, codec, access)
}

func TestBiasAccessShiftsDocIDs(t *testing.T) {
	codec, ctx := buildSingleTermCodec(t, []postings.DocID{0, 2, 5})
	access := BiasAccess(codec, 100)

	dec := access.NewDecoder(ctx)
	dec.Begin()
	var got []postings.DocID
	for dec.CurDocID() != postings.MaxDocID {
		got = append(got, dec.CurDocID())
		if !dec.Next() {
			break
		}
	}
	assert.Equal(t, []postings.DocID{100, 102, 105}, got)
}

func TestBiasAccessSeekTranslatesTarget(t *testing.T) {
	codec, ctx := buildSingleTermCodec(t, []postings.DocID{0, 2, 5, 9})
	access := BiasAccess(codec, 100)

	dec := access.NewDecoder(ctx)
	dec.Begin()
	require.True(t, dec.Seek(105))
	assert.Equal(t, postings.DocID(105), dec.CurDocID())
}

func TestBiasAccessSeekBelowBiasIsNoOp(t *testing.T) {
	codec, ctx := buildSingleTermCodec(t, []postings.DocID{0, 2})
	access := BiasAccess(codec, 100)

	dec := access.NewDecoder(ctx)
	dec.Begin()
	require.True(t, dec.Seek(50))
	assert.Equal(t, postings.DocID(100), dec.CurDocID())
}

func TestBiasAccessSeekPastEndFails(t *testing.T) {
	codec, ctx := buildSingleTermCodec(t, []postings.DocID{0})
	access := BiasAccess(codec, 100)

	dec := access.NewDecoder(ctx)
	dec.Begin()
	assert.False(t, dec.Seek(999))
	assert.Equal(t, postings.MaxDocID, dec.CurDocID())
}

func TestBiasAccessCodecIdentifierPassthrough(t *testing.T) {
	codec, _ := buildSingleTermCodec(t, []postings.DocID{0})
	access := BiasAccess(codec, 7)
	assert.Equal(t, codec.CodecIdentifier(), access.CodecIdentifier())
}
