package fanout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corvusscan/postings/internal/docwords"
	"corvusscan/postings/internal/postings"
	"corvusscan/postings/internal/qexec"
)

type fakeSegment struct {
	codec *postings.VDelta1
	ctxs  map[string]postings.TermIndexCtx
}

func newFakeSegment() *fakeSegment {
	return &fakeSegment{codec: postings.NewVDelta1(), ctxs: make(map[string]postings.TermIndexCtx)}
}

func (s *fakeSegment) addTerm(field, token string, docIDs []qexec.DocID) {
	enc := s.codec.NewEncoder()
	enc.BeginTerm()
	for _, id := range docIDs {
		enc.BeginDocument(id)
		enc.NewHit(0, nil)
		enc.EndDocument()
	}
	var ctx postings.TermIndexCtx
	enc.EndTerm(&ctx)
	s.ctxs[field+"\x00"+token] = ctx
}

func (s *fakeSegment) Resolve(field, token string) (postings.TermIndexCtx, bool) {
	ctx, ok := s.ctxs[field+"\x00"+token]
	return ctx, ok
}
func (s *fakeSegment) CodecAccess(field string) postings.CodecAccess { return s.codec }
func (s *fakeSegment) MaxPosition() uint32                           { return 64 }

type recordingScorer struct {
	ids []qexec.DocID
}

func (s *recordingScorer) Prepare(*docwords.Space, []qexec.QueryIndexTerms) {}
func (s *recordingScorer) Consider(match qexec.MatchedDocument) qexec.ConsiderResponse {
	s.ids = append(s.ids, match.ID)
	return qexec.Continue
}

func termPlan(field, token string) *qexec.Node {
	return &qexec.Node{Kind: qexec.NodeTerm, Term: &qexec.QueryTermCtx{TermID: 0, Field: field, Token: token}}
}

func TestRunZeroSegments(t *testing.T) {
	scorers, err := Run(context.Background(), termPlan("f", "t"), nil, nil, nil, 0, func() qexec.Scorer { return &recordingScorer{} })
	require.NoError(t, err)
	assert.Nil(t, scorers)
}

func TestRunSingleSegmentInline(t *testing.T) {
	seg := newFakeSegment()
	seg.addTerm("body", "cat", []qexec.DocID{1, 2})

	scorers, err := Run(context.Background(), termPlan("body", "cat"), []qexec.Segment{seg}, nil, nil, 0,
		func() qexec.Scorer { return &recordingScorer{} })
	require.NoError(t, err)
	require.Len(t, scorers, 1)
	assert.Equal(t, []qexec.DocID{1, 2}, scorers[0].(*recordingScorer).ids)
}

func TestRunMultiSegmentFansOut(t *testing.T) {
	segA := newFakeSegment()
	segA.addTerm("body", "cat", []qexec.DocID{1, 4})
	segB := newFakeSegment()
	segB.addTerm("body", "cat", []qexec.DocID{2})
	segC := newFakeSegment()
	segC.addTerm("body", "cat", nil)

	scorers, err := Run(context.Background(), termPlan("body", "cat"), []qexec.Segment{segA, segB, segC}, nil, nil, 0,
		func() qexec.Scorer { return &recordingScorer{} })
	require.NoError(t, err)
	require.Len(t, scorers, 3)
	assert.Equal(t, []qexec.DocID{1, 4}, scorers[0].(*recordingScorer).ids)
	assert.Equal(t, []qexec.DocID{2}, scorers[1].(*recordingScorer).ids)
	assert.Empty(t, scorers[2].(*recordingScorer).ids)
}

type maskAll struct{}

func (maskAll) Test(qexec.DocID) bool { return true }

func TestRunPerSegmentMasking(t *testing.T) {
	segA := newFakeSegment()
	segA.addTerm("body", "cat", []qexec.DocID{1, 2})
	segB := newFakeSegment()
	segB.addTerm("body", "cat", []qexec.DocID{3})

	scorers, err := Run(context.Background(), termPlan("body", "cat"), []qexec.Segment{segA, segB},
		[]qexec.MaskTester{maskAll{}, nil}, nil, 0, func() qexec.Scorer { return &recordingScorer{} })
	require.NoError(t, err)
	assert.Empty(t, scorers[0].(*recordingScorer).ids)
	assert.Equal(t, []qexec.DocID{3}, scorers[1].(*recordingScorer).ids)
}
