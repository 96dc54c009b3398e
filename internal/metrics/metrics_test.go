package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corvusscan/postings/internal/docwords"
	"corvusscan/postings/internal/qexec"
)

// newTestMetrics builds a Metrics instance whose collectors are not
// registered anywhere, so repeated test runs don't collide on prometheus's default
// global registry (New always uses prometheus.MustRegister against it).
func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	m := &Metrics{
		DocsConsideredTotal: prometheus.NewCounter(prometheus.CounterOpts{Name: "docs_considered_total"}),
		ScorerAbortsTotal:   prometheus.NewCounter(prometheus.CounterOpts{Name: "scorer_aborts_total"}),
		MergeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "merge_duration_seconds"}, []string{"candidates"}),
		LiveSegments: prometheus.NewGauge(prometheus.GaugeOpts{Name: "live_segments"}),
	}
	return m
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

type fakeScorer struct {
	responses []qexec.ConsiderResponse
	i         int
}

func (s *fakeScorer) Prepare(*docwords.Space, []qexec.QueryIndexTerms) {}
func (s *fakeScorer) Consider(qexec.MatchedDocument) qexec.ConsiderResponse {
	r := s.responses[s.i]
	s.i++
	return r
}

func TestInstrumentScorerCountsConsidered(t *testing.T) {
	m := newTestMetrics(t)
	inner := &fakeScorer{responses: []qexec.ConsiderResponse{qexec.Continue, qexec.Continue, qexec.Continue}}
	wrapped := m.InstrumentScorer(inner)

	for i := 0; i < 3; i++ {
		resp := wrapped.Consider(qexec.MatchedDocument{ID: qexec.DocID(i)})
		assert.Equal(t, qexec.Continue, resp)
	}
	assert.Equal(t, float64(3), counterValue(t, m.DocsConsideredTotal))
	assert.Equal(t, float64(0), counterValue(t, m.ScorerAbortsTotal))
}

func TestInstrumentScorerCountsAborts(t *testing.T) {
	m := newTestMetrics(t)
	inner := &fakeScorer{responses: []qexec.ConsiderResponse{qexec.Continue, qexec.Abort}}
	wrapped := m.InstrumentScorer(inner)

	wrapped.Consider(qexec.MatchedDocument{ID: 0})
	resp := wrapped.Consider(qexec.MatchedDocument{ID: 1})

	assert.Equal(t, qexec.Abort, resp)
	assert.Equal(t, float64(2), counterValue(t, m.DocsConsideredTotal))
	assert.Equal(t, float64(1), counterValue(t, m.ScorerAbortsTotal))
}

func TestInstrumentScorerDelegatesPrepare(t *testing.T) {
	m := newTestMetrics(t)
	inner := &fakeScorer{}
	wrapped := m.InstrumentScorer(inner)
	// Must not panic: Prepare is forwarded to the inner scorer untouched.
	wrapped.Prepare(nil, nil)
}

func TestObserveMergeRecordsByCandidateCount(t *testing.T) {
	m := newTestMetrics(t)
	m.ObserveMerge(3, 0.25)

	var out dto.Metric
	hist := m.MergeDuration.WithLabelValues("3").(prometheus.Histogram)
	require.NoError(t, hist.Write(&out))
	assert.Equal(t, uint64(1), out.GetHistogram().GetSampleCount())
}

func TestSetLiveSegmentsUpdatesGauge(t *testing.T) {
	m := newTestMetrics(t)
	m.SetLiveSegments(7)
	assert.Equal(t, float64(7), gaugeValue(t, m.LiveSegments))
}

func TestHandlerServesMetrics(t *testing.T) {
	h := Handler()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
