// Package metrics defines the Prometheus collectors for query execution
// and generation merges and the HTTP handler used to scrape them.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"corvusscan/postings/internal/docwords"
	"corvusscan/postings/internal/qexec"
)

// Metrics holds the collectors. qexec, fanout and the merge engine do not
// update them themselves: the query counters move through a scorer
// wrapped by InstrumentScorer, the others through ObserveMerge and
// SetLiveSegments.
type Metrics struct {
	DocsConsideredTotal prometheus.Counter
	ScorerAbortsTotal   prometheus.Counter
	MergeDuration       *prometheus.HistogramVec
	LiveSegments        prometheus.Gauge
}

// New creates and registers the collectors against the default registry.
func New() *Metrics {
	m := &Metrics{
		DocsConsideredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corvusscan_docs_considered_total",
			Help: "Total candidate documents visited by the boolean query executor.",
		}),
		ScorerAbortsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corvusscan_scorer_aborts_total",
			Help: "Total times a Scorer requested early termination of a segment scan.",
		}),
		MergeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "corvusscan_merge_duration_seconds",
				Help:    "Generation merge wall-clock time, bucketed by candidate count.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"candidates"},
		),
		LiveSegments: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "corvusscan_live_segments",
			Help: "Number of sealed segments currently part of the index.",
		}),
	}

	prometheus.MustRegister(
		m.DocsConsideredTotal,
		m.ScorerAbortsTotal,
		m.MergeDuration,
		m.LiveSegments,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// InstrumentScorer wraps scorer so every considered document and every
// Abort response it returns is counted, without qexec.ExecQuery's
// signature needing to know metrics exists.
func (m *Metrics) InstrumentScorer(scorer qexec.Scorer) qexec.Scorer {
	return &instrumentedScorer{inner: scorer, m: m}
}

type instrumentedScorer struct {
	inner qexec.Scorer
	m     *Metrics
}

func (s *instrumentedScorer) Prepare(dws *docwords.Space, queryIndicesTerms []qexec.QueryIndexTerms) {
	s.inner.Prepare(dws, queryIndicesTerms)
}

func (s *instrumentedScorer) Consider(match qexec.MatchedDocument) qexec.ConsiderResponse {
	s.m.DocsConsideredTotal.Inc()
	resp := s.inner.Consider(match)
	if resp == qexec.Abort {
		s.m.ScorerAbortsTotal.Inc()
	}
	return resp
}

// ObserveMerge records one generation merge's wall-clock duration under
// the given candidate count.
func (m *Metrics) ObserveMerge(candidateCount int, seconds float64) {
	m.MergeDuration.WithLabelValues(strconv.Itoa(candidateCount)).Observe(seconds)
}

// SetLiveSegments updates the live-segment gauge to n.
func (m *Metrics) SetLiveSegments(n int) {
	m.LiveSegments.Set(float64(n))
}
