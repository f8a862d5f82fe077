package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric labels
const (
	LabelEndpoint = "endpoint"
	LabelCode     = "code"
)

// Metrics holds the HTTP server's Prometheus collectors.
type Metrics struct {
	requests         *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	tokens           prometheus.Counter
	truncated        prometheus.Counter
	inflight         prometheus.Gauge
	vocabEntries     prometheus.Gauge
	workerWaitTime   prometheus.Histogram
	rejectedRequests *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them with reg. Pass a
// fresh prometheus.NewRegistry in tests to avoid duplicate registration.
func NewMetrics(reg *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bpetok_http_requests_total",
				Help: "Total HTTP requests by endpoint and status code",
			},
			[]string{LabelEndpoint, LabelCode},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bpetok_http_request_duration_seconds",
				Help:    "HTTP request latency by endpoint",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{LabelEndpoint},
		),
		tokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bpetok_tokens_emitted_total",
			Help: "Total tokens returned by /v1/tokenize",
		}),
		truncated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bpetok_tokenize_truncated_total",
			Help: "Tokenize responses cut short by a token limit",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bpetok_inflight_requests",
			Help: "Tokenize requests currently holding a worker slot",
		}),
		vocabEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bpetok_vocab_entries",
			Help: "Number of entries in the loaded vocabulary",
		}),
		workerWaitTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bpetok_worker_wait_seconds",
			Help:    "Time spent waiting for a worker slot",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		rejectedRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bpetok_rejected_requests_total",
				Help: "Requests rejected before tokenization, by reason",
			},
			[]string{"reason"},
		),
		gatherer: reg,
	}

	for _, c := range []prometheus.Collector{
		m.requests, m.duration, m.tokens, m.truncated,
		m.inflight, m.vocabEntries, m.workerWaitTime, m.rejectedRequests,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// The methods below are nil-safe so a handler without metrics skips them.

func (m *Metrics) observeRequest(endpoint string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func (m *Metrics) addTokens(n int, truncated bool) {
	if m == nil {
		return
	}
	m.tokens.Add(float64(n))
	if truncated {
		m.truncated.Inc()
	}
}

func (m *Metrics) setVocabEntries(n int) {
	if m == nil {
		return
	}
	m.vocabEntries.Set(float64(n))
}

func (m *Metrics) reject(reason string) {
	if m == nil {
		return
	}
	m.rejectedRequests.WithLabelValues(reason).Inc()
}

func (m *Metrics) acquired(wait time.Duration) {
	if m == nil {
		return
	}
	m.workerWaitTime.Observe(wait.Seconds())
	m.inflight.Inc()
}

func (m *Metrics) released() {
	if m == nil {
		return
	}
	m.inflight.Dec()
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument wraps next so every request is counted and timed under endpoint.
func (m *Metrics) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	if m == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next(rec, r)
		m.observeRequest(endpoint, rec.code, time.Since(start))
	}
}
