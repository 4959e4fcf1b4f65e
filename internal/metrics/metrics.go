package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catq"

const (
	OutcomeCorrect   = "correct"
	OutcomeIncorrect = "incorrect"
	OutcomeUnknown   = "unknown"
)

// RequestLatencyBuckets covers interactive round trips from 10ms to 30s.
var RequestLatencyBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Recorder owns the session metrics and the registry they live on. A nil
// *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	sessionStarts    prometheus.Counter
	sessionsFinished *prometheus.CounterVec
	answers          *prometheus.CounterVec
	staleResponses   *prometheus.CounterVec
	requestErrors    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		sessionStarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_starts_total",
			Help:      "Sessions started, including restarts and identity switches.",
		}),
		sessionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Sessions that reached the finished state, by what ended them.",
		}, []string{"reason"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Accepted answer submissions, by correctness reported by the service.",
		}, []string{"outcome"}),
		staleResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Service replies dropped because their session was superseded.",
		}, []string{"operation"}),
		requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_errors_total",
			Help:      "Failed requests to the assessment service.",
		}, []string{"operation"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Round-trip latency of requests to the assessment service.",
			Buckets:   RequestLatencyBuckets,
		}, []string{"operation"}),
	}

	r.registry.MustRegister(
		r.sessionStarts,
		r.sessionsFinished,
		r.answers,
		r.staleResponses,
		r.requestErrors,
		r.requestDuration,
		collectors.NewGoCollector(),
	)

	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) SessionStarted() {
	if r == nil {
		return
	}
	r.sessionStarts.Inc()
}

func (r *Recorder) SessionFinished(reason string) {
	if r == nil {
		return
	}
	r.sessionsFinished.WithLabelValues(reason).Inc()
}

// Answer records an accepted submission. correct is nil when the service
// did not say.
func (r *Recorder) Answer(correct *bool) {
	if r == nil {
		return
	}

	outcome := OutcomeUnknown
	if correct != nil {
		outcome = OutcomeIncorrect
		if *correct {
			outcome = OutcomeCorrect
		}
	}
	r.answers.WithLabelValues(outcome).Inc()
}

func (r *Recorder) StaleResponse(operation string) {
	if r == nil {
		return
	}
	r.staleResponses.WithLabelValues(operation).Inc()
}

func (r *Recorder) ObserveRequest(operation string, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	r.requestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	if err != nil {
		r.requestErrors.WithLabelValues(operation).Inc()
	}
}
