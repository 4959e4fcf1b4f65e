package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCountsAnswersByOutcome(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	yes, no := true, false

	r.Answer(&yes)
	r.Answer(&yes)
	r.Answer(&no)
	r.Answer(nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.answers.WithLabelValues(OutcomeCorrect)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.answers.WithLabelValues(OutcomeIncorrect)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.answers.WithLabelValues(OutcomeUnknown)))
}

func TestRecorderObserveRequestCountsErrorsOnly(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.ObserveRequest("submit", 20*time.Millisecond, nil)
	r.ObserveRequest("submit", 40*time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.requestErrors.WithLabelValues("submit")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.requestDuration, "catq_request_duration_seconds"))
}

func TestRecorderSessionCounters(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.SessionStarted()
	r.SessionStarted()
	r.SessionFinished("cap")
	r.StaleResponse("start")

	expected := `
# HELP catq_session_starts_total Sessions started, including restarts and identity switches.
# TYPE catq_session_starts_total counter
catq_session_starts_total 2
`
	require.NoError(t, testutil.CollectAndCompare(r.sessionStarts, strings.NewReader(expected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sessionsFinished.WithLabelValues("cap")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.staleResponses.WithLabelValues("start")))
}

func TestNilRecorderIsNoop(t *testing.T) {
	t.Parallel()

	var r *Recorder
	assert.NotPanics(t, func() {
		r.SessionStarted()
		r.SessionFinished("server")
		r.Answer(nil)
		r.StaleResponse("fetch")
		r.ObserveRequest("fetch", time.Second, errors.New("x"))
	})
	assert.Nil(t, r.Registry())
}

func TestRecorderHandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.SessionStarted()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "catq_session_starts_total 1")
}
