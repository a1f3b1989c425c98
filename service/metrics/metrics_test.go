package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHelpers(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordRPCCall("GetBalance", "success", "devnet", 0.1)
	m.RecordRPCCall("GetBalance", "success", "devnet", 0.2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.solanaRPCCallsTotal.WithLabelValues("GetBalance", "success", "devnet")))

	m.RecordTransactionSubmitted("save_score", "confirmed")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transactionsSubmittedTotal.WithLabelValues("save_score", "confirmed")))

	m.RecordConfirmationPoll("confirmed")
	m.RecordConfirmationPoll("confirmed")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.confirmationPollsTotal.WithLabelValues("confirmed")))

	m.RecordAccountDecode("score", nil)
	m.RecordAccountDecode("score", errors.New("short"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.accountDecodesTotal.WithLabelValues("score", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.accountDecodesTotal.WithLabelValues("score", "error")))

	m.RecordNATSPublish("arcade.txns", "success", 0.01)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.natsMessagesPublished.WithLabelValues("arcade.txns", "success")))
}

func TestStatusCodeToString(t *testing.T) {
	assert.Equal(t, "2xx", statusCodeToString(200))
	assert.Equal(t, "3xx", statusCodeToString(304))
	assert.Equal(t, "4xx", statusCodeToString(422))
	assert.Equal(t, "5xx", statusCodeToString(503))
	assert.Equal(t, "unknown", statusCodeToString(0))
}

func TestInstrumentHandler(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	h := InstrumentHandler(m, "/api/v1/score", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.WriteHeader(http.StatusOK) // ignored: first status wins
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/score", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/api/v1/score", "GET", "5xx")))

	// Implicit 200 when the handler only writes a body.
	h = InstrumentHandler(m, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/health", "GET", "2xx")))
}

func TestInstrumentHandler_NilMetrics(t *testing.T) {
	called := false
	h := InstrumentHandler(nil, "/x", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.True(t, called)
}
