package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledMetricsAreNoop(t *testing.T) {
	m := New(Config{Enabled: false})
	assert.NotPanics(t, func() {
		m.RecordInstruction("G1", "ok", time.Millisecond)
		m.RecordFunction("print_start", "heat", "ok", time.Second)
		m.SetTemperature("bed", 20, 60)
	})
	assert.Nil(t, m.Registry())

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.RecordAckFailure("M104") })
}

func TestRecordInstruction(t *testing.T) {
	m := New(Config{Enabled: true, Namespace: "test"})

	m.RecordInstruction("G1", "ok", 10*time.Millisecond)
	m.RecordInstruction("G1", "ok", 20*time.Millisecond)
	m.RecordInstruction("M104", "error", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.instructions.WithLabelValues("G1", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.instructions.WithLabelValues("M104", "error")))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New(Config{Enabled: true, Namespace: "test"})
	m.SetStateDepth(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_state_stack_depth 3")
}
