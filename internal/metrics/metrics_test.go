package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveListAll("OK", 3*time.Millisecond)
	m.ObserveListAll("UNAVAILABLE", time.Millisecond)
	m.ObserveListAll("OK", time.Millisecond)
	m.StreamMessage()
	m.StreamMessage()
	m.StreamEvent("ended")
	m.SetStreamState(3)
	m.WebsocketClientConnected()
	m.WebsocketClientConnected()
	m.WebsocketClientDisconnected()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.unaryCalls.WithLabelValues("OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.unaryCalls.WithLabelValues("UNAVAILABLE")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.streamMessages))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.streamEvents.WithLabelValues("ended")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.streamState))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.wsClients))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTP("GET", "/", 200, time.Millisecond)
		m.ObserveListAll("OK", time.Millisecond)
		m.StreamMessage()
		m.StreamEvent("opened")
		m.SetStreamState(1)
		m.WebsocketClientConnected()
		m.WebsocketClientDisconnected()
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveHTTP("GET", "/", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `botrelay_http_requests_total{method="GET",route="/",status="200"} 1`)
}
