package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"botrelay/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(handlers...)
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})
	return router
}

func get(router *gin.Engine, header http.Header) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", "/", nil)
	for k, v := range header {
		for _, vv := range v {
			req.Header.Add(k, vv)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequestID_Generated(t *testing.T) {
	router := setupRouter(RequestID())

	w := get(router, nil)

	id := w.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, w.Body.String())
}

func TestRequestID_Propagated(t *testing.T) {
	router := setupRouter(RequestID())

	w := get(router, http.Header{RequestIDHeader: []string{"smoke-1"}})

	assert.Equal(t, "smoke-1", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "smoke-1", w.Body.String())
}

func TestRateLimit_Disabled(t *testing.T) {
	router := setupRouter(RateLimit(0, 1))

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, get(router, nil).Code)
	}
}

func TestRateLimit_RejectsBeyondBurst(t *testing.T) {
	router := setupRouter(RateLimit(0.001, 2))

	assert.Equal(t, http.StatusOK, get(router, nil).Code)
	assert.Equal(t, http.StatusOK, get(router, nil).Code)

	w := get(router, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"success": false, "error": "RESOURCE_EXHAUSTED"}`, w.Body.String())
}

func TestObserve_RecordsRoutes(t *testing.T) {
	m := metrics.New()
	router := setupRouter(RequestID(), Observe(nil, m))

	get(router, nil)
	req, _ := http.NewRequest("GET", "/missing", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	count, err := testutil.GatherAndCount(m.Registry(), "botrelay_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestObserve_NilMetrics(t *testing.T) {
	router := setupRouter(Observe(nil, nil))

	assert.Equal(t, http.StatusOK, get(router, nil).Code)
}
