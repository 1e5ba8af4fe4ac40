package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"botrelay/internal/microservices/rpc"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

// MockBotService mocks the BotService interface
type MockBotService struct {
	mock.Mock
}

func (m *MockBotService) ListAll(ctx context.Context) (json.RawMessage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func setupRouter(svc *MockBotService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewBotHandler(svc).RegisterRoutes(router)
	return router
}

func TestListAll_Success(t *testing.T) {
	mockBotService := new(MockBotService)
	router := setupRouter(mockBotService)

	data := json.RawMessage(`[{"id":"b-1","name":"alpha","status":"RUNNING"}]`)
	mockBotService.On("ListAll", mock.Anything).Return(data, nil)

	req, _ := http.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	var response struct {
		Success bool            `json:"success"`
		Time    *int64          `json:"time"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Success)
	require.NotNil(t, response.Time)
	assert.GreaterOrEqual(t, *response.Time, int64(0))
	assert.JSONEq(t, string(data), string(response.Data))

	mockBotService.AssertExpectations(t)
}

func TestListAll_EmptyData(t *testing.T) {
	mockBotService := new(MockBotService)
	router := setupRouter(mockBotService)

	mockBotService.On("ListAll", mock.Anything).Return(json.RawMessage(`[]`), nil)

	req, _ := http.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, true, response["success"])
	assert.Equal(t, []any{}, response["data"])
}

func TestListAll_UpstreamError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"Unavailable", &rpc.CallError{Code: codes.Unavailable, Message: "connection refused"}, "UNAVAILABLE"},
		{"NotFound", &rpc.CallError{Code: codes.NotFound, Message: "no such bot"}, "NOT_FOUND"},
		{"DeadlineExceeded", context.DeadlineExceeded, "DEADLINE_EXCEEDED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockBotService := new(MockBotService)
			router := setupRouter(mockBotService)

			mockBotService.On("ListAll", mock.Anything).Return(nil, tt.err)

			req, _ := http.NewRequest("GET", "/", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.JSONEq(t, `{"success": false, "error": "`+tt.want+`"}`, w.Body.String())
			assert.NotContains(t, w.Body.String(), "connection refused")

			mockBotService.AssertExpectations(t)
		})
	}
}

func TestListAll_OneCallPerRequest(t *testing.T) {
	mockBotService := new(MockBotService)
	router := setupRouter(mockBotService)

	mockBotService.On("ListAll", mock.Anything).Return(json.RawMessage(`[]`), nil)

	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest("GET", "/", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	mockBotService.AssertNumberOfCalls(t, "ListAll", 3)
}

func TestListAll_OtherMethodsNotRouted(t *testing.T) {
	mockBotService := new(MockBotService)
	router := setupRouter(mockBotService)

	req, _ := http.NewRequest("POST", "/", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockBotService.AssertNotCalled(t, "ListAll", mock.Anything)
}
