package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()

	var resp ErrorResponse
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestErrorHandler_Handle(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		errType  ErrorType
		code     string
		logLevel zapcore.Level
	}{
		{"validation", NewValidationError("text is required").WithCode("INVALID_REQUEST"), http.StatusBadRequest, ErrorTypeValidation, "INVALID_REQUEST", zapcore.WarnLevel},
		{"session state", NewSessionStateError("session is not active").WithCode("SESSION_NOT_ACTIVE"), http.StatusConflict, ErrorTypeSessionState, "SESSION_NOT_ACTIVE", zapcore.WarnLevel},
		{"external", NewExternalError("openai", stderrors.New("reset")), http.StatusBadGateway, ErrorTypeExternal, "", zapcore.ErrorLevel},
		{"zero status", &AppError{Type: ErrorTypeDatabase, Message: "lost"}, http.StatusInternalServerError, ErrorTypeDatabase, "", zapcore.ErrorLevel},
		{"plain error", stderrors.New("secret detail"), http.StatusInternalServerError, ErrorTypeInternal, "", zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			h := NewErrorHandler(zap.New(core), false)

			req := httptest.NewRequest(http.MethodPost, "/api/v2/sessions", nil)
			req.Header.Set("X-Request-ID", "req-1")
			req.Header.Set("X-Amzn-Trace-Id", "Root=1-abc")
			rec := httptest.NewRecorder()

			h.Handle(rec, req, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeResponse(t, rec)
			assert.True(t, resp.Error)
			assert.Equal(t, string(tt.errType), resp.Type)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, "req-1", resp.RequestID)
			assert.Equal(t, "Root=1-abc", resp.TraceID)
			assert.NotContains(t, resp.Message, "secret detail")

			require.Equal(t, 1, logs.Len())
			assert.Equal(t, tt.logLevel, logs.All()[0].Level)
		})
	}
}

func TestErrorHandler_Debug(t *testing.T) {
	h := NewErrorHandler(nil, true)
	details := map[string]interface{}{"field": "text"}
	err := NewValidationError("text is required").WithDetails(details)

	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodGet, "/", nil), err)

	resp := decodeResponse(t, rec)
	assert.Equal(t, "text", resp.Details["field"])
	assert.NotEmpty(t, resp.Details["stack_trace"])
	assert.NotContains(t, details, "stack_trace")

	rec = httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodGet, "/", nil), stderrors.New("plain failure"))
	assert.Equal(t, "plain failure", decodeResponse(t, rec).Message)
}

func TestErrorHandler_HandleStatus(t *testing.T) {
	h := NewErrorHandler(zap.NewNop(), false)

	rec := httptest.NewRecorder()
	h.HandleStatus(rec, httptest.NewRequest(http.MethodGet, "/ws", nil), http.StatusTooManyRequests, "too many connections")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, string(ErrorTypeRateLimited), resp.Type)
	assert.Equal(t, "too many connections", resp.Message)
}

func TestErrorHandler_Middleware(t *testing.T) {
	h := NewErrorHandler(zap.NewNop(), false)

	handler := middleware.RequestID(h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("engine exploded")
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, string(ErrorTypeInternal), resp.Type)
	assert.Contains(t, resp.Message, "engine exploded")
	assert.NotEmpty(t, resp.RequestID)

	aborting := h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		aborting.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestStatusToErrorType(t *testing.T) {
	tests := map[int]ErrorType{
		http.StatusBadRequest:          ErrorTypeValidation,
		http.StatusNotFound:            ErrorTypeNotFound,
		http.StatusConflict:            ErrorTypeConflict,
		http.StatusGatewayTimeout:      ErrorTypeTimeout,
		http.StatusServiceUnavailable:  ErrorTypeUnavailable,
		http.StatusBadGateway:          ErrorTypeExternal,
		http.StatusTooManyRequests:     ErrorTypeRateLimited,
		http.StatusInternalServerError: ErrorTypeInternal,
	}

	for status, want := range tests {
		assert.Equal(t, string(want), statusToErrorType(status), http.StatusText(status))
	}
}
