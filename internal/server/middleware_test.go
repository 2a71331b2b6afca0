package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_CORSMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		corsOrigin     string
		method         string
		shouldCallNext bool
	}{
		{"GET request with CORS headers", "*", http.MethodGet, true},
		{"POST request with specific origin", "https://example.com", http.MethodPost, true},
		{"OPTIONS request (preflight)", "*", http.MethodOptions, false},
		{"empty CORS origin", "", http.MethodGet, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := &Server{corsOrigin: tt.corsOrigin}

			nextCalled := false
			handler := server.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				w.WriteHeader(http.StatusAccepted)
			})

			w := httptest.NewRecorder()
			handler(w, httptest.NewRequest(tt.method, "/test", nil))

			assert.Equal(t, tt.corsOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
			assert.Equal(t, tt.shouldCallNext, nextCalled)
			if tt.shouldCallNext {
				assert.Equal(t, http.StatusAccepted, w.Code)
			} else {
				assert.Equal(t, http.StatusOK, w.Code)
			}
		})
	}
}

func TestServer_RateLimitMiddleware(t *testing.T) {
	server := &Server{rateLimiter: NewRateLimiter(2, 0, 0, 0)}
	calls := 0
	handler := server.rateLimitMiddleware(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodPost, "/decode/image", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodPost, "/decode/image", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "minute", w.Header().Get("X-RateLimit-Type"))
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "rate_limit_exceeded", body["error"])

	// Another client has its own budget.
	req := httptest.NewRequest(http.MethodPost, "/decode/image", nil)
	req.Header.Set("X-Real-IP", "10.1.2.3")
	w = httptest.NewRecorder()
	handler(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_RateLimitMiddleware_Disabled(t *testing.T) {
	server := &Server{}
	called := false
	handler := server.rateLimitMiddleware(func(w http.ResponseWriter, r *http.Request) { called = true })

	handler(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestServer_HandleRateLimitError_Quota(t *testing.T) {
	server := &Server{}
	resets := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	w := httptest.NewRecorder()
	server.handleRateLimitError(w, &QuotaExceededError{Type: "data", Limit: 100, Used: 90, Resets: resets})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "data", w.Header().Get("X-Quota-Type"))
	assert.Equal(t, "100", w.Header().Get("X-Quota-Limit"))
	assert.Equal(t, "90", w.Header().Get("X-Quota-Used"))
	assert.Equal(t, "Fri, 02 Jan 2026 00:00:00 GMT", w.Header().Get("X-Quota-Resets"))

	w = httptest.NewRecorder()
	server.handleRateLimitError(w, assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expected   string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, "127.0.0.1:1234", "203.0.113.1"},
		{"single forwarded", map[string]string{"X-Forwarded-For": " 203.0.113.9 "}, "127.0.0.1:1234", "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "127.0.0.1:1234", "198.51.100.4"},
		{"remote addr", nil, "192.0.2.7:5555", "192.0.2.7"},
		{"remote addr without port", nil, "192.0.2.8", "192.0.2.8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, getClientIP(req))
		})
	}
}
