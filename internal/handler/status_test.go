package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chatverso/internal/config"
	"github.com/chatverso/internal/ws"
)

type fixedCounter int

func (c fixedCounter) Online() int { return int(c) }

func TestHealth(t *testing.T) {
	t.Parallel()

	h := NewStatusHandler(fixedCounter(3), &config.Config{})
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok","online":3}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.JSONEq(t, `{"error":"method not allowed"}`, rec.Body.String())
}

func TestLimits(t *testing.T) {
	t.Parallel()

	h := NewStatusHandler(fixedCounter(0), &config.Config{WSMaxMessageSize: 4096, WSRateLimitRPS: 20, WSRateLimitBurst: 40})
	rec := httptest.NewRecorder()
	h.Limits(rec, httptest.NewRequest(http.MethodGet, "/limits", nil))
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"max_message_size":4096,"rate_limit_rps":20,"rate_limit_burst":40}`, rec.Body.String())
}

func TestCheckOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		allowed string
		origin  string
		want    bool
	}{
		{allowed: "*", origin: "https://evil.example", want: true},
		{allowed: "", origin: "https://any.example", want: true},
		{allowed: "https://a.example, https://b.example", origin: "https://b.example", want: true},
		{allowed: "https://a.example", origin: "https://c.example", want: false},
		{allowed: "https://a.example", origin: "", want: true},
	}
	for _, tt := range tests {
		h := NewWSHandler(nil, tt.allowed, ws.ClientOptions{})
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		require.Equal(t, tt.want, h.checkOrigin(req), "allowed=%q origin=%q", tt.allowed, tt.origin)
	}
}
