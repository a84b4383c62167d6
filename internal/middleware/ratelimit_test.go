package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRateLimitByIP(t *testing.T) {
	t.Parallel()

	h := RateLimitByIP(0.001, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	hit := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusNoContent, hit("10.0.0.1:1000"))
	require.Equal(t, http.StatusNoContent, hit("10.0.0.1:1001"))
	require.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1:1002"))
	require.Equal(t, http.StatusNoContent, hit("10.0.0.2:1000"))
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{name: "remote addr", remote: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "real ip wins", header: map[string]string{"X-Real-Ip": "198.51.100.7", "X-Forwarded-For": "203.0.113.1"}, remote: "192.0.2.1:1", want: "198.51.100.7"},
		{name: "first forwarded", header: map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, remote: "192.0.2.1:1", want: "203.0.113.1"},
		{name: "no port", remote: "unix", want: "unix"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, clientIP(req))
		})
	}
}
