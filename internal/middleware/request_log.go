package middleware

import (
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/chatverso/internal/logger"
)

// RequestLog records method, path, status, size and duration of every
// request. A websocket upgrade hijacks the connection before any status is
// recorded, so it is logged as 101.
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
			if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				status = http.StatusSwitchingProtocols
			}
		}
		logger.Request(r.Method, r.URL.Path, status, ww.BytesWritten(), time.Since(start))
	})
}
