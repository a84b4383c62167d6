package middleware

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chatverso/internal/logger"
)

func TestRequestLogRecordsStatus(t *testing.T) {
	require.True(t, logger.Flush(time.Second))
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	log.SetFlags(0)
	logger.SetLevel("debug")
	t.Cleanup(func() {
		logger.Flush(time.Second)
		logger.SetOutput(os.Stderr)
		log.SetFlags(log.LstdFlags)
		logger.SetLevel("info")
	})

	h := RequestLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/silent" {
			return
		}
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/pot", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/silent", nil))
	require.True(t, logger.Flush(time.Second))

	out := buf.String()
	require.Contains(t, out, "method=GET path=/pot status=418 bytes=15")
	require.Contains(t, out, "method=GET path=/silent status=200 bytes=0")
}
