package logger

import (
	"bytes"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// capture points the worker at a buffer at the given level and restores the
// defaults afterwards. Tests using it must not run in parallel.
func capture(t *testing.T, lvl string) *bytes.Buffer {
	t.Helper()
	require.True(t, Flush(time.Second))
	var buf bytes.Buffer
	SetOutput(&buf)
	log.SetFlags(0)
	SetLevel(lvl)
	SetPrefix("test")
	t.Cleanup(func() {
		Flush(time.Second)
		SetOutput(os.Stderr)
		log.SetFlags(log.LstdFlags)
		SetLevel("info")
		SetPrefix("")
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug": LevelDebug, "TRACE": LevelDebug,
		"info": LevelInfo, "": LevelInfo, "verbose": LevelInfo,
		" error ": LevelError, "warn": LevelError,
	}
	for in, want := range tests {
		require.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLevelsGateOutput(t *testing.T) {
	buf := capture(t, "info")
	Debugf("hidden %d", 1)
	Infof("shown %d", 2)
	Errorf("failed %d", 3)
	require.True(t, Flush(time.Second))
	require.Equal(t, "[test] shown 2\n[test] ERROR: failed 3\n", buf.String())

	buf.Reset()
	SetLevel("error")
	Info("quiet")
	Error("loud")
	require.True(t, Flush(time.Second))
	require.Equal(t, "[test] ERROR: loud\n", buf.String())
}

func TestRequestLogsServerErrorsAtAnyLevel(t *testing.T) {
	buf := capture(t, "error")
	Request("GET", "/ok", 200, 2, time.Microsecond)
	Request("GET", "/boom", 500, 21, time.Microsecond)
	require.True(t, Flush(time.Second))
	require.Equal(t, "[test] http method=GET path=/boom status=500 bytes=21 duration_ms=0\n", buf.String())
}

func TestLogDurationOnlySlowCallsAtInfo(t *testing.T) {
	buf := capture(t, "info")
	LogDuration("fast", time.Now())
	LogDuration("slow", time.Now().Add(-time.Second))
	require.True(t, Flush(time.Second))
	require.Contains(t, buf.String(), "fn=slow")
	require.NotContains(t, buf.String(), "fn=fast")
}
