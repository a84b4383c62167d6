// Package logger writes prefix-tagged log lines through a background worker so
// callers on hot paths (relay pumps, the session loop) never block on I/O.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	asyncBufferSize = 8192
	slowCall        = 100 * time.Millisecond
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

// ParseLevel maps a LOG_LEVEL value to a Level. Unknown values are info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return LevelDebug
	case "error", "warn":
		return LevelError
	default:
		return LevelInfo
	}
}

// line is one queued write; a non-nil ack marks a flush barrier instead.
type line struct {
	text string
	ack  chan struct{}
}

var (
	prefix atomic.Value
	level  atomic.Int32
	ch     chan line
	once   sync.Once
)

func init() {
	prefix.Store("")
	level.Store(int32(ParseLevel(os.Getenv("LOG_LEVEL"))))
}

func initWorker() {
	ch = make(chan line, asyncBufferSize)
	go func() {
		for l := range ch {
			if l.ack != nil {
				close(l.ack)
				continue
			}
			log.Print(l.text)
		}
	}()
}

func enqueue(text string) {
	once.Do(initWorker)
	select {
	case ch <- line{text: text}:
	default:
		// buffer full: drop rather than block the caller
	}
}

// SetPrefix sets the tag for subsequent lines ("relay", "chat").
func SetPrefix(p string) {
	prefix.Store(p)
}

// SetLevel overrides the level taken from LOG_LEVEL at startup.
func SetLevel(s string) {
	level.Store(int32(ParseLevel(s)))
}

func enabled(l Level) bool {
	return Level(level.Load()) <= l
}

// SetOutput redirects the worker's destination. The terminal client points
// it at a file so log lines do not land on the UI.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// Flush waits until every line queued before the call has been written, or
// timeout passes. It reports whether the queue drained.
func Flush(timeout time.Duration) bool {
	once.Do(initWorker)
	ack := make(chan struct{})
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ch <- line{ack: ack}:
	case <-timer.C:
		return false
	}
	select {
	case <-ack:
		return true
	case <-timer.C:
		return false
	}
}

func tag() string {
	p, _ := prefix.Load().(string)
	if p == "" {
		return ""
	}
	return "[" + p + "] "
}

func Info(v ...any) {
	if enabled(LevelInfo) {
		enqueue(tag() + fmt.Sprint(v...))
	}
}

func Infof(format string, v ...any) {
	if enabled(LevelInfo) {
		enqueue(tag() + fmt.Sprintf(format, v...))
	}
}

func Error(v ...any) {
	enqueue(tag() + "ERROR: " + fmt.Sprint(v...))
}

func Errorf(format string, v ...any) {
	enqueue(tag() + "ERROR: " + fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...any) {
	if enabled(LevelDebug) {
		enqueue(tag() + "DEBUG: " + fmt.Sprintf(format, v...))
	}
}

// LogDuration logs fn with its elapsed milliseconds. Below debug level only
// slow calls are logged.
func LogDuration(fn string, start time.Time) {
	elapsed := time.Since(start)
	if enabled(LevelDebug) || (enabled(LevelInfo) && elapsed >= slowCall) {
		enqueue(fmt.Sprintf("%sfn=%s duration_ms=%d", tag(), fn, elapsed.Milliseconds()))
	}
}

// DeferLogDuration is for defer: defer logger.DeferLogDuration("name", time.Now())().
func DeferLogDuration(fn string, start time.Time) func() {
	return func() { LogDuration(fn, start) }
}

// Request logs one served HTTP request. Server errors are always written;
// the rest follow the same rule as LogDuration.
func Request(method, path string, status, bytes int, elapsed time.Duration) {
	msg := fmt.Sprintf("%shttp method=%s path=%s status=%d bytes=%d duration_ms=%d",
		tag(), method, path, status, bytes, elapsed.Milliseconds())
	switch {
	case status >= 500:
		enqueue(msg)
	case enabled(LevelDebug) || (enabled(LevelInfo) && elapsed >= slowCall):
		enqueue(msg)
	}
}
