package chat

import (
	"strings"
	"time"
)

// TypingTimerLength is how long local input must be idle before
// stop_typing is sent.
const TypingTimerLength = 1500 * time.Millisecond

// TypingSet holds remote users currently typing, in first-seen order.
// The zero value is an empty set.
type TypingSet struct {
	names []string
}

// Add inserts name. It reports false if name was already present.
func (t *TypingSet) Add(name string) bool {
	if t.Has(name) {
		return false
	}
	t.names = append(t.names, name)
	return true
}

// Remove deletes name. It reports false if name was absent.
func (t *TypingSet) Remove(name string) bool {
	for i, n := range t.names {
		if n == name {
			t.names = append(t.names[:i], t.names[i+1:]...)
			return true
		}
	}
	return false
}

func (t *TypingSet) Has(name string) bool {
	for _, n := range t.names {
		if n == name {
			return true
		}
	}
	return false
}

func (t *TypingSet) Len() int { return len(t.names) }

// Names returns a copy of the members in insertion order.
func (t *TypingSet) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

func (t *TypingSet) Reset() { t.names = nil }

// Display renders the typing indicator line.
func (t *TypingSet) Display() string {
	switch len(t.names) {
	case 0:
		return ""
	case 1:
		return t.names[0] + " is typing…"
	default:
		return strings.Join(t.names, ", ") + " are typing…"
	}
}

// TypingTracker tracks remote typing presence and debounces local typing
// notifications. It is not safe for concurrent use; the owning Session
// serializes every call.
type TypingTracker struct {
	set TypingSet

	clock   Clock
	timeout time.Duration
	// post re-enters the owner's event loop; expirations never touch state
	// from the timer goroutine.
	post func(func()) bool
	emit func(typing bool)

	timer Timer
	// gen identifies the live debounce period. Expirations carrying an
	// older generation are stale and dropped.
	gen   uint64
	armed bool
}

func newTypingTracker(clock Clock, timeout time.Duration, post func(func()) bool, emit func(typing bool)) *TypingTracker {
	return &TypingTracker{clock: clock, timeout: timeout, post: post, emit: emit}
}

// OnLocalInput announces typing and re-arms the debounce timer.
func (t *TypingTracker) OnLocalInput() {
	t.emit(true)
	t.cancel()
	t.gen++
	gen := t.gen
	t.armed = true
	t.timer = t.clock.AfterFunc(t.timeout, func() {
		t.post(func() { t.expire(gen) })
	})
}

// OnLocalSend cancels the debounce and always sends stop_typing.
func (t *TypingTracker) OnLocalSend() {
	t.cancel()
	t.emit(false)
}

// Pending reports whether a debounce period is live.
func (t *TypingTracker) Pending() bool { return t.armed }

func (t *TypingTracker) expire(gen uint64) {
	if !t.armed || gen != t.gen {
		return
	}
	t.armed = false
	t.timer = nil
	t.emit(false)
}

// cancel invalidates the live period without emitting.
func (t *TypingTracker) cancel() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.armed = false
	t.gen++
}

// OnRemoteTyping reports whether the display changed.
func (t *TypingTracker) OnRemoteTyping(name string) bool {
	return t.set.Add(name)
}

func (t *TypingTracker) OnRemoteStopTyping(name string) bool {
	return t.set.Remove(name)
}

// OnRemoteMessage clears a typing state the sender may never have cleared.
func (t *TypingTracker) OnRemoteMessage(name string) bool {
	return t.set.Remove(name)
}

func (t *TypingTracker) Display() string { return t.set.Display() }

func (t *TypingTracker) Set() *TypingSet { return &t.set }
