package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/chatverso/internal/model"
	"github.com/chatverso/internal/ws"
)

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fakeClock fires callbacks synchronously from Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

type emitted struct {
	Type    ws.EventType
	Payload any
}

type recordingEmitter struct {
	events []emitted
	err    error
}

func (r *recordingEmitter) Emit(t ws.EventType, payload any) error {
	r.events = append(r.events, emitted{Type: t, Payload: payload})
	return r.err
}

func (r *recordingEmitter) types() []ws.EventType {
	out := make([]ws.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recordingEmitter) count(t ws.EventType) int {
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

type recordingView struct {
	appended []Entry
	typing   []string
	replies  []*model.MessageRef
	cleared  int
	states   []State
}

func (v *recordingView) Appended(e Entry)                   { v.appended = append(v.appended, e) }
func (v *recordingView) TypingChanged(d string)             { v.typing = append(v.typing, d) }
func (v *recordingView) ReplyChanged(ref *model.MessageRef) { v.replies = append(v.replies, ref) }
func (v *recordingView) InputCleared()                      { v.cleared++ }
func (v *recordingView) StateChanged(st State)              { v.states = append(v.states, st) }

type harness struct {
	clock   *fakeClock
	emitter *recordingEmitter
	view    *recordingView
	s       *Session
}

func newHarness(name string) *harness {
	h := &harness{
		clock:   &fakeClock{},
		emitter: &recordingEmitter{},
		view:    &recordingView{},
	}
	h.s = NewSession(h.emitter, Options{DisplayName: name, Clock: h.clock, View: h.view})
	return h
}

// advance moves the clock and runs whatever the timers posted, as the
// session loop would.
func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.s.drainCalls()
}

func (h *harness) inbound(t ws.EventType, payload any) {
	env, err := ws.Encode(t, payload)
	if err != nil {
		panic(err)
	}
	h.s.Handle(env)
}
