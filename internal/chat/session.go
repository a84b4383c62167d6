// Package chat is the client-side session controller: it projects the relay's
// event stream into a message log, tracks who is typing, and turns local
// compose/reply actions into outbound events.
//
// A Session is single-threaded. Run drives it from one goroutine; anything
// running elsewhere (UI, timers) enters through Post.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chatverso/internal/logger"
	"github.com/chatverso/internal/model"
	"github.com/chatverso/internal/ws"
)

var (
	ErrEmptyMessage   = errors.New("chat: empty message")
	ErrUnknownEntry   = errors.New("chat: unknown log entry")
	ErrNotAddressable = errors.New("chat: entry cannot be replied to")
)

const callQueueSize = 64

type State int

const (
	Disconnected State = iota
	Connected
	Joined
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Joined:
		return "joined"
	default:
		return "disconnected"
	}
}

// Emitter sends an outbound event. Failures are not retried.
type Emitter interface {
	Emit(t ws.EventType, payload any) error
}

// View receives presentation updates. Calls arrive on the session goroutine.
type View interface {
	// Appended must bring the newest entry into view.
	Appended(e Entry)
	TypingChanged(display string)
	ReplyChanged(ref *model.MessageRef)
	InputCleared()
	StateChanged(st State)
}

type nopView struct{}

func (nopView) Appended(Entry)                 {}
func (nopView) TypingChanged(string)           {}
func (nopView) ReplyChanged(*model.MessageRef) {}
func (nopView) InputCleared()                  {}
func (nopView) StateChanged(State)             {}

type Options struct {
	// DisplayName is supplied by the host. Empty suppresses join.
	DisplayName string
	Clock       Clock
	View        View
	// TypingTimeout defaults to TypingTimerLength.
	TypingTimeout time.Duration
}

// Session owns all per-connection chat state.
type Session struct {
	identity model.Identity
	state    State

	emitter Emitter
	view    View
	typing  *TypingTracker
	reply   ReplyContext
	log     *Log

	calls chan func()
	done  chan struct{}
}

func NewSession(emitter Emitter, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.View == nil {
		opts.View = nopView{}
	}
	if opts.TypingTimeout <= 0 {
		opts.TypingTimeout = TypingTimerLength
	}
	s := &Session{
		identity: model.Identity{DisplayName: strings.TrimSpace(opts.DisplayName)},
		emitter:  emitter,
		view:     opts.View,
		log:      NewLog(),
		calls:    make(chan func(), callQueueSize),
		done:     make(chan struct{}),
	}
	s.typing = newTypingTracker(opts.Clock, opts.TypingTimeout, s.enqueue, s.emitTyping)
	return s
}

// Post schedules fn on the session goroutine without blocking. It reports
// false, dropping fn, once the session has stopped or while the queue is
// full. Callers are typically the goroutine the View sends to.
func (s *Session) Post(fn func(*Session)) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.calls <- func() { fn(s) }:
		return true
	case <-s.done:
		return false
	default:
		logger.Errorf("chat: call queue full, dropping posted action")
		return false
	}
}

func (s *Session) enqueue(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.calls <- fn:
		return true
	case <-s.done:
		return false
	}
}

// Run applies inbound events and posted calls one at a time until ctx is
// cancelled or events is closed, which is treated as a disconnect.
func (s *Session) Run(ctx context.Context, events <-chan ws.Envelope) error {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			s.OnDisconnect()
			return ctx.Err()
		case env, ok := <-events:
			if !ok {
				s.OnDisconnect()
				return nil
			}
			s.Handle(env)
		case fn := <-s.calls:
			fn()
		}
	}
}

// drainCalls runs queued calls without blocking.
func (s *Session) drainCalls() {
	for {
		select {
		case fn := <-s.calls:
			fn()
		default:
			return
		}
	}
}

// Handle applies one inbound event. Malformed or unknown events are logged
// and dropped.
func (s *Session) Handle(env ws.Envelope) {
	switch env.Type {
	case ws.EventConnected:
		p, err := ws.Decode[ws.ConnectedPayload](env)
		if err != nil || p.SID == "" {
			logger.Errorf("chat: bad connected event: %v", err)
			return
		}
		s.OnConnect(p.SID)
	case ws.EventMessage:
		p, err := ws.Decode[ws.MessagePayload](env)
		if err != nil {
			logger.Errorf("chat: %v", err)
			return
		}
		s.AppendIncoming(messageFromPayload(p))
	case ws.EventUserUpdate:
		p, err := ws.Decode[ws.UserUpdatePayload](env)
		if err != nil {
			logger.Errorf("chat: %v", err)
			return
		}
		s.AppendSystemNotice(p.Message)
	case ws.EventUserTyping:
		p, err := ws.Decode[ws.TypingPayload](env)
		if err != nil {
			logger.Errorf("chat: %v", err)
			return
		}
		if strings.TrimSpace(p.Username) == "" {
			logger.Debugf("chat: user_typing without username")
			return
		}
		if s.typing.OnRemoteTyping(p.Username) {
			s.view.TypingChanged(s.typing.Display())
		}
	case ws.EventUserStopTyping:
		p, err := ws.Decode[ws.TypingPayload](env)
		if err != nil {
			logger.Errorf("chat: %v", err)
			return
		}
		if strings.TrimSpace(p.Username) == "" {
			logger.Debugf("chat: user_stop_typing without username")
			return
		}
		if s.typing.OnRemoteStopTyping(p.Username) {
			s.view.TypingChanged(s.typing.Display())
		}
	case ws.EventError:
		p, err := ws.Decode[string](env)
		if err != nil {
			logger.Errorf("chat: %v", err)
			return
		}
		logger.Errorf("chat: relay error: %s", p)
	default:
		logger.Debugf("chat: ignoring event %q", env.Type)
	}
}

func messageFromPayload(p ws.MessagePayload) model.Message {
	m := model.Message{
		ID:     p.ID,
		Text:   p.Text,
		Author: model.Identity{DisplayName: p.Username, ConnectionID: p.SID},
		Color:  p.Color,
	}
	if p.ReplyContext != nil {
		m.ReplyTo = &model.MessageRef{
			MessageID:   p.ReplyTo,
			AuthorName:  p.ReplyContext.Username,
			PreviewText: p.ReplyContext.Text,
		}
	}
	return m
}

// OnConnect adopts the transport-assigned connection id and announces the
// local identity when one is known.
func (s *Session) OnConnect(connectionID string) {
	s.identity.ConnectionID = connectionID
	s.setState(Connected)
	logger.Infof("chat: connected sid=%s", connectionID)
	if s.identity.DisplayName == "" {
		return
	}
	if err := s.emitter.Emit(ws.EventJoin, ws.JoinPayload{Username: s.identity.DisplayName}); err != nil {
		logger.Errorf("chat: emit join: %v", err)
		return
	}
	s.setState(Joined)
}

// OnDisconnect ends the connection's identity. A pending debounce is dropped
// without emitting, and remote typing state is forgotten.
func (s *Session) OnDisconnect() {
	if s.state == Disconnected && s.identity.ConnectionID == "" {
		return
	}
	s.typing.cancel()
	if s.typing.Set().Len() > 0 {
		s.typing.Set().Reset()
		s.view.TypingChanged("")
	}
	s.identity.ConnectionID = ""
	s.setState(Disconnected)
}

func (s *Session) setState(st State) {
	if s.state == st {
		return
	}
	s.state = st
	s.view.StateChanged(st)
}

// AppendIncoming projects a message and clears its author's typing state.
func (s *Session) AppendIncoming(m model.Message) {
	e := s.log.AppendMessage(m, s.identity)
	s.view.Appended(e)
	if strings.TrimSpace(m.Author.DisplayName) == "" {
		return
	}
	if s.typing.OnRemoteMessage(m.Author.DisplayName) {
		s.view.TypingChanged(s.typing.Display())
	}
}

func (s *Session) AppendSystemNotice(text string) {
	s.view.Appended(s.log.AppendNotice(text))
}

// Input records local compose activity.
func (s *Session) Input() {
	s.typing.OnLocalInput()
}

// Submit sends text with the current reply target, then clears the input,
// the reply target, and the local typing state. Blank text is discarded
// with ErrEmptyMessage and nothing is emitted.
func (s *Session) Submit(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	var replyTo *string
	if ref := s.reply.Current(); ref != nil {
		id := ref.MessageID
		replyTo = &id
	}
	if err := s.emitter.Emit(ws.EventMessage, ws.SendPayload{Text: text, ReplyTo: replyTo}); err != nil {
		logger.Errorf("chat: emit message: %v", err)
	}
	s.view.InputCleared()
	s.CancelReply()
	s.typing.OnLocalSend()
	return nil
}

// BeginReply makes ref the reply target, replacing any previous one.
func (s *Session) BeginReply(ref model.MessageRef) {
	s.reply.Begin(ref)
	s.view.ReplyChanged(s.reply.Current())
}

// BeginReplyAt targets the log entry with the given sequence number.
func (s *Session) BeginReplyAt(seq int) error {
	e, ok := s.log.At(seq)
	if !ok {
		return ErrUnknownEntry
	}
	ref, ok := e.Ref()
	if !ok {
		return ErrNotAddressable
	}
	s.BeginReply(ref)
	return nil
}

// TryReplyAt is BeginReplyAt for gesture paths: failures leave state alone
// and are only logged.
func (s *Session) TryReplyAt(seq int) {
	if err := s.BeginReplyAt(seq); err != nil {
		logger.Debugf("chat: reply at %d aborted: %v", seq, err)
	}
}

// CancelReply clears the reply target. Clearing twice is harmless.
func (s *Session) CancelReply() {
	if s.reply.Clear() {
		s.view.ReplyChanged(nil)
	}
}

// Escape is the cancel keystroke.
func (s *Session) Escape() { s.CancelReply() }

func (s *Session) emitTyping(typing bool) {
	t := ws.EventStopTyping
	if typing {
		t = ws.EventTyping
	}
	if err := s.emitter.Emit(t, ws.Empty{}); err != nil {
		logger.Errorf("chat: emit %s: %v", t, err)
	}
}

func (s *Session) Identity() model.Identity { return s.identity }
func (s *Session) State() State             { return s.state }
func (s *Session) Log() *Log                { return s.log }
func (s *Session) Reply() *model.MessageRef { return s.reply.Current() }
func (s *Session) TypingDisplay() string    { return s.typing.Display() }
func (s *Session) LocalTypingPending() bool { return s.typing.Pending() }
