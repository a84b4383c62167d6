package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chatverso/internal/model"
	"github.com/chatverso/internal/ws"
)

func TestConnectJoins(t *testing.T) {
	t.Parallel()
	h := newHarness("Ana")

	h.inbound(ws.EventConnected, ws.ConnectedPayload{SID: "c1"})
	require.Equal(t, Joined, h.s.State())
	require.Equal(t, model.Identity{DisplayName: "Ana", ConnectionID: "c1"}, h.s.Identity())
	require.Equal(t, []emitted{{Type: ws.EventJoin, Payload: ws.JoinPayload{Username: "Ana"}}}, h.emitter.events)
	require.Equal(t, []State{Connected, Joined}, h.view.states)
}

func TestConnectWithoutNameDoesNotJoin(t *testing.T) {
	t.Parallel()
	h := newHarness("   ")

	h.inbound(ws.EventConnected, ws.ConnectedPayload{SID: "c1"})
	require.Equal(t, Connected, h.s.State())
	require.Empty(t, h.emitter.events)
}

func TestJoinEmitFailureStaysConnected(t *testing.T) {
	t.Parallel()
	h := newHarness("Ana")
	h.emitter.err = errors.New("closed")

	h.inbound(ws.EventConnected, ws.ConnectedPayload{SID: "c1"})
	require.Equal(t, Connected, h.s.State())
}

func TestScenarioReceiveOtherMessage(t *testing.T) {
	t.Parallel()
	h := newHarness("Ana")
	h.inbound(ws.EventConnected, ws.ConnectedPayload{SID: "c1"})

	h.inbound(ws.EventMessage, ws.MessagePayload{ID: "m1", Text: "hi", Username: "Bea", Color: "#ff0000", SID: "c2"})

	require.Len(t, h.view.appended, 1)
	e := h.view.appended[0]
	require.False(t, e.Self)
	require.Equal(t, Rendered{Align: AlignLeft, Color: "#ff0000", Text: "Bea: hi"}, e.Render())
	require.Equal(t, "", h.s.TypingDisplay())
	require.Empty(t, h.view.typing)
}

func TestScenarioOwnEcho(t *testing.T) {
	t.Parallel()
	h := newHarness("Ana")
	h.inbound(ws.EventConnected, ws.ConnectedPayload{SID: "c1"})

	h.inbound(ws.EventMessage, ws.MessagePayload{ID: "m5", Text: "hello", Username: "Ana", Color: "#00ff00", SID: "c1"})
	e := h.view.appended[0]
	require.True(t, e.Self)
	require.Equal(t, Rendered{Align: AlignRight, Text: "hello"}, e.Render())
}

func TestScenarioTypeThenSend(t *testing.T) {
	t.Parallel()
	h := newHarness("Ana")
	h.inbound(ws.EventConnected, ws.ConnectedPayload{SID: "c1"})
	h.emitter.events = nil

	h.s.Input()
	h.advance(500 * time.Millisecond)
	require.NoError(t, h.s.Submit("  hello  "))
	h.advance(5 * time.Second)

	require.Equal(t, []emitted{
		{Type: ws.EventTyping, Payload: ws.Empty{}},
		{Type: ws.EventMessage, Payload: ws.SendPayload{Text: "hello"}},
		{Type: ws.EventStopTyping, Payload: ws.Empty{}},
	}, h.emitter.events)
	require.Equal(t, 1, h.view.cleared)
}

func TestScenarioReplyThenSend(t *testing.T) {
	t.Parallel()
	h := newHarness("Ana")
	h.inbound(ws.EventConnected, ws.ConnectedPayload{SID: "c1"})
	h.inbound(ws.EventMessage, ws.MessagePayload{ID: "m1", Text: "hi", Username: "Bea", Color: "#ff0000", SID: "c2"})
	h.emitter.events = nil

	require.NoError(t, h.s.BeginReplyAt(0))
	ref := h.s.Reply()
	require.Equal(t, &model.MessageRef{MessageID: "m1", AuthorName: "Bea", PreviewText: "hi"}, ref)
	require.Equal(t, "Replying to Bea...", Placeholder(ref))

	require.NoError(t, h.s.Submit("sure"))

	m1 := "m1"
	require.Equal(t, emitted{Type: ws.EventMessage, Payload: ws.SendPayload{Text: "sure", ReplyTo: &m1}}, h.emitter.events[0])
	require.Nil(t, h.s.Reply())
	require.Equal(t, "Type your message...", Placeholder(h.s.Reply()))
	require.Equal(t, []*model.MessageRef{ref, nil}, h.view.replies)
}

func TestScenarioMessageClearsTyping(t *testing.T) {
	t.Parallel()
	h := newHarness("Ana")
	h.inbound(ws.EventConnected, ws.ConnectedPayload{SID: "c1"})

	h.inbound(ws.EventUserTyping, ws.TypingPayload{Username: "Bea"})
	require.Equal(t, "Bea is typing…", h.s.TypingDisplay())

	h.inbound(ws.EventMessage, ws.MessagePayload{ID: "m1", Text: "hi", Username: "Bea", Color: "#ff0000", SID: "c2"})
	require.Equal(t, "", h.s.TypingDisplay())

	// a late stop is a no-op
	h.inbound(ws.EventUserStopTyping, ws.TypingPayload{Username: "Bea"})
	require.Equal(t, []string{"Bea is typing…", ""}, h.view.typing)
}

func TestSubmitBlankIsDiscarded(t *testing.T) {
	t.Parallel()
	h := newHarness("Ana")
	h.s.BeginReply(model.MessageRef{MessageID: "m1", AuthorName: "Bea", PreviewText: "hi"})

	for _, text := range []string{"", "   ", "\n\t"} {
		require.ErrorIs(t, h.s.Submit(text), ErrEmptyMessage)
	}
	require.Empty(t, h.emitter.events)
	require.Zero(t, h.view.cleared)
	require.NotNil(t, h.s.Reply())
}

func TestIncomingReplyContext(t *testing.T) {
	t.Parallel()
	h := newHarness("Ana")
	h.inbound(ws.EventConnected, ws.ConnectedPayload{SID: "c1"})

	h.inbound(ws.EventMessage, ws.MessagePayload{
		ID: "m2", Text: "sure", Username: "Cid", SID: "c3", ReplyTo: "m1",
		ReplyContext: &ws.ReplyContextPayload{Username: "Bea", Text: "hi"},
	})
	e := h.view.appended[0]
	require.Equal(t, &model.MessageRef{MessageID: "m1", AuthorName: "Bea", PreviewText: "hi"}, e.Message.ReplyTo)
	require.Equal(t, "Bea\nhi", e.Render().Quote)
}

func TestReplyCancelPaths(t *testing.T) {
	t.Parallel()
	h := newHarness("Ana")
	ref := model.MessageRef{MessageID: "m1", AuthorName: "Bea", PreviewText: "hi"}

	h.s.BeginReply(ref)
	h.s.CancelReply()
	h.s.CancelReply()
	require.Nil(t, h.s.Reply())

	h.s.BeginReply(ref)
	h.s.Escape()
	require.Nil(t, h.s.Reply())
	require.Equal(t, []*model.MessageRef{&ref, nil, &ref, nil}, h.view.replies)
}

func TestBeginReplyAtFailuresLeaveState(t *testing.T) {
	t.Parallel()
	h := newHarness("Ana")
	h.s.AppendSystemNotice("Bea joined the chat")

	require.ErrorIs(t, h.s.BeginReplyAt(0), ErrNotAddressable)
	require.ErrorIs(t, h.s.BeginReplyAt(9), ErrUnknownEntry)
	h.s.TryReplyAt(-1)
	require.Nil(t, h.s.Reply())
	require.Empty(t, h.view.replies)
}

func TestHandleIsTotal(t *testing.T) {
	t.Parallel()
	h := newHarness("Ana")

	for _, env := range []ws.Envelope{
		{Type: ws.EventMessage, Payload: []byte(`{"id":`)},
		{Type: ws.EventUserTyping, Payload: []byte(`[]`)},
		{Type: ws.EventUserUpdate, Payload: []byte(`7`)},
		{Type: ws.EventConnected},
		{Type: ws.EventError, Payload: []byte(`"nope"`)},
		{Type: "reaction_added", Payload: []byte(`{}`)},
		{Type: ws.EventUserStopTyping, Payload: []byte(`{"username":"ghost"}`)},
		{Type: ws.EventUserTyping},
		{Type: ws.EventUserTyping, Payload: []byte(`{}`)},
		{Type: ws.EventUserTyping, Payload: []byte(`{"username":"  "}`)},
		{Type: ws.EventUserStopTyping},
		{Type: ws.EventError, Payload: []byte(`{"code":1}`)},
	} {
		require.NotPanics(t, func() { h.s.Handle(env) })
	}
	require.Equal(t, Disconnected, h.s.State())
	require.Empty(t, h.view.appended)
	require.Empty(t, h.view.typing)
	require.Equal(t, "", h.s.TypingDisplay())
	require.Equal(t, 0, h.s.typing.Set().Len())
	require.Empty(t, h.emitter.events)
}

func TestNamelessMessageLeavesTypingAlone(t *testing.T) {
	t.Parallel()
	h := newHarness("Ana")
	h.inbound(ws.EventConnected, ws.ConnectedPayload{SID: "c1"})
	h.inbound(ws.EventUserTyping, ws.TypingPayload{Username: "Bea"})
	h.view.typing = nil

	h.inbound(ws.EventMessage, ws.MessagePayload{ID: "m1", Text: "hi", SID: "c9"})

	require.Len(t, h.view.appended, 1)
	require.Equal(t, "Bea is typing…", h.s.TypingDisplay())
	require.Empty(t, h.view.typing)
}

func TestPostDropsWhenQueueFull(t *testing.T) {
	t.Parallel()
	s := NewSession(&recordingEmitter{}, Options{})

	for i := 0; i < callQueueSize; i++ {
		require.True(t, s.Post(func(*Session) {}))
	}
	ran := false
	require.False(t, s.Post(func(*Session) { ran = true }))

	s.drainCalls()
	require.False(t, ran)
	require.True(t, s.Post(func(*Session) { ran = true }))
	s.drainCalls()
	require.True(t, ran)
}

func TestDisconnectResetsConnectionState(t *testing.T) {
	t.Parallel()
	h := newHarness("Ana")
	h.inbound(ws.EventConnected, ws.ConnectedPayload{SID: "c1"})
	h.inbound(ws.EventUserTyping, ws.TypingPayload{Username: "Bea"})
	h.s.Input()
	h.emitter.events = nil

	h.s.OnDisconnect()
	h.advance(2 * TypingTimerLength)

	require.Equal(t, Disconnected, h.s.State())
	require.Equal(t, "", h.s.Identity().ConnectionID)
	require.Equal(t, "", h.s.TypingDisplay())
	require.Empty(t, h.emitter.events)
}

func TestRunProcessesEventsAndPosts(t *testing.T) {
	t.Parallel()

	emitter := &recordingEmitter{}
	s := NewSession(emitter, Options{DisplayName: "Ana", TypingTimeout: 10 * time.Millisecond})
	events := make(chan ws.Envelope)
	connected, err := ws.Encode(ws.EventConnected, ws.ConnectedPayload{SID: "c1"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), events) }()
	// unbuffered: handled before the loop selects again
	events <- connected

	result := make(chan State, 1)
	require.True(t, s.Post(func(s *Session) { result <- s.State() }))
	require.Equal(t, Joined, <-result)

	close(events)
	require.NoError(t, <-done)
	require.Equal(t, Disconnected, s.State())
	require.False(t, s.Post(func(*Session) {}))
}
