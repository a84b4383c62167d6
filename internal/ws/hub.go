package ws

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/chatverso/internal/logger"
	"github.com/chatverso/internal/metrics"
	"github.com/chatverso/internal/storage"
	"github.com/google/uuid"
)

const storeTimeout = 5 * time.Second

// DefaultPalette is the set of author colors handed out on join.
var DefaultPalette = []string{
	"#e57373", "#64b5f6", "#81c784", "#ffb74d",
	"#ba68c8", "#4db6ac", "#f06292", "#a1887f",
}

// delivery is what travels over the store's bus. Exclude, when set, is the
// sid that must not receive the event (typing echoes).
type delivery struct {
	Exclude string   `json:"exclude,omitempty"`
	Event   Envelope `json:"event"`
}

// Hub is the relay side of the event contract. It owns the connections of
// this process and fans every broadcast out through the Store so other
// relay instances deliver it too.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	maxConns int

	store     storage.Store
	palette   []string
	nextColor int

	register   chan *Client
	unregister chan *Client
	ready      chan struct{}
	done       chan struct{}
}

func NewHub(store storage.Store, maxConns int, palette []string) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	return &Hub{
		clients:    make(map[string]*Client),
		maxConns:   maxConns,
		store:      store,
		palette:    palette,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		ready:      make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Ready is closed once Run has subscribed to the store.
func (h *Hub) Ready() <-chan struct{} { return h.ready }

// Run subscribes to the bus and serves register/unregister until ctx ends.
func (h *Hub) Run(ctx context.Context) error {
	bus, err := h.store.Subscribe(ctx)
	if err != nil {
		close(h.done)
		return err
	}
	close(h.ready)
	// done closes before shutdown so pumps unregistering during shutdown
	// do not block.
	defer h.shutdown()
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return nil
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(ctx, client)
		case raw, ok := <-bus:
			if !ok {
				return nil
			}
			h.deliver(raw)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect under the lock, do the I/O outside it.
	h.mu.Lock()
	all := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		all = append(all, c)
	}
	h.clients = make(map[string]*Client)
	h.mu.Unlock()
	metrics.Connections.Set(0)

	for _, c := range all {
		c.Close()
	}
	for _, c := range all {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if len(h.clients) >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting sid=%s", h.maxConns, MaskID(c.sid))
		c.Close()
		return
	}
	h.clients[c.sid] = c
	n := len(h.clients)
	h.mu.Unlock()
	metrics.Connections.Set(float64(n))

	h.sendToClient(c, OutgoingMessage{Type: EventConnected, Payload: ConnectedPayload{SID: c.sid}})
}

func (h *Hub) removeClient(ctx context.Context, c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.sid]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.sid)
	n := len(h.clients)
	name := c.username
	h.mu.Unlock()
	metrics.Connections.Set(float64(n))

	c.Close()

	if name == "" {
		return
	}
	h.broadcast(ctx, "", EventUserStopTyping, TypingPayload{Username: name})
	h.broadcast(ctx, "", EventUserUpdate, UserUpdatePayload{Message: name + " left the chat"})
	logger.Infof("ws leave sid=%s user=%s", MaskID(c.sid), name)
}

// HandleMessage dispatches one inbound frame. Events before join other than
// join itself are ignored.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, env Envelope) {
	metrics.EventsIn.WithLabelValues(string(env.Type)).Inc()
	switch env.Type {
	case EventJoin:
		h.handleJoin(ctx, c, env)
	case EventMessage:
		h.handleMessage(ctx, c, env)
	case EventTyping, EventStopTyping:
		h.handleTyping(ctx, c, env.Type)
	default:
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "unknown event type"})
	}
}

func (h *Hub) handleJoin(ctx context.Context, c *Client, env Envelope) {
	p, err := Decode[JoinPayload](env)
	name := strings.TrimSpace(p.Username)
	if err != nil || name == "" {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "username required"})
		return
	}

	h.mu.Lock()
	if c.username != "" {
		h.mu.Unlock()
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "already joined"})
		return
	}
	c.username = name
	c.color = h.palette[h.nextColor%len(h.palette)]
	h.nextColor++
	h.mu.Unlock()

	logger.Infof("ws join sid=%s user=%s", MaskID(c.sid), name)
	h.broadcast(ctx, "", EventUserUpdate, UserUpdatePayload{Message: name + " joined the chat"})
}

func (h *Hub) handleMessage(ctx context.Context, c *Client, env Envelope) {
	defer logger.DeferLogDuration("ws.handleMessage", time.Now())()
	name, color := h.identity(c)
	if name == "" {
		return
	}
	p, err := Decode[SendPayload](env)
	if err != nil {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "malformed message"})
		return
	}
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	out := MessagePayload{
		ID:       uuid.NewString(),
		Text:     text,
		Username: name,
		Color:    color,
		SID:      c.sid,
	}
	if p.ReplyTo != nil && *p.ReplyTo != "" {
		snap, ok, err := h.store.LookupMessage(ctx, *p.ReplyTo)
		switch {
		case err != nil:
			logger.Errorf("ws lookup reply target %s: %v", *p.ReplyTo, err)
		case ok:
			out.ReplyTo = snap.ID
			out.ReplyContext = &ReplyContextPayload{Username: snap.Username, Text: snap.Text}
		}
	}
	if err := h.store.RememberMessage(ctx, storage.MessageSnapshot{ID: out.ID, Username: name, Text: text}); err != nil {
		logger.Errorf("ws remember message %s: %v", out.ID, err)
	}
	h.broadcast(ctx, "", EventMessage, out)
}

func (h *Hub) handleTyping(ctx context.Context, c *Client, t EventType) {
	name, _ := h.identity(c)
	if name == "" {
		return
	}
	out := EventUserTyping
	if t == EventStopTyping {
		out = EventUserStopTyping
	}
	h.broadcast(ctx, c.sid, out, TypingPayload{Username: name})
}

func (h *Hub) identity(c *Client) (name, color string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return c.username, c.color
}

// broadcast publishes an event to every connection on every relay instance
// except exclude.
func (h *Hub) broadcast(ctx context.Context, exclude string, t EventType, payload any) {
	env, err := Encode(t, payload)
	if err != nil {
		logger.Errorf("ws %v", err)
		return
	}
	raw, err := json.Marshal(delivery{Exclude: exclude, Event: env})
	if err != nil {
		logger.Errorf("ws marshal delivery: %v", err)
		return
	}
	if err := h.store.Publish(ctx, raw); err != nil {
		logger.Errorf("ws publish %s: %v", t, err)
		metrics.Dropped.WithLabelValues("publish").Inc()
		return
	}
	metrics.Broadcasts.WithLabelValues(string(t)).Inc()
}

// deliver hands a bus payload to the local connections.
func (h *Hub) deliver(raw []byte) {
	var d delivery
	if err := json.Unmarshal(raw, &d); err != nil {
		logger.Errorf("ws bad delivery: %v", err)
		return
	}
	out := OutgoingMessage{Type: d.Event.Type, Payload: d.Event.Payload}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for sid, c := range h.clients {
		if sid != d.Exclude {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, out)
	}
}

func (h *Hub) sendToClient(c *Client, msg OutgoingMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client sid=%s", MaskID(c.sid))
		metrics.Dropped.WithLabelValues("slow_client").Inc()
		c.Close()
	}
}

func (h *Hub) dropped(c *Client, reason string) {
	metrics.Dropped.WithLabelValues(reason).Inc()
	h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "rate limit exceeded"})
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Online returns the number of connections held by this instance.
func (h *Hub) Online() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
