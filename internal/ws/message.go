package ws

import (
	"encoding/json"
	"fmt"
)

type EventType string

// Client -> relay.
const (
	EventJoin       EventType = "join"
	EventMessage    EventType = "message"
	EventTyping     EventType = "typing"
	EventStopTyping EventType = "stop_typing"
)

// Relay -> client. EventMessage is shared by both directions.
const (
	EventConnected      EventType = "connected"
	EventUserUpdate     EventType = "user_update"
	EventUserTyping     EventType = "user_typing"
	EventUserStopTyping EventType = "user_stop_typing"
	EventError          EventType = "error"
)

// Envelope is a frame as read off the wire; Payload is decoded lazily
// once the type is known.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OutgoingMessage is a frame to be written. Payload is marshalled as is.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// Decode unmarshals the envelope payload into T. A missing payload decodes
// to the zero value.
func Decode[T any](env Envelope) (T, error) {
	var v T
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return v, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return v, nil
}

// Encode builds an envelope from a typed payload.
func Encode(t EventType, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return Envelope{Type: t, Payload: raw}, nil
}

// --- Payloads ---

// Empty is the payload of typing and stop_typing.
type Empty struct{}

type JoinPayload struct {
	Username string `json:"username"`
}

// SendPayload is a chat message sent by the local user. ReplyTo is
// serialized as null when not threaded.
type SendPayload struct {
	Text    string  `json:"text"`
	ReplyTo *string `json:"reply_to"`
}

// ReplyContextPayload is the relay's snapshot of the message replied to.
type ReplyContextPayload struct {
	Username string `json:"username"`
	Text     string `json:"text"`
}

// MessagePayload is a chat message broadcast by the relay. SID is the
// author's connection id.
type MessagePayload struct {
	ID           string               `json:"id"`
	Text         string               `json:"text"`
	Username     string               `json:"username"`
	Color        string               `json:"color"`
	SID          string               `json:"sid"`
	ReplyTo      string               `json:"reply_to,omitempty"`
	ReplyContext *ReplyContextPayload `json:"reply_context,omitempty"`
}

// UserUpdatePayload carries a join/leave notice.
type UserUpdatePayload struct {
	Message string `json:"message"`
}

type TypingPayload struct {
	Username string `json:"username"`
}

// ConnectedPayload tells a fresh connection its transport-assigned id.
type ConnectedPayload struct {
	SID string `json:"sid"`
}
