package storage

import "context"

// MessageSnapshot is what the relay remembers about a message so a later
// reply can carry the author and text of the message it threads under.
type MessageSnapshot struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Text     string `json:"text"`
}

// Store is the relay's shared state: the broadcast bus every relay instance
// subscribes to, and the reply snapshot cache.
// Implementations: redis.Client (multi-instance), memory.Client (single process).
type Store interface {
	// Publish delivers payload to every live subscription, in publish order.
	Publish(ctx context.Context, payload []byte) error
	// Subscribe returns a channel closed when ctx ends or the store closes.
	Subscribe(ctx context.Context) (<-chan []byte, error)
	RememberMessage(ctx context.Context, snap MessageSnapshot) error
	// LookupMessage reports false when the id is unknown or has expired.
	LookupMessage(ctx context.Context, id string) (MessageSnapshot, bool, error)
	Close() error
}
