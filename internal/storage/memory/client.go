package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/chatverso/internal/storage"
)

const (
	defaultCacheSize = 1000
	subscriberBuf    = 1024
)

var (
	ErrClosed         = errors.New("memory store: closed")
	ErrSubscriberFull = errors.New("memory store: subscriber buffer full")
)

// Client is an in-process Store: Publish loops back to local subscribers and
// the snapshot cache keeps the newest cacheSize messages.
type Client struct {
	mu     sync.RWMutex
	subs   map[chan []byte]struct{}
	closed bool

	cacheSize int
	snaps     map[string]storage.MessageSnapshot
	order     []string
}

func New(cacheSize int) *Client {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	return &Client{
		subs:      make(map[chan []byte]struct{}),
		cacheSize: cacheSize,
		snaps:     make(map[string]storage.MessageSnapshot),
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for ch := range c.subs {
		close(ch)
		delete(c.subs, ch)
	}
	return nil
}

// Publish never blocks: a subscriber whose buffer is full misses the
// payload and ErrSubscriberFull is returned after the others got it.
func (c *Client) Publish(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	var err error
	for ch := range c.subs {
		select {
		case ch <- payload:
		default:
			err = ErrSubscriberFull
		}
	}
	return err
}

func (c *Client) Subscribe(ctx context.Context) (<-chan []byte, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	ch := make(chan []byte, subscriberBuf)
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}()
	return ch, nil
}

func (c *Client) RememberMessage(ctx context.Context, snap storage.MessageSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.snaps[snap.ID]; !ok {
		c.order = append(c.order, snap.ID)
	}
	c.snaps[snap.ID] = snap
	for len(c.order) > c.cacheSize {
		delete(c.snaps, c.order[0])
		c.order = c.order[1:]
	}
	return nil
}

func (c *Client) LookupMessage(ctx context.Context, id string) (storage.MessageSnapshot, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.snaps[id]
	return snap, ok, nil
}
