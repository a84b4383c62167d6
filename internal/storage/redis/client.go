package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chatverso/internal/logger"
	"github.com/chatverso/internal/storage"
	"github.com/redis/go-redis/v9"
)

const (
	EventsChannel = "chatverso:events"
	snapshotKey   = "chatverso:msg:"
	// SnapshotTTL bounds how long a message can still be replied to with
	// context attached.
	SnapshotTTL = 24 * time.Hour
)

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func (c *Client) Publish(ctx context.Context, payload []byte) error {
	return c.cli.Publish(ctx, EventsChannel, payload).Err()
}

// Subscribe waits for the subscription to be confirmed so nothing published
// after it returns is missed.
func (c *Client) Subscribe(ctx context.Context) (<-chan []byte, error) {
	ps := c.cli.Subscribe(ctx, EventsChannel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}
	out := make(chan []byte, 1024)
	go func() {
		defer close(out)
		defer ps.Close()
		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (c *Client) RememberMessage(ctx context.Context, snap storage.MessageSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis marshal snapshot: %w", err)
	}
	return c.cli.Set(ctx, snapshotKey+snap.ID, data, SnapshotTTL).Err()
}

func (c *Client) LookupMessage(ctx context.Context, id string) (storage.MessageSnapshot, bool, error) {
	var snap storage.MessageSnapshot
	val, err := c.cli.Get(ctx, snapshotKey+id).Bytes()
	if err == redis.Nil {
		return snap, false, nil
	}
	if err != nil {
		return snap, false, err
	}
	if err := json.Unmarshal(val, &snap); err != nil {
		logger.Errorf("redis: corrupt snapshot %s: %v", id, err)
		return snap, false, nil
	}
	return snap, true, nil
}

// FlushDB clears the current database (tests, local resets).
func (c *Client) FlushDB(ctx context.Context) error {
	return c.cli.FlushDB(ctx).Err()
}
