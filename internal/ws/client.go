package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/chatverso/internal/logger"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufSize    = 256
)

// bufPool pools bytes.Buffer for JSON encoding in the write pumps.
var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

func writeJSON(conn *websocket.Conn, msg OutgoingMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	buf := bufPool.Get().(*bytes.Buffer)
	defer bufPool.Put(buf)
	buf.Reset()
	if err := json.NewEncoder(buf).Encode(msg); err != nil {
		return err
	}
	// json.Encoder appends '\n'; trim it for websocket text frames.
	data := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
	return conn.WriteMessage(websocket.TextMessage, data)
}

// ClientOptions tunes the relay side of a connection. Zero values fall back
// to package defaults.
type ClientOptions struct {
	SendBufferSize int
	MaxMessageSize int64
	// RateLimit and RateBurst bound inbound frames per second. Zero disables.
	RateLimit float64
	RateBurst int
}

// Client is one relay connection. sid is the transport-assigned connection
// id; username and color are set on join and only touched by the hub.
// Lifecycle: NewClient -> Start(ctx, cancel) -> [readPump, writePump] -> Close -> Wait.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan OutgoingMessage
	sid     string
	limiter *rate.Limiter
	maxSize int64

	username string
	color    string

	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

func NewClient(hub *Hub, conn *websocket.Conn, sid string, opts ClientOptions) *Client {
	if opts.SendBufferSize <= 0 {
		opts.SendBufferSize = sendBufSize
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = maxMessageSize
	}
	c := &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan OutgoingMessage, opts.SendBufferSize),
		sid:     sid,
		maxSize: opts.MaxMessageSize,
		done:    make(chan struct{}),
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

func (c *Client) SID() string { return c.sid }

// Start launches both pumps. ctx controls their lifetime; cancel is kept for Close.
func (c *Client) Start(ctx context.Context, cancel context.CancelFunc) {
	c.cancel = cancel
	c.wg.Add(2)
	go c.writePump(ctx)
	go c.readPump(ctx)
}

func (c *Client) Wait() {
	c.wg.Wait()
}

// Close signals the client to stop. Safe to call multiple times from any goroutine.
func (c *Client) Close() {
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		close(c.done)
		c.conn.Close()
	})
}

func (c *Client) readPump(ctx context.Context) {
	defer c.wg.Done()
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Errorf("ws set read deadline sid=%s: %v", MaskID(c.sid), err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("ws read error sid=%s: %v", MaskID(c.sid), err)
			}
			return
		}

		if c.limiter != nil && !c.limiter.Allow() {
			c.hub.dropped(c, "rate_limited")
			continue
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			logger.Errorf("ws unmarshal error sid=%s: %v", MaskID(c.sid), err)
			continue
		}

		c.hub.HandleMessage(ctx, c, env)
	}
}

func (c *Client) writePump(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			if err := c.conn.WriteMessage(websocket.CloseMessage, nil); err != nil {
				logger.Debugf("ws close message sid=%s: %v", MaskID(c.sid), err)
			}
			return
		case msg := <-c.send:
			if err := writeJSON(c.conn, msg); err != nil {
				logger.Debugf("ws write sid=%s: %v", MaskID(c.sid), err)
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Errorf("ws set write deadline sid=%s: %v", MaskID(c.sid), err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// MaskID shortens a connection id for logs.
func MaskID(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "***"
}
