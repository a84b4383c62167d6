package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chatverso/internal/logger"
	"github.com/gorilla/websocket"
)

var (
	ErrClosed         = errors.New("ws: connection closed")
	ErrSendBufferFull = errors.New("ws: send buffer full")
)

const (
	dialTimeout   = 10 * time.Second
	eventsBufSize = 256
)

// Conn is the client side of a relay connection. Events are delivered in the
// order they were read; Emit preserves call order on the wire.
// Lifecycle: Dial -> [readPump, writePump] -> Close -> Wait.
type Conn struct {
	conn   *websocket.Conn
	events chan Envelope
	send   chan OutgoingMessage

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// Dial connects to the relay websocket endpoint at url.
func Dial(ctx context.Context, url string, header http.Header) (*Conn, error) {
	d := websocket.Dialer{HandshakeTimeout: dialTimeout}
	wsConn, resp, err := d.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Conn{
		conn:   wsConn,
		events: make(chan Envelope, eventsBufSize),
		send:   make(chan OutgoingMessage, sendBufSize),
		done:   make(chan struct{}),
	}
	c.wg.Add(2)
	go c.writePump()
	go c.readPump()
	return c, nil
}

// Events is closed when the connection ends.
func (c *Conn) Events() <-chan Envelope { return c.events }

// Emit queues an outbound event. It never blocks: a full buffer is an error
// the caller is expected to log, not retry.
func (c *Conn) Emit(t EventType, payload any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- OutgoingMessage{Type: t, Payload: payload}:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrSendBufferFull
	}
}

// Close sends a normal-closure frame, then stops both pumps. Safe to call
// multiple times.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		// WriteControl may run concurrently with writePump; it fails once the
		// peer has already closed, which is fine
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		err = c.conn.Close()
	})
	return err
}

// Wait blocks until both pumps have exited.
func (c *Conn) Wait() { c.wg.Wait() }

func (c *Conn) readPump() {
	defer c.wg.Done()
	defer close(c.events)
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Errorf("ws client set read deadline: %v", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	// the relay pings us; answering resets our own read deadline too
	c.conn.SetPingHandler(func(data string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return err
		}
		err := c.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("ws client read: %v", err)
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			logger.Errorf("ws client unmarshal: %v", err)
			continue
		}
		select {
		case c.events <- env:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) writePump() {
	defer c.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := writeJSON(c.conn, msg); err != nil {
				logger.Errorf("ws client write %s: %v", msg.Type, err)
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
