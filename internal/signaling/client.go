package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	outgoingBuffer = 64
)

// ErrClosed is returned by Send once the relay connection has ended.
var ErrClosed = errors.New("relay connection closed")

// Relay is the ordered, bidirectional message channel to the signaling
// server. Incoming is closed when the connection ends; Err then explains why.
type Relay interface {
	Send(env *Envelope) error
	Incoming() <-chan *Envelope
	Err() error
	Close() error
}

// DialFunc opens a relay connection.
type DialFunc func(ctx context.Context, rawURL string) (Relay, error)

// Client manages the WebSocket connection to the signaling relay.
type Client struct {
	conn     *websocket.Conn
	incoming chan *Envelope
	outgoing chan *Envelope
	done     chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

// Dialer builds relay connections. NetDialContext lets callers plug in a
// custom resolver; nil uses the system one.
type Dialer struct {
	NetDialContext   func(ctx context.Context, network, addr string) (net.Conn, error)
	HandshakeTimeout time.Duration
}

// Dial establishes the WebSocket connection and starts the pumps.
func (d Dialer) Dial(ctx context.Context, rawURL string) (Relay, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay URL: %w", err)
	}

	timeout := d.HandshakeTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ws := websocket.Dialer{
		NetDialContext:   d.NetDialContext,
		HandshakeTimeout: timeout,
		Proxy:            websocket.DefaultDialer.Proxy,
	}

	conn, _, err := ws.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return newClient(conn), nil
}

func newClient(conn *websocket.Conn) *Client {
	c := &Client{
		conn:     conn,
		incoming: make(chan *Envelope, 16),
		outgoing: make(chan *Envelope, outgoingBuffer),
		done:     make(chan struct{}),
	}

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()
	return c
}

// readPump reads envelopes one at a time, preserving relay order.
func (c *Client) readPump() {
	defer func() {
		close(c.incoming)
		c.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.setErr(err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("dropping malformed relay frame", "err", err, "bytes", len(data))
			continue
		}

		select {
		case c.incoming <- &env:
		case <-c.done:
			return
		}
	}
}

// writePump writes envelopes and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				slog.Debug("relay write failed", "err", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send queues an envelope for the relay. It never blocks past Close.
func (c *Client) Send(env *Envelope) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.outgoing <- env:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Incoming returns the channel of received envelopes.
func (c *Client) Incoming() <-chan *Envelope {
	return c.incoming
}

// Err returns the error that ended the connection, or nil if it is still
// open or was closed locally.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) setErr(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}

// Close ends the connection. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

// Rejection extracts a known join-rejection reason from the error that ended
// a relay connection. Any other close reason reports false.
func Rejection(err error) (string, bool) {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return "", false
	}
	switch ce.Text {
	case ReasonInvalidPassword, ReasonRoomMissing:
		return ce.Text, true
	}
	return "", false
}
