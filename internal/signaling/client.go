package signaling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/duocall/internal/util"
)

// Client is a participant's connection to the relay. Writes are serialized
// with a mutex; reads happen in Watch.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Dial connects to the relay at url, e.g. ws://localhost:3000/ws.
func Dial(ctx context.Context, url string) (*Client, error) {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay: %w", err)
	}
	conn.SetReadLimit(maxMessageBytes)
	return &Client{conn: conn}, nil
}

// Send writes one signaling message to the relay. There is no acknowledgment
// and no retry.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeWait)
	}
	c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteJSON(msg)
}

// Watch reads messages until the connection fails or ctx is cancelled, calling
// fn for each valid one. Undecodable messages are logged and skipped.
func (c *Client) Watch(ctx context.Context, fn func(Message)) error {
	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer stop()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read relay message: %w", err)
		}

		msg, err := ParseMessage(data)
		if err != nil {
			util.LogWarning("ignoring relay message: %v", err)
			continue
		}
		fn(msg)
	}
}

// Close sends a close frame (best-effort) and releases the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.mu.Unlock()

	return c.conn.Close()
}
