// Package client is the importable client side of the collaboration
// protocol: a websocket connection wrapper plus per-subsystem views
// (presence feed, kanban board, timer, document editor, comment thread,
// reaction overlay).
// The views are pure state machines behind the Emitter interface, so they
// are unit-testable without a network.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"

	"github.com/tandemlabs/tandem/internal/realtime"
)

// Emitter sends one named event to the server. Conn implements it over a
// websocket; tests substitute a recorder.
type Emitter interface {
	Emit(event string, payload any) error
}

// EventHandler receives one inbound event's raw payload.
type EventHandler func(data json.RawMessage)

// Conn is a live connection to the collaboration server. Register handlers
// with On before calling Run; events without a handler are dropped.
type Conn struct {
	conn *websocket.Conn

	mu       sync.Mutex
	handlers map[string][]EventHandler
}

// Dial connects and authenticates. The token rides the query string because
// browser websockets cannot set headers; the server accepts both.
func Dial(ctx context.Context, serverURL, token string) (*Conn, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("client.Dial: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("client.Dial: %w", err)
	}

	return &Conn{
		conn:     conn,
		handlers: make(map[string][]EventHandler),
	}, nil
}

// On registers a handler for an inbound event name.
func (c *Conn) On(event string, h EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

// Emit sends one event to the server.
func (c *Conn) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("client.Conn.Emit: %s: %w", event, err)
	}
	frame, err := json.Marshal(realtime.Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("client.Conn.Emit: %s: %w", event, err)
	}
	if err := c.conn.Write(context.Background(), websocket.MessageText, frame); err != nil {
		return fmt.Errorf("client.Conn.Emit: %s: %w", event, err)
	}
	return nil
}

// Run reads inbound frames and dispatches them to registered handlers until
// the connection drops or ctx is cancelled. Malformed frames are skipped.
func (c *Conn) Run(ctx context.Context) error {
	for {
		_, frame, err := c.conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("client.Conn.Run: %w", err)
		}

		var env realtime.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			continue
		}

		c.mu.Lock()
		handlers := c.handlers[env.Event]
		c.mu.Unlock()
		for _, h := range handlers {
			h(env.Data)
		}
	}
}

// Close tears the connection down.
func (c *Conn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "client closed")
}

// jsonHandler adapts a typed payload function into an EventHandler,
// dropping frames that do not decode.
func jsonHandler[T any](apply func(T)) EventHandler {
	return func(data json.RawMessage) {
		var p T
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		apply(p)
	}
}
