// Package transport sketches the pluggable network adapter spec §9
// mentions as the right extension point for the `topic@host:port` remote
// Hub endpoint form. No wire format is standardized here — this is
// intentionally a minimal adapter, not a full replacement for ShmTopic.
package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// Adapter is the contract a non-local Hub backend must satisfy. A local
// Hub never uses this — it talks to shmtopic directly.
type Adapter interface {
	Send(ctx context.Context, payload []byte) error
	Recv(ctx context.Context) ([]byte, error)
	State() ConnState
	Close() error
}

// ConnState mirrors the Hub connection state machine (spec §4.3).
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
	Reconnecting
	Failed
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Reconnecting:
		return "Reconnecting"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// WebSocketAdapter is the sketch remote-endpoint implementation: it dials
// a `ws://host:port/<topic>` endpoint and frames each message as one
// binary WebSocket message. A dropped connection is redialed lazily on the
// next Send or Recv; there is no background loop and no backoff.
type WebSocketAdapter struct {
	url string

	mu    sync.Mutex
	conn  *websocket.Conn
	state ConnState
}

func NewWebSocketAdapter(hostPort, topic string) *WebSocketAdapter {
	return &WebSocketAdapter{
		url:   fmt.Sprintf("ws://%s/%s", hostPort, topic),
		state: Disconnected,
	}
}

func (a *WebSocketAdapter) State() ConnState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *WebSocketAdapter) ensureConnected(ctx context.Context) error {
	a.mu.Lock()
	if a.conn != nil {
		a.mu.Unlock()
		return nil
	}
	a.state = Connecting
	a.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, a.url, nil)
	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.state = Failed
		return fmt.Errorf("dial %s: %w", a.url, err)
	}
	a.conn = conn
	a.state = Connected
	return nil
}

// Send writes payload as one binary WebSocket message, reconnecting once
// on failure before giving up (spec §4.3: "transitions follow the
// underlying adapter" for remote endpoints).
func (a *WebSocketAdapter) Send(ctx context.Context, payload []byte) error {
	if err := a.ensureConnected(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()

	if err := conn.Write(ctx, websocket.MessageBinary, payload); err != nil {
		a.mu.Lock()
		a.conn = nil
		a.state = Reconnecting
		a.mu.Unlock()
		if derr := a.ensureConnected(ctx); derr != nil {
			return fmt.Errorf("write to %s: %w", a.url, err)
		}
		a.mu.Lock()
		conn = a.conn
		a.mu.Unlock()
		if err := conn.Write(ctx, websocket.MessageBinary, payload); err != nil {
			a.mu.Lock()
			a.conn = nil
			a.state = Reconnecting
			a.mu.Unlock()
			return fmt.Errorf("write to %s: %w", a.url, err)
		}
	}
	return nil
}

// Recv reads the next binary WebSocket message.
func (a *WebSocketAdapter) Recv(ctx context.Context) ([]byte, error) {
	if err := a.ensureConnected(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()

	_, data, err := conn.Read(ctx)
	if err != nil {
		a.mu.Lock()
		a.conn = nil
		a.state = Reconnecting
		a.mu.Unlock()
		return nil, fmt.Errorf("read from %s: %w", a.url, err)
	}
	return data, nil
}

func (a *WebSocketAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close(websocket.StatusNormalClosure, "closing")
	a.conn = nil
	a.state = Disconnected
	return err
}

// dialTimeout bounds how long ensureConnected waits for a dial, made on the
// first Send/Recv after a disconnect, before surfacing Failed.
const dialTimeout = 5 * time.Second
