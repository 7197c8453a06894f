package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/hrdesk/internal/channels"
)

// Bridge frame types.
const (
	frameSend    = "send"    // outbound: payload is a Cloud API Message
	frameWebhook = "webhook" // inbound: body is a raw webhook delivery
)

const (
	bridgeMaxBackoff = 30 * time.Second
	bridgeWriteWait  = 10 * time.Second
)

// InboundFunc receives webhook bodies relayed by the bridge.
type InboundFunc func(ctx context.Context, body []byte)

type frame struct {
	Type    string          `json:"type"`
	Payload *Message        `json:"payload,omitempty"`
	Body    json.RawMessage `json:"body,omitempty"`
}

// Bridge connects to a WhatsApp bridge over WebSocket. The bridge owns
// the provider session; outbound messages are written as send frames
// and inbound deliveries come back as webhook frames.
type Bridge struct {
	*channels.BaseChannel
	url     string
	inbound InboundFunc

	mu     sync.Mutex
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBridge creates a bridge transport. inbound may be nil when only
// sending is needed.
func NewBridge(url string, inbound InboundFunc) (*Bridge, error) {
	if url == "" {
		return nil, errors.New("whatsapp: bridge_url is required")
	}
	return &Bridge{BaseChannel: channels.NewBaseChannel("bridge"), url: url, inbound: inbound}, nil
}

// Start connects and begins listening. A failed first dial is retried in
// the background.
func (b *Bridge) Start(ctx context.Context) error {
	slog.Info("starting whatsapp bridge", "bridge_url", b.url)
	b.ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})

	if err := b.connect(); err != nil {
		slog.Warn("initial whatsapp bridge connection failed, will retry", "error", err)
	}
	go b.listenLoop()

	b.SetRunning(true)
	return nil
}

// Stop closes the connection and waits for the listener to exit.
func (b *Bridge) Stop(ctx context.Context) error {
	slog.Info("stopping whatsapp bridge")
	if b.cancel != nil {
		b.cancel()
	}
	b.closeConn()
	b.SetRunning(false)

	if b.done != nil {
		select {
		case <-b.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *Bridge) SendText(ctx context.Context, to, text string) error {
	for _, m := range textMessages(to, text) {
		if err := b.write(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bridge) SendButtons(ctx context.Context, to, body string, buttons []channels.Button) error {
	m, err := ButtonsMessage(to, body, buttons)
	if err != nil {
		return err
	}
	return b.write(ctx, m)
}

func (b *Bridge) SendList(ctx context.Context, to string, list channels.List) error {
	m, err := ListMessage(to, list)
	if err != nil {
		return err
	}
	return b.write(ctx, m)
}

func (b *Bridge) SendDocument(ctx context.Context, to string, doc channels.Document) error {
	return b.write(ctx, DocumentMessage(to, doc))
}

func (b *Bridge) write(ctx context.Context, m Message) error {
	data, err := json.Marshal(frame{Type: frameSend, Payload: &m})
	if err != nil {
		return fmt.Errorf("marshal bridge frame: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return errors.New("whatsapp bridge not connected")
	}
	deadline := time.Now().Add(bridgeWriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = b.conn.SetWriteDeadline(deadline)
	if err := b.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send whatsapp bridge frame: %w", err)
	}
	return nil
}

func (b *Bridge) connect() error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(b.ctx, b.url, nil)
	if err != nil {
		return fmt.Errorf("dial whatsapp bridge %s: %w", b.url, err)
	}

	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()

	slog.Info("whatsapp bridge connected", "url", b.url)
	return nil
}

func (b *Bridge) closeConn() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		_ = b.conn.Close()
		b.conn = nil
	}
}

// listenLoop reads frames with automatic reconnection.
func (b *Bridge) listenLoop() {
	defer close(b.done)
	backoff := time.Second

	for {
		if b.ctx.Err() != nil {
			return
		}

		b.mu.Lock()
		conn := b.conn
		b.mu.Unlock()

		if conn == nil {
			slog.Info("attempting whatsapp bridge reconnect", "backoff", backoff)
			select {
			case <-b.ctx.Done():
				return
			case <-time.After(backoff):
			}
			if err := b.connect(); err != nil {
				slog.Warn("whatsapp bridge reconnect failed", "error", err)
				backoff = min(backoff*2, bridgeMaxBackoff)
				continue
			}
			backoff = time.Second
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if b.ctx.Err() == nil {
				slog.Warn("whatsapp bridge read error, will reconnect", "error", err)
			}
			b.closeConn()
			continue
		}
		b.handleFrame(data)
	}
}

func (b *Bridge) handleFrame(data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		slog.Warn("invalid whatsapp bridge frame", "error", err)
		return
	}
	if f.Type != frameWebhook {
		slog.Debug("ignoring whatsapp bridge frame", "type", f.Type)
		return
	}
	if len(f.Body) == 0 || b.inbound == nil {
		return
	}
	b.inbound(b.ctx, []byte(f.Body))
}
