package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/killindicator/extension/pkg/core"
	"github.com/killindicator/extension/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL     string
	Secret  string
	Version string
}

// Backend streams the kill feed over WebSocket to the feed server.
// It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn *feedConn
	cfg  Config
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newFeedConn(logger.With("component", "killfeed-ws")),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.open(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Stats returns how many messages were handed to the socket and dropped.
func (b *Backend) Stats() (sent, dropped uint64) {
	return b.conn.sent.Load(), b.conn.dropped.Load()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope queues one fire-and-forget message. A full queue drops it
// and is counted in Stats, not reported as an error.
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.enqueue(data)
	return nil
}

// StartSession announces the session and waits for server ack.
func (b *Backend) StartSession(info *core.SessionInfo) error {
	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.NewStartSession(*info, b.cfg.Version))
	if err != nil {
		return err
	}

	b.conn.setStart(data)
	return b.conn.request(data, streaming.TypeStartSession)
}

// EndSession sends end_session and waits for server ack.
func (b *Backend) EndSession() error {
	data, err := marshalEnvelope(streaming.TypeEndSession, nil)
	if err != nil {
		return err
	}
	err = b.conn.request(data, streaming.TypeEndSession)
	b.conn.setStart(nil)
	return err
}

func (b *Backend) RecordKill(e *core.KillEvent) error {
	return b.sendEnvelope(streaming.TypeKill, streaming.NewKill(*e))
}

func (b *Backend) RecordIndicator(e *core.IndicatorEvent) error {
	return b.sendEnvelope(streaming.TypeIndicator, streaming.NewIndicator(*e))
}
