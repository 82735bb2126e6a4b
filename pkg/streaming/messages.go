// Package streaming defines the live kill feed protocol spoken over WebSocket.
package streaming

import (
	"encoding/json"

	"github.com/killindicator/extension/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeKill         = "kill"
	TypeIndicator    = "indicator"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload identifies the recording node.
type StartSessionPayload struct {
	Role       string `json:"role"`
	LocalNode  uint64 `json:"localNode"`
	LocalAgent uint16 `json:"localAgent"`
	Version    string `json:"version,omitempty"`
}

// KillPayload is an attributed kill.
type KillPayload struct {
	Time    int64      `json:"time"`
	Entity  uint16     `json:"entity"`
	Player  *uint16    `json:"player,omitempty"`
	Item    *core.Item `json:"item,omitempty"`
	Channel string     `json:"channel"`
	Delay   int64      `json:"delay"`
}

// IndicatorPayload is a confirmation shown on the node.
type IndicatorPayload struct {
	Time     int64      `json:"time"`
	Entity   uint16     `json:"entity"`
	Source   string     `json:"source"`
	Delay    int64      `json:"delay"`
	Item     *core.Item `json:"item,omitempty"`
	Position core.Vec3  `json:"position"`
}

// NewStartSession builds the start payload for info.
func NewStartSession(info core.SessionInfo, version string) StartSessionPayload {
	return StartSessionPayload{
		Role:       info.Role.String(),
		LocalNode:  uint64(info.LocalNode),
		LocalAgent: uint16(info.LocalAgent),
		Version:    version,
	}
}

// NewKill builds a kill payload.
func NewKill(k core.KillEvent) KillPayload {
	p := KillPayload{
		Time:    k.Time,
		Entity:  uint16(k.Entity),
		Item:    k.Item,
		Channel: k.Channel.String(),
		Delay:   k.Delay,
	}
	if k.Player != nil {
		id := uint16(k.Player.ID)
		p.Player = &id
	}
	return p
}

// NewIndicator builds an indicator payload.
func NewIndicator(e core.IndicatorEvent) IndicatorPayload {
	return IndicatorPayload{
		Time:     e.Time,
		Entity:   uint16(e.Entity),
		Source:   e.Source.String(),
		Delay:    e.Delay,
		Item:     e.Item,
		Position: e.Position,
	}
}
