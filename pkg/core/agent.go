// pkg/core/agent.go
package core

import "fmt"

// EntityID is the stable network identifier of an entity, valid on every node.
// Process-local handles never leave the node that owns them.
type EntityID uint16

// AgentID identifies a player agent within a session.
type AgentID uint16

// NodeID identifies a session participant on the transport.
type NodeID uint64

// EntityKind tells enemies and players apart.
type EntityKind uint8

const (
	KindEnemy EntityKind = iota
	KindPlayer
)

func (k EntityKind) String() string {
	if k == KindPlayer {
		return "player"
	}
	return "enemy"
}

// MarshalText implements encoding.TextMarshaler.
func (k EntityKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EntityKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "enemy", "":
		*k = KindEnemy
	case "player":
		*k = KindPlayer
	default:
		return fmt.Errorf("unknown entity kind %q", string(b))
	}
	return nil
}

// Item is an equipped or wielded inventory item.
type Item struct {
	ID   uint32 `json:"id"`
	Name string `json:"name"`
}

// Loadout is the backpack slot layout of a player.
type Loadout struct {
	Standard *Item `json:"standard,omitempty"`
	Special  *Item `json:"special,omitempty"`
	Class    *Item `json:"class,omitempty"` // tool slot: sentry, mine deployer
}

// Agent is a player agent as reported by the host.
type Agent struct {
	ID      AgentID `json:"id"`
	Node    NodeID  `json:"node"`
	Name    string  `json:"name"`
	IsBot   bool    `json:"isBot"`
	IsLocal bool    `json:"isLocal"`
	Wielded *Item   `json:"wielded,omitempty"`
	Loadout Loadout `json:"loadout"`
}

// EntityState is the host's read-only snapshot of an entity.
type EntityState struct {
	ID        EntityID   `json:"id"`
	Handle    uint64     `json:"handle"` // process-local, opaque
	Kind      EntityKind `json:"kind"`
	Position  Vec3       `json:"position"`
	Health    float32    `json:"health"`
	HealthMax float32    `json:"healthMax"`
	DamageMax float32    `json:"damageMax,omitempty"` // melee scale, HealthMax when zero
	Immortal  bool       `json:"immortal"`
	AgentID   AgentID    `json:"agentId,omitempty"` // set for KindPlayer
}
