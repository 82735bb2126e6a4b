// pkg/core/events.go
package core

import "fmt"

// DamageChannel is the damage pipeline a hit travelled through.
type DamageChannel uint8

const (
	ChannelProjectile DamageChannel = iota
	ChannelMelee
	ChannelExplosive
)

func (c DamageChannel) String() string {
	switch c {
	case ChannelProjectile:
		return "projectile"
	case ChannelMelee:
		return "melee"
	case ChannelExplosive:
		return "explosive"
	default:
		return fmt.Sprintf("channel(%d)", uint8(c))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c DamageChannel) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *DamageChannel) UnmarshalText(b []byte) error {
	switch string(b) {
	case "projectile", "bullet":
		*c = ChannelProjectile
	case "melee":
		*c = ChannelMelee
	case "explosive", "explosion":
		*c = ChannelExplosive
	default:
		return fmt.Errorf("unknown damage channel %q", string(b))
	}
	return nil
}

// DamageEvent is one damage application observed by the host's damage pipeline.
// Target carries the entity state as it was before the damage was applied.
type DamageEvent struct {
	Time        int64         `json:"time"` // monotonic ms
	Target      EntityState   `json:"target"`
	Source      *AgentID      `json:"source,omitempty"`
	Channel     DamageChannel `json:"channel"`
	Damage      float32       `json:"damage"`
	Limb        uint8         `json:"limb"`
	HitPosition Vec3          `json:"hitPosition"` // world space
	ViaTurret   bool          `json:"viaTurret"`   // fired by a deployed sentry on behalf of Source

	// Modifier inputs; zero means neutral.
	PrecisionMulti float32 `json:"precisionMulti,omitempty"`
	WeakspotMulti  float32 `json:"weakspotMulti,omitempty"`
	ArmorMulti     float32 `json:"armorMulti,omitempty"`
	Resistance     float32 `json:"resistance,omitempty"`
}

// DeathEvent is the authoritative death transition of an entity.
type DeathEvent struct {
	Time     int64    `json:"time"`
	Entity   EntityID `json:"entity"`
	Position Vec3     `json:"position"` // entity position at the moment of death
}

// KillEvent is an attributed kill resolved on the authority.
type KillEvent struct {
	Time    int64
	Entity  EntityID
	Player  *Agent
	Item    *Item
	Channel DamageChannel
	Delay   int64 // ms from tag to confirmation, 0 on the authority
}

// IndicatorSource tells where a shown confirmation came from.
type IndicatorSource uint8

const (
	SourcePredicted  IndicatorSource = iota // local predicted health hit zero
	SourceReconciled                        // late confirmation on authoritative death
	SourceRemote                            // hit indicator message from the authority
	SourceEngine                            // engine drew its own indicator
)

func (s IndicatorSource) String() string {
	switch s {
	case SourcePredicted:
		return "predicted"
	case SourceReconciled:
		return "reconciled"
	case SourceRemote:
		return "remote"
	case SourceEngine:
		return "engine"
	default:
		return fmt.Sprintf("source(%d)", uint8(s))
	}
}

// IndicatorEvent records a kill confirmation that was shown on this node.
type IndicatorEvent struct {
	Time     int64
	Entity   EntityID
	Item     *Item
	Position Vec3
	Delay    int64
	Source   IndicatorSource
}

// HitIndicator carries the semantic fields of a remote hit confirmation.
type HitIndicator struct {
	Target      EntityID
	Limb        uint8
	HitWeakspot bool
	WillDie     bool
	Position    Vec3 // entity-local offset
	HitArmor    bool
}
