// Package damage turns a raw damage event into the health a hit actually
// removes. The host owns the real formula; this is the seam the trackers
// predict through.
package damage

import (
	"math"

	"github.com/killindicator/extension/pkg/core"
)

// Result is the outcome of one hit after modifiers.
type Result struct {
	Damage   float32 // health removed
	Weakspot bool    // weak point multiplier raised the damage
	Armor    bool    // armor absorbed part of the hit
}

// Lethal reports whether r kills an entity with the given health.
func (r Result) Lethal(health float32) bool {
	return health-r.Damage <= 0
}

// Modifier computes post-modifier damage.
type Modifier interface {
	Apply(ev core.DamageEvent) Result
}

// ModifierFunc adapts a plain function to Modifier.
type ModifierFunc func(ev core.DamageEvent) Result

func (f ModifierFunc) Apply(ev core.DamageEvent) Result { return f(ev) }

// meleeScale is the resolution melee damage is rounded to.
const meleeScale = 100

// Standard mirrors the host's pipeline: quantise to the network damage
// resolution, round melee, then apply weakspot, armor and resistance
// multipliers. Zero multipliers are neutral. Melee travels as a fraction of
// the target's DamageMax, everything else as a fraction of HealthMax.
type Standard struct{}

func (Standard) Apply(ev core.DamageEvent) Result {
	var raw float32
	if ev.Channel == core.ChannelMelee {
		max := ev.Target.DamageMax
		if max <= 0 {
			max = ev.Target.HealthMax
		}
		raw = RoundMelee(Quantise(ev.Damage, max))
	} else {
		raw = Quantise(ev.Damage, ev.Target.HealthMax)
	}

	var res Result
	dmg := raw
	if w := neutral(ev.WeakspotMulti); w > 1 {
		dmg *= w * neutral(ev.PrecisionMulti)
		res.Weakspot = dmg > raw
	}
	armor := neutral(ev.ArmorMulti)
	dmg *= armor * neutral(ev.Resistance)

	res.Damage = dmg
	res.Armor = armor < 1
	return res
}

// Quantise snaps damage to the 16-bit unsigned fraction of max used on the
// wire, clamped to [0, max].
func Quantise(damage, max float32) float32 {
	if max <= 0 {
		return damage
	}
	f := float64(damage) / float64(max)
	switch {
	case f <= 0:
		return 0
	case f >= 1:
		return max
	}
	q := math.Round(f*math.MaxUint16) / math.MaxUint16
	return float32(q * float64(max))
}

// RoundMelee rounds melee damage to the engine's melee resolution.
func RoundMelee(d float32) float32 {
	return float32(math.Round(float64(d)*meleeScale) / meleeScale)
}

func neutral(v float32) float32 {
	if v == 0 {
		return 1
	}
	return v
}
