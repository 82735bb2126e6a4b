package damage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/killindicator/extension/pkg/core"
)

func TestQuantise(t *testing.T) {
	tests := []struct {
		name    string
		damage  float32
		max     float32
		want    float32
		epsilon float64
	}{
		{name: "exact fraction", damage: 50, max: 100, want: 50, epsilon: 0.01},
		{name: "clamped above", damage: 250, max: 100, want: 100},
		{name: "negative", damage: -3, max: 100, want: 0},
		{name: "no max passes through", damage: 12.345, max: 0, want: 12.345},
		{name: "small hit keeps resolution", damage: 0.37, max: 1000, want: 0.37, epsilon: 1000.0 / 65535},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Quantise(tt.damage, tt.max), tt.epsilon+1e-6)
		})
	}
}

func TestRoundMelee(t *testing.T) {
	assert.InDelta(t, 12.35, RoundMelee(12.3456), 1e-5)
	assert.InDelta(t, 3, RoundMelee(3.001), 1e-5)
}

func TestStandard_Apply(t *testing.T) {
	target := core.EntityState{Health: 100, HealthMax: 100}

	tests := []struct {
		name     string
		ev       core.DamageEvent
		damage   float32
		weakspot bool
		armor    bool
	}{
		{
			name:   "neutral",
			ev:     core.DamageEvent{Target: target, Damage: 20},
			damage: 20,
		},
		{
			name:     "weakspot with precision",
			ev:       core.DamageEvent{Target: target, Damage: 20, WeakspotMulti: 2, PrecisionMulti: 1.5},
			damage:   60,
			weakspot: true,
		},
		{
			name:   "weakspot multiplier of one is ignored",
			ev:     core.DamageEvent{Target: target, Damage: 20, WeakspotMulti: 1, PrecisionMulti: 3},
			damage: 20,
		},
		{
			name:   "armor",
			ev:     core.DamageEvent{Target: target, Damage: 20, ArmorMulti: 0.5},
			damage: 10,
			armor:  true,
		},
		{
			name:   "resistance",
			ev:     core.DamageEvent{Target: target, Damage: 20, Resistance: 0.25},
			damage: 5,
		},
		{
			name:     "weakspot survives resistance",
			ev:       core.DamageEvent{Target: target, Damage: 10, WeakspotMulti: 2, Resistance: 0.4},
			damage:   8,
			weakspot: true,
		},
		{
			name:     "armor on a weakspot",
			ev:       core.DamageEvent{Target: target, Damage: 10, WeakspotMulti: 2, ArmorMulti: 0.25},
			damage:   5,
			weakspot: true,
			armor:    true,
		},
		{
			name:   "melee rounds",
			ev:     core.DamageEvent{Target: target, Damage: 7.004, Channel: core.ChannelMelee},
			damage: 7,
		},
		{
			name:   "melee quantises against damage max",
			ev:     core.DamageEvent{Target: core.EntityState{Health: 100, HealthMax: 100, DamageMax: 1000}, Damage: 250, Channel: core.ChannelMelee},
			damage: 250,
		},
		{
			name:   "melee without damage max uses health max",
			ev:     core.DamageEvent{Target: target, Damage: 250, Channel: core.ChannelMelee},
			damage: 100,
		},
		{
			name:   "projectile ignores damage max",
			ev:     core.DamageEvent{Target: core.EntityState{Health: 100, HealthMax: 100, DamageMax: 1000}, Damage: 250},
			damage: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Standard{}.Apply(tt.ev)
			assert.InDelta(t, tt.damage, got.Damage, 0.01)
			assert.Equal(t, tt.weakspot, got.Weakspot)
			assert.Equal(t, tt.armor, got.Armor)
		})
	}
}

func TestResult_Lethal(t *testing.T) {
	assert.True(t, Result{Damage: 10}.Lethal(10))
	assert.True(t, Result{Damage: 11}.Lethal(10))
	assert.False(t, Result{Damage: 9.5}.Lethal(10))
}

func TestModifierFunc(t *testing.T) {
	var m Modifier = ModifierFunc(func(ev core.DamageEvent) Result {
		return Result{Damage: ev.Damage * 2}
	})
	assert.Equal(t, float32(8), m.Apply(core.DamageEvent{Damage: 4}).Damage)
}
