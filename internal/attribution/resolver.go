// Package attribution decides, on the authority, which player and item a kill
// is credited to.
package attribution

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/killindicator/extension/internal/damage"
	"github.com/killindicator/extension/pkg/core"
)

var (
	ErrNoSource        = errors.New("no player source")
	ErrBotSource       = errors.New("source is a bot")
	ErrNotLethal       = errors.New("hit is not lethal")
	ErrNotEnemy        = errors.New("target is not an enemy")
	ErrAlreadyCredited = errors.New("kill already credited")
)

// Agents looks up player agents.
type Agents interface {
	Agent(id core.AgentID) (core.Agent, bool)
}

// Resolver credits at most one kill per entity life.
type Resolver struct {
	agents   Agents
	mines    *Mines
	modifier damage.Modifier
	credited map[core.EntityID]struct{}
	logger   *slog.Logger
}

func NewResolver(agents Agents, mines *Mines, modifier damage.Modifier, logger *slog.Logger) *Resolver {
	if modifier == nil {
		modifier = damage.Standard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		agents:   agents,
		mines:    mines,
		modifier: modifier,
		credited: make(map[core.EntityID]struct{}),
		logger:   logger,
	}
}

// Resolve applies modifiers to ev and, when the hit kills an enemy, returns
// the credited kill. Every non-nil error is a recoverable outcome.
func (r *Resolver) Resolve(ev core.DamageEvent) (core.KillEvent, damage.Result, error) {
	res := r.modifier.Apply(ev)

	if ev.Target.Kind != core.KindEnemy {
		return core.KillEvent{}, res, ErrNotEnemy
	}
	if ev.Target.Immortal || ev.Target.Health <= 0 || !res.Lethal(ev.Target.Health) {
		return core.KillEvent{}, res, ErrNotLethal
	}
	if _, ok := r.credited[ev.Target.ID]; ok {
		return core.KillEvent{}, res, ErrAlreadyCredited
	}

	var (
		player core.Agent
		item   *core.Item
		err    error
	)
	if ev.Channel == core.ChannelExplosive {
		owner, ok := r.mines.CurrentOwner()
		if !ok {
			err = fmt.Errorf("explosive damage to %d: %w", ev.Target.ID, ErrNoSource)
		} else if player, err = r.player(owner); err == nil {
			item = explosiveItem(player)
		}
	} else {
		player, err = r.Source(ev)
		if err == nil {
			item = player.Wielded
			if ev.ViaTurret {
				item = player.Loadout.Class
			}
		}
	}
	if err != nil {
		r.logger.Warn("Kill not attributed", "entity", ev.Target.ID, "channel", ev.Channel, "error", err)
		return core.KillEvent{}, res, err
	}

	r.credited[ev.Target.ID] = struct{}{}
	return core.KillEvent{
		Time:    ev.Time,
		Entity:  ev.Target.ID,
		Player:  &player,
		Item:    item,
		Channel: ev.Channel,
	}, res, nil
}

// Source resolves the non-bot player agent behind a direct hit.
func (r *Resolver) Source(ev core.DamageEvent) (core.Agent, error) {
	if ev.Source == nil {
		return core.Agent{}, ErrNoSource
	}
	return r.player(*ev.Source)
}

// Modifier returns the damage modifier the resolver predicts through.
func (r *Resolver) Modifier() damage.Modifier {
	return r.modifier
}

// Forget ends the current life of id so a recycled id can be credited again.
func (r *Resolver) Forget(id core.EntityID) {
	delete(r.credited, id)
}

func (r *Resolver) Reset() {
	r.credited = make(map[core.EntityID]struct{})
}

func (r *Resolver) player(id core.AgentID) (core.Agent, error) {
	a, ok := r.agents.Agent(id)
	if !ok {
		return core.Agent{}, fmt.Errorf("agent %d: %w", id, ErrNoSource)
	}
	if a.IsBot {
		return core.Agent{}, fmt.Errorf("agent %d: %w", id, ErrBotSource)
	}
	return a, nil
}

// explosiveItem picks the item a mine kill is shown with. The deployer sits in
// the class slot; without one the wielded item's name decides between the
// standard and special slots.
func explosiveItem(a core.Agent) *core.Item {
	lo := a.Loadout
	if lo.Class != nil {
		return lo.Class
	}
	if a.Wielded != nil && lo.Standard != nil && a.Wielded.Name == lo.Standard.Name {
		return lo.Standard
	}
	if lo.Special != nil {
		return lo.Special
	}
	return lo.Standard
}
