package reconcile

import (
	"errors"
	"fmt"

	"github.com/killindicator/extension/internal/attribution"
	"github.com/killindicator/extension/internal/damage"
	"github.com/killindicator/extension/pkg/api"
	"github.com/killindicator/extension/pkg/core"
	"github.com/killindicator/extension/pkg/wire"
)

func (o *Orchestrator) authorityDamage(ev core.DamageEvent) error {
	kill, res, err := o.Resolver.Resolve(ev)
	switch {
	case err == nil:
		o.credit(kill)
	case errors.Is(err, attribution.ErrNoSource), errors.Is(err, attribution.ErrBotSource):
		o.metrics.outcome("unattributed")
	}

	if !ev.ViaTurret {
		return nil
	}
	return o.forwardTurretHit(ev, res)
}

func (o *Orchestrator) credit(kill core.KillEvent) {
	o.metrics.outcome("credited")
	o.Listeners.EmitEnemyDead(api.EnemyDead{Entity: kill.Entity, Player: kill.Player, Item: kill.Item})
	if o.Recorder != nil {
		o.Recorder.RecordKill(kill)
	}
	o.Logger.Debug("Credited kill", "entity", kill.Entity, "player", kill.Player.Name, "channel", kill.Channel)
}

// forwardTurretHit tells the owner of a turret about a hit it fired. The owner
// never simulated the shot, so this is its only way to draw the hit.
func (o *Orchestrator) forwardTurretHit(ev core.DamageEvent, res damage.Result) error {
	shooter, err := o.Resolver.Source(ev)
	if err != nil {
		o.Logger.Debug("Turret hit has no player owner", "entity", ev.Target.ID, "error", err)
		return nil
	}
	if shooter.IsLocal {
		return nil
	}

	msg := core.HitIndicator{Target: ev.Target.ID}
	switch ev.Target.Kind {
	case core.KindEnemy:
		if ev.Target.Health <= 0 {
			return nil
		}
		msg.Limb = ev.Limb
		msg.Position = ev.HitPosition.Sub(ev.Target.Position)
		if ev.Target.Immortal {
			msg.HitArmor = true
		} else {
			msg.HitWeakspot = res.Weakspot
			msg.WillDie = res.Lethal(ev.Target.Health)
			msg.HitArmor = res.Armor
		}
	case core.KindPlayer:
		if ev.Target.AgentID == shooter.ID {
			return nil
		}
	}

	payload, err := wire.MarshalHitIndicator(msg)
	if err != nil {
		return fmt.Errorf("encoding hit indicator for %d: %w", ev.Target.ID, err)
	}
	if err := o.Transport.SendBytes(shooter.Node, payload); err != nil {
		return fmt.Errorf("sending hit indicator to %s: %w", shooter.Name, err)
	}
	o.metrics.outcome("forwarded")
	o.Logger.Debug("Sent hit indicator", "player", shooter.Name, "entity", ev.Target.ID, "willDie", msg.WillDie)
	return nil
}
