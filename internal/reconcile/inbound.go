package reconcile

import (
	"errors"

	"github.com/killindicator/extension/pkg/core"
	"github.com/killindicator/extension/pkg/wire"
)

// OnInboundBytes inspects a payload from the shared channel. It returns false
// when the payload belongs to someone else and must go to the transport's
// default handling. Anything carrying our full header is consumed.
func (o *Orchestrator) OnInboundBytes(sender core.NodeID, b []byte, now int64) bool {
	msg, err := wire.UnmarshalHitIndicator(b)
	if err != nil {
		if wire.IsForeign(err) {
			return false
		}
		o.metrics.outcome("malformed")
		o.Logger.Debug("Dropped hit indicator", "sender", sender, "error", err)
		return true
	}

	target, ok := o.World.Entity(msg.Target)
	if !ok {
		o.metrics.outcome("unknown_entity")
		o.Logger.Debug("Received hit indicator but could not resolve the target", "entity", msg.Target, "error", ErrUnknownEntity)
		return true
	}

	if target.Kind == core.KindPlayer {
		o.Display.PopFriendlyTarget()
		return true
	}

	pos := target.Position.Add(msg.Position)
	o.Display.ShowHitMarker(msg.Target, msg, pos)
	if !msg.WillDie {
		return true
	}

	o.Tracker.MarkIndicated(msg.Target)
	if !o.claim(msg.Target, now) {
		o.metrics.outcome("remote_suppressed")
		return true
	}
	o.show(core.IndicatorEvent{
		Time:     now,
		Entity:   msg.Target,
		Item:     o.turretItem(),
		Position: pos,
		Source:   core.SourceRemote,
	})
	return true
}

// turretItem is the item remote kills are shown with: the local player's class
// slot, since only turrets produce these messages.
func (o *Orchestrator) turretItem() *core.Item {
	a, ok := o.World.LocalAgent()
	if !ok {
		return nil
	}
	if a.Loadout.Class != nil {
		return a.Loadout.Class
	}
	return a.Wielded
}

// IsHandled reports whether err from this package is a routine outcome rather
// than a failure worth surfacing.
func IsHandled(err error) bool {
	for _, target := range []error{
		ErrNoPrediction, ErrStalePrediction, ErrClockSkew, ErrSuppressed, ErrUntracked,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
