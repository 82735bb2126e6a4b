// Package reconcile decides when a kill confirmation is shown. On a client it
// matches authoritative deaths against locally predicted hits; on the
// authority it credits kills and forwards turret hits to their owners.
package reconcile

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/killindicator/extension/internal/attribution"
	"github.com/killindicator/extension/internal/cache"
	"github.com/killindicator/extension/internal/damage"
	"github.com/killindicator/extension/internal/shadow"
	"github.com/killindicator/extension/pkg/api"
	"github.com/killindicator/extension/pkg/core"
)

// Recoverable outcomes. None of them is fatal; they tell the caller why no
// confirmation was shown.
var (
	ErrNoPrediction    = errors.New("no local prediction")
	ErrStalePrediction = errors.New("prediction outside reconciliation window")
	ErrClockSkew       = errors.New("death precedes prediction")
	ErrSuppressed      = errors.New("confirmation already shown")
	ErrUnknownEntity   = errors.New("unknown entity")
	ErrUntracked       = errors.New("damage not tracked")
	ErrAborted         = errors.New("reconciliation aborted")
)

// Display draws confirmations on this node.
type Display interface {
	ShowConfirmation(entity core.EntityID, pos core.Vec3, item *core.Item, delay int64)
	ShowHitMarker(entity core.EntityID, m core.HitIndicator, pos core.Vec3)
	PopFriendlyTarget()
}

// Transport delivers an encoded packet to a single node.
type Transport interface {
	SendBytes(recipient core.NodeID, payload []byte) error
}

// World is the read-only engine state the orchestrator consults.
type World interface {
	Entity(id core.EntityID) (core.EntityState, bool)
	Agent(id core.AgentID) (core.Agent, bool)
	LocalAgent() (core.Agent, bool)
}

// Recorder receives every credited kill and shown confirmation.
type Recorder interface {
	RecordKill(core.KillEvent)
	RecordIndicator(core.IndicatorEvent)
}

// Config holds the timing knobs.
type Config struct {
	Role          core.Role
	Window        time.Duration
	SkewTolerance time.Duration
}

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Tracker   *shadow.Tracker
	Markers   *cache.Markers
	Resolver  *attribution.Resolver
	Modifier  damage.Modifier
	World     World
	Display   Display
	Transport Transport
	Listeners *api.Listeners
	Recorder  Recorder
	Logger    *slog.Logger
}

// Orchestrator is not safe for concurrent use. Damage, death and indicator
// events must arrive in the order the host produced them.
type Orchestrator struct {
	Deps
	role    core.Role
	window  int64
	skew    int64
	metrics *metrics
}

func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Tracker == nil || deps.Markers == nil || deps.World == nil || deps.Display == nil {
		return nil, errors.New("reconcile: tracker, markers, world and display are required")
	}
	if cfg.Role == core.RoleAuthority && (deps.Resolver == nil || deps.Transport == nil) {
		return nil, errors.New("reconcile: authority needs a resolver and a transport")
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("reconcile: window must be positive, got %s", cfg.Window)
	}
	if deps.Modifier == nil {
		deps.Modifier = damage.Standard{}
	}
	if deps.Listeners == nil {
		deps.Listeners = api.NewListeners(deps.Logger)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	m, err := newMetrics()
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		Deps:    deps,
		role:    cfg.Role,
		window:  cfg.Window.Milliseconds(),
		skew:    cfg.SkewTolerance.Milliseconds(),
		metrics: m,
	}, nil
}

// Role returns the session role this orchestrator runs as.
func (o *Orchestrator) Role() core.Role { return o.role }

// OnDamage folds one damage event into the node's state. The returned error
// describes why the event was not used; it is never fatal.
func (o *Orchestrator) OnDamage(ev core.DamageEvent) error {
	if o.role == core.RoleAuthority {
		return o.authorityDamage(ev)
	}
	return o.clientDamage(ev)
}

func (o *Orchestrator) clientDamage(ev core.DamageEvent) error {
	if ev.Target.Kind != core.KindEnemy || ev.Channel == core.ChannelExplosive {
		return ErrUntracked
	}
	if ev.Source == nil {
		return fmt.Errorf("%w: no source", ErrUntracked)
	}
	shooter, ok := o.World.Agent(*ev.Source)
	if !ok {
		return fmt.Errorf("%w: agent %d is not a player", ErrUntracked, *ev.Source)
	}
	if shooter.IsBot {
		return fmt.Errorf("%w: agent %d is a bot", ErrUntracked, shooter.ID)
	}

	id := ev.Target.ID
	local := ev.HitPosition.Sub(ev.Target.Position)
	o.Tracker.OnDamage(id, ev.Time, local, shooter.Wielded)

	res := o.Modifier.Apply(ev)
	health := o.Tracker.Predict(id, ev.Target.Health, res.Damage)
	o.Logger.Debug("Tracked hit", "entity", id, "damage", res.Damage, "predicted", health, "channel", ev.Channel)

	if health > 0 {
		return nil
	}
	if !o.Tracker.MarkIndicated(id) {
		return nil
	}
	if !o.claim(id, ev.Time) {
		o.metrics.outcome("predicted_suppressed")
		return nil
	}

	o.show(core.IndicatorEvent{
		Time:     ev.Time,
		Entity:   id,
		Item:     shooter.Wielded,
		Position: ev.HitPosition,
		Source:   core.SourcePredicted,
	})
	return nil
}

// OnEntityDeath reconciles the authoritative death of an entity. A nil error
// means a late confirmation was shown.
func (o *Orchestrator) OnEntityDeath(ev core.DeathEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			o.Logger.Warn("Reconciliation aborted", "entity", ev.Entity, "panic", fmt.Sprint(r))
			o.metrics.outcome("aborted")
			err = fmt.Errorf("%w: %v", ErrAborted, r)
		}
	}()

	if o.role == core.RoleAuthority {
		o.Resolver.Forget(ev.Entity)
		return nil
	}

	err = o.reconcile(ev)
	switch {
	case err == nil:
		o.metrics.outcome("reconciled")
	case errors.Is(err, ErrNoPrediction):
		o.metrics.outcome("no_prediction")
		o.Listeners.EmitEnemyDead(api.EnemyDead{Entity: ev.Entity})
	case errors.Is(err, ErrStalePrediction):
		o.metrics.outcome("stale")
		o.Logger.Debug("Client was no longer interested in this entity", "entity", ev.Entity, "error", err)
		o.Listeners.EmitEnemyDead(api.EnemyDead{Entity: ev.Entity})
	case errors.Is(err, ErrClockSkew):
		o.metrics.outcome("clock_skew")
		o.Logger.Debug("Discarded prediction from the future", "entity", ev.Entity, "error", err)
		o.Listeners.EmitEnemyDead(api.EnemyDead{Entity: ev.Entity})
	case errors.Is(err, ErrSuppressed):
		o.metrics.outcome("suppressed")
		o.Logger.Debug("Local confirmation already shown", "entity", ev.Entity)
	}
	return err
}

func (o *Orchestrator) reconcile(ev core.DeathEvent) error {
	rec, ok := o.Tracker.Take(ev.Entity)
	if !ok {
		return ErrNoPrediction
	}

	elapsed := ev.Time - rec.Time
	if elapsed < 0 {
		if -elapsed > o.skew {
			return fmt.Errorf("%w: tagged %dms after death", ErrClockSkew, -elapsed)
		}
		elapsed = 0
	}
	if elapsed >= o.window {
		return fmt.Errorf("%w: %dms >= %dms", ErrStalePrediction, elapsed, o.window)
	}

	if rec.Indicated || !o.Markers.TryClaim(ev.Entity, ev.Time) {
		return ErrSuppressed
	}

	local, hasLocal := o.World.LocalAgent()
	var player *core.Agent
	if hasLocal {
		player = &local
	}
	o.Listeners.EmitEnemyDead(api.EnemyDead{Entity: ev.Entity, Player: player, Item: rec.Item, Delay: elapsed})

	pos := ev.Position
	if pos == (core.Vec3{}) {
		// the host may omit the position; fall back to the last known one
		if e, ok := o.World.Entity(ev.Entity); ok {
			pos = e.Position
		}
	}

	o.show(core.IndicatorEvent{
		Time:     ev.Time,
		Entity:   ev.Entity,
		Item:     rec.Item,
		Position: pos.Add(rec.LocalHitPosition),
		Delay:    elapsed,
		Source:   core.SourceReconciled,
	})
	return nil
}

// OnIndicatorShown records that the engine drew its own confirmation for id,
// so a later authoritative death does not draw a second one. viaTurret
// credits the local player's class item instead of the wielded one. It
// reports whether this call claimed the entity.
func (o *Orchestrator) OnIndicatorShown(id core.EntityID, now int64, viaTurret bool) bool {
	o.Tracker.MarkIndicated(id)
	if !o.claim(id, now) {
		return false
	}

	var item *core.Item
	if local, ok := o.World.LocalAgent(); ok {
		item = local.Wielded
		if viaTurret && local.Loadout.Class != nil {
			item = local.Loadout.Class
		}
	}
	o.Listeners.EmitKillIndicator(api.KillIndicator{Entity: id, Item: item})
	if o.Recorder != nil {
		o.Recorder.RecordIndicator(core.IndicatorEvent{Time: now, Entity: id, Item: item, Source: core.SourceEngine})
	}
	return true
}

// Reset drops all per-session prediction state.
func (o *Orchestrator) Reset() {
	o.Tracker.ClearAll()
	o.Markers.Reset()
	if o.Resolver != nil {
		o.Resolver.Reset()
	}
	o.Logger.Debug("Reset trackers and markers")
}

// claim takes the marker for id unless one is already live. A live marker
// is left in place so the claimant that set it keeps suppressing.
func (o *Orchestrator) claim(id core.EntityID, now int64) bool {
	if o.Markers.Claimed(id, now) {
		return false
	}
	return o.Markers.TryClaim(id, now)
}

func (o *Orchestrator) show(ev core.IndicatorEvent) {
	o.Display.ShowConfirmation(ev.Entity, ev.Position, ev.Item, ev.Delay)
	o.Listeners.EmitKillIndicator(api.KillIndicator{Entity: ev.Entity, Item: ev.Item, Delay: ev.Delay})
	o.metrics.observeDelay(ev.Delay, ev.Source.String())
	if o.Recorder != nil {
		o.Recorder.RecordIndicator(ev)
	}
	o.Logger.Debug("Showed kill confirmation", "entity", ev.Entity, "source", ev.Source, "delay", ev.Delay)
}
