package reconcile

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/killindicator/extension/internal/attribution"
	"github.com/killindicator/extension/internal/cache"
	"github.com/killindicator/extension/internal/damage"
	"github.com/killindicator/extension/internal/shadow"
	"github.com/killindicator/extension/pkg/api"
	"github.com/killindicator/extension/pkg/core"
)

type shown struct {
	Entity core.EntityID
	Pos    core.Vec3
	Item   *core.Item
	Delay  int64
}

type hitMarker struct {
	Entity core.EntityID
	Msg    core.HitIndicator
	Pos    core.Vec3
}

type recordingDisplay struct {
	confirmations []shown
	markers       []hitMarker
	friendly      int
	panicOnShow   bool
}

func (d *recordingDisplay) ShowConfirmation(entity core.EntityID, pos core.Vec3, item *core.Item, delay int64) {
	if d.panicOnShow {
		panic("crosshair layer missing")
	}
	d.confirmations = append(d.confirmations, shown{Entity: entity, Pos: pos, Item: item, Delay: delay})
}

func (d *recordingDisplay) ShowHitMarker(entity core.EntityID, m core.HitIndicator, pos core.Vec3) {
	d.markers = append(d.markers, hitMarker{Entity: entity, Msg: m, Pos: pos})
}

func (d *recordingDisplay) PopFriendlyTarget() { d.friendly++ }

type sent struct {
	To      core.NodeID
	Payload []byte
}

type recordingTransport struct {
	sent []sent
	err  error
}

func (t *recordingTransport) SendBytes(to core.NodeID, payload []byte) error {
	if t.err != nil {
		return t.err
	}
	t.sent = append(t.sent, sent{To: to, Payload: payload})
	return nil
}

type recordingRecorder struct {
	kills      []core.KillEvent
	indicators []core.IndicatorEvent
}

func (r *recordingRecorder) RecordKill(k core.KillEvent)           { r.kills = append(r.kills, k) }
func (r *recordingRecorder) RecordIndicator(i core.IndicatorEvent) { r.indicators = append(r.indicators, i) }

var (
	itemA  = &core.Item{ID: 100, Name: "item A"}
	sentry = &core.Item{ID: 200, Name: "sentry"}
)

type fixture struct {
	o         *Orchestrator
	world     *cache.World
	display   *recordingDisplay
	transport *recordingTransport
	recorder  *recordingRecorder
	listeners *api.Listeners
	tracker   *shadow.Tracker
	markers   *cache.Markers
	mines     *attribution.Mines
}

func newFixture(t *testing.T, role core.Role, window time.Duration) *fixture {
	t.Helper()

	f := &fixture{
		world:     cache.NewWorld(),
		display:   &recordingDisplay{},
		transport: &recordingTransport{},
		recorder:  &recordingRecorder{},
		listeners: api.NewListeners(nil),
		tracker:   shadow.NewTracker(),
		markers:   cache.NewMarkers(3 * time.Second),
		mines:     attribution.NewMines([]uint32{125}),
	}

	// local player on node 1, remote player on node 2
	f.world.PutAgent(core.Agent{ID: 1, Node: 1, Name: "local", IsLocal: true, Wielded: itemA, Loadout: core.Loadout{Class: sentry}})
	f.world.PutAgent(core.Agent{ID: 2, Node: 2, Name: "remote", Wielded: itemA, Loadout: core.Loadout{Class: sentry}})
	f.world.PutAgent(core.Agent{ID: 3, Node: 3, Name: "bot", IsBot: true, Wielded: itemA})
	f.world.SetLocalAgent(1)

	deps := Deps{
		Tracker:   f.tracker,
		Markers:   f.markers,
		Modifier:  damage.Standard{},
		World:     f.world,
		Display:   f.display,
		Transport: f.transport,
		Listeners: f.listeners,
		Recorder:  f.recorder,
	}
	if role == core.RoleAuthority {
		deps.Resolver = attribution.NewResolver(f.world, f.mines, damage.Standard{}, nil)
	}

	o, err := New(Config{Role: role, Window: window}, deps)
	require.NoError(t, err)
	f.o = o
	return f
}

func agentPtr(id core.AgentID) *core.AgentID { return &id }

func enemy(id core.EntityID, pos core.Vec3, health float32) core.EntityState {
	return core.EntityState{ID: id, Handle: uint64(id) + 1000, Kind: core.KindEnemy, Position: pos, Health: health, HealthMax: 100}
}

// hit is a non-lethal projectile hit from the local player.
func hit(target core.EntityState, at int64, hitPos core.Vec3) core.DamageEvent {
	return core.DamageEvent{
		Time:        at,
		Target:      target,
		Source:      agentPtr(1),
		Channel:     core.ChannelProjectile,
		Damage:      10,
		HitPosition: hitPos,
	}
}

var errSend = errors.New("socket closed")
