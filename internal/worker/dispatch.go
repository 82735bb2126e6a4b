package worker

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/killindicator/extension/internal/dispatcher"
	"github.com/killindicator/extension/internal/influx"
	"github.com/killindicator/extension/internal/outbox"
	"github.com/killindicator/extension/internal/reconcile"
	"github.com/killindicator/extension/internal/util"
)

// RegisterHandlers registers all host commands with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Session lifecycle - sync
	d.Register(":SESSION:START:", m.handleSessionStart, dispatcher.Logged())
	d.Register(":SESSION:RESET:", m.handleSessionReset, dispatcher.Logged())
	d.Register(":SAVE:", m.handleSave, dispatcher.Logged())

	// World snapshots - sync (must be cached before damage arrives)
	d.Register(":AGENT:", m.handleAgent)
	d.Register(":AGENT:REMOVE:", m.handleAgentRemove)
	d.Register(":ENTITY:", m.handleEntity)
	d.Register(":ENTITY:REMOVE:", m.handleEntityRemove)

	// Damage pipeline - sync, a death must see every damage sent before it
	d.Register(":DAMAGE:", m.handleDamage, dispatcher.Logged())
	d.Register(":DEATH:", m.handleDeath, dispatcher.Logged())
	d.Register(":INDICATOR:SHOWN:", m.handleIndicatorShown, dispatcher.Logged())
	d.Register(":NET:RECV:", m.handleNetRecv, dispatcher.Logged())

	// Mines - sync, a detonation brackets the damage it applies
	d.Register(":MINE:DEPLOY:", m.handleMineDeploy, dispatcher.Logged())
	d.Register(":MINE:PICKUP:", m.handleMinePickup, dispatcher.Logged())
	d.Register(":MINE:DETONATE:", m.handleMineDetonate, dispatcher.Logged())
	d.Register(":MINE:DETONATED:", m.handleMineDetonated, dispatcher.Logged())

	// Outward actions, drained every frame
	d.Register(":POLL:", m.handlePoll)

	// Free-form metrics - buffered
	if m.deps.Metrics != nil {
		d.Register(":METRIC:", m.handleMetric, dispatcher.Buffered(1000), dispatcher.Logged())
	}
}

func (m *Manager) handleSessionStart(e dispatcher.Event) (any, error) {
	info, err := m.deps.Parser.ParseSessionStart(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	if err := m.StartSession(info); err != nil {
		return nil, err
	}
	return "ok", nil
}

func (m *Manager) handleSessionReset(e dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	if err := s.Reset(); err != nil {
		return nil, err
	}
	m.deps.Outbox.Clear()
	return "ok", nil
}

func (m *Manager) handleSave(e dispatcher.Event) (any, error) {
	m.deps.Logger.Info("Received :SAVE: command, ending session recording")
	if err := m.EndSession(); err != nil {
		return nil, err
	}
	return "ok", nil
}

func (m *Manager) handleAgent(e dispatcher.Event) (any, error) {
	a, err := m.deps.Parser.ParseAgent(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to update agent: %w", err)
	}
	m.deps.World.PutAgent(a)
	return nil, nil
}

func (m *Manager) handleAgentRemove(e dispatcher.Event) (any, error) {
	id, err := m.deps.Parser.ParseAgentID(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to remove agent: %w", err)
	}
	m.deps.World.RemoveAgent(id)
	return nil, nil
}

func (m *Manager) handleEntity(e dispatcher.Event) (any, error) {
	ent, err := m.deps.Parser.ParseEntity(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to update entity: %w", err)
	}
	m.deps.World.PutEntity(ent)
	return nil, nil
}

func (m *Manager) handleEntityRemove(e dispatcher.Event) (any, error) {
	id, err := m.deps.Parser.ParseEntityID(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to remove entity: %w", err)
	}
	m.deps.World.RemoveEntity(id)
	return nil, nil
}

func (m *Manager) handleDamage(e dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	ev, err := m.deps.Parser.ParseDamage(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to log damage: %w", err)
	}
	return outcome(s.OnDamage(ev))
}

func (m *Manager) handleDeath(e dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	ev, err := m.deps.Parser.ParseDeath(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to log death: %w", err)
	}
	return outcome(s.OnEntityDeath(ev))
}

// routing outcomes of the damage pipeline; reported to the host, not failures
var outcomes = []error{
	reconcile.ErrNoPrediction,
	reconcile.ErrStalePrediction,
	reconcile.ErrClockSkew,
	reconcile.ErrSuppressed,
	reconcile.ErrUnknownEntity,
	reconcile.ErrUntracked,
}

func outcome(err error) (any, error) {
	if err == nil {
		return nil, nil
	}
	for _, o := range outcomes {
		if errors.Is(err, o) {
			return o.Error(), nil
		}
	}
	return nil, err
}

func (m *Manager) handleIndicatorShown(e dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	ev, err := m.deps.Parser.ParseIndicatorShown(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to log indicator: %w", err)
	}
	return s.OnIndicatorShown(ev.Entity, ev.Time, ev.ViaTurret)
}

func (m *Manager) handleNetRecv(e dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		// not ours to judge, let the transport handle it
		return false, nil
	}
	msg, err := m.deps.Parser.ParseNetRecv(e.Args)
	if err != nil {
		return false, fmt.Errorf("failed to read payload: %w", err)
	}
	return s.OnInboundBytes(msg.Sender, msg.Payload, msg.Time), nil
}

func (m *Manager) handleMineDeploy(e dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	d, err := m.deps.Parser.ParseMineDeploy(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to log mine deploy: %w", err)
	}
	return s.DeployMine(d)
}

func (m *Manager) handleMinePickup(e dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	ev, err := m.deps.Parser.ParseMineEvent(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to log mine pickup: %w", err)
	}
	return nil, s.PickupMine(ev.Instance)
}

func (m *Manager) handleMineDetonate(e dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	ev, err := m.deps.Parser.ParseMineEvent(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to log mine detonation: %w", err)
	}
	owner, ok, err := s.BeginDetonation(ev.Instance)
	if err != nil || !ok {
		return nil, err
	}
	return owner, nil
}

func (m *Manager) handleMineDetonated(e dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	ev, err := m.deps.Parser.ParseMineEvent(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to log mine detonation: %w", err)
	}
	return nil, s.EndDetonation(ev.Instance)
}

// handlePoll drains queued actions. An optional first argument caps how many
// are returned in one call.
func (m *Manager) handlePoll(e dispatcher.Event) (any, error) {
	limit := 0
	if len(e.Args) > 0 {
		if arg := util.CleanArg(e.Args[0]); arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil {
				return nil, fmt.Errorf("invalid poll limit %q: %w", arg, err)
			}
			limit = n
		}
	}
	actions := m.deps.Outbox.Drain(limit)
	if actions == nil {
		actions = []outbox.Action{}
	}
	return actions, nil
}

func (m *Manager) handleMetric(e dispatcher.Event) (any, error) {
	data, err := m.deps.Parser.ParseMetric(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metric: %w", err)
	}
	point, err := influx.ProcessMetricData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metric: %w", err)
	}
	return nil, m.deps.Metrics.WritePoint(point)
}
