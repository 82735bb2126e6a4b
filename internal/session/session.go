// Package session ties every tracker to the lifetime of one joined session.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/killindicator/extension/internal/attribution"
	"github.com/killindicator/extension/internal/cache"
	"github.com/killindicator/extension/internal/damage"
	"github.com/killindicator/extension/internal/reconcile"
	"github.com/killindicator/extension/internal/shadow"
	"github.com/killindicator/extension/pkg/api"
	"github.com/killindicator/extension/pkg/core"
)

// ErrClosed is returned by every method once Close has run.
var ErrClosed = errors.New("session closed")

// Config is the per-session tuning taken from configuration.
type Config struct {
	Window         time.Duration
	SkewTolerance  time.Duration
	MarkerLifetime time.Duration
	MineGearIDs    []uint32
}

// Deps are the long-lived collaborators shared across sessions.
type Deps struct {
	World     *cache.World
	Display   reconcile.Display
	Transport reconcile.Transport
	Listeners *api.Listeners
	Recorder  reconcile.Recorder
	Modifier  damage.Modifier
	Logger    *slog.Logger
}

// Status is a point-in-time view of the session's state.
type Status struct {
	Role     string `json:"role"`
	Node     uint64 `json:"node"`
	Tracked  int    `json:"tracked"`
	Markers  int    `json:"markers"`
	Mines    int    `json:"mines"`
	Agents   int    `json:"agents"`
	Entities int    `json:"entities"`
	Uptime   string `json:"uptime"`
}

// Session owns the trackers of one node in one session. Every call is
// serialised, so events are applied in the order they arrive.
type Session struct {
	mu     sync.Mutex
	closed bool

	info     core.SessionInfo
	started  time.Time
	world    *cache.World
	tracker  *shadow.Tracker
	markers  *cache.Markers
	mines    *attribution.Mines
	resolver *attribution.Resolver
	orch     *reconcile.Orchestrator
	logger   *slog.Logger
}

// New builds a fresh session. The authority gets an attribution resolver and
// mine register; clients do not need them.
func New(info core.SessionInfo, cfg Config, deps Deps) (*Session, error) {
	if deps.World == nil {
		return nil, errors.New("session: world cache is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	modifier := deps.Modifier
	if modifier == nil {
		modifier = damage.Standard{}
	}

	s := &Session{
		info:    info,
		started: time.Now(),
		world:   deps.World,
		tracker: shadow.NewTracker(),
		markers: cache.NewMarkers(cfg.MarkerLifetime),
		mines:   attribution.NewMines(cfg.MineGearIDs),
		logger:  logger,
	}
	if info.Role == core.RoleAuthority {
		s.resolver = attribution.NewResolver(deps.World, s.mines, modifier, logger)
	}
	deps.World.SetLocalAgent(info.LocalAgent)

	orch, err := reconcile.New(reconcile.Config{
		Role:          info.Role,
		Window:        cfg.Window,
		SkewTolerance: cfg.SkewTolerance,
	}, reconcile.Deps{
		Tracker:   s.tracker,
		Markers:   s.markers,
		Resolver:  s.resolver,
		Modifier:  modifier,
		World:     deps.World,
		Display:   deps.Display,
		Transport: deps.Transport,
		Listeners: deps.Listeners,
		Recorder:  deps.Recorder,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}
	s.orch = orch

	logger.Info("Session started", "role", info.Role.String(), "node", info.LocalNode, "window", cfg.Window, "markerLifetime", cfg.MarkerLifetime)
	return s, nil
}

func (s *Session) Info() core.SessionInfo {
	return s.info
}

// OnDamage feeds one damage event.
func (s *Session) OnDamage(ev core.DamageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.orch.OnDamage(ev)
}

// OnEntityDeath feeds the authoritative death of an entity.
func (s *Session) OnEntityDeath(ev core.DeathEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.orch.OnEntityDeath(ev)
}

// OnIndicatorShown records a confirmation the engine drew by itself.
func (s *Session) OnIndicatorShown(id core.EntityID, now int64, viaTurret bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	return s.orch.OnIndicatorShown(id, now, viaTurret), nil
}

// OnInboundBytes offers a payload from the shared channel. A closed session
// never consumes anything.
func (s *Session) OnInboundBytes(sender core.NodeID, b []byte, now int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	return s.orch.OnInboundBytes(sender, b, now)
}

// DeployMine records a placed explosive.
func (s *Session) DeployMine(d core.MineDeploy) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	return s.mines.Deploy(d), nil
}

// PickupMine forgets a picked up explosive.
func (s *Session) PickupMine(instance int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.mines.Pickup(instance)
	return nil
}

// BeginDetonation opens the detonation window of instance. Damage events
// until EndDetonation are credited to its owner.
func (s *Session) BeginDetonation(instance int32) (core.AgentID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, false, ErrClosed
	}
	owner, ok := s.mines.BeginDetonation(instance)
	return owner, ok, nil
}

// EndDetonation closes the detonation window of instance.
func (s *Session) EndDetonation(instance int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.mines.EndDetonation(instance)
	return nil
}

// Reset clears all tracked state, as on a new round in the same session.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.reset()
	return nil
}

// Status reports counters for monitoring.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	agents, entities := s.world.Counts()
	return Status{
		Role:     s.info.Role.String(),
		Node:     uint64(s.info.LocalNode),
		Tracked:  s.tracker.Len(),
		Markers:  s.markers.Len(),
		Mines:    s.mines.Len(),
		Agents:   agents,
		Entities: entities,
		Uptime:   time.Since(s.started).Truncate(time.Second).String(),
	}
}

// Close ends the session. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.reset()
	s.closed = true
	s.logger.Info("Session closed")
}

func (s *Session) reset() {
	s.orch.Reset()
	s.mines.Reset()
}
