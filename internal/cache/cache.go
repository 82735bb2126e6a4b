// Package cache holds the node-local view of the world reported by the host,
// plus the kill marker registry.
package cache

import (
	"sync"

	"github.com/killindicator/extension/pkg/core"
)

// World caches agents and entity snapshots as the host reports them. Lookups
// happen on every damage event, so they never leave memory.
type World struct {
	m        sync.RWMutex
	agents   map[core.AgentID]core.Agent
	entities map[core.EntityID]core.EntityState
	local    *core.AgentID
}

func NewWorld() *World {
	return &World{
		agents:   make(map[core.AgentID]core.Agent),
		entities: make(map[core.EntityID]core.EntityState),
	}
}

// Reset forgets everything, including the local agent.
func (w *World) Reset() {
	w.m.Lock()
	defer w.m.Unlock()
	w.agents = make(map[core.AgentID]core.Agent)
	w.entities = make(map[core.EntityID]core.EntityState)
	w.local = nil
}

func (w *World) PutAgent(a core.Agent) {
	w.m.Lock()
	defer w.m.Unlock()
	w.agents[a.ID] = a
}

func (w *World) Agent(id core.AgentID) (core.Agent, bool) {
	w.m.RLock()
	defer w.m.RUnlock()
	a, ok := w.agents[id]
	return a, ok
}

func (w *World) RemoveAgent(id core.AgentID) {
	w.m.Lock()
	defer w.m.Unlock()
	delete(w.agents, id)
}

// SetLocalAgent marks which agent the local player controls.
func (w *World) SetLocalAgent(id core.AgentID) {
	w.m.Lock()
	defer w.m.Unlock()
	w.local = &id
}

// LocalAgent returns the agent controlled on this node, if known.
func (w *World) LocalAgent() (core.Agent, bool) {
	w.m.RLock()
	defer w.m.RUnlock()
	if w.local == nil {
		return core.Agent{}, false
	}
	a, ok := w.agents[*w.local]
	return a, ok
}

func (w *World) PutEntity(e core.EntityState) {
	w.m.Lock()
	defer w.m.Unlock()
	w.entities[e.ID] = e
}

func (w *World) Entity(id core.EntityID) (core.EntityState, bool) {
	w.m.RLock()
	defer w.m.RUnlock()
	e, ok := w.entities[id]
	return e, ok
}

func (w *World) RemoveEntity(id core.EntityID) {
	w.m.Lock()
	defer w.m.Unlock()
	delete(w.entities, id)
}

// Handle resolves a stable network id to the process-local handle the host
// uses for the same entity. Handles never leave this node.
func (w *World) Handle(id core.EntityID) (uint64, bool) {
	e, ok := w.Entity(id)
	if !ok || e.Handle == 0 {
		return 0, false
	}
	return e.Handle, true
}

// Counts returns the number of cached agents and entities.
func (w *World) Counts() (agents, entities int) {
	w.m.RLock()
	defer w.m.RUnlock()
	return len(w.agents), len(w.entities)
}
