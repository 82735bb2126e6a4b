package attribution

import "github.com/killindicator/extension/pkg/core"

// Mines maps deployed ordnance to the agent that placed it, plus the owner of
// the detonation currently applying damage. Only one detonation resolves at a
// time, so a single register is enough.
type Mines struct {
	gear    map[uint32]struct{}
	owners  map[int32]core.AgentID
	current *core.AgentID
}

// NewMines tracks deployments whose gear id is in gearIDs.
func NewMines(gearIDs []uint32) *Mines {
	gear := make(map[uint32]struct{}, len(gearIDs))
	for _, id := range gearIDs {
		gear[id] = struct{}{}
	}
	return &Mines{gear: gear, owners: make(map[int32]core.AgentID)}
}

// Deploy records ownership. Deployables of untracked gear are ignored and
// reported as false.
func (m *Mines) Deploy(d core.MineDeploy) bool {
	if _, ok := m.gear[d.GearID]; !ok {
		return false
	}
	m.owners[d.Instance] = d.Owner
	return true
}

// Pickup forgets the owner of a mine that was picked back up.
func (m *Mines) Pickup(instance int32) bool {
	_, ok := m.owners[instance]
	delete(m.owners, instance)
	return ok
}

// BeginDetonation consumes the ownership entry of instance and makes its owner
// the current detonation owner. An unknown instance clears the register.
func (m *Mines) BeginDetonation(instance int32) (core.AgentID, bool) {
	owner, ok := m.owners[instance]
	delete(m.owners, instance)
	if !ok {
		m.current = nil
		return 0, false
	}
	m.current = &owner
	return owner, true
}

// EndDetonation clears the register. It must follow every BeginDetonation.
func (m *Mines) EndDetonation(instance int32) {
	m.current = nil
	delete(m.owners, instance)
}

// CurrentOwner returns the owner of the detonation in progress.
func (m *Mines) CurrentOwner() (core.AgentID, bool) {
	if m.current == nil {
		return 0, false
	}
	return *m.current, true
}

func (m *Mines) Reset() {
	m.owners = make(map[int32]core.AgentID)
	m.current = nil
}

// Len returns the number of live deployments.
func (m *Mines) Len() int {
	return len(m.owners)
}
