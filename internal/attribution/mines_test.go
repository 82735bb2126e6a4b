package attribution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/killindicator/extension/pkg/core"
)

func TestMines_Deploy(t *testing.T) {
	m := NewMines([]uint32{125})

	assert.True(t, m.Deploy(core.MineDeploy{Instance: 1, Owner: 4, GearID: 125}))
	assert.False(t, m.Deploy(core.MineDeploy{Instance: 2, Owner: 4, GearID: 126}), "untracked gear")
	assert.Equal(t, 1, m.Len())
}

func TestMines_Pickup(t *testing.T) {
	m := NewMines([]uint32{125})
	m.Deploy(core.MineDeploy{Instance: 1, Owner: 4, GearID: 125})

	assert.True(t, m.Pickup(1))
	assert.False(t, m.Pickup(1))
	_, ok := m.BeginDetonation(1)
	assert.False(t, ok, "picked up mines have no owner")
}

func TestMines_DetonationLifecycle(t *testing.T) {
	m := NewMines([]uint32{125})
	m.Deploy(core.MineDeploy{Instance: 1, Owner: 4, GearID: 125})
	m.Deploy(core.MineDeploy{Instance: 2, Owner: 5, GearID: 125})

	owner, ok := m.BeginDetonation(2)
	require.True(t, ok)
	assert.Equal(t, core.AgentID(5), owner)

	cur, ok := m.CurrentOwner()
	require.True(t, ok)
	assert.Equal(t, core.AgentID(5), cur)
	assert.Equal(t, 1, m.Len(), "detonation consumes the entry")

	m.EndDetonation(2)
	_, ok = m.CurrentOwner()
	assert.False(t, ok)

	owner, ok = m.BeginDetonation(1)
	require.True(t, ok)
	assert.Equal(t, core.AgentID(4), owner)
}

func TestMines_UnknownDetonationClearsRegister(t *testing.T) {
	m := NewMines([]uint32{125})
	m.Deploy(core.MineDeploy{Instance: 1, Owner: 4, GearID: 125})
	m.BeginDetonation(1)

	_, ok := m.BeginDetonation(99)
	assert.False(t, ok)
	_, ok = m.CurrentOwner()
	assert.False(t, ok)
}

func TestMines_Reset(t *testing.T) {
	m := NewMines([]uint32{125})
	m.Deploy(core.MineDeploy{Instance: 1, Owner: 4, GearID: 125})
	m.Deploy(core.MineDeploy{Instance: 3, Owner: 4, GearID: 125})
	m.BeginDetonation(1)

	m.Reset()
	assert.Equal(t, 0, m.Len())
	_, ok := m.CurrentOwner()
	assert.False(t, ok)
}
