package core

// MineDeploy is reported when a deployable explosive is spawned.
type MineDeploy struct {
	Instance int32   `json:"instance"` // process-local instance id of the ordnance
	Owner    AgentID `json:"owner"`
	GearID   uint32  `json:"gearId"`
}

// MineEvent is a pickup or detonation of a deployed explosive.
type MineEvent struct {
	Instance int32 `json:"instance"`
}
