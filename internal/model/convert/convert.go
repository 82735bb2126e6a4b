package convert

import (
	"encoding/json"

	"github.com/killindicator/extension/internal/model"
	"github.com/killindicator/extension/pkg/core"
)

func jsonItem(raw []byte) *core.Item {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var it core.Item
	if err := json.Unmarshal(raw, &it); err != nil {
		return nil
	}
	return &it
}

// KillToCore converts a GORM Kill back to a core.KillEvent. Only the
// player's id and name survive the round trip.
func KillToCore(k model.Kill) core.KillEvent {
	out := core.KillEvent{
		Time:   k.GameTime,
		Entity: core.EntityID(k.Entity),
		Delay:  k.Delay,
		Item:   jsonItem(k.Item),
	}
	_ = out.Channel.UnmarshalText([]byte(k.Channel))
	if k.PlayerID != nil {
		out.Player = &core.Agent{ID: core.AgentID(*k.PlayerID), Name: k.Player}
	}
	return out
}

// IndicatorToCore converts a GORM Indicator back to a core.IndicatorEvent.
func IndicatorToCore(i model.Indicator) core.IndicatorEvent {
	out := core.IndicatorEvent{
		Time:   i.GameTime,
		Entity: core.EntityID(i.Entity),
		Delay:  i.Delay,
		Item:   jsonItem(i.Item),
		Source: parseSource(i.Source),
	}
	if len(i.Position) > 0 {
		_ = json.Unmarshal(i.Position, &out.Position)
	}
	return out
}

func parseSource(s string) core.IndicatorSource {
	for _, src := range []core.IndicatorSource{
		core.SourcePredicted, core.SourceReconciled, core.SourceRemote, core.SourceEngine,
	} {
		if src.String() == s {
			return src
		}
	}
	return core.SourcePredicted
}

// SessionToCore converts a GORM Session back to session info. Unknown roles
// read as client.
func SessionToCore(s model.Session) core.SessionInfo {
	role, _ := core.ParseRole(s.Role)
	return core.SessionInfo{
		Role:       role,
		LocalNode:  core.NodeID(s.LocalNode),
		LocalAgent: core.AgentID(s.LocalAgent),
	}
}
