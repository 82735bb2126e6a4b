// Package convert provides functions to convert core events to GORM models
package convert

import (
	"encoding/json"
	"time"

	"github.com/killindicator/extension/internal/model"
	"github.com/killindicator/extension/pkg/core"
	"gorm.io/datatypes"
)

// toJSON marshals v for a JSON column; nil becomes SQL null.
func toJSON(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}

func itemJSON(it *core.Item) datatypes.JSON {
	if it == nil {
		return nil
	}
	return toJSON(it)
}

// CoreToSession converts session info to a GORM Session.
func CoreToSession(info core.SessionInfo, start time.Time, version string) model.Session {
	return model.Session{
		Role:             info.Role.String(),
		LocalNode:        uint64(info.LocalNode),
		LocalAgent:       uint16(info.LocalAgent),
		StartTime:        start,
		ExtensionVersion: version,
	}
}

// CoreToKill converts a core.KillEvent to a GORM Kill.
func CoreToKill(k core.KillEvent, sessionID uint, now time.Time) model.Kill {
	row := model.Kill{
		Time:      now,
		SessionID: sessionID,
		GameTime:  k.Time,
		Entity:    uint16(k.Entity),
		Channel:   k.Channel.String(),
		Delay:     k.Delay,
		Item:      itemJSON(k.Item),
	}
	if k.Player != nil {
		id := uint16(k.Player.ID)
		row.PlayerID = &id
		row.Player = k.Player.Name
	}
	return row
}

// CoreToIndicator converts a core.IndicatorEvent to a GORM Indicator.
func CoreToIndicator(e core.IndicatorEvent, sessionID uint, now time.Time) model.Indicator {
	return model.Indicator{
		Time:      now,
		SessionID: sessionID,
		GameTime:  e.Time,
		Entity:    uint16(e.Entity),
		Source:    e.Source.String(),
		Delay:     e.Delay,
		Item:      itemJSON(e.Item),
		Position:  toJSON(e.Position),
	}
}
