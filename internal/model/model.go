package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&FeedInfo{},
	&Session{},
	&Kill{},
	&Indicator{},
}

// FeedInfo describes the group hosting the kill feed.
type FeedInfo struct {
	gorm.Model
	GroupName        string `json:"groupName" gorm:"size:127"`
	GroupDescription string `json:"groupDescription" gorm:"size:255"`
}

func (*FeedInfo) TableName() string {
	return "feed_infos"
}

// Session is one recorded play session on one node.
type Session struct {
	gorm.Model
	Role             string    `json:"role" gorm:"size:16;index:idx_session_role"`
	LocalNode        uint64    `json:"localNode"`
	LocalAgent       uint16    `json:"localAgent"`
	StartTime        time.Time `json:"startTime" gorm:"index:idx_session_start"`
	EndTime          time.Time `json:"endTime"`
	ExtensionVersion string    `json:"extensionVersion" gorm:"size:64"`

	Kills      []Kill
	Indicators []Indicator
}

func (*Session) TableName() string {
	return "sessions"
}

// Kill is an attribution resolved on the authority.
type Kill struct {
	ID   uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time time.Time `json:"time" gorm:"index:idx_kill_time"` // wall clock when recorded

	SessionID uint    `json:"sessionId" gorm:"index:idx_kill_session_id"`
	Session   Session `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`

	GameTime int64          `json:"gameTime"` // monotonic ms reported by the host
	Entity   uint16         `json:"entity" gorm:"index:idx_kill_entity"`
	PlayerID *uint16        `json:"playerId" gorm:"index:idx_kill_player"`
	Player   string         `json:"player" gorm:"size:64"`
	Channel  string         `json:"channel" gorm:"size:16"`
	Delay    int64          `json:"delay"`
	Item     datatypes.JSON `json:"item"`
}

func (*Kill) TableName() string {
	return "kills"
}

// Indicator is a kill confirmation shown on this node.
type Indicator struct {
	ID   uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time time.Time `json:"time" gorm:"index:idx_indicator_time"`

	SessionID uint    `json:"sessionId" gorm:"index:idx_indicator_session_id"`
	Session   Session `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`

	GameTime int64          `json:"gameTime"`
	Entity   uint16         `json:"entity" gorm:"index:idx_indicator_entity"`
	Source   string         `json:"source" gorm:"size:16;index:idx_indicator_source"`
	Delay    int64          `json:"delay"`
	Item     datatypes.JSON `json:"item"`
	Position datatypes.JSON `json:"position"`
}

func (*Indicator) TableName() string {
	return "indicators"
}
