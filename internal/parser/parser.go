package parser

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/killindicator/extension/internal/util"
	"github.com/killindicator/extension/pkg/core"
)

// parseHostUint reads a non-negative whole number. Host scripts only have
// doubles, so "7" and "7.00" are both accepted while "7.5" is not.
func parseHostUint(s string) (uint64, error) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxUint64 {
		return 0, fmt.Errorf("%q is not a whole non-negative number", s)
	}
	return uint64(f), nil
}

// parseHostInt is parseHostUint for signed values such as timestamps.
func parseHostInt(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	return int64(f), nil
}

// Parser provides pure []string -> core struct conversion.
// It has zero external dependencies beyond a logger.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// decodeArg unmarshals the first host argument as JSON into T.
func decodeArg[T any](data []string, what string) (T, error) {
	var out T
	if len(data) < 1 {
		return out, fmt.Errorf("insufficient data fields for %s: got 0, need 1", what)
	}
	raw := util.CleanArg(data[0])
	if raw == "" {
		return out, fmt.Errorf("empty %s payload", what)
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("error parsing %s: %w", what, err)
	}
	return out, nil
}

type sessionStart struct {
	Role       string       `json:"role"`
	LocalNode  core.NodeID  `json:"localNode"`
	LocalAgent core.AgentID `json:"localAgent"`
	Time       int64        `json:"time"`
}

// ParseSessionStart parses {role, localNode, localAgent[, time]}.
func (p *Parser) ParseSessionStart(data []string) (core.SessionInfo, error) {
	raw, err := decodeArg[sessionStart](data, "session start")
	if err != nil {
		return core.SessionInfo{}, err
	}
	role, err := core.ParseRole(raw.Role)
	if err != nil {
		return core.SessionInfo{}, err
	}
	return core.SessionInfo{
		Role:       role,
		LocalNode:  raw.LocalNode,
		LocalAgent: raw.LocalAgent,
		StartedAt:  raw.Time,
	}, nil
}

// ParseAgent parses a player agent snapshot.
func (p *Parser) ParseAgent(data []string) (core.Agent, error) {
	return decodeArg[core.Agent](data, "agent")
}

// ParseEntity parses an entity snapshot.
func (p *Parser) ParseEntity(data []string) (core.EntityState, error) {
	e, err := decodeArg[core.EntityState](data, "entity")
	if err != nil {
		return e, err
	}
	if e.HealthMax < 0 || (e.HealthMax > 0 && e.Health > e.HealthMax) {
		p.logger.Debug("Entity health outside range", "entity", e.ID, "health", e.Health, "healthMax", e.HealthMax)
	}
	return e, nil
}

// ParseDamage parses one damage application.
func (p *Parser) ParseDamage(data []string) (core.DamageEvent, error) {
	ev, err := decodeArg[core.DamageEvent](data, "damage")
	if err != nil {
		return ev, err
	}
	if ev.Damage < 0 || math.IsNaN(float64(ev.Damage)) || math.IsInf(float64(ev.Damage), 0) {
		return ev, fmt.Errorf("invalid damage amount %v", ev.Damage)
	}
	return ev, nil
}

// ParseDeath parses a death transition.
func (p *Parser) ParseDeath(data []string) (core.DeathEvent, error) {
	return decodeArg[core.DeathEvent](data, "death")
}

// IndicatorShown is a confirmation the engine drew on its own.
type IndicatorShown struct {
	Entity    core.EntityID `json:"entity"`
	Time      int64         `json:"time"`
	ViaTurret bool          `json:"viaTurret,omitempty"` // a sentry or a forwarded turret hit
}

// ParseIndicatorShown parses {entity, time, viaTurret?}.
func (p *Parser) ParseIndicatorShown(data []string) (IndicatorShown, error) {
	return decodeArg[IndicatorShown](data, "indicator")
}

// ParseMineDeploy parses {instance, owner, gearId}.
func (p *Parser) ParseMineDeploy(data []string) (core.MineDeploy, error) {
	return decodeArg[core.MineDeploy](data, "mine deploy")
}

// ParseMineEvent parses {instance} for pickup and detonation.
func (p *Parser) ParseMineEvent(data []string) (core.MineEvent, error) {
	return decodeArg[core.MineEvent](data, "mine event")
}

// NetRecv is a foreign transport payload handed over by the host.
type NetRecv struct {
	Payload []byte
	Sender  core.NodeID
	Time    int64
}

// ParseNetRecv parses [base64 payload, sender node, time ms].
func (p *Parser) ParseNetRecv(data []string) (NetRecv, error) {
	var result NetRecv
	util.CleanArgs(data)

	if len(data) < 3 {
		return result, fmt.Errorf("insufficient data fields: got %d, need 3", len(data))
	}

	payload, err := base64.StdEncoding.DecodeString(data[0])
	if err != nil {
		return result, fmt.Errorf("error decoding payload: %w", err)
	}
	result.Payload = payload

	sender, err := parseHostUint(data[1])
	if err != nil {
		return result, fmt.Errorf("error parsing sender: %w", err)
	}
	result.Sender = core.NodeID(sender)

	now, err := parseHostInt(data[2])
	if err != nil {
		return result, fmt.Errorf("error parsing time: %w", err)
	}
	result.Time = now

	return result, nil
}

// ParseMetric splits a :METRIC: call into its measurement arguments.
func (p *Parser) ParseMetric(data []string) ([]string, error) {
	util.CleanArgs(data)
	if len(data) < 1 || data[0] == "" {
		return nil, fmt.Errorf("insufficient data fields: got %d, need 1", len(data))
	}
	return data, nil
}

func parseID(data []string, what string) (uint16, error) {
	util.CleanArgs(data)
	if len(data) < 1 {
		return 0, fmt.Errorf("insufficient data fields: got 0, need 1")
	}
	v, err := parseHostUint(data[0])
	if err != nil {
		return 0, fmt.Errorf("error parsing %s: %w", what, err)
	}
	if v > math.MaxUint16 {
		return 0, fmt.Errorf("%s %d out of range", what, v)
	}
	return uint16(v), nil
}

// ParseEntityID parses a bare entity id.
func (p *Parser) ParseEntityID(data []string) (core.EntityID, error) {
	id, err := parseID(data, "entity id")
	return core.EntityID(id), err
}

// ParseAgentID parses a bare agent id.
func (p *Parser) ParseAgentID(data []string) (core.AgentID, error) {
	id, err := parseID(data, "agent id")
	return core.AgentID(id), err
}
