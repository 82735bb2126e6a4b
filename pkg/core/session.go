// pkg/core/session.go
package core

import "fmt"

// Role is the node's part in the session.
type Role uint8

const (
	RoleClient Role = iota
	RoleAuthority
)

func (r Role) String() string {
	switch r {
	case RoleAuthority:
		return "authority"
	case RoleClient:
		return "client"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// ParseRole parses "authority"/"host" or "client".
func ParseRole(s string) (Role, error) {
	switch s {
	case "authority", "host", "master":
		return RoleAuthority, nil
	case "client":
		return RoleClient, nil
	default:
		return RoleClient, fmt.Errorf("unknown role %q", s)
	}
}

// SessionInfo describes the session a node has joined.
type SessionInfo struct {
	Role       Role
	LocalNode  NodeID
	LocalAgent AgentID
	StartedAt  int64 // monotonic ms
}
