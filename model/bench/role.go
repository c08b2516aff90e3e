package bench

import (
	"fmt"
)

// Role is the role a node played in a benchmark run.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleLeader
	RoleValidator
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleLeader:
		return "leader"
	case RoleValidator:
		return "validator"
	case RoleClient:
		return "client"
	default:
		return "unknown"
	}
}

// ParseRole converts the role name found in a log header into a Role.
func ParseRole(role string) (Role, error) {
	switch role {
	case "leader":
		return RoleLeader, nil
	case "validator":
		return RoleValidator, nil
	case "client":
		return RoleClient, nil
	default:
		return RoleUnknown, fmt.Errorf("invalid role %q", role)
	}
}
