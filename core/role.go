package core

import "fmt"

// Role identifies the kind of speaker producing a turn.
type Role int

const (
	// RoleAgent is an ordinary conversational actor.
	RoleAgent Role = iota + 1
	// RoleModerator facilitates debate mode runs.
	RoleModerator
	// RoleSynthesizer facilitates collaboration mode runs.
	RoleSynthesizer
)

// Reserved signed actor ids for facilitator roles. Actors use 1..N.
const (
	ModeratorID   = -1
	SynthesizerID = -2
)

// String returns the wire name of the role.
func (r Role) String() string {
	switch r {
	case RoleAgent:
		return "agent"
	case RoleModerator:
		return "moderator"
	case RoleSynthesizer:
		return "synthesizer"
	default:
		return "unknown"
	}
}

// IsFacilitator reports whether r is the moderator or synthesizer role.
func (r Role) IsFacilitator() bool { return r == RoleModerator || r == RoleSynthesizer }

// AgentID returns the reserved signed id for facilitator roles and 0 for actors.
func (r Role) AgentID() int {
	switch r {
	case RoleModerator:
		return ModeratorID
	case RoleSynthesizer:
		return SynthesizerID
	default:
		return 0
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if r < RoleAgent || r > RoleSynthesizer {
		return nil, fmt.Errorf("invalid role %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(b []byte) error {
	switch string(b) {
	case "agent":
		*r = RoleAgent
	case "moderator":
		*r = RoleModerator
	case "synthesizer":
		*r = RoleSynthesizer
	default:
		return fmt.Errorf("invalid role %q", string(b))
	}
	return nil
}
