// Package nation provides the nation data model, role hierarchy, and the
// concurrent registry that owns nation lifecycle and membership.
package nation

// Role is a member's rank within a nation. Roles are totally ordered by
// priority: Leader > Commander > Citizen.
type Role uint8

const (
	// Citizen is a basic member with no administrative permissions.
	Citizen Role = iota
	// Commander can invite new members but cannot disband or change leadership.
	Commander
	// Leader holds every permission, including disbanding the nation.
	Leader
)

var roleNames = map[Role]string{
	Citizen:   "CITIZEN",
	Commander: "COMMANDER",
	Leader:    "LEADER",
}

var roleDisplayNames = map[Role]string{
	Citizen:   "Citizen",
	Commander: "Commander",
	Leader:    "Leader",
}

// Name returns the stable serialized name of the role (e.g. "LEADER").
func (r Role) Name() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return "CITIZEN"
}

// DisplayName returns the human-facing name of the role (e.g. "Leader").
func (r Role) DisplayName() string {
	if n, ok := roleDisplayNames[r]; ok {
		return n
	}
	return "Citizen"
}

// ParseRole maps a serialized role name back to a Role. Unknown names
// default to Citizen so a garbled record degrades instead of failing.
func ParseRole(name string) (Role, bool) {
	switch name {
	case "LEADER":
		return Leader, true
	case "COMMANDER":
		return Commander, true
	case "CITIZEN":
		return Citizen, true
	}
	return Citizen, false
}

// Priority returns the hierarchy value of the role (higher outranks lower).
func (r Role) Priority() int {
	switch r {
	case Leader:
		return 3
	case Commander:
		return 2
	default:
		return 1
	}
}

// Outranks reports whether this role sits strictly above another.
func (r Role) Outranks(other Role) bool {
	return r.Priority() > other.Priority()
}

// CanPromote reports whether this role may promote other members.
func (r Role) CanPromote() bool { return r == Leader }

// CanDemote reports whether this role may demote other members.
func (r Role) CanDemote() bool { return r == Leader }

// CanKick reports whether this role may kick other members.
func (r Role) CanKick() bool { return r == Leader }

// CanDisband reports whether this role may disband the nation.
func (r Role) CanDisband() bool { return r == Leader }

// CanInvite reports whether this role may invite new members.
func (r Role) CanInvite() bool { return r == Leader || r == Commander }
