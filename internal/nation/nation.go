package nation

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Nation is a player-formed faction with a leader, ranked membership, and a
// treasury balance. The name is fixed at creation; display casing is
// whatever the founder typed.
//
// A Nation guards its own fields: pointers handed out by the registry stay
// safe to read while the registry mutates the roster. The registry's lock
// still serializes multi-step operations; the entity lock only protects
// individual field access.
type Nation struct {
	name string

	mu      sync.RWMutex
	leader  uuid.UUID
	members []uuid.UUID
	roles   map[uuid.UUID]Role
	balance float64
}

// New creates a nation with the founder as its sole member and leader.
func New(name string, leader uuid.UUID) *Nation {
	n := &Nation{
		name:    name,
		leader:  leader,
		members: []uuid.UUID{leader},
		roles:   map[uuid.UUID]Role{leader: Leader},
	}
	return n
}

// Name returns the nation's display name as supplied at creation.
func (n *Nation) Name() string { return n.name }

// Leader returns the current leader's player id.
func (n *Nation) Leader() uuid.UUID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.leader
}

// SetLeader reassigns leadership. The new leader must already be a member;
// role bookkeeping (old leader's new rank) is the caller's responsibility.
func (n *Nation) SetLeader(player uuid.UUID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.roles[player]; !ok {
		return false
	}
	n.leader = player
	n.roles[player] = Leader
	return true
}

// Members returns a copy of the member list.
func (n *Nation) Members() []uuid.UUID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]uuid.UUID, len(n.members))
	copy(out, n.members)
	return out
}

// MemberCount returns the number of members, leader included.
func (n *Nation) MemberCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.members)
}

// AddMember adds a player with the given role. Returns false if the player
// is already a member.
func (n *Nation) AddMember(player uuid.UUID, role Role) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.roles[player]; ok {
		return false
	}
	n.members = append(n.members, player)
	n.roles[player] = role
	return true
}

// RemoveMember removes a player from the roster. The leader can never be
// removed this way.
func (n *Nation) RemoveMember(player uuid.UUID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if player == n.leader {
		return false
	}
	for i, m := range n.members {
		if m == player {
			n.members = append(n.members[:i], n.members[i+1:]...)
			delete(n.roles, player)
			return true
		}
	}
	return false
}

// IsMember reports whether the player belongs to this nation.
func (n *Nation) IsMember(player uuid.UUID) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.roles[player]
	return ok
}

// IsLeader reports whether the player is this nation's leader.
func (n *Nation) IsLeader(player uuid.UUID) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return player == n.leader
}

// MemberRole returns the role of a member. Non-members read as Citizen.
func (n *Nation) MemberRole(player uuid.UUID) Role {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if r, ok := n.roles[player]; ok {
		return r
	}
	return Citizen
}

// SetMemberRole changes a member's role. The leader's role is pinned to
// Leader and cannot be reassigned here.
func (n *Nation) SetMemberRole(player uuid.UUID, role Role) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.roles[player]; !ok || player == n.leader {
		return false
	}
	n.roles[player] = role
	return true
}

// MemberRoles returns a copy of the member→role map, taken in one atomic
// read. Callers wanting a consistent roster view use this over
// Members+MemberRole pairs.
func (n *Nation) MemberRoles() map[uuid.UUID]Role {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make(map[uuid.UUID]Role, len(n.roles))
	for k, v := range n.roles {
		out[k] = v
	}
	return out
}

// CountByRole returns how many members hold the given role.
func (n *Nation) CountByRole(role Role) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.countByRoleLocked(role)
}

func (n *Nation) countByRoleLocked(role Role) int {
	count := 0
	for _, r := range n.roles {
		if r == role {
			count++
		}
	}
	return count
}

// HasRoleOrHigher reports whether a member's role is at least minimum.
func (n *Nation) HasRoleOrHigher(player uuid.UUID, minimum Role) bool {
	return n.MemberRole(player).Priority() >= minimum.Priority()
}

// Balance returns the treasury balance.
func (n *Nation) Balance() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.balance
}

// SetBalance overwrites the treasury balance (load path only).
func (n *Nation) SetBalance(balance float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balance = balance
}

// Deposit adds funds to the treasury.
func (n *Nation) Deposit(amount float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balance += amount
}

// Withdraw removes funds from the treasury. Fails without mutation if the
// balance is insufficient; there is no overdraft.
func (n *Nation) Withdraw(amount float64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.balance < amount {
		return false
	}
	n.balance -= amount
	return true
}

func (n *Nation) String() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return fmt.Sprintf("Nation{name=%s, leader=%s, members=%d, commanders=%d, citizens=%d, balance=%.2f}",
		n.name, n.leader, len(n.members), n.countByRoleLocked(Commander), n.countByRoleLocked(Citizen), n.balance)
}
