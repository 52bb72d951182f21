package nation

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MaxNameLength is the longest accepted nation name.
const MaxNameLength = 32

// Result carries the outcome of a registry operation. Business-rule
// violations are reported here as values, never as errors or panics, so
// command handlers can render the message directly.
type Result struct {
	OK      bool
	Message string
}

func success(format string, args ...any) Result {
	return Result{OK: true, Message: fmt.Sprintf(format, args...)}
}

func failure(format string, args ...any) Result {
	return Result{OK: false, Message: fmt.Sprintf(format, args...)}
}

// Registry owns every nation and the player→nation membership mapping.
//
// A single mutex guards both maps, so operations that touch the roster and
// the mapping together (join, kick, disband) are atomic. Nation pointers
// returned from lookups guard their own fields, so readers holding one
// stay safe against later mutations (see Nation). Lookups still
// tolerate a player mapping that points at a missing nation — persisted
// data can arrive in that shape — by dropping the stale mapping.
type Registry struct {
	mu sync.RWMutex

	// nations is keyed by lowercase name; the Nation keeps display casing.
	nations map[string]*Nation

	// playerNation maps a player to the display name of their nation.
	playerNation map[uuid.UUID]string
}

// NewRegistry creates an empty nation registry.
func NewRegistry() *Registry {
	return &Registry{
		nations:      make(map[string]*Nation),
		playerNation: make(map[uuid.UUID]string),
	}
}

// Create founds a new nation with the player as its sole leader.
func (r *Registry) Create(name string, player uuid.UUID) Result {
	if strings.TrimSpace(name) == "" {
		return failure("Nation name cannot be empty")
	}
	if len(name) > MaxNameLength {
		return failure("Nation name cannot be longer than %d characters", MaxNameLength)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(name)
	if _, exists := r.nations[key]; exists {
		return failure("Nation with name '%s' already exists", name)
	}
	if current, ok := r.playerNation[player]; ok {
		return failure("You are already a member of nation '%s'", current)
	}

	r.nations[key] = New(name, player)
	r.playerNation[player] = name
	return success("Nation '%s' created successfully! You are now the leader.", name)
}

// Join adds the player to an existing nation as a citizen.
func (r *Registry) Join(name string, player uuid.UUID) Result {
	if strings.TrimSpace(name) == "" {
		return failure("Nation name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.playerNation[player]; ok {
		return failure("You are already a member of nation '%s'", current)
	}
	n, ok := r.nations[strings.ToLower(name)]
	if !ok {
		return failure("Nation '%s' does not exist", name)
	}
	if !n.AddMember(player, Citizen) {
		return failure("Failed to join nation '%s' (already a member?)", name)
	}
	r.playerNation[player] = n.Name()
	return success("Successfully joined nation '%s'!", n.Name())
}

// Leave removes the player from their current nation. Leaders cannot leave;
// they must transfer leadership or disband.
func (r *Registry) Leave(player uuid.UUID) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, res := r.memberNationLocked(player)
	if n == nil {
		return res
	}
	if n.IsLeader(player) {
		return failure("Leaders cannot leave their nation. Transfer leadership first or disband the nation")
	}
	if !n.RemoveMember(player) {
		return failure("Failed to leave nation")
	}
	delete(r.playerNation, player)
	return success("Successfully left nation '%s'", n.Name())
}

// Disband deletes the caller's nation and unlinks every member. Only the
// leader may disband. The whole operation happens under one lock, so the
// caller observes it as atomic.
func (r *Registry) Disband(player uuid.UUID) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, res := r.memberNationLocked(player)
	if n == nil {
		return res
	}
	if !n.MemberRole(player).CanDisband() {
		return failure("Only nation leaders can disband the nation")
	}

	for _, member := range n.Members() {
		delete(r.playerNation, member)
	}
	delete(r.nations, strings.ToLower(n.Name()))
	return success("Nation '%s' has been disbanded successfully", n.Name())
}

// Promote raises a citizen to commander. Leader-only; the leader rank is
// never reachable through promotion.
func (r *Registry) Promote(requester, target uuid.UUID) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, res := r.requireLeaderTargetLocked(requester, target, "promote")
	if n == nil {
		return res
	}

	switch n.MemberRole(target) {
	case Commander:
		return failure("Player is already at maximum promotable rank (Commander)")
	case Leader:
		return failure("Cannot promote another leader")
	default:
		n.SetMemberRole(target, Commander)
		return success("Player promoted from Citizen to Commander")
	}
}

// Demote lowers a commander to citizen. Leader-only; the leader rank is
// never reachable through demotion.
func (r *Registry) Demote(requester, target uuid.UUID) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, res := r.requireLeaderTargetLocked(requester, target, "demote")
	if n == nil {
		return res
	}

	switch n.MemberRole(target) {
	case Citizen:
		return failure("Player is already at minimum rank (Citizen)")
	case Leader:
		return failure("Cannot demote another leader")
	default:
		n.SetMemberRole(target, Citizen)
		return success("Player demoted from Commander to Citizen")
	}
}

// Kick removes a non-leader member from the requester's nation.
func (r *Registry) Kick(requester, target uuid.UUID) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, res := r.requireLeaderTargetLocked(requester, target, "kick")
	if n == nil {
		return res
	}
	if n.IsLeader(target) {
		return failure("Cannot kick another leader")
	}
	if !n.RemoveMember(target) {
		return failure("Failed to kick player")
	}
	delete(r.playerNation, target)
	return success("Player has been kicked from the nation")
}

// TransferLeadership hands the leader role to another member. The old
// leader stays in the nation as a commander.
func (r *Registry) TransferLeadership(requester, target uuid.UUID) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, res := r.memberNationLocked(requester)
	if n == nil {
		return res
	}
	if !n.IsLeader(requester) {
		return failure("Only the nation leader can transfer leadership")
	}
	if target == requester {
		return failure("You are already the leader")
	}
	if !n.IsMember(target) {
		return failure("Target player is not a member of your nation")
	}

	old := n.Leader()
	if !n.SetLeader(target) {
		return failure("Failed to transfer leadership")
	}
	n.SetMemberRole(old, Commander)
	return success("Leadership of '%s' transferred successfully", n.Name())
}

// Deposit adds funds to the treasury of the player's nation.
func (r *Registry) Deposit(player uuid.UUID, amount float64) Result {
	if amount <= 0 {
		return failure("Amount must be positive")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n, res := r.memberNationLocked(player)
	if n == nil {
		return res
	}
	n.Deposit(amount)
	return success("Deposited %.2f into the treasury of '%s'", amount, n.Name())
}

// Withdraw removes funds from the treasury of the player's nation. Fails
// without mutation when the balance is insufficient.
func (r *Registry) Withdraw(player uuid.UUID, amount float64) Result {
	if amount <= 0 {
		return failure("Amount must be positive")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n, res := r.memberNationLocked(player)
	if n == nil {
		return res
	}
	if !n.Withdraw(amount) {
		return failure("Insufficient funds in the treasury of '%s'", n.Name())
	}
	return success("Withdrew %.2f from the treasury of '%s'", amount, n.Name())
}

// NationOf returns the nation the player belongs to, or nil. A mapping that
// points at a missing nation is dropped on sight.
func (r *Registry) NationOf(player uuid.UUID) *Nation {
	r.mu.RLock()
	name, ok := r.playerNation[player]
	var n *Nation
	if ok {
		n = r.nations[strings.ToLower(name)]
	}
	r.mu.RUnlock()

	if ok && n == nil {
		r.repairMapping(player, name)
	}
	return n
}

// ByName looks up a nation by name, case-insensitively.
func (r *Registry) ByName(name string) *Nation {
	if name == "" {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nations[strings.ToLower(name)]
}

// InAnyNation reports whether the player belongs to some nation.
func (r *Registry) InAnyNation(player uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.playerNation[player]
	return ok
}

// All returns a copy of the lowercase-name→nation map.
func (r *Registry) All() map[string]*Nation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Nation, len(r.nations))
	for k, v := range r.nations {
		out[k] = v
	}
	return out
}

// Count returns the number of nations.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nations)
}

// PlayerMappings returns a copy of the player→nation-name map.
func (r *Registry) PlayerMappings() map[uuid.UUID]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[uuid.UUID]string, len(r.playerNation))
	for k, v := range r.playerNation {
		out[k] = v
	}
	return out
}

// Load replaces all registry state with decoded persistence data.
func (r *Registry) Load(nations map[string]*Nation, playerNation map[uuid.UUID]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nations = make(map[string]*Nation, len(nations))
	for k, v := range nations {
		r.nations[strings.ToLower(k)] = v
	}
	r.playerNation = make(map[uuid.UUID]string, len(playerNation))
	for k, v := range playerNation {
		r.playerNation[k] = v
	}
}

// memberNationLocked resolves the caller's nation, repairing a stale
// mapping in place. Returns a failure Result when the player has no nation.
// Caller must hold the write lock.
func (r *Registry) memberNationLocked(player uuid.UUID) (*Nation, Result) {
	name, ok := r.playerNation[player]
	if !ok {
		return nil, failure("You are not a member of any nation")
	}
	n, ok := r.nations[strings.ToLower(name)]
	if !ok {
		delete(r.playerNation, player)
		slog.Warn("dropped stale player mapping", "player", player, "nation", name)
		return nil, failure("Your nation no longer exists")
	}
	return n, Result{}
}

// requireLeaderTargetLocked runs the shared checks for promote/demote/kick:
// caller in a nation, caller at leader rank, target a member, no self-target.
func (r *Registry) requireLeaderTargetLocked(requester, target uuid.UUID, verb string) (*Nation, Result) {
	n, res := r.memberNationLocked(requester)
	if n == nil {
		return nil, res
	}
	if !n.HasRoleOrHigher(requester, Leader) {
		return nil, failure("Only leaders can %s members", verb)
	}
	if !n.IsMember(target) {
		return nil, failure("Target player is not a member of your nation")
	}
	if target == requester {
		return nil, failure("You cannot %s yourself", verb)
	}
	return n, Result{}
}

// repairMapping drops a player→nation mapping that no longer resolves,
// re-checking under the write lock in case a concurrent load fixed it.
func (r *Registry) repairMapping(player uuid.UUID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.playerNation[player]; ok && current == name {
		if _, exists := r.nations[strings.ToLower(name)]; !exists {
			delete(r.playerNation, player)
			slog.Warn("dropped stale player mapping", "player", player, "nation", name)
		}
	}
}
