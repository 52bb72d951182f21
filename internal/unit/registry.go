package unit

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/talgya/dominion-engine/internal/nation"
)

// NationResolver resolves a nation name to its live nation, if any. The
// nation registry satisfies this; the unit registry needs nothing else
// from it.
type NationResolver interface {
	ByName(name string) *nation.Nation
}

// Registry owns every unit and a per-nation index of unit ids. One mutex
// guards both maps, so the two-structure updates in spawn and remove are
// atomic. Unit pointers returned from lookups guard their own fields (see
// Unit), so readers holding one stay safe against concurrent commands.
// Operations on different nations share the lock only briefly; no
// operation blocks or performs I/O while holding it.
type Registry struct {
	mu sync.RWMutex

	units    map[uuid.UUID]*Unit
	byNation map[string]map[uuid.UUID]struct{} // lowercase nation name → unit ids

	nations NationResolver
	now     func() int64
}

// NewRegistry creates an empty unit registry. now is the host's monotonic
// millisecond clock; it stamps tactical state transitions.
func NewRegistry(nations NationResolver, now func() int64) *Registry {
	return &Registry{
		units:    make(map[uuid.UUID]*Unit),
		byNation: make(map[string]map[uuid.UUID]struct{}),
		nations:  nations,
		now:      now,
	}
}

// Spawn creates and registers a full-health unit for a nation. Level is
// clamped to ≥1. Fails only on a nil nation or blank type.
func (r *Registry) Spawn(typeName string, owner *nation.Nation, level int) (*Unit, error) {
	if owner == nil {
		return nil, errors.New("unit must belong to a nation")
	}
	if strings.TrimSpace(typeName) == "" {
		return nil, errors.New("unit type cannot be empty")
	}

	u := NewUnit(typeName, owner.Name(), level, r.now())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.registerLocked(u)
	return u, nil
}

// Get returns a unit by id, or nil.
func (r *Registry) Get(id uuid.UUID) *Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.units[id]
}

// Remove deletes a unit from the registry and the per-nation index.
// Removal is terminal; there is no resurrection path.
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(id)
}

// List returns the alive units of a nation.
func (r *Registry) List(owner *nation.Nation) []*Unit {
	if owner == nil {
		return nil
	}
	return r.ListByName(owner.Name())
}

// ListByName returns the alive units of the named nation. Dead units still
// awaiting a cleanup sweep are filtered out here.
func (r *Registry) ListByName(nationName string) []*Unit {
	key := strings.ToLower(nationName)

	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, ok := r.byNation[key]
	if !ok {
		return nil
	}
	out := make([]*Unit, 0, len(ids))
	for id := range ids {
		if u := r.units[id]; u != nil && u.Alive() {
			out = append(out, u)
		}
	}
	return out
}

// UnitsInRange returns the nation's alive units commandable from position.
// A defending unit is included only when its defend position lies within
// maxDistance; a non-defending unit is always included, since it follows
// the player and is assumed in range. The asymmetry is intentional.
func (r *Registry) UnitsInRange(nationName string, pos Position, maxDistance float64) []*Unit {
	all := r.ListByName(nationName)
	out := make([]*Unit, 0, len(all))
	for _, u := range all {
		if u.IsDefending() && u.DefendPosition().DistanceTo(pos) > maxDistance {
			continue
		}
		out = append(out, u)
	}
	return out
}

// CommandAttack orders a unit to attack a target. Returns false for
// unknown or dead units.
func (r *Registry) CommandAttack(unitID, targetID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.units[unitID]
	if u == nil || !u.Alive() {
		return false
	}
	u.SetAttackTarget(targetID, r.now())
	return true
}

// CommandDefend orders a unit to hold a position. Returns false for
// unknown or dead units.
func (r *Registry) CommandDefend(unitID uuid.UUID, pos Position) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.units[unitID]
	if u == nil || !u.Alive() {
		return false
	}
	u.SetDefendPosition(pos, r.now())
	return true
}

// CommandIdle clears a unit's standing order. Returns false for unknown or
// dead units.
func (r *Registry) CommandIdle(unitID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.units[unitID]
	if u == nil || !u.Alive() {
		return false
	}
	u.SetIdle(r.now())
	return true
}

// IdleAll returns every alive unit of a nation to idle. Returns how many
// units were ordered.
func (r *Registry) IdleAll(nationName string) int {
	key := strings.ToLower(nationName)

	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	now := r.now()
	for id := range r.byNation[key] {
		if u := r.units[id]; u != nil && u.Alive() {
			u.SetIdle(now)
			count++
		}
	}
	return count
}

// Damage applies damage to a unit. Returns whether the unit is still
// alive; unknown units read as dead.
func (r *Registry) Damage(unitID uuid.UUID, amount int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.units[unitID]
	if u == nil {
		return false
	}
	return u.TakeDamage(amount)
}

// Heal heals a unit up to its maximum health. No-op for unknown or dead
// units.
func (r *Registry) Heal(unitID uuid.UUID, amount int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u := r.units[unitID]; u != nil {
		u.Heal(amount)
	}
}

// GrantExperience adds experience to a unit. Returns whether the unit
// leveled up.
func (r *Registry) GrantExperience(unitID uuid.UUID, exp int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.units[unitID]
	if u == nil {
		return false
	}
	return u.AddExperience(exp)
}

// CleanupDead sweeps the full unit table, removing every dead unit from
// both maps. Safe alongside spawns and commands: a unit's death is
// monotonic, so a unit observed dead here stays dead.
func (r *Registry) CleanupDead() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dead []uuid.UUID
	for id, u := range r.units {
		if !u.Alive() {
			dead = append(dead, id)
		}
	}
	cleaned := 0
	for _, id := range dead {
		if r.removeLocked(id) {
			cleaned++
		}
	}
	return cleaned
}

// Count returns the number of alive units for a nation.
func (r *Registry) Count(owner *nation.Nation) int {
	return len(r.List(owner))
}

// CountByType returns how many alive units of a type a nation owns.
func (r *Registry) CountByType(owner *nation.Nation, typeName string) int {
	want := strings.ToLower(strings.TrimSpace(typeName))
	count := 0
	for _, u := range r.List(owner) {
		if u.TypeName() == want {
			count++
		}
	}
	return count
}

// Total returns the number of alive units across all nations.
func (r *Registry) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, u := range r.units {
		if u.Alive() {
			count++
		}
	}
	return count
}

// ResolveOwner returns the live nation a unit belongs to, or nil if the
// name no longer resolves. Units outlive such misses.
func (r *Registry) ResolveOwner(u *Unit) *nation.Nation {
	if u == nil || r.nations == nil {
		return nil
	}
	return r.nations.ByName(u.OwnerNation())
}

// Statistics summarizes the registry for operators.
type Statistics struct {
	TotalUnits       int            `json:"total_units"`
	NationsWithUnits int            `json:"nations_with_units"`
	UnitsByType      map[string]int `json:"units_by_type"`
}

// Stats returns aggregate counts over alive units.
func (r *Registry) Stats() Statistics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Statistics{UnitsByType: make(map[string]int)}
	for _, u := range r.units {
		if !u.Alive() {
			continue
		}
		stats.TotalUnits++
		stats.UnitsByType[u.TypeName()]++
	}
	stats.NationsWithUnits = len(r.byNation)
	return stats
}

// AddExisting registers a restored unit. Rejects duplicates by id.
func (r *Registry) AddExisting(u *Unit) bool {
	if u == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.units[u.ID()]; exists {
		return false
	}
	r.registerLocked(u)
	return true
}

// Load replaces all registry state with restored units.
func (r *Registry) Load(units []*Unit) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.units = make(map[uuid.UUID]*Unit, len(units))
	r.byNation = make(map[string]map[uuid.UUID]struct{})
	for _, u := range units {
		if u == nil {
			continue
		}
		if _, exists := r.units[u.ID()]; exists {
			continue
		}
		r.registerLocked(u)
	}
}

// Snapshot returns every registered unit, dead ones included. The codec
// filters for itself.
func (r *Registry) Snapshot() []*Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Unit, 0, len(r.units))
	for _, u := range r.units {
		out = append(out, u)
	}
	return out
}

func (r *Registry) registerLocked(u *Unit) {
	r.units[u.ID()] = u
	key := strings.ToLower(u.OwnerNation())
	set, ok := r.byNation[key]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		r.byNation[key] = set
	}
	set[u.ID()] = struct{}{}
}

func (r *Registry) removeLocked(id uuid.UUID) bool {
	u, ok := r.units[id]
	if !ok {
		return false
	}
	delete(r.units, id)

	key := strings.ToLower(u.OwnerNation())
	if set, ok := r.byNation[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(r.byNation, key)
		}
	}
	return true
}
