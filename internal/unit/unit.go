// Package unit provides the military unit data model, the per-type stat
// catalog, the tactical state machine, and the concurrent unit registry.
package unit

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Type identifies a unit's combat archetype. Each variant carries its own
// stat formula; free-form spawn strings that match nothing resolve to
// TypeGeneric but keep their original spelling for display and persistence.
type Type uint8

const (
	TypeGeneric Type = iota
	TypeSoldier
	TypeArcher
	TypeKnight
	TypeMage
)

// KnownTypeNames lists the spawn names with dedicated stat tables.
func KnownTypeNames() []string {
	return []string{"soldier", "archer", "knight", "mage"}
}

// ParseType resolves a spawn name to a Type. The second return reports
// whether the name matched a dedicated table.
func ParseType(name string) (Type, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "soldier":
		return TypeSoldier, true
	case "archer":
		return TypeArcher, true
	case "knight":
		return TypeKnight, true
	case "mage":
		return TypeMage, true
	}
	return TypeGeneric, false
}

// Stats holds the derived combat values for a type at a given level.
type Stats struct {
	MaxHealth    int
	AttackDamage int
	Defense      int
	AttackSpeed  float64
}

// StatsFor computes the stat block for a type at a level. Values are linear
// in level: a fixed base plus a per-level increment.
func StatsFor(t Type, level int) Stats {
	switch t {
	case TypeSoldier:
		return Stats{
			MaxHealth:    25 + level*5,
			AttackDamage: 6 + level*2,
			Defense:      3 + level,
			AttackSpeed:  1.0,
		}
	case TypeArcher:
		return Stats{
			MaxHealth:    20 + level*4,
			AttackDamage: 5 + level*2,
			Defense:      2 + level,
			AttackSpeed:  0.8,
		}
	case TypeKnight:
		return Stats{
			MaxHealth:    35 + level*6,
			AttackDamage: 8 + level*2,
			Defense:      5 + level*2,
			AttackSpeed:  1.2,
		}
	case TypeMage:
		return Stats{
			MaxHealth:    22 + level*4,
			AttackDamage: 7 + level*3,
			Defense:      1 + level,
			AttackSpeed:  0.6,
		}
	default:
		return Stats{
			MaxHealth:    20 + level*5,
			AttackDamage: 4 + level,
			Defense:      2 + level,
			AttackSpeed:  1.0,
		}
	}
}

// State is a unit's current tactical command mode.
type State uint8

const (
	// StateIdle: following nation players, no standing order.
	StateIdle State = iota
	// StateAttacking: pursuing a specific target.
	StateAttacking
	// StateDefending: holding a specific position.
	StateDefending
	// StateReturning: moving back after a task. Declared for the host's
	// benefit; no transition in this engine produces it.
	StateReturning
)

var stateNames = map[State]string{
	StateIdle:      "IDLE",
	StateAttacking: "ATTACKING",
	StateDefending: "DEFENDING",
	StateReturning: "RETURNING",
}

// Name returns the stable serialized name of the state.
func (s State) Name() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "IDLE"
}

// ParseState maps a serialized state name back to a State.
func ParseState(name string) (State, bool) {
	switch name {
	case "IDLE":
		return StateIdle, true
	case "ATTACKING":
		return StateAttacking, true
	case "DEFENDING":
		return StateDefending, true
	case "RETURNING":
		return StateReturning, true
	}
	return StateIdle, false
}

// Position is a point in the host's 3D world. No unit system is assumed
// beyond distance comparisons.
type Position struct {
	X, Y, Z float64
}

// DistanceTo returns the Euclidean distance to another position.
func (p Position) DistanceTo(o Position) float64 {
	dx, dy, dz := p.X-o.X, p.Y-o.Y, p.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Unit is a persistent owned military entity. The owner nation is a name
// reference only — resolving it goes through the nation registry, and a
// unit survives a lookup miss without issue.
//
// A Unit guards its own mutable fields, so pointers handed out by the
// registry stay safe to read while commands mutate the unit under the
// registry's lock. Identity fields (id, type, owner) are immutable after
// construction and read without the lock.
type Unit struct {
	id       uuid.UUID
	unitType Type
	typeName string
	owner    string

	mu           sync.RWMutex
	level        int
	health       int
	maxHealth    int
	attackDamage int
	defense      int
	attackSpeed  float64
	alive        bool

	state          State
	attackTarget   *uuid.UUID
	defendPos      Position
	stateChangedAt int64

	experience       int
	experienceToNext int
}

// NewUnit creates a full-health unit at the given level (clamped to ≥1).
// now is the host's monotonic millisecond clock reading.
func NewUnit(typeName, ownerNation string, level int, now int64) *Unit {
	if level < 1 {
		level = 1
	}
	t, _ := ParseType(typeName)
	stats := StatsFor(t, level)
	return &Unit{
		id:               uuid.New(),
		unitType:         t,
		typeName:         strings.ToLower(strings.TrimSpace(typeName)),
		owner:            ownerNation,
		level:            level,
		health:           stats.MaxHealth,
		maxHealth:        stats.MaxHealth,
		attackDamage:     stats.AttackDamage,
		defense:          stats.Defense,
		attackSpeed:      stats.AttackSpeed,
		alive:            true,
		state:            StateIdle,
		stateChangedAt:   now,
		experience:       0,
		experienceToNext: experienceForNext(level),
	}
}

// Restore rebuilds a persisted unit. Derived stats come from type and
// level; the persisted health, alive flag, state, and timestamp overlay
// them. Health above the recomputed maximum is clamped.
func Restore(id uuid.UUID, typeName, ownerNation string, level, health, experience int,
	state State, attackTarget *uuid.UUID, defendPos Position, stateChangedAt int64, alive bool) *Unit {
	if level < 1 {
		level = 1
	}
	t, _ := ParseType(typeName)
	stats := StatsFor(t, level)
	if health > stats.MaxHealth {
		health = stats.MaxHealth
	}
	if health < 0 {
		health = 0
	}
	u := &Unit{
		id:               id,
		unitType:         t,
		typeName:         strings.ToLower(strings.TrimSpace(typeName)),
		owner:            ownerNation,
		level:            level,
		health:           health,
		maxHealth:        stats.MaxHealth,
		attackDamage:     stats.AttackDamage,
		defense:          stats.Defense,
		attackSpeed:      stats.AttackSpeed,
		alive:            alive && health > 0,
		state:            state,
		attackTarget:     attackTarget,
		defendPos:        defendPos,
		stateChangedAt:   stateChangedAt,
		experience:       experience,
		experienceToNext: experienceForNext(level),
	}
	return u
}

func experienceForNext(level int) int {
	return level * 100
}

// ID returns the unit's immutable identifier.
func (u *Unit) ID() uuid.UUID { return u.id }

// Type returns the unit's combat archetype.
func (u *Unit) Type() Type { return u.unitType }

// TypeName returns the spawn name of the unit's type.
func (u *Unit) TypeName() string { return u.typeName }

// OwnerNation returns the owning nation's name reference.
func (u *Unit) OwnerNation() string { return u.owner }

// Level returns the unit's level.
func (u *Unit) Level() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.level
}

// Health returns current health.
func (u *Unit) Health() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.health
}

// MaxHealth returns maximum health at the current level.
func (u *Unit) MaxHealth() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.maxHealth
}

// AttackDamage returns the unit's attack damage.
func (u *Unit) AttackDamage() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.attackDamage
}

// Defense returns the unit's defense value.
func (u *Unit) Defense() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.defense
}

// AttackSpeed returns the unit's attack speed multiplier.
func (u *Unit) AttackSpeed() float64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.attackSpeed
}

// Alive reports whether the unit is alive. Death is terminal: once false,
// this never reads true again.
func (u *Unit) Alive() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.alive && u.health > 0
}

// HealthPercentage returns health as a fraction of maximum in [0, 1].
func (u *Unit) HealthPercentage() float64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.maxHealth <= 0 {
		return 0
	}
	return float64(u.health) / float64(u.maxHealth)
}

// State returns the current tactical state.
func (u *Unit) State() State {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.state
}

// AttackTarget returns the target id while attacking, nil otherwise.
func (u *Unit) AttackTarget() *uuid.UUID {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.attackTarget == nil {
		return nil
	}
	t := *u.attackTarget
	return &t
}

// DefendPosition returns the held position; meaningful while defending.
func (u *Unit) DefendPosition() Position {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.defendPos
}

// StateChangedAt returns the clock reading of the last state transition.
func (u *Unit) StateChangedAt() int64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.stateChangedAt
}

// Experience returns accumulated experience toward the next level.
func (u *Unit) Experience() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.experience
}

// ExperienceToNext returns the level-up threshold (level × 100).
func (u *Unit) ExperienceToNext() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.experienceToNext
}

// TakeDamage applies damage, flooring health at zero. The alive flag flips
// exactly once when health first reaches zero. Damage to a dead unit is a
// no-op. Returns whether the unit is still alive.
func (u *Unit) TakeDamage(amount int) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.alive {
		return false
	}
	u.health -= amount
	if u.health <= 0 {
		u.health = 0
		u.alive = false
		return false
	}
	return true
}

// Heal raises health up to the maximum. No-op on dead units.
func (u *Unit) Heal(amount int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.alive {
		return
	}
	u.health += amount
	if u.health > u.maxHealth {
		u.health = u.maxHealth
	}
}

// AddExperience accumulates experience and triggers at most one level-up
// per call, even if the added amount crosses several thresholds. Returns
// whether the unit leveled up.
func (u *Unit) AddExperience(exp int) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.alive {
		return false
	}
	u.experience += exp
	if u.experience >= u.experienceToNext {
		u.levelUp()
		return true
	}
	return false
}

// levelUp recomputes stats at the next level and heals by exactly the
// max-health delta: a damaged unit stays proportionally damaged.
// Caller holds u.mu.
func (u *Unit) levelUp() {
	u.level++
	oldMax := u.maxHealth
	stats := StatsFor(u.unitType, u.level)
	u.maxHealth = stats.MaxHealth
	u.attackDamage = stats.AttackDamage
	u.defense = stats.Defense
	u.attackSpeed = stats.AttackSpeed

	u.health += u.maxHealth - oldMax
	if u.health > u.maxHealth {
		u.health = u.maxHealth
	}

	u.experience = 0
	u.experienceToNext = experienceForNext(u.level)
}

// SetAttackTarget transitions the unit to ATTACKING against the target.
func (u *Unit) SetAttackTarget(target uuid.UUID, now int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	t := target
	u.attackTarget = &t
	u.state = StateAttacking
	u.stateChangedAt = now
}

// SetDefendPosition transitions the unit to DEFENDING at the position,
// clearing any attack target.
func (u *Unit) SetDefendPosition(pos Position, now int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.defendPos = pos
	u.state = StateDefending
	u.attackTarget = nil
	u.stateChangedAt = now
}

// SetIdle returns the unit to IDLE, clearing any attack target.
func (u *Unit) SetIdle(now int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.state = StateIdle
	u.attackTarget = nil
	u.stateChangedAt = now
}

// IsAttacking reports whether the unit is attacking with a live target.
func (u *Unit) IsAttacking() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.state == StateAttacking && u.attackTarget != nil
}

// IsDefending reports whether the unit is holding a position.
func (u *Unit) IsDefending() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.state == StateDefending
}

func (u *Unit) String() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	extra := ""
	switch u.state {
	case StateAttacking:
		if u.attackTarget != nil {
			extra = " [ATTACKING]"
		} else {
			extra = " [IDLE]"
		}
	case StateDefending:
		extra = fmt.Sprintf(" [DEFENDING %.0f,%.0f,%.0f]", u.defendPos.X, u.defendPos.Y, u.defendPos.Z)
	case StateReturning:
		extra = " [RETURNING]"
	default:
		extra = " [IDLE]"
	}
	return fmt.Sprintf("%s (Lv.%d) - %d/%d HP (%d ATK, %d DEF) - Nation: %s%s",
		u.typeName, u.level, u.health, u.maxHealth, u.attackDamage, u.defense, u.owner, extra)
}
