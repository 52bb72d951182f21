package unit

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/talgya/dominion-engine/internal/nation"
)

func testRegistry(t *testing.T) (*Registry, *nation.Registry, *nation.Nation) {
	t.Helper()
	nations := nation.NewRegistry()
	founder := uuid.New()
	if res := nations.Create("Roma", founder); !res.OK {
		t.Fatalf("Create failed: %s", res.Message)
	}
	var clock atomic.Int64
	units := NewRegistry(nations, func() int64 {
		return clock.Add(1)
	})
	return units, nations, nations.ByName("Roma")
}

func TestSpawn(t *testing.T) {
	units, _, roma := testRegistry(t)

	u, err := units.Spawn("soldier", roma, 0)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if u.Level() != 1 {
		t.Errorf("level = %d, want clamp to 1", u.Level())
	}
	if got := units.Get(u.ID()); got != u {
		t.Error("spawned unit must be retrievable by id")
	}
	if units.Count(roma) != 1 {
		t.Errorf("count = %d, want 1", units.Count(roma))
	}

	if _, err := units.Spawn("soldier", nil, 1); err == nil {
		t.Error("nil nation must error")
	}
	if _, err := units.Spawn("   ", roma, 1); err == nil {
		t.Error("blank type must error")
	}
}

func TestListFiltersDead(t *testing.T) {
	units, _, roma := testRegistry(t)

	alive, _ := units.Spawn("archer", roma, 1)
	dead, _ := units.Spawn("archer", roma, 1)
	units.Damage(dead.ID(), 1000)

	list := units.List(roma)
	if len(list) != 1 || list[0].ID() != alive.ID() {
		t.Errorf("List = %d units, want only the alive one", len(list))
	}
	if units.Total() != 1 {
		t.Errorf("Total = %d, want 1", units.Total())
	}
	// The dead unit is still registered until a cleanup sweep.
	if units.Get(dead.ID()) == nil {
		t.Error("dead unit must stay registered until cleanup")
	}
}

func TestUnitsInRange(t *testing.T) {
	units, _, roma := testRegistry(t)

	far, _ := units.Spawn("knight", roma, 1)
	units.CommandDefend(far.ID(), Position{X: 100})
	near, _ := units.Spawn("knight", roma, 1)
	units.CommandDefend(near.ID(), Position{X: 5})
	idle, _ := units.Spawn("soldier", roma, 1)

	got := units.UnitsInRange("Roma", Position{}, 10)
	ids := make(map[uuid.UUID]bool, len(got))
	for _, u := range got {
		ids[u.ID()] = true
	}
	if ids[far.ID()] {
		t.Error("a unit defending 100 away with maxDistance 10 must be excluded")
	}
	if !ids[near.ID()] {
		t.Error("a unit defending within range must be included")
	}
	if !ids[idle.ID()] {
		t.Error("an idle unit is always in range")
	}
}

func TestCommands(t *testing.T) {
	units, _, roma := testRegistry(t)
	u, _ := units.Spawn("mage", roma, 1)
	target := uuid.New()

	if !units.CommandAttack(u.ID(), target) {
		t.Fatal("attack command failed")
	}
	if !u.IsAttacking() {
		t.Error("unit must be attacking")
	}

	if !units.CommandDefend(u.ID(), Position{Y: 64}) {
		t.Fatal("defend command failed")
	}
	if !u.IsDefending() || u.AttackTarget() != nil {
		t.Error("defend must replace the attack order")
	}

	if !units.CommandIdle(u.ID()) {
		t.Fatal("idle command failed")
	}
	if u.State() != StateIdle {
		t.Error("unit must be idle")
	}

	if units.CommandAttack(uuid.New(), target) {
		t.Error("commands to unknown units must fail")
	}
	units.Damage(u.ID(), 1000)
	if units.CommandAttack(u.ID(), target) || units.CommandDefend(u.ID(), Position{}) || units.CommandIdle(u.ID()) {
		t.Error("commands to dead units must fail")
	}
}

func TestCommandsStampClock(t *testing.T) {
	units, _, roma := testRegistry(t)
	u, _ := units.Spawn("soldier", roma, 1)

	before := u.StateChangedAt()
	units.CommandDefend(u.ID(), Position{})
	if u.StateChangedAt() <= before {
		t.Error("a command must advance the state timestamp")
	}
}

func TestIdleAll(t *testing.T) {
	units, _, roma := testRegistry(t)

	a, _ := units.Spawn("soldier", roma, 1)
	b, _ := units.Spawn("archer", roma, 1)
	units.CommandAttack(a.ID(), uuid.New())
	units.CommandDefend(b.ID(), Position{X: 3})
	corpse, _ := units.Spawn("mage", roma, 1)
	units.Damage(corpse.ID(), 1000)

	if n := units.IdleAll("roma"); n != 2 {
		t.Errorf("IdleAll = %d, want 2 (dead units are skipped)", n)
	}
	if a.State() != StateIdle || b.State() != StateIdle {
		t.Error("all alive units must be idle")
	}
}

func TestCleanupDead(t *testing.T) {
	units, _, roma := testRegistry(t)

	survivor, _ := units.Spawn("soldier", roma, 1)
	for i := 0; i < 3; i++ {
		u, _ := units.Spawn("archer", roma, 1)
		units.Damage(u.ID(), 1000)
	}

	if n := units.CleanupDead(); n != 3 {
		t.Errorf("CleanupDead = %d, want 3", n)
	}
	if n := units.CleanupDead(); n != 0 {
		t.Errorf("second sweep = %d, want 0", n)
	}
	if units.Get(survivor.ID()) == nil {
		t.Error("alive units must survive the sweep")
	}
	if len(units.Snapshot()) != 1 {
		t.Errorf("snapshot = %d units, want 1", len(units.Snapshot()))
	}
}

func TestStats(t *testing.T) {
	units, nations, roma := testRegistry(t)
	carthage := uuid.New()
	nations.Create("Carthage", carthage)

	units.Spawn("soldier", roma, 1)
	units.Spawn("soldier", roma, 1)
	units.Spawn("archer", nations.ByName("Carthage"), 1)
	dead, _ := units.Spawn("mage", roma, 1)
	units.Damage(dead.ID(), 1000)

	stats := units.Stats()
	if stats.TotalUnits != 3 {
		t.Errorf("TotalUnits = %d, want 3", stats.TotalUnits)
	}
	if stats.NationsWithUnits != 2 {
		t.Errorf("NationsWithUnits = %d, want 2", stats.NationsWithUnits)
	}
	if stats.UnitsByType["soldier"] != 2 || stats.UnitsByType["archer"] != 1 {
		t.Errorf("UnitsByType = %v", stats.UnitsByType)
	}
	if units.CountByType(roma, "Soldier") != 2 {
		t.Error("CountByType must normalize the type name")
	}
}

func TestResolveOwner(t *testing.T) {
	units, nations, roma := testRegistry(t)
	u, _ := units.Spawn("knight", roma, 1)

	if units.ResolveOwner(u) != roma {
		t.Error("owner must resolve while the nation exists")
	}

	nations.Disband(roma.Leader())
	if units.ResolveOwner(u) != nil {
		t.Error("owner must resolve to nil after disband")
	}
	// The unit itself is untouched by the miss.
	if !u.Alive() || units.Get(u.ID()) == nil {
		t.Error("units outlive their nation")
	}
}

func TestAddExistingAndLoad(t *testing.T) {
	units, _, _ := testRegistry(t)

	restored := Restore(uuid.New(), "soldier", "Roma", 2, 10, 0, StateIdle, nil, Position{}, 0, true)
	if !units.AddExisting(restored) {
		t.Fatal("AddExisting failed")
	}
	if units.AddExisting(restored) {
		t.Error("duplicate ids must be rejected")
	}

	fresh := []*Unit{
		Restore(uuid.New(), "archer", "Roma", 1, 24, 0, StateIdle, nil, Position{}, 0, true),
	}
	units.Load(fresh)
	if units.Get(restored.ID()) != nil {
		t.Error("Load must replace prior state")
	}
	if units.Get(fresh[0].ID()) == nil {
		t.Error("loaded unit must be registered")
	}
}

// TestConcurrentUnitReaders holds a Unit pointer from Spawn and reads its
// state while commands, damage, and experience keep mutating it.
func TestConcurrentUnitReaders(t *testing.T) {
	units, _, roma := testRegistry(t)
	u, err := units.Spawn("knight", roma, 1)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := 0; i < 300; i++ {
			units.CommandAttack(u.ID(), uuid.New())
			units.CommandDefend(u.ID(), Position{X: float64(i)})
			units.GrantExperience(u.ID(), 3)
			units.Damage(u.ID(), 1)
			units.Heal(u.ID(), 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			_ = u.String()
			_ = u.State()
			_ = u.HealthPercentage()
			_ = u.Level()
			if target := u.AttackTarget(); target != nil {
				_ = target.String()
			}
			if u.Health() > u.MaxHealth() {
				t.Error("health must never exceed maximum")
				return
			}
		}
	}()
	wg.Wait()
}

func TestConcurrentSpawnAndCommand(t *testing.T) {
	units, _, roma := testRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				u, err := units.Spawn("soldier", roma, 1)
				if err != nil {
					t.Errorf("Spawn failed: %v", err)
					return
				}
				units.CommandDefend(u.ID(), Position{X: float64(j)})
				units.Damage(u.ID(), 5)
			}
		}()
	}
	wg.Wait()

	if units.Total() != 160 {
		t.Errorf("Total = %d, want 160", units.Total())
	}
}
