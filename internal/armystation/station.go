// Package armystation gates access to a nation's army roster: only leaders
// and commanders may view or command units through a station.
package armystation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/talgya/dominion-engine/internal/nation"
	"github.com/talgya/dominion-engine/internal/unit"
)

// Station is a stateless permission gate over the two registries.
type Station struct {
	Nations *nation.Registry
	Units   *unit.Registry
}

// New creates a station bound to the given registries.
func New(nations *nation.Registry, units *unit.Registry) *Station {
	return &Station{Nations: nations, Units: units}
}

// CanAccess checks whether the player may use the army station. The player
// must be in a nation and hold the Leader or Commander role in it.
func (s *Station) CanAccess(player uuid.UUID) nation.Result {
	n := s.Nations.NationOf(player)
	if n == nil {
		return nation.Result{Message: "You must be in a nation to use this Army Station."}
	}
	role := n.MemberRole(player)
	if role != nation.Leader && role != nation.Commander {
		return nation.Result{Message: "You must be a Leader or Commander in your nation to use this Army Station."}
	}
	return nation.Result{OK: true, Message: "Access granted"}
}

// UnitsFor returns the alive units of the player's nation, or an empty
// list when the player has no nation or no access.
func (s *Station) UnitsFor(player uuid.UUID) []*unit.Unit {
	if !s.CanAccess(player).OK {
		return nil
	}
	n := s.Nations.NationOf(player)
	if n == nil {
		return nil
	}
	return s.Units.List(n)
}

// FormatUnitInfo renders a one-line unit summary for display.
func FormatUnitInfo(u *unit.Unit) string {
	return fmt.Sprintf("%s (Lv.%d) - %d/%d HP",
		capitalize(u.TypeName()), u.Level(), u.Health(), u.MaxHealth())
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
