package codec

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/talgya/dominion-engine/internal/unit"
)

// unitFieldCount is the number of pipe-delimited fields in a unit record.
const unitFieldCount = 18

// EncodeUnit serializes one unit as a single pipe-delimited line.
//
// Field order: id|type|ownerNation|level|health|maxHealth|attackDamage|
// defense|attackSpeed|alive|state|attackTarget|defendX|defendY|defendZ|
// stateChangedAt|experience|experienceToNext
func EncodeUnit(u *unit.Unit) string {
	target := "null"
	if t := u.AttackTarget(); t != nil {
		target = t.String()
	}
	pos := u.DefendPosition()

	fields := []string{
		u.ID().String(),
		u.TypeName(),
		u.OwnerNation(),
		strconv.Itoa(u.Level()),
		strconv.Itoa(u.Health()),
		strconv.Itoa(u.MaxHealth()),
		strconv.Itoa(u.AttackDamage()),
		strconv.Itoa(u.Defense()),
		strconv.FormatFloat(u.AttackSpeed(), 'g', -1, 64),
		strconv.FormatBool(u.Alive()),
		u.State().Name(),
		target,
		strconv.FormatFloat(pos.X, 'g', -1, 64),
		strconv.FormatFloat(pos.Y, 'g', -1, 64),
		strconv.FormatFloat(pos.Z, 'g', -1, 64),
		strconv.FormatInt(u.StateChangedAt(), 10),
		strconv.Itoa(u.Experience()),
		strconv.Itoa(u.ExperienceToNext()),
	}
	return strings.Join(fields, "|")
}

// EncodeUnits serializes every alive unit, one line each, in id order.
// Dead units are never emitted.
func EncodeUnits(units []*unit.Unit) string {
	alive := make([]*unit.Unit, 0, len(units))
	for _, u := range units {
		if u != nil && u.Alive() {
			alive = append(alive, u)
		}
	}
	sort.Slice(alive, func(i, j int) bool { return alive[i].ID().String() < alive[j].ID().String() })

	var sb strings.Builder
	for _, u := range alive {
		sb.WriteString(EncodeUnit(u))
		sb.WriteString("\n")
	}
	return sb.String()
}

// DecodeUnit parses one unit record. The persisted maxHealth, attack,
// defense, speed, and experience threshold fields are not trusted: stats
// are recomputed from type and level, then health, alive flag, state, and
// timestamp are overlaid.
func DecodeUnit(line string) (*unit.Unit, bool) {
	parts := strings.Split(line, "|")
	if len(parts) < unitFieldCount {
		return nil, false
	}

	id, err := uuid.Parse(parts[0])
	if err != nil {
		return nil, false
	}
	typeName := parts[1]
	owner := parts[2]
	level, err := strconv.Atoi(parts[3])
	if err != nil {
		return nil, false
	}
	health, err := strconv.Atoi(parts[4])
	if err != nil {
		return nil, false
	}
	alive, err := strconv.ParseBool(parts[9])
	if err != nil {
		return nil, false
	}
	state, ok := unit.ParseState(parts[10])
	if !ok {
		return nil, false
	}

	var target *uuid.UUID
	if parts[11] != "null" {
		if t, err := uuid.Parse(parts[11]); err == nil {
			target = &t
		}
	}

	x, err := strconv.ParseFloat(parts[12], 64)
	if err != nil {
		return nil, false
	}
	y, err := strconv.ParseFloat(parts[13], 64)
	if err != nil {
		return nil, false
	}
	z, err := strconv.ParseFloat(parts[14], 64)
	if err != nil {
		return nil, false
	}
	stateChangedAt, err := strconv.ParseInt(parts[15], 10, 64)
	if err != nil {
		return nil, false
	}
	experience, err := strconv.Atoi(parts[16])
	if err != nil {
		return nil, false
	}

	u := unit.Restore(id, typeName, owner, level, health, experience,
		state, target, unit.Position{X: x, Y: y, Z: z}, stateChangedAt, alive)
	return u, true
}

// DecodeUnits parses a unit blob, one record per line. Malformed lines are
// logged and skipped; the rest of the batch loads.
func DecodeUnits(data string) []*unit.Unit {
	var out []*unit.Unit
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		u, ok := DecodeUnit(line)
		if !ok {
			slog.Warn("skipping malformed unit record", "line", line)
			continue
		}
		out = append(out, u)
	}
	return out
}
