// Package codec encodes and decodes registry state as the line-oriented
// text format the save files use. Encode and decode are pure in-memory
// transformations; storage of the resulting blobs is the caller's concern.
//
// Decoding is deliberately forgiving: a bad header yields an empty result,
// and a malformed record is dropped with a log line rather than aborting
// the whole file. A half-readable save beats no save at startup.
package codec

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/talgya/dominion-engine/internal/nation"
)

// Header is the first line of a nation data blob.
const Header = "DOMINION_RISING_DATA_V1"

// EncodeNations serializes nations and the player→nation mapping. Records
// are emitted in sorted key order so identical state yields identical text.
func EncodeNations(nations map[string]*nation.Nation, playerNation map[uuid.UUID]string) string {
	var sb strings.Builder

	sb.WriteString(Header + "\n")
	sb.WriteString("NATIONS_START\n")

	keys := make([]string, 0, len(nations))
	for k := range nations {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		n := nations[k]
		sb.WriteString("NATION:" + n.Name() + "\n")
		sb.WriteString("LEADER:" + n.Leader().String() + "\n")
		sb.WriteString("BALANCE:" + strconv.FormatFloat(n.Balance(), 'g', -1, 64) + "\n")

		sb.WriteString("MEMBERS_START\n")
		// One atomic roster read, so a concurrent join can't split a
		// member from their role.
		roles := n.MemberRoles()
		members := make([]uuid.UUID, 0, len(roles))
		for m := range roles {
			members = append(members, m)
		}
		sort.Slice(members, func(i, j int) bool { return members[i].String() < members[j].String() })
		for _, m := range members {
			sb.WriteString("MEMBER:" + m.String() + ":" + roles[m].Name() + "\n")
		}
		sb.WriteString("MEMBERS_END\n")
		sb.WriteString("NATION_END\n")
	}
	sb.WriteString("NATIONS_END\n")

	sb.WriteString("PLAYER_MAPPINGS_START\n")
	players := make([]uuid.UUID, 0, len(playerNation))
	for p := range playerNation {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].String() < players[j].String() })
	for _, p := range players {
		sb.WriteString("MAPPING:" + p.String() + ":" + playerNation[p] + "\n")
	}
	sb.WriteString("PLAYER_MAPPINGS_END\n")

	return sb.String()
}

// DecodeNations parses a nation data blob. A missing or garbled header
// yields empty maps. A nation record without a parsable leader is dropped;
// a malformed member or mapping line is skipped.
func DecodeNations(data string) (map[string]*nation.Nation, map[uuid.UUID]string) {
	nations := make(map[string]*nation.Nation)
	playerNation := make(map[uuid.UUID]string)

	lines := strings.Split(data, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != Header {
		return nations, playerNation
	}

	i := 1
	for i < len(lines) {
		switch strings.TrimSpace(lines[i]) {
		case "NATIONS_START":
			i++
			for i < len(lines) && strings.TrimSpace(lines[i]) != "NATIONS_END" {
				if strings.HasPrefix(lines[i], "NATION:") {
					var advance int
					if n := decodeNationRecord(lines, i, &advance); n != nil {
						nations[strings.ToLower(n.Name())] = n
					}
					i = advance
					continue
				}
				i++
			}
		case "PLAYER_MAPPINGS_START":
			i++
			for i < len(lines) && strings.TrimSpace(lines[i]) != "PLAYER_MAPPINGS_END" {
				if rest, ok := strings.CutPrefix(lines[i], "MAPPING:"); ok {
					parts := strings.SplitN(rest, ":", 2)
					if len(parts) == 2 {
						if id, err := uuid.Parse(parts[0]); err == nil {
							playerNation[id] = parts[1]
						} else {
							slog.Warn("skipping malformed player mapping", "line", lines[i])
						}
					}
				}
				i++
			}
		}
		i++
	}

	return nations, playerNation
}

// decodeNationRecord parses one NATION:...NATION_END block starting at
// index i. advance receives the index just past the block. Returns nil
// when the record has no usable leader.
func decodeNationRecord(lines []string, i int, advance *int) *nation.Nation {
	name := strings.TrimPrefix(lines[i], "NATION:")
	i++

	var leader uuid.UUID
	var haveLeader bool
	balance := 0.0
	members := make(map[uuid.UUID]nation.Role)

	for i < len(lines) && strings.TrimSpace(lines[i]) != "NATION_END" {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "LEADER:"):
			if id, err := uuid.Parse(strings.TrimPrefix(line, "LEADER:")); err == nil {
				leader = id
				haveLeader = true
			}
		case strings.HasPrefix(line, "BALANCE:"):
			if b, err := strconv.ParseFloat(strings.TrimPrefix(line, "BALANCE:"), 64); err == nil {
				balance = b
			}
		case strings.TrimSpace(line) == "MEMBERS_START":
			i++
			for i < len(lines) && strings.TrimSpace(lines[i]) != "MEMBERS_END" {
				if rest, ok := strings.CutPrefix(lines[i], "MEMBER:"); ok {
					parts := strings.SplitN(rest, ":", 2)
					if len(parts) == 2 {
						id, err := uuid.Parse(parts[0])
						role, known := nation.ParseRole(parts[1])
						if err == nil && known {
							members[id] = role
						} else {
							slog.Warn("skipping malformed member record", "nation", name, "line", lines[i])
						}
					}
				}
				i++
			}
		}
		i++
	}
	*advance = i + 1

	if !haveLeader {
		slog.Warn("dropping nation record without leader", "nation", name)
		return nil
	}

	n := nation.New(name, leader)
	n.SetBalance(balance)
	for id, role := range members {
		if id != leader {
			n.AddMember(id, role)
		}
	}
	return n
}
