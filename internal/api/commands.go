package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/talgya/dominion-engine/internal/nation"
	"github.com/talgya/dominion-engine/internal/unit"
)

// commandRequest is the shared body shape for nation command endpoints.
type commandRequest struct {
	Player string  `json:"player"`
	Name   string  `json:"name,omitempty"`
	Target string  `json:"target,omitempty"`
	Amount float64 `json:"amount,omitempty"`
}

// handleNationCommand decodes the shared request shape, resolves the
// acting player, and renders the Result. Failures are ordinary 200
// responses with success=false — they are game outcomes, not HTTP errors.
func (s *Server) handleNationCommand(fn func(req commandRequest, player uuid.UUID) nation.Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req commandRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		player, err := uuid.Parse(req.Player)
		if err != nil {
			http.Error(w, "invalid player id", http.StatusBadRequest)
			return
		}

		res := fn(req, player)
		if res.OK {
			s.recordEvent(res.Message, "nation")
		}
		writeJSON(w, map[string]any{"success": res.OK, "message": res.Message})
	}
}

func (s *Server) createNation(req commandRequest, player uuid.UUID) nation.Result {
	return s.Nations.Create(req.Name, player)
}

func (s *Server) joinNation(req commandRequest, player uuid.UUID) nation.Result {
	return s.Nations.Join(req.Name, player)
}

func (s *Server) leaveNation(req commandRequest, player uuid.UUID) nation.Result {
	return s.Nations.Leave(player)
}

func (s *Server) disbandNation(req commandRequest, player uuid.UUID) nation.Result {
	return s.Nations.Disband(player)
}

func (s *Server) promoteMember(req commandRequest, player uuid.UUID) nation.Result {
	target, err := uuid.Parse(req.Target)
	if err != nil {
		return nation.Result{Message: "Invalid target player id"}
	}
	return s.Nations.Promote(player, target)
}

func (s *Server) demoteMember(req commandRequest, player uuid.UUID) nation.Result {
	target, err := uuid.Parse(req.Target)
	if err != nil {
		return nation.Result{Message: "Invalid target player id"}
	}
	return s.Nations.Demote(player, target)
}

func (s *Server) kickMember(req commandRequest, player uuid.UUID) nation.Result {
	target, err := uuid.Parse(req.Target)
	if err != nil {
		return nation.Result{Message: "Invalid target player id"}
	}
	return s.Nations.Kick(player, target)
}

func (s *Server) transferLeadership(req commandRequest, player uuid.UUID) nation.Result {
	target, err := uuid.Parse(req.Target)
	if err != nil {
		return nation.Result{Message: "Invalid target player id"}
	}
	return s.Nations.TransferLeadership(player, target)
}

func (s *Server) deposit(req commandRequest, player uuid.UUID) nation.Result {
	return s.Nations.Deposit(player, req.Amount)
}

func (s *Server) withdraw(req commandRequest, player uuid.UUID) nation.Result {
	return s.Nations.Withdraw(player, req.Amount)
}

// spawnRequest is the body for /api/v1/unit/spawn.
type spawnRequest struct {
	Player string `json:"player"`
	Type   string `json:"type"`
	Level  int    `json:"level,omitempty"`
}

func (s *Server) handleSpawn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req spawnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	player, err := uuid.Parse(req.Player)
	if err != nil {
		http.Error(w, "invalid player id", http.StatusBadRequest)
		return
	}

	n := s.Nations.NationOf(player)
	if n == nil {
		writeJSON(w, map[string]any{"success": false, "message": "You must be in a nation to spawn units"})
		return
	}

	u, err := s.Units.Spawn(req.Type, n, req.Level)
	if err != nil {
		writeJSON(w, map[string]any{"success": false, "message": err.Error()})
		return
	}
	s.recordEvent(fmt.Sprintf("%s spawned a %s for %s", player, u.TypeName(), n.Name()), "units")
	writeJSON(w, map[string]any{"success": true, "unit": unitJSON(u)})
}

// unitCommandRequest is the body for per-unit and broadcast commands.
type unitCommandRequest struct {
	UnitID string  `json:"unit_id,omitempty"`
	Player string  `json:"player,omitempty"` // broadcast: acting player
	Action string  `json:"action"`           // attack | defend | idle
	Target string  `json:"target_id,omitempty"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Z      float64 `json:"z,omitempty"`
}

func (s *Server) handleUnitCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req unitCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	unitID, err := uuid.Parse(req.UnitID)
	if err != nil {
		http.Error(w, "invalid unit id", http.StatusBadRequest)
		return
	}

	var ok bool
	switch req.Action {
	case "attack":
		target, err := uuid.Parse(req.Target)
		if err != nil {
			http.Error(w, "invalid target id", http.StatusBadRequest)
			return
		}
		ok = s.Units.CommandAttack(unitID, target)
	case "defend":
		ok = s.Units.CommandDefend(unitID, unit.Position{X: req.X, Y: req.Y, Z: req.Z})
	case "idle":
		ok = s.Units.CommandIdle(unitID)
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"success": ok})
}

// handleBroadcast applies a tactical command to every unit of the acting
// player's nation that is within command range of the given position.
func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req unitCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	player, err := uuid.Parse(req.Player)
	if err != nil {
		http.Error(w, "invalid player id", http.StatusBadRequest)
		return
	}

	n := s.Nations.NationOf(player)
	if n == nil {
		writeJSON(w, map[string]any{"success": false, "message": "You must be in a nation to command units"})
		return
	}

	pos := unit.Position{X: req.X, Y: req.Y, Z: req.Z}
	inRange := s.Units.UnitsInRange(n.Name(), pos, s.Tuning.CommandRange)
	if len(inRange) == 0 {
		writeJSON(w, map[string]any{"success": false, "message": "No units in range to command"})
		return
	}

	commanded := 0
	switch req.Action {
	case "attack":
		target, err := uuid.Parse(req.Target)
		if err != nil {
			http.Error(w, "invalid target id", http.StatusBadRequest)
			return
		}
		for _, u := range inRange {
			if s.Units.CommandAttack(u.ID(), target) {
				commanded++
			}
		}
	case "defend":
		for _, u := range inRange {
			if s.Units.CommandDefend(u.ID(), pos) {
				commanded++
			}
		}
	case "idle":
		for _, u := range inRange {
			if s.Units.CommandIdle(u.ID()) {
				commanded++
			}
		}
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}

	s.recordEvent(fmt.Sprintf("%s ordered %d units of %s to %s", player, commanded, n.Name(), req.Action), "units")
	writeJSON(w, map[string]any{"success": true, "commanded": commanded})
}

// unitDeltaRequest is the body for damage, heal, experience, and dismiss.
type unitDeltaRequest struct {
	UnitID string `json:"unit_id"`
	Amount int    `json:"amount,omitempty"`
}

func (s *Server) decodeDelta(w http.ResponseWriter, r *http.Request) (uuid.UUID, int, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return uuid.Nil, 0, false
	}
	var req unitDeltaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return uuid.Nil, 0, false
	}
	id, err := uuid.Parse(req.UnitID)
	if err != nil {
		http.Error(w, "invalid unit id", http.StatusBadRequest)
		return uuid.Nil, 0, false
	}
	return id, req.Amount, true
}

func (s *Server) handleDamage(w http.ResponseWriter, r *http.Request) {
	id, amount, ok := s.decodeDelta(w, r)
	if !ok {
		return
	}
	alive := s.Units.Damage(id, amount)
	writeJSON(w, map[string]any{"alive": alive})
}

func (s *Server) handleHeal(w http.ResponseWriter, r *http.Request) {
	id, amount, ok := s.decodeDelta(w, r)
	if !ok {
		return
	}
	s.Units.Heal(id, amount)
	u := s.Units.Get(id)
	if u == nil {
		writeJSON(w, map[string]any{"success": false})
		return
	}
	writeJSON(w, map[string]any{"success": true, "health": u.Health()})
}

func (s *Server) handleExperience(w http.ResponseWriter, r *http.Request) {
	id, amount, ok := s.decodeDelta(w, r)
	if !ok {
		return
	}
	leveled := s.Units.GrantExperience(id, amount)
	u := s.Units.Get(id)
	if u == nil {
		writeJSON(w, map[string]any{"success": false})
		return
	}
	if leveled {
		s.recordEvent(fmt.Sprintf("unit %s reached level %d", id, u.Level()), "units")
	}
	writeJSON(w, map[string]any{"success": true, "leveled_up": leveled, "level": u.Level()})
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	id, _, ok := s.decodeDelta(w, r)
	if !ok {
		return
	}
	removed := s.Units.Remove(id)
	if removed {
		s.recordEvent(fmt.Sprintf("unit %s dismissed", id), "units")
	}
	writeJSON(w, map[string]any{"success": removed})
}
