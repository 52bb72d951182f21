// Package api exposes the engine over HTTP.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (the host's control plane).
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/talgya/dominion-engine/internal/armystation"
	"github.com/talgya/dominion-engine/internal/codec"
	"github.com/talgya/dominion-engine/internal/nation"
	"github.com/talgya/dominion-engine/internal/storage"
	"github.com/talgya/dominion-engine/internal/tuning"
	"github.com/talgya/dominion-engine/internal/unit"
)

// Server serves registry state and accepts commands over HTTP.
type Server struct {
	Nations  *nation.Registry
	Units    *unit.Registry
	Station  *armystation.Station
	DB       *storage.DB
	Tuning   tuning.Tuning
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
	Now      func() int64
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/nations", s.handleNations)
	mux.HandleFunc("/api/v1/nation/", s.handleNationDetail)
	mux.HandleFunc("/api/v1/player/", s.handlePlayerRoutes)
	mux.HandleFunc("/api/v1/units/stats", s.handleUnitStats)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/help", s.handleHelp)

	// Command endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/nation/create", s.adminOnly(s.handleNationCommand(s.createNation)))
	mux.HandleFunc("/api/v1/nation/join", s.adminOnly(s.handleNationCommand(s.joinNation)))
	mux.HandleFunc("/api/v1/nation/leave", s.adminOnly(s.handleNationCommand(s.leaveNation)))
	mux.HandleFunc("/api/v1/nation/disband", s.adminOnly(s.handleNationCommand(s.disbandNation)))
	mux.HandleFunc("/api/v1/nation/promote", s.adminOnly(s.handleNationCommand(s.promoteMember)))
	mux.HandleFunc("/api/v1/nation/demote", s.adminOnly(s.handleNationCommand(s.demoteMember)))
	mux.HandleFunc("/api/v1/nation/kick", s.adminOnly(s.handleNationCommand(s.kickMember)))
	mux.HandleFunc("/api/v1/nation/transfer", s.adminOnly(s.handleNationCommand(s.transferLeadership)))
	mux.HandleFunc("/api/v1/nation/deposit", s.adminOnly(s.handleNationCommand(s.deposit)))
	mux.HandleFunc("/api/v1/nation/withdraw", s.adminOnly(s.handleNationCommand(s.withdraw)))

	mux.HandleFunc("/api/v1/unit/spawn", s.adminOnly(s.handleSpawn))
	mux.HandleFunc("/api/v1/unit/command", s.adminOnly(s.handleUnitCommand))
	mux.HandleFunc("/api/v1/unit/damage", s.adminOnly(s.handleDamage))
	mux.HandleFunc("/api/v1/unit/heal", s.adminOnly(s.handleHeal))
	mux.HandleFunc("/api/v1/unit/experience", s.adminOnly(s.handleExperience))
	mux.HandleFunc("/api/v1/unit/dismiss", s.adminOnly(s.handleDismiss))
	mux.HandleFunc("/api/v1/units/broadcast", s.adminOnly(s.handleBroadcast))

	// Operational endpoints.
	mux.HandleFunc("/api/v1/cleanup", s.adminOnly(s.handleCleanup))
	mux.HandleFunc("/api/v1/save", s.adminOnly(s.handleSave))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		handler := corsMiddleware(mux)
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "command endpoints disabled (no DOMINION_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.Units.Stats()
	writeJSON(w, map[string]any{
		"name":               "Dominion Rising",
		"nations":            s.Nations.Count(),
		"units":              stats.TotalUnits,
		"nations_with_units": stats.NationsWithUnits,
		"command_range":      s.Tuning.CommandRange,
	})
}

type nationSummary struct {
	Name    string  `json:"name"`
	Leader  string  `json:"leader"`
	Members int     `json:"members"`
	Balance float64 `json:"balance"`
	Units   int     `json:"units"`
}

func (s *Server) handleNations(w http.ResponseWriter, r *http.Request) {
	all := s.Nations.All()
	out := make([]nationSummary, 0, len(all))
	for _, n := range all {
		out = append(out, nationSummary{
			Name:    n.Name(),
			Leader:  n.Leader().String(),
			Members: n.MemberCount(),
			Balance: n.Balance(),
			Units:   s.Units.Count(n),
		})
	}
	writeJSON(w, map[string]any{"nations": out})
}

func (s *Server) handleNationDetail(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/v1/nation/")
	if name == "" || strings.Contains(name, "/") {
		http.Error(w, "nation name required", http.StatusBadRequest)
		return
	}
	n := s.Nations.ByName(name)
	if n == nil {
		http.Error(w, "nation not found", http.StatusNotFound)
		return
	}

	type memberEntry struct {
		Player string `json:"player"`
		Role   string `json:"role"`
	}
	members := make([]memberEntry, 0, n.MemberCount())
	for player, role := range n.MemberRoles() {
		members = append(members, memberEntry{Player: player.String(), Role: role.DisplayName()})
	}

	units := s.Units.List(n)
	unitLines := make([]string, 0, len(units))
	for _, u := range units {
		unitLines = append(unitLines, armystation.FormatUnitInfo(u))
	}

	writeJSON(w, map[string]any{
		"name":    n.Name(),
		"leader":  n.Leader().String(),
		"balance": n.Balance(),
		"members": members,
		"units":   unitLines,
	})
}

// handlePlayerRoutes dispatches /api/v1/player/{uuid}/nation and
// /api/v1/player/{uuid}/units.
func (s *Server) handlePlayerRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/player/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		http.Error(w, "expected /api/v1/player/{uuid}/nation or /units", http.StatusBadRequest)
		return
	}
	player, err := uuid.Parse(parts[0])
	if err != nil {
		http.Error(w, "invalid player id", http.StatusBadRequest)
		return
	}

	switch parts[1] {
	case "nation":
		n := s.Nations.NationOf(player)
		if n == nil {
			writeJSON(w, map[string]any{"nation": nil})
			return
		}
		writeJSON(w, map[string]any{
			"nation": n.Name(),
			"role":   n.MemberRole(player).DisplayName(),
		})
	case "units":
		// Army-station gated: only leaders and commanders see the roster.
		access := s.Station.CanAccess(player)
		if !access.OK {
			writeJSON(w, map[string]any{"success": false, "message": access.Message})
			return
		}
		units := s.Station.UnitsFor(player)
		out := make([]map[string]any, 0, len(units))
		for _, u := range units {
			out = append(out, unitJSON(u))
		}
		writeJSON(w, map[string]any{"success": true, "units": out})
	default:
		http.Error(w, "unknown player route", http.StatusNotFound)
	}
}

func (s *Server) handleUnitStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Units.Stats())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		writeJSON(w, map[string]any{"events": []storage.Event{}})
		return
	}
	events, err := s.DB.RecentEvents(100)
	if err != nil {
		slog.Error("failed to load events", "error", err)
		http.Error(w, "failed to load events", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"events": events})
}

func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, nation.HelpText())
}

func unitJSON(u *unit.Unit) map[string]any {
	pos := u.DefendPosition()
	entry := map[string]any{
		"id":           u.ID().String(),
		"type":         u.TypeName(),
		"nation":       u.OwnerNation(),
		"level":        u.Level(),
		"health":       u.Health(),
		"max_health":   u.MaxHealth(),
		"attack":       u.AttackDamage(),
		"defense":      u.Defense(),
		"attack_speed": u.AttackSpeed(),
		"state":        u.State().Name(),
		"experience":   u.Experience(),
		"xp_to_next":   u.ExperienceToNext(),
		"display":      armystation.FormatUnitInfo(u),
	}
	if t := u.AttackTarget(); t != nil {
		entry["attack_target"] = t.String()
	}
	if u.IsDefending() {
		entry["defend_position"] = map[string]float64{"x": pos.X, "y": pos.Y, "z": pos.Z}
	}
	return entry
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

// recordEvent appends to the advisory event log when a DB is attached.
func (s *Server) recordEvent(description, category string) {
	if s.DB != nil {
		s.DB.AppendEvent(s.Now(), description, category)
	}
}

// saveState encodes both registries and writes them to the DB.
func (s *Server) saveState() error {
	nationsBlob := codec.EncodeNations(s.Nations.All(), s.Nations.PlayerMappings())
	unitsBlob := codec.EncodeUnits(s.Units.Snapshot())
	return s.DB.SaveState(nationsBlob, unitsBlob, s.Now())
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	if err := s.saveState(); err != nil {
		slog.Error("save failed", "error", err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"message": "state saved"})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	now := s.Now()
	snap := storage.Snapshot{
		Header:  storage.SnapshotHeader{Version: 1, SavedAt: now},
		Nations: codec.EncodeNations(s.Nations.All(), s.Nations.PlayerMappings()),
		Units:   codec.EncodeUnits(s.Units.Snapshot()),
	}
	path := storage.SnapshotPath(s.Tuning.SnapshotDir, now)
	if err := storage.WriteSnapshot(path, snap); err != nil {
		slog.Error("snapshot failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}
	s.recordEvent("snapshot written to "+path, "ops")
	writeJSON(w, map[string]any{"message": "snapshot saved", "path": path})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	removed := s.Units.CleanupDead()
	if removed > 0 {
		s.recordEvent(fmt.Sprintf("cleanup removed %d dead units", removed), "units")
	}
	writeJSON(w, map[string]any{"removed": removed})
}
