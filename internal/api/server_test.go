package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/talgya/dominion-engine/internal/armystation"
	"github.com/talgya/dominion-engine/internal/nation"
	"github.com/talgya/dominion-engine/internal/tuning"
	"github.com/talgya/dominion-engine/internal/unit"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	nations := nation.NewRegistry()
	units := unit.NewRegistry(nations, func() int64 { return 1000 })
	return &Server{
		Nations:  nations,
		Units:    units,
		Station:  armystation.New(nations, units),
		Tuning:   tuning.Default(),
		AdminKey: "test-key",
		Now:      func() int64 { return 1000 },
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("bad response body %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestAdminAuthRequired(t *testing.T) {
	s := testServer(t)
	handler := s.adminOnly(s.handleNationCommand(s.createNation))
	body := `{"player":"` + uuid.New().String() + `","name":"Roma"}`

	if rec := postJSON(t, handler, "/api/v1/nation/create", "", body); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status %d, want 401", rec.Code)
	}
	if rec := postJSON(t, handler, "/api/v1/nation/create", "wrong", body); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status %d, want 401", rec.Code)
	}
	if rec := postJSON(t, handler, "/api/v1/nation/create", "test-key", body); rec.Code != http.StatusOK {
		t.Errorf("valid token: status %d, want 200", rec.Code)
	}
}

func TestAdminDisabledWithoutKey(t *testing.T) {
	s := testServer(t)
	s.AdminKey = ""
	handler := s.adminOnly(s.handleNationCommand(s.createNation))

	rec := postJSON(t, handler, "/api/v1/nation/create", "anything", `{}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 when no admin key is configured", rec.Code)
	}
}

func TestCreateNationFlow(t *testing.T) {
	s := testServer(t)
	handler := s.handleNationCommand(s.createNation)
	player := uuid.New().String()

	rec := postJSON(t, handler, "/api/v1/nation/create", "", `{"player":"`+player+`","name":"Roma"}`)
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Fatalf("create failed: %v", body["message"])
	}

	// A business failure is still HTTP 200.
	rec = postJSON(t, handler, "/api/v1/nation/create", "", `{"player":"`+uuid.New().String()+`","name":"ROMA"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for a game-rule failure", rec.Code)
	}
	body = decodeBody(t, rec)
	if body["success"] != false {
		t.Error("duplicate name must report success=false")
	}

	rec = postJSON(t, handler, "/api/v1/nation/create", "", `{"player":"not-a-uuid","name":"X"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed player id: status %d, want 400", rec.Code)
	}
}

func TestNationDetailEndpoint(t *testing.T) {
	s := testServer(t)
	leader := uuid.New()
	s.Nations.Create("Roma", leader)
	s.Units.Spawn("soldier", s.Nations.ByName("Roma"), 1)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nation/roma", nil)
	rec := httptest.NewRecorder()
	s.handleNationDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["name"] != "Roma" || body["leader"] != leader.String() {
		t.Errorf("detail = %v", body)
	}
	if units, ok := body["units"].([]any); !ok || len(units) != 1 {
		t.Errorf("units = %v, want 1 line", body["units"])
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/nation/atlantis", nil)
	rec = httptest.NewRecorder()
	s.handleNationDetail(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing nation: status %d, want 404", rec.Code)
	}
}

func TestPlayerUnitsGated(t *testing.T) {
	s := testServer(t)
	leader, citizen := uuid.New(), uuid.New()
	s.Nations.Create("Roma", leader)
	s.Nations.Join("Roma", citizen)
	s.Units.Spawn("archer", s.Nations.ByName("Roma"), 1)

	get := func(player uuid.UUID) map[string]any {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/player/"+player.String()+"/units", nil)
		rec := httptest.NewRecorder()
		s.handlePlayerRoutes(rec, req)
		return decodeBody(t, rec)
	}

	if body := get(leader); body["success"] != true {
		t.Errorf("leader must see the roster: %v", body["message"])
	}
	if body := get(citizen); body["success"] != false {
		t.Error("citizens must be refused by the station gate")
	}
}

func TestSpawnEndpoint(t *testing.T) {
	s := testServer(t)
	player := uuid.New()
	s.Nations.Create("Roma", player)

	rec := postJSON(t, s.handleSpawn, "/api/v1/unit/spawn",
		"", `{"player":"`+player.String()+`","type":"knight","level":2}`)
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Fatalf("spawn failed: %v", body["message"])
	}
	if s.Units.Total() != 1 {
		t.Errorf("Total = %d, want 1", s.Units.Total())
	}

	rec = postJSON(t, s.handleSpawn, "/api/v1/unit/spawn",
		"", `{"player":"`+uuid.New().String()+`","type":"knight"}`)
	body = decodeBody(t, rec)
	if body["success"] != false {
		t.Error("nationless spawn must fail")
	}
}

func TestBroadcastCommand(t *testing.T) {
	s := testServer(t)
	player := uuid.New()
	s.Nations.Create("Roma", player)
	roma := s.Nations.ByName("Roma")

	near, _ := s.Units.Spawn("soldier", roma, 1)
	s.Units.CommandDefend(near.ID(), unit.Position{X: 10})
	far, _ := s.Units.Spawn("soldier", roma, 1)
	s.Units.CommandDefend(far.ID(), unit.Position{X: 500})

	rec := postJSON(t, s.handleBroadcast, "/api/v1/units/broadcast",
		"", `{"player":"`+player.String()+`","action":"idle","x":0,"y":0,"z":0}`)
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Fatalf("broadcast failed: %v", body["message"])
	}
	// CommandRange default is 50: the far defender stays untouched.
	if body["commanded"].(float64) != 1 {
		t.Errorf("commanded = %v, want 1", body["commanded"])
	}
	if near.State() != unit.StateIdle {
		t.Error("near unit must be idled")
	}
	if far.State() != unit.StateDefending {
		t.Error("out-of-range unit must keep its order")
	}

	// Every unit out of range: distinct failure message.
	s.Units.CommandDefend(near.ID(), unit.Position{X: 500})
	rec = postJSON(t, s.handleBroadcast, "/api/v1/units/broadcast",
		"", `{"player":"`+player.String()+`","action":"idle"}`)
	body = decodeBody(t, rec)
	if body["success"] != false || body["message"] != "No units in range to command" {
		t.Errorf("body = %v", body)
	}
}

func TestUnitDeltaEndpoints(t *testing.T) {
	s := testServer(t)
	player := uuid.New()
	s.Nations.Create("Roma", player)
	u, _ := s.Units.Spawn("soldier", s.Nations.ByName("Roma"), 1) // 30 HP

	rec := postJSON(t, s.handleDamage, "/api/v1/unit/damage",
		"", `{"unit_id":"`+u.ID().String()+`","amount":10}`)
	if body := decodeBody(t, rec); body["alive"] != true {
		t.Error("unit must survive partial damage")
	}

	rec = postJSON(t, s.handleHeal, "/api/v1/unit/heal",
		"", `{"unit_id":"`+u.ID().String()+`","amount":100}`)
	if body := decodeBody(t, rec); body["health"].(float64) != 30 {
		t.Errorf("health = %v, want clamped to 30", body["health"])
	}

	rec = postJSON(t, s.handleExperience, "/api/v1/unit/experience",
		"", `{"unit_id":"`+u.ID().String()+`","amount":150}`)
	body := decodeBody(t, rec)
	if body["leveled_up"] != true || body["level"].(float64) != 2 {
		t.Errorf("experience response = %v", body)
	}

	rec = postJSON(t, s.handleDismiss, "/api/v1/unit/dismiss",
		"", `{"unit_id":"`+u.ID().String()+`"}`)
	if body := decodeBody(t, rec); body["success"] != true {
		t.Error("dismiss must remove the unit")
	}
	if s.Units.Get(u.ID()) != nil {
		t.Error("dismissed unit must be gone")
	}
}

func TestStatusEndpoint(t *testing.T) {
	s := testServer(t)
	s.Nations.Create("Roma", uuid.New())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	s.handleStatus(rec, req)

	body := decodeBody(t, rec)
	if body["nations"].(float64) != 1 {
		t.Errorf("nations = %v", body["nations"])
	}
	if body["command_range"].(float64) != tuning.Default().CommandRange {
		t.Errorf("command_range = %v", body["command_range"])
	}
}
