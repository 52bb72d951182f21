package codec

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/talgya/dominion-engine/internal/nation"
)

func buildNations(t *testing.T) (map[string]*nation.Nation, map[uuid.UUID]string) {
	t.Helper()

	solo := nation.New("Sparta", uuid.New())
	solo.SetBalance(42.5)

	roma := nation.New("Roma", uuid.New())
	roma.SetBalance(1250)
	for i := 0; i < 2; i++ {
		roma.AddMember(uuid.New(), nation.Commander)
	}
	for i := 0; i < 2; i++ {
		roma.AddMember(uuid.New(), nation.Citizen)
	}

	nations := map[string]*nation.Nation{
		"sparta": solo,
		"roma":   roma,
	}
	mappings := make(map[uuid.UUID]string)
	for _, n := range nations {
		for _, m := range n.Members() {
			mappings[m] = n.Name()
		}
	}
	return nations, mappings
}

func TestNationsRoundTrip(t *testing.T) {
	nations, mappings := buildNations(t)

	decoded, decodedMappings := DecodeNations(EncodeNations(nations, mappings))

	if len(decoded) != len(nations) {
		t.Fatalf("decoded %d nations, want %d", len(decoded), len(nations))
	}
	for key, want := range nations {
		got := decoded[key]
		if got == nil {
			t.Fatalf("nation %q missing after round trip", key)
		}
		if got.Name() != want.Name() || got.Leader() != want.Leader() {
			t.Errorf("%q: name/leader mismatch", key)
		}
		if got.Balance() != want.Balance() {
			t.Errorf("%q: balance = %f, want %f", key, got.Balance(), want.Balance())
		}
		if got.MemberCount() != want.MemberCount() {
			t.Errorf("%q: %d members, want %d", key, got.MemberCount(), want.MemberCount())
		}
		for _, m := range want.Members() {
			if got.MemberRole(m) != want.MemberRole(m) {
				t.Errorf("%q: role mismatch for member %s", key, m)
			}
		}
	}

	if len(decodedMappings) != len(mappings) {
		t.Fatalf("decoded %d mappings, want %d", len(decodedMappings), len(mappings))
	}
	for p, name := range mappings {
		if decodedMappings[p] != name {
			t.Errorf("mapping for %s = %q, want %q", p, decodedMappings[p], name)
		}
	}
}

func TestEncodeNationsDeterministic(t *testing.T) {
	nations, mappings := buildNations(t)
	first := EncodeNations(nations, mappings)
	for i := 0; i < 5; i++ {
		if EncodeNations(nations, mappings) != first {
			t.Fatal("identical state must encode to identical text")
		}
	}
}

func TestEncodeEmptyRegistry(t *testing.T) {
	text := EncodeNations(map[string]*nation.Nation{}, map[uuid.UUID]string{})
	if !strings.HasPrefix(text, Header+"\n") {
		t.Error("empty encode must still carry the header")
	}
	nations, mappings := DecodeNations(text)
	if len(nations) != 0 || len(mappings) != 0 {
		t.Error("empty round trip must stay empty")
	}
}

func TestDecodeBadHeader(t *testing.T) {
	for _, data := range []string{
		"",
		"DOMINION_RISING_DATA_V2\nNATIONS_START\nNATIONS_END\n",
		"garbage",
	} {
		nations, mappings := DecodeNations(data)
		if len(nations) != 0 || len(mappings) != 0 {
			t.Errorf("bad header %q must decode to empty maps", data)
		}
	}
}

func TestDecodeSkipsMalformedRecords(t *testing.T) {
	leader := uuid.New()
	data := Header + "\n" +
		"NATIONS_START\n" +
		"NATION:Broken\n" +
		"LEADER:not-a-uuid\n" +
		"NATION_END\n" +
		"NATION:Roma\n" +
		"LEADER:" + leader.String() + "\n" +
		"BALANCE:bogus\n" +
		"MEMBERS_START\n" +
		"MEMBER:also-not-a-uuid:CITIZEN\n" +
		"MEMBER:" + uuid.New().String() + ":KING\n" +
		"MEMBER:" + leader.String() + ":LEADER\n" +
		"MEMBERS_END\n" +
		"NATION_END\n" +
		"NATIONS_END\n" +
		"PLAYER_MAPPINGS_START\n" +
		"MAPPING:bad-uuid:Roma\n" +
		"MAPPING:" + leader.String() + ":Roma\n" +
		"PLAYER_MAPPINGS_END\n"

	nations, mappings := DecodeNations(data)

	if _, ok := nations["broken"]; ok {
		t.Error("a record with an unparsable leader must be dropped")
	}
	roma := nations["roma"]
	if roma == nil {
		t.Fatal("the valid record must still load")
	}
	if roma.Leader() != leader || roma.MemberCount() != 1 {
		t.Error("malformed uuid and unknown role lines must be skipped, valid ones kept")
	}
	if roma.Balance() != 0 {
		t.Errorf("unparsable balance must default to 0, got %f", roma.Balance())
	}
	if len(mappings) != 1 || mappings[leader] != "Roma" {
		t.Errorf("mappings = %v, want only the valid one", mappings)
	}
}

// TestEncodeDuringMembershipChanges encodes live registry state while a
// writer keeps admitting members, the shape the autosave loop produces.
// Every snapshot must decode cleanly with the leader role intact.
func TestEncodeDuringMembershipChanges(t *testing.T) {
	r := nation.NewRegistry()
	founder := uuid.New()
	r.Create("Roma", founder)

	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := 0; i < 200; i++ {
			r.Join("Roma", uuid.New())
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
			decoded, _ := DecodeNations(EncodeNations(r.All(), r.PlayerMappings()))
			roma := decoded["roma"]
			if roma == nil {
				t.Error("snapshot lost the nation")
				return
			}
			if roma.MemberRole(founder) != nation.Leader {
				t.Error("snapshot lost the leader role")
				return
			}
		}
	}()
	wg.Wait()

	decoded, mappings := DecodeNations(EncodeNations(r.All(), r.PlayerMappings()))
	if decoded["roma"].MemberCount() != 201 || len(mappings) != 201 {
		t.Errorf("final snapshot: %d members, %d mappings, want 201 each",
			decoded["roma"].MemberCount(), len(mappings))
	}
}

func TestDecodeNationNameWithColon(t *testing.T) {
	// Mapping values keep everything after the second colon intact.
	player := uuid.New()
	data := Header + "\n" +
		"PLAYER_MAPPINGS_START\n" +
		"MAPPING:" + player.String() + ":Kingdom: North\n" +
		"PLAYER_MAPPINGS_END\n"

	_, mappings := DecodeNations(data)
	if mappings[player] != "Kingdom: North" {
		t.Errorf("mapping = %q, want %q", mappings[player], "Kingdom: North")
	}
}
