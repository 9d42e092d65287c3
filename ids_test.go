package quickentity

import "testing"

func TestEntityID_String(t *testing.T) {
	id := EntityID(0x00C5322FFA2AB618)
	want := "00c5322ffa2ab618"
	if got := id.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestParseEntityID_roundTrip(t *testing.T) {
	id := EntityID(0x1234567890ABCDEF)
	parsed, err := ParseEntityID(id.String())
	if err != nil {
		t.Fatalf("ParseEntityID returned error: %v", err)
	}
	if parsed != id {
		t.Errorf("round-tripped id = %v, want %v", parsed, id)
	}
}

func TestParseEntityID_invalid(t *testing.T) {
	if _, err := ParseEntityID("not-hex"); err == nil {
		t.Errorf("expected an error parsing an invalid entity ID")
	}
}

func TestEntityID_MarshalText_usableAsMapKey(t *testing.T) {
	m := NewEntityOrderedMap[string]()
	id := EntityID(42)
	m.Set(id, "value")

	raw, err := m.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON returned error: %v", err)
	}

	var decoded EntityOrderedMap[string]
	if err := decoded.UnmarshalJSON(raw); err != nil {
		t.Fatalf("UnmarshalJSON returned error: %v", err)
	}
	v, ok := decoded.Get(id)
	if !ok || v != "value" {
		t.Errorf("round-tripped map missing key %v, got %q, ok=%v", id, v, ok)
	}
}
