package quickentity

import (
	"encoding/json"
	"testing"
)

func TestRef_shortFormRoundTrip(t *testing.T) {
	r := ShortRef(EntityID(7))
	raw, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	var decoded Ref
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	id, ok := decoded.ShortID()
	if !ok || id != EntityID(7) {
		t.Errorf("decoded short ref = %v, ok=%v, want 7, true", id, ok)
	}
}

func TestRef_nullRoundTrip(t *testing.T) {
	raw, _ := json.Marshal(NullRef())
	if string(raw) != "null" {
		t.Errorf("NullRef marshaled to %s, want null", raw)
	}

	var decoded Ref
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if !decoded.IsNull() {
		t.Errorf("decoded ref should be null")
	}
}

func TestRef_fullFormCanonicalizesToShort(t *testing.T) {
	r := FullRefOf(EntityID(3), nil, nil)
	if r.IsFull() {
		t.Errorf("a full ref with no external scene or exposed entity should canonicalize to short")
	}
}

func TestRef_fullFormRoundTrip(t *testing.T) {
	scene := "0044B049FA35EE43"
	r := FullRefOf(EntityID(3), &scene, nil)
	raw, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	var decoded Ref
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	full, ok := decoded.Full()
	if !ok || full.EntityID != EntityID(3) || full.ExternalScene == nil || *full.ExternalScene != scene {
		t.Errorf("decoded full ref = %+v, ok=%v", full, ok)
	}
}

func TestRefMaybeConstantValue_plainRoundTrip(t *testing.T) {
	m := PlainRef(ShortRef(EntityID(1)))
	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	var decoded RefMaybeConstantValue
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if decoded.HasConstant() {
		t.Errorf("plain ref should not decode with a constant value")
	}
	id, ok := decoded.Ref().ShortID()
	if !ok || id != EntityID(1) {
		t.Errorf("decoded ref = %v, ok=%v", id, ok)
	}
}

func TestRefMaybeConstantValue_constantRoundTrip(t *testing.T) {
	m := ConstantRef(ShortRef(EntityID(2)), SimpleProperty{Type: "bool", Value: json.RawMessage("true")})
	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	var decoded RefMaybeConstantValue
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	value, ok := decoded.Constant()
	if !ok || value.Type != "bool" || string(value.Value) != "true" {
		t.Errorf("decoded constant = %+v, ok=%v", value, ok)
	}
}
