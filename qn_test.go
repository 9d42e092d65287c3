package quickentity

import (
	"encoding/json"
	"testing"
)

func TestEntity_jsonRoundTrip(t *testing.T) {
	entity := singleEntityDocument("Root")
	root, _ := entity.Entities.Get(entity.RootEntity)
	root.Properties.Set("m_bVisible", Property{Type: "bool", Value: json.RawMessage("true")})
	root.FactoryFlag = nil

	raw, err := json.Marshal(entity)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	var decoded Entity
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if decoded.Factory != entity.Factory || decoded.Blueprint != entity.Blueprint {
		t.Errorf("decoded hashes = %s/%s, want %s/%s", decoded.Factory, decoded.Blueprint, entity.Factory, entity.Blueprint)
	}
	if decoded.Entities.Len() != 1 {
		t.Fatalf("expected 1 entity, got %d", decoded.Entities.Len())
	}
	decodedRoot, ok := decoded.Entities.Get(decoded.RootEntity)
	if !ok || decodedRoot.Name != "Root" {
		t.Fatalf("unexpected decoded root: %+v, ok=%v", decodedRoot, ok)
	}
	prop, ok := decodedRoot.Properties.Get("m_bVisible")
	if !ok || string(prop.Value) != "true" {
		t.Errorf("decoded property m_bVisible = %+v, ok=%v", prop, ok)
	}
	if err := decoded.Validate(); err != nil {
		t.Errorf("decoded document failed Validate: %v", err)
	}
}

func TestEntity_unmarshalInitializesEmptyEntitiesMap(t *testing.T) {
	raw := []byte(`{"factory":"A","blueprint":"B","rootEntity":"0000000000000001","entities":{},"subType":"template","quickEntityVersion":3.1}`)

	var decoded Entity
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if decoded.Entities == nil {
		t.Fatalf("Entities must never be nil after unmarshal")
	}
	if decoded.Entities.Len() != 0 {
		t.Errorf("expected empty entities map, got %d", decoded.Entities.Len())
	}
}

func TestEntity_validateRejectsMissingRoot(t *testing.T) {
	entity := singleEntityDocument("Root")
	entity.RootEntity = EntityID(999)

	if err := entity.Validate(); !IsKind(err, UnknownEntityID) {
		t.Fatalf("expected UnknownEntityID, got %v", err)
	}
}

func TestSubEntity_emptyCollectionsOmittedFromWire(t *testing.T) {
	sub := NewSubEntity(NullRef(), "Leaf", "00AAAAAAAAAAAAAA", "00BBBBBBBBBBBBBB")

	raw, err := json.Marshal(sub)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asMap); err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"properties", "events", "inputCopying", "outputCopying", "propertyAliases", "exposedEntities", "exposedInterfaces", "subsets", "platformSpecificProperties"} {
		if _, present := asMap[field]; present {
			t.Errorf("expected empty field %q to be omitted from the wire form, got %s", field, raw)
		}
	}
}
