package quickentity

import (
	"encoding/json"
	"testing"
)

// minimalRTPair builds a two-entity factory/blueprint pair (a root plus a
// single child parented to it) by hand, exercising ConvertToQN end to end.
func minimalRTPair() (*RTFactory, *ResourceMeta, *RTBlueprint, *ResourceMeta) {
	factoryMeta := &ResourceMeta{
		HashReferenceData: []ResourceDependency{
			{Hash: "00AAAAAAAAAAAAAA", Flag: "1F"},
			{Hash: "00BBBBBBBBBBBBBB", Flag: "1F"},
		},
		HashResourceType: "TEMP",
		HashValue:        "00123456789ABCDE",
	}
	blueprintMeta := &ResourceMeta{
		HashReferenceData: []ResourceDependency{
			{Hash: "00CCCCCCCCCCCCCC", Flag: "1F"},
			{Hash: "00DDDDDDDDDDDDDD", Flag: "1F"},
		},
		HashResourceType: "TBLU",
		HashValue:        "00FEDCBA98765432",
	}

	rootRef := nullRTReference(-1)
	childRef := SEntityTemplateReference{EntityID: sentinelNullEntityID, ExternalSceneIndex: -1, EntityIndex: 0}

	factory := &RTFactory{
		RootEntityIndex: 0,
		SubEntities: []STemplateFactorySubEntity{
			{LogicalParent: rootRef, EntityTypeResourceIndex: 0},
			{LogicalParent: childRef, EntityTypeResourceIndex: 1},
		},
	}
	blueprint := &RTBlueprint{
		RootEntityIndex: 0,
		SubEntities: []STemplateBlueprintSubEntity{
			{LogicalParent: rootRef, EntityTypeResourceIndex: 0, EntityID: 1, EntityName: "Root"},
			{LogicalParent: childRef, EntityTypeResourceIndex: 1, EntityID: 2, EntityName: "Child"},
		},
	}
	return factory, factoryMeta, blueprint, blueprintMeta
}

func TestConvertToQN_minimalPair(t *testing.T) {
	factory, factoryMeta, blueprint, blueprintMeta := minimalRTPair()

	entity, err := ConvertToQN(factory, factoryMeta, blueprint, blueprintMeta)
	if err != nil {
		t.Fatalf("ConvertToQN returned error: %v", err)
	}

	if entity.Factory != "00123456789ABCDE" || entity.Blueprint != "00FEDCBA98765432" {
		t.Errorf("unexpected factory/blueprint hashes: %s / %s", entity.Factory, entity.Blueprint)
	}
	if entity.RootEntity != EntityID(1) {
		t.Errorf("root entity = %v, want 1", entity.RootEntity)
	}
	if entity.Entities.Len() != 2 {
		t.Fatalf("expected 2 entities, got %d", entity.Entities.Len())
	}

	root, ok := entity.Entities.Get(EntityID(1))
	if !ok || root.Name != "Root" || root.Factory != "00AAAAAAAAAAAAAA" || root.Blueprint != "00CCCCCCCCCCCCCC" {
		t.Errorf("unexpected root sub-entity: %+v", root)
	}
	if !root.Parent.IsNull() {
		t.Errorf("root parent should be null, got %+v", root.Parent)
	}

	child, ok := entity.Entities.Get(EntityID(2))
	if !ok || child.Name != "Child" || child.Factory != "00BBBBBBBBBBBBBB" || child.Blueprint != "00DDDDDDDDDDDDDD" {
		t.Errorf("unexpected child sub-entity: %+v", child)
	}
	parentID, ok := child.Parent.ShortID()
	if !ok || parentID != EntityID(1) {
		t.Errorf("child parent = %+v, ok=%v, want short ref to entity 1", child.Parent, ok)
	}
}

func TestConvertRoundTrip_QNtoRTtoQN(t *testing.T) {
	factory, factoryMeta, blueprint, blueprintMeta := minimalRTPair()

	entity, err := ConvertToQN(factory, factoryMeta, blueprint, blueprintMeta)
	if err != nil {
		t.Fatalf("ConvertToQN returned error: %v", err)
	}

	rtFactory, rtFactoryMeta, rtBlueprint, rtBlueprintMeta, err := ConvertToRT(entity)
	if err != nil {
		t.Fatalf("ConvertToRT returned error: %v", err)
	}

	entity2, err := ConvertToQN(rtFactory, rtFactoryMeta, rtBlueprint, rtBlueprintMeta)
	if err != nil {
		t.Fatalf("second ConvertToQN returned error: %v", err)
	}

	want, _ := json.Marshal(entity)
	got, _ := json.Marshal(entity2)
	if string(want) != string(got) {
		t.Errorf("QN -> RT -> QN round trip changed the document:\nwant %s\ngot  %s", want, got)
	}
}

func TestConvertToQN_rejectsMismatchedSubEntityCounts(t *testing.T) {
	factory, factoryMeta, blueprint, blueprintMeta := minimalRTPair()
	factory.SubEntities = factory.SubEntities[:1]

	_, err := ConvertToQN(factory, factoryMeta, blueprint, blueprintMeta)
	if !IsKind(err, TypeMismatch) {
		t.Fatalf("expected TypeMismatch, got %v", err)
	}
}

func TestConvertToQN_rejectsDuplicateEntityIDs(t *testing.T) {
	factory, factoryMeta, blueprint, blueprintMeta := minimalRTPair()
	blueprint.SubEntities[1].EntityID = blueprint.SubEntities[0].EntityID

	_, err := ConvertToQN(factory, factoryMeta, blueprint, blueprintMeta)
	if !IsKind(err, DuplicateEntityID) {
		t.Fatalf("expected DuplicateEntityID, got %v", err)
	}
}
