package quickentity

import (
	"encoding/json"
	"testing"
)

func singleEntityDocument(rootName string) *Entity {
	root := EntityID(1)
	entities := NewEntityOrderedMap[*SubEntity]()
	sub := NewSubEntity(NullRef(), rootName, "00123456789ABCDE", "00FEDCBA98765432")
	entities.Set(root, sub)
	return &Entity{
		Factory:            "00123456789ABCDE",
		Blueprint:          "00FEDCBA98765432",
		RootEntity:         root,
		Entities:           entities,
		SubType:            SubTypeTemplate,
		QuickEntityVersion: 3.1,
	}
}

func TestGeneratePatch_nameChangeYieldsSingleSetNameOp(t *testing.T) {
	original := singleEntityDocument("A")
	modified := singleEntityDocument("B")

	patch, err := GeneratePatch(original, modified)
	if err != nil {
		t.Fatalf("GeneratePatch returned error: %v", err)
	}
	if len(patch.Patch) != 1 {
		t.Fatalf("expected exactly one op, got %d: %+v", len(patch.Patch), patch.Patch)
	}
	op := patch.Patch[0]
	if op.Kind != OpSubEntity || op.SubOp == nil || op.SubOp.Kind != SubOpSetName || op.SubOp.StrValue != "B" {
		t.Fatalf("unexpected op: %+v", op)
	}
}

func TestApplyPatch_nameChangeRoundTrip(t *testing.T) {
	original := singleEntityDocument("A")
	modified := singleEntityDocument("B")

	patch, err := GeneratePatch(original, modified)
	if err != nil {
		t.Fatalf("GeneratePatch returned error: %v", err)
	}

	applied, err := ApplyPatch(original, patch)
	if err != nil {
		t.Fatalf("ApplyPatch returned error: %v", err)
	}

	wantJSON, _ := json.Marshal(modified)
	gotJSON, _ := json.Marshal(applied)
	if string(wantJSON) != string(gotJSON) {
		t.Errorf("applied document = %s, want %s", gotJSON, wantJSON)
	}

	origSub, _ := original.Entities.Get(EntityID(1))
	if origSub.Name != "A" {
		t.Errorf("ApplyPatch must not mutate the original document, but name became %q", origSub.Name)
	}
}

func TestApplyPatch_removeNonExistentEntityIsNotApplicable(t *testing.T) {
	original := singleEntityDocument("A")
	id := EntityID(999)
	patch := &Patch{
		TempHash: original.Factory, TbluHash: original.Blueprint,
		PatchVersion: currentPatchVersion,
		Patch:        []Op{{Kind: OpRemoveEntity, EntityID: &id}},
	}
	_, err := ApplyPatch(original, patch)
	if !IsKind(err, PatchNotApplicable) {
		t.Fatalf("expected PatchNotApplicable, got %v", err)
	}
}

func TestGeneratePatch_refusesDifferingQuickEntityVersion(t *testing.T) {
	original := singleEntityDocument("A")
	modified := singleEntityDocument("A")
	modified.QuickEntityVersion = 2.1

	_, err := GeneratePatch(original, modified)
	if !IsKind(err, VersionMismatch) {
		t.Fatalf("expected VersionMismatch, got %v", err)
	}
}

func TestGeneratePatch_addAndRemoveEntity(t *testing.T) {
	original := singleEntityDocument("A")
	modified := singleEntityDocument("A")

	newID := EntityID(2)
	newSub := NewSubEntity(ShortRef(original.RootEntity), "Child", "00AAAAAAAAAAAAAA", "00BBBBBBBBBBBBBB")
	modified.Entities.Set(newID, newSub)

	patch, err := GeneratePatch(original, modified)
	if err != nil {
		t.Fatalf("GeneratePatch returned error: %v", err)
	}
	if len(patch.Patch) != 1 || patch.Patch[0].Kind != OpAddEntity {
		t.Fatalf("expected a single addEntity op, got %+v", patch.Patch)
	}

	applied, err := ApplyPatch(original, patch)
	if err != nil {
		t.Fatalf("ApplyPatch returned error: %v", err)
	}
	if applied.Entities.Len() != 2 {
		t.Errorf("applied document should have 2 entities, has %d", applied.Entities.Len())
	}

	back, err := GeneratePatch(modified, original)
	if err != nil {
		t.Fatalf("GeneratePatch (reverse) returned error: %v", err)
	}
	if len(back.Patch) != 1 || back.Patch[0].Kind != OpRemoveEntity {
		t.Fatalf("expected a single removeEntityByID op, got %+v", back.Patch)
	}
}

func TestGeneratePatch_propertyAddChangeRemove(t *testing.T) {
	original := singleEntityDocument("A")
	modified := singleEntityDocument("A")

	origSub, _ := original.Entities.Get(original.RootEntity)
	origSub.Properties.Set("m_bVisible", Property{Type: "bool", Value: json.RawMessage("true")})
	origSub.Properties.Set("m_nOld", Property{Type: "int32", Value: json.RawMessage("1")})

	modSub, _ := modified.Entities.Get(modified.RootEntity)
	modSub.Properties.Set("m_bVisible", Property{Type: "bool", Value: json.RawMessage("false")})
	modSub.Properties.Set("m_sNew", Property{Type: "string", Value: json.RawMessage(`"hi"`)})

	ops, err := GeneratePatch(original, modified)
	if err != nil {
		t.Fatalf("GeneratePatch returned error: %v", err)
	}

	var sawValueChange, sawAdd, sawRemove bool
	for _, op := range ops.Patch {
		if op.Kind != OpSubEntity || op.SubOp == nil {
			continue
		}
		switch op.SubOp.Kind {
		case SubOpSetPropertyValue:
			if op.SubOp.Name == "m_bVisible" && string(op.SubOp.RawValue) == "false" {
				sawValueChange = true
			}
		case SubOpAddProperty:
			if op.SubOp.Name == "m_sNew" {
				sawAdd = true
			}
		case SubOpRemovePropertyByName:
			if op.SubOp.Name == "m_nOld" {
				sawRemove = true
			}
		}
	}
	if !sawValueChange || !sawAdd || !sawRemove {
		t.Errorf("expected value-change, add and remove ops, got %+v", ops.Patch)
	}

	applied, err := ApplyPatch(original, ops)
	if err != nil {
		t.Fatalf("ApplyPatch returned error: %v", err)
	}
	appliedSub, _ := applied.Entities.Get(applied.RootEntity)
	wantJSON, _ := json.Marshal(modSub)
	gotJSON, _ := json.Marshal(appliedSub)
	if string(wantJSON) != string(gotJSON) {
		t.Errorf("applied sub-entity = %s, want %s", gotJSON, wantJSON)
	}
}

func TestApplyPatch_eventAddAndRemoveCollapsesEmptyPins(t *testing.T) {
	entity := singleEntityDocument("A")
	sub, _ := entity.Entities.Get(entity.RootEntity)

	target := PlainRef(ShortRef(entity.RootEntity))
	addOp := Op{
		Kind:     OpSubEntity,
		EntityID: entityIDPtr(entity.RootEntity),
		SubOp:    &SubEntityOp{Kind: SubOpAddEvent, FromPin: "OnDamaged", ToPin: "OnFire", Target: &target},
	}
	patch := &Patch{TempHash: entity.Factory, TbluHash: entity.Blueprint, PatchVersion: currentPatchVersion, Patch: []Op{addOp}}

	applied, err := ApplyPatch(entity, patch)
	if err != nil {
		t.Fatalf("ApplyPatch returned error: %v", err)
	}
	appliedSub, _ := applied.Entities.Get(applied.RootEntity)
	if appliedSub.Events.Len() != 1 {
		t.Fatalf("expected one from-pin entry after add, got %d", appliedSub.Events.Len())
	}

	removeOp := Op{
		Kind:     OpSubEntity,
		EntityID: entityIDPtr(entity.RootEntity),
		SubOp:    &SubEntityOp{Kind: SubOpRemoveEvent, FromPin: "OnDamaged", ToPin: "OnFire", Target: &target},
	}
	patch2 := &Patch{TempHash: entity.Factory, TbluHash: entity.Blueprint, PatchVersion: currentPatchVersion, Patch: []Op{removeOp}}
	reapplied, err := ApplyPatch(applied, patch2)
	if err != nil {
		t.Fatalf("ApplyPatch (remove) returned error: %v", err)
	}
	reappliedSub, _ := reapplied.Entities.Get(reapplied.RootEntity)
	if reappliedSub.Events.Len() != 0 {
		t.Errorf("expected the from-pin entry to collapse to absent after removing its last target, got %d entries", reappliedSub.Events.Len())
	}

	_ = sub
}

func entityIDPtr(id EntityID) *EntityID { return &id }
