package quickentity

import (
	"encoding/json"
	"testing"
)

func TestPlanFactoryDependencies_ordersAndDeduplicates(t *testing.T) {
	entity := singleEntityDocument("Root")
	entity.ExternalScenes = []string{"00EEEEEEEEEEEEEE"}

	root, _ := entity.Entities.Get(entity.RootEntity)
	root.Properties.Set("m_ref", Property{Type: "ZRuntimeResourceID", Value: json.RawMessage(`"00111111111111111"`)})

	childID := EntityID(2)
	child := NewSubEntity(ShortRef(entity.RootEntity), "Child", root.Factory, root.Blueprint)
	child.Properties.Set("m_refs", Property{Type: "TArray<ZRuntimeResourceID>", Value: json.RawMessage(`["00111111111111111","00222222222222222"]`)})
	entity.Entities.Set(childID, child)

	deps := planFactoryDependencies(entity)

	if len(deps) == 0 || deps[0].Hash != entity.Blueprint {
		t.Fatalf("expected the document's own blueprint hash first, got %+v", deps)
	}
	if deps[1].Hash != "00EEEEEEEEEEEEEE" {
		t.Errorf("expected the external scene hash second, got %+v", deps)
	}

	var seen = map[string]int{}
	for _, d := range deps {
		seen[d.Hash]++
	}
	if seen["00111111111111111"] != 1 {
		t.Errorf("expected the shared resource id dependency to be de-duplicated, got count %d", seen["00111111111111111"])
	}
	if seen["00222222222222222"] != 1 {
		t.Errorf("expected the array-sourced resource id dependency to appear once, got count %d", seen["00222222222222222"])
	}
}

func TestPlanBlueprintDependencies_externalScenesThenSubEntityBlueprints(t *testing.T) {
	entity := singleEntityDocument("Root")
	entity.ExternalScenes = []string{"00EEEEEEEEEEEEEE"}

	deps := planBlueprintDependencies(entity)
	if len(deps) != 2 {
		t.Fatalf("expected 2 dependencies, got %+v", deps)
	}
	if deps[0].Hash != "00EEEEEEEEEEEEEE" {
		t.Errorf("expected the external scene first, got %+v", deps[0])
	}
	if deps[1].Hash != entity.Blueprint {
		t.Errorf("expected the root sub-entity's blueprint hash second, got %+v", deps[1])
	}
}

func TestDependencyAlreadyPlanned_colonQualifiedHashUsesMD5Equivalent(t *testing.T) {
	qualified := ResourceDependency{Hash: "some-resource:modifier", Flag: "1F"}
	plain := md5EquivalentHash(qualified.Hash)

	if !dependencyAlreadyPlanned(qualified, []ResourceDependency{{Hash: plain, Flag: "1F"}}) {
		t.Errorf("expected a colon-qualified hash to match its md5-equivalent plain hash")
	}
	if dependencyAlreadyPlanned(qualified, []ResourceDependency{{Hash: "unrelated", Flag: "1F"}}) {
		t.Errorf("did not expect a match against an unrelated hash")
	}
}

func TestDependencyIndex_firstOccurrenceWins(t *testing.T) {
	deps := []ResourceDependency{
		{Hash: "A", Flag: "1F"},
		{Hash: "B", Flag: "1F"},
		{Hash: "A", Flag: "2F"},
	}
	idx := dependencyIndex(deps)
	if idx["A"] != 0 || idx["B"] != 1 {
		t.Errorf("unexpected index: %+v", idx)
	}
}
