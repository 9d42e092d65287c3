package quickentity

import "testing"

func TestOrderedMap_preservesInsertionOrderAcrossUpdates(t *testing.T) {
	m := NewOrderedMap[int]()
	m.Set("c", 3)
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("a", 10) // updating an existing key must not move it

	got := m.Keys()
	want := []string{"c", "a", "b"}
	for i, k := range want {
		if got[i] != k {
			t.Fatalf("Keys() = %v, want %v", got, want)
		}
	}
	v, ok := m.Get("a")
	if !ok || v != 10 {
		t.Errorf("Get(a) = %v, %v, want 10, true", v, ok)
	}
}

func TestOrderedMap_jsonRoundTripPreservesOrder(t *testing.T) {
	m := NewOrderedMap[int]()
	m.Set("z", 1)
	m.Set("y", 2)
	m.Set("x", 3)

	raw, err := m.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON returned error: %v", err)
	}

	var decoded OrderedMap[int]
	if err := decoded.UnmarshalJSON(raw); err != nil {
		t.Fatalf("UnmarshalJSON returned error: %v", err)
	}
	got := decoded.Keys()
	want := []string{"z", "y", "x"}
	for i, k := range want {
		if got[i] != k {
			t.Fatalf("decoded Keys() = %v, want %v", got, want)
		}
	}
}

func TestOrderedMap_nilReceiverIsSafeForReads(t *testing.T) {
	var m *OrderedMap[int]
	if m.Len() != 0 {
		t.Errorf("Len() on nil map = %d, want 0", m.Len())
	}
	if _, ok := m.Get("missing"); ok {
		t.Errorf("Get() on nil map should report ok=false")
	}
	if m.Delete("missing") {
		t.Errorf("Delete() on nil map should report false")
	}
	if m.Keys() != nil {
		t.Errorf("Keys() on nil map should be nil, got %v", m.Keys())
	}
	calls := 0
	m.Range(func(string, int) bool { calls++; return true })
	if calls != 0 {
		t.Errorf("Range() on nil map should not invoke f")
	}
}

func TestEntityOrderedMap_preservesInsertionOrder(t *testing.T) {
	m := NewEntityOrderedMap[string]()
	m.Set(EntityID(3), "three")
	m.Set(EntityID(1), "one")
	m.Set(EntityID(2), "two")

	got := m.Keys()
	want := []EntityID{3, 1, 2}
	for i, k := range want {
		if got[i] != k {
			t.Fatalf("Keys() = %v, want %v", got, want)
		}
	}
}
