package quickentity

import (
	"encoding/json"
	"testing"

	"go.uber.org/multierr"
)

func TestParallelMap_preservesOrder(t *testing.T) {
	items := make([]int, 200)
	for i := range items {
		items[i] = i
	}
	out, err := parallelMap(items, true, func(i int, v int) (int, error) {
		return v * 2, nil
	})
	if err != nil {
		t.Fatalf("parallelMap returned error: %v", err)
	}
	for i, v := range out {
		if v != i*2 {
			t.Fatalf("out[%d] = %d, want %d", i, v, i*2)
		}
	}
}

func TestParallelMap_propagatesFirstError(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	_, err := parallelMap(items, true, func(i int, v int) (int, error) {
		if v == 3 {
			return 0, newErr(TypeMismatch, "boom")
		}
		return v, nil
	})
	if !IsKind(err, TypeMismatch) {
		t.Fatalf("expected TypeMismatch, got %v", err)
	}
}

func TestParallelMap_sequentialAndParallelAgree(t *testing.T) {
	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}
	convert := func(i int, v int) (int, error) { return v*v + i, nil }

	seq, err := parallelMap(items, false, convert)
	if err != nil {
		t.Fatalf("sequential parallelMap returned error: %v", err)
	}
	par, err := parallelMap(items, true, convert)
	if err != nil {
		t.Fatalf("parallel parallelMap returned error: %v", err)
	}
	for i := range seq {
		if seq[i] != par[i] {
			t.Fatalf("sequential and parallel disagree at index %d: %d vs %d", i, seq[i], par[i])
		}
	}
}

func TestConvertToQN_parallelMatchesSequential(t *testing.T) {
	factory, factoryMeta, blueprint, blueprintMeta := minimalRTPair()

	seq, err := ConvertToQN(factory, factoryMeta, blueprint, blueprintMeta)
	if err != nil {
		t.Fatalf("sequential ConvertToQN returned error: %v", err)
	}
	par, err := ConvertToQN(factory, factoryMeta, blueprint, blueprintMeta, WithParallel(true))
	if err != nil {
		t.Fatalf("parallel ConvertToQN returned error: %v", err)
	}

	seqJSON, _ := json.Marshal(seq)
	parJSON, _ := json.Marshal(par)
	if string(seqJSON) != string(parJSON) {
		t.Errorf("parallel conversion differs from sequential:\nsequential: %s\nparallel:   %s", seqJSON, parJSON)
	}
}

func TestValidateRTPair_aggregatesMultipleFailures(t *testing.T) {
	_, _, blueprint, _ := minimalRTPair()
	factory := &RTFactory{RootEntityIndex: 0, SubEntities: nil}
	blueprint.SubEntities[1].EntityID = blueprint.SubEntities[0].EntityID
	blueprint.RootEntityIndex = 99

	err := ValidateRTPair(factory, blueprint)
	if err == nil {
		t.Fatal("expected a combined error")
	}
	if !IsKind(err, DuplicateEntityID) && !IsKind(err, IndexOutOfRange) && !IsKind(err, TypeMismatch) {
		t.Errorf("expected the combined error to report at least one known kind, got %v", err)
	}
	errs := multierr.Errors(err)
	if len(errs) != 3 {
		t.Fatalf("expected 3 aggregated failures, got %d: %v", len(errs), err)
	}
	for i, want := range []ErrorKind{DuplicateEntityID, TypeMismatch, IndexOutOfRange} {
		if !IsKind(errs[i], want) {
			t.Errorf("aggregated failure %d = %v, want kind %s", i, errs[i], want)
		}
	}
}
