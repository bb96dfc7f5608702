package model

import (
	"path/filepath"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func trainedModel(t *testing.T) *LogisticRegression {
	t.Helper()
	m, err := NewLogisticRegression(2, 3)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	x := mat.NewDense(3, 2, []float64{1, 0, 0, 1, 1, 1})
	for i := 0; i < 10; i++ {
		if _, err := m.Step(x, []int{0, 1, 2}, 0.5); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	return m
}

func TestSnapshotIsADeepCopy(t *testing.T) {
	m := trainedModel(t)
	snap := m.Snapshot()
	w00 := snap.W[0]
	m.w.Set(0, 0, w00+100)
	if snap.W[0] != w00 {
		t.Fatal("snapshot shares storage with the model")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	m := trainedModel(t)
	x := mat.NewDense(4, 2, []float64{1, 0, 0, 1, 1, 1, -1, 2})
	want := m.Predict(x)

	path := filepath.Join(t.TempDir(), "best.gob.gz")
	if err := m.Snapshot().WriteFile(path); err != nil {
		t.Fatalf("write checkpoint: %v", err)
	}
	snap, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	restored, err := snap.Model()
	if err != nil {
		t.Fatalf("rebuild model: %v", err)
	}
	if got := restored.Predict(x); !reflect.DeepEqual(got, want) {
		t.Fatalf("restored predictions %v, want %v", got, want)
	}
}

func TestRestoreShapeMismatch(t *testing.T) {
	m, err := NewLogisticRegression(2, 3)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	other, err := NewLogisticRegression(4, 3)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	if err := m.Restore(other.Snapshot()); err == nil {
		t.Fatal("expected error restoring a mismatched snapshot")
	}
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	if _, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.gob.gz")); err == nil {
		t.Fatal("expected error for a missing checkpoint")
	}
}
