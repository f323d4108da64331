package message

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func newTestFeatures(t *testing.T, cols int, timestamps []Tick) *Features {
	t.Helper()
	data := make([]float64, 1*cols)
	for i := range data {
		data[i] = float64(i + 1)
	}
	m := mat.NewDense(1, cols, data)
	f, err := NewFeatures("utt-A", m, "f0", timestamps, nil)
	if err != nil {
		t.Fatalf("NewFeatures: %v", err)
	}
	return f
}

// TestFeaturesSliceS3 implements spec.md scenario S3.
func TestFeaturesSliceS3(t *testing.T) {
	f := newTestFeatures(t, 3, []Tick{10, 20, 30})

	if !f.CanSliceAt(20, 0) {
		t.Fatalf("expected CanSliceAt(20) to hold")
	}
	slice, headConsumed, err := f.SliceOut(20, 0)
	if err != nil {
		t.Fatalf("SliceOut: %v", err)
	}
	if headConsumed {
		t.Fatalf("head should retain column c2")
	}
	sf := slice.(*Features)
	if len(sf.Timestamps) != 2 || sf.Timestamps[0] != 10 || sf.Timestamps[1] != 20 {
		t.Errorf("unexpected slice timestamps: %v", sf.Timestamps)
	}
	_, cols := sf.Matrix.Dims()
	if cols != 2 {
		t.Errorf("expected slice to have 2 columns, got %d", cols)
	}

	if len(f.Timestamps) != 1 || f.Timestamps[0] != 30 {
		t.Errorf("unexpected remaining head timestamps: %v", f.Timestamps)
	}
	_, headCols := f.Matrix.Dims()
	if headCols != 1 {
		t.Errorf("expected head to retain 1 column, got %d", headCols)
	}
}

func TestFeaturesCanSliceAtRejectsNonTimestamp(t *testing.T) {
	f := newTestFeatures(t, 3, []Tick{10, 20, 30})
	if f.CanSliceAt(15, 0) {
		t.Fatalf("expected CanSliceAt(15) to be false: 15 is not an embedded timestamp")
	}
}

func TestFeaturesMergeRowMismatchIsFatal(t *testing.T) {
	a := newTestFeatures(t, 2, []Tick{10, 20})
	b, err := NewFeatures("utt-A", mat.NewDense(2, 1, []float64{1, 2}), "f0", []Tick{30}, nil)
	if err != nil {
		t.Fatalf("NewFeatures: %v", err)
	}
	if _, err := a.MergeWith(b); err == nil {
		t.Fatalf("expected a fatal error for mismatched row counts")
	}
}

func TestFeaturesMergeDifferentUtteranceRejects(t *testing.T) {
	a := newTestFeatures(t, 2, []Tick{10, 20})
	b, err := NewFeatures("utt-B", mat.NewDense(1, 1, []float64{1}), "f0", []Tick{30}, nil)
	if err != nil {
		t.Fatalf("NewFeatures: %v", err)
	}
	accepted, err := a.MergeWith(b)
	if err != nil {
		t.Fatalf("MergeWith: %v", err)
	}
	if accepted {
		t.Fatalf("expected merge across different utterance IDs to be rejected")
	}
}
