package message

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Features carries a frame-rate matrix (rows x cols) with one embedded
// timestamp per column. Invariants: len(Timestamps) == cols > 0,
// Timestamps strictly increasing, Timestamps[last] == Time.
type Features struct {
	base
	UtteranceID  string
	Matrix       *mat.Dense
	FeatureNames string
	Timestamps   []Tick
}

// NewFeatures constructs a Features message, validating the invariants
// above.
func NewFeatures(utteranceID string, m *mat.Dense, featureNames string, timestamps []Tick, desc Descriptors) (*Features, error) {
	if len(timestamps) == 0 {
		return nil, violation("construct", "Features timestamps must not be empty", "")
	}
	_, cols := m.Dims()
	if cols != len(timestamps) {
		return nil, violation("construct", fmt.Sprintf("Features column count %d != timestamps length %d", cols, len(timestamps)), "")
	}
	for i := 1; i < len(timestamps); i++ {
		if timestamps[i] <= timestamps[i-1] {
			return nil, violation("construct", "Features timestamps must be strictly increasing", "")
		}
	}
	ts := make([]Tick, len(timestamps))
	copy(ts, timestamps)
	return &Features{
		base:         base{kind: KindFeatures, t: ts[len(ts)-1], desc: desc.Clone()},
		UtteranceID:  utteranceID,
		Matrix:       mat.DenseCopyOf(m),
		FeatureNames: featureNames,
		Timestamps:   ts,
	}, nil
}

func (f *Features) Describe() string {
	rows, cols := f.Matrix.Dims()
	return fmt.Sprintf("Features, %dx%d, names:%s, uttId:%s, t=%d, desc:%s",
		rows, cols, f.FeatureNames, f.UtteranceID, f.t, f.desc.String())
}

func (f *Features) Clone() Message {
	return &Features{
		base:         f.cloneBase(),
		UtteranceID:  f.UtteranceID,
		Matrix:       mat.DenseCopyOf(f.Matrix),
		FeatureNames: f.FeatureNames,
		Timestamps:   append([]Tick(nil), f.Timestamps...),
	}
}

func (f *Features) MergeWith(other Message) (bool, error) {
	o, ok := other.(*Features)
	if !ok {
		return false, violation("merge", fmt.Sprintf("cannot merge Features with %s", other.Kind()), "")
	}
	if other.Time() <= f.Time() {
		return false, violation("merge", "merge precondition violated: other.Time() <= self.Time()", f.Describe())
	}
	if f.UtteranceID != o.UtteranceID {
		return false, nil
	}
	fr, _ := f.Matrix.Dims()
	or, _ := o.Matrix.Dims()
	if fr != or {
		return false, violation("merge", fmt.Sprintf("Features row mismatch: %d vs %d", fr, or), f.Describe())
	}
	f.Matrix = concatCols(f.Matrix, o.Matrix)
	f.Timestamps = append(f.Timestamps, o.Timestamps...)
	f.setTime(o.Time())
	return true, nil
}

func (f *Features) CanSliceAt(t Tick, streamStartOffset Tick) bool {
	i := sort.Search(len(f.Timestamps), func(i int) bool { return f.Timestamps[i] >= t })
	return i < len(f.Timestamps) && f.Timestamps[i] == t
}

func (f *Features) SliceOut(t Tick, streamStartOffset Tick) (Message, bool, error) {
	if !f.CanSliceAt(t, streamStartOffset) {
		return nil, false, violation("slice", fmt.Sprintf("cannot slice Features at %d", t), f.Describe())
	}
	i := sort.Search(len(f.Timestamps), func(i int) bool { return f.Timestamps[i] >= t })
	nRemoved := i + 1

	slicedMat := sliceColsLeft(f.Matrix, nRemoved)
	slicedTs := append([]Tick(nil), f.Timestamps[:nRemoved]...)

	sliced, err := NewFeatures(f.UtteranceID, slicedMat, f.FeatureNames, slicedTs, f.desc)
	if err != nil {
		return nil, false, err
	}

	_, totalCols := f.Matrix.Dims()
	remaining := totalCols - nRemoved
	if remaining == 0 {
		return sliced, true, nil
	}
	f.Matrix = sliceColsRight(f.Matrix, nRemoved)
	f.Timestamps = f.Timestamps[nRemoved:]
	return sliced, false, nil
}

func (f *Features) ShiftInTime(delta int64) {
	f.setTime(Tick(int64(f.Time()) + delta))
	for i := range f.Timestamps {
		f.Timestamps[i] = Tick(int64(f.Timestamps[i]) + delta)
	}
}

// concatCols returns a new matrix with b's columns appended after a's.
func concatCols(a, b *mat.Dense) *mat.Dense {
	rows, ac := a.Dims()
	_, bc := b.Dims()
	out := mat.NewDense(rows, ac+bc, nil)
	col := make([]float64, rows)
	for j := 0; j < ac; j++ {
		mat.Col(col, j, a)
		out.SetCol(j, col)
	}
	for j := 0; j < bc; j++ {
		mat.Col(col, j, b)
		out.SetCol(ac+j, col)
	}
	return out
}

// sliceColsLeft returns a new matrix holding the first n columns of m.
func sliceColsLeft(m *mat.Dense, n int) *mat.Dense {
	rows, _ := m.Dims()
	out := mat.NewDense(rows, n, nil)
	col := make([]float64, rows)
	for j := 0; j < n; j++ {
		mat.Col(col, j, m)
		out.SetCol(j, col)
	}
	return out
}

// sliceColsRight returns a new matrix holding the columns of m starting at
// from (inclusive).
func sliceColsRight(m *mat.Dense, from int) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols-from, nil)
	col := make([]float64, rows)
	for j := from; j < cols; j++ {
		mat.Col(col, j, m)
		out.SetCol(j-from, col)
	}
	return out
}
