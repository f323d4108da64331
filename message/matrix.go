package message

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a timeless payload: it applies to any T, so it can always be
// sliced, but is never merged (atomic).
type Matrix struct {
	base
	Data *mat.Dense
}

// NewMatrix constructs a Matrix message at t.
func NewMatrix(t Tick, m *mat.Dense, desc Descriptors) *Matrix {
	return &Matrix{
		base: base{kind: KindMatrix, t: t, desc: desc.Clone()},
		Data: mat.DenseCopyOf(m),
	}
}

func (m *Matrix) Describe() string {
	rows, cols := m.Data.Dims()
	return fmt.Sprintf("Matrix, %dx%d, t=%d, desc:%s", rows, cols, m.t, m.desc.String())
}

func (m *Matrix) Clone() Message {
	return &Matrix{base: m.cloneBase(), Data: mat.DenseCopyOf(m.Data)}
}

func (m *Matrix) MergeWith(other Message) (bool, error) {
	if _, ok := other.(*Matrix); !ok {
		return false, violation("merge", fmt.Sprintf("cannot merge Matrix with %s", other.Kind()), "")
	}
	if other.Time() <= m.Time() {
		return false, violation("merge", "merge precondition violated: other.Time() <= self.Time()", m.Describe())
	}
	return false, nil
}

func (m *Matrix) CanSliceAt(t Tick, streamStartOffset Tick) bool { return true }

func (m *Matrix) SliceOut(t Tick, streamStartOffset Tick) (Message, bool, error) {
	if m.Time() == t {
		return m, true, nil
	}
	clone := m.Clone().(*Matrix)
	clone.setTime(t)
	return clone, false, nil
}

func (m *Matrix) ShiftInTime(delta int64) {
	m.setTime(Tick(int64(m.Time()) + delta))
}
