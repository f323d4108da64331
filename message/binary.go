package message

import "fmt"

// Binary is an atomic opaque payload (e.g. an encoded audio chunk or an
// image) tagged with a format string.
type Binary struct {
	base
	Bytes  []byte
	Format string
}

// NewBinary constructs a Binary message at t.
func NewBinary(t Tick, data []byte, format string, desc Descriptors) *Binary {
	cp := make([]byte, len(data))
	copy(cp, data)
	return &Binary{
		base:   base{kind: KindBinary, t: t, desc: desc.Clone()},
		Bytes:  cp,
		Format: format,
	}
}

func (b *Binary) Describe() string {
	return fmt.Sprintf("Binary, %d bytes, format=%s, t=%d", len(b.Bytes), b.Format, b.t)
}

func (b *Binary) Clone() Message {
	cp := make([]byte, len(b.Bytes))
	copy(cp, b.Bytes)
	return &Binary{base: b.cloneBase(), Bytes: cp, Format: b.Format}
}

func (b *Binary) MergeWith(other Message) (bool, error) {
	if _, ok := other.(*Binary); !ok {
		return false, violation("merge", fmt.Sprintf("cannot merge Binary with %s", other.Kind()), "")
	}
	if other.Time() <= b.Time() {
		return false, violation("merge", "merge precondition violated: other.Time() <= self.Time()", b.Describe())
	}
	return false, nil
}

func (b *Binary) CanSliceAt(t Tick, streamStartOffset Tick) bool { return b.Time() == t }

func (b *Binary) SliceOut(t Tick, streamStartOffset Tick) (Message, bool, error) {
	if !b.CanSliceAt(t, streamStartOffset) {
		return nil, false, violation("slice", fmt.Sprintf("cannot slice Binary at %d", t), b.Describe())
	}
	return b, true, nil
}

func (b *Binary) ShiftInTime(delta int64) {
	b.setTime(Tick(int64(b.Time()) + delta))
}
