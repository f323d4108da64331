package message

import (
	"fmt"
	"math"
)

// Audio carries raw samples at a fixed sample rate. One sample spans
// TicksPerSample ticks; for a well-formed stream, Time - prevTime equals
// round(TicksPerSample * len(Samples)).
type Audio struct {
	base
	Samples        []float32
	SampleRate     float32
	TicksPerSample float32
}

// NewAudio constructs an Audio message. Samples must be non-empty.
func NewAudio(t Tick, samples []float32, sampleRate, ticksPerSample float32, desc Descriptors) (*Audio, error) {
	if len(samples) == 0 {
		return nil, violation("construct", "Audio payload must not be empty", "")
	}
	cp := make([]float32, len(samples))
	copy(cp, samples)
	return &Audio{
		base:           base{kind: KindAudio, t: t, desc: desc.Clone()},
		Samples:        cp,
		SampleRate:     sampleRate,
		TicksPerSample: ticksPerSample,
	}, nil
}

func (a *Audio) Describe() string {
	return fmt.Sprintf("Audio, %d samples, sampleRate %v, ticksPerSample %v, t=%d, desc:%s",
		len(a.Samples), a.SampleRate, a.TicksPerSample, a.t, a.desc.String())
}

func (a *Audio) Clone() Message {
	cp := make([]float32, len(a.Samples))
	copy(cp, a.Samples)
	return &Audio{base: a.cloneBase(), Samples: cp, SampleRate: a.SampleRate, TicksPerSample: a.TicksPerSample}
}

func (a *Audio) MergeWith(other Message) (bool, error) {
	o, ok := other.(*Audio)
	if !ok {
		return false, violation("merge", fmt.Sprintf("cannot merge Audio with %s", other.Kind()), "")
	}
	if other.Time() <= a.Time() {
		return false, violation("merge", "merge precondition violated: other.Time() <= self.Time()", a.Describe())
	}
	if a.SampleRate != o.SampleRate || a.TicksPerSample != o.TicksPerSample || a.desc.String() != o.desc.String() {
		return false, nil
	}
	a.Samples = append(a.Samples, o.Samples...)
	a.setTime(o.Time())
	return true, nil
}

func (a *Audio) CanSliceAt(t Tick, streamStartOffset Tick) bool {
	tps := int64(math.Round(float64(a.TicksPerSample)))
	if tps <= 0 {
		return false
	}
	return (int64(a.Time())-int64(t))%tps == 0
}

func (a *Audio) SliceOut(t Tick, streamStartOffset Tick) (Message, bool, error) {
	if !a.CanSliceAt(t, streamStartOffset) {
		return nil, false, violation("slice", fmt.Sprintf("cannot slice Audio at %d", t), a.Describe())
	}
	msgLen := a.Time() - streamStartOffset
	toSlice := t - streamStartOffset
	var n int
	if a.Time() == t {
		n = len(a.Samples)
	} else if msgLen == 0 {
		n = 0
	} else {
		frac := float64(toSlice) / float64(msgLen)
		n = int(math.Round(frac * float64(len(a.Samples))))
	}
	if n < 0 {
		n = 0
	}
	if n > len(a.Samples) {
		n = len(a.Samples)
	}
	sliced, err := NewAudio(t, a.Samples[:n], a.SampleRate, a.TicksPerSample, a.desc)
	if err != nil {
		return nil, false, err
	}
	remaining := len(a.Samples) - n
	if remaining == 0 {
		return sliced, true, nil
	}
	a.Samples = a.Samples[n:]
	return sliced, false, nil
}

func (a *Audio) ShiftInTime(delta int64) {
	a.setTime(Tick(int64(a.Time()) + delta))
}
