package align

import (
	"tickstream/message"
	"tickstream/stream"
)

// FeaturesCandidates exposes a Features slot's embedded timestamps as veto
// candidates: the only ticks a Features message can be sliced at.
type FeaturesCandidates struct {
	Accumulator *stream.Accumulator
	Head        func() *message.Features // returns the slot's current head, or nil
}

func (c FeaturesCandidates) SliceCandidatesBelow(t message.Tick) []message.Tick {
	head := c.Head()
	if head == nil {
		return nil
	}
	var out []message.Tick
	for _, ts := range head.Timestamps {
		if ts < t {
			out = append(out, ts)
		}
	}
	return out
}

// AudioCandidates exposes an Audio slot's phase lattice: every tick
// reachable by an integer number of samples below the current head's
// end-time.
type AudioCandidates struct {
	Head func() *message.Audio
}

func (c AudioCandidates) SliceCandidatesBelow(t message.Tick) []message.Tick {
	head := c.Head()
	if head == nil || head.TicksPerSample <= 0 {
		return nil
	}
	step := message.Tick(roundPositive(float64(head.TicksPerSample)))
	if step == 0 {
		return nil
	}
	var out []message.Tick
	for candidate := head.Time(); candidate > 0; candidate -= step {
		next := candidate - step
		if next >= t {
			continue
		}
		if next > 0 {
			out = append(out, next)
		}
		if len(out) >= 64 {
			break // enough candidates for one veto step; avoids O(n) sample walks
		}
	}
	return out
}

func roundPositive(f float64) int64 {
	return int64(f + 0.5)
}
