// Package align implements the time aligner: given a component's set of
// required input slots, it chooses the next common boundary T at which
// every slot can be sliced, bundles the resulting per-slot blocks, and hands
// them to the component's processing loop.
package align

import (
	"fmt"
	"sort"

	"tickstream/message"
	"tickstream/stream"
)

// Candidates supplies the set of ticks a slot could additionally be sliced
// at, below its own earliest end-time, when the naive minimum is vetoed by
// another slot. Audio contributes its phase lattice, Features its embedded
// timestamps; slots with no finer internal structure return nil.
type Candidates interface {
	SliceCandidatesBelow(t message.Tick) []message.Tick
}

// Slot pairs an accumulator with the optional candidate source used during
// veto retries. Advisory slots (e.g. Matrix-only streams) are excluded from
// the T search entirely: they never propose a candidate and can never veto
// one, and are included in the resulting Block only on a best-effort basis
// (silently omitted if they aren't sliceable at the T the other slots
// agreed on).
type Slot struct {
	Name        string
	Accumulator *stream.Accumulator
	Candidates  Candidates // may be nil
	Advisory    bool
}

// Block is one aligned set of per-slot messages, all ending at T.
type Block struct {
	T        message.Tick
	Messages map[string]message.Message
}

// ErrWaitingForData is returned by Next when no common T currently exists;
// it is the aligner's normal "not enough data yet" control-flow path, not a
// contract violation.
var ErrWaitingForData = fmt.Errorf("align: waiting for more data")

// Next searches for the next feasible alignment time T across every
// required slot and, if found, slices every slot's accumulator at T and
// returns the bundled block. It returns ErrWaitingForData (not a fatal
// error) if any non-advisory slot has no queued message yet, or the search
// runs out of candidates without every slot agreeing.
func Next(slots []Slot) (*Block, error) {
	if len(slots) == 0 {
		return nil, fmt.Errorf("align: no required slots configured")
	}

	t, ok, err := findFeasibleT(slots)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrWaitingForData
	}

	msgs := make(map[string]message.Message, len(slots))
	for _, s := range slots {
		if !s.Accumulator.CanFormBlockUpTo(t) {
			if s.Advisory {
				continue // best-effort: this slot simply sits out this block
			}
			return nil, fmt.Errorf("align: slot %q lost feasibility at T=%d between search and take", s.Name, t)
		}
		m, err := s.Accumulator.TakeBlockUpTo(t)
		if err != nil {
			return nil, fmt.Errorf("align: slot %q: %w", s.Name, err)
		}
		msgs[s.Name] = m
	}
	return &Block{T: t, Messages: msgs}, nil
}

// findFeasibleT implements §4.3: start at the minimum earliest-end-time
// across all slots, then walk down through candidate ticks contributed by
// whichever slot vetoes the current candidate, in lockstep, until every slot
// agrees or candidates run out.
func findFeasibleT(slots []Slot) (message.Tick, bool, error) {
	minEnd, ok := minEarliestEndTime(slots)
	if !ok {
		return 0, false, nil
	}

	tried := map[message.Tick]bool{}
	candidate := minEnd
	for {
		if tried[candidate] {
			// A veto cycle would mean two slots each reject every candidate
			// the other proposes; the search set is finite and strictly
			// decreasing, so this only triggers on a genuine dead end.
			return 0, false, nil
		}
		tried[candidate] = true

		vetoingSlot := -1
		for i, s := range slots {
			if s.Advisory {
				continue
			}
			if !s.Accumulator.CanFormBlockUpTo(candidate) {
				vetoingSlot = i
				break
			}
		}
		if vetoingSlot == -1 {
			return candidate, true, nil
		}

		next, ok := nextCandidateBelow(slots, candidate)
		if !ok {
			return 0, false, nil
		}
		candidate = next
	}
}

// nextCandidateBelow collects every slot's proposals for a T strictly below
// the rejected candidate (each slot's own earliest-end-time, plus whatever
// finer-grained ticks its Candidates source offers) and returns the largest
// one, so the search relaxes by the smallest possible step.
func nextCandidateBelow(slots []Slot, rejected message.Tick) (message.Tick, bool) {
	var proposals []message.Tick
	for _, s := range slots {
		if s.Advisory {
			continue
		}
		end, ok := s.Accumulator.EarliestEndTime()
		if ok && end < rejected {
			proposals = append(proposals, end)
		}
		if s.Candidates != nil {
			proposals = append(proposals, s.Candidates.SliceCandidatesBelow(rejected)...)
		}
	}
	if len(proposals) == 0 {
		return 0, false
	}
	sort.Slice(proposals, func(i, j int) bool { return proposals[i] > proposals[j] })
	return proposals[0], true
}

// minEarliestEndTime computes the minimum earliest-end-time across every
// non-advisory slot; advisory slots never gate or contribute to the search.
func minEarliestEndTime(slots []Slot) (message.Tick, bool) {
	var min message.Tick
	found := false
	for _, s := range slots {
		if s.Advisory {
			continue
		}
		end, ok := s.Accumulator.EarliestEndTime()
		if !ok {
			return 0, false
		}
		if !found || end < min {
			min = end
			found = true
		}
	}
	return min, found
}
