package message

import "fmt"

// TimeMap associates an original-time interval with a per-route
// mapped-time interval, emitted by the Router so a companion Merger can
// reconstruct the pre-routing timeline. Atomic: never merges, only
// sliceable at its own Time.
type TimeMap struct {
	base
	StartOrig   Tick
	EndOrig     Tick
	StartMapped Tick
	EndMapped   Tick
	RouteIndex  int
}

// NewTimeMap constructs a TimeMap message at EndOrig.
func NewTimeMap(startOrig, endOrig, startMapped, endMapped Tick, routeIndex int, desc Descriptors) *TimeMap {
	return &TimeMap{
		base:        base{kind: KindTimeMap, t: endOrig, desc: desc.Clone()},
		StartOrig:   startOrig,
		EndOrig:     endOrig,
		StartMapped: startMapped,
		EndMapped:   endMapped,
		RouteIndex:  routeIndex,
	}
}

func (m *TimeMap) Describe() string {
	return fmt.Sprintf("TimeMap, orig=[%d,%d], mapped=[%d,%d], route=%d",
		m.StartOrig, m.EndOrig, m.StartMapped, m.EndMapped, m.RouteIndex)
}

func (m *TimeMap) Clone() Message {
	cp := *m
	cp.base = m.cloneBase()
	return &cp
}

func (m *TimeMap) MergeWith(other Message) (bool, error) {
	if _, ok := other.(*TimeMap); !ok {
		return false, violation("merge", fmt.Sprintf("cannot merge TimeMap with %s", other.Kind()), "")
	}
	if other.Time() <= m.Time() {
		return false, violation("merge", "merge precondition violated: other.Time() <= self.Time()", m.Describe())
	}
	return false, nil
}

func (m *TimeMap) CanSliceAt(t Tick, streamStartOffset Tick) bool { return m.Time() == t }

func (m *TimeMap) SliceOut(t Tick, streamStartOffset Tick) (Message, bool, error) {
	if !m.CanSliceAt(t, streamStartOffset) {
		return nil, false, violation("slice", fmt.Sprintf("cannot slice TimeMap at %d", t), m.Describe())
	}
	return m, true, nil
}

func (m *TimeMap) ShiftInTime(delta int64) {
	m.setTime(Tick(int64(m.Time()) + delta))
}
