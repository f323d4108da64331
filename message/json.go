package message

import (
	"encoding/json"
	"fmt"
)

// JSON is an atomic structured-document payload.
type JSON struct {
	base
	Document map[string]any
}

// NewJSON constructs a JSON message at t.
func NewJSON(t Tick, document map[string]any, desc Descriptors) *JSON {
	cp := make(map[string]any, len(document))
	for k, v := range document {
		cp[k] = v
	}
	return &JSON{
		base:     base{kind: KindJSON, t: t, desc: desc.Clone()},
		Document: cp,
	}
}

func (j *JSON) Describe() string {
	b, err := json.Marshal(j.Document)
	if err != nil {
		return fmt.Sprintf("Json, t=%d, <unmarshalable document: %v>", j.t, err)
	}
	return fmt.Sprintf("Json, t=%d, document=%s", j.t, string(b))
}

func (j *JSON) Clone() Message {
	cp := make(map[string]any, len(j.Document))
	for k, v := range j.Document {
		cp[k] = v
	}
	return &JSON{base: j.cloneBase(), Document: cp}
}

func (j *JSON) MergeWith(other Message) (bool, error) {
	if _, ok := other.(*JSON); !ok {
		return false, violation("merge", fmt.Sprintf("cannot merge Json with %s", other.Kind()), "")
	}
	if other.Time() <= j.Time() {
		return false, violation("merge", "merge precondition violated: other.Time() <= self.Time()", j.Describe())
	}
	return false, nil
}

func (j *JSON) CanSliceAt(t Tick, streamStartOffset Tick) bool { return j.Time() == t }

func (j *JSON) SliceOut(t Tick, streamStartOffset Tick) (Message, bool, error) {
	if !j.CanSliceAt(t, streamStartOffset) {
		return nil, false, violation("slice", fmt.Sprintf("cannot slice Json at %d", t), j.Describe())
	}
	return j, true, nil
}

func (j *JSON) ShiftInTime(delta int64) {
	j.setTime(Tick(int64(j.Time()) + delta))
}
