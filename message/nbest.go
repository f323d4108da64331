package message

import "fmt"

// NbestEntry is one candidate hypothesis within an Nbest message. Alignment
// must be strictly increasing and the same length as Words; the length of
// Confidences is not checked.
type NbestEntry struct {
	Words       []string
	Alignment   []Tick
	Text        string
	Confidences []float32
}

func (e NbestEntry) clone() NbestEntry {
	return NbestEntry{
		Words:       append([]string(nil), e.Words...),
		Alignment:   append([]Tick(nil), e.Alignment...),
		Text:        e.Text,
		Confidences: append([]float32(nil), e.Confidences...),
	}
}

// Nbest is an atomic, list-of-hypotheses payload. It merges with nothing
// and can only be sliced exactly at its own Time.
type Nbest struct {
	base
	Entries []NbestEntry
}

// NewNbest constructs an Nbest message, validating that each entry's
// Alignment is strictly increasing and length-consistent with Words.
// Confidences is copied as given, without a length check.
func NewNbest(t Tick, entries []NbestEntry, desc Descriptors) (*Nbest, error) {
	cloned := make([]NbestEntry, len(entries))
	for i, e := range entries {
		if len(e.Words) != len(e.Alignment) {
			return nil, violation("construct", fmt.Sprintf("Nbest entry %d: words/alignment length mismatch", i), "")
		}
		for j := 1; j < len(e.Alignment); j++ {
			if e.Alignment[j] <= e.Alignment[j-1] {
				return nil, violation("construct", fmt.Sprintf("Nbest entry %d: alignment not strictly increasing", i), "")
			}
		}
		cloned[i] = e.clone()
	}
	return &Nbest{
		base:    base{kind: KindNbest, t: t, desc: desc.Clone()},
		Entries: cloned,
	}, nil
}

func (n *Nbest) Describe() string {
	return fmt.Sprintf("Nbest, %d entries, t=%d, desc:%s", len(n.Entries), n.t, n.desc.String())
}

func (n *Nbest) Clone() Message {
	entries := make([]NbestEntry, len(n.Entries))
	for i, e := range n.Entries {
		entries[i] = e.clone()
	}
	return &Nbest{base: n.cloneBase(), Entries: entries}
}

func (n *Nbest) MergeWith(other Message) (bool, error) {
	if _, ok := other.(*Nbest); !ok {
		return false, violation("merge", fmt.Sprintf("cannot merge Nbest with %s", other.Kind()), "")
	}
	if other.Time() <= n.Time() {
		return false, violation("merge", "merge precondition violated: other.Time() <= self.Time()", n.Describe())
	}
	return false, nil
}

func (n *Nbest) CanSliceAt(t Tick, streamStartOffset Tick) bool { return n.Time() == t }

func (n *Nbest) SliceOut(t Tick, streamStartOffset Tick) (Message, bool, error) {
	if !n.CanSliceAt(t, streamStartOffset) {
		return nil, false, violation("slice", fmt.Sprintf("cannot slice Nbest at %d", t), n.Describe())
	}
	return n, true, nil
}

func (n *Nbest) ShiftInTime(delta int64) {
	n.setTime(Tick(int64(n.Time()) + delta))
	for i := range n.Entries {
		for j := range n.Entries[i].Alignment {
			n.Entries[i].Alignment[j] = Tick(int64(n.Entries[i].Alignment[j]) + delta)
		}
	}
}
