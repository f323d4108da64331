package message

import "fmt"

// ConversationState is the clock of the utterance/convo envelope: every
// component requires one as an input slot. Invariant: LastChunkInConvo
// implies LastChunkInUtt — an utterance cannot carry over past the
// conversation that contains it.
type ConversationState struct {
	base
	UtteranceID      string
	LastChunkInUtt   bool
	ConvoID          string
	LastChunkInConvo bool
}

// NewConversationState constructs a ConversationState, rejecting the
// nonsensical combination of a closed conversation with an open utterance.
func NewConversationState(t Tick, utteranceID string, lastChunkInUtt bool, convoID string, lastChunkInConvo bool, desc Descriptors) (*ConversationState, error) {
	if lastChunkInConvo && !lastChunkInUtt {
		return nil, violation("construct", "last_chunk_in_convo=true but last_chunk_in_utt=false: utterances can't carry over past conversations", "")
	}
	return &ConversationState{
		base:             base{kind: KindConversationState, t: t, desc: desc.Clone()},
		UtteranceID:      utteranceID,
		LastChunkInUtt:   lastChunkInUtt,
		ConvoID:          convoID,
		LastChunkInConvo: lastChunkInConvo,
	}, nil
}

func (c *ConversationState) Describe() string {
	return fmt.Sprintf("ConversationState, uttId=%s, lastInUtt=%v, convoId=%s, lastInConvo=%v, t=%d",
		c.UtteranceID, c.LastChunkInUtt, c.ConvoID, c.LastChunkInConvo, c.t)
}

func (c *ConversationState) Clone() Message {
	return &ConversationState{
		base:             c.cloneBase(),
		UtteranceID:      c.UtteranceID,
		LastChunkInUtt:   c.LastChunkInUtt,
		ConvoID:          c.ConvoID,
		LastChunkInConvo: c.LastChunkInConvo,
	}
}

func (c *ConversationState) MergeWith(other Message) (bool, error) {
	o, ok := other.(*ConversationState)
	if !ok {
		return false, violation("merge", fmt.Sprintf("cannot merge ConversationState with %s", other.Kind()), "")
	}
	if other.Time() <= c.Time() {
		return false, violation("merge", "merge precondition violated: other.Time() <= self.Time()", c.Describe())
	}
	if !c.LastChunkInUtt && c.UtteranceID != o.UtteranceID {
		return false, violation("merge", "utterance not finished but new utterance ID differs", c.Describe()+" / "+o.Describe())
	}
	if c.LastChunkInUtt && c.UtteranceID == o.UtteranceID {
		return false, violation("merge", "utterance finished but new message has the same utterance ID", c.Describe()+" / "+o.Describe())
	}
	if !c.LastChunkInConvo && c.ConvoID != o.ConvoID {
		return false, violation("merge", "conversation not finished but new convo ID differs", c.Describe()+" / "+o.Describe())
	}
	if c.LastChunkInConvo && c.ConvoID == o.ConvoID {
		return false, violation("merge", "conversation finished but new message has the same convo ID", c.Describe()+" / "+o.Describe())
	}

	if c.LastChunkInUtt {
		// Utterance closed, can't merge.
		return false, nil
	}
	c.setTime(o.Time())
	c.LastChunkInUtt = o.LastChunkInUtt
	c.LastChunkInConvo = o.LastChunkInConvo
	return true, nil
}

func (c *ConversationState) CanSliceAt(t Tick, streamStartOffset Tick) bool { return true }

func (c *ConversationState) SliceOut(t Tick, streamStartOffset Tick) (Message, bool, error) {
	if c.Time() == t {
		return c, true, nil
	}
	sliced, err := NewConversationState(t, c.UtteranceID, false, c.ConvoID, false, c.desc)
	if err != nil {
		return nil, false, err
	}
	return sliced, false, nil
}

func (c *ConversationState) ShiftInTime(delta int64) {
	c.setTime(Tick(int64(c.Time()) + delta))
}
