// Package stream implements the per-input stream accumulator: an ordered
// queue of messages with strictly increasing end-times, plus the bookkeeping
// needed to decide whether a block can be formed up to a given tick and to
// produce that block.
package stream

import (
	"fmt"

	"tickstream/message"
)

// Accumulator is one input slot's FIFO of messages in monotone time. It
// generalizes the accumulate-then-slice pattern used for raw audio
// buffering to any message.Message payload kind.
type Accumulator struct {
	queue             []message.Message
	streamStartOffset message.Tick
}

// New creates an accumulator whose stream begins immediately after
// streamStartOffset — the tick preceding the first message this stream will
// ever cover.
func New(streamStartOffset message.Tick) *Accumulator {
	return &Accumulator{streamStartOffset: streamStartOffset}
}

// StreamStartOffset reports the tick preceding the oldest not-yet-consumed
// coverage of this stream.
func (a *Accumulator) StreamStartOffset() message.Tick { return a.streamStartOffset }

// Len reports the number of distinct messages currently queued.
func (a *Accumulator) Len() int { return len(a.queue) }

// Push attempts to merge msg onto the queue's tail; if the tail rejects it
// (atomic kind, descriptor mismatch, or a ConversationState whose utterance
// already closed), msg is enqueued as a new message. A non-nil error
// indicates a contract violation — e.g. a non-monotone push, or a
// ConversationState whose utterance/convo ID changed mid-utterance — and is
// always fatal.
func (a *Accumulator) Push(msg message.Message) error {
	if len(a.queue) == 0 {
		a.queue = append(a.queue, msg)
		return nil
	}
	tail := a.queue[len(a.queue)-1]
	accepted, err := tail.MergeWith(msg)
	if err != nil {
		return fmt.Errorf("accumulator push: %w", err)
	}
	if !accepted {
		a.queue = append(a.queue, msg)
	}
	return nil
}

// EarliestEndTime returns the end-time of the queue's head message, if any.
func (a *Accumulator) EarliestEndTime() (message.Tick, bool) {
	if len(a.queue) == 0 {
		return 0, false
	}
	return a.queue[0].Time(), true
}

// CanFormBlockUpTo reports whether the queue can produce a block ending
// exactly at T: T must not exceed the tail's end-time, and the head must be
// sliceable at T.
func (a *Accumulator) CanFormBlockUpTo(t message.Tick) bool {
	if len(a.queue) == 0 {
		return false
	}
	back := a.queue[len(a.queue)-1]
	if t > back.Time() {
		return false
	}
	return a.queue[0].CanSliceAt(t, a.streamStartOffset)
}

// TakeBlockUpTo slices the head message at T and advances the stream-start
// offset to T. Because the time aligner only ever proposes a T that is at
// most the head's own end-time (T is the minimum earliest-end-time across
// all required slots, including this one), a single slice of the head
// always suffices — there is never a second, older message still queued in
// front of the one straddling T. CanFormBlockUpTo(T) must hold before
// calling this.
func (a *Accumulator) TakeBlockUpTo(t message.Tick) (message.Message, error) {
	if len(a.queue) == 0 {
		return nil, fmt.Errorf("accumulator take_block_up_to(%d): queue is empty", t)
	}
	head := a.queue[0]
	if !head.CanSliceAt(t, a.streamStartOffset) {
		return nil, fmt.Errorf("accumulator take_block_up_to(%d): head cannot slice there: %s", t, head.Describe())
	}
	slice, headConsumed, err := head.SliceOut(t, a.streamStartOffset)
	if err != nil {
		return nil, fmt.Errorf("accumulator take_block_up_to(%d): %w", t, err)
	}
	if headConsumed {
		a.queue = a.queue[1:]
	}
	a.streamStartOffset = t
	return slice, nil
}
