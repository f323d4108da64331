// Package message implements the typed payload algebra that the rest of
// tickstream is built on: a closed set of message kinds, each of which
// knows how to describe, clone, merge with a successor, test whether it can
// be sliced at a given tick, slice itself, and shift its embedded
// timestamps.
//
// Kinds are a closed sum type dispatched through the Message interface
// rather than open-world polymorphism: there is no global mutable registry
// of kinds at runtime, only the statically known Registry table in
// registry.go.
package message

import "sort"

// Tick is the 64-bit monotone time unit shared by every stream. A message's
// Time is the end of the half-open interval (prev, Time] that it covers on
// its channel.
type Tick = uint64

// Kind identifies one of the closed set of message payload types.
type Kind int

const (
	KindAudio Kind = iota
	KindFeatures
	KindConversationState
	KindMatrix
	KindNbest
	KindTimeMap
	KindBinary
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "Audio"
	case KindFeatures:
		return "Features"
	case KindConversationState:
		return "ConversationState"
	case KindMatrix:
		return "Matrix"
	case KindNbest:
		return "Nbest"
	case KindTimeMap:
		return "TimeMap"
	case KindBinary:
		return "Binary"
	case KindJSON:
		return "Json"
	default:
		return "Unknown"
	}
}

// Descriptors is the opaque key/value metadata attached to every message.
// Two messages are only mergeable when their canonical descriptor strings
// are equal.
type Descriptors map[string]string

// String renders a canonical, order-independent form suitable for equality
// comparison across messages.
func (d Descriptors) String() string {
	if len(d) == 0 {
		return ""
	}
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ";"
		}
		out += k + "=" + d[k]
	}
	return out
}

// Clone returns an independently-owned copy of the descriptor set.
func (d Descriptors) Clone() Descriptors {
	if d == nil {
		return nil
	}
	out := make(Descriptors, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Message is implemented by every payload kind. Messages are immutable once
// published downstream; the per-input accumulator is the only owner allowed
// to mutate a message in place (shortening it via SliceOut) before it is
// handed off as a slice.
type Message interface {
	// Kind reports the closed-set payload kind.
	Kind() Kind

	// Time returns the end tick of the half-open interval this message
	// covers on its channel.
	Time() Tick

	// Descriptors returns the opaque metadata attached to this message.
	Descriptors() Descriptors

	// Describe renders a human-readable diagnostic summary. No side
	// effects; safe to call on a message another goroutine may be reading
	// concurrently, so long as no concurrent mutation is in flight.
	Describe() string

	// Clone returns a deep, independently-owned copy.
	Clone() Message

	// MergeWith attempts to concatenate other (whose Time must be strictly
	// greater than self's) onto self. accepted reports whether self was
	// mutated to absorb other; when accepted is false the caller must
	// enqueue other as a new message — that is ordinary control flow, not
	// an error. A non-nil error indicates a contract violation (e.g. a
	// conversation state whose utterance was closed but whose ID didn't
	// change) and is always fatal.
	MergeWith(other Message) (accepted bool, err error)

	// CanSliceAt reports whether self (acting as the head of its
	// accumulator queue) can be split at T, given the tick at which the
	// owning stream started.
	CanSliceAt(t Tick, streamStartOffset Tick) bool

	// SliceOut splits self at T, which must satisfy CanSliceAt. It returns
	// a newly-owned message covering (prev, T] on the source's time
	// domain. headConsumed reports whether the caller (normally a stream
	// accumulator) should remove self from its queue: true when self was
	// fully consumed or exactly matched T, false when self was mutated in
	// place (shortened) or left untouched and must remain the queue head
	// for future slices.
	SliceOut(t Tick, streamStartOffset Tick) (slice Message, headConsumed bool, err error)

	// ShiftInTime shifts Time and any embedded per-element timestamps by
	// delta. All other fields are untouched.
	ShiftInTime(delta int64)
}

// base holds the fields common to every kind. Concrete kinds embed it.
type base struct {
	kind Kind
	t    Tick
	desc Descriptors
}

func (b *base) Kind() Kind                   { return b.kind }
func (b *base) Time() Tick                   { return b.t }
func (b *base) Descriptors() Descriptors     { return b.desc }
func (b *base) setTime(t Tick)               { b.t = t }
func (b *base) cloneBase() base              { return base{kind: b.kind, t: b.t, desc: b.desc.Clone()} }
