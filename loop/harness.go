// Package loop implements the loop processor harness (spec §4.4): it
// presents every component with a single process_message(block) callback,
// sourcing aligned blocks from the time aligner and forwarding whatever the
// component publishes through a monotonicity-enforcing Publisher.
package loop

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"tickstream/align"
	"tickstream/message"
	"tickstream/stream"
)

// Component is implemented by every processing stage wired into a Harness.
type Component interface {
	// Name identifies the component in logs and error messages.
	Name() string
	// ConversationStateSlot names the required input slot that carries the
	// utterance/convo clock; the harness verifies it is wired as Kind
	// message.KindConversationState.
	ConversationStateSlot() string
	// ProcessMessage handles one aligned block. It must publish zero or
	// more messages per output slot through out, each with a time <= the
	// block's T.
	ProcessMessage(block *align.Block, out *Publisher) error
}

// InputSpec describes one required input slot.
type InputSpec struct {
	Slot    string
	Kind    message.Kind
	AnyKind bool // true for a slot typed AnyDecoderMessage-equivalent (e.g. Router's to-route stream): skips the registered-Kind check, since the wired Kind is a pipeline-time choice, not fixed by the component

	// Advisory marks a slot excluded from the aligner's T search entirely
	// (e.g. a Matrix-only side stream): it never gates or proposes a
	// candidate, and is folded into the resulting Block only if it happens
	// to be sliceable there.
	Advisory bool

	Messages          <-chan message.Message
	Candidates        align.Candidates // optional veto-search candidate source
	StreamStartOffset message.Tick
}

// OutputSpec names a slot a component publishes to and the channel the
// harness forwards coalesced messages onto.
type OutputSpec struct {
	Slot     string
	Kind     message.Kind
	Messages chan<- message.Message
}

// Harness drives one Component: it owns the component's input accumulators,
// runs the time aligner, invokes ProcessMessage, and forwards whatever the
// component publishes.
type Harness struct {
	name      string
	logger    *zap.Logger
	component Component
	inputs    []*inputSlot
	out       *Publisher
}

type inputSlot struct {
	name        string
	messages    <-chan message.Message
	accumulator *stream.Accumulator
	candidates  align.Candidates
	advisory    bool
}

// New validates the component's slot wiring and constructs a Harness. It
// returns a *ConfigError if no input slot matches
// Component.ConversationStateSlot(), if that slot isn't wired as
// KindConversationState, or if any slot names an unregistered Kind.
func New(component Component, inputs []InputSpec, outputs []OutputSpec, logger *zap.Logger) (*Harness, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	foundCSSlot := false
	for _, in := range inputs {
		if !in.AnyKind {
			if _, ok := message.Registry[in.Kind]; !ok {
				return nil, &ConfigError{Component: component.Name(), Reason: fmt.Sprintf("input slot %q declares unregistered kind %v", in.Slot, in.Kind)}
			}
		}
		if in.Slot == component.ConversationStateSlot() {
			if in.Kind != message.KindConversationState {
				return nil, &ConfigError{Component: component.Name(), Reason: fmt.Sprintf("slot %q is wired as %s, not ConversationState", in.Slot, in.Kind)}
			}
			foundCSSlot = true
		}
	}
	if !foundCSSlot {
		return nil, &ConfigError{Component: component.Name(), Reason: fmt.Sprintf("no input slot named %q (required ConversationState slot)", component.ConversationStateSlot())}
	}
	for _, out := range outputs {
		if _, ok := message.Registry[out.Kind]; !ok {
			return nil, &ConfigError{Component: component.Name(), Reason: fmt.Sprintf("output slot %q declares unregistered kind %v", out.Slot, out.Kind)}
		}
	}

	h := &Harness{
		name:      component.Name(),
		logger:    logger,
		component: component,
		out:       newPublisher(component.Name(), outputs, logger),
	}
	for _, in := range inputs {
		h.inputs = append(h.inputs, &inputSlot{
			name:        in.Slot,
			messages:    in.Messages,
			accumulator: stream.New(in.StreamStartOffset),
			candidates:  in.Candidates,
			advisory:    in.Advisory,
		})
	}
	return h, nil
}

// Run drives the component until ctx is cancelled or every input channel
// has closed and no further block can be aligned from what the
// accumulators still hold (any such leftover is dropped). A fatal error from the aligner,
// the component, or the publisher aborts the pipeline per spec §7; on
// ordinary shutdown Run flushes pending output and returns nil, or
// ctx.Err() if cancellation interrupted it first.
func (h *Harness) Run(ctx context.Context) error {
	closed := make(map[string]bool, len(h.inputs))
	for {
		block, err := align.Next(h.slots())
		if err == nil {
			if perr := h.processBlock(block); perr != nil {
				return fmt.Errorf("loop: component %q: %w", h.name, perr)
			}
			continue
		}
		if err != align.ErrWaitingForData {
			h.logger.Error("alignment failed", zap.String("component", h.name), zap.Error(err))
			return fmt.Errorf("loop: component %q: %w", h.name, err)
		}
		if len(closed) == len(h.inputs) {
			h.out.Flush()
			h.logger.Info("harness drained", zap.String("component", h.name))
			return nil
		}

		h.logger.Debug("waiting for more input to align a block", zap.String("component", h.name))
		msg, slotName, ok, rerr := h.receiveOne(ctx, closed)
		if rerr != nil {
			h.logger.Warn("harness interrupted while waiting for input", zap.String("component", h.name), zap.Error(rerr))
			return rerr
		}
		if !ok {
			h.logger.Info("input slot closed", zap.String("component", h.name), zap.String("slot", slotName))
			continue // a channel closed; closed is updated, recheck termination/alignment
		}
		slot := h.bySlot(slotName)
		if err := slot.accumulator.Push(msg); err != nil {
			pushErr := &ContractError{Component: h.name, Op: "push", Describe: msg.Describe(), Err: err}
			h.logger.Error("contract violation", zap.String("component", h.name), zap.String("op", pushErr.Op), zap.String("describe", pushErr.Describe), zap.Error(err))
			return pushErr
		}
	}
}

// processBlock invokes the component's ProcessMessage, recovering from any
// panic so one misbehaving component can't take down the whole pipeline's
// goroutine group without a diagnosable log line, and logging any
// *ContractError at Error with the component id and the offending message's
// describe() string before it propagates, per spec §7.
func (h *Harness) processBlock(block *align.Block) (err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("component panicked", zap.String("component", h.name), zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("component %q panicked: %v", h.name, r)
		}
	}()

	perr := h.component.ProcessMessage(block, h.out)
	if perr == nil {
		return nil
	}
	if ce, ok := perr.(*ContractError); ok {
		h.logger.Error("contract violation", zap.String("component", h.name), zap.String("op", ce.Op), zap.String("describe", ce.Describe), zap.Error(ce.Err))
	} else {
		h.logger.Error("component processing failed", zap.String("component", h.name), zap.Error(perr))
	}
	return perr
}

func (h *Harness) slots() []align.Slot {
	out := make([]align.Slot, len(h.inputs))
	for i, in := range h.inputs {
		out[i] = align.Slot{Name: in.name, Accumulator: in.accumulator, Candidates: in.candidates, Advisory: in.advisory}
	}
	return out
}

func (h *Harness) bySlot(name string) *inputSlot {
	for _, in := range h.inputs {
		if in.name == name {
			return in
		}
	}
	return nil
}

// receiveOne blocks on ctx.Done() and every still-open input channel,
// fanning in dynamically since the slot set varies per component.
func (h *Harness) receiveOne(ctx context.Context, closed map[string]bool) (message.Message, string, bool, error) {
	cases := make([]reflect.SelectCase, 0, len(h.inputs)+1)
	branches := make([]string, 0, len(h.inputs)+1)

	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())})
	branches = append(branches, "")
	for _, in := range h.inputs {
		if closed[in.name] {
			continue
		}
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(in.messages)})
		branches = append(branches, in.name)
	}

	chosen, recv, recvOK := reflect.Select(cases)
	slotName := branches[chosen]
	if slotName == "" {
		return nil, "", false, ctx.Err()
	}
	if !recvOK {
		closed[slotName] = true
		return nil, slotName, false, nil
	}
	return recv.Interface().(message.Message), slotName, true, nil
}
