package loop

import (
	"fmt"

	"go.uber.org/zap"

	"tickstream/message"
)

// Publisher implements §4.4's push_to_outputs contract: strictly monotone
// end-times per output slot, with an opportunistic merge against the
// previously published (but not yet forwarded) message before it is sent
// downstream. A Publisher is only ever driven by the single goroutine
// running its Harness's loop, so it needs no internal locking.
type Publisher struct {
	component string
	logger    *zap.Logger
	streams   map[string]chan<- message.Message
	pending   map[string]message.Message
}

func newPublisher(component string, outputs []OutputSpec, logger *zap.Logger) *Publisher {
	return NewPublisher(component, outputs, logger)
}

// NewPublisher builds a Publisher directly, without a Harness. Components
// use this in their own unit tests to exercise ProcessMessage without
// standing up a full Harness and its channel wiring.
func NewPublisher(component string, outputs []OutputSpec, logger *zap.Logger) *Publisher {
	p := &Publisher{
		component: component,
		logger:    logger,
		streams:   make(map[string]chan<- message.Message, len(outputs)),
		pending:   make(map[string]message.Message, len(outputs)),
	}
	for _, o := range outputs {
		p.streams[o.Slot] = o.Messages
	}
	return p
}

// Publish queues msg onto slot, merging it into the previously published
// message when the kind's merge policy allows it; otherwise it flushes the
// held message downstream first. A non-nil error is always a *ContractError
// (e.g. a non-monotone publish, or a merge precondition violation) and is
// fatal.
func (p *Publisher) Publish(slot string, msg message.Message) error {
	ch, ok := p.streams[slot]
	if !ok {
		return &ContractError{Component: p.component, Op: "push_to_outputs", Describe: msg.Describe(), Err: fmt.Errorf("publish to unwired output slot %q", slot)}
	}

	held, ok := p.pending[slot]
	if !ok {
		p.pending[slot] = msg
		return nil
	}
	accepted, err := held.MergeWith(msg)
	if err != nil {
		return &ContractError{Component: p.component, Op: "push_to_outputs", Describe: held.Describe(), Err: err}
	}
	if accepted {
		return nil
	}
	ch <- held
	p.pending[slot] = msg
	return nil
}

// Flush forces every slot's pending message downstream; called once on
// clean harness shutdown.
func (p *Publisher) Flush() {
	for slot, held := range p.pending {
		p.streams[slot] <- held
		delete(p.pending, slot)
	}
}
