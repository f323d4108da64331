package loop

import (
	"context"
	"testing"
	"time"

	"tickstream/align"
	"tickstream/message"
)

// passthrough republishes its audio input onto an output slot, exercising
// the harness's alignment-then-dispatch loop without any domain logic of
// its own.
type passthrough struct{}

func (passthrough) Name() string                   { return "passthrough" }
func (passthrough) ConversationStateSlot() string   { return "conversation_state" }
func (passthrough) ProcessMessage(block *align.Block, out *Publisher) error {
	return out.Publish("audio_out", block.Messages["audio"])
}

func TestHarnessAlignsAndForwards(t *testing.T) {
	audioCh := make(chan message.Message, 4)
	csCh := make(chan message.Message, 4)
	outCh := make(chan message.Message, 4)

	h, err := New(passthrough{},
		[]InputSpec{
			{Slot: "audio", Kind: message.KindAudio, Messages: audioCh},
			{Slot: "conversation_state", Kind: message.KindConversationState, Messages: csCh},
		},
		[]OutputSpec{
			{Slot: "audio_out", Kind: message.KindAudio, Messages: outCh},
		},
		nil,
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	audio, err := message.NewAudio(100, []float32{1, 2, 3, 4}, 4, 25, nil)
	if err != nil {
		t.Fatalf("NewAudio: %v", err)
	}
	cs, err := message.NewConversationState(100, "A", true, "X", false, nil)
	if err != nil {
		t.Fatalf("NewConversationState: %v", err)
	}
	audioCh <- audio
	csCh <- cs

	// Closing both input channels leaves the harness with no further data
	// to align; it drains by flushing the publisher's pending output (the
	// one message above was never merge-eligible to coalesce further) and
	// returns cleanly.
	close(audioCh)
	close(csCh)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for harness to exit")
	}

	select {
	case out := <-outCh:
		if out.Time() != 100 {
			t.Errorf("expected forwarded message at t=100, got %d", out.Time())
		}
	default:
		t.Fatal("expected the flushed output message to be buffered on outCh")
	}
}

func TestNewRejectsMissingConversationStateSlot(t *testing.T) {
	_, err := New(passthrough{},
		[]InputSpec{{Slot: "audio", Kind: message.KindAudio, Messages: make(chan message.Message)}},
		nil,
		nil,
	)
	if err == nil {
		t.Fatal("expected a ConfigError for a missing conversation_state slot")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
}

func TestNewRejectsWrongKindOnConversationStateSlot(t *testing.T) {
	_, err := New(passthrough{},
		[]InputSpec{{Slot: "conversation_state", Kind: message.KindAudio, Messages: make(chan message.Message)}},
		nil,
		nil,
	)
	if _, ok := err.(*ConfigError); !ok {
		t.Fatalf("expected *ConfigError, got %T (%v)", err, err)
	}
}
