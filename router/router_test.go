package router

import (
	"testing"

	"tickstream/align"
	"tickstream/loop"
	"tickstream/message"
)

func mustAudio(t *testing.T, tm message.Tick, n int, tps float32) *message.Audio {
	t.Helper()
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(i)
	}
	a, err := message.NewAudio(tm, samples, 16000, tps, nil)
	if err != nil {
		t.Fatalf("NewAudio: %v", err)
	}
	return a
}

func mustCS(t *testing.T, tm message.Tick, uttID string, lastUtt bool, convoID string, lastConvo bool) *message.ConversationState {
	t.Helper()
	cs, err := message.NewConversationState(tm, uttID, lastUtt, convoID, lastConvo, nil)
	if err != nil {
		t.Fatalf("NewConversationState: %v", err)
	}
	return cs
}

func mustNbest(t *testing.T, tm message.Tick, words []string, alignment []message.Tick) *message.Nbest {
	t.Helper()
	n, err := message.NewNbest(tm, []message.NbestEntry{{Words: words, Alignment: alignment}}, nil)
	if err != nil {
		t.Fatalf("NewNbest: %v", err)
	}
	return n
}

// drive feeds one block directly to r.ProcessMessage via a *loop.Publisher
// backed by buffered channels, then drains those channels into a map keyed
// by slot name. This exercises the real Publisher (coalescing included)
// rather than bypassing it.
func drive(t *testing.T, r *Router, block *align.Block, slots []string) map[string][]message.Message {
	t.Helper()
	outputs := make([]loop.OutputSpec, len(slots))
	chans := make(map[string]chan message.Message, len(slots))
	for i, s := range slots {
		ch := make(chan message.Message, 64)
		chans[s] = ch
		outputs[i] = loop.OutputSpec{Slot: s, Kind: message.KindBinary, Messages: ch}
	}
	pub := loop.NewPublisher(r.Name(), outputs, nil)
	if err := r.ProcessMessage(block, pub); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	pub.Flush()
	out := map[string][]message.Message{}
	for s, ch := range chans {
		close(ch)
		for m := range ch {
			out[s] = append(out[s], m)
		}
	}
	return out
}

func TestRouterSadNbestDistributesPairsAndEqualizesEndOfConvo(t *testing.T) {
	r, err := New(Config{RouterType: ModeSadNbest}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	toRoute := mustAudio(t, 100, 100, 1)
	cs := mustCS(t, 100, "U1", true, "C1", true)
	routing := mustNbest(t, 100, []string{"0"}, []message.Tick{100})

	block := &align.Block{T: 100, Messages: map[string]message.Message{
		SlotConvState:     cs,
		SlotToRoute:       toRoute,
		SlotRoutingStream: routing,
	}}

	out := drive(t, r, block, []string{
		SlotTimeMap, OutputStreamSlot(0), OutputStreamSlot(1),
		ConversationStateSlot(0), ConversationStateSlot(1),
	})

	tms := out[SlotTimeMap]
	if len(tms) != 2 {
		t.Fatalf("expected 2 TimeMap entries (the real pair plus the injected dummy), got %d", len(tms))
	}
	dummyTM := tms[0].(*message.TimeMap)
	realTM := tms[1].(*message.TimeMap)
	if dummyTM.RouteIndex != 1 || realTM.RouteIndex != 0 {
		t.Fatalf("expected dummy on route 1 before the real pair on route 0, got %d then %d", dummyTM.RouteIndex, realTM.RouteIndex)
	}
	if dummyTM.StartOrig != 0 || dummyTM.EndOrig != 99 {
		t.Errorf("dummy TimeMap orig interval = [%d,%d], want [0,99]", dummyTM.StartOrig, dummyTM.EndOrig)
	}
	if realTM.StartOrig != 100 || realTM.EndOrig != 100 {
		t.Errorf("real TimeMap orig interval = [%d,%d], want [100,100]", realTM.StartOrig, realTM.EndOrig)
	}

	cs0 := out[ConversationStateSlot(0)]
	cs1 := out[ConversationStateSlot(1)]
	if len(cs0) != 1 || len(cs1) != 1 {
		t.Fatalf("expected exactly one ConversationState per route, got %d on route 0 and %d on route 1", len(cs0), len(cs1))
	}
	for i, got := range [][]message.Message{cs0, cs1} {
		c := got[0].(*message.ConversationState)
		if !c.LastChunkInConvo {
			t.Errorf("route %d: expected last_chunk_in_convo=true (end-of-convo must reach every route), got false", i)
		}
		if !c.LastChunkInUtt {
			t.Errorf("route %d: expected last_chunk_in_utt=true, got false", i)
		}
		if c.ConvoID != "C1" {
			t.Errorf("route %d: expected convo id C1, got %s", i, c.ConvoID)
		}
	}

	a0 := out[OutputStreamSlot(0)][0].(*message.Audio)
	a1 := out[OutputStreamSlot(1)][0].(*message.Audio)
	if len(a1.Samples) != 99 {
		t.Errorf("dummy route got %d samples, want 99", len(a1.Samples))
	}
	if len(a0.Samples) != 1 {
		t.Errorf("real route got %d samples, want 1", len(a0.Samples))
	}

	wantFinalOffset := int64(100)
	if r.toRouteStreamOffset != wantFinalOffset {
		t.Errorf("toRouteStreamOffset = %d, want %d", r.toRouteStreamOffset, wantFinalOffset)
	}
	gotConserved := r.routedStreamOffsets[0] + 1 + (r.routedStreamOffsets[1] + 1)
	if gotConserved != wantFinalOffset+1 {
		t.Errorf("routed offsets don't conserve total ticks routed: got %d, want %d", gotConserved, wantFinalOffset+1)
	}
}

func TestRouterSadNbestDefersSingleNonEndOfUttPair(t *testing.T) {
	r, err := New(Config{RouterType: ModeSadNbest}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	toRoute := mustAudio(t, 50, 50, 1)
	cs := mustCS(t, 50, "U1", false, "C1", false)
	routing := mustNbest(t, 50, []string{"0"}, []message.Tick{50})

	block := &align.Block{T: 50, Messages: map[string]message.Message{
		SlotConvState:     cs,
		SlotToRoute:       toRoute,
		SlotRoutingStream: routing,
	}}

	out := drive(t, r, block, []string{SlotTimeMap, OutputStreamSlot(0), OutputStreamSlot(1)})
	if len(out[SlotTimeMap]) != 0 {
		t.Fatalf("a lone non-end-of-utterance pair must be deferred, got %d TimeMap(s) published", len(out[SlotTimeMap]))
	}
	if len(r.pending) != 1 {
		t.Fatalf("expected exactly one pending pair held back, got %d", len(r.pending))
	}
}

func TestRouterUtteranceRoundRobinAlternatesRoutesWholeUtterances(t *testing.T) {
	r, err := New(Config{RouterType: ModeUtteranceRoundRobin, NumOutputs: 2}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	block1 := &align.Block{T: 50, Messages: map[string]message.Message{
		SlotConvState: mustCS(t, 50, "U1", true, "C", false),
		SlotToRoute:   mustAudio(t, 50, 50, 1),
	}}
	out1 := drive(t, r, block1, []string{SlotTimeMap, OutputStreamSlot(0), OutputStreamSlot(1), ConversationStateSlot(0)})

	if len(out1[OutputStreamSlot(0)]) != 1 {
		t.Fatalf("expected the first utterance routed to route 0, got %d messages there", len(out1[OutputStreamSlot(0)]))
	}
	if len(out1[OutputStreamSlot(1)]) != 0 {
		t.Fatalf("route 1 should see nothing for the first utterance, got %d messages", len(out1[OutputStreamSlot(1)]))
	}
	cs0 := out1[ConversationStateSlot(0)][0].(*message.ConversationState)
	if cs0.LastChunkInConvo {
		t.Errorf("first utterance isn't the end of the conversation, want last_chunk_in_convo=false")
	}

	block2 := &align.Block{T: 120, Messages: map[string]message.Message{
		SlotConvState: mustCS(t, 120, "U2", true, "C", true),
		SlotToRoute:   mustAudio(t, 120, 70, 1),
	}}
	out2 := drive(t, r, block2, []string{SlotTimeMap, OutputStreamSlot(0), OutputStreamSlot(1), ConversationStateSlot(1)})

	if len(out2[OutputStreamSlot(1)]) != 1 {
		t.Fatalf("expected the second utterance routed to route 1, got %d messages there", len(out2[OutputStreamSlot(1)]))
	}
	if len(out2[OutputStreamSlot(0)]) != 0 {
		t.Fatalf("route 0 should see nothing for the second utterance, got %d messages", len(out2[OutputStreamSlot(0)]))
	}
	cs1 := out2[ConversationStateSlot(1)][0].(*message.ConversationState)
	if !cs1.LastChunkInConvo {
		t.Errorf("second utterance ends the conversation, want last_chunk_in_convo=true")
	}

	tms := out2[SlotTimeMap]
	tm := tms[0].(*message.TimeMap)
	if tm.StartOrig != 51 || tm.EndOrig != 120 {
		t.Errorf("second utterance TimeMap orig interval = [%d,%d], want [51,120]", tm.StartOrig, tm.EndOrig)
	}
	if tm.StartMapped != 0 || tm.EndMapped != 69 {
		t.Errorf("second utterance TimeMap mapped interval = [%d,%d], want [0,69]", tm.StartMapped, tm.EndMapped)
	}
}

func TestNumRoutesRejectsMissingNumOutputsForRoundRobin(t *testing.T) {
	_, err := New(Config{RouterType: ModeUtteranceRoundRobin}, nil)
	if err == nil {
		t.Fatal("expected an error for utterance_round_robin with no num_outputs configured")
	}
	if _, ok := err.(*loop.ConfigError); !ok {
		t.Fatalf("expected *loop.ConfigError, got %T", err)
	}
}
