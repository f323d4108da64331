// Command pipelinedemo wires a Window and a Router component together
// under the loop harness and drives them with synthetic audio, the way
// cmd/testfull in the reference project exercises a pipeline end to end
// without a real model or microphone behind it. It is a manual smoke test,
// not the graph loader spec §1 places out of scope: the component wiring
// (which channel feeds which slot) is hand-written below, but each
// component's own options come from the YAML file named by -graph, decoded
// through internal/config the way spec §2/§3 describe.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tickstream/internal/config"
	"tickstream/loop"
	"tickstream/message"
	"tickstream/router"
	"tickstream/window"
)

func main() {
	graphPath := flag.String("graph", "cmd/pipelinedemo/pipeline.yaml", "path to the pipeline's YAML component config")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("pipelinedemo: building logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *graphPath); err != nil {
		logger.Fatal("pipelinedemo failed", zap.Error(err))
	}
}

func run(ctx context.Context, logger *zap.Logger, graphPath string) error {
	graph, err := config.Load(graphPath)
	if err != nil {
		return fmt.Errorf("loading pipeline graph: %w", err)
	}

	windowCC, err := graph.Component("window")
	if err != nil {
		return err
	}
	var windowCfg window.Config
	if err := windowCC.Decode(&windowCfg); err != nil {
		return err
	}
	// low_latency must stay false in this graph: the demo drives utterances
	// to a last_chunk_in_utt close, and Window treats combining that with
	// low_latency as a contract violation (spec §4.6 step 2).
	win, err := window.New(windowCfg, logger.Named("window"))
	if err != nil {
		return fmt.Errorf("constructing window: %w", err)
	}

	routerCC, err := graph.Component("router")
	if err != nil {
		return err
	}
	var routerCfg router.Config
	if err := routerCC.Decode(&routerCfg); err != nil {
		return err
	}
	rtr, err := router.New(routerCfg, logger.Named("router"))
	if err != nil {
		return fmt.Errorf("constructing router: %w", err)
	}

	// Two forks of the same conversation-state timeline: Window and Router
	// each need their own input slot wired to it, but both must see the
	// identical sequence of boundaries to stay aligned with one another.
	audioCh := make(chan message.Message, 8)
	csForWindow := make(chan message.Message, 8)
	csForRouter := make(chan message.Message, 8)
	windowedCh := make(chan message.Message, 8)

	timeMapCh := make(chan message.Message, 8)
	route0Ch := make(chan message.Message, 8)
	route1Ch := make(chan message.Message, 8)
	convo0Ch := make(chan message.Message, 8)
	convo1Ch := make(chan message.Message, 8)

	windowHarness, err := loop.New(win,
		[]loop.InputSpec{
			{Slot: window.SlotConvState, Kind: message.KindConversationState, Messages: csForWindow},
			{Slot: window.SlotAudio, Kind: message.KindAudio, Messages: audioCh},
		},
		[]loop.OutputSpec{
			{Slot: window.SlotFeatures, Kind: message.KindFeatures, Messages: windowedCh},
		},
		logger.Named("window.harness"))
	if err != nil {
		return fmt.Errorf("wiring window harness: %w", err)
	}

	routerHarness, err := loop.New(rtr,
		[]loop.InputSpec{
			{Slot: router.SlotConvState, Kind: message.KindConversationState, Messages: csForRouter},
			{Slot: router.SlotToRoute, AnyKind: true, Messages: windowedCh},
		},
		[]loop.OutputSpec{
			{Slot: router.SlotTimeMap, Kind: message.KindTimeMap, Messages: timeMapCh},
			{Slot: router.OutputStreamSlot(0), Kind: message.KindFeatures, Messages: route0Ch},
			{Slot: router.OutputStreamSlot(1), Kind: message.KindFeatures, Messages: route1Ch},
			{Slot: router.ConversationStateSlot(0), Kind: message.KindConversationState, Messages: convo0Ch},
			{Slot: router.ConversationStateSlot(1), Kind: message.KindConversationState, Messages: convo1Ch},
		},
		logger.Named("router.harness"))
	if err != nil {
		return fmt.Errorf("wiring router harness: %w", err)
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		// windowedCh doubles as the router's stream_to_route input: closing
		// it once Window drains signals the router harness the same way an
		// upstream component's shutdown would.
		defer close(windowedCh)
		return windowHarness.Run(gctx)
	})
	group.Go(func() error {
		defer close(timeMapCh)
		defer close(route0Ch)
		defer close(route1Ch)
		defer close(convo0Ch)
		defer close(convo1Ch)
		return routerHarness.Run(gctx)
	})
	group.Go(func() error {
		defer close(audioCh)
		defer close(csForWindow)
		defer close(csForRouter)
		return generateConversation(gctx, audioCh, csForWindow, csForRouter)
	})
	group.Go(func() error { return drain(gctx, logger, "time_map", timeMapCh) })
	group.Go(func() error { return drain(gctx, logger, "route_0", route0Ch) })
	group.Go(func() error { return drain(gctx, logger, "route_1", route1Ch) })
	group.Go(func() error { return drain(gctx, logger, "convo_0", convo0Ch) })
	group.Go(func() error { return drain(gctx, logger, "convo_1", convo1Ch) })

	return group.Wait()
}

// generateConversation pushes two synthetic utterances, 1600 samples each
// split across two chunks, at tps=2 (matching spec scenario S6's
// 16kHz/25ms/10ms window config so the emitted frame timestamps line up
// with the documented test vector). The second utterance closes the
// conversation.
func generateConversation(ctx context.Context, audioCh, csWindow, csRouter chan<- message.Message) error {
	const (
		sampleRate     = 16000
		ticksPerSample = 2
		chunkSamples   = 800
	)

	var streamOffset message.Tick
	utterances := []struct {
		id          string
		lastInConvo bool
	}{
		{id: "utt-1", lastInConvo: false},
		{id: "utt-2", lastInConvo: true},
	}

	for _, utt := range utterances {
		for chunk := 0; chunk < 2; chunk++ {
			samples := make([]float32, chunkSamples)
			for i := range samples {
				samples[i] = float32(i%100) / 100
			}
			streamOffset += message.Tick(chunkSamples * ticksPerSample)

			audio, err := message.NewAudio(streamOffset, samples, sampleRate, ticksPerSample, nil)
			if err != nil {
				return fmt.Errorf("building synthetic audio: %w", err)
			}
			lastChunk := chunk == 1
			cs, err := message.NewConversationState(streamOffset, utt.id, lastChunk, "demo-convo", lastChunk && utt.lastInConvo, nil)
			if err != nil {
				return fmt.Errorf("building synthetic conversation state: %w", err)
			}

			if err := sendAll(ctx, audio, audioCh); err != nil {
				return err
			}
			if err := sendAll(ctx, cs, csWindow); err != nil {
				return err
			}
			if err := sendAll(ctx, cs.Clone(), csRouter); err != nil {
				return err
			}
		}
	}
	return nil
}

func sendAll(ctx context.Context, msg message.Message, ch chan<- message.Message) error {
	select {
	case ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func drain(ctx context.Context, logger *zap.Logger, name string, ch <-chan message.Message) error {
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			logger.Info("received", zap.String("slot", name), zap.String("describe", msg.Describe()))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
