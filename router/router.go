// Package router implements the Router component (spec §4.5): it splits one
// to-route stream into N renumbered sub-streams under the direction of a
// routing stream, emitting a TimeMap so a companion Merger component
// (out of scope here) can later reconstruct original time.
package router

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"tickstream/align"
	"tickstream/loop"
	"tickstream/message"
)

// Slot names, matching spec §6.
const (
	SlotRoutingStream = "routing_stream"
	SlotToRoute       = "stream_to_route"
	SlotConvState     = "conversation_state"
	SlotTimeMap       = "time_map"
)

// OutputStreamSlot and ConversationStateSlot name the per-route output
// slots a Router with N routes publishes.
func OutputStreamSlot(route int) string      { return fmt.Sprintf("output_stream_%d", route) }
func ConversationStateSlot(route int) string { return fmt.Sprintf("conversation_state_%d", route) }

// pendingPair is one (route, alignment-time) decision still waiting to be
// distributed. source is the to-route block delivered in the
// ProcessMessage call this pair arrived in; it is sliced in place (via
// message.Message.SliceOut) as pairs are drained, the same handle shared by
// every pair that still references it.
type pendingPair struct {
	route      int
	alignment  message.Tick
	source     message.Message
	endOfUtt   bool
	uttID      string
	endOfConvo bool
	convoID    string
}

// Router is the hard component: it maintains three entangled time domains
// (original, per-route mapped, and utterance-relative) and guarantees every
// route eventually sees both LastChunkInUtt and LastChunkInConvo, even when
// the routing decisions would naturally starve one side.
type Router struct {
	logger    *zap.Logger
	mode      Mode
	numRoutes int

	// toRouteStreamOffset and routedStreamOffsets use -1 to mean "nothing
	// routed yet", matching the convo-start initialization in the original.
	toRouteStreamOffset int64
	routedStreamOffsets []int64
	currentUttIDByRoute []string

	pending []pendingPair // sad_nbest only

	// utterance_round_robin-only state (§4.5.2).
	nextRoute      int
	uttAccum       message.Message
	uttStartOffset int64
}

// New constructs a Router from cfg.
func New(cfg Config, logger *zap.Logger) (*Router, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	n, err := cfg.NumRoutes()
	if err != nil {
		return nil, &loop.ConfigError{Component: "router", Reason: err.Error()}
	}
	r := &Router{
		logger:               logger,
		mode:                 cfg.RouterType,
		numRoutes:            n,
		toRouteStreamOffset:  -1,
		routedStreamOffsets:  make([]int64, n),
		currentUttIDByRoute:  make([]string, n),
		uttStartOffset:       -1,
	}
	for i := range r.routedStreamOffsets {
		r.routedStreamOffsets[i] = -1
	}
	return r, nil
}

func (r *Router) Name() string { return "router" }

// ConversationStateSlot satisfies loop.Component.
func (r *Router) ConversationStateSlot() string { return SlotConvState }

// NumRoutes reports N, the number of output routes.
func (r *Router) NumRoutes() int { return r.numRoutes }

// ProcessMessage satisfies loop.Component.
func (r *Router) ProcessMessage(block *align.Block, out *loop.Publisher) error {
	csMsg, ok := block.Messages[SlotConvState].(*message.ConversationState)
	if !ok {
		return fmt.Errorf("router: %s slot did not carry a ConversationState message", SlotConvState)
	}
	toRouteMsg, ok := block.Messages[SlotToRoute]
	if !ok {
		return fmt.Errorf("router: missing %s in block", SlotToRoute)
	}

	switch r.mode {
	case ModeSadNbest:
		return r.processSadNbest(block, csMsg, toRouteMsg, out)
	case ModeUtteranceRoundRobin:
		return r.processRoundRobin(csMsg, toRouteMsg, out)
	default:
		return fmt.Errorf("router: unknown mode %q", r.mode)
	}
}

// processSadNbest implements §4.5.1: the routing Nbest's first entry
// carries a sequence of (route, alignment) pairs; each pair is queued,
// end-of-convo triggers the equalizing dummy-pair injection, and the
// distribution loop drains every pair it safely can.
func (r *Router) processSadNbest(block *align.Block, csMsg *message.ConversationState, toRouteMsg message.Message, out *loop.Publisher) error {
	routingMsg, ok := block.Messages[SlotRoutingStream].(*message.Nbest)
	if !ok || len(routingMsg.Entries) == 0 {
		return fmt.Errorf("router: %s must carry a non-empty Nbest message", SlotRoutingStream)
	}
	entry := routingMsg.Entries[0]
	n := len(entry.Words)

	for idx := 0; idx < n; idx++ {
		route, err := strconv.Atoi(entry.Words[idx])
		if err != nil || (route != 0 && route != 1) {
			return fmt.Errorf("router: sad_nbest routing word %q is not a route index 0/1", entry.Words[idx])
		}
		last := idx == n-1
		pair := pendingPair{
			route:      route,
			alignment:  entry.Alignment[idx],
			source:     toRouteMsg,
			endOfUtt:   csMsg.LastChunkInUtt && last,
			uttID:      csMsg.UtteranceID,
			endOfConvo: csMsg.LastChunkInConvo && last,
			convoID:    csMsg.ConvoID,
		}
		r.pending = append(r.pending, pair)

		if pair.endOfConvo {
			if err := r.injectEndOfConvoDummy(pair, csMsg.Time()); err != nil {
				return err
			}
		}
	}

	return r.distribute(out)
}

// injectEndOfConvoDummy implements the end-of-convo equalization: since the
// opposite route will never see a natural routing decision again once the
// conversation ends, a synthetic pair is inserted just before the final one
// so that route also closes out with last_chunk_in_convo.
func (r *Router) injectEndOfConvoDummy(lastPair pendingPair, convoEndTime message.Tick) error {
	if convoEndTime == 0 {
		return &loop.ContractError{Component: "router", Op: "inject_end_of_convo_dummy", Describe: lastPair.source.Describe(),
			Err: fmt.Errorf("conversation ends at tick 0: no room to insert a dummy end-of-convo signal")}
	}
	sliceTime := convoEndTime - 1
	for !lastPair.source.CanSliceAt(sliceTime, 0) {
		if sliceTime == 0 {
			return &loop.ContractError{Component: "router", Op: "inject_end_of_convo_dummy", Describe: lastPair.source.Describe(),
				Err: fmt.Errorf("could not find a spot to insert a dummy end-of-convo signal before tick %d", convoEndTime)}
		}
		sliceTime--
	}

	dummy := pendingPair{
		route:      1 - lastPair.route,
		alignment:  sliceTime,
		source:     lastPair.source,
		endOfUtt:   true,
		uttID:      lastPair.uttID + "_dummy",
		endOfConvo: true,
		convoID:    lastPair.convoID,
	}
	r.logger.Info("injecting end-of-convo dummy pair", zap.Int("route", dummy.route), zap.String("convo_id", dummy.convoID), zap.Int64("alignment", int64(sliceTime)))
	idx := len(r.pending) - 1 // position of the just-appended lastPair
	r.pending = append(r.pending, pendingPair{})
	copy(r.pending[idx+1:], r.pending[idx:])
	r.pending[idx] = dummy
	return nil
}

// distribute implements the "while the accumulator has at least two
// entries, or exactly one entry that is end_of_utt" drain loop from §4.5.1.
func (r *Router) distribute(out *loop.Publisher) error {
	for len(r.pending) > 0 {
		if len(r.pending) == 1 && !r.pending[0].endOfUtt {
			break // defer until more routing data arrives
		}
		pair := r.pending[0]

		sliceLen := int64(pair.alignment) - r.toRouteStreamOffset
		startOrig := message.Tick(r.toRouteStreamOffset + 1)
		endOrig := pair.alignment
		startMapped := message.Tick(r.routedStreamOffsets[pair.route] + 1)
		endMapped := message.Tick(int64(startMapped) + sliceLen - 1)

		tm := message.NewTimeMap(startOrig, endOrig, startMapped, endMapped, pair.route, nil)
		if err := out.Publish(SlotTimeMap, tm); err != nil {
			return err
		}
		r.routedStreamOffsets[pair.route] = int64(endMapped)

		sliced, _, err := pair.source.SliceOut(pair.alignment, tickOrZero(r.toRouteStreamOffset))
		if err != nil {
			return &loop.ContractError{Component: "router", Op: "slice_to_route", Describe: pair.source.Describe(), Err: err}
		}
		sliced.ShiftInTime(int64(endMapped) - int64(sliced.Time()))
		if err := out.Publish(OutputStreamSlot(pair.route), sliced); err != nil {
			return err
		}

		if r.currentUttIDByRoute[pair.route] == "" {
			r.currentUttIDByRoute[pair.route] = fmt.Sprintf("%s_%d", pair.uttID, startOrig)
		}
		cs, err := message.NewConversationState(endMapped, r.currentUttIDByRoute[pair.route], pair.endOfUtt, pair.convoID, pair.endOfConvo, nil)
		if err != nil {
			return &loop.ContractError{Component: "router", Op: "emit_conversation_state", Err: err}
		}
		if err := out.Publish(ConversationStateSlot(pair.route), cs); err != nil {
			return err
		}

		r.pending = r.pending[1:]
		r.toRouteStreamOffset = int64(pair.alignment)
		if pair.endOfUtt {
			r.currentUttIDByRoute[pair.route] = ""
		}
	}
	return nil
}

// processRoundRobin implements §4.5.2: the whole utterance accumulated
// since the previous boundary is assigned to nextRoute once the
// ConversationState reports last_chunk_in_utt.
func (r *Router) processRoundRobin(csMsg *message.ConversationState, toRouteMsg message.Message, out *loop.Publisher) error {
	if r.uttStartOffset < 0 {
		r.uttStartOffset = r.toRouteStreamOffset
	}
	if r.uttAccum == nil {
		r.uttAccum = toRouteMsg
	} else {
		accepted, err := r.uttAccum.MergeWith(toRouteMsg)
		if err != nil {
			return &loop.ContractError{Component: "router", Op: "accumulate_utterance", Describe: r.uttAccum.Describe(), Err: err}
		}
		if !accepted {
			return &loop.ContractError{Component: "router", Op: "accumulate_utterance", Describe: r.uttAccum.Describe(),
				Err: fmt.Errorf("to-route payload could not be merged across blocks within one utterance")}
		}
	}

	if !csMsg.LastChunkInUtt {
		return nil
	}

	route := r.nextRoute
	r.nextRoute = (r.nextRoute + 1) % r.numRoutes
	r.logger.Debug("routing utterance", zap.String("utterance_id", csMsg.UtteranceID), zap.Int("route", route))

	sliceLen := int64(csMsg.Time()) - r.uttStartOffset
	startOrig := message.Tick(r.uttStartOffset + 1)
	startMapped := message.Tick(r.routedStreamOffsets[route] + 1)
	endMapped := message.Tick(int64(startMapped) + sliceLen - 1)

	tm := message.NewTimeMap(startOrig, csMsg.Time(), startMapped, endMapped, route, nil)
	if err := out.Publish(SlotTimeMap, tm); err != nil {
		return err
	}
	r.routedStreamOffsets[route] = int64(endMapped)

	r.uttAccum.ShiftInTime(int64(endMapped) - int64(r.uttAccum.Time()))
	if err := out.Publish(OutputStreamSlot(route), r.uttAccum); err != nil {
		return err
	}

	if r.currentUttIDByRoute[route] == "" {
		r.currentUttIDByRoute[route] = fmt.Sprintf("%s_%d", csMsg.UtteranceID, startOrig)
	}
	cs, err := message.NewConversationState(endMapped, r.currentUttIDByRoute[route], true, csMsg.ConvoID, csMsg.LastChunkInConvo, nil)
	if err != nil {
		return &loop.ContractError{Component: "router", Op: "emit_conversation_state", Err: err}
	}
	if err := out.Publish(ConversationStateSlot(route), cs); err != nil {
		return err
	}

	r.currentUttIDByRoute[route] = ""
	r.toRouteStreamOffset = int64(csMsg.Time())
	r.uttStartOffset = -1
	r.uttAccum = nil
	return nil
}

func tickOrZero(v int64) message.Tick {
	if v < 0 {
		return 0
	}
	return message.Tick(v)
}
