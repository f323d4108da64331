// Package window implements the Window component (spec §4.6): it chops a
// streaming Audio signal into overlapping analysis frames, windows and
// zero-means each one, and emits them as a single Features message per
// processed block.
package window

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	gonumwindow "gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/mat"

	"tickstream/align"
	"tickstream/loop"
	"tickstream/message"
)

// Slot names, matching spec §6.
const (
	SlotConvState = "conversation_state"
	SlotAudio     = "streamed_audio"
	SlotFeatures  = "windowed_audio"
)

// Window holds the rolling audio buffer and offset bookkeeping for one
// utterance at a time. wLen and fLen are the window and step length in
// samples; process_ptr walks across the accumulated buffer fLen samples at
// a time, re-based by compaction once enough trailing frames are flushed.
type Window struct {
	logger *zap.Logger
	cfg    Config
	wLen   int
	fLen   int
	coeffs []float64

	accumAudio           []float32
	processPtr           int64
	accumOffsetInUtt     int64
	uttStartStreamOffset int64
}

// New constructs a Window from cfg.
func New(cfg Config, logger *zap.Logger) (*Window, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.validate(); err != nil {
		return nil, &loop.ConfigError{Component: "window", Reason: err.Error()}
	}
	wLen, fLen := cfg.frameLengths()
	if wLen <= 0 || fLen <= 0 {
		return nil, &loop.ConfigError{Component: "window", Reason: fmt.Sprintf("derived window/step length must be positive, got wLen=%d fLen=%d", wLen, fLen)}
	}

	coeffs := make([]float64, wLen)
	for i := range coeffs {
		coeffs[i] = 1
	}
	switch cfg.WindowingFunction {
	case FunctionHamming:
		coeffs = gonumwindow.Hamming(coeffs)
	case FunctionRectangle:
		coeffs = gonumwindow.Rectangular(coeffs)
	}

	return &Window{
		logger: logger,
		cfg:    cfg,
		wLen:   wLen,
		fLen:   fLen,
		coeffs: coeffs,
	}, nil
}

func (w *Window) Name() string { return "window" }

// ConversationStateSlot satisfies loop.Component.
func (w *Window) ConversationStateSlot() string { return SlotConvState }

// ProcessMessage satisfies loop.Component.
func (w *Window) ProcessMessage(block *align.Block, out *loop.Publisher) error {
	csMsg, ok := block.Messages[SlotConvState].(*message.ConversationState)
	if !ok {
		return fmt.Errorf("window: %s slot did not carry a ConversationState message", SlotConvState)
	}
	audioMsg, ok := block.Messages[SlotAudio].(*message.Audio)
	if !ok {
		return fmt.Errorf("window: %s slot did not carry an Audio message", SlotAudio)
	}
	if audioMsg.SampleRate != w.cfg.SamplingFrequency {
		return &loop.ContractError{Component: "window", Op: "process_message", Describe: audioMsg.Describe(),
			Err: fmt.Errorf("expected sampling rate %v, got %v", w.cfg.SamplingFrequency, audioMsg.SampleRate)}
	}

	if w.cfg.LowLatency && csMsg.LastChunkInUtt {
		return &loop.ContractError{Component: "window", Op: "process_message", Describe: csMsg.Describe(),
			Err: fmt.Errorf("low_latency windowing cannot also close out last_chunk_in_utt")}
	}

	ticksPerSample := float64(audioMsg.TicksPerSample)
	w.accumAudio = append(w.accumAudio, audioMsg.Samples...)

	audioHoldoff := 0
	if !w.cfg.LowLatency && !csMsg.LastChunkInUtt {
		audioHoldoff = w.fLen
	}
	available := int64(len(w.accumAudio) - audioHoldoff)
	nFrames := 0
	if available > w.processPtr {
		nFrames = int((available - w.processPtr) / int64(w.fLen))
	}
	if nFrames == 0 && !csMsg.LastChunkInUtt {
		return nil
	}

	var outTimestamps []message.Tick
	cols := make([][]float64, 0, nFrames)
	snippet := make([]float64, w.wLen)

	// process_ptr counts samples consumed so far (inclusive of the frame
	// just produced); the analysis window ends at that boundary and is
	// zero-padded on the left while process_ptr < wLen.
	for w.processPtr+int64(w.fLen) <= available {
		w.processPtr += int64(w.fLen)

		for i := range snippet {
			snippet[i] = 0
		}
		pickupStart := w.processPtr - int64(w.wLen)
		if pickupStart < 0 {
			pickupStart = 0
		}
		pickupSize := w.processPtr - pickupStart
		dst := int64(w.wLen) - pickupSize
		for i := int64(0); i < pickupSize; i++ {
			snippet[dst+i] = float64(w.accumAudio[pickupStart+i])
		}

		normed := zeroMean(snippet)
		filtered := make([]float64, w.wLen)
		for i := range filtered {
			filtered[i] = w.coeffs[i] * normed[i]
		}
		cols = append(cols, filtered)

		frameTimestamp := w.uttStartStreamOffset + int64(math.Round(ticksPerSample*float64(w.processPtr+w.accumOffsetInUtt)))
		outTimestamps = append(outTimestamps, message.Tick(frameTimestamp))
	}

	if len(outTimestamps) != nFrames {
		return &loop.ContractError{Component: "window", Op: "process_message", Describe: audioMsg.Describe(),
			Err: fmt.Errorf("frame count estimated %d but produced %d", nFrames, len(outTimestamps))}
	}
	if len(outTimestamps) == 0 {
		// Too little trailing audio remains to form even one frame; nothing
		// to publish this round, even at the end of an utterance.
		return nil
	}
	if csMsg.LastChunkInUtt {
		outTimestamps[len(outTimestamps)-1] = csMsg.Time()
	}

	outMat := buildMatrix(w.wLen, cols)
	featMsg, err := message.NewFeatures(csMsg.UtteranceID, outMat, fmt.Sprintf("WINAUDIO[0:%d]%%f", w.wLen-1), outTimestamps, audioMsg.Descriptors())
	if err != nil {
		return &loop.ContractError{Component: "window", Op: "emit_features", Describe: audioMsg.Describe(), Err: err}
	}
	w.logger.Debug("emitted features", zap.String("utterance_id", csMsg.UtteranceID), zap.Int("frames", len(outTimestamps)))
	if err := out.Publish(SlotFeatures, featMsg); err != nil {
		return err
	}

	framesToRemove := nFrames - w.wLen/w.fLen - 1
	if framesToRemove > 0 {
		removedSamples := int64(framesToRemove * w.fLen)
		w.accumAudio = w.accumAudio[removedSamples:]
		w.accumOffsetInUtt += removedSamples
		w.processPtr -= removedSamples
	}

	if csMsg.LastChunkInUtt {
		w.logger.Info("utterance closed, resetting buffer", zap.String("utterance_id", csMsg.UtteranceID), zap.Int64("next_utt_start_offset", int64(featMsg.Time())+1))
		w.uttStartStreamOffset = int64(featMsg.Time()) + 1
		w.processPtr = 0
		w.accumOffsetInUtt = 0
		w.accumAudio = nil
	}
	return nil
}

// buildMatrix assembles a rows x len(cols) matrix from column-major data.
func buildMatrix(rows int, cols [][]float64) *mat.Dense {
	out := mat.NewDense(rows, len(cols), nil)
	for j, col := range cols {
		out.SetCol(j, col)
	}
	return out
}

// zeroMean returns a copy of seq with its mean subtracted.
func zeroMean(seq []float64) []float64 {
	var sum float64
	for _, v := range seq {
		sum += v
	}
	mean := sum / float64(len(seq))
	out := make([]float64, len(seq))
	for i, v := range seq {
		out[i] = v - mean
	}
	return out
}
