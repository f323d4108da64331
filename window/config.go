package window

import "fmt"

// Function selects one of the two windowing functions Window supports.
type Function string

const (
	FunctionHamming   Function = "hamming"
	FunctionRectangle Function = "rectangle"
)

// Config is Window's typed option surface, per spec §6.
type Config struct {
	LowLatency            bool     `yaml:"low_latency"`
	SamplingFrequency     float32  `yaml:"sampling_frequency"`
	AnalysisFrameSize     float32  `yaml:"analysis_frame_size"`      // milliseconds
	AnalysisFrameStepSize float32  `yaml:"analysis_frame_step_size"` // milliseconds
	WindowingFunction     Function `yaml:"windowing_function"`
}

func (c Config) validate() error {
	if c.SamplingFrequency <= 0 {
		return fmt.Errorf("window: sampling_frequency must be positive")
	}
	if c.AnalysisFrameSize <= 0 {
		return fmt.Errorf("window: analysis_frame_size must be positive")
	}
	if c.AnalysisFrameStepSize <= 0 {
		return fmt.Errorf("window: analysis_frame_step_size must be positive")
	}
	switch c.WindowingFunction {
	case FunctionHamming, FunctionRectangle:
	default:
		return fmt.Errorf("window: unknown windowing_function %q", c.WindowingFunction)
	}
	return nil
}

// frameLengths derives wLen (points per analysis window) and fLen (points
// per step) from the millisecond-denominated config, matching the
// original's `round(0.001 * samplingRate * durationMs)`.
func (c Config) frameLengths() (wLen, fLen int) {
	wLen = roundToInt(0.001 * float64(c.SamplingFrequency) * float64(c.AnalysisFrameSize))
	fLen = roundToInt(0.001 * float64(c.SamplingFrequency) * float64(c.AnalysisFrameStepSize))
	return wLen, fLen
}

func roundToInt(f float64) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}
