package router

import "fmt"

// Mode selects one of the Router's two splitting algorithms.
type Mode string

const (
	ModeSadNbest            Mode = "sad_nbest"
	ModeUtteranceRoundRobin Mode = "utterance_round_robin"
)

// Config is the Router's typed option surface, per spec §6.
type Config struct {
	RouterType Mode `yaml:"router_type"`
	NumOutputs int  `yaml:"num_outputs"`
}

// NumRoutes derives N: fixed at 2 for sad_nbest, configured for round-robin.
func (c Config) NumRoutes() (int, error) {
	switch c.RouterType {
	case ModeSadNbest:
		return 2, nil
	case ModeUtteranceRoundRobin:
		if c.NumOutputs <= 0 {
			return 0, fmt.Errorf("router: num_outputs is required and must be positive for utterance_round_robin")
		}
		return c.NumOutputs, nil
	default:
		return 0, fmt.Errorf("router: unknown router_type %q", c.RouterType)
	}
}
