package dispatch

import (
	"fmt"
	"math"
)

// Weights balance the three match factors. Each factor is normalized to
// [0,1] before weighting, so weights summing to 1 keep the composite score
// in [0,1]. The default split is a tunable policy, not a law; mission types
// may carry their own set.
type Weights struct {
	Capability float64 `json:"capability"`
	Equipment  float64 `json:"equipment"`
	Distance   float64 `json:"distance"`
}

// DefaultWeights returns the rescue-mission weight split.
func DefaultWeights() Weights {
	return Weights{Capability: 0.6, Equipment: 0.2, Distance: 0.2}
}

// Validate checks each weight is in [0,1] and the sum is 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"capability": w.Capability,
		"equipment":  w.Equipment,
		"distance":   w.Distance,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("weight %s=%v out of [0,1]", name, v)
		}
	}
	if sum := w.Capability + w.Equipment + w.Distance; math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("weights must sum to 1, got %v", sum)
	}
	return nil
}

// Config defines matcher parameters loaded from configuration.
type Config struct {
	Weights Weights `json:"weights"`
	// ScoreCutoff is the minimum composite score for a candidate to stay
	// eligible.
	ScoreCutoff float64 `json:"score_cutoff"`
	// ReuseThreshold is the minimum composite score allowing a resource
	// already assigned in this run to serve another task.
	ReuseThreshold float64 `json:"reuse_threshold"`
}

// SetDefaults applies the default policy values.
func (c *Config) SetDefaults() {
	zero := Weights{}
	if c.Weights == zero {
		c.Weights = DefaultWeights()
	}
	if c.ScoreCutoff == 0 {
		c.ScoreCutoff = 0.1
	}
	if c.ReuseThreshold == 0 {
		c.ReuseThreshold = 0.85
	}
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.ScoreCutoff < 0 || c.ScoreCutoff > 1 {
		return fmt.Errorf("score_cutoff %v out of [0,1]", c.ScoreCutoff)
	}
	if c.ReuseThreshold < 0 || c.ReuseThreshold > 1 {
		return fmt.Errorf("reuse_threshold %v out of [0,1]", c.ReuseThreshold)
	}
	return nil
}
