package params

import "fmt"

// Config holds every hyperparameter of a run. All values are fixed at
// process start; components receive the config at construction and never
// read ambient state.
type Config struct {
	// Core transformer parameters
	DModel     int // model width
	NumLayers  int // transformer blocks
	NumHeads   int // attention heads per block; dHead = DModel/NumHeads
	ContextLen int // max window length the model conditions on

	// Training
	BatchSize    int     // windows per optimizer step
	MaxIters     int     // total optimizer steps
	EvalInterval int     // estimate train/val loss every N steps
	EvalIters    int     // batches averaged per loss estimate
	LearningRate float64
	ValFrac      float64 // fraction of the corpus held out for validation

	// AdamW
	AdamBeta1   float64 // default 0.9
	AdamBeta2   float64 // default 0.999
	AdamEps     float64 // default 1e-8
	WeightDecay float64 // applied to weight matrices only; 0 disables
	GradClip    float64 // global-norm clip; <=0 disables

	Seed uint64
}

// Default mirrors the small character-model setup: a 32-wide model with
// 3 blocks of 4 heads over 8-symbol windows.
func Default() Config {
	return Config{
		DModel:     32,
		NumLayers:  3,
		NumHeads:   4,
		ContextLen: 8,

		BatchSize:    32,
		MaxIters:     5000,
		EvalInterval: 300,
		EvalIters:    200,
		LearningRate: 1e-3, // self-attention diverges at 1e-2
		ValFrac:      0.1,

		AdamBeta1:   0.9,
		AdamBeta2:   0.999,
		AdamEps:     1e-8,
		WeightDecay: 0.01,
		GradClip:    1.0,

		Seed: 1337,
	}
}

// Validate rejects configurations the model cannot be built from.
func (c Config) Validate() error {
	if c.DModel <= 0 {
		return fmt.Errorf("params: DModel must be positive, got %d", c.DModel)
	}
	if c.NumHeads <= 0 {
		return fmt.Errorf("params: NumHeads must be positive, got %d", c.NumHeads)
	}
	if c.DModel%c.NumHeads != 0 {
		return fmt.Errorf("params: DModel (%d) must be divisible by NumHeads (%d)", c.DModel, c.NumHeads)
	}
	if c.NumLayers <= 0 {
		return fmt.Errorf("params: NumLayers must be positive, got %d", c.NumLayers)
	}
	if c.ContextLen <= 0 {
		return fmt.Errorf("params: ContextLen must be positive, got %d", c.ContextLen)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("params: BatchSize must be positive, got %d", c.BatchSize)
	}
	if c.EvalInterval <= 0 {
		return fmt.Errorf("params: EvalInterval must be positive, got %d", c.EvalInterval)
	}
	if c.EvalIters <= 0 {
		return fmt.Errorf("params: EvalIters must be positive, got %d", c.EvalIters)
	}
	if c.MaxIters < 0 {
		return fmt.Errorf("params: MaxIters must be non-negative, got %d", c.MaxIters)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("params: LearningRate must be positive, got %g", c.LearningRate)
	}
	if c.ValFrac <= 0 || c.ValFrac >= 1 {
		return fmt.Errorf("params: ValFrac must be in (0, 1), got %g", c.ValFrac)
	}
	return nil
}

// HeadSize returns the per-head subspace width.
func (c Config) HeadSize() int {
	return c.DModel / c.NumHeads
}
