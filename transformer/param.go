package transformer

import (
	"gonum.org/v1/gonum/mat"

	"chargpt/optimizations"
)

// param couples a weight tensor with its gradient accumulator and AdamW
// state. Gradients accumulate across the sequences of a batch and are
// consumed by exactly one optimizer step.
type param struct {
	w, g  *mat.Dense
	opt   *optimizations.State
	decay bool // weight decay applies to weight matrices, never biases/gains
}

func newParam(r, c int, data []float64, decay bool) *param {
	return &param{
		w:     mat.NewDense(r, c, data),
		g:     mat.NewDense(r, c, nil),
		opt:   optimizations.NewState(r, c),
		decay: decay,
	}
}

func (p *param) zeroGrad() {
	p.g.Zero()
}

func (p *param) size() int {
	r, c := p.w.Dims()
	return r * c
}
