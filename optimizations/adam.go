package optimizations

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// State carries the AdamW moment estimates for one parameter tensor.
type State struct {
	M, V *mat.Dense
	T    int
}

// NewState allocates zeroed moments matching a (r x c) parameter.
func NewState(r, c int) *State {
	return &State{
		M: mat.NewDense(r, c, nil),
		V: mat.NewDense(r, c, nil),
	}
}

// Step applies one AdamW update:
// p -= lr * (mhat/(sqrt(vhat)+eps) + weightDecay*p) with bias correction.
func (s *State) Step(p, g *mat.Dense, lr, beta1, beta2, eps, weightDecay float64) {
	s.T++
	AdamUpdateInPlace(p, g, s.M, s.V, s.T, lr, beta1, beta2, eps, weightDecay)
}

// AdamUpdateInPlace mutates p, m, and v for step t.
func AdamUpdateInPlace(
	p, g, m, v *mat.Dense,
	t int,
	lr, beta1, beta2, eps, weightDecay float64,
) {
	pr, pc := p.Dims()
	if gr, gc := g.Dims(); gr != pr || gc != pc {
		panic("AdamUpdateInPlace: grad shape mismatch")
	}
	if mr, mc := m.Dims(); mr != pr || mc != pc {
		panic("AdamUpdateInPlace: m shape mismatch")
	}
	if vr, vc := v.Dims(); vr != pr || vc != pc {
		panic("AdamUpdateInPlace: v shape mismatch")
	}
	b1t := math.Pow(beta1, float64(t))
	b2t := math.Pow(beta2, float64(t))
	c1 := 1.0 / (1.0 - b1t)
	c2 := 1.0 / (1.0 - b2t)
	for i := 0; i < pr; i++ {
		for j := 0; j < pc; j++ {
			gij := g.At(i, j)
			mij := beta1*m.At(i, j) + (1.0-beta1)*gij
			vij := beta2*v.At(i, j) + (1.0-beta2)*gij*gij
			mhat := mij * c1
			vhat := vij * c2
			update := mhat/(math.Sqrt(vhat)+eps) + weightDecay*p.At(i, j)
			m.Set(i, j, mij)
			v.Set(i, j, vij)
			p.Set(i, j, p.At(i, j)-lr*update)
		}
	}
}
