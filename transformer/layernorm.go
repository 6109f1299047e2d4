package transformer

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// LayerNorm normalizes each position's feature vector to zero mean and unit
// variance, then applies a learned per-feature affine (gamma, beta).
type LayerNorm struct {
	d   int
	eps float64

	gamma *param // (d x 1)
	beta  *param // (d x 1)

	// cache for backprop
	xhat   *mat.Dense // (d x T)
	invStd []float64  // per column
}

func NewLayerNorm(d int) *LayerNorm {
	ones := make([]float64, d)
	for i := range ones {
		ones[i] = 1
	}
	return &LayerNorm{
		d:     d,
		eps:   1e-5,
		gamma: newParam(d, 1, ones, false),
		beta:  newParam(d, 1, nil, false),
	}
}

func (ln *LayerNorm) Forward(X *mat.Dense) *mat.Dense {
	d, T := X.Dims()
	if d != ln.d {
		panic("LayerNorm: feature dimension mismatch")
	}
	out := mat.NewDense(d, T, nil)
	xhat := mat.NewDense(d, T, nil)
	inv := make([]float64, T)
	for t := 0; t < T; t++ {
		mu := 0.0
		for i := 0; i < d; i++ {
			mu += X.At(i, t)
		}
		mu /= float64(d)
		v := 0.0
		for i := 0; i < d; i++ {
			diff := X.At(i, t) - mu
			v += diff * diff
		}
		v /= float64(d)
		istd := 1.0 / math.Sqrt(v+ln.eps)
		inv[t] = istd
		for i := 0; i < d; i++ {
			n := (X.At(i, t) - mu) * istd
			xhat.Set(i, t, n)
			out.Set(i, t, ln.gamma.w.At(i, 0)*n+ln.beta.w.At(i, 0))
		}
	}
	ln.xhat = xhat
	ln.invStd = inv
	return out
}

// Backward accumulates dGamma/dBeta and returns dX. Must follow the Forward
// whose caches it consumes.
func (ln *LayerNorm) Backward(dY *mat.Dense) *mat.Dense {
	d, T := dY.Dims()
	for i := 0; i < d; i++ {
		sumDG := 0.0
		sumDB := 0.0
		for t := 0; t < T; t++ {
			sumDG += dY.At(i, t) * ln.xhat.At(i, t)
			sumDB += dY.At(i, t)
		}
		ln.gamma.g.Set(i, 0, ln.gamma.g.At(i, 0)+sumDG)
		ln.beta.g.Set(i, 0, ln.beta.g.At(i, 0)+sumDB)
	}

	dX := mat.NewDense(d, T, nil)
	for t := 0; t < T; t++ {
		istd := ln.invStd[t]
		sum1 := 0.0
		sum2 := 0.0
		for i := 0; i < d; i++ {
			gy := dY.At(i, t) * ln.gamma.w.At(i, 0)
			sum1 += gy
			sum2 += gy * ln.xhat.At(i, t)
		}
		for i := 0; i < d; i++ {
			gy := dY.At(i, t) * ln.gamma.w.At(i, 0)
			dxi := (float64(d)*gy - sum1 - ln.xhat.At(i, t)*sum2) * (istd / float64(d))
			dX.Set(i, t, dxi)
		}
	}
	return dX
}

func (ln *LayerNorm) params() []*param {
	return []*param{ln.gamma, ln.beta}
}
