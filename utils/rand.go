package utils

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// NewSource derives a deterministic PCG stream from a run seed. The stream
// index keeps initialization, batch sampling, and generation independent of
// one another while sharing one configured seed.
func NewSource(seed, stream uint64) *rand.PCG {
	return rand.NewPCG(seed, stream)
}

// UniformArray draws size samples from U(-1/sqrt(fanIn), +1/sqrt(fanIn)),
// the init range used for every weight matrix in the model.
func UniformArray(src rand.Source, size int, fanIn float64) []float64 {
	dist := distuv.Uniform{
		Min: -1.0 / math.Sqrt(fanIn+1e-12),
		Max: 1.0 / math.Sqrt(fanIn+1e-12),
		Src: src,
	}
	out := make([]float64, size)
	for i := range out {
		out[i] = dist.Rand()
	}
	return out
}

// SampleCategorical draws one index from a (V x 1) probability column.
// Probabilities are renormalized defensively before the cumulative scan.
func SampleCategorical(rng *rand.Rand, probs *mat.Dense) int {
	r, c := probs.Dims()
	if c != 1 {
		panic("SampleCategorical expects a (r x 1) column vector")
	}
	sum := 0.0
	for i := 0; i < r; i++ {
		sum += probs.At(i, 0)
	}
	u := rng.Float64() * sum
	cum := 0.0
	for i := 0; i < r; i++ {
		cum += probs.At(i, 0)
		if u < cum {
			return i
		}
	}
	return r - 1 // fallback for accumulated rounding
}
