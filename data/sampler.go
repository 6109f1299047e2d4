package data

import (
	"fmt"
	"math/rand/v2"
)

// Sampler draws fixed-length training windows uniformly at random from a
// corpus split. Draws are independent across calls; there is no epoch
// schedule and offsets repeat freely.
type Sampler struct {
	corpus  *Corpus
	batch   int
	context int
	rng     *rand.Rand
}

func NewSampler(corpus *Corpus, batchSize, contextLen int, rng *rand.Rand) (*Sampler, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("data: batch size must be positive, got %d", batchSize)
	}
	if contextLen <= 0 {
		return nil, fmt.Errorf("data: context length must be positive, got %d", contextLen)
	}
	return &Sampler{corpus: corpus, batch: batchSize, context: contextLen, rng: rng}, nil
}

// Batch materializes batchSize (input, target) window pairs from the split:
// x = split[i : i+C] and y = split[i+1 : i+C+1], with each start offset drawn
// uniformly from [0, len(split)-C).
func (s *Sampler) Batch(split Split) (xb, yb [][]int, err error) {
	d := s.corpus.SplitData(split)
	if len(d) <= s.context {
		return nil, nil, fmt.Errorf("data: %s split length %d cannot supply windows of length %d",
			split, len(d), s.context)
	}
	xb = make([][]int, s.batch)
	yb = make([][]int, s.batch)
	for b := 0; b < s.batch; b++ {
		i := s.rng.IntN(len(d) - s.context)
		xb[b] = d[i : i+s.context]
		yb[b] = d[i+1 : i+s.context+1]
	}
	return xb, yb, nil
}
