package data

import (
	"fmt"
	"os"
)

// Split names one of the two disjoint corpus regions.
type Split int

const (
	Train Split = iota
	Val
)

func (s Split) String() string {
	if s == Train {
		return "train"
	}
	return "val"
}

// Corpus is the encoded text split once into a training prefix and a
// validation suffix. Both slices are immutable for the run's lifetime.
type Corpus struct {
	train []int
	val   []int
}

// NewCorpus splits the encoded symbols, holding out the final valFrac of the
// sequence for validation.
func NewCorpus(ids []int, valFrac float64) (*Corpus, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("data: empty corpus")
	}
	if valFrac <= 0 || valFrac >= 1 {
		return nil, fmt.Errorf("data: valFrac must be in (0, 1), got %g", valFrac)
	}
	n := int(float64(len(ids)) * (1 - valFrac))
	if n == 0 || n == len(ids) {
		return nil, fmt.Errorf("data: corpus of length %d too small to split at %g", len(ids), valFrac)
	}
	return &Corpus{train: ids[:n], val: ids[n:]}, nil
}

// SplitData returns the requested region.
func (c *Corpus) SplitData(s Split) []int {
	if s == Train {
		return c.train
	}
	return c.val
}

// ReadText loads the raw training text from disk.
func ReadText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("data: reading corpus: %w", err)
	}
	return string(b), nil
}
