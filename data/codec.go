package data

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Codec maps the corpus alphabet to integer symbol codes and back. Codes are
// assigned by sorted rune order, so the mapping is deterministic for a given
// corpus.
type Codec struct {
	itos []rune
	stoi map[rune]int
}

// NewCodec builds the character vocabulary from the unique runes of text.
func NewCodec(text string) (*Codec, error) {
	if len(text) == 0 {
		return nil, errors.New("data: cannot build a vocabulary from an empty corpus")
	}
	seen := make(map[rune]struct{})
	for _, r := range text {
		seen[r] = struct{}{}
	}
	itos := make([]rune, 0, len(seen))
	for r := range seen {
		itos = append(itos, r)
	}
	sort.Slice(itos, func(i, j int) bool { return itos[i] < itos[j] })
	stoi := make(map[rune]int, len(itos))
	for i, r := range itos {
		stoi[r] = i
	}
	return &Codec{itos: itos, stoi: stoi}, nil
}

// VocabSize returns the alphabet size V.
func (c *Codec) VocabSize() int { return len(c.itos) }

// Encode maps text to symbol codes. Characters outside the vocabulary are an
// error rather than silently skipped.
func (c *Codec) Encode(s string) ([]int, error) {
	out := make([]int, 0, len(s))
	for _, r := range s {
		id, ok := c.stoi[r]
		if !ok {
			return nil, fmt.Errorf("data: character %q not in vocabulary", r)
		}
		out = append(out, id)
	}
	return out, nil
}

// Decode maps symbol codes back to text.
func (c *Codec) Decode(ids []int) (string, error) {
	var sb strings.Builder
	for _, id := range ids {
		if id < 0 || id >= len(c.itos) {
			return "", fmt.Errorf("data: symbol %d outside vocabulary of size %d", id, len(c.itos))
		}
		sb.WriteRune(c.itos[id])
	}
	return sb.String(), nil
}
