package data

import (
	"math/rand/v2"
	"strings"
	"testing"
)

func TestCodecRoundTrip(t *testing.T) {
	corpus := "the quick brown fox jumps over the lazy dog"
	codec, err := NewCodec(corpus)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	for _, s := range []string{corpus, "dog the fox", "", "zzz"} {
		ids, err := codec.Encode(s)
		if err != nil {
			t.Fatalf("Encode(%q): %v", s, err)
		}
		got, err := codec.Decode(ids)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got != s {
			t.Fatalf("round trip of %q gave %q", s, got)
		}
	}
}

func TestCodecAssignsSortedCodes(t *testing.T) {
	codec, err := NewCodec("cba")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	if codec.VocabSize() != 3 {
		t.Fatalf("vocab size = %d, want 3", codec.VocabSize())
	}
	ids, err := codec.Encode("abc")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if ids[0] != 0 || ids[1] != 1 || ids[2] != 2 {
		t.Fatalf("codes for abc = %v, want [0 1 2]", ids)
	}
}

func TestCodecErrors(t *testing.T) {
	if _, err := NewCodec(""); err == nil {
		t.Fatal("expected error for empty corpus")
	}
	codec, _ := NewCodec("ab")
	if _, err := codec.Encode("abc"); err == nil {
		t.Fatal("expected error for unknown character")
	}
	if _, err := codec.Decode([]int{0, 2}); err == nil {
		t.Fatal("expected error for out-of-range symbol")
	}
	if _, err := codec.Decode([]int{-1}); err == nil {
		t.Fatal("expected error for negative symbol")
	}
}

func TestCorpusSplit(t *testing.T) {
	ids := make([]int, 100)
	c, err := NewCorpus(ids, 0.1)
	if err != nil {
		t.Fatalf("NewCorpus: %v", err)
	}
	if len(c.SplitData(Train)) != 90 || len(c.SplitData(Val)) != 10 {
		t.Fatalf("split sizes = (%d, %d), want (90, 10)",
			len(c.SplitData(Train)), len(c.SplitData(Val)))
	}
}

func TestCorpusErrors(t *testing.T) {
	if _, err := NewCorpus(nil, 0.1); err == nil {
		t.Fatal("expected error for empty corpus")
	}
	if _, err := NewCorpus([]int{1, 2, 3}, 0); err == nil {
		t.Fatal("expected error for valFrac 0")
	}
	if _, err := NewCorpus([]int{1}, 0.5); err == nil {
		t.Fatal("expected error for corpus too small to split")
	}
}

func TestSamplerOffsetsInRange(t *testing.T) {
	// Encoded corpus 0..len-1 so each window value reveals its offset.
	L, C := 200, 8
	ids := make([]int, L)
	for i := range ids {
		ids[i] = i
	}
	corpus, err := NewCorpus(ids, 0.1)
	if err != nil {
		t.Fatalf("NewCorpus: %v", err)
	}
	s, err := NewSampler(corpus, 4, C, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}

	trainLen := len(corpus.SplitData(Train))
	seen := map[int]bool{}
	for draw := 0; draw < 2500; draw++ {
		xb, yb, err := s.Batch(Train)
		if err != nil {
			t.Fatalf("Batch: %v", err)
		}
		if len(xb) != 4 || len(yb) != 4 {
			t.Fatalf("batch sizes (%d, %d), want (4, 4)", len(xb), len(yb))
		}
		for b := range xb {
			if len(xb[b]) != C || len(yb[b]) != C {
				t.Fatalf("window lengths (%d, %d), want (%d, %d)", len(xb[b]), len(yb[b]), C, C)
			}
			offset := xb[b][0]
			if offset < 0 || offset >= trainLen-C {
				t.Fatalf("offset %d outside [0, %d)", offset, trainLen-C)
			}
			for tt := 0; tt < C; tt++ {
				if yb[b][tt] != xb[b][tt]+1 {
					t.Fatalf("target not shifted by one at position %d: x=%d y=%d",
						tt, xb[b][tt], yb[b][tt])
				}
			}
			seen[offset] = true
		}
	}
	if len(seen) < 2 {
		t.Fatalf("sampling is degenerate: saw offsets %v", seen)
	}
}

func TestSamplerSplitTooShort(t *testing.T) {
	ids := make([]int, 40)
	corpus, err := NewCorpus(ids, 0.1) // val split has 4 symbols
	if err != nil {
		t.Fatalf("NewCorpus: %v", err)
	}
	s, err := NewSampler(corpus, 2, 8, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}
	_, _, err = s.Batch(Val)
	if err == nil {
		t.Fatal("expected error when split cannot supply a window")
	}
	if !strings.Contains(err.Error(), "val") {
		t.Fatalf("error %q does not name the failing split", err)
	}
}
