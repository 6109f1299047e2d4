package utils

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestCausalMaskShape(t *testing.T) {
	m := CausalMask(5)
	r, c := m.Dims()
	if r != 5 || c != 5 {
		t.Fatalf("mask dims = (%d,%d), want (5,5)", r, c)
	}
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			v := m.At(i, j)
			if j <= i && v != 0 {
				t.Fatalf("mask[%d,%d] = %g, want 0 on/below diagonal", i, j, v)
			}
			if j > i && v >= 0 {
				t.Fatalf("mask[%d,%d] = %g, want large negative above diagonal", i, j, v)
			}
		}
	}
}

func TestRowSoftmaxMaskedRowsSumToOne(t *testing.T) {
	T := 4
	s := mat.NewDense(T, T, []float64{
		0.3, -1.2, 2.0, 0.7,
		1.1, 0.0, -0.5, 0.2,
		-2.0, 0.4, 0.9, 1.5,
		0.0, 0.0, 0.0, 0.0,
	})
	a := RowSoftmaxMasked(s, CausalMask(T))
	for i := 0; i < T; i++ {
		sum := 0.0
		for j := 0; j < T; j++ {
			v := a.At(i, j)
			if v < 0 {
				t.Fatalf("weight[%d,%d] = %g, want non-negative", i, j, v)
			}
			if j > i && v > 1e-12 {
				t.Fatalf("weight[%d,%d] = %g, want ~0 for future position", i, j, v)
			}
			sum += v
		}
		if math.Abs(sum-1.0) > 1e-9 {
			t.Fatalf("row %d sums to %g, want 1", i, sum)
		}
	}
}

func TestCrossEntropyExtremes(t *testing.T) {
	V := 7

	// Near one-hot prediction of the gold symbol: loss near zero.
	sharp := mat.NewDense(V, 1, nil)
	sharp.Set(3, 0, 50.0)
	loss, _ := CrossEntropyWithIndex(sharp, 3)
	if loss > 1e-6 {
		t.Fatalf("one-hot loss = %g, want ~0", loss)
	}

	// Uniform prediction: loss = ln(V).
	uniform := mat.NewDense(V, 1, nil)
	loss, grad := CrossEntropyWithIndex(uniform, 2)
	if math.Abs(loss-math.Log(float64(V))) > 1e-9 {
		t.Fatalf("uniform loss = %g, want ln(%d) = %g", loss, V, math.Log(float64(V)))
	}
	// Gradient is p - onehot: 1/V everywhere except 1/V - 1 at gold.
	for i := 0; i < V; i++ {
		want := 1.0 / float64(V)
		if i == 2 {
			want -= 1.0
		}
		if math.Abs(grad.At(i, 0)-want) > 1e-9 {
			t.Fatalf("grad[%d] = %g, want %g", i, grad.At(i, 0), want)
		}
	}
}

func TestSoftmaxBackwardFiniteDiff(t *testing.T) {
	s := mat.NewDense(1, 3, []float64{0.2, -0.4, 1.1})
	a := RowSoftmaxMasked(s, mat.NewDense(1, 3, nil))

	// Loss = sum of weighted softmax outputs, arbitrary weights.
	w := []float64{0.7, -1.3, 0.5}
	dA := mat.NewDense(1, 3, w)
	dS := SoftmaxBackward(dA, a)

	eps := 1e-6
	for j := 0; j < 3; j++ {
		orig := s.At(0, j)
		s.Set(0, j, orig+eps)
		ap := RowSoftmaxMasked(s, mat.NewDense(1, 3, nil))
		s.Set(0, j, orig-eps)
		am := RowSoftmaxMasked(s, mat.NewDense(1, 3, nil))
		s.Set(0, j, orig)

		lp, lm := 0.0, 0.0
		for k := 0; k < 3; k++ {
			lp += w[k] * ap.At(0, k)
			lm += w[k] * am.At(0, k)
		}
		num := (lp - lm) / (2 * eps)
		if math.Abs(num-dS.At(0, j)) > 1e-6 {
			t.Fatalf("dS[0,%d]: numeric %g, analytic %g", j, num, dS.At(0, j))
		}
	}
}

func TestReLU(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{-1.5, 0, 2.0, -0.1})
	out := ToDense(Apply(ReLUApply, m))
	want := []float64{0, 0, 2.0, 0}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if out.At(i, j) != want[i*2+j] {
				t.Fatalf("relu[%d,%d] = %g, want %g", i, j, out.At(i, j), want[i*2+j])
			}
		}
	}
	prime := ReLUPrime(m)
	wantP := []float64{0, 0, 1, 0}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if prime.At(i, j) != wantP[i*2+j] {
				t.Fatalf("relu'[%d,%d] = %g, want %g", i, j, prime.At(i, j), wantP[i*2+j])
			}
		}
	}
}

func TestClipGrads(t *testing.T) {
	g1 := mat.NewDense(1, 2, []float64{3, 0})
	g2 := mat.NewDense(1, 2, []float64{0, 4}) // joint norm 5
	s := ClipGrads(1.0, g1, g2)
	if math.Abs(s-0.2) > 1e-9 {
		t.Fatalf("clip scale = %g, want 0.2", s)
	}
	total := MatrixNorm(g1)*MatrixNorm(g1) + MatrixNorm(g2)*MatrixNorm(g2)
	if math.Abs(math.Sqrt(total)-1.0) > 1e-6 {
		t.Fatalf("post-clip norm = %g, want 1", math.Sqrt(total))
	}

	// Below threshold: untouched.
	g3 := mat.NewDense(1, 1, []float64{0.5})
	if s := ClipGrads(1.0, g3); s != 1.0 {
		t.Fatalf("clip scale = %g for small grads, want 1", s)
	}
	if g3.At(0, 0) != 0.5 {
		t.Fatalf("small grad mutated to %g", g3.At(0, 0))
	}
}

func TestAddBiasBroadcast(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	b := mat.NewDense(2, 1, []float64{10, 20})
	out := AddBias(m, b)
	if out.At(0, 2) != 13 || out.At(1, 0) != 24 {
		t.Fatalf("bias broadcast wrong: got %g and %g", out.At(0, 2), out.At(1, 0))
	}
}
