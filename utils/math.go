package utils

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Matrix helpers shared by the model. Activations are laid out
// (features x time): column t is the vector for position t.

func Dot(m, n mat.Matrix) mat.Matrix {
	r, _ := m.Dims()
	_, c := n.Dims()
	o := mat.NewDense(r, c, nil)
	o.Product(m, n)
	return o
}

func Apply(fn func(i, j int, v float64) float64, m mat.Matrix) mat.Matrix {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Apply(fn, m)
	return o
}

func Scale(s float64, m mat.Matrix) mat.Matrix {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Scale(s, m)
	return o
}

func Multiply(m, n mat.Matrix) mat.Matrix {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.MulElem(m, n)
	return o
}

func Add(m, n mat.Matrix) mat.Matrix {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Add(m, n)
	return o
}

func ToDense(m mat.Matrix) *mat.Dense {
	if d, ok := m.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(m)
}

func ZerosLike(a *mat.Dense) *mat.Dense {
	r, c := a.Dims()
	return mat.NewDense(r, c, nil)
}

// AddBias broadcasts a (r x 1) bias across every column of m.
func AddBias(m, bias *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	rb, cb := bias.Dims()
	if rb != r || cb != 1 {
		panic("AddBias: bias must be (r x 1)")
	}
	out := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			out.Set(i, j, m.At(i, j)+bias.At(i, 0))
		}
	}
	return out
}

// LastCol copies the final column of m into a (r x 1) vector.
func LastCol(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, m.At(i, c-1))
	}
	return out
}

// RowSums accumulates each row of m into a (r x 1) vector.
func RowSums(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		s := 0.0
		for j := 0; j < c; j++ {
			s += m.At(i, j)
		}
		out.Set(i, 0, s)
	}
	return out
}

// MatrixNorm returns the Frobenius norm of m.
func MatrixNorm(m *mat.Dense) float64 {
	r, c := m.Dims()
	s := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			s += v * v
		}
	}
	return math.Sqrt(s)
}

// ClipGrads rescales the given gradients in place so their joint global norm
// does not exceed maxNorm. Returns the scale applied (1.0 when untouched).
func ClipGrads(maxNorm float64, grads ...*mat.Dense) float64 {
	if maxNorm <= 0 {
		return 1.0
	}
	total := 0.0
	for _, g := range grads {
		n := MatrixNorm(g)
		total += n * n
	}
	norm := math.Sqrt(total)
	if norm <= maxNorm {
		return 1.0
	}
	s := maxNorm / (norm + 1e-12)
	for _, g := range grads {
		g.Scale(s, g)
	}
	return s
}

// ---------- Activation ----------

// ReLUApply is shape-compatible with mat.Dense.Apply.
func ReLUApply(i, j int, v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// ReLUPrime returns the elementwise derivative given the pre-activation.
func ReLUPrime(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if m.At(i, j) > 0 {
				out.Set(i, j, 1)
			}
		}
	}
	return out
}

// ---------- Masking ----------

// CausalMask returns an additive (T x T) mask: 0 on and below the diagonal,
// a large negative value above it, so softmax assigns future positions zero
// probability mass.
func CausalMask(T int) *mat.Dense {
	const negInf = -1e30
	out := mat.NewDense(T, T, nil)
	for i := 0; i < T; i++ {
		for j := i + 1; j < T; j++ {
			out.Set(i, j, negInf)
		}
	}
	return out
}

// ---------- Softmax variants ----------

// RowSoftmaxMasked applies softmax(m + mask) independently to each row.
// Attention scores are (T x T) with row i holding query position i; each
// row of the result sums to 1.
func RowSoftmaxMasked(m, mask mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	if mr, mc := mask.Dims(); mr != r || mc != c {
		panic("RowSoftmaxMasked: mask shape mismatch")
	}
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		mx := m.At(i, 0) + mask.At(i, 0)
		for j := 1; j < c; j++ {
			if v := m.At(i, j) + mask.At(i, j); v > mx {
				mx = v
			}
		}
		sum := 0.0
		for j := 0; j < c; j++ {
			e := math.Exp(m.At(i, j) + mask.At(i, j) - mx)
			out.Set(i, j, e)
			sum += e
		}
		inv := 1.0 / sum
		for j := 0; j < c; j++ {
			out.Set(i, j, out.At(i, j)*inv)
		}
	}
	return out
}

// ColVectorSoftmax applies softmax across the single column of a (r x 1)
// vector. Used for logits -> probabilities.
func ColVectorSoftmax(v *mat.Dense) *mat.Dense {
	r, c := v.Dims()
	if c != 1 {
		panic("ColVectorSoftmax expects a (r x 1) column vector")
	}
	out := mat.NewDense(r, 1, nil)
	mx := v.At(0, 0)
	for i := 1; i < r; i++ {
		if v.At(i, 0) > mx {
			mx = v.At(i, 0)
		}
	}
	sum := 0.0
	for i := 0; i < r; i++ {
		e := math.Exp(v.At(i, 0) - mx)
		out.Set(i, 0, e)
		sum += e
	}
	for i := 0; i < r; i++ {
		out.Set(i, 0, out.At(i, 0)/sum)
	}
	return out
}

// SoftmaxBackward maps dL/dA to dL/dS for row-wise softmax A = softmax(S).
// Vector-JVP form: per row i, s = sum_k dA[i,k]*A[i,k];
// dS[i,j] = A[i,j]*(dA[i,j] - s).
func SoftmaxBackward(dA mat.Matrix, A *mat.Dense) *mat.Dense {
	r, c := A.Dims()
	dS := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		s := 0.0
		for k := 0; k < c; k++ {
			s += dA.At(i, k) * A.At(i, k)
		}
		for j := 0; j < c; j++ {
			aj := A.At(i, j)
			dS.Set(i, j, aj*(dA.At(i, j)-s))
		}
	}
	return dS
}

// ---------- Loss ----------

// CrossEntropyWithIndex returns -log p(gold) for a (V x 1) logits vector and
// the gradient of the loss with respect to the logits (p - onehot(gold)).
func CrossEntropyWithIndex(logits *mat.Dense, gold int) (float64, *mat.Dense) {
	r, c := logits.Dims()
	if c != 1 {
		panic("CrossEntropyWithIndex expects (r x 1) logits vector")
	}
	if gold < 0 || gold >= r {
		panic("CrossEntropyWithIndex: gold index out of range")
	}
	prob := ColVectorSoftmax(logits)
	loss := -math.Log(prob.At(gold, 0) + 1e-12)
	grad := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		grad.Set(i, 0, prob.At(i, 0))
	}
	grad.Set(gold, 0, grad.At(gold, 0)-1.0)
	return loss, grad
}
