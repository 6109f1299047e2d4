package transformer

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"chargpt/utils"
)

// Attention is masked multi-head causal self-attention. Each head projects
// the input into a dHead-wide subspace, attends over positions <= t, and the
// concatenated head outputs are mixed by one output projection.
type Attention struct {
	heads  int
	dModel int
	dHead  int

	wq, wk, wv []*param // per head: (dHead x dModel), no bias
	wo         *param   // (dModel x dModel)

	// mask is the full additive causal mask, computed once from the context
	// length and sliced to the first T x T entries per forward pass.
	mask *mat.Dense

	// cache for backprop
	x       *mat.Dense
	q, k, v []*mat.Dense
	a       []*mat.Dense
	ocat    *mat.Dense
}

func NewAttention(dModel, numHeads, contextLen int, src rand.Source) *Attention {
	if dModel%numHeads != 0 {
		panic("Attention: dModel must be divisible by numHeads")
	}
	dHead := dModel / numHeads
	attn := &Attention{
		heads:  numHeads,
		dModel: dModel,
		dHead:  dHead,
		wq:     make([]*param, numHeads),
		wk:     make([]*param, numHeads),
		wv:     make([]*param, numHeads),
		mask:   utils.CausalMask(contextLen),
		q:      make([]*mat.Dense, numHeads),
		k:      make([]*mat.Dense, numHeads),
		v:      make([]*mat.Dense, numHeads),
		a:      make([]*mat.Dense, numHeads),
	}
	for h := 0; h < numHeads; h++ {
		attn.wq[h] = newParam(dHead, dModel, utils.UniformArray(src, dHead*dModel, float64(dModel)), true)
		attn.wk[h] = newParam(dHead, dModel, utils.UniformArray(src, dHead*dModel, float64(dModel)), true)
		attn.wv[h] = newParam(dHead, dModel, utils.UniformArray(src, dHead*dModel, float64(dModel)), true)
	}
	attn.wo = newParam(dModel, dModel, utils.UniformArray(src, dModel*dModel, float64(dModel)), true)
	return attn
}

// Forward maps X (dModel x T) to (dModel x T). T may be shorter than the
// context length during early generation steps; the mask is sliced to match.
func (attn *Attention) Forward(X *mat.Dense) *mat.Dense {
	attn.x = X
	_, T := X.Dims()
	if mr, _ := attn.mask.Dims(); T > mr {
		panic("Attention: sequence longer than context length")
	}
	mask := attn.mask.Slice(0, T, 0, T)

	rescale := 1.0 / math.Sqrt(float64(attn.dHead))
	headsCat := mat.NewDense(attn.dModel, T, nil)
	for h := 0; h < attn.heads; h++ {
		Q := utils.ToDense(utils.Dot(attn.wq[h].w, X)) // (dHead x T)
		K := utils.ToDense(utils.Dot(attn.wk[h].w, X))
		V := utils.ToDense(utils.Dot(attn.wv[h].w, X))

		S := utils.ToDense(utils.Scale(rescale, utils.Dot(Q.T(), K))) // (T x T)
		A := utils.RowSoftmaxMasked(S, mask)
		O := utils.ToDense(utils.Dot(V, A.T())) // (dHead x T)

		attn.q[h], attn.k[h], attn.v[h], attn.a[h] = Q, K, V, A

		base := h * attn.dHead
		dst := headsCat.Slice(base, base+attn.dHead, 0, T).(*mat.Dense)
		dst.Copy(O)
	}
	attn.ocat = headsCat
	return utils.ToDense(utils.Dot(attn.wo.w, headsCat))
}

// Backward accumulates parameter gradients and returns dX. Must follow the
// Forward whose caches it consumes.
func (attn *Attention) Backward(dY *mat.Dense) *mat.Dense {
	_, T := attn.x.Dims()

	// Y = Wo * Ocat
	attn.wo.g.Add(attn.wo.g, utils.ToDense(utils.Dot(dY, attn.ocat.T())))
	dOcat := utils.ToDense(utils.Dot(attn.wo.w.T(), dY))

	rescale := 1.0 / math.Sqrt(float64(attn.dHead))
	dX := mat.NewDense(attn.dModel, T, nil)
	for h := 0; h < attn.heads; h++ {
		base := h * attn.dHead
		dO := dOcat.Slice(base, base+attn.dHead, 0, T).(*mat.Dense)

		// O = V * A^T
		dV := utils.ToDense(utils.Dot(dO, attn.a[h]))       // (dHead x T)
		dAT := utils.ToDense(utils.Dot(attn.v[h].T(), dO)) // (T x T)
		dA := dAT.T()

		// A = rowsoftmax(S); masked entries carry zero weight so their
		// score gradient vanishes through the JVP.
		dS := utils.SoftmaxBackward(dA, attn.a[h])

		// S = (Q^T K) / sqrt(dHead)
		dQ := utils.ToDense(utils.Scale(rescale, utils.Dot(attn.k[h], dS.T()))) // (dHead x T)
		dK := utils.ToDense(utils.Scale(rescale, utils.Dot(attn.q[h], dS)))

		attn.wq[h].g.Add(attn.wq[h].g, utils.ToDense(utils.Dot(dQ, attn.x.T())))
		attn.wk[h].g.Add(attn.wk[h].g, utils.ToDense(utils.Dot(dK, attn.x.T())))
		attn.wv[h].g.Add(attn.wv[h].g, utils.ToDense(utils.Dot(dV, attn.x.T())))

		dX.Add(dX, utils.ToDense(utils.Dot(attn.wq[h].w.T(), dQ)))
		dX.Add(dX, utils.ToDense(utils.Dot(attn.wk[h].w.T(), dK)))
		dX.Add(dX, utils.ToDense(utils.Dot(attn.wv[h].w.T(), dV)))
	}
	return dX
}

func (attn *Attention) params() []*param {
	out := make([]*param, 0, 3*attn.heads+1)
	for h := 0; h < attn.heads; h++ {
		out = append(out, attn.wq[h], attn.wk[h], attn.wv[h])
	}
	return append(out, attn.wo)
}
