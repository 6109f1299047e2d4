package transformer

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"chargpt/utils"
)

// Block is one transformer block: a causal-attention sub-layer and a
// feed-forward sub-layer, each pre-normalized and wrapped in a residual:
//
//	x = x + Attn(LN1(x))
//	x = x + MLP(LN2(x))
type Block struct {
	ln1  *LayerNorm
	attn *Attention
	ln2  *LayerNorm
	mlp  *MLP
}

func NewBlock(dModel, numHeads, contextLen int, src rand.Source) *Block {
	return &Block{
		ln1:  NewLayerNorm(dModel),
		attn: NewAttention(dModel, numHeads, contextLen, src),
		ln2:  NewLayerNorm(dModel),
		mlp:  NewMLP(dModel, src),
	}
}

func (b *Block) Forward(X *mat.Dense) *mat.Dense {
	X = utils.ToDense(utils.Add(X, b.attn.Forward(b.ln1.Forward(X))))
	X = utils.ToDense(utils.Add(X, b.mlp.Forward(b.ln2.Forward(X))))
	return X
}

// Backward accumulates parameter gradients and returns dX. The residual
// paths pass the incoming gradient through unchanged alongside each
// sub-layer's contribution.
func (b *Block) Backward(dY *mat.Dense) *mat.Dense {
	dX1 := utils.ToDense(utils.Add(dY, b.ln2.Backward(b.mlp.Backward(dY))))
	return utils.ToDense(utils.Add(dX1, b.ln1.Backward(b.attn.Backward(dX1))))
}

func (b *Block) params() []*param {
	out := b.ln1.params()
	out = append(out, b.attn.params()...)
	out = append(out, b.ln2.params()...)
	return append(out, b.mlp.params()...)
}
