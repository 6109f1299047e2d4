package transformer

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"chargpt/utils"
)

// MLP is the position-wise feed-forward sub-layer: expand to 4x the model
// width, ReLU, contract back. Every position is transformed independently.
type MLP struct {
	dModel, hidden int

	wIn  *param // (hidden x dModel)
	bIn  *param // (hidden x 1)
	wOut *param // (dModel x hidden)
	bOut *param // (dModel x 1)

	// cache for backprop
	x      *mat.Dense
	preAct *mat.Dense
	hid    *mat.Dense
}

func NewMLP(dModel int, src rand.Source) *MLP {
	hidden := 4 * dModel
	return &MLP{
		dModel: dModel,
		hidden: hidden,
		wIn:    newParam(hidden, dModel, utils.UniformArray(src, hidden*dModel, float64(dModel)), true),
		bIn:    newParam(hidden, 1, nil, false),
		wOut:   newParam(dModel, hidden, utils.UniformArray(src, dModel*hidden, float64(hidden)), true),
		bOut:   newParam(dModel, 1, nil, false),
	}
}

func (mlp *MLP) Forward(X *mat.Dense) *mat.Dense {
	mlp.x = X
	pre := utils.AddBias(utils.ToDense(utils.Dot(mlp.wIn.w, X)), mlp.bIn.w) // (hidden x T)
	mlp.preAct = pre
	mlp.hid = utils.ToDense(utils.Apply(utils.ReLUApply, pre))
	out := utils.AddBias(utils.ToDense(utils.Dot(mlp.wOut.w, mlp.hid)), mlp.bOut.w) // (dModel x T)
	return out
}

// Backward accumulates parameter gradients and returns dX.
func (mlp *MLP) Backward(grad *mat.Dense) *mat.Dense {
	mlp.wOut.g.Add(mlp.wOut.g, utils.ToDense(utils.Dot(grad, mlp.hid.T())))
	mlp.bOut.g.Add(mlp.bOut.g, utils.RowSums(grad))

	dHid := utils.ToDense(utils.Dot(mlp.wOut.w.T(), grad))
	dPre := utils.ToDense(utils.Multiply(dHid, utils.ReLUPrime(mlp.preAct)))

	mlp.wIn.g.Add(mlp.wIn.g, utils.ToDense(utils.Dot(dPre, mlp.x.T())))
	mlp.bIn.g.Add(mlp.bIn.g, utils.RowSums(dPre))

	return utils.ToDense(utils.Dot(mlp.wIn.w.T(), dPre))
}

func (mlp *MLP) params() []*param {
	return []*param{mlp.wIn, mlp.bIn, mlp.wOut, mlp.bOut}
}
