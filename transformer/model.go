package transformer

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"chargpt/params"
	"chargpt/utils"
)

// ErrNonFiniteLoss reports numerical divergence during training. It is not
// recovered from; the training loop surfaces it and stops.
var ErrNonFiniteLoss = errors.New("transformer: loss is non-finite")

// GPT is a decoder-only character language model: learned token and position
// embeddings feeding a stack of pre-norm transformer blocks, a final
// normalization, and a linear projection to per-symbol logits.
type GPT struct {
	cfg   params.Config
	vocab int

	tokEmb   *param // (dModel x V)
	posEmb   *param // (dModel x ContextLen)
	blocks   []*Block
	lnF      *LayerNorm
	head     *param // (V x dModel)
	headBias *param // (V x 1)

	all []*param
}

// NewGPT builds a model with freshly initialized parameters drawn from src.
func NewGPT(cfg params.Config, vocabSize int, src rand.Source) (*GPT, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if vocabSize <= 0 {
		return nil, fmt.Errorf("transformer: vocabulary size must be positive, got %d", vocabSize)
	}
	d := cfg.DModel
	g := &GPT{
		cfg:      cfg,
		vocab:    vocabSize,
		tokEmb:   newParam(d, vocabSize, utils.UniformArray(src, d*vocabSize, float64(d)), true),
		posEmb:   newParam(d, cfg.ContextLen, utils.UniformArray(src, d*cfg.ContextLen, float64(d)), true),
		blocks:   make([]*Block, cfg.NumLayers),
		lnF:      NewLayerNorm(d),
		head:     newParam(vocabSize, d, utils.UniformArray(src, vocabSize*d, float64(d)), true),
		headBias: newParam(vocabSize, 1, nil, false),
	}
	for i := range g.blocks {
		g.blocks[i] = NewBlock(d, cfg.NumHeads, cfg.ContextLen, src)
	}
	g.all = append(g.all, g.tokEmb, g.posEmb)
	for _, b := range g.blocks {
		g.all = append(g.all, b.params()...)
	}
	g.all = append(g.all, g.lnF.params()...)
	g.all = append(g.all, g.head, g.headBias)
	return g, nil
}

// VocabSize returns the number of symbols the model predicts over.
func (g *GPT) VocabSize() int { return g.vocab }

// NumParams returns the total trainable parameter count.
func (g *GPT) NumParams() int {
	n := 0
	for _, p := range g.all {
		n += p.size()
	}
	return n
}

func (g *GPT) checkWindow(ids []int) error {
	if len(ids) == 0 {
		return errors.New("transformer: empty input window")
	}
	if len(ids) > g.cfg.ContextLen {
		return fmt.Errorf("transformer: window length %d exceeds context length %d", len(ids), g.cfg.ContextLen)
	}
	for _, id := range ids {
		if id < 0 || id >= g.vocab {
			return fmt.Errorf("transformer: symbol %d outside vocabulary of size %d", id, g.vocab)
		}
	}
	return nil
}

// embed sums the token embedding for each symbol with the position embedding
// for its offset, producing the initial residual stream (dModel x T).
func (g *GPT) embed(ids []int) *mat.Dense {
	d, T := g.cfg.DModel, len(ids)
	X := mat.NewDense(d, T, nil)
	for t, id := range ids {
		for i := 0; i < d; i++ {
			X.Set(i, t, g.tokEmb.w.At(i, id)+g.posEmb.w.At(i, t))
		}
	}
	return X
}

// hidden runs the full stack and returns the final normalized residual
// stream (dModel x T), leaving per-module caches primed for Backward.
func (g *GPT) hidden(ids []int) (*mat.Dense, error) {
	if err := g.checkWindow(ids); err != nil {
		return nil, err
	}
	X := g.embed(ids)
	for _, b := range g.blocks {
		X = b.Forward(X)
	}
	return g.lnF.Forward(X), nil
}

// Logits runs a forward pass without targets and returns the (V x T)
// unnormalized next-symbol scores.
func (g *GPT) Logits(ids []int) (*mat.Dense, error) {
	Y, err := g.hidden(ids)
	if err != nil {
		return nil, err
	}
	return utils.AddBias(utils.ToDense(utils.Dot(g.head.w, Y)), g.headBias.w), nil
}

// Loss returns the mean cross-entropy of predicting targets[t] at every
// position t of ids. No gradients are accumulated.
func (g *GPT) Loss(ids, targets []int) (float64, error) {
	if len(targets) != len(ids) {
		return 0, fmt.Errorf("transformer: targets length %d != input length %d", len(targets), len(ids))
	}
	if err := g.checkWindow(targets); err != nil {
		return 0, err
	}
	logits, err := g.Logits(ids)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for t := range ids {
		col := utils.ToDense(logits.Slice(0, g.vocab, t, t+1))
		l, _ := utils.CrossEntropyWithIndex(col, targets[t])
		total += l
	}
	return total / float64(len(ids)), nil
}

// trainSequence runs forward and backward for one window, scaling logit
// gradients by invBT so the batch's accumulated gradient matches a mean over
// all predicted positions. Returns the sequence's summed position loss.
func (g *GPT) trainSequence(ids, targets []int, invBT float64) (float64, error) {
	if len(targets) != len(ids) {
		return 0, fmt.Errorf("transformer: targets length %d != input length %d", len(targets), len(ids))
	}
	if err := g.checkWindow(targets); err != nil {
		return 0, err
	}
	Y, err := g.hidden(ids)
	if err != nil {
		return 0, err
	}
	T := len(ids)
	logits := utils.AddBias(utils.ToDense(utils.Dot(g.head.w, Y)), g.headBias.w)

	sum := 0.0
	dLogits := mat.NewDense(g.vocab, T, nil)
	for t := 0; t < T; t++ {
		col := utils.ToDense(logits.Slice(0, g.vocab, t, t+1))
		l, grad := utils.CrossEntropyWithIndex(col, targets[t])
		sum += l
		for i := 0; i < g.vocab; i++ {
			dLogits.Set(i, t, grad.At(i, 0)*invBT)
		}
	}

	// logits = head*Y + bias
	g.head.g.Add(g.head.g, utils.ToDense(utils.Dot(dLogits, Y.T())))
	g.headBias.g.Add(g.headBias.g, utils.RowSums(dLogits))
	dY := utils.ToDense(utils.Dot(g.head.w.T(), dLogits))

	dX := g.lnF.Backward(dY)
	for i := len(g.blocks) - 1; i >= 0; i-- {
		dX = g.blocks[i].Backward(dX)
	}

	// X = tokEmb[ids] + posEmb, so both tables collect dX directly.
	for t, id := range ids {
		for i := 0; i < g.cfg.DModel; i++ {
			g.tokEmb.g.Set(i, id, g.tokEmb.g.At(i, id)+dX.At(i, t))
			g.posEmb.g.Set(i, t, g.posEmb.g.At(i, t)+dX.At(i, t))
		}
	}
	return sum, nil
}

// TrainStep consumes one batch of (input, target) windows: forward and
// backward over every window, one gradient clip, one AdamW step. Returns the
// batch's mean per-position loss. A non-finite loss aborts before the update.
func (g *GPT) TrainStep(xb, yb [][]int) (float64, error) {
	if len(xb) == 0 || len(xb) != len(yb) {
		return 0, fmt.Errorf("transformer: batch shape mismatch: %d inputs, %d targets", len(xb), len(yb))
	}
	positions := 0
	for _, x := range xb {
		positions += len(x)
	}
	if positions == 0 {
		return 0, errors.New("transformer: empty batch")
	}
	invBT := 1.0 / float64(positions)

	for _, p := range g.all {
		p.zeroGrad()
	}
	total := 0.0
	for i := range xb {
		sum, err := g.trainSequence(xb[i], yb[i], invBT)
		if err != nil {
			return 0, err
		}
		total += sum
	}
	loss := total * invBT
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return loss, fmt.Errorf("%w at value %g", ErrNonFiniteLoss, loss)
	}

	if g.cfg.GradClip > 0 {
		grads := make([]*mat.Dense, len(g.all))
		for i, p := range g.all {
			grads[i] = p.g
		}
		utils.ClipGrads(g.cfg.GradClip, grads...)
	}
	for _, p := range g.all {
		wd := 0.0
		if p.decay {
			wd = g.cfg.WeightDecay
		}
		p.opt.Step(p.w, p.g, g.cfg.LearningRate, g.cfg.AdamBeta1, g.cfg.AdamBeta2, g.cfg.AdamEps, wd)
	}
	return loss, nil
}

// Generate extends seed by maxNew sampled symbols and returns seed followed
// by the new symbols. Each step re-encodes only the last ContextLen symbols
// of the running sequence (no key/value reuse across steps), takes the
// logits at the final position, and samples from the softmax distribution.
// Temperature scales the logits before normalization; 1 samples the model's
// distribution unchanged.
func (g *GPT) Generate(seed []int, maxNew int, temperature float64, rng *rand.Rand) ([]int, error) {
	if len(seed) == 0 {
		return nil, errors.New("transformer: generation requires a non-empty seed")
	}
	if maxNew < 0 {
		return nil, fmt.Errorf("transformer: maxNew must be non-negative, got %d", maxNew)
	}
	if temperature <= 0 {
		return nil, fmt.Errorf("transformer: temperature must be positive, got %g", temperature)
	}
	out := append([]int(nil), seed...)
	for steps := 0; steps < maxNew; steps++ {
		cond := out
		if len(cond) > g.cfg.ContextLen {
			cond = cond[len(cond)-g.cfg.ContextLen:]
		}
		logits, err := g.Logits(cond)
		if err != nil {
			return nil, err
		}
		last := utils.LastCol(logits)
		if temperature != 1 {
			last.Scale(1.0/temperature, last)
		}
		probs := utils.ColVectorSoftmax(last)
		out = append(out, utils.SampleCategorical(rng, probs))
	}
	return out, nil
}
