package main

import (
	"fmt"

	"chargpt/data"
	"chargpt/params"
	"chargpt/report"
	"chargpt/transformer"
)

// EstimateLoss averages forward-only loss over iters independently sampled
// batches from one split. The result is a variance-reduced monitoring
// signal, not an exact split loss: batches are drawn with replacement.
func EstimateLoss(gpt *transformer.GPT, sampler *data.Sampler, split data.Split, iters int) (float64, error) {
	total := 0.0
	for k := 0; k < iters; k++ {
		xb, yb, err := sampler.Batch(split)
		if err != nil {
			return 0, err
		}
		batchLoss := 0.0
		for i := range xb {
			l, err := gpt.Loss(xb[i], yb[i])
			if err != nil {
				return 0, err
			}
			batchLoss += l
		}
		total += batchLoss / float64(len(xb))
	}
	return total / float64(iters), nil
}

// TrainGPT runs the fixed iteration budget: every EvalInterval steps it
// reports estimated train/val losses (no parameter updates), and every step
// it samples one training batch and applies one optimizer update. Any
// failure, including numerical divergence, stops the run and is returned.
func TrainGPT(cfg params.Config, gpt *transformer.GPT, sampler *data.Sampler, rep report.Reporter) error {
	for iter := 0; iter < cfg.MaxIters; iter++ {
		if iter%cfg.EvalInterval == 0 {
			trainLoss, err := EstimateLoss(gpt, sampler, data.Train, cfg.EvalIters)
			if err != nil {
				return err
			}
			valLoss, err := EstimateLoss(gpt, sampler, data.Val, cfg.EvalIters)
			if err != nil {
				return err
			}
			fmt.Printf("step %d: train loss %.4f, val loss %.4f\n", iter, trainLoss, valLoss)
			if err := rep.Report(report.Record{Iter: iter, TrainLoss: trainLoss, ValLoss: valLoss}); err != nil {
				return err
			}
		}

		xb, yb, err := sampler.Batch(data.Train)
		if err != nil {
			return err
		}
		if _, err := gpt.TrainStep(xb, yb); err != nil {
			return err
		}
	}
	return nil
}
