package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"

	"chargpt/data"
	"chargpt/params"
	"chargpt/report"
	"chargpt/transformer"
	"chargpt/utils"
)

func main() {
	cfg := params.Default()

	dataPath := flag.String("data", "input.txt", "path to the raw training text")
	flag.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "windows per optimizer step")
	flag.IntVar(&cfg.ContextLen, "context", cfg.ContextLen, "context window length")
	flag.IntVar(&cfg.MaxIters, "iters", cfg.MaxIters, "total training iterations")
	flag.IntVar(&cfg.EvalInterval, "eval-interval", cfg.EvalInterval, "iterations between loss estimates")
	flag.IntVar(&cfg.EvalIters, "eval-iters", cfg.EvalIters, "batches per loss estimate")
	flag.IntVar(&cfg.DModel, "dmodel", cfg.DModel, "embedding width")
	flag.IntVar(&cfg.NumLayers, "layers", cfg.NumLayers, "transformer blocks")
	flag.IntVar(&cfg.NumHeads, "heads", cfg.NumHeads, "attention heads per block")
	flag.Float64Var(&cfg.LearningRate, "lr", cfg.LearningRate, "AdamW learning rate")
	seed := flag.Uint64("seed", cfg.Seed, "random seed")
	sample := flag.Int("sample", 500, "characters to generate after training")
	temperature := flag.Float64("temperature", 1.0, "sampling temperature")
	logPath := flag.String("log", "training_log.csv", "csv eval log path (empty disables)")
	logDB := flag.String("log-db", "", "sqlite eval log path (empty disables)")
	flag.Parse()
	cfg.Seed = *seed

	if err := run(cfg, *dataPath, *sample, *temperature, *logPath, *logDB); err != nil {
		fmt.Fprintln(os.Stderr, "chargpt:", err)
		os.Exit(1)
	}
}

func run(cfg params.Config, dataPath string, sample int, temperature float64, logPath, logDB string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	text, err := data.ReadText(dataPath)
	if err != nil {
		return err
	}
	codec, err := data.NewCodec(text)
	if err != nil {
		return err
	}
	ids, err := codec.Encode(text)
	if err != nil {
		return err
	}
	corpus, err := data.NewCorpus(ids, cfg.ValFrac)
	if err != nil {
		return err
	}

	sampler, err := data.NewSampler(corpus, cfg.BatchSize, cfg.ContextLen,
		rand.New(utils.NewSource(cfg.Seed, 2)))
	if err != nil {
		return err
	}
	gpt, err := transformer.NewGPT(cfg, codec.VocabSize(), utils.NewSource(cfg.Seed, 1))
	if err != nil {
		return err
	}
	fmt.Printf("vocab %d symbols, %d parameters\n", codec.VocabSize(), gpt.NumParams())

	rep, err := buildReporter(logPath, logDB)
	if err != nil {
		return err
	}
	defer rep.Close()

	if err := TrainGPT(cfg, gpt, sampler, rep); err != nil {
		return err
	}

	// Generate from a single-symbol seed, the first symbol of the alphabet.
	out, err := gpt.Generate([]int{0}, sample, temperature, rand.New(utils.NewSource(cfg.Seed, 3)))
	if err != nil {
		return err
	}
	text, err = codec.Decode(out)
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}

func buildReporter(logPath, logDB string) (report.Reporter, error) {
	var sinks []report.Reporter
	if logPath != "" {
		f, err := os.Create(logPath)
		if err != nil {
			return nil, fmt.Errorf("creating eval log: %w", err)
		}
		csvRep, err := report.NewCSVReporter(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		sinks = append(sinks, csvRep)
	}
	if logDB != "" {
		dbRep, err := report.NewSQLiteReporter(logDB)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, dbRep)
	}
	if len(sinks) == 0 {
		return report.Discard, nil
	}
	return report.Multi(sinks...), nil
}
