package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bayerj/DeepLearningTutorials/internal/config"
	"github.com/bayerj/DeepLearningTutorials/internal/dataset"
	"github.com/bayerj/DeepLearningTutorials/internal/trainer"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config (optional)")
	datasetPath := flag.String("dataset", "", "Path to the gzipped dataset bundle")
	learningRate := flag.Float64("learning-rate", 0, "SGD step size")
	maxEpochs := flag.Int("max-epochs", 0, "Maximum passes over the training split")
	batchSize := flag.Int("batch-size", 0, "Mini-batch size")
	patience := flag.Int("patience", 0, "Initial early-stopping budget in mini-batches")
	logEvery := flag.Int("log-every", 0, "Log throughput every N steps")
	checkpoint := flag.String("checkpoint", "", "Where to write the best-model snapshot")

	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}

	cfg.ApplyOverrides(config.Overrides{
		Dataset:      *datasetPath,
		LearningRate: *learningRate,
		MaxEpochs:    *maxEpochs,
		BatchSize:    *batchSize,
		Patience:     *patience,
		LogEvery:     *logEvery,
		Checkpoint:   *checkpoint,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	bundle, err := dataset.Load(cfg.Dataset)
	if err != nil {
		log.Fatalf("failed to load dataset: %v", err)
	}
	log.Printf("dataset=%s train=%d valid=%d test=%d features=%d classes=%d",
		cfg.Dataset, bundle.Train.Len(), bundle.Valid.Len(), bundle.Test.Len(),
		bundle.FeatureWidth(), bundle.NumClasses())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCfg := trainer.RunConfig{
		Bundle:       bundle,
		LearningRate: cfg.LearningRate,
		MaxEpochs:    cfg.MaxEpochs,
		BatchSize:    cfg.BatchSize,
		Patience:     cfg.Patience,
		LogEvery:     cfg.LogEvery,
		Checkpoint:   cfg.Checkpoint,
	}

	if _, err := trainer.Run(ctx, runCfg); err != nil {
		log.Fatalf("training failed: %v", err)
	}
}
