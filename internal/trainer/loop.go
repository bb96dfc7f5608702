package trainer

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/bayerj/DeepLearningTutorials/internal/dataset"
	"github.com/bayerj/DeepLearningTutorials/internal/metrics"
	"github.com/bayerj/DeepLearningTutorials/internal/model"
)

// RunConfig captures the knobs required by the training loop.
type RunConfig struct {
	Bundle       *dataset.Bundle
	LearningRate float64
	MaxEpochs    int
	BatchSize    int
	Patience     int    // initial budget in mini-batches; 0 means the default
	LogEvery     int    // throughput log period in steps; 0 disables
	Checkpoint   string // optional path for the best-model snapshot
}

// Result reports the outcome of a completed run.
type Result struct {
	BestValidationLoss float64
	TestScore          float64
	Iterations         int
	Elapsed            time.Duration
	Best               model.Snapshot
}

// Run trains a zero-initialized logistic regression on the bundle's training
// split, validating once per epoch and stopping early once the patience
// budget is exhausted. The returned result carries the scores and parameter
// snapshot of the best model seen.
func Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if cfg.Bundle == nil {
		return nil, errors.New("trainer: dataset bundle is nil")
	}
	if cfg.LearningRate <= 0 {
		return nil, errors.Errorf("trainer: learning rate must be > 0 (got %g)", cfg.LearningRate)
	}
	if cfg.MaxEpochs <= 0 {
		return nil, errors.Errorf("trainer: max epochs must be > 0 (got %d)", cfg.MaxEpochs)
	}
	if cfg.BatchSize <= 0 {
		return nil, errors.Errorf("trainer: batch size must be > 0 (got %d)", cfg.BatchSize)
	}

	nTrain := cfg.Bundle.Train.NumBatches(cfg.BatchSize)
	if nTrain == 0 {
		return nil, errors.Errorf("trainer: batch size %d exceeds training split of %d examples",
			cfg.BatchSize, cfg.Bundle.Train.Len())
	}
	if cfg.Bundle.Valid.NumBatches(cfg.BatchSize) == 0 || cfg.Bundle.Test.NumBatches(cfg.BatchSize) == 0 {
		return nil, errors.Errorf("trainer: batch size %d exceeds a held-out split", cfg.BatchSize)
	}

	clf, err := model.NewLogisticRegression(cfg.Bundle.FeatureWidth(), cfg.Bundle.NumClasses())
	if err != nil {
		return nil, err
	}

	// validate once per pass over the training split
	validateEvery := nTrain
	stop := newEarlyStop(cfg.Patience)

	var window metrics.Window
	result := &Result{BestValidationLoss: math.Inf(1)}
	start := time.Now()

loop:
	for epoch := 0; epoch < cfg.MaxEpochs; epoch++ {
		for idx := 0; idx < nTrain; idx++ {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			iter := epoch*nTrain + idx
			xb, yb := cfg.Bundle.Train.Batch(idx, cfg.BatchSize)

			stepStart := time.Now()
			loss, err := clf.Step(xb, yb, cfg.LearningRate)
			if err != nil {
				return nil, errors.Wrapf(err, "training step %d failed", iter)
			}
			window.Record(cfg.BatchSize, time.Since(stepStart), loss)
			result.Iterations = iter + 1

			if cfg.LogEvery > 0 && (iter+1)%cfg.LogEvery == 0 {
				snap := window.Snapshot()
				log.Printf("iter=%d examples_per_sec=%.1f step_ms=%.2f loss=%.4f",
					iter+1, snap.ExamplesPerSec, snap.AvgStepMS, snap.LastLoss)
			}

			if (iter+1)%validateEvery == 0 {
				valLoss, err := meanErrorRate(clf, cfg.Bundle.Valid, cfg.BatchSize)
				if err != nil {
					return nil, errors.Wrapf(err, "validation at iteration %d failed", iter)
				}
				log.Printf("epoch %d, minibatch %d/%d, validation error %f%%",
					epoch, idx+1, nTrain, valLoss*100)

				if stop.observe(iter, valLoss) {
					result.BestValidationLoss = valLoss
					result.Best = clf.Snapshot()

					score, err := meanErrorRate(clf, cfg.Bundle.Test, cfg.BatchSize)
					if err != nil {
						return nil, errors.Wrapf(err, "test evaluation at iteration %d failed", iter)
					}
					result.TestScore = score
					log.Printf("epoch %d, minibatch %d/%d, test error of best model %f%%",
						epoch, idx+1, nTrain, score*100)
				}
			}

			if stop.done(iter) {
				break loop
			}
		}
	}

	result.Elapsed = time.Since(start)
	log.Printf("optimization complete with best validation score of %f%%, with test performance %f%%",
		result.BestValidationLoss*100, result.TestScore*100)
	log.Printf("the run took %f minutes", result.Elapsed.Minutes())

	if cfg.Checkpoint != "" && !result.Best.Empty() {
		if err := result.Best.WriteFile(cfg.Checkpoint); err != nil {
			return nil, errors.Wrap(err, "write best-model checkpoint")
		}
		log.Printf("checkpoint=%s", cfg.Checkpoint)
	}
	return result, nil
}

// meanErrorRate averages the zero-one loss over every full mini-batch of the
// split. Remainder examples past the last full batch are not scored.
func meanErrorRate(clf *model.LogisticRegression, split dataset.Split, batchSize int) (float64, error) {
	n := split.NumBatches(batchSize)
	if n == 0 {
		return 0, errors.Errorf("trainer: split of %d examples has no full batches of %d", split.Len(), batchSize)
	}
	losses := make([]float64, n)
	for i := range losses {
		xb, yb := split.Batch(i, batchSize)
		rate, err := model.ErrorRate(clf.Predict(xb), yb)
		if err != nil {
			return 0, err
		}
		losses[i] = rate
	}
	return stat.Mean(losses, nil), nil
}
