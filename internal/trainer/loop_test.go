package trainer

import (
	"context"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/bayerj/DeepLearningTutorials/internal/dataset"
	"github.com/bayerj/DeepLearningTutorials/internal/model"
)

func quietLogs(t *testing.T) {
	t.Helper()
	log.SetOutput(io.Discard)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
}

// separableSplit builds a deterministic two-class problem a linear model
// solves exactly: class 0 sits near (1, 0), class 1 near (0, 1).
func separableSplit(n int) dataset.Split {
	data := make([]float64, 0, n*2)
	labels := make([]int, 0, n)
	for i := 0; i < n; i++ {
		cls := i % 2
		jit := 0.1 * float64(i%5)
		if cls == 0 {
			data = append(data, 1+jit, jit)
		} else {
			data = append(data, jit, 1+jit)
		}
		labels = append(labels, cls)
	}
	return dataset.Split{X: mat.NewDense(n, 2, data), Labels: labels}
}

func separableBundle() *dataset.Bundle {
	return &dataset.Bundle{
		Train: separableSplit(40),
		Valid: separableSplit(10),
		Test:  separableSplit(10),
	}
}

func TestRunLearnsSeparableProblem(t *testing.T) {
	quietLogs(t)
	res, err := Run(context.Background(), RunConfig{
		Bundle:       separableBundle(),
		LearningRate: 0.5,
		MaxEpochs:    20,
		BatchSize:    5,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.BestValidationLoss != 0 {
		t.Fatalf("best validation error %g, want 0 on separable data", res.BestValidationLoss)
	}
	if res.TestScore != 0 {
		t.Fatalf("test error %g, want 0 on separable data", res.TestScore)
	}
	if res.Best.Empty() {
		t.Fatal("no best-model snapshot was recorded")
	}
	if res.Iterations != 20*8 {
		t.Fatalf("ran %d iterations, want %d (no early stop under the default budget)", res.Iterations, 20*8)
	}
}

func TestRunStopsWhenPatienceIsExhausted(t *testing.T) {
	quietLogs(t)
	res, err := Run(context.Background(), RunConfig{
		Bundle:       separableBundle(),
		LearningRate: 0.5,
		MaxEpochs:    1000,
		BatchSize:    5,
		Patience:     20,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// once validation error hits zero the budget stops growing, so the run
	// must end long before the epoch cap
	if res.Iterations >= 1000*8 {
		t.Fatalf("ran %d iterations, expected early stop", res.Iterations)
	}
	if math.IsInf(res.BestValidationLoss, 1) {
		t.Fatal("no validation check happened before stopping")
	}
}

func TestRunWritesCheckpoint(t *testing.T) {
	quietLogs(t)
	bundle := separableBundle()
	path := filepath.Join(t.TempDir(), "best.gob.gz")
	if _, err := Run(context.Background(), RunConfig{
		Bundle:       bundle,
		LearningRate: 0.5,
		MaxEpochs:    10,
		BatchSize:    5,
		Checkpoint:   path,
	}); err != nil {
		t.Fatalf("run: %v", err)
	}
	snap, err := model.LoadSnapshot(path)
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	clf, err := snap.Model()
	if err != nil {
		t.Fatalf("rebuild model: %v", err)
	}
	rate, err := meanErrorRate(clf, bundle.Test, 5)
	if err != nil {
		t.Fatalf("score restored model: %v", err)
	}
	if rate != 0 {
		t.Fatalf("restored model test error %g, want 0", rate)
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	quietLogs(t)
	cases := []RunConfig{
		{LearningRate: 0.5, MaxEpochs: 1, BatchSize: 5},
		{Bundle: separableBundle(), MaxEpochs: 1, BatchSize: 5},
		{Bundle: separableBundle(), LearningRate: 0.5, BatchSize: 5},
		{Bundle: separableBundle(), LearningRate: 0.5, MaxEpochs: 1},
		{Bundle: separableBundle(), LearningRate: 0.5, MaxEpochs: 1, BatchSize: 100},
	}
	for i, cfg := range cases {
		if _, err := Run(context.Background(), cfg); err == nil {
			t.Fatalf("case %d: expected a config error", i)
		}
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	quietLogs(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, RunConfig{
		Bundle:       separableBundle(),
		LearningRate: 0.5,
		MaxEpochs:    10,
		BatchSize:    5,
	}); err != context.Canceled {
		t.Fatalf("error %v, want context.Canceled", err)
	}
}

func TestMeanErrorRateDropsRemainder(t *testing.T) {
	clf, err := model.NewLogisticRegression(2, 2)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	// 11 examples at batch size 5: only the first 10 are scored
	split := separableSplit(11)
	rate, err := meanErrorRate(clf, split, 5)
	if err != nil {
		t.Fatalf("mean error rate: %v", err)
	}
	if rate < 0 || rate > 1 {
		t.Fatalf("error rate %g outside [0, 1]", rate)
	}
	if n := split.NumBatches(5); n != 2 {
		t.Fatalf("11 examples at batch size 5 gave %d batches, want 2", n)
	}
}
