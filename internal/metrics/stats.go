package metrics

import "time"

// Window accumulates per-step timing and loss across multiple update steps.
type Window struct {
	examples int
	compute  time.Duration
	steps    int
	lastLoss float64
}

// Record adds one update step to the window.
func (w *Window) Record(batchSize int, computeTime time.Duration, loss float64) {
	w.examples += batchSize
	w.compute += computeTime
	w.steps++
	w.lastLoss = loss
}

// Snapshot returns aggregated metrics and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{}
	if w.compute > 0 {
		snap.ExamplesPerSec = float64(w.examples) / w.compute.Seconds()
	}
	if w.steps > 0 {
		snap.AvgStepMS = (w.compute.Seconds() * 1000) / float64(w.steps)
	}
	snap.LastLoss = w.lastLoss

	w.examples = 0
	w.compute = 0
	w.steps = 0
	return snap
}

// Snapshot represents loggable metrics.
type Snapshot struct {
	ExamplesPerSec float64
	AvgStepMS      float64
	LastLoss       float64
}
