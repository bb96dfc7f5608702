package trainer

import "math"

// Early-stopping policy: examine at least `patience` mini-batches, and every
// time the validation score improves by a significant relative margin, extend
// the budget to a multiple of the iteration that produced the improvement.
const (
	defaultPatience      = 5000
	patienceIncrease     = 2
	improvementThreshold = 0.995
)

type earlyStop struct {
	patience int
	best     float64
}

func newEarlyStop(patience int) *earlyStop {
	if patience <= 0 {
		patience = defaultPatience
	}
	return &earlyStop{patience: patience, best: math.Inf(1)}
}

// observe reports whether loss is a new best. Significant improvements
// extend the patience budget; patience never shrinks.
func (e *earlyStop) observe(iter int, loss float64) bool {
	if loss >= e.best {
		return false
	}
	if loss < e.best*improvementThreshold {
		if extended := iter * patienceIncrease; extended > e.patience {
			e.patience = extended
		}
	}
	e.best = loss
	return true
}

// done reports whether the patience budget is exhausted at iteration iter.
func (e *earlyStop) done(iter int) bool {
	return iter >= e.patience
}
