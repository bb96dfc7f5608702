package model

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LogisticRegression is a multinomial log-linear classifier. Class-membership
// probabilities are softmax(x·W + b); the prediction is the argmax class.
// Both parameters start at zero.
type LogisticRegression struct {
	numIn  int // feature width D
	numOut int // class count K
	w      *mat.Dense
	b      *mat.VecDense
}

// NewLogisticRegression constructs a zero-initialized model mapping numIn
// features onto numOut classes.
func NewLogisticRegression(numIn, numOut int) (*LogisticRegression, error) {
	if numIn <= 0 {
		return nil, errors.Errorf("model: feature width must be > 0 (got %d)", numIn)
	}
	if numOut <= 1 {
		return nil, errors.Errorf("model: need at least 2 classes (got %d)", numOut)
	}
	return &LogisticRegression{
		numIn:  numIn,
		numOut: numOut,
		w:      mat.NewDense(numIn, numOut, nil),
		b:      mat.NewVecDense(numOut, nil),
	}, nil
}

// NumFeatures returns the expected feature width.
func (m *LogisticRegression) NumFeatures() int { return m.numIn }

// NumClasses returns the size of the class set.
func (m *LogisticRegression) NumClasses() int { return m.numOut }

// Probabilities returns the [batch, K] matrix of class-membership
// probabilities for the rows of x. Each row sums to 1 and every entry is
// strictly positive.
func (m *LogisticRegression) Probabilities(x mat.Matrix) *mat.Dense {
	n, _ := x.Dims()
	probs := mat.NewDense(n, m.numOut, nil)
	probs.Mul(x, m.w)
	for i := 0; i < n; i++ {
		row := probs.RawRowView(i)
		for j := range row {
			row[j] += m.b.AtVec(j)
		}
		// subtract the row max before exponentiating to keep exp in range
		max := floats.Max(row)
		for j := range row {
			row[j] = math.Exp(row[j] - max)
		}
		floats.Scale(1/floats.Sum(row), row)
	}
	return probs
}

// Predict returns the argmax class per row of x. Ties go to the lowest
// class index.
func (m *LogisticRegression) Predict(x mat.Matrix) []int {
	probs := m.Probabilities(x)
	n, _ := probs.Dims()
	pred := make([]int, n)
	for i := 0; i < n; i++ {
		pred[i] = floats.MaxIdx(probs.RawRowView(i))
	}
	return pred
}

// Step performs one mini-batch gradient-descent update in place and returns
// the negative log-likelihood of the batch under the parameters as they were
// before the update.
func (m *LogisticRegression) Step(x mat.Matrix, labels []int, lr float64) (float64, error) {
	n, d := x.Dims()
	if d != m.numIn {
		return 0, errors.Errorf("model: batch has feature width %d, want %d", d, m.numIn)
	}
	if len(labels) != n {
		return 0, errors.Errorf("model: batch has %d rows but %d labels", n, len(labels))
	}

	probs := m.Probabilities(x)
	loss := NegativeLogLikelihood(probs, labels)

	// residual P - Y, reusing the probability matrix
	for i, y := range labels {
		probs.Set(i, y, probs.At(i, y)-1)
	}

	var gw mat.Dense
	gw.Mul(x.T(), probs)
	gw.Scale(lr/float64(n), &gw)
	m.w.Sub(m.w, &gw)

	for j := 0; j < m.numOut; j++ {
		gb := floats.Sum(mat.Col(nil, j, probs)) / float64(n)
		m.b.SetVec(j, m.b.AtVec(j)-lr*gb)
	}
	return loss, nil
}

// NegativeLogLikelihood is the mean of -log P(Y=labels[i] | x_i) over the
// batch. The probability matrix must come from Probabilities, so every
// indexed entry is strictly positive.
func NegativeLogLikelihood(probs *mat.Dense, labels []int) float64 {
	var sum float64
	for i, y := range labels {
		sum -= math.Log(probs.At(i, y))
	}
	return sum / float64(len(labels))
}

// ErrorRate is the fraction of predictions that disagree with the true
// labels. A length mismatch between the two vectors is a contract violation
// and returns an error.
func ErrorRate(pred, truth []int) (float64, error) {
	if len(pred) != len(truth) {
		return 0, errors.Errorf("model: %d predictions for %d labels", len(pred), len(truth))
	}
	wrong := 0
	for i := range pred {
		if pred[i] != truth[i] {
			wrong++
		}
	}
	return float64(wrong) / float64(len(pred)), nil
}
