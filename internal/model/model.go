package model

import "gonum.org/v1/gonum/mat"

// Classifier scores feature rows against a fixed class set.
type Classifier interface {
	Probabilities(x mat.Matrix) *mat.Dense
	Predict(x mat.Matrix) []int
}
