// Package model implements the recurrent network behind a narrow
// contract: construct from (vocabSize, maxLen), fit on one-hot tensors,
// predict on a one-hot tensor, save and load opaque weight blobs. The
// surrounding control logic depends only on the Net interface so the
// network internals stay swappable and mockable.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Metrics carries the per-epoch fit results that the training loop logs.
type Metrics struct {
	Loss     float64
	Accuracy float64
}

// Net is the minimal surface the training loop and the sampler consume.
// Tensors are one-hot encoded sequences of shape [maxLen, vocabSize];
// Predict returns per-position probability distributions of the same
// shape. A Fit failure is not retried by callers.
type Net interface {
	Fit(features, targets []*mat.Dense, batchSize int) (Metrics, error)
	Predict(x *mat.Dense) *mat.Dense
	SaveWeights(path string) error
	LoadWeights(path string) error
}
