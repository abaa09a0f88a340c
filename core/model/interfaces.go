package model

import (
	"gonum.org/v1/gonum/mat"
)

// Regressor is the contract shared by the three model variants compared by
// the pipeline. Fit trains on (X, y); Predict returns an n×1 matrix of
// predictions in the same row order as the input.
type Regressor interface {
	Fit(X, y mat.Matrix) error
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Scorer is implemented by models that can compute their own score.
type Scorer interface {
	// Score returns the coefficient of determination R² of the prediction.
	Score(X, y mat.Matrix) (float64, error)
}

// Transformer is implemented by stateful preprocessing steps: parameters are
// learned once in Fit and applied unchanged by Transform to any matrix with
// the same feature schema.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
}

// RegressorFactory builds a fresh, unfitted model instance. Cross-validation
// and grid search call it once per fold/combination so that no model state is
// ever shared across concurrent fits.
type RegressorFactory func() Regressor
