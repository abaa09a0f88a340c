package modelselection

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/streamforecast/core/model"
	"github.com/YuminosukeSato/streamforecast/linear"
	"github.com/YuminosukeSato/streamforecast/pkg/errors"
)

func linearData(n int, seed uint64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x1 := rng.Float64() * 10
		x2 := rng.Float64() * 10
		X.Set(i, 0, x1)
		X.Set(i, 1, x2)
		y.Set(i, 0, 3*x1+2*x2+5+rng.NormFloat64()*0.1)
	}
	return X, y
}

func TestCrossValidateLinearModel(t *testing.T) {
	X, y := linearData(200, 13)
	factory := func() model.Regressor { return linear.NewRegression() }

	result, err := CrossValidate(factory, X, y, NewKFold(5, true, 42), ScoringR2)
	if err != nil {
		t.Fatalf("CrossValidate failed: %v", err)
	}

	if len(result.Scores) != 5 {
		t.Fatalf("got %d fold scores, want 5", len(result.Scores))
	}
	if result.Mean < 0.99 {
		t.Errorf("mean R2 = %.4f, want > 0.99 on near-noiseless linear data", result.Mean)
	}
	if result.Std < 0 || math.IsNaN(result.Std) {
		t.Errorf("std = %v is invalid", result.Std)
	}
}

func TestCrossValidateNegatedScorings(t *testing.T) {
	X, y := linearData(100, 29)
	factory := func() model.Regressor { return linear.NewRegression() }

	for _, scoring := range []Scoring{ScoringNegMSE, ScoringNegRMSE} {
		result, err := CrossValidate(factory, X, y, NewKFold(5, true, 42), scoring)
		if err != nil {
			t.Fatalf("CrossValidate(%s) failed: %v", scoring, err)
		}
		for f, score := range result.Scores {
			if score > 0 {
				t.Errorf("%s fold %d score = %v, negated errors must not be positive", scoring, f, score)
			}
		}
	}
}

func TestCrossValidateUnknownScoring(t *testing.T) {
	X, y := linearData(50, 1)
	factory := func() model.Regressor { return linear.NewRegression() }

	if _, err := CrossValidate(factory, X, y, NewKFold(5, false, 0), Scoring("accuracy")); err == nil {
		t.Error("expected an error for an unknown scoring")
	}
}

// failingRegressor errors on Fit to exercise fold error propagation.
type failingRegressor struct{}

func (f *failingRegressor) Fit(X, y mat.Matrix) error {
	return errors.New("broken model")
}

func (f *failingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	return nil, errors.New("broken model")
}

func TestCrossValidatePropagatesFoldError(t *testing.T) {
	X, y := linearData(50, 2)
	factory := func() model.Regressor { return &failingRegressor{} }

	if _, err := CrossValidate(factory, X, y, NewKFold(5, false, 0), ScoringR2); err == nil {
		t.Error("a failing fold must fail the whole cross-validation")
	}
}
