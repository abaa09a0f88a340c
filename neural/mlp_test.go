package neural

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/streamforecast/pkg/errors"
)

// lineData builds n samples of y = 3*x1 - 2*x2 with inputs in [-1, 1].
func lineData(n int, seed uint64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x1 := rng.Float64()*2 - 1
		x2 := rng.Float64()*2 - 1
		X.Set(i, 0, x1)
		X.Set(i, 1, x2)
		y.Set(i, 0, 3*x1-2*x2)
	}
	return X, y
}

func TestMLPRegressorLossDecreases(t *testing.T) {
	X, y := lineData(200, 7)

	m := NewMLPRegressor(Params{
		HiddenLayerSizes: []int{16, 16},
		Activation:       ActivationReLU,
		Solver:           SolverAdam,
		MaxIter:          200,
		LearningRate:     0.01,
		Alpha:            0.001,
		Seed:             42,
	})
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !m.IsFitted() {
		t.Error("model should report fitted after Fit")
	}
	if len(m.LossCurve) < 2 {
		t.Fatalf("expected a loss curve, got %d entries", len(m.LossCurve))
	}

	first := m.LossCurve[0]
	last := m.LossCurve[len(m.LossCurve)-1]
	if last >= first*0.5 {
		t.Errorf("training did not reduce loss enough: first=%.6f last=%.6f", first, last)
	}

	pred, err := m.Predict(X)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	r, c := pred.Dims()
	if r != 200 || c != 1 {
		t.Errorf("prediction shape = (%d, %d), want (200, 1)", r, c)
	}
	for i := 0; i < r; i++ {
		if math.IsNaN(pred.At(i, 0)) || math.IsInf(pred.At(i, 0), 0) {
			t.Fatalf("prediction %d is not finite: %v", i, pred.At(i, 0))
		}
	}
}

func TestMLPRegressorLogisticFullBatch(t *testing.T) {
	X, y := lineData(150, 11)

	m := NewMLPRegressor(Params{
		HiddenLayerSizes: []int{24},
		Activation:       ActivationLogistic,
		Solver:           SolverFullBatch,
		MaxIter:          300,
		LearningRate:     0.02,
		Seed:             42,
	})
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	first := m.LossCurve[0]
	last := m.LossCurve[len(m.LossCurve)-1]
	if last >= first {
		t.Errorf("loss did not decrease: first=%.6f last=%.6f", first, last)
	}
}

func TestMLPRegressorSeedDeterminism(t *testing.T) {
	X, y := lineData(100, 3)

	train := func() mat.Matrix {
		m := NewMLPRegressor(Params{
			HiddenLayerSizes: []int{8, 8},
			MaxIter:          50,
			Seed:             42,
		})
		if err := m.Fit(X, y); err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		pred, err := m.Predict(X)
		if err != nil {
			t.Fatalf("Predict failed: %v", err)
		}
		return pred
	}

	p1 := train()
	p2 := train()
	for i := 0; i < 100; i++ {
		if p1.At(i, 0) != p2.At(i, 0) {
			t.Fatalf("row %d differs across identically seeded runs: %v vs %v",
				i, p1.At(i, 0), p2.At(i, 0))
		}
	}
}

func TestMLPRegressorValidation(t *testing.T) {
	tests := []struct {
		name   string
		params Params
	}{
		{
			name:   "unknown activation",
			params: Params{Activation: "tanh"},
		},
		{
			name:   "unknown solver",
			params: Params{Solver: "sgd"},
		},
		{
			name:   "negative alpha",
			params: Params{Alpha: -0.5},
		},
		{
			name:   "non-positive hidden width",
			params: Params{HiddenLayerSizes: []int{24, 0}},
		},
	}

	X, y := lineData(20, 1)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMLPRegressor(tt.params)
			if err := m.Fit(X, y); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

// emptyMatrix reports zero rows without allocating anything.
type emptyMatrix struct{ cols int }

func (e emptyMatrix) Dims() (int, int)    { return 0, e.cols }
func (e emptyMatrix) At(_, _ int) float64 { return 0 }
func (e emptyMatrix) T() mat.Matrix       { return e }

func TestMLPRegressorDegenerateInput(t *testing.T) {
	m := NewMLPRegressor(Params{MaxIter: 10})

	if err := m.Fit(emptyMatrix{cols: 2}, emptyMatrix{cols: 1}); err == nil {
		t.Error("expected an error for an empty training set")
	}

	X := mat.NewDense(5, 2, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	flat := mat.NewDense(5, 1, []float64{4, 4, 4, 4, 4})
	err := m.Fit(X, flat)
	if err == nil {
		t.Fatal("expected an error for a zero-variance target")
	}
	if !errors.Is(err, errors.ErrZeroVariance) {
		t.Errorf("error should wrap ErrZeroVariance, got: %v", err)
	}
}

func TestMLPRegressorPredictBeforeFit(t *testing.T) {
	m := NewMLPRegressor(Params{})
	if _, err := m.Predict(mat.NewDense(2, 2, nil)); err == nil {
		t.Error("Predict before Fit should fail")
	}
}

func TestMLPRegressorPredictDimensionMismatch(t *testing.T) {
	X, y := lineData(50, 9)
	m := NewMLPRegressor(Params{HiddenLayerSizes: []int{8}, MaxIter: 20})
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	wide := mat.NewDense(3, 5, nil)
	if _, err := m.Predict(wide); err == nil {
		t.Error("expected a dimension error for mismatched feature count")
	}
}

func TestMLPRegressorConvergenceWarning(t *testing.T) {
	var captured []error
	errors.SetWarningHandler(func(w error) { captured = append(captured, w) })
	defer errors.SetWarningHandler(nil)

	X, y := lineData(100, 5)
	m := NewMLPRegressor(Params{
		HiddenLayerSizes: []int{8},
		MaxIter:          3, // far too few epochs
		Seed:             42,
	})
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	found := false
	for _, w := range captured {
		var cw *errors.ConvergenceWarning
		if errors.As(w, &cw) {
			found = true
		}
	}
	if !found {
		t.Error("expected a ConvergenceWarning for an unconverged fit")
	}
}
