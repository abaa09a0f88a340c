package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/streamforecast/pkg/errors"
)

func TestStandardScalerSelfTransform(t *testing.T) {
	// Transforming the matrix used for fitting must give per-column
	// mean ≈ 0 and standard deviation ≈ 1.
	X := mat.NewDense(5, 2, []float64{
		1.0, 100.0,
		2.0, 200.0,
		3.0, 300.0,
		4.0, 400.0,
		5.0, 500.0,
	})

	scaler := NewStandardScaler()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	r, c := scaled.Dims()
	for j := 0; j < c; j++ {
		var sum, sumSq float64
		for i := 0; i < r; i++ {
			sum += scaled.At(i, j)
		}
		mean := sum / float64(r)
		for i := 0; i < r; i++ {
			diff := scaled.At(i, j) - mean
			sumSq += diff * diff
		}
		std := math.Sqrt(sumSq / float64(r))

		if math.Abs(mean) > 1e-10 {
			t.Errorf("column %d mean = %v, want ≈0", j, mean)
		}
		if math.Abs(std-1.0) > 1e-10 {
			t.Errorf("column %d std = %v, want ≈1", j, std)
		}
	}
}

func TestStandardScalerAppliesTrainParamsToTest(t *testing.T) {
	train := mat.NewDense(4, 1, []float64{0.0, 2.0, 4.0, 6.0}) // mean 3, std sqrt(5)
	test := mat.NewDense(2, 1, []float64{3.0, 8.0})

	scaler := NewStandardScaler()
	if err := scaler.Fit(train); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	scaled, err := scaler.Transform(test)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}

	// The train mean, not the test mean, must be subtracted.
	if got := scaled.At(0, 0); math.Abs(got) > 1e-10 {
		t.Errorf("value equal to train mean should map to 0, got %v", got)
	}
	want := 5.0 / math.Sqrt(5.0)
	if got := scaled.At(1, 0); math.Abs(got-want) > 1e-10 {
		t.Errorf("scaled value = %v, want %v", got, want)
	}
}

func TestStandardScalerZeroVarianceColumn(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		1.0, 7.0,
		2.0, 7.0,
		3.0, 7.0,
	})

	scaler := NewStandardScaler()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	// Zero-variance column is centered but not scaled (scale forced to 1).
	for i := 0; i < 3; i++ {
		if got := scaled.At(i, 1); got != 0 {
			t.Errorf("row %d constant column = %v, want 0", i, got)
		}
	}
}

func TestStandardScalerNotFitted(t *testing.T) {
	scaler := NewStandardScaler()
	_, err := scaler.Transform(mat.NewDense(1, 1, []float64{1}))
	if err == nil {
		t.Fatal("Transform before Fit should fail")
	}

	var nfe *errors.NotFittedError
	if !errors.As(err, &nfe) {
		t.Errorf("expected NotFittedError, got %T", err)
	}
}

func TestStandardScalerDimensionMismatch(t *testing.T) {
	scaler := NewStandardScaler()
	if err := scaler.Fit(mat.NewDense(3, 2, nil)); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	_, err := scaler.Transform(mat.NewDense(3, 3, nil))
	if err == nil {
		t.Fatal("mismatched feature count should fail")
	}
}

func TestStandardScalerInverseRoundTrip(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 20,
		3, 30,
		4, 40,
	})

	scaler := NewStandardScaler()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	restored, err := scaler.InverseTransform(scaled)
	if err != nil {
		t.Fatalf("InverseTransform() error = %v", err)
	}

	for i := 0; i < 4; i++ {
		for j := 0; j < 2; j++ {
			if math.Abs(restored.At(i, j)-X.At(i, j)) > 1e-10 {
				t.Errorf("round trip mismatch at (%d,%d): %v != %v", i, j, restored.At(i, j), X.At(i, j))
			}
		}
	}
}
