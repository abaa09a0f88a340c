package anomaly

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// clusteredData builds n rows around the origin plus a few far-away points.
func clusteredData(n, outliers int) *mat.Dense {
	rng := rand.New(rand.NewPCG(7, 7))
	X := mat.NewDense(n+outliers, 2, nil)

	for i := 0; i < n; i++ {
		X.Set(i, 0, rng.NormFloat64())
		X.Set(i, 1, rng.NormFloat64())
	}
	for i := 0; i < outliers; i++ {
		X.Set(n+i, 0, 50+rng.NormFloat64())
		X.Set(n+i, 1, -50+rng.NormFloat64())
	}
	return X
}

func TestFitPredictFlagsConfiguredFraction(t *testing.T) {
	X := clusteredData(190, 10)
	forest := NewIsolationForest(0.05, 42)

	labels, err := forest.FitPredict(X)
	if err != nil {
		t.Fatalf("FitPredict() error = %v", err)
	}

	n, _ := X.Dims()
	if len(labels) != n {
		t.Fatalf("got %d labels for %d rows", len(labels), n)
	}

	flagged := 0
	for _, l := range labels {
		switch l {
		case Outlier:
			flagged++
		case Inlier:
		default:
			t.Fatalf("unexpected label %d", l)
		}
	}

	want := int(math.Round(0.05 * float64(n)))
	if diff := flagged - want; diff < -1 || diff > 1 {
		t.Errorf("flagged %d rows, want %d ±1", flagged, want)
	}
}

func TestFitPredictFindsPlantedOutliers(t *testing.T) {
	X := clusteredData(190, 10)
	forest := NewIsolationForest(0.05, 42)

	labels, err := forest.FitPredict(X)
	if err != nil {
		t.Fatalf("FitPredict() error = %v", err)
	}

	// The ten planted far-away points occupy the last rows; most of them
	// should be among the flagged 5%.
	caught := 0
	for i := 190; i < 200; i++ {
		if labels[i] == Outlier {
			caught++
		}
	}
	if caught < 8 {
		t.Errorf("caught %d/10 planted outliers, want at least 8", caught)
	}
}

func TestFitPredictDeterministicForFixedSeed(t *testing.T) {
	X := clusteredData(100, 5)

	first, err := NewIsolationForest(0.05, 42).FitPredict(X)
	if err != nil {
		t.Fatalf("FitPredict() error = %v", err)
	}
	second, err := NewIsolationForest(0.05, 42).FitPredict(X)
	if err != nil {
		t.Fatalf("FitPredict() error = %v", err)
	}

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("labels diverge at row %d for identical seeds", i)
		}
	}
}

func TestFitPredictValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*IsolationForest)
	}{
		{name: "zero contamination", mutate: func(f *IsolationForest) { f.Contamination = 0 }},
		{name: "contamination above half", mutate: func(f *IsolationForest) { f.Contamination = 0.9 }},
		{name: "no estimators", mutate: func(f *IsolationForest) { f.NEstimators = 0 }},
	}

	X := mat.NewDense(10, 2, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forest := NewIsolationForest(0.05, 42)
			tt.mutate(forest)
			if _, err := forest.FitPredict(X); err == nil {
				t.Error("invalid configuration accepted")
			}
		})
	}
}

func TestFitPredictEmptyData(t *testing.T) {
	forest := NewIsolationForest(0.05, 42)
	if _, err := forest.FitPredict(&mat.Dense{}); err == nil {
		t.Error("empty matrix accepted")
	}
}

func TestScoresRequireFit(t *testing.T) {
	forest := NewIsolationForest(0.05, 42)
	if _, err := forest.Scores(mat.NewDense(2, 2, nil)); err == nil {
		t.Error("Scores before FitPredict should fail")
	}
}

func TestScoresRangeAndOrdering(t *testing.T) {
	X := clusteredData(150, 5)
	forest := NewIsolationForest(0.05, 42)
	if _, err := forest.FitPredict(X); err != nil {
		t.Fatalf("FitPredict() error = %v", err)
	}

	scores, err := forest.Scores(X)
	if err != nil {
		t.Fatalf("Scores() error = %v", err)
	}

	var inlierSum float64
	for i := 0; i < 150; i++ {
		if scores[i] <= 0 || scores[i] > 1 {
			t.Fatalf("score %v out of (0, 1]", scores[i])
		}
		inlierSum += scores[i]
	}
	inlierMean := inlierSum / 150

	for i := 150; i < 155; i++ {
		if scores[i] <= inlierMean {
			t.Errorf("planted outlier %d scored %v, below inlier mean %v", i, scores[i], inlierMean)
		}
	}
}
