package boosting

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/streamforecast/core/parallel"
	"github.com/YuminosukeSato/streamforecast/modelselection"
	"github.com/YuminosukeSato/streamforecast/pkg/errors"
)

// CVResult holds the validation RMSE of every boosting round, averaged over
// folds, in round order.
type CVResult struct {
	// MeanRMSE[r] is the mean validation RMSE after r+1 rounds.
	MeanRMSE []float64

	// StdRMSE[r] is the across-fold standard deviation at round r.
	StdRMSE []float64
}

// BestRound returns the zero-based round with the lowest mean validation
// RMSE.
func (r CVResult) BestRound() int {
	best := 0
	for i, v := range r.MeanRMSE {
		if v < r.MeanRMSE[best] {
			best = i
		}
	}
	return best
}

// CV evaluates the boosting schedule with k-fold cross-validation: each
// fold trains an ensemble on its training rows and records the validation
// RMSE after every round. Folds run concurrently.
func CV(params Params, X, y mat.Matrix, nFolds int, seed uint64) (CVResult, error) {
	if err := params.Validate(); err != nil {
		return CVResult{}, err
	}

	n, _ := X.Dims()
	splitter := modelselection.NewKFold(nFolds, true, seed)
	folds, err := splitter.Split(n)
	if err != nil {
		return CVResult{}, err
	}

	perFold := make([][]float64, len(folds))
	taskErrs := parallel.RunTasks(len(folds), len(folds), func(f int) error {
		curve, err := foldCurve(params, X, y, folds[f])
		if err != nil {
			return errors.Wrapf(err, "fold %d failed", f)
		}
		perFold[f] = curve
		return nil
	})
	for _, err := range taskErrs {
		if err != nil {
			return CVResult{}, err
		}
	}

	result := CVResult{
		MeanRMSE: make([]float64, params.NumRounds),
		StdRMSE:  make([]float64, params.NumRounds),
	}
	k := float64(len(folds))
	for round := 0; round < params.NumRounds; round++ {
		var mean float64
		for f := range perFold {
			mean += perFold[f][round]
		}
		mean /= k

		var variance float64
		for f := range perFold {
			d := perFold[f][round] - mean
			variance += d * d
		}
		result.MeanRMSE[round] = mean
		result.StdRMSE[round] = math.Sqrt(variance / k)
	}
	return result, nil
}

// foldCurve trains one fold and tracks the validation RMSE after every
// round without retraining from scratch.
func foldCurve(params Params, X, y mat.Matrix, fold modelselection.Fold) ([]float64, error) {
	nTrain := len(fold.Train)
	nTest := len(fold.Test)

	target := make([]float64, nTrain)
	for i, idx := range fold.Train {
		target[i] = y.At(idx, 0)
	}
	truth := make([]float64, nTest)
	for i, idx := range fold.Test {
		truth[i] = y.At(idx, 0)
	}

	trainView := rowView{m: X, rows: fold.Train}

	base := 0.0
	for _, v := range target {
		base += v
	}
	base /= float64(nTrain)

	trainPred := make([]float64, nTrain)
	for i := range trainPred {
		trainPred[i] = base
	}
	testPred := make([]float64, nTest)
	for i := range testPred {
		testPred[i] = base
	}

	residuals := make([]float64, nTrain)
	allRows := make([]int, nTrain)
	for i := range allRows {
		allRows[i] = i
	}
	cfg := treeConfig{MaxDepth: params.MaxDepth, MinChildSamples: params.MinChildSamples}

	curve := make([]float64, params.NumRounds)
	for round := 0; round < params.NumRounds; round++ {
		for i := range residuals {
			residuals[i] = target[i] - trainPred[i]
		}

		tree := fitTree(trainView, residuals, allRows, cfg)

		for i := 0; i < nTrain; i++ {
			trainPred[i] += params.LearningRate * tree.predictRow(trainView, i)
		}
		for i, idx := range fold.Test {
			testPred[i] += params.LearningRate * tree.predictRow(X, idx)
		}

		var sse float64
		for i := range truth {
			diff := truth[i] - testPred[i]
			sse += diff * diff
		}
		curve[round] = math.Sqrt(sse / float64(nTest))
	}

	if err := errors.CheckNumericalStability("boosting_cv", curve, params.NumRounds); err != nil {
		return nil, err
	}
	return curve, nil
}

// rowView presents a subset of rows of a matrix without copying.
type rowView struct {
	m    mat.Matrix
	rows []int
}

func (v rowView) Dims() (int, int) {
	_, c := v.m.Dims()
	return len(v.rows), c
}

func (v rowView) At(i, j int) float64 { return v.m.At(v.rows[i], j) }

func (v rowView) T() mat.Matrix { return mat.Transpose{Matrix: v} }
