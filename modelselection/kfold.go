// Package modelselection provides data splitting, cross-validation, and
// hyperparameter grid search for regressors.
package modelselection

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/streamforecast/pkg/errors"
)

// Fold holds the row indices of one cross-validation split.
type Fold struct {
	Train []int
	Test  []int
}

// KFold splits rows into k consecutive (optionally shuffled) folds. Every
// row appears in exactly one test fold.
type KFold struct {
	NSplits int
	Shuffle bool
	Seed    uint64
}

// NewKFold creates a splitter with the given fold count.
func NewKFold(nSplits int, shuffle bool, seed uint64) *KFold {
	return &KFold{NSplits: nSplits, Shuffle: shuffle, Seed: seed}
}

// Split produces the folds for n rows. The first n mod k folds get one
// extra row so that fold sizes differ by at most one.
func (k *KFold) Split(n int) ([]Fold, error) {
	if k.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be at least 2", k.NSplits)
	}
	if n < k.NSplits {
		return nil, errors.NewValueError("KFold.Split",
			"cannot have more folds than samples")
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if k.Shuffle {
		rng := rand.New(rand.NewPCG(k.Seed, k.Seed))
		rng.Shuffle(n, func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
	}

	folds := make([]Fold, k.NSplits)
	foldSize := n / k.NSplits
	remainder := n % k.NSplits

	start := 0
	for f := 0; f < k.NSplits; f++ {
		size := foldSize
		if f < remainder {
			size++
		}
		test := indices[start : start+size]

		train := make([]int, 0, n-size)
		train = append(train, indices[:start]...)
		train = append(train, indices[start+size:]...)

		folds[f] = Fold{Train: train, Test: test}
		start += size
	}
	return folds, nil
}

// TrainTestSplit shuffles rows with the given seed and carves off a test
// set of ceil(testSize*n) rows. X and y stay aligned row for row.
func TrainTestSplit(X, y mat.Matrix, testSize float64, seed uint64) (XTrain, XTest, yTrain, yTest *mat.Dense, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, nil, nil,
			errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}

	n, _ := X.Dims()
	ry, _ := y.Dims()
	if ry != n {
		return nil, nil, nil, nil,
			errors.NewDimensionError("TrainTestSplit", n, ry, 0)
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest == 0 || nTest == n {
		return nil, nil, nil, nil,
			errors.NewValueError("TrainTestSplit", "split produces an empty partition")
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	rng.Shuffle(n, func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })

	XTest = takeRows(X, indices[:nTest])
	XTrain = takeRows(X, indices[nTest:])
	yTest = takeRows(y, indices[:nTest])
	yTrain = takeRows(y, indices[nTest:])
	return XTrain, XTest, yTrain, yTest, nil
}

// takeRows copies the listed rows of m into a new dense matrix.
func takeRows(m mat.Matrix, rows []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for i, idx := range rows {
		for j := 0; j < c; j++ {
			out.Set(i, j, m.At(idx, j))
		}
	}
	return out
}
