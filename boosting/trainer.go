// Package boosting implements gradient-boosted regression trees with a
// squared-error objective and k-fold evaluation of the boosting schedule.
package boosting

import (
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/streamforecast/core/model"
	"github.com/YuminosukeSato/streamforecast/pkg/errors"
	"github.com/YuminosukeSato/streamforecast/pkg/log"
)

// Params configures a boosting run.
type Params struct {
	// NumRounds is the number of boosting rounds (trees).
	NumRounds int

	// LearningRate shrinks the contribution of each tree.
	LearningRate float64

	// MaxDepth bounds every tree.
	MaxDepth int

	// MinChildSamples is the minimum row count in a leaf.
	MinChildSamples int

	// Subsample is the fraction of rows drawn (without replacement) per
	// round. 1.0 disables subsampling.
	Subsample float64

	// Seed drives row subsampling.
	Seed uint64
}

// DefaultParams matches the reference training run: 100 rounds at a 0.1
// learning rate.
func DefaultParams() Params {
	return Params{
		NumRounds:       100,
		LearningRate:    0.1,
		MaxDepth:        6,
		MinChildSamples: 5,
		Subsample:       1.0,
		Seed:            42,
	}
}

// Validate rejects unusable parameters.
func (p Params) Validate() error {
	if p.NumRounds <= 0 {
		return errors.NewValidationError("num_rounds", "must be positive", p.NumRounds)
	}
	if p.LearningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be positive", p.LearningRate)
	}
	if p.MaxDepth <= 0 {
		return errors.NewValidationError("max_depth", "must be positive", p.MaxDepth)
	}
	if p.Subsample <= 0 || p.Subsample > 1 {
		return errors.NewValidationError("subsample", "must be in (0, 1]", p.Subsample)
	}
	return nil
}

// Model is a trained boosting ensemble.
type Model struct {
	model.BaseEstimator

	baseScore    float64
	learningRate float64
	trees        []*regressionTree
	nFeatures    int
}

// Trainer fits a Model round by round. A Trainer also satisfies the common
// regressor interface, delegating Predict to its trained model.
type Trainer struct {
	Params Params

	trained *Model
}

// NewTrainer creates a trainer; zero fields fall back to defaults.
func NewTrainer(params Params) *Trainer {
	def := DefaultParams()
	if params.NumRounds == 0 {
		params.NumRounds = def.NumRounds
	}
	if params.LearningRate == 0 {
		params.LearningRate = def.LearningRate
	}
	if params.MaxDepth == 0 {
		params.MaxDepth = def.MaxDepth
	}
	if params.MinChildSamples == 0 {
		params.MinChildSamples = def.MinChildSamples
	}
	if params.Subsample == 0 {
		params.Subsample = def.Subsample
	}
	return &Trainer{Params: params}
}

// Fit trains the ensemble on X and y. Each round fits one tree to the
// current residuals and folds it into the running prediction scaled by the
// learning rate.
func (t *Trainer) Fit(X, y mat.Matrix) error {
	if err := t.Params.Validate(); err != nil {
		return err
	}

	n, d := X.Dims()
	ry, cy := y.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("boosting.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != n {
		return errors.NewDimensionError("boosting.Fit", n, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("boosting.Fit", "y must be a column vector")
	}

	target := make([]float64, n)
	allEqual := true
	for i := 0; i < n; i++ {
		target[i] = y.At(i, 0)
		if target[i] != target[0] {
			allEqual = false
		}
	}
	if allEqual {
		return errors.NewModelError("boosting.Fit", "zero-variance target", errors.ErrZeroVariance)
	}

	start := time.Now()
	logger := log.GetLoggerWithName("boosting")

	base := 0.0
	for _, v := range target {
		base += v
	}
	base /= float64(n)

	m := &Model{
		baseScore:    base,
		learningRate: t.Params.LearningRate,
		trees:        make([]*regressionTree, 0, t.Params.NumRounds),
		nFeatures:    d,
	}

	predictions := make([]float64, n)
	for i := range predictions {
		predictions[i] = base
	}
	residuals := make([]float64, n)

	cfg := treeConfig{MaxDepth: t.Params.MaxDepth, MinChildSamples: t.Params.MinChildSamples}
	rng := rand.New(rand.NewPCG(t.Params.Seed, t.Params.Seed))

	allRows := make([]int, n)
	for i := range allRows {
		allRows[i] = i
	}

	for round := 0; round < t.Params.NumRounds; round++ {
		for i := range residuals {
			residuals[i] = target[i] - predictions[i]
		}

		rows := allRows
		if t.Params.Subsample < 1 {
			rows = sampleRows(rng, n, t.Params.Subsample)
		}

		tree := fitTree(X, residuals, rows, cfg)
		m.trees = append(m.trees, tree)

		for i := 0; i < n; i++ {
			predictions[i] += t.Params.LearningRate * tree.predictRow(X, i)
		}
	}

	if err := errors.CheckNumericalStability("boosting_training", predictions, t.Params.NumRounds); err != nil {
		return errors.NewModelError("boosting.Fit", "numerical instability", err)
	}

	m.SetFitted()
	t.trained = m

	logger.Debug("training finished",
		log.ModelNameKey, "GradientBoosting",
		log.OperationKey, "fit",
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Model returns the trained ensemble, or nil before Fit.
func (t *Trainer) Model() *Model {
	return t.trained
}

// Predict delegates to the trained model.
func (t *Trainer) Predict(X mat.Matrix) (mat.Matrix, error) {
	if t.trained == nil {
		return nil, errors.NewNotFittedError("boosting.Trainer", "Predict")
	}
	return t.trained.Predict(X)
}

// Predict sums the scaled tree outputs on top of the base score and returns
// an n×1 matrix in input row order.
func (m *Model) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("boosting.Model", "Predict")
	}

	n, d := X.Dims()
	if d != m.nFeatures {
		return nil, errors.NewDimensionError("boosting.Predict", m.nFeatures, d, 1)
	}

	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		pred := m.baseScore
		for _, tree := range m.trees {
			pred += m.learningRate * tree.predictRow(X, i)
		}
		out.Set(i, 0, pred)
	}
	return out, nil
}

// NumTrees reports the number of boosting rounds in the ensemble.
func (m *Model) NumTrees() int {
	return len(m.trees)
}

// sampleRows draws a sorted sample without replacement.
func sampleRows(rng *rand.Rand, n int, fraction float64) []int {
	k := int(fraction * float64(n))
	if k < 1 {
		k = 1
	}
	rows := rng.Perm(n)[:k]
	sort.Ints(rows)
	return rows
}
