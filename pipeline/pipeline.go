// Package pipeline wires the full stream-count modeling flow: cleaning,
// feature derivation, outlier removal, scaling, model training, and
// cross-validated comparison of the candidate regressors.
package pipeline

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/streamforecast/anomaly"
	"github.com/YuminosukeSato/streamforecast/boosting"
	"github.com/YuminosukeSato/streamforecast/core/model"
	"github.com/YuminosukeSato/streamforecast/dataset"
	"github.com/YuminosukeSato/streamforecast/linear"
	"github.com/YuminosukeSato/streamforecast/metrics"
	"github.com/YuminosukeSato/streamforecast/modelselection"
	"github.com/YuminosukeSato/streamforecast/neural"
	"github.com/YuminosukeSato/streamforecast/pkg/errors"
	"github.com/YuminosukeSato/streamforecast/pkg/log"
	"github.com/YuminosukeSato/streamforecast/preprocessing"
)

// Candidate model names used in reports.
const (
	ModelLinear   = "linear_regression"
	ModelMLP      = "mlp_regressor"
	ModelBoosting = "gradient_boosting"
)

// Config holds every knob of one pipeline run.
type Config struct {
	// Seed drives every randomized stage: outlier detection, the
	// train/test split, fold shuffling, and model initialization.
	Seed uint64

	// TestSize is the holdout fraction.
	TestSize float64

	// Contamination is the expected outlier fraction.
	Contamination float64

	// CVFolds is the fold count for both grid search and the final
	// model comparison.
	CVFolds int

	// ReferenceDate anchors the days-since-release feature. The zero
	// value means "now".
	ReferenceDate time.Time

	// MLPGrid is the hyperparameter grid searched for the neural model.
	MLPGrid map[string][]interface{}

	// Boosting configures the gradient-boosting candidate.
	Boosting boosting.Params
}

// DefaultConfig mirrors the reference modeling run.
func DefaultConfig() Config {
	return Config{
		Seed:          42,
		TestSize:      0.2,
		Contamination: 0.05,
		CVFolds:       5,
		MLPGrid: map[string][]interface{}{
			"hidden_layer_sizes": {[]int{24, 24, 24, 24, 24}},
			"activation":         {neural.ActivationReLU, neural.ActivationLogistic},
			"solver":             {neural.SolverAdam, neural.SolverFullBatch},
			"max_iter":           {3000, 4000},
			"alpha":              {0.001, 0.01},
		},
		Boosting: boosting.DefaultParams(),
	}
}

// ModelResult is the evaluation of one candidate. A failed candidate keeps
// its Err and zero metrics; the other candidates are unaffected.
type ModelResult struct {
	Name string

	// Holdout contains the test-set metrics.
	Holdout metrics.Report

	// CVMean and CVStd summarize the k-fold negated RMSE on the scaled
	// full matrix. Closer to zero is better.
	CVMean float64
	CVStd  float64

	Err error
}

// Comparison is the full outcome of a pipeline run.
type Comparison struct {
	Clean  dataset.CleanReport
	Derive dataset.DeriveReport

	OutliersRemoved int
	TrainRows       int
	TestRows        int

	Models []ModelResult

	// BoostingCurve is the per-round cross-validated RMSE of the
	// boosting schedule.
	BoostingCurve boosting.CVResult

	// Best names the candidate with the highest CV score among those
	// that trained successfully. Empty if every candidate failed.
	Best string
}

// NewRegressor builds a fresh candidate model by name, with the searched
// neural parameters left at their defaults. The grid-searched variant is
// produced inside Run.
func NewRegressor(kind string, cfg Config) (model.Regressor, error) {
	switch kind {
	case ModelLinear:
		return linear.NewRegression(), nil
	case ModelMLP:
		return neural.NewMLPRegressor(neural.Params{Seed: cfg.Seed}), nil
	case ModelBoosting:
		return boosting.NewTrainer(cfg.Boosting), nil
	default:
		return nil, errors.NewValidationError("kind", "unknown model kind", kind)
	}
}

// Run executes the whole pipeline on raw records. Stage failures before
// model training abort the run; individual model failures do not.
func Run(cfg Config, raw dataset.Dataset) (*Comparison, error) {
	cfg = withDefaults(cfg)
	logger := log.GetLoggerWithName("pipeline")
	start := time.Now()

	cleaned, cleanReport := dataset.Clean(raw)
	derived, deriveReport := dataset.Derive(cleaned, cfg.ReferenceDate)
	if derived.Len() == 0 {
		return nil, errors.NewModelError("pipeline.Run", "no rows survived cleaning", errors.ErrEmptyData)
	}

	X, err := derived.Matrix()
	if err != nil {
		return nil, err
	}

	forest := anomaly.NewIsolationForest(cfg.Contamination, cfg.Seed)
	labels, err := forest.FitPredict(X)
	if err != nil {
		return nil, errors.Wrap(err, "outlier detection failed")
	}
	inliers, err := derived.Filter(labels)
	if err != nil {
		return nil, err
	}
	outliersRemoved := derived.Len() - inliers.Len()

	logger.Info("data prepared",
		log.OperationKey, "prepare",
		log.SamplesKey, inliers.Len(),
		log.DroppedRowsKey, cleanReport.Duplicates+deriveReport.InvalidDates+deriveReport.NonNumericTargets+outliersRemoved,
	)

	X, err = inliers.Matrix()
	if err != nil {
		return nil, err
	}
	y, err := inliers.TargetVec()
	if err != nil {
		return nil, err
	}

	XTrain, XTest, yTrain, yTest, err := modelselection.TrainTestSplit(X, y, cfg.TestSize, cfg.Seed)
	if err != nil {
		return nil, err
	}

	scaler := preprocessing.NewStandardScaler()
	XTrainScaled, err := scaler.FitTransform(XTrain)
	if err != nil {
		return nil, errors.Wrap(err, "scaling the training set failed")
	}
	XTestScaled, err := scaler.Transform(XTest)
	if err != nil {
		return nil, errors.Wrap(err, "scaling the test set failed")
	}
	// The final comparison cross-validates on the full inlier matrix,
	// transformed with the train-fitted scaler.
	XAllScaled, err := scaler.Transform(X)
	if err != nil {
		return nil, errors.Wrap(err, "scaling the full matrix failed")
	}

	comp := &Comparison{
		Clean:           cleanReport,
		Derive:          deriveReport,
		OutliersRemoved: outliersRemoved,
		TrainRows:       rows(XTrainScaled),
		TestRows:        rows(XTestScaled),
	}

	kf := modelselection.NewKFold(cfg.CVFolds, true, cfg.Seed)

	for _, kind := range []string{ModelLinear, ModelBoosting} {
		factory := func() model.Regressor {
			reg, _ := NewRegressor(kind, cfg)
			return reg
		}
		comp.Models = append(comp.Models, evaluate(kind, factory,
			XTrainScaled, yTrain, XTestScaled, yTest, XAllScaled, y, kf))
	}

	comp.Models = append(comp.Models, evaluateMLP(cfg,
		XTrainScaled, yTrain, XTestScaled, yTest, XAllScaled, y, kf))

	if curve, err := boosting.CV(cfg.Boosting, XAllScaled, y, cfg.CVFolds, cfg.Seed); err != nil {
		logger.Warn("boosting round curve failed", log.OperationKey, "boosting_cv", "error", err)
	} else {
		comp.BoostingCurve = curve
	}

	comp.Best = pickBest(comp.Models)

	logger.Info("pipeline finished",
		log.OperationKey, "run",
		"best", comp.Best,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return comp, nil
}

// evaluate fits one candidate on the scaled training data, scores the
// holdout, and cross-validates on the scaled full matrix.
func evaluate(name string, factory model.RegressorFactory, XTrain, yTrain, XTest, yTest, XCV, yCV mat.Matrix, kf *modelselection.KFold) ModelResult {
	result := ModelResult{Name: name}

	reg := factory()
	if err := reg.Fit(XTrain, yTrain); err != nil {
		result.Err = errors.Wrapf(err, "%s training failed", name)
		return result
	}

	pred, err := reg.Predict(XTest)
	if err != nil {
		result.Err = errors.Wrapf(err, "%s prediction failed", name)
		return result
	}

	truth, err := metrics.VecFromColumn(yTest)
	if err != nil {
		result.Err = err
		return result
	}
	predVec, err := metrics.VecFromColumn(pred)
	if err != nil {
		result.Err = err
		return result
	}
	report, err := metrics.NewReport(truth, predVec)
	if err != nil {
		result.Err = errors.Wrapf(err, "%s holdout scoring failed", name)
		return result
	}
	result.Holdout = report

	cv, err := modelselection.CrossValidate(factory, XCV, yCV, kf, modelselection.ScoringNegRMSE)
	if err != nil {
		result.Err = errors.Wrapf(err, "%s cross-validation failed", name)
		return result
	}
	result.CVMean = cv.Mean
	result.CVStd = cv.Std
	return result
}

// evaluateMLP grid-searches the neural candidate first, then evaluates the
// winning parameters like the other models.
func evaluateMLP(cfg Config, XTrain, yTrain, XTest, yTest, XCV, yCV mat.Matrix, kf *modelselection.KFold) ModelResult {
	gs := modelselection.NewGridSearchCV(mlpFactory(cfg.Seed), cfg.MLPGrid, kf)
	if err := gs.Fit(XTrain, yTrain); err != nil {
		return ModelResult{Name: ModelMLP, Err: errors.Wrap(err, "mlp grid search failed")}
	}

	best := gs.BestParams
	factory := func() model.Regressor { return mlpFactory(cfg.Seed)(best) }
	return evaluate(ModelMLP, factory, XTrain, yTrain, XTest, yTest, XCV, yCV, kf)
}

// mlpFactory converts grid-point parameters into a neural regressor.
func mlpFactory(seed uint64) modelselection.ParamFactory {
	return func(params map[string]interface{}) model.Regressor {
		p := neural.Params{Seed: seed}
		if v, ok := params["hidden_layer_sizes"].([]int); ok {
			p.HiddenLayerSizes = v
		}
		if v, ok := params["activation"].(string); ok {
			p.Activation = v
		}
		if v, ok := params["solver"].(string); ok {
			p.Solver = v
		}
		if v, ok := params["max_iter"].(int); ok {
			p.MaxIter = v
		}
		if v, ok := params["alpha"].(float64); ok {
			p.Alpha = v
		}
		return neural.NewMLPRegressor(p)
	}
}

// pickBest returns the successful candidate with the highest CV score.
func pickBest(results []ModelResult) string {
	best := ""
	bestScore := 0.0
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if best == "" || r.CVMean > bestScore {
			best = r.Name
			bestScore = r.CVMean
		}
	}
	return best
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.TestSize == 0 {
		cfg.TestSize = def.TestSize
	}
	if cfg.Contamination == 0 {
		cfg.Contamination = def.Contamination
	}
	if cfg.CVFolds == 0 {
		cfg.CVFolds = def.CVFolds
	}
	if cfg.ReferenceDate.IsZero() {
		cfg.ReferenceDate = time.Now().UTC()
	}
	if len(cfg.MLPGrid) == 0 {
		cfg.MLPGrid = def.MLPGrid
	}
	if cfg.Boosting.NumRounds == 0 {
		cfg.Boosting = def.Boosting
	}
	return cfg
}

func rows(m mat.Matrix) int {
	r, _ := m.Dims()
	return r
}
