package modelselection

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/streamforecast/core/model"
	"github.com/YuminosukeSato/streamforecast/core/parallel"
	"github.com/YuminosukeSato/streamforecast/metrics"
	"github.com/YuminosukeSato/streamforecast/pkg/errors"
	"github.com/YuminosukeSato/streamforecast/pkg/log"
)

// Scoring selects the fold score. Negated error scorings keep "higher is
// better" semantics so that all scorings compare the same way.
type Scoring string

const (
	ScoringNegMSE  Scoring = "neg_mean_squared_error"
	ScoringNegRMSE Scoring = "neg_root_mean_squared_error"
	ScoringR2      Scoring = "r2"
)

// CVResult aggregates per-fold scores.
type CVResult struct {
	Scores []float64
	Mean   float64
	Std    float64
}

// CrossValidate trains a fresh regressor from factory on each fold's
// training rows and scores it on the fold's test rows. Folds run
// concurrently; the first fold error aborts the result.
func CrossValidate(factory model.RegressorFactory, X, y mat.Matrix, splitter *KFold, scoring Scoring) (CVResult, error) {
	n, _ := X.Dims()
	folds, err := splitter.Split(n)
	if err != nil {
		return CVResult{}, err
	}

	start := time.Now()
	logger := log.GetLoggerWithName("modelselection")

	scores := make([]float64, len(folds))
	taskErrs := parallel.RunTasks(len(folds), len(folds), func(f int) error {
		fold := folds[f]
		XTrain := takeRows(X, fold.Train)
		yTrain := takeRows(y, fold.Train)
		XTest := takeRows(X, fold.Test)
		yTest := takeRows(y, fold.Test)

		reg := factory()
		if err := reg.Fit(XTrain, yTrain); err != nil {
			return errors.Wrapf(err, "fold %d fit failed", f)
		}

		var score float64
		if scorer, ok := reg.(model.Scorer); ok && scoring == ScoringR2 {
			// R² scoring defers to the model's own Score when it has one.
			var err error
			score, err = scorer.Score(XTest, yTest)
			if err != nil {
				return errors.Wrapf(err, "fold %d scoring failed", f)
			}
		} else {
			pred, err := reg.Predict(XTest)
			if err != nil {
				return errors.Wrapf(err, "fold %d predict failed", f)
			}
			score, err = scoreFold(scoring, yTest, pred)
			if err != nil {
				return errors.Wrapf(err, "fold %d scoring failed", f)
			}
		}
		scores[f] = score

		logger.Debug("fold scored",
			log.FoldKey, f,
			log.MetricKey, string(scoring),
			log.ScoreKey, score,
		)
		return nil
	})
	for _, err := range taskErrs {
		if err != nil {
			return CVResult{}, err
		}
	}

	mean, std := meanStd(scores)
	logger.Debug("cross-validation finished",
		log.OperationKey, "cross_validate",
		log.MetricKey, string(scoring),
		log.ScoreKey, mean,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return CVResult{Scores: scores, Mean: mean, Std: std}, nil
}

func scoreFold(scoring Scoring, yTrue mat.Matrix, yPred mat.Matrix) (float64, error) {
	truth, err := metrics.VecFromColumn(yTrue)
	if err != nil {
		return 0, err
	}
	pred, err := metrics.VecFromColumn(yPred)
	if err != nil {
		return 0, err
	}

	switch scoring {
	case ScoringNegMSE:
		mse, err := metrics.MSE(truth, pred)
		if err != nil {
			return 0, err
		}
		return -mse, nil
	case ScoringNegRMSE:
		rmse, err := metrics.RMSE(truth, pred)
		if err != nil {
			return 0, err
		}
		return -rmse, nil
	case ScoringR2:
		return metrics.R2Score(truth, pred)
	default:
		return 0, errors.NewValidationError("scoring", "unknown scoring", string(scoring))
	}
}

func meanStd(values []float64) (mean, std float64) {
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	for _, v := range values {
		std += (v - mean) * (v - mean)
	}
	std = math.Sqrt(std / float64(len(values)))
	return mean, std
}
