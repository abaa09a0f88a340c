package modelselection

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/streamforecast/core/model"
	"github.com/YuminosukeSato/streamforecast/core/parallel"
	"github.com/YuminosukeSato/streamforecast/pkg/errors"
	"github.com/YuminosukeSato/streamforecast/pkg/log"
)

// ParamFactory builds a fresh regressor from one grid point.
type ParamFactory func(params map[string]interface{}) model.Regressor

// GridResult is the cross-validated score of one parameter combination.
type GridResult struct {
	Params    map[string]interface{}
	MeanScore float64
	StdScore  float64
}

// GridSearchCV exhaustively cross-validates every combination of the
// parameter grid and refits the best one on the full data.
type GridSearchCV struct {
	Factory   ParamFactory
	ParamGrid map[string][]interface{}
	CV        *KFold
	Scoring   Scoring

	// Workers bounds concurrent combinations; 0 means sequential search
	// with parallel folds inside each combination.
	Workers int

	BestParams map[string]interface{}
	BestScore  float64
	BestModel  model.Regressor
	Results    []GridResult

	fitted bool
}

// NewGridSearchCV creates a search over the given grid with num-fold CV and
// neg-MSE scoring by default.
func NewGridSearchCV(factory ParamFactory, grid map[string][]interface{}, cv *KFold) *GridSearchCV {
	return &GridSearchCV{
		Factory:   factory,
		ParamGrid: grid,
		CV:        cv,
		Scoring:   ScoringNegMSE,
	}
}

// Fit scores every grid point and refits the winner. Ties keep the earlier
// combination in deterministic grid order.
func (g *GridSearchCV) Fit(X, y mat.Matrix) error {
	combos, err := expandGrid(g.ParamGrid)
	if err != nil {
		return err
	}

	start := time.Now()
	logger := log.GetLoggerWithName("modelselection")
	logger.Info("grid search started",
		log.OperationKey, "grid_search",
		"combinations", len(combos),
		"folds", g.CV.NSplits,
	)

	g.Results = make([]GridResult, len(combos))

	workers := g.Workers
	if workers <= 0 {
		workers = 1
	}
	taskErrs := parallel.RunTasks(len(combos), workers, func(c int) error {
		params := combos[c]
		factory := func() model.Regressor { return g.Factory(params) }

		result, err := CrossValidate(factory, X, y, g.CV, g.Scoring)
		if err != nil {
			return errors.Wrapf(err, "grid point %d failed", c)
		}
		g.Results[c] = GridResult{Params: params, MeanScore: result.Mean, StdScore: result.Std}
		return nil
	})
	for _, err := range taskErrs {
		if err != nil {
			return err
		}
	}

	best := 0
	for i := 1; i < len(g.Results); i++ {
		if g.Results[i].MeanScore > g.Results[best].MeanScore {
			best = i
		}
	}
	g.BestParams = g.Results[best].Params
	g.BestScore = g.Results[best].MeanScore

	g.BestModel = g.Factory(g.BestParams)
	if err := g.BestModel.Fit(X, y); err != nil {
		return errors.Wrap(err, "refit of best parameters failed")
	}
	g.fitted = true

	logger.Info("grid search finished",
		log.OperationKey, "grid_search",
		log.ScoreKey, g.BestScore,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict delegates to the refit best model.
func (g *GridSearchCV) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !g.fitted {
		return nil, errors.NewNotFittedError("GridSearchCV", "Predict")
	}
	return g.BestModel.Predict(X)
}

// expandGrid produces the cartesian product in deterministic key order.
func expandGrid(grid map[string][]interface{}) ([]map[string]interface{}, error) {
	if len(grid) == 0 {
		return nil, errors.NewValidationError("param_grid", "grid is empty", grid)
	}

	keys := make([]string, 0, len(grid))
	for k := range grid {
		if len(grid[k]) == 0 {
			return nil, errors.NewValidationError("param_grid",
				"grid dimension has no values", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	combos := []map[string]interface{}{{}}
	for _, key := range keys {
		next := make([]map[string]interface{}, 0, len(combos)*len(grid[key]))
		for _, combo := range combos {
			for _, value := range grid[key] {
				expanded := make(map[string]interface{}, len(combo)+1)
				for k, v := range combo {
					expanded[k] = v
				}
				expanded[key] = value
				next = append(next, expanded)
			}
		}
		combos = next
	}
	return combos, nil
}
