package log

// Model and operation context attribute keys. Using these standard keys
// keeps log records filterable across all pipeline packages.
const (
	// ModelNameKey identifies the type of model.
	// Examples: "LinearRegression", "MLPRegressor", "GBTRegressor"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "score", "cv", "grid_search"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	// Examples: "dataset", "anomaly", "preprocessing", "pipeline"
	ComponentKey = "ml.component"
)

// Data shape attribute keys.
const (
	// SamplesKey indicates the number of samples (rows) being processed.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of feature columns.
	FeaturesKey = "data.features"

	// DroppedRowsKey counts rows removed by a cleaning or filtering stage.
	DroppedRowsKey = "data.dropped_rows"
)

// Evaluation attribute keys.
const (
	// FoldKey identifies a cross-validation fold index.
	FoldKey = "cv.fold"

	// ScoreKey carries a metric value (MSE, RMSE, R², ...).
	ScoreKey = "eval.score"

	// MetricKey names the metric that ScoreKey carries.
	MetricKey = "eval.metric"

	// DurationMsKey carries elapsed wall-clock time in milliseconds.
	DurationMsKey = "duration_ms"
)
