// Package log defines standard attribute keys for estimo operations.
//
// Using these keys keeps fit, predict and evaluation logs consistent across
// the tree, forest, neighbors and model selection packages. Keys follow a
// hierarchical naming convention (e.g. "model.name", "data.samples").

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of model.
	// Examples: "DecisionTreeRegressor", "RandomForestRegressor"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "score", "cross_validate"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of model lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// TrainSamplesKey and TestSamplesKey describe a train/held-out partition.
	TrainSamplesKey = "data.train_samples"
	TestSamplesKey  = "data.test_samples"
)

// Model Structure
const (
	// TreesKey records the number of trees in a forest.
	TreesKey = "model.trees"

	// DepthKey records the depth of a fitted tree.
	DepthKey = "model.depth"

	// LeavesKey records the number of leaves of a fitted tree.
	LeavesKey = "model.leaves"

	// NeighborsKey records k for nearest-neighbor models.
	NeighborsKey = "model.neighbors"

	// WorkersKey records the size of a worker pool.
	WorkersKey = "infra.workers"
)

// Performance and Evaluation
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// MAEKey records mean absolute error.
	MAEKey = "metrics.mae"

	// MAPEKey records mean absolute percentage error (percent).
	MAPEKey = "metrics.mape"

	// AccuracyKey records 100 - MAPE.
	AccuracyKey = "metrics.accuracy"

	// FoldKey records the cross-validation fold index.
	FoldKey = "cv.fold"

	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"
)

// Error Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"
)

// Configuration
const (
	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Standard attribute values.
const (
	OperationFit           = "fit"
	OperationPredict       = "predict"
	OperationScore         = "score"
	OperationCrossValidate = "cross_validate"
	OperationSave          = "save"
	OperationLoad          = "load"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseInference  = "inference"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorInvalidInput      = "INVALID_INPUT"
)
