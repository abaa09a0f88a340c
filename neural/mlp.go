// Package neural implements a feed-forward neural network regressor trained
// by backpropagation.
package neural

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/streamforecast/core/model"
	"github.com/YuminosukeSato/streamforecast/pkg/errors"
	"github.com/YuminosukeSato/streamforecast/pkg/log"
)

// Supported activation functions.
const (
	ActivationReLU     = "relu"
	ActivationLogistic = "logistic"
)

// Supported solvers. SolverAdam runs minibatch Adam; SolverFullBatch runs
// the same update over the full training set each iteration.
const (
	SolverAdam      = "adam"
	SolverFullBatch = "lbfgs"
)

// Params contains the MLP hyperparameters searched by grid search.
type Params struct {
	// HiddenLayerSizes is the width of each hidden layer.
	HiddenLayerSizes []int

	// Activation is the hidden-layer activation function.
	Activation string

	// Solver selects the weight update strategy.
	Solver string

	// MaxIter is the maximum number of training epochs.
	MaxIter int

	// Alpha is the L2 regularization strength.
	Alpha float64

	// LearningRate is the initial step size.
	LearningRate float64

	// Tol is the loss-improvement tolerance for convergence.
	Tol float64

	// BatchSize for minibatch solvers; capped at the sample count.
	BatchSize int

	// Seed drives weight initialization and batch shuffling.
	Seed uint64
}

// DefaultParams mirrors the reference configuration: five hidden layers of
// width 24.
func DefaultParams() Params {
	return Params{
		HiddenLayerSizes: []int{24, 24, 24, 24, 24},
		Activation:       ActivationReLU,
		Solver:           SolverAdam,
		MaxIter:          3000,
		Alpha:            0.001,
		LearningRate:     0.001,
		Tol:              1e-4,
		BatchSize:        200,
		Seed:             42,
	}
}

// layer is one dense layer with its Adam state.
type layer struct {
	W *mat.Dense // in×out
	b []float64

	mW, vW *mat.Dense
	mb, vb []float64
}

// MLPRegressor is a feed-forward network with linear output trained on a
// squared-error objective.
type MLPRegressor struct {
	model.BaseEstimator

	Params Params

	layers    []*layer
	nFeatures int

	// LossCurve records the training loss per epoch of the last Fit.
	LossCurve []float64
}

// NewMLPRegressor creates a regressor with the given hyperparameters; zero
// fields fall back to defaults.
func NewMLPRegressor(params Params) *MLPRegressor {
	def := DefaultParams()
	if len(params.HiddenLayerSizes) == 0 {
		params.HiddenLayerSizes = def.HiddenLayerSizes
	}
	if params.Activation == "" {
		params.Activation = def.Activation
	}
	if params.Solver == "" {
		params.Solver = def.Solver
	}
	if params.MaxIter == 0 {
		params.MaxIter = def.MaxIter
	}
	if params.LearningRate == 0 {
		params.LearningRate = def.LearningRate
	}
	if params.Tol == 0 {
		params.Tol = def.Tol
	}
	if params.BatchSize == 0 {
		params.BatchSize = def.BatchSize
	}
	return &MLPRegressor{Params: params}
}

// Validate rejects unusable hyperparameters before any training happens.
func (p Params) Validate() error {
	switch p.Activation {
	case ActivationReLU, ActivationLogistic:
	default:
		return errors.NewValidationError("activation", "must be relu or logistic", p.Activation)
	}
	switch p.Solver {
	case SolverAdam, SolverFullBatch:
	default:
		return errors.NewValidationError("solver", "unknown solver", p.Solver)
	}
	if p.MaxIter < 0 {
		return errors.NewValidationError("max_iter", "must be non-negative", p.MaxIter)
	}
	if p.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", p.Alpha)
	}
	for _, w := range p.HiddenLayerSizes {
		if w <= 0 {
			return errors.NewValidationError("hidden_layer_sizes", "widths must be positive", p.HiddenLayerSizes)
		}
	}
	return nil
}

// Fit trains the network. Degenerate input (empty set, zero-variance target)
// fails loudly; failure to converge within MaxIter raises a
// ConvergenceWarning but still returns the fitted state.
func (m *MLPRegressor) Fit(X, y mat.Matrix) error {
	if err := m.Params.Validate(); err != nil {
		return err
	}

	n, d := X.Dims()
	ry, cy := y.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("MLPRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != n {
		return errors.NewDimensionError("MLPRegressor.Fit", n, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("MLPRegressor.Fit", "y must be a column vector")
	}
	if !hasVariance(y, n) {
		return errors.NewModelError("MLPRegressor.Fit", "zero-variance target", errors.ErrZeroVariance)
	}

	// Refitting invalidates the previous fitted state until training
	// completes.
	m.Reset()

	m.nFeatures = d
	rng := rand.New(rand.NewPCG(m.Params.Seed, m.Params.Seed))
	m.initLayers(d, rng)

	target := make([]float64, n)
	for i := 0; i < n; i++ {
		target[i] = y.At(i, 0)
	}

	batchSize := m.Params.BatchSize
	if m.Params.Solver == SolverFullBatch || batchSize > n {
		batchSize = n
	}

	logger := log.GetLoggerWithName("neural")
	logger.Debug("training started",
		log.ModelNameKey, "MLPRegressor",
		log.OperationKey, "fit",
		log.SamplesKey, n,
		log.FeaturesKey, d,
	)

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	bestLoss := math.Inf(1)
	noImprove := 0
	const patience = 10
	converged := false
	step := 0

	m.LossCurve = m.LossCurve[:0]

	for epoch := 0; epoch < m.Params.MaxIter; epoch++ {
		if batchSize < n {
			rng.Shuffle(n, func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
		}

		for start := 0; start < n; start += batchSize {
			end := start + batchSize
			if end > n {
				end = n
			}
			step++
			if err := m.trainStep(X, target, indices[start:end], step); err != nil {
				return err
			}
		}

		loss := m.loss(X, target)
		if err := errors.CheckScalar("loss_calculation", loss, epoch); err != nil {
			return errors.NewModelError("MLPRegressor.Fit", "numerical instability", err)
		}
		m.LossCurve = append(m.LossCurve, loss)

		if loss < bestLoss-m.Params.Tol {
			bestLoss = loss
			noImprove = 0
		} else {
			noImprove++
			if noImprove >= patience {
				converged = true
				break
			}
		}
	}

	if !converged && m.Params.MaxIter > 0 {
		errors.Warn(errors.NewConvergenceWarning("MLPRegressor", m.Params.MaxIter,
			"training loss was still improving"))
	}

	m.SetFitted()
	return nil
}

// Predict runs a forward pass and returns an n×1 prediction matrix in input
// row order.
func (m *MLPRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("MLPRegressor", "Predict")
	}

	n, d := X.Dims()
	if d != m.nFeatures {
		return nil, errors.NewDimensionError("MLPRegressor.Predict", m.nFeatures, d, 1)
	}

	activations, _ := m.forward(denseFrom(X))
	out := activations[len(activations)-1]

	predictions := mat.NewDense(n, 1, nil)
	predictions.Copy(out)
	return predictions, nil
}

// initLayers performs seeded Glorot-uniform initialization.
func (m *MLPRegressor) initLayers(inputs int, rng *rand.Rand) {
	sizes := append([]int{inputs}, m.Params.HiddenLayerSizes...)
	sizes = append(sizes, 1) // linear output unit

	m.layers = make([]*layer, len(sizes)-1)
	for l := 0; l < len(sizes)-1; l++ {
		in, out := sizes[l], sizes[l+1]
		limit := math.Sqrt(6.0 / float64(in+out))

		W := mat.NewDense(in, out, nil)
		for i := 0; i < in; i++ {
			for j := 0; j < out; j++ {
				W.Set(i, j, (rng.Float64()*2-1)*limit)
			}
		}

		m.layers[l] = &layer{
			W:  W,
			b:  make([]float64, out),
			mW: mat.NewDense(in, out, nil),
			vW: mat.NewDense(in, out, nil),
			mb: make([]float64, out),
			vb: make([]float64, out),
		}
	}
}

// forward returns the activation of every layer (input included) and the
// pre-activation values of the hidden layers.
func (m *MLPRegressor) forward(X *mat.Dense) (activations, preacts []*mat.Dense) {
	activations = make([]*mat.Dense, len(m.layers)+1)
	preacts = make([]*mat.Dense, len(m.layers))
	activations[0] = X

	for l, lay := range m.layers {
		var z mat.Dense
		z.Mul(activations[l], lay.W)

		r, c := z.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				z.Set(i, j, z.At(i, j)+lay.b[j])
			}
		}
		preacts[l] = &z

		if l == len(m.layers)-1 {
			// Linear output layer.
			activations[l+1] = &z
			continue
		}

		a := mat.NewDense(r, c, nil)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				a.Set(i, j, m.activate(z.At(i, j)))
			}
		}
		activations[l+1] = a
	}

	return activations, preacts
}

// trainStep computes gradients on one batch and applies an Adam update.
func (m *MLPRegressor) trainStep(X mat.Matrix, target []float64, batch []int, step int) error {
	bn := len(batch)
	_, d := X.Dims()

	xb := mat.NewDense(bn, d, nil)
	yb := make([]float64, bn)
	for i, idx := range batch {
		for j := 0; j < d; j++ {
			xb.Set(i, j, X.At(idx, j))
		}
		yb[i] = target[idx]
	}

	activations, preacts := m.forward(xb)
	out := activations[len(activations)-1]

	// delta of the output layer: d(MSE/2)/d(pred) = (pred - y) / n
	delta := mat.NewDense(bn, 1, nil)
	for i := 0; i < bn; i++ {
		delta.Set(i, 0, (out.At(i, 0)-yb[i])/float64(bn))
	}

	for l := len(m.layers) - 1; l >= 0; l-- {
		lay := m.layers[l]

		var dW mat.Dense
		dW.Mul(activations[l].T(), delta)

		// L2 penalty on weights (not biases)
		if m.Params.Alpha > 0 {
			var reg mat.Dense
			reg.Scale(m.Params.Alpha/float64(bn), lay.W)
			dW.Add(&dW, &reg)
		}

		_, outCols := delta.Dims()
		db := make([]float64, outCols)
		for j := 0; j < outCols; j++ {
			for i := 0; i < bn; i++ {
				db[j] += delta.At(i, j)
			}
		}

		if l > 0 {
			var next mat.Dense
			next.Mul(delta, lay.W.T())

			r, c := next.Dims()
			prev := preacts[l-1]
			for i := 0; i < r; i++ {
				for j := 0; j < c; j++ {
					next.Set(i, j, next.At(i, j)*m.activateGrad(prev.At(i, j)))
				}
			}
			delta = &next
		}

		m.adamUpdate(lay, &dW, db, step)
	}

	return nil
}

// adamUpdate applies a bias-corrected Adam step to one layer.
func (m *MLPRegressor) adamUpdate(lay *layer, dW *mat.Dense, db []float64, step int) {
	const (
		beta1 = 0.9
		beta2 = 0.999
		eps   = 1e-8
	)
	lr := m.Params.LearningRate
	c1 := 1 - math.Pow(beta1, float64(step))
	c2 := 1 - math.Pow(beta2, float64(step))

	r, c := lay.W.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			g := dW.At(i, j)
			mo := beta1*lay.mW.At(i, j) + (1-beta1)*g
			vo := beta2*lay.vW.At(i, j) + (1-beta2)*g*g
			lay.mW.Set(i, j, mo)
			lay.vW.Set(i, j, vo)
			lay.W.Set(i, j, lay.W.At(i, j)-lr*(mo/c1)/(math.Sqrt(vo/c2)+eps))
		}
	}
	for j := range lay.b {
		g := db[j]
		lay.mb[j] = beta1*lay.mb[j] + (1-beta1)*g
		lay.vb[j] = beta2*lay.vb[j] + (1-beta2)*g*g
		lay.b[j] -= lr * (lay.mb[j] / c1) / (math.Sqrt(lay.vb[j]/c2) + eps)
	}
}

// loss is the (unregularized) half mean squared error over the full set.
func (m *MLPRegressor) loss(X mat.Matrix, target []float64) float64 {
	activations, _ := m.forward(denseFrom(X))
	out := activations[len(activations)-1]

	var sum float64
	for i, t := range target {
		diff := out.At(i, 0) - t
		sum += diff * diff
	}
	return sum / (2 * float64(len(target)))
}

func (m *MLPRegressor) activate(z float64) float64 {
	if m.Params.Activation == ActivationLogistic {
		return 1.0 / (1.0 + errors.StabilizeExp(-z))
	}
	// relu
	if z < 0 {
		return 0
	}
	return z
}

func (m *MLPRegressor) activateGrad(z float64) float64 {
	if m.Params.Activation == ActivationLogistic {
		s := 1.0 / (1.0 + errors.StabilizeExp(-z))
		return s * (1 - s)
	}
	if z < 0 {
		return 0
	}
	return 1
}

func hasVariance(y mat.Matrix, n int) bool {
	first := y.At(0, 0)
	for i := 1; i < n; i++ {
		if y.At(i, 0) != first {
			return true
		}
	}
	return false
}

func denseFrom(X mat.Matrix) *mat.Dense {
	if d, ok := X.(*mat.Dense); ok {
		return d
	}
	r, c := X.Dims()
	d := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d.Set(i, j, X.At(i, j))
		}
	}
	return d
}
