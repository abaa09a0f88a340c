// Package anomaly provides unsupervised outlier detection used to filter the
// dataset before any train/test split.
package anomaly

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/streamforecast/core/model"
	"github.com/YuminosukeSato/streamforecast/core/parallel"
	"github.com/YuminosukeSato/streamforecast/pkg/errors"
	"github.com/YuminosukeSato/streamforecast/pkg/log"
)

// Labels returned by FitPredict, following the sklearn convention.
const (
	Inlier  = 1
	Outlier = -1
)

// IsolationForest isolates points with randomized binary partition trees: a
// point that needs few random splits to end up alone is easy to isolate and
// scores as more anomalous. No feature scaling is required.
type IsolationForest struct {
	model.BaseEstimator

	// NEstimators is the number of isolation trees (default 100).
	NEstimators int

	// MaxSamples is the subsample size each tree is built on (default 256,
	// capped at the dataset size).
	MaxSamples int

	// Contamination is the fraction of rows to label as outliers
	// (default 0.05). The removed fraction approximates this rate; it is an
	// unsupervised estimate, not an exact guarantee.
	Contamination float64

	// Seed drives all subsampling and split randomness.
	Seed uint64

	trees      []*isoNode
	sampleSize int
}

// NewIsolationForest creates a forest with reference defaults.
func NewIsolationForest(contamination float64, seed uint64) *IsolationForest {
	return &IsolationForest{
		NEstimators:   100,
		MaxSamples:    256,
		Contamination: contamination,
		Seed:          seed,
	}
}

// isoNode is one node of an isolation tree. Leaves carry the number of
// subsample points they ended with; internal nodes carry a random split.
type isoNode struct {
	feature   int
	threshold float64
	left      *isoNode
	right     *isoNode
	size      int
	leaf      bool
}

// FitPredict fits the forest on X and returns one label per row: +1 for
// inliers, -1 for the Contamination fraction with the highest anomaly
// scores. Ranking ties are broken by row index, so the result is
// deterministic for a fixed seed.
func (f *IsolationForest) FitPredict(X mat.Matrix) ([]int, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	n, cols := X.Dims()
	if n == 0 || cols == 0 {
		return nil, errors.NewModelError("IsolationForest.FitPredict", "empty data", errors.ErrEmptyData)
	}

	f.sampleSize = f.MaxSamples
	if f.sampleSize > n {
		f.sampleSize = n
	}

	f.trees = make([]*isoNode, f.NEstimators)
	heightLimit := int(math.Ceil(math.Log2(float64(f.sampleSize))))
	if heightLimit < 1 {
		heightLimit = 1
	}

	// Tree builds are independent; each gets its own generator derived from
	// the forest seed so the result does not depend on scheduling.
	parallel.Parallelize(f.NEstimators, func(start, end int) {
		for t := start; t < end; t++ {
			rng := rand.New(rand.NewPCG(f.Seed, uint64(t)))
			sample := subsample(rng, n, f.sampleSize)
			f.trees[t] = buildIsoTree(X, sample, cols, 0, heightLimit, rng)
		}
	})
	f.SetFitted()

	scores := f.scoreRows(X, n)

	// Rank rows by score and flag the top contamination fraction.
	k := int(math.Round(f.Contamination * float64(n)))
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	labels := make([]int, n)
	for i := range labels {
		labels[i] = Inlier
	}
	for i := 0; i < k; i++ {
		labels[order[i]] = Outlier
	}

	log.GetLoggerWithName("anomaly").Info("isolation forest fit",
		log.SamplesKey, n,
		log.FeaturesKey, cols,
		log.DroppedRowsKey, k,
	)

	return labels, nil
}

// Scores returns the anomaly score of each row of X against the fitted
// forest. Scores are in (0, 1]; higher means more anomalous.
func (f *IsolationForest) Scores(X mat.Matrix) ([]float64, error) {
	if !f.IsFitted() {
		return nil, errors.NewNotFittedError("IsolationForest", "Scores")
	}
	n, _ := X.Dims()
	return f.scoreRows(X, n), nil
}

func (f *IsolationForest) scoreRows(X mat.Matrix, n int) []float64 {
	scores := make([]float64, n)
	norm := avgPathLength(float64(f.sampleSize))
	_, cols := X.Dims()

	parallel.ParallelizeWithThreshold(n, 256, func(start, end int) {
		row := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)

			var sum float64
			for _, tree := range f.trees {
				sum += pathLength(tree, row, 0)
			}
			mean := sum / float64(len(f.trees))
			scores[i] = math.Pow(2, -errors.SafeDivide(mean, norm))
		}
	})

	return scores
}

func (f *IsolationForest) validate() error {
	if f.NEstimators <= 0 {
		return errors.NewValidationError("n_estimators", "must be positive", f.NEstimators)
	}
	if f.Contamination <= 0 || f.Contamination > 0.5 {
		return errors.NewValidationError("contamination", "must be in (0, 0.5]", f.Contamination)
	}
	return nil
}

// subsample draws sampleSize distinct row indices.
func subsample(rng *rand.Rand, n, sampleSize int) []int {
	perm := rng.Perm(n)
	return perm[:sampleSize]
}

// buildIsoTree grows one isolation tree over the given subsample rows.
func buildIsoTree(X mat.Matrix, rows []int, cols, depth, heightLimit int, rng *rand.Rand) *isoNode {
	if depth >= heightLimit || len(rows) <= 1 {
		return &isoNode{leaf: true, size: len(rows)}
	}

	feature := rng.IntN(cols)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range rows {
		v := X.At(r, feature)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == hi {
		// Constant feature on this subsample; the points cannot be split.
		return &isoNode{leaf: true, size: len(rows)}
	}

	threshold := lo + rng.Float64()*(hi-lo)

	var left, right []int
	for _, r := range rows {
		if X.At(r, feature) < threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	return &isoNode{
		feature:   feature,
		threshold: threshold,
		left:      buildIsoTree(X, left, cols, depth+1, heightLimit, rng),
		right:     buildIsoTree(X, right, cols, depth+1, heightLimit, rng),
	}
}

// pathLength walks a point down one tree and returns the adjusted depth at
// which it is isolated.
func pathLength(node *isoNode, row []float64, depth int) float64 {
	if node.leaf {
		return float64(depth) + avgPathLength(float64(node.size))
	}
	if row[node.feature] < node.threshold {
		return pathLength(node.left, row, depth+1)
	}
	return pathLength(node.right, row, depth+1)
}

// avgPathLength is c(n), the average path length of an unsuccessful BST
// search over n points; it normalizes depths so scores compare across
// subsample sizes.
func avgPathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	const eulerMascheroni = 0.5772156649
	harmonic := math.Log(n-1) + eulerMascheroni
	return 2*harmonic - 2*(n-1)/n
}
