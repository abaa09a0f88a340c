package boosting

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// treeNode is one node of a regression tree. Leaves carry the prediction
// value; internal nodes carry the split.
type treeNode struct {
	Feature   int
	Threshold float64
	Left      *treeNode
	Right     *treeNode
	Value     float64
	IsLeaf    bool
}

// regressionTree is a depth-limited CART tree fit to residuals with a
// squared-error criterion.
type regressionTree struct {
	root *treeNode
}

// treeConfig bounds the greedy tree construction.
type treeConfig struct {
	MaxDepth        int
	MinChildSamples int
}

// fitTree builds a tree on the rows listed in indices against the given
// residual vector.
func fitTree(X mat.Matrix, residuals []float64, indices []int, cfg treeConfig) *regressionTree {
	return &regressionTree{root: buildNode(X, residuals, indices, 0, cfg)}
}

func buildNode(X mat.Matrix, residuals []float64, indices []int, depth int, cfg treeConfig) *treeNode {
	if depth >= cfg.MaxDepth || len(indices) < 2*cfg.MinChildSamples {
		return &treeNode{IsLeaf: true, Value: meanOf(residuals, indices)}
	}

	feature, threshold, gain := bestSplit(X, residuals, indices, cfg)
	if gain <= 0 {
		return &treeNode{IsLeaf: true, Value: meanOf(residuals, indices)}
	}

	var left, right []int
	for _, idx := range indices {
		if X.At(idx, feature) <= threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	if len(left) < cfg.MinChildSamples || len(right) < cfg.MinChildSamples {
		return &treeNode{IsLeaf: true, Value: meanOf(residuals, indices)}
	}

	return &treeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      buildNode(X, residuals, left, depth+1, cfg),
		Right:     buildNode(X, residuals, right, depth+1, cfg),
	}
}

// bestSplit scans every feature with a sorted prefix-sum sweep and returns
// the split with the largest reduction in sum of squared errors.
func bestSplit(X mat.Matrix, residuals []float64, indices []int, cfg treeConfig) (feature int, threshold, gain float64) {
	_, nFeatures := X.Dims()

	var totalSum, totalSq float64
	for _, idx := range indices {
		r := residuals[idx]
		totalSum += r
		totalSq += r * r
	}
	n := float64(len(indices))
	parentSSE := totalSq - totalSum*totalSum/n

	feature = -1
	gain = 0

	order := make([]int, len(indices))
	for f := 0; f < nFeatures; f++ {
		copy(order, indices)
		sort.Slice(order, func(i, j int) bool {
			return X.At(order[i], f) < X.At(order[j], f)
		})

		var leftSum, leftSq float64
		for i := 0; i < len(order)-1; i++ {
			r := residuals[order[i]]
			leftSum += r
			leftSq += r * r

			// Cannot split between equal feature values.
			cur, next := X.At(order[i], f), X.At(order[i+1], f)
			if cur == next {
				continue
			}

			nl := float64(i + 1)
			nr := n - nl
			if int(nl) < cfg.MinChildSamples || int(nr) < cfg.MinChildSamples {
				continue
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)

			if g := parentSSE - sse; g > gain {
				gain = g
				feature = f
				threshold = cur + (next-cur)/2
			}
		}
	}

	if feature < 0 {
		return 0, 0, 0
	}
	return feature, threshold, gain
}

// predictRow walks the tree for a single input row.
func (t *regressionTree) predictRow(X mat.Matrix, row int) float64 {
	node := t.root
	for !node.IsLeaf {
		if X.At(row, node.Feature) <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

func meanOf(values []float64, indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}
	var sum float64
	for _, idx := range indices {
		sum += values[idx]
	}
	return sum / float64(len(indices))
}

// numLeaves is used by tests to check that depth limits hold.
func (t *regressionTree) numLeaves() int {
	var count func(n *treeNode) int
	count = func(n *treeNode) int {
		if n.IsLeaf {
			return 1
		}
		return count(n.Left) + count(n.Right)
	}
	return count(t.root)
}

// maxLeaves for a binary tree of the given depth.
func maxLeaves(depth int) int {
	return int(math.Pow(2, float64(depth)))
}
