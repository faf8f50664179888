package forest

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Node represents a single node in a regression tree.
type Node struct {
	NodeID     int `json:"node_id"`
	LeftChild  int `json:"left_child"`  // -1 if leaf
	RightChild int `json:"right_child"` // -1 if leaf

	// Split information (for internal nodes). Samples with
	// feature <= Threshold are routed left, both at train and predict time.
	SplitFeature int     `json:"split_feature"`
	Threshold    float64 `json:"threshold"`

	// Leaf information. LeafValue is the arithmetic mean of the targets
	// routed to this node at train time.
	LeafValue float64 `json:"leaf_value"`
	LeafCount int     `json:"leaf_count"`
}

// IsLeaf returns true if the node is a leaf node.
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1 && n.RightChild == -1
}

// Tree is a single regression tree stored as a flat node array with child
// indexes. Prediction walks the array iteratively, so inference depth is
// never bounded by the goroutine stack.
type Tree struct {
	Nodes     []Node `json:"nodes"`
	NumLeaves int    `json:"num_leaves"`
}

// Predict returns the leaf value reached by the feature row.
func (t *Tree) Predict(features []float64) float64 {
	nodeID := 0
	for nodeID >= 0 && nodeID < len(t.Nodes) {
		node := &t.Nodes[nodeID]
		if node.IsLeaf() {
			return node.LeafValue
		}
		if features[node.SplitFeature] <= node.Threshold {
			nodeID = node.LeftChild
		} else {
			nodeID = node.RightChild
		}
	}
	return 0
}

// growthParams are the per-tree growth limits resolved from a Config.
type growthParams struct {
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	subsetSize      int
	maxThresholds   int
}

// treeBuilder grows one tree over a view (index slice) of the training data.
type treeBuilder struct {
	X         *mat.Dense
	y         *mat.VecDense
	params    growthParams
	rng       *rand.Rand
	nFeatures int
}

// splitCandidate is the outcome of a split search over one node partition.
type splitCandidate struct {
	found     bool
	feature   int
	threshold float64
	score     float64 // weighted within-side sum of squared deviations
}

// growTree grows a single regression tree on the given sample indices,
// typically a bootstrap resample of the training set.
func growTree(X *mat.Dense, y *mat.VecDense, indices []int, params growthParams, rng *rand.Rand) Tree {
	_, cols := X.Dims()
	b := &treeBuilder{
		X:         X,
		y:         y,
		params:    params,
		rng:       rng,
		nFeatures: cols,
	}
	tree := Tree{Nodes: []Node{}}
	b.buildNode(&tree, indices, 0)
	for i := range tree.Nodes {
		if tree.Nodes[i].IsLeaf() {
			tree.NumLeaves++
		}
	}
	return tree
}

// buildNode recursively builds tree nodes and returns the new node's index.
// Degenerate partitions never error: every stopping condition and every
// failed split search resolves to a leaf holding the partition mean.
func (b *treeBuilder) buildNode(tree *Tree, indices []int, depth int) int {
	nodeIdx := len(tree.Nodes)

	mean, sse := targetStats(b.y, indices)

	// Stopping conditions: depth limit, too few samples, zero target variance.
	if depth >= b.params.maxDepth ||
		len(indices) < b.params.minSamplesSplit ||
		sse == 0 {
		tree.Nodes = append(tree.Nodes, leafNode(nodeIdx, mean, len(indices)))
		return nodeIdx
	}

	best := b.findBestSplit(indices)
	if !best.found {
		tree.Nodes = append(tree.Nodes, leafNode(nodeIdx, mean, len(indices)))
		return nodeIdx
	}

	tree.Nodes = append(tree.Nodes, Node{
		NodeID:       nodeIdx,
		SplitFeature: best.feature,
		Threshold:    best.threshold,
		LeftChild:    -1,
		RightChild:   -1,
	})

	leftIndices, rightIndices := b.partition(indices, best.feature, best.threshold)

	leftChild := b.buildNode(tree, leftIndices, depth+1)
	rightChild := b.buildNode(tree, rightIndices, depth+1)

	tree.Nodes[nodeIdx].LeftChild = leftChild
	tree.Nodes[nodeIdx].RightChild = rightChild

	return nodeIdx
}

func leafNode(nodeIdx int, mean float64, count int) Node {
	return Node{
		NodeID:     nodeIdx,
		LeftChild:  -1,
		RightChild: -1,
		LeafValue:  mean,
		LeafCount:  count,
	}
}

// findBestSplit searches a random feature subset for the (feature, threshold)
// pair minimizing the weighted within-side sum of squared deviations.
// Candidates leaving either side below minSamplesLeaf are rejected.
func (b *treeBuilder) findBestSplit(indices []int) splitCandidate {
	best := splitCandidate{score: math.Inf(1)}

	for _, feature := range b.sampleFeatures() {
		for _, threshold := range b.candidateThresholds(indices, feature) {
			var (
				leftCount, rightCount int
				leftSum, rightSum     float64
				leftSumSq, rightSumSq float64
			)
			for _, idx := range indices {
				target := b.y.AtVec(idx)
				if b.X.At(idx, feature) <= threshold {
					leftCount++
					leftSum += target
					leftSumSq += target * target
				} else {
					rightCount++
					rightSum += target
					rightSumSq += target * target
				}
			}

			if leftCount < b.params.minSamplesLeaf || rightCount < b.params.minSamplesLeaf {
				continue
			}

			// n*Var(side) = Σx² - (Σx)²/n, population variance.
			score := leftSumSq - leftSum*leftSum/float64(leftCount) +
				rightSumSq - rightSum*rightSum/float64(rightCount)

			if score < best.score {
				best = splitCandidate{
					found:     true,
					feature:   feature,
					threshold: threshold,
					score:     score,
				}
			}
		}
	}

	return best
}

// sampleFeatures draws the per-node random feature subset. This per-node
// randomness is what decorrelates the trees in the ensemble.
func (b *treeBuilder) sampleFeatures() []int {
	if b.params.subsetSize >= b.nFeatures {
		features := make([]int, b.nFeatures)
		for i := range features {
			features[i] = i
		}
		return features
	}
	return b.rng.Perm(b.nFeatures)[:b.params.subsetSize]
}

// candidateThresholds returns midpoints between consecutive sorted unique
// values of the feature within the partition, strided down to at most
// maxThresholds candidates. The cap trades split optimality for bounded
// runtime and is part of the model's contract.
func (b *treeBuilder) candidateThresholds(indices []int, feature int) []float64 {
	values := make([]float64, len(indices))
	for i, idx := range indices {
		values[i] = b.X.At(idx, feature)
	}
	sort.Float64s(values)

	unique := values[:0]
	for i, v := range values {
		if i == 0 || v != unique[len(unique)-1] {
			unique = append(unique, v)
		}
	}
	nMids := len(unique) - 1
	if nMids < 1 {
		return nil
	}

	take := nMids
	if take > b.params.maxThresholds {
		take = b.params.maxThresholds
	}
	thresholds := make([]float64, 0, take)
	for k := 0; k < take; k++ {
		i := k * nMids / take
		thresholds = append(thresholds, (unique[i]+unique[i+1])/2)
	}
	return thresholds
}

// partition splits the index view by value <= threshold.
func (b *treeBuilder) partition(indices []int, feature int, threshold float64) ([]int, []int) {
	var left, right []int
	for _, idx := range indices {
		if b.X.At(idx, feature) <= threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	return left, right
}

// targetStats returns the mean and the sum of squared deviations of the
// targets in the partition.
func targetStats(y *mat.VecDense, indices []int) (mean, sse float64) {
	if len(indices) == 0 {
		return 0, 0
	}
	for _, idx := range indices {
		mean += y.AtVec(idx)
	}
	mean /= float64(len(indices))
	for _, idx := range indices {
		d := y.AtVec(idx) - mean
		sse += d * d
	}
	return mean, sse
}
