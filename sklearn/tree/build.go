package tree

import (
	"cmp"
	"slices"

	"github.com/propval/estimo/core/parallel"
)

// minParallelWork is the number of (sample, feature) pairs below which a
// node's split search stays on the calling goroutine.
const minParallelWork = 4096

type builder struct {
	cols            [][]float64
	y               []float64
	maxDepth        int
	minSamplesSplit int
	nJobs           int

	nodes []Node
}

// candidate is the best split found for one feature.
type candidate struct {
	ok        bool
	feature   int
	threshold float64
	score     float64 // (n_l·MSE_l + n_r·MSE_r) / n
}

// build grows a tree over all rows of cols/y and returns its pre-order arena.
func build(cols [][]float64, y []float64, maxDepth, minSamplesSplit, nJobs int) []Node {
	b := &builder{
		cols:            cols,
		y:               y,
		maxDepth:        maxDepth,
		minSamplesSplit: minSamplesSplit,
		nJobs:           nJobs,
	}
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}
	b.grow(idx, 0)
	return b.nodes
}

func (b *builder) grow(idx []int, depth int) int32 {
	h := int32(len(b.nodes))
	b.nodes = append(b.nodes, Node{})

	if len(idx) < b.minSamplesSplit || depth >= b.maxDepth {
		b.nodes[h] = b.leaf(idx)
		return h
	}
	best, ok := b.bestSplit(idx)
	if !ok {
		b.nodes[h] = b.leaf(idx)
		return h
	}

	col := b.cols[best.feature]
	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if col[i] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[h] = Node{Feature: best.feature, Threshold: best.threshold, Left: l, Right: r}
	return h
}

// leaf returns a leaf holding the mean of y over idx. The mean is clamped to
// the subset's range so rounding can never push it outside.
func (b *builder) leaf(idx []int) Node {
	lo, hi := b.y[idx[0]], b.y[idx[0]]
	var sum float64
	for _, i := range idx {
		v := b.y[i]
		sum += v
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return Node{Leaf: true, Value: min(max(sum/float64(len(idx)), lo), hi)}
}

// bestSplit returns the lowest-scoring candidate over all features, provided
// it strictly improves on the node's own MSE. Ties keep the earliest feature,
// then the earliest threshold.
func (b *builder) bestSplit(idx []int) (candidate, bool) {
	n := len(idx)

	if b.constant(idx) {
		return candidate{}, false
	}
	parentScore := b.sse(idx, nil, 0) / float64(n)

	results := make([]candidate, len(b.cols))
	search := func(start, end int) {
		s := newScratch(n)
		for j := start; j < end; j++ {
			results[j] = b.searchFeature(j, idx, s)
		}
	}
	if b.nJobs != 1 && len(b.cols) > 1 && n*len(b.cols) >= minParallelWork {
		parallel.ParallelizeN(len(b.cols), b.nJobs, search)
	} else {
		search(0, len(b.cols))
	}

	var best candidate
	for _, c := range results {
		if c.ok && (!best.ok || c.score < best.score) {
			best = c
		}
	}
	if !best.ok || !(best.score < parentScore) {
		return candidate{}, false
	}
	return best, true
}

type scratch struct {
	order   []int
	vals    []float64
	ys      []float64
	rightM2 []float64
}

func newScratch(n int) *scratch {
	return &scratch{
		order:   make([]int, n),
		vals:    make([]float64, n),
		ys:      make([]float64, n),
		rightM2: make([]float64, n+1),
	}
}

// searchFeature scans the midpoints between consecutive distinct values of
// feature j in ascending order.
func (b *builder) searchFeature(j int, idx []int, s *scratch) candidate {
	n := len(idx)
	col := b.cols[j]

	order := s.order[:n]
	copy(order, idx)
	slices.SortStableFunc(order, func(a, c int) int {
		return cmp.Compare(col[a], col[c])
	})
	vals, ys := s.vals[:n], s.ys[:n]
	for k, i := range order {
		vals[k] = col[i]
		ys[k] = b.y[i]
	}
	if vals[0] == vals[n-1] {
		return candidate{}
	}

	// rightM2[p] is the sum of squared deviations of ys[p:].
	rightM2 := s.rightM2[:n+1]
	rightM2[n] = 0
	var right welford
	for p := n - 1; p >= 0; p-- {
		right.add(ys[p])
		rightM2[p] = right.m2
	}

	best := candidate{feature: j}
	var left welford
	p := 0
	for k := 1; k < n; k++ {
		if vals[k-1] == vals[k] {
			continue
		}
		threshold := (vals[k-1] + vals[k]) / 2
		for p < n && vals[p] <= threshold {
			left.add(ys[p])
			p++
		}
		if p == 0 || p == n {
			continue
		}
		score := (left.m2 + rightM2[p]) / float64(n)
		if !best.ok || score < best.score {
			best.ok = true
			best.score = score
			best.threshold = threshold
		}
	}
	if best.ok {
		// The scan score depends on this feature's sort order. Re-score in
		// row order so identical partitions compare equal across features.
		best.score = b.sse(idx, col, best.threshold) / float64(n)
	}
	return best
}

func (b *builder) constant(idx []int) bool {
	first := b.y[idx[0]]
	for _, i := range idx[1:] {
		if b.y[i] != first {
			return false
		}
	}
	return true
}

// sse returns the summed squared deviation of y over idx. With a non-nil col
// the rows are split at threshold and each side is measured against its own
// mean. Sums run over idx in order, so the result depends only on the
// partition.
func (b *builder) sse(idx []int, col []float64, threshold float64) float64 {
	var sum [2]float64
	var cnt [2]int
	side := func(i int) int {
		if col == nil || col[i] <= threshold {
			return 0
		}
		return 1
	}
	for _, i := range idx {
		k := side(i)
		sum[k] += b.y[i]
		cnt[k]++
	}
	var mean [2]float64
	for k := range mean {
		if cnt[k] > 0 {
			mean[k] = sum[k] / float64(cnt[k])
		}
	}
	var ss float64
	for _, i := range idx {
		d := b.y[i] - mean[side(i)]
		ss += d * d
	}
	return ss
}

// welford accumulates a running mean and sum of squared deviations.
type welford struct {
	n    int
	mean float64
	m2   float64
}

func (w *welford) add(x float64) {
	w.n++
	delta := x - w.mean
	w.mean += delta / float64(w.n)
	w.m2 += delta * (x - w.mean)
}
