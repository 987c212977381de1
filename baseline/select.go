package baseline

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

type candidate struct {
	label int
	dist  float64
}

// maxHeap keeps the farthest retained candidate at the root.
type maxHeap []candidate

func (h maxHeap) Len() int           { return len(h) }
func (h maxHeap) Less(i, j int) bool { return h[i].dist > h[j].dist }
func (h maxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

// topK returns the labels of the k smallest distances, ascending. dists is
// not modified.
func topK(dists []float64, k int) []int {
	n := len(dists)
	switch {
	case n == 0:
		return nil
	case k == 1:
		return []int{floats.MinIdx(dists)}
	case k >= n:
		return argsort(dists)
	case k < min(partialMaxK, n/partialRatio):
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		partition(idx, dists, k)
		idx = idx[:k]
		sortByDistance(idx, dists)
		return idx
	default:
		return argsort(dists)[:k]
	}
}

func argsort(dists []float64) []int {
	tmp := make([]float64, len(dists))
	copy(tmp, dists)
	idx := make([]int, len(dists))
	floats.Argsort(tmp, idx)
	return idx
}

func sortByDistance(idx []int, dists []float64) {
	sort.Slice(idx, func(i, j int) bool {
		di, dj := dists[idx[i]], dists[idx[j]]
		if di != dj {
			return di < dj
		}
		return idx[i] < idx[j]
	})
}

// partition reorders idx so its first k entries index the k smallest
// distances, in no particular order.
func partition(idx []int, dists []float64, k int) {
	lo, hi := 0, len(idx)-1
	for lo < hi {
		p := pivot(idx, dists, lo, hi)
		switch {
		case p == k:
			return
		case p < k:
			lo = p + 1
		default:
			hi = p - 1
		}
	}
}

// pivot partitions idx[lo:hi+1] around the median of three and returns the
// final pivot position.
func pivot(idx []int, dists []float64, lo, hi int) int {
	mid := lo + (hi-lo)/2
	if dists[idx[mid]] < dists[idx[lo]] {
		idx[mid], idx[lo] = idx[lo], idx[mid]
	}
	if dists[idx[hi]] < dists[idx[lo]] {
		idx[hi], idx[lo] = idx[lo], idx[hi]
	}
	if dists[idx[hi]] < dists[idx[mid]] {
		idx[hi], idx[mid] = idx[mid], idx[hi]
	}
	idx[mid], idx[hi] = idx[hi], idx[mid]
	pv := dists[idx[hi]]

	store := lo
	for i := lo; i < hi; i++ {
		if dists[idx[i]] < pv {
			idx[i], idx[store] = idx[store], idx[i]
			store++
		}
	}
	idx[store], idx[hi] = idx[hi], idx[store]
	return store
}
