package baseline

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/newsrank/core"
)

// DefaultBatchSize is the number of queries handled per pool task.
const DefaultBatchSize = 1000

// BatchResult holds per-query results in input order plus timing.
type BatchResult struct {
	Indices   [][]int
	Distances [][]float32
	Elapsed   time.Duration
	QPS       float64
}

// BatchQuery runs queries in chunks of batchSize on a worker pool. A
// non-positive batchSize uses DefaultBatchSize. The first query error
// cancels the remaining chunks.
func (b *Baseline) BatchQuery(ctx context.Context, queries [][]float32, k, batchSize int, method Method) (*BatchResult, error) {
	if b.rows == nil {
		return nil, core.ErrNotFitted
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	start := time.Now()
	res := &BatchResult{
		Indices:   make([][]int, len(queries)),
		Distances: make([][]float32, len(queries)),
	}

	pool, err := ants.NewPool(max(runtime.NumCPU(), 1))
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for lo := 0; lo < len(queries); lo += batchSize {
		hi := min(lo+batchSize, len(queries))
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				if runCtx.Err() != nil {
					return
				}
				labels, dists, err := b.Query(queries[i], k, method)
				if err != nil {
					fail(fmt.Errorf("query %d: %w", i, err))
					return
				}
				res.Indices[i] = labels
				res.Distances[i] = dists
			}
		})
		if submitErr != nil {
			wg.Done()
			fail(submitErr)
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Elapsed = time.Since(start)
	if secs := res.Elapsed.Seconds(); secs > 0 {
		res.QPS = float64(len(queries)) / secs
	}
	b.logger.Debug("batch query complete",
		"queries", len(queries), "k", k, "elapsed", res.Elapsed, "qps", res.QPS)
	return res, nil
}

// Accuracy summarizes set-based agreement with a reference result set.
type Accuracy struct {
	Recall     float64
	Precision  float64
	NumQueries int
	K          int
}

// EvaluateAccuracy queries every vector and compares the returned label sets
// with truth, truncated to k. Ordering is ignored.
func (b *Baseline) EvaluateAccuracy(ctx context.Context, queries [][]float32, truth [][]int, k int) (*Accuracy, error) {
	if len(truth) != len(queries) {
		return nil, fmt.Errorf("ground truth has %d entries for %d queries", len(truth), len(queries))
	}
	res, err := b.BatchQuery(ctx, queries, k, DefaultBatchSize, MethodAuto)
	if err != nil {
		return nil, err
	}

	acc := &Accuracy{NumQueries: len(queries), K: k}
	if len(queries) == 0 {
		return acc, nil
	}
	for i, got := range res.Indices {
		want := truth[i]
		if len(want) > k {
			want = want[:k]
		}
		hits := intersect(got, want)
		if len(want) > 0 {
			acc.Recall += float64(hits) / float64(len(want))
		}
		if len(got) > 0 {
			acc.Precision += float64(hits) / float64(len(got))
		}
	}
	acc.Recall /= float64(len(queries))
	acc.Precision /= float64(len(queries))
	return acc, nil
}

// Recall returns the fraction of truth recovered in predicted. An empty
// truth set has recall 1.
func Recall(predicted, truth []int) float64 {
	if len(truth) == 0 {
		return 1
	}
	return float64(intersect(predicted, truth)) / float64(len(truth))
}

func intersect(a, b []int) int {
	set := make(map[int]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	n := 0
	seen := make(map[int]struct{}, len(a))
	for _, v := range a {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		if _, ok := set[v]; ok {
			n++
		}
	}
	return n
}
