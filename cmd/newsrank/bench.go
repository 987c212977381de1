package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/newsrank/baseline"
)

// benchCommand uses the first stored vectors as queries and reports
// throughput of both exact strategies and of the approximate index, plus the
// approximate recall against the exact answers.
func benchCommand(c *cli.Context) error {
	engine, _, err := setup(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	snap := engine.Snapshot()
	if snap == nil || snap.Len() == 0 {
		return errors.New("no index loaded; run build first")
	}

	k := c.Int("k")
	if k <= 0 {
		return fmt.Errorf("k must be positive, got %d", k)
	}
	n := min(c.Int("queries"), snap.Len())
	if n <= 0 {
		return fmt.Errorf("queries must be positive, got %d", c.Int("queries"))
	}
	k = min(k, snap.Len())
	queries := snap.Vectors()[:n]
	batchSize := c.Int("batch-size")

	exact, err := snap.Baseline()
	if err != nil {
		return err
	}

	fmt.Printf("Corpus: %d vectors, dimension %d, metric %s\n", snap.Len(), exact.Dimension(), exact.Metric())
	fmt.Printf("Queries: %d, k=%d\n\n", n, k)

	var truth [][]int
	for _, method := range []baseline.Method{baseline.MethodHeap, baseline.MethodVectorized} {
		res, err := exact.BatchQuery(c.Context, queries, k, batchSize, method)
		if err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
		fmt.Printf("%-12s %10s  %10.1f q/s\n", method, res.Elapsed.Round(time.Microsecond), res.QPS)
		if truth == nil {
			truth = res.Indices
		}
	}

	start := time.Now()
	var recall float64
	for i, q := range queries {
		hits, err := snap.ApproximateSearch(c.Context, q, k)
		if err != nil {
			return fmt.Errorf("approximate query %d: %w", i, err)
		}
		got := make([]int, len(hits))
		for j, h := range hits {
			got[j] = h.Label
		}
		recall += baseline.Recall(got, truth[i])
	}
	elapsed := time.Since(start)
	qps := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		qps = float64(n) / secs
	}
	fmt.Printf("%-12s %10s  %10.1f q/s\n", "approximate", elapsed.Round(time.Microsecond), qps)
	fmt.Printf("\nApproximate recall@%d: %.4f\n", k, recall/float64(n))

	acc, err := exact.EvaluateAccuracy(c.Context, queries, truth, k)
	if err != nil {
		return err
	}
	fmt.Printf("Exact self-check recall@%d: %.4f precision@%d: %.4f\n", k, acc.Recall, k, acc.Precision)
	return nil
}
