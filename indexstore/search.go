package indexstore

import (
	"context"
	"time"

	"github.com/poiesic/newsrank/baseline"
	"github.com/poiesic/newsrank/core"
)

// Comparison holds the approximate and exact answers to one query.
type Comparison struct {
	Approximate     []core.SearchHit
	Exact           []core.SearchHit
	ApproximateTime time.Duration
	ExactTime       time.Duration
	// Recall is the share of exact labels the approximate search found.
	Recall float64
}

// Search returns the k nearest documents to vector, exactly when the corpus
// is small.
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]core.SearchHit, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Search(ctx, vector, k)
}

// ExactSearch returns the k exact nearest documents to vector.
func (s *Store) ExactSearch(ctx context.Context, vector []float32, k int) ([]core.SearchHit, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return snap.ExactSearch(ctx, vector, k, baseline.MethodAuto)
}

// Compare runs vector through both the approximate index and the exact
// baseline.
func (s *Store) Compare(ctx context.Context, vector []float32, k int) (*Comparison, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	// Fit outside the timed section.
	if _, err := snap.Baseline(); err != nil {
		return nil, err
	}

	start := time.Now()
	approx, err := snap.ApproximateSearch(ctx, vector, k)
	if err != nil {
		return nil, err
	}
	approxTime := time.Since(start)

	start = time.Now()
	exact, err := snap.ExactSearch(ctx, vector, k, baseline.MethodAuto)
	if err != nil {
		return nil, err
	}
	exactTime := time.Since(start)

	return &Comparison{
		Approximate:     approx,
		Exact:           exact,
		ApproximateTime: approxTime,
		ExactTime:       exactTime,
		Recall:          baseline.Recall(labels(approx), labels(exact)),
	}, nil
}

func labels(hits []core.SearchHit) []int {
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.Label
	}
	return out
}
