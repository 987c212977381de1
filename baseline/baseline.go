// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package baseline

import (
	"container/heap"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/viant/vec/search"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/poiesic/newsrank/core"
)

// zeroNorm replaces zero row or query norms so cosine distance stays finite.
const zeroNorm = 1e-10

// Auto selection: the heap scan is used for k below autoHeapMaxK on corpora
// larger than autoHeapMinRows.
const (
	autoHeapMaxK    = 50
	autoHeapMinRows = 1000
)

// Partial selection is used when k is below min(partialMaxK, n/partialRatio).
const (
	partialMaxK  = 100
	partialRatio = 4
)

// Method selects the query strategy.
type Method int

const (
	// MethodAuto picks MethodHeap or MethodVectorized from k and corpus size.
	MethodAuto Method = iota
	// MethodHeap scans rows keeping a bounded max-heap of the k best.
	MethodHeap
	// MethodVectorized computes all distances at once and selects the top k.
	MethodVectorized
)

// String returns the method name.
func (m Method) String() string {
	switch m {
	case MethodAuto:
		return "auto"
	case MethodHeap:
		return "heap"
	case MethodVectorized:
		return "vectorized"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// ParseMethod maps a method name to a Method. The empty string is auto.
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return MethodAuto, nil
	case "heap":
		return MethodHeap, nil
	case "vectorized", "vector":
		return MethodVectorized, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMethod, name)
	}
}

// Baseline is an exact nearest-neighbor index. It is safe for concurrent
// queries once Fit has returned.
type Baseline struct {
	metric core.Metric
	logger *slog.Logger

	rows   [][]float32
	matrix *mat.Dense
	norms  []float64 // row norms for cosine, squared row norms for euclidean
	dim    int
}

// Option configures a Baseline.
type Option func(*Baseline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Baseline) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates an unfitted Baseline for metric.
func New(metric core.Metric, opts ...Option) (*Baseline, error) {
	if err := core.ValidateMetric(metric); err != nil {
		return nil, err
	}
	b := &Baseline{
		metric: metric,
		logger: slog.Default().With("component", "baseline"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Metric returns the distance metric.
func (b *Baseline) Metric() core.Metric {
	return b.metric
}

// Len returns the number of fitted rows.
func (b *Baseline) Len() int {
	return len(b.rows)
}

// Dimension returns the fitted vector dimension, or 0 before Fit.
func (b *Baseline) Dimension() int {
	return b.dim
}

// Fit stores data and precomputes per-row norms. Rows are referenced, not
// copied, and must not be modified afterwards.
func (b *Baseline) Fit(data [][]float32) error {
	if len(data) == 0 {
		return core.ErrEmptyCorpus
	}
	dim := len(data[0])
	if dim == 0 {
		return fmt.Errorf("%w: zero-length vectors", core.ErrDimensionMismatch)
	}

	flat := make([]float64, 0, len(data)*dim)
	norms := make([]float64, len(data))
	for i, row := range data {
		if len(row) != dim {
			return fmt.Errorf("%w: row %d has %d values, expected %d", core.ErrDimensionMismatch, i, len(row), dim)
		}
		var sq float64
		for _, v := range row {
			f := float64(v)
			flat = append(flat, f)
			sq += f * f
		}
		switch b.metric {
		case core.MetricCosine:
			norms[i] = math.Sqrt(sq)
			if norms[i] == 0 {
				norms[i] = zeroNorm
			}
		case core.MetricEuclidean:
			norms[i] = sq
		}
	}

	b.rows = data
	b.matrix = mat.NewDense(len(data), dim, flat)
	b.norms = norms
	b.dim = dim
	b.logger.Debug("fitted baseline", "rows", len(data), "dimension", dim, "metric", b.metric)
	return nil
}

// Query returns the labels and distances of the k nearest rows to vector,
// nearest first. k larger than the corpus returns every row.
func (b *Baseline) Query(vector []float32, k int, method Method) ([]int, []float32, error) {
	if b.rows == nil {
		return nil, nil, core.ErrNotFitted
	}
	if k <= 0 {
		return nil, nil, ErrInvalidK
	}
	if len(vector) != b.dim {
		return nil, nil, fmt.Errorf("%w: query has %d values, expected %d", core.ErrDimensionMismatch, len(vector), b.dim)
	}

	switch b.resolve(method, k) {
	case MethodHeap:
		labels, dists := b.queryHeap(vector, k)
		return labels, dists, nil
	case MethodVectorized:
		labels, dists := b.queryVectorized(vector, k)
		return labels, dists, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidMethod, method)
	}
}

func (b *Baseline) resolve(method Method, k int) Method {
	if method != MethodAuto {
		return method
	}
	if k < autoHeapMaxK && len(b.rows) > autoHeapMinRows {
		return MethodHeap
	}
	return MethodVectorized
}

func (b *Baseline) queryHeap(vector []float32, k int) ([]int, []float32) {
	var (
		q64   []float64
		qnorm float64
	)
	if b.metric == core.MetricCosine {
		q64 = make([]float64, len(vector))
		for i, v := range vector {
			q64[i] = float64(v)
		}
		qnorm = floats.Norm(q64, 2)
		if qnorm == 0 {
			qnorm = zeroNorm
		}
	}

	h := make(maxHeap, 0, min(k, len(b.rows)))
	for i, row := range b.rows {
		var d float64
		switch b.metric {
		case core.MetricCosine:
			d = 1 - floats.Dot(b.matrix.RawRowView(i), q64)/(b.norms[i]*qnorm)
		case core.MetricEuclidean:
			d = float64(search.Float32s(row).EuclideanDistance(vector))
		}
		c := candidate{label: i, dist: d}
		if len(h) < k {
			heap.Push(&h, c)
		} else if c.dist < h[0].dist {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}

	sort.Slice(h, func(i, j int) bool {
		if h[i].dist != h[j].dist {
			return h[i].dist < h[j].dist
		}
		return h[i].label < h[j].label
	})
	labels := make([]int, len(h))
	dists := make([]float32, len(h))
	for i, c := range h {
		labels[i] = c.label
		dists[i] = float32(c.dist)
	}
	return labels, dists
}

func (b *Baseline) queryVectorized(vector []float32, k int) ([]int, []float32) {
	n := len(b.rows)
	q := make([]float64, len(vector))
	var qsq float64
	for i, v := range vector {
		q[i] = float64(v)
		qsq += q[i] * q[i]
	}

	var dots mat.VecDense
	dots.MulVec(b.matrix, mat.NewVecDense(len(q), q))

	dists := make([]float64, n)
	switch b.metric {
	case core.MetricCosine:
		qnorm := math.Sqrt(qsq)
		if qnorm == 0 {
			qnorm = zeroNorm
		}
		for i := range dists {
			dists[i] = 1 - dots.AtVec(i)/(b.norms[i]*qnorm)
		}
	case core.MetricEuclidean:
		for i := range dists {
			dists[i] = math.Sqrt(math.Max(b.norms[i]+qsq-2*dots.AtVec(i), 0))
		}
	}

	labels := topK(dists, k)
	out := make([]float32, len(labels))
	for i, l := range labels {
		out[i] = float32(dists[l])
	}
	return labels, out
}
