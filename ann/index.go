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

package ann

import (
	"github.com/poiesic/newsrank/core"
)

// Default construction and query parameters.
const (
	// DefaultLeafSize is the number of points kept in a leaf bucket.
	DefaultLeafSize = 16
	// DefaultSearchBreadth places no limit on the tree nodes a query visits.
	DefaultSearchBreadth = 0
)

// Params configures index construction and querying.
type Params struct {
	Metric   core.Metric
	LeafSize int
	// SearchBreadth caps the tree nodes visited per query once k candidates
	// are held. Zero visits every node the distance bound cannot rule out.
	SearchBreadth int
}

// DefaultParams returns cosine parameters with the default tree settings.
func DefaultParams() Params {
	return Params{
		Metric:        core.MetricCosine,
		LeafSize:      DefaultLeafSize,
		SearchBreadth: DefaultSearchBreadth,
	}
}

// withDefaults fills zero fields from DefaultParams.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.Metric == 0 {
		p.Metric = d.Metric
	}
	if p.LeafSize == 0 {
		p.LeafSize = d.LeafSize
	}
	return p
}

// Index is an approximate nearest-neighbor index over labeled vectors.
type Index interface {
	// Add inserts vectors under the given labels. It fails without
	// modifying the index when the batch would exceed capacity.
	Add(vectors [][]float32, labels []int) error

	// Query returns up to k hits ordered by ascending distance.
	Query(vector []float32, k int) ([]core.SearchHit, error)

	// Save writes the index blob to path atomically.
	Save(path string) error

	// Resize raises the capacity.
	Resize(capacity int) error

	// SetSearchBreadth sets the query-time search breadth.
	SetSearchBreadth(n int)

	// Clone returns an independent copy that can be grown while the
	// original keeps serving queries.
	Clone() (Index, error)

	Len() int
	Capacity() int
	Dimension() int
	Metric() core.Metric
}
