package ann

import (
	"errors"
	"math/rand"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/newsrank/core"
)

func testVectors(n, dim int, seed int64) ([][]float32, []int) {
	rng := rand.New(rand.NewSource(seed))
	vecs := make([][]float32, n)
	labels := make([]int, n)
	for i := range vecs {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()*2 - 1
		}
		vecs[i] = v
		labels[i] = i
	}
	return vecs, labels
}

// bruteForce returns the labels of the k nearest vectors by scanning all of them.
func bruteForce(vecs [][]float32, query []float32, k int, m core.Metric) []int {
	dist := m.Distance()
	order := make([]int, len(vecs))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		da, db := dist(query, vecs[a]), dist(query, vecs[b])
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		default:
			return 0
		}
	})
	return order[:min(k, len(order))]
}

func hitLabels(hits []core.SearchHit) []int {
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.Label
	}
	return out
}

func TestNew_InvalidParams(t *testing.T) {
	_, err := New(0, 10, DefaultParams())
	assert.True(t, errors.Is(err, ErrInvalidParams))

	_, err = New(4, 10, Params{SearchBreadth: -1})
	assert.True(t, errors.Is(err, ErrInvalidParams))

	_, err = New(4, 10, Params{Metric: core.Metric(9)})
	assert.True(t, errors.Is(err, core.ErrUnsupportedMetric))
}

func TestAdd_Capacity(t *testing.T) {
	idx, err := New(4, 3, DefaultParams())
	require.NoError(t, err)

	vecs, labels := testVectors(4, 4, 1)
	err = idx.Add(vecs, labels)
	assert.True(t, errors.Is(err, core.ErrCapacityExceeded))
	assert.Equal(t, 0, idx.Len(), "failed add must not modify the index")

	require.NoError(t, idx.Add(vecs[:3], labels[:3]))
	assert.True(t, errors.Is(idx.Add(vecs[3:], labels[3:]), core.ErrCapacityExceeded))

	require.NoError(t, idx.Resize(8))
	require.NoError(t, idx.Add(vecs[3:], labels[3:]))
	assert.Equal(t, 4, idx.Len())
	assert.Equal(t, 8, idx.Capacity())

	assert.True(t, errors.Is(idx.Resize(2), ErrShrink))
}

func TestAdd_Validation(t *testing.T) {
	idx, err := New(2, 10, DefaultParams())
	require.NoError(t, err)

	err = idx.Add([][]float32{{1, 2, 3}}, []int{0})
	assert.True(t, errors.Is(err, core.ErrDimensionMismatch))

	require.NoError(t, idx.Add([][]float32{{1, 0}}, []int{0}))
	err = idx.Add([][]float32{{0, 1}}, []int{0})
	assert.True(t, errors.Is(err, ErrDuplicateLabel))

	err = idx.Add([][]float32{{0, 1}, {1, 1}}, []int{1, 1})
	assert.True(t, errors.Is(err, ErrDuplicateLabel))
	assert.Equal(t, 1, idx.Len(), "rejected batch must not be partially inserted")
}

func TestQuery_FindsSelf(t *testing.T) {
	vecs, labels := testVectors(200, 8, 3)
	idx, err := New(8, 256, DefaultParams())
	require.NoError(t, err)
	require.NoError(t, idx.Add(vecs, labels))

	hits, err := idx.Query(vecs[42], 5)
	require.NoError(t, err)
	require.Len(t, hits, 5)
	assert.Equal(t, 42, hits[0].Label)
	assert.InDelta(t, 0, hits[0].Distance, 1e-5)
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i-1].Distance, hits[i].Distance)
	}
}

func TestQuery_MatchesBruteForce(t *testing.T) {
	for _, tc := range []struct {
		name   string
		n      int
		metric core.Metric
	}{
		{"small cosine", 30, core.MetricCosine},
		{"cosine", 500, core.MetricCosine},
		{"euclidean", 500, core.MetricEuclidean},
	} {
		t.Run(tc.name, func(t *testing.T) {
			vecs, labels := testVectors(tc.n, 16, 11)
			idx, err := New(16, tc.n, Params{Metric: tc.metric})
			require.NoError(t, err)
			require.NoError(t, idx.Add(vecs, labels))

			queries, _ := testVectors(20, 16, 99)
			for _, q := range queries {
				hits, err := idx.Query(q, 10)
				require.NoError(t, err)
				assert.ElementsMatch(t, bruteForce(vecs, q, 10, tc.metric), hitLabels(hits))
			}
		})
	}
}

func TestQuery_IncrementalAdds(t *testing.T) {
	vecs, labels := testVectors(300, 8, 7)
	idx, err := New(8, 300, DefaultParams())
	require.NoError(t, err)
	for start := 0; start < len(vecs); start += 7 {
		end := min(start+7, len(vecs))
		require.NoError(t, idx.Add(vecs[start:end], labels[start:end]))

		q := vecs[start]
		hits, err := idx.Query(q, 5)
		require.NoError(t, err)
		assert.ElementsMatch(t, bruteForce(vecs[:end], q, 5, core.MetricCosine), hitLabels(hits))
	}
}

func TestQuery_KBeyondLen(t *testing.T) {
	vecs, labels := testVectors(12, 4, 2)
	idx, err := New(4, 12, DefaultParams())
	require.NoError(t, err)
	require.NoError(t, idx.Add(vecs, labels))

	hits, err := idx.Query(vecs[0], 50)
	require.NoError(t, err)
	assert.Len(t, hits, 12)
}

func TestQuery_SearchBreadth(t *testing.T) {
	vecs, labels := testVectors(400, 8, 4)
	idx, err := New(8, 400, Params{LeafSize: 4})
	require.NoError(t, err)
	require.NoError(t, idx.Add(vecs, labels))

	idx.SetSearchBreadth(1)
	hits, err := idx.Query(vecs[10], 3)
	require.NoError(t, err)
	assert.Len(t, hits, 3, "a bounded search still fills k")

	idx.SetSearchBreadth(-5)
	assert.Equal(t, 1, idx.params.SearchBreadth)

	idx.SetSearchBreadth(0)
	hits, err = idx.Query(vecs[10], 3)
	require.NoError(t, err)
	assert.ElementsMatch(t, bruteForce(vecs, vecs[10], 3, core.MetricCosine), hitLabels(hits))
}

func TestQuery_Empty(t *testing.T) {
	idx, err := New(3, 4, DefaultParams())
	require.NoError(t, err)
	hits, err := idx.Query([]float32{1, 2, 3}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = idx.Query([]float32{1}, 3)
	assert.True(t, errors.Is(err, core.ErrDimensionMismatch))
}

func TestSaveLoad(t *testing.T) {
	vecs, labels := testVectors(50, 6, 5)
	params := Params{Metric: core.MetricEuclidean}
	idx, err := New(6, 64, params)
	require.NoError(t, err)
	require.NoError(t, idx.Add(vecs, labels))

	path := filepath.Join(t.TempDir(), "index.vpt")
	require.NoError(t, idx.Save(path))

	loaded, err := Load(path, 64, params)
	require.NoError(t, err)
	assert.Equal(t, 50, loaded.Len())
	assert.Equal(t, 6, loaded.Dimension())
	assert.Equal(t, 64, loaded.Capacity())
	assert.Equal(t, core.MetricEuclidean, loaded.Metric())

	hits, err := loaded.Query(vecs[7], 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 7, hits[0].Label)

	_, err = Load(path, 64, DefaultParams())
	assert.True(t, errors.Is(err, core.ErrInconsistentIndex), "metric mismatch")
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"), 10, DefaultParams())
	assert.True(t, errors.Is(err, core.ErrMissingArtifact))
}

func TestClone_Independent(t *testing.T) {
	vecs, labels := testVectors(40, 8, 5)
	idx, err := New(8, 40, DefaultParams())
	require.NoError(t, err)
	require.NoError(t, idx.Add(vecs[:30], labels[:30]))

	c, err := idx.Clone()
	require.NoError(t, err)
	require.NoError(t, c.Add(vecs[30:], labels[30:]))

	assert.Equal(t, 30, idx.Len())
	assert.Equal(t, 40, c.Len())
	assert.Equal(t, idx.Capacity(), c.Capacity())

	hits, err := c.Query(vecs[35], 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 35, hits[0].Label)

	hits, err = idx.Query(vecs[35], 30)
	require.NoError(t, err)
	assert.NotContains(t, hitLabels(hits), 35)
}
