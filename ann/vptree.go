package ann

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/viant/vec/search"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/poiesic/newsrank/core"
)

const blobVersion = 1

// VPTree is a vantage-point tree over labeled vectors. It is safe for
// concurrent use; Add and Resize exclude queries.
type VPTree struct {
	mu       sync.RWMutex
	params   Params
	dist     core.DistanceFunc
	dim      int
	capacity int

	labels  []int
	vectors [][]float32
	// keys are the vectors the tree partitions: unit vectors for cosine,
	// the vectors themselves for Euclidean.
	keys [][]float32
	seen map[int]struct{}

	// nodes is replaced wholesale by rebuild and never modified in place,
	// so clones may share it.
	nodes []vpNode
	root  int32
	built int
}

type vpNode struct {
	point   int // -1 for a leaf
	radius  float32
	inside  int32
	outside int32
	bucket  []int
}

type blob struct {
	Version  int         `msgpack:"version"`
	Metric   string      `msgpack:"metric"`
	Dim      int         `msgpack:"dim"`
	LeafSize int         `msgpack:"leaf_size"`
	Labels   []int       `msgpack:"labels"`
	Vectors  [][]float32 `msgpack:"vectors"`
}

var _ Index = (*VPTree)(nil)

// New creates an empty index for vectors of dim values.
func New(dim, capacity int, params Params) (*VPTree, error) {
	params = params.withDefaults()
	if dim <= 0 || capacity <= 0 || params.LeafSize <= 0 || params.SearchBreadth < 0 {
		return nil, fmt.Errorf("%w: dim=%d capacity=%d leafSize=%d searchBreadth=%d",
			ErrInvalidParams, dim, capacity, params.LeafSize, params.SearchBreadth)
	}
	dist := params.Metric.Distance()
	if dist == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedMetric, params.Metric)
	}
	return &VPTree{
		params:   params,
		dist:     dist,
		dim:      dim,
		capacity: capacity,
		seen:     make(map[int]struct{}),
		root:     -1,
	}, nil
}

// Load reads an index blob written by Save and rebuilds the tree. The blob
// metric must match params.Metric.
func Load(path string, capacity int, params Params) (*VPTree, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrMissingArtifact, path)
		}
		return nil, err
	}
	defer f.Close()

	var b blob
	if err := msgpack.NewDecoder(bufio.NewReader(f)).Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", core.ErrInconsistentIndex, path, err)
	}
	if b.Version != blobVersion || len(b.Labels) != len(b.Vectors) {
		return nil, fmt.Errorf("%w: %s: version %d with %d labels for %d vectors",
			core.ErrInconsistentIndex, path, b.Version, len(b.Labels), len(b.Vectors))
	}
	params = params.withDefaults()
	if b.Metric != params.Metric.String() {
		return nil, fmt.Errorf("%w: %s holds %s vectors, expected %s",
			core.ErrInconsistentIndex, path, b.Metric, params.Metric)
	}
	if b.LeafSize > 0 {
		params.LeafSize = b.LeafSize
	}

	t, err := New(b.Dim, max(capacity, len(b.Labels), 1), params)
	if err != nil {
		return nil, err
	}
	if err := t.Add(b.Vectors, b.Labels); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrInconsistentIndex, path, err)
	}
	if t.built < len(t.labels) {
		t.rebuild()
	}
	return t, nil
}

// Add inserts vectors labeled by labels. The batch is validated as a whole
// before anything is inserted.
func (t *VPTree) Add(vectors [][]float32, labels []int) error {
	if len(vectors) != len(labels) {
		return fmt.Errorf("%d vectors for %d labels", len(vectors), len(labels))
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.labels) + len(vectors); n > t.capacity {
		return fmt.Errorf("%w: %d vectors exceed capacity %d", core.ErrCapacityExceeded, n, t.capacity)
	}
	batch := make(map[int]struct{}, len(labels))
	for i, v := range vectors {
		if len(v) != t.dim {
			return fmt.Errorf("%w: vector %d has %d values, expected %d", core.ErrDimensionMismatch, i, len(v), t.dim)
		}
		label := labels[i]
		if _, dup := batch[label]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateLabel, label)
		}
		if _, exists := t.seen[label]; exists {
			return fmt.Errorf("%w: %d", ErrDuplicateLabel, label)
		}
		batch[label] = struct{}{}
	}

	for i, v := range vectors {
		t.labels = append(t.labels, labels[i])
		t.vectors = append(t.vectors, v)
		t.keys = append(t.keys, t.key(v))
		t.seen[labels[i]] = struct{}{}
	}
	if pending := len(t.labels) - t.built; pending > max(t.params.LeafSize, t.built/4) {
		t.rebuild()
	}
	return nil
}

func (t *VPTree) key(v []float32) []float32 {
	if t.params.Metric != core.MetricCosine {
		return v
	}
	mag := search.Float32s(v).Magnitude()
	if mag == 0 {
		return v
	}
	k := make([]float32, len(v))
	for i, x := range v {
		k[i] = x / mag
	}
	return k
}

// rebuild indexes every stored point into a fresh node slice.
func (t *VPTree) rebuild() {
	items := make([]int, len(t.keys))
	for i := range items {
		items[i] = i
	}
	t.nodes = make([]vpNode, 0, 2*len(items)/max(t.params.LeafSize, 1)+1)
	t.root = t.build(items)
	t.built = len(items)
}

// build splits items around the last one, which becomes the vantage point.
// Points no farther than the median distance go inside.
func (t *VPTree) build(items []int) int32 {
	if len(items) == 0 {
		return -1
	}
	if len(items) <= t.params.LeafSize {
		t.nodes = append(t.nodes, vpNode{point: -1, inside: -1, outside: -1, bucket: slices.Clone(items)})
		return int32(len(t.nodes) - 1)
	}

	vp := items[len(items)-1]
	rest := items[:len(items)-1]
	type ranked struct {
		pos int
		d   float32
	}
	order := make([]ranked, len(rest))
	for i, p := range rest {
		order[i] = ranked{pos: p, d: core.EuclideanDistance(t.keys[vp], t.keys[p])}
	}
	slices.SortFunc(order, func(a, b ranked) int {
		switch {
		case a.d < b.d:
			return -1
		case a.d > b.d:
			return 1
		default:
			return a.pos - b.pos
		}
	})
	for i, r := range order {
		rest[i] = r.pos
	}
	mid := len(rest) / 2

	self := len(t.nodes)
	t.nodes = append(t.nodes, vpNode{point: vp, radius: order[mid].d})
	inside := t.build(rest[:mid])
	outside := t.build(rest[mid:])
	t.nodes[self].inside = inside
	t.nodes[self].outside = outside
	return int32(self)
}

// Query returns up to k nearest labels with their distances.
func (t *VPTree) Query(vector []float32, k int) ([]core.SearchHit, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(vector) != t.dim {
		return nil, fmt.Errorf("%w: query has %d values, expected %d", core.ErrDimensionMismatch, len(vector), t.dim)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.labels) == 0 {
		return nil, nil
	}
	s := &searcher{
		tree:    t,
		query:   t.key(vector),
		k:       k,
		breadth: t.params.SearchBreadth,
	}
	s.visit(t.root)
	for p := t.built; p < len(t.keys); p++ {
		s.offer(p)
	}

	hits := make([]core.SearchHit, len(s.best))
	for i, c := range s.best {
		hits[i] = core.SearchHit{Label: t.labels[c.pos], Distance: t.dist(vector, t.vectors[c.pos])}
	}
	slices.SortStableFunc(hits, func(a, b core.SearchHit) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return a.Label - b.Label
		}
	})
	return hits, nil
}

type candidate struct {
	pos int
	d   float32
}

type searcher struct {
	tree    *VPTree
	query   []float32
	k       int
	breadth int
	visited int
	// best is ordered by ascending key distance and holds at most k entries.
	best []candidate
}

func (s *searcher) tau() float32 {
	if len(s.best) < s.k {
		return math.MaxFloat32
	}
	return s.best[len(s.best)-1].d
}

func (s *searcher) offer(pos int) float32 {
	d := core.EuclideanDistance(s.query, s.tree.keys[pos])
	if len(s.best) == s.k && d >= s.tau() {
		return d
	}
	i, _ := slices.BinarySearchFunc(s.best, d, func(c candidate, d float32) int {
		if c.d <= d {
			return -1
		}
		return 1
	})
	s.best = slices.Insert(s.best, i, candidate{pos: pos, d: d})
	if len(s.best) > s.k {
		s.best = s.best[:s.k]
	}
	return d
}

func (s *searcher) exhausted() bool {
	return s.breadth > 0 && s.visited >= s.breadth && len(s.best) == s.k
}

func (s *searcher) visit(n int32) {
	if n < 0 || s.exhausted() {
		return
	}
	s.visited++
	node := &s.tree.nodes[n]
	if node.point < 0 {
		for _, p := range node.bucket {
			s.offer(p)
		}
		return
	}

	d := s.offer(node.point)
	if d <= node.radius {
		s.visit(node.inside)
		if d+s.tau() >= node.radius {
			s.visit(node.outside)
		}
		return
	}
	s.visit(node.outside)
	if d-s.tau() <= node.radius {
		s.visit(node.inside)
	}
}

// Save writes the labeled vectors to a temporary file next to path and
// renames it. The tree itself is rebuilt by Load.
func (t *VPTree) Save(path string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := bufio.NewWriter(tmp)
	b := blob{
		Version:  blobVersion,
		Metric:   t.params.Metric.String(),
		Dim:      t.dim,
		LeafSize: t.params.LeafSize,
		Labels:   t.labels,
		Vectors:  t.vectors,
	}
	if err := msgpack.NewEncoder(w).Encode(&b); err != nil {
		tmp.Close()
		return fmt.Errorf("encode index: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Clone returns a copy that shares vector storage but not the point lists,
// so Add on either side leaves the other untouched.
func (t *VPTree) Clone() (Index, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[int]struct{}, len(t.seen))
	for l := range t.seen {
		seen[l] = struct{}{}
	}
	return &VPTree{
		params:   t.params,
		dist:     t.dist,
		dim:      t.dim,
		capacity: t.capacity,
		labels:   slices.Clip(slices.Clone(t.labels)),
		vectors:  slices.Clip(slices.Clone(t.vectors)),
		keys:     slices.Clip(slices.Clone(t.keys)),
		seen:     seen,
		nodes:    t.nodes,
		root:     t.root,
		built:    t.built,
	}, nil
}

// Resize raises the capacity.
func (t *VPTree) Resize(capacity int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if capacity < len(t.labels) {
		return fmt.Errorf("%w: %d < %d", ErrShrink, capacity, len(t.labels))
	}
	t.capacity = capacity
	return nil
}

// SetSearchBreadth sets the query-time node budget. Zero removes the limit;
// negative values are ignored.
func (t *VPTree) SetSearchBreadth(n int) {
	if n < 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.params.SearchBreadth = n
}

func (t *VPTree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.labels)
}

func (t *VPTree) Capacity() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.capacity
}

func (t *VPTree) Dimension() int {
	return t.dim
}

func (t *VPTree) Metric() core.Metric {
	return t.params.Metric
}
