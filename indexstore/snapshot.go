package indexstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/poiesic/newsrank/ann"
	"github.com/poiesic/newsrank/baseline"
	"github.com/poiesic/newsrank/core"
)

// Snapshot is an immutable view of a loaded index. Callers must not modify
// the slices it returns.
type Snapshot struct {
	docs    []core.DocumentRecord
	vectors [][]float32
	index   ann.Index
	meta    core.IndexMetadata
	sources map[string]int

	// below this many documents Search scans exhaustively
	exactBelow int

	exactOnce sync.Once
	exact     *baseline.Baseline
	exactErr  error
}

func newSnapshot(docs []core.DocumentRecord, vectors [][]float32, index ann.Index, meta core.IndexMetadata, exactBelow int) *Snapshot {
	sources := make(map[string]int)
	for i := range docs {
		sources[docs[i].Source]++
	}
	return &Snapshot{
		docs:       docs,
		vectors:    vectors,
		index:      index,
		meta:       meta,
		sources:    sources,
		exactBelow: exactBelow,
	}
}

// Len returns the number of documents.
func (s *Snapshot) Len() int {
	return len(s.docs)
}

// Document returns the record at pos.
func (s *Snapshot) Document(pos int) (*core.DocumentRecord, bool) {
	if pos < 0 || pos >= len(s.docs) {
		return nil, false
	}
	return &s.docs[pos], true
}

// Documents returns every record in position order.
func (s *Snapshot) Documents() []core.DocumentRecord {
	return s.docs
}

// Vectors returns the vector matrix in position order.
func (s *Snapshot) Vectors() [][]float32 {
	return s.vectors
}

// Metadata returns the metadata the snapshot was published with.
func (s *Snapshot) Metadata() core.IndexMetadata {
	return s.meta
}

// Index returns the approximate index.
func (s *Snapshot) Index() ann.Index {
	return s.index
}

// Sources returns the distinct source names, sorted.
func (s *Snapshot) Sources() []string {
	out := make([]string, 0, len(s.sources))
	for name := range s.sources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SourceCounts returns the number of documents per source.
func (s *Snapshot) SourceCounts() map[string]int {
	out := make(map[string]int, len(s.sources))
	for name, n := range s.sources {
		out[name] = n
	}
	return out
}

// PositionsBySource returns the positions of documents whose source equals
// name, ignoring case.
func (s *Snapshot) PositionsBySource(name string) []int {
	var out []int
	for i := range s.docs {
		if strings.EqualFold(s.docs[i].Source, name) {
			out = append(out, i)
		}
	}
	return out
}

// Search returns the k nearest documents to vector. Small corpora, and
// requests for at least the whole corpus, are answered by the exact baseline;
// everything else goes to the approximate index.
func (s *Snapshot) Search(ctx context.Context, vector []float32, k int) ([]core.SearchHit, error) {
	if k > 0 && s.Exhaustive(k) {
		return s.ExactSearch(ctx, vector, k, baseline.MethodAuto)
	}
	return s.ApproximateSearch(ctx, vector, k)
}

// Exhaustive reports whether Search answers a request for k hits exactly.
func (s *Snapshot) Exhaustive(k int) bool {
	return k >= len(s.docs) || len(s.docs) < s.exactBelow
}

// ApproximateSearch queries the approximate index regardless of corpus size.
func (s *Snapshot) ApproximateSearch(ctx context.Context, vector []float32, k int) ([]core.SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.index.Query(vector, k)
}

// ExactSearch returns the k exact nearest documents to vector. The baseline
// is fitted on first use.
func (s *Snapshot) ExactSearch(ctx context.Context, vector []float32, k int, method baseline.Method) ([]core.SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := s.Baseline()
	if err != nil {
		return nil, err
	}
	idx, dists, err := b.Query(vector, min(k, b.Len()), method)
	if err != nil {
		return nil, err
	}
	hits := make([]core.SearchHit, len(idx))
	for i := range idx {
		hits[i] = core.SearchHit{Label: idx[i], Distance: dists[i]}
	}
	return hits, nil
}

// Baseline returns the exact searcher fitted on the vector matrix.
func (s *Snapshot) Baseline() (*baseline.Baseline, error) {
	s.exactOnce.Do(func() {
		b, err := baseline.New(s.meta.Metric)
		if err != nil {
			s.exactErr = err
			return
		}
		if err := b.Fit(s.vectors); err != nil {
			s.exactErr = fmt.Errorf("fit baseline: %w", err)
			return
		}
		s.exact = b
	})
	return s.exact, s.exactErr
}
