package indexstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/newsrank/ai/mock"
	"github.com/poiesic/newsrank/ann"
	"github.com/poiesic/newsrank/core"
	"github.com/poiesic/newsrank/reembed"
	"github.com/poiesic/newsrank/storage"
	"github.com/poiesic/newsrank/storage/vecfile"
)

const testDim = 16

func newEmbedder(t *testing.T, m *mock.MockEmbedder) *reembed.BatchEmbedder {
	t.Helper()
	b, err := reembed.NewBatchEmbedder(m, &reembed.Config{BatchSize: 4, Workers: 2, MaxRetries: 1})
	require.NoError(t, err)
	return b
}

func openStore(t *testing.T, dir string, m *mock.MockEmbedder) *Store {
	t.Helper()
	var opts []Option
	if m != nil {
		opts = append(opts, WithEmbedder(newEmbedder(t, m)))
	}
	s, err := Open(dir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func article(i int, source string) core.DocumentRecord {
	return core.DocumentRecord{
		Title:     fmt.Sprintf("Bản tin thời sự số %d", i),
		Summary:   fmt.Sprintf("Nội dung chi tiết của bài viết thứ %d về kinh tế và xã hội", i),
		Link:      fmt.Sprintf("https://example.com/news/%d", i),
		Published: fmt.Sprintf("2024-05-%02d 08:00", i%28+1),
		Source:    source,
	}
}

func corpus(n int) []core.DocumentRecord {
	docs := make([]core.DocumentRecord, n)
	for i := range docs {
		src := "VnExpress"
		if i%2 == 1 {
			src = "Dân Trí"
		}
		docs[i] = article(i, src)
	}
	return docs
}

func TestBuild_DedupesAndFilters(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, t.TempDir(), mock.NewMockEmbedder(testDim))

	docs := corpus(4)
	docs = append(docs, docs[1])
	docs = append(docs, core.DocumentRecord{Title: "ngắn", Link: "x"})

	res, err := s.Build(ctx, docs, 0, ann.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Documents)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, DefaultCapacity, res.Capacity)
	assert.Equal(t, testDim, res.Dimension)

	snap := s.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, 4, snap.Len())
	for i, d := range snap.Documents() {
		assert.Equal(t, int64(i), d.ID)
		assert.Equal(t, core.UnknownValue, d.Category)
	}
}

func TestBuild_RenumbersIDs(t *testing.T) {
	s := openStore(t, t.TempDir(), mock.NewMockEmbedder(testDim))
	docs := corpus(3)
	docs[0].ID = 42
	docs[1].ID = core.IDUnassigned
	docs[2].ID = 42

	_, err := s.Build(context.Background(), docs, 0, ann.DefaultParams())
	require.NoError(t, err)
	for i, d := range s.Snapshot().Documents() {
		assert.Equal(t, int64(i), d.ID)
	}
}

func TestBuild_EmptyCorpus(t *testing.T) {
	s := openStore(t, t.TempDir(), mock.NewMockEmbedder(testDim))

	_, err := s.Build(context.Background(), []core.DocumentRecord{{Title: "ngắn"}}, 0, ann.DefaultParams())
	assert.True(t, errors.Is(err, core.ErrEmptyCorpus))
	assert.Nil(t, s.Snapshot())

	_, err = s.Load(context.Background())
	assert.True(t, errors.Is(err, core.ErrMissingArtifact), "nothing may be persisted")
}

func TestBuild_RaisesCapacity(t *testing.T) {
	s := openStore(t, t.TempDir(), mock.NewMockEmbedder(testDim))

	res, err := s.Build(context.Background(), corpus(5), 2, ann.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 5+DefaultGrowthBuffer, res.Capacity)
}

func TestBuild_RequiresEmbedder(t *testing.T) {
	s := openStore(t, t.TempDir(), nil)
	_, err := s.Build(context.Background(), corpus(2), 0, ann.DefaultParams())
	assert.True(t, errors.Is(err, reembed.ErrEmbedderRequired))
}

func TestBuildLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s := openStore(t, dir, mock.NewMockEmbedder(testDim))
	_, err := s.Build(ctx, corpus(12), 50, ann.DefaultParams())
	require.NoError(t, err)
	before, err := s.Info()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()
	snap, err := reopened.Load(ctx)
	require.NoError(t, err)

	after, err := reopened.Info()
	require.NoError(t, err)
	assert.Equal(t, before.Documents, after.Documents)
	assert.Equal(t, before.Vectors, after.Vectors)
	assert.Equal(t, before.Indexed, after.Indexed)
	assert.Equal(t, before.Dimension, after.Dimension)
	assert.Equal(t, 50, after.Capacity)
	assert.Equal(t, map[string]int{"VnExpress": 6, "Dân Trí": 6}, after.Sources)

	hits, err := snap.Search(ctx, snap.Vectors()[7], 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 7, hits[0].Label)
}

func TestLoad_Missing(t *testing.T) {
	s := openStore(t, t.TempDir(), nil)
	_, err := s.Load(context.Background())
	assert.True(t, errors.Is(err, core.ErrMissingArtifact))

	_, err = s.Search(context.Background(), make([]float32, testDim), 3)
	assert.True(t, errors.Is(err, ErrNotLoaded))
}

func TestLoad_Inconsistent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s := openStore(t, dir, mock.NewMockEmbedder(testDim))
	_, err := s.Build(ctx, corpus(6), 0, ann.DefaultParams())
	require.NoError(t, err)
	vectors := s.Snapshot().Vectors()
	require.NoError(t, s.Close())

	require.NoError(t, vecfile.Write(filepath.Join(dir, VectorsFile), vectors[:4], testDim))

	t.Run("without embedder", func(t *testing.T) {
		plain, err := Open(dir)
		require.NoError(t, err)
		defer plain.Close()
		_, err = plain.Load(ctx)
		assert.True(t, errors.Is(err, core.ErrInconsistentIndex))
	})

	t.Run("with embedder", func(t *testing.T) {
		m := mock.NewMockEmbedder(testDim)
		repaired, err := Open(dir, WithEmbedder(newEmbedder(t, m)))
		require.NoError(t, err)
		defer repaired.Close()

		snap, err := repaired.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 6, snap.Len())
		assert.Len(t, snap.Vectors(), 6)
		assert.Equal(t, 6, snap.Index().Len())
		assert.Equal(t, 6, m.TextCount())
	})
}

func TestLoad_CountsStoredRecords(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s := openStore(t, dir, mock.NewMockEmbedder(testDim))
	_, err := s.Build(ctx, corpus(3), 0, ann.DefaultParams())
	require.NoError(t, err)
	extra := article(3, "VnExpress")
	extra.ID = 3
	require.NoError(t, s.docs.PutDocuments(ctx, storage.Entry{Position: 3, Record: extra}))
	require.NoError(t, s.Close())

	plain, err := Open(dir)
	require.NoError(t, err)
	defer plain.Close()
	_, err = plain.Load(ctx)
	assert.True(t, errors.Is(err, core.ErrInconsistentIndex))
	assert.ErrorContains(t, err, "records=4")
}

func TestLoad_RepairsMissingIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s := openStore(t, dir, mock.NewMockEmbedder(testDim))
	_, err := s.Build(ctx, corpus(3), 0, ann.DefaultParams())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, os.Remove(filepath.Join(dir, IndexFile)))

	plain, err := Open(dir)
	require.NoError(t, err)
	_, err = plain.Load(ctx)
	assert.True(t, errors.Is(err, core.ErrMissingArtifact))
	require.NoError(t, plain.Close())

	repaired, err := Open(dir, WithEmbedder(newEmbedder(t, mock.NewMockEmbedder(testDim))))
	require.NoError(t, err)
	defer repaired.Close()
	snap, err := repaired.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Index().Len())
	assert.FileExists(t, filepath.Join(dir, IndexFile))
}

func TestIncrementalUpdate_ExistingLink(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	m := mock.NewMockEmbedder(testDim)
	s := openStore(t, dir, m)

	docs := corpus(3)
	docs[1].Summary = "Tin ngắn gọn về thị trường"
	_, err := s.Build(ctx, docs, 0, ann.DefaultParams())
	require.NoError(t, err)
	embedded := m.TextCount()

	update := core.DocumentRecord{
		Link:     docs[1].Link,
		Summary:  "Bản tin đầy đủ hơn rất nhiều về diễn biến thị trường chứng khoán trong tuần qua",
		Category: "Kinh doanh",
	}
	res, err := s.IncrementalUpdate(ctx, []core.DocumentRecord{update})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 0, res.Embedded)
	assert.Equal(t, embedded, m.TextCount(), "no vector may be generated")

	snap := s.Snapshot()
	assert.Equal(t, 3, snap.Len())
	doc, ok := snap.Document(1)
	require.True(t, ok)
	assert.Equal(t, int64(1), doc.ID)
	assert.Equal(t, update.Summary, doc.Summary)
	assert.Equal(t, core.UnknownValue, doc.Category, "filled fields are not overwritten")

	require.NoError(t, s.Close())
	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()
	snap, err = reopened.Load(ctx)
	require.NoError(t, err)
	doc, _ = snap.Document(1)
	assert.Equal(t, update.Summary, doc.Summary)
}

func TestIncrementalUpdate_AppendsAndResizes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	m := mock.NewMockEmbedder(testDim)
	s := openStore(t, dir, m)

	_, err := s.Build(ctx, corpus(3), 3, ann.DefaultParams())
	require.NoError(t, err)
	before := s.Snapshot()

	incoming := []core.DocumentRecord{
		article(10, "Tuổi Trẻ"),
		article(11, "Tuổi Trẻ"),
		{Title: "ngắn", Link: "https://example.com/short"},
		article(0, "VnExpress"), // known
	}
	res, err := s.IncrementalUpdate(ctx, incoming)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 2, res.Embedded)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Duplicates)
	assert.True(t, res.Resized)
	assert.Equal(t, 5+DefaultGrowthBuffer, res.Capacity)

	snap := s.Snapshot()
	assert.Equal(t, 5, snap.Len())
	assert.Equal(t, 5, snap.Index().Len())
	assert.Equal(t, 3, before.Index().Len(), "published snapshots are immutable")
	for i, d := range snap.Documents() {
		assert.Equal(t, int64(i), d.ID)
	}

	hits, err := snap.Search(ctx, snap.Vectors()[4], 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 4, hits[0].Label)

	require.NoError(t, s.Close())
	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()
	loaded, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.Len())
	assert.Equal(t, []string{"Dân Trí", "Tuổi Trẻ", "VnExpress"}, loaded.Sources())
}

func TestIncrementalUpdate_StoredLinkConflict(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, t.TempDir(), mock.NewMockEmbedder(testDim))
	_, err := s.Build(ctx, corpus(3), 0, ann.DefaultParams())
	require.NoError(t, err)

	stray := article(20, "Tuổi Trẻ")
	stray.ID = 50
	require.NoError(t, s.docs.PutDocuments(ctx, storage.Entry{Position: 50, Record: stray}))

	_, err = s.IncrementalUpdate(ctx, []core.DocumentRecord{article(20, "Tuổi Trẻ")})
	assert.True(t, errors.Is(err, core.ErrInconsistentIndex))
	assert.Equal(t, 3, s.Snapshot().Len())
	assert.Equal(t, 3, s.Snapshot().Index().Len())
}

func TestIncrementalUpdate_NotLoaded(t *testing.T) {
	s := openStore(t, t.TempDir(), mock.NewMockEmbedder(testDim))
	_, err := s.IncrementalUpdate(context.Background(), corpus(1))
	assert.True(t, errors.Is(err, ErrNotLoaded))
}

func TestRebuild_DefaultCapacity(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, t.TempDir(), mock.NewMockEmbedder(testDim))

	_, err := s.Build(ctx, corpus(4), 0, ann.Params{Metric: core.MetricEuclidean})
	require.NoError(t, err)

	res, err := s.Rebuild(ctx, corpus(6), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultRebuildMinCapacity, res.Capacity)
	assert.Equal(t, 6, res.Documents)

	meta, err := s.Metadata()
	require.NoError(t, err)
	assert.Equal(t, core.MetricEuclidean, meta.Metric)
}

func TestCompare(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, t.TempDir(), mock.NewMockEmbedder(testDim))
	_, err := s.Build(ctx, corpus(30), 0, ann.DefaultParams())
	require.NoError(t, err)

	query := s.Snapshot().Vectors()[3]
	cmp, err := s.Compare(ctx, query, 5)
	require.NoError(t, err)
	assert.Len(t, cmp.Exact, 5)
	assert.Len(t, cmp.Approximate, 5)
	assert.Equal(t, 3, cmp.Exact[0].Label)
	assert.InDelta(t, 1.0, cmp.Recall, 1e-9)

	exact, err := s.ExactSearch(ctx, query, 50)
	require.NoError(t, err)
	assert.Len(t, exact, 30)
}

func TestSnapshot_PositionsBySource(t *testing.T) {
	s := openStore(t, t.TempDir(), mock.NewMockEmbedder(testDim))
	_, err := s.Build(context.Background(), corpus(5), 0, ann.DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3}, s.Snapshot().PositionsBySource("dân trí"))
	assert.Empty(t, s.Snapshot().PositionsBySource("BBC"))

	sources, err := s.Sources()
	require.NoError(t, err)
	assert.Equal(t, []string{"Dân Trí", "VnExpress"}, sources)
}

func TestSnapshot_SearchRouting(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir(),
		WithEmbedder(newEmbedder(t, mock.NewMockEmbedder(testDim))),
		WithExactThreshold(10))
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Build(ctx, corpus(30), 0, ann.DefaultParams())
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.False(t, snap.Exhaustive(5))
	assert.True(t, snap.Exhaustive(30), "a request for the whole corpus is exact")

	// One visited node cannot cover the corpus; the routed search still can.
	snap.Index().SetSearchBreadth(1)
	defer snap.Index().SetSearchBreadth(0)
	query := snap.Vectors()[7]
	all, err := snap.Search(ctx, query, 30)
	require.NoError(t, err)
	assert.Len(t, all, 30)
	assert.Equal(t, 7, all[0].Label)

	small := openStore(t, t.TempDir(), mock.NewMockEmbedder(testDim))
	_, err = small.Build(ctx, corpus(30), 0, ann.DefaultParams())
	require.NoError(t, err)
	assert.True(t, small.Snapshot().Exhaustive(5), "corpora below the threshold are exact")

	hits, err := small.Search(ctx, query, 5)
	require.NoError(t, err)
	exact, err := small.ExactSearch(ctx, query, 5)
	require.NoError(t, err)
	assert.Equal(t, exact, hits)
}

func TestCompare_LargeCorpus(t *testing.T) {
	if testing.Short() {
		t.Skip("embeds and indexes over a thousand documents")
	}
	ctx := context.Background()
	s := openStore(t, t.TempDir(), mock.NewMockEmbedder(testDim))
	_, err := s.Build(ctx, corpus(1200), 0, ann.DefaultParams())
	require.NoError(t, err)

	snap := s.Snapshot()
	require.False(t, snap.Exhaustive(10))
	for _, pos := range []int{0, 17, 512, 1199} {
		cmp, err := s.Compare(ctx, snap.Vectors()[pos], 10)
		require.NoError(t, err)
		assert.Len(t, cmp.Approximate, 10)
		assert.Equal(t, pos, cmp.Approximate[0].Label)
		assert.InDelta(t, 1.0, cmp.Recall, 1e-9, "query %d", pos)
	}
}
