package reembed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/newsrank/ai/mock"
	"github.com/poiesic/newsrank/core"
	"github.com/poiesic/newsrank/storage"
	"github.com/poiesic/newsrank/storage/badger"
)

func testConfig() *Config {
	return &Config{BatchSize: 3, Workers: 2, MaxRetries: 2, RetryDelay: time.Millisecond, ReportInterval: 1}
}

func docsWithText(n int) []core.DocumentRecord {
	docs := make([]core.DocumentRecord, n)
	for i := range docs {
		docs[i] = core.DocumentRecord{
			ID:      int64(i),
			Title:   fmt.Sprintf("Tin tức số %d trong ngày", i),
			Summary: "Nội dung chi tiết của bài viết",
		}
	}
	return docs
}

func TestNewBatchEmbedder_RequiresEmbedder(t *testing.T) {
	_, err := NewBatchEmbedder(nil, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}

func TestEmbedTexts_OrderAndNormalization(t *testing.T) {
	emb := mock.NewMockEmbedder(8)
	emb.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{float32(len(texts[i])), 0, 0, 0, 0, 0, 0, 3}
		}
		return out, nil
	}
	var progress bytes.Buffer
	b, err := NewBatchEmbedder(emb, testConfig(), WithProgress(&progress))
	require.NoError(t, err)

	texts := []string{"a", "bbbb", "cc", "ddddddd", "e", "ffffffffff", "g"}
	vectors, err := b.EmbedTexts(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))

	for i, v := range vectors {
		want := NormalizeVector([]float32{float32(len(texts[i])), 0, 0, 0, 0, 0, 0, 3})
		assert.InDeltaSlice(t, toF64(want), toF64(v), 1e-6, "vector %d", i)
	}
	assert.Equal(t, 3, emb.CallCount(), "7 texts in batches of 3")
	assert.Contains(t, progress.String(), "Embedding: 7/7")
}

func toF64(xs []float32) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}

func TestEmbedTexts_RetriesThenFails(t *testing.T) {
	emb := mock.NewMockEmbedder(4)
	emb.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("provider down")
	}
	b, err := NewBatchEmbedder(emb, &Config{BatchSize: 10, Workers: 1, MaxRetries: 3, RetryDelay: time.Millisecond})
	require.NoError(t, err)

	_, err = b.EmbedTexts(context.Background(), []string{"one", "two"})
	assert.ErrorIs(t, err, core.ErrEmbeddingFailure)
	assert.Equal(t, 3, emb.CallCount())
}

func TestEmbedTexts_CountMismatch(t *testing.T) {
	emb := mock.NewMockEmbedder(4)
	emb.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 0, 0, 0}}, nil
	}
	b, err := NewBatchEmbedder(emb, testConfig())
	require.NoError(t, err)

	_, err = b.EmbedTexts(context.Background(), []string{"one", "two"})
	assert.ErrorIs(t, err, core.ErrEmbeddingFailure)
}

func TestEmbedTexts_EmptyVectors(t *testing.T) {
	emb := mock.NewMockEmbedder(4)
	emb.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return make([][]float32, len(texts)), nil
	}
	b, err := NewBatchEmbedder(emb, testConfig())
	require.NoError(t, err)

	_, err = b.EmbedTexts(context.Background(), []string{"one"})
	assert.ErrorIs(t, err, core.ErrEmbeddingFailure)
}

func TestEmbedDocuments_SkipsUnusable(t *testing.T) {
	emb := mock.NewMockEmbedder(16)
	b, err := NewBatchEmbedder(emb, testConfig())
	require.NoError(t, err)

	docs := docsWithText(3)
	docs[1] = core.DocumentRecord{Title: "ngắn"}

	res, err := b.EmbedDocuments(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, res.Positions)
	assert.Equal(t, []int{1}, res.Skipped)
	assert.Len(t, res.Vectors, 2)
	assert.Equal(t, 16, res.Dimension)

	none, err := b.EmbedDocuments(context.Background(), []core.DocumentRecord{{Title: "x"}})
	require.NoError(t, err)
	assert.Empty(t, none.Vectors)
	assert.Equal(t, 0, none.Dimension)
}

func TestEmbedQuery_PreprocessesText(t *testing.T) {
	emb := mock.NewMockEmbedder(8)
	var sent []string
	emb.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		sent = append(sent, text)
		return []float32{1, 0, 0, 0, 0, 0, 0, 0}, nil
	}
	b, err := NewBatchEmbedder(emb, testConfig())
	require.NoError(t, err)

	_, err = b.EmbedQuery(context.Background(), "<b>giá   vàng</b> https://vnexpress.net/gia-vang")
	require.NoError(t, err)
	_, err = b.EmbedQuery(context.Background(), "https://vnexpress.net")
	require.NoError(t, err)
	assert.Equal(t, []string{"giá vàng", "https://vnexpress.net"}, sent)
}

func TestEmbedQuery(t *testing.T) {
	emb := mock.NewMockEmbedder(8)
	b, err := NewBatchEmbedder(emb, testConfig())
	require.NoError(t, err)

	v, err := b.EmbedQuery(context.Background(), "giá vàng")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, magnitude(v), 1e-5)

	emb.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) { return nil, nil }
	_, err = b.EmbedQuery(context.Background(), "giá vàng")
	assert.ErrorIs(t, err, core.ErrEmbeddingFailure)
}

func TestReembedder_Run(t *testing.T) {
	repo, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	docs := docsWithText(5)
	require.NoError(t, repo.ReplaceDocuments(ctx, docs))

	b, err := NewBatchEmbedder(mock.NewMockEmbedder(12), testConfig())
	require.NoError(t, err)

	gotDocs, vectors, err := NewReembedder(repo, b, 2).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, docs, gotDocs)
	require.Len(t, vectors, 5)
	for _, v := range vectors {
		assert.Len(t, v, 12)
	}
}

func TestReembedder_Errors(t *testing.T) {
	repo, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	b, err := NewBatchEmbedder(mock.NewMockEmbedder(4), testConfig())
	require.NoError(t, err)

	_, _, err = NewReembedder(repo, b, 0).Run(ctx)
	assert.ErrorIs(t, err, core.ErrEmptyCorpus)

	docs := docsWithText(2)
	docs[1] = core.DocumentRecord{ID: 1, Title: "?"}
	require.NoError(t, repo.PutDocuments(ctx,
		storage.Entry{Position: 0, Record: docs[0]},
		storage.Entry{Position: 1, Record: docs[1]},
	))
	_, _, err = NewReembedder(repo, b, 0).Run(ctx)
	assert.ErrorIs(t, err, core.ErrInconsistentIndex)
}
