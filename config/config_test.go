package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/newsrank/ann"
	"github.com/poiesic/newsrank/core"
	"github.com/poiesic/newsrank/indexstore"
	"github.com/poiesic/newsrank/search"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "cosine", cfg.Index.Metric)
	assert.Equal(t, ann.DefaultLeafSize, cfg.Index.LeafSize)
	assert.Equal(t, indexstore.DefaultExactThreshold, cfg.Index.ExactThreshold)
	assert.Equal(t, search.DefaultMinSimilarity, cfg.Ranking.MinSimilarity)
	assert.Equal(t, ":8000", cfg.Server.Addr)
}

func TestLoad_PartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
index:
  dir: /data/idx
  metric: euclidean
ranking:
  min_similarity: 0.5
keyword:
  stem: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/idx", cfg.Index.Dir)
	assert.Equal(t, 0.5, cfg.Ranking.MinSimilarity)
	assert.Equal(t, search.DefaultSemanticWeight, cfg.Ranking.SemanticWeight)
	assert.True(t, cfg.Keyword.Stem)

	params, err := cfg.IndexParams()
	require.NoError(t, err)
	assert.Equal(t, core.MetricEuclidean, params.Metric)
	assert.Equal(t, ann.DefaultLeafSize, params.LeafSize)
	assert.Equal(t, ann.DefaultSearchBreadth, params.SearchBreadth)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("index: ["), 0o644))
	_, err := Load(bad)
	assert.Error(t, err)

	metric := filepath.Join(dir, "metric.yaml")
	require.NoError(t, os.WriteFile(metric, []byte("index:\n  metric: manhattan\n"), 0o644))
	_, err = Load(metric)
	assert.True(t, errors.Is(err, core.ErrUnsupportedMetric))

	topk := filepath.Join(dir, "topk.yaml")
	require.NoError(t, os.WriteFile(topk, []byte("ranking:\n  default_topk: 80\n"), 0o644))
	_, err = Load(topk)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cfg.yaml")
	cfg := Default()
	cfg.Embedding.Model = "multilingual-e5"
	cfg.Server.Addr = "127.0.0.1:9000"

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestConversions(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "secret")
	cfg := Default()
	cfg.Embedding.APIKeyEnv = "TEST_EMBED_KEY"
	cfg.Embedding.RetryDelayMS = 250

	aiCfg := cfg.AIConfig()
	assert.Equal(t, "secret", aiCfg.APIKey)
	assert.Equal(t, cfg.Embedding.Model, aiCfg.EmbeddingModel)

	emb := cfg.EmbedderConfig()
	assert.Equal(t, 250*time.Millisecond, emb.RetryDelay)
	assert.Equal(t, cfg.Embedding.BatchSize, emb.BatchSize)

	kw := cfg.KeywordOptions()
	assert.Equal(t, 1.2, kw.K1)
	assert.Equal(t, 0.75, kw.B)

	rank := cfg.RankingOptions()
	assert.Equal(t, search.DefaultOptions(), rank)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout())
}
