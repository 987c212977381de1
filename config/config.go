// Package config reads the YAML application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/poiesic/newsrank/ai"
	"github.com/poiesic/newsrank/ann"
	"github.com/poiesic/newsrank/core"
	"github.com/poiesic/newsrank/indexstore"
	"github.com/poiesic/newsrank/keyword"
	"github.com/poiesic/newsrank/merge"
	"github.com/poiesic/newsrank/reembed"
	"github.com/poiesic/newsrank/search"
)

// DefaultPath is the config file read when none is given.
const DefaultPath = "newsrank.yaml"

// IndexConfig configures the persisted index.
type IndexConfig struct {
	Dir            string  `yaml:"dir"`
	Metric         string  `yaml:"metric"`
	LeafSize       int     `yaml:"leaf_size"`
	SearchBreadth  int     `yaml:"search_breadth"`
	ExactThreshold int     `yaml:"exact_threshold"`
	Capacity       int     `yaml:"capacity"`
	GrowthBuffer   int     `yaml:"growth_buffer"`
	SummaryGrowth  float64 `yaml:"summary_growth"`
}

// EmbeddingConfig configures the OpenAI-compatible embedding service.
type EmbeddingConfig struct {
	Host         string `yaml:"host"`
	Model        string `yaml:"model"`
	APIKeyEnv    string `yaml:"api_key_env"`
	BatchSize    int    `yaml:"batch_size"`
	Workers      int    `yaml:"workers"`
	MaxRetries   int    `yaml:"max_retries"`
	RetryDelayMS int    `yaml:"retry_delay_ms"`
	TimeoutSecs  int    `yaml:"timeout_secs"`
}

// KeywordConfig configures BM25 scoring.
type KeywordConfig struct {
	K1            float64 `yaml:"k1"`
	B             float64 `yaml:"b"`
	MaxCandidates int     `yaml:"max_candidates"`
	Stem          bool    `yaml:"stem"`
}

// RankingConfig configures hybrid ranking.
type RankingConfig struct {
	SemanticWeight  float64 `yaml:"semantic_weight"`
	KeywordWeight   float64 `yaml:"keyword_weight"`
	MinSimilarity   float64 `yaml:"min_similarity"`
	OverfetchFactor int     `yaml:"overfetch_factor"`
	OverfetchMin    int     `yaml:"overfetch_min"`
	SummaryMaxLen   int     `yaml:"summary_max_len"`
	DefaultTopK     int     `yaml:"default_topk"`
	MaxTopK         int     `yaml:"max_topk"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr               string `yaml:"addr"`
	ReadTimeoutSecs    int    `yaml:"read_timeout_secs"`
	WriteTimeoutSecs   int    `yaml:"write_timeout_secs"`
	RequestTimeoutSecs int    `yaml:"request_timeout_secs"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Keyword   KeywordConfig   `yaml:"keyword"`
	Ranking   RankingConfig   `yaml:"ranking"`
	Server    ServerConfig    `yaml:"server"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	aiDefaults := ai.DefaultConfig()
	embedDefaults := reembed.DefaultConfig()
	rank := search.DefaultOptions()
	kw := keyword.DefaultOptions()

	setString(&cfg.Index.Dir, "article_index")
	setString(&cfg.Index.Metric, core.MetricCosine.String())
	setInt(&cfg.Index.LeafSize, ann.DefaultLeafSize)
	setInt(&cfg.Index.ExactThreshold, indexstore.DefaultExactThreshold)
	setInt(&cfg.Index.Capacity, 10000)
	setInt(&cfg.Index.GrowthBuffer, 256)
	setFloat(&cfg.Index.SummaryGrowth, merge.DefaultSummaryGrowth)

	setString(&cfg.Embedding.Host, aiDefaults.EmbeddingHost)
	setString(&cfg.Embedding.Model, aiDefaults.EmbeddingModel)
	setString(&cfg.Embedding.APIKeyEnv, "EMBEDDING_API_KEY")
	setInt(&cfg.Embedding.BatchSize, embedDefaults.BatchSize)
	setInt(&cfg.Embedding.Workers, embedDefaults.Workers)
	setInt(&cfg.Embedding.MaxRetries, embedDefaults.MaxRetries)
	setInt(&cfg.Embedding.RetryDelayMS, int(embedDefaults.RetryDelay/time.Millisecond))
	setInt(&cfg.Embedding.TimeoutSecs, int(aiDefaults.Timeout/time.Second))

	setFloat(&cfg.Keyword.K1, kw.K1)
	setFloat(&cfg.Keyword.B, kw.B)
	setInt(&cfg.Keyword.MaxCandidates, kw.MaxCandidates)

	if cfg.Ranking.SemanticWeight == 0 && cfg.Ranking.KeywordWeight == 0 {
		cfg.Ranking.SemanticWeight = rank.SemanticWeight
		cfg.Ranking.KeywordWeight = rank.KeywordWeight
	}
	setFloat(&cfg.Ranking.MinSimilarity, rank.MinSimilarity)
	setInt(&cfg.Ranking.OverfetchFactor, rank.OverfetchFactor)
	setInt(&cfg.Ranking.OverfetchMin, rank.OverfetchMin)
	setInt(&cfg.Ranking.SummaryMaxLen, rank.SummaryMaxLen)
	setInt(&cfg.Ranking.DefaultTopK, rank.DefaultTopK)
	setInt(&cfg.Ranking.MaxTopK, rank.MaxTopK)

	setString(&cfg.Server.Addr, ":8000")
	setInt(&cfg.Server.ReadTimeoutSecs, 10)
	setInt(&cfg.Server.WriteTimeoutSecs, 30)
	setInt(&cfg.Server.RequestTimeoutSecs, 15)
}

func setString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if *dst == 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if *dst == 0 {
		*dst = v
	}
}

// Validate rejects values no component can run with.
func (c *AppConfig) Validate() error {
	if _, err := core.ParseMetric(c.Index.Metric); err != nil {
		return err
	}
	if c.Index.LeafSize < 1 || c.Index.SearchBreadth < 0 || c.Index.ExactThreshold < 0 {
		return fmt.Errorf("%w: leaf_size=%d search_breadth=%d exact_threshold=%d",
			ErrInvalidConfig, c.Index.LeafSize, c.Index.SearchBreadth, c.Index.ExactThreshold)
	}
	if c.Index.Capacity < 1 || c.Index.GrowthBuffer < 0 {
		return fmt.Errorf("%w: capacity=%d growth_buffer=%d", ErrInvalidConfig, c.Index.Capacity, c.Index.GrowthBuffer)
	}
	if c.Ranking.SemanticWeight < 0 || c.Ranking.KeywordWeight < 0 {
		return fmt.Errorf("%w: negative fusion weight", ErrInvalidConfig)
	}
	if c.Ranking.DefaultTopK > c.Ranking.MaxTopK {
		return fmt.Errorf("%w: default_topk %d above max_topk %d", ErrInvalidConfig, c.Ranking.DefaultTopK, c.Ranking.MaxTopK)
	}
	return nil
}

// AIConfig builds the embedding service configuration. The API key is read
// from the environment variable named by api_key_env.
func (c *AppConfig) AIConfig() *ai.Config {
	opts := []ai.ConfigOption{
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithTimeout(time.Duration(c.Embedding.TimeoutSecs) * time.Second),
	}
	if key := os.Getenv(c.Embedding.APIKeyEnv); key != "" {
		opts = append(opts, ai.WithAPIKey(key))
	}
	return ai.NewConfig(opts...)
}

// EmbedderConfig builds the batch embedding configuration.
func (c *AppConfig) EmbedderConfig() *reembed.Config {
	return &reembed.Config{
		BatchSize:      c.Embedding.BatchSize,
		Workers:        c.Embedding.Workers,
		ReportInterval: reembed.DefaultConfig().ReportInterval,
		MaxRetries:     c.Embedding.MaxRetries,
		RetryDelay:     time.Duration(c.Embedding.RetryDelayMS) * time.Millisecond,
	}
}

// IndexParams builds the approximate index parameters.
func (c *AppConfig) IndexParams() (ann.Params, error) {
	metric, err := core.ParseMetric(c.Index.Metric)
	if err != nil {
		return ann.Params{}, err
	}
	return ann.Params{
		Metric:        metric,
		LeafSize:      c.Index.LeafSize,
		SearchBreadth: c.Index.SearchBreadth,
	}, nil
}

// KeywordOptions builds the BM25 options.
func (c *AppConfig) KeywordOptions() keyword.Options {
	return keyword.Options{
		K1:            c.Keyword.K1,
		B:             c.Keyword.B,
		MaxCandidates: c.Keyword.MaxCandidates,
		Stem:          c.Keyword.Stem,
	}
}

// RankingOptions builds the hybrid ranking options.
func (c *AppConfig) RankingOptions() search.Options {
	return search.Options{
		SemanticWeight:  c.Ranking.SemanticWeight,
		KeywordWeight:   c.Ranking.KeywordWeight,
		MinSimilarity:   c.Ranking.MinSimilarity,
		OverfetchFactor: c.Ranking.OverfetchFactor,
		OverfetchMin:    c.Ranking.OverfetchMin,
		SummaryMaxLen:   c.Ranking.SummaryMaxLen,
		DefaultTopK:     c.Ranking.DefaultTopK,
		MaxTopK:         c.Ranking.MaxTopK,
	}
}

// RequestTimeout is the deadline applied to one search request.
func (c *AppConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSecs) * time.Second
}
