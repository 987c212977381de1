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

package newsrank

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/poiesic/newsrank/ai"
	"github.com/poiesic/newsrank/ai/openai"
	"github.com/poiesic/newsrank/ann"
	"github.com/poiesic/newsrank/core"
	"github.com/poiesic/newsrank/indexstore"
	"github.com/poiesic/newsrank/keyword"
	"github.com/poiesic/newsrank/merge"
	"github.com/poiesic/newsrank/reembed"
	"github.com/poiesic/newsrank/search"
)

// KeywordFile is the keyword index snapshot kept next to the vector index.
const KeywordFile = "keywords.msgpack"

// Engine serves searches over one index directory. Searches read an
// immutable view; Build, Update and Rebuild run one at a time and publish a
// new view when they succeed.
type Engine struct {
	store    *indexstore.Store
	provider ai.AIProvider
	embedder *reembed.BatchEmbedder
	ranker   *search.Ranker
	merger   *merge.Engine
	options  *engineOptions
	logger   *slog.Logger

	writeMu sync.Mutex
	current atomic.Pointer[view]
}

type view struct {
	snap     *indexstore.Snapshot
	keywords *keyword.Index
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	aiConfig       *ai.Config
	provider       ai.AIProvider
	embedderConfig *reembed.Config
	params         ann.Params
	keyword        keyword.Options
	ranking        search.Options
	growthBuffer   int
	exactThreshold int
	summaryGrowth  float64
	progress       io.Writer
	logger         *slog.Logger
}

// WithAIConfig sets the embedding service configuration.
func WithAIConfig(config *ai.Config) EngineOption {
	return func(o *engineOptions) {
		o.aiConfig = config
	}
}

// WithProvider uses provider instead of connecting to an embedding service.
// The engine closes it.
func WithProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithEmbedderConfig sets the batch embedding configuration.
func WithEmbedderConfig(config *reembed.Config) EngineOption {
	return func(o *engineOptions) {
		o.embedderConfig = config
	}
}

// WithIndexParams sets the parameters used when building an index.
func WithIndexParams(params ann.Params) EngineOption {
	return func(o *engineOptions) {
		o.params = params
	}
}

// WithKeywordOptions sets the BM25 options.
func WithKeywordOptions(opts keyword.Options) EngineOption {
	return func(o *engineOptions) {
		o.keyword = opts
	}
}

// WithRankingOptions sets the hybrid ranking constants.
func WithRankingOptions(opts search.Options) EngineOption {
	return func(o *engineOptions) {
		o.ranking = opts
	}
}

// WithGrowthBuffer sets the capacity headroom added when the index grows.
func WithGrowthBuffer(n int) EngineOption {
	return func(o *engineOptions) {
		o.growthBuffer = n
	}
}

// WithExactThreshold sets the corpus size below which semantic search scans
// every vector instead of querying the approximate index.
func WithExactThreshold(n int) EngineOption {
	return func(o *engineOptions) {
		o.exactThreshold = n
	}
}

// WithSummaryGrowth sets the factor by which an incoming summary must be
// longer to replace a stored one.
func WithSummaryGrowth(factor float64) EngineOption {
	return func(o *engineOptions) {
		o.summaryGrowth = factor
	}
}

// WithProgress writes embedding progress to w.
func WithProgress(w io.Writer) EngineOption {
	return func(o *engineOptions) {
		o.progress = w
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// Open opens the index under dir and loads it when one exists. An empty
// directory yields an engine that is not loaded; Build makes it searchable.
func Open(ctx context.Context, dir string, opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{
		aiConfig:       ai.DefaultConfig(),
		params:         ann.DefaultParams(),
		keyword:        keyword.DefaultOptions(),
		ranking:        search.DefaultOptions(),
		growthBuffer:   indexstore.DefaultGrowthBuffer,
		exactThreshold: indexstore.DefaultExactThreshold,
		summaryGrowth:  merge.DefaultSummaryGrowth,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger.With("component", "engine")

	provider := options.provider
	if provider == nil {
		var err error
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			return nil, err
		}
	}

	embedOpts := []reembed.Option{reembed.WithLogger(options.logger.With("component", "reembed"))}
	if options.progress != nil {
		embedOpts = append(embedOpts, reembed.WithProgress(options.progress))
	}
	embedder, err := reembed.NewBatchEmbedder(provider.Embedder(), options.embedderConfig, embedOpts...)
	if err != nil {
		provider.Close()
		return nil, err
	}

	ranker, err := search.NewRanker(embedder,
		search.WithOptions(options.ranking),
		search.WithLogger(options.logger.With("component", "search")))
	if err != nil {
		provider.Close()
		return nil, err
	}

	merger := merge.New(
		merge.WithSummaryGrowth(options.summaryGrowth),
		merge.WithLogger(options.logger.With("component", "merge")))

	store, err := indexstore.Open(dir,
		indexstore.WithEmbedder(embedder),
		indexstore.WithParams(options.params),
		indexstore.WithMergeEngine(merger),
		indexstore.WithGrowthBuffer(options.growthBuffer),
		indexstore.WithExactThreshold(options.exactThreshold),
		indexstore.WithLogger(options.logger.With("component", "indexstore")))
	if err != nil {
		provider.Close()
		return nil, err
	}

	e := &Engine{
		store:    store,
		provider: provider,
		embedder: embedder,
		ranker:   ranker,
		merger:   merger,
		options:  options,
		logger:   logger,
	}

	snap, err := store.Load(ctx)
	switch {
	case err == nil:
		e.publish(snap, e.loadKeywords(snap))
	case errors.Is(err, indexstore.ErrNoIndex):
		logger.Info("no index found, build one to enable search", "dir", dir)
	default:
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) Close() error {
	// Close AI provider first
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}
	if err := e.store.Close(); err != nil {
		e.logger.Error("error closing index store", "err", err)
		return err
	}
	return nil
}

// Loaded reports whether a searchable index is available.
func (e *Engine) Loaded() bool {
	return e.current.Load() != nil
}

// Store returns the underlying index store.
func (e *Engine) Store() *indexstore.Store {
	return e.store
}

// Embedder returns the batch embedder used for documents and queries.
func (e *Engine) Embedder() *reembed.BatchEmbedder {
	return e.embedder
}

// Ranker returns the hybrid ranker.
func (e *Engine) Ranker() *search.Ranker {
	return e.ranker
}

// Snapshot returns the current index snapshot, or nil when not loaded.
func (e *Engine) Snapshot() *indexstore.Snapshot {
	v := e.current.Load()
	if v == nil {
		return nil
	}
	return v.snap
}

func (e *Engine) view() (*view, error) {
	v := e.current.Load()
	if v == nil {
		return nil, indexstore.ErrNotLoaded
	}
	return v, nil
}

func (e *Engine) publish(snap *indexstore.Snapshot, keywords *keyword.Index) {
	e.current.Store(&view{snap: snap, keywords: keywords})
}

func (e *Engine) keywordPath() string {
	return filepath.Join(e.store.Dir(), KeywordFile)
}

// loadKeywords reads the keyword snapshot when it matches snap, and builds
// and saves a fresh one otherwise.
func (e *Engine) loadKeywords(snap *indexstore.Snapshot) *keyword.Index {
	logger := e.options.logger.With("component", "keyword")
	ix, err := keyword.Load(e.keywordPath(), logger)
	if err == nil && ix.Len() == snap.Len() && ix.Options() == e.options.keyword {
		return ix
	}
	if err != nil && !errors.Is(err, core.ErrMissingArtifact) {
		e.logger.Warn("keyword snapshot unreadable, rebuilding", "err", err)
	}
	return e.buildKeywords(snap)
}

func (e *Engine) buildKeywords(snap *indexstore.Snapshot) *keyword.Index {
	ix := keyword.Build(snap.Documents(),
		keyword.WithOptions(e.options.keyword),
		keyword.WithLogger(e.options.logger.With("component", "keyword")))
	if err := ix.Save(e.keywordPath()); err != nil {
		e.logger.Warn("could not save keyword snapshot", "err", err)
	}
	return ix
}

// Search answers req from the current view.
func (e *Engine) Search(ctx context.Context, req search.Request) (*search.Response, error) {
	return e.SearchWithMonitor(ctx, req, nil)
}

// SearchWithMonitor answers req from the current view and reports each
// ranking stage to monitor.
func (e *Engine) SearchWithMonitor(ctx context.Context, req search.Request, monitor search.SearchMonitor) (*search.Response, error) {
	v, err := e.view()
	if err != nil {
		return nil, err
	}
	return e.ranker.SearchWithMonitor(ctx, v.snap, v.keywords, req, monitor)
}

// Build indexes docs from scratch. A non-positive capacity uses the store
// default.
func (e *Engine) Build(ctx context.Context, docs []core.DocumentRecord, capacity int) (*indexstore.BuildResult, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	res, err := e.store.Build(ctx, docs, capacity, e.options.params)
	if err != nil {
		return nil, err
	}
	e.refresh()
	return res, nil
}

// Update merges docs into the loaded index, embedding only new articles.
func (e *Engine) Update(ctx context.Context, docs []core.DocumentRecord) (*indexstore.UpdateResult, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	res, err := e.store.IncrementalUpdate(ctx, docs)
	if err != nil {
		return nil, err
	}
	e.refresh()
	return res, nil
}

// Rebuild re-embeds the stored articles merged with docs.
func (e *Engine) Rebuild(ctx context.Context, docs []core.DocumentRecord, capacity int) (*indexstore.BuildResult, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	all := docs
	if snap := e.store.Snapshot(); snap != nil {
		all = e.merger.Merge(snap.Documents(), docs).Documents
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: nothing to rebuild", core.ErrEmptyCorpus)
	}
	res, err := e.store.Rebuild(ctx, all, capacity)
	if err != nil {
		return nil, err
	}
	e.refresh()
	return res, nil
}

// refresh rebuilds the keyword index for the store snapshot and publishes it.
func (e *Engine) refresh() {
	snap := e.store.Snapshot()
	e.publish(snap, e.buildKeywords(snap))
}

// Info describes the loaded index.
func (e *Engine) Info() (*indexstore.Info, error) {
	if _, err := e.view(); err != nil {
		return nil, err
	}
	return e.store.Info()
}

// Sources lists the sources of the loaded articles.
func (e *Engine) Sources() ([]string, error) {
	v, err := e.view()
	if err != nil {
		return nil, err
	}
	return v.snap.Sources(), nil
}

// Compare embeds text and runs it through the approximate and exact vector
// searches.
func (e *Engine) Compare(ctx context.Context, text string, k int) (*indexstore.Comparison, error) {
	if _, err := e.view(); err != nil {
		return nil, err
	}
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return e.store.Compare(ctx, vec, k)
}
