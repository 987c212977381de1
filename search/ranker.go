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

package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/newsrank/core"
	"github.com/poiesic/newsrank/keyword"
	"github.com/poiesic/newsrank/query"
)

// Ranking defaults.
const (
	DefaultSemanticWeight  = 0.55
	DefaultKeywordWeight   = 0.45
	DefaultMinSimilarity   = 0.35
	DefaultOverfetchFactor = 6
	DefaultOverfetchMin    = 60
	DefaultSummaryMaxLen   = 240
	DefaultTopK            = 10
	DefaultMaxTopK         = 50
)

// sourceMatchScore is the score reported for documents listed by a pure
// source query.
const sourceMatchScore = 1.0

// QueryEmbedder turns query text into a normalized vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Corpus is the document set and vector index a request reads.
type Corpus interface {
	Len() int
	Document(pos int) (*core.DocumentRecord, bool)
	Search(ctx context.Context, vector []float32, k int) ([]core.SearchHit, error)
	PositionsBySource(name string) []int
}

// KeywordScorer scores documents lexically against a query.
type KeywordScorer interface {
	Score(query string) []keyword.Hit
}

var _ KeywordScorer = (*keyword.Index)(nil)

// Options holds the tunable ranking constants.
type Options struct {
	SemanticWeight  float64
	KeywordWeight   float64
	MinSimilarity   float64
	OverfetchFactor int
	OverfetchMin    int
	SummaryMaxLen   int
	DefaultTopK     int
	MaxTopK         int
}

// DefaultOptions returns the default ranking constants.
func DefaultOptions() Options {
	return Options{
		SemanticWeight:  DefaultSemanticWeight,
		KeywordWeight:   DefaultKeywordWeight,
		MinSimilarity:   DefaultMinSimilarity,
		OverfetchFactor: DefaultOverfetchFactor,
		OverfetchMin:    DefaultOverfetchMin,
		SummaryMaxLen:   DefaultSummaryMaxLen,
		DefaultTopK:     DefaultTopK,
		MaxTopK:         DefaultMaxTopK,
	}
}

// Ranker answers search requests.
type Ranker struct {
	embedder QueryEmbedder
	analyzer *query.Analyzer
	opts     Options
	logger   *slog.Logger
}

// Option configures a Ranker.
type Option func(*Ranker) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Ranker) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithOptions replaces the ranking constants. Zero counts and lengths keep
// their defaults, as do the weights when both are zero. MinSimilarity is
// taken as given: zero disables the similarity floor.
func WithOptions(opts Options) Option {
	return func(r *Ranker) error {
		d := DefaultOptions()
		if opts.SemanticWeight == 0 && opts.KeywordWeight == 0 {
			opts.SemanticWeight, opts.KeywordWeight = d.SemanticWeight, d.KeywordWeight
		}
		if opts.SemanticWeight < 0 || opts.KeywordWeight < 0 {
			return fmt.Errorf("%w: negative fusion weight", ErrInvalidRequest)
		}
		if opts.OverfetchFactor <= 0 {
			opts.OverfetchFactor = d.OverfetchFactor
		}
		if opts.OverfetchMin <= 0 {
			opts.OverfetchMin = d.OverfetchMin
		}
		if opts.SummaryMaxLen <= 0 {
			opts.SummaryMaxLen = d.SummaryMaxLen
		}
		if opts.MaxTopK <= 0 {
			opts.MaxTopK = d.MaxTopK
		}
		if opts.DefaultTopK <= 0 {
			opts.DefaultTopK = min(d.DefaultTopK, opts.MaxTopK)
		}
		r.opts = opts
		return nil
	}
}

// WithAnalyzer sets the source analyzer.
func WithAnalyzer(analyzer *query.Analyzer) Option {
	return func(r *Ranker) error {
		if analyzer != nil {
			r.analyzer = analyzer
		}
		return nil
	}
}

// NewRanker creates a ranker that embeds queries with embedder.
func NewRanker(embedder QueryEmbedder, opts ...Option) (*Ranker, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	r := &Ranker{
		embedder: embedder,
		analyzer: query.NewAnalyzer(),
		opts:     DefaultOptions(),
		logger:   slog.Default().With("component", "search"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Options returns the ranking constants in use.
func (r *Ranker) Options() Options {
	return r.opts
}

// Search runs req against corpus and keywords.
func (r *Ranker) Search(ctx context.Context, corpus Corpus, keywords KeywordScorer, req Request) (*Response, error) {
	return r.SearchWithMonitor(ctx, corpus, keywords, req, nil)
}

// SearchWithMonitor runs req against corpus and keywords with monitoring.
// The monitor receives callbacks at each stage of the search process.
// An empty query, or one whose candidates are all filtered out, yields an
// empty result list.
func (r *Ranker) SearchWithMonitor(ctx context.Context, corpus Corpus, keywords KeywordScorer, req Request, monitor SearchMonitor) (*Response, error) {
	start := time.Now()
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	p, err := r.parse(req)
	if err != nil {
		return nil, err
	}
	monitor.Start(p.query)
	if p.query == "" {
		return r.respond(start, nil, monitor), nil
	}

	// 1. Resolve the source filter and the text to match
	analysis := r.analyze(p)
	monitor.AfterAnalysis(analysis)
	if analysis.Source != "" && analysis.Content == "" {
		items := r.listSource(corpus, analysis.Source)
		sortItems(items, SortNewest)
		return r.respond(start, r.project(items, p.topK), monitor), nil
	}
	allowed := sourceFilter(corpus, analysis.Source)

	// 2. Retrieve candidates
	var semantic, lexical map[int]float64
	if p.mode == ModeSemantic || p.mode == ModeHybrid {
		semantic, err = r.semantic(ctx, corpus, analysis.Content, p.topK, allowed)
		if err != nil {
			return nil, err
		}
		monitor.AfterSemantic(semantic)
	}
	if p.mode == ModeKeyword || p.mode == ModeHybrid {
		lexical = lexicalScores(keywords, analysis.Content, allowed)
		monitor.AfterKeyword(lexical)
	}

	// 3. Fuse
	var combined map[int]float64
	switch p.mode {
	case ModeSemantic:
		combined = semantic
	case ModeKeyword:
		combined = lexical
	default:
		combined = fuse(normalize(semantic), normalize(lexical), r.opts.SemanticWeight, r.opts.KeywordWeight)
	}
	monitor.AfterFusion(combined)

	// 4. Threshold
	if p.mode != ModeKeyword {
		combined = threshold(combined, r.opts.MinSimilarity)
	}
	monitor.AfterThreshold(len(combined))

	// 5. Sort and project
	items := make([]item, 0, len(combined))
	for pos, score := range combined {
		doc, ok := corpus.Document(pos)
		if !ok {
			continue
		}
		items = append(items, newItem(pos, score, doc))
	}
	sortItems(items, p.sort)

	r.logger.Debug("search finished",
		"query", p.query, "mode", p.mode, "sort", p.sort, "source", analysis.Source,
		"semantic", len(semantic), "keyword", len(lexical), "kept", len(items))
	return r.respond(start, r.project(items, p.topK), monitor), nil
}

func (r *Ranker) analyze(p params) query.Analysis {
	if p.source != "" {
		return query.Analysis{Kind: query.KindMixed, Source: p.source, Content: p.query}
	}
	return r.analyzer.Analyze(p.query)
}

// semantic returns similarity 1/(1+distance) for the over-fetched nearest
// neighbors of text.
func (r *Ranker) semantic(ctx context.Context, corpus Corpus, text string, topK int, allowed map[int]bool) (map[int]float64, error) {
	vec, err := r.embedder.EmbedQuery(ctx, text)
	if err != nil {
		r.logger.Error("error generating embedding for query", "query", text, "err", err)
		return nil, err
	}
	k := max(topK*r.opts.OverfetchFactor, r.opts.OverfetchMin)
	hits, err := corpus.Search(ctx, vec, k)
	if err != nil {
		r.logger.Error("error querying vector index", "err", err)
		return nil, err
	}
	scores := make(map[int]float64, len(hits))
	for _, h := range hits {
		if allowed != nil && !allowed[h.Label] {
			continue
		}
		scores[h.Label] = 1 / (1 + float64(h.Distance))
	}
	return scores, nil
}

func lexicalScores(keywords KeywordScorer, text string, allowed map[int]bool) map[int]float64 {
	if keywords == nil {
		return map[int]float64{}
	}
	hits := keywords.Score(text)
	scores := make(map[int]float64, len(hits))
	for _, h := range hits {
		if allowed != nil && !allowed[h.Position] {
			continue
		}
		scores[h.Position] = h.Score
	}
	return scores
}

// sourceFilter returns the positions allowed by source, or nil when every
// position is allowed.
func sourceFilter(corpus Corpus, source string) map[int]bool {
	if source == "" {
		return nil
	}
	positions := corpus.PositionsBySource(source)
	allowed := make(map[int]bool, len(positions))
	for _, pos := range positions {
		allowed[pos] = true
	}
	return allowed
}

func (r *Ranker) listSource(corpus Corpus, source string) []item {
	positions := corpus.PositionsBySource(source)
	items := make([]item, 0, len(positions))
	for _, pos := range positions {
		doc, ok := corpus.Document(pos)
		if !ok {
			continue
		}
		items = append(items, newItem(pos, sourceMatchScore, doc))
	}
	return items
}

func (r *Ranker) respond(start time.Time, results []Result, monitor SearchMonitor) *Response {
	if results == nil {
		results = []Result{}
	}
	monitor.Finish(results)
	return &Response{Results: results, TookMS: time.Since(start).Milliseconds()}
}
