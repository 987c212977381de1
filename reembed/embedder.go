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

package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/newsrank/ai"
	"github.com/poiesic/newsrank/core"
)

// Config holds configuration for batch embedding.
type Config struct {
	// BatchSize is the number of texts sent in one provider call
	BatchSize int

	// Workers is the number of provider calls in flight
	Workers int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per provider call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      64,
		Workers:        max(runtime.NumCPU()/2, 1),
		ReportInterval: 256,
		MaxRetries:     3,
		RetryDelay:     500 * time.Millisecond,
	}
}

func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.BatchSize <= 0 {
		out.BatchSize = d.BatchSize
	}
	if out.Workers <= 0 {
		out.Workers = d.Workers
	}
	if out.ReportInterval <= 0 {
		out.ReportInterval = d.ReportInterval
	}
	if out.MaxRetries <= 0 {
		out.MaxRetries = d.MaxRetries
	}
	if out.RetryDelay < 0 {
		out.RetryDelay = d.RetryDelay
	}
	return &out
}

// Result is the outcome of embedding a set of documents.
type Result struct {
	// Vectors holds one unit vector per embedded document.
	Vectors [][]float32
	// Positions maps Vectors[i] back to its index in the input.
	Positions []int
	// Skipped lists input indices without usable text.
	Skipped []int
	// Dimension is the vector length, 0 when nothing was embedded.
	Dimension int
}

// BatchEmbedder embeds texts through an ai.Embedder in concurrent batches.
type BatchEmbedder struct {
	embedder ai.Embedder
	config   *Config
	progress io.Writer
	logger   *slog.Logger
}

// Option configures a BatchEmbedder.
type Option func(*BatchEmbedder)

// WithProgress writes a progress line to w while embedding.
func WithProgress(w io.Writer) Option {
	return func(b *BatchEmbedder) {
		b.progress = w
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *BatchEmbedder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBatchEmbedder creates a batch embedder. A nil config uses DefaultConfig.
func NewBatchEmbedder(embedder ai.Embedder, config *Config, opts ...Option) (*BatchEmbedder, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	b := &BatchEmbedder{
		embedder: embedder,
		config:   config.withDefaults(),
		logger:   slog.Default().With("component", "reembed"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// EmbedQuery embeds a single query text and normalizes it. The text is
// cleaned like document text first; a query that cleans to nothing is sent
// as given.
func (b *BatchEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if cleaned := core.PreprocessText(text); cleaned != "" {
		text = cleaned
	}
	var vec []float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		vec, err = b.embedder.EmbedText(ctx, text)
		return err
	}, b.config.MaxRetries, b.config.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingFailure, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", core.ErrEmbeddingFailure)
	}
	return NormalizeVector(vec), nil
}

// EmbedDocuments embeds the documents that carry usable text. Documents
// without usable text are reported in Result.Skipped.
func (b *BatchEmbedder) EmbedDocuments(ctx context.Context, docs []core.DocumentRecord) (*Result, error) {
	res := &Result{}
	var texts []string
	for i := range docs {
		if !core.HasUsableText(&docs[i]) {
			res.Skipped = append(res.Skipped, i)
			continue
		}
		res.Positions = append(res.Positions, i)
		texts = append(texts, core.EmbeddingText(&docs[i]))
	}
	if len(texts) == 0 {
		return res, nil
	}

	vectors, err := b.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}
	res.Vectors = vectors
	res.Dimension = len(vectors[0])
	return res, nil
}

// EmbedTexts embeds texts in order. Every returned vector is normalized and
// all share one dimension; anything else is core.ErrEmbeddingFailure.
func (b *BatchEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	pool, err := ants.NewPool(b.config.Workers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var tracker *ProgressTracker
	if b.progress != nil {
		tracker = NewProgressTracker(b.progress, "Embedding", len(texts), b.config.ReportInterval)
		tracker.Start()
	}

	vectors := make([][]float32, len(texts))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	for lo := 0; lo < len(texts); lo += b.config.BatchSize {
		hi := min(lo+b.config.BatchSize, len(texts))
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			batch, err := b.embedBatch(runCtx, texts[lo:hi])
			if err != nil {
				fail(fmt.Errorf("batch %d-%d: %w", lo, hi, err))
				return
			}
			copy(vectors[lo:hi], batch)
			if tracker != nil {
				tracker.Increment(hi - lo)
			}
		})
		if submitErr != nil {
			wg.Done()
			fail(submitErr)
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingFailure, firstErr)
	}
	if tracker != nil {
		tracker.Finish()
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d values, expected %d",
				core.ErrEmbeddingFailure, i, len(v), dim)
		}
	}
	b.logger.Debug("embedded texts", "count", len(texts), "dimension", dim)
	return vectors, nil
}

func (b *BatchEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = b.embedder.EmbedTexts(ctx, texts)
		return err
	}, b.config.MaxRetries, b.config.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed after %d attempts: %w", b.config.MaxRetries, err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), len(embeddings))
	}
	out := make([][]float32, len(embeddings))
	for i, e := range embeddings {
		out[i] = NormalizeVector(e)
	}
	return out, nil
}
