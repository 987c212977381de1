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

package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/newsrank/core"
	"github.com/poiesic/newsrank/merge"
)

// maxLineSize bounds one JSONL line.
const maxLineSize = 16 << 20

// Loader decodes article files.
type Loader struct {
	poolSize int
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader) error

// WithPoolSize sets the number of files decoded concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(l *Loader) error {
		if size < 1 {
			size = 1
		}
		l.poolSize = size
		return nil
	}
}

// WithClock sets the time source used for missing crawl times.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) error {
		if now != nil {
			l.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) error {
		if logger == nil {
			logger = slog.Default()
		}
		l.logger = logger
		return nil
	}
}

// NewLoader creates a loader.
func NewLoader(opts ...Option) (*Loader, error) {
	l := &Loader{
		poolSize: max(runtime.NumCPU()/2, 1),
		now:      time.Now,
		logger:   slog.Default().With("component", "ingestion"),
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// LoadFile reads the articles in path with a default Loader.
func LoadFile(path string) ([]core.DocumentRecord, error) {
	l, err := NewLoader()
	if err != nil {
		return nil, err
	}
	return l.LoadFile(path)
}

// LoadFiles reads every path with a default Loader and concatenates the
// results in argument order.
func LoadFiles(ctx context.Context, paths ...string) ([]core.DocumentRecord, error) {
	l, err := NewLoader()
	if err != nil {
		return nil, err
	}
	return l.LoadFiles(ctx, paths...)
}

// LoadFile reads the articles in path.
func (l *Loader) LoadFile(path string) ([]core.DocumentRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	docs, err := l.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	l.logger.Debug("loaded articles", "path", path, "count", len(docs))
	return docs, nil
}

// LoadFiles reads every path concurrently and concatenates the results in
// argument order. The first failure cancels the remaining files.
func (l *Loader) LoadFiles(ctx context.Context, paths ...string) ([]core.DocumentRecord, error) {
	if len(paths) == 0 {
		return nil, ErrNoInput
	}

	pool, err := ants.NewPool(min(l.poolSize, len(paths)))
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][]core.DocumentRecord, len(paths))
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i, path := range paths {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if runCtx.Err() != nil {
				return
			}
			docs, err := l.LoadFile(path)
			if err != nil {
				fail(err)
				return
			}
			results[i] = docs
		})
		if err != nil {
			wg.Done()
			fail(err)
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []core.DocumentRecord
	for _, docs := range results {
		out = append(out, docs...)
	}
	l.logger.Info("loaded input files", "files", len(paths), "articles", len(out))
	return out, nil
}

// Decode reads articles from r in any accepted format.
func (l *Loader) Decode(r io.Reader) ([]core.DocumentRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var raws []rawArticle
	switch data[0] {
	case '[':
		if err := unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
		}
	case '{':
		raws, err = decodeObjects(data)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: expected a JSON list or object", ErrMalformedInput)
	}

	now := l.now()
	docs := make([]core.DocumentRecord, 0, len(raws))
	for _, raw := range raws {
		if raw == nil {
			continue
		}
		docs = append(docs, merge.Normalize(raw.record(), now))
	}
	return docs, nil
}

// decodeObjects reads a single object, an {"articles": [...]} wrapper, or
// one object per line.
func decodeObjects(data []byte) ([]rawArticle, error) {
	var single rawArticle
	if err := unmarshal(data, &single); err == nil {
		if list, ok := single["articles"]; ok {
			return wrapped(list)
		}
		return []rawArticle{single}, nil
	}

	var out []rawArticle
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		var raw rawArticle
		if err := unmarshal(text, &raw); err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedInput, line, err)
		}
		out = append(out, raw)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	return out, nil
}

func wrapped(list any) ([]rawArticle, error) {
	items, ok := list.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: \"articles\" is not a list", ErrMalformedInput)
	}
	out := make([]rawArticle, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: article %d is not an object", ErrMalformedInput, i)
		}
		out = append(out, rawArticle(obj))
	}
	return out, nil
}

// unmarshal decodes data keeping numbers verbatim, so epoch timestamps are
// not rendered in exponent form.
func unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON value")
	}
	return nil
}
