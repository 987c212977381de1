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

package indexstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/newsrank/ann"
	"github.com/poiesic/newsrank/core"
	"github.com/poiesic/newsrank/merge"
	"github.com/poiesic/newsrank/reembed"
	"github.com/poiesic/newsrank/storage"
	"github.com/poiesic/newsrank/storage/badger"
	"github.com/poiesic/newsrank/storage/vecfile"
)

// Artifact names inside an index directory.
const (
	MetaDir     = "meta"
	VectorsFile = "vectors.f32"
	IndexFile   = "index.vpt"
)

// Capacity defaults.
const (
	DefaultCapacity           = 10000
	DefaultGrowthBuffer       = 256
	DefaultRebuildMinCapacity = 1024
)

// DefaultExactThreshold is the corpus size below which Snapshot.Search
// scans every vector instead of querying the approximate index.
const DefaultExactThreshold = 1000

// Store owns the persisted index under one directory.
type Store struct {
	dir      string
	backend  *badger.Backend
	docs     storage.DocumentRepository
	meta     storage.MetadataRepository
	embedder *reembed.BatchEmbedder
	merger   *merge.Engine
	params   ann.Params
	growth   int
	exact    int
	logger   *slog.Logger

	writeMu sync.Mutex
	current atomic.Pointer[Snapshot]
}

// Option configures a Store.
type Option func(*Store)

// WithEmbedder sets the embedder used for documents. Without one the store
// can load and search but cannot build, update or repair.
func WithEmbedder(embedder *reembed.BatchEmbedder) Option {
	return func(s *Store) {
		s.embedder = embedder
	}
}

// WithParams sets the construction parameters used for new indexes.
func WithParams(params ann.Params) Option {
	return func(s *Store) {
		s.params = params
	}
}

// WithMergeEngine sets the engine used by IncrementalUpdate.
func WithMergeEngine(engine *merge.Engine) Option {
	return func(s *Store) {
		if engine != nil {
			s.merger = engine
		}
	}
}

// WithGrowthBuffer sets the headroom added when capacity has to grow.
func WithGrowthBuffer(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.growth = n
		}
	}
}

// WithExactThreshold sets the corpus size below which searches are exact.
// Zero routes only requests for the whole corpus to the exact scan.
func WithExactThreshold(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.exact = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open opens the store under dir, creating the directory when needed. No
// index is loaded until Load or Build is called.
func Open(dir string, opts ...Option) (*Store, error) {
	backend, err := badger.OpenBackend(filepath.Join(dir, MetaDir), false)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	s := &Store{
		dir:     dir,
		backend: backend,
		docs:    badger.NewDocumentRepository(backend),
		meta:    badger.NewMetadataRepository(backend),
		merger:  merge.New(),
		params:  ann.DefaultParams(),
		growth:  DefaultGrowthBuffer,
		exact:   DefaultExactThreshold,
		logger:  slog.Default().With("component", "indexstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the metadata store. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.backend.IsClosed() {
		return nil
	}
	if err := s.docs.Close(); err != nil {
		s.logger.Error("error closing document repository", "err", err)
		return err
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Dir returns the index directory.
func (s *Store) Dir() string {
	return s.dir
}

// Snapshot returns the current snapshot, or nil before the first
// successful Load or Build.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

func (s *Store) snapshot() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNotLoaded
	}
	return snap, nil
}

func (s *Store) vectorsPath() string {
	return filepath.Join(s.dir, VectorsFile)
}

func (s *Store) indexPath() string {
	return filepath.Join(s.dir, IndexFile)
}

func (s *Store) requireEmbedder() error {
	if s.embedder == nil {
		return reembed.ErrEmbedderRequired
	}
	return nil
}

// newIndex creates an index holding vectors labeled 0..len(vectors)-1.
func (s *Store) newIndex(vectors [][]float32, dim, capacity int, params ann.Params) (ann.Index, error) {
	idx, err := ann.New(dim, capacity, params)
	if err != nil {
		return nil, err
	}
	labels := make([]int, len(vectors))
	for i := range labels {
		labels[i] = i
	}
	start := time.Now()
	if err := idx.Add(vectors, labels); err != nil {
		return nil, fmt.Errorf("add vectors: %w", err)
	}
	s.logger.Info("built approximate index",
		"vectors", len(vectors), "capacity", capacity, "elapsed", time.Since(start))
	return idx, nil
}

// persistAll replaces every stored artifact with the given state.
func (s *Store) persistAll(ctx context.Context, docs []core.DocumentRecord, vectors [][]float32, idx ann.Index, meta *core.IndexMetadata) error {
	if err := s.writeArtifacts(vectors, idx, meta.Dimension); err != nil {
		return err
	}
	if err := s.docs.ReplaceDocuments(ctx, docs); err != nil {
		return fmt.Errorf("store documents: %w", err)
	}
	if err := s.meta.SaveMetadata(ctx, meta); err != nil {
		return fmt.Errorf("store metadata: %w", err)
	}
	return nil
}

func (s *Store) writeArtifacts(vectors [][]float32, idx ann.Index, dim int) error {
	if err := vecfile.Write(s.vectorsPath(), vectors, dim); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	if err := idx.Save(s.indexPath()); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

func (s *Store) publish(docs []core.DocumentRecord, vectors [][]float32, idx ann.Index, meta core.IndexMetadata) *Snapshot {
	snap := newSnapshot(docs, vectors, idx, meta, s.exact)
	s.current.Store(snap)
	return snap
}

// recoverable reports whether a load failure can be repaired from the
// stored records.
func recoverable(err error) bool {
	return errors.Is(err, core.ErrMissingArtifact) ||
		errors.Is(err, core.ErrInconsistentIndex) ||
		errors.Is(err, storage.ErrTruncatedData)
}
