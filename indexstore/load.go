package indexstore

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/newsrank/ann"
	"github.com/poiesic/newsrank/core"
	"github.com/poiesic/newsrank/reembed"
	"github.com/poiesic/newsrank/storage/vecfile"
)

// reembedBatchSize is the number of stored records read per chunk when
// repairing an index.
const reembedBatchSize = 1024

// Load reads the persisted index and publishes it. The metadata, vector
// matrix and index must agree on the document count. When they do not, or a
// vector or index file is missing, the vectors are regenerated from the
// stored records if an embedder is configured; otherwise Load fails with
// core.ErrInconsistentIndex or core.ErrMissingArtifact. The query breadth is
// reset to the configured search breadth.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	meta, err := s.meta.LoadMetadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: %w: no metadata in %s", ErrNoIndex, core.ErrMissingArtifact, s.dir)
	}
	docCount, err := s.docs.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	params := s.params
	params.Metric = meta.Metric

	vectors, idx, err := s.readArtifacts(meta, docCount, params)
	if err != nil {
		if !recoverable(err) || s.embedder == nil {
			return nil, err
		}
		s.logger.Warn("persisted index unusable, re-embedding stored documents", "err", err)
		return s.repair(ctx, meta, params)
	}
	docs, err := s.docs.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}

	idx.SetSearchBreadth(params.SearchBreadth)
	s.params = params
	snap := s.publish(docs, vectors, idx, *meta)
	s.logger.Info("index loaded",
		"documents", len(docs), "dimension", meta.Dimension, "capacity", idx.Capacity(),
		"metric", meta.Metric, "built", meta.BuildTimestamp.Format(time.RFC3339))
	return snap, nil
}

func (s *Store) readArtifacts(meta *core.IndexMetadata, docCount int, params ann.Params) ([][]float32, ann.Index, error) {
	vectors, dim, err := vecfile.Read(s.vectorsPath())
	if err != nil {
		return nil, nil, err
	}
	idx, err := ann.Load(s.indexPath(), meta.Capacity, params)
	if err != nil {
		return nil, nil, err
	}

	if meta.DocumentCount != docCount || docCount != len(vectors) || len(vectors) != idx.Len() {
		return nil, nil, fmt.Errorf("%w: metadata=%d records=%d vectors=%d indexed=%d",
			core.ErrInconsistentIndex, meta.DocumentCount, docCount, len(vectors), idx.Len())
	}
	if dim != meta.Dimension || idx.Dimension() != meta.Dimension {
		return nil, nil, fmt.Errorf("%w: metadata dimension %d, vectors %d, index %d",
			core.ErrInconsistentIndex, meta.Dimension, dim, idx.Dimension())
	}
	return vectors, idx, nil
}

// repair regenerates vectors and index from the stored records, persists
// them and publishes the result.
func (s *Store) repair(ctx context.Context, prior *core.IndexMetadata, params ann.Params) (*Snapshot, error) {
	docs, vectors, err := reembed.NewReembedder(s.docs, s.embedder, reembedBatchSize).Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("repair index: %w", err)
	}
	dim := len(vectors[0])
	capacity := max(prior.Capacity, len(docs)+s.growth)

	idx, err := s.newIndex(vectors, dim, capacity, params)
	if err != nil {
		return nil, err
	}
	meta := core.IndexMetadata{
		Dimension:      dim,
		DocumentCount:  len(docs),
		Capacity:       capacity,
		Metric:         params.Metric,
		BuildTimestamp: time.Now(),
	}
	if err := s.writeArtifacts(vectors, idx, dim); err != nil {
		return nil, err
	}
	if err := s.meta.SaveMetadata(ctx, &meta); err != nil {
		return nil, fmt.Errorf("store metadata: %w", err)
	}

	idx.SetSearchBreadth(params.SearchBreadth)
	s.params = params
	s.logger.Info("index repaired", "documents", len(docs), "dimension", dim, "capacity", capacity)
	return s.publish(docs, vectors, idx, meta), nil
}
