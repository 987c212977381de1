package indexstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/newsrank/core"
	"github.com/poiesic/newsrank/storage"
)

// UpdateResult reports the outcome of IncrementalUpdate.
type UpdateResult struct {
	// Added is the number of records appended to the index.
	Added int
	// Duplicates is the number of incoming records merged into known ones.
	Duplicates int
	// Embedded is the number of vectors generated.
	Embedded int
	// Skipped is the number of new records dropped for lack of usable text.
	Skipped int
	// Resized is set when the index capacity had to grow.
	Resized bool
	// Capacity is the index capacity after the update.
	Capacity int
}

// IncrementalUpdate merges docs into the loaded index. Only records with no
// known counterpart are embedded and appended, labeled from the prior
// document count on. Known records are enriched in place and keep their
// vectors. New records without usable text are dropped. When every incoming
// record is known, only the records and metadata are written.
func (s *Store) IncrementalUpdate(ctx context.Context, docs []core.DocumentRecord) (*UpdateResult, error) {
	if err := s.requireEmbedder(); err != nil {
		return nil, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	base := len(cur.docs)
	merged := s.merger.Merge(cur.docs, docs)
	out := &UpdateResult{
		Duplicates: merged.Duplicates,
		Capacity:   cur.index.Capacity(),
	}

	enriched := make([]storage.Entry, 0, len(merged.EnrichedPositions))
	for _, pos := range merged.EnrichedPositions {
		enriched = append(enriched, storage.Entry{Position: pos, Record: merged.Documents[pos]})
	}

	if merged.Added == 0 {
		if err := s.enrichOnly(ctx, cur, merged.Documents, enriched); err != nil {
			return nil, err
		}
		s.logger.Info("no new documents, records enriched", "duplicates", merged.Duplicates, "enriched", len(enriched))
		return out, nil
	}

	appended := merged.Documents[base:]
	res, err := s.embedder.EmbedDocuments(ctx, appended)
	if err != nil {
		return nil, err
	}
	out.Skipped = len(res.Skipped)
	if len(res.Skipped) > 0 {
		s.logger.Warn("dropping new documents without usable text", "count", len(res.Skipped))
	}

	all := make([]core.DocumentRecord, base, base+len(res.Positions))
	copy(all, merged.Documents[:base])
	nextID := maxID(cur.docs) + 1
	for i, pos := range res.Positions {
		doc := appended[pos]
		doc.ID = nextID + int64(i)
		all = append(all, doc)
	}
	if len(res.Vectors) == 0 {
		if err := s.enrichOnly(ctx, cur, all, enriched); err != nil {
			return nil, err
		}
		return out, nil
	}
	if res.Dimension != cur.meta.Dimension {
		return nil, fmt.Errorf("%w: embedder returned %d values, index holds %d",
			core.ErrDimensionMismatch, res.Dimension, cur.meta.Dimension)
	}
	if err := s.checkNewLinks(ctx, all[base:]); err != nil {
		return nil, err
	}

	idx, err := cur.index.Clone()
	if err != nil {
		return nil, err
	}
	total := idx.Len() + len(res.Vectors)
	if total > idx.Capacity() {
		capacity := total + s.growth
		if err := idx.Resize(capacity); err != nil {
			return nil, err
		}
		out.Resized = true
		s.logger.Info("index capacity raised", "from", cur.index.Capacity(), "to", capacity)
	}
	labels := make([]int, len(res.Vectors))
	for i := range labels {
		labels[i] = base + i
	}
	if err := idx.Add(res.Vectors, labels); err != nil {
		return nil, fmt.Errorf("add vectors: %w", err)
	}

	vectors := append(cur.vectors[:base:base], res.Vectors...)
	meta := core.IndexMetadata{
		Dimension:      cur.meta.Dimension,
		DocumentCount:  len(all),
		Capacity:       idx.Capacity(),
		Metric:         cur.meta.Metric,
		BuildTimestamp: time.Now(),
	}

	entries := enriched
	for pos := base; pos < len(all); pos++ {
		entries = append(entries, storage.Entry{Position: pos, Record: all[pos]})
	}
	if err := s.writeArtifacts(vectors, idx, meta.Dimension); err != nil {
		return nil, err
	}
	if err := s.docs.PutDocuments(ctx, entries...); err != nil {
		return nil, fmt.Errorf("store documents: %w", err)
	}
	if err := s.meta.SaveMetadata(ctx, &meta); err != nil {
		return nil, fmt.Errorf("store metadata: %w", err)
	}
	s.publish(all, vectors, idx, meta)

	out.Added = len(res.Vectors)
	out.Embedded = len(res.Vectors)
	out.Capacity = idx.Capacity()
	s.logger.Info("index updated",
		"added", out.Added, "duplicates", out.Duplicates, "skipped", out.Skipped,
		"documents", len(all), "capacity", out.Capacity)
	return out, nil
}

// enrichOnly writes enriched records and refreshed metadata, keeping the
// vectors and index of cur.
func (s *Store) enrichOnly(ctx context.Context, cur *Snapshot, all []core.DocumentRecord, enriched []storage.Entry) error {
	meta := cur.meta
	meta.BuildTimestamp = time.Now()
	if err := s.docs.PutDocuments(ctx, enriched...); err != nil {
		return fmt.Errorf("store documents: %w", err)
	}
	if err := s.meta.SaveMetadata(ctx, &meta); err != nil {
		return fmt.Errorf("store metadata: %w", err)
	}
	s.publish(all, cur.vectors, cur.index, meta)
	return nil
}

// checkNewLinks fails when a record about to be appended carries a link the
// store already holds. The merge only sees the published snapshot, so this
// catches records written behind its back.
func (s *Store) checkNewLinks(ctx context.Context, docs []core.DocumentRecord) error {
	for i := range docs {
		if docs[i].Link == "" {
			continue
		}
		pos, err := s.docs.FindByLink(ctx, docs[i].Link)
		switch {
		case err == nil:
			return fmt.Errorf("%w: link %s already stored at position %d",
				core.ErrInconsistentIndex, docs[i].Link, pos)
		case !errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("look up link: %w", err)
		}
	}
	return nil
}

func maxID(docs []core.DocumentRecord) int64 {
	id := core.IDUnassigned
	for i := range docs {
		id = max(id, docs[i].ID)
	}
	return id
}
