package indexstore

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/newsrank/ann"
	"github.com/poiesic/newsrank/core"
)

// BuildResult reports what a Build or Rebuild indexed.
type BuildResult struct {
	Documents  int
	Duplicates int
	Skipped    int
	Capacity   int
	Dimension  int
}

// Build indexes docs from scratch and replaces whatever the directory held.
// Incoming records sharing a link keep the first occurrence; records without
// usable text are discarded. A non-positive capacity means DefaultCapacity,
// and a capacity below the document count is raised to fit. When no record
// survives, Build fails with core.ErrEmptyCorpus and the previous state is
// left untouched. Kept records are renumbered: the ID of each becomes its
// position, whatever ID it arrived with.
func (s *Store) Build(ctx context.Context, docs []core.DocumentRecord, capacity int, params ann.Params) (*BuildResult, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return s.build(ctx, docs, capacity, params)
}

// Rebuild re-embeds and re-indexes docs. It is required whenever the text
// of already indexed records changes. A non-positive capacity means
// max(len(docs)+growth buffer, DefaultRebuildMinCapacity). The parameters of
// the current index are kept.
func (s *Store) Rebuild(ctx context.Context, docs []core.DocumentRecord, capacity int) (*BuildResult, error) {
	if capacity <= 0 {
		capacity = max(len(docs)+s.growth, DefaultRebuildMinCapacity)
	}
	params := s.params
	if snap := s.current.Load(); snap != nil {
		params.Metric = snap.meta.Metric
	}
	return s.build(ctx, docs, capacity, params)
}

func (s *Store) build(ctx context.Context, docs []core.DocumentRecord, capacity int, params ann.Params) (*BuildResult, error) {
	if err := s.requireEmbedder(); err != nil {
		return nil, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	unique, duplicates := s.dedupe(docs)

	res, err := s.embedder.EmbedDocuments(ctx, unique)
	if err != nil {
		return nil, err
	}
	if len(res.Vectors) == 0 {
		s.logger.Warn("no documents with usable text, index left unchanged",
			"input", len(docs), "skipped", len(res.Skipped))
		return nil, fmt.Errorf("%w: %d input documents", core.ErrEmptyCorpus, len(docs))
	}

	kept := make([]core.DocumentRecord, len(res.Positions))
	for i, pos := range res.Positions {
		kept[i] = unique[pos]
		kept[i].ID = int64(i)
	}
	if capacity < len(kept) {
		s.logger.Warn("capacity raised to fit documents", "requested", capacity, "documents", len(kept))
		capacity = len(kept) + s.growth
	}

	idx, err := s.newIndex(res.Vectors, res.Dimension, capacity, params)
	if err != nil {
		return nil, err
	}
	meta := core.IndexMetadata{
		Dimension:      res.Dimension,
		DocumentCount:  len(kept),
		Capacity:       capacity,
		Metric:         idx.Metric(),
		BuildTimestamp: time.Now(),
	}
	if err := s.persistAll(ctx, kept, res.Vectors, idx, &meta); err != nil {
		return nil, err
	}
	s.params = params
	s.publish(kept, res.Vectors, idx, meta)

	s.logger.Info("index built",
		"documents", len(kept), "duplicates", duplicates, "skipped", len(res.Skipped),
		"dimension", res.Dimension, "capacity", capacity, "metric", meta.Metric)
	return &BuildResult{
		Documents:  len(kept),
		Duplicates: duplicates,
		Skipped:    len(res.Skipped),
		Capacity:   capacity,
		Dimension:  res.Dimension,
	}, nil
}

// dedupe normalizes docs and drops later records whose link was already seen.
func (s *Store) dedupe(docs []core.DocumentRecord) ([]core.DocumentRecord, int) {
	seen := make(map[string]struct{}, len(docs))
	out := make([]core.DocumentRecord, 0, len(docs))
	duplicates := 0
	for _, raw := range docs {
		doc := s.merger.Normalize(raw)
		if doc.Link != "" {
			if _, dup := seen[doc.Link]; dup {
				duplicates++
				continue
			}
			seen[doc.Link] = struct{}{}
		}
		out = append(out, doc)
	}
	return out, duplicates
}
