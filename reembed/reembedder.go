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

	"github.com/poiesic/newsrank/core"
	"github.com/poiesic/newsrank/storage"
)

// Reembedder regenerates the vectors of every stored document.
type Reembedder struct {
	repo      storage.DocumentRepository
	embedder  *BatchEmbedder
	batchSize int
}

// NewReembedder creates a reembedder reading repo in chunks of batchSize.
func NewReembedder(repo storage.DocumentRepository, embedder *BatchEmbedder, batchSize int) *Reembedder {
	if batchSize <= 0 {
		batchSize = 1024
	}
	return &Reembedder{
		repo:      repo,
		embedder:  embedder,
		batchSize: batchSize,
	}
}

// Run returns the stored documents in position order with one vector per
// document. A stored document without usable text breaks the one vector per
// position rule and fails with core.ErrInconsistentIndex.
func (r *Reembedder) Run(ctx context.Context) ([]core.DocumentRecord, [][]float32, error) {
	var docs []core.DocumentRecord
	err := r.repo.ForEachBatch(ctx, r.batchSize, func(_ int, batch []core.DocumentRecord) error {
		docs = append(docs, batch...)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("read stored documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil, core.ErrEmptyCorpus
	}

	r.embedder.logger.Info("re-embedding stored documents", "count", len(docs))
	res, err := r.embedder.EmbedDocuments(ctx, docs)
	if err != nil {
		return nil, nil, err
	}
	if len(res.Skipped) > 0 {
		return nil, nil, fmt.Errorf("%w: %d stored documents have no usable text (first at position %d)",
			core.ErrInconsistentIndex, len(res.Skipped), res.Skipped[0])
	}
	return docs, res.Vectors, nil
}
