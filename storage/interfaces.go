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

package storage

import (
	"context"

	"github.com/poiesic/newsrank/core"
)

// Entry is a document record together with its corpus position.
type Entry struct {
	Position int
	Record   core.DocumentRecord
}

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close releases resources held by the repository.
	Close() error
}

// DocumentRepository stores document records by position and maintains a
// link index over them.
type DocumentRepository interface {
	Repository

	// ReplaceDocuments removes every stored record and writes docs at
	// positions 0..len(docs)-1. Nothing is removed when a record fails
	// core.ValidateDocument.
	ReplaceDocuments(ctx context.Context, docs []core.DocumentRecord) error

	// PutDocuments creates or overwrites records at the given positions.
	// The link index follows link changes. Every record must pass
	// core.ValidateDocument before any is written.
	PutDocuments(ctx context.Context, entries ...Entry) error

	// ListDocuments returns every record in position order.
	ListDocuments(ctx context.Context) ([]core.DocumentRecord, error)

	// ForEachBatch calls fn with consecutive runs of at most batchSize
	// records in position order. start is the position of docs[0].
	ForEachBatch(ctx context.Context, batchSize int, fn func(start int, docs []core.DocumentRecord) error) error

	// FindByLink returns the position of the record carrying link.
	// Returns ErrNotFound if no record has that link.
	FindByLink(ctx context.Context, link string) (int, error)

	// CountDocuments returns the number of stored records.
	CountDocuments(ctx context.Context) (int, error)
}

// MetadataRepository stores the single IndexMetadata value describing the
// persisted index.
type MetadataRepository interface {
	// SaveMetadata writes meta, replacing any previous value.
	SaveMetadata(ctx context.Context, meta *core.IndexMetadata) error

	// LoadMetadata returns the stored metadata, or nil when none was saved.
	LoadMetadata(ctx context.Context) (*core.IndexMetadata, error)
}
