package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/newsrank/core"
	"github.com/poiesic/newsrank/storage"
)

type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

func NewDocumentRepository(backend *Backend) *DocumentRepository {
	return &DocumentRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend owns the database handle.
func (r *DocumentRepository) Close() error {
	return nil
}

func (r *DocumentRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// ReplaceDocuments validates every record before the old ones are dropped.
func (r *DocumentRepository) ReplaceDocuments(ctx context.Context, docs []core.DocumentRecord) error {
	for pos := range docs {
		if err := core.ValidateDocument(&docs[pos]); err != nil {
			return fmt.Errorf("position %d: %w", pos, err)
		}
	}
	if err := r.backend.dropPrefixes([]byte(documentPrefix), []byte(linkPrefix)); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	return r.backend.withSplitWriter(func(w *splitWriter) error {
		for pos := range docs {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc := &docs[pos]
			if err := w.Set(makeDocumentKey(pos), storage.MarshalDocumentRecord(doc)); err != nil {
				return err
			}
			if doc.Link != "" {
				if err := w.Set(makeLinkKey(doc.Link), storage.MarshalPosition(pos)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (r *DocumentRepository) PutDocuments(ctx context.Context, entries ...storage.Entry) error {
	for i := range entries {
		if entries[i].Position < 0 {
			return fmt.Errorf("%w: %d", storage.ErrInvalidPosition, entries[i].Position)
		}
		if err := core.ValidateDocument(&entries[i].Record); err != nil {
			return fmt.Errorf("position %d: %w", entries[i].Position, err)
		}
	}
	return r.backend.withSplitWriter(func(w *splitWriter) error {
		for i := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			e := &entries[i]
			key := makeDocumentKey(e.Position)

			old, err := readDocument(w.Get, key)
			if err != nil {
				return err
			}
			if old != nil && old.Link != "" && old.Link != e.Record.Link {
				if err := r.unlink(w, old.Link, e.Position); err != nil {
					return err
				}
			}

			if err := w.Set(key, storage.MarshalDocumentRecord(&e.Record)); err != nil {
				return err
			}
			if e.Record.Link != "" {
				if err := w.Set(makeLinkKey(e.Record.Link), storage.MarshalPosition(e.Position)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// unlink removes the link entry for link if it still points at pos.
func (r *DocumentRepository) unlink(w *splitWriter, link string, pos int) error {
	key := makeLinkKey(link)
	item, err := w.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var current int
	if err := item.Value(func(val []byte) error {
		var err error
		current, err = storage.UnmarshalPosition(val)
		return err
	}); err != nil {
		return err
	}
	if current != pos {
		return nil
	}
	return w.Delete(key)
}

func (r *DocumentRepository) ListDocuments(ctx context.Context) ([]core.DocumentRecord, error) {
	var docs []core.DocumentRecord
	err := r.ForEachBatch(ctx, 1024, func(_ int, batch []core.DocumentRecord) error {
		docs = append(docs, batch...)
		return nil
	})
	return docs, err
}

func (r *DocumentRepository) ForEachBatch(ctx context.Context, batchSize int, fn func(start int, docs []core.DocumentRecord) error) error {
	if batchSize <= 0 {
		batchSize = 1
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		batch := make([]core.DocumentRecord, 0, batchSize)
		start := 0
		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			pos := positionFromDocumentKey(item.Key())
			if pos != start+len(batch) {
				return fmt.Errorf("%w: gap before position %d", core.ErrInconsistentIndex, pos)
			}

			var doc *core.DocumentRecord
			if err := item.Value(func(val []byte) error {
				var err error
				doc, err = storage.UnmarshalDocumentRecord(val)
				return err
			}); err != nil {
				return err
			}
			batch = append(batch, *doc)

			if len(batch) == batchSize {
				if err := fn(start, batch); err != nil {
					return err
				}
				start += len(batch)
				batch = make([]core.DocumentRecord, 0, batchSize)
			}
		}
		if len(batch) > 0 {
			return fn(start, batch)
		}
		return nil
	}, false)
}

func (r *DocumentRepository) FindByLink(ctx context.Context, link string) (int, error) {
	if link == "" {
		return 0, storage.ErrNotFound
	}
	pos := -1
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeLinkKey(link))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var candidate int
		if err := item.Value(func(val []byte) error {
			var err error
			candidate, err = storage.UnmarshalPosition(val)
			return err
		}); err != nil {
			return err
		}

		// Link keys are digests; confirm the stored record carries the link.
		doc, err := readDocument(tx.Get, makeDocumentKey(candidate))
		if err != nil {
			return err
		}
		if doc != nil && doc.Link == link {
			pos = candidate
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	if pos < 0 {
		return 0, storage.ErrNotFound
	}
	return pos, nil
}

func (r *DocumentRepository) CountDocuments(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// readDocument returns nil without error when key is absent.
func readDocument(get func([]byte) (*badger.Item, error), key []byte) (*core.DocumentRecord, error) {
	item, err := get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var doc *core.DocumentRecord
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		doc, unmarshalErr = storage.UnmarshalDocumentRecord(val)
		return unmarshalErr
	})
	return doc, err
}
