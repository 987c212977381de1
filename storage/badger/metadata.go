package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/newsrank/core"
	"github.com/poiesic/newsrank/storage"
)

type MetadataRepository struct {
	backend *Backend
}

var _ storage.MetadataRepository = (*MetadataRepository)(nil)

func NewMetadataRepository(backend *Backend) *MetadataRepository {
	return &MetadataRepository{
		backend: backend,
	}
}

func (r *MetadataRepository) SaveMetadata(ctx context.Context, meta *core.IndexMetadata) error {
	if err := core.ValidateMetadata(meta); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set([]byte(metadataKey), storage.MarshalIndexMetadata(meta)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

func (r *MetadataRepository) LoadMetadata(ctx context.Context) (*core.IndexMetadata, error) {
	var meta *core.IndexMetadata
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(metadataKey))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			meta, unmarshalErr = storage.UnmarshalIndexMetadata(val)
			return unmarshalErr
		})
	}, false)

	return meta, err
}
