package badger

import "github.com/poiesic/newsrank/storage"

// NewMemoryRepositories opens an in-memory backend and the repositories on
// top of it. Closing the backend releases everything.
func NewMemoryRepositories() (storage.DocumentRepository, storage.MetadataRepository, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}
	return NewDocumentRepository(backend), NewMetadataRepository(backend), backend, nil
}
