// Package indexstore owns the lifecycle of the persisted retrieval index:
// the document records, the dense vector matrix and the approximate index
// built over it.
//
// On disk an index directory holds three coupled artifacts:
//
//	meta/         badger store with the records in position order and the metadata
//	vectors.f32   vector matrix, row i belongs to the document at position i
//	index.vpt     approximate index blob, labels are document positions
//
// Files are written through a temporary name and renamed into place; the
// metadata is committed last, so an interrupted write is detected on the next
// Load as a count mismatch and repaired by re-embedding the stored records.
//
// Readers work on an immutable Snapshot. Build, IncrementalUpdate and Rebuild
// are serialized by the Store and publish a new Snapshot when they succeed.
package indexstore
