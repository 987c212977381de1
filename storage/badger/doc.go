// Package badger implements the storage repositories on BadgerDB.
//
// Keys:
//
//	docrec:<position uint64 BE>  document record (MUS encoded)
//	doclnk:<blake2b-64(link) BE> position of the record carrying the link
//	idxmeta                      index metadata (MUS encoded)
package badger
