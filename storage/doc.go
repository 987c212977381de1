// Package storage defines persistence interfaces for the document corpus and
// index metadata, together with the binary encoding of stored values.
//
// Documents are addressed by position, the label of their vector in the
// approximate index. Positions are dense and never reused; a record is only
// ever overwritten with an enriched copy of itself.
package storage
