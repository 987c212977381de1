// Package keyword implements the sparse lexical scorer: an inverted index
// over document titles and summaries ranked with BM25.
//
// An Index is built from the full corpus and is immutable afterwards; a
// corpus change means building a new Index. Positions in postings are corpus
// positions, the same labels the vector index uses.
package keyword
