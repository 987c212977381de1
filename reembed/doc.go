// Package reembed turns document records into embedding vectors in batches.
//
// Batches are sent to the embedding provider concurrently on a worker pool,
// each call retried with exponential backoff. Vectors are normalized to unit
// length so cosine and dot-product rankings agree. A Reembedder regenerates
// the vectors of every stored record, which is how an index whose vector
// artifacts are lost or inconsistent is recovered.
package reembed
