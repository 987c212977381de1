// Package ann defines the approximate nearest-neighbor capability used by the
// index store and a vantage-point tree implementation of it.
//
// Vectors are identified by integer labels, the position of the owning
// document in the corpus. The index only supports addition: labels are never
// removed or reassigned. Capacity is a soft ceiling enforced by the index;
// Resize raises it in place.
//
// The tree partitions points by their distance to a vantage point and prunes
// subtrees with the triangle inequality. Cosine indexes are built over unit
// vectors, where Euclidean order equals cosine order, so an unbounded search
// is exact. A positive search breadth trades recall for fewer visited nodes.
// Points added after the last build are scanned linearly until they make up
// a quarter of the tree, which triggers a rebuild.
package ann
