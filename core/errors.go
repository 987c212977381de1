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

package core

import "errors"

// Retrieval errors. Component operations fail fast with one of these so that
// callers can branch with errors.Is; the serving layer turns them into an
// error payload.
var (
	// ErrNotFitted indicates an exact search was attempted before any vectors were loaded.
	ErrNotFitted = errors.New("baseline not fitted")

	// ErrMissingArtifact indicates an expected persisted file is absent at load.
	ErrMissingArtifact = errors.New("missing index artifact")

	// ErrInconsistentIndex indicates the persisted metadata, vector matrix and
	// index blob disagree on the number of documents.
	ErrInconsistentIndex = errors.New("inconsistent index")

	// ErrUnsupportedMetric indicates an unknown distance metric name.
	ErrUnsupportedMetric = errors.New("unsupported metric")

	// ErrCapacityExceeded indicates vectors were added beyond index capacity.
	ErrCapacityExceeded = errors.New("index capacity exceeded")

	// ErrEmbeddingFailure indicates the embedding provider returned no usable vectors.
	ErrEmbeddingFailure = errors.New("embedding failure")
)

// Domain validation errors
var (
	// ErrInvalidDocument indicates a DocumentRecord failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidMetadata indicates IndexMetadata failed validation.
	ErrInvalidMetadata = errors.New("invalid index metadata")

	// ErrEmptyCorpus indicates no documents survived filtering.
	ErrEmptyCorpus = errors.New("no indexable documents")

	// ErrDimensionMismatch indicates a vector of the wrong length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrNegativeID indicates a document carries an unassigned id.
	ErrNegativeID = errors.New("document id must not be negative")
)
