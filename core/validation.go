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

import (
	"fmt"
	"strings"
)

// ValidateDocument validates a DocumentRecord that is about to be persisted.
//
// Validation rules:
//   - ID must be assigned (non-negative)
//   - Title or Summary must not be blank
//
// NOT validated (free-form from feeds):
//   - Published (may be unparseable; such records sort last by date)
//   - Link (may be empty; the merge engine falls back to a composite key)
func ValidateDocument(doc *DocumentRecord) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.ID < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrNegativeID)
	}

	if strings.TrimSpace(doc.Title) == "" && strings.TrimSpace(doc.Summary) == "" {
		return fmt.Errorf("%w: title and summary are both empty", ErrInvalidDocument)
	}

	return nil
}

// ValidateMetadata validates IndexMetadata read from or written to storage.
func ValidateMetadata(meta *IndexMetadata) error {
	if meta == nil {
		return fmt.Errorf("%w: metadata is nil", ErrInvalidMetadata)
	}

	if meta.Dimension <= 0 {
		return fmt.Errorf("%w: dimension %d", ErrInvalidMetadata, meta.Dimension)
	}

	if meta.DocumentCount < 0 {
		return fmt.Errorf("%w: document count %d", ErrInvalidMetadata, meta.DocumentCount)
	}

	if meta.Capacity < meta.DocumentCount {
		return fmt.Errorf("%w: capacity %d below document count %d", ErrInvalidMetadata, meta.Capacity, meta.DocumentCount)
	}

	if err := ValidateMetric(meta.Metric); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}

	return nil
}
