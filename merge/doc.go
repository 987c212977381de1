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

// Package merge reconciles document collections across ingestion batches.
//
// Records are matched by link when one is present and by the trimmed
// (title, source, published, category) tuple otherwise. A match keeps the
// existing id and position and is enriched with the incoming values; an
// unmatched record is appended with the next id.
//
// Two documents without links that share all four fallback fields are
// treated as the same story, which also merges verbatim syndicated copies.
package merge
