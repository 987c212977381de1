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

// Package search implements hybrid retrieval over a loaded news index.
//
// A request runs through a fixed pipeline: the query is analyzed for a named
// source, semantic candidates come from the approximate vector index and
// keyword candidates from the BM25 index, the two score sets are min-max
// normalized and fused with fixed weights, weak candidates are dropped, and the
// survivors are sorted by relevance or publish date and projected into
// display records.
//
// The Ranker holds no index state. Every call receives the corpus and keyword
// scorer to read, so callers can hand it an immutable snapshot while a new one
// is being built.
package search
