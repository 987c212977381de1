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

// Package baseline provides exact k-nearest-neighbor search over an
// in-memory vector set.
//
// A Baseline is the ground truth against which approximate search is
// measured, and a fallback for corpora small enough to scan. Two query
// strategies are available: a bounded max-heap scan that touches one row at
// a time, and a vectorized pass that computes every distance from a single
// matrix-vector product and then selects the top k. MethodAuto chooses
// between them from k and the corpus size.
package baseline
