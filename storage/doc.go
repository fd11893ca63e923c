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

// Package storage provides the storage abstraction layer for scriptorium.
//
// This package defines repository interfaces that decouple storage implementation
// from the processing pipeline. Backends live in sub-packages:
//
//   - storage/badger: BadgerDB implementation of every repository
//   - storage/gcs: Google Cloud Storage implementation of BlobStore
//
// # Constructor Return Type Pattern
//
// Backend constructors return concrete types that assert the interfaces they
// implement at compile time, so callers can reach backend-only methods
// (Close, Backend) while the pipeline depends only on the interfaces:
//
//	docs, err := badger.NewDocumentRepository(backend)  // *badger.DocumentRepository
//	var _ storage.DocumentRepository = docs
//
// # Architecture
//
//   - DocumentRepository: the document state store, with compare-and-swap status updates
//     and stage leases
//   - ChunkRepository: chunks produced by the indexing stage
//   - VectorIndex: upsert, delete and query of embedded chunks
//   - EntryRepository: raw vector entry access for maintenance jobs
//   - GraphStore: typed nodes and edges with per-document provenance
//   - BlobStore: raw page images
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// Use in tests with in-memory storage:
//
//	stores, err := badger.NewMemoryStores(embedder)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer stores.Close()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
