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

package storage

import (
	"context"
	"time"

	"github.com/poiesic/scriptorium/core"
)

// DocumentFilter narrows a document listing.
type DocumentFilter struct {
	// Statuses restricts the listing to documents in one of these statuses.
	// Empty means every status.
	Statuses []core.Status
}

// Matches reports whether the document passes the filter.
func (f DocumentFilter) Matches(doc *core.Document) bool {
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if doc.Status == s {
			return true
		}
	}
	return false
}

// DocumentRepository is the Document State Store. It is the only place a
// document's status changes, and every change is a compare-and-swap.
// Implementations must be thread-safe and support concurrent access.
type DocumentRepository interface {
	// Create stores a new document and returns its ID.
	// Returns ErrDuplicateKey if a document with the same ID exists.
	Create(ctx context.Context, doc *core.Document) (core.ID, error)

	// Get retrieves a document by ID.
	// Returns core.ErrNotFound if the document doesn't exist.
	Get(ctx context.Context, id core.ID) (*core.Document, error)

	// UpdateStatus moves a document from one status to another and drops
	// any lease on it. Returns core.ErrConflict, without changing anything,
	// when the stored status is not from. Returns core.ErrInvalidTransition
	// when the state machine forbids from -> to.
	UpdateStatus(ctx context.Context, id core.ID, from, to core.Status) (*core.Document, error)

	// Claim is UpdateStatus that also leases the document to the run
	// identified by token.
	Claim(ctx context.Context, id core.ID, from, to core.Status, token string) (*core.Document, error)

	// Renew refreshes the heartbeat of the lease held by token.
	// Returns core.ErrConflict when token no longer holds the document.
	Renew(ctx context.Context, id core.ID, token string) error

	// Release moves a document leased to token to status to and drops the
	// lease. Returns core.ErrConflict when token no longer holds it.
	Release(ctx context.Context, id core.ID, token string, to core.Status) (*core.Document, error)

	// Fail moves a document leased to token to FAILED and records the
	// failure. Same conflict semantics as Release.
	Fail(ctx context.Context, id core.ID, token string, failure core.Failure) (*core.Document, error)

	// Expire moves a document from an in-progress status back to to when its
	// lease is missing or has not been renewed within timeout.
	// Returns core.ErrConflict when a live run still holds it.
	Expire(ctx context.Context, id core.ID, from, to core.Status, timeout time.Duration) (*core.Document, error)

	// Update applies fn to the stored document while its status is expect.
	// fn must not change the status; the change is rejected with
	// core.ErrInvalidTransition if it does.
	Update(ctx context.Context, id core.ID, expect core.Status, fn func(doc *core.Document) error) (*core.Document, error)

	// AppendArtifact records an artifact reference on the document.
	AppendArtifact(ctx context.Context, id core.ID, kind, ref string) error

	// List returns documents ordered by upload time, oldest first.
	List(ctx context.Context, filter DocumentFilter) ([]*core.Document, error)

	// Delete removes the document record.
	// Returns core.ErrNotFound if the document doesn't exist.
	Delete(ctx context.Context, id core.ID) error
}

// ChunkRepository stores the chunks produced by the indexing stage.
type ChunkRepository interface {
	// Replace deletes every chunk of the document and stores chunks instead.
	Replace(ctx context.Context, documentID core.ID, chunks []*core.Chunk) error

	// Get retrieves a chunk by ID.
	// Returns core.ErrNotFound if the chunk doesn't exist.
	Get(ctx context.Context, id core.ChunkID) (*core.Chunk, error)

	// ListByDocument returns the chunks of a document in ordinal order.
	ListByDocument(ctx context.Context, documentID core.ID) ([]*core.Chunk, error)

	// Update overwrites existing chunks.
	// Returns core.ErrNotFound if any chunk doesn't exist.
	Update(ctx context.Context, chunks ...*core.Chunk) error

	// DeleteByDocument removes every chunk of the document.
	DeleteByDocument(ctx context.Context, documentID core.ID) error
}

// VectorIndex is the semantic retrieval capability.
type VectorIndex interface {
	// Upsert stores or overwrites the entry for chunkID.
	Upsert(ctx context.Context, chunkID core.ChunkID, text string, documentID core.ID) error

	// DeleteByDocument removes every entry belonging to the document.
	DeleteByDocument(ctx context.Context, documentID core.ID) error

	// Query returns up to topK entries ordered by descending score.
	Query(ctx context.Context, text string, topK int) ([]*core.IndexHit, error)
}

// EntryRepository gives maintenance jobs raw access to vector index entries.
type EntryRepository interface {
	// CountEntries returns the number of stored entries.
	CountEntries(ctx context.Context) (int, error)

	// ForEachEntry calls fn with batches of at most batchSize entries.
	// Iteration stops at the first error returned by fn.
	ForEachEntry(ctx context.Context, batchSize int, fn func([]*core.IndexEntry) error) error

	// UpdateEntries overwrites existing entries.
	// Returns core.ErrNotFound if any entry doesn't exist.
	UpdateEntries(ctx context.Context, entries ...*core.IndexEntry) error
}

// GraphStore is the graph capability.
type GraphStore interface {
	// WriteNodes upserts nodes. A node that already exists keeps its
	// properties and gains the new provenance entries.
	WriteNodes(ctx context.Context, nodes []*core.GraphNode) error

	// WriteEdges stores edges. Every endpoint must already exist; otherwise
	// the batch is rejected with core.ErrInvalidEdge and core.ErrPermanent
	// and nothing is written.
	WriteEdges(ctx context.Context, edges []*core.GraphEdge) error

	// DeleteByDocument removes the document's edges and its provenance from
	// every node, deleting nodes left without provenance.
	DeleteByDocument(ctx context.Context, documentID core.ID) error

	// GetNode retrieves a node by ID.
	// Returns core.ErrNotFound if the node doesn't exist.
	GetNode(ctx context.Context, id core.ID) (*core.GraphNode, error)

	// NodesByDocument returns nodes that carry provenance from the document.
	NodesByDocument(ctx context.Context, documentID core.ID) ([]*core.GraphNode, error)

	// EdgesByDocument returns the document's edges.
	EdgesByDocument(ctx context.Context, documentID core.ID) ([]*core.GraphEdge, error)
}

// BlobStore holds raw page images.
type BlobStore interface {
	// Put stores data under the page reference and returns the reference.
	Put(ctx context.Context, documentID core.ID, page int, data []byte) (string, error)

	// Get returns the data stored under ref.
	// Returns core.ErrNotFound if nothing is stored there.
	Get(ctx context.Context, ref string) ([]byte, error)

	// DeleteDocument removes every blob of the document.
	DeleteDocument(ctx context.Context, documentID core.ID) error
}
