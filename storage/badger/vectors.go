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

package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/scriptorium/ai"
	"github.com/poiesic/scriptorium/core"
	"github.com/poiesic/scriptorium/storage"
)

// VectorIndex implements storage.VectorIndex and storage.EntryRepository on
// BadgerDB. Entries are keyed by chunk ID, so upserting a chunk twice
// overwrites the earlier entry. Queries embed the text and rank every entry
// by dot product of normalized vectors.
type VectorIndex struct {
	backend  *Backend
	embedder ai.Embedder
}

var (
	_ storage.VectorIndex     = (*VectorIndex)(nil)
	_ storage.EntryRepository = (*VectorIndex)(nil)
)

// NewVectorIndex creates a vector index that embeds text with embedder.
func NewVectorIndex(backend *Backend, embedder ai.Embedder) (*VectorIndex, error) {
	if embedder == nil {
		return nil, errors.New("vector index requires an embedder")
	}
	return &VectorIndex{
		backend:  backend,
		embedder: embedder,
	}, nil
}

// Upsert embeds text and stores it under chunkID.
func (v *VectorIndex) Upsert(ctx context.Context, chunkID core.ChunkID, text string, documentID core.ID) error {
	vector, err := v.embedder.EmbedText(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding chunk %s: %w", chunkID, err)
	}
	if len(vector) == 0 {
		return fmt.Errorf("%w: %w: empty embedding for chunk %s", core.ErrPermanent, core.ErrInvalidResponse, chunkID)
	}

	entry := &core.IndexEntry{
		ChunkId:    chunkID,
		DocumentId: documentID,
		Text:       text,
		Vector:     core.NormalizeVector(vector),
		UpdatedAt:  time.Now().UTC(),
	}
	return v.backend.update(func(tx *badger.Txn) error {
		if err := tx.Set(makeVectorKey(chunkID), storage.MarshalIndexEntry(entry)); err != nil {
			return err
		}
		return tx.Set(makeVectorDocKey(documentID, chunkID), nil)
	})
}

// DeleteByDocument removes every entry of the document.
func (v *VectorIndex) DeleteByDocument(ctx context.Context, documentID core.ID) error {
	prefix := makePartialVectorDocKey(documentID)
	return v.backend.update(func(tx *badger.Txn) error {
		for _, key := range keysWithPrefix(tx, prefix) {
			chunkID := core.ChunkID(bytes.TrimPrefix(key, prefix))
			if err := tx.Delete(makeVectorKey(chunkID)); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Query returns up to topK hits, best first.
func (v *VectorIndex) Query(ctx context.Context, text string, topK int) ([]*core.IndexHit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", storage.ErrInvalidQuery, topK)
	}
	vector, err := v.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	vector = core.NormalizeVector(vector)

	var results []*core.IndexHit
	err = v.backend.view(func(tx *badger.Txn) error {
		return scan(tx, []byte(vectorPrefix+":"), func(_, val []byte) error {
			entry, err := storage.UnmarshalIndexEntry(val)
			if err != nil {
				return err
			}
			if len(entry.Vector) == 0 {
				return nil
			}
			results = append(results, &core.IndexHit{
				ChunkId:    entry.ChunkId,
				DocumentId: entry.DocumentId,
				Score:      core.DotProduct(vector, entry.Vector),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortFunc(results, func(a, b *core.IndexHit) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// CountEntries returns the number of stored entries.
func (v *VectorIndex) CountEntries(ctx context.Context) (int, error) {
	count := 0
	err := v.backend.view(func(tx *badger.Txn) error {
		count = len(keysWithPrefix(tx, []byte(vectorPrefix+":")))
		return nil
	})
	return count, err
}

// ForEachEntry calls fn with batches of entries in chunk ID order.
func (v *VectorIndex) ForEachEntry(ctx context.Context, batchSize int, fn func([]*core.IndexEntry) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", storage.ErrInvalidQuery, batchSize)
	}

	var entries []*core.IndexEntry
	err := v.backend.view(func(tx *badger.Txn) error {
		return scan(tx, []byte(vectorPrefix+":"), func(_, val []byte) error {
			entry, err := storage.UnmarshalIndexEntry(val)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return err
	}

	for batch := range slices.Chunk(entries, batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}

// UpdateEntries overwrites existing entries.
func (v *VectorIndex) UpdateEntries(ctx context.Context, entries ...*core.IndexEntry) error {
	now := time.Now().UTC()
	return v.backend.update(func(tx *badger.Txn) error {
		for _, entry := range entries {
			key := makeVectorKey(entry.ChunkId)
			existing, err := get(tx, key)
			if err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("%w: index entry %s", core.ErrNotFound, entry.ChunkId)
			}
			entry.UpdatedAt = now
			if err := tx.Set(key, storage.MarshalIndexEntry(entry)); err != nil {
				return err
			}
		}
		return nil
	})
}
