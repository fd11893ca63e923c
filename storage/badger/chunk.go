package badger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/scriptorium/core"
	"github.com/poiesic/scriptorium/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
type ChunkRepository struct {
	backend *Backend
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) (*ChunkRepository, error) {
	return &ChunkRepository{
		backend: backend,
	}, nil
}

// Replace swaps the document's chunks for a new set in one transaction.
func (r *ChunkRepository) Replace(ctx context.Context, documentID core.ID, chunks []*core.Chunk) error {
	for _, c := range chunks {
		if c.DocumentId != documentID {
			return fmt.Errorf("%w: chunk %s belongs to document %d, not %d", core.ErrInvalidDocument, c.Id, c.DocumentId, documentID)
		}
	}
	return r.backend.update(func(tx *badger.Txn) error {
		if err := deleteKeys(tx, keysWithPrefix(tx, makePartialChunkKey(documentID))); err != nil {
			return err
		}
		for _, c := range chunks {
			if err := tx.Set(makeChunkKey(c.DocumentId, c.Ordinal), storage.MarshalChunk(c)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get retrieves a chunk by ID.
func (r *ChunkRepository) Get(ctx context.Context, id core.ChunkID) (*core.Chunk, error) {
	documentID, ordinal, err := id.Parse()
	if err != nil {
		return nil, err
	}
	var result *core.Chunk
	err = r.backend.view(func(tx *badger.Txn) error {
		var err error
		result, err = readChunk(tx, documentID, ordinal)
		return err
	})
	return result, err
}

// ListByDocument returns the document's chunks in ordinal order.
func (r *ChunkRepository) ListByDocument(ctx context.Context, documentID core.ID) ([]*core.Chunk, error) {
	var results []*core.Chunk
	err := r.backend.view(func(tx *badger.Txn) error {
		return scan(tx, makePartialChunkKey(documentID), func(_, val []byte) error {
			c, err := storage.UnmarshalChunk(val)
			if err != nil {
				return err
			}
			results = append(results, c)
			return nil
		})
	})
	return results, err
}

// Update overwrites existing chunks.
func (r *ChunkRepository) Update(ctx context.Context, chunks ...*core.Chunk) error {
	return r.backend.update(func(tx *badger.Txn) error {
		for _, c := range chunks {
			if _, err := readChunk(tx, c.DocumentId, c.Ordinal); err != nil {
				return err
			}
			if err := tx.Set(makeChunkKey(c.DocumentId, c.Ordinal), storage.MarshalChunk(c)); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteByDocument removes every chunk of the document.
func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID core.ID) error {
	return r.backend.update(func(tx *badger.Txn) error {
		return deleteKeys(tx, keysWithPrefix(tx, makePartialChunkKey(documentID)))
	})
}

// readChunk reads a chunk from the transaction.
func readChunk(tx *badger.Txn, documentID core.ID, ordinal int) (*core.Chunk, error) {
	val, err := get(tx, makeChunkKey(documentID, ordinal))
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, fmt.Errorf("%w: chunk %s", core.ErrNotFound, core.NewChunkID(documentID, ordinal))
	}
	return storage.UnmarshalChunk(val)
}
