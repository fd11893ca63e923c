package badger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/scriptorium/core"
	"github.com/poiesic/scriptorium/storage"
)

// BlobStore implements storage.BlobStore inside the BadgerDB value log.
type BlobStore struct {
	backend *Backend
}

var _ storage.BlobStore = (*BlobStore)(nil)

// NewBlobStore creates a new BlobStore.
func NewBlobStore(backend *Backend) (*BlobStore, error) {
	return &BlobStore{
		backend: backend,
	}, nil
}

// Put stores a page image.
func (s *BlobStore) Put(ctx context.Context, documentID core.ID, page int, data []byte) (string, error) {
	ref := storage.BlobRef(documentID, page)
	err := s.backend.update(func(tx *badger.Txn) error {
		return tx.Set(makeBlobKey(ref), data)
	})
	if err != nil {
		return "", err
	}
	return ref, nil
}

// Get returns the bytes stored under ref.
func (s *BlobStore) Get(ctx context.Context, ref string) ([]byte, error) {
	var data []byte
	err := s.backend.view(func(tx *badger.Txn) error {
		var err error
		data, err = get(tx, makeBlobKey(ref))
		if err != nil {
			return err
		}
		if data == nil {
			return fmt.Errorf("%w: blob %s", core.ErrNotFound, ref)
		}
		return nil
	})
	return data, err
}

// DeleteDocument removes every page image of the document.
func (s *BlobStore) DeleteDocument(ctx context.Context, documentID core.ID) error {
	return s.backend.update(func(tx *badger.Txn) error {
		return deleteKeys(tx, keysWithPrefix(tx, makeBlobKey(storage.BlobPrefix(documentID))))
	})
}
