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
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/scriptorium/core"
	"github.com/poiesic/scriptorium/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
// Every status change is a read-compare-write inside one update transaction,
// so a stale expectation never overwrites a concurrent change.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	return &DocumentRepository{
		backend: backend,
	}, nil
}

// Create stores a new document.
func (r *DocumentRepository) Create(ctx context.Context, doc *core.Document) (core.ID, error) {
	if doc.Status == 0 {
		doc.Status = core.StatusUploaded
	}
	if err := core.ValidateDocument(doc); err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = now
	}
	doc.UpdatedAt = now

	err := r.backend.update(func(tx *badger.Txn) error {
		key := makeDocumentKey(doc.Id)
		existing, err := get(tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: document %d", storage.ErrDuplicateKey, doc.Id)
		}
		return tx.Set(key, storage.MarshalDocument(doc))
	})
	if err != nil {
		return 0, err
	}
	return doc.Id, nil
}

// Get retrieves a document by ID.
func (r *DocumentRepository) Get(ctx context.Context, id core.ID) (*core.Document, error) {
	var result *core.Document
	err := r.backend.view(func(tx *badger.Txn) error {
		var err error
		result, err = readDocument(tx, id)
		return err
	})
	return result, err
}

// UpdateStatus moves a document from one status to another.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id core.ID, from, to core.Status) (*core.Document, error) {
	if !core.CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, from, to)
	}
	return r.swap(id, expectStatus(from), func(doc *core.Document) {
		doc.Status = to
		doc.Lease = nil
		if from == core.StatusFailed {
			doc.Failure = nil
		}
	})
}

// Claim moves a document to a running status and leases it to token.
func (r *DocumentRepository) Claim(ctx context.Context, id core.ID, from, to core.Status, token string) (*core.Document, error) {
	if !core.CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, from, to)
	}
	return r.swap(id, expectStatus(from), func(doc *core.Document) {
		doc.Status = to
		doc.Lease = &core.Lease{Token: token, Heartbeat: time.Now().UTC()}
	})
}

// Renew refreshes the heartbeat of the lease held by token.
func (r *DocumentRepository) Renew(ctx context.Context, id core.ID, token string) error {
	_, err := r.swap(id, expectLease(token), func(doc *core.Document) {
		doc.Lease.Heartbeat = time.Now().UTC()
	})
	return err
}

// Release moves a document leased to token to status to.
func (r *DocumentRepository) Release(ctx context.Context, id core.ID, token string, to core.Status) (*core.Document, error) {
	return r.swap(id, expectLease(token, to), func(doc *core.Document) {
		doc.Status = to
		doc.Lease = nil
	})
}

// Fail moves a document leased to token to FAILED and records why.
func (r *DocumentRepository) Fail(ctx context.Context, id core.ID, token string, failure core.Failure) (*core.Document, error) {
	if failure.At.IsZero() {
		failure.At = time.Now().UTC()
	}
	return r.swap(id, expectLease(token, core.StatusFailed), func(doc *core.Document) {
		doc.Status = core.StatusFailed
		doc.Failure = &failure
		doc.Lease = nil
	})
}

// Expire rewinds an in-progress document whose lease has lapsed.
func (r *DocumentRepository) Expire(ctx context.Context, id core.ID, from, to core.Status, timeout time.Duration) (*core.Document, error) {
	if !core.CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, from, to)
	}
	expect := func(doc *core.Document) error {
		if doc.Status != from {
			return conflict(doc, from)
		}
		if !doc.LeaseExpired(time.Now().UTC(), timeout) {
			return fmt.Errorf("%w: document %d is leased to a live run", core.ErrConflict, doc.Id)
		}
		return nil
	}
	return r.swap(id, expect, func(doc *core.Document) {
		doc.Status = to
		doc.Lease = nil
	})
}

// Update applies fn to the stored document while its status is expect.
func (r *DocumentRepository) Update(ctx context.Context, id core.ID, expect core.Status, fn func(doc *core.Document) error) (*core.Document, error) {
	var result *core.Document
	err := r.backend.update(func(tx *badger.Txn) error {
		doc, err := readDocument(tx, id)
		if err != nil {
			return err
		}
		if doc.Status != expect {
			return conflict(doc, expect)
		}
		if err := fn(doc); err != nil {
			return err
		}
		if doc.Status != expect || doc.Id != id {
			return fmt.Errorf("%w: update may not change status or id of document %d", core.ErrInvalidTransition, id)
		}
		doc.UpdatedAt = time.Now().UTC()
		result = doc
		return tx.Set(makeDocumentKey(id), storage.MarshalDocument(doc))
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AppendArtifact records an artifact on the document. Appending the same
// kind and reference twice keeps a single entry.
func (r *DocumentRepository) AppendArtifact(ctx context.Context, id core.ID, kind, ref string) error {
	return r.backend.update(func(tx *badger.Txn) error {
		doc, err := readDocument(tx, id)
		if err != nil {
			return err
		}
		for _, a := range doc.Artifacts {
			if a.Kind == kind && a.Ref == ref {
				return nil
			}
		}
		now := time.Now().UTC()
		doc.Artifacts = append(doc.Artifacts, core.Artifact{Kind: kind, Ref: ref, CreatedAt: now})
		doc.UpdatedAt = now
		return tx.Set(makeDocumentKey(id), storage.MarshalDocument(doc))
	})
}

// List returns documents ordered by upload time.
func (r *DocumentRepository) List(ctx context.Context, filter storage.DocumentFilter) ([]*core.Document, error) {
	var results []*core.Document
	err := r.backend.view(func(tx *badger.Txn) error {
		return scan(tx, []byte(documentPrefix+":"), func(_, val []byte) error {
			doc, err := storage.UnmarshalDocument(val)
			if err != nil {
				return err
			}
			if filter.Matches(doc) {
				results = append(results, doc)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(results, func(a, b *core.Document) int {
		if c := a.UploadedAt.Compare(b.UploadedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Id, b.Id)
	})
	return results, nil
}

// Delete removes the document record.
func (r *DocumentRepository) Delete(ctx context.Context, id core.ID) error {
	return r.backend.update(func(tx *badger.Txn) error {
		if _, err := readDocument(tx, id); err != nil {
			return err
		}
		return tx.Delete(makeDocumentKey(id))
	})
}

// swap is the compare-and-swap primitive behind every status change. expect
// inspects the stored document and returns core.ErrConflict to abort.
func (r *DocumentRepository) swap(id core.ID, expect func(doc *core.Document) error, mutate func(doc *core.Document)) (*core.Document, error) {
	var result *core.Document
	err := r.backend.update(func(tx *badger.Txn) error {
		doc, err := readDocument(tx, id)
		if err != nil {
			return err
		}
		if err := expect(doc); err != nil {
			return err
		}
		mutate(doc)
		doc.UpdatedAt = time.Now().UTC()
		result = doc
		return tx.Set(makeDocumentKey(id), storage.MarshalDocument(doc))
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func expectStatus(status core.Status) func(doc *core.Document) error {
	return func(doc *core.Document) error {
		if doc.Status != status {
			return conflict(doc, status)
		}
		return nil
	}
}

// expectLease matches a document held by token whose status may move to
// each of next.
func expectLease(token string, next ...core.Status) func(doc *core.Document) error {
	return func(doc *core.Document) error {
		if !doc.HeldBy(token) {
			return fmt.Errorf("%w: document %d is not leased to run %s", core.ErrConflict, doc.Id, token)
		}
		for _, to := range next {
			if !core.CanTransition(doc.Status, to) {
				return fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, doc.Status, to)
			}
		}
		return nil
	}
}

func conflict(doc *core.Document, expected core.Status) error {
	return fmt.Errorf("%w: document %d is %s, expected %s", core.ErrConflict, doc.Id, doc.Status, expected)
}

// readDocument reads a document from the transaction.
// Returns core.ErrNotFound when the document doesn't exist.
func readDocument(tx *badger.Txn, id core.ID) (*core.Document, error) {
	val, err := get(tx, makeDocumentKey(id))
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, fmt.Errorf("%w: document %d", core.ErrNotFound, id)
	}
	return storage.UnmarshalDocument(val)
}
