// Package gcs stores page images in a Google Cloud Storage bucket.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"

	"cloud.google.com/go/storage"
	"github.com/poiesic/scriptorium/core"
	scstorage "github.com/poiesic/scriptorium/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// BlobStore implements storage.BlobStore on a GCS bucket. Objects are named
// <prefix>/<document>/<page>.
type BlobStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
	owned  bool
	logger *slog.Logger
}

var _ scstorage.BlobStore = (*BlobStore)(nil)

// Option configures a BlobStore.
type Option func(*BlobStore) error

// WithLogger sets a custom logger for the blob store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *BlobStore) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithClient uses an existing client instead of creating one. The caller
// keeps ownership and Close leaves it open.
func WithClient(client *storage.Client) Option {
	return func(s *BlobStore) error {
		if client == nil {
			return errors.New("gcs: client is nil")
		}
		s.client = client
		return nil
	}
}

// New opens a blob store on bucket. Credentials come from the environment
// (Application Default Credentials) unless WithClient is given.
func New(ctx context.Context, bucket, prefix string, opts ...Option) (*BlobStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("%w: gcs bucket is required", core.ErrInvalidConfig)
	}
	s := &BlobStore{prefix: prefix, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.client == nil {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		s.client = client
		s.owned = true
	}
	s.bucket = s.client.Bucket(bucket)
	s.logger = s.logger.With("component", "gcs", "bucket", bucket)
	return s, nil
}

// Close releases the client if the store created it.
func (s *BlobStore) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}

// Put uploads a page image.
func (s *BlobStore) Put(ctx context.Context, documentID core.ID, page int, data []byte) (string, error) {
	ref := scstorage.BlobRef(documentID, page)
	w := s.bucket.Object(s.objectName(ref)).NewWriter(ctx)
	w.ContentType = http.DetectContentType(data)

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", classify(fmt.Errorf("failed to write %s: %w", ref, err))
	}
	if err := w.Close(); err != nil {
		return "", classify(fmt.Errorf("failed to finalize %s: %w", ref, err))
	}
	s.logger.Debug("stored page image", "ref", ref, "bytes", len(data))
	return ref, nil
}

// Get downloads the object stored under ref.
func (s *BlobStore) Get(ctx context.Context, ref string) ([]byte, error) {
	r, err := s.bucket.Object(s.objectName(ref)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: blob %s", core.ErrNotFound, ref)
		}
		return nil, classify(fmt.Errorf("failed to open %s: %w", ref, err))
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to read %s: %w", ref, err))
	}
	return data, nil
}

// DeleteDocument removes every object under the document's prefix.
func (s *BlobStore) DeleteDocument(ctx context.Context, documentID core.ID) error {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: s.objectName(scstorage.BlobPrefix(documentID))})
	deleted := 0
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return classify(fmt.Errorf("failed to list objects: %w", err))
		}
		if err := s.bucket.Object(attrs.Name).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return classify(fmt.Errorf("failed to delete %s: %w", attrs.Name, err))
		}
		deleted++
	}
	s.logger.Debug("deleted page images", "document", documentID, "objects", deleted)
	return nil
}

func (s *BlobStore) objectName(ref string) string {
	if s.prefix == "" {
		return ref
	}
	// path.Join would drop the trailing slash of a directory prefix.
	return path.Clean(s.prefix) + "/" + ref
}

// classify maps googleapi status codes onto the error taxonomy before
// falling back to core.Classify.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusNotFound:
			return fmt.Errorf("%w: %w", core.ErrNotFound, err)
		case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
			return fmt.Errorf("%w: %w", core.ErrTransient, err)
		default:
			return fmt.Errorf("%w: %w", core.ErrPermanent, err)
		}
	}
	return core.Classify(err)
}
