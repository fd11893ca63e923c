package ingestion

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/poiesic/scriptorium/core"
	"github.com/poiesic/scriptorium/storage"
)

// UploadRequest is a file handed to the pipeline.
type UploadRequest struct {
	FileName string
	Title    string // Defaults to the file name without extension
	Data     []byte
	// Overrides replace individual non-zero fields of the pipeline settings.
	Overrides core.Settings
}

// Upload splits the file into pages, stores every page image and creates the
// document record in UPLOADED. The document ID is derived from the file
// content, so uploading the same bytes twice returns the existing document.
// Uploading the bytes of a document that is being deleted fails with
// ErrDocumentDeleting; upload again once the delete completes.
// Upload does not start processing; call Submit or Process for that.
func (p *Pipeline) Upload(ctx context.Context, req UploadRequest) (*core.Document, error) {
	if len(req.Data) == 0 {
		return nil, ErrEmptyUpload
	}
	if strings.TrimSpace(req.FileName) == "" {
		return nil, fmt.Errorf("%w: file name cannot be empty", core.ErrInvalidDocument)
	}
	settings := p.settings.Merge(req.Overrides)
	if err := core.ValidateSettings(settings); err != nil {
		return nil, err
	}

	id := core.IDFromBytes(req.Data)
	logger := p.logger.With("document", id, "file", req.FileName)

	existing, err := p.documents.Get(ctx, id)
	switch {
	case err == nil:
		logger.Info("upload matches existing document", "status", existing.Status)
		return reuse(existing)
	case !errors.Is(err, core.ErrNotFound):
		return nil, fmt.Errorf("lookup document %d: %w", id, err)
	}

	images, err := splitPages(req.Data)
	if err != nil {
		return nil, err
	}

	pages := make([]core.Page, len(images))
	err = p.calls.each(ctx, len(images), func(ctx context.Context, i int) error {
		return p.calls.call(ctx, "store-page", func(ctx context.Context) error {
			ref, err := p.blobs.Put(ctx, id, i, images[i].data)
			if err != nil {
				return err
			}
			pages[i] = core.Page{Index: i, ImageRef: ref, MIMEType: images[i].mimeType, Status: core.PagePending}
			return nil
		})
	})
	if err != nil {
		p.discardBlobs(id)
		return nil, fmt.Errorf("store pages of document %d: %w", id, err)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(req.FileName), filepath.Ext(req.FileName))
	}
	doc := &core.Document{
		Id:       id,
		FileName: filepath.Base(req.FileName),
		Title:    title,
		Status:   core.StatusUploaded,
		Settings: settings,
		Pages:    pages,
	}
	if _, err := p.documents.Create(ctx, doc); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			existing, err := p.documents.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			return reuse(existing)
		}
		p.discardBlobs(id)
		return nil, fmt.Errorf("create document %d: %w", id, err)
	}
	if err := p.documents.AppendArtifact(ctx, id, core.ArtifactSource, storage.BlobPrefix(id)); err != nil {
		return nil, fmt.Errorf("record source of document %d: %w", id, err)
	}

	logger.Info("document uploaded", "pages", len(pages))
	return p.documents.Get(ctx, id)
}

// discardBlobs removes page images of an upload that never became a document.
func (p *Pipeline) discardBlobs(id core.ID) {
	if err := p.blobs.DeleteDocument(context.Background(), id); err != nil {
		p.logger.Warn("failed to discard page images", "document", id, "err", err)
	}
}

// reuse returns an existing document for a repeated upload unless a delete
// has claimed it.
func reuse(doc *core.Document) (*core.Document, error) {
	if doc.Status == core.StatusDeleted {
		return nil, fmt.Errorf("%w: %w: document %d", ErrDocumentDeleting, core.ErrConflict, doc.Id)
	}
	return doc, nil
}
