package ingestion

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/poiesic/scriptorium/core"
	"github.com/poiesic/scriptorium/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	img.Set(0, 0, color.Gray{Y: 255 - shade})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUpload_Image(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	data := pngBytes(t, 10)

	doc, err := h.pipeline.Upload(ctx, UploadRequest{
		FileName:  "scans/plate-iv.png",
		Data:      data,
		Overrides: core.Settings{Enhancement: core.EnhancementAggressive, DPI: 200},
	})
	require.NoError(t, err)
	assert.Equal(t, core.IDFromBytes(data), doc.Id)
	assert.Equal(t, core.StatusUploaded, doc.Status)
	assert.Equal(t, "plate-iv.png", doc.FileName)
	assert.Equal(t, "plate-iv", doc.Title)
	assert.Equal(t, core.EnhancementAggressive, doc.Settings.Enhancement)
	assert.Equal(t, 200, doc.Settings.DPI)
	assert.Equal(t, 512, doc.Settings.ChunkSize)

	require.Len(t, doc.Pages, 1)
	page := doc.Pages[0]
	assert.Equal(t, "image/png", page.MIMEType)
	assert.Equal(t, core.PagePending, page.Status)
	assert.Equal(t, storage.BlobRef(doc.Id, 0), page.ImageRef)

	stored, err := h.stores.Blobs.Get(ctx, page.ImageRef)
	require.NoError(t, err)
	assert.Equal(t, data, stored)

	require.Len(t, doc.Artifacts, 1)
	assert.Equal(t, core.ArtifactSource, doc.Artifacts[0].Kind)
	assert.Zero(t, h.vision.CallCount(), "upload does not start processing")
}

func TestUpload_DuplicateReturnsExisting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	data := pngBytes(t, 20)

	first, err := h.pipeline.Upload(ctx, UploadRequest{FileName: "a.png", Title: "Plate", Data: data})
	require.NoError(t, err)
	second, err := h.pipeline.Upload(ctx, UploadRequest{FileName: "b.png", Data: data})
	require.NoError(t, err)

	assert.Equal(t, first.Id, second.Id)
	assert.Equal(t, "a.png", second.FileName)
	assert.Equal(t, "Plate", second.Title)

	docs, err := h.pipeline.List(ctx, storage.DocumentFilter{})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestUpload_DocumentBeingDeleted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	data := pngBytes(t, 60)

	doc, err := h.pipeline.Upload(ctx, UploadRequest{FileName: "plate.png", Data: data})
	require.NoError(t, err)

	// A delete that marked the document and has not finished its cascade.
	_, err = h.stores.Documents.UpdateStatus(ctx, doc.Id, core.StatusUploaded, core.StatusDeleted)
	require.NoError(t, err)

	_, err = h.pipeline.Upload(ctx, UploadRequest{FileName: "plate.png", Data: data})
	assert.ErrorIs(t, err, ErrDocumentDeleting)
	assert.ErrorIs(t, err, core.ErrConflict)

	require.NoError(t, h.pipeline.Delete(ctx, doc.Id))

	again, err := h.pipeline.Upload(ctx, UploadRequest{FileName: "plate.png", Data: data})
	require.NoError(t, err)
	assert.Equal(t, doc.Id, again.Id)
	assert.Equal(t, core.StatusUploaded, again.Status)
	stored, err := h.stores.Blobs.Get(ctx, again.Pages[0].ImageRef)
	require.NoError(t, err)
	assert.Equal(t, data, stored)
}

func TestUpload_Rejects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  UploadRequest
		want error
	}{
		{"empty", UploadRequest{FileName: "a.png"}, ErrEmptyUpload},
		{"no name", UploadRequest{Data: pngBytes(t, 1)}, core.ErrInvalidDocument},
		{"text file", UploadRequest{FileName: "notes.txt", Data: []byte("plain notes")}, ErrUnsupportedFile},
		{"bad dpi", UploadRequest{FileName: "a.png", Data: pngBytes(t, 2), Overrides: core.Settings{DPI: 150}}, core.ErrInvalidConfig},
		{"overlap too large", UploadRequest{FileName: "a.png", Data: pngBytes(t, 3), Overrides: core.Settings{ChunkSize: 10, Overlap: 10}}, core.ErrInvalidConfig},
		{"corrupt pdf", UploadRequest{FileName: "a.pdf", Data: []byte("%PDF-1.7\nnot really a pdf")}, core.ErrInvalidDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.pipeline.Upload(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	docs, err := h.pipeline.List(ctx, storage.DocumentFilter{})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestUpload_ThenProcess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	data := pngBytes(t, 30)

	doc, err := h.pipeline.Upload(ctx, UploadRequest{FileName: "plate.png", Data: data})
	require.NoError(t, err)

	doc, err = h.pipeline.Process(ctx, doc.Id)
	require.NoError(t, err)
	// The mock reads image bytes as text; a PNG is not blank.
	assert.Equal(t, core.StatusReady, doc.Status)
	assert.Equal(t, 1, h.vision.CallCount())
}

func TestSplitPages_Image(t *testing.T) {
	pages, err := splitPages(pngBytes(t, 5))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "image/png", pages[0].mimeType)
}
