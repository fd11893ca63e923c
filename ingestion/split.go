package ingestion

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/poiesic/scriptorium/core"
)

const mimePDF = "application/pdf"

// pageImage is one page of an upload, ready for the blob store.
type pageImage struct {
	data     []byte
	mimeType string
}

// splitPages turns an upload into per-page payloads. A PDF yields one
// single-page PDF per page; an image is a single page.
func splitPages(data []byte) ([]pageImage, error) {
	mimeType := http.DetectContentType(data)
	switch {
	case mimeType == mimePDF:
		return splitPDF(data)
	case strings.HasPrefix(mimeType, "image/"):
		return []pageImage{{data: data, mimeType: mimeType}}, nil
	default:
		return nil, fmt.Errorf("%w: %w: detected %s", core.ErrPermanent, ErrUnsupportedFile, mimeType)
	}
}

func splitPDF(data []byte) ([]pageImage, error) {
	dir, err := os.MkdirTemp("", "scriptorium-split-*")
	if err != nil {
		return nil, fmt.Errorf("create split directory: %w", err)
	}
	defer os.RemoveAll(dir)

	source := filepath.Join(dir, "source.pdf")
	if err := os.WriteFile(source, data, 0o600); err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}

	optimized := filepath.Join(dir, "page.pdf")
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.OptimizeFile(source, optimized, cfg); err != nil {
		return nil, invalidPDF(err)
	}

	count, err := api.PageCountFile(optimized)
	if err != nil {
		return nil, invalidPDF(err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: %w: pdf has no pages", core.ErrPermanent, core.ErrInvalidDocument)
	}
	if count == 1 {
		page, err := os.ReadFile(optimized)
		if err != nil {
			return nil, fmt.Errorf("read page: %w", err)
		}
		return []pageImage{{data: page, mimeType: mimePDF}}, nil
	}

	if err := api.SplitFile(optimized, dir, 1, cfg); err != nil {
		return nil, invalidPDF(err)
	}

	pages := make([]pageImage, count)
	for i := range pages {
		page, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("page_%d.pdf", i+1)))
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}
		pages[i] = pageImage{data: page, mimeType: mimePDF}
	}
	return pages, nil
}

func invalidPDF(err error) error {
	return fmt.Errorf("%w: %w: %w", core.ErrPermanent, core.ErrInvalidDocument, err)
}
