package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/scriptorium/ai"
	"github.com/poiesic/scriptorium/core"
	"github.com/poiesic/scriptorium/storage"
)

// ocrStage extracts text from every page that has none yet.
type ocrStage struct {
	documents storage.DocumentRepository
	blobs     storage.BlobStore
	vision    ai.VisionModel
	calls     *dispatcher
	floor     float64
	logger    *slog.Logger
}

type pageResult struct {
	done       bool
	text       string
	confidence float64
}

func (s *ocrStage) run(ctx context.Context, doc *core.Document) error {
	var pending []int
	for i := range doc.Pages {
		if !doc.Pages[i].HasText() {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	opts := ai.VisionOptions{
		Enhancement: doc.Settings.Enhancement,
		DPI:         doc.Settings.DPI,
		DomainHint:  doc.Settings.DomainHint,
	}
	results := make([]pageResult, len(pending))
	runErr := s.calls.each(ctx, len(pending), func(ctx context.Context, i int) error {
		page := doc.Pages[pending[i]]
		text, confidence, err := s.extract(ctx, page, opts)
		if err != nil {
			return fmt.Errorf("page %d: %w", page.Index, err)
		}
		results[i] = pageResult{done: true, text: text, confidence: confidence}
		return nil
	})

	// Pages that finished are kept even when others failed, so a retry only
	// repeats the rest. A cancelled run writes nothing.
	if runErr != nil && (errors.Is(runErr, core.ErrCancelled) || ctx.Err() != nil) {
		return runErr
	}
	if err := s.persist(ctx, doc, pending, results); err != nil {
		return err
	}
	return runErr
}

func (s *ocrStage) extract(ctx context.Context, page core.Page, opts ai.VisionOptions) (string, float64, error) {
	var image []byte
	err := s.calls.call(ctx, "load-page", func(ctx context.Context) error {
		var err error
		image, err = s.blobs.Get(ctx, page.ImageRef)
		return err
	})
	if err != nil {
		return "", 0, err
	}

	var result *ai.VisionResult
	err = s.calls.call(ctx, "vision", func(ctx context.Context) error {
		var err error
		result, err = s.vision.ExtractText(ctx, image, page.MIMEType, opts)
		return err
	})
	if err != nil {
		return "", 0, err
	}
	if result == nil {
		return "", 0, fmt.Errorf("%w: %w: vision model returned no result", core.ErrPermanent, core.ErrInvalidResponse)
	}
	if err := core.ValidateConfidence(result.Confidence); err != nil {
		return "", 0, fmt.Errorf("%w: %w", core.ErrPermanent, err)
	}
	return result.Text, result.Confidence, nil
}

func (s *ocrStage) persist(ctx context.Context, doc *core.Document, pending []int, results []pageResult) error {
	_, err := s.documents.Update(ctx, doc.Id, core.StatusOCRInProgress, leased(doc, func(stored *core.Document) error {
		for i, idx := range pending {
			r := results[i]
			if !r.done {
				continue
			}
			page := &stored.Pages[idx]
			page.Text = r.text
			page.Confidence = r.confidence
			page.Status = core.PageExtracted

			var warnings []core.Warning
			if r.confidence < s.floor {
				page.Status = core.PageLowConfidence
				warnings = append(warnings, core.Warning{
					Stage:   core.StageOCR,
					Code:    core.WarningLowConfidence,
					Page:    idx,
					Message: fmt.Sprintf("confidence %.2f below %.2f", r.confidence, s.floor),
				})
				s.logger.Warn("low confidence page", "document", doc.Id, "page", idx, "confidence", r.confidence)
			}
			if r.text == "" {
				warnings = append(warnings, core.Warning{
					Stage:   core.StageOCR,
					Code:    core.WarningEmptyText,
					Page:    idx,
					Message: "no text extracted",
				})
			}
			replaceWarnings(stored, core.StageOCR, func(w core.Warning) bool { return w.Page == idx }, warnings)
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("persist ocr results: %w", err)
	}
	return nil
}
