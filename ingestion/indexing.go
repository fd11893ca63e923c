package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/poiesic/scriptorium/chunker"
	"github.com/poiesic/scriptorium/core"
	"github.com/poiesic/scriptorium/storage"
)

// pageSeparator joins page texts into the document text.
const pageSeparator = "\n\n"

// documentText is the concatenated text of every page in page order.
type documentText struct {
	text       string
	pageStarts []int // Byte offset where each page begins
}

func assembleText(pages []core.Page) documentText {
	var b strings.Builder
	starts := make([]int, len(pages))
	for i, page := range pages {
		if i > 0 {
			b.WriteString(pageSeparator)
		}
		starts[i] = b.Len()
		b.WriteString(page.Text)
	}
	return documentText{text: b.String(), pageStarts: starts}
}

// pageAt returns the page whose text contains the byte offset. Separator
// bytes belong to the page before them.
func (d documentText) pageAt(offset int) int {
	i := sort.Search(len(d.pageStarts), func(i int) bool { return d.pageStarts[i] > offset })
	return max(i-1, 0)
}

// indexStage chunks the document text and submits every chunk to the
// vector index.
type indexStage struct {
	documents storage.DocumentRepository
	chunks    storage.ChunkRepository
	vectors   storage.VectorIndex
	calls     *dispatcher
	logger    *slog.Logger
}

func (s *indexStage) run(ctx context.Context, doc *core.Document) error {
	for _, page := range doc.Pages {
		if !page.HasText() {
			return fmt.Errorf("%w: %w: page %d has no text", core.ErrPermanent, core.ErrInvalidDocument, page.Index)
		}
	}

	c, err := chunker.New(doc.Settings.ChunkSize, doc.Settings.Overlap)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrPermanent, err)
	}

	text := assembleText(doc.Pages)
	var chunks []*core.Chunk
	for span := range c.Chunks(text.text) {
		chunks = append(chunks, &core.Chunk{
			Id:         core.NewChunkID(doc.Id, span.Ordinal),
			DocumentId: doc.Id,
			Ordinal:    span.Ordinal,
			PageStart:  text.pageAt(span.Start),
			PageEnd:    text.pageAt(span.End - 1),
			Start:      span.Start,
			End:        span.End,
			TokenCount: span.TokenCount,
			Overlap:    span.Overlap,
			Text:       span.Text(text.text),
		})
	}
	if len(chunks) == 0 {
		return fmt.Errorf("%w: %w: no text extracted from any page", core.ErrPermanent, core.ErrInvalidDocument)
	}

	// Entries from an earlier run may outnumber this one's chunks.
	err = s.calls.call(ctx, "clear-index", func(ctx context.Context) error {
		return s.vectors.DeleteByDocument(ctx, doc.Id)
	})
	if err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	if err := s.chunks.Replace(ctx, doc.Id, chunks); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}

	err = s.calls.each(ctx, len(chunks), func(ctx context.Context, i int) error {
		chunk := chunks[i]
		err := s.calls.call(ctx, "index", func(ctx context.Context) error {
			return s.vectors.Upsert(ctx, chunk.Id, chunk.Text, doc.Id)
		})
		if err != nil {
			return fmt.Errorf("chunk %s: %w", chunk.Id, err)
		}
		chunk.IndexRef = string(chunk.Id)
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.chunks.Update(ctx, chunks...); err != nil {
		return fmt.Errorf("record index refs: %w", err)
	}
	if err := s.documents.AppendArtifact(ctx, doc.Id, core.ArtifactChunks, artifactRef("chunks", doc.Id)); err != nil {
		return err
	}
	if err := s.documents.AppendArtifact(ctx, doc.Id, core.ArtifactIndex, artifactRef("index", doc.Id)); err != nil {
		return err
	}

	s.logger.Debug("document indexed", "document", doc.Id, "chunks", len(chunks))
	return nil
}
