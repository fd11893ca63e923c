package reembed

import (
	"context"
	"fmt"

	"github.com/poiesic/scriptorium/ai"
	"github.com/poiesic/scriptorium/core"
	"github.com/poiesic/scriptorium/retry"
	"github.com/poiesic/scriptorium/storage"
)

// BatchProcessor embeds batches of index entries and writes them back.
type BatchProcessor struct {
	repo     storage.EntryRepository
	embedder ai.Embedder
	exec     *retry.Executor
}

// NewBatchProcessor creates a new batch processor. Embedding calls run
// through exec.
func NewBatchProcessor(repo storage.EntryRepository, embedder ai.Embedder, exec *retry.Executor) *BatchProcessor {
	return &BatchProcessor{
		repo:     repo,
		embedder: embedder,
		exec:     exec,
	}
}

// Process generates embeddings for a batch of entries and updates them in the index.
// Vectors are normalized after embedding so dot products rank by cosine similarity.
func (bp *BatchProcessor) Process(ctx context.Context, entries []*core.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	texts := make([]string, len(entries))
	for i, entry := range entries {
		texts[i] = entry.Text
	}

	var embeddings [][]float32
	res, err := bp.exec.Do(ctx, "embed", func(ctx context.Context) error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", res.Attempts, err)
	}

	if len(embeddings) != len(entries) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingMismatch, len(entries), len(embeddings))
	}

	for i := range entries {
		entries[i].Vector = core.NormalizeVector(embeddings[i])
	}

	if err := bp.repo.UpdateEntries(ctx, entries...); err != nil {
		return fmt.Errorf("failed to update entries: %w", err)
	}
	return nil
}
