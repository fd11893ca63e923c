package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// VisionModel extracts text from a scanned page image.
// Implementations must be thread-safe for concurrent use.
type VisionModel interface {
	// ExtractText reads the text of one page. Failures are classified as
	// core.ErrTransient or core.ErrPermanent. A response without any payload
	// is reported as core.ErrInvalidResponse.
	ExtractText(ctx context.Context, image []byte, mimeType string, opts VisionOptions) (*VisionResult, error)
}

// GraphExtractor proposes clinical entities and relationships found in text.
// Implementations must be thread-safe for concurrent use.
type GraphExtractor interface {
	// ExtractGraph returns the raw candidates for the given schema. The
	// candidates are not validated; types outside the schema and dangling
	// edges may be present. A response that cannot be parsed at all is
	// reported as core.ErrInvalidResponse wrapped in core.ErrTransient.
	ExtractGraph(ctx context.Context, text string, schema Schema) (*RawGraph, error)
}

// AnswerGenerator answers a question from retrieved passages.
// Implementations must be thread-safe for concurrent use.
type AnswerGenerator interface {
	// GenerateAnswer writes an answer that cites passages by their 1-based
	// position, e.g. [2].
	GenerateAnswer(ctx context.Context, question string, passages []Passage) (string, error)
}

// Provider aggregates AI services for convenient initialization and lifecycle management.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Vision returns the page text extraction service.
	Vision() VisionModel

	// GraphExtractor returns the entity and relationship extraction service.
	GraphExtractor() GraphExtractor

	// AnswerGenerator returns the question answering service.
	AnswerGenerator() AnswerGenerator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
