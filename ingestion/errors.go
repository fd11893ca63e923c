package ingestion

import "errors"

var (
	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrVectorIndexRequired is returned when a vector index is not provided.
	ErrVectorIndexRequired = errors.New("vector index required")

	// ErrGraphStoreRequired is returned when a graph store is not provided.
	ErrGraphStoreRequired = errors.New("graph store required")

	// ErrBlobStoreRequired is returned when a blob store is not provided.
	ErrBlobStoreRequired = errors.New("blob store required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrVisionRequired is returned when the provider has no vision model.
	ErrVisionRequired = errors.New("vision model required")

	// ErrEmptyUpload is returned when an upload carries no data.
	ErrEmptyUpload = errors.New("upload is empty")

	// ErrUnsupportedFile is returned for uploads that are neither PDF nor image.
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrNotFailed is returned when Retry is called on a document that is not FAILED.
	ErrNotFailed = errors.New("document is not failed")

	// ErrDocumentDeleting is returned when uploading a file whose previous
	// document is still being deleted.
	ErrDocumentDeleting = errors.New("document is being deleted")

	errLeaseLost = errors.New("document lease lost")
)
