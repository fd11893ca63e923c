package badger

import (
	"github.com/poiesic/scriptorium/ai"
)

// Stores bundles every BadgerDB-backed repository sharing one Backend.
type Stores struct {
	Backend   *Backend
	Documents *DocumentRepository
	Chunks    *ChunkRepository
	Vectors   *VectorIndex
	Graph     *GraphStore
	Blobs     *BlobStore
}

// NewStores builds every repository on top of backend. The vector index
// embeds text with embedder.
func NewStores(backend *Backend, embedder ai.Embedder) (*Stores, error) {
	documents, err := NewDocumentRepository(backend)
	if err != nil {
		return nil, err
	}
	chunks, err := NewChunkRepository(backend)
	if err != nil {
		return nil, err
	}
	vectors, err := NewVectorIndex(backend, embedder)
	if err != nil {
		return nil, err
	}
	graph, err := NewGraphStore(backend)
	if err != nil {
		return nil, err
	}
	blobs, err := NewBlobStore(backend)
	if err != nil {
		return nil, err
	}
	return &Stores{
		Backend:   backend,
		Documents: documents,
		Chunks:    chunks,
		Vectors:   vectors,
		Graph:     graph,
		Blobs:     blobs,
	}, nil
}

// Close closes the shared backend.
func (s *Stores) Close() error {
	return s.Backend.Close()
}
