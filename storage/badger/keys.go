package badger

import (
	"fmt"

	"github.com/poiesic/scriptorium/core"
)

const (
	documentPrefix  = "doc"
	chunkPrefix     = "chk"
	vectorPrefix    = "vec"
	vectorDocPrefix = "vdoc"
	nodePrefix      = "node"
	nodeDocPrefix   = "ndoc"
	edgePrefix      = "edge"
	blobPrefix      = "blob"
)

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", documentPrefix, id))
}

// makeChunkKey generates a key for a chunk.
// Format: prefix:documentID:ordinal, with the ordinal zero padded so keys
// sort in ordinal order.
func makeChunkKey(documentID core.ID, ordinal int) []byte {
	return []byte(fmt.Sprintf("%s:%d:%06d", chunkPrefix, documentID, ordinal))
}

// makePartialChunkKey generates the prefix shared by a document's chunks.
func makePartialChunkKey(documentID core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d:", chunkPrefix, documentID))
}

// makeVectorKey generates a key for a vector index entry.
func makeVectorKey(chunkID core.ChunkID) []byte {
	return []byte(fmt.Sprintf("%s:%s", vectorPrefix, chunkID))
}

// makeVectorDocKey generates a key in the document -> vector entry index.
// Format: prefix:documentID:chunkID
func makeVectorDocKey(documentID core.ID, chunkID core.ChunkID) []byte {
	return []byte(fmt.Sprintf("%s:%d:%s", vectorDocPrefix, documentID, chunkID))
}

// makePartialVectorDocKey generates the prefix shared by a document's vector index keys.
func makePartialVectorDocKey(documentID core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d:", vectorDocPrefix, documentID))
}

// makeNodeKey generates a key for a graph node by ID.
func makeNodeKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", nodePrefix, id))
}

// makeNodeDocKey generates a key in the document -> node provenance index.
// Format: prefix:documentID:nodeID
func makeNodeDocKey(documentID, nodeID core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d:%d", nodeDocPrefix, documentID, nodeID))
}

// makePartialNodeDocKey generates the prefix shared by a document's node index keys.
func makePartialNodeDocKey(documentID core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d:", nodeDocPrefix, documentID))
}

// makeEdgeKey generates a key for an edge owned by a document.
func makeEdgeKey(documentID, edgeID core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d:%d", edgePrefix, documentID, edgeID))
}

// makePartialEdgeKey generates the prefix shared by a document's edges.
func makePartialEdgeKey(documentID core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d:", edgePrefix, documentID))
}

// makeBlobKey generates a key for a blob reference.
func makeBlobKey(ref string) []byte {
	return []byte(fmt.Sprintf("%s:%s", blobPrefix, ref))
}
