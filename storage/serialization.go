// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"fmt"

	"github.com/poiesic/scriptorium/core"
)

type serializer[T any] interface {
	Size(v T) int
	Marshal(v T, bs []byte) int
	Unmarshal(bs []byte) (T, int, error)
}

func marshal[T any](s serializer[T], v T) []byte {
	buf := make([]byte, s.Size(v))
	s.Marshal(v, buf)
	return buf
}

func unmarshal[T any](s serializer[T], data []byte) (*T, error) {
	v, _, err := s.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &v, nil
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	return marshal(core.IDMUS, id)
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := core.IDMUS.Unmarshal(data)
	return id, err
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	return marshal(core.DocumentMUS, *doc)
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	return unmarshal(core.DocumentMUS, data)
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	return marshal(core.ChunkMUS, *chunk)
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	return unmarshal(core.ChunkMUS, data)
}

// MarshalGraphNode serializes a GraphNode to bytes.
func MarshalGraphNode(node *core.GraphNode) []byte {
	return marshal(core.GraphNodeMUS, *node)
}

// UnmarshalGraphNode deserializes a GraphNode from bytes.
func UnmarshalGraphNode(data []byte) (*core.GraphNode, error) {
	return unmarshal(core.GraphNodeMUS, data)
}

// MarshalGraphEdge serializes a GraphEdge to bytes.
func MarshalGraphEdge(edge *core.GraphEdge) []byte {
	return marshal(core.GraphEdgeMUS, *edge)
}

// UnmarshalGraphEdge deserializes a GraphEdge from bytes.
func UnmarshalGraphEdge(data []byte) (*core.GraphEdge, error) {
	return unmarshal(core.GraphEdgeMUS, data)
}

// MarshalIndexEntry serializes an IndexEntry to bytes.
func MarshalIndexEntry(entry *core.IndexEntry) []byte {
	return marshal(core.IndexEntryMUS, *entry)
}

// UnmarshalIndexEntry deserializes an IndexEntry from bytes.
func UnmarshalIndexEntry(data []byte) (*core.IndexEntry, error) {
	return unmarshal(core.IndexEntryMUS, data)
}
