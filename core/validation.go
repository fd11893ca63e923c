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

package core

import (
	"fmt"
	"math"
)

// ValidateSettings validates per-document processing settings.
//
// Validation rules:
//   - ChunkSize and Overlap must be positive
//   - Overlap must be smaller than ChunkSize
//   - Enhancement must be light, medium or aggressive
//   - DPI must be 200 or 300
func ValidateSettings(s Settings) error {
	if s.ChunkSize <= 0 || s.Overlap <= 0 {
		return fmt.Errorf("%w: chunk size %d and overlap %d must be positive", ErrInvalidConfig, s.ChunkSize, s.Overlap)
	}
	if s.Overlap >= s.ChunkSize {
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidConfig, s.Overlap, s.ChunkSize)
	}
	switch s.Enhancement {
	case EnhancementLight, EnhancementMedium, EnhancementAggressive:
	default:
		return fmt.Errorf("%w: unknown enhancement level %q", ErrInvalidConfig, s.Enhancement)
	}
	if s.DPI != 200 && s.DPI != 300 {
		return fmt.Errorf("%w: dpi must be 200 or 300, got %d", ErrInvalidConfig, s.DPI)
	}
	return nil
}

// ValidateDocument validates a Document before it is stored.
//
// Validation rules:
//   - FileName must not be empty
//   - At least one page, with indices 0..n-1 in order and an image reference each
//   - Settings must be valid
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if doc.FileName == "" {
		return fmt.Errorf("%w: file name cannot be empty", ErrInvalidDocument)
	}
	if len(doc.Pages) == 0 {
		return fmt.Errorf("%w: document has no pages", ErrInvalidDocument)
	}
	for i, page := range doc.Pages {
		if page.Index != i {
			return fmt.Errorf("%w: page %d has index %d", ErrInvalidDocument, i, page.Index)
		}
		if page.ImageRef == "" {
			return fmt.Errorf("%w: page %d has no image reference", ErrInvalidDocument, i)
		}
	}
	if err := ValidateSettings(doc.Settings); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return nil
}

// ValidateConfidence checks that an OCR confidence is a number in [0, 1].
func ValidateConfidence(c float64) error {
	if math.IsNaN(c) || c < 0 || c > 1 {
		return fmt.Errorf("%w: confidence %v outside [0, 1]", ErrInvalidResponse, c)
	}
	return nil
}

// ValidateNode validates a graph node before it is written.
//
// Validation rules:
//   - Type must be one of the enumerated node types
//   - Label must not be empty after normalization
//   - At least one provenance entry
func ValidateNode(node *GraphNode) error {
	if node == nil {
		return fmt.Errorf("%w: node is nil", ErrInvalidNode)
	}
	if _, ok := ParseNodeType(string(node.Type)); !ok {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidNode, node.Type)
	}
	if NormalizeLabel(node.Label) == "" {
		return fmt.Errorf("%w: label cannot be empty", ErrInvalidNode)
	}
	if len(node.Provenance) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidNode, ErrEmptyProvenance)
	}
	return nil
}

// ValidateEdge validates a graph edge before it is written.
//
// Validation rules:
//   - Relation must be one of the enumerated relationship types
//   - Directed must agree with the relation
//   - Source and target must be set and distinct
//   - Provenance must name a document
func ValidateEdge(edge *GraphEdge) error {
	if edge == nil {
		return fmt.Errorf("%w: edge is nil", ErrInvalidEdge)
	}
	rel, ok := ParseRelationType(string(edge.Relation))
	if !ok {
		return fmt.Errorf("%w: unknown relation %q", ErrInvalidEdge, edge.Relation)
	}
	if rel.Directed() != edge.Directed {
		return fmt.Errorf("%w: directionality mismatch for %s", ErrInvalidEdge, rel)
	}
	if edge.Source == 0 || edge.Target == 0 {
		return fmt.Errorf("%w: endpoints must be set", ErrInvalidEdge)
	}
	if edge.Source == edge.Target {
		return fmt.Errorf("%w: self loop on node %d", ErrInvalidEdge, edge.Source)
	}
	if edge.Provenance.DocumentId == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidEdge, ErrEmptyProvenance)
	}
	return nil
}
