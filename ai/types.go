package ai

import (
	"github.com/poiesic/scriptorium/core"
)

// VisionOptions carries the per-document OCR settings to the vision model.
type VisionOptions struct {
	Enhancement core.EnhancementLevel
	DPI         int
	DomainHint  string
}

// VisionResult is the text of one page and the model's confidence in it.
type VisionResult struct {
	Text       string
	Confidence float64
}

// Schema is the set of node and relationship types an extractor may emit.
type Schema struct {
	NodeTypes     []core.NodeType
	RelationTypes []core.RelationType
}

// DefaultSchema returns the full clinical schema.
func DefaultSchema() Schema {
	return Schema{
		NodeTypes:     append([]core.NodeType(nil), core.NodeTypes...),
		RelationTypes: append([]core.RelationType(nil), core.RelationTypes...),
	}
}

// NodeDescriptions explains each node type to the extractor.
var NodeDescriptions = map[core.NodeType]string{
	core.NodeClinicalObservation: "signs, symptoms, disease presentations",
	core.NodeTherapeuticOutcome:  "treatment responses, recovery patterns",
	core.NodeContextualFactor:    "environmental, behavioral, constitutional factors",
	core.NodeMechanisticConcept:  "traditional explanatory models, processes",
	core.NodeTherapeuticApproach: "interventions, remedies, methods",
	core.NodeSourceText:          "reference to original documents or authors",
}

// RelationDescriptions explains each relationship type to the extractor.
var RelationDescriptions = map[core.RelationType]string{
	core.RelCoOccursWith:   "between related clinical observations",
	core.RelPrecededBy:     "temporal relationship",
	core.RelFollowedBy:     "temporal relationship",
	core.RelModifiedBy:     "how contexts affect observations",
	core.RelRespondsTo:     "observation responses to treatments",
	core.RelAssociatedWith: "contextual associations with observations",
	core.RelResultsIn:      "effects produced by treatments",
	core.RelDescribedIn:    "attribution to source texts",
	core.RelContradicts:    "consistency relationship",
	core.RelCorroborates:   "consistency relationship",
}

// RawNode is an unvalidated node candidate. ID is the label the model chose.
type RawNode struct {
	ID         string
	Type       string
	Properties map[string]string
}

// RawEdge is an unvalidated relationship candidate between two RawNode IDs.
type RawEdge struct {
	Source     string
	Target     string
	Type       string
	Properties map[string]string
}

// RawGraph is what an extractor returned for one piece of text.
type RawGraph struct {
	Nodes []RawNode
	Edges []RawEdge
}

// Passage is a retrieved chunk handed to an AnswerGenerator.
type Passage struct {
	ChunkId core.ChunkID
	Title   string
	Text    string
}
