package core

import (
	"strings"
	"unicode"
)

// NodeType is one of the fixed clinical entity categories.
type NodeType string

const (
	NodeClinicalObservation NodeType = "ClinicalObservation"
	NodeTherapeuticOutcome  NodeType = "TherapeuticOutcome"
	NodeContextualFactor    NodeType = "ContextualFactor"
	NodeMechanisticConcept  NodeType = "MechanisticConcept"
	NodeTherapeuticApproach NodeType = "TherapeuticApproach"
	NodeSourceText          NodeType = "SourceText"
)

// NodeTypes lists every valid node type.
var NodeTypes = []NodeType{
	NodeClinicalObservation,
	NodeTherapeuticOutcome,
	NodeContextualFactor,
	NodeMechanisticConcept,
	NodeTherapeuticApproach,
	NodeSourceText,
}

// ParseNodeType matches s against the enumeration, ignoring case, spaces and underscores.
func ParseNodeType(s string) (NodeType, bool) {
	key := squash(s)
	for _, t := range NodeTypes {
		if squash(string(t)) == key {
			return t, true
		}
	}
	return "", false
}

// RelationType is one of the fixed relationship categories.
type RelationType string

const (
	RelCoOccursWith   RelationType = "co_occurs_with"
	RelPrecededBy     RelationType = "preceded_by"
	RelFollowedBy     RelationType = "followed_by"
	RelModifiedBy     RelationType = "modified_by"
	RelRespondsTo     RelationType = "responds_to"
	RelAssociatedWith RelationType = "associated_with"
	RelResultsIn      RelationType = "results_in"
	RelDescribedIn    RelationType = "described_in"
	RelContradicts    RelationType = "contradicts"
	RelCorroborates   RelationType = "corroborates"
)

// RelationTypes lists every valid relationship type.
var RelationTypes = []RelationType{
	RelCoOccursWith,
	RelPrecededBy,
	RelFollowedBy,
	RelModifiedBy,
	RelRespondsTo,
	RelAssociatedWith,
	RelResultsIn,
	RelDescribedIn,
	RelContradicts,
	RelCorroborates,
}

// Directed reports whether the relationship has a meaningful direction.
// Symmetric relations (co-occurrence, association and the consistency pair)
// are undirected.
func (r RelationType) Directed() bool {
	switch r {
	case RelCoOccursWith, RelAssociatedWith, RelContradicts, RelCorroborates:
		return false
	}
	return true
}

// ParseRelationType matches s against the enumeration, accepting spaces or
// hyphens in place of underscores.
func ParseRelationType(s string) (RelationType, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	for _, r := range RelationTypes {
		if string(r) == key {
			return r, true
		}
	}
	return "", false
}

// NormalizeLabel lowercases a label, turns underscores into spaces, strips
// surrounding punctuation and collapses runs of whitespace.
func NormalizeLabel(label string) string {
	label = strings.ToLower(strings.ReplaceAll(label, "_", " "))
	label = strings.TrimFunc(label, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	return strings.Join(strings.Fields(label), " ")
}

func squash(s string) string {
	s = strings.ToLower(s)
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}
