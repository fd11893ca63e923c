package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/scriptorium/ai"
)

const graphSystemPrompt = "Your mission is to transform unstructured content into structured graph data. " +
	"Extract nodes and relationships with precision, and let the connections unfold."

const graphPromptTemplate = `You are tasked with extracting entities (nodes) and relationships from historical spine science texts and traditional medicine documents. Whatever the language of the document, translate node identifiers into English.

Node types must be one of:
%s
Relationship types must be one of:
%s
Output ONLY valid JSON. Do not include any preamble or explanation. Start your response directly with
the opening brace { and end with the closing brace }. Use this shape:

{
  "nodes": [
    {"id": "snake_case_identifier", "type": "NodeType", "properties": {"key": "scalar value"}}
  ],
  "relationships": [
    {"subj": "node id", "obj": "node id", "type": "relationship_type", "properties": {}}
  ]
}

Rules:
- Every relationship must connect two ids listed in "nodes".
- Use the direction subject -> object for directed relationships.
- Properties are optional qualifiers with string, number or boolean values.

Example content:
"Ollivier describes cases of paralysis linked to spinal blood congestions, where an accumulation of blood in the spinal veins leads to symptoms like incomplete paralysis without intellectual impairment. He notes that these congestions often resolve spontaneously."

Example output:
{
  "nodes": [
    {"id": "paralysis_spinal_blood_congestion", "type": "ClinicalObservation"},
    {"id": "incomplete_paralysis", "type": "ClinicalObservation"},
    {"id": "blood_accumulation_spinal_veins", "type": "MechanisticConcept"},
    {"id": "spontaneous_resolution", "type": "TherapeuticOutcome"},
    {"id": "Ollivier", "type": "SourceText"}
  ],
  "relationships": [
    {"subj": "blood_accumulation_spinal_veins", "obj": "paralysis_spinal_blood_congestion", "type": "associated_with"},
    {"subj": "paralysis_spinal_blood_congestion", "obj": "incomplete_paralysis", "type": "co_occurs_with"},
    {"subj": "paralysis_spinal_blood_congestion", "obj": "spontaneous_resolution", "type": "results_in"},
    {"subj": "paralysis_spinal_blood_congestion", "obj": "Ollivier", "type": "described_in"}
  ]
}

===== TASK =====
Extract nodes and relationships from the following content.

%s`

// buildGraphPrompt renders the extraction prompt for the given schema.
func buildGraphPrompt(text string, schema ai.Schema) string {
	var nodes, rels strings.Builder
	for _, t := range schema.NodeTypes {
		fmt.Fprintf(&nodes, "- %s", t)
		if desc, ok := ai.NodeDescriptions[t]; ok {
			fmt.Fprintf(&nodes, " (%s)", desc)
		}
		nodes.WriteString("\n")
	}
	for _, r := range schema.RelationTypes {
		fmt.Fprintf(&rels, "- %s", r)
		if desc, ok := ai.RelationDescriptions[r]; ok {
			fmt.Fprintf(&rels, " (%s)", desc)
		}
		rels.WriteString("\n")
	}
	return fmt.Sprintf(graphPromptTemplate, nodes.String(), rels.String(), text)
}

const answerSystemPrompt = "You answer questions about historical spine science using only the numbered passages provided. " +
	"Cite passages by number in square brackets, e.g. [2]. If the passages do not contain the answer, say so."

// buildAnswerPrompt lists the passages and the question.
func buildAnswerPrompt(question string, passages []ai.Passage) string {
	var b strings.Builder
	b.WriteString("Passages:\n\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, p.Title, strings.TrimSpace(p.Text))
	}
	fmt.Fprintf(&b, "Question: %s\n(Return answer in concise markdown)", strings.TrimSpace(question))
	return b.String()
}
