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

package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/poiesic/scriptorium/ai"
	"github.com/poiesic/scriptorium/core"
	"github.com/tmc/langchaingo/llms"
)

// GraphExtractor implements ai.GraphExtractor using OpenAI-compatible chat APIs.
type GraphExtractor struct {
	client llms.Model
	logger *slog.Logger
}

// graphNode and graphRelationship are the JSON shapes requested from the model.
type graphNode struct {
	ID         any            `json:"id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

type graphRelationship struct {
	Subj       any            `json:"subj"`
	Obj        any            `json:"obj"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

type graphPayload struct {
	Nodes         []graphNode         `json:"nodes"`
	Relationships []graphRelationship `json:"relationships"`
}

// The textual Node(...)/Relationship(...) form some models fall back to.
var (
	nodePattern = regexp.MustCompile(`Node\(id='(.*?)', type='(.*?)'\)`)
	relPattern  = regexp.MustCompile(`Relationship\(subj=Node\(id='(.*?)', type='(.*?)'\), ` +
		`obj=Node\(id='(.*?)', type='(.*?)'\), type='(.*?)'(?:, timestamp='(.*?)')?\)`)
)

func newGraphExtractor(config *ai.Config) (*GraphExtractor, error) {
	client, err := chatClient(config, config.ChatHost, config.ExtractorModel)
	if err != nil {
		return nil, err
	}
	return &GraphExtractor{
		client: client,
		logger: slog.Default().With("component", "openai-extractor"),
	}, nil
}

// NewGraphExtractor creates a new graph extractor using the provided configuration.
//
// Returns ai.GraphExtractor interface to enforce abstraction.
func NewGraphExtractor(config *ai.Config) (ai.GraphExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newGraphExtractor(config)
}

// ExtractGraph asks the model for nodes and relationships in text.
func (e *GraphExtractor) ExtractGraph(ctx context.Context, text string, schema ai.Schema) (*ai.RawGraph, error) {
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(graphSystemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(buildGraphPrompt(text, schema))},
		},
	}

	response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
	if err != nil {
		e.logger.Error("failed to generate content", "err", err)
		return nil, core.Classify(err)
	}
	if len(response.Choices) < 1 {
		return nil, fmt.Errorf("%w: %w: no choices returned from model", core.ErrTransient, core.ErrInvalidResponse)
	}

	graph, err := parseGraph(response.Choices[0].Content)
	if err != nil {
		e.logger.Warn("error parsing extractor response", "response", response.Choices[0].Content, "err", err)
		return nil, err
	}

	e.logger.Debug("extracted graph candidates", "nodes", len(graph.Nodes), "edges", len(graph.Edges))
	return graph, nil
}

// parseGraph decodes the JSON form of the response, falling back to the
// textual Node/Relationship form. Only a response matching neither is an error.
func parseGraph(raw string) (*ai.RawGraph, error) {
	text := repairJSON(ai.StripCodeFence(raw))

	var payload graphPayload
	jsonErr := json.Unmarshal([]byte(text), &payload)
	if jsonErr == nil {
		graph := &ai.RawGraph{
			Nodes: make([]ai.RawNode, 0, len(payload.Nodes)),
			Edges: make([]ai.RawEdge, 0, len(payload.Relationships)),
		}
		for _, n := range payload.Nodes {
			graph.Nodes = append(graph.Nodes, ai.RawNode{
				ID:         scalar(n.ID),
				Type:       n.Type,
				Properties: scalars(n.Properties),
			})
		}
		for _, r := range payload.Relationships {
			graph.Edges = append(graph.Edges, ai.RawEdge{
				Source:     scalar(r.Subj),
				Target:     scalar(r.Obj),
				Type:       r.Type,
				Properties: scalars(r.Properties),
			})
		}
		return graph, nil
	}

	graph := parseGraphText(raw)
	if len(graph.Nodes) == 0 && len(graph.Edges) == 0 {
		return nil, fmt.Errorf("%w: %w: %w", core.ErrTransient, core.ErrInvalidResponse, jsonErr)
	}
	return graph, nil
}

func parseGraphText(raw string) *ai.RawGraph {
	graph := &ai.RawGraph{}
	for _, m := range nodePattern.FindAllStringSubmatch(raw, -1) {
		graph.Nodes = append(graph.Nodes, ai.RawNode{ID: m[1], Type: m[2]})
	}
	for _, m := range relPattern.FindAllStringSubmatch(raw, -1) {
		edge := ai.RawEdge{Source: m[1], Target: m[3], Type: m[5]}
		if m[6] != "" {
			edge.Properties = map[string]string{"timestamp": m[6]}
		}
		graph.Edges = append(graph.Edges, edge)
	}
	return graph
}

// scalar renders a JSON scalar as a string. Objects and arrays become "".
func scalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

func scalars(m map[string]any) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s := scalar(v); s != "" {
			out[k] = s
		}
	}
	return out
}
