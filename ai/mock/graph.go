package mock

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/poiesic/scriptorium/ai"
	"github.com/poiesic/scriptorium/core"
)

// MockGraphExtractor is a test double for ai.GraphExtractor.
type MockGraphExtractor struct {
	// ExtractGraphFunc is called by ExtractGraph if set.
	// If nil, uses default simple word extraction.
	ExtractGraphFunc func(ctx context.Context, text string, schema ai.Schema) (*ai.RawGraph, error)

	mu        sync.Mutex
	callCount int
	texts     []string
}

// NewMockGraphExtractor creates a mock graph extractor with default behavior.
func NewMockGraphExtractor() *MockGraphExtractor {
	return &MockGraphExtractor{}
}

// ExtractGraph records the call and returns the configured graph.
// Default behavior: every word of eight or more letters becomes a
// ClinicalObservation node and consecutive nodes co-occur.
func (m *MockGraphExtractor) ExtractGraph(ctx context.Context, text string, schema ai.Schema) (*ai.RawGraph, error) {
	m.mu.Lock()
	m.callCount++
	m.texts = append(m.texts, text)
	m.mu.Unlock()

	if m.ExtractGraphFunc != nil {
		return m.ExtractGraphFunc(ctx, text, schema)
	}

	graph := &ai.RawGraph{}
	seen := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.TrimFunc(word, func(r rune) bool { return !unicode.IsLetter(r) })
		if len(word) < 8 || seen[word] {
			continue
		}
		seen[word] = true
		if n := len(graph.Nodes); n > 0 {
			graph.Edges = append(graph.Edges, ai.RawEdge{
				Source: graph.Nodes[n-1].ID,
				Target: word,
				Type:   string(core.RelCoOccursWith),
			})
		}
		graph.Nodes = append(graph.Nodes, ai.RawNode{ID: word, Type: string(core.NodeClinicalObservation)})
	}
	return graph, nil
}

// CallCount returns the number of ExtractGraph calls.
func (m *MockGraphExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Texts returns the text passed to every call, in call order.
func (m *MockGraphExtractor) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// Reset clears the call history and the injected behavior.
func (m *MockGraphExtractor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.texts = nil
	m.ExtractGraphFunc = nil
}
