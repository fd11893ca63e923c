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

package mock

import "github.com/poiesic/scriptorium/ai"

// MockProvider is a test double for ai.Provider.
// It aggregates one mock of every service.
type MockProvider struct {
	embedder  *MockEmbedder
	vision    *MockVision
	extractor *MockGraphExtractor
	answerer  *MockAnswerGenerator
	closed    bool
}

// NewMockProvider creates a new mock provider with default mock services.
//
// Returns ai.Provider interface for consistency with production constructors.
// Use the GetMock accessors to reach concrete types for test assertions.
func NewMockProvider() ai.Provider {
	return newMockProvider()
}

func newMockProvider() *MockProvider {
	return &MockProvider{
		embedder:  NewMockEmbedder(),
		vision:    NewMockVision(),
		extractor: NewMockGraphExtractor(),
		answerer:  NewMockAnswerGenerator(),
	}
}

// NewMockProviderWithServices creates a mock provider with custom mock services.
// Nil arguments are replaced by default mocks.
func NewMockProviderWithServices(embedder *MockEmbedder, vision *MockVision, extractor *MockGraphExtractor, answerer *MockAnswerGenerator) ai.Provider {
	p := newMockProvider()
	if embedder != nil {
		p.embedder = embedder
	}
	if vision != nil {
		p.vision = vision
	}
	if extractor != nil {
		p.extractor = extractor
	}
	if answerer != nil {
		p.answerer = answerer
	}
	return p
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// Vision returns the mock vision model.
func (p *MockProvider) Vision() ai.VisionModel {
	return p.vision
}

// GraphExtractor returns the mock graph extractor.
func (p *MockProvider) GraphExtractor() ai.GraphExtractor {
	return p.extractor
}

// AnswerGenerator returns the mock answer generator.
func (p *MockProvider) AnswerGenerator() ai.AnswerGenerator {
	return p.answerer
}

// Close marks the provider closed.
func (p *MockProvider) Close() error {
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *MockProvider) Closed() bool {
	return p.closed
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockVision returns the underlying mock vision model for test assertions.
func (p *MockProvider) GetMockVision() *MockVision {
	return p.vision
}

// GetMockExtractor returns the underlying mock graph extractor for test assertions.
func (p *MockProvider) GetMockExtractor() *MockGraphExtractor {
	return p.extractor
}

// GetMockAnswerer returns the underlying mock answer generator for test assertions.
func (p *MockProvider) GetMockAnswerer() *MockAnswerGenerator {
	return p.answerer
}
