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
	"errors"
	"log/slog"

	"github.com/poiesic/scriptorium/ai"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider implements ai.Provider using OpenAI-compatible services.
type Provider struct {
	config    *ai.Config
	embedder  *Embedder
	vision    *Vision
	extractor *GraphExtractor
	answerer  *AnswerGenerator
	logger    *slog.Logger
}

// NewProvider creates a new AI provider with OpenAI-compatible services.
// The config is validated and normalized before use.
//
// Returns ai.Provider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(config *ai.Config) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	extractor, err := newGraphExtractor(config)
	if err != nil {
		return nil, err
	}

	answerer, err := newAnswerGenerator(config)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		config:    config,
		embedder:  embedder,
		extractor: extractor,
		answerer:  answerer,
		logger:    slog.Default().With("component", "openai-provider"),
	}

	if config.VisionBackend == ai.VisionBackendOpenAI {
		p.vision, err = newVision(config)
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// chatClient creates a langchaingo client for a chat model on host.
func chatClient(config *ai.Config, host, model string) (*openai.LLM, error) {
	if host == "" || model == "" {
		return nil, errors.New("openai: host and model are required")
	}
	return openai.New(
		openai.WithBaseURL(host),
		openai.WithToken(config.Token()),
		openai.WithModel(model),
	)
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Vision returns the page transcription service, or nil when the
// configuration selects another vision backend.
func (p *Provider) Vision() ai.VisionModel {
	if p.vision == nil {
		return nil
	}
	return p.vision
}

// GraphExtractor returns the entity and relationship extraction service.
func (p *Provider) GraphExtractor() ai.GraphExtractor {
	return p.extractor
}

// AnswerGenerator returns the question answering service.
func (p *Provider) AnswerGenerator() ai.AnswerGenerator {
	return p.answerer
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
