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

package ai

import (
	"errors"
	"strings"
)

// Vision backends.
const (
	VisionBackendOpenAI = "openai"
	VisionBackendVertex = "vertex"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// ChatHost is the base URL for graph extraction and answer generation.
	ChatHost string

	// VisionHost is the base URL for page transcription when VisionBackend
	// is "openai".
	VisionHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string

	// ExtractorModel is the model identifier for entity and relationship extraction.
	// Example: "qwen2.5:7b", "gpt-4o-mini"
	ExtractorModel string

	// AnswerModel is the model identifier for question answering.
	AnswerModel string

	// VisionModel is the multimodal model identifier for page transcription.
	// Example: "qwen2.5vl:7b", "gemini-2.5-flash"
	VisionModel string

	// VisionBackend selects the vision implementation: "openai" or "vertex".
	// Default: "openai"
	VisionBackend string

	// VertexProject and VertexRegion locate the Vertex AI endpoint when
	// VisionBackend is "vertex".
	VertexProject string
	VertexRegion  string

	// APIKey authenticates against OpenAI-compatible hosts. Local servers
	// accept any value.
	APIKey string
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithChatHost sets the extraction and answer service host URL.
func WithChatHost(host string) ConfigOption {
	return func(c *Config) {
		c.ChatHost = host
	}
}

// WithVisionHost sets the vision service host URL.
func WithVisionHost(host string) ConfigOption {
	return func(c *Config) {
		c.VisionHost = host
	}
}

// WithHost sets every host to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.ChatHost = host
		c.VisionHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithExtractorModel sets the graph extraction model identifier.
func WithExtractorModel(model string) ConfigOption {
	return func(c *Config) {
		c.ExtractorModel = model
	}
}

// WithAnswerModel sets the answer generation model identifier.
func WithAnswerModel(model string) ConfigOption {
	return func(c *Config) {
		c.AnswerModel = model
	}
}

// WithVisionModel sets the vision model identifier.
func WithVisionModel(model string) ConfigOption {
	return func(c *Config) {
		c.VisionModel = model
	}
}

// WithVertex selects the Vertex AI vision backend.
func WithVertex(project, region string) ConfigOption {
	return func(c *Config) {
		c.VisionBackend = VisionBackendVertex
		c.VertexProject = project
		c.VertexRegion = region
	}
}

// WithAPIKey sets the key sent to OpenAI-compatible hosts.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// DefaultConfig returns a Config with sensible defaults for local OpenAI-compatible services.
// By default, every service uses the same host.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		EmbeddingHost:  defaultHost,
		ChatHost:       defaultHost,
		VisionHost:     defaultHost,
		EmbeddingModel: "embeddinggemma",
		ExtractorModel: "qwen2.5:7b",
		AnswerModel:    "qwen2.5:7b",
		VisionModel:    "qwen2.5vl:7b",
		VisionBackend:  VisionBackendOpenAI,
		VertexRegion:   "us-central1",
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("text-embedding-3-small"),
//	)
//
// Example with Gemini transcription:
//
//	cfg := NewConfig(
//	    WithVertex("my-project", "europe-west4"),
//	    WithVisionModel("gemini-2.5-flash"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It automatically adds the /v1 suffix to hosts if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.ChatHost = normalizeHost(c.ChatHost)
	c.VisionHost = normalizeHost(c.VisionHost)
	c.VisionBackend = strings.ToLower(strings.TrimSpace(c.VisionBackend))
	if c.VisionBackend == "" {
		c.VisionBackend = VisionBackendOpenAI
	}
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.ChatHost == "" {
		return errors.New("ai config: ChatHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.ExtractorModel == "" {
		return errors.New("ai config: ExtractorModel is required")
	}
	if c.AnswerModel == "" {
		return errors.New("ai config: AnswerModel is required")
	}
	if c.VisionModel == "" {
		return errors.New("ai config: VisionModel is required")
	}
	switch c.VisionBackend {
	case VisionBackendOpenAI:
		if c.VisionHost == "" {
			return errors.New("ai config: VisionHost is required for the openai vision backend")
		}
	case VisionBackendVertex:
		if c.VertexProject == "" || c.VertexRegion == "" {
			return errors.New("ai config: VertexProject and VertexRegion are required for the vertex vision backend")
		}
	default:
		return errors.New("ai config: VisionBackend must be openai or vertex")
	}
	return nil
}

// Token returns the API key, or a placeholder accepted by local servers.
func (c *Config) Token() string {
	if c.APIKey == "" {
		return "none"
	}
	return c.APIKey
}
