package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "http://localhost:11434/v1", cfg.ChatHost)
	assert.Equal(t, "http://localhost:11434/v1", cfg.VisionHost)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
	assert.Equal(t, VisionBackendOpenAI, cfg.VisionBackend)
	assert.Equal(t, "none", cfg.Token())
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with custom host", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://custom:8080/v1"))

		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://custom:8080/v1", cfg.ChatHost)
		assert.Equal(t, "http://custom:8080/v1", cfg.VisionHost)
	})

	t.Run("with separate hosts", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithChatHost("http://chat:9090/v1"),
			WithVisionHost("http://vision:7070/v1"),
		)

		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://chat:9090/v1", cfg.ChatHost)
		assert.Equal(t, "http://vision:7070/v1", cfg.VisionHost)
	})

	t.Run("with custom models", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingModel("text-embedding-3-small"),
			WithExtractorModel("gpt-4o-mini"),
			WithAnswerModel("gpt-4o"),
			WithVisionModel("gpt-4o"),
			WithAPIKey("sk-test"),
		)

		assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
		assert.Equal(t, "gpt-4o-mini", cfg.ExtractorModel)
		assert.Equal(t, "gpt-4o", cfg.AnswerModel)
		assert.Equal(t, "gpt-4o", cfg.VisionModel)
		assert.Equal(t, "sk-test", cfg.Token())
	})

	t.Run("with vertex", func(t *testing.T) {
		cfg := NewConfig(WithVertex("proj", "europe-west4"))

		assert.Equal(t, VisionBackendVertex, cfg.VisionBackend)
		assert.Equal(t, "proj", cfg.VertexProject)
		assert.Equal(t, "europe-west4", cfg.VertexRegion)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		expected string
	}{
		{"already has /v1", "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"missing /v1", "http://localhost:11434", "http://localhost:11434/v1"},
		{"has trailing slash", "http://localhost:11434/", "http://localhost:11434/v1"},
		{"empty host", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{EmbeddingHost: tt.host, ChatHost: tt.host, VisionHost: tt.host}

			cfg.Normalize()

			assert.Equal(t, tt.expected, cfg.EmbeddingHost)
			assert.Equal(t, tt.expected, cfg.ChatHost)
			assert.Equal(t, tt.expected, cfg.VisionHost)
		})
	}

	t.Run("backend defaults to openai", func(t *testing.T) {
		cfg := &Config{VisionBackend: "  "}
		cfg.Normalize()
		assert.Equal(t, VisionBackendOpenAI, cfg.VisionBackend)

		cfg.VisionBackend = "Vertex"
		cfg.Normalize()
		assert.Equal(t, VisionBackendVertex, cfg.VisionBackend)
	})
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			EmbeddingHost:  "http://localhost:11434",
			ChatHost:       "http://localhost:11434",
			VisionHost:     "http://localhost:11434",
			EmbeddingModel: "embeddinggemma",
			ExtractorModel: "qwen2.5:7b",
			AnswerModel:    "qwen2.5:7b",
			VisionModel:    "qwen2.5vl:7b",
		}
	}

	t.Run("valid config", func(t *testing.T) {
		cfg := valid()
		require.NoError(t, cfg.Validate())

		// Should also normalize
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://localhost:11434/v1", cfg.ChatHost)
		assert.Equal(t, VisionBackendOpenAI, cfg.VisionBackend)
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing embedding host", func(c *Config) { c.EmbeddingHost = "" }, "EmbeddingHost"},
		{"missing chat host", func(c *Config) { c.ChatHost = "" }, "ChatHost"},
		{"missing embedding model", func(c *Config) { c.EmbeddingModel = "" }, "EmbeddingModel"},
		{"missing extractor model", func(c *Config) { c.ExtractorModel = "" }, "ExtractorModel"},
		{"missing answer model", func(c *Config) { c.AnswerModel = "" }, "AnswerModel"},
		{"missing vision model", func(c *Config) { c.VisionModel = "" }, "VisionModel"},
		{"missing vision host", func(c *Config) { c.VisionHost = "" }, "VisionHost"},
		{"vertex without project", func(c *Config) { c.VisionBackend = VisionBackendVertex; c.VertexRegion = "us-central1" }, "VertexProject"},
		{"unknown backend", func(c *Config) { c.VisionBackend = "tesseract" }, "VisionBackend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}

	t.Run("vertex does not need a vision host", func(t *testing.T) {
		cfg := valid()
		cfg.VisionHost = ""
		WithVertex("proj", "us-central1")(cfg)
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfigValidate_Integration(t *testing.T) {
	// Test that NewConfig produces a valid configuration
	cfg := NewConfig()
	err := cfg.Validate()
	require.NoError(t, err)

	// Test that DefaultConfig produces a valid configuration
	cfg = DefaultConfig()
	err = cfg.Validate()
	require.NoError(t, err)
}
