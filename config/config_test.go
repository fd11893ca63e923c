package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/scriptorium/ai"
	"github.com/poiesic/scriptorium/core"
	"github.com/poiesic/scriptorium/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"SCRIPTORIUM_DB", "SCRIPTORIUM_AI_HOST", "SCRIPTORIUM_VISION", "SCRIPTORIUM_GCS_BUCKET", "GOOGLE_CLOUD_PROJECT"} {
		t.Setenv(k, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "scriptorium_db", cfg.Database.Path)
	assert.Equal(t, ai.VisionBackendOpenAI, cfg.AI.VisionBackend)
	assert.Equal(t, core.DefaultSettings(), cfg.ToSettings())
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, BlobBackendBadger, cfg.Blobs.Backend)
	assert.Positive(t, cfg.Pipeline.DocumentConcurrency)
	assert.Equal(t, ingestion.DefaultLeaseTimeout, cfg.Pipeline.LeaseTimeout)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_PartialFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "scriptorium.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /var/lib/scriptorium
pipeline:
  chunk_size: 256
  overlap: 32
  enhancement: aggressive
  lease_timeout: 30s
retry:
  max_attempts: 5
  base_delay: 250ms
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/var/lib/scriptorium", cfg.Database.Path)
	settings := cfg.ToSettings()
	assert.Equal(t, 256, settings.ChunkSize)
	assert.Equal(t, 32, settings.Overlap)
	assert.Equal(t, core.EnhancementAggressive, settings.Enhancement)
	assert.Equal(t, 300, settings.DPI, "unset fields keep defaults")
	assert.Equal(t, 30*time.Second, cfg.Pipeline.LeaseTimeout)

	policy := cfg.ToRetryPolicy()
	assert.Equal(t, 5, policy.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, policy.BaseDelay)
	assert.NotNil(t, policy.Retryable)

	reembedCfg := cfg.ToReembedConfig()
	assert.Equal(t, 5, reembedCfg.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, reembedCfg.RetryDelay)
	assert.Len(t, cfg.PipelineOptions(), 7)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [unterminated"), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCRIPTORIUM_DB", "/tmp/override")
	t.Setenv("SCRIPTORIUM_AI_HOST", "http://models:8080")
	t.Setenv("SCRIPTORIUM_VISION", "Vertex")
	t.Setenv("SCRIPTORIUM_GCS_BUCKET", "pages")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "spine-archive")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/override", cfg.Database.Path)
	assert.Equal(t, "http://models:8080", cfg.AI.ChatHost)
	assert.Equal(t, ai.VisionBackendVertex, cfg.AI.VisionBackend)
	assert.Equal(t, BlobBackendGCS, cfg.Blobs.Backend)
	assert.Equal(t, "pages", cfg.Blobs.Bucket)
	assert.Equal(t, "spine-archive", cfg.AI.VertexProject)
	require.NoError(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Pipeline.ConfidenceFloor = 0.7
	cfg.Retry.MaxDelay = 30 * time.Second
	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "max_delay: 30s")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestToAIConfig_ReadsKeyFromEnv(t *testing.T) {
	t.Setenv("TEST_SCRIPTORIUM_KEY", "sk-test")
	cfg := Default()
	cfg.AI.APIKeyEnv = "TEST_SCRIPTORIUM_KEY"
	assert.Equal(t, "sk-test", cfg.ToAIConfig().APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"overlap too large", func(c *Config) { c.Pipeline.Overlap = c.Pipeline.ChunkSize }},
		{"bad enhancement", func(c *Config) { c.Pipeline.Enhancement = "extreme" }},
		{"bad dpi", func(c *Config) { c.Pipeline.DPI = 150 }},
		{"floor above one", func(c *Config) { c.Pipeline.ConfidenceFloor = 1.5 }},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = -1 }},
		{"unknown blob backend", func(c *Config) { c.Blobs.Backend = "s3" }},
		{"gcs without bucket", func(c *Config) { c.Blobs.Backend = BlobBackendGCS }},
		{"vertex without project", func(c *Config) {
			c.AI.VisionBackend = ai.VisionBackendVertex
			c.AI.VertexProject = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), core.ErrInvalidConfig)
		})
	}
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "scriptorium", "config.yaml"), path)
	assert.Equal(t, Default(), cfg)
	assert.FileExists(t, path)

	require.NoError(t, os.WriteFile(FileName, []byte("database:\n  path: local_db\n"), 0o644))
	cfg, path, err = LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, FileName, path)
	assert.Equal(t, "local_db", cfg.Database.Path)
}
