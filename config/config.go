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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/poiesic/scriptorium/ai"
	"github.com/poiesic/scriptorium/core"
	"github.com/poiesic/scriptorium/ingestion"
	"github.com/poiesic/scriptorium/reembed"
	"github.com/poiesic/scriptorium/retry"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the working directory.
const FileName = "scriptorium.yaml"

// Blob backends.
const (
	BlobBackendBadger = "badger"
	BlobBackendGCS    = "gcs"
)

// DatabaseConfig locates the BadgerDB directory.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AIConfig configures the model services.
type AIConfig struct {
	EmbeddingHost  string `yaml:"embedding_host"`
	ChatHost       string `yaml:"chat_host"`
	VisionHost     string `yaml:"vision_host"`
	EmbeddingModel string `yaml:"embedding_model"`
	ExtractorModel string `yaml:"extractor_model"`
	AnswerModel    string `yaml:"answer_model"`
	VisionModel    string `yaml:"vision_model"`
	VisionBackend  string `yaml:"vision_backend"`
	VertexProject  string `yaml:"vertex_project,omitempty"`
	VertexRegion   string `yaml:"vertex_region"`
	APIKeyEnv      string `yaml:"api_key_env"`
}

// PipelineConfig holds processing defaults and worker limits.
type PipelineConfig struct {
	ChunkSize           int           `yaml:"chunk_size"`
	Overlap             int           `yaml:"overlap"`
	Enhancement         string        `yaml:"enhancement"`
	DPI                 int           `yaml:"dpi"`
	DomainHint          string        `yaml:"domain_hint"`
	ConfidenceFloor     float64       `yaml:"confidence_floor"`
	CallConcurrency     int           `yaml:"call_concurrency"`
	DocumentConcurrency int           `yaml:"document_concurrency"`
	SectionTokens       int           `yaml:"section_tokens"`
	LeaseTimeout        time.Duration `yaml:"lease_timeout"`
}

// RetryConfig configures backoff for remote calls.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Jitter      float64       `yaml:"jitter"`
}

// BlobConfig selects where page images are stored.
type BlobConfig struct {
	Backend string `yaml:"backend"`
	Bucket  string `yaml:"bucket,omitempty"`
	Prefix  string `yaml:"prefix,omitempty"`
}

// ReembedConfig configures the reembed command.
type ReembedConfig struct {
	BatchSize      int `yaml:"batch_size"`
	ReportInterval int `yaml:"report_interval"`
	Concurrency    int `yaml:"concurrency"`
}

// Config is the root application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	AI       AIConfig       `yaml:"ai"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Retry    RetryConfig    `yaml:"retry"`
	Blobs    BlobConfig     `yaml:"blobs"`
	Reembed  ReembedConfig  `yaml:"reembed"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a config from path. A missing file yields the defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", core.ErrInvalidConfig, path, err)
		}
	}
	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

// LoadDefault tries ./scriptorium.yaml first, then
// ~/.config/scriptorium/config.yaml. If neither exists, it writes the
// defaults to the user path and returns them with that path.
func LoadDefault() (*Config, string, error) {
	if _, err := os.Stat(FileName); err == nil {
		cfg, err := Load(FileName)
		return cfg, FileName, err
	}
	userPath, err := UserPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, Default()); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes cfg to path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// UserPath returns the per-user config location.
func UserPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "scriptorium", "config.yaml"), nil
}

func applyDefaults(cfg *Config) {
	aiDefaults := ai.DefaultConfig()
	settings := core.DefaultSettings()
	policy := retry.DefaultPolicy()
	reembedDefaults := reembed.DefaultConfig()

	setString(&cfg.Database.Path, "scriptorium_db")

	setString(&cfg.AI.EmbeddingHost, aiDefaults.EmbeddingHost)
	setString(&cfg.AI.ChatHost, aiDefaults.ChatHost)
	setString(&cfg.AI.VisionHost, aiDefaults.VisionHost)
	setString(&cfg.AI.EmbeddingModel, aiDefaults.EmbeddingModel)
	setString(&cfg.AI.ExtractorModel, aiDefaults.ExtractorModel)
	setString(&cfg.AI.AnswerModel, aiDefaults.AnswerModel)
	setString(&cfg.AI.VisionModel, aiDefaults.VisionModel)
	setString(&cfg.AI.VisionBackend, aiDefaults.VisionBackend)
	setString(&cfg.AI.VertexRegion, aiDefaults.VertexRegion)
	setString(&cfg.AI.APIKeyEnv, "OPENAI_API_KEY")

	setInt(&cfg.Pipeline.ChunkSize, settings.ChunkSize)
	setInt(&cfg.Pipeline.Overlap, settings.Overlap)
	setString(&cfg.Pipeline.Enhancement, string(settings.Enhancement))
	setInt(&cfg.Pipeline.DPI, settings.DPI)
	setString(&cfg.Pipeline.DomainHint, settings.DomainHint)
	if cfg.Pipeline.ConfidenceFloor == 0 {
		cfg.Pipeline.ConfidenceFloor = ingestion.DefaultConfidenceFloor
	}
	setInt(&cfg.Pipeline.CallConcurrency, 4)
	setInt(&cfg.Pipeline.DocumentConcurrency, max(runtime.NumCPU()/2, 1))
	setInt(&cfg.Pipeline.SectionTokens, ingestion.DefaultSectionTokens)
	if cfg.Pipeline.LeaseTimeout == 0 {
		cfg.Pipeline.LeaseTimeout = ingestion.DefaultLeaseTimeout
	}

	setInt(&cfg.Retry.MaxAttempts, policy.MaxAttempts)
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = policy.BaseDelay
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = policy.MaxDelay
	}
	if cfg.Retry.Jitter == 0 {
		cfg.Retry.Jitter = policy.Jitter
	}

	setString(&cfg.Blobs.Backend, BlobBackendBadger)

	setInt(&cfg.Reembed.BatchSize, reembedDefaults.BatchSize)
	setInt(&cfg.Reembed.ReportInterval, reembedDefaults.ReportInterval)
	setInt(&cfg.Reembed.Concurrency, reembedDefaults.Concurrency)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SCRIPTORIUM_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SCRIPTORIUM_AI_HOST"); v != "" {
		cfg.AI.EmbeddingHost = v
		cfg.AI.ChatHost = v
		cfg.AI.VisionHost = v
	}
	if v := os.Getenv("SCRIPTORIUM_VISION"); v != "" {
		cfg.AI.VisionBackend = strings.ToLower(v)
	}
	if v := os.Getenv("SCRIPTORIUM_GCS_BUCKET"); v != "" {
		cfg.Blobs.Backend = BlobBackendGCS
		cfg.Blobs.Bucket = v
	}
	if cfg.AI.VertexProject == "" {
		cfg.AI.VertexProject = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", core.ErrInvalidConfig)
	}
	if err := c.ToAIConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrInvalidConfig, err)
	}
	if err := core.ValidateSettings(c.ToSettings()); err != nil {
		return err
	}
	if err := core.ValidateConfidence(c.Pipeline.ConfidenceFloor); err != nil {
		return fmt.Errorf("%w: pipeline.confidence_floor: %w", core.ErrInvalidConfig, err)
	}
	if c.Pipeline.LeaseTimeout < 0 {
		return fmt.Errorf("%w: pipeline.lease_timeout must be positive", core.ErrInvalidConfig)
	}
	if err := c.ToRetryPolicy().Validate(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrInvalidConfig, err)
	}
	switch c.Blobs.Backend {
	case BlobBackendBadger:
	case BlobBackendGCS:
		if c.Blobs.Bucket == "" {
			return fmt.Errorf("%w: blobs.bucket is required for the gcs backend", core.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: blobs.backend must be badger or gcs, got %q", core.ErrInvalidConfig, c.Blobs.Backend)
	}
	return nil
}

// ToAIConfig converts the ai section. The API key is read from the
// environment variable named by api_key_env.
func (c *Config) ToAIConfig() *ai.Config {
	return &ai.Config{
		EmbeddingHost:  c.AI.EmbeddingHost,
		ChatHost:       c.AI.ChatHost,
		VisionHost:     c.AI.VisionHost,
		EmbeddingModel: c.AI.EmbeddingModel,
		ExtractorModel: c.AI.ExtractorModel,
		AnswerModel:    c.AI.AnswerModel,
		VisionModel:    c.AI.VisionModel,
		VisionBackend:  c.AI.VisionBackend,
		VertexProject:  c.AI.VertexProject,
		VertexRegion:   c.AI.VertexRegion,
		APIKey:         os.Getenv(c.AI.APIKeyEnv),
	}
}

// ToSettings converts the pipeline section to document settings.
func (c *Config) ToSettings() core.Settings {
	return core.Settings{
		ChunkSize:   c.Pipeline.ChunkSize,
		Overlap:     c.Pipeline.Overlap,
		Enhancement: core.EnhancementLevel(c.Pipeline.Enhancement),
		DPI:         c.Pipeline.DPI,
		DomainHint:  c.Pipeline.DomainHint,
	}
}

// ToRetryPolicy converts the retry section.
func (c *Config) ToRetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = c.Retry.MaxAttempts
	p.BaseDelay = c.Retry.BaseDelay
	p.MaxDelay = c.Retry.MaxDelay
	p.Jitter = c.Retry.Jitter
	return p
}

// PipelineOptions returns the ingestion options described by the config.
func (c *Config) PipelineOptions() []ingestion.Option {
	return []ingestion.Option{
		ingestion.WithSettings(c.ToSettings()),
		ingestion.WithConfidenceFloor(c.Pipeline.ConfidenceFloor),
		ingestion.WithCallConcurrency(c.Pipeline.CallConcurrency),
		ingestion.WithDocumentConcurrency(c.Pipeline.DocumentConcurrency),
		ingestion.WithSectionTokens(c.Pipeline.SectionTokens),
		ingestion.WithLeaseTimeout(c.Pipeline.LeaseTimeout),
		ingestion.WithRetryPolicy(c.ToRetryPolicy()),
	}
}

// ToReembedConfig converts the reembed and retry sections.
func (c *Config) ToReembedConfig() *reembed.Config {
	return &reembed.Config{
		BatchSize:      c.Reembed.BatchSize,
		ReportInterval: c.Reembed.ReportInterval,
		Concurrency:    c.Reembed.Concurrency,
		MaxRetries:     c.Retry.MaxAttempts,
		RetryDelay:     c.Retry.BaseDelay,
	}
}
