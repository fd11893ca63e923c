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

package scriptorium

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/poiesic/scriptorium/ai"
	"github.com/poiesic/scriptorium/ai/openai"
	"github.com/poiesic/scriptorium/ai/vertex"
	"github.com/poiesic/scriptorium/config"
	"github.com/poiesic/scriptorium/ingestion"
	"github.com/poiesic/scriptorium/reembed"
	"github.com/poiesic/scriptorium/search"
	"github.com/poiesic/scriptorium/storage"
	"github.com/poiesic/scriptorium/storage/badger"
	"github.com/poiesic/scriptorium/storage/gcs"
)

// Database owns the stores and model provider shared by the pipeline,
// searcher and maintenance jobs.
type Database struct {
	stores   *badger.Stores
	blobs    storage.BlobStore
	provider ai.Provider
	closers  []io.Closer
	base     *slog.Logger
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	provider ai.Provider
	blobs    storage.BlobStore
	logger   *slog.Logger
}

// WithAIConfig sets the model service configuration.
func WithAIConfig(cfg *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = cfg
	}
}

// WithProvider uses an existing provider instead of building one from the
// AI config. The caller keeps ownership.
func WithProvider(provider ai.Provider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithBlobStore stores page images outside BadgerDB.
func WithBlobStore(blobs storage.BlobStore) DatabaseOption {
	return func(o *databaseOptions) {
		o.blobs = blobs
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// NewDatabase opens the BadgerDB directory at filePath and builds every
// repository on it.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	db := &Database{
		base:   options.logger,
		logger: options.logger.With("component", "database"),
	}

	provider := options.provider
	if provider == nil {
		var err error
		provider, err = newProvider(options.aiConfig)
		if err != nil {
			return nil, err
		}
		db.closers = append(db.closers, provider)
	}
	db.provider = provider

	backend, err := badger.OpenBackend(filePath, false, badger.WithLogger(options.logger))
	if err != nil {
		db.Close()
		return nil, err
	}
	stores, err := badger.NewStores(backend, provider.Embedder())
	if err != nil {
		backend.Close()
		db.Close()
		return nil, err
	}
	db.stores = stores

	db.blobs = stores.Blobs
	if options.blobs != nil {
		db.blobs = options.blobs
	}
	return db, nil
}

// Open builds a Database from application config, including the GCS blob
// store when the config selects it.
func Open(ctx context.Context, cfg *config.Config) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := []DatabaseOption{WithAIConfig(cfg.ToAIConfig())}

	var blobs *gcs.BlobStore
	if cfg.Blobs.Backend == config.BlobBackendGCS {
		var err error
		blobs, err = gcs.New(ctx, cfg.Blobs.Bucket, cfg.Blobs.Prefix)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithBlobStore(blobs))
	}

	db, err := NewDatabase(cfg.Database.Path, opts...)
	if err != nil {
		if blobs != nil {
			blobs.Close()
		}
		return nil, err
	}
	if blobs != nil {
		db.closers = append(db.closers, blobs)
	}
	return db, nil
}

// newProvider builds the OpenAI-compatible provider and, for the vertex
// backend, swaps in a Gemini vision model.
func newProvider(cfg *ai.Config) (ai.Provider, error) {
	provider, err := openai.NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.VisionBackend != ai.VisionBackendVertex {
		return provider, nil
	}
	vision, err := vertex.NewVision(context.Background(), cfg.VertexProject, cfg.VertexRegion, cfg.VisionModel)
	if err != nil {
		provider.Close()
		return nil, err
	}
	return ai.WithVision(provider, vision), nil
}

// Close releases the provider, external blob store and backend.
func (db *Database) Close() error {
	var errs []error
	for _, c := range db.closers {
		if err := c.Close(); err != nil {
			db.logger.Error("error closing resource", "err", err)
			errs = append(errs, err)
		}
	}
	db.closers = nil
	if db.stores != nil {
		if err := db.stores.Close(); err != nil {
			db.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
		db.stores = nil
	}
	return errors.Join(errs...)
}

// Repositories returns the stores used by the ingestion pipeline.
func (db *Database) Repositories() ingestion.Repositories {
	return ingestion.Repositories{
		Documents: db.stores.Documents,
		Chunks:    db.stores.Chunks,
		Vectors:   db.stores.Vectors,
		Graph:     db.stores.Graph,
		Blobs:     db.blobs,
	}
}

// Provider returns the model provider.
func (db *Database) Provider() ai.Provider {
	return db.provider
}

func (db *Database) NewPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	opts = append([]ingestion.Option{ingestion.WithLogger(db.base)}, opts...)
	return ingestion.NewPipeline(db.Repositories(), db.provider, opts...)
}

func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	opts = append([]search.Option{search.WithLogger(db.base)}, opts...)
	return search.NewSearcher(db.stores.Documents, db.stores.Chunks, db.stores.Vectors, db.provider, opts...)
}

// NewReembedder rewrites the vector index with the provider's embedder.
func (db *Database) NewReembedder(cfg *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	return reembed.NewReembedder(db.stores.Vectors, db.provider.Embedder(), cfg, progress)
}
