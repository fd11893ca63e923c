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

package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/scriptorium/ai"
	"github.com/poiesic/scriptorium/core"
	"github.com/poiesic/scriptorium/retry"
	"github.com/poiesic/scriptorium/storage"
	"golang.org/x/sync/errgroup"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of entries embedded in one call
	BatchSize int

	// ReportInterval is how often to report progress (number of entries)
	ReportInterval int

	// Concurrency is the number of batches embedded at once
	Concurrency int

	// MaxRetries is the maximum number of attempts per embedding call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		Concurrency:    2,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// policy turns the retry settings into an executor policy.
func (c *Config) policy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = c.MaxRetries
	p.BaseDelay = c.RetryDelay
	p.MaxDelay = max(p.MaxDelay, c.RetryDelay)
	return p
}

// Reembedder rewrites every entry of a vector index with fresh embeddings.
type Reembedder struct {
	repo      storage.EntryRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *EntryIterator
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(repo storage.EntryRepository, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if repo == nil {
		return nil, ErrEntryRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	logger := slog.Default().With("component", "reembed")
	exec, err := retry.New(config.policy(), retry.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	return &Reembedder{
		repo:      repo,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, embedder, exec),
		iterator:  NewEntryIterator(repo, config.BatchSize),
		logger:    logger,
	}, nil
}

// Run executes the reembedding operation and returns the number of entries
// rewritten. Progress is reported to the configured writer.
func (r *Reembedder) Run(ctx context.Context) (int, error) {
	total, err := r.repo.CountEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No entries found in index (0 entries)\n")
		return 0, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d entries (batch size: %d)\n",
		total, r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.config.Concurrency, 1))
	err = r.iterator.ForEach(gctx, func(entries []*core.IndexEntry) error {
		g.Go(func() error {
			if err := r.processor.Process(gctx, entries); err != nil {
				return fmt.Errorf("failed to process batch: %w", err)
			}
			tracker.Increment(len(entries))
			return nil
		})
		return nil
	})
	if werr := g.Wait(); werr != nil {
		return tracker.Current(), werr
	}
	if err != nil {
		return tracker.Current(), err
	}

	processed := tracker.Current()
	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d entries in %v (%.1f entries/sec)\n",
		processed, elapsed.Round(time.Second), float64(processed)/elapsed.Seconds())
	r.logger.Info("reembedding complete", "entries", processed, "elapsed", elapsed)
	return processed, nil
}
