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

	"github.com/poiesic/scriptorium/core"
	"github.com/poiesic/scriptorium/storage"
)

const (
	// DefaultBatchSize is the default number of entries to fetch in each batch
	DefaultBatchSize = 100
)

// EntryIterator walks every vector-index entry in batches.
type EntryIterator struct {
	repo      storage.EntryRepository
	batchSize int
}

// NewEntryIterator creates a new entry iterator.
// batchSize: number of entries in each batch, DefaultBatchSize when <= 0
func NewEntryIterator(repo storage.EntryRepository, batchSize int) *EntryIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &EntryIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach calls fn for each batch. Iteration stops on the first error from
// fn. Context cancellation is checked before starting and between batches.
func (it *EntryIterator) ForEach(ctx context.Context, fn func([]*core.IndexEntry) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return it.repo.ForEachEntry(ctx, it.batchSize, func(batch []*core.IndexEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(batch)
	})
}
