// Package repository provides the versioned stat store and its errors.
package repository

import (
	"context"

	"github.com/gridstat/gridstat/internal/domain/model"
)

// Store provides durable, atomic read/write access to stat batches
// keyed by (weekKey, category).
type Store interface {
	// Commit atomically replaces the batch for a key. baseSeq is the
	// sequence the producer last observed for the key (0 if none); a
	// mismatch with the current sequence fails with ErrConflict.
	// Warnings are persisted with the version for audit.
	Commit(ctx context.Context, key model.WeekKey, category model.Category,
		batch model.Batch, baseSeq uint64, warnings []string) (model.CommitResult, error)

	// Read returns the last fully-committed batch and its sequence.
	// It never blocks on a concurrent Commit of the same key and
	// returns ErrNotFound if no version was ever committed.
	Read(ctx context.Context, key model.WeekKey, category model.Category) (model.Batch, uint64, error)

	// LatestSeq returns the current commit sequence for a key, 0 if no
	// version was ever committed.
	LatestSeq(ctx context.Context, key model.WeekKey, category model.Category) (uint64, error)

	// Warnings returns the warnings persisted with the current version.
	Warnings(ctx context.Context, key model.WeekKey, category model.Category) ([]string, error)
}
