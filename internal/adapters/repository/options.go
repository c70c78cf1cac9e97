package repository

import (
	"time"

	"github.com/gridstat/gridstat/internal/domain/model"
	"github.com/gridstat/gridstat/pkg/logger"
)

// Option applies a configuration option to the FileStore.
type Option func(*FileStore)

// WithRetention sets how many superseded versions to keep per key.
func WithRetention(n int) Option {
	return func(s *FileStore) {
		if n >= 1 {
			s.retention = n
		}
	}
}

// WithCommitTimeout bounds how long Commit waits on the per-key lock.
func WithCommitTimeout(d time.Duration) Option {
	return func(s *FileStore) {
		if d > 0 {
			s.commitTimeout = d
		}
	}
}

// WithOnCommit registers a hook invoked after the new version is
// published, before Commit returns and while the per-key commit lock is
// still held. The hook must not call back into Commit for the same key.
// The cache uses it for write invalidation.
func WithOnCommit(fn func(key model.WeekKey, category model.Category, seq uint64)) Option {
	return func(s *FileStore) {
		s.onCommit = fn
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *FileStore) {
		if l != nil {
			s.log = l
		}
	}
}
