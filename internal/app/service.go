// Package service wires the versioned store, read-through cache,
// validation pipeline, fallback resolver, and async ingest pool into
// the single facade callers use.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	statcache "github.com/gridstat/gridstat/internal/adapters/cache"
	ingestqueue "github.com/gridstat/gridstat/internal/adapters/mq/queue"
	workerpool "github.com/gridstat/gridstat/internal/adapters/mq/worker"
	repository "github.com/gridstat/gridstat/internal/adapters/repository"
	"github.com/gridstat/gridstat/internal/config"
	"github.com/gridstat/gridstat/internal/domain/model"
	"github.com/gridstat/gridstat/internal/domain/resolve"
	"github.com/gridstat/gridstat/internal/domain/validate"
	"github.com/gridstat/gridstat/pkg/logger"
)

// Service owns every component of the stat store and exposes the
// ingest and query operations.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	store    repository.Store
	cache    *statcache.Cache
	pipeline *validate.Pipeline
	resolver *resolve.Resolver
	jobQueue ingestqueue.Queue
	pool     *workerpool.Pool

	// Test hooks
	clock func() time.Time

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects a pre-built store instead of the file store the
// service would otherwise open under cfg.DataDir.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithClock overrides the cache's time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service from validated configuration.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg: cfg,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start opens the store and brings up the cache, validator, resolver,
// and ingest workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting stat store service...")

	if s.store == nil {
		store, err := repository.NewFileStore(ctx, s.cfg.DataDir,
			repository.WithRetention(s.cfg.RetentionVersions),
			repository.WithCommitTimeout(time.Duration(s.cfg.CommitTimeoutMS)*time.Millisecond),
			repository.WithOnCommit(func(key model.WeekKey, category model.Category, seq uint64) {
				// The cache exists before any commit can happen; the
				// hook fires inside Commit so a read after the commit
				// returns never sees the superseded version.
				if s.cache != nil {
					s.cache.OnCommit(key, category, seq)
				}
			}),
		)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = store
	}

	cacheOpts := []statcache.Option{
		statcache.WithCapacity(s.cfg.CacheCapacity),
		statcache.WithSeasonWindow(
			time.Month(s.cfg.ActiveSeasonStartMonth),
			time.Month(s.cfg.ActiveSeasonEndMonth),
		),
	}
	for name, hours := range s.cfg.TTLHours {
		cacheOpts = append(cacheOpts,
			statcache.WithTTL(model.Category(name), time.Duration(hours)*time.Hour))
	}
	for name, hours := range s.cfg.OffseasonTTLHours {
		cacheOpts = append(cacheOpts,
			statcache.WithOffseasonTTL(model.Category(name), time.Duration(hours)*time.Hour))
	}
	if s.clock != nil {
		cacheOpts = append(cacheOpts, statcache.WithClock(s.clock))
	}
	s.cache = statcache.New(s.store, cacheOpts...)

	s.pipeline = validate.New(
		validate.WithRoster(&storeRoster{store: s.store}),
		validate.WithHistory(&storeHistory{store: s.store}),
		validate.WithSigma(s.cfg.AnomalySigma),
	)

	s.resolver = resolve.New(s.cache,
		resolve.WithMinSample(categoryInts(s.cfg.MinSample)),
		resolve.WithFullSampleTarget(categoryInts(s.cfg.FullSampleTarget)),
		resolve.WithRecencyWindow(s.cfg.RecencyWindow),
		resolve.WithDecayFactor(s.cfg.DecayFactor),
		resolve.WithRecencyPenalty(s.cfg.RecencyPenalty),
		resolve.WithSeedDefaults(s.cfg.SeedDefaults),
	)

	s.jobQueue = ingestqueue.NewInMemoryQueue(
		ingestqueue.WithCapacity(s.cfg.IngestQueueSize),
	)
	s.pool = workerpool.NewPool(s.cfg.IngestWorkerCount, s.jobQueue, s)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "stat store service started",
		logger.String("dataDir", s.cfg.DataDir),
		logger.Int("workers", s.cfg.IngestWorkerCount),
		logger.Int("queueSize", s.cfg.IngestQueueSize),
	)

	return nil
}

// Stop drains the ingest queue and shuts the workers down.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping stat store service...")

	if s.pool != nil {
		_ = s.pool.Shutdown(ctx)
	}

	s.started = false
	s.logger.Info(ctx, "stat store service stopped")
}

// Ingest validates a batch and commits it synchronously. Validation
// errors reject the whole batch; warnings are persisted with the
// committed version and returned in the result.
func (s *Service) Ingest(ctx context.Context, key model.WeekKey, category model.Category,
	batch model.Batch, baseSeq uint64) (model.CommitResult, error) {
	if err := s.ready(); err != nil {
		return model.CommitResult{}, err
	}

	report := s.pipeline.Validate(ctx, category, key, batch)
	if !report.OK() {
		return model.CommitResult{}, fmt.Errorf("%w: %s",
			ErrValidation, strings.Join(report.Errors, "; "))
	}

	res, err := s.store.Commit(ctx, key, category, batch, baseSeq, report.Warnings)
	if err != nil {
		return model.CommitResult{}, err
	}
	s.cache.OnCommit(key, category, res.Seq)
	return res, nil
}

// SubmitAsync enqueues a batch for the ingest workers and returns the
// job id producers can use for duplicate-safe retries.
func (s *Service) SubmitAsync(ctx context.Context, job model.IngestJob) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}

	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.SchemaVersion == 0 {
		job.SchemaVersion = model.SchemaVersion
	}

	if !s.jobQueue.Enqueue(ctx, job) {
		if s.jobQueue.IsClosed() {
			return "", ingestqueue.ErrQueueClosed
		}
		return "", ingestqueue.ErrQueueFull
	}
	return job.JobID, nil
}

// Query returns the full batch for a key through the cache, along
// with its commit sequence.
func (s *Service) Query(ctx context.Context, key model.WeekKey, category model.Category) (model.Batch, uint64, error) {
	if err := s.ready(); err != nil {
		return nil, 0, err
	}
	batch, seq, _, err := s.cache.Get(ctx, key, category)
	return batch, seq, err
}

// QueryRecord returns a single entity's record from a batch.
func (s *Service) QueryRecord(ctx context.Context, key model.WeekKey, category model.Category, entityID string) (model.StatRecord, error) {
	batch, _, err := s.Query(ctx, key, category)
	if err != nil {
		return model.StatRecord{}, err
	}
	rec, ok := batch[entityID]
	if !ok {
		return model.StatRecord{}, fmt.Errorf("entity %s: %w", entityID, repository.ErrNotFound)
	}
	return rec, nil
}

// Resolve answers a single-field query through the fallback chain; it
// always yields a value with provenance.
func (s *Service) Resolve(ctx context.Context, key model.WeekKey, category model.Category, entityID, field string) (model.ConfidenceEnvelope, error) {
	if err := s.ready(); err != nil {
		return model.ConfidenceEnvelope{}, err
	}
	return s.resolver.Resolve(ctx, key, category, entityID, field)
}

// LatestSeq returns the current commit sequence for a key, 0 if no
// version was ever committed.
func (s *Service) LatestSeq(ctx context.Context, key model.WeekKey, category model.Category) (uint64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	return s.store.LatestSeq(ctx, key, category)
}

// Warnings returns the validation warnings persisted with the current
// version of a key.
func (s *Service) Warnings(ctx context.Context, key model.WeekKey, category model.Category) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.Warnings(ctx, key, category)
}

// QueueLen reports how many ingest jobs are waiting.
func (s *Service) QueueLen(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return 0
	}
	return s.jobQueue.Len(ctx)
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// categoryInts re-keys a config map onto Category tags.
func categoryInts(in map[string]int) map[model.Category]int {
	out := make(map[model.Category]int, len(in))
	for name, v := range in {
		out[model.Category(name)] = v
	}
	return out
}

// storeRoster derives the rostered team set from the most recent
// committed team_stats at or before a week.
type storeRoster struct {
	store repository.Store
}

func (r *storeRoster) Teams(ctx context.Context, season int, upTo model.Week) (map[string]struct{}, error) {
	key := model.WeekKey{Season: season, Week: upTo}
	for {
		batch, _, err := r.store.Read(ctx, key, model.CategoryTeamStats)
		switch {
		case err == nil:
			teams := make(map[string]struct{}, len(batch))
			for id := range batch {
				teams[id] = struct{}{}
			}
			return teams, nil
		case errors.Is(err, repository.ErrNotFound):
			prev, ok := key.Prev()
			if !ok {
				return map[string]struct{}{}, nil
			}
			key = prev
		default:
			return nil, err
		}
	}
}

// storeHistory collects every committed batch of a category from the
// weeks preceding a key within the same season.
type storeHistory struct {
	store repository.Store
}

func (h *storeHistory) History(ctx context.Context, category model.Category, before model.WeekKey) ([]model.Batch, error) {
	var out []model.Batch
	key := before
	for {
		prev, ok := key.Prev()
		if !ok {
			return out, nil
		}
		key = prev

		batch, _, err := h.store.Read(ctx, key, category)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, batch)
	}
}
