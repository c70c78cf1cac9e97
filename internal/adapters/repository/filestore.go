package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gridstat/gridstat/internal/domain/model"
	"github.com/gridstat/gridstat/pkg/logger"
	"github.com/gridstat/gridstat/pkg/metrics"
)

// File-backed, versioned Store implementation.
//
// Layout: <root>/<weekKey>/<category>/ holds one JSON object per
// version plus manifest.json. The manifest points at the current
// version and chains the retained previous versions; committing writes
// the new version file first and then atomically renames a fresh
// manifest over the old one, so readers only ever observe fully
// committed state. The manifest rename is the sole repoint.

// Default store configuration constants.
const (
	defaultRetention     = 3
	defaultCommitTimeout = 30 * time.Second
	manifestName         = "manifest.json"
)

// versionMeta describes one persisted version in a manifest.
type versionMeta struct {
	Seq       uint64    `json:"seq"`
	ID        string    `json:"id"`
	File      string    `json:"file"`
	Timestamp time.Time `json:"timestamp"`
	Warnings  []string  `json:"warnings,omitempty"`
}

// manifest is the per-key pointer file. Previous is newest-first.
type manifest struct {
	Current  versionMeta   `json:"current"`
	Previous []versionMeta `json:"previous,omitempty"`
}

// payload is the on-disk shape of a version object.
type payload struct {
	Records model.Batch `json:"records"`
}

// VersionInfo is the public view of a retained version.
type VersionInfo struct {
	Seq       uint64
	Timestamp time.Time
	Warnings  []string
}

// version is the in-memory published state for a key.
type version struct {
	seq      uint64
	batch    model.Batch
	warnings []string
}

// keyState carries the per-key commit gate and the atomically-swapped
// current version. The gate is the only mandatory mutual-exclusion
// point; readers go straight to the pointer.
type keyState struct {
	gate    chan struct{}
	once    sync.Once
	loadErr error
	current atomic.Pointer[version]
}

// FileStore implements Store on the local filesystem.
type FileStore struct {
	root          string
	retention     int
	commitTimeout time.Duration
	onCommit      func(key model.WeekKey, category model.Category, seq uint64)
	log           logger.Logger

	mu   sync.Mutex
	keys map[string]*keyState
}

// NewFileStore constructs a file store rooted at dir.
func NewFileStore(ctx context.Context, dir string, opts ...Option) (*FileStore, error) {
	s := &FileStore{
		root:          dir,
		retention:     defaultRetention,
		commitTimeout: defaultCommitTimeout,
		log:           logger.Get().Named("store"),
		keys:          make(map[string]*keyState),
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}

	s.log.Info(ctx, "file store opened",
		logger.String("root", dir),
		logger.Int("retention", s.retention),
	)
	return s, nil
}

// Commit implements Store.Commit.
func (s *FileStore) Commit(ctx context.Context, key model.WeekKey, category model.Category,
	batch model.Batch, baseSeq uint64, warnings []string) (model.CommitResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordCommitLatency(float64(time.Since(start).Milliseconds()))
	}()

	if !key.Valid() || !category.Valid() {
		return model.CommitResult{}, fmt.Errorf("%w: %s/%s", ErrInvalidKey, key, category)
	}

	// Final gate: the validation pipeline checks these upstream, but
	// nothing invalid may reach durable state regardless of caller.
	for id, rec := range batch {
		if err := rec.CheckInvariants(); err != nil {
			metrics.RecordErrorByComponent("store", "invalid_record")
			return model.CommitResult{}, fmt.Errorf("%w: entity %s: %v", ErrInvalidRecord, id, err)
		}
	}

	ks, err := s.state(key, category)
	if err != nil {
		return model.CommitResult{}, err
	}

	timer := time.NewTimer(s.commitTimeout)
	defer timer.Stop()
	select {
	case <-ks.gate:
	case <-timer.C:
		metrics.RecordCommitTimeout()
		metrics.RecordErrorByComponent("store", "lock_timeout")
		return model.CommitResult{}, fmt.Errorf("%w: commit lock on %s/%s", ErrTimeout, key, category)
	case <-ctx.Done():
		metrics.RecordCommitTimeout()
		return model.CommitResult{}, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
	defer func() { ks.gate <- struct{}{} }()

	var curSeq uint64
	if cur := ks.current.Load(); cur != nil {
		curSeq = cur.seq
	}
	if baseSeq != curSeq {
		metrics.RecordCommitConflict()
		metrics.RecordErrorByComponent("store", "conflict")
		return model.CommitResult{}, fmt.Errorf("%w: base seq %d, current seq %d on %s/%s",
			ErrConflict, baseSeq, curSeq, key, category)
	}

	newSeq := curSeq + 1
	if err := s.persist(key, category, newSeq, batch, warnings); err != nil {
		metrics.RecordErrorByComponent("store", "persist")
		return model.CommitResult{}, err
	}

	ks.current.Store(&version{
		seq:      newSeq,
		batch:    cloneBatch(batch),
		warnings: append([]string(nil), warnings...),
	})

	metrics.RecordCommit()
	s.log.Debug(ctx, "batch committed",
		logger.String("key", key.String()),
		logger.String("category", category.String()),
		logger.Uint64("seq", newSeq),
		logger.Int("records", len(batch)),
	)

	// The hook runs before Commit returns so a subsequent cache read is
	// guaranteed to see the new version. Readers never take the gate,
	// so holding it here blocks only competing commits.
	if s.onCommit != nil {
		s.onCommit(key, category, newSeq)
	}

	return model.CommitResult{Seq: newSeq, Warnings: warnings}, nil
}

// Read implements Store.Read. Lock-free against writers.
func (s *FileStore) Read(ctx context.Context, key model.WeekKey, category model.Category) (model.Batch, uint64, error) {
	start := time.Now()
	defer func() {
		metrics.RecordReadLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := ctx.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if !key.Valid() || !category.Valid() {
		return nil, 0, fmt.Errorf("%w: %s/%s", ErrInvalidKey, key, category)
	}

	ks, err := s.state(key, category)
	if err != nil {
		return nil, 0, err
	}

	cur := ks.current.Load()
	if cur == nil {
		return nil, 0, fmt.Errorf("%w: %s/%s", ErrNotFound, key, category)
	}
	return cloneBatch(cur.batch), cur.seq, nil
}

// LatestSeq implements Store.LatestSeq. Returns 0 for keys that never
// committed, which doubles as the baseSeq for a first commit.
func (s *FileStore) LatestSeq(ctx context.Context, key model.WeekKey, category model.Category) (uint64, error) {
	if !key.Valid() || !category.Valid() {
		return 0, fmt.Errorf("%w: %s/%s", ErrInvalidKey, key, category)
	}
	ks, err := s.state(key, category)
	if err != nil {
		return 0, err
	}
	if cur := ks.current.Load(); cur != nil {
		return cur.seq, nil
	}
	return 0, nil
}

// Warnings implements Store.Warnings.
func (s *FileStore) Warnings(ctx context.Context, key model.WeekKey, category model.Category) ([]string, error) {
	if !key.Valid() || !category.Valid() {
		return nil, fmt.Errorf("%w: %s/%s", ErrInvalidKey, key, category)
	}
	ks, err := s.state(key, category)
	if err != nil {
		return nil, err
	}
	cur := ks.current.Load()
	if cur == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, key, category)
	}
	return append([]string(nil), cur.warnings...), nil
}

// History lists the current and retained previous versions for a key,
// newest first, straight from the manifest.
func (s *FileStore) History(ctx context.Context, key model.WeekKey, category model.Category) ([]VersionInfo, error) {
	if !key.Valid() || !category.Valid() {
		return nil, fmt.Errorf("%w: %s/%s", ErrInvalidKey, key, category)
	}

	m, err := s.readManifest(s.dir(key, category))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, key, category)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	out := make([]VersionInfo, 0, 1+len(m.Previous))
	for _, vm := range append([]versionMeta{m.Current}, m.Previous...) {
		out = append(out, VersionInfo{Seq: vm.Seq, Timestamp: vm.Timestamp, Warnings: vm.Warnings})
	}
	return out, nil
}

// ReadVersion reads a specific retained version by sequence, for
// rollback and audit. Pruned sequences return ErrNotFound.
func (s *FileStore) ReadVersion(ctx context.Context, key model.WeekKey, category model.Category, seq uint64) (model.Batch, error) {
	if !key.Valid() || !category.Valid() {
		return nil, fmt.Errorf("%w: %s/%s", ErrInvalidKey, key, category)
	}

	dir := s.dir(key, category)
	m, err := s.readManifest(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, key, category)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	for _, vm := range append([]versionMeta{m.Current}, m.Previous...) {
		if vm.Seq == seq {
			batch, err := s.readVersionFile(filepath.Join(dir, vm.File))
			if err != nil {
				return nil, err
			}
			return batch, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s seq %d", ErrNotFound, key, category, seq)
}

// state returns the per-key state, loading any persisted version from
// disk exactly once.
func (s *FileStore) state(key model.WeekKey, category model.Category) (*keyState, error) {
	id := key.String() + "/" + category.String()

	s.mu.Lock()
	ks, ok := s.keys[id]
	if !ok {
		ks = &keyState{gate: make(chan struct{}, 1)}
		ks.gate <- struct{}{}
		s.keys[id] = ks
	}
	s.mu.Unlock()

	ks.once.Do(func() {
		ks.loadErr = s.load(key, category, ks)
	})
	return ks, ks.loadErr
}

// load restores the current version for a key from its manifest.
func (s *FileStore) load(key model.WeekKey, category model.Category, ks *keyState) error {
	dir := s.dir(key, category)
	m, err := s.readManifest(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // never committed
		}
		return fmt.Errorf("read manifest: %w", err)
	}

	batch, err := s.readVersionFile(filepath.Join(dir, m.Current.File))
	if err != nil {
		return err
	}

	ks.current.Store(&version{
		seq:      m.Current.Seq,
		batch:    batch,
		warnings: m.Current.Warnings,
	})
	return nil
}

// persist writes the version file, then atomically repoints the
// manifest, then prunes versions that fell out of retention. If the
// manifest write fails the previous state stays visible; a stray
// version file is harmless.
func (s *FileStore) persist(key model.WeekKey, category model.Category, seq uint64,
	batch model.Batch, warnings []string) error {
	dir := s.dir(key, category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}

	id := uuid.NewString()
	fileName := fmt.Sprintf("v%06d_%s.json", seq, id[:8])

	raw, err := json.Marshal(payload{Records: batch})
	if err != nil {
		return fmt.Errorf("encode version: %w", err)
	}
	if err := writeFileAtomic(dir, fileName, raw); err != nil {
		return fmt.Errorf("write version: %w", err)
	}

	var previous []versionMeta
	old, err := s.readManifest(dir)
	switch {
	case err == nil:
		previous = append([]versionMeta{old.Current}, old.Previous...)
	case os.IsNotExist(err):
	default:
		return fmt.Errorf("read manifest: %w", err)
	}

	var pruned []versionMeta
	if len(previous) > s.retention {
		pruned = previous[s.retention:]
		previous = previous[:s.retention]
	}

	m := manifest{
		Current: versionMeta{
			Seq:       seq,
			ID:        id,
			File:      fileName,
			Timestamp: time.Now().UTC(),
			Warnings:  warnings,
		},
		Previous: previous,
	}
	rawM, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := writeFileAtomic(dir, manifestName, rawM); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	for _, p := range pruned {
		_ = os.Remove(filepath.Join(dir, p.File))
	}
	if len(pruned) > 0 {
		metrics.RecordVersionsPruned(len(pruned))
	}
	return nil
}

func (s *FileStore) dir(key model.WeekKey, category model.Category) string {
	return filepath.Join(s.root, key.String(), category.String())
}

func (s *FileStore) readManifest(dir string) (manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return manifest{}, err
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

func (s *FileStore) readVersionFile(path string) (model.Batch, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read version file: %w", err)
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode version file: %w", err)
	}
	return p.Records, nil
}

// writeFileAtomic writes name under dir via a temp file and rename.
func writeFileAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// cloneBatch deep-copies a batch so callers can never mutate published
// store state through a returned or retained map.
func cloneBatch(in model.Batch) model.Batch {
	out := make(model.Batch, len(in))
	for id, rec := range in {
		fields := make(map[string]model.Value, len(rec.Fields))
		for k, v := range rec.Fields {
			fields[k] = v
		}
		rec.Fields = fields
		out[id] = rec
	}
	return out
}
