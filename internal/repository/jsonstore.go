package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/guard-registry/internal/common"
)

const lockRetry = 25 * time.Millisecond

// JSONStore keeps every record in one JSON array on disk. Read-modify-write cycles
// are serialized by a mutex (goroutines) and an flock on <path>.lock (processes);
// writes land through temp file + rename so readers never see a torn file.
type JSONStore struct {
	path   string
	mu     sync.Mutex
	lock   *flock.Flock
	schema *jsonschema.Schema
	now    func() time.Time
	logger *slog.Logger
}

func NewJSONStore(path string, logger *slog.Logger) (*JSONStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return nil, common.NewAppError(common.CodeConfig, "json store path is empty", common.ErrInvalidInput)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, common.NewStoreError("create store dir", err)
		}
	}
	schema, err := compileStoreSchema()
	if err != nil {
		return nil, common.NewStoreError("store schema", err)
	}
	return &JSONStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		schema: schema,
		now:    time.Now,
		logger: logger,
	}, nil
}

func (s *JSONStore) Path() string { return s.path }

func (s *JSONStore) Append(ctx context.Context, rec StoredRecord) error {
	return s.mutate(ctx, func(recs []StoredRecord) []StoredRecord {
		return append(recs, rec)
	})
}

func (s *JSONStore) Clear(ctx context.Context) error {
	return s.mutate(ctx, func([]StoredRecord) []StoredRecord { return nil })
}

func (s *JSONStore) List(ctx context.Context) ([]StoredRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lock.TryRLockContext(ctx, lockRetry); err != nil {
		return nil, common.NewStoreError("acquire read lock", err)
	}
	defer s.unlock()

	recs, corrupt, err := s.load()
	if err != nil {
		return nil, err
	}
	if corrupt != nil {
		s.logger.Warn("record store unreadable; reporting empty", "path", s.path, "error", corrupt)
	}
	return recs, nil
}

func (s *JSONStore) Ping(context.Context) error {
	if _, err := os.Stat(filepath.Dir(s.path)); err != nil {
		return common.NewStoreError("store dir unavailable", err)
	}
	return nil
}

func (s *JSONStore) Close() error { return nil }

func (s *JSONStore) mutate(ctx context.Context, fn func([]StoredRecord) []StoredRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lock.TryLockContext(ctx, lockRetry); err != nil {
		return common.NewStoreError("acquire write lock", err)
	}
	defer s.unlock()

	recs, corrupt, err := s.load()
	if err != nil {
		return err
	}
	if corrupt != nil {
		backup := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().Unix())
		if err := os.Rename(s.path, backup); err != nil {
			return common.NewStoreError("preserve corrupt store", err)
		}
		s.logger.Warn("record store was corrupt; starting empty", "path", s.path, "backup", backup, "error", corrupt)
	}

	return s.write(fn(recs))
}

// load reads the file. A missing or blank file is an empty store; a file that fails
// to parse or validate is reported through corrupt, never through err.
func (s *JSONStore) load() (recs []StoredRecord, corrupt error, err error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, common.NewStoreError("read store", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, nil
	}
	if err := validateDocument(s.schema, data); err != nil {
		return nil, err, nil
	}
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, err, nil
	}
	return recs, nil, nil
}

func (s *JSONStore) write(recs []StoredRecord) error {
	if recs == nil {
		recs = []StoredRecord{}
	}
	data, err := json.MarshalIndent(recs, "", "    ")
	if err != nil {
		return common.NewStoreError("encode store", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return common.NewStoreError("create temp file", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return common.NewStoreError("write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return common.NewStoreError("sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return common.NewStoreError("close temp file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return common.NewStoreError("replace store", err)
	}
	s.logger.Debug("record store written", "path", s.path, "records", len(recs))
	return nil
}

func (s *JSONStore) unlock() {
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("record store unlock failed", "path", s.path, "error", err)
	}
}
