package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/guard-registry/internal/common"
	"github.com/joseph-ayodele/guard-registry/internal/repository"
)

// Destination stores one snapshot and returns where it went.
type Destination interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

type Lister interface {
	List(ctx context.Context) ([]repository.StoredRecord, error)
}

// Service snapshots the record store as a JSON array, the same shape the JSON store keeps.
type Service struct {
	store  Lister
	dest   Destination
	now    func() time.Time
	logger *slog.Logger
}

func NewService(store Lister, dest Destination, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, dest: dest, now: time.Now, logger: logger}
}

// Run writes a timestamped snapshot and returns its location.
func (s *Service) Run(ctx context.Context) (string, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return "", err
	}
	if recs == nil {
		recs = []repository.StoredRecord{}
	}
	data, err := json.MarshalIndent(recs, "", "    ")
	if err != nil {
		return "", common.NewStoreError("encode snapshot", err)
	}

	name := fmt.Sprintf("guardias-%s.json", s.now().UTC().Format("20060102T150405Z"))
	loc, err := s.dest.Put(ctx, name, data)
	if err != nil {
		s.logger.Error("backup.failed", "name", name, "error", err)
		return "", err
	}
	s.logger.Info("backup.ok", "location", loc, "records", len(recs), "bytes", len(data))
	return loc, nil
}

// NewDestination prefers S3 when a bucket is configured, else a local directory.
func NewDestination(ctx context.Context, cfg common.BackupConfig) (Destination, error) {
	if cfg.S3Bucket != "" {
		return NewS3(ctx, cfg)
	}
	if cfg.Dir == "" {
		return nil, common.NewAppError(common.CodeConfig, "backup destination not configured", common.ErrInvalidInput)
	}
	return LocalDir{Dir: cfg.Dir}, nil
}

// LocalDir writes snapshots into a directory on disk.
type LocalDir struct {
	Dir string
}

func (d LocalDir) Put(_ context.Context, name string, data []byte) (string, error) {
	if d.Dir == "" {
		return "", errors.New("backup dir is empty")
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", common.NewStoreError("create backup dir", err)
	}
	path := filepath.Join(d.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", common.NewStoreError("write backup", err)
	}
	return path, nil
}
