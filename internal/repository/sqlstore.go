package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/guard-registry/internal/common"
	"github.com/joseph-ayodele/guard-registry/internal/identity"
)

const recordsTable = "guard_records"

var recordColumns = []string{"id", "name", "surname", "national_id", "sender", "confirmed_at"}

// seq carries insertion order; List sorts on it, not on confirmed_at.
const (
	sqliteSchema = `CREATE TABLE IF NOT EXISTS guard_records (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	id           VARCHAR(36) NOT NULL UNIQUE,
	name         TEXT,
	surname      TEXT,
	national_id  VARCHAR(16),
	sender       TEXT NOT NULL,
	confirmed_at DATETIME NOT NULL
)`
	postgresSchema = `CREATE TABLE IF NOT EXISTS guard_records (
	seq          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	id           VARCHAR(36) NOT NULL UNIQUE,
	name         TEXT,
	surname      TEXT,
	national_id  VARCHAR(16),
	sender       TEXT NOT NULL,
	confirmed_at TIMESTAMPTZ NOT NULL
)`
)

// SQLStore persists records one row per append; the database serializes writers.
type SQLStore struct {
	drv    *entsql.Driver
	pool   *pgxpool.Pool // nil for sqlite
	logger *slog.Logger
}

func newSQLStore(ctx context.Context, drv *entsql.Driver, pool *pgxpool.Pool, logger *slog.Logger) (*SQLStore, error) {
	s := &SQLStore{drv: drv, pool: pool, logger: logger}
	if err := s.migrate(ctx); err != nil {
		_ = drv.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.drv.Dialect())
}

func (s *SQLStore) migrate(ctx context.Context) error {
	ddl := sqliteSchema
	if s.drv.Dialect() == dialect.Postgres {
		ddl = postgresSchema
	}
	if err := s.drv.Exec(ctx, ddl, []any{}, nil); err != nil {
		s.logger.Error("failed to migrate record table", "error", err)
		return common.NewStoreError("create record table", err)
	}
	return nil
}

func (s *SQLStore) Append(ctx context.Context, rec StoredRecord) error {
	query, args := s.builder().Insert(recordsTable).
		Columns(recordColumns...).
		Values(
			rec.ID.String(),
			nullable(rec.Name),
			nullable(rec.Surname),
			nullable(rec.NationalID),
			rec.Sender,
			rec.ConfirmedAt.UTC(),
		).
		Query()
	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		s.logger.Error("failed to insert record", "id", rec.ID, "error", err)
		return common.NewStoreError("insert record", err)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context) ([]StoredRecord, error) {
	b := s.builder()
	query, args := b.Select(recordColumns...).
		From(b.Table(recordsTable)).
		OrderBy("seq").
		Query()

	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, common.NewStoreError("query records", err)
	}
	defer func() { _ = rows.Close() }()

	var out []StoredRecord
	for rows.Next() {
		var (
			id                   string
			name, surname, natID sql.NullString
			sender               string
			confirmedAt          time.Time
		)
		if err := rows.Scan(&id, &name, &surname, &natID, &sender, &confirmedAt); err != nil {
			return nil, common.NewStoreError("scan record", err)
		}
		uid, err := uuid.Parse(id)
		if err != nil {
			return nil, common.NewStoreError("parse record id", err)
		}
		out = append(out, StoredRecord{
			ID: uid,
			Record: identity.Record{
				Name:       field(name),
				Surname:    field(surname),
				NationalID: field(natID),
			},
			Sender:      sender,
			ConfirmedAt: confirmedAt.UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewStoreError("iterate records", err)
	}
	return out, nil
}

func (s *SQLStore) Clear(ctx context.Context) error {
	query, args := s.builder().Delete(recordsTable).Query()
	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return common.NewStoreError("clear records", err)
	}
	s.logger.Info("record table cleared")
	return nil
}

// Ping checks the pool when there is one, otherwise the database/sql handle.
func (s *SQLStore) Ping(ctx context.Context) error {
	if s.pool != nil {
		if err := s.pool.Ping(ctx); err != nil {
			return common.NewStoreError("ping postgres", err)
		}
		return nil
	}
	if err := s.drv.DB().PingContext(ctx); err != nil {
		return common.NewStoreError("ping sqlite", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	s.logger.Info("closing database connections")
	err := s.drv.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

func nullable(f identity.Field) any {
	if v, ok := f.Value(); ok {
		return v
	}
	return nil
}

func field(ns sql.NullString) identity.Field {
	if !ns.Valid {
		return identity.Unmatched()
	}
	return identity.Matched(ns.String)
}
