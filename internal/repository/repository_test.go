package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/guard-registry/internal/common"
	"github.com/joseph-ayodele/guard-registry/internal/identity"
)

// storeSuite runs the RecordStore contract against every backend.
type storeSuite struct {
	suite.Suite
	open  func(t *testing.T) RecordStore
	store RecordStore
	ctx   context.Context
}

func (s *storeSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.open(s.T())
}

func (s *storeSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func record(i int, at time.Time) StoredRecord {
	rec := identity.Record{NationalID: identity.Matched(fmt.Sprintf("%d.345.678-5", 10+i%80))}
	if i%2 == 0 {
		rec.Name = identity.Matched(fmt.Sprintf("Guardia %d", i))
	}
	return NewStoredRecord(rec, "whatsapp:+5690000000"+fmt.Sprint(i%10), at.Add(time.Duration(i)*time.Second))
}

func (s *storeSuite) TestEmptyList() {
	recs, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Empty(recs)
	s.NoError(s.store.Ping(s.ctx))
}

func (s *storeSuite) TestAppendListClear() {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	want := []StoredRecord{record(0, base), record(1, base), record(2, base)}
	for _, r := range want {
		s.Require().NoError(s.store.Append(s.ctx, r))
	}

	got, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(got, 3)
	for i := range want {
		s.Equal(want[i].ID, got[i].ID)
		s.Equal(want[i].Record, got[i].Record)
		s.Equal(want[i].Sender, got[i].Sender)
		s.True(want[i].ConfirmedAt.Equal(got[i].ConfirmedAt))
	}
	s.False(got[1].Name.IsMatched())

	s.Require().NoError(s.store.Clear(s.ctx))
	got, err = s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *storeSuite) TestListKeepsInsertionOrderForEqualTimestamps() {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var want []StoredRecord
	for i := 0; i < 8; i++ {
		r := NewStoredRecord(identity.Record{NationalID: identity.Matched(fmt.Sprintf("1%d.111.111-1", i))}, "batch:scan.jpg", at)
		want = append(want, r)
		s.Require().NoError(s.store.Append(s.ctx, r))
	}

	got, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(got, len(want))
	for i := range want {
		s.Equal(want[i].ID, got[i].ID, "position %d", i)
	}
}

func (s *storeSuite) TestConcurrentAppends() {
	const n = 25
	base := time.Now()
	g, ctx := errgroup.WithContext(s.ctx)
	for i := 0; i < n; i++ {
		r := record(i, base)
		g.Go(func() error { return s.store.Append(ctx, r) })
	}
	s.Require().NoError(g.Wait())

	got, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Len(got, n)

	seen := map[string]bool{}
	for _, r := range got {
		seen[r.ID.String()] = true
	}
	s.Len(seen, n)
}

func TestJSONStoreSuite(t *testing.T) {
	suite.Run(t, &storeSuite{open: func(t *testing.T) RecordStore {
		st, err := NewJSONStore(filepath.Join(t.TempDir(), "data", "guardias.json"), nil)
		require.NoError(t, err)
		return st
	}})
}

func TestSQLiteStoreSuite(t *testing.T) {
	suite.Run(t, &storeSuite{open: func(t *testing.T) RecordStore {
		st, err := OpenSQLite(context.Background(), ":memory:", discardLogger())
		require.NoError(t, err)
		return st
	}})
}

func TestSQLiteStoreReopenKeepsRows(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "guardias.db")
	ctx := context.Background()

	st, err := OpenSQLite(ctx, dsn, discardLogger())
	require.NoError(t, err)
	rec := record(1, time.Now())
	require.NoError(t, st.Append(ctx, rec))
	require.NoError(t, st.Close())

	st, err = OpenSQLite(ctx, dsn, discardLogger())
	require.NoError(t, err)
	defer func() { _ = st.Close() }()
	got, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec.ID, got[0].ID)
}

func TestJSONStoreFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guardias.json")
	st, err := NewJSONStore(path, nil)
	require.NoError(t, err)

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	r := NewStoredRecord(identity.Record{NationalID: identity.Matched("12.345.678-5")}, "whatsapp:+56911111111", at)
	require.NoError(t, st.Append(context.Background(), r))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(`[{
		"id": %q,
		"name": null,
		"surname": null,
		"national_id": "12.345.678-5",
		"sender": "whatsapp:+56911111111",
		"confirmed_at": "2024-05-01T10:00:00Z"
	}]`, r.ID.String()), string(data))

	require.NoError(t, st.Clear(context.Background()))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestJSONStoreCorruptRecovery(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", `[{"id": "x", `},
		{"schema", `[{"nombre": "Juan", "rut": "12.345.678-5"}]`},
		{"not an array", `{"id": "x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "guardias.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			st, err := NewJSONStore(path, nil)
			require.NoError(t, err)
			st.now = func() time.Time { return time.Unix(1700000000, 0) }

			recs, err := st.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, recs)

			// reading does not move the file; the next write does
			_, err = os.Stat(path + ".corrupt-1700000000")
			assert.True(t, os.IsNotExist(err))

			r := record(1, time.Now())
			require.NoError(t, st.Append(context.Background(), r))

			backup, err := os.ReadFile(path + ".corrupt-1700000000")
			require.NoError(t, err)
			assert.Equal(t, tt.content, string(backup))

			recs, err = st.List(context.Background())
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, r.ID, recs[0].ID)
		})
	}
}

func TestJSONStoreBlankFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guardias.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))
	st, err := NewJSONStore(path, nil)
	require.NoError(t, err)

	recs, err := st.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestJSONStoreCanceledContext(t *testing.T) {
	st, err := NewJSONStore(filepath.Join(t.TempDir(), "guardias.json"), nil)
	require.NoError(t, err)

	// hold the OS lock from a second handle so the store has to wait
	other, err := NewJSONStore(st.Path(), nil)
	require.NoError(t, err)
	locked, err := other.lock.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	t.Cleanup(func() { _ = other.lock.Unlock() })

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	err = st.Append(ctx, record(1, time.Now()))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrStore)
}

func TestOpenDriverSelection(t *testing.T) {
	ctx := context.Background()

	st, err := Open(ctx, common.StoreConfig{Driver: "json", Path: filepath.Join(t.TempDir(), "g.json")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &JSONStore{}, st)

	st, err = Open(ctx, common.StoreConfig{Driver: "sqlite", DSN: ":memory:"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, st)
	require.NoError(t, st.Close())

	_, err = Open(ctx, common.StoreConfig{Driver: "mongo"}, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
