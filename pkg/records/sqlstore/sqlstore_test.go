package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"freelaw.courtlistener.cl-update-index/pkg/records"
	"freelaw.courtlistener.cl-update-index/pkg/records/sqlstore"
	"freelaw.courtlistener.cl-update-index/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) (*sql.DB, *sqlstore.Store) {
	t.Helper()
	db, err := sql.Open(sqlstore.DRIVER_SQLITE, ":memory:")
	require.NoError(t, err)
	// every connection to :memory: is its own database
	db.SetMaxOpenConns(1)
	require.NoError(t, sqlstore.CreateSchema(context.Background(), db))
	t.Cleanup(func() { _ = db.Close() })
	return db, sqlstore.New(db, sqlstore.DRIVER_SQLITE)
}

func exec(t *testing.T, db *sql.DB, q string, args ...interface{}) {
	t.Helper()
	_, err := db.Exec(q, args...)
	require.NoError(t, err)
}

func seedAudio(t *testing.T, db *sql.DB) {
	exec(t, db, `INSERT INTO audio_audio (id, date_created, case_name) VALUES
		(1, '2020-01-01 00:00:00', 'Roe'),
		(2, '2020-06-01 12:00:00', 'Doe'),
		(3, '2021-01-01 00:00:00', 'Poe'),
		(5, '2022-03-04 05:06:07', 'Moe')`)
}

func ids(recs []records.Record) []int64 {
	out := make([]int64, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestCountEverything(t *testing.T) {
	db, store := openStore(t)
	seedAudio(t, db)

	n, err := store.Count(context.Background(), records.Audio, records.All())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestCountNewerThanBoundary(t *testing.T) {
	db, store := openStore(t)
	seedAudio(t, db)
	ts := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)

	inclusive, err := store.Count(context.Background(), records.Audio, records.Since(ts, true))
	require.NoError(t, err)
	assert.Equal(t, 3, inclusive)

	strict, err := store.Count(context.Background(), records.Audio, records.Since(ts, false))
	require.NoError(t, err)
	assert.Equal(t, 2, strict)
}

func TestCountNewerThanMixedDateFormats(t *testing.T) {
	db, store := openStore(t)
	exec(t, db, `INSERT INTO audio_audio (id, date_created, case_name) VALUES
		(1, '2020-01-04', 'Roe'),
		(2, '2020-01-05T00:00:00Z', 'Doe')`)
	ctx := context.Background()

	inclusive, err := store.Count(ctx, records.Audio, records.Since(time.Date(2020, 1, 4, 0, 0, 0, 0, time.UTC), true))
	require.NoError(t, err)
	assert.Equal(t, 2, inclusive)

	strict, err := store.Count(ctx, records.Audio, records.Since(time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC), false))
	require.NoError(t, err)
	assert.Zero(t, strict)
}

func TestPageKeyset(t *testing.T) {
	db, store := openStore(t)
	seedAudio(t, db)
	ctx := context.Background()

	page, err := store.Page(ctx, records.Audio, records.All(), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(page))

	page, err = store.Page(ctx, records.Audio, records.All(), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 5}, ids(page))

	page, err = store.Page(ctx, records.Audio, records.All(), 5, 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestPageByIDs(t *testing.T) {
	db, store := openStore(t)
	seedAudio(t, db)

	page, err := store.Page(context.Background(), records.Audio, records.IDs(5, 1, 42), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 5}, ids(page))
	assert.Equal(t, "Roe", page[0].Fields["case_name"])
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), page[0].DateCreated)
}

func TestEmptyIDsMatchNothing(t *testing.T) {
	db, store := openStore(t)
	seedAudio(t, db)

	n, err := store.Count(context.Background(), records.Audio, records.IDs())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGetSkipsMissing(t *testing.T) {
	db, store := openStore(t)
	seedAudio(t, db)

	recs, err := store.Get(context.Background(), records.Audio, []int64{3, 4})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids(recs))
	assert.Equal(t, records.Audio, recs[0].Type)
}

func TestQueryCriterionNotImplemented(t *testing.T) {
	_, store := openStore(t)

	_, err := store.Count(context.Background(), records.Audio, records.Query("case_name:Roe"))
	assert.True(t, errors.Is(err, types.ErrNotImplemented))
}

func TestPeoplePrefetchPositions(t *testing.T) {
	db, store := openStore(t)
	exec(t, db, `INSERT INTO people_db_person (id, date_created, name_last, is_alias_of_id) VALUES
		(1, '2020-01-01', 'Ginsburg', NULL),
		(2, '2020-01-01', 'Clerk', NULL),
		(3, '2020-01-01', 'Alias', 1)`)
	exec(t, db, `INSERT INTO people_db_position (id, person_id, court_id, position_type) VALUES
		(10, 1, 'scotus', 'jud'),
		(11, 2, NULL, 'clerk')`)

	people, err := store.Page(context.Background(), records.People, records.Criterion{Kind: records.Everything, Canonical: true}, 0, 10)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, ids(people))
	assert.True(t, records.IsJudge(people[0]))
	assert.False(t, records.IsJudge(people[1]))
}

func TestNewStoreUnavailable(t *testing.T) {
	_, err := sqlstore.NewStore(context.Background(), records.Config{Driver: "no-such-driver"})
	assert.True(t, errors.Is(err, types.ErrStoreUnavailable))
}
