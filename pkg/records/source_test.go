package records_test

import (
	"context"
	"errors"
	"testing"

	"freelaw.courtlistener.cl-update-index/pkg/records"
	"freelaw.courtlistener.cl-update-index/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore serves a fixed, id ordered slice of records and counts page requests
type memStore struct {
	recs  []records.Record
	pages int
	err   error
}

func newMemStore(typ records.Type, n int) *memStore {
	s := &memStore{}
	for i := 1; i <= n; i++ {
		s.recs = append(s.recs, records.Record{ID: int64(i * 10), Type: typ, Fields: map[string]interface{}{}})
	}
	return s
}

func (s *memStore) match(crit records.Criterion, r records.Record) bool {
	if crit.Kind != records.ByIDs {
		return true
	}
	for _, id := range crit.IDs {
		if id == r.ID {
			return true
		}
	}
	return false
}

func (s *memStore) Count(_ context.Context, _ records.Type, crit records.Criterion) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	n := 0
	for _, r := range s.recs {
		if s.match(crit, r) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) Page(_ context.Context, _ records.Type, crit records.Criterion, afterID int64, limit int) ([]records.Record, error) {
	s.pages++
	var out []records.Record
	for _, r := range s.recs {
		if r.ID > afterID && s.match(crit, r) && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) Get(context.Context, records.Type, []int64) ([]records.Record, error) {
	return nil, nil
}

func (s *memStore) Close() error { return nil }

func drain(t *testing.T, seq *records.Sequence) []int64 {
	t.Helper()
	var out []int64
	for {
		rec, ok, err := seq.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, rec.ID)
	}
}

func TestSequenceYieldsAllInOrder(t *testing.T) {
	store := newMemStore(records.Audio, 7)
	seq, err := records.Open(context.Background(), store, records.Audio, records.All(), 3)
	require.NoError(t, err)

	assert.Equal(t, 7, seq.Total())
	assert.Zero(t, store.pages, "nothing is read before the first Next")
	assert.Equal(t, []int64{10, 20, 30, 40, 50, 60, 70}, drain(t, seq))
	assert.Equal(t, 3, store.pages)
}

func TestSequenceExactPageMultiple(t *testing.T) {
	store := newMemStore(records.Audio, 6)
	seq, err := records.Open(context.Background(), store, records.Audio, records.All(), 3)
	require.NoError(t, err)

	assert.Len(t, drain(t, seq), 6)
	// the third, empty page is what proves exhaustion
	assert.Equal(t, 3, store.pages)

	_, ok, err := seq.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSequenceEmpty(t *testing.T) {
	store := newMemStore(records.Opinions, 0)
	seq, err := records.Open(context.Background(), store, records.Opinions, records.All(), 3)
	require.NoError(t, err)
	assert.Zero(t, seq.Total())
	assert.Empty(t, drain(t, seq))
}

func TestSequenceByIDs(t *testing.T) {
	store := newMemStore(records.Recap, 5)
	seq, err := records.Open(context.Background(), store, records.Recap, records.IDs(20, 40, 99), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, seq.Total())
	assert.Equal(t, []int64{20, 40}, drain(t, seq))
}

func TestSequenceRejectsQuery(t *testing.T) {
	store := newMemStore(records.Audio, 1)
	_, err := records.Open(context.Background(), store, records.Audio, records.Query("x"), 0)
	assert.True(t, errors.Is(err, types.ErrNotImplemented))
}

func TestSequenceStoreFailure(t *testing.T) {
	store := newMemStore(records.Audio, 1)
	store.err = types.ErrStoreUnavailable
	_, err := records.Open(context.Background(), store, records.Audio, records.All(), 0)
	assert.True(t, errors.Is(err, types.ErrStoreUnavailable))
}

func TestSequencePeopleOnlyJudges(t *testing.T) {
	store := newMemStore(records.People, 4)
	store.recs[1].Fields["positions"] = []map[string]interface{}{{"court_id": "scotus"}}
	store.recs[3].Fields["positions"] = []interface{}{map[string]interface{}{"court_id": "ca9"}}
	store.recs[2].Fields["positions"] = []map[string]interface{}{{"court_id": nil}}

	seq, err := records.Open(context.Background(), store, records.People, records.All(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, seq.Total())
	assert.Equal(t, []int64{20, 40}, drain(t, seq))
}

func TestParseType(t *testing.T) {
	typ, err := records.ParseType(" Opinions ")
	require.NoError(t, err)
	assert.Equal(t, records.Opinions, typ)

	_, err = records.ParseType("dockets")
	assert.True(t, errors.Is(err, types.ErrUnknownRecordType))
}
