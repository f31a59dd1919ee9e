package records

/*
 * Sequence is the record source adapter: a forward-only, lazily paginated view over the records
 * matching a criterion, with the total known before the first record is read. To restart, open a
 * new Sequence.
 */

import (
	"context"
	"fmt"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/types"
)

type Sequence struct {
	store    Store
	typ      Type
	crit     Criterion
	pageSize int

	total     int
	page      []Record
	pos       int
	lastID    int64
	exhausted bool
}

// Open counts the matching records and prepares lazy iteration. Store failures surface here,
// before any record is handed out.
func Open(ctx context.Context, store Store, typ Type, crit Criterion, pageSize int) (*Sequence, error) {
	if crit.Kind == ByQuery {
		return nil, fmt.Errorf("selecting %s records by query: %w", typ, types.ErrNotImplemented)
	}
	if pageSize <= 0 {
		pageSize = DEFAULT_PAGE_SIZE
	}

	s := &Sequence{
		store:    store,
		typ:      typ,
		crit:     crit,
		pageSize: pageSize,
	}

	// Whether a person is a judge depends on their positions, which the store cannot filter on.
	// Materialize the judges up front so the count is exact.
	if typ == People && crit.Kind == Everything {
		s.crit.Canonical = true
		if err := s.materialize(ctx, IsJudge); err != nil {
			return nil, err
		}
		return s, nil
	}

	total, err := store.Count(ctx, typ, crit)
	if err != nil {
		return nil, err
	}
	s.total = total
	return s, nil
}

func (s *Sequence) materialize(ctx context.Context, keep func(Record) bool) error {
	var kept []Record
	var after int64
	scanned := 0
	for {
		page, err := s.store.Page(ctx, s.typ, s.crit, after, s.pageSize)
		if err != nil {
			return err
		}
		for _, r := range page {
			if keep(r) {
				kept = append(kept, r)
			}
		}
		scanned += len(page)
		if len(page) < s.pageSize {
			break
		}
		after = page[len(page)-1].ID
	}
	log.Debugf("materialized %d of %d %s records", len(kept), scanned, s.typ)

	s.page = kept
	s.total = len(kept)
	s.exhausted = true
	return nil
}

// Total is the number of records the sequence expects to yield
func (s *Sequence) Total() int {
	return s.total
}

// Next returns the next record. ok is false once the sequence is drained.
func (s *Sequence) Next(ctx context.Context) (rec Record, ok bool, err error) {
	if s.pos >= len(s.page) {
		if s.exhausted {
			return Record{}, false, nil
		}
		if err := s.fetch(ctx); err != nil {
			return Record{}, false, err
		}
		if len(s.page) == 0 {
			return Record{}, false, nil
		}
	}
	rec = s.page[s.pos]
	s.pos++
	return rec, true, nil
}

func (s *Sequence) fetch(ctx context.Context) error {
	page, err := s.store.Page(ctx, s.typ, s.crit, s.lastID, s.pageSize)
	if err != nil {
		return err
	}
	s.page = page
	s.pos = 0
	if len(page) < s.pageSize {
		s.exhausted = true
	}
	if len(page) > 0 {
		s.lastID = page[len(page)-1].ID
	}
	log.Debugf("fetched page of %d %s records (last id %d)", len(page), s.typ, s.lastID)
	return nil
}
