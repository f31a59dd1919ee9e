package sqlstore

/*
 * sqlstore reads records from a relational database through database/sql. The pure Go
 * modernc.org/sqlite driver is linked in; any driver registered under Config.Driver works
 * as long as it understands "?" placeholders.
 */

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/records"
	"freelaw.courtlistener.cl-update-index/pkg/types"
	_ "modernc.org/sqlite"
)

const (
	DRIVER_SQLITE = "sqlite"

	positionsTable = "people_db_position"
	timeLayout     = "2006-01-02 15:04:05"
)

type Store struct {
	db     *sql.DB
	driver string
}

var _ records.Store = (*Store)(nil)

// NewStore opens the database and pings it so an unreachable store fails before any work starts
func NewStore(ctx context.Context, config records.Config) (records.Store, error) {
	driver := config.Driver
	if driver == "" {
		driver = DRIVER_SQLITE
	}
	db, err := sql.Open(driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w: %v", driver, types.ErrStoreUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout())
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging %s store: %w: %v", driver, types.ErrStoreUnavailable, err)
	}
	log.Debugf("connected to %s store", driver)
	return New(db, driver), nil
}

// New wraps an already opened database handle
func New(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// where builds the WHERE clause and its arguments for a criterion
func (s *Store) where(typ records.Type, crit records.Criterion) (string, []interface{}, error) {
	var clauses []string
	var args []interface{}

	switch crit.Kind {
	case records.Everything:
	case records.NewerThan:
		op := ">"
		if crit.Inclusive {
			op = ">="
		}
		if s.driver == DRIVER_SQLITE {
			// sqlite keeps date_created as text that may be date-only or RFC3339; normalize both sides
			clauses = append(clauses, "datetime(date_created) "+op+" datetime(?)")
			args = append(args, crit.Since.UTC().Format(timeLayout))
		} else {
			clauses = append(clauses, "date_created "+op+" ?")
			args = append(args, crit.Since.UTC())
		}
	case records.ByIDs:
		if len(crit.IDs) == 0 {
			clauses = append(clauses, "1 = 0")
			break
		}
		clauses = append(clauses, "id IN ("+placeholders(len(crit.IDs))+")")
		for _, id := range crit.IDs {
			args = append(args, id)
		}
	default:
		return "", nil, fmt.Errorf("selecting %s records by %s: %w", typ, crit.Kind, types.ErrNotImplemented)
	}

	if crit.Canonical && typ == records.People {
		clauses = append(clauses, "is_alias_of_id IS NULL")
	}
	if len(clauses) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func unavailable(op string, typ records.Type, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s %s: %w", op, typ, err)
	}
	return fmt.Errorf("%s %s: %w: %v", op, typ, types.ErrStoreUnavailable, err)
}

func (s *Store) Count(ctx context.Context, typ records.Type, crit records.Criterion) (int, error) {
	clause, args, err := s.where(typ, crit)
	if err != nil {
		return 0, err
	}
	var count int
	q := "SELECT COUNT(*) FROM " + typ.Table() + clause
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&count); err != nil {
		return 0, unavailable("counting", typ, err)
	}
	return count, nil
}

func (s *Store) Page(ctx context.Context, typ records.Type, crit records.Criterion, afterID int64, limit int) ([]records.Record, error) {
	clause, args, err := s.where(typ, crit)
	if err != nil {
		return nil, err
	}
	if clause == "" {
		clause = " WHERE id > ?"
	} else {
		clause += " AND id > ?"
	}
	args = append(args, afterID, limit)
	q := "SELECT * FROM " + typ.Table() + clause + " ORDER BY id LIMIT ?"
	return s.query(ctx, typ, q, args...)
}

func (s *Store) Get(ctx context.Context, typ records.Type, ids []int64) ([]records.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := "SELECT * FROM " + typ.Table() + " WHERE id IN (" + placeholders(len(ids)) + ") ORDER BY id"
	return s.query(ctx, typ, q, args...)
}

func (s *Store) query(ctx context.Context, typ records.Type, q string, args ...interface{}) ([]records.Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, unavailable("querying", typ, err)
	}
	maps, err := scanMaps(rows)
	if err != nil {
		return nil, unavailable("reading", typ, err)
	}

	out := make([]records.Record, 0, len(maps))
	for _, m := range maps {
		rec, err := toRecord(typ, m)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	if typ == records.People && len(out) > 0 {
		if err := s.prefetchPositions(ctx, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// prefetchPositions attaches each person's positions under Fields["positions"]
func (s *Store) prefetchPositions(ctx context.Context, people []records.Record) error {
	args := make([]interface{}, len(people))
	byID := make(map[int64]int, len(people))
	for i, p := range people {
		args[i] = p.ID
		byID[p.ID] = i
		people[i].Fields["positions"] = []map[string]interface{}{}
	}
	q := "SELECT * FROM " + positionsTable + " WHERE person_id IN (" + placeholders(len(args)) + ") ORDER BY id"
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return unavailable("prefetching positions for", records.People, err)
	}
	positions, err := scanMaps(rows)
	if err != nil {
		return unavailable("prefetching positions for", records.People, err)
	}
	for _, pos := range positions {
		pid, ok := toInt64(pos["person_id"])
		if !ok {
			continue
		}
		if i, ok := byID[pid]; ok {
			people[i].Fields["positions"] = append(people[i].Fields["positions"].([]map[string]interface{}), pos)
		}
	}
	return nil
}

func scanMaps(rows *sql.Rows) ([]map[string]interface{}, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		m := make(map[string]interface{}, len(cols))
		for i, c := range cols {
			m[c] = normalize(values[i])
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// normalize turns driver values into json friendly ones
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return v
	}
}

func toRecord(typ records.Type, m map[string]interface{}) (records.Record, error) {
	id, ok := toInt64(m["id"])
	if !ok {
		return records.Record{}, fmt.Errorf("%s row without an integer id: %v", typ.Table(), m["id"])
	}
	rec := records.Record{ID: id, Type: typ, Fields: m}
	if dc, ok := m["date_created"].(string); ok {
		rec.DateCreated = parseTime(dc)
	}
	return rec, nil
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, timeLayout, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func toInt64(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case float64:
		return int64(t), true
	}
	return 0, false
}
