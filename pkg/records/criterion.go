package records

import (
	"fmt"
	"time"
)

// Kind discriminates the Criterion variants
type Kind int

const (
	Everything Kind = iota
	NewerThan
	ByIDs
	ByQuery
)

func (k Kind) String() string {
	switch k {
	case Everything:
		return "everything"
	case NewerThan:
		return "newer-than"
	case ByIDs:
		return "by-ids"
	case ByQuery:
		return "by-query"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Criterion selects the records an operation targets. Only the fields of its Kind are meaningful.
type Criterion struct {
	Kind Kind

	// NewerThan
	Since     time.Time
	Inclusive bool

	// ByIDs
	IDs []int64

	// ByQuery: passed through to the index, never evaluated against the store
	Query string

	// Canonical excludes people that are aliases of another person
	Canonical bool
}

func All() Criterion {
	return Criterion{Kind: Everything}
}

// Since selects records created after ts. Inclusive also selects records created exactly at ts.
func Since(ts time.Time, inclusive bool) Criterion {
	return Criterion{Kind: NewerThan, Since: ts, Inclusive: inclusive}
}

func IDs(ids ...int64) Criterion {
	return Criterion{Kind: ByIDs, IDs: ids}
}

func Query(expr string) Criterion {
	return Criterion{Kind: ByQuery, Query: expr}
}

func (c Criterion) String() string {
	switch c.Kind {
	case NewerThan:
		op := ">"
		if c.Inclusive {
			op = ">="
		}
		return fmt.Sprintf("date_created %s %s", op, c.Since.Format(time.RFC3339))
	case ByIDs:
		return fmt.Sprintf("ids %v", c.IDs)
	case ByQuery:
		return fmt.Sprintf("query %s", c.Query)
	}
	return c.Kind.String()
}
