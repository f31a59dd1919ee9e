package records

import (
	"context"
	"time"
)

const (
	DEFAULT_PAGE_SIZE = 5000
)

// Config selects and configures a record store implementation
type Config struct {
	Driver       string `json:"driver" yaml:"driver"`
	DSN          string `json:"dsn" yaml:"dsn" mask:"url"`
	DatabaseName string `json:"database_name" yaml:"database_name"`
	Timeout      int    `json:"timeout" yaml:"timeout"`
	PageSize     int    `json:"page_size" yaml:"page_size"`
}

// ConnectTimeout returns the configured connect/ping timeout
func (c Config) ConnectTimeout() time.Duration {
	if c.Timeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

// Store is read-only, keyset-paginated access to the source of truth. Implementations wrap connection
// failures with types.ErrStoreUnavailable.
type Store interface {
	// Count returns the number of records of typ matching crit
	Count(ctx context.Context, typ Type, crit Criterion) (int, error)

	// Page returns up to limit records matching crit with ID > afterID, ordered by ID
	Page(ctx context.Context, typ Type, crit Criterion, afterID int64, limit int) ([]Record, error)

	// Get loads the given records, ordered by ID. Missing ids are skipped.
	Get(ctx context.Context, typ Type, ids []int64) ([]Record, error)

	Close() error
}

// StoreFactory creates a store from its config
type StoreFactory func(ctx context.Context, config Config) (Store, error)
