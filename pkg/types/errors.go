package types

/*
 * Error taxonomy shared by the updater, the worker and their collaborators.
 * Collaborators wrap the sentinels below with fmt.Errorf("...: %w") so callers
 * can branch with errors.Is regardless of which store or index engine failed.
 */

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented    = errors.New("not implemented")
	ErrStoreUnavailable  = errors.New("record store unavailable")
	ErrIndexUnavailable  = errors.New("search index unavailable")
	ErrSchemaLoad        = errors.New("couldn't load schema")
	ErrUnknownRecordType = errors.New("unknown record type")
)

// UsageError reports an invalid combination of command line options. It maps to exit code 1
// and is always raised before any side effect.
type UsageError struct {
	Msg   string
	Cause error
}

func NewUsageError(format string, args ...interface{}) *UsageError {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

func (e *UsageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *UsageError) Unwrap() error {
	return e.Cause
}

// IsUsageError reports whether err (or anything it wraps) is a UsageError
func IsUsageError(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}
