package tasks

/*
 * tasks describes the unit of work handed to the execution layer: a Signature naming a handler and
 * the bundle of record ids it acts on. Executors run signatures either in process (tasks/local) or
 * through a broker consumed by cl-index-worker (tasks/broker). Either way every submitted signature
 * produces exactly one Result.
 */

import (
	"context"
	"errors"
	"fmt"
	"time"

	"freelaw.courtlistener.cl-update-index/pkg/records"
	"github.com/google/uuid"
)

const (
	ADD_OR_UPDATE_ITEMS          = "add_or_update_items"
	DELETE_ITEMS                 = "delete_items"
	ADD_OR_UPDATE_AUDIO_FILES    = "add_or_update_audio_files"
	ADD_OR_UPDATE_OPINIONS       = "add_or_update_opinions"
	ADD_OR_UPDATE_PEOPLE         = "add_or_update_people"
	ADD_OR_UPDATE_RECAP_DOCUMENT = "add_or_update_recap_document"
)

var ErrJoinTimeout = errors.New("timed out waiting for task group")

// Signature is a serialisable task invocation
type Signature struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Type     records.Type `json:"type"`
	IDs      []int64      `json:"ids"`
	IndexURL string       `json:"index_url"`
	GroupID  string       `json:"group_id,omitempty"`
}

// NewSignature creates a signature with a fresh task id. ids is copied.
func NewSignature(name string, typ records.Type, ids []int64, indexURL string) Signature {
	return Signature{
		ID:       uuid.New().String(),
		Name:     name,
		Type:     typ,
		IDs:      append([]int64(nil), ids...),
		IndexURL: indexURL,
	}
}

func (s Signature) String() string {
	return fmt.Sprintf("%s[%s] %s x%d", s.Name, s.ID, s.Type, len(s.IDs))
}

// Result is the outcome of one task
type Result struct {
	TaskID   string        `json:"task_id"`
	Name     string        `json:"name"`
	Count    int           `json:"count"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// TaskError is a failed task's error as carried in its Result
type TaskError struct {
	TaskID string
	Name   string
	Msg    string
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s [%s] failed: %s", e.Name, e.TaskID, e.Msg)
}

// Err returns nil for a successful task
func (r Result) Err() error {
	if r.Error == "" {
		return nil
	}
	return &TaskError{TaskID: r.TaskID, Name: r.Name, Msg: r.Error}
}

// Group is a handle on a submitted set of signatures
type Group interface {
	ID() string
	Len() int

	// Join blocks until every task of the group reported or timeout elapsed. On timeout the
	// results gathered so far are returned with ErrJoinTimeout.
	Join(ctx context.Context, timeout time.Duration) ([]Result, error)
}

// Executor submits signatures for asynchronous execution
type Executor interface {
	ApplyAsync(ctx context.Context, sigs []Signature) (Group, error)
	Close() error
}

// NewGroupID returns a fresh group id
func NewGroupID() string {
	return uuid.New().String()
}
