package tasks

import (
	"context"
	"fmt"
	"time"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/monitoring"
	"freelaw.courtlistener.cl-update-index/pkg/records"
	"freelaw.courtlistener.cl-update-index/pkg/search"
)

func init() {
	Register(ADD_OR_UPDATE_ITEMS, addOrUpdateItems)
	Register(DELETE_ITEMS, deleteItems)
	for _, typ := range records.AllTypes {
		Register(typ.UpdateTask(), addOrUpdateType(typ))
	}
}

// Env is what a handler needs to do its work. OpenIndex is expected to cache indexes by url;
// handlers never close them.
type Env struct {
	Store     records.Store
	OpenIndex func(ctx context.Context, url string) (search.Index, error)
}

// Handler runs one signature and returns the number of documents it touched
type Handler func(ctx context.Context, env Env, sig Signature) (int, error)

var handlers = make(map[string]Handler)

// Each handler must Register itself
func Register(name string, handler Handler) {
	log.Debugf("Registering task handler for %s", name)
	if handler == nil {
		log.Panicf("Task handler %s does not exist.", name)
	}
	if _, registered := handlers[name]; registered {
		log.Infof("Task handler %s already registered. Ignoring.", name)
		return
	}
	handlers[name] = handler
}

// Lookup returns the handler registered under name
func Lookup(name string) (Handler, bool) {
	h, ok := handlers[name]
	return h, ok
}

// Execute runs sig with its registered handler. It never panics and always returns a result.
func Execute(ctx context.Context, env Env, sig Signature, component string) (res Result) {
	start := time.Now()
	res = Result{TaskID: sig.ID, Name: sig.Name}

	defer func() {
		if r := recover(); r != nil {
			res.Error = fmt.Sprintf("panic: %v", r)
		}
		res.Duration = time.Since(start)

		logger := log.WithTask(sig.ID, sig.Name)
		status := monitoring.PROM_STATUS_SUCCESS
		if res.Error != "" {
			status = monitoring.PROM_STATUS_FAILED
			logger.Errorw("task failed", "type", sig.Type, "items", len(sig.IDs), "duration", res.Duration, "error", res.Error)
		} else {
			logger.Debugw("task done", "type", sig.Type, "count", res.Count, "duration_ms", res.Duration.Milliseconds())
		}
		monitoring.IncCounter(monitoring.TasksCounter, component, sig.Name, status)
	}()

	handler, ok := Lookup(sig.Name)
	if !ok {
		res.Error = fmt.Sprintf("no handler registered for task %q", sig.Name)
		return res
	}
	n, err := handler(ctx, env, sig)
	res.Count = n
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// addOrUpdateItems loads the bundle from the store and writes it to the index. Ids that no longer
// exist in the store are skipped, as are people without a judicial position.
func addOrUpdateItems(ctx context.Context, env Env, sig Signature) (int, error) {
	if len(sig.IDs) == 0 {
		return 0, nil
	}
	recs, err := env.Store.Get(ctx, sig.Type, sig.IDs)
	if err != nil {
		return 0, err
	}
	docs := make([]search.Document, 0, len(recs))
	for _, rec := range recs {
		if sig.Type == records.People && !records.IsJudge(rec) {
			continue
		}
		docs = append(docs, search.NewDocument(rec))
	}
	if len(docs) == 0 {
		return 0, nil
	}

	index, err := env.OpenIndex(ctx, sig.IndexURL)
	if err != nil {
		return 0, err
	}
	if err := index.Add(ctx, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}

// deleteItems removes the bundle from the index. Nothing is committed.
func deleteItems(ctx context.Context, env Env, sig Signature) (int, error) {
	if len(sig.IDs) == 0 {
		return 0, nil
	}
	index, err := env.OpenIndex(ctx, sig.IndexURL)
	if err != nil {
		return 0, err
	}
	if err := index.Delete(ctx, sig.IDs); err != nil {
		return 0, err
	}
	return len(sig.IDs), nil
}

func addOrUpdateType(typ records.Type) Handler {
	return func(ctx context.Context, env Env, sig Signature) (int, error) {
		sig.Type = typ
		return addOrUpdateItems(ctx, env, sig)
	}
}
