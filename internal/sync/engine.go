package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mviana/labtrack/internal/curriculum"
	"github.com/mviana/labtrack/internal/errors"
	"github.com/mviana/labtrack/internal/logger"
	"github.com/mviana/labtrack/internal/models"
	"github.com/mviana/labtrack/internal/progress"
)

// EngineConfig wires the engine's collaborators. Store, Cache, Catalog
// and UserID are required; the rest have sensible defaults.
type EngineConfig struct {
	Store    Store
	Cache    *Cache
	Catalog  *curriculum.Catalog
	Notifier *Notifier
	UserID   string
	Timeout  time.Duration
	Observer func(models.ProgressRecord)
	Logger   *logger.Logger
}

// Engine keeps a local progress record in step with the remote store.
// Mutations apply locally first and persist in the background; a terminal
// rejection reverts the local value, while an unreachable store queues the
// value in the offline cache for later reconciliation.
//
// At most one persistence call per task key is in flight at a time. A
// mutation arriving while one is pending replaces any queued value, so
// only the latest desired state is ever sent.
type Engine struct {
	store    Store
	cache    *Cache
	catalog  *curriculum.Catalog
	notifier *Notifier
	userID   string
	timeout  time.Duration
	observer func(models.ProgressRecord)
	log      *logger.Logger
	now      func() time.Time

	mu      sync.Mutex
	record  *models.ProgressRecord
	flights map[string]*flight
	wg      sync.WaitGroup
}

type flight struct {
	queued *PendingMutation
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Observer == nil {
		cfg.Observer = func(models.ProgressRecord) {}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NewNotifier(time.Minute, nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.New()
	}
	return &Engine{
		store:    cfg.Store,
		cache:    cfg.Cache,
		catalog:  cfg.Catalog,
		notifier: cfg.Notifier,
		userID:   cfg.UserID,
		timeout:  cfg.Timeout,
		observer: cfg.Observer,
		log:      cfg.Logger.WithPrefix("sync"),
		now:      time.Now,
		record:   models.NewProgressRecord(),
		flights:  make(map[string]*flight),
	}
}

// Load fetches the server-side record and lays any offline-queued
// mutations on top, so the local view reflects every change the user has
// made even before reconciliation runs. An unreachable store leaves the
// engine working from the cache alone.
func (e *Engine) Load(ctx context.Context) error {
	rec, err := e.store.FetchProgress(ctx, e.userID)
	if err != nil {
		if !errors.IsStoreUnavailable(err) {
			return err
		}
		e.log.Warn("store unreachable on load, starting from offline cache: %v", err)
		rec = models.NewProgressRecord()
	}

	e.mu.Lock()
	e.record = rec
	for _, m := range e.cache.Pending() {
		e.applyLocked(m)
	}
	e.notifyLocked()
	e.mu.Unlock()
	return nil
}

// Record returns a snapshot of the local progress record.
func (e *Engine) Record() models.ProgressRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneRecord(e.record)
}

// SetTaskCompletion applies the task flag locally (cascading to
// subtasks) and persists it in the background.
func (e *Engine) SetTaskCompletion(taskID string, completed bool) error {
	if !e.catalog.ValidTask(taskID) {
		return errors.NewValidationError("taskId", fmt.Sprintf("unknown task %q", taskID))
	}
	m := PendingMutation{Kind: mutationTask, TaskID: taskID, Completed: completed, QueuedAt: e.now()}
	e.submitProgress(m)
	return nil
}

// SetSubtaskCompletion applies the subtask flag locally (re-deriving the
// parent) and persists it in the background.
func (e *Engine) SetSubtaskCompletion(taskID, stepID string, completed bool) error {
	if !e.catalog.ValidStep(taskID, stepID) {
		return errors.NewValidationError("stepId", fmt.Sprintf("unknown step %q for task %q", stepID, taskID))
	}
	m := PendingMutation{Kind: mutationSubtask, TaskID: taskID, StepID: stepID, Completed: completed, QueuedAt: e.now()}
	e.submitProgress(m)
	return nil
}

// SaveNote persists a note in the background with the same coalescing and
// offline fallback as progress mutations. Notes have no optimistic local
// copy inside the engine, so a terminal failure only surfaces a notice.
func (e *Engine) SaveNote(taskID, content string, tags []string, format models.NoteFormat) error {
	if !e.catalog.ValidTask(taskID) {
		return errors.NewValidationError("taskId", fmt.Sprintf("unknown task %q", taskID))
	}
	m := PendingMutation{Kind: mutationNote, TaskID: taskID, Content: content, Tags: tags, Format: format, QueuedAt: e.now()}

	e.mu.Lock()
	e.enqueueLocked("note/"+taskID, m, models.TaskProgress{})
	e.mu.Unlock()
	return nil
}

// Flush blocks until every in-flight and queued persistence call has
// settled. Intended for shutdown and tests.
func (e *Engine) Flush() {
	e.wg.Wait()
}

// PendingOffline reports how many mutations are queued in the offline
// cache awaiting reconciliation.
func (e *Engine) PendingOffline() int {
	return e.cache.Len()
}

// Reconcile replays offline-queued mutations through the store in the
// order they were queued. Replays go through the normal save paths, so
// the server's own diffing keeps note history free of duplicates. A still
// unreachable store stops the replay; a terminal rejection drops the
// entry, since retrying it can never succeed. On success the local record
// is refreshed from the store.
func (e *Engine) Reconcile(ctx context.Context) error {
	for _, m := range e.cache.Pending() {
		err := e.persist(ctx, m)
		if err == nil {
			if cerr := e.cache.Remove(m); cerr != nil {
				e.log.Error("dropping reconciled cache entry: %v", cerr)
			}
			continue
		}
		if errors.IsStoreUnavailable(err) {
			return err
		}
		e.log.Warn("dropping unreplayable offline mutation %s: %v", m.key(), err)
		e.notifier.Notify("reconcile-failed/"+m.key(), NoticeError, err.Error())
		if cerr := e.cache.Remove(m); cerr != nil {
			e.log.Error("dropping rejected cache entry: %v", cerr)
		}
	}

	rec, err := e.store.FetchProgress(ctx, e.userID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.record = rec
	e.notifyLocked()
	e.mu.Unlock()
	return nil
}

func (e *Engine) submitProgress(m PendingMutation) {
	e.mu.Lock()
	baseline := cloneTask(e.record.Task(m.TaskID))
	e.applyLocked(m)
	e.notifyLocked()
	e.enqueueLocked(m.TaskID, m, baseline)
	e.mu.Unlock()
}

// enqueueLocked starts a flight for key or replaces its queued value.
func (e *Engine) enqueueLocked(key string, m PendingMutation, baseline models.TaskProgress) {
	if f, ok := e.flights[key]; ok {
		f.queued = &m
		return
	}
	e.flights[key] = &flight{}
	e.wg.Add(1)
	go e.run(key, m, baseline)
}

func (e *Engine) run(key string, m PendingMutation, baseline models.TaskProgress) {
	defer e.wg.Done()
	for {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		err := e.persist(ctx, m)
		cancel()

		e.mu.Lock()
		f := e.flights[key]
		switch {
		case err == nil:
			if m.Kind != mutationNote {
				baseline = advanceBaseline(baseline, m, e.catalog.StepIDs(m.TaskID), e.now())
			}
			if cerr := e.cache.Remove(m); cerr != nil {
				e.log.Error("clearing confirmed cache entry: %v", cerr)
			}
		case errors.IsStoreUnavailable(err):
			// Optimistic value stays; it will be replayed on reconcile.
			if cerr := e.cache.Put(m); cerr != nil {
				e.log.Error("queueing offline mutation %s: %v", m.key(), cerr)
			}
			e.notifier.Notify("store-offline", NoticeWarning,
				"changes saved locally and will sync when the connection returns")
		default:
			if m.Kind != mutationNote {
				e.record.SetTask(m.TaskID, baseline)
				e.notifyLocked()
			}
			e.log.Warn("mutation %s rejected: %v", m.key(), err)
			e.notifier.Notify("sync-failed/"+key, NoticeError, err.Error())
		}

		if f.queued != nil {
			m = *f.queued
			f.queued = nil
			e.mu.Unlock()
			continue
		}
		delete(e.flights, key)
		e.mu.Unlock()
		return
	}
}

func (e *Engine) persist(ctx context.Context, m PendingMutation) error {
	switch m.Kind {
	case mutationTask:
		return e.store.SaveTaskCompletion(ctx, e.userID, m.TaskID, m.Completed)
	case mutationSubtask:
		return e.store.SaveSubtaskCompletion(ctx, e.userID, m.TaskID, m.StepID, m.Completed)
	case mutationNote:
		return e.store.SaveNote(ctx, e.userID, m.TaskID, m.Content, m.Tags, m.Format)
	default:
		return errors.NewInternalError(fmt.Errorf("unknown mutation kind %q", m.Kind))
	}
}

func (e *Engine) applyLocked(m PendingMutation) {
	stepIDs := e.catalog.StepIDs(m.TaskID)
	switch m.Kind {
	case mutationTask:
		progress.ApplyTask(e.record, m.TaskID, stepIDs, m.Completed, e.now())
	case mutationSubtask:
		progress.ApplySubtask(e.record, m.TaskID, m.StepID, stepIDs, m.Completed, e.now())
	}
}

func (e *Engine) notifyLocked() {
	e.observer(cloneRecord(e.record))
}

// advanceBaseline computes the task state a confirmed mutation leaves on
// the server, which becomes the revert target for the next mutation in
// the chain.
func advanceBaseline(baseline models.TaskProgress, m PendingMutation, stepIDs []string, now time.Time) models.TaskProgress {
	rec := models.NewProgressRecord()
	rec.SetTask(m.TaskID, cloneTask(baseline))
	switch m.Kind {
	case mutationTask:
		progress.ApplyTask(rec, m.TaskID, stepIDs, m.Completed, now)
	case mutationSubtask:
		progress.ApplySubtask(rec, m.TaskID, m.StepID, stepIDs, m.Completed, now)
	}
	return rec.Task(m.TaskID)
}

func cloneTask(tp models.TaskProgress) models.TaskProgress {
	cp := tp
	if tp.Subtasks != nil {
		cp.Subtasks = make(map[string]models.SubtaskProgress, len(tp.Subtasks))
		for id, sp := range tp.Subtasks {
			cp.Subtasks[id] = sp
		}
	}
	return cp
}

func cloneRecord(rec *models.ProgressRecord) models.ProgressRecord {
	out := models.ProgressRecord{Tasks: make(map[string]models.TaskProgress, len(rec.Tasks))}
	for id, tp := range rec.Tasks {
		out.Tasks[id] = cloneTask(tp)
	}
	return out
}
