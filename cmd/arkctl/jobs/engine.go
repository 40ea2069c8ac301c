// Package jobs implements the Job Engine (C9): a bounded worker pool that
// executes submitted operations, serializes the ones marked exclusive
// through the process-wide Update Lock, and persists terminal state via the
// store. See spec §4.9.
package jobs

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tjper/arkctl/cmd/arkctl/db"
	arkerrors "github.com/tjper/arkctl/cmd/arkctl/errors"
	"github.com/tjper/arkctl/cmd/arkctl/model"
	iuuid "github.com/tjper/arkctl/internal/uuid"
)

// workerCount is W, the fixed non-exclusive worker pool size (§4.9 default).
const workerCount = 4

// queueDepth bounds how many submitted-but-not-yet-started jobs may queue;
// once it is reached Submit returns a Conflict error instead of enqueuing.
const queueDepth = 64

// Handler executes one job's work. It must check ctx for cancellation at
// defined checkpoints and report monotone non-decreasing progress via
// report. The returned result string is persisted as the job's Result on
// success.
type Handler func(ctx context.Context, job *model.Job, report ProgressFunc) (result string, err error)

// ProgressFunc reports a job's progress; progress must be 0..100 and
// non-decreasing within a job (§4.9).
type ProgressFunc func(progress int, message string)

// ProgressEvent is broadcast to subscribers on every progress report. The
// json tags double as the push envelope's field names (hash.FromStruct
// flattens this directly into the broadcast payload).
type ProgressEvent struct {
	JobID    uuid.UUID       `json:"jobId"`
	Status   model.JobStatus `json:"status"`
	Progress int             `json:"progress"`
	Message  string          `json:"message"`
}

// Sink receives progress events for broadcast; implemented by the push hub.
type Sink interface {
	PublishJobProgress(ProgressEvent)
}

type workItem struct {
	id        uuid.UUID
	jobType   model.JobType
	exclusive bool
}

// New creates an Engine and starts its worker pool. Call Stop to shut the
// pool down.
func New(logger *zap.Logger, store db.IStore, lock *UpdateLock, sink Sink) *Engine {
	e := &Engine{
		logger:   logger,
		store:    store,
		lock:     lock,
		sink:     sink,
		handlers: make(map[model.JobType]Handler),
		queue:    make(chan workItem, queueDepth),
		cancels:  make(map[uuid.UUID]context.CancelFunc),
		done:     make(chan struct{}),
	}
	for i := 0; i < workerCount; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

// Engine is the Job Engine.
type Engine struct {
	logger *zap.Logger
	store  db.IStore
	lock   *UpdateLock
	sink   Sink

	mu       sync.Mutex
	handlers map[model.JobType]Handler
	cancels  map[uuid.UUID]context.CancelFunc

	queue chan workItem
	wg    sync.WaitGroup
	done  chan struct{}
}

// RegisterHandler wires jobType to handler. Call before Submit is used for
// that type; not safe for concurrent use with Submit.
func (e *Engine) RegisterHandler(jobType model.JobType, handler Handler) {
	e.handlers[jobType] = handler
}

// Submit creates a job row in JobPending status and enqueues it for
// execution, returning its id immediately.
func (e *Engine) Submit(ctx context.Context, jobType model.JobType, data string, exclusive bool) (uuid.UUID, error) {
	id := uuid.New()
	if _, err := e.store.CreateJob(ctx, id, jobType, data); err != nil {
		return uuid.Nil, err
	}

	select {
	case e.queue <- workItem{id: id, jobType: jobType, exclusive: exclusive}:
	default:
		return uuid.Nil, arkerrors.New(arkerrors.Conflict, "job queue is full")
	}
	return id, nil
}

// Get returns a job's current persisted state.
func (e *Engine) Get(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	return e.store.GetJob(ctx, id)
}

// List returns every job's persisted state.
func (e *Engine) List(ctx context.Context) ([]model.Job, error) {
	return e.store.ListJobs(ctx)
}

// Cancel requests cooperative cancellation of a running job. The job's
// handler observes this at its own checkpoints; Cancel does not itself mark
// the job cancelled.
func (e *Engine) Cancel(id uuid.UUID) error {
	e.mu.Lock()
	cancel, ok := e.cancels[id]
	e.mu.Unlock()
	if !ok {
		return arkerrors.New(arkerrors.NotFound, "job %s is not running", id)
	}
	cancel()
	return nil
}

// Stop closes the work queue and waits for the workers to exit: running
// jobs and jobs still in the queue are all run to completion first.
func (e *Engine) Stop() {
	e.mu.Lock()
	running := make([]uuid.UUID, 0, len(e.cancels))
	for id := range e.cancels {
		running = append(running, id)
	}
	e.mu.Unlock()
	if len(running) > 0 {
		e.logger.Info("stopping job engine with jobs still in flight", zap.Strings("jobIds", iuuid.Strings(running)))
	}

	close(e.queue)
	e.wg.Wait()
}

func (e *Engine) worker() {
	defer e.wg.Done()
	for item := range e.queue {
		e.run(item)
	}
}

func (e *Engine) run(item workItem) {
	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancels[item.id] = cancel
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.cancels, item.id)
		e.mu.Unlock()
		cancel()
	}()

	if item.exclusive {
		if err := e.lock.Lock(ctx, item.id.String(), string(item.jobType)); err != nil {
			e.fail(context.Background(), item.id, arkerrors.Wrap(arkerrors.Conflict, err, "failed to acquire update lock"))
			return
		}
		defer e.lock.Unlock()
	}

	handler, ok := e.handlers[item.jobType]
	if !ok {
		e.fail(ctx, item.id, arkerrors.New(arkerrors.Internal, "no handler registered for job type %q", item.jobType))
		return
	}

	e.transitionRunning(ctx, item.id)

	job, err := e.store.GetJob(ctx, item.id)
	if err != nil {
		e.fail(ctx, item.id, err)
		return
	}

	result, err := e.invoke(ctx, handler, job)
	if err != nil {
		if ctx.Err() != nil {
			e.cancelled(context.Background(), item.id)
			return
		}
		e.fail(ctx, item.id, err)
		return
	}
	e.succeed(ctx, item.id, result)
}

// invoke runs handler with panic recovery, per §4.9: a panicking worker
// marks the job failed and the pool keeps processing subsequent jobs.
func (e *Engine) invoke(ctx context.Context, handler Handler, job *model.Job) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = arkerrors.New(arkerrors.Internal, "job handler panicked: %v", r)
		}
	}()

	lastProgress := 0
	report := func(progress int, message string) {
		if progress < lastProgress {
			progress = lastProgress
		}
		lastProgress = progress
		e.reportProgress(ctx, job.ID, progress, message)
	}
	return handler(ctx, job, report)
}

func (e *Engine) transitionRunning(ctx context.Context, id uuid.UUID) {
	status := model.JobRunning
	if _, err := e.store.UpdateJob(ctx, id, db.JobChanges{Status: &status}); err != nil {
		e.logger.Error("failed to transition job to running", zap.Stringer("jobId", id), zap.Error(err))
		return
	}
	e.sink.PublishJobProgress(ProgressEvent{JobID: id, Status: model.JobRunning})
}

func (e *Engine) reportProgress(ctx context.Context, id uuid.UUID, progress int, message string) {
	status := model.JobRunning
	if _, err := e.store.UpdateJob(ctx, id, db.JobChanges{Status: &status, Progress: &progress, Message: &message}); err != nil {
		e.logger.Error("failed to persist job progress", zap.Stringer("jobId", id), zap.Error(err))
	}
	e.sink.PublishJobProgress(ProgressEvent{JobID: id, Status: model.JobRunning, Progress: progress, Message: message})
}

func (e *Engine) succeed(ctx context.Context, id uuid.UUID, result string) {
	status := model.JobSucceeded
	progress := 100
	if _, err := e.store.UpdateJob(ctx, id, db.JobChanges{Status: &status, Progress: &progress, Result: &result}); err != nil {
		e.logger.Error("failed to persist job success", zap.Stringer("jobId", id), zap.Error(err))
	}
	e.sink.PublishJobProgress(ProgressEvent{JobID: id, Status: model.JobSucceeded, Progress: 100})
}

func (e *Engine) fail(ctx context.Context, id uuid.UUID, cause error) {
	status := model.JobFailed
	jobErr := &model.JobError{
		Kind:      string(arkerrors.KindOf(cause)),
		Message:   cause.Error(),
		Retryable: isRetryable(cause),
	}
	if _, err := e.store.UpdateJob(ctx, id, db.JobChanges{Status: &status, Error: jobErr}); err != nil {
		e.logger.Error("failed to persist job failure", zap.Stringer("jobId", id), zap.Error(err))
	}
	e.sink.PublishJobProgress(ProgressEvent{JobID: id, Status: model.JobFailed, Message: cause.Error()})
}

func (e *Engine) cancelled(ctx context.Context, id uuid.UUID) {
	status := model.JobCancelled
	message := "cancelled"
	if _, err := e.store.UpdateJob(ctx, id, db.JobChanges{Status: &status, Message: &message}); err != nil {
		e.logger.Error("failed to persist job cancellation", zap.Stringer("jobId", id), zap.Error(err))
	}
	e.sink.PublishJobProgress(ProgressEvent{JobID: id, Status: model.JobCancelled})
}

func isRetryable(err error) bool {
	if e, ok := arkerrors.As(err); ok {
		return e.Retryable()
	}
	return false
}
