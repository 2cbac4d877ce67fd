package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/redclaw-sec/redclaw/internal/agent"
)

// shutdownGrace bounds how long Shutdown waits for in-flight executions
// before abandoning them.
const shutdownGrace = 10 * time.Second

// Broadcaster fans a session-scoped event out to live observers.
type Broadcaster interface {
	Broadcast(sessionID string, payload any)
}

// Metrics receives task accounting. Implemented by telemetry.Metrics.
type Metrics interface {
	ObserveTask(status string, seconds float64)
	AddTokens(prompt, completion int)
}

type execution struct {
	sessionID string
	cancel    context.CancelFunc
	done      chan struct{}
}

// Orchestrator owns all tasks and the goroutine executing each one. Agent
// handles are borrowed from sessions; runs against the same handle are
// serialized per session because handles carry mutable inference parameters.
type Orchestrator struct {
	mu       sync.Mutex
	tasks    map[string]*Task
	running  map[string]*execution
	sessions map[string]*sync.Mutex

	runner  agent.Runner
	hub     Broadcaster
	metrics Metrics
	logger  *slog.Logger

	baseCtx   context.Context
	cancelAll context.CancelFunc

	retention time.Duration
	janitor   *cron.Cron
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithNotifier sets the broadcaster for task update events.
func WithNotifier(b Broadcaster) Option {
	return func(o *Orchestrator) { o.hub = b }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithRetention enables the hourly sweep that prunes terminal tasks older
// than d. Zero disables pruning; tasks then stay queryable forever.
func WithRetention(d time.Duration) Option {
	return func(o *Orchestrator) { o.retention = d }
}

// New creates an orchestrator around the given runner.
func New(runner agent.Runner, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		tasks:     make(map[string]*Task),
		running:   make(map[string]*execution),
		sessions:  make(map[string]*sync.Mutex),
		runner:    runner,
		logger:    slog.Default(),
		baseCtx:   ctx,
		cancelAll: cancel,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.retention > 0 {
		o.janitor = cron.New()
		_, err := o.janitor.AddFunc("@hourly", o.pruneExpired)
		if err != nil {
			o.logger.Error("task janitor schedule rejected", "error", err)
		} else {
			o.janitor.Start()
		}
	}

	return o
}

// Create allocates a task for the message, binds it to a cancellable
// goroutine, and transitions it to running before returning. The caller gets
// a snapshot immediately; completion is observed via WaitFor or broadcasts.
func (o *Orchestrator) Create(sessionID, message string, handle *agent.Agent) Task {
	now := time.Now().UTC()
	t := &Task{
		ID:        newTaskID(),
		SessionID: sessionID,
		Message:   message,
		Status:    StatusPending,
		CreatedAt: now,
		Logs:      []LogEntry{},
		ToolsUsed: []string{},
	}

	ctx, cancel := context.WithCancel(o.baseCtx)
	exec := &execution{sessionID: sessionID, cancel: cancel, done: make(chan struct{})}

	o.mu.Lock()
	o.tasks[t.ID] = t
	o.running[t.ID] = exec
	started := time.Now().UTC()
	t.Status = StatusRunning
	t.StartedAt = &started
	snap := t.snapshot()
	o.mu.Unlock()

	go o.execute(ctx, t.ID, handle, exec)

	return snap
}

func (o *Orchestrator) execute(ctx context.Context, taskID string, handle *agent.Agent, exec *execution) {
	defer close(exec.done)

	o.notify(taskID)

	// One agent call at a time per session: the handle's inference
	// parameters are mutable state.
	lock := o.sessionLock(exec.sessionID)
	lock.Lock()
	res, err := o.runner.Run(ctx, handle, o.taskMessage(taskID))
	lock.Unlock()

	o.finalize(taskID, res, err)

	// Terminal-state notification: exactly once, on every exit path.
	o.notify(taskID)
}

// finalize folds the run outcome into the task. It never overrides a state
// already made terminal by WaitFor's timeout path.
func (o *Orchestrator) finalize(taskID string, res *agent.RunResult, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	t, ok := o.tasks[taskID]
	if !ok {
		delete(o.running, taskID)
		return
	}

	if !t.Status.Terminal() {
		now := time.Now().UTC()
		switch {
		case err == nil:
			ex := extract(res)
			t.Status = StatusCompleted
			t.Result = ex.Result
			t.ToolsUsed = ex.ToolsUsed
			if t.ToolsUsed == nil {
				t.ToolsUsed = []string{}
			}
			t.TokenUsage = ex.Usage
			t.Metadata = Metadata{
				InitialThinking: ex.InitialMessage,
				FinalResponse:   ex.FinalMessage,
				ToolCommands:    ex.ToolCommands,
				ToolOutputs:     ex.ToolOutputs,
			}
			for _, tool := range ex.ToolsUsed {
				t.Logs = append(t.Logs, LogEntry{Type: "tool_executed", Tool: tool, Timestamp: now})
			}
		case errors.Is(err, context.Canceled):
			t.Status = StatusCancelled
			t.Error = "Task was cancelled"
		default:
			t.Status = StatusFailed
			t.Error = err.Error()
			t.Logs = append(t.Logs, LogEntry{
				Type:      "error",
				Error:     err.Error(),
				Trace:     fmt.Sprintf("%+v", err),
				Timestamp: now,
			})
		}
		t.CompletedAt = &now
	}

	delete(o.running, taskID)

	if o.metrics != nil {
		o.metrics.ObserveTask(string(t.Status), t.Duration())
		o.metrics.AddTokens(t.TokenUsage.PromptTokens, t.TokenUsage.CompletionTokens)
	}
}

// WaitFor blocks until the task finishes or timeout elapses. On timeout the
// execution is cancelled and the task is failed with a timeout error. Unknown
// or already-finished tasks count as success.
func (o *Orchestrator) WaitFor(taskID string, timeout time.Duration) bool {
	o.mu.Lock()
	exec, ok := o.running[taskID]
	o.mu.Unlock()
	if !ok {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-exec.done:
		return true
	case <-timer.C:
		exec.cancel()

		o.mu.Lock()
		if t, ok := o.tasks[taskID]; ok && !t.Status.Terminal() {
			now := time.Now().UTC()
			t.Status = StatusFailed
			t.Error = fmt.Sprintf("Task timed out after %.0f seconds", timeout.Seconds())
			t.CompletedAt = &now
		}
		o.mu.Unlock()

		return false
	}
}

// Cancel requests cooperative cancellation of an in-flight task. It reports
// whether a cancellable task was found; terminal tasks are left untouched.
func (o *Orchestrator) Cancel(taskID string) bool {
	o.mu.Lock()
	exec, ok := o.running[taskID]
	o.mu.Unlock()
	if !ok {
		return false
	}
	exec.cancel()
	return true
}

// Get returns a snapshot of the task, if present.
func (o *Orchestrator) Get(taskID string) (Task, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	t, ok := o.tasks[taskID]
	if !ok {
		return Task{}, false
	}
	return t.snapshot(), true
}

// ListForSession returns the session's tasks in creation order.
func (o *Orchestrator) ListForSession(sessionID string) []Task {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []Task
	for _, t := range o.tasks {
		if t.SessionID == sessionID {
			out = append(out, t.snapshot())
		}
	}
	// ULIDs sort lexicographically by creation time.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the total number of tracked tasks.
func (o *Orchestrator) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.tasks)
}

// Shutdown cancels every in-flight execution and waits for each to reach a
// terminal state, bounded by an internal grace period so a hard shutdown
// cannot hang.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	if o.janitor != nil {
		o.janitor.Stop()
	}

	o.mu.Lock()
	execs := make([]*execution, 0, len(o.running))
	for _, exec := range o.running {
		execs = append(execs, exec)
	}
	o.mu.Unlock()

	o.cancelAll()

	grace, cancelGrace := context.WithTimeout(ctx, shutdownGrace)
	defer cancelGrace()

	var g errgroup.Group
	for _, exec := range execs {
		g.Go(func() error {
			select {
			case <-exec.done:
				return nil
			case <-grace.Done():
				return errors.New("task abandoned during shutdown")
			}
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Warn("shutdown abandoned in-flight tasks", "error", err)
		return err
	}
	return nil
}

// pruneExpired drops terminal tasks older than the retention window.
func (o *Orchestrator) pruneExpired() {
	cutoff := time.Now().UTC().Add(-o.retention)

	o.mu.Lock()
	defer o.mu.Unlock()

	pruned := 0
	for id, t := range o.tasks {
		if t.Status.Terminal() && t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			delete(o.tasks, id)
			pruned++
		}
	}
	if pruned > 0 {
		o.logger.Info("pruned expired tasks", "count", pruned, "retention", o.retention.String())
	}
}

func (o *Orchestrator) sessionLock(sessionID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()

	lock, ok := o.sessions[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		o.sessions[sessionID] = lock
	}
	return lock
}

func (o *Orchestrator) taskMessage(taskID string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if t, ok := o.tasks[taskID]; ok {
		return t.Message
	}
	return ""
}

// notify broadcasts the task's current state to the session's observers.
func (o *Orchestrator) notify(taskID string) {
	if o.hub == nil {
		return
	}

	o.mu.Lock()
	t, ok := o.tasks[taskID]
	if !ok {
		o.mu.Unlock()
		return
	}
	snap := t.snapshot()
	o.mu.Unlock()

	o.hub.Broadcast(snap.SessionID, map[string]any{
		"type": "task_update",
		"task": snap,
	})
}
