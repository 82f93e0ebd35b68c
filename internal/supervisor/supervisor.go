package supervisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"bk25/internal/logging"
)

var log = logging.For("supervisor")

// Config tunes the supervisor's scheduling and retention behavior.
type Config struct {
	MaxConcurrentTasks int
	MetricsInterval    time.Duration
	RetentionAge       time.Duration
	RetentionInterval  time.Duration

	// WorkspaceRoot, when non-empty, confines every task's WorkingDir
	// under this directory; requests that escape it are rejected at
	// admission (spec.md §4.4, sandboxed via internal/sandbox).
	WorkspaceRoot string
}

// DefaultConfig mirrors spec.md §4.4's defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentTasks: 5,
		MetricsInterval:    time.Second,
		RetentionAge:       7 * 24 * time.Hour,
		RetentionInterval:  time.Hour,
	}
}

type task struct {
	mu       sync.Mutex
	snapshot TaskSnapshot
	descriptor TaskDescriptor
	cancel   context.CancelFunc
	pauseCh  chan struct{} // closed to resume; nil when not paused
	metrics  TaskMetrics
}

func (t *task) snap() TaskSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot
}

// Supervisor implements the Execution Supervisor (C7).
type Supervisor struct {
	cfg Config

	mu    sync.Mutex
	tasks map[string]*task
	order []string // submission order, for history/statistics iteration
	queue *taskQueue

	sem *semaphore.Weighted

	statusCbs     []StatusCallback
	completionCbs []CompletionCallback
	cbMu          sync.Mutex

	dispatchCh chan struct{}
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// New constructs a Supervisor. Call Start to begin the dispatcher and
// retention sweeper.
func New(cfg Config) *Supervisor {
	if cfg.MaxConcurrentTasks <= 0 {
		cfg.MaxConcurrentTasks = 5
	}
	return &Supervisor{
		cfg:        cfg,
		tasks:      map[string]*task{},
		queue:      newTaskQueue(),
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrentTasks)),
		dispatchCh: make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
	}
}

// Start launches the dispatcher loop and the retention sweeper.
func (s *Supervisor) Start() {
	s.wg.Add(2)
	go s.dispatchLoop()
	go s.retentionLoop()
}

// Shutdown stops the dispatcher and sweeper and waits for them to exit.
// Running subprocesses are not forcibly terminated.
func (s *Supervisor) Shutdown() {
	close(s.stopCh)
	s.wg.Wait()
}

// RegisterStatusCallback appends a callback invoked on every state
// transition.
func (s *Supervisor) RegisterStatusCallback(cb StatusCallback) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.statusCbs = append(s.statusCbs, cb)
}

// RegisterCompletionCallback appends a callback invoked only on transition
// to a terminal state.
func (s *Supervisor) RegisterCompletionCallback(cb CompletionCallback) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.completionCbs = append(s.completionCbs, cb)
}

func (s *Supervisor) fireCallbacks(snap TaskSnapshot) {
	s.cbMu.Lock()
	statusCbs := append([]StatusCallback(nil), s.statusCbs...)
	completionCbs := append([]CompletionCallback(nil), s.completionCbs...)
	s.cbMu.Unlock()

	invoke(func() {
		for _, cb := range statusCbs {
			cb(snap)
		}
	})
	if snap.State.IsTerminal() {
		invoke(func() {
			for _, cb := range completionCbs {
				cb(snap)
			}
		})
	}
}

// invoke runs f, catching and logging a panic so one bad callback never
// takes down the supervisor or other callbacks (spec.md §4.4).
func invoke(f func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("callback panicked")
		}
	}()
	f()
}

// Submit enqueues d, returning its task id. Submission never blocks or
// fails except on policy violation (spec.md §4.4, §5).
func (s *Supervisor) Submit(d TaskDescriptor) (string, error) {
	if err := admit(d, s.cfg.WorkspaceRoot); err != nil {
		return "", err
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	t := &task{
		descriptor: d,
		snapshot: TaskSnapshot{
			ID: id, Name: d.Name, Description: d.Description, Platform: d.Platform,
			Priority: ParsePriority(d.Priority), State: StateQueued,
			Tags: d.Tags, Metadata: d.Metadata, MaxRetries: d.MaxRetries,
			CreatedAt: now, TimeoutSeconds: effectiveTimeout(d),
		},
	}

	s.mu.Lock()
	s.tasks[id] = t
	s.order = append(s.order, id)
	s.queue.push(id, t.snapshot.Priority, now)
	s.mu.Unlock()

	logSubmission(id, d)

	s.fireCallbacks(t.snap())
	s.kick()
	return id, nil
}

// logSubmission records a task's environment/metadata at debug level with
// likely-secret values redacted first, so a leaked log never carries an
// API key or token a caller passed through TaskDescriptor.Environment.
func logSubmission(id string, d TaskDescriptor) {
	raw, err := json.Marshal(map[string]any{"environment": d.Environment, "metadata": d.Metadata})
	if err != nil {
		return
	}
	log.Debug().Str("task_id", id).RawJSON("payload", logging.RedactJSON(raw)).Msg("task submitted")
}

func (s *Supervisor) kick() {
	select {
	case s.dispatchCh <- struct{}{}:
	default:
	}
}

func (s *Supervisor) dispatchLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-s.dispatchCh:
			s.dispatchReady()
		case <-ticker.C:
			s.dispatchReady()
		}
	}
}

// dispatchReady pulls queued tasks while workers are free. When the worker
// pool is saturated it stops for this tick rather than blocking; the next
// tick or Submit's kick retries (cooperative back-pressure, spec.md §4.4).
func (s *Supervisor) dispatchReady() {
	for {
		if !s.sem.TryAcquire(1) {
			return
		}
		s.mu.Lock()
		id, ok := s.queue.pop()
		s.mu.Unlock()
		if !ok {
			s.sem.Release(1)
			return
		}
		s.mu.Lock()
		t := s.tasks[id]
		s.mu.Unlock()
		if t == nil || t.snap().State.IsTerminal() {
			s.sem.Release(1)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.sem.Release(1)
			s.run(t)
		}()
	}
}

func (s *Supervisor) run(t *task) {
	t.mu.Lock()
	if t.snapshot.State != StateQueued {
		t.mu.Unlock()
		return
	}
	t.snapshot.State = StatePreparing
	snap := t.snapshot
	t.mu.Unlock()
	s.fireCallbacks(snap)

	timeout := time.Duration(t.snap().TimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()
	defer cancel()

	result := s.runOnce(ctx, t, t.descriptor)

	t.mu.Lock()
	now := time.Now().UTC()
	t.snapshot.FinishedAt = &now
	t.snapshot.ExitCode = &result.ExitCode
	t.snapshot.Stdout = logging.TruncateForUser(result.Stdout)
	t.snapshot.Stderr = logging.TruncateForUser(result.Stderr)
	t.snapshot.Error = result.Error
	t.snapshot.State = result.State
	snap = t.snapshot
	t.mu.Unlock()
	s.fireCallbacks(snap)
}

// runOnce performs the subprocess execution mechanics shared by Submit's
// worker path and ExecuteDirect (spec.md §4.4).
func (s *Supervisor) runOnce(ctx context.Context, t *task, d TaskDescriptor) ExecutionResult {
	t.mu.Lock()
	t.snapshot.State = StateRunning
	started := time.Now().UTC()
	t.snapshot.StartedAt = &started
	snap := t.snapshot
	t.mu.Unlock()
	s.fireCallbacks(snap)

	cmd := buildCommand(ctx, d.Platform, d.Script)
	cmd.Env = buildEnv(os.Environ(), d.Environment)
	if d.WorkingDir != "" {
		if err := os.MkdirAll(d.WorkingDir, 0o755); err == nil {
			cmd.Dir = d.WorkingDir
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return ExecutionResult{Success: false, Error: fmt.Sprintf("failed to start subprocess: %v", err), State: StateFailed}
	}

	sampleCtx, stopSampling := context.WithCancel(ctx)
	defer stopSampling()
	if cmd.Process != nil {
		go sampleResources(sampleCtx, int32(cmd.Process.Pid), s.cfg.MetricsInterval, func(sample ResourceSample) {
			t.mu.Lock()
			t.metrics.Samples = append(t.metrics.Samples, sample)
			t.mu.Unlock()
		})
	}

	err := cmd.Wait()
	exitCode := 0
	if err != nil {
		exitCode = -1
		if exitErr, ok := err.(interface{ ExitCode() int }); ok {
			exitCode = exitErr.ExitCode()
		}
	}

	if ctx.Err() == context.DeadlineExceeded {
		return ExecutionResult{
			Success: false, ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String(),
			Error: "execution timed out", State: StateTimeout,
		}
	}
	if ctx.Err() == context.Canceled {
		return ExecutionResult{
			Success: false, ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String(),
			Error: "execution cancelled", State: StateCancelled,
		}
	}
	if err != nil {
		return ExecutionResult{
			Success: false, ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String(),
			Error: err.Error(), State: StateFailed,
		}
	}
	return ExecutionResult{Success: true, ExitCode: 0, Stdout: stdout.String(), Stderr: stderr.String(), State: StateCompleted}
}

// ExecuteDirect bypasses the queue for a synchronous single-shot run,
// honoring the same admission checks and timeout semantics as a queued
// task (spec.md §4.4).
func (s *Supervisor) ExecuteDirect(ctx context.Context, req ExecutionRequest) (ExecutionResult, error) {
	if err := admit(req, s.cfg.WorkspaceRoot); err != nil {
		return ExecutionResult{}, err
	}
	timeout := time.Duration(effectiveTimeout(req)) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	t := &task{descriptor: req, snapshot: TaskSnapshot{
		ID: uuid.NewString(), Name: req.Name, Platform: req.Platform,
		State: StateRunning, CreatedAt: time.Now().UTC(),
	}}
	return s.runOnce(runCtx, t, req), nil
}

// Status returns a read-only snapshot of task id.
func (s *Supervisor) Status(id string) (TaskSnapshot, bool) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return TaskSnapshot{}, false
	}
	return t.snap(), true
}

// Metrics returns the resource sampling timeline for task id.
func (s *Supervisor) Metrics(id string) (TaskMetrics, bool) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return TaskMetrics{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := TaskMetrics{Samples: append([]ResourceSample(nil), t.metrics.Samples...)}
	return out, true
}

// Running returns snapshots of every non-terminal task.
func (s *Supervisor) Running() []TaskSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []TaskSnapshot
	for _, id := range s.order {
		snap := s.tasks[id].snap()
		if !snap.State.IsTerminal() {
			out = append(out, snap)
		}
	}
	return out
}

// Cancel transitions a non-terminal task to cancelled, idempotently: a
// second call on an already-terminal task is a no-op returning false
// (spec.md §5).
func (s *Supervisor) Cancel(id string) bool {
	s.mu.Lock()
	t, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return false
	}

	t.mu.Lock()
	if t.snapshot.State.IsTerminal() {
		t.mu.Unlock()
		return false
	}
	cancel := t.cancel
	t.snapshot.State = StateCancelled
	now := time.Now().UTC()
	t.snapshot.FinishedAt = &now
	snap := t.snapshot
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.fireCallbacks(snap)
	return true
}

// Pause marks a queued task paused. True pausing of an in-flight
// subprocess is not possible portably; Pause/Resume operate only on queued
// tasks awaiting dispatch, matching what a single-process supervisor can
// actually guarantee.
func (s *Supervisor) Pause(id string) bool {
	snap, ok := s.Status(id)
	if !ok || snap.State != StateQueued {
		return false
	}
	s.mu.Lock()
	t := s.tasks[id]
	t.mu.Lock()
	t.snapshot.State = StatePaused
	snap = t.snapshot
	t.mu.Unlock()
	s.mu.Unlock()
	s.fireCallbacks(snap)
	return true
}

// Resume re-queues a paused task.
func (s *Supervisor) Resume(id string) bool {
	s.mu.Lock()
	t, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	t.mu.Lock()
	if t.snapshot.State != StatePaused {
		t.mu.Unlock()
		return false
	}
	t.snapshot.State = StateQueued
	snap := t.snapshot
	t.mu.Unlock()

	s.mu.Lock()
	s.queue.push(id, snap.Priority, snap.CreatedAt)
	s.mu.Unlock()

	s.fireCallbacks(snap)
	s.kick()
	return true
}

// History returns up to limit most-recently-submitted snapshots, optionally
// filtered to states (nil/empty means no filter).
func (s *Supervisor) History(limit int, states []State) []TaskSnapshot {
	s.mu.Lock()
	order := append([]string(nil), s.order...)
	s.mu.Unlock()

	allowed := map[State]bool{}
	for _, st := range states {
		allowed[st] = true
	}

	var out []TaskSnapshot
	for i := len(order) - 1; i >= 0; i-- {
		s.mu.Lock()
		t := s.tasks[order[i]]
		s.mu.Unlock()
		snap := t.snap()
		if len(allowed) > 0 && !allowed[snap.State] {
			continue
		}
		out = append(out, snap)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Statistics reports aggregate counters (spec.md §4.4).
func (s *Supervisor) Statistics() Statistics {
	s.mu.Lock()
	order := append([]string(nil), s.order...)
	queueSize := s.queue.len()
	s.mu.Unlock()

	stats := Statistics{ByState: map[State]int{}}
	cutoff := time.Now().Add(-24 * time.Hour)
	var totalDuration time.Duration
	var finished int

	for _, id := range order {
		s.mu.Lock()
		t := s.tasks[id]
		s.mu.Unlock()
		snap := t.snap()
		stats.TotalSubmitted++
		stats.ByState[snap.State]++
		if !snap.State.IsTerminal() {
			stats.CurrentRunning++
		}
		if snap.CreatedAt.After(cutoff) {
			stats.Rolling24h++
		}
		if snap.StartedAt != nil && snap.FinishedAt != nil {
			totalDuration += snap.FinishedAt.Sub(*snap.StartedAt)
			finished++
		}
	}
	stats.QueueSize = queueSize
	if finished > 0 {
		stats.AvgTimeSeconds = totalDuration.Seconds() / float64(finished)
	}
	return stats
}

func (s *Supervisor) retentionLoop() {
	defer s.wg.Done()
	interval := s.cfg.RetentionInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Supervisor) sweep() {
	age := s.cfg.RetentionAge
	if age <= 0 {
		age = 7 * 24 * time.Hour
	}
	cutoff := time.Now().Add(-age)

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.order[:0]
	for _, id := range s.order {
		t := s.tasks[id]
		snap := t.snap()
		if snap.State.IsTerminal() && snap.CreatedAt.Before(cutoff) {
			delete(s.tasks, id)
			log.Info().Str("task_id", id).Msg("retention swept terminal task")
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}
