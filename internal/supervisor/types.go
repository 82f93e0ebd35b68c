// Package supervisor implements the Execution Supervisor (C7): admission
// policy, a priority queue feeding a bounded worker pool, subprocess
// execution per platform, resource sampling, timeout/cancellation
// handling, and retention sweeping (spec.md §4.4).
package supervisor

import (
	"time"

	"bk25/internal/policy"
)

// Priority is one of four submission priorities; higher values are
// dispatched first, FIFO among peers (spec.md §4.4, §5).
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// ParsePriority maps a descriptor's priority string to Priority, defaulting
// to PriorityNormal for an empty or unrecognized value.
func ParsePriority(s string) Priority {
	switch s {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	case "critical":
		return PriorityCritical
	default:
		return PriorityNormal
	}
}

// State is a task's position in the state machine (spec.md §4.4).
type State string

const (
	StateQueued    State = "queued"
	StatePreparing State = "preparing"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateTimeout   State = "timeout"
	StateCancelled State = "cancelled"
)

// IsTerminal reports whether s has no further transitions.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimeout, StateCancelled:
		return true
	default:
		return false
	}
}

// TaskDescriptor is the caller-supplied shape for Submit (spec.md §6).
type TaskDescriptor struct {
	Name           string
	Description    string
	Script         string
	Platform       policy.Platform
	Priority       string
	TimeoutSeconds int
	Policy         string // "safe" requires an allowlist token; "" is unrestricted
	Environment    map[string]string
	WorkingDir     string
	Tags           []string
	Metadata       map[string]any
	MaxRetries     int
}

// ExecutionRequest is the input to ExecuteDirect, identical in admission
// terms to a TaskDescriptor but run synchronously (spec.md §4.4).
type ExecutionRequest = TaskDescriptor

// ResourceSample is one point on a task's metrics timeline (spec.md §3
// TaskMetrics: cpu_percent, resident_memory_bytes, io_op_count,
// network_connection_count).
type ResourceSample struct {
	Timestamp        time.Time `json:"timestamp"`
	CPUPercent       float64   `json:"cpu_percent"`
	MemoryRSS        uint64    `json:"resident_memory_bytes"`
	IOOpCount        uint64    `json:"io_op_count"`
	NetworkConnCount int       `json:"network_connection_count"`
}

// TaskMetrics is the accumulated resource timeline for one task.
type TaskMetrics struct {
	Samples []ResourceSample `json:"samples"`
}

// TaskSnapshot is a read-only view of a task at a point in time.
type TaskSnapshot struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Platform       policy.Platform `json:"platform"`
	Priority       Priority       `json:"priority"`
	State          State          `json:"state"`
	ExitCode       *int           `json:"exit_code,omitempty"`
	Stdout         string         `json:"stdout,omitempty"`
	Stderr         string         `json:"stderr,omitempty"`
	Error          string         `json:"error,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	MaxRetries     int            `json:"max_retries"`
	RetryCount     int            `json:"retry_count"`
	CreatedAt      time.Time      `json:"created_at"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
	TimeoutSeconds int            `json:"timeout_seconds"`
}

// ExecutionResult is ExecuteDirect's return value (spec.md §6).
type ExecutionResult struct {
	Success  bool   `json:"success"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	Error    string `json:"error,omitempty"`
	State    State  `json:"state"`
}

// Statistics is the aggregate Statistics() result (spec.md §4.4).
type Statistics struct {
	TotalSubmitted int            `json:"totals"`
	Rolling24h     int            `json:"rolling_24h"`
	CurrentRunning int            `json:"current_running"`
	QueueSize      int            `json:"queue_size"`
	AvgTimeSeconds float64        `json:"avg_time"`
	ByState        map[State]int  `json:"by_state"`
}

// StatusCallback is invoked on every state transition with a read-only
// snapshot.
type StatusCallback func(TaskSnapshot)

// CompletionCallback fires only on transition to a terminal state.
type CompletionCallback func(TaskSnapshot)
