package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bk25/internal/policy"
)

func waitForTerminal(t *testing.T, s *Supervisor, id string, timeout time.Duration) TaskSnapshot {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		snap, ok := s.Status(id)
		require.True(t, ok)
		if snap.State.IsTerminal() {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s did not reach a terminal state in time", id)
	return TaskSnapshot{}
}

func TestAdmission_RejectsUnknownPlatform(t *testing.T) {
	_, err := New(DefaultConfig()).Submit(TaskDescriptor{Platform: policy.Platform("cobol"), Script: "x"})
	assert.Error(t, err)
}

func TestAdmission_RejectsDenylistedCommand(t *testing.T) {
	_, err := New(DefaultConfig()).Submit(TaskDescriptor{Platform: policy.Bash, Script: "rm -rf /"})
	assert.Error(t, err)
}

func TestAdmission_RejectsTimeoutOverMax(t *testing.T) {
	_, err := New(DefaultConfig()).Submit(TaskDescriptor{Platform: policy.Bash, Script: "echo hi", TimeoutSeconds: 999999})
	assert.Error(t, err)
}

func TestAdmission_SafePolicyRequiresAllowlistToken(t *testing.T) {
	_, err := New(DefaultConfig()).Submit(TaskDescriptor{Platform: policy.Bash, Script: "echo hi", Policy: "safe"})
	assert.Error(t, err)

	_, err = New(DefaultConfig()).Submit(TaskDescriptor{Platform: policy.Bash, Script: "ps aux", Policy: "safe"})
	assert.NoError(t, err)
}

func TestAdmission_RejectsWorkingDirOutsideWorkspaceRoot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkspaceRoot = t.TempDir()
	_, err := New(cfg).Submit(TaskDescriptor{Platform: policy.Bash, Script: "echo hi", WorkingDir: "/etc"})
	assert.Error(t, err)
}

func TestSubmitAndRun_Completes(t *testing.T) {
	s := New(DefaultConfig())
	s.Start()
	defer s.Shutdown()

	id, err := s.Submit(TaskDescriptor{Platform: policy.Bash, Script: "echo hello-bk25"})
	require.NoError(t, err)

	snap := waitForTerminal(t, s, id, 5*time.Second)
	assert.Equal(t, StateCompleted, snap.State)
	assert.Contains(t, snap.Stdout, "hello-bk25")
}

func TestSubmit_NonZeroExitIsFailed(t *testing.T) {
	s := New(DefaultConfig())
	s.Start()
	defer s.Shutdown()

	id, err := s.Submit(TaskDescriptor{Platform: policy.Bash, Script: "echo oops; exit 3"})
	require.NoError(t, err)

	snap := waitForTerminal(t, s, id, 5*time.Second)
	assert.Equal(t, StateFailed, snap.State)
}

func TestCancel_Idempotent(t *testing.T) {
	s := New(DefaultConfig())
	s.Start()
	defer s.Shutdown()

	id, err := s.Submit(TaskDescriptor{Platform: policy.Bash, Script: "sleep 5"})
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	first := s.Cancel(id)
	second := s.Cancel(id)
	assert.True(t, first)
	assert.False(t, second, "cancel on an already-terminal task must be a no-op")

	snap := waitForTerminal(t, s, id, 5*time.Second)
	assert.Equal(t, StateCancelled, snap.State)
}

func TestSubmit_TimeoutTerminatesThenKillsAfterGrace(t *testing.T) {
	s := New(DefaultConfig())
	s.Start()
	defer s.Shutdown()

	id, err := s.Submit(TaskDescriptor{
		Platform: policy.Bash, TimeoutSeconds: 1,
		Script: "trap '' 15; sleep 30",
	})
	require.NoError(t, err)

	start := time.Now()
	snap := waitForTerminal(t, s, id, 10*time.Second)
	elapsed := time.Since(start)

	assert.Equal(t, StateTimeout, snap.State)
	assert.GreaterOrEqual(t, elapsed, terminationGrace, "process trapping SIGTERM must still be force-killed after the grace period")
}

func TestExecuteDirect_BypassesQueueAndRunsSynchronously(t *testing.T) {
	s := New(DefaultConfig())
	result, err := s.ExecuteDirect(context.Background(), ExecutionRequest{Platform: policy.Bash, Script: "echo direct"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Stdout, "direct")
}

func TestPriorityQueue_HigherPriorityDispatchedFirst(t *testing.T) {
	q := newTaskQueue()
	now := time.Now()
	q.push("low", PriorityLow, now)
	q.push("critical", PriorityCritical, now.Add(time.Millisecond))
	q.push("normal", PriorityNormal, now.Add(2*time.Millisecond))

	first, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, "critical", first)
}

func TestPriorityQueue_FIFOAmongEqualPriority(t *testing.T) {
	q := newTaskQueue()
	now := time.Now()
	q.push("a", PriorityNormal, now)
	q.push("b", PriorityNormal, now.Add(time.Millisecond))

	first, _ := q.pop()
	second, _ := q.pop()
	assert.Equal(t, "a", first)
	assert.Equal(t, "b", second)
}

func TestStatistics_ReportsQueueSizeAndTotals(t *testing.T) {
	s := New(DefaultConfig())
	s.Start()
	defer s.Shutdown()

	_, err := s.Submit(TaskDescriptor{Platform: policy.Bash, Script: "echo one"})
	require.NoError(t, err)
	stats := s.Statistics()
	assert.GreaterOrEqual(t, stats.TotalSubmitted, 1)
}

func TestCallbacks_FireOnTransitions(t *testing.T) {
	s := New(DefaultConfig())
	s.Start()
	defer s.Shutdown()

	var statusCount, completionCount int
	s.RegisterStatusCallback(func(TaskSnapshot) { statusCount++ })
	s.RegisterCompletionCallback(func(TaskSnapshot) { completionCount++ })

	id, err := s.Submit(TaskDescriptor{Platform: policy.Bash, Script: "echo cb"})
	require.NoError(t, err)
	waitForTerminal(t, s, id, 5*time.Second)

	assert.Greater(t, statusCount, 0)
	assert.Equal(t, 1, completionCount)
}
