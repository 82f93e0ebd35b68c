package supervisor

import (
	"fmt"
	"path/filepath"
	"strings"

	"bk25/internal/policy"
	"bk25/internal/sandbox"
)

// MaxTimeoutSeconds is the hard ceiling on a task's requested timeout
// (spec.md §4.4).
const MaxTimeoutSeconds = 3600

// DefaultTimeoutSeconds is applied when a descriptor omits TimeoutSeconds.
const DefaultTimeoutSeconds = 300

// ErrPolicyViolation wraps every admission rejection reason.
type ErrPolicyViolation struct {
	Reason string
}

func (e *ErrPolicyViolation) Error() string { return e.Reason }

// admit applies the five admission checks in spec.md §4.4, in order:
// known platform, timeout ceiling, working-directory confinement, denylist,
// and (when policy is "safe") allowlist presence.
func admit(d TaskDescriptor, workspaceRoot string) error {
	if !policy.IsKnownPlatform(d.Platform) {
		return &ErrPolicyViolation{Reason: fmt.Sprintf("unsupported platform %q", d.Platform)}
	}

	timeout := d.TimeoutSeconds
	if timeout <= 0 {
		timeout = DefaultTimeoutSeconds
	}
	if timeout > MaxTimeoutSeconds {
		return &ErrPolicyViolation{Reason: fmt.Sprintf("timeout_seconds %d exceeds maximum %d", timeout, MaxTimeoutSeconds)}
	}

	if workspaceRoot != "" && d.WorkingDir != "" {
		rel, err := filepath.Rel(workspaceRoot, d.WorkingDir)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return &ErrPolicyViolation{Reason: fmt.Sprintf("working_directory %q escapes the workspace root", d.WorkingDir)}
		}
		if _, err := sandbox.SanitizeArg(workspaceRoot, rel); err != nil {
			return &ErrPolicyViolation{Reason: fmt.Sprintf("working_directory rejected: %v", err)}
		}
	}

	if denied := policy.MatchedDenylistTokens(d.Platform, d.Script); len(denied) > 0 {
		return &ErrPolicyViolation{Reason: fmt.Sprintf("script contains denylisted token(s): %s", strings.Join(denied, ", "))}
	}

	if d.Policy == "safe" && !policy.HasAllowlistToken(d.Platform, d.Script) {
		return &ErrPolicyViolation{Reason: "safe policy requires at least one allowlisted read-only command"}
	}

	return nil
}

func effectiveTimeout(d TaskDescriptor) int {
	if d.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds
	}
	return d.TimeoutSeconds
}
