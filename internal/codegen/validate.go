package codegen

import (
	"fmt"
	"strings"

	"bk25/internal/policy"
)

var errorHandlingMarkers = map[Platform][]string{
	PowerShell:  {"try", "catch", "-erroraction"},
	AppleScript: {"try", "on error"},
	Bash:        {"set -e", "trap", "||", "if [", "2>"},
}

// Validate applies the platform's deterministic checklist to script,
// detecting at minimum: missing error-handling, dangerous command
// presence, and an empty script (spec.md §4.3).
func Validate(platform Platform, script string) ValidationResult {
	var issues []string
	trimmed := strings.TrimSpace(script)

	if trimmed == "" {
		return ValidationResult{IsValid: false, Issues: []string{"script is empty"}, Score: 0}
	}

	if !hasErrorHandling(platform, trimmed) {
		issues = append(issues, "missing error-handling construct")
	}

	if denied := policy.MatchedDenylistTokens(policy.Platform(platform), trimmed); len(denied) > 0 {
		issues = append(issues, fmt.Sprintf("contains denylisted command(s): %s", strings.Join(denied, ", ")))
	}

	score := 10 - 3*len(issues)
	if score < 0 {
		score = 0
	}
	return ValidationResult{IsValid: len(issues) == 0, Issues: issues, Score: score}
}

func hasErrorHandling(platform Platform, script string) bool {
	lower := strings.ToLower(script)
	for _, marker := range errorHandlingMarkers[platform] {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
