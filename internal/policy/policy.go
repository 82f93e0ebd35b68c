// Package policy holds the per-platform safety tables (denylist,
// allowlist) shared by the Code Generator's static validator and the
// Execution Supervisor's admission check (spec.md §4.3, §4.4), so the two
// components can never drift apart on what counts as dangerous.
package policy

import "strings"

// Platform mirrors codegen.Platform's three concrete values; duplicated
// here (rather than imported) to keep policy dependency-free of codegen,
// which itself depends on policy.
type Platform string

const (
	PowerShell  Platform = "powershell"
	AppleScript Platform = "applescript"
	Bash        Platform = "bash"
)

// Denylist is the set of tokens whose presence in a script rejects it
// outright (case-insensitive substring match), per spec.md §4.4.
var Denylist = map[Platform][]string{
	PowerShell:  {"Remove-Item", "Delete", "Format-Volume", "Clear-Content", "Stop-Process", "Restart-Computer", "Shutdown-Computer"},
	AppleScript: {"delete", "move", "duplicate", "eject", "restart", "shut down"},
	Bash:        {"rm", "rmdir", "del", "format", "mkfs", "dd", "shutdown", "reboot", "halt", "poweroff"},
}

// Allowlist is the set of read-only tokens a script must contain at least
// one of when the caller requests the "safe" policy, per spec.md §4.4.
var Allowlist = map[Platform][]string{
	PowerShell: {"Get-Process", "Get-Service", "Get-ComputerInfo", "Get-Date", "Get-Location", "Get-ChildItem", "Get-Content", "Measure-Object", "Select-Object", "Where-Object", "Sort-Object", "Format-Table"},
	Bash:       {"ls", "pwd", "date", "whoami", "uname", "ps", "df", "du", "cat", "head", "tail", "grep", "wc", "sort", "uniq"},
	AppleScript: {"get", "exists", "name of", "count", "properties of", "display dialog", "display notification"},
}

// MatchedDenylistTokens returns every denylist token for platform found in
// script (case-insensitive substring match).
func MatchedDenylistTokens(platform Platform, script string) []string {
	return matchTokens(Denylist[platform], script)
}

// HasAllowlistToken reports whether script contains at least one of
// platform's allowlist tokens.
func HasAllowlistToken(platform Platform, script string) bool {
	return len(matchTokens(Allowlist[platform], script)) > 0
}

func matchTokens(tokens []string, script string) []string {
	lower := strings.ToLower(script)
	var matched []string
	for _, tok := range tokens {
		if strings.Contains(lower, strings.ToLower(tok)) {
			matched = append(matched, tok)
		}
	}
	return matched
}

// KnownPlatforms lists the three platforms admission checks recognize.
var KnownPlatforms = []Platform{PowerShell, AppleScript, Bash}

// IsKnownPlatform reports whether p is one of the three known shells.
func IsKnownPlatform(p Platform) bool {
	for _, known := range KnownPlatforms {
		if known == p {
			return true
		}
	}
	return false
}
