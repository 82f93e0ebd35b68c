package codegen

import (
	"fmt"
	"sort"
	"strings"
)

// Prompt is the record the Prompt Composer (C4) produces (spec.md §4.3):
// SystemMessage feeds the LLM system role; Context, UserPrompt, Constraints
// and OutputFormat are concatenated into the user turn. BuildPrompt leaves
// Examples empty.
type Prompt struct {
	SystemMessage string
	UserPrompt    string
	Context       string
	Examples      string
	Constraints   string
	OutputFormat  string
}

var platformPreambles = map[Platform]string{
	PowerShell:  "You are an expert Windows systems administrator who writes clean, idiomatic PowerShell automation scripts.",
	AppleScript: "You are an expert macOS automation engineer who writes reliable AppleScript scripts using Finder, System Events, and application scripting.",
	Bash:        "You are an expert Linux/Unix systems administrator who writes portable, defensive Bash scripts.",
}

var platformConstraints = map[Platform]string{
	PowerShell:  "Validate parameters with [CmdletBinding()] and [Parameter()] attributes; wrap risky operations in try/catch; report progress with Write-Host; prefer approved verbs and built-in cmdlets over external tools.",
	AppleScript: "Use 'try ... on error' blocks around operations that can fail; prefer 'tell application' blocks scoped narrowly; avoid destructive Finder operations without confirmation.",
	Bash:        "Start with 'set -euo pipefail'; check command exit codes; quote variable expansions; avoid destructive commands without an explicit guard.",
}

// RecentMessage is the minimal shape the composer needs from conversation
// history, decoupled from internal/conversation to keep codegen
// standalone-testable.
type RecentMessage struct {
	Role    string
	Content string
}

// ComposeInput is everything BuildPrompt needs beyond the request itself.
type ComposeInput struct {
	PersonaLine string
	ChannelLine string
	Recent      []RecentMessage
}

// BuildPrompt constructs the Prompt for req, resolved to platform, per
// spec.md §4.3: the system message is the platform preamble augmented with
// persona/channel/preference lines, and up to three recent messages go into
// Context rather than the system message.
func BuildPrompt(req Request, platform Platform, in ComposeInput) Prompt {
	var sys strings.Builder
	sys.WriteString(platformPreambles[platform])
	if in.PersonaLine != "" {
		sys.WriteString("\n")
		sys.WriteString(in.PersonaLine)
	}
	if in.ChannelLine != "" {
		sys.WriteString("\n")
		sys.WriteString(in.ChannelLine)
	}
	if pref := preferenceLine(req.Options); pref != "" {
		sys.WriteString("\n")
		sys.WriteString(pref)
	}

	var ctx strings.Builder
	if len(in.Recent) > 0 {
		ctx.WriteString("Recent conversation:\n")
		n := len(in.Recent)
		if n > 3 {
			n = 3
		}
		for _, m := range in.Recent[len(in.Recent)-n:] {
			fmt.Fprintf(&ctx, "%s: %s\n", m.Role, m.Content)
		}
	}

	return Prompt{
		SystemMessage: sys.String(),
		UserPrompt:    req.Description,
		Context:       ctx.String(),
		Constraints:   platformConstraints[platform],
		OutputFormat:  "Emit only the executable script, no markdown fencing, no explanatory prose.",
	}
}

// preferenceLine derives a short style preference line from recognized
// options (spec.md §4.3).
func preferenceLine(options map[string]any) string {
	if options == nil {
		return ""
	}
	var prefs []string
	add := func(key, text string) {
		if truthy(options[key]) {
			prefs = append(prefs, text)
		}
	}
	add("include_tests", "include validation checks")
	add("include_documentation", "include inline comments")
	add("include_logging", "include log statements")
	add("include_error_handling", "include robust error handling")
	add("include_parameter_validation", "validate all parameters")
	add("include_help", "include a usage banner")
	add("include_examples", "include example usage in comments")
	add("verbose", "be verbose and explanatory")
	add("minimal", "keep the script minimal")
	add("enterprise", "follow enterprise coding conventions")
	if len(prefs) == 0 {
		return ""
	}
	sort.Strings(prefs)
	return "Preferences: " + strings.Join(prefs, "; ") + "."
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

// MaxTokens derives the LLM token budget hint from options (default 2048).
func MaxTokens(options map[string]any) int {
	if options == nil {
		return 2048
	}
	if v, ok := options["max_tokens"].(int); ok && v > 0 {
		return v
	}
	if v, ok := options["max_tokens"].(float64); ok && v > 0 {
		return int(v)
	}
	return 2048
}
