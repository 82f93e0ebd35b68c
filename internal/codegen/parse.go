package codegen

import (
	"regexp"
	"strings"
)

var fencedBlockPattern = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*\\n(.*?)```")

// StripMarkdownFencing removes a single leading/trailing fenced code block
// an LLM may have wrapped its output in, returning the inner content
// unchanged otherwise.
func StripMarkdownFencing(text string) string {
	trimmed := strings.TrimSpace(text)
	if m := fencedBlockPattern.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

var (
	psFunctionPattern   = regexp.MustCompile(`(?i)function\s+([A-Za-z0-9_-]+)`)
	bashFunctionPattern = regexp.MustCompile(`(?i)^\s*(?:function\s+)?([A-Za-z_][A-Za-z0-9_]*)\s*\(\)\s*\{`)
)

// InferFilename derives a filename for script on platform, from the first
// meaningful declaration when present, else a slug of the description's
// first line (spec.md §4.3).
func InferFilename(script, description string, platform Platform) string {
	name := ""
	switch platform {
	case PowerShell:
		if m := psFunctionPattern.FindStringSubmatch(script); m != nil {
			name = m[1]
		}
	case Bash:
		for _, line := range strings.Split(script, "\n") {
			if m := bashFunctionPattern.FindStringSubmatch(line); m != nil {
				name = m[1]
				break
			}
		}
	}
	if name == "" {
		name = slugify(firstLine(description))
	}
	return name + platform.Extension()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var nonSlugRun = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	slug := strings.Trim(nonSlugRun.ReplaceAllString(lower, "_"), "_")
	if slug == "" {
		return "script"
	}
	if len(slug) > 48 {
		slug = slug[:48]
	}
	return slug
}

var trailingCommentPattern = regexp.MustCompile(`(?m)(?:^#.*$\n?)+\z|(?:^//.*$\n?)+\z`)

// ExtractDocumentation pulls a trailing block of comment lines off script,
// if present, for display as separate documentation.
func ExtractDocumentation(script string) string {
	m := trailingCommentPattern.FindString(script)
	return strings.TrimSpace(m)
}
