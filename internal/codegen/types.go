// Package codegen implements the Code Generator (C6) and embeds the Prompt
// Composer (C4): platform resolution, prompt construction, LLM-first
// generation with deterministic template fallback, output parsing, and
// static validation.
package codegen

// Request is a GenerationRequest (spec.md §4.3).
type Request struct {
	Description string
	Platform    Platform
	Options     map[string]any
	PersonaID   string
	ChannelID   string
}

// GenerationMethod records which pipeline stage produced the script.
type GenerationMethod string

const (
	MethodLLM           GenerationMethod = "llm"
	MethodTemplate      GenerationMethod = "template"
	MethodBasicSkeleton GenerationMethod = "basic_skeleton"
)

// Metadata is the GenerationResult.metadata record.
type Metadata struct {
	GenerationMethod GenerationMethod `json:"generation_method"`
	Platform         Platform         `json:"platform"`
	TemplateName     string           `json:"template_name,omitempty"`
	MatchScore       float64          `json:"match_score,omitempty"`
	Provider         string           `json:"provider,omitempty"`
	Model            string           `json:"model,omitempty"`
	TokenUsage       int              `json:"token_usage,omitempty"`
}

// ValidationResult is the static validator's structured output.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Issues  []string `json:"issues"`
	Score   int      `json:"score"`
}

// Result is a GenerationResult (spec.md §4.3).
type Result struct {
	Success       bool              `json:"success"`
	Script        string            `json:"script,omitempty"`
	Filename      string            `json:"filename,omitempty"`
	Documentation string            `json:"documentation,omitempty"`
	Validation    *ValidationResult `json:"validation,omitempty"`
	Error         string            `json:"error,omitempty"`
	Metadata      Metadata          `json:"metadata"`
}

// Suggestion is one entry of Generator.Suggestions' result.
type Suggestion struct {
	Pattern             string     `json:"pattern"`
	Platforms           []Platform `json:"platforms"`
	RecommendedPlatform Platform   `json:"recommended_platform"`
}
