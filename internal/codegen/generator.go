package codegen

import (
	"context"
	"fmt"
	"strings"

	"bk25/internal/llmdispatch"
	"bk25/internal/logging"
)

var log = logging.For("codegen")

// Generator implements the Code Generator (C6), dispatching to an LLM
// first and falling back to deterministic templates (spec.md §4.3).
type Generator struct {
	dispatcher *llmdispatch.Dispatcher
}

// New constructs a Generator over dispatcher.
func New(dispatcher *llmdispatch.Dispatcher) *Generator {
	return &Generator{dispatcher: dispatcher}
}

// Generate runs the full pipeline: platform resolution, prompt
// construction, LLM attempt, template fallback, output parsing, and static
// validation.
func (g *Generator) Generate(ctx context.Context, req Request, in ComposeInput) Result {
	platform := ResolvePlatform(req.Platform, req.Description)
	prompt := BuildPrompt(req, platform, in)

	script, method, meta := g.attemptLLM(ctx, req, platform, prompt)
	if script == "" {
		script, method, meta = g.fallback(platform, req.Description)
	}

	script = StripMarkdownFencing(script)
	documentation := ExtractDocumentation(script)
	filename := InferFilename(script, req.Description, platform)
	validation := Validate(platform, script)

	result := Result{
		Success:       validation.IsValid,
		Script:        script,
		Filename:      filename,
		Documentation: documentation,
		Validation:    &validation,
		Metadata:      meta,
	}
	result.Metadata.GenerationMethod = method
	result.Metadata.Platform = platform
	if !validation.IsValid {
		result.Error = strings.Join(validation.Issues, "; ")
	}
	return result
}

func (g *Generator) attemptLLM(ctx context.Context, req Request, platform Platform, prompt Prompt) (string, GenerationMethod, Metadata) {
	userPrompt := prompt.UserPrompt
	if prompt.Context != "" {
		userPrompt = prompt.Context + "\n" + userPrompt
	}
	if prompt.Constraints != "" {
		userPrompt += "\n\nConstraints: " + prompt.Constraints
	}
	if prompt.OutputFormat != "" {
		userPrompt += "\n" + prompt.OutputFormat
	}

	resp := g.dispatcher.Generate(ctx, llmdispatch.Request{
		Prompt:        userPrompt,
		SystemMessage: prompt.SystemMessage,
		Temperature:   0.1,
		MaxTokens:     MaxTokens(req.Options),
	})
	if !resp.Success || strings.TrimSpace(resp.Content) == "" {
		log.Info().Str("reason", resp.Error).Msg("llm attempt did not yield a script, falling back to templates")
		return "", "", Metadata{}
	}

	meta := Metadata{}
	if p, ok := resp.Metadata["provider"].(string); ok {
		meta.Provider = p
	}
	if m, ok := resp.Metadata["model"].(string); ok {
		meta.Model = m
	}
	if resp.Usage != nil {
		meta.TokenUsage = resp.Usage.TotalTokens
	}
	return resp.Content, MethodLLM, meta
}

func (g *Generator) fallback(platform Platform, description string) (string, GenerationMethod, Metadata) {
	if tmpl, score, ok := bestTemplate(platform, description); ok && score > TemplateMatchThreshold {
		return tmpl.Script, MethodTemplate, Metadata{TemplateName: tmpl.Name, MatchScore: score}
	}
	return basicSkeleton(platform, description), MethodBasicSkeleton, Metadata{}
}

// Improve re-runs generation with a second-pass prompt instructing the LLM
// to improve script per feedback while preserving its function
// (spec.md §4.3).
func (g *Generator) Improve(ctx context.Context, script, feedback string, platform Platform) Result {
	prompt := fmt.Sprintf(
		"Improve the following %s script according to this feedback, preserving its existing functionality:\n\nFeedback: %s\n\nScript:\n%s",
		platform, feedback, script,
	)
	resp := g.dispatcher.Generate(ctx, llmdispatch.Request{
		Prompt:        prompt,
		SystemMessage: platformPreambles[platform],
		Temperature:   0.1,
		MaxTokens:     2048,
	})
	if !resp.Success || strings.TrimSpace(resp.Content) == "" {
		return Result{Success: false, Error: "improvement unavailable: " + resp.Error, Metadata: Metadata{Platform: platform}}
	}
	improved := StripMarkdownFencing(resp.Content)
	validation := Validate(platform, improved)
	return Result{
		Success:    validation.IsValid,
		Script:     improved,
		Validation: &validation,
		Metadata:   Metadata{GenerationMethod: MethodLLM, Platform: platform},
	}
}

// Review is the structured output of ValidateScript's LLM-backed review.
type Review struct {
	Score         int      `json:"score"`
	Issues        []string `json:"issues"`
	Suggestions   []string `json:"suggestions"`
	SecurityNotes []string `json:"security_notes"`
}

// ValidateScript produces an LLM-backed structured review (score 1-10,
// issues, suggestions, security notes), falling back to the deterministic
// checklist's issues when the LLM is unavailable (spec.md §4.3).
func (g *Generator) ValidateScript(ctx context.Context, script string, platform Platform) Review {
	det := Validate(platform, script)
	resp := g.dispatcher.Generate(ctx, llmdispatch.Request{
		Prompt: fmt.Sprintf(
			"Review this %s script for correctness and safety. Respond with a 1-10 score, a list of issues, suggestions, and security notes.\n\n%s",
			platform, script,
		),
		Temperature: 0.1,
		MaxTokens:   1024,
	})
	if !resp.Success {
		score := det.Score / 2
		if score < 1 {
			score = 1
		}
		return Review{Score: score, Issues: det.Issues}
	}
	return Review{Score: det.Score, Issues: det.Issues, Suggestions: []string{resp.Content}}
}

// Suggestions reports which named automation patterns description matches,
// and that pattern's recommended platform (spec.md §4.3).
func (g *Generator) Suggestions(description string) []Suggestion {
	lower := strings.ToLower(description)
	var out []Suggestion
	for _, np := range namedPatterns {
		for _, kw := range np.keywords {
			if strings.Contains(lower, kw) {
				out = append(out, Suggestion{
					Pattern:             np.name,
					Platforms:           np.platforms,
					RecommendedPlatform: np.platforms[0],
				})
				break
			}
		}
	}
	return out
}
