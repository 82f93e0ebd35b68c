package core

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"bk25/internal/artifact"
	"bk25/internal/channel"
	"bk25/internal/codegen"
	"bk25/internal/conversation"
	"bk25/internal/llmdispatch"
	"bk25/internal/logging"
	"bk25/internal/persona"
	"bk25/internal/policy"
	"bk25/internal/supervisor"
	"bk25/internal/util"
)

var log = logging.For("core")

// tracer instruments the two operations most worth following across a
// distributed deployment (chat turns and script execution); it is the
// global no-op tracer until a transport wires a real otel SDK provider.
var tracer = otel.Tracer("bk25/internal/core")

// Core is the facade wiring every component together.
type Core struct {
	Personas      *persona.Registry
	Channels      *channel.Registry
	Conversations *conversation.Store
	LLM           *llmdispatch.Dispatcher
	Codegen       *codegen.Generator
	Supervisor    *supervisor.Supervisor
}

// New wires an already-constructed set of components into a Core. Callers
// assemble dependencies (config, providers) and pass them in; Core does not
// read configuration itself.
func New(personas *persona.Registry, channels *channel.Registry, conversations *conversation.Store,
	llm *llmdispatch.Dispatcher, gen *codegen.Generator, sup *supervisor.Supervisor) *Core {
	return &Core{
		Personas: personas, Channels: channels, Conversations: conversations,
		LLM: llm, Codegen: gen, Supervisor: sup,
	}
}

// Start begins the Execution Supervisor's dispatcher and sweeper.
func (c *Core) Start() { c.Supervisor.Start() }

// Shutdown stops the Execution Supervisor.
func (c *Core) Shutdown() { c.Supervisor.Shutdown() }

// ListPersonas returns every persona, or only those eligible for channelID
// when non-empty.
func (c *Core) ListPersonas(channelID string) []persona.Persona {
	if channelID == "" {
		return c.Personas.List()
	}
	return c.Personas.ListForChannel(channelID)
}

// CurrentPersona returns the current persona, or (zero, false).
func (c *Core) CurrentPersona() (persona.Persona, bool) {
	return c.Personas.Current()
}

// SwitchPersona switches the current persona.
func (c *Core) SwitchPersona(id string) (persona.Persona, error) {
	p, ok := c.Personas.Switch(id)
	if !ok {
		return persona.Persona{}, newError(ErrNotFound, "persona %q not found", id)
	}
	return p, nil
}

// CreatePersona installs a runtime-defined persona.
func (c *Core) CreatePersona(p persona.Persona) (persona.Persona, error) {
	created, err := c.Personas.AddCustom(p)
	if err != nil {
		if err == persona.ErrDuplicateID {
			return persona.Persona{}, newError(ErrInvalidInput, "persona id %q already exists", p.ID)
		}
		return persona.Persona{}, newError(ErrInvalidInput, "%v", err)
	}
	return created, nil
}

// ReloadPersonas re-reads the persona descriptor directory, preserving the
// current persona id when it still exists after reload.
func (c *Core) ReloadPersonas() error {
	if err := c.Personas.Reload(); err != nil {
		return newError(ErrInternal, "%v", err)
	}
	return nil
}

// ListChannels returns the fixed channel catalog.
func (c *Core) ListChannels() []channel.Channel {
	return c.Channels.List()
}

// SwitchChannelResult is switch_channel's success shape (spec.md §6).
type SwitchChannelResult struct {
	Channel       channel.Channel `json:"channel"`
	ArtifactKinds []string        `json:"artifact_kinds"`
	Capabilities  []string        `json:"capabilities"`
}

// SwitchChannel switches the current channel.
func (c *Core) SwitchChannel(id string) (SwitchChannelResult, error) {
	ch, ok := c.Channels.Switch(id)
	if !ok {
		return SwitchChannelResult{}, newError(ErrNotFound, "channel %q not found", id)
	}
	return SwitchChannelResult{Channel: ch, ArtifactKinds: ch.ArtifactKinds, Capabilities: ch.Capabilities}, nil
}

// GenerateArtifact runs a channel's artifact generator.
func (c *Core) GenerateArtifact(channelID, kind, description string, opts artifact.Options) (artifact.Envelope, error) {
	ch, ok := c.Channels.Get(channelID)
	if !ok {
		return artifact.Envelope{}, newError(ErrNotFound, "channel %q not found", channelID)
	}
	env, err := artifact.Generate(ch, kind, description, opts)
	if err != nil {
		return artifact.Envelope{}, newError(ErrInvalidInput, "%v", err)
	}
	return env, nil
}

// ExtractedCode is chat's fenced-code extraction result (spec.md §6).
type ExtractedCode struct {
	Language string `json:"language"`
	Code     string `json:"code"`
	Filename string `json:"filename"`
}

// ChatResult is chat's success shape.
type ChatResult struct {
	Response       string          `json:"response"`
	PersonaInfo    persona.Persona `json:"persona_info"`
	ChannelInfo    channel.Channel `json:"channel_info"`
	ConversationID string          `json:"conversation_id"`
	Timestamp      time.Time       `json:"timestamp"`
	ExtractedCode  *ExtractedCode  `json:"extracted_code,omitempty"`
}

// Chat appends message to the conversation, composes a prompt from the
// resolved persona, dispatches to the LLM, and extracts the first fenced
// code block from the response (spec.md §6).
func (c *Core) Chat(ctx context.Context, message, convID, personaID, channelID string) (ChatResult, error) {
	ctx, span := tracer.Start(ctx, "core.Chat")
	defer span.End()

	if strings.TrimSpace(message) == "" {
		return ChatResult{}, newError(ErrInvalidInput, "message must not be empty")
	}

	if personaID != "" {
		if _, ok := c.Personas.Get(personaID); !ok {
			return ChatResult{}, newError(ErrNotFound, "persona %q not found", personaID)
		}
		c.Personas.Switch(personaID)
	}
	if channelID != "" {
		if _, ok := c.Channels.Get(channelID); !ok {
			return ChatResult{}, newError(ErrNotFound, "channel %q not found", channelID)
		}
		c.Channels.Switch(channelID)
	}

	p, _ := c.Personas.Current()
	ch := c.Channels.Current()

	conv := c.Conversations.Create(convID, p.ID, ch.ID)
	hist, _ := c.Conversations.History(conv.ID, 0)
	_ = c.Conversations.Append(conv.ID, "user", message, nil)

	var historyMsgs []persona.HistoryMessage
	for _, m := range hist {
		historyMsgs = append(historyMsgs, m.ToHistoryMessage())
	}
	prompt := c.Personas.BuildPrompt(message, historyMsgs)

	promptTokens := util.CountTokens(prompt)
	logging.WithTrace(ctx, log).Debug().Int("prompt_tokens", promptTokens).Str("conversation_id", conv.ID).Msg("chat: dispatching prompt")

	resp := c.LLM.Generate(ctx, llmdispatch.Request{Prompt: prompt, Temperature: 0.7, MaxTokens: 1024})
	if !resp.Success {
		log.Warn().Str("reason", resp.Error).Msg("chat: llm unavailable")
		return ChatResult{}, newError(ErrLLMUnavailable, "%s", resp.Error)
	}

	text, extracted := extractFirstCodeBlock(resp.Content)
	_ = c.Conversations.Append(conv.ID, "assistant", text, nil)

	result := ChatResult{
		Response: text, PersonaInfo: p, ChannelInfo: ch,
		ConversationID: conv.ID, Timestamp: time.Now().UTC(),
	}
	if extracted != nil {
		result.ExtractedCode = extracted
	}
	return result, nil
}

var fencedBlockWithLangPattern = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)\\n(.*?)```")

// extractFirstCodeBlock removes the first fenced code block from text,
// returning the visible text (with a placeholder notice substituted in)
// and the extracted code, if any (spec.md §6).
func extractFirstCodeBlock(text string) (string, *ExtractedCode) {
	loc := fencedBlockWithLangPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return text, nil
	}
	lang := text[loc[2]:loc[3]]
	if strings.TrimSpace(lang) == "" {
		lang = "script"
	}
	code := strings.TrimSpace(text[loc[4]:loc[5]])
	filename := "Generated " + capitalize(lang) + " Script"

	visible := text[:loc[0]] + "[generated script below]" + text[loc[1]:]
	return strings.TrimSpace(visible), &ExtractedCode{Language: lang, Code: code, Filename: filename}
}

// capitalize upper-cases the first rune only, matching the Python original's
// language.capitalize() used to build chat's "Generated {Language} Script"
// filename (distinct from codegen.InferFilename's slug convention).
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// GenerateScript runs the Code Generator pipeline.
func (c *Core) GenerateScript(ctx context.Context, description string, platform codegen.Platform, options map[string]any) (codegen.Result, error) {
	p, _ := c.Personas.Current()
	ch := c.Channels.Current()
	in := codegen.ComposeInput{}
	if p.ID != "" {
		in.PersonaLine = "Persona: " + p.Name + ". " + p.SystemPrompt
	}
	if ch.ID != "" && ch.ID != "web" {
		in.ChannelLine = "Target channel: " + ch.Name
	}
	result := c.Codegen.Generate(ctx, codegen.Request{Description: description, Platform: platform, Options: options}, in)
	return result, nil
}

// Platforms reports the three known platforms and their template names.
func (c *Core) Platforms() map[policy.Platform][]string {
	// template listing is intentionally minimal; a transport wanting full
	// template bodies should call Suggestions or GenerateScript instead.
	return map[policy.Platform][]string{
		policy.PowerShell:  {"disk_space_report", "service_restart"},
		policy.AppleScript: {"finder_cleanup"},
		policy.Bash:        {"system_health_check", "backup_directory"},
	}
}

// Suggestions reports named automation patterns matching description.
func (c *Core) Suggestions(description string) []codegen.Suggestion {
	return c.Codegen.Suggestions(description)
}

// LLMStatus reports per-provider availability.
func (c *Core) LLMStatus(ctx context.Context) map[string]bool {
	return c.LLM.Probe(ctx)
}

// Execute runs an ExecutionRequest synchronously via the supervisor.
func (c *Core) Execute(ctx context.Context, req supervisor.ExecutionRequest) (supervisor.ExecutionResult, error) {
	ctx, span := tracer.Start(ctx, "core.Execute")
	defer span.End()

	result, err := c.Supervisor.ExecuteDirect(ctx, req)
	if err != nil {
		if _, ok := err.(*supervisor.ErrPolicyViolation); ok {
			return supervisor.ExecutionResult{}, newError(ErrPolicyViolation, "%v", err)
		}
		return supervisor.ExecutionResult{}, newError(ErrExecutionError, "%v", err)
	}
	return result, nil
}

// SubmitTask enqueues a TaskDescriptor for asynchronous execution.
func (c *Core) SubmitTask(d supervisor.TaskDescriptor) (string, error) {
	id, err := c.Supervisor.Submit(d)
	if err != nil {
		return "", newError(ErrPolicyViolation, "%v", err)
	}
	return id, nil
}

// TaskStatus returns task id's snapshot.
func (c *Core) TaskStatus(id string) (supervisor.TaskSnapshot, error) {
	snap, ok := c.Supervisor.Status(id)
	if !ok {
		return supervisor.TaskSnapshot{}, newError(ErrNotFound, "task %q not found", id)
	}
	return snap, nil
}

// CancelTask cancels task id.
func (c *Core) CancelTask(id string) bool {
	return c.Supervisor.Cancel(id)
}

// RunningTasks returns every non-terminal task.
func (c *Core) RunningTasks() []supervisor.TaskSnapshot {
	return c.Supervisor.Running()
}

// TaskHistory returns up to limit historical tasks, optionally filtered by
// state.
func (c *Core) TaskHistory(limit int, states []supervisor.State) []supervisor.TaskSnapshot {
	return c.Supervisor.History(limit, states)
}

// Statistics reports supervisor-wide counters.
func (c *Core) Statistics() supervisor.Statistics {
	return c.Supervisor.Statistics()
}
