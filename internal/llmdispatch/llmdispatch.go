// Package llmdispatch implements the LLM Dispatcher (C5): a provider
// registry exposing a single generate/probe contract over pluggable
// backends (Ollama, OpenAI-compatible, Anthropic), with a fixed selection
// policy and per-provider timeouts.
package llmdispatch

import (
	"context"
	"time"

	"bk25/internal/logging"
)

var log = logging.For("llmdispatch")

// Default per-call timeouts (spec.md §4.5, §5).
const (
	DefaultRemoteGenerateTimeout = 30 * time.Second
	DefaultLocalGenerateTimeout  = 60 * time.Second
	DefaultProbeTimeout          = 5 * time.Second
)

// Request is the dispatcher-facing generation request.
type Request struct {
	Prompt        string
	Model         string
	Temperature   float64
	MaxTokens     int
	SystemMessage string
	Context       string
	Options       map[string]any
}

// Usage reports token accounting when the provider surfaces it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// Response is the dispatcher-facing generation result.
type Response struct {
	Success  bool           `json:"success"`
	Content  string         `json:"content,omitempty"`
	Error    string          `json:"error,omitempty"`
	Usage    *Usage         `json:"usage,omitempty"`
	Metadata map[string]any `json:"metadata"`
}

// Provider is the contract every backend implements (spec.md §4.5).
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (Response, error)
	IsAvailable(ctx context.Context) bool
}

// Dispatcher selects and invokes a provider per the configured policy.
type Dispatcher struct {
	providers []Provider
	preferred string
}

// New builds a Dispatcher over providers, tried in the given order when no
// preferred provider is available. providers must be non-empty to ever
// produce a successful generation.
func New(preferred string, providers ...Provider) *Dispatcher {
	return &Dispatcher{providers: providers, preferred: preferred}
}

// Generate selects a provider per policy (preferred-if-available, else
// first-available in registration order) and invokes it. If no provider is
// available, it returns success=false with an explicit error so callers —
// notably the Code Generator — can fall back to templates.
func (d *Dispatcher) Generate(ctx context.Context, req Request) Response {
	p := d.selectProvider(ctx)
	if p == nil {
		log.Warn().Msg("no llm providers available")
		return Response{Success: false, Error: "no providers available", Metadata: map[string]any{}}
	}

	resp, err := p.Generate(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("provider", p.Name()).Msg("generation failed")
		if resp.Metadata == nil {
			resp.Metadata = map[string]any{}
		}
		resp.Metadata["provider"] = p.Name()
		resp.Success = false
		if resp.Error == "" {
			resp.Error = err.Error()
		}
		return resp
	}
	if resp.Metadata == nil {
		resp.Metadata = map[string]any{}
	}
	resp.Metadata["provider"] = p.Name()
	return resp
}

// Probe reports availability per provider, keyed by name.
func (d *Dispatcher) Probe(ctx context.Context) map[string]bool {
	out := make(map[string]bool, len(d.providers))
	for _, p := range d.providers {
		probeCtx, cancel := context.WithTimeout(ctx, DefaultProbeTimeout)
		out[p.Name()] = p.IsAvailable(probeCtx)
		cancel()
	}
	return out
}

func (d *Dispatcher) selectProvider(ctx context.Context) Provider {
	if d.preferred != "" {
		for _, p := range d.providers {
			if p.Name() == d.preferred {
				probeCtx, cancel := context.WithTimeout(ctx, DefaultProbeTimeout)
				available := p.IsAvailable(probeCtx)
				cancel()
				if available {
					return p
				}
				break
			}
		}
	}
	for _, p := range d.providers {
		probeCtx, cancel := context.WithTimeout(ctx, DefaultProbeTimeout)
		available := p.IsAvailable(probeCtx)
		cancel()
		if available {
			return p
		}
	}
	return nil
}
