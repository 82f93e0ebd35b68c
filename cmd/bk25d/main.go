// Command bk25d is a thin demonstration binary: it wires a config.Config
// into a core.Core and drives it from a line-oriented REPL standing in for
// the out-of-scope HTTP transport, enough surface to exercise every facade
// operation without implementing routing.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/redis/go-redis/v9"

	"bk25/internal/channel"
	"bk25/internal/codegen"
	"bk25/internal/config"
	"bk25/internal/conversation"
	"bk25/internal/core"
	"bk25/internal/llmdispatch"
	"bk25/internal/persistence"
	"bk25/internal/persona"
	"bk25/internal/supervisor"
	"bk25/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults applied when omitted)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			pterm.Error.Printf("failed to load config %s: %v\n", *configPath, err)
			os.Exit(1)
		}
		cfg = loaded
	}

	c, err := build(cfg)
	if err != nil {
		pterm.Error.Printf("failed to build bk25 core: %v\n", err)
		os.Exit(1)
	}
	c.Start()
	defer c.Shutdown()

	pterm.Info.Printf("bk25d %s starting — multi-persona automation server (REPL transport)\n", version.Version)
	if p, ok := c.CurrentPersona(); ok {
		pterm.Success.Printf("persona: %s   channel: %s\n", p.Name, c.ListChannels()[0].Name)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	repl(ctx, c)
}

// build assembles the component graph per cfg, matching the teacher's
// construct-then-wire pattern in its own service bootstrap.
func build(cfg *config.Config) (*core.Core, error) {
	personas := persona.NewRegistry()
	if err := personas.LoadAll(cfg.Persona.Dir); err != nil {
		return nil, fmt.Errorf("load personas: %w", err)
	}

	channels := channel.NewRegistry()

	convOpts := []conversation.Option{
		conversation.WithCaps(cfg.Conversation.MaxMessagesPerConversation, cfg.Conversation.MaxConversations),
	}
	backend, err := buildConversationBackend(cfg.Conversation)
	if err != nil {
		return nil, fmt.Errorf("build conversation backend: %w", err)
	}
	if backend != nil {
		convOpts = append(convOpts, conversation.WithPersistence(backend))
	}
	convStore := conversation.New(convOpts...)

	var providers []llmdispatch.Provider
	for _, p := range cfg.LLM.Providers {
		switch p.Name {
		case "ollama":
			baseURL := p.BaseURL
			if baseURL == "" {
				baseURL = "http://localhost:11434"
			}
			providers = append(providers, llmdispatch.NewOllamaProvider(baseURL, p.Model))
		case "openai":
			providers = append(providers, llmdispatch.NewOpenAIProvider(p.APIKey, p.BaseURL, p.Model))
		case "anthropic":
			providers = append(providers, llmdispatch.NewAnthropicProvider(p.APIKey, p.Model))
		default:
			pterm.Warning.Printf("unknown llm provider %q in config, skipping\n", p.Name)
		}
	}
	dispatcher := llmdispatch.New(cfg.LLM.PreferredProvider, providers...)
	gen := codegen.New(dispatcher)

	supCfg := supervisor.DefaultConfig()
	supCfg.MaxConcurrentTasks = cfg.Supervisor.MaxConcurrentTasks
	supCfg.MetricsInterval = cfg.Supervisor.MetricsInterval
	supCfg.RetentionAge = cfg.Supervisor.RetentionAge
	supCfg.RetentionInterval = cfg.Supervisor.RetentionInterval
	sup := supervisor.New(supCfg)

	return core.New(personas, channels, convStore, dispatcher, gen, sup), nil
}

// buildConversationBackend constructs the optional durable mirror named by
// cfg.Backend, or returns (nil, nil) for the "memory" default. It is a
// best-effort write-behind, not the conversation store's read path (see
// conversation.Persistence).
func buildConversationBackend(cfg config.ConversationConfig) (conversation.Persistence, error) {
	switch cfg.Backend {
	case "", "memory":
		return nil, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return persistence.NewRedisConversationStore(client, 0), nil
	case "postgres":
		ctx := context.Background()
		pool, err := persistence.OpenPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		store := persistence.NewPostgresConversationStore(pool)
		if err := store.Init(ctx); err != nil {
			return nil, fmt.Errorf("init postgres schema: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown conversation backend %q", cfg.Backend)
	}
}

// repl is a minimal stand-in for an HTTP/gRPC transport: one command per
// line, enough to drive every core.Core operation interactively.
func repl(ctx context.Context, c *core.Core) {
	scanner := bufio.NewScanner(os.Stdin)
	var conversationID string

	for {
		fmt.Print("bk25> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}

		switch {
		case line == "personas":
			for _, p := range c.ListPersonas("") {
				fmt.Printf("  %-20s %s\n", p.ID, p.Description)
			}
		case line == "channels":
			for _, ch := range c.ListChannels() {
				fmt.Printf("  %-20s %s\n", ch.ID, ch.Description)
			}
		case strings.HasPrefix(line, "persona "):
			id := strings.TrimSpace(strings.TrimPrefix(line, "persona "))
			p, err := c.SwitchPersona(id)
			if err != nil {
				pterm.Error.Println(err)
				continue
			}
			pterm.Success.Printf("switched to %s\n", p.Name)
		case strings.HasPrefix(line, "channel "):
			id := strings.TrimSpace(strings.TrimPrefix(line, "channel "))
			result, err := c.SwitchChannel(id)
			if err != nil {
				pterm.Error.Println(err)
				continue
			}
			pterm.Success.Printf("switched to %s (artifacts: %s)\n", result.Channel.Name, strings.Join(result.ArtifactKinds, ", "))
		case strings.HasPrefix(line, "generate "):
			description := strings.TrimSpace(strings.TrimPrefix(line, "generate "))
			result, err := c.GenerateScript(ctx, description, codegen.Auto, nil)
			if err != nil {
				pterm.Error.Println(err)
				continue
			}
			fmt.Printf("--- %s (%s) ---\n%s\n", result.Filename, result.Metadata.GenerationMethod, result.Script)
		case line == "llm-status":
			for name, ok := range c.LLMStatus(ctx) {
				fmt.Printf("  %-12s available=%v\n", name, ok)
			}
		case line == "tasks":
			for _, t := range c.RunningTasks() {
				fmt.Printf("  %s %-10s %s\n", t.ID, t.State, t.Name)
			}
		default:
			result, err := c.Chat(ctx, line, conversationID, "", "")
			if err != nil {
				pterm.Error.Println(err)
				continue
			}
			conversationID = result.ConversationID
			fmt.Println(result.Response)
			if result.ExtractedCode != nil {
				fmt.Printf("[extracted %s -> %s]\n", result.ExtractedCode.Language, result.ExtractedCode.Filename)
			}
		}
	}
}
