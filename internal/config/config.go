// Package config defines the injected configuration value consumed by
// internal/core. Loading from file or environment is a transport-adjacent
// concern; this package only supplies the struct and a convenience YAML
// loader in the teacher's style.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PersonaConfig controls the Persona Registry (C1).
type PersonaConfig struct {
	Dir string `yaml:"dir"`
}

// ConversationConfig controls the Conversation Store (C3).
type ConversationConfig struct {
	MaxMessagesPerConversation int    `yaml:"max_messages_per_conversation"`
	MaxConversations           int    `yaml:"max_conversations"`
	Backend                    string `yaml:"backend"` // "memory" (default), "redis", "postgres"
	RedisAddr                  string `yaml:"redis_addr,omitempty"`
	PostgresDSN                string `yaml:"postgres_dsn,omitempty"`
}

// ProviderConfig describes one LLM provider entry in dispatch order.
type ProviderConfig struct {
	Name    string `yaml:"name"` // "ollama", "openai", "anthropic"
	BaseURL string `yaml:"base_url,omitempty"`
	APIKey  string `yaml:"api_key,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

// LLMConfig controls the LLM Dispatcher (C5).
type LLMConfig struct {
	PreferredProvider string           `yaml:"preferred_provider,omitempty"`
	Providers         []ProviderConfig `yaml:"providers"`
	RemoteTimeout     time.Duration    `yaml:"remote_timeout,omitempty"`
	LocalTimeout      time.Duration    `yaml:"local_timeout,omitempty"`
	ProbeTimeout      time.Duration    `yaml:"probe_timeout,omitempty"`
}

// SupervisorConfig controls the Execution Supervisor (C7).
type SupervisorConfig struct {
	MaxConcurrentTasks int           `yaml:"max_concurrent_tasks"`
	MetricsInterval    time.Duration `yaml:"metrics_interval"`
	DefaultTimeout     time.Duration `yaml:"default_timeout"`
	MaxTimeout         time.Duration `yaml:"max_timeout"`
	RetentionAge       time.Duration `yaml:"retention_age"`
	RetentionInterval  time.Duration `yaml:"retention_interval"`
}

// Config is the single injected value that wires every core component.
// Loading it from file/env is out of the core's scope (spec.md §1); callers
// construct or load one and pass it to core.New.
type Config struct {
	Persona      PersonaConfig      `yaml:"persona"`
	Conversation ConversationConfig `yaml:"conversation"`
	LLM          LLMConfig          `yaml:"llm"`
	Supervisor   SupervisorConfig   `yaml:"supervisor"`
}

// Default returns a Config with the spec's documented defaults.
func Default() *Config {
	return &Config{
		Persona: PersonaConfig{Dir: "./personas"},
		Conversation: ConversationConfig{
			MaxMessagesPerConversation: 50,
			MaxConversations:           100,
			Backend:                    "memory",
		},
		LLM: LLMConfig{
			Providers:     []ProviderConfig{{Name: "ollama"}, {Name: "openai"}},
			RemoteTimeout: 30 * time.Second,
			LocalTimeout:  60 * time.Second,
			ProbeTimeout:  5 * time.Second,
		},
		Supervisor: SupervisorConfig{
			MaxConcurrentTasks: 5,
			MetricsInterval:    time.Second,
			DefaultTimeout:     300 * time.Second,
			MaxTimeout:         3600 * time.Second,
			RetentionAge:       7 * 24 * time.Hour,
			RetentionInterval:  time.Hour,
		},
	}
}

// Load reads a YAML file, overlays it onto Default(), and returns the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	d := Default()
	if cfg.Conversation.MaxMessagesPerConversation <= 0 {
		cfg.Conversation.MaxMessagesPerConversation = d.Conversation.MaxMessagesPerConversation
	}
	if cfg.Conversation.MaxConversations <= 0 {
		cfg.Conversation.MaxConversations = d.Conversation.MaxConversations
	}
	if cfg.Conversation.Backend == "" {
		cfg.Conversation.Backend = d.Conversation.Backend
	}
	if len(cfg.LLM.Providers) == 0 {
		cfg.LLM.Providers = d.LLM.Providers
	}
	if cfg.LLM.RemoteTimeout <= 0 {
		cfg.LLM.RemoteTimeout = d.LLM.RemoteTimeout
	}
	if cfg.LLM.LocalTimeout <= 0 {
		cfg.LLM.LocalTimeout = d.LLM.LocalTimeout
	}
	if cfg.LLM.ProbeTimeout <= 0 {
		cfg.LLM.ProbeTimeout = d.LLM.ProbeTimeout
	}
	if cfg.Supervisor.MaxConcurrentTasks <= 0 {
		cfg.Supervisor.MaxConcurrentTasks = d.Supervisor.MaxConcurrentTasks
	}
	if cfg.Supervisor.MetricsInterval <= 0 {
		cfg.Supervisor.MetricsInterval = d.Supervisor.MetricsInterval
	}
	if cfg.Supervisor.DefaultTimeout <= 0 {
		cfg.Supervisor.DefaultTimeout = d.Supervisor.DefaultTimeout
	}
	if cfg.Supervisor.MaxTimeout <= 0 {
		cfg.Supervisor.MaxTimeout = d.Supervisor.MaxTimeout
	}
	if cfg.Supervisor.RetentionAge <= 0 {
		cfg.Supervisor.RetentionAge = d.Supervisor.RetentionAge
	}
	if cfg.Supervisor.RetentionInterval <= 0 {
		cfg.Supervisor.RetentionInterval = d.Supervisor.RetentionInterval
	}
	if cfg.Persona.Dir == "" {
		cfg.Persona.Dir = d.Persona.Dir
	}
}
