package persona

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"bk25/internal/logging"
)

// ErrNotFound is returned by operations that address a persona by id.
var ErrNotFound = errors.New("persona not found")

// ErrDuplicateID is returned by AddCustom when the id already exists.
var ErrDuplicateID = errors.New("persona id already exists")

var log = logging.For("persona")

// requiredFields mirrors persona_manager.py's validate_persona: a descriptor
// file must carry these non-empty string fields to be loaded.
var requiredFields = []string{"id", "name", "description", "greeting", "systemPrompt"}

// rawDescriptor is the on-disk shape (spec.md §6 "Persona descriptor
// format"). Unknown top-level fields are ignored: they are not retained and
// do not influence runtime behavior.
type rawDescriptor struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	Greeting     string      `json:"greeting"`
	SystemPrompt string      `json:"systemPrompt"`
	Capabilities []string    `json:"capabilities,omitempty"`
	Examples     []string    `json:"examples,omitempty"`
	Channels     []string    `json:"channels,omitempty"`
	Personality  Personality `json:"personality,omitempty"`
}

// Registry loads, validates, and serves persona descriptors. The zero value
// is not usable; construct with NewRegistry.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]Persona
	order   []string // preserves load order for deterministic List()
	current string
	dir     string
}

// NewRegistry constructs an empty registry. Call LoadAll to populate it.
func NewRegistry() *Registry {
	return &Registry{byID: map[string]Persona{}}
}

// LoadAll enumerates descriptor files (*.json) under dir, validates each,
// and replaces the registry's contents atomically. Invalid files are
// skipped with a log entry; a read/parse failure never aborts the load.
// If loading produces zero personas, a fallback persona is synthesized so
// Current() is never nil afterward (spec.md §4.1).
func (r *Registry) LoadAll(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("personas directory unavailable, using fallback")
		r.installFallback(dir)
		return nil
	}

	byID := map[string]Persona{}
	var order []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		p, err := loadDescriptor(path)
		if err != nil {
			log.Warn().Err(err).Str("file", e.Name()).Msg("skipping invalid persona file")
			continue
		}
		if _, exists := byID[p.ID]; exists {
			log.Warn().Str("file", e.Name()).Str("id", p.ID).Msg("duplicate persona id, skipping")
			continue
		}
		byID[p.ID] = p
		order = append(order, p.ID)
		log.Info().Str("id", p.ID).Str("name", p.Name).Msg("loaded persona")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.dir = dir
	if len(byID) == 0 {
		r.byID = map[string]Persona{fallback().ID: fallback()}
		r.order = []string{fallback().ID}
		r.current = fallback().ID
		log.Info().Msg("no personas loaded, using fallback persona")
		return nil
	}
	r.byID = byID
	r.order = order
	if _, ok := byID["vanilla"]; ok {
		r.current = "vanilla"
	} else if _, ok := byID["default"]; ok {
		r.current = "default"
	} else {
		r.current = order[0]
	}
	return nil
}

func (r *Registry) installFallback(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dir = dir
	fb := fallback()
	r.byID = map[string]Persona{fb.ID: fb}
	r.order = []string{fb.ID}
	r.current = fb.ID
}

func loadDescriptor(path string) (Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, fmt.Errorf("read %s: %w", path, err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Persona{}, fmt.Errorf("parse %s: %w", path, err)
	}
	for _, f := range requiredFields {
		v, ok := raw[f]
		if !ok {
			return Persona{}, fmt.Errorf("%s: missing required field %q", path, f)
		}
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return Persona{}, fmt.Errorf("%s: field %q must be non-empty string", path, f)
		}
	}
	var rd rawDescriptor
	if err := json.Unmarshal(data, &rd); err != nil {
		return Persona{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return Persona{
		ID:           rd.ID,
		Name:         rd.Name,
		Description:  rd.Description,
		Greeting:     rd.Greeting,
		SystemPrompt: rd.SystemPrompt,
		Capabilities: rd.Capabilities,
		Examples:     rd.Examples,
		Channels:     rd.Channels,
		Personality:  rd.Personality,
	}, nil
}

// Reload re-runs LoadAll against the last-used directory, preserving the
// current persona id when it still exists.
func (r *Registry) Reload() error {
	r.mu.RLock()
	dir := r.dir
	prevCurrent := r.current
	r.mu.RUnlock()

	if err := r.LoadAll(dir); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[prevCurrent]; ok {
		r.current = prevCurrent
	}
	log.Info().Msg("personas reloaded")
	return nil
}

// List returns all personas in load order.
func (r *Registry) List() []Persona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Persona, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].clone())
	}
	return out
}

// Get returns the persona with the given id, or (zero, false).
func (r *Registry) Get(id string) (Persona, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return Persona{}, false
	}
	return p.clone(), true
}

// ListForChannel returns personas eligible for channelID (spec.md §4.1).
func (r *Registry) ListForChannel(channelID string) []Persona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Persona
	for _, id := range r.order {
		p := r.byID[id]
		if p.EligibleForChannel(channelID) {
			out = append(out, p.clone())
		}
	}
	return out
}

// Current returns the current persona, or (zero, false) if none is set.
func (r *Registry) Current() (Persona, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == "" {
		return Persona{}, false
	}
	p, ok := r.byID[r.current]
	if !ok {
		return Persona{}, false
	}
	return p.clone(), true
}

// Switch sets the current persona to id. It is a no-op returning
// (zero, false) when id is unknown — switching never mutates state on
// failure (spec.md §4.1).
func (r *Registry) Switch(id string) (Persona, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		log.Warn().Str("id", id).Msg("switch: persona not found")
		return Persona{}, false
	}
	r.current = id
	log.Info().Str("id", id).Str("name", p.Name).Msg("switched persona")
	return p.clone(), true
}

// AddCustom installs a runtime-created persona, indistinguishable from a
// loaded one except for the Custom flag. Returns ErrDuplicateID if the id
// is already registered, or a validation error if required fields are
// missing.
func (r *Registry) AddCustom(p Persona) (Persona, error) {
	if strings.TrimSpace(p.ID) == "" {
		p.ID = slugify(p.Name)
	}
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Description) == "" ||
		strings.TrimSpace(p.Greeting) == "" || strings.TrimSpace(p.SystemPrompt) == "" {
		return Persona{}, fmt.Errorf("invalid persona descriptor: name, description, greeting, and systemPrompt are required")
	}
	p.Custom = true

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[p.ID]; exists {
		return Persona{}, ErrDuplicateID
	}
	r.byID[p.ID] = p
	r.order = append(r.order, p.ID)
	log.Info().Str("id", p.ID).Msg("added custom persona")
	return p.clone(), nil
}
