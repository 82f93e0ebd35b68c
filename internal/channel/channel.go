// Package channel implements the Channel Registry (C2): a fixed, immutable
// catalog of the seven delivery surfaces BK25 supports, with a tracked
// "current" channel. Unlike Persona, Channel has no dynamic add/remove
// (spec.md §3).
package channel

import (
	"errors"
	"sync"

	"bk25/internal/logging"
)

// ErrNotFound is returned when an unknown channel id is addressed.
var ErrNotFound = errors.New("channel not found")

var log = logging.For("channel")

// Channel is immutable; callers never mutate a returned value.
type Channel struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	ArtifactKinds []string       `json:"artifact_kinds"`
	Capabilities  []string       `json:"capabilities"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

func (c Channel) clone() Channel {
	out := c
	out.ArtifactKinds = append([]string(nil), c.ArtifactKinds...)
	out.Capabilities = append([]string(nil), c.Capabilities...)
	if c.Metadata != nil {
		out.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// catalog is the fixed, built-in table of seven channels (spec.md §3),
// grounded on core/channels/*.py's per-channel capability/artifact lists.
var catalog = []Channel{
	{
		ID: "web", Name: "Web", Description: "Browser-based chat UI",
		ArtifactKinds: []string{"markdown", "code_block", "card"},
		Capabilities:  []string{"rich_text", "code_highlighting", "file_download"},
		Metadata:      map[string]any{"color": "#2D72D9", "icon": "🌐"},
	},
	{
		ID: "slack", Name: "Slack", Description: "Slack Block Kit surface",
		ArtifactKinds: []string{"blocks", "attachments", "modals"},
		Capabilities:  []string{"blocks", "threads", "reactions", "slash_commands"},
		Metadata:      map[string]any{"color": "#4A154B", "icon": "💬"},
	},
	{
		ID: "teams", Name: "Microsoft Teams", Description: "Adaptive Cards surface",
		ArtifactKinds: []string{"adaptive_card", "hero_card"},
		Capabilities:  []string{"adaptive_cards", "tabs", "meetings"},
		Metadata:      map[string]any{"color": "#6264A7", "icon": "🟣"},
	},
	{
		ID: "discord", Name: "Discord", Description: "Embed/component surface",
		ArtifactKinds: []string{"embed", "components"},
		Capabilities:  []string{"embeds", "reactions", "slash_commands", "threads"},
		Metadata:      map[string]any{"color": "#5865F2", "icon": "🎮"},
	},
	{
		ID: "twitch", Name: "Twitch", Description: "Stream chat overlay surface",
		ArtifactKinds: []string{"chat_message", "overlay_card"},
		Capabilities:  []string{"chat_commands", "emotes"},
		Metadata:      map[string]any{"color": "#9146FF", "icon": "🎥"},
	},
	{
		ID: "whatsapp", Name: "WhatsApp", Description: "Template message surface",
		ArtifactKinds: []string{"template", "rich_link"},
		Capabilities:  []string{"templates", "media_messages"},
		Metadata:      map[string]any{"color": "#25D366", "icon": "📱"},
	},
	{
		ID: "apple-business-chat", Name: "Apple Business Chat", Description: "Apple Messages for Business surface",
		ArtifactKinds: []string{"rich_link", "list_picker", "time_picker"},
		Capabilities:  []string{"rich_links", "apple_pay", "list_pickers"},
		Metadata:      map[string]any{"color": "#000000", "icon": "🍎"},
	},
}

// Registry serves the fixed channel catalog and tracks a current channel.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]Channel
	order   []string
	current string
}

// NewRegistry builds a Registry pre-populated with the fixed catalog,
// defaulting current to "web".
func NewRegistry() *Registry {
	r := &Registry{byID: map[string]Channel{}}
	for _, c := range catalog {
		r.byID[c.ID] = c
		r.order = append(r.order, c.ID)
	}
	r.current = "web"
	return r
}

// List returns all channels in catalog order.
func (r *Registry) List() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Channel, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].clone())
	}
	return out
}

// Get returns the channel with the given id, or (zero, false).
func (r *Registry) Get(id string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return Channel{}, false
	}
	return c.clone(), true
}

// Current returns the current channel. It is always present after
// NewRegistry since "web" is always in the catalog.
func (r *Registry) Current() Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[r.current].clone()
}

// Switch sets the current channel. Unknown ids are a no-op (spec.md §4.1).
func (r *Registry) Switch(id string) (Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		log.Warn().Str("id", id).Msg("switch: channel not found")
		return Channel{}, false
	}
	r.current = id
	return c.clone(), true
}

// AvailableArtifactKinds returns the current channel's artifact kinds.
func (r *Registry) AvailableArtifactKinds() []string {
	return append([]string(nil), r.Current().ArtifactKinds...)
}

// Capabilities returns the current channel's capabilities.
func (r *Registry) Capabilities() []string {
	return append([]string(nil), r.Current().Capabilities...)
}
