// Package artifact implements channel artifact generation: pure functions
// mapping (kind, description, options) to a channel-shaped record wrapped
// in a fixed envelope (spec.md §6). Only the envelope is specified; each
// channel's internal shape follows its own third-party platform schema.
package artifact

import (
	"fmt"
	"strings"

	"bk25/internal/channel"
)

// Envelope is the fixed wrapper around every generated artifact.
type Envelope struct {
	Channel      string `json:"channel"`
	ChannelName  string `json:"channelName"`
	ArtifactType string `json:"artifactType"`
	Description  string `json:"description"`
	Artifact     any    `json:"artifact"`
}

// Options carries the free-form per-kind generation inputs. Callers set
// only the fields relevant to the requested kind.
type Options struct {
	Title      string
	Text       string
	Code       string
	Language   string
	ShowHeader bool
	Fields     []Field
}

// Field is a generic title/value pair used by several channel shapes
// (Slack attachment fields, Teams fact sets, Discord embed fields).
type Field struct {
	Title string
	Value string
}

// Generate builds an artifact envelope for ch and kind, grounded on the
// per-channel shape generators (Slack Block Kit, Teams Adaptive Cards,
// Discord embeds, WhatsApp templates, Twitch chat messages, Apple rich
// links, and plain web markdown).
func Generate(ch channel.Channel, kind, description string, opts Options) (Envelope, error) {
	builder, ok := generators[ch.ID]
	if !ok {
		return Envelope{}, fmt.Errorf("no artifact generator registered for channel %q", ch.ID)
	}
	if !containsKind(ch.ArtifactKinds, kind) {
		return Envelope{}, fmt.Errorf("channel %q does not support artifact kind %q", ch.ID, kind)
	}
	artifact := builder(kind, description, opts)
	return Envelope{
		Channel:      ch.ID,
		ChannelName:  ch.Name,
		ArtifactType: kind,
		Description:  description,
		Artifact:     artifact,
	}, nil
}

func containsKind(kinds []string, kind string) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

type generatorFunc func(kind, description string, opts Options) any

var generators = map[string]generatorFunc{
	"web":                  webArtifact,
	"slack":                slackArtifact,
	"teams":                teamsArtifact,
	"discord":              discordArtifact,
	"twitch":               twitchArtifact,
	"whatsapp":             whatsappArtifact,
	"apple-business-chat":  appleArtifact,
}

func webArtifact(kind, description string, opts Options) any {
	switch kind {
	case "code_block":
		return map[string]any{
			"markdown": fmt.Sprintf("```%s\n%s\n```", defaultString(opts.Language, "text"), opts.Code),
		}
	case "card":
		return map[string]any{"title": defaultString(opts.Title, description), "text": opts.Text}
	default: // markdown
		return map[string]any{"markdown": defaultString(opts.Text, description)}
	}
}

func slackArtifact(kind, description string, opts Options) any {
	switch kind {
	case "attachments":
		fields := make([]map[string]any, 0, len(opts.Fields))
		for _, f := range opts.Fields {
			fields = append(fields, map[string]any{"title": f.Title, "value": f.Value, "short": true})
		}
		return map[string]any{
			"color":  "#36a64f",
			"title":  defaultString(opts.Title, "BK25 Attachment"),
			"text":   defaultString(opts.Text, description),
			"fields": fields,
		}
	case "modals":
		return map[string]any{
			"type":  "modal",
			"title": map[string]any{"type": "plain_text", "text": defaultString(opts.Title, "BK25 Modal")},
			"blocks": []any{
				map[string]any{"type": "section", "text": map[string]any{"type": "mrkdwn", "text": defaultString(opts.Text, description)}},
			},
		}
	default: // blocks
		var blocks []any
		if opts.ShowHeader {
			blocks = append(blocks, map[string]any{
				"type": "header",
				"text": map[string]any{"type": "plain_text", "text": defaultString(opts.Title, "BK25 Response")},
			})
		}
		if opts.Text != "" {
			blocks = append(blocks, map[string]any{
				"type": "section",
				"text": map[string]any{"type": "mrkdwn", "text": opts.Text},
			})
		}
		if opts.Code != "" {
			blocks = append(blocks, map[string]any{
				"type": "section",
				"text": map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("```%s\n%s\n```", defaultString(opts.Language, "text"), opts.Code)},
			})
		}
		if len(blocks) == 0 {
			blocks = []any{map[string]any{
				"type": "section",
				"text": map[string]any{"type": "mrkdwn", "text": description},
			}}
		}
		return map[string]any{"blocks": blocks}
	}
}

func teamsArtifact(kind, description string, opts Options) any {
	facts := make([]map[string]any, 0, len(opts.Fields))
	for _, f := range opts.Fields {
		facts = append(facts, map[string]any{"title": f.Title, "value": f.Value})
	}
	body := []any{
		map[string]any{"type": "TextBlock", "text": defaultString(opts.Title, description), "weight": "bolder", "size": "medium"},
	}
	if opts.Text != "" {
		body = append(body, map[string]any{"type": "TextBlock", "text": opts.Text, "wrap": true})
	}
	if len(facts) > 0 {
		body = append(body, map[string]any{"type": "FactSet", "facts": facts})
	}
	if kind == "hero_card" {
		return map[string]any{
			"contentType": "application/vnd.microsoft.card.hero",
			"content":     map[string]any{"title": defaultString(opts.Title, description), "text": opts.Text},
		}
	}
	return map[string]any{
		"type":    "AdaptiveCard",
		"version": "1.4",
		"body":    body,
	}
}

func discordArtifact(kind, description string, opts Options) any {
	fields := make([]map[string]any, 0, len(opts.Fields))
	for _, f := range opts.Fields {
		fields = append(fields, map[string]any{"name": f.Title, "value": f.Value, "inline": true})
	}
	if kind == "components" {
		return map[string]any{
			"type": 1,
			"components": []any{
				map[string]any{"type": 2, "style": 1, "label": defaultString(opts.Title, "Details"), "custom_id": "bk25_action"},
			},
		}
	}
	return map[string]any{
		"title":       defaultString(opts.Title, description),
		"description": defaultString(opts.Text, description),
		"color":       5793266,
		"fields":      fields,
	}
}

func twitchArtifact(kind, description string, opts Options) any {
	if kind == "overlay_card" {
		return map[string]any{"title": defaultString(opts.Title, description), "text": opts.Text}
	}
	return map[string]any{"message": defaultString(opts.Text, description)}
}

func whatsappArtifact(kind, description string, opts Options) any {
	if kind == "rich_link" {
		return map[string]any{"title": defaultString(opts.Title, description), "description": opts.Text}
	}
	return map[string]any{
		"name": "bk25_template",
		"components": []any{
			map[string]any{"type": "body", "text": defaultString(opts.Text, description)},
		},
	}
}

func appleArtifact(kind, description string, opts Options) any {
	switch kind {
	case "list_picker":
		items := make([]map[string]any, 0, len(opts.Fields))
		for _, f := range opts.Fields {
			items = append(items, map[string]any{"title": f.Title, "subtitle": f.Value})
		}
		return map[string]any{"title": defaultString(opts.Title, description), "items": items}
	case "time_picker":
		return map[string]any{"title": defaultString(opts.Title, description), "text": opts.Text}
	default: // rich_link
		return map[string]any{"title": defaultString(opts.Title, description), "subtitle": opts.Text}
	}
}

func defaultString(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
