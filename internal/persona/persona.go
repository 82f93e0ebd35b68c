// Package persona implements the Persona Registry (C1): loading, validating,
// and serving immutable persona descriptors, with a tracked "current" persona
// and prompt composition for the conversational surface.
package persona

import "strings"

// Personality holds the four short personality traits spec.md §3 requires.
type Personality struct {
	Tone       string `json:"tone"`
	Approach   string `json:"approach"`
	Philosophy string `json:"philosophy"`
	Motto      string `json:"motto"`
}

// Persona is immutable once returned from the registry. Callers never
// mutate a Persona value in place; Registry.Switch/AddCustom always install
// a fresh value.
type Persona struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Greeting      string      `json:"greeting"`
	Capabilities  []string    `json:"capabilities,omitempty"`
	Examples      []string    `json:"examples,omitempty"`
	Personality   Personality `json:"personality,omitempty"`
	SystemPrompt  string      `json:"systemPrompt"`
	Channels      []string    `json:"channels,omitempty"`
	Custom        bool        `json:"custom,omitempty"`
}

// EligibleForChannel reports whether the persona may be used on channelID,
// per spec.md §4.1: empty Channels means eligible everywhere.
func (p Persona) EligibleForChannel(channelID string) bool {
	if len(p.Channels) == 0 {
		return true
	}
	for _, c := range p.Channels {
		if c == channelID {
			return true
		}
	}
	return false
}

// clone returns a defensive copy so callers can't mutate registry-owned
// slices through a returned Persona.
func (p Persona) clone() Persona {
	out := p
	out.Capabilities = append([]string(nil), p.Capabilities...)
	out.Examples = append([]string(nil), p.Examples...)
	out.Channels = append([]string(nil), p.Channels...)
	return out
}

// fallback is synthesized when loading produces no personas, so current()
// is never nil after Registry.LoadAll returns (spec.md §4.1).
func fallback() Persona {
	return Persona{
		ID:          "fallback",
		Name:        "BK25 Assistant",
		Description: "Default assistant persona",
		Greeting:    "Hello! I'm BK25, your helpful AI assistant.",
		Capabilities: []string{
			"General conversation",
			"Automation scripting",
		},
		Personality: Personality{
			Tone:       "friendly",
			Approach:   "helpful",
			Philosophy: "assistance",
			Motto:      "here to help",
		},
		SystemPrompt: "You are BK25, a helpful AI assistant that generates automation scripts and provides conversational assistance.",
		Examples:     []string{"Create a PowerShell script", "Help with automation"},
	}
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "persona"
	}
	return out
}
