package persona

import "strings"

// HistoryMessage is the minimal shape BuildPrompt needs from a prior
// conversation message; internal/conversation.Message satisfies it via
// ToHistoryMessage.
type HistoryMessage struct {
	Role    string
	Content string
}

// BuildPrompt composes the conversational prompt for the current persona:
// systemPrompt, a "Conversation history:" header, one "role: content" line
// per prior message, and a trailing "User: {message}\nAssistant:" suffix.
// With no current persona, only the suffix is returned (spec.md §4.1, §8).
func (r *Registry) BuildPrompt(message string, history []HistoryMessage) string {
	p, ok := r.Current()
	if !ok {
		return "User: " + message + "\nAssistant:"
	}

	var b strings.Builder
	b.WriteString(p.SystemPrompt)
	b.WriteString("\n\nConversation history:\n")
	for _, m := range history {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("\nUser: ")
	b.WriteString(message)
	b.WriteString("\nAssistant:")
	return b.String()
}
