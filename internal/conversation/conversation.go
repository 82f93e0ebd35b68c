// Package conversation implements the Conversation Store (C3): a bounded
// in-memory map of conversations with an append-only per-conversation
// message log, per-conversation and global caps, and LRU eviction of the
// least-recently-updated conversation when the global cap is exceeded.
package conversation

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"bk25/internal/logging"
	"bk25/internal/persona"
)

var log = logging.For("conversation")

// Message is one entry in a conversation's log.
type Message struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ToHistoryMessage adapts Message to the shape persona.BuildPrompt expects.
func (m Message) ToHistoryMessage() persona.HistoryMessage {
	return persona.HistoryMessage{Role: m.Role, Content: m.Content}
}

// Conversation is a read-only snapshot; callers never mutate it to affect
// store state.
type Conversation struct {
	ID           string    `json:"id"`
	PersonaID    string    `json:"persona_id"`
	ChannelID    string    `json:"channel_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Summary is the compact listing shape returned by Store.Summaries.
type Summary struct {
	ID           string    `json:"id"`
	PersonaID    string    `json:"persona_id"`
	ChannelID    string    `json:"channel_id"`
	MessageCount int       `json:"message_count"`
	LastPreview  string    `json:"last_preview"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Stats is the aggregate returned by Store.Stats.
type Stats struct {
	Conversations              int `json:"conversations"`
	Messages                   int `json:"messages"`
	MaxConversations           int `json:"max_conversations"`
	MaxMessagesPerConversation int `json:"max_messages_per_conversation"`
}

const (
	defaultMaxMessagesPerConversation = 50
	defaultMaxConversations           = 100
	maxContextMessages                = 10
	defaultMaxContextChars            = 4000
)

type entry struct {
	conv     Conversation
	messages []Message
	elem     *list.Element // position in lru, keyed by conversation id
}

// Persistence is an optional durable backend a Store can be wired to
// (SPEC_FULL.md §6); nil means in-memory only. Implementations append
// messages and record conversation metadata but are never consulted for
// reads — the in-memory map remains the source of truth for a running
// process, matching the Python original's memory-first design.
type Persistence interface {
	SaveMessage(convID string, msg Message) error
	SaveConversation(conv Conversation) error
}

// Store is the Conversation Store. The zero value is not usable;
// construct with New.
type Store struct {
	mu                         sync.Mutex
	byID                       map[string]*entry
	lru                        *list.List // front = most recently updated
	maxMessagesPerConversation int
	maxConversations           int
	persistence                Persistence
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithCaps overrides the default per-conversation and global caps.
func WithCaps(maxMessagesPerConversation, maxConversations int) Option {
	return func(s *Store) {
		if maxMessagesPerConversation > 0 {
			s.maxMessagesPerConversation = maxMessagesPerConversation
		}
		if maxConversations > 0 {
			s.maxConversations = maxConversations
		}
	}
}

// WithPersistence wires an optional durable backend.
func WithPersistence(p Persistence) Option {
	return func(s *Store) { s.persistence = p }
}

// New constructs an empty Store with default caps (50 messages/conversation,
// 100 conversations), overridable via options.
func New(opts ...Option) *Store {
	s := &Store{
		byID:                       map[string]*entry{},
		lru:                        list.New(),
		maxMessagesPerConversation: defaultMaxMessagesPerConversation,
		maxConversations:           defaultMaxConversations,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create returns the existing conversation if id already exists
// (idempotent), otherwise creates one, evicting the least-recently-updated
// conversation if the global cap would be exceeded.
func (s *Store) Create(id, personaID, channelID string) Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if e, ok := s.byID[id]; ok {
		s.touch(e)
		return e.conv
	}

	now := time.Now().UTC()
	e := &entry{conv: Conversation{
		ID: id, PersonaID: personaID, ChannelID: channelID,
		CreatedAt: now, UpdatedAt: now,
	}}
	e.elem = s.lru.PushFront(id)
	s.byID[id] = e

	s.evictIfNeeded()

	if s.persistence != nil {
		if err := s.persistence.SaveConversation(e.conv); err != nil {
			log.Warn().Err(err).Str("conversation_id", id).Msg("persistence save failed")
		}
	}
	return e.conv
}

// evictIfNeeded removes least-recently-updated conversations while the
// store exceeds its global cap. Must be called with mu held.
func (s *Store) evictIfNeeded() {
	for len(s.byID) > s.maxConversations {
		back := s.lru.Back()
		if back == nil {
			return
		}
		evictID := back.Value.(string)
		s.lru.Remove(back)
		delete(s.byID, evictID)
		log.Warn().Str("conversation_id", evictID).Msg("evicted least-recently-updated conversation")
	}
}

// touch moves e to the front of the lru. Must be called with mu held.
func (s *Store) touch(e *entry) {
	s.lru.MoveToFront(e.elem)
}

// Append adds a message to conversation id, dropping the oldest message if
// the per-conversation cap is exceeded. Returns an error if id is unknown.
func (s *Store) Append(id, role, content string, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("conversation %q: %w", id, ErrNotFound)
	}
	msg := Message{Role: role, Content: content, Metadata: metadata, Timestamp: time.Now().UTC()}
	e.messages = append(e.messages, msg)
	if len(e.messages) > s.maxMessagesPerConversation {
		e.messages = e.messages[len(e.messages)-s.maxMessagesPerConversation:]
	}
	e.conv.MessageCount = len(e.messages)
	e.conv.UpdatedAt = msg.Timestamp
	s.touch(e)

	if s.persistence != nil {
		if err := s.persistence.SaveMessage(id, msg); err != nil {
			log.Warn().Err(err).Str("conversation_id", id).Msg("persistence save failed")
		}
	}
	return nil
}

// History returns up to limit most-recent messages in insertion order (all
// messages when limit <= 0). The returned slice is a copy.
func (s *Store) History(id string, limit int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("conversation %q: %w", id, ErrNotFound)
	}
	msgs := e.messages
	if limit > 0 && limit < len(msgs) {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Context formats the last <=10 messages of conversation id as "role:
// content" lines joined by newlines, truncated to maxChars (default 4000
// when <= 0).
func (s *Store) Context(id string, maxChars int) (string, error) {
	msgs, err := s.History(id, maxContextMessages)
	if err != nil {
		return "", err
	}
	if maxChars <= 0 {
		maxChars = defaultMaxContextChars
	}
	var out string
	for _, m := range msgs {
		line := m.Role + ": " + m.Content + "\n"
		out += line
	}
	if len(out) > maxChars {
		out = out[len(out)-maxChars:]
	}
	return out, nil
}

// SwitchPersona records a persona change on conversation id, appending a
// system message noting the swap.
func (s *Store) SwitchPersona(id, newPersonaID string) error {
	s.mu.Lock()
	e, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("conversation %q: %w", id, ErrNotFound)
	}
	oldPersonaID := e.conv.PersonaID
	e.conv.PersonaID = newPersonaID
	s.mu.Unlock()

	return s.Append(id, "system", fmt.Sprintf("Persona switched from %s to %s", oldPersonaID, newPersonaID), nil)
}

// Stats returns store-wide counters and configured caps.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, e := range s.byID {
		total += len(e.messages)
	}
	return Stats{
		Conversations:              len(s.byID),
		Messages:                   total,
		MaxConversations:           s.maxConversations,
		MaxMessagesPerConversation: s.maxMessagesPerConversation,
	}
}

// Summaries returns a compact listing of every conversation, most-recently
// updated first.
func (s *Store) Summaries() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Summary, 0, len(s.byID))
	for elem := s.lru.Front(); elem != nil; elem = elem.Next() {
		id := elem.Value.(string)
		e := s.byID[id]
		preview := ""
		if n := len(e.messages); n > 0 {
			preview = e.messages[n-1].Content
			if len(preview) > 120 {
				preview = preview[:120]
			}
		}
		out = append(out, Summary{
			ID: e.conv.ID, PersonaID: e.conv.PersonaID, ChannelID: e.conv.ChannelID,
			MessageCount: e.conv.MessageCount, LastPreview: preview,
			CreatedAt: e.conv.CreatedAt, UpdatedAt: e.conv.UpdatedAt,
		})
	}
	return out
}

// Get returns the conversation's metadata snapshot.
func (s *Store) Get(id string) (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return Conversation{}, false
	}
	return e.conv, true
}
