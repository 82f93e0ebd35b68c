package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"bk25/internal/conversation"
)

// RedisConversationStore durably mirrors conversation writes into Redis as
// a JSON-encoded append log, one list key per conversation. Like
// PostgresConversationStore it is write-only from conversation.Store's
// perspective; it exists for operators who want a lightweight durable tail
// without standing up Postgres.
type RedisConversationStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisConversationStore wraps an already-configured client. ttl of zero
// disables expiry.
func NewRedisConversationStore(client *redis.Client, ttl time.Duration) *RedisConversationStore {
	return &RedisConversationStore{client: client, ttl: ttl}
}

type redisMessageRecord struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func conversationKey(id string) string { return "bk25:conversation:" + id }
func messagesKey(id string) string     { return "bk25:messages:" + id }

// SaveConversation writes the conversation's identity as a Redis hash.
func (s *RedisConversationStore) SaveConversation(conv conversation.Conversation) error {
	ctx := context.Background()
	err := s.client.HSet(ctx, conversationKey(conv.ID), map[string]any{
		"persona_id": conv.PersonaID,
		"channel_id": conv.ChannelID,
		"created_at": conv.CreatedAt.Format(time.RFC3339),
		"updated_at": conv.UpdatedAt.Format(time.RFC3339),
	}).Err()
	if err == nil && s.ttl > 0 {
		s.client.Expire(ctx, conversationKey(conv.ID), s.ttl)
	}
	return err
}

// SaveMessage appends msg to the conversation's Redis list.
func (s *RedisConversationStore) SaveMessage(conversationID string, msg conversation.Message) error {
	ctx := context.Background()
	data, err := json.Marshal(redisMessageRecord{Role: msg.Role, Content: msg.Content, Timestamp: msg.Timestamp})
	if err != nil {
		return err
	}
	key := messagesKey(conversationID)
	if err := s.client.RPush(ctx, key, data).Err(); err != nil {
		return err
	}
	if s.ttl > 0 {
		s.client.Expire(ctx, key, s.ttl)
	}
	return nil
}
