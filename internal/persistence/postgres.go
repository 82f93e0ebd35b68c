package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"bk25/internal/conversation"
	"bk25/internal/logging"
)

var log = logging.For("persistence")

// OpenPool creates a Postgres connection pool using the standard defaults,
// mirroring the teacher's databases.OpenPool.
func OpenPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn required")
	}
	return pgxpool.New(ctx, dsn)
}

// PostgresConversationStore durably records conversation and message writes
// alongside the in-memory Store, satisfying conversation.Persistence. It is
// write-only: conversation.Store never reads back through it, matching the
// "hot path stays in memory, durable copy is best-effort" design note.
type PostgresConversationStore struct {
	pool *pgxpool.Pool
}

// NewPostgresConversationStore wraps an already-opened pool.
func NewPostgresConversationStore(pool *pgxpool.Pool) *PostgresConversationStore {
	return &PostgresConversationStore{pool: pool}
}

// Init creates the conversations/messages tables if they don't exist yet,
// grounded on the teacher's chat_store_postgres.go Init migration.
func (s *PostgresConversationStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bk25_conversations (
    id UUID PRIMARY KEY,
    persona_id TEXT NOT NULL,
    channel_id TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS bk25_messages (
    id BIGSERIAL PRIMARY KEY,
    conversation_id UUID NOT NULL REFERENCES bk25_conversations(id) ON DELETE CASCADE,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS bk25_messages_conversation_idx ON bk25_messages(conversation_id, created_at);
`)
	return err
}

// SaveConversation upserts a conversation's identity and timestamps.
func (s *PostgresConversationStore) SaveConversation(conv conversation.Conversation) error {
	ctx := context.Background()
	_, err := s.pool.Exec(ctx, `
INSERT INTO bk25_conversations (id, persona_id, channel_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET persona_id = $2, channel_id = $3, updated_at = $5
`, conv.ID, conv.PersonaID, conv.ChannelID, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("postgres: save conversation failed")
	}
	return err
}

// SaveMessage records one message append.
func (s *PostgresConversationStore) SaveMessage(conversationID string, msg conversation.Message) error {
	ctx := context.Background()
	_, err := s.pool.Exec(ctx, `
INSERT INTO bk25_messages (conversation_id, role, content, created_at)
VALUES ($1, $2, $3, $4)
`, conversationID, msg.Role, msg.Content, msg.Timestamp)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID).Msg("postgres: save message failed")
	}
	return err
}
