package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"marketchat-service/internal/models"
)

// foreignKeyViolation is the Postgres error code for a dangling reference.
const foreignKeyViolation = "23503"

// MessageRepository defines the message relay and read-state operations.
type MessageRepository interface {
	CreateMessage(ctx context.Context, conversationID int, senderID int, content string) (models.Message, error)
	ListMessagesSince(ctx context.Context, conversationID int, after *time.Time) ([]models.Message, error)
	MarkRead(ctx context.Context, conversationID int, readerID int) (int64, error)
	UnreadCount(ctx context.Context, conversationID int, readerID int) (int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage inserts a message and bumps the conversation's last-activity
// marker to the message's creation time. Both writes commit together so
// readers never observe one without the other.
func (r *MessageRepo) CreateMessage(ctx context.Context, conversationID int, senderID int, content string) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	var msg models.Message
	err = tx.QueryRowxContext(ctx, `INSERT INTO messages (conversation_id, sender_id, content) VALUES ($1, $2, $3)
        RETURNING id, conversation_id, sender_id, content, read, created_at`, conversationID, senderID, content).
		Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Read, &msg.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return models.Message{}, ErrConversationNotFound
		}
		return models.Message{}, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET last_message_at=$1 WHERE id=$2`, msg.CreatedAt, conversationID); err != nil {
		return models.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// ListMessagesSince returns the conversation's messages strictly newer than
// the cursor, oldest first. A nil cursor returns the full history. Ties on
// created_at are ordered by id so repeated polls see a stable sequence.
func (r *MessageRepo) ListMessagesSince(ctx context.Context, conversationID int, after *time.Time) ([]models.Message, error) {
	query := `SELECT id, conversation_id, sender_id, content, read, created_at
        FROM messages
        WHERE conversation_id=$1
        AND ($2::timestamptz IS NULL OR created_at > $2)
        ORDER BY created_at ASC, id ASC`
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, query, conversationID, after)
	return msgs, err
}

// MarkRead flips the read flag on every unread message in the conversation
// that the reader did not send. Repeated calls are no-ops once everything
// eligible is marked; the reader's own messages are never touched.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationID int, readerID int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET read = TRUE
        WHERE conversation_id=$1 AND sender_id<>$2 AND read = FALSE`, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UnreadCount counts inbound messages the reader has not acknowledged yet.
func (r *MessageRepo) UnreadCount(ctx context.Context, conversationID int, readerID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages
        WHERE conversation_id=$1 AND sender_id<>$2 AND read = FALSE`, conversationID, readerID)
	return count, err
}
