package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"marketchat-service/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	GetOrCreateConversation(ctx context.Context, requestID int, shopkeeperID int) (models.Conversation, bool, error)
	GetConversation(ctx context.Context, conversationID int) (models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID int, userID int) (bool, error)
	ListConversations(ctx context.Context, userID int) ([]models.ConversationSummary, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const conversationColumns = `id, request_id, customer_id, shopkeeper_id, last_message_at, created_at`

// GetOrCreateConversation resolves the conversation for a (request,
// shopkeeper) pair, creating it on first contact, and reports whether a new
// row was created. The customer participant is derived from the request post.
// Concurrent first-contact calls race on the UNIQUE(request_id, shopkeeper_id)
// constraint; the loser re-selects the surviving row, so exactly one
// conversation ever exists per pair.
func (r *ConversationRepo) GetOrCreateConversation(ctx context.Context, requestID int, shopkeeperID int) (models.Conversation, bool, error) {
	var conv models.Conversation
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE request_id=$1 AND shopkeeper_id=$2`
	err := r.db.GetContext(ctx, &conv, query, requestID, shopkeeperID)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, false, err
	}

	var customerID int
	err = r.db.GetContext(ctx, &customerID, `SELECT customer_id FROM requests WHERE id=$1`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, false, ErrRequestNotFound
	}
	if err != nil {
		return models.Conversation{}, false, err
	}

	insert := `INSERT INTO conversations (request_id, customer_id, shopkeeper_id) VALUES ($1, $2, $3)
        ON CONFLICT (request_id, shopkeeper_id) DO NOTHING
        RETURNING ` + conversationColumns
	err = r.db.QueryRowxContext(ctx, insert, requestID, customerID, shopkeeperID).
		Scan(&conv.ID, &conv.RequestID, &conv.CustomerID, &conv.ShopkeeperID, &conv.LastMessageAt, &conv.CreatedAt)
	if err == nil {
		return conv, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, false, err
	}

	// Lost the first-contact race: another caller inserted the row.
	err = r.db.GetContext(ctx, &conv, query, requestID, shopkeeperID)
	return conv, false, err
}

// GetConversation fetches a conversation by id.
func (r *ConversationRepo) GetConversation(ctx context.Context, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// IsParticipant checks whether a user belongs to the conversation.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM conversations WHERE id=$1 AND (customer_id=$2 OR shopkeeper_id=$2))`, conversationID, userID)
	return exists, err
}

// ListConversations returns conversation summaries for the user, newest
// activity first, each with the latest message and the unread inbound count.
func (r *ConversationRepo) ListConversations(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	query := `SELECT c.id, c.request_id, c.customer_id, c.shopkeeper_id, c.last_message_at, r.title,
            m.id, m.sender_id, m.content, m.read, m.created_at,
            (SELECT COUNT(*) FROM messages u WHERE u.conversation_id=c.id AND u.sender_id<>$1 AND u.read=FALSE) AS unread_count
        FROM conversations c
        JOIN requests r ON r.id = c.request_id
        LEFT JOIN LATERAL (
            SELECT id, sender_id, content, read, created_at FROM messages
            WHERE conversation_id=c.id ORDER BY created_at DESC, id DESC LIMIT 1
        ) m ON TRUE
        WHERE c.customer_id=$1 OR c.shopkeeper_id=$1
        ORDER BY c.last_message_at DESC`
	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.ConversationSummary{}
	for rows.Next() {
		var conv models.Conversation
		var title string
		var unread int
		var msgID, msgSender sql.NullInt64
		var msgContent sql.NullString
		var msgRead sql.NullBool
		var msgCreated sql.NullTime
		if err := rows.Scan(
			&conv.ID, &conv.RequestID, &conv.CustomerID, &conv.ShopkeeperID, &conv.LastMessageAt, &title,
			&msgID, &msgSender, &msgContent, &msgRead, &msgCreated, &unread,
		); err != nil {
			return nil, err
		}

		summary := models.ConversationSummary{
			ConversationID: conv.ID,
			RequestID:      conv.RequestID,
			RequestTitle:   title,
			CounterpartID:  conv.CounterpartID(userID),
			UnreadCount:    unread,
			LastMessageAt:  conv.LastMessageAt,
		}
		if msgID.Valid {
			summary.LastMessage = &models.Message{
				ID:             int(msgID.Int64),
				ConversationID: conv.ID,
				SenderID:       int(msgSender.Int64),
				Content:        msgContent.String,
				Read:           msgRead.Bool,
				CreatedAt:      msgCreated.Time,
			}
		}
		result = append(result, summary)
	}
	return result, rows.Err()
}
