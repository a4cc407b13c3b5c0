package models

import "time"

// Conversation is the persistent thread between the customer who posted a
// request and the shopkeeper who responded to it. At most one conversation
// exists per (request, shopkeeper) pair.
type Conversation struct {
	ID            int       `db:"id" json:"id"`
	RequestID     int       `db:"request_id" json:"request_id"`
	CustomerID    int       `db:"customer_id" json:"customer_id"`
	ShopkeeperID  int       `db:"shopkeeper_id" json:"shopkeeper_id"`
	LastMessageAt time.Time `db:"last_message_at" json:"last_message_at"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// CounterpartID returns the other participant from the given user's view.
func (c Conversation) CounterpartID(userID int) int {
	if c.CustomerID == userID {
		return c.ShopkeeperID
	}
	return c.CustomerID
}

// HasParticipant reports whether the user is one of the two participants.
func (c Conversation) HasParticipant(userID int) bool {
	return c.CustomerID == userID || c.ShopkeeperID == userID
}

// ConversationSummary is the dashboard view of a conversation: the
// counterpart, the originating request, the latest message and how many
// inbound messages are still unread.
type ConversationSummary struct {
	ConversationID int       `json:"conversation_id"`
	RequestID      int       `json:"request_id"`
	RequestTitle   string    `json:"request_title"`
	CounterpartID  int       `json:"counterpart_id"`
	LastMessage    *Message  `json:"last_message,omitempty"`
	UnreadCount    int       `json:"unread_count"`
	LastMessageAt  time.Time `json:"last_message_at"`
}
