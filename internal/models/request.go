package models

import "time"

// Request is a customer's "I need X" post. Posts are owned by the wider
// marketplace; this service reads them to resolve the customer participant
// when a shopkeeper opens a conversation.
type Request struct {
	ID         int       `db:"id" json:"id"`
	CustomerID int       `db:"customer_id" json:"customer_id"`
	Title      string    `db:"title" json:"title"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
