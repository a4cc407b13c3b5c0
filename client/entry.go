package client

import "marketchat-service/internal/models"

// EntryState distinguishes locally-inserted optimistic entries from
// server-confirmed messages.
type EntryState int

const (
	// EntryPending is a local-only optimistic entry awaiting confirmation.
	EntryPending EntryState = iota
	// EntryConfirmed carries a server-assigned message.
	EntryConfirmed
)

// Entry is one item of the displayed message list. A pending entry is
// identified by its LocalID; a confirmed entry by its message's server id.
// The two identity spaces never mix, so merge-by-id can't confuse them.
type Entry struct {
	State   EntryState
	LocalID string
	Message models.Message
}

// Confirmed reports whether the entry holds a server-confirmed message.
func (e Entry) Confirmed() bool {
	return e.State == EntryConfirmed
}
