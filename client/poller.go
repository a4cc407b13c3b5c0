package client

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketchat-service/internal/models"
)

// DefaultInterval is the polling cadence. A tunable, not a correctness
// property.
const DefaultInterval = time.Second

var errPollerStopped = errors.New("poller stopped")

// PollerConfig tunes a Poller.
type PollerConfig struct {
	// Interval between fetch ticks; DefaultInterval when zero.
	Interval time.Duration
	// OnUpdate is invoked with a snapshot whenever the entry list changes.
	OnUpdate func([]Entry)
	// OnError is invoked on fetch failures; the loop keeps running.
	OnError func(error)
}

// Poller drives one open conversation view: it resolves the conversation,
// then fetches new messages on a fixed interval using the last-seen creation
// time as an exclusive cursor, merging results by server id. Sends insert an
// optimistic pending entry that is replaced by the confirmed message.
type Poller struct {
	api      *API
	userID   int
	interval time.Duration
	onUpdate func([]Entry)
	onError  func(error)

	mu        sync.Mutex
	conv      models.Conversation
	entries   []Entry
	seen      map[int]struct{}
	cursor    time.Time
	hasCursor bool
	stopped   bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller constructs a Poller for the given authenticated user.
func NewPoller(api *API, userID int, cfg PollerConfig) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		api:      api,
		userID:   userID,
		interval: interval,
		onUpdate: cfg.OnUpdate,
		onError:  cfg.OnError,
		seen:     make(map[int]struct{}),
	}
}

// Start resolves the conversation, seeds the local list from its history and
// begins the polling loop. An initialization failure halts the session: no
// loop is started and the error is returned.
func (p *Poller) Start(ctx context.Context, requestID, shopkeeperID int) error {
	view, err := p.api.Init(ctx, requestID, shopkeeperID)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.conv = view.Conversation
	p.entries = p.entries[:0]
	hadInbound := false
	for _, msg := range view.Messages {
		p.entries = append(p.entries, Entry{State: EntryConfirmed, Message: msg})
		p.seen[msg.ID] = struct{}{}
		p.advanceCursorLocked(msg.CreatedAt)
		if msg.SenderID != p.userID {
			hadInbound = true
		}
	}
	p.mu.Unlock()

	if hadInbound {
		if _, err := p.api.MarkRead(ctx, view.Conversation.ID); err != nil {
			log.Printf("mark read failed: %v", err)
		}
	}
	p.notifyUpdate()

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(loopCtx)
	return nil
}

// Conversation returns the resolved conversation. Valid after Start.
func (p *Poller) Conversation() models.Conversation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conv
}

// Entries returns a snapshot of the displayed message list.
func (p *Poller) Entries() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Cursor returns the current polling cursor, if any message has been seen.
func (p *Poller) Cursor() (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor, p.hasCursor
}

// Send appends an optimistic entry, submits the message, and replaces the
// entry with the server-confirmed row. On failure the optimistic entry is
// removed and the error returned; the message is not retried.
func (p *Poller) Send(ctx context.Context, content string) (models.Message, error) {
	localID := uuid.NewString()

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return models.Message{}, errPollerStopped
	}
	conversationID := p.conv.ID
	p.entries = append(p.entries, Entry{
		State:   EntryPending,
		LocalID: localID,
		Message: models.Message{
			ConversationID: conversationID,
			SenderID:       p.userID,
			Content:        content,
			CreatedAt:      time.Now(),
		},
	})
	p.mu.Unlock()
	p.notifyUpdate()

	msg, err := p.api.SendMessage(ctx, conversationID, content)

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		if err != nil {
			return models.Message{}, err
		}
		return msg, nil
	}
	if err != nil {
		p.removePendingLocked(localID)
		p.mu.Unlock()
		p.notifyUpdate()
		return models.Message{}, err
	}

	p.confirmPendingLocked(localID, msg)
	p.mu.Unlock()
	p.notifyUpdate()
	return msg, nil
}

// Stop cancels the polling loop and waits for it to exit. Responses landing
// after Stop are discarded. Safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	if p.done != nil {
		<-p.done
	}
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	p.mu.Lock()
	conversationID := p.conv.ID
	var after *time.Time
	if p.hasCursor {
		cursor := p.cursor
		after = &cursor
	}
	p.mu.Unlock()

	msgs, err := p.api.FetchMessages(ctx, conversationID, after)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Printf("poll fetch failed: %v", err)
		if p.onError != nil {
			p.onError(err)
		}
		return
	}

	merged, inbound := p.merge(msgs)
	if inbound {
		if _, err := p.api.MarkRead(ctx, conversationID); err != nil && ctx.Err() == nil {
			log.Printf("mark read failed: %v", err)
		}
	}
	if merged > 0 {
		p.notifyUpdate()
	}
}

// merge folds fetched messages into the entry list, deduplicating by server
// id so an overlapping fetch can never produce a duplicate visible entry.
func (p *Poller) merge(msgs []models.Message) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return 0, false
	}

	merged := 0
	inbound := false
	for _, msg := range msgs {
		if _, ok := p.seen[msg.ID]; ok {
			p.advanceCursorLocked(msg.CreatedAt)
			continue
		}
		p.entries = append(p.entries, Entry{State: EntryConfirmed, Message: msg})
		p.seen[msg.ID] = struct{}{}
		p.advanceCursorLocked(msg.CreatedAt)
		merged++
		if msg.SenderID != p.userID {
			inbound = true
		}
	}
	return merged, inbound
}

func (p *Poller) advanceCursorLocked(t time.Time) {
	if !p.hasCursor || t.After(p.cursor) {
		p.cursor = t
		p.hasCursor = true
	}
}

func (p *Poller) removePendingLocked(localID string) {
	for i, entry := range p.entries {
		if entry.State == EntryPending && entry.LocalID == localID {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return
		}
	}
}

func (p *Poller) confirmPendingLocked(localID string, msg models.Message) {
	if _, ok := p.seen[msg.ID]; ok {
		// A poll already delivered the confirmed row; drop the optimistic one.
		p.removePendingLocked(localID)
		p.advanceCursorLocked(msg.CreatedAt)
		return
	}
	for i, entry := range p.entries {
		if entry.State == EntryPending && entry.LocalID == localID {
			p.entries[i] = Entry{State: EntryConfirmed, Message: msg}
			p.seen[msg.ID] = struct{}{}
			p.advanceCursorLocked(msg.CreatedAt)
			return
		}
	}
	// Pending entry already gone; keep the confirmed message visible.
	p.entries = append(p.entries, Entry{State: EntryConfirmed, Message: msg})
	p.seen[msg.ID] = struct{}{}
	p.advanceCursorLocked(msg.CreatedAt)
}

func (p *Poller) snapshotLocked() []Entry {
	snapshot := make([]Entry, len(p.entries))
	copy(snapshot, p.entries)
	return snapshot
}

func (p *Poller) notifyUpdate() {
	if p.onUpdate == nil {
		return
	}
	p.mu.Lock()
	snapshot := p.snapshotLocked()
	stopped := p.stopped
	p.mu.Unlock()
	if stopped {
		return
	}
	p.onUpdate(snapshot)
}
