package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"marketchat-service/internal/observability"
	"marketchat-service/internal/repositories"
	"marketchat-service/internal/telemetry"
)

// MessageHandler manages the message relay and read-state endpoints.
type MessageHandler struct {
	convRepo    repositories.ConversationRepository
	messageRepo repositories.MessageRepository
	audit       *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(convRepo repositories.ConversationRepository, messageRepo repositories.MessageRepository, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		audit:       audit,
	}
}

// PostMessage appends a message to the conversation.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	conv, ok := requireParticipant(c, h.convRepo)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message content is empty"})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), conv.ID, userID, content)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		emitAudit(c, h.audit, "ERROR", "message store failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	observability.IncMessagesSent()
	emitAudit(c, h.audit, "INFO", "Message sent")
	c.JSON(http.StatusCreated, msg)
}

// FetchMessages returns the conversation's messages newer than the optional
// `after` cursor, oldest first. The result is always an array, possibly empty.
func (h *MessageHandler) FetchMessages(c *gin.Context) {
	conv, ok := requireParticipant(c, h.convRepo)
	if !ok {
		return
	}

	var after *time.Time
	if raw := c.Query("after"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid after cursor"})
			return
		}
		after = &parsed
	}

	msgs, err := h.messageRepo.ListMessagesSince(c.Request.Context(), conv.ID, after)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	observability.IncMessageFetch(after != nil)
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// MarkRead acknowledges every unread inbound message in the conversation.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	conv, ok := requireParticipant(c, h.convRepo)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	marked, err := h.messageRepo.MarkRead(c.Request.Context(), conv.ID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark messages read"})
		return
	}

	observability.AddMessagesMarkedRead(marked)
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

// UnreadCount reports how many inbound messages the caller has not read.
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	conv, ok := requireParticipant(c, h.convRepo)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	count, err := h.messageRepo.UnreadCount(c.Request.Context(), conv.ID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count unread messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}
