package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"marketchat-service/internal/models"
	"marketchat-service/internal/observability"
	"marketchat-service/internal/presence"
	"marketchat-service/internal/repositories"
	"marketchat-service/internal/telemetry"
)

// ConversationHandler manages conversation lifecycle endpoints.
type ConversationHandler struct {
	convRepo    repositories.ConversationRepository
	messageRepo repositories.MessageRepository
	requestRepo repositories.RequestRepository
	presence    presence.Store
	audit       *telemetry.AuditEmitter
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(convRepo repositories.ConversationRepository, messageRepo repositories.MessageRepository, requestRepo repositories.RequestRepository, presenceStore presence.Store, audit *telemetry.AuditEmitter) *ConversationHandler {
	return &ConversationHandler{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		requestRepo: requestRepo,
		presence:    presenceStore,
		audit:       audit,
	}
}

// InitConversation resolves or creates the conversation for a (request,
// shopkeeper) pair and returns it with its full ordered message history.
func (h *ConversationHandler) InitConversation(c *gin.Context) {
	var req struct {
		RequestID    int `json:"request_id" binding:"required"`
		ShopkeeperID int `json:"shopkeeper_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")

	// The caller must be one of the pair before anything is persisted. A
	// rejected init must leave no conversation row behind.
	reqPost, err := h.requestRepo.GetRequest(c.Request.Context(), req.RequestID)
	if err != nil {
		if errors.Is(err, repositories.ErrRequestNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load request"})
		return
	}
	if userID != req.ShopkeeperID && userID != reqPost.CustomerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return
	}

	conv, created, err := h.convRepo.GetOrCreateConversation(c.Request.Context(), req.RequestID, req.ShopkeeperID)
	if err != nil {
		if errors.Is(err, repositories.ErrRequestNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not resolve conversation"})
		return
	}
	if !conv.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return
	}

	msgs, err := h.messageRepo.ListMessagesSince(c.Request.Context(), conv.ID, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	if created {
		observability.IncConversationsCreated()
		emitAudit(c, h.audit, "INFO", "Conversation created")
	}

	counterpartOnline := false
	if h.presence != nil {
		online, err := h.presence.IsOnline(c.Request.Context(), conv.CounterpartID(userID))
		if err != nil {
			log.Printf("presence lookup failed: %v", err)
		} else {
			counterpartOnline = online
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation":       conv,
		"messages":           msgs,
		"counterpart_online": counterpartOnline,
	})
}

// ListConversations returns the caller's conversation summaries, newest
// activity first.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID := c.GetInt("userID")

	summaries, err := h.convRepo.ListConversations(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	type summaryResponse struct {
		models.ConversationSummary
		CounterpartOnline bool `json:"counterpart_online"`
	}

	responses := make([]summaryResponse, 0, len(summaries))
	for _, s := range summaries {
		online := false
		if h.presence != nil {
			if ok, err := h.presence.IsOnline(c.Request.Context(), s.CounterpartID); err == nil {
				online = ok
			}
		}
		responses = append(responses, summaryResponse{ConversationSummary: s, CounterpartOnline: online})
	}

	c.JSON(http.StatusOK, gin.H{"conversations": responses})
}

// requireParticipant loads the conversation and verifies the caller is one of
// its two participants. It writes the error response and returns ok=false on
// failure. Every conversation-scoped endpoint goes through this single check.
func requireParticipant(c *gin.Context, convRepo repositories.ConversationRepository) (models.Conversation, bool) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return models.Conversation{}, false
	}

	conv, err := convRepo.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return models.Conversation{}, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return models.Conversation{}, false
	}

	if !conv.HasParticipant(c.GetInt("userID")) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return models.Conversation{}, false
	}
	return conv, true
}
