package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"marketchat-service/internal/mocks"
	"marketchat-service/internal/models"
	"marketchat-service/internal/repositories"
)

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/conversations/:conversation_id/messages", handler.PostMessage)
	r.GET("/conversations/:conversation_id/messages", handler.FetchMessages)
	r.POST("/conversations/:conversation_id/read", handler.MarkRead)
	r.GET("/conversations/:conversation_id/unread", handler.UnreadCount)
	return r
}

func participantConversation() models.Conversation {
	return models.Conversation{ID: 5, RequestID: 4, CustomerID: 1, ShopkeeperID: 2}
}

func TestPostMessageSuccess(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(convRepo, messageRepo, nil)
	router := setupMessageRouter(handler)

	convRepo.On("GetConversation", mock.Anything, 5).Return(participantConversation(), nil).Once()
	created := models.Message{ID: 7, ConversationID: 5, SenderID: 1, Content: "We have it"}
	messageRepo.On("CreateMessage", mock.Anything, 5, 1, "We have it").Return(created, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", bytes.NewBufferString(`{"content":"We have it"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var msg models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	assert.Equal(t, 7, msg.ID)
	assert.False(t, msg.Read)

	convRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestPostMessageTrimsContent(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(convRepo, messageRepo, nil)
	router := setupMessageRouter(handler)

	convRepo.On("GetConversation", mock.Anything, 5).Return(participantConversation(), nil).Once()
	messageRepo.On("CreateMessage", mock.Anything, 5, 1, "hello").Return(models.Message{ID: 8, Content: "hello"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", bytes.NewBufferString(`{"content":"  hello  "}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestPostMessageEmptyContent(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(convRepo, messageRepo, nil)
	router := setupMessageRouter(handler)

	convRepo.On("GetConversation", mock.Anything, 5).Return(participantConversation(), nil).Twice()

	// Empty string fails required binding; whitespace fails the trim check.
	for _, body := range []string{`{"content":""}`, `{"content":"   "}`} {
		req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}

	messageRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPostMessageConversationNotFound(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewMessageHandler(convRepo, new(mocks.MessageRepositoryMock), nil)
	router := setupMessageRouter(handler)

	convRepo.On("GetConversation", mock.Anything, 404).Return(models.Conversation{}, repositories.ErrConversationNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/404/messages", bytes.NewBufferString(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	convRepo.AssertExpectations(t)
}

func TestPostMessageInsertHitsMissingConversation(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(convRepo, messageRepo, nil)
	router := setupMessageRouter(handler)

	// The participant check passed but the insert's foreign key did not;
	// the sentinel still surfaces as 404, not a generic 500.
	convRepo.On("GetConversation", mock.Anything, 5).Return(participantConversation(), nil).Once()
	messageRepo.On("CreateMessage", mock.Anything, 5, 1, "hi").
		Return(models.Message{}, repositories.ErrConversationNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", bytes.NewBufferString(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestPostMessageNonParticipant(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewMessageHandler(convRepo, new(mocks.MessageRepositoryMock), nil)
	router := setupMessageRouter(handler)

	conv := models.Conversation{ID: 5, CustomerID: 8, ShopkeeperID: 9}
	convRepo.On("GetConversation", mock.Anything, 5).Return(conv, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", bytes.NewBufferString(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestFetchMessagesWithCursor(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(convRepo, messageRepo, nil)
	router := setupMessageRouter(handler)

	cursor := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	newer := models.Message{ID: 2, ConversationID: 5, SenderID: 2, Content: "still there?", CreatedAt: cursor.Add(5 * time.Second)}

	convRepo.On("GetConversation", mock.Anything, 5).Return(participantConversation(), nil).Once()
	messageRepo.On("ListMessagesSince", mock.Anything, 5, mock.MatchedBy(func(after *time.Time) bool {
		return after != nil && after.Equal(cursor)
	})).Return([]models.Message{newer}, nil).Once()

	target := "/conversations/5/messages?after=" + url.QueryEscape(cursor.Format(time.RFC3339Nano))
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, 2, resp.Messages[0].ID)

	messageRepo.AssertExpectations(t)
}

func TestFetchMessagesNoCursorReturnsAll(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(convRepo, messageRepo, nil)
	router := setupMessageRouter(handler)

	convRepo.On("GetConversation", mock.Anything, 5).Return(participantConversation(), nil).Once()
	messageRepo.On("ListMessagesSince", mock.Anything, 5, (*time.Time)(nil)).
		Return([]models.Message{{ID: 1}, {ID: 2}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestFetchMessagesEmptyIsArray(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(convRepo, messageRepo, nil)
	router := setupMessageRouter(handler)

	convRepo.On("GetConversation", mock.Anything, 5).Return(participantConversation(), nil).Once()
	messageRepo.On("ListMessagesSince", mock.Anything, 5, (*time.Time)(nil)).Return([]models.Message{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"messages":[]`)
}

func TestFetchMessagesInvalidCursor(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewMessageHandler(convRepo, new(mocks.MessageRepositoryMock), nil)
	router := setupMessageRouter(handler)

	convRepo.On("GetConversation", mock.Anything, 5).Return(participantConversation(), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/5/messages?after=yesterday", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFetchMessagesUnknownConversation(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewMessageHandler(convRepo, new(mocks.MessageRepositoryMock), nil)
	router := setupMessageRouter(handler)

	convRepo.On("GetConversation", mock.Anything, 123).Return(models.Conversation{}, repositories.ErrConversationNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/123/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// A missing conversation is a 404, never an empty array.
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"messages"`)
}

func TestFetchMessagesInvalidID(t *testing.T) {
	handler := NewMessageHandler(new(mocks.ConversationRepositoryMock), new(mocks.MessageRepositoryMock), nil)
	router := setupMessageRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/conversations/abc/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkReadIdempotent(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(convRepo, messageRepo, nil)
	router := setupMessageRouter(handler)

	convRepo.On("GetConversation", mock.Anything, 5).Return(participantConversation(), nil).Twice()
	messageRepo.On("MarkRead", mock.Anything, 5, 1).Return(int64(3), nil).Once()
	messageRepo.On("MarkRead", mock.Anything, 5, 1).Return(int64(0), nil).Once()

	for i, want := range []string{`"marked":3`, `"marked":0`} {
		req := httptest.NewRequest(http.MethodPost, "/conversations/5/read", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, "call %d", i)
		assert.Contains(t, rec.Body.String(), want)
	}

	messageRepo.AssertExpectations(t)
}

func TestUnreadCount(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(convRepo, messageRepo, nil)
	router := setupMessageRouter(handler)

	convRepo.On("GetConversation", mock.Anything, 5).Return(participantConversation(), nil).Once()
	messageRepo.On("UnreadCount", mock.Anything, 5, 1).Return(2, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/5/unread", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)
	messageRepo.AssertExpectations(t)
}
