package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"marketchat-service/internal/models"
)

// APIError is a typed failure returned by the conversation service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether the error is a missing request or conversation.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsUnauthorized reports whether the caller identity was rejected.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden)
}

// IsInvalidInput reports a client-correctable request error.
func IsInvalidInput(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest
}

// ConversationView is the init response: the resolved conversation with its
// full ordered history.
type ConversationView struct {
	Conversation      models.Conversation `json:"conversation"`
	Messages          []models.Message    `json:"messages"`
	CounterpartOnline bool                `json:"counterpart_online"`
}

// SummaryView is one entry of the conversation list response.
type SummaryView struct {
	models.ConversationSummary
	CounterpartOnline bool `json:"counterpart_online"`
}

// API is an HTTP client for the conversation service.
type API struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewAPI constructs an API client with a bearer token.
func NewAPI(baseURL, token string) *API {
	return &API{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Init resolves or creates the conversation for a (request, shopkeeper) pair.
func (a *API) Init(ctx context.Context, requestID, shopkeeperID int) (ConversationView, error) {
	var view ConversationView
	body := map[string]int{"request_id": requestID, "shopkeeper_id": shopkeeperID}
	err := a.do(ctx, http.MethodPost, "/conversations/init", body, &view)
	return view, err
}

// ListConversations returns the caller's conversation summaries.
func (a *API) ListConversations(ctx context.Context) ([]SummaryView, error) {
	var resp struct {
		Conversations []SummaryView `json:"conversations"`
	}
	if err := a.do(ctx, http.MethodGet, "/conversations", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Conversations == nil {
		resp.Conversations = []SummaryView{}
	}
	return resp.Conversations, nil
}

// SendMessage appends a message and returns the server-confirmed row.
func (a *API) SendMessage(ctx context.Context, conversationID int, content string) (models.Message, error) {
	var msg models.Message
	body := map[string]string{"content": content}
	path := fmt.Sprintf("/conversations/%d/messages", conversationID)
	err := a.do(ctx, http.MethodPost, path, body, &msg)
	return msg, err
}

// FetchMessages returns messages strictly newer than the cursor, or the full
// history when after is nil.
func (a *API) FetchMessages(ctx context.Context, conversationID int, after *time.Time) ([]models.Message, error) {
	path := fmt.Sprintf("/conversations/%d/messages", conversationID)
	if after != nil {
		path += "?after=" + url.QueryEscape(after.Format(time.RFC3339Nano))
	}
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	if err := a.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Messages == nil {
		resp.Messages = []models.Message{}
	}
	return resp.Messages, nil
}

// MarkRead acknowledges inbound messages; returns how many were flipped.
func (a *API) MarkRead(ctx context.Context, conversationID int) (int64, error) {
	var resp struct {
		Marked int64 `json:"marked"`
	}
	path := fmt.Sprintf("/conversations/%d/read", conversationID)
	err := a.do(ctx, http.MethodPost, path, nil, &resp)
	return resp.Marked, err
}

// UnreadCount reports the caller's unread inbound message count.
func (a *API) UnreadCount(ctx context.Context, conversationID int) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	path := fmt.Sprintf("/conversations/%d/unread", conversationID)
	err := a.do(ctx, http.MethodGet, path, nil, &resp)
	return resp.Count, err
}

func (a *API) do(ctx context.Context, method, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error == "" {
			errBody.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: errBody.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
