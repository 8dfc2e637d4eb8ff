// Package showchat provides a client for the showfolio chat API, including
// an optimistic-send thread model and a live event channel with polling
// fallback.
package showchat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sentinel errors mirroring the server's error taxonomy.
var (
	// ErrInvalidOperation covers rejected requests: empty or oversized
	// content, self-messaging, flipping your own message's read flag.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrNotFound covers unknown conversations, projects and users, and
	// conversations the caller does not participate in.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable covers server-side storage failures and network
	// errors reaching the API at all.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Client is a showfolio chat API client.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a new chat client authenticated with the given session
// token.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// doRequest performs an HTTP request and maps error statuses onto the
// sentinel errors.
func (c *Client) doRequest(method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequest(method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &errResp)
		return nil, statusError(resp.StatusCode, errResp.Error)
	}

	return respBody, nil
}

func statusError(status int, message string) error {
	var base error
	switch {
	case status == http.StatusNotFound:
		base = ErrNotFound
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		base = ErrInvalidOperation
	case status >= 500:
		base = ErrStoreUnavailable
	default:
		base = ErrInvalidOperation
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return fmt.Errorf("%w: %s (%d)", base, message, status)
}

// Message represents a chat message.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Content        string `json:"content"`
	Timestamp      int64  `json:"ts"`
	IsRead         bool   `json:"is_read"`
	ClientRef      string `json:"client_ref,omitempty"`
}

// Conversation represents a conversation between two users about a project.
type Conversation struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	CreatorID string    `json:"creator_id"`
	SenderID  string    `json:"sender_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserProfile represents a user's public profile.
type UserProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	JoinedAt    string `json:"joined_at"`
}

// ProjectInfo represents project metadata.
type ProjectInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
}

// ConversationSummary is one inbox entry.
type ConversationSummary struct {
	Conversation Conversation `json:"conversation"`
	Counterpart  UserProfile  `json:"counterpart"`
	ProjectName  string       `json:"project_name"`
	LastMessage  *Message     `json:"last_message,omitempty"`
	UnreadCount  int          `json:"unread_count"`
}

// ResolveResponse is the response from resolving a conversation.
type ResolveResponse struct {
	Resolved     bool          `json:"resolved"`
	Conversation *Conversation `json:"conversation,omitempty"`
}

// Resolve looks up the canonical conversation for a project and counterpart.
// A Resolved of false means no conversation exists yet; it will be created
// by the first send.
func (c *Client) Resolve(projectID, counterpartID string) (*ResolveResponse, error) {
	path := fmt.Sprintf("/conversations/resolve?project=%s&with=%s", projectID, counterpartID)
	respBody, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}

	var resp ResolveResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ConversationListResponse is the inbox response.
type ConversationListResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
	Total         int                   `json:"total"`
	UnreadTotal   int                   `json:"unread_total"`
}

// ListConversations loads the authenticated user's inbox.
func (c *Client) ListConversations() (*ConversationListResponse, error) {
	respBody, err := c.doRequest("GET", "/conversations", nil)
	if err != nil {
		return nil, err
	}

	var resp ConversationListResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HistoryResponse is the response from loading a conversation's messages.
type HistoryResponse struct {
	Conversation *Conversation `json:"conversation"`
	Messages     []Message     `json:"messages"`
}

// GetHistory loads a conversation's messages in chronological order. Loading
// history marks unread counterpart messages read on the server.
func (c *Client) GetHistory(conversationID string) (*HistoryResponse, error) {
	respBody, err := c.doRequest("GET", "/conversations/"+conversationID+"/messages", nil)
	if err != nil {
		return nil, err
	}

	var resp HistoryResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendMessageRequest is the request body for sending a message.
type SendMessageRequest struct {
	ProjectID string `json:"project_id"`
	To        string `json:"to"`
	Content   string `json:"content"`
	ClientRef string `json:"client_ref,omitempty"`
}

// SendMessageResponse is the response from sending a message.
type SendMessageResponse struct {
	Message             *Message      `json:"message"`
	Conversation        *Conversation `json:"conversation"`
	ConversationCreated bool          `json:"conversation_created"`
}

// Send sends a message to a counterpart about a project. clientRef is an
// optional caller-chosen reference echoed back in the response and in
// realtime events, used to reconcile optimistic local entries.
func (c *Client) Send(projectID, to, content, clientRef string) (*SendMessageResponse, error) {
	req := SendMessageRequest{ProjectID: projectID, To: to, Content: content, ClientRef: clientRef}
	reqBody, _ := json.Marshal(req)

	respBody, err := c.doRequest("POST", "/messages", reqBody)
	if err != nil {
		return nil, err
	}

	var resp SendMessageResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MarkReadResponse is the response from marking a message read.
type MarkReadResponse struct {
	Message *Message `json:"message"`
	Changed bool     `json:"changed"`
}

// MarkRead flips a single message's read flag. Idempotent: marking an
// already-read message returns Changed false.
func (c *Client) MarkRead(messageID string) (*MarkReadResponse, error) {
	respBody, err := c.doRequest("POST", "/messages/"+messageID+"/read", nil)
	if err != nil {
		return nil, err
	}

	var resp MarkReadResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetUser loads a user's public profile.
func (c *Client) GetUser(userID string) (*UserProfile, error) {
	respBody, err := c.doRequest("GET", "/users/"+userID, nil)
	if err != nil {
		return nil, err
	}

	var resp UserProfile
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetProject loads project metadata.
func (c *Client) GetProject(projectID string) (*ProjectInfo, error) {
	respBody, err := c.doRequest("GET", "/projects/"+projectID, nil)
	if err != nil {
		return nil, err
	}

	var resp ProjectInfo
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthResponse is the response from the health endpoint.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Checks    map[string]interface{} `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// Health checks server health.
func (c *Client) Health() (*HealthResponse, error) {
	respBody, err := c.doRequest("GET", "/health", nil)
	if err != nil {
		return nil, err
	}

	var resp HealthResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
