package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/dmfeed/internal/logging"
	"github.com/tOgg1/dmfeed/internal/models"
)

const defaultClientTimeout = 10 * time.Second

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// Client talks to a dmfeed server over HTTP/JSON on behalf of one user.
type Client struct {
	baseURL    *url.URL
	userID     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a client for the server at baseURL acting as userID.
func NewClient(baseURL, userID string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", baseURL)
	}
	c := &Client{
		baseURL:    u,
		userID:     strings.TrimSpace(userID),
		httpClient: &http.Client{Timeout: defaultClientTimeout},
		logger:     logging.Component("backend-http"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetUser changes the identity sent with requests.
func (c *Client) SetUser(userID string) {
	c.userID = strings.TrimSpace(userID)
}

// FetchMessages returns one page of conv, newest first.
func (c *Client) FetchMessages(ctx context.Context, conv models.ConversationID, cursor string, limit int) (models.Page, error) {
	query := url.Values{}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/conversations/" + url.PathEscape(conv.A) + "/" + url.PathEscape(conv.B) + "/messages"

	var page models.Page
	if err := c.do(ctx, http.MethodGet, path, query, nil, &page); err != nil {
		return models.Page{}, err
	}
	for i := range page.Messages {
		page.Messages[i].Status = models.StatusConfirmed
	}
	return page, nil
}

// CreateMessage posts a new message and returns the persisted record.
func (c *Client) CreateMessage(ctx context.Context, senderID, receiverID, content string) (models.Message, error) {
	req := models.CreateMessageRequest{SenderID: senderID, ReceiverID: receiverID, Content: content}
	var msg models.Message
	if err := c.do(ctx, http.MethodPost, "/v1/messages", nil, req, &msg); err != nil {
		return models.Message{}, err
	}
	msg.Status = models.StatusConfirmed
	return msg, nil
}

// DeleteMessage deletes a message. It reports false when the server does
// not know the message.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) (bool, error) {
	err := c.do(ctx, http.MethodDelete, "/v1/messages/"+url.PathEscape(messageID), nil, nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ResolveUser looks up a user by id or username.
func (c *Client) ResolveUser(ctx context.Context, ref string) (models.User, error) {
	var user models.User
	err := c.do(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(ref), nil, nil, &user)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// ListUsers returns every known user.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, http.MethodGet, "/v1/users", nil, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser registers a user.
func (c *Client) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	var created models.User
	err := c.do(ctx, http.MethodPost, "/v1/users", nil, user, &created)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
		return models.User{}, ErrUserExists
	}
	return created, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set(models.UserIDHeader, c.userID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call server: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload models.ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
