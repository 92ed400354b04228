// Package rest is the HTTP collaborator boundary: initial conversation
// population, history fetch, direct-conversation creation, deletion, and
// attachment upload. The engine's store is the only consumer of the data
// it returns.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pulsechat/pulsechat-go/internal/model"
	"github.com/pulsechat/pulsechat-go/internal/service"
)

const defaultTimeout = 30 * time.Second

// Client is the chat server's HTTP API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// NewClient creates an HTTP client for the chat server API.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken updates the bearer token after a refresh.
func (c *Client) SetToken(token string) {
	c.token = token
}

// ConversationsByUser fetches the authenticated user's conversations.
func (c *Client) ConversationsByUser(ctx context.Context) ([]model.Conversation, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/conversation/by-user", nil)
	if err != nil {
		return nil, err
	}
	var out []model.Conversation
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	return out, nil
}

// MessagesByConversation fetches a conversation's message history in
// server order.
func (c *Client) MessagesByConversation(ctx context.Context, conversationID int64) ([]model.Message, error) {
	path := "/conversation/obtain-messages/" + strconv.FormatInt(conversationID, 10)
	data, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var out []model.Message
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return out, nil
}

// GetOrCreateDirect returns the direct conversation with a friend,
// creating it server-side if needed.
func (c *Client) GetOrCreateDirect(ctx context.Context, friendID int64) (model.Conversation, error) {
	body := map[string]int64{"friendId": friendID}
	data, err := c.doRequest(ctx, http.MethodPost, "/conversation/direct", body)
	if err != nil {
		return model.Conversation{}, err
	}
	var out model.Conversation
	if err := json.Unmarshal(data, &out); err != nil {
		return model.Conversation{}, fmt.Errorf("decode conversation: %w", err)
	}
	return out, nil
}

// DeleteConversation deletes a conversation server-side. The caller must
// also purge the store's cache entry.
func (c *Client) DeleteConversation(ctx context.Context, conversationID int64) error {
	path := "/conversation/" + strconv.FormatInt(conversationID, 10)
	_, err := c.doRequest(ctx, http.MethodDelete, path, nil)
	return err
}

// UploadAttachment uploads one file as multipart form data and returns its
// stored reference.
func (c *Client) UploadAttachment(ctx context.Context, file service.File) (model.Attachment, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("files", file.Name)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return model.Attachment{}, fmt.Errorf("write form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return model.Attachment{}, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/attachment/upload", &buf)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return model.Attachment{}, fmt.Errorf("upload failed: HTTP %d: %s", resp.StatusCode, data)
	}

	var out []model.Attachment
	if err := json.Unmarshal(data, &out); err != nil {
		return model.Attachment{}, fmt.Errorf("decode attachments: %w", err)
	}
	if len(out) == 0 {
		return model.Attachment{}, fmt.Errorf("upload returned no attachment")
	}
	return out[0], nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode, data)
	}
	return data, nil
}
