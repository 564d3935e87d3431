// Package api is a typed HTTP client for the venturechat gateway.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrAuthExpired marks a 401/403 response. Callers end the session and
// re-authenticate; polling callers must not log it on every tick.
var ErrAuthExpired = errors.New("authentication expired")

// RequestError is a non-2xx response that is not an auth failure.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// TokenProvider supplies the current bearer token for authenticated calls.
type TokenProvider func() string

// Client talks to one gateway on behalf of one authenticated user.
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenProvider
	log     *zerolog.Logger
}

// New creates a client for the gateway at baseURL. token may be nil for
// a client used only for register/login.
func New(baseURL string, token TokenProvider, logger *zerolog.Logger) *Client {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		token:   token,
		log:     logger,
	}
}

// Message is a persisted chat message as the gateway reports it.
type Message struct {
	ID           int64     `json:"id"`
	SenderName   string    `json:"senderName"`
	ReceiverName string    `json:"receiverName"`
	Content      string    `json:"content"`
	ImageURL     string    `json:"imageUrl"`
	Timestamp    time.Time `json:"timestamp"`
	Read         bool      `json:"read"`
}

// Partner is one eligible conversation partner.
type Partner struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"displayName"`
	LogoPath    string `json:"logoPath"`
}

// UnreadEntry is one row of the unread summary.
type UnreadEntry struct {
	SenderName  string `json:"senderName"`
	UnreadCount int    `json:"unreadCount"`
}

// PresenceEntry reports a partner's connection status.
type PresenceEntry struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type credentialsRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	Password    string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type sendRequest struct {
	ReceiverName string `json:"receiverName"`
	Content      string `json:"content"`
	ImageURL     string `json:"imageUrl,omitempty"`
}

type sendResponse struct {
	SentMessage Message `json:"sentMessage"`
}

type markReadRequest struct {
	SenderName string `json:"senderName"`
}

type uploadResponse struct {
	ImageURL string `json:"imageUrl"`
}

// Register creates an account and returns its token.
func (c *Client) Register(ctx context.Context, username, displayName, password string) (string, error) {
	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/register", credentialsRequest{
		Username:    username,
		DisplayName: displayName,
		Password:    password,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Token, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", credentialsRequest{
		Username: username,
		Password: password,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Token, nil
}

// Partners lists the users the caller may open a conversation with.
func (c *Client) Partners(ctx context.Context) ([]Partner, error) {
	var partners []Partner
	if err := c.do(ctx, http.MethodGet, "/api/messages/conversable-partners", nil, &partners); err != nil {
		return nil, err
	}
	return partners, nil
}

// ConversationWith fetches the full history with one partner, oldest first.
func (c *Client) ConversationWith(ctx context.Context, partnerName string) ([]Message, error) {
	var messages []Message
	path := "/api/messages/with/" + url.PathEscape(partnerName)
	if err := c.do(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// Send persists a message to receiverName and returns the server copy.
func (c *Client) Send(ctx context.Context, receiverName, content, imageURL string) (*Message, error) {
	var resp sendResponse
	err := c.do(ctx, http.MethodPost, "/api/messages/send", sendRequest{
		ReceiverName: receiverName,
		Content:      content,
		ImageURL:     imageURL,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.SentMessage, nil
}

// MarkAsRead marks every message from senderName to the caller as read.
func (c *Client) MarkAsRead(ctx context.Context, senderName string) error {
	return c.do(ctx, http.MethodPost, "/api/messages/mark-as-read", markReadRequest{SenderName: senderName}, nil)
}

// UnreadSummary returns per-sender unread counts. The gateway omits
// senders with nothing unread.
func (c *Client) UnreadSummary(ctx context.Context) ([]UnreadEntry, error) {
	var entries []UnreadEntry
	if err := c.do(ctx, http.MethodGet, "/api/messages/my-unread-summary", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// PresenceStatus returns every partner's connection status.
func (c *Client) PresenceStatus(ctx context.Context) ([]PresenceEntry, error) {
	var entries []PresenceEntry
	if err := c.do(ctx, http.MethodGet, "/api/presence/status", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// UploadImage stores an image attachment and returns its URL.
func (c *Client) UploadImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("File", filename)
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("read upload payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finish upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/messages/upload-image", &buf)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}
	var uploaded uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	return uploaded.ImageURL, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token == nil {
		return
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		io.Copy(io.Discard, resp.Body)
		return ErrAuthExpired
	}

	var payload struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Error == "" {
		payload.Error = strings.TrimSpace(string(raw))
	}
	return &RequestError{StatusCode: resp.StatusCode, Message: payload.Error}
}
