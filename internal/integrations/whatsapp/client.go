package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultBaseURL = "https://graph.facebook.com/v19.0"

// maxMediaBytes caps media downloads; WhatsApp images are at most 5 MB.
const maxMediaBytes = 16 << 20

// credentialsPayload is the expected JSON shape stored in SSM.
type credentialsPayload struct {
	Token         string `json:"token"`
	PhoneNumberID string `json:"phone_number_id"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("whatsapp: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client sends messages and reactions through the WhatsApp Cloud API and
// downloads media attached to incoming messages.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string

	credsOnce sync.Once
	creds     credentialsPayload
	credsErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client whose access token and phone number id are read
// from <paramPrefix>/whatsapp on first use.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("whatsapp: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("whatsapp: parameter prefix must not be empty")
	}
	c := &Client{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveCredentials(ctx context.Context) (credentialsPayload, error) {
	c.credsOnce.Do(func() {
		c.creds, c.credsErr = fetchCredentials(ctx, c.getter, c.paramPrefix+"/whatsapp")
	})
	return c.creds, c.credsErr
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (c *Client) endpoint(path string) string {
	base := strings.TrimRight(c.baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return base + "/" + strings.TrimLeft(path, "/")
}

type textBody struct {
	Body string `json:"body"`
}

type reactionBody struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type messageContext struct {
	MessageID string `json:"message_id"`
}

type outgoingMessage struct {
	MessagingProduct string          `json:"messaging_product"`
	RecipientType    string          `json:"recipient_type"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Context          *messageContext `json:"context,omitempty"`
	Text             *textBody       `json:"text,omitempty"`
	Reaction         *reactionBody   `json:"reaction,omitempty"`
}

// SendText sends body to the given number.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	return c.send(ctx, outgoingMessage{Type: "text", To: to, Text: &textBody{Body: body}})
}

// Reply sends body to the given number quoting the message it answers.
func (c *Client) Reply(ctx context.Context, to, messageID, body string) error {
	msg := outgoingMessage{Type: "text", To: to, Text: &textBody{Body: body}}
	if messageID != "" {
		msg.Context = &messageContext{MessageID: messageID}
	}
	return c.send(ctx, msg)
}

// React attaches emoji to a received message.
func (c *Client) React(ctx context.Context, to, messageID, emoji string) error {
	if messageID == "" {
		return errors.New("whatsapp: message id is required to react")
	}
	return c.send(ctx, outgoingMessage{Type: "reaction", To: to, Reaction: &reactionBody{MessageID: messageID, Emoji: emoji}})
}

func (c *Client) send(ctx context.Context, msg outgoingMessage) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("whatsapp: recipient is required")
	}
	creds, err := c.resolveCredentials(ctx)
	if err != nil {
		return err
	}
	msg.MessagingProduct = "whatsapp"
	msg.RecipientType = "individual"

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("whatsapp: marshal %s message: %w", msg.Type, err)
	}
	url := c.endpoint(creds.PhoneNumberID + "/messages")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("whatsapp: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.Token)

	if _, err := c.do(req, url, 1<<20); err != nil {
		return fmt.Errorf("whatsapp: send %s: %w", msg.Type, err)
	}
	return nil
}

type mediaInfo struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// DownloadMedia resolves a media id to its temporary URL and fetches the
// bytes. It returns the content and its MIME type.
func (c *Client) DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	if strings.TrimSpace(mediaID) == "" {
		return nil, "", errors.New("whatsapp: media id is required")
	}
	creds, err := c.resolveCredentials(ctx)
	if err != nil {
		return nil, "", err
	}

	url := c.endpoint(mediaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("whatsapp: create media request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.Token)
	raw, err := c.do(req, url, 1<<20)
	if err != nil {
		return nil, "", fmt.Errorf("whatsapp: resolve media: %w", err)
	}
	var info mediaInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, "", fmt.Errorf("whatsapp: decode media info: %w", err)
	}
	if info.URL == "" {
		return nil, "", errors.New("whatsapp: media info has no url")
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, info.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("whatsapp: create download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.Token)
	data, err := c.do(req, info.URL, maxMediaBytes)
	if err != nil {
		return nil, "", fmt.Errorf("whatsapp: download media: %w", err)
	}
	return data, info.MimeType, nil
}

func (c *Client) do(req *http.Request, url string, limit int64) ([]byte, error) {
	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: url, Body: string(buf)}
	}
	buf, err := io.ReadAll(io.LimitReader(res.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

func fetchCredentials(ctx context.Context, getter Getter, name string) (credentialsPayload, error) {
	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return credentialsPayload{}, fmt.Errorf("whatsapp: fetch credentials from paramstore: %w", err)
	}
	var cp credentialsPayload
	if err := json.Unmarshal([]byte(raw), &cp); err != nil {
		return credentialsPayload{}, fmt.Errorf("whatsapp: unmarshal credentials as JSON: %w", err)
	}
	if cp.Token == "" || cp.PhoneNumberID == "" {
		return credentialsPayload{}, errors.New("whatsapp: credentials are incomplete")
	}
	return cp, nil
}
