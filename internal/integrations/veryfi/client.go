package veryfi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"wa-bot/internal/domain"
)

const defaultBaseURL = "https://api.veryfi.com/api/v8"

// documentRequest is the request shape for the partner documents endpoint.
type documentRequest struct {
	FileData          string   `json:"file_data"`
	FileName          string   `json:"file_name"`
	Categories        []string `json:"categories"`
	Tags              []string `json:"tags"`
	DocumentType      string   `json:"document_type"`
	AutoDelete        bool     `json:"auto_delete"`
	BoostMode         bool     `json:"boost_mode"`
	ConfidenceDetails bool     `json:"confidence_details"`
	BoundingBoxes     bool     `json:"bounding_boxes"`
}

// credentialsPayload is the expected JSON shape stored in SSM.
type credentialsPayload struct {
	ClientID      string `json:"client_id"`
	Authorization string `json:"authorization"`
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
	return fmt.Sprintf("veryfi: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client extracts receipt data from images through the Veryfi OCR API.
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

// NewClient creates a Client whose credentials are read from
// <paramPrefix>/veryfi on first use.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("veryfi: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("veryfi: parameter prefix must not be empty")
	}
	c := &Client{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
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
		c.creds, c.credsErr = fetchCredentials(ctx, c.getter, c.paramPrefix+"/veryfi")
	})
	return c.creds, c.credsErr
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func documentsURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return base + "/partner/documents"
}

// ProcessReceipt uploads image and returns the extracted receipt.
func (c *Client) ProcessReceipt(ctx context.Context, image []byte, fileName string) (domain.Receipt, error) {
	if len(image) == 0 {
		return domain.Receipt{}, errors.New("veryfi: image must not be empty")
	}
	if strings.TrimSpace(fileName) == "" {
		return domain.Receipt{}, errors.New("veryfi: file name must not be empty")
	}

	creds, err := c.resolveCredentials(ctx)
	if err != nil {
		return domain.Receipt{}, err
	}

	body, err := json.Marshal(documentRequest{
		FileData:          base64.StdEncoding.EncodeToString(image),
		FileName:          fileName,
		Categories:        []string{},
		Tags:              []string{"whatsapp"},
		DocumentType:      "receipt",
		ConfidenceDetails: true,
	})
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("veryfi: marshal request: %w", err)
	}

	url := documentsURL(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("veryfi: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("CLIENT-ID", creds.ClientID)
	req.Header.Set("Authorization", "apikey "+creds.Authorization)

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("veryfi: request failed: %w", err)
	}

	var doc documentResponse
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.Receipt{}, fmt.Errorf("veryfi: decode response: %w", err)
	}
	return doc.receipt(), nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: url, Body: string(buf)}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

func fetchCredentials(ctx context.Context, getter Getter, name string) (credentialsPayload, error) {
	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return credentialsPayload{}, fmt.Errorf("veryfi: fetch credentials from paramstore: %w", err)
	}
	var cp credentialsPayload
	if err := json.Unmarshal([]byte(raw), &cp); err != nil {
		return credentialsPayload{}, fmt.Errorf("veryfi: unmarshal credentials as JSON: %w", err)
	}
	if cp.ClientID == "" || cp.Authorization == "" {
		return credentialsPayload{}, errors.New("veryfi: credentials are incomplete")
	}
	return cp, nil
}
