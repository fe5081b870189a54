// Package cloudapi implements the WhatsApp Business Cloud API transport and
// inbound webhook decoding.
package cloudapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BTreeMap/ShopChat/internal/messaging"
)

// Defaults for the Graph API endpoint.
const (
	DefaultGraphBaseURL = "https://graph.facebook.com"
	DefaultAPIVersion   = "v18.0"
	DefaultTimeout      = 30 * time.Second
	// maxErrorBody bounds how much of an error response is kept for logs.
	maxErrorBody = 2048
)

var ErrMissingCredentials = errors.New("cloud API access token and phone number id are required")

// StatusError is returned when the Graph API answers with anything but 200.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cloud API returned status %d: %s", e.StatusCode, e.Body)
}

// Opts holds configuration for the Cloud API client.
type Opts struct {
	AccessToken   string
	PhoneNumberID string
	APIVersion    string
	BaseURL       string
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// Option configures the client.
type Option func(*Opts)

func WithAccessToken(token string) Option { return func(o *Opts) { o.AccessToken = token } }

func WithPhoneNumberID(id string) Option { return func(o *Opts) { o.PhoneNumberID = id } }

func WithAPIVersion(v string) Option { return func(o *Opts) { o.APIVersion = v } }

// WithBaseURL overrides the Graph host, e.g. for tests.
func WithBaseURL(u string) Option { return func(o *Opts) { o.BaseURL = u } }

func WithTimeout(d time.Duration) Option { return func(o *Opts) { o.Timeout = d } }

func WithHTTPClient(c *http.Client) Option { return func(o *Opts) { o.HTTPClient = c } }

// Client sends messages through POST /{version}/{phone-number-id}/messages.
type Client struct {
	token    string
	endpoint string
	http     *http.Client
}

var _ messaging.Transport = (*Client)(nil)

// NewClient creates a Cloud API client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{BaseURL: DefaultGraphBaseURL, APIVersion: DefaultAPIVersion, Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccessToken == "" || cfg.PhoneNumberID == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	endpoint := fmt.Sprintf("%s/%s/%s/messages", strings.TrimRight(cfg.BaseURL, "/"), cfg.APIVersion, cfg.PhoneNumberID)
	slog.Debug("cloudapi.NewClient: client created", "endpoint", endpoint)
	return &Client{token: cfg.AccessToken, endpoint: endpoint, http: httpClient}, nil
}

func (c *Client) Name() string { return "cloud" }

// Endpoint returns the messages URL, without credentials.
func (c *Client) Endpoint() string { return c.endpoint }

type textBody struct {
	Body string `json:"body"`
}

type templateLanguage struct {
	Code string `json:"code"`
}

type templateBody struct {
	Name     string           `json:"name"`
	Language templateLanguage `json:"language"`
}

type documentBody struct {
	Link     string `json:"link"`
	Filename string `json:"filename,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

type sendRequest struct {
	MessagingProduct string        `json:"messaging_product"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             *textBody     `json:"text,omitempty"`
	Template         *templateBody `json:"template,omitempty"`
	Document         *documentBody `json:"document,omitempty"`
}

func newRequest(to, kind string) sendRequest {
	return sendRequest{MessagingProduct: "whatsapp", To: to, Type: kind}
}

func (c *Client) SendText(ctx context.Context, to, body string) error {
	req := newRequest(to, "text")
	req.Text = &textBody{Body: body}
	return c.post(ctx, req)
}

func (c *Client) SendTemplate(ctx context.Context, to, name, languageCode string) error {
	req := newRequest(to, "template")
	req.Template = &templateBody{Name: name, Language: templateLanguage{Code: languageCode}}
	return c.post(ctx, req)
}

func (c *Client) SendDocument(ctx context.Context, to, url, filename, caption string) error {
	req := newRequest(to, "document")
	req.Document = &documentBody{Link: url, Filename: filename, Caption: caption}
	return c.post(ctx, req)
}

func (c *Client) post(ctx context.Context, payload sendRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", payload.Type, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send %s message: %w", payload.Type, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	io.Copy(io.Discard, resp.Body)
	slog.Debug("cloudapi.Client: message accepted", "type", payload.Type, "to", payload.To)
	return nil
}
