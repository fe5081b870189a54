// Package twiliowhatsapp sends and receives WhatsApp messages through Twilio.
package twiliowhatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/twilio/twilio-go"
	twilioClient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/BTreeMap/ShopChat/internal/messaging"
	"github.com/BTreeMap/ShopChat/internal/models"
)

// SignatureHeader carries Twilio's request signature.
const SignatureHeader = "X-Twilio-Signature"

const whatsappPrefix = "whatsapp:"

var (
	ErrMissingCredentials = errors.New("account SID and auth token must be provided")
	ErrMissingFrom        = errors.New("from number must be provided")
	ErrMissingSender      = errors.New("webhook has no From field")
)

// messageCreator is the subset of the Twilio REST API used here.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Opts holds configuration options for the Twilio WhatsApp client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromWhats  string
	creator    messageCreator
}

// Option defines a configuration option for the Twilio WhatsApp client.
type Option func(*Opts)

func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromWhats sets the sending number, with or without the "whatsapp:" prefix.
func WithFromWhats(from string) Option {
	return func(o *Opts) { o.FromWhats = from }
}

func withMessageCreator(c messageCreator) Option {
	return func(o *Opts) { o.creator = c }
}

// Client wraps Twilio REST API for WhatsApp.
type Client struct {
	api       messageCreator
	fromWhats string // "whatsapp:+1234567890"
}

var _ messaging.Transport = (*Client)(nil)

// NewClient creates a Twilio client. Unset options fall back to
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromWhats == "" {
		cfg.FromWhats = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromWhats_set", cfg.FromWhats != "")

	if cfg.creator == nil && (cfg.AccountSID == "" || cfg.AuthToken == "") {
		return nil, ErrMissingCredentials
	}
	if cfg.FromWhats == "" {
		return nil, ErrMissingFrom
	}

	api := cfg.creator
	if api == nil {
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
		api = rest.Api
	}
	return &Client{api: api, fromWhats: withWhatsAppPrefix(cfg.FromWhats)}, nil
}

func withWhatsAppPrefix(number string) string {
	if strings.HasPrefix(number, whatsappPrefix) {
		return number
	}
	if !strings.HasPrefix(number, "+") {
		number = "+" + number
	}
	return whatsappPrefix + number
}

func (c *Client) Name() string { return "twilio" }

func (c *Client) newParams(to string) *twilioApi.CreateMessageParams {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(withWhatsAppPrefix(to))
	params.SetFrom(c.fromWhats)
	return params
}

func (c *Client) create(ctx context.Context, op, to string, params *twilioApi.CreateMessageParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resp, err := c.api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio "+op+" failed", "to", to, "error", err)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	slog.Debug("Twilio message sent", "op", op, "to", to, "sid", sid)
	return nil
}

// SendText sends a plain WhatsApp message.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	params := c.newParams(to)
	params.SetBody(body)
	return c.create(ctx, "SendText", to, params)
}

// SendDocument attaches the document as media, with the caption as body.
// Twilio infers the filename from the URL.
func (c *Client) SendDocument(ctx context.Context, to, url, filename, caption string) error {
	params := c.newParams(to)
	params.SetMediaUrl([]string{url})
	if caption != "" {
		params.SetBody(caption)
	}
	return c.create(ctx, "SendDocument", to, params)
}

// SendTemplate sends an approved Content template; name is its Content SID.
// Twilio binds the language to the SID, so languageCode is only logged.
func (c *Client) SendTemplate(ctx context.Context, to, name, languageCode string) error {
	params := c.newParams(to)
	params.SetContentSid(name)
	slog.Debug("Twilio SendTemplate", "to", to, "content_sid", name, "language", languageCode)
	return c.create(ctx, "SendTemplate", to, params)
}

// ParseWebhook converts an inbound Twilio form into a message. Quick-reply
// taps carry ButtonPayload and become button messages.
func ParseWebhook(form url.Values) (models.InboundMessage, error) {
	from := strings.TrimPrefix(form.Get("From"), whatsappPrefix)
	if from == "" {
		return models.InboundMessage{}, ErrMissingSender
	}
	sid := form.Get("MessageSid")
	if payload := form.Get("ButtonPayload"); payload != "" {
		title := form.Get("ButtonText")
		if title == "" {
			title = form.Get("Body")
		}
		return models.NewButtonMessage(from, sid, payload, title), nil
	}
	return models.NewTextMessage(from, sid, form.Get("Body")), nil
}

// ValidateSignature checks the X-Twilio-Signature of a form POST to fullURL.
func ValidateSignature(authToken, fullURL string, form url.Values, signature string) bool {
	if authToken == "" || signature == "" {
		return false
	}
	params := make(map[string]string, len(form))
	for k := range form {
		params[k] = form.Get(k)
	}
	validator := twilioClient.NewRequestValidator(authToken)
	return validator.Validate(fullURL, params, signature)
}
