// Package whatsapp wraps the Whatsmeow client as a linked-device transport for ShopChat.
//
// It sends text and documents and converts incoming whatsmeow events into
// inbound messages.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/BTreeMap/ShopChat/internal/messaging"
	"github.com/BTreeMap/ShopChat/internal/models"
	"github.com/BTreeMap/ShopChat/internal/store"
)

// Constants for WhatsApp client configuration
const (
	// DefaultSQLitePath is the default path for the whatsmeow device database.
	DefaultSQLitePath = "/var/lib/shopchat/whatsmeow.db"
	// JIDSuffix is the WhatsApp JID suffix for regular users
	JIDSuffix = "s.whatsapp.net"
	// MaxDocumentBytes caps documents fetched for upload.
	MaxDocumentBytes = 16 << 20
	// DefaultMimetype is used when the document server sends no content type.
	DefaultMimetype = "application/pdf"
)

var (
	ErrNotInitialized   = errors.New("whatsapp client not initialized")
	ErrDocumentTooLarge = errors.New("document exceeds size limit")
)

// Opts holds configuration options for the WhatsApp client.
type Opts struct {
	DBDSN       string // whatsmeow device database connection string
	QRPath      string // path to write login QR code
	NumericCode bool   // print the raw login code instead of a QR code
	HTTPClient  *http.Client
}

// Option defines a configuration option for the WhatsApp client.
type Option func(*Opts)

// WithDBDSN sets the whatsmeow database connection string.
func WithDBDSN(dsn string) Option {
	return func(o *Opts) {
		o.DBDSN = dsn
	}
}

// WithQRCodeOutput writes the login QR code to path instead of stdout.
func WithQRCodeOutput(path string) Option {
	return func(o *Opts) {
		o.QRPath = path
	}
}

func WithNumericCode() Option {
	return func(o *Opts) {
		o.NumericCode = true
	}
}

// WithHTTPClient sets the client used to fetch documents before upload.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) {
		o.HTTPClient = c
	}
}

// Client wraps the whatsmeow client.
type Client struct {
	waClient *whatsmeow.Client
	http     *http.Client
}

var _ messaging.Transport = (*Client)(nil)

// sqlDriver picks the database/sql driver for dsn and warns when SQLite
// foreign keys look disabled.
func sqlDriver(dsn string) string {
	if store.DetectDSNType(dsn) == "postgres" {
		return "postgres"
	}
	if !hasForeignKeys(dsn) {
		slog.Warn("SQLite database for WhatsApp does not appear to have foreign keys enabled. "+
			"Consider adding '?_foreign_keys=on' to your connection string.",
			"dsn_example", "file:"+dsn+"?_foreign_keys=on")
	}
	return "sqlite3"
}

func hasForeignKeys(dsn string) bool {
	return strings.Contains(dsn, "foreign_keys")
}

// NewClient opens the device store, logs in if needed and connects.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("WhatsApp NewClient options set", "DBDSN_set", cfg.DBDSN != "", "QRPath_set", cfg.QRPath != "", "NumericCode", cfg.NumericCode)

	dbDSN := cfg.DBDSN
	if dbDSN == "" {
		dbDSN = DefaultSQLitePath
		slog.Debug("No WhatsApp database DSN provided, using default SQLite path", "default_path", dbDSN)
	}
	dbDriver := sqlDriver(dbDSN)

	container, err := sqlstore.New(ctx, dbDriver, dbDSN, waLog.Stdout("Database", "INFO", true))
	if err != nil {
		slog.Error("Failed to initialize WhatsApp DB store", "error", err)
		return nil, fmt.Errorf("failed to initialize WhatsApp database store: %w", err)
	}
	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		slog.Error("Failed to get first device from store", "error", err)
		return nil, fmt.Errorf("failed to get device from WhatsApp store: %w", err)
	}

	waClient := whatsmeow.NewClient(deviceStore, waLog.Stdout("Client", "INFO", true))
	if waClient.Store.ID == nil {
		if err := login(ctx, waClient, cfg); err != nil {
			return nil, err
		}
	} else {
		slog.Debug("WhatsApp already logged in, connecting to server")
		if err := waClient.Connect(); err != nil {
			slog.Error("Failed to connect to WhatsApp server", "error", err)
			return nil, fmt.Errorf("failed to connect to WhatsApp server: %w", err)
		}
	}
	slog.Info("WhatsApp client connected successfully")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: messaging.DefaultSendTimeout}
	}
	return &Client{waClient: waClient, http: httpClient}, nil
}

func login(ctx context.Context, waClient *whatsmeow.Client, cfg Opts) error {
	slog.Info("WhatsApp login required; starting QR code flow")
	qrChan, _ := waClient.GetQRChannel(ctx)
	if err := waClient.Connect(); err != nil {
		slog.Error("Failed to connect to WhatsApp during login", "error", err)
		return fmt.Errorf("failed to connect to WhatsApp during login: %w", err)
	}
	writer := io.Writer(os.Stdout)
	if cfg.QRPath != "" {
		f, err := os.Create(cfg.QRPath)
		if err != nil {
			return fmt.Errorf("failed to create QR file: %w", err)
		}
		defer f.Close()
		writer = f
	}
	for evt := range qrChan {
		if evt.Event != "code" {
			slog.Info("WhatsApp login event", "event", evt.Event)
			continue
		}
		if cfg.NumericCode {
			fmt.Fprintln(writer, evt.Code)
		} else {
			qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, writer)
		}
	}
	return nil
}

func (c *Client) Name() string { return "whatsmeow" }

func (c *Client) ready() error {
	if c == nil || c.waClient == nil || c.waClient.Store == nil {
		return ErrNotInitialized
	}
	return nil
}

func recipientJID(to string) types.JID {
	return types.NewJID(strings.TrimPrefix(to, "+"), JIDSuffix)
}

func (c *Client) send(ctx context.Context, to string, msg *waE2E.Message) error {
	if _, err := c.waClient.SendMessage(ctx, recipientJID(to), msg); err != nil {
		slog.Error("Failed to send WhatsApp message", "error", err, "to", to)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	slog.Debug("WhatsApp message sent successfully", "to", to)
	return nil
}

// SendText sends a plain conversation message.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.send(ctx, to, &waE2E.Message{Conversation: proto.String(body)})
}

// SendTemplate sends the template name as text. Linked devices cannot send
// Business templates.
func (c *Client) SendTemplate(ctx context.Context, to, name, languageCode string) error {
	slog.Debug("WhatsApp SendTemplate sent as text", "to", to, "template", name, "language", languageCode)
	return c.SendText(ctx, to, name)
}

// SendDocument fetches url, uploads it to WhatsApp and sends it as a document.
func (c *Client) SendDocument(ctx context.Context, to, url, filename, caption string) error {
	if err := c.ready(); err != nil {
		return err
	}
	data, mimetype, err := fetchDocument(ctx, c.http, url)
	if err != nil {
		return err
	}
	uploaded, err := c.waClient.Upload(ctx, data, whatsmeow.MediaDocument)
	if err != nil {
		return fmt.Errorf("upload document: %w", err)
	}
	doc := &waE2E.DocumentMessage{
		URL:           proto.String(uploaded.URL),
		DirectPath:    proto.String(uploaded.DirectPath),
		MediaKey:      uploaded.MediaKey,
		FileEncSHA256: uploaded.FileEncSHA256,
		FileSHA256:    uploaded.FileSHA256,
		FileLength:    proto.Uint64(uploaded.FileLength),
		Mimetype:      proto.String(mimetype),
		FileName:      proto.String(filename),
	}
	if caption != "" {
		doc.Caption = proto.String(caption)
	}
	return c.send(ctx, to, &waE2E.Message{DocumentMessage: doc})
}

func fetchDocument(ctx context.Context, client *http.Client, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build document request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch document: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDocumentBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read document: %w", err)
	}
	if len(data) > MaxDocumentBytes {
		return nil, "", ErrDocumentTooLarge
	}
	mimetype := resp.Header.Get("Content-Type")
	if mimetype == "" || strings.HasPrefix(mimetype, "application/octet-stream") {
		mimetype = DefaultMimetype
	}
	return data, mimetype, nil
}

// OnMessage registers handler for incoming text and button messages.
// Messages sent by this device are ignored.
func (c *Client) OnMessage(handler func(models.InboundMessage)) error {
	if err := c.ready(); err != nil {
		return err
	}
	c.waClient.AddEventHandler(func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Message:
			if msg, ok := inboundFromEvent(v); ok {
				handler(msg)
			}
		case *events.Disconnected:
			slog.Warn("WhatsApp client disconnected")
		}
	})
	return nil
}

// Disconnect closes the websocket connection.
func (c *Client) Disconnect() {
	if c.ready() == nil {
		c.waClient.Disconnect()
	}
}

// inboundFromEvent converts a whatsmeow message event. Non-text messages
// (images, audio, reactions) are skipped.
func inboundFromEvent(evt *events.Message) (models.InboundMessage, bool) {
	if evt == nil || evt.Message == nil || evt.Info.IsFromMe {
		return models.InboundMessage{}, false
	}
	from := "+" + evt.Info.Sender.User
	id := string(evt.Info.ID)
	m := evt.Message

	var msg models.InboundMessage
	switch {
	case m.GetConversation() != "":
		msg = models.NewTextMessage(from, id, m.GetConversation())
	case m.GetExtendedTextMessage().GetText() != "":
		msg = models.NewTextMessage(from, id, m.GetExtendedTextMessage().GetText())
	case m.GetButtonsResponseMessage().GetSelectedButtonID() != "":
		br := m.GetButtonsResponseMessage()
		msg = models.NewButtonMessage(from, id, br.GetSelectedButtonID(), br.GetSelectedDisplayText())
	case m.GetTemplateButtonReplyMessage().GetSelectedID() != "":
		tr := m.GetTemplateButtonReplyMessage()
		msg = models.NewButtonMessage(from, id, tr.GetSelectedID(), tr.GetSelectedDisplayText())
	default:
		slog.Debug("WhatsApp ignoring non-text message", "from", from)
		return models.InboundMessage{}, false
	}
	if !evt.Info.Timestamp.IsZero() {
		msg.Time = evt.Info.Timestamp.Unix()
	}
	return msg, true
}
