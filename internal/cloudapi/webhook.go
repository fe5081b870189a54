package cloudapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/BTreeMap/ShopChat/internal/models"
)

// SignatureHeader carries the HMAC-SHA256 of the request body.
const SignatureHeader = "X-Hub-Signature-256"

// VerifyWebhook answers the subscription handshake. It returns the challenge
// and true only for mode "subscribe" with a matching, non-empty token.
func VerifyWebhook(mode, token, challenge, verifyToken string) (string, bool) {
	if mode == "subscribe" && verifyToken != "" && token == verifyToken {
		return challenge, true
	}
	return "", false
}

// VerifySignature checks a "sha256=<hex>" signature against body.
func VerifySignature(body []byte, signature, appSecret string) bool {
	const prefix = "sha256="
	if !strings.HasPrefix(signature, prefix) {
		return false
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature[len(prefix):]), []byte(computed))
}

// Sign returns the signature header value for body. Used by tests and tooling.
func Sign(body []byte, appSecret string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

type webhookPayload struct {
	Object string  `json:"object"`
	Entry  []entry `json:"entry"`
}

type entry struct {
	ID      string   `json:"id"`
	Changes []change `json:"changes"`
}

type change struct {
	Field string `json:"field"`
	Value value  `json:"value"`
}

type value struct {
	MessagingProduct string    `json:"messaging_product"`
	Messages         []message `json:"messages"`
}

type message struct {
	From        string       `json:"from"`
	ID          string       `json:"id"`
	Timestamp   string       `json:"timestamp"`
	Type        string       `json:"type"`
	Text        *textBody    `json:"text,omitempty"`
	Interactive *interactive `json:"interactive,omitempty"`
	Button      *button      `json:"button,omitempty"`
}

type interactive struct {
	Type        string       `json:"type"`
	ButtonReply *buttonReply `json:"button_reply,omitempty"`
}

type buttonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// button is a quick-reply on a template message.
type button struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

// DecodeWebhook extracts the text and button messages from a Cloud API event.
// Status updates carry no messages and decode to an empty slice. Other message
// types are skipped.
func DecodeWebhook(body []byte) ([]models.InboundMessage, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}

	var out []models.InboundMessage
	for _, e := range payload.Entry {
		for _, ch := range e.Changes {
			for _, m := range ch.Value.Messages {
				msg, ok := toInbound(m)
				if !ok {
					slog.Debug("cloudapi.DecodeWebhook: skipping unsupported message", "type", m.Type, "id", m.ID)
					continue
				}
				out = append(out, msg)
			}
		}
	}
	return out, nil
}

func toInbound(m message) (models.InboundMessage, bool) {
	var msg models.InboundMessage
	switch {
	case m.Type == "text" && m.Text != nil:
		msg = models.NewTextMessage(m.From, m.ID, m.Text.Body)
	case m.Type == "interactive" && m.Interactive != nil && m.Interactive.ButtonReply != nil:
		msg = models.NewButtonMessage(m.From, m.ID, m.Interactive.ButtonReply.ID, m.Interactive.ButtonReply.Title)
	case m.Type == "button" && m.Button != nil:
		msg = models.NewButtonMessage(m.From, m.ID, m.Button.Payload, m.Button.Text)
	default:
		return msg, false
	}
	if ts, err := strconv.ParseInt(m.Timestamp, 10, 64); err == nil {
		msg.Time = ts
	}
	return msg, true
}
