package models

import (
	"fmt"
	"strings"
	"time"
)

// ConversationRecord is one persisted exchange with a customer. Records are
// append-only and read back newest first.
type ConversationRecord struct {
	ID        int64     `json:"id,omitempty"`
	Sender    string    `json:"phone_number"`
	Message   string    `json:"mensaje"`
	Response  string    `json:"respuesta"`
	Timestamp time.Time `json:"timestamp"`
}

// InboundKind tags the shape of an inbound message.
type InboundKind string

const (
	// InboundText is a plain text message typed by the customer.
	InboundText InboundKind = "text"
	// InboundButton is a quick-reply / interactive button selection.
	InboundButton InboundKind = "button"
)

// InboundMessage is a normalized message received from the messaging platform.
// Exactly one of Text (InboundText) or ButtonID (InboundButton) is meaningful.
type InboundMessage struct {
	Kind        InboundKind `json:"kind"`
	From        string      `json:"from"`
	MessageID   string      `json:"message_id,omitempty"`
	Text        string      `json:"text,omitempty"`
	ButtonID    string      `json:"button_id,omitempty"`
	ButtonTitle string      `json:"button_title,omitempty"`
	Time        int64       `json:"time,omitempty"`
}

// NewTextMessage builds an InboundText message.
func NewTextMessage(from, messageID, text string) InboundMessage {
	return InboundMessage{Kind: InboundText, From: from, MessageID: messageID, Text: text, Time: time.Now().Unix()}
}

// NewButtonMessage builds an InboundButton message.
func NewButtonMessage(from, messageID, buttonID, title string) InboundMessage {
	return InboundMessage{Kind: InboundButton, From: from, MessageID: messageID, ButtonID: buttonID, ButtonTitle: title, Time: time.Now().Unix()}
}

// Validate rejects messages that cannot be answered.
func (m InboundMessage) Validate() error {
	if strings.TrimSpace(m.From) == "" {
		return ErrEmptySender
	}
	switch m.Kind {
	case InboundText:
		if strings.TrimSpace(m.Text) == "" {
			return ErrEmptyText
		}
	case InboundButton:
		if strings.TrimSpace(m.ButtonID) == "" {
			return ErrEmptyButtonID
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownInboundKind, m.Kind)
	}
	return nil
}

// OutboundKind tags the shape of an outbound payload.
type OutboundKind string

const (
	OutboundText     OutboundKind = "text"
	OutboundTemplate OutboundKind = "template"
	OutboundDocument OutboundKind = "document"
)

// DefaultTemplateLanguage is used when a template is sent without a language code.
const DefaultTemplateLanguage = "es"

// OutboundPayload is the content of a single outbound message.
type OutboundPayload struct {
	Kind         OutboundKind `json:"kind"`
	Body         string       `json:"body,omitempty"`
	TemplateName string       `json:"template_name,omitempty"`
	LanguageCode string       `json:"language_code,omitempty"`
	DocumentURL  string       `json:"document_url,omitempty"`
	Filename     string       `json:"filename,omitempty"`
	Caption      string       `json:"caption,omitempty"`
}

// TextPayload builds a plain text payload.
func TextPayload(body string) OutboundPayload {
	return OutboundPayload{Kind: OutboundText, Body: body}
}

// TemplatePayload builds a template payload; an empty language defaults to DefaultTemplateLanguage.
func TemplatePayload(name, languageCode string) OutboundPayload {
	if languageCode == "" {
		languageCode = DefaultTemplateLanguage
	}
	return OutboundPayload{Kind: OutboundTemplate, TemplateName: name, LanguageCode: languageCode}
}

// DocumentPayload builds a document payload.
func DocumentPayload(url, filename, caption string) OutboundPayload {
	return OutboundPayload{Kind: OutboundDocument, DocumentURL: url, Filename: filename, Caption: caption}
}

// Validate checks the fields required by the payload kind.
func (p OutboundPayload) Validate() error {
	switch p.Kind {
	case OutboundText:
		if p.Body == "" {
			return ErrEmptyText
		}
	case OutboundTemplate:
		if p.TemplateName == "" {
			return ErrMissingTemplate
		}
	case OutboundDocument:
		if p.DocumentURL == "" {
			return ErrMissingDocumentURL
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPayloadKind, p.Kind)
	}
	return nil
}
