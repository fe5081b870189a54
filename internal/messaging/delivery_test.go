package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BTreeMap/ShopChat/internal/models"
)

func TestCanonicalizeRecipient(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+54 9 11 1234-5678", "5491112345678", false},
		{"5491112345678", "5491112345678", false},
		{"whatsapp:+5491112345678", "5491112345678", false},
		{"", "", true},
		{"abc", "", true},
		{"+123", "", true},
	}
	for _, tt := range tests {
		got, err := CanonicalizeRecipient(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidRecipient) {
				t.Errorf("CanonicalizeRecipient(%q): expected ErrInvalidRecipient, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("CanonicalizeRecipient(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestDeliverySendTextSuccess(t *testing.T) {
	mock := NewMockTransport()
	d := NewDelivery(mock)
	if !d.SendText(context.Background(), "+54 9 11 1234-5678", "hola") {
		t.Fatal("expected success")
	}
	sent := mock.Sent()
	if len(sent) != 1 || sent[0].To != "5491112345678" || sent[0].Payload.Body != "hola" {
		t.Errorf("unexpected sends %+v", sent)
	}
}

func TestDeliveryFailuresReduceToFalse(t *testing.T) {
	mock := NewMockTransport()
	mock.FailOn(models.OutboundDocument)
	d := NewDelivery(mock)
	ctx := context.Background()

	if !d.SendText(ctx, "5491112345678", "ok") {
		t.Error("expected text send to succeed")
	}
	if d.SendDocument(ctx, "5491112345678", "https://example.com/l.pdf", "l.pdf", "") {
		t.Error("expected document send to fail")
	}
	if d.SendDocument(ctx, "5491112345678", "", "l.pdf", "") {
		t.Error("expected missing URL to fail")
	}
	if d.SendText(ctx, "12", "x") {
		t.Error("expected invalid recipient to fail")
	}
	if len(mock.Sent()) != 2 {
		t.Errorf("expected invalid sends to never reach the transport, got %d", len(mock.Sent()))
	}
}

func TestDeliveryWithoutTransport(t *testing.T) {
	d := NewDelivery(nil)
	if d.SendText(context.Background(), "5491112345678", "x") {
		t.Error("expected failure without transport")
	}
	if d.TransportName() != "none" {
		t.Errorf("unexpected transport name %q", d.TransportName())
	}
}

func TestDeliverySendDispatchesByKind(t *testing.T) {
	mock := NewMockTransport()
	d := NewDelivery(mock)
	ctx := context.Background()
	to := "5491112345678"

	if !d.Send(ctx, to, models.TemplatePayload("hello_world", "")) {
		t.Error("expected template send to succeed")
	}
	if !d.Send(ctx, to, models.DocumentPayload("https://example.com/a.pdf", "a.pdf", "cap")) {
		t.Error("expected document send to succeed")
	}
	if d.Send(ctx, to, models.OutboundPayload{Kind: "sticker"}) {
		t.Error("expected unknown kind to fail")
	}
	sent := mock.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(sent))
	}
	if sent[0].Payload.Kind != models.OutboundTemplate || sent[0].Payload.LanguageCode != models.DefaultTemplateLanguage {
		t.Errorf("unexpected template payload %+v", sent[0].Payload)
	}
	if sent[1].Payload.Filename != "a.pdf" || sent[1].Payload.Caption != "cap" {
		t.Errorf("unexpected document payload %+v", sent[1].Payload)
	}
}

// slowTransport blocks until the context is done.
type slowTransport struct{ MockTransport }

func (s *slowTransport) SendText(ctx context.Context, to, body string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDeliveryTimeout(t *testing.T) {
	d := NewDelivery(&slowTransport{}, WithSendTimeout(20*time.Millisecond))
	start := time.Now()
	if d.SendText(context.Background(), "5491112345678", "x") {
		t.Error("expected timeout to fail the send")
	}
	if time.Since(start) > time.Second {
		t.Error("send timeout was not applied")
	}
}

func TestMockTransportReset(t *testing.T) {
	m := NewMockTransport()
	m.FailOn()
	if err := m.SendText(context.Background(), "1", "x"); !errors.Is(err, ErrMockSendFailed) {
		t.Errorf("expected ErrMockSendFailed, got %v", err)
	}
	m.Reset()
	if err := m.SendText(context.Background(), "1", "x"); err != nil {
		t.Errorf("expected success after reset, got %v", err)
	}
	if len(m.Sent()) != 1 {
		t.Errorf("expected 1 recorded send after reset, got %d", len(m.Sent()))
	}
}
