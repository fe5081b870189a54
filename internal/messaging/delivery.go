package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/BTreeMap/ShopChat/internal/models"
)

// DefaultSendTimeout bounds every outbound call.
const DefaultSendTimeout = 30 * time.Second

// Delivery wraps a Transport and reduces every outcome to a success flag.
// Failures are logged; nothing is queued or retried.
type Delivery struct {
	transport Transport
	timeout   time.Duration
}

// DeliveryOption configures a Delivery.
type DeliveryOption func(*Delivery)

// WithSendTimeout overrides DefaultSendTimeout.
func WithSendTimeout(d time.Duration) DeliveryOption {
	return func(dl *Delivery) {
		if d > 0 {
			dl.timeout = d
		}
	}
}

// NewDelivery creates a Delivery over t.
func NewDelivery(t Transport, opts ...DeliveryOption) *Delivery {
	d := &Delivery{transport: t, timeout: DefaultSendTimeout}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// TransportName returns the wrapped transport's name.
func (d *Delivery) TransportName() string {
	if d.transport == nil {
		return "none"
	}
	return d.transport.Name()
}

// Send dispatches payload by kind.
func (d *Delivery) Send(ctx context.Context, to string, payload models.OutboundPayload) bool {
	if err := payload.Validate(); err != nil {
		slog.Error("Delivery.Send: invalid payload", "to", to, "kind", payload.Kind, "error", err)
		return false
	}
	switch payload.Kind {
	case models.OutboundTemplate:
		return d.SendTemplate(ctx, to, payload.TemplateName, payload.LanguageCode)
	case models.OutboundDocument:
		return d.SendDocument(ctx, to, payload.DocumentURL, payload.Filename, payload.Caption)
	default:
		return d.SendText(ctx, to, payload.Body)
	}
}

// SendText sends a plain text message.
func (d *Delivery) SendText(ctx context.Context, to, body string) bool {
	return d.do(ctx, "SendText", to, func(ctx context.Context, canonical string) error {
		return d.transport.SendText(ctx, canonical, body)
	})
}

// SendDocument sends a document reference.
func (d *Delivery) SendDocument(ctx context.Context, to, url, filename, caption string) bool {
	if url == "" {
		slog.Error("Delivery.SendDocument: missing document URL", "to", to)
		return false
	}
	return d.do(ctx, "SendDocument", to, func(ctx context.Context, canonical string) error {
		return d.transport.SendDocument(ctx, canonical, url, filename, caption)
	})
}

// SendTemplate sends a template; an empty language defaults to models.DefaultTemplateLanguage.
func (d *Delivery) SendTemplate(ctx context.Context, to, name, languageCode string) bool {
	if languageCode == "" {
		languageCode = models.DefaultTemplateLanguage
	}
	return d.do(ctx, "SendTemplate", to, func(ctx context.Context, canonical string) error {
		return d.transport.SendTemplate(ctx, canonical, name, languageCode)
	})
}

func (d *Delivery) do(ctx context.Context, op, to string, send func(context.Context, string) error) bool {
	if d.transport == nil {
		slog.Error("Delivery."+op+": no transport configured", "to", to)
		return false
	}
	canonical, err := CanonicalizeRecipient(to)
	if err != nil {
		slog.Error("Delivery."+op+": invalid recipient", "to", to, "error", err)
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	if err := send(ctx, canonical); err != nil {
		slog.Error("Delivery."+op+": send failed", "transport", d.transport.Name(), "to", canonical, "error", err, "elapsed", time.Since(start))
		return false
	}
	slog.Info("Delivery."+op+": sent", "transport", d.transport.Name(), "to", canonical)
	return true
}
