package messaging

import (
	"context"
	"errors"
	"sync"

	"github.com/BTreeMap/ShopChat/internal/models"
)

// ErrMockSendFailed is returned by MockTransport when failures are enabled.
var ErrMockSendFailed = errors.New("mock send failed")

// SentMessage is one call recorded by MockTransport.
type SentMessage struct {
	To      string
	Payload models.OutboundPayload
}

// MockTransport records every send. It is used in tests and for dry runs.
type MockTransport struct {
	mu   sync.Mutex
	sent []SentMessage
	fail map[models.OutboundKind]bool
}

var _ Transport = (*MockTransport)(nil)

func NewMockTransport() *MockTransport {
	return &MockTransport{fail: make(map[models.OutboundKind]bool)}
}

func (m *MockTransport) Name() string { return "mock" }

// FailOn makes subsequent sends of kind fail. With no kinds, every send fails.
func (m *MockTransport) FailOn(kinds ...models.OutboundKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(kinds) == 0 {
		kinds = []models.OutboundKind{models.OutboundText, models.OutboundTemplate, models.OutboundDocument}
	}
	for _, k := range kinds {
		m.fail[k] = true
	}
}

func (m *MockTransport) record(to string, p models.OutboundPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentMessage{To: to, Payload: p})
	if m.fail[p.Kind] {
		return ErrMockSendFailed
	}
	return nil
}

func (m *MockTransport) SendText(ctx context.Context, to, body string) error {
	return m.record(to, models.TextPayload(body))
}

func (m *MockTransport) SendDocument(ctx context.Context, to, url, filename, caption string) error {
	return m.record(to, models.DocumentPayload(url, filename, caption))
}

func (m *MockTransport) SendTemplate(ctx context.Context, to, name, languageCode string) error {
	return m.record(to, models.TemplatePayload(name, languageCode))
}

// Sent returns a copy of the recorded sends, including failed ones.
func (m *MockTransport) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// Reset clears recorded sends and failure flags.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
	m.fail = make(map[models.OutboundKind]bool)
}
