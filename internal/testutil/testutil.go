// Package testutil provides common test fixtures and helpers for ShopChat tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/BTreeMap/ShopChat/internal/genai"
	"github.com/BTreeMap/ShopChat/internal/models"
	"github.com/BTreeMap/ShopChat/internal/store"
)

// SampleProfile returns a fully populated store profile.
func SampleProfile() models.StoreProfile {
	return models.StoreProfile{
		Name:        "Zapatillas Dolores",
		Location:    "Dolores, Buenos Aires, Argentina",
		Address:     "Calle Principal 123, Dolores, Buenos Aires",
		Phone:       "+54 9 11 1234-5678",
		Email:       "info@zapatillasdolores.com",
		Description: "Tienda especializada en zapatillas deportivas y casuales",
		Hours: models.OrderedMap{
			{Key: "lunes_viernes", Value: "9:00 - 18:00"},
			{Key: "sabados", Value: "9:00 - 13:00"},
			{Key: "domingos", Value: "Cerrado"},
		},
		PaymentMethods: []string{"Efectivo", "Tarjeta de débito", "Mercado Pago"},
		Shipping: models.OrderedMap{
			{Key: "local", Value: "Gratis"},
			{Key: "provincia", Value: "Desde $500"},
		},
		Social: map[string]string{"instagram": "@zapatillasdolores"},
	}
}

// SampleProducts returns n valid products with ids 1..n.
func SampleProducts(n int) []models.Product {
	brands := []string{"Nike", "Adidas", "Puma", "Converse", "Vans"}
	products := make([]models.Product, 0, n)
	for i := 1; i <= n; i++ {
		products = append(products, models.Product{
			ID:          int64(i),
			Name:        "Modelo " + string(rune('A'+i-1)),
			Brand:       brands[(i-1)%len(brands)],
			Category:    "urbanas",
			Price:       int64(25000 + i*1000),
			Sizes:       []string{"39", "40", "41"},
			Stock:       map[string]int{"39": 0, "40": i, "41": 1},
			Colors:      []string{"Negro", "Blanco"},
			Description: "Zapatilla de prueba",
		})
	}
	return products
}

// SeededStore returns an in-memory store holding SampleProfile and n SampleProducts.
func SeededStore(t testing.TB, n int) *store.InMemoryStore {
	t.Helper()
	st := store.NewInMemoryStore()
	if err := st.SaveStoreProfile(SampleProfile()); err != nil {
		t.Fatalf("failed to seed profile: %v", err)
	}
	if err := st.ReplaceProducts(SampleProducts(n)); err != nil {
		t.Fatalf("failed to seed products: %v", err)
	}
	return st
}

// FakeCompleter is a scripted completion backend that records prompts.
type FakeCompleter struct {
	mu      sync.Mutex
	Enabled bool
	Result  genai.Result
	Prompts []string
}

// NewFakeCompleter returns a configured completer answering with text.
func NewFakeCompleter(text string) *FakeCompleter {
	return &FakeCompleter{Enabled: true, Result: genai.Result{OK: true, Text: text}}
}

// NewFailingCompleter returns a configured completer that always fails with reason.
func NewFailingCompleter(reason string, status int) *FakeCompleter {
	return &FakeCompleter{Enabled: true, Result: genai.Result{Reason: reason, StatusCode: status}}
}

func (f *FakeCompleter) Configured() bool { return f.Enabled }

func (f *FakeCompleter) Complete(ctx context.Context, prompt string) genai.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Prompts = append(f.Prompts, prompt)
	return f.Result
}

// Calls returns how many times Complete was invoked.
func (f *FakeCompleter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Prompts)
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t testing.TB, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t testing.TB, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t testing.TB, method, url string, body interface{}) *http.Request {
	t.Helper()
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		reqBody = bytes.NewBuffer(MustMarshalJSON(t, body))
	}
	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// AssertConversationCount validates the number of records stored for sender.
func AssertConversationCount(t testing.TB, st store.Store, sender string, expected int) {
	t.Helper()
	records, err := st.GetRecentConversations(sender, 100)
	if err != nil {
		t.Fatalf("failed to get conversations: %v", err)
	}
	if len(records) != expected {
		t.Errorf("expected %d conversations for %s, got %d", expected, sender, len(records))
	}
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t testing.TB, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t testing.TB, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
