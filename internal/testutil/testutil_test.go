package testutil

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/BTreeMap/ShopChat/internal/models"
)

func TestSampleProductsAreValid(t *testing.T) {
	for _, p := range SampleProducts(7) {
		if err := p.Validate(); err != nil {
			t.Errorf("sample product %d invalid: %v", p.ID, err)
		}
	}
}

func TestSeededStore(t *testing.T) {
	st := SeededStore(t, 3)
	products, err := st.GetProducts(models.ProductFilter{})
	if err != nil || len(products) != 3 {
		t.Fatalf("expected 3 products, got %d (%v)", len(products), err)
	}
	profile, err := st.GetStoreProfile()
	if err != nil || profile == nil || profile.Name != "Zapatillas Dolores" {
		t.Errorf("unexpected profile %+v, %v", profile, err)
	}
}

func TestFakeCompleterRecordsPrompts(t *testing.T) {
	f := NewFakeCompleter("hola")
	res := f.Complete(context.Background(), "p1")
	if !res.OK || res.Text != "hola" || f.Calls() != 1 || f.Prompts[0] != "p1" {
		t.Errorf("unexpected fake completer state: %+v %v", res, f.Prompts)
	}
	failing := NewFailingCompleter("http_status", http.StatusBadGateway)
	if res := failing.Complete(context.Background(), "p"); res.OK || res.StatusCode != http.StatusBadGateway {
		t.Errorf("expected failing result, got %+v", res)
	}
}

func TestCreateHTTPRequest(t *testing.T) {
	req := CreateHTTPRequest(t, http.MethodPost, "/send-message", map[string]string{"to": "123"})
	if req.Header.Get("Content-Type") != "application/json" {
		t.Errorf("expected JSON content type, got %q", req.Header.Get("Content-Type"))
	}
	var body map[string]string
	buf, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	MustUnmarshalJSON(t, buf, &body)
	if body["to"] != "123" {
		t.Errorf("unexpected body %v", body)
	}
}
