package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/BTreeMap/ShopChat/internal/cloudapi"
	"github.com/BTreeMap/ShopChat/internal/genai"
	"github.com/BTreeMap/ShopChat/internal/messaging"
	"github.com/BTreeMap/ShopChat/internal/models"
	"github.com/BTreeMap/ShopChat/internal/responder"
	"github.com/BTreeMap/ShopChat/internal/router"
	"github.com/BTreeMap/ShopChat/internal/store"
	"github.com/BTreeMap/ShopChat/internal/testutil"
)

const (
	testVerifyToken = "verify-me"
	testCustomer    = "5491122334455"
	aiReply         = "¡Hola! Sí, tenemos Nike en talle 40."
)

type testServer struct {
	server    *Server
	handler   http.Handler
	store     store.Store
	transport *messaging.MockTransport
	completer *testutil.FakeCompleter
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()
	st := testutil.SeededStore(t, 6)
	return newTestServerWithStore(t, st, opts...)
}

func newTestServerWithStore(t *testing.T, st store.Store, opts ...Option) *testServer {
	t.Helper()
	completer := testutil.NewFakeCompleter(aiReply)
	transport := messaging.NewMockTransport()
	delivery := messaging.NewDelivery(transport)
	gen := responder.NewGenerator(st, completer)
	rt := router.New(gen, delivery, st, router.WithPriceList(router.PriceList{URL: "https://example.com/lista.pdf"}))
	opts = append([]Option{WithVerifyToken(testVerifyToken)}, opts...)
	srv := NewServer(st, rt, delivery, gen, opts...)
	return &testServer{server: srv, handler: srv.Handler(), store: st, transport: transport, completer: completer}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	return ts.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func textWebhook(id, from, body string) []byte {
	return []byte(fmt.Sprintf(`{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"field":"messages","value":{
		"messaging_product":"whatsapp","messages":[{"from":%q,"id":%q,"timestamp":"1700000000","type":"text","text":{"body":%q}}]}}]}]}`,
		from, id, body))
}

func postWebhook(body []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestWriteTimeoutCoversSlowestReply(t *testing.T) {
	slowest := genai.DefaultTimeout + 2*messaging.DefaultSendTimeout
	if DefaultWriteTimeout <= slowest {
		t.Errorf("DefaultWriteTimeout %s must exceed one AI call and two sends (%s)", DefaultWriteTimeout, slowest)
	}
	if DefaultWriteTimeout <= cloudapi.DefaultTimeout+genai.DefaultTimeout {
		t.Errorf("DefaultWriteTimeout %s must exceed an AI call plus a Cloud API send", DefaultWriteTimeout)
	}
}

func TestRootHandler(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.get(t, "/")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "root")
	resp := testutil.AssertJSONResponse(t, rr, "success")
	result := resp["result"].(map[string]interface{})
	if result["store"] != "Zapatillas Dolores" || result["transport"] != "mock" {
		t.Errorf("unexpected banner %v", result)
	}
}

func TestHealthHandler(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.get(t, "/health")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "health")
	resp := testutil.AssertJSONResponse(t, rr, "success")
	result := resp["result"].(map[string]interface{})
	if result["store_loaded"] != true || result["products"] != float64(6) || result["ai_configured"] != true {
		t.Errorf("unexpected health result %v", result)
	}
}

func TestHealthHandlerEmptyStore(t *testing.T) {
	ts := newTestServerWithStore(t, store.NewInMemoryStore())
	rr := ts.get(t, "/health")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "health empty store")
	resp := testutil.AssertJSONResponse(t, rr, "success")
	if resp["result"].(map[string]interface{})["store_loaded"] != false {
		t.Error("expected store_loaded false")
	}
}

func TestVerifyWebhookHandler(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.get(t, "/webhook?hub.mode=subscribe&hub.verify_token="+testVerifyToken+"&hub.challenge=12345")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "valid handshake")
	if rr.Body.String() != "12345" {
		t.Errorf("challenge = %q", rr.Body.String())
	}

	rr = ts.get(t, "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345")
	testutil.AssertHTTPStatus(t, http.StatusForbidden, rr.Code, "wrong token")

	rr = ts.get(t, "/webhook")
	testutil.AssertHTTPStatus(t, http.StatusForbidden, rr.Code, "no params")
}

func TestReceiveWebhookText(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(postWebhook(textWebhook("wamid.1", testCustomer, "¿Tienen Nike talle 40?")))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "webhook")
	if rr.Body.String() != "OK" {
		t.Errorf("body = %q", rr.Body.String())
	}

	sent := ts.transport.Sent()
	if len(sent) != 1 || sent[0].Payload.Body != aiReply {
		t.Fatalf("unexpected sends %+v", sent)
	}
	if ts.completer.Calls() != 1 {
		t.Errorf("expected 1 AI call, got %d", ts.completer.Calls())
	}
	testutil.AssertConversationCount(t, ts.store, testCustomer, 1)
}

func TestReceiveWebhookDeduplicates(t *testing.T) {
	ts := newTestServer(t)
	body := textWebhook("wamid.dup", testCustomer, "hola")
	for i := 0; i < 3; i++ {
		rr := ts.do(postWebhook(body))
		testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "redelivery")
	}
	if n := len(ts.transport.Sent()); n != 1 {
		t.Errorf("expected 1 reply for a redelivered message, got %d", n)
	}
}

func TestReceiveWebhookDocumentRequest(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(postWebhook(textWebhook("wamid.2", testCustomer, "Pasame la lista de precios")))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "document webhook")
	sent := ts.transport.Sent()
	if len(sent) != 2 || sent[1].Payload.Kind != models.OutboundDocument {
		t.Fatalf("expected intro + document, got %+v", sent)
	}
	if ts.completer.Calls() != 0 {
		t.Error("document requests must not call the AI")
	}
}

func TestReceiveWebhookButton(t *testing.T) {
	ts := newTestServer(t)
	body := []byte(`{"entry":[{"changes":[{"value":{"messages":[{"from":"` + testCustomer + `","id":"wamid.b","type":"interactive",
		"interactive":{"type":"button_reply","button_reply":{"id":"horarios","title":"Horarios"}}}]}}]}]}`)
	rr := ts.do(postWebhook(body))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "button webhook")
	sent := ts.transport.Sent()
	if len(sent) != 1 || !strings.Contains(sent[0].Payload.Body, "Horarios de Atención") {
		t.Fatalf("unexpected sends %+v", sent)
	}
}

func TestReceiveWebhookStatusOnly(t *testing.T) {
	ts := newTestServer(t)
	body := []byte(`{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.1","status":"delivered"}]}}]}]}`)
	rr := ts.do(postWebhook(body))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "status webhook")
	if len(ts.transport.Sent()) != 0 {
		t.Error("status updates must not produce replies")
	}
}

func TestReceiveWebhookDeliveryFailureStillOK(t *testing.T) {
	ts := newTestServer(t)
	ts.transport.FailOn()
	rr := ts.do(postWebhook(textWebhook("wamid.3", testCustomer, "hola")))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "delivery failure")
}

func TestReceiveWebhookMalformed(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(postWebhook([]byte(`{"entry":[`)))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "malformed")
	if len(ts.transport.Sent()) != 0 {
		t.Error("nothing should be sent for a malformed payload")
	}
}

func TestReceiveWebhookSignature(t *testing.T) {
	ts := newTestServer(t, WithAppSecret("app-secret"))
	body := textWebhook("wamid.sig", testCustomer, "hola")

	rr := ts.do(postWebhook(body))
	testutil.AssertHTTPStatus(t, http.StatusUnauthorized, rr.Code, "unsigned")

	req := postWebhook(body)
	req.Header.Set(cloudapi.SignatureHeader, cloudapi.Sign(body, "app-secret"))
	rr = ts.do(req)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "signed")
	if len(ts.transport.Sent()) != 1 {
		t.Errorf("expected 1 reply, got %d", len(ts.transport.Sent()))
	}
}

func twilioForm(body string) url.Values {
	form := url.Values{}
	form.Set("From", "whatsapp:+"+testCustomer)
	form.Set("Body", body)
	form.Set("MessageSid", "SM"+strings.ReplaceAll(body, " ", ""))
	return form
}

func postTwilio(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func twilioSignature(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	data := fullURL
	for _, k := range keys {
		data += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestTwilioWebhook(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(postTwilio(twilioForm("hola")))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "twilio webhook")
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/xml") {
		t.Errorf("Content-Type = %q", rr.Header().Get("Content-Type"))
	}
	sent := ts.transport.Sent()
	if len(sent) != 1 || sent[0].To != testCustomer {
		t.Fatalf("unexpected sends %+v", sent)
	}
}

func TestTwilioWebhookSignature(t *testing.T) {
	ts := newTestServer(t, WithTwilioValidation("twilio-token", "https://bot.example.com"))
	form := twilioForm("hola")

	rr := ts.do(postTwilio(form))
	testutil.AssertHTTPStatus(t, http.StatusUnauthorized, rr.Code, "unsigned twilio")

	req := postTwilio(form)
	req.Header.Set("X-Twilio-Signature", twilioSignature("twilio-token", "https://bot.example.com/twilio/webhook", form))
	rr = ts.do(req)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "signed twilio")
}

func TestTwilioWebhookSignatureWithoutPublicURL(t *testing.T) {
	ts := newTestServer(t, WithTwilioValidation("twilio-token", ""))
	form := twilioForm("hola")
	signature := twilioSignature("twilio-token", "https://bot.example.com/twilio/webhook", form)

	// Behind a TLS-terminating proxy: plain HTTP to the app, forwarded scheme set.
	req := postTwilio(form)
	req.Host = "bot.example.com"
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("X-Twilio-Signature", signature)
	rr := ts.do(req)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "signed twilio behind proxy")
	if len(ts.transport.Sent()) != 1 {
		t.Fatalf("expected a reply, got %d sends", len(ts.transport.Sent()))
	}

	// Direct TLS with the absolute URL in the request line.
	direct := httptest.NewRequest(http.MethodPost, "https://bot.example.com/twilio/webhook", strings.NewReader(form.Encode()))
	direct.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	direct.Header.Set("X-Twilio-Signature", signature)
	rr = ts.do(direct)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "signed twilio over TLS")

	other := postTwilio(form)
	other.Host = "evil.example.com"
	other.Header.Set("X-Forwarded-Proto", "https")
	other.Header.Set("X-Twilio-Signature", signature)
	rr = ts.do(other)
	testutil.AssertHTTPStatus(t, http.StatusUnauthorized, rr.Code, "signature for another host")
}

func TestTwilioWebhookMissingSender(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(postTwilio(url.Values{"Body": {"hola"}}))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "twilio missing From")
}

func TestUnknownRouteAndMethod(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.get(t, "/nope")
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "unknown route")
	testutil.AssertJSONResponse(t, rr, "error")

	rr = ts.do(httptest.NewRequest(http.MethodDelete, "/products", nil))
	testutil.AssertHTTPStatus(t, http.StatusMethodNotAllowed, rr.Code, "wrong method")
}
