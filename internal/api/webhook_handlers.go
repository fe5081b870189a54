package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BTreeMap/ShopChat/internal/cloudapi"
	"github.com/BTreeMap/ShopChat/internal/models"
	"github.com/BTreeMap/ShopChat/internal/twiliowhatsapp"
)

// emptyTwiML acknowledges a Twilio webhook without an inline reply.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// verifyWebhookHandler answers the Cloud API subscription handshake.
func (s *Server) verifyWebhookHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, ok := cloudapi.VerifyWebhook(q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"), s.opts.VerifyToken)
	if !ok {
		slog.Warn("Server.verifyWebhookHandler: verification failed", "mode", q.Get("hub.mode"))
		writeTextResponse(w, http.StatusForbidden, "Forbidden")
		return
	}
	slog.Info("Server.verifyWebhookHandler: webhook verified")
	writeTextResponse(w, http.StatusOK, challenge)
}

// receiveWebhookHandler processes Cloud API events. Well-formed payloads are
// always acknowledged with 200 so the platform does not redeliver.
func (s *Server) receiveWebhookHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxWebhookBytes))
	if err != nil {
		slog.Warn("Server.receiveWebhookHandler: failed to read body", "error", err)
		writeTextResponse(w, http.StatusBadRequest, "Bad Request")
		return
	}
	if s.opts.AppSecret != "" && !cloudapi.VerifySignature(body, r.Header.Get(cloudapi.SignatureHeader), s.opts.AppSecret) {
		slog.Warn("Server.receiveWebhookHandler: invalid signature")
		writeTextResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	msgs, err := cloudapi.DecodeWebhook(body)
	if err != nil {
		slog.Warn("Server.receiveWebhookHandler: malformed payload", "error", err)
		writeTextResponse(w, http.StatusBadRequest, "Bad Request")
		return
	}
	slog.Debug("Server.receiveWebhookHandler: decoded payload", "messages", len(msgs))

	ctx := context.WithoutCancel(r.Context())
	for _, msg := range msgs {
		s.dispatch(ctx, msg)
	}
	writeTextResponse(w, http.StatusOK, "OK")
}

// twilioWebhookHandler processes a Twilio inbound form post.
func (s *Server) twilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxWebhookBytes)
	if err := r.ParseForm(); err != nil {
		slog.Warn("Server.twilioWebhookHandler: failed to parse form", "error", err)
		writeTextResponse(w, http.StatusBadRequest, "Bad Request")
		return
	}
	if s.opts.TwilioAuthToken != "" {
		fullURL := s.twilioSignedURL(r)
		if !twiliowhatsapp.ValidateSignature(s.opts.TwilioAuthToken, fullURL, r.PostForm, r.Header.Get(twiliowhatsapp.SignatureHeader)) {
			slog.Warn("Server.twilioWebhookHandler: invalid signature", "url", fullURL)
			writeTextResponse(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
	}

	msg, err := twiliowhatsapp.ParseWebhook(r.PostForm)
	if err != nil {
		slog.Warn("Server.twilioWebhookHandler: invalid webhook", "error", err)
		writeTextResponse(w, http.StatusBadRequest, "Bad Request")
		return
	}
	s.dispatch(context.WithoutCancel(r.Context()), msg)

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(emptyTwiML))
}

// twilioSignedURL rebuilds the absolute URL Twilio signed. PublicURL wins;
// otherwise the request host and forwarded scheme are used.
func (s *Server) twilioSignedURL(r *http.Request) string {
	if s.opts.PublicURL != "" {
		return strings.TrimRight(s.opts.PublicURL, "/") + r.URL.RequestURI()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme, _, _ = strings.Cut(proto, ",")
		scheme = strings.TrimSpace(scheme)
	}
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host, _, _ = strings.Cut(fwd, ",")
		host = strings.TrimSpace(host)
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

// Dispatch routes msg once per message id. Used by the webhook handlers and
// by transports that push messages directly (whatsmeow).
func (s *Server) Dispatch(ctx context.Context, msg models.InboundMessage) {
	s.dispatch(ctx, msg)
}

func (s *Server) dispatch(ctx context.Context, msg models.InboundMessage) {
	if msg.MessageID != "" && s.st != nil {
		fresh, err := s.st.RecordInbound(msg.MessageID, msg.From)
		if err != nil {
			slog.Error("Server.dispatch: dedup lookup failed, processing anyway", "message_id", msg.MessageID, "error", err)
		} else if !fresh {
			slog.Info("Server.dispatch: duplicate message skipped", "message_id", msg.MessageID, "from", msg.From)
			return
		}
	}
	if !s.router.Handle(ctx, msg) {
		slog.Warn("Server.dispatch: reply not delivered", "message_id", msg.MessageID, "from", msg.From)
	}
}
