// Package api provides the HTTP server for ShopChat.
//
// It receives WhatsApp webhooks (Cloud API and Twilio), hands each message to
// the router, and exposes a small REST surface over the catalog, the store
// profile and the conversation history.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/BTreeMap/ShopChat/internal/messaging"
	"github.com/BTreeMap/ShopChat/internal/models"
	"github.com/BTreeMap/ShopChat/internal/store"
)

// Server defaults.
const (
	DefaultAddr        = ":5000"
	DefaultReadTimeout = 15 * time.Second
	// DefaultWriteTimeout covers a synchronous webhook: one AI call plus the
	// intro and document sends of a price-list request.
	DefaultWriteTimeout    = 2 * time.Minute
	DefaultShutdownTimeout = 10 * time.Second
	// MaxWebhookBytes bounds webhook and JSON request bodies.
	MaxWebhookBytes = 1 << 20
)

// MessageRouter answers one inbound message.
type MessageRouter interface {
	Handle(ctx context.Context, msg models.InboundMessage) bool
}

// Generator produces free-text replies.
type Generator interface {
	Generate(ctx context.Context, userText, sender string) string
	AIConfigured() bool
}

// Opts holds server configuration.
type Opts struct {
	Addr            string
	VerifyToken     string // Cloud API webhook handshake token
	AppSecret       string // enables X-Hub-Signature-256 checks when set
	TwilioAuthToken string // enables X-Twilio-Signature checks when set
	PublicURL       string // external base URL used to rebuild signed Twilio URLs
	ShutdownTimeout time.Duration
	ServiceName     string
}

// Option configures the server.
type Option func(*Opts)

func WithAddr(addr string) Option { return func(o *Opts) { o.Addr = addr } }

func WithVerifyToken(token string) Option { return func(o *Opts) { o.VerifyToken = token } }

func WithAppSecret(secret string) Option { return func(o *Opts) { o.AppSecret = secret } }

// WithTwilioValidation checks Twilio signatures against publicURL + request path.
func WithTwilioValidation(authToken, publicURL string) Option {
	return func(o *Opts) {
		o.TwilioAuthToken = authToken
		o.PublicURL = publicURL
	}
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Opts) {
		if d > 0 {
			o.ShutdownTimeout = d
		}
	}
}

// Server wires the HTTP surface to the store, router and delivery.
type Server struct {
	st       store.Store
	router   MessageRouter
	delivery *messaging.Delivery
	gen      Generator
	opts     Opts
}

// NewServer creates a Server.
func NewServer(st store.Store, router MessageRouter, delivery *messaging.Delivery, gen Generator, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr, ShutdownTimeout: DefaultShutdownTimeout, ServiceName: "ShopChat"}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{st: st, router: router, delivery: delivery, gen: gen, opts: cfg}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := httprouter.New()
	r.NotFound = http.HandlerFunc(s.notFoundHandler)
	r.MethodNotAllowed = http.HandlerFunc(s.methodNotAllowedHandler)
	r.PanicHandler = s.panicHandler

	r.HandlerFunc(http.MethodGet, "/", s.rootHandler)
	r.HandlerFunc(http.MethodGet, "/health", s.healthHandler)

	r.HandlerFunc(http.MethodGet, "/webhook", s.verifyWebhookHandler)
	r.HandlerFunc(http.MethodPost, "/webhook", s.receiveWebhookHandler)
	r.HandlerFunc(http.MethodPost, "/twilio/webhook", s.twilioWebhookHandler)

	r.HandlerFunc(http.MethodPost, "/send-message", s.sendMessageHandler)
	r.HandlerFunc(http.MethodGet, "/products", s.listProductsHandler)
	r.GET("/products/:id", s.getProductHandler)
	r.HandlerFunc(http.MethodGet, "/store", s.storeHandler)
	r.GET("/conversations/:phone", s.conversationsHandler)

	r.HandlerFunc(http.MethodGet, "/test-ai", s.testAIHandler)
	r.HandlerFunc(http.MethodGet, "/test-whatsapp", s.testWhatsAppHandler)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.opts.Addr, "transport", s.delivery.TransportName())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Server.Run: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server.Run: shutdown failed", "error", err)
		return err
	}
	return nil
}
