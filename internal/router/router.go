// Package router classifies inbound messages and dispatches the reply.
package router

import (
	"context"
	"log/slog"
	"strings"

	"github.com/BTreeMap/ShopChat/internal/messaging"
	"github.com/BTreeMap/ShopChat/internal/models"
	"github.com/BTreeMap/ShopChat/internal/store"
)

// Price list document defaults.
const (
	PriceListFilename = "lista_precios.pdf"
	PriceListIntro    = "📋 Te envío nuestra lista de precios actualizada. Ahí vas a encontrar todos los productos con sus precios y descuentos disponibles."
	PriceListCaption  = "📋 Lista de Precios - Zapatillas Dolores\n\nAquí tenés todos nuestros productos con precios actualizados. ¡Cualquier consulta, avisame!"
)

// Quick-reply button ids.
const (
	ButtonCatalog   = "catalogo"
	ButtonStoreInfo = "tienda_info"
	ButtonHours     = "horarios"
	ButtonContact   = "contacto"
)

// documentKeywords trigger the price-list document instead of an AI reply.
var documentKeywords = []string{
	"lista de precios", "lista precios", "precios", "catálogo", "catalogo",
	"precio lista", "lista", "pdf", "archivo", "documento",
}

// IsDocumentRequest reports whether text asks for the price list.
func IsDocumentRequest(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range documentKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Generator produces a reply for free text.
type Generator interface {
	Generate(ctx context.Context, userText, sender string) string
}

// PriceList describes the document sent on price-list requests.
type PriceList struct {
	URL      string
	Filename string
	Caption  string
}

// Option configures a Router.
type Option func(*Router)

// WithPriceList sets the price-list document. Empty filename and caption
// keep the defaults.
func WithPriceList(pl PriceList) Option {
	return func(r *Router) {
		r.priceList.URL = pl.URL
		if pl.Filename != "" {
			r.priceList.Filename = pl.Filename
		}
		if pl.Caption != "" {
			r.priceList.Caption = pl.Caption
		}
	}
}

// Router answers one inbound message at a time.
type Router struct {
	generator Generator
	delivery  *messaging.Delivery
	store     store.Store
	priceList PriceList
}

// New creates a Router.
func New(gen Generator, delivery *messaging.Delivery, st store.Store, opts ...Option) *Router {
	r := &Router{
		generator: gen,
		delivery:  delivery,
		store:     st,
		priceList: PriceList{Filename: PriceListFilename, Caption: PriceListCaption},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle routes msg and reports whether the final reply was delivered.
func (r *Router) Handle(ctx context.Context, msg models.InboundMessage) bool {
	if err := msg.Validate(); err != nil {
		slog.Warn("Router.Handle: invalid inbound message", "from", msg.From, "kind", msg.Kind, "error", err)
		return false
	}
	slog.Info("Router.Handle: message received", "from", msg.From, "kind", msg.Kind, "message_id", msg.MessageID)

	if msg.Kind == models.InboundButton {
		return r.handleButton(ctx, msg)
	}
	if IsDocumentRequest(msg.Text) {
		return r.sendPriceList(ctx, msg.From)
	}
	reply := r.generator.Generate(ctx, msg.Text, msg.From)
	return r.delivery.SendText(ctx, msg.From, reply)
}

// sendPriceList sends the intro text, then the document. A router without a
// URL is misconfigured (PRICE_LIST_URL) and falls back to the text catalog.
func (r *Router) sendPriceList(ctx context.Context, to string) bool {
	if r.priceList.URL == "" {
		slog.Error("Router.sendPriceList: PRICE_LIST_URL not configured, sending catalog instead of document", "to", to)
		return r.delivery.SendCatalog(ctx, to, r.products())
	}
	if !r.delivery.SendText(ctx, to, PriceListIntro) {
		slog.Warn("Router.sendPriceList: intro not delivered", "to", to)
	}
	return r.delivery.SendDocument(ctx, to, r.priceList.URL, r.priceList.Filename, r.priceList.Caption)
}

func (r *Router) handleButton(ctx context.Context, msg models.InboundMessage) bool {
	to := msg.From
	switch msg.ButtonID {
	case ButtonCatalog:
		return r.delivery.SendCatalog(ctx, to, r.products())
	case ButtonStoreInfo:
		return r.delivery.SendStoreInfo(ctx, to, r.profile())
	case ButtonHours:
		return r.delivery.SendHours(ctx, to, r.profile())
	case ButtonContact:
		return r.delivery.SendContact(ctx, to, r.profile())
	default:
		slog.Debug("Router.handleButton: unknown button", "button_id", msg.ButtonID, "from", to)
		return r.delivery.SendText(ctx, to, messaging.AcknowledgeMessage)
	}
}

// profile degrades to nil (defaults) on store errors.
func (r *Router) profile() *models.StoreProfile {
	if r.store == nil {
		return nil
	}
	p, err := r.store.GetStoreProfile()
	if err != nil {
		slog.Error("Router.profile: load failed", "error", err)
		return nil
	}
	return p
}

func (r *Router) products() []models.Product {
	if r.store == nil {
		return nil
	}
	products, err := r.store.GetProducts(models.ProductFilter{})
	if err != nil {
		slog.Error("Router.products: load failed", "error", err)
		return nil
	}
	return products
}
