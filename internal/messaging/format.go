package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/BTreeMap/ShopChat/internal/models"
)

// MaxCatalogEntries caps the products listed in a catalog message.
const MaxCatalogEntries = 5

// Fixed replies.
const (
	EmptyCatalogMessage = "No encontré productos que coincidan con tu búsqueda. ¿Podrías ser más específico?"
	AcknowledgeMessage  = "Gracias por tu mensaje. ¿En qué más puedo ayudarte?"
)

// FormatProduct renders a single product card.
func FormatProduct(p models.Product) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🛍️ *%s*\n\n", p.DisplayName())
	fmt.Fprintf(&b, "💰 *Precio:* %s\n", models.FormatPrice(p.Price))
	fmt.Fprintf(&b, "📏 *Tallas disponibles:* %s\n", strings.Join(p.Sizes, ", "))
	fmt.Fprintf(&b, "🎨 *Colores:* %s\n", strings.Join(p.Colors, ", "))
	fmt.Fprintf(&b, "📦 *Stock total:* %d unidades\n", p.TotalStock())
	if p.Description != "" {
		fmt.Fprintf(&b, "\n📝 *Descripción:*\n%s\n", p.Description)
	}
	b.WriteString("\n¿Te interesa este producto? ¿Qué talla necesitás?")
	return b.String()
}

// FormatCatalog lists at most MaxCatalogEntries products and notes how many were left out.
func FormatCatalog(products []models.Product) string {
	if len(products) == 0 {
		return EmptyCatalogMessage
	}
	var b strings.Builder
	b.WriteString("🛍️ *Catálogo de Productos*\n\n")
	for i, p := range products {
		if i == MaxCatalogEntries {
			break
		}
		fmt.Fprintf(&b, "%d. *%s*\n", i+1, p.DisplayName())
		fmt.Fprintf(&b, "   💰 %s\n", models.FormatPrice(p.Price))
		fmt.Fprintf(&b, "   📏 Tallas: %s\n", strings.Join(p.Sizes, ", "))
		fmt.Fprintf(&b, "   🎨 Colores: %s\n\n", strings.Join(p.Colors, ", "))
	}
	if extra := len(products) - MaxCatalogEntries; extra > 0 {
		fmt.Fprintf(&b, "... y %d productos más.\n\n", extra)
	}
	b.WriteString("¿Te interesa algún producto específico? Puedo darte más detalles.")
	return b.String()
}

func writeEntries(b *strings.Builder, entries models.OrderedMap) {
	for _, e := range entries {
		fmt.Fprintf(b, "• %s: %s\n", models.HumanizeKey(e.Key), e.Value)
	}
}

// FormatStoreInfo renders the store card. A nil profile renders the defaults.
func FormatStoreInfo(profile *models.StoreProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏪 *%s*\n\n", profile.NameOrDefault())
	fmt.Fprintf(&b, "📍 *Ubicación:* %s\n", profile.LocationOrDefault())
	fmt.Fprintf(&b, "🏠 *Dirección:* %s\n", profile.AddressOrDefault())
	fmt.Fprintf(&b, "📞 *Teléfono:* %s\n", profile.PhoneOrDefault())
	fmt.Fprintf(&b, "📧 *Email:* %s\n", profile.EmailOrDefault())

	b.WriteString("\n🕒 *Horarios de Atención:*\n")
	writeEntries(&b, profile.HoursOrEmpty())

	b.WriteString("\n💳 *Métodos de Pago:*\n")
	for _, m := range profile.PaymentsOrEmpty() {
		fmt.Fprintf(&b, "• %s\n", m)
	}

	b.WriteString("\n🚚 *Envíos:*\n")
	writeEntries(&b, profile.ShippingOrEmpty())

	b.WriteString("\n¡Te esperamos en nuestra tienda! 🛍️")
	return b.String()
}

// FormatHours renders the opening hours.
func FormatHours(profile *models.StoreProfile) string {
	var b strings.Builder
	b.WriteString("🕒 *Horarios de Atención:*\n\n")
	writeEntries(&b, profile.HoursOrEmpty())
	return strings.TrimRight(b.String(), "\n")
}

// FormatContact renders address, phone and email.
func FormatContact(profile *models.StoreProfile) string {
	return fmt.Sprintf("📞 *Información de Contacto:*\n\n🏠 *Dirección:* %s\n📞 *Teléfono:* %s\n📧 *Email:* %s",
		profile.AddressOrDefault(), profile.PhoneOrDefault(), profile.EmailOrDefault())
}

// WelcomeMessage renders the greeting sent to new customers.
func WelcomeMessage(storeName string) string {
	if storeName == "" {
		storeName = models.DefaultStoreName
	}
	return fmt.Sprintf(`¡Hola! 👋 Bienvenido a *%s*

Soy tu asistente virtual y estoy aquí para ayudarte con:

🛍️ Información sobre productos
💰 Precios y disponibilidad
📏 Tallas disponibles
🕒 Horarios de atención
📍 Ubicación y contacto

¿En qué puedo asistirte hoy?`, storeName)
}

// SendProduct sends a product card.
func (d *Delivery) SendProduct(ctx context.Context, to string, p models.Product) bool {
	return d.SendText(ctx, to, FormatProduct(p))
}

// SendCatalog sends the catalog listing.
func (d *Delivery) SendCatalog(ctx context.Context, to string, products []models.Product) bool {
	return d.SendText(ctx, to, FormatCatalog(products))
}

// SendStoreInfo sends the store card.
func (d *Delivery) SendStoreInfo(ctx context.Context, to string, profile *models.StoreProfile) bool {
	return d.SendText(ctx, to, FormatStoreInfo(profile))
}

func (d *Delivery) SendHours(ctx context.Context, to string, profile *models.StoreProfile) bool {
	return d.SendText(ctx, to, FormatHours(profile))
}

func (d *Delivery) SendContact(ctx context.Context, to string, profile *models.StoreProfile) bool {
	return d.SendText(ctx, to, FormatContact(profile))
}

func (d *Delivery) SendWelcome(ctx context.Context, to string, profile *models.StoreProfile) bool {
	return d.SendText(ctx, to, WelcomeMessage(profile.NameOrDefault()))
}
