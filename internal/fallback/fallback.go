// Package fallback answers customers with canned, keyword-matched replies when
// the AI backend is unavailable or not configured.
package fallback

import "strings"

// Topic names, one per section of the AI context.
const (
	TopicPrices   = "prices"
	TopicHours    = "hours"
	TopicLocation = "location"
	TopicBrands   = "brands"
	TopicSizes    = "sizes"
	TopicShipping = "shipping"
	TopicPayment  = "payment"
)

// Topic is a keyword set and the reply sent when any keyword matches.
type Topic struct {
	Name     string
	Keywords []string
	Reply    string
}

// GenericGreeting is returned when no topic matches.
const GenericGreeting = "¡Hola! Bienvenido a Zapatillas Dolores. Soy tu asistente virtual y estoy aquí para ayudarte con información sobre nuestros productos, precios, horarios y más. ¿En qué puedo asistirte hoy?"

// topics is evaluated in order; the first match wins.
var topics = []Topic{
	{
		Name:     TopicPrices,
		Keywords: []string{"precio", "cuesta", "vale", "costo"},
		Reply:    "¡Hola! Los precios de nuestras zapatillas van desde $25.000 hasta $75.000. ¿Te interesa alguna marca o modelo específico? Puedo darte más detalles sobre precios y disponibilidad.",
	},
	{
		Name:     TopicHours,
		Keywords: []string{"horario", "abierto", "cerrado", "atención"},
		Reply:    "Nuestros horarios de atención son:\n• Lunes a Viernes: 9:00 - 18:00\n• Sábados: 9:00 - 13:00\n• Domingos: Cerrado\n\n¡Te esperamos en Dolores, Buenos Aires!",
	},
	{
		Name:     TopicLocation,
		Keywords: []string{"ubicación", "dirección", "donde", "ubicado"},
		Reply:    "Estamos ubicados en Calle Principal 123, Dolores, Buenos Aires. También podés contactarnos al +54 9 11 1234-5678 o por email a info@zapatillasdolores.com",
	},
	{
		Name:     TopicBrands,
		Keywords: []string{"nike", "adidas", "puma", "converse", "vans"},
		Reply:    "¡Excelente elección! Tenemos varias marcas disponibles como Nike, Adidas, Puma, Converse y Vans. ¿Te interesa alguna marca específica o modelo en particular? Puedo darte más información sobre precios y tallas disponibles.",
	},
	{
		Name:     TopicSizes,
		Keywords: []string{"talla", "tallas", "número", "calzado"},
		Reply:    "Tenemos tallas desde 36 hasta 45. ¿Qué talla necesitás? También puedo ayudarte a encontrar el modelo perfecto según tu preferencia de marca y estilo.",
	},
	{
		Name:     TopicShipping,
		Keywords: []string{"envío", "envios", "delivery", "entrega"},
		Reply:    "Realizamos envíos:\n• Local (Dolores): Gratis\n• Provincia: Desde $500\n• Nacional: Desde $800\n\n¿Te interesa algún producto en particular?",
	},
	{
		Name:     TopicPayment,
		Keywords: []string{"pago", "pagar", "tarjeta", "efectivo"},
		Reply:    "Aceptamos:\n• Efectivo\n• Tarjeta de débito\n• Tarjeta de crédito\n• Transferencia bancaria\n• Mercado Pago\n\n¿En qué más puedo ayudarte?",
	},
}

// Topics returns a copy of the ordered topic table.
func Topics() []Topic {
	out := make([]Topic, len(topics))
	copy(out, topics)
	return out
}

// Match returns the first topic whose keywords appear in text.
func Match(text string) (Topic, bool) {
	lower := strings.ToLower(text)
	for _, t := range topics {
		for _, kw := range t.Keywords {
			if strings.Contains(lower, kw) {
				return t, true
			}
		}
	}
	return Topic{}, false
}

// Respond returns the canned reply for text. It never returns "".
func Respond(text string) string {
	if t, ok := Match(text); ok {
		return t.Reply
	}
	return GenericGreeting
}
