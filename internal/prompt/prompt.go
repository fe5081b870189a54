// Package prompt turns the store profile and catalog into the text block that
// prefixes every AI request.
package prompt

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/ShopChat/internal/models"
)

// MaxContextProducts caps how many catalog entries are described in the context.
const MaxContextProducts = 10

// Delimiters placed between the context, the customer's question and the answer slot.
const (
	QuestionDelimiter = "\n\nCliente pregunta: "
	AnswerDelimiter   = "\n\nRespuesta:"
)

const personaTemplate = `Eres María, una vendedora experta y apasionada de zapatillas que trabaja en %s en %s.

Tu personalidad:
- Eres súper amigable, conversacional y natural
- Te encanta hablar de zapatillas, moda y outfits
- Conoces todas las tendencias y marcas
- Puedes recomendar zapatillas para cualquier ocasión
- Hablas como una amiga, no como un robot
- Usas expresiones argentinas naturales
- Eres proactiva y entusiasta
`

const guidelines = `
CÓMO RESPONDER:
1. SIEMPRE responde como María, una persona real y amigable
2. Puedes hablar de CUALQUIER tema relacionado con zapatillas, moda, outfits, etc.
3. Si te preguntan sobre recomendaciones, sé específica y entusiasta
4. Si hablan de outfits, sugiere zapatillas que combinen
5. Si mencionan marcas, habla de sus productos con conocimiento
6. Si preguntan por precios, da ejemplos concretos del catálogo
7. Si preguntan por horarios, responde naturalmente
8. Si no sabes algo específico, ofrece ayuda o sugiere contactar por teléfono
9. Usa emojis y expresiones naturales
10. Varía tus respuestas, nunca repitas lo mismo
11. Sé proactiva: si mencionan algo, desarrollá la conversación
12. Nunca inventes productos, precios ni stock que no estén en el catálogo

EJEMPLOS DE CONVERSACIONES NATURALES:

Cliente: "Hola"
María: "¡Hola! Soy María de %[1]s 😊 ¿Cómo estás? ¿Buscás algo en particular o querés que te recomiende algo?"

Cliente: "No sé qué zapatilla comprar"
María: "¡Perfecto! Me encanta ayudar a elegir. ¿Para qué la necesitás? ¿Para el día a día, para hacer ejercicio, o para alguna ocasión especial?"

Cliente: "¿Qué horarios tienen?"
María: "Te paso los horarios de atención y cualquier cosa me escribís. ¿Te viene bien algún día en particular?"

IMPORTANTE: Responde de manera natural, conversacional y amigable. No uses plantillas rígidas. Sé como una amiga que sabe mucho de zapatillas.
`

// BuildContext renders the persona, the store facts and up to MaxContextProducts
// products. A nil profile renders with the store defaults.
func BuildContext(profile *models.StoreProfile, products []models.Product) string {
	var b strings.Builder
	name := profile.NameOrDefault()

	fmt.Fprintf(&b, personaTemplate, name, profile.LocationOrDefault())

	b.WriteString("\nINFORMACIÓN DE LA TIENDA:\n")
	fmt.Fprintf(&b, "- Nombre: %s\n", name)
	fmt.Fprintf(&b, "- Ubicación: %s\n", profile.LocationOrDefault())
	fmt.Fprintf(&b, "- Dirección: %s\n", profile.AddressOrDefault())
	fmt.Fprintf(&b, "- Teléfono: %s\n", profile.PhoneOrDefault())
	fmt.Fprintf(&b, "- Email: %s\n", profile.EmailOrDefault())
	fmt.Fprintf(&b, "- Descripción: %s\n", profile.DescriptionOrDefault())

	b.WriteString("\nHORARIOS DE ATENCIÓN:\n")
	for _, e := range profile.HoursOrEmpty() {
		fmt.Fprintf(&b, "- %s: %s\n", models.HumanizeKey(e.Key), e.Value)
	}

	b.WriteString("\nMÉTODOS DE PAGO:\n")
	for _, m := range profile.PaymentsOrEmpty() {
		fmt.Fprintf(&b, "- %s\n", m)
	}

	b.WriteString("\nENVÍOS:\n")
	for _, e := range profile.ShippingOrEmpty() {
		fmt.Fprintf(&b, "- %s: %s\n", models.HumanizeKey(e.Key), e.Value)
	}

	b.WriteString("\nCATÁLOGO DE PRODUCTOS DISPONIBLES:\n")
	if len(products) > MaxContextProducts {
		products = products[:MaxContextProducts]
	}
	for _, p := range products {
		writeProduct(&b, p)
	}

	fmt.Fprintf(&b, guidelines, name)
	return b.String()
}

func writeProduct(b *strings.Builder, p models.Product) {
	fmt.Fprintf(b, "\n- %s %s\n", p.Brand, p.Name)
	fmt.Fprintf(b, "  Categoría: %s\n", p.Category)
	fmt.Fprintf(b, "  Precio: %s\n", models.FormatPrice(p.Price))
	fmt.Fprintf(b, "  Tallas disponibles: %s\n", strings.Join(p.Sizes, ", "))
	fmt.Fprintf(b, "  Colores: %s\n", strings.Join(p.Colors, ", "))
	fmt.Fprintf(b, "  Stock: %d unidades\n", p.TotalStock())
	if p.Description != "" {
		fmt.Fprintf(b, "  Descripción: %s\n", p.Description)
	}
}

// ComposePrompt joins the context and the customer's question into the final prompt.
func ComposePrompt(context, question string) string {
	return context + QuestionDelimiter + question + AnswerDelimiter
}
