package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Defaults used when optional store profile fields are missing.
const (
	DefaultStoreName        = "Zapatillas Dolores"
	DefaultStoreLocation    = "Dolores, Buenos Aires, Argentina"
	DefaultStoreAddress     = "Calle Principal 123, Dolores, Buenos Aires"
	DefaultStorePhone       = "+54 9 11 1234-5678"
	DefaultStoreEmail       = "info@zapatillasdolores.com"
	DefaultStoreDescription = "Tienda especializada en zapatillas deportivas y casuales"
)

// Entry is a single key/value pair of an ordered mapping.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// OrderedMap is a string mapping that keeps the order of its source document.
// Opening hours and shipping tiers are shown to customers in the order the
// store wrote them, which a Go map cannot preserve.
type OrderedMap []Entry

// Get returns the value for key and whether it was present.
func (m OrderedMap) Get(key string) (string, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// Set replaces the value for key or appends a new entry.
func (m *OrderedMap) Set(key, value string) {
	for i, e := range *m {
		if e.Key == key {
			(*m)[i].Value = value
			return
		}
	}
	*m = append(*m, Entry{Key: key, Value: value})
}

// OrderedMapFrom builds an OrderedMap from a plain map, sorting keys.
func OrderedMapFrom(src map[string]string) OrderedMap {
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(OrderedMap, 0, len(keys))
	for _, k := range keys {
		out = append(out, Entry{Key: k, Value: src[k]})
	}
	return out
}

// MarshalJSON encodes the mapping as a JSON object in entry order.
func (m OrderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping key order. Non-string values are
// kept in their JSON text form.
func (m *OrderedMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("ordered map: expected JSON object, got %v", tok)
	}
	out := OrderedMap{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("ordered map: invalid key %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			s = string(raw)
		}
		out = append(out, Entry{Key: key, Value: s})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}

// UnmarshalYAML decodes a YAML mapping keeping key order.
func (m *OrderedMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("ordered map: expected YAML mapping at line %d", node.Line)
	}
	out := make(OrderedMap, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		out = append(out, Entry{Key: node.Content[i].Value, Value: node.Content[i+1].Value})
	}
	*m = out
	return nil
}

// StoreProfile describes the single store the assistant works for.
type StoreProfile struct {
	Name           string            `json:"nombre" yaml:"nombre"`
	Location       string            `json:"ubicacion" yaml:"ubicacion"`
	Address        string            `json:"direccion,omitempty" yaml:"direccion,omitempty"`
	Phone          string            `json:"telefono,omitempty" yaml:"telefono,omitempty"`
	Email          string            `json:"email,omitempty" yaml:"email,omitempty"`
	Description    string            `json:"descripcion,omitempty" yaml:"descripcion,omitempty"`
	Hours          OrderedMap        `json:"horarios" yaml:"horarios"`
	PaymentMethods []string          `json:"metodos_pago" yaml:"metodos_pago"`
	Shipping       OrderedMap        `json:"envios" yaml:"envios"`
	Social         map[string]string `json:"redes_sociales,omitempty" yaml:"redes_sociales,omitempty"`
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// NameOrDefault returns the store name or the fixed default.
// All *OrDefault accessors are safe on a nil profile.
func (p *StoreProfile) NameOrDefault() string {
	if p == nil {
		return DefaultStoreName
	}
	return orDefault(p.Name, DefaultStoreName)
}

func (p *StoreProfile) LocationOrDefault() string {
	if p == nil {
		return DefaultStoreLocation
	}
	return orDefault(p.Location, DefaultStoreLocation)
}

func (p *StoreProfile) AddressOrDefault() string {
	if p == nil {
		return DefaultStoreAddress
	}
	return orDefault(p.Address, DefaultStoreAddress)
}

func (p *StoreProfile) PhoneOrDefault() string {
	if p == nil {
		return DefaultStorePhone
	}
	return orDefault(p.Phone, DefaultStorePhone)
}

func (p *StoreProfile) EmailOrDefault() string {
	if p == nil {
		return DefaultStoreEmail
	}
	return orDefault(p.Email, DefaultStoreEmail)
}

func (p *StoreProfile) DescriptionOrDefault() string {
	if p == nil {
		return DefaultStoreDescription
	}
	return orDefault(p.Description, DefaultStoreDescription)
}

// HoursOrEmpty returns the opening hours, never nil-dereferencing the profile.
func (p *StoreProfile) HoursOrEmpty() OrderedMap {
	if p == nil {
		return nil
	}
	return p.Hours
}

// PaymentsOrEmpty returns the accepted payment methods.
func (p *StoreProfile) PaymentsOrEmpty() []string {
	if p == nil {
		return nil
	}
	return p.PaymentMethods
}

// ShippingOrEmpty returns the shipping tiers.
func (p *StoreProfile) ShippingOrEmpty() OrderedMap {
	if p == nil {
		return nil
	}
	return p.Shipping
}

// HumanizeKey turns a snake_case key such as "lunes_viernes" into "Lunes Viernes".
func HumanizeKey(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// Product is a catalog item. Price is expressed in whole currency units.
type Product struct {
	ID          int64          `json:"id" yaml:"id"`
	Name        string         `json:"nombre" yaml:"nombre"`
	Brand       string         `json:"marca" yaml:"marca"`
	Category    string         `json:"categoria" yaml:"categoria"`
	Price       int64          `json:"precio" yaml:"precio"`
	Sizes       []string       `json:"tallas" yaml:"tallas"`
	Stock       map[string]int `json:"stock" yaml:"stock"`
	Colors      []string       `json:"colores" yaml:"colores"`
	Description string         `json:"descripcion,omitempty" yaml:"descripcion,omitempty"`
	Image       string         `json:"imagen,omitempty" yaml:"imagen,omitempty"`
}

// FormatPrice renders a price with Argentine thousands separators, e.g. $45.000.
func FormatPrice(price int64) string {
	return "$" + strings.ReplaceAll(humanize.Comma(price), ",", ".")
}

// DisplayName returns "Brand Name".
func (p Product) DisplayName() string {
	return strings.TrimSpace(p.Brand + " " + p.Name)
}

// TotalStock sums the stock over all sizes.
func (p Product) TotalStock() int {
	total := 0
	for _, n := range p.Stock {
		total += n
	}
	return total
}

// InStock reports whether size has at least one unit.
func (p Product) InStock(size string) bool {
	return p.Stock[size] > 0
}

// AvailableSizes returns the sizes with stock, in catalog size order.
func (p Product) AvailableSizes() []string {
	var sizes []string
	for _, s := range p.Sizes {
		if p.InStock(s) {
			sizes = append(sizes, s)
		}
	}
	return sizes
}

// AvailableStock returns size -> count for sizes with stock.
func (p Product) AvailableStock() map[string]int {
	out := make(map[string]int)
	for size, n := range p.Stock {
		if n > 0 {
			out[size] = n
		}
	}
	return out
}

// Validate checks the product invariants: stock keys are a subset of sizes
// and counts are never negative.
func (p Product) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: product %d has no name", ErrInvalidProduct, p.ID)
	}
	known := make(map[string]bool, len(p.Sizes))
	for _, s := range p.Sizes {
		known[s] = true
	}
	for size, n := range p.Stock {
		if !known[size] {
			return fmt.Errorf("%w: product %d has stock for unknown size %q", ErrInvalidProduct, p.ID, size)
		}
		if n < 0 {
			return fmt.Errorf("%w: product %d has negative stock for size %q", ErrInvalidProduct, p.ID, size)
		}
	}
	return nil
}

// ProductFilter narrows GetProducts by exact category and/or brand.
type ProductFilter struct {
	Category string
	Brand    string
}

// Matches reports whether p satisfies the filter.
func (f ProductFilter) Matches(p Product) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.Brand != "" && p.Brand != f.Brand {
		return false
	}
	return true
}
