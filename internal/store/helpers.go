package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BTreeMap/ShopChat/internal/models"
)

// productColumns is the column list shared by every product query.
const productColumns = `id, name, brand, category, price, sizes, stock, colors, description, image`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// encodeJSON marshals v for a TEXT column. Nil collections are stored as their empty form.
func encodeJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// scanProduct scans a product row selected with productColumns.
func scanProduct(row rowScanner) (models.Product, error) {
	var p models.Product
	var sizes, stock, colors string
	var description, image sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &p.Brand, &p.Category, &p.Price, &sizes, &stock, &colors, &description, &image); err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(sizes), &p.Sizes); err != nil {
		return p, fmt.Errorf("decode sizes for product %d: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(stock), &p.Stock); err != nil {
		return p, fmt.Errorf("decode stock for product %d: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(colors), &p.Colors); err != nil {
		return p, fmt.Errorf("decode colors for product %d: %w", p.ID, err)
	}
	p.Description = description.String
	p.Image = image.String
	return p, nil
}

// scanProducts drains rows into a product slice.
func scanProducts(rows *sql.Rows) ([]models.Product, error) {
	defer rows.Close()
	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product failed: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows failed: %w", err)
	}
	return products, nil
}

// productArgs returns the insert arguments for p in productColumns order.
func productArgs(p models.Product) ([]interface{}, error) {
	sizes := p.Sizes
	if sizes == nil {
		sizes = []string{}
	}
	stock := p.Stock
	if stock == nil {
		stock = map[string]int{}
	}
	colors := p.Colors
	if colors == nil {
		colors = []string{}
	}
	sizesJSON, err := encodeJSON(sizes)
	if err != nil {
		return nil, err
	}
	stockJSON, err := encodeJSON(stock)
	if err != nil {
		return nil, err
	}
	colorsJSON, err := encodeJSON(colors)
	if err != nil {
		return nil, err
	}
	return []interface{}{p.ID, p.Name, p.Brand, p.Category, p.Price, sizesJSON, stockJSON, colorsJSON, p.Description, p.Image}, nil
}

// profileArgs returns the insert arguments for a store profile, after the id column.
func profileArgs(p models.StoreProfile) ([]interface{}, error) {
	hours, err := encodeJSON(orEmptyMap(p.Hours))
	if err != nil {
		return nil, err
	}
	payments := p.PaymentMethods
	if payments == nil {
		payments = []string{}
	}
	paymentsJSON, err := encodeJSON(payments)
	if err != nil {
		return nil, err
	}
	shipping, err := encodeJSON(orEmptyMap(p.Shipping))
	if err != nil {
		return nil, err
	}
	social := p.Social
	if social == nil {
		social = map[string]string{}
	}
	socialJSON, err := encodeJSON(social)
	if err != nil {
		return nil, err
	}
	return []interface{}{p.Name, p.Location, p.Address, p.Phone, p.Email, p.Description, hours, paymentsJSON, shipping, socialJSON}, nil
}

func orEmptyMap(m models.OrderedMap) models.OrderedMap {
	if m == nil {
		return models.OrderedMap{}
	}
	return m
}

// scanProfile scans the single store profile row.
func scanProfile(row rowScanner) (*models.StoreProfile, error) {
	var p models.StoreProfile
	var address, phone, email, description sql.NullString
	var hours, payments, shipping, social string
	if err := row.Scan(&p.Name, &p.Location, &address, &phone, &email, &description, &hours, &payments, &shipping, &social); err != nil {
		return nil, err
	}
	p.Address = address.String
	p.Phone = phone.String
	p.Email = email.String
	p.Description = description.String
	if err := json.Unmarshal([]byte(hours), &p.Hours); err != nil {
		return nil, fmt.Errorf("decode hours: %w", err)
	}
	if err := json.Unmarshal([]byte(payments), &p.PaymentMethods); err != nil {
		return nil, fmt.Errorf("decode payment methods: %w", err)
	}
	if err := json.Unmarshal([]byte(shipping), &p.Shipping); err != nil {
		return nil, fmt.Errorf("decode shipping: %w", err)
	}
	if err := json.Unmarshal([]byte(social), &p.Social); err != nil {
		return nil, fmt.Errorf("decode social links: %w", err)
	}
	return &p, nil
}

// scanConversations drains rows of (id, sender, message, response, timestamp).
func scanConversations(rows *sql.Rows) ([]models.ConversationRecord, error) {
	defer rows.Close()
	var out []models.ConversationRecord
	for rows.Next() {
		var r models.ConversationRecord
		if err := rows.Scan(&r.ID, &r.Sender, &r.Message, &r.Response, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan conversation failed: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation rows failed: %w", err)
	}
	return out, nil
}

// filterProducts keeps the products whose name, brand or description contains
// term, compared with Unicode case folding. Term is literal text; SQL LIKE
// wildcards have no special meaning.
func filterProducts(products []models.Product, term string) []models.Product {
	needle := strings.ToLower(term)
	var out []models.Product
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Brand), needle) ||
			strings.Contains(strings.ToLower(p.Description), needle) {
			out = append(out, p)
		}
	}
	return out
}
