package store

import (
	"errors"

	"github.com/BTreeMap/ShopChat/internal/models"
)

// StockAvailable reports whether product id has stock in size.
// Unknown products report false without error.
func StockAvailable(s Store, id int64, size string) (bool, error) {
	p, err := s.GetProductByID(id)
	if errors.Is(err, ErrProductNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.InStock(size), nil
}

// AvailableStock returns size -> count of sizes with stock for product id.
// Unknown products yield an empty map.
func AvailableStock(s Store, id int64) (map[string]int, error) {
	p, err := s.GetProductByID(id)
	if errors.Is(err, ErrProductNotFound) {
		return map[string]int{}, nil
	}
	if err != nil {
		return nil, err
	}
	return p.AvailableStock(), nil
}

// FirstProducts returns at most n products from the unfiltered catalog.
func FirstProducts(s Store, n int) ([]models.Product, error) {
	products, err := s.GetProducts(models.ProductFilter{})
	if err != nil {
		return nil, err
	}
	if n > 0 && len(products) > n {
		products = products[:n]
	}
	return products, nil
}
