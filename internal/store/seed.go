package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/BTreeMap/ShopChat/internal/models"
	"gopkg.in/yaml.v3"
)

// Seed file base names inside the seed directory.
const (
	StoreSeedName   = "tienda"
	ProductSeedName = "productos"
)

var seedExtensions = []string{".json", ".yaml", ".yml"}

// SeedResult summarizes what LoadSeed applied.
type SeedResult struct {
	ProfileFile  string `json:"profile_file,omitempty"`
	ProductsFile string `json:"products_file,omitempty"`
	Products     int    `json:"products"`
}

// flexString accepts both strings and numbers, so sizes may be written as 40 or "40".
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

func (f *flexString) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("expected scalar at line %d", node.Line)
	}
	*f = flexString(node.Value)
	return nil
}

// seedProduct mirrors the product seed file; prices may carry decimals.
type seedProduct struct {
	ID          int64          `json:"id" yaml:"id"`
	Name        string         `json:"nombre" yaml:"nombre"`
	Brand       string         `json:"marca" yaml:"marca"`
	Category    string         `json:"categoria" yaml:"categoria"`
	Price       float64        `json:"precio" yaml:"precio"`
	Sizes       []flexString   `json:"tallas" yaml:"tallas"`
	Stock       map[string]int `json:"stock" yaml:"stock"`
	Colors      []string       `json:"colores" yaml:"colores"`
	Description string         `json:"descripcion" yaml:"descripcion"`
	Image       string         `json:"imagen" yaml:"imagen"`
}

func (sp seedProduct) toProduct() models.Product {
	sizes := make([]string, len(sp.Sizes))
	for i, s := range sp.Sizes {
		sizes[i] = string(s)
	}
	return models.Product{
		ID:          sp.ID,
		Name:        sp.Name,
		Brand:       sp.Brand,
		Category:    sp.Category,
		Price:       int64(math.Round(sp.Price)),
		Sizes:       sizes,
		Stock:       sp.Stock,
		Colors:      sp.Colors,
		Description: sp.Description,
		Image:       sp.Image,
	}
}

type productSeedFile struct {
	Products []seedProduct `json:"productos" yaml:"productos"`
}

// findSeedFile returns the first existing dir/name.{json,yaml,yml}, or "".
func findSeedFile(dir, name string) string {
	for _, ext := range seedExtensions {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// decodeSeed decodes path into v based on its extension.
func decodeSeed(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return json.Unmarshal(data, v)
	}
	return yaml.Unmarshal(data, v)
}

// LoadSeed reads the store profile and product catalog from dir and replaces
// both wholesale in s. Missing files are skipped.
func LoadSeed(s Store, dir string) (SeedResult, error) {
	var res SeedResult
	if dir == "" {
		return res, nil
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.Warn("LoadSeed: seed directory not found, skipping", "dir", dir)
		return res, nil
	}

	if path := findSeedFile(dir, StoreSeedName); path != "" {
		var profile models.StoreProfile
		if err := decodeSeed(path, &profile); err != nil {
			slog.Error("LoadSeed: failed to decode store profile", "path", path, "error", err)
			return res, fmt.Errorf("decode %s: %w", path, err)
		}
		if err := s.SaveStoreProfile(profile); err != nil {
			return res, fmt.Errorf("save store profile: %w", err)
		}
		res.ProfileFile = path
		slog.Info("LoadSeed: store profile loaded", "path", path, "name", profile.Name)
	} else {
		slog.Warn("LoadSeed: no store profile seed file", "dir", dir)
	}

	if path := findSeedFile(dir, ProductSeedName); path != "" {
		var file productSeedFile
		if err := decodeSeed(path, &file); err != nil {
			slog.Error("LoadSeed: failed to decode products", "path", path, "error", err)
			return res, fmt.Errorf("decode %s: %w", path, err)
		}
		products := make([]models.Product, 0, len(file.Products))
		seen := make(map[int64]bool, len(file.Products))
		for _, sp := range file.Products {
			p := sp.toProduct()
			if err := p.Validate(); err != nil {
				return res, fmt.Errorf("%s: %w", path, err)
			}
			if seen[p.ID] {
				return res, fmt.Errorf("%s: %w: duplicate product id %d", path, models.ErrInvalidProduct, p.ID)
			}
			seen[p.ID] = true
			products = append(products, p)
		}
		if err := s.ReplaceProducts(products); err != nil {
			return res, fmt.Errorf("replace products: %w", err)
		}
		res.ProductsFile = path
		res.Products = len(products)
		slog.Info("LoadSeed: catalog loaded", "path", path, "count", len(products))
	} else {
		slog.Warn("LoadSeed: no product seed file", "dir", dir)
	}
	return res, nil
}
