package store

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/BTreeMap/ShopChat/internal/models"
)

func sampleProducts() []models.Product {
	return []models.Product{
		{
			ID: 2, Name: "Superstar", Brand: "Adidas", Category: "urbanas", Price: 62000,
			Sizes: []string{"38", "39"}, Stock: map[string]int{"38": 0, "39": 4},
			Colors: []string{"Blanco"}, Description: "Clásico con puntera de goma",
		},
		{
			ID: 1, Name: "Air Max 90", Brand: "Nike", Category: "running", Price: 89999,
			Sizes: []string{"40", "41", "42"}, Stock: map[string]int{"40": 3, "41": 0, "42": 1},
			Colors: []string{"Negro", "Blanco"}, Description: "Amortiguación visible",
		},
		{
			ID: 3, Name: "Chuck Taylor", Brand: "Converse", Category: "urbanas", Price: 45000,
			Sizes: []string{"36"}, Stock: map[string]int{"36": 2},
		},
	}
}

func sampleProfile() models.StoreProfile {
	return models.StoreProfile{
		Name:           "Zapatillas Dolores",
		Location:       "Dolores, Buenos Aires",
		Phone:          "+54 9 2245 000000",
		Hours:          models.OrderedMap{{Key: "lunes_viernes", Value: "9 a 18"}, {Key: "sabados", Value: "9 a 13"}},
		PaymentMethods: []string{"Efectivo", "Mercado Pago"},
		Shipping:       models.OrderedMap{{Key: "local", Value: "Gratis"}, {Key: "nacional", Value: "Correo Argentino"}},
		Social:         map[string]string{"instagram": "@zapatillasdolores"},
	}
}

// exerciseStore runs the shared contract checks against any backend.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()

	profile, err := s.GetStoreProfile()
	if err != nil || profile != nil {
		t.Fatalf("expected no profile before seeding, got %+v, %v", profile, err)
	}
	if err := s.SaveStoreProfile(sampleProfile()); err != nil {
		t.Fatalf("SaveStoreProfile: %v", err)
	}
	profile, err = s.GetStoreProfile()
	if err != nil || profile == nil {
		t.Fatalf("GetStoreProfile: %+v, %v", profile, err)
	}
	if profile.Name != "Zapatillas Dolores" || len(profile.Hours) != 2 || profile.Hours[0].Key != "lunes_viernes" {
		t.Errorf("profile not round-tripped: %+v", profile)
	}
	if v, _ := profile.Shipping.Get("nacional"); v != "Correo Argentino" {
		t.Errorf("expected shipping tier, got %q", v)
	}

	if err := s.ReplaceProducts(sampleProducts()); err != nil {
		t.Fatalf("ReplaceProducts: %v", err)
	}
	all, err := s.GetProducts(models.ProductFilter{})
	if err != nil {
		t.Fatalf("GetProducts: %v", err)
	}
	if len(all) != 3 || all[0].ID != 1 || all[2].ID != 3 {
		t.Fatalf("expected 3 products ordered by id, got %+v", all)
	}
	urban, err := s.GetProducts(models.ProductFilter{Category: "urbanas", Brand: "Converse"})
	if err != nil || len(urban) != 1 || urban[0].ID != 3 {
		t.Errorf("filter mismatch: %+v, %v", urban, err)
	}
	found, err := s.SearchProducts("max")
	if err != nil || len(found) != 1 || found[0].ID != 1 {
		t.Errorf("search mismatch: %+v, %v", found, err)
	}
	for _, literal := range []string{"_", "%", "Air_Max", "%Nike%"} {
		if found, err := s.SearchProducts(literal); err != nil || len(found) != 0 {
			t.Errorf("SearchProducts(%q) should match literally, got %+v, %v", literal, found, err)
		}
	}
	found, err = s.SearchProducts("CLÁSICO")
	if err != nil || len(found) != 1 || found[0].ID != 2 {
		t.Errorf("expected accented case-insensitive match, got %+v, %v", found, err)
	}

	p, err := s.GetProductByID(1)
	if err != nil {
		t.Fatalf("GetProductByID: %v", err)
	}
	if p.Price != 89999 || p.Stock["40"] != 3 || len(p.Colors) != 2 {
		t.Errorf("product not round-tripped: %+v", p)
	}
	if _, err := s.GetProductByID(99); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}

	ok, err := StockAvailable(s, 1, "41")
	if err != nil || ok {
		t.Errorf("expected size 41 out of stock, got %v, %v", ok, err)
	}
	ok, _ = StockAvailable(s, 1, "42")
	if !ok {
		t.Error("expected size 42 in stock")
	}
	stock, err := AvailableStock(s, 1)
	if err != nil || len(stock) != 2 || stock["40"] != 3 {
		t.Errorf("unexpected available stock %v, %v", stock, err)
	}
	if stock, _ := AvailableStock(s, 99); len(stock) != 0 {
		t.Errorf("expected empty stock for unknown product, got %v", stock)
	}

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		rec := models.ConversationRecord{
			Sender:    "5492245000001",
			Message:   "hola",
			Response:  "¡Hola!",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.AppendConversation(rec); err != nil {
			t.Fatalf("AppendConversation: %v", err)
		}
	}
	if err := s.AppendConversation(models.ConversationRecord{Sender: "other", Message: "x", Response: "y"}); err != nil {
		t.Fatalf("AppendConversation: %v", err)
	}
	recent, err := s.GetRecentConversations("5492245000001", 0)
	if err != nil {
		t.Fatalf("GetRecentConversations: %v", err)
	}
	if len(recent) != DefaultHistoryLimit {
		t.Fatalf("expected %d records, got %d", DefaultHistoryLimit, len(recent))
	}
	if !recent[0].Timestamp.Equal(base.Add(11 * time.Minute)) {
		t.Errorf("expected newest first, got %v", recent[0].Timestamp)
	}
	recent, _ = s.GetRecentConversations("5492245000001", 3)
	if len(recent) != 3 {
		t.Errorf("expected 3 records, got %d", len(recent))
	}

	first, err := s.RecordInbound("wamid.A", "5492245000001")
	if err != nil || !first {
		t.Errorf("expected first delivery to be new, got %v, %v", first, err)
	}
	again, err := s.RecordInbound("wamid.A", "5492245000001")
	if err != nil || again {
		t.Errorf("expected redelivery to be detected, got %v, %v", again, err)
	}
}

func TestInMemoryStore(t *testing.T) {
	s := NewInMemoryStore()
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "shopchat.db")
	s, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStoreRequiresDSN(t *testing.T) {
	if _, err := NewSQLiteStore(); !errors.Is(err, ErrDSNNotSet) {
		t.Errorf("expected ErrDSNNotSet, got %v", err)
	}
}

func TestPostgresStore(t *testing.T) {
	// Requires a running PostgreSQL instance; set DATABASE_URL.
	connStr := getenvOrSkip(t, "DATABASE_URL")
	pgStore, err := NewPostgresStore(WithPostgresDSN(connStr))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer pgStore.Close()
	for _, table := range []string{"store_profile", "products", "conversations", "inbound_dedup"} {
		pgStore.db.Exec("DELETE FROM " + table)
	}
	exerciseStore(t, pgStore)
}

func TestDetectDSNType(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@localhost/db":      "postgres",
		"postgresql://localhost/db":        "postgres",
		"host=localhost user=shop":         "postgres",
		"/var/lib/shopchat/shopchat.db":    "sqlite3",
		"file:shopchat.db?_foreign_keys=1": "sqlite3",
	}
	for dsn, want := range tests {
		if got := DetectDSNType(dsn); got != want {
			t.Errorf("DetectDSNType(%q) = %q, want %q", dsn, got, want)
		}
	}
}

func TestNewStoreEmptyDSNIsInMemory(t *testing.T) {
	s, err := NewStore("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.(*InMemoryStore); !ok {
		t.Errorf("expected *InMemoryStore, got %T", s)
	}
}

func TestLoadSeedJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "tienda.json"), `{
		"nombre": "Zapatillas Dolores",
		"ubicacion": "Dolores",
		"horarios": {"lunes_viernes": "9:00 - 18:00", "sabados": "9:00 - 13:00"},
		"metodos_pago": ["Efectivo"],
		"envios": {"local": "Gratis"}
	}`)
	writeFile(t, filepath.Join(dir, "productos.json"), `{"productos": [
		{"id": 7, "nombre": "Old Skool", "marca": "Vans", "categoria": "skate", "precio": 54999.6,
		 "tallas": [39, "40"], "stock": {"39": 1, "40": 0}, "colores": ["Negro"]}
	]}`)

	s := NewInMemoryStore()
	res, err := LoadSeed(s, dir)
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if res.Products != 1 || res.ProfileFile == "" {
		t.Errorf("unexpected result %+v", res)
	}
	p, err := s.GetProductByID(7)
	if err != nil {
		t.Fatalf("GetProductByID: %v", err)
	}
	if p.Price != 55000 {
		t.Errorf("expected rounded price 55000, got %d", p.Price)
	}
	if len(p.Sizes) != 2 || p.Sizes[0] != "39" {
		t.Errorf("expected numeric sizes as strings, got %v", p.Sizes)
	}
	profile, _ := s.GetStoreProfile()
	if profile == nil || profile.Hours[1].Key != "sabados" {
		t.Errorf("expected ordered hours, got %+v", profile)
	}
}

func TestLoadSeedYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "productos.yaml"), `productos:
  - id: 1
    nombre: Suede Classic
    marca: Puma
    categoria: urbanas
    precio: 48000
    tallas: [40, 41]
    stock: {"40": 2}
    colores: [Rojo]
`)
	s := NewInMemoryStore()
	res, err := LoadSeed(s, dir)
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if res.Products != 1 || res.ProfileFile != "" {
		t.Errorf("unexpected result %+v", res)
	}
	if profile, _ := s.GetStoreProfile(); profile != nil {
		t.Errorf("expected no profile without tienda file, got %+v", profile)
	}
}

func TestLoadSeedRejectsInvalidProduct(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "productos.json"), `{"productos": [
		{"id": 1, "nombre": "X", "marca": "Y", "categoria": "z", "precio": 1, "tallas": ["40"], "stock": {"44": 1}, "colores": []}
	]}`)
	if _, err := LoadSeed(NewInMemoryStore(), dir); !errors.Is(err, models.ErrInvalidProduct) {
		t.Errorf("expected ErrInvalidProduct, got %v", err)
	}
}

func TestLoadSeedRejectsDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "productos.json"), `{"productos": [
		{"id": 4, "nombre": "Old Skool", "marca": "Vans", "categoria": "skate", "precio": 35000, "tallas": ["40"], "stock": {"40": 1}},
		{"id": 4, "nombre": "Suede", "marca": "Puma", "categoria": "urbanas", "precio": 38000, "tallas": ["41"], "stock": {"41": 2}}
	]}`)
	s := NewInMemoryStore()
	if err := s.ReplaceProducts(sampleProducts()); err != nil {
		t.Fatalf("ReplaceProducts: %v", err)
	}
	_, err := LoadSeed(s, dir)
	if !errors.Is(err, models.ErrInvalidProduct) {
		t.Fatalf("expected ErrInvalidProduct, got %v", err)
	}
	if all, _ := s.GetProducts(models.ProductFilter{}); len(all) != 3 {
		t.Errorf("catalog must be left unchanged, got %d products", len(all))
	}
}

func TestLoadSeedMissingDir(t *testing.T) {
	res, err := LoadSeed(NewInMemoryStore(), filepath.Join(t.TempDir(), "absent"))
	if err != nil || res.Products != 0 {
		t.Errorf("expected silent skip, got %+v, %v", res, err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func getenvOrSkip(t *testing.T, key string) string {
	v := ""
	if val, ok := syscall.Getenv(key); ok {
		v = val
	}
	if v == "" {
		t.Skipf("env %s not set", key)
	}
	return v
}
