// Package store provides storage backends for ShopChat.
//
// It owns the store profile, the product catalog, the append-only conversation
// history and the inbound de-duplication log. Backends: in-memory, SQLite and PostgreSQL.
package store

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/BTreeMap/ShopChat/internal/models"
)

// DefaultHistoryLimit is used by GetRecentConversations when limit <= 0.
const DefaultHistoryLimit = 10

var (
	// ErrProductNotFound is returned by GetProductByID for unknown ids.
	ErrProductNotFound = errors.New("product not found")
	// ErrDSNNotSet is returned when a persistent store is built without a DSN.
	ErrDSNNotSet = errors.New("database DSN not set")
)

// Store is the data-access contract used by the message pipeline and the HTTP API.
type Store interface {
	// GetStoreProfile returns the loaded store profile, or nil when none was seeded.
	GetStoreProfile() (*models.StoreProfile, error)
	// SaveStoreProfile replaces the store profile wholesale.
	SaveStoreProfile(profile models.StoreProfile) error

	// GetProducts returns products matching the filter, ordered by id.
	GetProducts(filter models.ProductFilter) ([]models.Product, error)
	// SearchProducts matches term case-insensitively against name, brand and description.
	SearchProducts(term string) ([]models.Product, error)
	// GetProductByID returns ErrProductNotFound when id is unknown.
	GetProductByID(id int64) (*models.Product, error)
	// ReplaceProducts replaces the whole catalog.
	ReplaceProducts(products []models.Product) error

	// AppendConversation appends a record to the sender's history.
	AppendConversation(rec models.ConversationRecord) error
	// GetRecentConversations returns up to limit records for sender, newest first.
	GetRecentConversations(sender string, limit int) ([]models.ConversationRecord, error)

	// RecordInbound records a platform message id. It returns false when the id
	// was already recorded, meaning the platform redelivered the event.
	RecordInbound(messageID, sender string) (bool, error)

	Close() error
}

// Opts holds configuration options for persistent stores.
type Opts struct {
	DSN string
}

// Option defines a configuration option for stores.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite file path or DSN.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType returns "postgres" for PostgreSQL connection strings and "sqlite3" otherwise.
func DetectDSNType(dsn string) string {
	trimmed := strings.TrimSpace(dsn)
	if strings.HasPrefix(trimmed, "postgres://") || strings.HasPrefix(trimmed, "postgresql://") || strings.Contains(trimmed, "host=") {
		return "postgres"
	}
	return "sqlite3"
}

// NewStore builds the backend matching dsn. An empty dsn yields an in-memory store.
func NewStore(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		slog.Debug("NewStore: no DSN provided, using in-memory store")
		return NewInMemoryStore(), nil
	}
	if DetectDSNType(dsn) == "postgres" {
		slog.Debug("NewStore: detected PostgreSQL DSN")
		return NewPostgresStore(WithPostgresDSN(dsn))
	}
	slog.Debug("NewStore: detected SQLite DSN", "db_path", dsn)
	return NewSQLiteStore(WithSQLiteDSN(dsn))
}
