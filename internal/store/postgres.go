// Package store provides storage backends for ShopChat.
//
// This file implements a PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/ShopChat/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, ErrDSNNotSet
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetStoreProfile() (*models.StoreProfile, error) {
	row := s.db.QueryRow(`SELECT name, location, address, phone, email, description, hours, payment_methods, shipping, social FROM store_profile WHERE id = 1`)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetStoreProfile failed", "error", err)
		return nil, fmt.Errorf("failed to load store profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) SaveStoreProfile(profile models.StoreProfile) error {
	args, err := profileArgs(profile)
	if err != nil {
		return fmt.Errorf("failed to encode store profile: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO store_profile (id, name, location, address, phone, email, description, hours, payment_methods, shipping, social)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, location = EXCLUDED.location, address = EXCLUDED.address,
			phone = EXCLUDED.phone, email = EXCLUDED.email, description = EXCLUDED.description, hours = EXCLUDED.hours,
			payment_methods = EXCLUDED.payment_methods, shipping = EXCLUDED.shipping, social = EXCLUDED.social`, args...)
	if err != nil {
		slog.Error("PostgresStore SaveStoreProfile failed", "error", err)
		return fmt.Errorf("failed to save store profile: %w", err)
	}
	slog.Debug("PostgresStore SaveStoreProfile succeeded", "name", profile.Name)
	return nil
}

func (s *PostgresStore) GetProducts(filter models.ProductFilter) ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	var args []interface{}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(` AND category = $%d`, len(args))
	}
	if filter.Brand != "" {
		args = append(args, filter.Brand)
		query += fmt.Sprintf(` AND brand = $%d`, len(args))
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore GetProducts query failed", "error", err)
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	products, err := scanProducts(rows)
	if err != nil {
		slog.Error("PostgresStore GetProducts scan failed", "error", err)
		return nil, err
	}
	slog.Debug("PostgresStore GetProducts succeeded", "count", len(products))
	return products, nil
}

// SearchProducts filters the ordered catalog with filterProducts, so every
// backend matches the same way.
func (s *PostgresStore) SearchProducts(term string) ([]models.Product, error) {
	products, err := s.GetProducts(models.ProductFilter{})
	if err != nil {
		slog.Error("PostgresStore SearchProducts failed", "error", err, "term", term)
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	return filterProducts(products, term), nil
}

func (s *PostgresStore) GetProductByID(id int64) (*models.Product, error) {
	row := s.db.QueryRow(`SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, ErrProductNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetProductByID failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to load product %d: %w", id, err)
	}
	return &p, nil
}

func (s *PostgresStore) ReplaceProducts(products []models.Product) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM products`); err != nil {
		return fmt.Errorf("failed to clear products: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO products (` + productColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)
	if err != nil {
		return fmt.Errorf("failed to prepare product insert: %w", err)
	}
	defer stmt.Close()
	for _, p := range products {
		args, err := productArgs(p)
		if err != nil {
			return fmt.Errorf("failed to encode product %d: %w", p.ID, err)
		}
		if _, err := stmt.Exec(args...); err != nil {
			slog.Error("PostgresStore ReplaceProducts insert failed", "error", err, "id", p.ID)
			return fmt.Errorf("failed to insert product %d: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit products: %w", err)
	}
	slog.Debug("PostgresStore ReplaceProducts succeeded", "count", len(products))
	return nil
}

func (s *PostgresStore) AppendConversation(rec models.ConversationRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO conversations (phone_number, message, response, timestamp) VALUES ($1, $2, $3, $4)`,
		rec.Sender, rec.Message, rec.Response, ts.UTC())
	if err != nil {
		slog.Error("PostgresStore AppendConversation failed", "error", err, "sender", rec.Sender)
		return fmt.Errorf("failed to insert conversation for %s: %w", rec.Sender, err)
	}
	slog.Debug("PostgresStore AppendConversation succeeded", "sender", rec.Sender)
	return nil
}

func (s *PostgresStore) GetRecentConversations(sender string, limit int) ([]models.ConversationRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.db.Query(`SELECT id, phone_number, message, response, timestamp FROM conversations
		WHERE phone_number = $1 ORDER BY timestamp DESC, id DESC LIMIT $2`, sender, limit)
	if err != nil {
		slog.Error("PostgresStore GetRecentConversations query failed", "error", err, "sender", sender)
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	return scanConversations(rows)
}

func (s *PostgresStore) RecordInbound(messageID, sender string) (bool, error) {
	res, err := s.db.Exec(`INSERT INTO inbound_dedup (message_id, phone_number, received_at) VALUES ($1, $2, $3)
		ON CONFLICT (message_id) DO NOTHING`, messageID, sender, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	return n == 1, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close PostgreSQL database", "error", err)
	}
	return err
}
