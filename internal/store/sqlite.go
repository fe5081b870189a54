// Package store provides storage backends for ShopChat.
//
// This file implements an SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "embed"

	"github.com/BTreeMap/ShopChat/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, ErrDSNNotSet
	}

	// Ensure the directory exists for plain file paths
	if path := sqliteFilePath(dsn); path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			slog.Error("Failed to create database directory", "error", err, "dir", dir)
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		slog.Debug("SQLite database directory verified/created", "dir", dir)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// a single writer avoids "database is locked" under concurrent webhooks
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// sqliteFilePath extracts the file path from a DSN, or "" for in-memory databases.
func sqliteFilePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return ""
	}
	return path
}

func (s *SQLiteStore) GetStoreProfile() (*models.StoreProfile, error) {
	row := s.db.QueryRow(`SELECT name, location, address, phone, email, description, hours, payment_methods, shipping, social FROM store_profile WHERE id = 1`)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetStoreProfile: no profile loaded")
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetStoreProfile failed", "error", err)
		return nil, fmt.Errorf("failed to load store profile: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) SaveStoreProfile(profile models.StoreProfile) error {
	args, err := profileArgs(profile)
	if err != nil {
		return fmt.Errorf("failed to encode store profile: %w", err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO store_profile (id, name, location, address, phone, email, description, hours, payment_methods, shipping, social)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		slog.Error("SQLiteStore SaveStoreProfile failed", "error", err)
		return fmt.Errorf("failed to save store profile: %w", err)
	}
	slog.Debug("SQLiteStore SaveStoreProfile succeeded", "name", profile.Name)
	return nil
}

func (s *SQLiteStore) GetProducts(filter models.ProductFilter) ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	var args []interface{}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.Brand != "" {
		query += ` AND brand = ?`
		args = append(args, filter.Brand)
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore GetProducts query failed", "error", err)
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	products, err := scanProducts(rows)
	if err != nil {
		slog.Error("SQLiteStore GetProducts scan failed", "error", err)
		return nil, err
	}
	slog.Debug("SQLiteStore GetProducts succeeded", "count", len(products))
	return products, nil
}

// SearchProducts filters the ordered catalog with filterProducts, so every
// backend matches the same way.
func (s *SQLiteStore) SearchProducts(term string) ([]models.Product, error) {
	products, err := s.GetProducts(models.ProductFilter{})
	if err != nil {
		slog.Error("SQLiteStore SearchProducts failed", "error", err, "term", term)
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	return filterProducts(products, term), nil
}

func (s *SQLiteStore) GetProductByID(id int64) (*models.Product, error) {
	row := s.db.QueryRow(`SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, ErrProductNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetProductByID failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to load product %d: %w", id, err)
	}
	return &p, nil
}

func (s *SQLiteStore) ReplaceProducts(products []models.Product) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM products`); err != nil {
		return fmt.Errorf("failed to clear products: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO products (` + productColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
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
			slog.Error("SQLiteStore ReplaceProducts insert failed", "error", err, "id", p.ID)
			return fmt.Errorf("failed to insert product %d: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit products: %w", err)
	}
	slog.Debug("SQLiteStore ReplaceProducts succeeded", "count", len(products))
	return nil
}

func (s *SQLiteStore) AppendConversation(rec models.ConversationRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO conversations (phone_number, message, response, timestamp) VALUES (?, ?, ?, ?)`,
		rec.Sender, rec.Message, rec.Response, ts.UTC())
	if err != nil {
		slog.Error("SQLiteStore AppendConversation failed", "error", err, "sender", rec.Sender)
		return fmt.Errorf("failed to insert conversation for %s: %w", rec.Sender, err)
	}
	slog.Debug("SQLiteStore AppendConversation succeeded", "sender", rec.Sender)
	return nil
}

func (s *SQLiteStore) GetRecentConversations(sender string, limit int) ([]models.ConversationRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.db.Query(`SELECT id, phone_number, message, response, timestamp FROM conversations
		WHERE phone_number = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, sender, limit)
	if err != nil {
		slog.Error("SQLiteStore GetRecentConversations query failed", "error", err, "sender", sender)
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	return scanConversations(rows)
}

func (s *SQLiteStore) RecordInbound(messageID, sender string) (bool, error) {
	res, err := s.db.Exec(`INSERT OR IGNORE INTO inbound_dedup (message_id, phone_number, received_at) VALUES (?, ?, ?)`,
		messageID, sender, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	return n == 1, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
