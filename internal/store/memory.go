package store

import (
	"sort"
	"sync"
	"time"

	"github.com/BTreeMap/ShopChat/internal/models"
)

// InMemoryStore is a mutex-guarded in-memory Store, used in tests and when no DSN is configured.
type InMemoryStore struct {
	mu            sync.RWMutex
	profile       *models.StoreProfile
	products      []models.Product
	conversations []models.ConversationRecord
	nextConvID    int64
	inbound       map[string]string
}

// Compile-time check that InMemoryStore implements Store.
var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{inbound: make(map[string]string)}
}

func (s *InMemoryStore) GetStoreProfile() (*models.StoreProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil, nil
	}
	p := *s.profile
	return &p, nil
}

func (s *InMemoryStore) SaveStoreProfile(profile models.StoreProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = &profile
	return nil
}

func (s *InMemoryStore) GetProducts(filter models.ProductFilter) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Product
	for _, p := range s.products {
		if filter.Matches(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *InMemoryStore) SearchProducts(term string) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterProducts(s.products, term), nil
}

func (s *InMemoryStore) GetProductByID(id int64) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID == id {
			found := p
			return &found, nil
		}
	}
	return nil, ErrProductNotFound
}

func (s *InMemoryStore) ReplaceProducts(products []models.Product) error {
	sorted := make([]models.Product, len(products))
	copy(sorted, products)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = sorted
	return nil
}

func (s *InMemoryStore) AppendConversation(rec models.ConversationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextConvID++
	rec.ID = s.nextConvID
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	s.conversations = append(s.conversations, rec)
	return nil
}

func (s *InMemoryStore) GetRecentConversations(sender string, limit int) ([]models.ConversationRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ConversationRecord
	for i := len(s.conversations) - 1; i >= 0; i-- {
		if s.conversations[i].Sender == sender {
			out = append(out, s.conversations[i])
		}
	}
	// newest first; equal timestamps keep reverse insertion order
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) RecordInbound(messageID, sender string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.inbound[messageID]; seen {
		return false, nil
	}
	s.inbound[messageID] = sender
	return true, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
