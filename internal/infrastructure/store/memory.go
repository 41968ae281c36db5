package store

import (
	"context"
	"sort"
	"sync"

	"github.com/agenticmap/backend/internal/domain"
)

// MemoryProductStore is a thread-safe in-memory ProductRepository. It is
// the default backend for local development and the test double of choice;
// semantics mirror the Postgres store exactly.
type MemoryProductStore struct {
	mutex sync.RWMutex
	byID  map[string]*domain.Product
	byURL map[string]string // normalized URL -> id
}

// NewMemoryProductStore creates an empty in-memory product store.
func NewMemoryProductStore() *MemoryProductStore {
	return &MemoryProductStore{
		byID:  make(map[string]*domain.Product),
		byURL: make(map[string]string),
	}
}

// Upsert inserts or atomically replaces the product keyed by its
// normalized URL. The stored copy is detached from the caller's pointer.
func (s *MemoryProductStore) Upsert(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if existingID, ok := s.byURL[product.NormalizedURL]; ok {
		product.ID = existingID
	}

	stored := cloneProduct(product)
	s.byID[stored.ID] = stored
	s.byURL[stored.NormalizedURL] = stored.ID
	return cloneProduct(stored), nil
}

// GetByID returns the product with the given id.
func (s *MemoryProductStore) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	product, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return cloneProduct(product), nil
}

// GetByNormalizedURL returns the product stored under the given dedup key.
func (s *MemoryProductStore) GetByNormalizedURL(ctx context.Context, normalizedURL string) (*domain.Product, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	id, ok := s.byURL[normalizedURL]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return cloneProduct(s.byID[id]), nil
}

// List returns all products ordered by created_at ascending, id ascending.
func (s *MemoryProductStore) List(ctx context.Context) ([]*domain.Product, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	products := make([]*domain.Product, 0, len(s.byID))
	for _, p := range s.byID {
		products = append(products, cloneProduct(p))
	}
	sort.Slice(products, func(i, j int) bool {
		if !products[i].CreatedAt.Equal(products[j].CreatedAt) {
			return products[i].CreatedAt.Before(products[j].CreatedAt)
		}
		return products[i].ID < products[j].ID
	})
	return products, nil
}

// Delete removes the product; a later scrape of the same URL is brand-new.
func (s *MemoryProductStore) Delete(ctx context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	product, ok := s.byID[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	delete(s.byID, id)
	delete(s.byURL, product.NormalizedURL)
	return nil
}

func cloneProduct(p *domain.Product) *domain.Product {
	clone := *p
	if p.Summary != nil {
		summary := *p.Summary
		clone.Summary = &summary
	}
	clone.RawSignals.CTAButtons = append([]domain.CTAButton(nil), p.RawSignals.CTAButtons...)
	clone.RawSignals.ReviewSnippets = append([]string(nil), p.RawSignals.ReviewSnippets...)
	return &clone
}

// MemoryComparisonStore is a thread-safe in-memory ComparisonRepository.
type MemoryComparisonStore struct {
	mutex       sync.RWMutex
	comparisons []*domain.Comparison
}

// NewMemoryComparisonStore creates an empty in-memory comparison store.
func NewMemoryComparisonStore() *MemoryComparisonStore {
	return &MemoryComparisonStore{}
}

// Save appends an immutable comparison record.
func (s *MemoryComparisonStore) Save(ctx context.Context, comparison *domain.Comparison) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	clone := *comparison
	s.comparisons = append(s.comparisons, &clone)
	return nil
}

// List returns the most recent comparisons first, at most limit entries.
func (s *MemoryComparisonStore) List(ctx context.Context, limit int) ([]*domain.Comparison, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	n := len(s.comparisons)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*domain.Comparison, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		clone := *s.comparisons[i]
		out = append(out, &clone)
	}
	return out, nil
}
