// Package memory provides an in-memory CustomerStore used in tests and
// for running the service without a database.
package memory

import (
	"context"
	"sync"

	"github.com/averma/kyc-verify/internal/customer"
	"github.com/averma/kyc-verify/internal/store"
)

// Store is an in-memory implementation of store.CustomerStore.
type Store struct {
	mu        sync.RWMutex
	customers map[string]*customer.Customer
	order     []string // insertion order, keeps List and population scans stable

	// Error injection for tests
	GetError    error
	ListError   error
	FindError   error
	SaveError   error
	DeleteError error
	CountError  error
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		customers: make(map[string]*customer.Customer),
	}
}

// Get retrieves a customer by id.
func (s *Store) Get(ctx context.Context, id string) (*customer.Customer, error) {
	if s.GetError != nil {
		return nil, s.GetError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c.Clone(), nil
}

// List returns all customers in insertion order.
func (s *Store) List(ctx context.Context) ([]*customer.Customer, error) {
	if s.ListError != nil {
		return nil, s.ListError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*customer.Customer, 0, len(s.order))
	for _, id := range s.order {
		if c, ok := s.customers[id]; ok {
			result = append(result, c.Clone())
		}
	}
	return result, nil
}

// FindWithEmbedding returns customers whose named embedding field is
// populated, excluding the given id.
func (s *Store) FindWithEmbedding(ctx context.Context, field, excludeID string) ([]*customer.Customer, error) {
	if s.FindError != nil {
		return nil, s.FindError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*customer.Customer
	for _, id := range s.order {
		c, ok := s.customers[id]
		if !ok || c.ID == excludeID {
			continue
		}
		if len(c.EmbeddingFor(field)) > 0 {
			result = append(result, c.Clone())
		}
	}
	return result, nil
}

// Save inserts or replaces a customer record.
func (s *Store) Save(ctx context.Context, c *customer.Customer) error {
	if s.SaveError != nil {
		return s.SaveError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[c.ID]; !exists {
		s.order = append(s.order, c.ID)
	}
	s.customers[c.ID] = c.Clone()
	return nil
}

// Delete removes a customer record.
func (s *Store) Delete(ctx context.Context, id string) error {
	if s.DeleteError != nil {
		return s.DeleteError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.customers, id)
	for idx, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:idx], s.order[idx+1:]...)
			break
		}
	}
	return nil
}

// Count returns the number of stored customers.
func (s *Store) Count(ctx context.Context) (int, error) {
	if s.CountError != nil {
		return 0, s.CountError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.customers), nil
}
