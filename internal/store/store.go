// Package store defines persistent customer storage. Implementations live
// in the memory, postgres and mariadb subpackages.
package store

import (
	"context"
	"errors"

	"github.com/averma/kyc-verify/internal/customer"
	"github.com/averma/kyc-verify/internal/verify"
)

// ErrNotFound is returned when a customer id does not exist.
var ErrNotFound = errors.New("customer not found")

// CustomerStore is the persistence boundary for customer records.
// Implementations must return deep copies so callers cannot mutate stored
// state without going through Save.
type CustomerStore interface {
	// Get retrieves a customer by id. Returns ErrNotFound when absent.
	Get(ctx context.Context, id string) (*customer.Customer, error)
	// List returns all customers.
	List(ctx context.Context) ([]*customer.Customer, error)
	// FindWithEmbedding returns customers whose named embedding field is
	// populated, optionally excluding one record. This is the population
	// snapshot the duplicate resolver scans.
	FindWithEmbedding(ctx context.Context, field, excludeID string) ([]*customer.Customer, error)
	// Save inserts or replaces a customer record.
	Save(ctx context.Context, c *customer.Customer) error
	// Delete removes a customer record entirely. Returns ErrNotFound when
	// absent.
	Delete(ctx context.Context, id string) error
	// Count returns the total number of customers.
	Count(ctx context.Context) (int, error)
}

// PopulationFor flattens customers into resolver population entries for
// the named embedding fields, skipping unpopulated fields and the
// excluded id. Entry order follows the input order so resolver tie-breaks
// stay stable.
func PopulationFor(customers []*customer.Customer, excludeID string, fields ...string) []verify.PopulationEntry {
	var entries []verify.PopulationEntry
	for _, c := range customers {
		if c.ID == excludeID {
			continue
		}
		for _, field := range fields {
			if emb := c.EmbeddingFor(field); len(emb) > 0 {
				entries = append(entries, verify.PopulationEntry{
					CustomerID: c.ID,
					Name:       c.Name,
					Field:      field,
					Embedding:  emb,
				})
			}
		}
	}
	return entries
}
