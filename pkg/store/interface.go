package store

import (
	"github.com/tonsiri/loanbook/pkg/models"
)

// Store persists the full loan collection as a single unit. There is no
// partial-record API: every Save replaces the whole collection.
type Store interface {
	// Load returns the persisted collection, or an empty one if nothing has
	// been saved yet or the stored value cannot be parsed.
	Load() ([]models.Loan, error)
	Save(loans []models.Loan) error
	Close() error
}
