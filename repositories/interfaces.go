package repositories

import (
	"context"
	"errors"

	"github.com/keyruu/ruscalimat/models"
)

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a row with the same key already exists
	ErrAlreadyExists = errors.New("already exists")
)

// AccountRepository handles account data operations
type AccountRepository interface {
	// Create creates a new account
	Create(ctx context.Context, account *models.Account) error

	// GetByID retrieves an account by ID, including soft deleted ones
	GetByID(ctx context.Context, id string) (*models.Account, error)

	// List retrieves all active accounts ordered by name
	List(ctx context.Context) ([]*models.Account, error)

	// ListDeleted retrieves all soft deleted accounts
	ListDeleted(ctx context.Context) ([]*models.Account, error)

	// UpdatePinHash replaces the PIN hash of an active account
	UpdatePinHash(ctx context.Context, id, pinHash string) error

	// SoftDelete marks an active account as deleted
	SoftDelete(ctx context.Context, id string) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Accounts AccountRepository
}
