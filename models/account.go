package models

import (
	"time"
)

// Account is a drinker registered with the kiosk. The ID is the identity
// provider's subject, so bearer tokens map to accounts without a lookup table.
type Account struct {
	ID        string     `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	Email     string     `json:"email" db:"email"`
	Picture   *string    `json:"picture,omitempty" db:"picture"`
	PinHash   string     `json:"-" db:"pin_hash"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// TableName returns the table name for the Account model
func (Account) TableName() string {
	return "accounts"
}

// NewAccount creates a new Account instance
func NewAccount(id, name, email, pinHash string) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:        id,
		Name:      name,
		Email:     email,
		PinHash:   pinHash,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsDeleted returns true once the account has been soft deleted
func (a *Account) IsDeleted() bool {
	return a.DeletedAt != nil
}

// HasPin returns true if a PIN has been set for kiosk login
func (a *Account) HasPin() bool {
	return a.PinHash != ""
}
