package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/keyruu/ruscalimat/models"
	"github.com/keyruu/ruscalimat/repositories"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations
const uniqueViolation = "23505"

const accountColumns = `id, name, email, picture, pin_hash, created_at, updated_at, deleted_at`

// AccountRepository implements the repositories.AccountRepository interface
type AccountRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB, logger *zap.Logger) repositories.AccountRepository {
	return &AccountRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new account
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, name, email, picture, pin_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.Name,
		account.Email,
		account.Picture,
		account.PinHash,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("account %s: %w", account.ID, repositories.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	r.logger.Debug("account created", zap.String("id", account.ID))
	return nil
}

// GetByID retrieves an account by ID, including soft deleted ones
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// List retrieves all active accounts ordered by name
func (r *AccountRepository) List(ctx context.Context) ([]*models.Account, error) {
	return r.list(ctx, `SELECT `+accountColumns+` FROM accounts WHERE deleted_at IS NULL ORDER BY name, id`)
}

// ListDeleted retrieves all soft deleted accounts, most recently deleted first
func (r *AccountRepository) ListDeleted(ctx context.Context) ([]*models.Account, error) {
	return r.list(ctx, `SELECT `+accountColumns+` FROM accounts WHERE deleted_at IS NOT NULL ORDER BY deleted_at DESC`)
}

func (r *AccountRepository) list(ctx context.Context, query string) ([]*models.Account, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := []*models.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}

	return accounts, nil
}

// UpdatePinHash replaces the PIN hash of an active account
func (r *AccountRepository) UpdatePinHash(ctx context.Context, id, pinHash string) error {
	query := `
		UPDATE accounts
		SET pin_hash = $2,
		    updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL
	`

	if err := r.execOne(ctx, query, id, pinHash, time.Now().UTC()); err != nil {
		return err
	}

	r.logger.Debug("account pin updated", zap.String("id", id))
	return nil
}

// SoftDelete marks an active account as deleted
func (r *AccountRepository) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE accounts
		SET deleted_at = $2,
		    updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`

	if err := r.execOne(ctx, query, id, time.Now().UTC()); err != nil {
		return err
	}

	r.logger.Debug("account deleted", zap.String("id", id))
	return nil
}

// execOne runs an update that must touch exactly one active account
func (r *AccountRepository) execOne(ctx context.Context, query, id string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, append([]interface{}{id}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("account %s: %w", id, repositories.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	account := &models.Account{}
	var picture sql.NullString
	var deletedAt sql.NullTime

	err := row.Scan(
		&account.ID,
		&account.Name,
		&account.Email,
		&picture,
		&account.PinHash,
		&account.CreatedAt,
		&account.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	if picture.Valid {
		account.Picture = &picture.String
	}
	if deletedAt.Valid {
		account.DeletedAt = &deletedAt.Time
	}
	return account, nil
}
