package services

import (
	"context"
	"errors"

	"github.com/keyruu/ruscalimat/models"
	"github.com/keyruu/ruscalimat/repositories"
	"github.com/keyruu/ruscalimat/token"
	"github.com/keyruu/ruscalimat/utils"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// PinTokenIssuer issues "Pin " tokens for an account id
type PinTokenIssuer interface {
	Issue(subject string) (string, error)
}

// AccountService manages kiosk accounts and PIN logins
type AccountService struct {
	accounts repositories.AccountRepository
	signer   PinTokenIssuer
	logger   *zap.Logger
	hashCost int
	// dummyHash is compared against when no usable hash exists so that
	// unknown accounts cost as much as wrong PINs.
	dummyHash []byte
}

// NewAccountService creates a new AccountService
func NewAccountService(accounts repositories.AccountRepository, signer PinTokenIssuer, logger *zap.Logger) *AccountService {
	return newAccountService(accounts, signer, logger, bcrypt.DefaultCost)
}

func newAccountService(accounts repositories.AccountRepository, signer PinTokenIssuer, logger *zap.Logger, cost int) *AccountService {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("00000000"), cost)
	return &AccountService{
		accounts:  accounts,
		signer:    signer,
		logger:    logger,
		hashCost:  cost,
		dummyHash: dummy,
	}
}

// Signup creates the caller's account from verified identity-provider claims
func (s *AccountService) Signup(ctx context.Context, claims *token.UserClaims, pin string) (*models.Account, error) {
	hash, err := s.hashPin(pin)
	if err != nil {
		return nil, err
	}

	account := models.NewAccount(claims.Subject(), claims.Name(), claims.Email(), hash)
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return nil, ErrAccountExists.WithDetail("id", account.ID)
		}
		return nil, ErrDatabaseError.Wrap(err)
	}

	s.logger.Info("account signed up",
		zap.String("id", account.ID),
		zap.String("email", account.Email))
	return account, nil
}

// MyAccount returns the active account of the authenticated subject
func (s *AccountService) MyAccount(ctx context.Context, subject string) (*models.Account, error) {
	account, err := s.get(ctx, subject)
	if err != nil {
		return nil, err
	}
	if account.IsDeleted() {
		return nil, ErrAccountDeleted
	}
	return account, nil
}

// SetPin replaces the PIN of the authenticated subject's account
func (s *AccountService) SetPin(ctx context.Context, subject, pin string) error {
	hash, err := s.hashPin(pin)
	if err != nil {
		return err
	}

	if err := s.accounts.UpdatePinHash(ctx, subject, hash); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrAccountNotFound
		}
		return ErrDatabaseError.Wrap(err)
	}

	s.logger.Info("account pin changed", zap.String("id", subject))
	return nil
}

// PinLogin checks an account's PIN and issues a "Pin " token for it.
// Unknown, deleted and PIN-less accounts fail exactly like a wrong PIN.
func (s *AccountService) PinLogin(ctx context.Context, accountID, pin string) (string, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return "", ErrDatabaseError.Wrap(err)
	}

	hash := s.dummyHash
	usable := err == nil && !account.IsDeleted() && account.HasPin()
	if usable {
		hash = []byte(account.PinHash)
	}

	if cmpErr := bcrypt.CompareHashAndPassword(hash, []byte(pin)); cmpErr != nil || !usable {
		s.logger.Warn("pin login rejected", zap.String("account_id", accountID))
		return "", ErrInvalidCredentials
	}

	issued, err := s.signer.Issue(account.ID)
	if err != nil {
		return "", WrapInternal("failed to issue pin token", err)
	}

	s.logger.Info("pin login", zap.String("account_id", account.ID))
	return issued, nil
}

// List returns all active accounts
func (s *AccountService) List(ctx context.Context) ([]*models.Account, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, ErrDatabaseError.Wrap(err)
	}
	return accounts, nil
}

// ListDeleted returns all soft deleted accounts
func (s *AccountService) ListDeleted(ctx context.Context) ([]*models.Account, error) {
	accounts, err := s.accounts.ListDeleted(ctx)
	if err != nil {
		return nil, ErrDatabaseError.Wrap(err)
	}
	return accounts, nil
}

// Delete soft deletes an account
func (s *AccountService) Delete(ctx context.Context, id string) error {
	if err := s.accounts.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrAccountNotFound
		}
		return ErrDatabaseError.Wrap(err)
	}

	s.logger.Info("account deleted", zap.String("id", id))
	return nil
}

func (s *AccountService) get(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, ErrDatabaseError.Wrap(err)
	}
	return account, nil
}

func (s *AccountService) hashPin(pin string) (string, error) {
	if err := utils.ValidatePin(pin); err != nil {
		return "", ErrInvalidPin
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), s.hashCost)
	if err != nil {
		return "", WrapInternal("failed to hash pin", err)
	}
	return string(hash), nil
}
