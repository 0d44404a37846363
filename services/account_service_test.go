package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/keyruu/ruscalimat/models"
	"github.com/keyruu/ruscalimat/repositories"
	"github.com/keyruu/ruscalimat/token"
	"github.com/keyruu/ruscalimat/token/tokentest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	args := m.Called(ctx, id)
	if account := args.Get(0); account != nil {
		return account.(*models.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountRepository) List(ctx context.Context) ([]*models.Account, error) {
	args := m.Called(ctx)
	if accounts := args.Get(0); accounts != nil {
		return accounts.([]*models.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountRepository) ListDeleted(ctx context.Context) ([]*models.Account, error) {
	args := m.Called(ctx)
	if accounts := args.Get(0); accounts != nil {
		return accounts.([]*models.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountRepository) UpdatePinHash(ctx context.Context, id, pinHash string) error {
	return m.Called(ctx, id, pinHash).Error(0)
}

func (m *MockAccountRepository) SoftDelete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// MockPinIssuer is a mock implementation of PinTokenIssuer
type MockPinIssuer struct {
	mock.Mock
}

func (m *MockPinIssuer) Issue(subject string) (string, error) {
	args := m.Called(subject)
	return args.String(0), args.Error(1)
}

func newTestService(t *testing.T) (*AccountService, *MockAccountRepository, *MockPinIssuer) {
	t.Helper()
	repo := new(MockAccountRepository)
	issuer := new(MockPinIssuer)
	t.Cleanup(func() {
		repo.AssertExpectations(t)
		issuer.AssertExpectations(t)
	})
	return newAccountService(repo, issuer, zap.NewNop(), bcrypt.MinCost), repo, issuer
}

func hashed(t *testing.T, pin string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func verifiedClaims(t *testing.T, subject string) *token.UserClaims {
	t.Helper()
	idp := tokentest.NewProvider(t)
	claims, err := token.NewVerifier(token.VerifierConfig{}).
		VerifyUser(tokentest.Bearer(idp.UserToken(subject)), token.RemoteKeys(idp.Cache()))
	require.NoError(t, err)
	return claims
}

func TestAccountServiceSignup(t *testing.T) {
	ctx := context.Background()
	claims := verifiedClaims(t, "sub-1")

	t.Run("creates the account from claims", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		repo.On("Create", ctx, mock.MatchedBy(func(a *models.Account) bool {
			return a.ID == "sub-1" &&
				a.Name == "Test User sub-1" &&
				a.Email == "sub-1@example.com" &&
				bcrypt.CompareHashAndPassword([]byte(a.PinHash), []byte("1234")) == nil
		})).Return(nil)

		account, err := svc.Signup(ctx, claims, "1234")
		require.NoError(t, err)
		assert.Equal(t, "sub-1", account.ID)
		assert.NotEqual(t, "1234", account.PinHash)
	})

	t.Run("invalid pin", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.Signup(ctx, claims, "12")
		assert.ErrorIs(t, err, ErrInvalidPin)
		assert.True(t, IsValidationError(err))
	})

	t.Run("already signed up", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		repo.On("Create", ctx, mock.Anything).Return(repositories.ErrAlreadyExists)

		_, err := svc.Signup(ctx, claims, "1234")
		assert.ErrorIs(t, err, ErrAccountExists)
		assert.Equal(t, "sub-1", GetErrorDetails(err)["id"])
	})

	t.Run("database failure", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		repo.On("Create", ctx, mock.Anything).Return(errors.New("connection reset"))

		_, err := svc.Signup(ctx, claims, "1234")
		assert.True(t, IsInternalError(err))
	})
}

func TestAccountServiceMyAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("active account", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		repo.On("GetByID", ctx, "sub-1").Return(models.NewAccount("sub-1", "A", "a@example.com", "h"), nil)

		account, err := svc.MyAccount(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, "sub-1", account.ID)
	})

	t.Run("not signed up", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		repo.On("GetByID", ctx, "sub-1").Return(nil, repositories.ErrNotFound)

		_, err := svc.MyAccount(ctx, "sub-1")
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("deleted account", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		account := models.NewAccount("sub-1", "A", "a@example.com", "h")
		now := time.Now()
		account.DeletedAt = &now
		repo.On("GetByID", ctx, "sub-1").Return(account, nil)

		_, err := svc.MyAccount(ctx, "sub-1")
		assert.ErrorIs(t, err, ErrAccountDeleted)
	})
}

func TestAccountServiceSetPin(t *testing.T) {
	ctx := context.Background()

	t.Run("stores a new hash", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		repo.On("UpdatePinHash", ctx, "sub-1", mock.MatchedBy(func(hash string) bool {
			return bcrypt.CompareHashAndPassword([]byte(hash), []byte("98765")) == nil
		})).Return(nil)

		require.NoError(t, svc.SetPin(ctx, "sub-1", "98765"))
	})

	t.Run("unknown account", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		repo.On("UpdatePinHash", ctx, "sub-1", mock.Anything).Return(repositories.ErrNotFound)

		assert.ErrorIs(t, svc.SetPin(ctx, "sub-1", "98765"), ErrAccountNotFound)
	})

	t.Run("invalid pin never reaches the store", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		assert.ErrorIs(t, svc.SetPin(ctx, "sub-1", "abcd"), ErrInvalidPin)
	})
}

func TestAccountServicePinLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("correct pin issues a token", func(t *testing.T) {
		svc, repo, issuer := newTestService(t)
		repo.On("GetByID", ctx, "sub-1").Return(models.NewAccount("sub-1", "A", "a@example.com", hashed(t, "1234")), nil)
		issuer.On("Issue", "sub-1").Return("Pin abc.def.ghi", nil)

		tok, err := svc.PinLogin(ctx, "sub-1", "1234")
		require.NoError(t, err)
		assert.Equal(t, "Pin abc.def.ghi", tok)
	})

	deleted := models.NewAccount("sub-1", "A", "a@example.com", hashed(t, "1234"))
	now := time.Now()
	deleted.DeletedAt = &now

	rejections := []struct {
		name    string
		account *models.Account
		repoErr error
		pin     string
	}{
		{name: "wrong pin", account: models.NewAccount("sub-1", "A", "a@example.com", hashed(t, "1234")), pin: "4321"},
		{name: "unknown account", repoErr: repositories.ErrNotFound, pin: "1234"},
		{name: "deleted account", account: deleted, pin: "1234"},
		{name: "account without pin", account: models.NewAccount("sub-1", "A", "a@example.com", ""), pin: "00000000"},
	}

	for _, tt := range rejections {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, issuer := newTestService(t)
			repo.On("GetByID", ctx, "sub-1").Return(tt.account, tt.repoErr)

			_, err := svc.PinLogin(ctx, "sub-1", tt.pin)
			assert.Same(t, ErrInvalidCredentials, err)
			issuer.AssertNotCalled(t, "Issue", mock.Anything)
		})
	}

	t.Run("signing failure is internal", func(t *testing.T) {
		svc, repo, issuer := newTestService(t)
		repo.On("GetByID", ctx, "sub-1").Return(models.NewAccount("sub-1", "A", "a@example.com", hashed(t, "1234")), nil)
		issuer.On("Issue", "sub-1").Return("", token.ErrSigning)

		_, err := svc.PinLogin(ctx, "sub-1", "1234")
		assert.True(t, IsInternalError(err))
		assert.ErrorIs(t, err, token.ErrSigning)
	})

	t.Run("database failure is internal", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		repo.On("GetByID", ctx, "sub-1").Return(nil, errors.New("timeout"))

		_, err := svc.PinLogin(ctx, "sub-1", "1234")
		assert.True(t, IsInternalError(err))
	})
}

func TestAccountServiceAdminOperations(t *testing.T) {
	ctx := context.Background()

	t.Run("list", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		repo.On("List", ctx).Return([]*models.Account{models.NewAccount("a", "A", "a@example.com", "")}, nil)

		accounts, err := svc.List(ctx)
		require.NoError(t, err)
		assert.Len(t, accounts, 1)
	})

	t.Run("list deleted failure", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		repo.On("ListDeleted", ctx).Return(nil, errors.New("boom"))

		_, err := svc.ListDeleted(ctx)
		assert.ErrorIs(t, err, ErrDatabaseError)
	})

	t.Run("delete", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		repo.On("SoftDelete", ctx, "a").Return(nil)
		assert.NoError(t, svc.Delete(ctx, "a"))
	})

	t.Run("delete unknown", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		repo.On("SoftDelete", ctx, "a").Return(repositories.ErrNotFound)
		assert.ErrorIs(t, svc.Delete(ctx, "a"), ErrAccountNotFound)
	})
}
