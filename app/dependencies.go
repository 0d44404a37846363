package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/keyruu/ruscalimat/config"
	"github.com/keyruu/ruscalimat/jwks"
	"github.com/keyruu/ruscalimat/middleware"
	"github.com/keyruu/ruscalimat/repositories"
	"github.com/keyruu/ruscalimat/repositories/postgres"
	"github.com/keyruu/ruscalimat/services"
	"github.com/keyruu/ruscalimat/token"
	"go.uber.org/zap"
)

// Version is reported by the status endpoint
var Version = "dev"

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Accounts repositories.AccountRepository

	// Auth
	KeyCache       *jwks.Cache
	Signer         *token.PinSigner
	Verifier       *token.Verifier
	Gate           *token.Gate
	AuthMiddleware *middleware.AuthMiddleware

	// Services
	AccountService *services.AccountService
}

// NewDependencies opens the database and wires up all application dependencies.
// Identity provider discovery and the PIN key load happen here, so any failure
// aborts startup before the server listens.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	db, err := postgres.NewDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps, err := NewDependenciesFromDB(ctx, cfg, logger, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return deps, nil
}

// NewDependenciesFromDB wires all dependencies on an already opened pool
func NewDependenciesFromDB(ctx context.Context, cfg *config.Config, logger *zap.Logger, db *postgres.DB) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initAuth(ctx, cfg.Auth); err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	deps.initServices()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase creates the schema and the repositories
func (d *Dependencies) initDatabase(ctx context.Context, db *postgres.DB) error {
	if err := db.InitSchema(ctx); err != nil {
		return err
	}

	d.DB = db
	d.RepoFactory = postgres.NewRepositoryFactoryFromDB(db, d.Logger)
	d.Accounts = d.RepoFactory.NewRepositories().Accounts

	d.Logger.Info("repositories initialized")
	return nil
}

// initAuth discovers the identity provider keys, loads the PIN key and builds
// the authentication gate. The key cache is published exactly once, here.
func (d *Dependencies) initAuth(ctx context.Context, cfg config.AuthConfig) error {
	keySet, err := jwks.NewDiscoverer(cfg.DiscoveryTimeout, d.Logger).Discover(ctx, cfg.ServerURL)
	if err != nil {
		return fmt.Errorf("identity provider discovery: %w", err)
	}
	d.KeyCache = jwks.NewCache()
	d.KeyCache.Publish(keySet)

	d.Signer = token.NewPinSigner(token.SignerConfig{
		KeyPath: cfg.PinKeyPath,
		KeyID:   cfg.PinKeyID,
		TTL:     cfg.PinTokenTTL,
	})
	pinKey, err := d.Signer.PublicKey()
	if err != nil {
		return fmt.Errorf("pin signing key: %w", err)
	}

	d.Verifier = token.NewVerifier(token.VerifierConfig{
		AdminGroup: cfg.AdminGroup,
		Issuer:     cfg.Issuer,
		Audience:   cfg.Audience,
		Leeway:     cfg.Leeway,
	})
	d.Gate = token.NewGate(d.Verifier, token.RemoteKeys(d.KeyCache), token.LocalKey(pinKey))
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Gate, d.Logger)

	d.Logger.Info("auth initialized",
		zap.String("server_url", cfg.ServerURL),
		zap.Strings("key_ids", keySet.KeyIDs()),
		zap.String("pin_key_id", pinKey.ID),
		zap.String("pin_alg", pinKey.Algorithm))
	return nil
}

// initServices creates the business services
func (d *Dependencies) initServices() {
	d.AccountService = services.NewAccountService(d.Accounts, d.Signer, d.Logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	return errors.Join(errs...)
}
