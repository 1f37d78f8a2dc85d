package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"

	googleauth "docrequests-backend/internal/auth"
	"docrequests-backend/internal/clients"
	"docrequests-backend/internal/docrequests"
	"docrequests-backend/internal/rms"
	"docrequests-backend/internal/services/health"
	sharedauth "docrequests-backend/internal/shared/auth"
	"docrequests-backend/internal/shared/config"
	sharedmail "docrequests-backend/internal/shared/mail"
	"docrequests-backend/internal/shared/server"
	"docrequests-backend/internal/shared/server/middleware"
	"docrequests-backend/internal/shared/storage/db"
	"docrequests-backend/internal/shared/storage/object"
	localstore "docrequests-backend/internal/shared/storage/object/local"
	miniostore "docrequests-backend/internal/shared/storage/object/minio"
	s3store "docrequests-backend/internal/shared/storage/object/s3"
	"docrequests-backend/internal/shared/telemetry"
)

// App holds shared dependencies and the assembled router.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Store    object.ObjectStore
	Mailer   sharedmail.Mailer
	Sessions sessions.Store
	Limiter  middleware.Limiter

	RMRepo      rms.Repo
	ClientRepo  clients.Repo
	RequestRepo docrequests.Repo

	RMService      *rms.Service
	ClientService  *clients.Service
	RequestService *docrequests.Service
	HealthService  *health.Service

	RMHandler      *rms.Handler
	ClientHandler  *clients.Handler
	RequestHandler *docrequests.Handler
	GoogleAuth     *googleauth.GoogleService

	closers []func() error
}

// Option adjusts the App before handlers are built. Tests use it to swap the
// mailer or the object store.
type Option func(*App)

// WithMailer overrides the configured mail backend.
func WithMailer(m sharedmail.Mailer) Option {
	return func(a *App) { a.Mailer = m }
}

// WithStore overrides the configured object store.
func WithStore(s object.ObjectStore) Option {
	return func(a *App) { a.Store = s }
}

// Build prepares shared dependencies and wires routes.
func Build(cfg config.Config, opts ...Option) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	app := &App{Config: cfg}
	for _, opt := range opts {
		opt(app)
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB
	if sqlDB != nil {
		app.closers = append(app.closers, sqlDB.Close)
	}

	if app.Store == nil {
		store, err := buildStore(ctx, cfg)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Store = store
	}
	if app.Mailer == nil {
		app.Mailer = buildMailer(cfg)
	}
	app.Sessions = middleware.NewCookieStore(cfg.SessionSecret, cfg.Env == "production")

	if err := buildLimiter(app); err != nil {
		app.Close()
		return nil, err
	}
	if err := buildServices(app); err != nil {
		app.Close()
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:         app.Config,
		Sessions:       app.Sessions,
		RMHandler:      app.RMHandler,
		ClientHandler:  app.ClientHandler,
		RequestHandler: app.RequestHandler,
		GoogleAuth:     app.GoogleAuth,
		Health:         app.HealthService,
		Limiter:        app.Limiter,
	})

	return app, nil
}

// Close releases the database pool and the rate limiter connection.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}

	// Deployed environments migrate through cmd/migrate before rollout.
	if isDevLike(cfg.Env) {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "minio":
		return miniostore.New(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL, cfg.MinioBucket)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildMailer(cfg config.Config) sharedmail.Mailer {
	if cfg.MailBackend == "smtp" {
		return sharedmail.NewSMTPMailer(cfg.MailSMTPHost, cfg.MailSMTPPort, cfg.MailSMTPUser, cfg.MailSMTPPass, cfg.MailFrom)
	}
	return sharedmail.LogMailer{}
}

func buildLimiter(app *App) error {
	if strings.TrimSpace(app.Config.RedisURL) == "" {
		app.Limiter = middleware.NewRateLimiter(nil)
		return nil
	}
	limiter, err := middleware.NewRedisLimiter(app.Config.RedisURL)
	if err != nil {
		return fmt.Errorf("redis limiter: %w", err)
	}
	app.Limiter = limiter
	app.closers = append(app.closers, limiter.Close)
	return nil
}

func buildServices(app *App) error {
	if app.DB != nil {
		app.RMRepo = &rms.PGRepo{DB: app.DB}
		app.ClientRepo = &clients.PGRepo{DB: app.DB}
		app.RequestRepo = &docrequests.PGRepo{DB: app.DB}
		app.HealthService = health.NewService(app.DB)
	} else {
		app.RMRepo = rms.NewMemoryRepo()
		app.ClientRepo = clients.NewMemoryRepo()
		app.RequestRepo = docrequests.NewMemoryRepo()
		app.HealthService = health.NewService(nil)
	}

	signer, err := sharedauth.NewSigner(app.Config.SigningSecret, clients.TokenPurpose, app.Config.EmailVerifyTTL)
	if err != nil {
		return fmt.Errorf("verification signer: %w", err)
	}

	app.RMService = rms.NewService(app.RMRepo)
	app.ClientService = &clients.Service{
		Repo:    app.ClientRepo,
		Mailer:  app.Mailer,
		Signer:  signer,
		BaseURL: app.Config.BaseURL,
	}
	app.RequestService = &docrequests.Service{
		Repo:    app.RequestRepo,
		Store:   app.Store,
		Mailer:  app.Mailer,
		Clients: app.ClientService,
		RMs:     app.RMService,
		BaseURL: app.Config.BaseURL,
	}

	googleEnabled := app.Config.GoogleEnabled()
	app.RMHandler = rms.NewHandler(app.RMService, googleEnabled)
	app.ClientHandler = clients.NewHandler(app.ClientService)
	app.RequestHandler = docrequests.NewHandler(app.RequestService, app.Config.MaxUploadBytes)
	if googleEnabled {
		app.GoogleAuth = googleauth.NewGoogleService(
			app.Config.GoogleClientID,
			app.Config.GoogleClientSecret,
			app.Config.GoogleRedirectURL,
			app.RMService,
		)
	}
	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
