package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go-account-auth/internal/config"
	"go-account-auth/internal/database"
	"go-account-auth/internal/event"
	"go-account-auth/internal/federation"
	"go-account-auth/internal/handler"
	"go-account-auth/internal/mail"
	"go-account-auth/internal/middleware"
	"go-account-auth/internal/model"
	"go-account-auth/internal/password"
	"go-account-auth/internal/repository"
	"go-account-auth/internal/router"
	"go-account-auth/internal/service"
	"go-account-auth/internal/session"
	"go-account-auth/internal/token"
)

// auditLog records account events and serves them back per user.
type auditLog interface {
	service.AuditWriter
	Recent(ctx context.Context, actorID string, limit int) ([]model.AuditEntry, error)
}

type App struct {
	cfg          *config.Config
	logger       *slog.Logger
	server       *http.Server
	auditCancel  context.CancelFunc
	auditDone    sync.WaitGroup
	cleanupFuncs []func()
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	hasher, err := password.NewHasher(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize password hasher: %w", err)
	}

	a := &App{cfg: cfg, logger: logger}

	var (
		store       service.CredentialStore
		auditWriter auditLog
		health      *handler.HealthHandler
	)

	switch cfg.StoreDriver {
	case config.StorePostgres:
		logger.Info("connecting to PostgreSQL")
		db, err := database.New(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.EnsureSchema(context.Background()); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ensure database schema: %w", err)
		}
		a.cleanupFuncs = append(a.cleanupFuncs, db.Close)

		store = repository.NewUserRepository(db.Pool, hasher)
		auditWriter = repository.NewAuditRepository(db.Pool)
		health = handler.NewHealthHandler(db)
		logger.Info("database ready")
	default:
		logger.Warn("using the in-memory account store; data is lost on restart")
		store = repository.NewMemoryUserRepository(hasher)
		auditWriter = repository.NewMemoryAuditRepository(0)
		health = handler.NewHealthHandler(nil)
	}

	sender, err := newSender(cfg, logger)
	if err != nil {
		a.cleanup()
		return nil, err
	}

	codec, err := token.NewSessionCodec(cfg.JWTSecret)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to initialize session codec: %w", err)
	}

	sessions := session.NewManager(codec, session.Config{
		AccessTTL:       cfg.AccessTTL,
		RefreshTTL:      cfg.RefreshTTL,
		RememberMeTTL:   cfg.RememberMeTTL,
		VerificationTTL: cfg.VerificationTTL,
		ResetTTL:        cfg.ResetTTL,
		FlowCooldown:    cfg.FlowCooldown,
		BasePath:        cfg.CookieBasePath,
		Secure:          cfg.CookieSecure,
	})

	bus := event.NewBus()
	auditService := service.NewAuditService(bus, auditWriter, logger)
	auditCtx, auditCancel := context.WithCancel(context.Background())
	a.auditCancel = auditCancel
	a.auditDone.Add(1)
	go func() {
		defer a.auditDone.Done()
		auditService.Run(auditCtx)
	}()

	accountService := service.NewAccountService(service.AccountDeps{
		Store:    store,
		Secrets:  token.NewSecretTokens(store, cfg.VerificationTTL, cfg.ResetTTL),
		Sessions: sessions,
		Mailer:   mail.NewDispatcher(sender, cfg.MailFrom, cfg.MailTimeout, logger),
		Verifier: federation.NewGoogleVerifier(cfg.GoogleClientID),
		Bus:      bus,
		Logger:   logger,
	}, service.AccountConfig{
		PendingWindow:  cfg.PendingWindow,
		SignoutTimeout: cfg.SignoutTimeout,
		Templates:      mail.Templates{AppName: cfg.AppName, Origin: cfg.ClientOrigin},
	})

	appRouter := router.New(cfg, logger, middleware.NewAuthMiddleware(sessions), router.Handlers{
		Auth:   handler.NewAuthHandler(accountService, sessions),
		Audit:  handler.NewAuditHandler(auditWriter),
		Health: health,
		Docs:   handler.NewDocsHandler(cfg.AppName),
	})

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	return a, nil
}

func newSender(cfg *config.Config, logger *slog.Logger) (mail.Sender, error) {
	switch cfg.MailDriver {
	case config.MailSMTP:
		return mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		}), nil
	case config.MailPostmark:
		sender, err := mail.NewPostmarkSender(cfg.PostmarkServerToken, cfg.PostmarkAccountToken, cfg.PostmarkTag)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postmark sender: %w", err)
		}
		return sender, nil
	default:
		logger.Warn("mail is written to the log only")
		return mail.NewLogSender(logger), nil
	}
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case <-stop:
	case err := <-serveErr:
		runErr = fmt.Errorf("server failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil && runErr == nil {
		runErr = fmt.Errorf("graceful shutdown failed: %w", err)
	}

	a.auditCancel()
	a.auditDone.Wait()
	a.cleanup()

	a.logger.Info("server stopped")
	return runErr
}

func (a *App) cleanup() {
	for _, fn := range a.cleanupFuncs {
		fn()
	}
	a.cleanupFuncs = nil
}
