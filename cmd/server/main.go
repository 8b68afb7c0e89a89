package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"laundry-service/backend/internal/audit"
	audithandler "laundry-service/backend/internal/audit/handler"
	auditrepo "laundry-service/backend/internal/audit/repository"
	"laundry-service/backend/internal/config"
	"laundry-service/backend/internal/db"
	"laundry-service/backend/internal/devcode"
	devcodehandler "laundry-service/backend/internal/devcode/handler"
	healthhandler "laundry-service/backend/internal/health/handler"
	identityhandler "laundry-service/backend/internal/identity/handler"
	"laundry-service/backend/internal/identity/service"
	"laundry-service/backend/internal/mail"
	"laundry-service/backend/internal/memstore"
	"laundry-service/backend/internal/policy/engine"
	"laundry-service/backend/internal/security"
	"laundry-service/backend/internal/server"
	"laundry-service/backend/internal/server/middleware"
	"laundry-service/backend/internal/session"
	sessionrepo "laundry-service/backend/internal/session/repository"
	"laundry-service/backend/internal/telemetry"
	telemetryotel "laundry-service/backend/internal/telemetry/otel"
	userrepo "laundry-service/backend/internal/user/repository"
	"laundry-service/backend/internal/verification"
	verificationrepo "laundry-service/backend/internal/verification/repository"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// storage is the persistence backend: Postgres when DATABASE_URL is set, otherwise in-memory.
type storage struct {
	tx       db.Transactor
	users    userrepo.Repository
	tokens   verificationrepo.Repository
	sessions sessionrepo.Repository
	audit    auditrepo.Repository
	pinger   healthhandler.Pinger
	close    func()
}

func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL is not set; using the in-memory store, data is lost on restart")
		m := memstore.New()
		return &storage{
			tx:       m,
			users:    m.Users(),
			tokens:   m.Tokens(),
			sessions: m.Sessions(),
			audit:    m.AuditLogs(),
			pinger:   m,
			close:    func() {},
		}, nil
	}
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return &storage{
		tx:       db.NewTxRunner(pool),
		users:    userrepo.NewPostgresRepository(pool),
		tokens:   verificationrepo.NewPostgresRepository(pool),
		sessions: sessionrepo.NewPostgresRepository(pool),
		audit:    auditrepo.NewPostgresRepository(pool),
		pinger:   pool,
		close:    pool.Close,
	}, nil
}

func newMailer(cfg *config.Config, logger *slog.Logger) (mail.Sender, error) {
	if cfg.MailHost == "" {
		logger.Warn("MAIL_HOST is not set; verification mails are logged, not sent")
		return mail.NewLogSender(logger), nil
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.MailHost,
		Port:     cfg.MailPort,
		Username: cfg.MailUser,
		Password: cfg.MailPass,
		From:     cfg.MailFrom,
	})
}

func newPolicy(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*engine.OPAEvaluator, error) {
	var policy string
	if cfg.RegistrationPolicyFile != "" {
		b, err := os.ReadFile(cfg.RegistrationPolicyFile)
		if err != nil {
			return nil, fmt.Errorf("read registration policy: %w", err)
		}
		policy = string(b)
	}
	return engine.NewOPAEvaluator(ctx, policy, logger)
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Settings{
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.OTelServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTelInsecure,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	metrics, err := telemetry.NewAuthMetrics(providers.MeterProvider)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	emitter := telemetryotel.NewEventEmitter(providers.LoggerProvider)

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.close()

	codec, err := security.NewCodec([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience,
		cfg.AccessTTL(), cfg.RefreshTTL(), cfg.StepTTL())
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}
	mailer, err := newMailer(cfg, logger)
	if err != nil {
		return err
	}
	policy, err := newPolicy(ctx, cfg, logger)
	if err != nil {
		return err
	}

	deps := service.Deps{
		Tx:       store.tx,
		Users:    store.users,
		Codes:    verification.NewStore(store.tx, store.tokens, store.users, cfg.CodeTTL(), cfg.ResendCooldown()),
		Sessions: session.NewStore(store.tx, store.sessions, cfg.RefreshTTL()),
		Codec:    codec,
		Hasher:   security.NewHasher(cfg.BcryptCost),
		Mailer:   mailer,
		Domains:  mail.NewMXValidator(nil, cfg.MXTimeout()),
		Policy:   policy,
		Metrics:  metrics,
		Log:      logger,
	}
	var devHandler *devcodehandler.Handler
	if cfg.DevCodeEndpoint {
		codes := devcode.NewMemoryStore(cfg.CodeTTL())
		deps.DevCodes = codes
		devHandler = devcodehandler.NewHandler(codes)
		logger.Warn("dev code endpoint enabled; GET /dev/verification-code exposes verification codes")
	}
	svc := service.NewAuthService(deps, service.Options{
		FrontendURL:       cfg.FrontendURL,
		MXMode:            cfg.MXPolicy,
		BlockedDomains:    cfg.BlockedDomains(),
		PasswordMinLength: cfg.PasswordMinLength,
	})

	app := server.NewApp(server.Deps{
		Auth: identityhandler.NewHandler(svc, codec, identityhandler.CookieConfig{
			Domain:  cfg.CookieDomain,
			Path:    cfg.CookiePath,
			Secure:  cfg.CookieSecure,
			StepTTL: cfg.StepTTL(),
		}),
		Codec:          codec,
		Health:         healthhandler.NewHandler(store.pinger, policy),
		DevCodes:       devHandler,
		AuditLogs:      audithandler.NewHandler(store.audit),
		Audit:          audit.NewLogger(store.audit, emitter, middleware.ClientIPFrom, logger),
		Events:         emitter,
		TracerProvider: providers.TracerProvider,
		AllowedOrigins: cfg.AllowedOrigins(),
		RateLimit:      cfg.RateLimitEnabled,
		TrustedProxies: cfg.TrustedProxyList(),
		Log:            logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		errCh <- app.Listen(cfg.HTTPAddr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server...")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	// Let in-flight async telemetry emits finish before the providers go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("telemetry shutdown", "error", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}
