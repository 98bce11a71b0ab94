package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/audit"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/config"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/infrastructure/db/postgres"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/infrastructure/memory"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/infrastructure/notify"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/infrastructure/oauth"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/infrastructure/redis"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/infrastructure/security"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/logger"
	http_handlers "github.com/baechuer/real-time-ressys/services/identity-service/internal/transport/http/handlers"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/transport/http/middleware"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/transport/http/response"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/transport/http/router"
)

/*
========================
 Public entry (prod)
========================
*/

func NewServer() (*http.Server, func(), error) {
	return newServer(defaultDeps())
}

// NewServerWithDeps allows injecting dependencies for testing
func NewServerWithDeps(deps Deps) (*http.Server, func(), error) {
	return newServer(deps)
}

/*
========================
 Dependency injection
========================
*/

type Deps struct {
	LoadConfig func() (*config.Config, error)

	NewDB func(dsn string, debug bool) (*sql.DB, error)

	Migrate func(ctx context.Context, db *sql.DB) error

	// NewRedis may be nil; sessions and oauth state then live in memory.
	NewRedis func(addr, password string, db int) *redis.Client

	NewNotifier func(cfg *config.Config) (auth.DeletionNotifier, func(), error)

	NewRouter func(router.Deps) (http.Handler, error)
}

/*
========================
 Core bootstrap logic
========================
*/

func newServer(deps Deps) (*http.Server, func(), error) {
	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	// 1) db + schema
	db, err := deps.NewDB(cfg.DatabaseURL, cfg.DBDebug)
	if err != nil {
		return nil, nil, err
	}
	cleanupFns := []func(){
		func() { _ = db.Close() },
	}

	if deps.Migrate != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := deps.Migrate(ctx, db)
		cancel()
		if err != nil {
			runCleanup(cleanupFns)
			return nil, nil, err
		}
	}

	store := postgres.NewStore(db)

	// 2) redis (best-effort)
	var redisCli *redis.Client
	if deps.NewRedis != nil && cfg.RedisAddr != "" {
		c := deps.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := c.Ping(context.Background()); err != nil {
			logger.Logger.Warn().Err(err).Msg("redis unavailable; using in-memory sessions")
			_ = c.Close()
		} else {
			logger.Logger.Info().Msg("redis connected")
			redisCli = c
			cleanupFns = append(cleanupFns, func() { _ = c.Close() })
		}
	}

	// 3) session + oauth state stores
	var (
		sessionStore auth.SessionStore
		stateStore   auth.OAuthStateStore
		limiter      middleware.RateLimiter
		redisPing    func(ctx context.Context) error
	)
	if redisCli != nil {
		sessionStore = redis.NewSessionStore(redisCli)
		stateStore = redis.NewOAuthStateStore(redisCli, cfg.OAuthStateTTL)
		limiter = redis.NewFixedWindowLimiter(redisCli)
		redisPing = redisCli.Ping
	} else {
		if cfg.Env != "dev" {
			logger.Logger.Warn().Msg("sessions are process-local; run a single replica or configure REDIS_ADDR")
		}
		sessionStore = memory.NewSessionStore()
		stateStore = memory.NewOAuthStateStore(cfg.OAuthStateTTL)
	}

	// 4) identity providers
	providers := oauth.NewRegistry(enabledProviders(cfg)...)
	logger.Logger.Info().Strs("providers", providers.Names()).Msg("identity providers enabled")

	// 5) deletion email
	notifier, closeNotifier, err := deps.NewNotifier(cfg)
	if err != nil {
		runCleanup(cleanupFns)
		return nil, nil, err
	}
	if closeNotifier != nil {
		cleanupFns = append(cleanupFns, closeNotifier)
	}

	// 6) security
	logger.Logger.Info().Str("issuer", cfg.JWTIssuer).Msg("initializing jwt codec")
	codec := security.NewJWTCodec(cfg.JWTSecret, cfg.JWTIssuer, cfg.BearerTTL)
	cookies := security.NewSessionCookies(cfg.SessionSecret, cfg.SessionTTL, cfg.SecureCookies())

	// 7) services
	auditor := audit.New(logger.Logger)

	resolver := auth.NewResolver(store).WithAudit(auditor)
	gateway := auth.NewGateway(providers, stateStore, resolver, sessionStore, codec, auth.GatewayConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		PublicBaseURL:  cfg.PublicBaseURL,
		FailureURL:     cfg.FailureRedirectURL,
		TokenRedirects: cfg.TokenRedirects,
		SessionTTL:     cfg.SessionTTL,
	}).WithAudit(auditor)
	sessions := auth.NewSessions(sessionStore, store)
	deletion := auth.NewDeletionFlow(store, notifier, auth.DeletionConfig{
		ConfirmURL: cfg.DeletionConfirmURL,
		TokenTTL:   cfg.DeletionTokenTTL,
	}).WithAudit(auditor)
	// drains pending deletion emails before the notifier closes
	cleanupFns = append(cleanupFns, deletion.Wait)

	// 8) handlers + middleware
	oauthH := http_handlers.NewOAuthHandler(gateway, cookies)
	accountH := http_handlers.NewAccountHandler(deletion)
	healthH := http_handlers.NewHealthHandler(db, redisPing)

	gateMW := middleware.Gate(middleware.GateConfig{
		Sessions: sessions,
		Cookies:  cookies,
		Bearer:   codec,
	}, response.WriteError)

	rl := func(key string, limit int, window time.Duration) func(http.Handler) http.Handler {
		if limit <= 0 {
			return nil
		}
		return middleware.RateLimit(limiter, middleware.FixedWindowConfig{
			RouteKey: key,
			Limit:    limit,
			Window:   window,
		}, response.WriteError)
	}

	// 9) router
	mux, err := deps.NewRouter(router.Deps{
		Health:  healthH,
		OAuth:   oauthH,
		Account: accountH,

		RequestIDMW: middleware.RequestID,
		AccessLogMW: middleware.AccessLog,
		MetricsMW:   middleware.Metrics,
		SecurityMW:  middleware.SecurityHeaders,
		CORSMW:      middleware.CORS(cfg.AllowedOrigins),
		GateMW:      gateMW,

		RLGlobal:        rl("global", cfg.RateLimitPerMinute, time.Minute),
		RLRequestDelete: rl("account.delete.request", 5, 10*time.Minute),
		RLConfirmDelete: rl("account.delete.confirm", 10, time.Minute),
	})
	if err != nil {
		runCleanup(cleanupFns)
		return nil, nil, err
	}

	// 10) server
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	cleanup := func() {
		runCleanup(cleanupFns)
	}

	return srv, cleanup, nil
}

func enabledProviders(cfg *config.Config) []auth.OAuthProvider {
	var list []auth.OAuthProvider
	if cfg.Google.Enabled() {
		list = append(list, oauth.NewGoogle(oauth.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
		}))
	}
	if cfg.GitHub.Enabled() {
		list = append(list, oauth.NewGitHub(oauth.Config{
			ClientID:     cfg.GitHub.ClientID,
			ClientSecret: cfg.GitHub.ClientSecret,
		}))
	}
	return list
}

// newNotifier picks the deletion email transport named by EMAIL_PROVIDER.
func newNotifier(cfg *config.Config) (auth.DeletionNotifier, func(), error) {
	switch cfg.EmailProvider {
	case "postmark":
		n, err := notify.NewPostmarkNotifier(cfg.Postmark.ServerToken, cfg.Postmark.AccountToken, cfg.EmailFrom)
		return n, nil, err
	case "smtp":
		n, err := notify.NewSMTPNotifier(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.EmailFrom)
		return n, nil, err
	case "rabbitmq":
		n, err := notify.NewRabbitNotifier(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			return nil, nil, err
		}
		return n, func() { _ = n.Close() }, nil
	case "log", "":
		return notify.NewLogNotifier(logger.Logger), nil, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown email provider %q", cfg.EmailProvider)
	}
}

/*
========================
 Default deps (prod)
========================
*/

func defaultDeps() Deps {
	return Deps{
		LoadConfig: config.Load,
		NewDB:      config.NewDB,
		Migrate: func(ctx context.Context, db *sql.DB) error {
			return postgres.Migrate(ctx, db, logger.Logger)
		},
		NewRedis:    redis.New,
		NewNotifier: newNotifier,
		NewRouter:   router.New,
	}
}

/*
========================
 helpers
========================
*/

func runCleanup(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
