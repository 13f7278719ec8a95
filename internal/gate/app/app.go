package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abraham-of-london/circlegate/internal/gate/audit"
	gatehttp "github.com/abraham-of-london/circlegate/internal/gate/http"
	"github.com/abraham-of-london/circlegate/internal/gate/service"
	"github.com/abraham-of-london/circlegate/internal/gate/store/drivers/sqlite"
	"github.com/abraham-of-london/circlegate/pkg/cryptox"
	"github.com/abraham-of-london/circlegate/pkg/ratelimit"
	"github.com/abraham-of-london/circlegate/pkg/slogx"
)

// BuildVersion is reported by /livez and /readyz. Overridden at release time
// via -ldflags.
const BuildVersion = "v0.1.0"

// Application wires every component of the gate together and owns their
// lifecycle.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      *sqlite.Store
	redis   *redis.Client
	limiter *ratelimit.Limiter
	audit   *audit.Logger

	housekeeping *service.HousekeepingService

	router *gatehttp.Router
	server *http.Server
}

// New builds the application from configuration. Any error here is fatal;
// the gate never starts with a missing pepper or an unreachable database.
func New(cfg Config) (*Application, error) {
	logger := slogx.New(slogx.Config{
		Service: "circlegate",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg:    cfg,
		logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initHTTP(); err != nil {
		return nil, fmt.Errorf("failed to initialize http server: %w", err)
	}

	return app, nil
}

func (a *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", a.cfg.DatabaseFile)

	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		db.Close()
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	a.db = db
	a.logger.Info("database initialized", "file", a.cfg.DatabaseFile)
	return nil
}

func (a *Application) initHTTP() error {
	hasher, err := cryptox.NewHasher(a.cfg.Pepper)
	if err != nil {
		return err
	}

	limiterOpts := []ratelimit.Option{
		ratelimit.WithLogger(a.logger),
		ratelimit.WithRedisTimeout(a.cfg.RedisTimeout),
	}
	if a.cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
		limiterOpts = append(limiterOpts, ratelimit.WithRedis(a.redis))
		if a.cfg.RateLimitRequired {
			limiterOpts = append(limiterOpts, ratelimit.WithRequireRedis())
		}
	}
	a.limiter = ratelimit.New(limiterOpts...)
	a.limiter.Start()

	a.audit = audit.NewLogger(audit.NewStoreSink(a.db), a.logger)

	a.housekeeping = service.NewHousekeepingService(a.db, a.logger, a.cfg.HousekeepingInterval)

	policies := gatehttp.Policies{
		Redeem:   a.cfg.RedeemLimit.Policy("redeem"),
		Register: a.cfg.RegisterLimit.Policy("register"),
		API:      a.cfg.APILimit.Policy("api"),
		Admin:    a.cfg.AdminLimit.Policy("admin"),
	}

	a.router = gatehttp.NewRouter(
		BuildVersion,
		a.db,
		a.limiter,
		policies,
		a.cfg.AdminKeyHash,
		a.cfg.AdminJWTSecret,
		a.cfg.SecureCookies,
		a.logger,
	)

	a.router.RedeemService = &service.RedeemService{
		Store:      a.db,
		Hasher:     hasher,
		Audit:      a.audit,
		SessionTTL: a.cfg.SessionTTL,
	}
	a.router.SessionService = &service.SessionService{
		Store:            a.db,
		Audit:            a.audit,
		ActivityThrottle: a.cfg.ActivityThrottle,
	}
	a.router.RevokeService = &service.RevokeService{
		Store: a.db,
		Audit: a.audit,
	}
	a.router.MemberService = &service.MemberService{
		Store:  a.db,
		Hasher: hasher,
		Audit:  a.audit,
		KeyTTL: a.cfg.KeyTTL,
	}
	a.router.Hasher = hasher

	a.router.ApplyRoutes()

	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return nil
}

// Run starts the HTTP server and housekeeping worker and blocks until the
// process receives an interrupt or the server fails.
func (a *Application) Run() error {
	a.housekeeping.Start()

	serverErrors := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		a.logger.Info("shutdown signal received", "signal", sig.String())
		return a.Shutdown()
	}
}

// Shutdown stops the server and every background worker in dependency order,
// then closes the stores.
func (a *Application) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("graceful shutdown failed, forcing close", "error", err)
		a.server.Close()
	}

	a.housekeeping.Stop()
	a.limiter.Close()

	// Audit drains its buffer before the store goes away.
	a.audit.Close()

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("failed to close redis client", "error", err)
		}
	}

	if err := a.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}
