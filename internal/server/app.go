// Package server initializes and runs the gophauth server. It selects the
// credential and session stores, applies migrations, wires the account
// service, and runs the gRPC and metrics endpoints until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/notify"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	registry *prometheus.Registry
	accounts *services.AccountService
	tokens   *auth.TokenAuthority
	closers  []io.Closer
}

// NewApp builds every dependency described by c. Resources opened here are
// released when Run returns.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	app := &App{config: c, logger: logger, registry: prometheus.NewRegistry()}
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m, err := metrics.New(app.registry)
	if err != nil {
		return nil, fmt.Errorf("metrics init error: %w", err)
	}

	ar, sr, err := app.initStores(ctx)
	if err != nil {
		app.close()
		return nil, err
	}

	notifier, err := app.initNotifier(ctx)
	if err != nil {
		app.close()
		return nil, err
	}

	app.tokens = auth.NewTokenAuthority(c.AccessTokenSecret, c.RefreshTokenSecret,
		c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration)
	hasher := auth.NewPasswordHasher(c.PasswordHashCost)

	app.accounts = services.NewAccountService(ar, sr, app.tokens, hasher, notifier, c, logger, m)

	return app, nil
}

func (app *App) initStores(ctx context.Context) (accounts.Repository, sessions.Repository, error) {
	c := app.config
	rm := repomanager.NewPostgresRepositoryManager()

	var db *sql.DB
	if c.DatabaseDSN != "" {
		var err error
		db, err = repomanager.OpenPostgres(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("db init error: %w", err)
		}
		app.closers = append(app.closers, db)

		if err := rm.RunMigrations(ctx, db); err != nil {
			return nil, nil, fmt.Errorf("db migration error: %w", err)
		}
	}

	var ar accounts.Repository
	if db != nil {
		ar = rm.Accounts(db)
	} else {
		app.logger.Warn(ctx, "no database configured, accounts are kept in memory")
		ar = accounts.NewInMemoryRepository()
	}

	switch c.SessionStore {
	case config.SessionStorePostgres:
		if db == nil {
			return nil, nil, fmt.Errorf("session store %q requires a database DSN", c.SessionStore)
		}
		return ar, rm.Sessions(db), nil
	case config.SessionStoreRedis:
		client, err := sessions.NewRedisClient(ctx, c.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("redis init error: %w", err)
		}
		app.closers = append(app.closers, client)
		return ar, sessions.NewRedisRepository(client), nil
	case config.SessionStoreMemory:
		return ar, sessions.NewInMemoryRepository(), nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", c.SessionStore)
	}
}

func (app *App) initNotifier(ctx context.Context) (notify.Notifier, error) {
	c := app.config
	if c.S3Bucket == "" {
		return notify.NewLogNotifier(app.logger), nil
	}

	client, err := notify.NewS3Client(ctx, notify.S3Options{
		Region:       c.S3Region,
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		BaseEndpoint: c.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 init error: %w", err)
	}
	return notify.NewS3Notifier(client, c.S3Bucket), nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.accounts, app.tokens)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc) {

	if err := metrics.Serve(ctx, app.config.MetricsAddr, app.registry, app.logger); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
	app.closers = nil
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	if app.config.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startMetricsServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()

	app.close()
	app.logger.Info(context.Background(), "App stopped")
}
