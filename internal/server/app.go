// Package server wires configuration, storage, services and the HTTP and
// gRPC servers into a runnable application.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/taskmanager/internal/logging"
	"github.com/dmitrijs2005/taskmanager/internal/server/auth"
	"github.com/dmitrijs2005/taskmanager/internal/server/config"
	"github.com/dmitrijs2005/taskmanager/internal/server/repositories/memory"
	"github.com/dmitrijs2005/taskmanager/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskmanager/internal/server/rest"
	"github.com/dmitrijs2005/taskmanager/internal/server/services"
	"github.com/dmitrijs2005/taskmanager/internal/server/tenant"
	_ "github.com/jackc/pgx/v5/stdlib"

	gs "github.com/dmitrijs2005/taskmanager/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	codec       *auth.Codec

	authService  *services.AuthService
	taskService  *services.TaskService
	adminService *services.AdminService
}

// openDB is replaced in tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: c, logger: logger}

	var enforcer tenant.Enforcer
	switch c.Storage {
	case config.StorageMemory:
		app.repomanager = repomanager.NewMemoryRepositoryManager(memory.NewStore())
		enforcer = tenant.NewMemoryEnforcer()
	default:
		db, err := openDB(c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, c.StorageTimeout)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db ping error: %w", err)
		}
		app.db = db
		app.repomanager = repomanager.NewPostgresRepositoryManager()
		enforcer = tenant.NewPostgresEnforcer(db, c.StorageTimeout, logger)
	}

	codec, err := auth.NewCodec([]byte(c.SecretKey), c.AccessTokenValidityDuration)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.codec = codec

	hasher := auth.NewPasswordHasher(auth.DefaultArgonParams)
	ledger := services.NewLedger(enforcer, app.repomanager, c.RefreshTokenValidityDuration, logger)

	app.authService = services.NewAuthService(enforcer, app.repomanager, hasher, codec, ledger, logger)
	app.taskService = services.NewTaskService(enforcer, app.repomanager, logger)
	app.adminService = services.NewAdminService(enforcer, app.repomanager, hasher, logger)

	return app, nil
}

// Close releases the database pool, if any.
func (app *App) Close() error {
	if app.db != nil {
		return app.db.Close()
	}
	return nil
}

// Migrate applies pending schema migrations. It is a no-op for the memory
// backend.
func (app *App) Migrate(ctx context.Context) error {
	if app.db == nil {
		return nil
	}
	return app.repomanager.RunMigrations(ctx, app.db)
}

// Admin exposes the admin service to the CLI.
func (app *App) Admin() *services.AdminService {
	return app.adminService
}

// pinger returns the storage health probe. The memory backend has none.
func (app *App) pinger() rest.Pinger {
	if app.db == nil {
		return nil
	}
	return app.db
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	h := rest.NewRouter(app.authService, app.taskService, app.adminService, app.codec, app.pinger(),
		rest.Options{CookieSecure: app.config.CookieSecure, RefreshTTL: app.config.RefreshTokenValidityDuration}, app.logger)

	if err := rest.NewServer(app.config.HTTPAddr, h, app.logger).Run(ctx); err != nil {
		app.logger.Error(ctx, "http server", "error", err)
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	var p gs.Pinger
	if app.db != nil {
		p = app.db
	}

	if err := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.codec, p, app.taskService).Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server", "error", err)
		cancelFunc()
	}
}

// Run serves HTTP and gRPC until ctx is cancelled or a termination signal
// arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.Storage)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.logger.Info(ctx, "App stopped")
}
