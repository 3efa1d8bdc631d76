// Package server wires the bizdesk backend together: database and
// migrations, the optional Redis permission cache and object storage, the
// mail transport, the domain services and the HTTP and gRPC listeners, and
// runs them until a shutdown signal.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/bizdesk/internal/logging"
	"github.com/dmitrijs2005/bizdesk/internal/server/auth"
	"github.com/dmitrijs2005/bizdesk/internal/server/cache"
	"github.com/dmitrijs2005/bizdesk/internal/server/config"
	"github.com/dmitrijs2005/bizdesk/internal/server/httpapi"
	"github.com/dmitrijs2005/bizdesk/internal/server/mail"
	"github.com/dmitrijs2005/bizdesk/internal/server/obs"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bizdesk/internal/server/services"
	"github.com/dmitrijs2005/bizdesk/internal/server/storage"
	_ "github.com/jackc/pgx/v5/stdlib"

	gs "github.com/dmitrijs2005/bizdesk/internal/server/grpc"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	cache  *cache.RedisPermissionCache
	http   *http.Server
	grpc   *gs.HealthServer
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	repos, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("repository manager error: %w", err)
	}
	if err := repos.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}

	permCache, err := app.permissionCache(ctx)
	if err != nil {
		app.close()
		return nil, err
	}

	var store storage.BlobStore
	if c.FileBackend == config.FileBackendS3 {
		s3, err := storage.NewS3Store(ctx, storage.S3Config{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
		})
		if err != nil {
			app.close()
			return nil, fmt.Errorf("object storage error: %w", err)
		}
		store = s3
	}

	sender, err := mail.NewSender(c, logger)
	if err != nil {
		app.close()
		return nil, err
	}

	metrics := obs.NewMetrics()
	tokens := auth.NewTokenIssuer([]byte(c.SecretKey), c.TokenIssuer, c.AccessTokenValidityDuration)

	gate := services.NewGate(db, repos, tokens, permCache, c.SuperuserID, logger)
	entities := services.NewEntityService(db, repos, gate, metrics, logger)
	svc := httpapi.Services{
		Gate:        gate,
		Auth:        services.NewAuthService(db, repos, tokens, gate, sender, c, metrics, logger),
		Entities:    entities,
		Permissions: services.NewPermissionService(db, repos, gate, logger),
		Files:       services.NewFileService(db, repos, gate, store, c.FileBackend, c.MaxUploadBytes, logger),
		Activity:    services.NewActivityService(db, repos, gate, logger),
		Export:      services.NewExportService(entities),
	}

	probe := httpapi.ReadyProbe{DB: db}
	api := httpapi.New(svc, httpapi.Options{
		CORSOrigins:        c.CORSOrigins,
		RateLimitPerSecond: c.RateLimitPerSecond,
		RateLimitBurst:     c.RateLimitBurst,
		MaxBodyBytes:       c.MaxBodyBytes,
		MaxUploadBytes:     c.MaxUploadBytes,
		TrustedProxies:     c.TrustedProxies,
	}, probe, metrics, logger)

	app.http = &http.Server{
		Addr:              c.EndpointAddrHTTP,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	app.grpc = gs.NewHealthServer(c.EndpointAddrGRPC, probe, 10*time.Second, logger)

	return app, nil
}

// permissionCache connects to Redis when an address is configured; without
// one every decision goes to the database.
func (app *App) permissionCache(ctx context.Context) (cache.PermissionCache, error) {
	if app.config.RedisAddr == "" {
		return nil, nil
	}
	c, err := cache.Dial(ctx, app.config.RedisAddr, app.config.RedisPassword, app.config.RedisDB,
		app.config.PermissionCacheTTL)
	if err != nil {
		return nil, err
	}
	app.cache = c
	return c, nil
}

func (app *App) close() {
	if app.cache != nil {
		if err := app.cache.Close(); err != nil {
			app.logger.Warn(context.Background(), "redis close failed", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(context.Background(), "db close failed", "error", err)
	}
}

// Run serves HTTP and gRPC until ctx is cancelled, SIGINT/SIGTERM/SIGQUIT
// arrives or a listener fails, then shuts both down.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer app.close()

	app.logger.Info(ctx, "Starting app...")

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
		cancel()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.logger.Info(ctx, "Starting HTTP server", "address", app.http.Addr)
		if err := app.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, "http server failed", "error", err)
			fail(err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.grpc.Run(ctx); err != nil {
			app.logger.Error(ctx, "grpc server failed", "error", err)
			fail(err)
		}
	}()

	<-ctx.Done()
	app.logger.Info(context.Background(), "Stopping HTTP server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := app.http.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "http shutdown failed", "error", err)
	}

	wg.Wait()
	return firstErr
}
