package server

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/bizdesk/internal/logging"
	"github.com/dmitrijs2005/bizdesk/internal/server/cache"
	"github.com/dmitrijs2005/bizdesk/internal/server/config"
)

func newTestApp(t *testing.T, c *config.Config) *App {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	mock.ExpectClose()
	return &App{config: c, logger: logging.Nop(), db: db}
}

func TestPermissionCache_DisabledWithoutAddress(t *testing.T) {
	app := newTestApp(t, &config.Config{})
	defer app.close()

	c, err := app.permissionCache(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != nil {
		t.Fatalf("expected no cache, got %T", c)
	}
}

func TestPermissionCache_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	app := newTestApp(t, &config.Config{RedisAddr: mr.Addr(), PermissionCacheTTL: time.Minute})
	defer app.close()

	c, err := app.permissionCache(context.Background())
	if err != nil {
		t.Fatalf("permissionCache error: %v", err)
	}
	if _, ok := c.(*cache.RedisPermissionCache); !ok {
		t.Fatalf("expected redis cache, got %T", c)
	}
	if err := c.Set(context.Background(), 0, 5, "addClient", true); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	allowed, err := c.Get(context.Background(), 0, 5, "addClient")
	if err != nil || !allowed {
		t.Fatalf("Get = %v, %v", allowed, err)
	}
}

func TestPermissionCache_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	app := newTestApp(t, &config.Config{RedisAddr: addr})
	defer app.close()

	if _, err := app.permissionCache(context.Background()); err == nil {
		t.Fatal("expected error for unreachable redis")
	}
	if app.cache != nil {
		t.Fatal("client kept after failed ping")
	}
}
