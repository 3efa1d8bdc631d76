package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/bizdesk/internal/common"
	"github.com/dmitrijs2005/bizdesk/internal/logging"
	"github.com/dmitrijs2005/bizdesk/internal/server/auth"
	"github.com/dmitrijs2005/bizdesk/internal/server/cache"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/repomanager"
)

// Gate is the access-control gate every protected operation passes:
// token verification, session and lock checks, and sector permissions.
type Gate struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      *auth.TokenIssuer
	cache       cache.PermissionCache
	superuserID int64
	now         func() time.Time
	log         logging.Logger
}

func NewGate(db *sql.DB, m repomanager.RepositoryManager, tokens *auth.TokenIssuer, c cache.PermissionCache,
	superuserID int64, log logging.Logger) *Gate {
	if c == nil {
		c = cache.Nop{}
	}
	return &Gate{
		db:          db,
		repomanager: m,
		tokens:      tokens,
		cache:       c,
		superuserID: superuserID,
		now:         time.Now,
		log:         log.With("module", "gate"),
	}
}

// Authenticate verifies a bearer token.
func (g *Gate) Authenticate(ctx context.Context, bearer string) (auth.Identity, error) {
	if bearer == "" {
		return auth.Identity{}, fmt.Errorf("%w: missing token", common.ErrUnauthenticated)
	}
	id, err := g.tokens.Parse(bearer)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("%w: %w", common.ErrUnauthenticated, err)
	}
	return id, nil
}

// CheckNotLocked rejects locked accounts and tokens other than the last one
// issued to the identity.
func (g *Gate) CheckNotLocked(ctx context.Context, id auth.Identity, token string) error {
	user, err := g.repomanager.Users(g.db).FindByID(ctx, id.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: unknown user", common.ErrUnauthenticated)
		}
		return storeError(err)
	}

	if now := g.now(); user.LockedAt(now) {
		return fmt.Errorf("%w: try again in %d seconds", common.ErrAccountLocked, secondsUntil(now, *user.LockedUntil))
	}
	if user.APIToken == "" || user.APIToken != token {
		return common.ErrSessionMismatch
	}
	return nil
}

func (g *Gate) IsSuperuser(id auth.Identity) bool {
	return id.ID == g.superuserID
}

// AuthorizeSector lets the superuser through and otherwise requires a user
// or global grant of sector.
func (g *Gate) AuthorizeSector(ctx context.Context, id auth.Identity, sector string) error {
	if g.IsSuperuser(id) {
		return nil
	}
	if sector == "" {
		return fmt.Errorf("%w: operation not available", common.ErrForbidden)
	}

	allowed, err := g.cachedDecision(ctx, id.ID, sector)
	if err != nil {
		return err
	}

	if !allowed {
		return fmt.Errorf("%w: missing permission %s", common.ErrForbidden, sector)
	}
	return nil
}

// cachedDecision serves a decision from the cache or the permission store.
// The generation is read once, before the store, so a grant committed and
// invalidated meanwhile cannot leave a stale denial under the new
// generation.
func (g *Gate) cachedDecision(ctx context.Context, userID int64, sector string) (bool, error) {
	gen, genErr := g.cache.Generation(ctx)
	if genErr != nil {
		g.log.Warn(ctx, "permission cache read failed", "error", genErr)
	} else {
		allowed, err := g.cache.Get(ctx, gen, userID, sector)
		if err == nil {
			return allowed, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			g.log.Warn(ctx, "permission cache read failed", "error", err)
		}
	}

	allowed, err := g.repomanager.Permissions(g.db).Has(ctx, userID, sector)
	if err != nil {
		return false, storeError(err)
	}
	if genErr == nil {
		if err := g.cache.Set(ctx, gen, userID, sector, allowed); err != nil {
			g.log.Warn(ctx, "permission cache write failed", "error", err)
		}
	}
	return allowed, nil
}

// InvalidatePermissions drops cached decisions after a grant or revoke.
func (g *Gate) InvalidatePermissions(ctx context.Context) {
	if err := g.cache.Invalidate(ctx); err != nil {
		g.log.Error(ctx, "permission cache invalidation failed", "error", err)
	}
}

func secondsUntil(now, t time.Time) int64 {
	secs := int64(t.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
