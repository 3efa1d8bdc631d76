package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/bizdesk/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// FindByResetToken only finds tokens that have not expired at now.
	FindByResetToken(ctx context.Context, token string, now time.Time) (*models.User, error)
	Activate(ctx context.Context, token string) error
	UpdateFailedAttempts(ctx context.Context, id int64, attempts int, lockedUntil *time.Time) error
	SetAPIToken(ctx context.Context, id int64, token string) error
	SetResetToken(ctx context.Context, id int64, token string, expires time.Time) error
	// ResetPassword stores the new hash and clears the reset token and the
	// lockout state.
	ResetPassword(ctx context.Context, id int64, passwordHash string) error
	MarkActivated(ctx context.Context, id int64) error
	ListDirectory(ctx context.Context) ([]models.DirectoryEntry, error)
}
