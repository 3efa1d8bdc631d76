package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/bizdesk/internal/common"
	"github.com/dmitrijs2005/bizdesk/internal/dbx"
	"github.com/dmitrijs2005/bizdesk/internal/logging"
	"github.com/dmitrijs2005/bizdesk/internal/server/auth"
	"github.com/dmitrijs2005/bizdesk/internal/server/config"
	"github.com/dmitrijs2005/bizdesk/internal/server/kinds"
	"github.com/dmitrijs2005/bizdesk/internal/server/mail"
	"github.com/dmitrijs2005/bizdesk/internal/server/models"
	"github.com/dmitrijs2005/bizdesk/internal/server/obs"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/repomanager"
)

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string
	ExpiresIn time.Duration
	User      *models.User
}

// AuthService implements registration, activation, the login lockout state
// machine and password recovery.
type AuthService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	tokens        *auth.TokenIssuer
	gate          *Gate
	mailer        mail.Sender
	metrics       *obs.Metrics
	log           logging.Logger
	maxAttempts   int
	lockDuration  time.Duration
	resetValidity time.Duration
	publicBaseURL string

	now      func() time.Time
	newToken func(size int) (string, error)
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, tokens *auth.TokenIssuer, gate *Gate, mailer mail.Sender,
	cfg *config.Config, metrics *obs.Metrics, log logging.Logger) *AuthService {
	return &AuthService{
		db:            db,
		repomanager:   m,
		tokens:        tokens,
		gate:          gate,
		mailer:        mailer,
		metrics:       metrics,
		log:           log.With("module", "auth"),
		maxAttempts:   cfg.MaxFailedAttempts,
		lockDuration:  cfg.LockDuration,
		resetValidity: cfg.ResetTokenValidityDuration,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		now:           time.Now,
		newToken:      common.MakeRandHexString,
	}
}

func requireFields(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", common.ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

func (s *AuthService) link(path, token string) string {
	return s.publicBaseURL + path + "?token=" + url.QueryEscape(token)
}

// Register creates an unactivated account with its default profile and
// configuration, then mails the activation link. When the mail cannot be
// delivered the account is kept and the user is returned with the error.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if err := requireFields("username", username, "email", email, "password", password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	token, err := s.newToken(common.ActivationTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	user, err := s.createAccount(ctx, &models.User{
		Username:        username,
		Email:           email,
		PasswordHash:    hash,
		ActivationToken: token,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID, "username", username)

	msg, err := mail.ActivationMessage(email, username, s.link("/activate", token))
	if err != nil {
		return user, fmt.Errorf("%w: %v", common.ErrMailNotDelivered, err)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Error(ctx, "activation mail failed", "user_id", user.ID, "error", err)
		return user, err
	}
	return user, nil
}

// createAccount stores u with its default profile and configuration, both
// recorded in history as created by the new user.
func (s *AuthService) createAccount(ctx context.Context, u *models.User) (*models.User, error) {
	profile, err := kinds.UserProfiles.Validate(kinds.DefaultProfile(u.Username))
	if err != nil {
		return nil, err
	}
	configuration, err := kinds.UserConfigurations.Validate(kinds.DefaultConfiguration())
	if err != nil {
		return nil, err
	}

	user, err := dbx.WithTxValue(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (*models.User, error) {
		created, err := s.repomanager.Users(tx).Create(ctx, u)
		if err != nil {
			return nil, err
		}
		if _, err := createTracked(ctx, s.repomanager, tx, kinds.UserProfiles, created.ID, created.ID, profile); err != nil {
			return nil, err
		}
		if _, err := createTracked(ctx, s.repomanager, tx, kinds.UserConfigurations, created.ID, created.ID, configuration); err != nil {
			return nil, err
		}
		return created, nil
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: username or email already registered", common.ErrAlreadyExists)
		}
		s.log.Error(ctx, "account creation failed", "username", u.Username, "error", err)
		return nil, storeError(err)
	}
	return user, nil
}

// CreateActivated creates an account that can log in right away, without
// mail. bizctl uses it to bootstrap the superuser.
func (s *AuthService) CreateActivated(ctx context.Context, username, email, password string) (*models.User, error) {
	if err := requireFields("username", username, "email", email, "password", password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	user, err := s.createAccount(ctx, &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Activated:    true,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "activated account created", "user_id", user.ID, "username", username)
	return user, nil
}

// Activate consumes an activation token.
func (s *AuthService) Activate(ctx context.Context, token string) error {
	if err := requireFields("token", token); err != nil {
		return err
	}
	if err := s.repomanager.Users(s.db).Activate(ctx, token); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: invalid or already used activation token", common.ErrorNotFound)
		}
		return storeError(err)
	}
	return nil
}

// Login checks the password and drives the lockout state machine:
// a success resets the counter and replaces the stored session token, a
// failure increments it and, at the threshold, locks the account and drops
// the stored token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if err := requireFields("username", username, "password", password); err != nil {
		return nil, err
	}

	users := s.repomanager.Users(s.db)
	user, err := users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.LoginAttempt(obs.LoginRejected)
			return nil, common.ErrInvalidPassword
		}
		return nil, storeError(err)
	}

	if !user.Activated {
		s.metrics.LoginAttempt(obs.LoginRejected)
		return nil, common.ErrNotActivated
	}

	now := s.now()
	if user.LockedAt(now) {
		s.metrics.LoginAttempt(obs.LoginLocked)
		return nil, fmt.Errorf("%w: try again in %d seconds", common.ErrAccountLocked, secondsUntil(now, *user.LockedUntil))
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, s.loginFailed(ctx, user, now)
	}

	if err := users.UpdateFailedAttempts(ctx, user.ID, 0, nil); err != nil {
		return nil, storeError(err)
	}
	token, err := s.tokens.Generate(user.ID, user.Username, user.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	if err := users.SetAPIToken(ctx, user.ID, token); err != nil {
		return nil, storeError(err)
	}

	s.metrics.LoginAttempt(obs.LoginSuccess)
	s.log.Info(ctx, "login", "user_id", user.ID)
	return &LoginResult{Token: token, ExpiresIn: s.tokens.Validity(), User: user}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, user *models.User, now time.Time) error {
	users := s.repomanager.Users(s.db)

	// A lock that has run out starts a fresh round of attempts.
	attempts := user.FailedAttempts
	if user.LockedUntil != nil {
		attempts = 0
	}
	attempts++

	if attempts >= s.maxAttempts {
		until := now.Add(s.lockDuration)
		if err := users.UpdateFailedAttempts(ctx, user.ID, attempts, &until); err != nil {
			return storeError(err)
		}
		if err := users.SetAPIToken(ctx, user.ID, ""); err != nil {
			return storeError(err)
		}
		s.metrics.LoginAttempt(obs.LoginLocked)
		s.log.Warn(ctx, "account locked", "user_id", user.ID, "until", until)
		return fmt.Errorf("%w: account locked for %d minutes", common.ErrAccountLocked, int64(s.lockDuration/time.Minute))
	}

	if err := users.UpdateFailedAttempts(ctx, user.ID, attempts, nil); err != nil {
		return storeError(err)
	}
	s.metrics.LoginAttempt(obs.LoginFailed)
	return fmt.Errorf("%w: failed attempts %d, %d remaining", common.ErrInvalidPassword, attempts, s.maxAttempts-attempts)
}

// ForgotPassword issues a reset token and mails the reset link.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	if err := requireFields("email", email); err != nil {
		return err
	}

	users := s.repomanager.Users(s.db)
	user, err := users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: no user with that email", common.ErrorNotFound)
		}
		return storeError(err)
	}

	token, err := s.newToken(common.ResetTokenBytes)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	if err := users.SetResetToken(ctx, user.ID, token, s.now().Add(s.resetValidity)); err != nil {
		return storeError(err)
	}

	msg, err := mail.ResetMessage(user.Email, user.Username, s.link("/reset_password", token))
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrMailNotDelivered, err)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Error(ctx, "reset mail failed", "user_id", user.ID, "error", err)
		return err
	}
	return nil
}

// ResetPassword replaces the password of the holder of a valid reset token
// and lifts any lock.
func (s *AuthService) ResetPassword(ctx context.Context, token, password, confirm string) error {
	if err := requireFields("token", token, "new_password", password, "confirm_password", confirm); err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("%w: passwords do not match", common.ErrValidation)
	}

	users := s.repomanager.Users(s.db)
	user, err := users.FindByResetToken(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: invalid or expired reset token", common.ErrUnauthenticated)
		}
		return storeError(err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	if err := users.ResetPassword(ctx, user.ID, hash); err != nil {
		return storeError(err)
	}

	s.log.Info(ctx, "password reset", "user_id", user.ID)
	return nil
}

// Logout drops the stored session token, invalidating the caller's token.
func (s *AuthService) Logout(ctx context.Context, id auth.Identity) error {
	return storeError(s.repomanager.Users(s.db).SetAPIToken(ctx, id.ID, ""))
}

// DirectorySector guards the user directory.
const DirectorySector = "listAllProfiles"

// Directory lists every account except the caller, by username.
func (s *AuthService) Directory(ctx context.Context, id auth.Identity) ([]models.DirectoryEntry, error) {
	if err := s.gate.AuthorizeSector(ctx, id, DirectorySector); err != nil {
		return nil, err
	}
	all, err := s.repomanager.Users(s.db).ListDirectory(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	out := make([]models.DirectoryEntry, 0, len(all))
	for _, e := range all {
		if e.ID != id.ID {
			out = append(out, e)
		}
	}
	return out, nil
}
