package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/bizdesk/internal/logging"
	"github.com/dmitrijs2005/bizdesk/internal/server/auth"
	"github.com/dmitrijs2005/bizdesk/internal/server/mail"
	"github.com/dmitrijs2005/bizdesk/internal/server/models"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSuperuserID = 1

// fixture pairs the in-memory repositories with a sqlmock database that
// only sees transaction boundaries.
type fixture struct {
	db     *sql.DB
	mock   sqlmock.Sqlmock
	repos  *repomanager.InMemoryRepositoryManager
	tokens *auth.TokenIssuer
	gate   *Gate
	admin  auth.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })

	repos := repomanager.NewInMemoryRepositoryManager()
	tokens := auth.NewTokenIssuer([]byte("test-secret"), "bizdesk", time.Hour)

	f := &fixture{
		db:     db,
		mock:   mock,
		repos:  repos,
		tokens: tokens,
		gate:   NewGate(db, repos, tokens, nil, testSuperuserID, logging.Nop()),
	}
	f.admin = f.addUser(t, "admin", "admin-pass")
	require.Equal(t, int64(testSuperuserID), f.admin.ID)
	return f
}

// addUser stores an activated account.
func (f *fixture) addUser(t *testing.T, username, password string) auth.Identity {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)

	u, err := f.repos.Users(nil).Create(context.Background(), &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Activated:    true,
	})
	require.NoError(t, err)
	return auth.Identity{ID: u.ID, Username: u.Username, Email: u.Email}
}

func (f *fixture) grant(t *testing.T, userID *int64, sectors ...string) {
	t.Helper()
	for _, s := range sectors {
		_, err := f.repos.Permissions(nil).Create(context.Background(), userID, s)
		require.NoError(t, err)
	}
}

func (f *fixture) expectTx(commit bool) {
	f.mock.ExpectBegin()
	if commit {
		f.mock.ExpectCommit()
	} else {
		f.mock.ExpectRollback()
	}
}

func ptr(v int64) *int64 { return &v }

type fakeSender struct {
	sent []mail.Message
	err  error
}

func (s *fakeSender) Send(_ context.Context, m mail.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, m)
	return nil
}
