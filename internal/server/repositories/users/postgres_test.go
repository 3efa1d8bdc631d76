package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/bizdesk/internal/common"
	"github.com/dmitrijs2005/bizdesk/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var userCols = []string{"id", "username", "email", "password", "api_token", "failed_attempts", "locked_until",
	"password_reset_token", "password_reset_expires", "activation_token", "activated", "created_at", "updated_at"}

func userRow(lockedUntil any) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(userCols).
		AddRow(int64(42), "alice", "alice@example.com", "$2a$hash", "tok", 2, lockedUntil, "", nil, "", true, now, now)
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+users\s*\(username,\s*email,\s*password,\s*activation_token,\s*activated\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*NULLIF\(\$4,\s*''\),\s*\$5\)\s*RETURNING\s+id,\s*created_at,\s*updated_at\s*$`

	now := time.Now()
	mock.ExpectQuery(q).
		WithArgs("alice", "alice@example.com", "hash", "act", false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(42), now, now))

	u := &models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "hash", ActivationToken: "act"}
	got, err := repo.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != 42 || got.Username != "alice" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^INSERT\s+INTO\s+users`).WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), &models.User{Username: "alice"})
	if !errors.Is(err, common.ErrAlreadyExists) {
		t.Fatalf("want common.ErrAlreadyExists, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^INSERT\s+INTO\s+users`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Username: "alice"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFindByUsername_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	until := time.Now().Add(time.Minute)
	mock.ExpectQuery(`(?s)FROM\s+users\s+WHERE\s+username\s*=\s*\$1$`).
		WithArgs("alice").
		WillReturnRows(userRow(until))

	got, err := repo.FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("FindByUsername error: %v", err)
	}
	if got.ID != 42 || got.APIToken != "tok" || got.FailedAttempts != 2 || !got.Activated {
		t.Fatalf("unexpected user: %+v", got)
	}
	if got.LockedUntil == nil || !got.LockedUntil.Equal(until) {
		t.Fatalf("unexpected locked_until: %v", got.LockedUntil)
	}
	if got.ResetExpires != nil {
		t.Fatalf("expected nil reset expiry, got %v", got.ResetExpires)
	}
}

func TestFindByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs(int64(7)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), 7)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestFindByEmail_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+email\s*=\s*\$1$`).
		WithArgs("a@b.c").
		WillReturnError(errors.New("db err"))

	_, err := repo.FindByEmail(context.Background(), "a@b.c")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFindByResetToken_ChecksExpiry(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`WHERE\s+password_reset_token\s*=\s*\$1\s+AND\s+password_reset_expires\s*>\s*\$2$`).
		WithArgs("rt", now).
		WillReturnRows(userRow(nil))

	got, err := repo.FindByResetToken(context.Background(), "rt", now)
	if err != nil {
		t.Fatalf("FindByResetToken error: %v", err)
	}
	if got.LockedUntil != nil {
		t.Fatalf("expected no lock, got %v", got.LockedUntil)
	}
}

func TestActivate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+activated\s*=\s*TRUE,\s*activation_token\s*=\s*NULL.*WHERE\s+activation_token\s*=\s*\$1$`
	mock.ExpectExec(q).WithArgs("good").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("bad").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Activate(context.Background(), "good"); err != nil {
		t.Fatalf("Activate error: %v", err)
	}
	if err := repo.Activate(context.Background(), "bad"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestUpdateFailedAttempts(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `^UPDATE\s+users\s+SET\s+failed_attempts\s*=\s*\$1,\s*locked_until\s*=\s*\$2`
	until := time.Now().Add(15 * time.Minute)
	mock.ExpectExec(q).WithArgs(3, until, int64(42)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(0, nil, int64(42)).WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateFailedAttempts(context.Background(), 42, 3, &until); err != nil {
		t.Fatalf("UpdateFailedAttempts error: %v", err)
	}
	if err := repo.UpdateFailedAttempts(context.Background(), 42, 0, nil); err != nil {
		t.Fatalf("UpdateFailedAttempts error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetAPIToken(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^UPDATE\s+users\s+SET\s+api_token\s*=\s*NULLIF\(\$1,\s*''\)`).
		WithArgs("", int64(42)).
		WillReturnError(errors.New("db err"))

	err := repo.SetAPIToken(context.Background(), 42, "")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestResetPassword_ClearsLockout(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+password\s*=\s*\$1,.*failed_attempts\s*=\s*0,\s*locked_until\s*=\s*NULL.*WHERE\s+id\s*=\s*\$2$`
	mock.ExpectExec(q).WithArgs("newhash", int64(42)).WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.ResetPassword(context.Background(), 42, "newhash"); err != nil {
		t.Fatalf("ResetPassword error: %v", err)
	}
}

func TestSetResetToken(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := time.Now().Add(time.Hour)
	mock.ExpectExec(`^UPDATE\s+users\s+SET\s+password_reset_token\s*=\s*\$1,\s*password_reset_expires\s*=\s*\$2`).
		WithArgs("rt", exp, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SetResetToken(context.Background(), 1, "rt", exp); err != nil {
		t.Fatalf("SetResetToken error: %v", err)
	}
}

func TestListDirectory(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT id, username, email, activated FROM users ORDER BY username ASC$`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "activated"}).
			AddRow(int64(2), "alice", "a@x", true).
			AddRow(int64(3), "bob", "b@x", false))

	got, err := repo.ListDirectory(context.Background())
	if err != nil {
		t.Fatalf("ListDirectory error: %v", err)
	}
	if len(got) != 2 || got[1].Username != "bob" || got[1].Activated {
		t.Fatalf("unexpected directory: %+v", got)
	}
}
