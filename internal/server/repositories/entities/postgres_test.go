package entities

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/bizdesk/internal/common"
	"github.com/dmitrijs2005/bizdesk/internal/server/kinds"
	"github.com/dmitrijs2005/bizdesk/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

func newRepoWithMock(t *testing.T, k *kinds.Kind) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(k, db), mock, db
}

var clientCols = []string{"id", "user_id", "business_name", "tax_id", "email", "brand_file_id", "phone", "address", "created_at", "updated_at"}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, kinds.Clients)
	defer db.Close()

	q := `(?s)^INSERT INTO clients \(user_id, business_name, tax_id, email, brand_file_id, phone, address\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7\) RETURNING id, created_at, updated_at$`
	now := time.Now()
	mock.ExpectQuery(q).
		WithArgs(int64(9), "Acme", "20-1", "a@acme.io", nil, "", "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(5), now, now))

	values := models.Values{"business_name": "Acme", "tax_id": "20-1", "email": "a@acme.io", "brand_file_id": nil, "phone": "", "address": ""}
	rec, err := repo.Create(context.Background(), 9, values)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if rec.ID != 5 || rec.OwnerID == nil || *rec.OwnerID != 9 || rec.Values["business_name"] != "Acme" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_GlobalKindHasNoOwnerColumn(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, kinds.Statuses)
	defer db.Close()

	q := `^INSERT INTO statuses \(label, value, background_color, order_index\) VALUES \(\$1, \$2, \$3, \$4\)`
	mock.ExpectQuery(q).
		WithArgs("Nuevo", "Nuevo", "#000000", int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(9), time.Now(), time.Now()))

	rec, err := repo.Create(context.Background(), 1, models.Values{"label": "Nuevo", "value": "Nuevo", "background_color": "#000000", "order_index": int64(8)})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if rec.OwnerID != nil {
		t.Fatalf("expected no owner, got %v", *rec.OwnerID)
	}
}

func TestCreate_UniqueViolation(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, kinds.UserConfigurations)
	defer db.Close()

	mock.ExpectQuery(`^INSERT INTO user_configurations`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), 1, models.Values{"role": "r", "view_type": "v", "theme": "t", "font_size": "f"})
	if !errors.Is(err, common.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, kinds.CashBoxes)
	defer db.Close()

	mock.ExpectQuery(`^INSERT INTO cash_boxes`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), 1, models.Values{"name": "Main"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFindByID_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, kinds.Clients)
	defer db.Close()

	q := `^SELECT id, user_id, business_name, tax_id, email, brand_file_id, phone, address, created_at, updated_at FROM clients WHERE id = \$1$`
	now := time.Now()
	mock.ExpectQuery(q).WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(clientCols).AddRow(int64(5), int64(9), "Acme", "20-1", "a@acme.io", nil, "555", "Main St", now, now))

	rec, err := repo.FindByID(context.Background(), 5)
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	if rec.ID != 5 || *rec.OwnerID != 9 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Values["phone"] != "555" || rec.Values["brand_file_id"] != nil {
		t.Fatalf("unexpected values: %+v", rec.Values)
	}
}

func TestFindByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, kinds.Clients)
	defer db.Close()

	mock.ExpectQuery(`FROM clients WHERE id = \$1$`).WithArgs(int64(77)).WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), 77)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestFindByOwner(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, kinds.UserProfiles)
	defer db.Close()

	cols := []string{"id", "user_id", "full_name", "phone", "address", "cuit", "profile_file_id", "created_at", "updated_at"}
	mock.ExpectQuery(`FROM user_profile WHERE user_id = \$1 ORDER BY id LIMIT 1$`).WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(1), int64(3), "alice", "", "", "", nil, time.Now(), time.Now()))

	rec, err := repo.FindByOwner(context.Background(), 3)
	if err != nil {
		t.Fatalf("FindByOwner error: %v", err)
	}
	if rec.Values["full_name"] != "alice" {
		t.Fatalf("unexpected values: %+v", rec.Values)
	}
}

func TestUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, kinds.CashBoxes)
	defer db.Close()

	q := `^UPDATE cash_boxes SET name = \$1, image_file_id = \$2, updated_at = now\(\) WHERE id = \$3$`
	mock.ExpectExec(q).WithArgs("Petty", int64(4), int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("Petty", nil, int64(3)).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Update(context.Background(), 2, models.Values{"name": "Petty", "image_file_id": int64(4)}); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	err := repo.Update(context.Background(), 3, models.Values{"name": "Petty", "image_file_id": nil})
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestUpdate_BindsDecimals(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, kinds.Sales)
	defer db.Close()

	mock.ExpectExec(`^UPDATE sales SET`).
		WithArgs(int64(1), int64(2), nil, "F-1", "10.5", nil, "", int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), 8, models.Values{
		"client_id": int64(1), "product_service_id": int64(2), "folder_id": nil,
		"invoice_number": "F-1", "amount": decimal.RequireFromString("10.50"),
		"sale_date": nil, "attached_files": "",
	})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, kinds.Clients)
	defer db.Close()

	mock.ExpectExec(`^DELETE FROM clients WHERE id = \$1$`).WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^DELETE FROM clients WHERE id = \$1$`).WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), 5); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := repo.Delete(context.Background(), 5); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound on second delete, got %v", err)
	}
}

func TestList_WithFilters(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, kinds.Folders)
	defer db.Close()

	cols := []string{"id", "user_id", "client_id", "name", "parent_id", "folder_image_file_id", "created_at", "updated_at"}
	q := `FROM folders WHERE client_id = \$1 AND parent_id = \$2 ORDER BY id$`
	mock.ExpectQuery(q).WithArgs(int64(7), int64(1)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(2), int64(9), int64(7), "Invoices", int64(1), nil, time.Now(), time.Now()).
			AddRow(int64(3), int64(9), int64(7), "Photos", int64(1), nil, time.Now(), time.Now()))

	got, err := repo.List(context.Background(), models.Values{"parent_id": int64(1), "client_id": int64(7)})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 2 || got[1].Values["name"] != "Photos" {
		t.Fatalf("unexpected list: %+v", got)
	}
}

func TestList_RejectsUndeclaredFilter(t *testing.T) {
	repo, _, db := newRepoWithMock(t, kinds.Clients)
	defer db.Close()

	_, err := repo.List(context.Background(), models.Values{"email": "x"})
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestList_EmptyIsNotNil(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, kinds.Statuses)
	defer db.Close()

	cols := []string{"id", "label", "value", "background_color", "order_index", "created_at", "updated_at"}
	mock.ExpectQuery(`^SELECT id, label, value, background_color, order_index, created_at, updated_at FROM statuses ORDER BY order_index, id$`).
		WillReturnRows(sqlmock.NewRows(cols))

	got, err := repo.List(context.Background(), nil)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty slice, got %#v", got)
	}
}

func TestListByOwner(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, kinds.Expenses)
	defer db.Close()

	mock.ExpectQuery(`FROM expenses WHERE user_id = \$1 ORDER BY id$`).WithArgs(int64(4)).
		WillReturnError(errors.New("boom"))

	_, err := repo.ListByOwner(context.Background(), 4)
	if err == nil || !regexp.MustCompile(`db error: .*boom`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestReorder(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, kinds.Statuses)
	defer db.Close()

	q := `^UPDATE statuses SET order_index = \$1, updated_at = now\(\) WHERE id = \$2$`
	mock.ExpectExec(q).WithArgs(int64(0), int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(int64(1), int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(int64(2), int64(99)).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Reorder(context.Background(), []int64{3, 1, 99})
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound for unknown id, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReorder_UnorderedKind(t *testing.T) {
	repo, _, db := newRepoWithMock(t, kinds.Clients)
	defer db.Close()

	if err := repo.Reorder(context.Background(), []int64{1}); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
