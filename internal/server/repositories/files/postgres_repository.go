package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bizdesk/internal/common"
	"github.com/dmitrijs2005/bizdesk/internal/dbx"
	"github.com/dmitrijs2005/bizdesk/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create stores the file row and fills ID and CreatedAt. Data is written
// only for the db backend, StorageKey only for s3.
func (r *PostgresRepository) Create(ctx context.Context, file *models.File) error {

	query :=
		`INSERT INTO files (user_id, original_name, file_type, file_size, storage, file_data, storage_key)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		RETURNING id, created_at
		 `

	var data any
	if file.Storage == models.StorageDB {
		data = file.Data
	}

	err := r.db.QueryRowContext(ctx, query,
		file.UserID, file.OriginalName, file.FileType, file.FileSize, file.Storage, data, file.StorageKey).
		Scan(&file.ID, &file.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.File, error) {
	query := `SELECT id, user_id, original_name, file_type, file_size, storage, file_data, COALESCE(storage_key, ''), created_at
		FROM files WHERE id = $1`

	var f models.File
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&f.ID, &f.UserID, &f.OriginalName, &f.FileType, &f.FileSize, &f.Storage, &f.Data, &f.StorageKey, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return &f, nil
}
