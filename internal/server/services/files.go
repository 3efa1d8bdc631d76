package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/bizdesk/internal/common"
	"github.com/dmitrijs2005/bizdesk/internal/logging"
	"github.com/dmitrijs2005/bizdesk/internal/server/auth"
	"github.com/dmitrijs2005/bizdesk/internal/server/models"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bizdesk/internal/server/storage"
)

const (
	SectorUploadFile   = "uploadFile"
	SectorDownloadFile = "downloadFile"
)

// AllowedExtensions are the file types accepted by Upload.
var AllowedExtensions = []string{
	"jpg", "jpeg", "png", "pdf", "doc", "docx",
	"mp4", "mov", "webm", "mkv", "avi", "3gp", "3g2", "m4v",
}

// Download is a stored file with its content and, for object storage, a
// temporary direct link.
type Download struct {
	File *models.File
	URL  string
}

// FileService stores uploads in the database or in object storage.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	gate        *Gate
	store       storage.BlobStore
	backend     string
	maxBytes    int64
	now         func() time.Time
	log         logging.Logger
}

// NewFileService uses backend models.StorageS3 only when store is set.
func NewFileService(db *sql.DB, m repomanager.RepositoryManager, gate *Gate, store storage.BlobStore,
	backend string, maxBytes int64, log logging.Logger) *FileService {
	if store == nil {
		backend = models.StorageDB
	}
	return &FileService{
		db:          db,
		repomanager: m,
		gate:        gate,
		store:       store,
		backend:     backend,
		maxBytes:    maxBytes,
		now:         time.Now,
		log:         log.With("module", "files"),
	}
}

func extensionAllowed(name string) bool {
	ext := common.FileExtension(name)
	for _, a := range AllowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// Upload checks size and extension before anything is persisted.
func (s *FileService) Upload(ctx context.Context, id auth.Identity, name, mimeType string, size int64, r io.Reader) (*models.File, error) {
	if err := s.gate.AuthorizeSector(ctx, id, SectorUploadFile); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: missing file name", common.ErrValidation)
	}
	if size > s.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds the %d byte limit", common.ErrPayloadTooLarge, size, s.maxBytes)
	}
	if !extensionAllowed(name) {
		return nil, fmt.Errorf("%w: .%s", common.ErrExtensionDenied, common.FileExtension(name))
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading upload: %v", common.ErrValidation, err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: upload exceeds the %d byte limit", common.ErrPayloadTooLarge, s.maxBytes)
	}

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	file := &models.File{
		UserID:       id.ID,
		OriginalName: name,
		FileType:     mimeType,
		FileSize:     int64(len(data)),
		Storage:      s.backend,
	}

	if s.backend == models.StorageS3 {
		file.StorageKey = storage.NewObjectKey(s.now())
		if err := s.store.Put(ctx, file.StorageKey, data, mimeType); err != nil {
			s.log.Error(ctx, "object upload failed", "key", file.StorageKey, "error", err)
			return nil, fmt.Errorf("%w: %v", common.ErrPersistence, err)
		}
	} else {
		file.Data = data
	}

	if err := s.repomanager.Files(s.db).Create(ctx, file); err != nil {
		if file.StorageKey != "" {
			s.log.Warn(ctx, "object stored without metadata row", "key", file.StorageKey)
		}
		return nil, storeError(err)
	}

	s.log.Info(ctx, "file stored", "file_id", file.ID, "size", file.FileSize, "storage", file.Storage, "actor", id.ID)
	return file, nil
}

// Download loads a file of any owner.
func (s *FileService) Download(ctx context.Context, id auth.Identity, fileID int64) (*Download, error) {
	if err := s.gate.AuthorizeSector(ctx, id, SectorDownloadFile); err != nil {
		return nil, err
	}
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, storeError(err)
	}

	out := &Download{File: file}
	if file.Storage != models.StorageS3 {
		return out, nil
	}
	if s.store == nil {
		return nil, fmt.Errorf("%w: object storage is not configured", common.ErrPersistence)
	}

	data, err := s.store.Get(ctx, file.StorageKey)
	if err != nil {
		s.log.Error(ctx, "object download failed", "key", file.StorageKey, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	file.Data = data

	if u, err := s.store.PresignGet(ctx, file.StorageKey); err != nil {
		s.log.Warn(ctx, "presign failed", "key", file.StorageKey, "error", err)
	} else {
		out.URL = u
	}
	return out, nil
}
