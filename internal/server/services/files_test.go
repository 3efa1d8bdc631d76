package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dmitrijs2005/bizdesk/internal/common"
	"github.com/dmitrijs2005/bizdesk/internal/logging"
	"github.com/dmitrijs2005/bizdesk/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBlobStore struct {
	objects map[string][]byte
	putErr  error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (s *fakeBlobStore) Put(_ context.Context, key string, body []byte, _ string) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = append([]byte(nil), body...)
	return nil
}

func (s *fakeBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	b, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key %s", key)
	}
	return b, nil
}

func (s *fakeBlobStore) PresignGet(_ context.Context, key string) (string, error) {
	return "https://objects.example.com/" + key + "?sig=x", nil
}

func TestFiles_DatabaseBackend(t *testing.T) {
	f := newFixture(t)
	s := NewFileService(f.db, f.repos, f.gate, nil, models.StorageS3, 16, logging.Nop())
	ctx := context.Background()
	alice := f.addUser(t, "alice", "pw")
	bob := f.addUser(t, "bob", "pw")
	f.grant(t, nil, SectorUploadFile, SectorDownloadFile)

	file, err := s.Upload(ctx, alice, "logo.PNG", "image/png", 4, strings.NewReader("\x89PNG"))
	require.NoError(t, err)
	assert.Equal(t, models.StorageDB, file.Storage, "no object store configured")
	assert.Equal(t, int64(4), file.FileSize)

	got, err := s.Download(ctx, bob, file.ID)
	require.NoError(t, err, "files are readable by any authorized user")
	assert.Equal(t, []byte("\x89PNG"), got.File.Data)
	assert.Equal(t, "logo.PNG", got.File.OriginalName)
	assert.Empty(t, got.URL)

	_, err = s.Download(ctx, bob, 999)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFiles_ObjectBackend(t *testing.T) {
	f := newFixture(t)
	store := newFakeBlobStore()
	s := NewFileService(f.db, f.repos, f.gate, store, models.StorageS3, 1024, logging.Nop())
	ctx := context.Background()

	file, err := s.Upload(ctx, f.admin, "contract.pdf", "", 7, bytes.NewReader([]byte("%PDF-1.")))
	require.NoError(t, err)
	assert.Equal(t, models.StorageS3, file.Storage)
	assert.Equal(t, "application/octet-stream", file.FileType)
	assert.Nil(t, file.Data)
	require.Contains(t, store.objects, file.StorageKey)

	got, err := s.Download(ctx, f.admin, file.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1."), got.File.Data)
	assert.Contains(t, got.URL, file.StorageKey)

	store.putErr = errors.New("bucket gone")
	_, err = s.Upload(ctx, f.admin, "contract.pdf", "application/pdf", 7, bytes.NewReader([]byte("%PDF-1.")))
	assert.ErrorIs(t, err, common.ErrPersistence)
}

func TestFiles_Rejections(t *testing.T) {
	f := newFixture(t)
	s := NewFileService(f.db, f.repos, f.gate, nil, models.StorageDB, 8, logging.Nop())
	ctx := context.Background()
	alice := f.addUser(t, "alice", "pw")

	_, err := s.Upload(ctx, alice, "a.png", "image/png", 1, strings.NewReader("x"))
	assert.ErrorIs(t, err, common.ErrForbidden)

	_, err = s.Upload(ctx, f.admin, "script.exe", "", 1, strings.NewReader("x"))
	assert.ErrorIs(t, err, common.ErrExtensionDenied)

	_, err = s.Upload(ctx, f.admin, "noext", "", 1, strings.NewReader("x"))
	assert.ErrorIs(t, err, common.ErrExtensionDenied)

	_, err = s.Upload(ctx, f.admin, " ", "", 1, strings.NewReader("x"))
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = s.Upload(ctx, f.admin, "big.mp4", "video/mp4", 9, strings.NewReader("123456789"))
	assert.ErrorIs(t, err, common.ErrPayloadTooLarge)

	_, err = s.Upload(ctx, f.admin, "liar.mp4", "video/mp4", 1, strings.NewReader("123456789"))
	assert.ErrorIs(t, err, common.ErrPayloadTooLarge, "declared size is not trusted")
}

func TestExtensionAllowed(t *testing.T) {
	for _, name := range []string{"a.jpg", "B.JPEG", "c.docx", "d.3g2", "e.m4v", "f.mkv"} {
		assert.True(t, extensionAllowed(name), name)
	}
	for _, name := range []string{"a.gif", "b.tar.gz", "c", "d.pdf.exe"} {
		assert.False(t, extensionAllowed(name), name)
	}
}
