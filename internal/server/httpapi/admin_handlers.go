package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/bizdesk/internal/common"
	"github.com/dmitrijs2005/bizdesk/internal/server/auth"
	"github.com/dmitrijs2005/bizdesk/internal/server/models"
)

func (a *API) listPermissions(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	out, err := a.permissions.List(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) listGlobalPermissions(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	out, err := a.permissions.ListGlobal(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) listUserPermissions(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	userID, err := pathID(r, "user_id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.permissions.ListByUser(r.Context(), id, userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// grantPermission takes {"user_id": n, "sector": s}; a null or missing
// user_id grants the sector to everybody.
func (a *API) grantPermission(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var req struct {
		UserID *int64 `json:"user_id"`
		Sector string `json:"sector"`
	}
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	p, err := a.permissions.Grant(r.Context(), id, req.UserID, req.Sector)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) revokePermission(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	permissionID, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.permissions.Revoke(r.Context(), id, permissionID); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "permission revoked", "id": permissionID})
}

func (a *API) permissionHistory(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	permissionID, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.permissions.History(r.Context(), id, permissionID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// fileView is the metadata of a stored file; Content is base64 in JSON.
type fileView struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"user_id"`
	OriginalName string `json:"original_name"`
	FileType     string `json:"file_type"`
	FileSize     int64  `json:"file_size"`
	Storage      string `json:"storage"`
	CreatedAt    string `json:"created_at"`
	Content      []byte `json:"content,omitempty"`
	URL          string `json:"url,omitempty"`
}

func newFileView(f *models.File) fileView {
	return fileView{
		ID:           f.ID,
		UserID:       f.UserID,
		OriginalName: f.OriginalName,
		FileType:     f.FileType,
		FileSize:     f.FileSize,
		Storage:      f.Storage,
		CreatedAt:    f.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// uploadFile expects a multipart form with the content in field "file".
func (a *API) uploadFile(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			a.fail(w, r, fmt.Errorf("%w: %v", common.ErrPayloadTooLarge, err))
			return
		}
		a.fail(w, r, fmt.Errorf("%w: invalid multipart form: %v", common.ErrValidation, err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		a.fail(w, r, fmt.Errorf("%w: missing file field", common.ErrValidation))
		return
	}
	defer file.Close()

	stored, err := a.files.Upload(r.Context(), id, header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newFileView(stored))
}

func (a *API) downloadFile(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	fileID, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	d, err := a.files.Download(r.Context(), id, fileID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	view := newFileView(d.File)
	view.Content = d.File.Data
	view.URL = d.URL
	writeJSON(w, http.StatusOK, view)
}

func (a *API) recentActivity(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			a.fail(w, r, fmt.Errorf("%w: invalid limit %q", common.ErrValidation, raw))
			return
		}
		limit = n
	}
	out, err := a.activity.Recent(r.Context(), id, limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
