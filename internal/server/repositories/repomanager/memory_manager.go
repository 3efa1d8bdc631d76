package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/bizdesk/internal/common"
	"github.com/dmitrijs2005/bizdesk/internal/dbx"
	"github.com/dmitrijs2005/bizdesk/internal/server/kinds"
	"github.com/dmitrijs2005/bizdesk/internal/server/models"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/activity"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/entities"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/files"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/history"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/permissions"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/users"
)

// ErrHistoryUnavailable is returned by history writes while FailHistory is
// set.
var ErrHistoryUnavailable = errors.New("history store unavailable")

// InMemoryRepositoryManager keeps every table in maps. The DBTX arguments
// are ignored, so transactions do not isolate or roll back anything; it
// backs service and HTTP tests.
type InMemoryRepositoryManager struct {
	mu sync.Mutex

	// FailHistory makes every entity history write fail.
	FailHistory bool

	now func() time.Time
	seq int64

	users       map[int64]*models.User
	permissions map[int64]*models.Permission
	permHistory []*models.PermissionHistory
	files       map[int64]*models.File
	activity    []*models.ActivityEntry
	records     map[string]map[int64]*models.Record
	history     map[string][]*models.HistoryEntry
}

var _ RepositoryManager = (*InMemoryRepositoryManager)(nil)

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		now:         time.Now,
		users:       map[int64]*models.User{},
		permissions: map[int64]*models.Permission{},
		files:       map[int64]*models.File{},
		records:     map[string]map[int64]*models.Record{},
		history:     map[string][]*models.HistoryEntry{},
	}
}

func (m *InMemoryRepositoryManager) nextID() int64 {
	m.seq++
	return m.seq
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *InMemoryRepositoryManager) Migrate(context.Context, *sql.DB, string, ...string) error {
	return nil
}

func (m *InMemoryRepositoryManager) Users(dbx.DBTX) users.Repository {
	return &memUsers{m: m}
}

func (m *InMemoryRepositoryManager) Permissions(dbx.DBTX) permissions.Repository {
	return &memPermissions{m: m}
}

func (m *InMemoryRepositoryManager) Files(dbx.DBTX) files.Repository {
	return &memFiles{m: m}
}

func (m *InMemoryRepositoryManager) Activity(dbx.DBTX) activity.Repository {
	return &memActivity{m: m}
}

func (m *InMemoryRepositoryManager) Entities(kind *kinds.Kind, _ dbx.DBTX) entities.Repository {
	return &memEntities{m: m, kind: kind}
}

func (m *InMemoryRepositoryManager) History(kind *kinds.Kind, _ dbx.DBTX) history.Repository {
	return &memHistory{m: m, kind: kind}
}

// --- users ---

type memUsers struct {
	m *InMemoryRepositoryManager
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func (r *memUsers) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, u := range r.m.users {
		if u.Username == user.Username || u.Email == user.Email {
			return nil, common.ErrAlreadyExists
		}
	}
	user.ID = r.m.nextID()
	user.CreatedAt = r.m.now()
	user.UpdatedAt = user.CreatedAt
	r.m.users[user.ID] = copyUser(user)
	return user, nil
}

func (r *memUsers) find(match func(*models.User) bool) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, u := range r.m.users {
		if match(u) {
			return copyUser(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memUsers) FindByID(_ context.Context, id int64) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r *memUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Username == username })
}

func (r *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email })
}

func (r *memUsers) FindByResetToken(_ context.Context, token string, now time.Time) (*models.User, error) {
	return r.find(func(u *models.User) bool {
		return token != "" && u.ResetToken == token && u.ResetExpires != nil && u.ResetExpires.After(now)
	})
}

func (r *memUsers) update(match func(*models.User) bool, fn func(*models.User)) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, u := range r.m.users {
		if match(u) {
			fn(u)
			u.UpdatedAt = r.m.now()
			return nil
		}
	}
	return common.ErrorNotFound
}

func byID(id int64) func(*models.User) bool {
	return func(u *models.User) bool { return u.ID == id }
}

func (r *memUsers) Activate(_ context.Context, token string) error {
	return r.update(func(u *models.User) bool { return token != "" && u.ActivationToken == token }, func(u *models.User) {
		u.Activated = true
		u.ActivationToken = ""
	})
}

func (r *memUsers) MarkActivated(_ context.Context, id int64) error {
	return r.update(byID(id), func(u *models.User) {
		u.Activated = true
		u.ActivationToken = ""
	})
}

func (r *memUsers) UpdateFailedAttempts(_ context.Context, id int64, attempts int, lockedUntil *time.Time) error {
	return r.update(byID(id), func(u *models.User) {
		u.FailedAttempts = attempts
		u.LockedUntil = lockedUntil
	})
}

func (r *memUsers) SetAPIToken(_ context.Context, id int64, token string) error {
	return r.update(byID(id), func(u *models.User) { u.APIToken = token })
}

func (r *memUsers) SetResetToken(_ context.Context, id int64, token string, expires time.Time) error {
	return r.update(byID(id), func(u *models.User) {
		u.ResetToken = token
		u.ResetExpires = &expires
	})
}

func (r *memUsers) ResetPassword(_ context.Context, id int64, passwordHash string) error {
	return r.update(byID(id), func(u *models.User) {
		u.PasswordHash = passwordHash
		u.ResetToken = ""
		u.ResetExpires = nil
		u.FailedAttempts = 0
		u.LockedUntil = nil
	})
}

func (r *memUsers) ListDirectory(context.Context) ([]models.DirectoryEntry, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	out := []models.DirectoryEntry{}
	for _, u := range r.m.users {
		out = append(out, models.DirectoryEntry{ID: u.ID, Username: u.Username, Email: u.Email, Activated: u.Activated})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// --- permissions ---

type memPermissions struct {
	m *InMemoryRepositoryManager
}

func sameUser(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *memPermissions) Has(_ context.Context, userID int64, sector string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, p := range r.m.permissions {
		if p.Sector == sector && (p.UserID == nil || *p.UserID == userID) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memPermissions) Create(_ context.Context, userID *int64, sector string) (*models.Permission, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, p := range r.m.permissions {
		if p.Sector == sector && sameUser(p.UserID, userID) {
			return nil, common.ErrAlreadyExists
		}
	}
	p := &models.Permission{ID: r.m.nextID(), UserID: userID, Sector: sector, CreatedAt: r.m.now()}
	p.UpdatedAt = p.CreatedAt
	r.m.permissions[p.ID] = p
	c := *p
	return &c, nil
}

func (r *memPermissions) FindByID(_ context.Context, id int64) (*models.Permission, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	p, ok := r.m.permissions[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *p
	return &c, nil
}

func (r *memPermissions) Delete(_ context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.permissions[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.m.permissions, id)
	return nil
}

func (r *memPermissions) list(match func(*models.Permission) bool) []*models.Permission {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	out := []*models.Permission{}
	for _, p := range r.m.permissions {
		if match(p) {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memPermissions) List(context.Context) ([]*models.Permission, error) {
	return r.list(func(*models.Permission) bool { return true }), nil
}

func (r *memPermissions) ListGlobal(context.Context) ([]*models.Permission, error) {
	return r.list(func(p *models.Permission) bool { return p.UserID == nil }), nil
}

func (r *memPermissions) ListByUser(_ context.Context, userID int64) ([]*models.Permission, error) {
	return r.list(func(p *models.Permission) bool { return p.UserID != nil && *p.UserID == userID }), nil
}

func (r *memPermissions) RecordHistory(_ context.Context, entry *models.PermissionHistory) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	entry.HistoryID = r.m.nextID()
	entry.ChangedAt = r.m.now()
	c := *entry
	r.m.permHistory = append(r.m.permHistory, &c)
	return nil
}

func (r *memPermissions) ListHistory(_ context.Context, permissionID int64) ([]*models.PermissionHistory, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	out := []*models.PermissionHistory{}
	for i := len(r.m.permHistory) - 1; i >= 0; i-- {
		if h := r.m.permHistory[i]; h.PermissionID == permissionID {
			c := *h
			out = append(out, &c)
		}
	}
	return out, nil
}

// --- files ---

type memFiles struct {
	m *InMemoryRepositoryManager
}

func (r *memFiles) Create(_ context.Context, file *models.File) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	file.ID = r.m.nextID()
	file.CreatedAt = r.m.now()
	c := *file
	r.m.files[file.ID] = &c
	return nil
}

func (r *memFiles) GetByID(_ context.Context, id int64) (*models.File, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	f, ok := r.m.files[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *f
	return &c, nil
}

// --- activity ---

type memActivity struct {
	m *InMemoryRepositoryManager
}

func (r *memActivity) Create(_ context.Context, entry *models.ActivityEntry) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	entry.ID = r.m.nextID()
	if entry.ActionTime.IsZero() {
		entry.ActionTime = r.m.now()
	}
	c := *entry
	r.m.activity = append(r.m.activity, &c)
	return nil
}

func (r *memActivity) ListRecent(_ context.Context, limit int) ([]*models.ActivityEntry, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	out := []*models.ActivityEntry{}
	for i := len(r.m.activity) - 1; i >= 0 && len(out) < limit; i-- {
		c := *r.m.activity[i]
		out = append(out, &c)
	}
	return out, nil
}

// --- entities ---

type memEntities struct {
	m    *InMemoryRepositoryManager
	kind *kinds.Kind
}

func copyRecord(r *models.Record) *models.Record {
	c := *r
	c.Values = r.Values.Clone()
	if r.OwnerID != nil {
		owner := *r.OwnerID
		c.OwnerID = &owner
	}
	return &c
}

func (r *memEntities) table() map[int64]*models.Record {
	t, ok := r.m.records[r.kind.Name]
	if !ok {
		t = map[int64]*models.Record{}
		r.m.records[r.kind.Name] = t
	}
	return t
}

func (r *memEntities) Kind() *kinds.Kind {
	return r.kind
}

func (r *memEntities) Create(_ context.Context, ownerID int64, values models.Values) (*models.Record, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	t := r.table()
	if r.kind.OnePerOwner {
		for _, rec := range t {
			if rec.OwnedBy(ownerID) {
				return nil, common.ErrAlreadyExists
			}
		}
	}

	rec := &models.Record{ID: r.m.nextID(), Values: values.Clone(), CreatedAt: r.m.now()}
	rec.UpdatedAt = rec.CreatedAt
	if r.kind.HasOwner() {
		rec.OwnerID = &ownerID
	}
	t[rec.ID] = rec
	return copyRecord(rec), nil
}

func (r *memEntities) FindByID(_ context.Context, id int64) (*models.Record, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	rec, ok := r.table()[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyRecord(rec), nil
}

func (r *memEntities) FindByOwner(_ context.Context, ownerID int64) (*models.Record, error) {
	list, _ := r.ListByOwner(context.Background(), ownerID)
	if len(list) == 0 || !r.kind.HasOwner() {
		return nil, common.ErrorNotFound
	}
	return list[0], nil
}

func (r *memEntities) Update(_ context.Context, id int64, values models.Values) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	rec, ok := r.table()[id]
	if !ok {
		return common.ErrorNotFound
	}
	rec.Values = values.Clone()
	rec.UpdatedAt = r.m.now()
	return nil
}

func (r *memEntities) Delete(_ context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	t := r.table()
	if _, ok := t[id]; !ok {
		return common.ErrorNotFound
	}
	delete(t, id)
	return nil
}

func (r *memEntities) list(match func(*models.Record) bool) []*models.Record {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	out := []*models.Record{}
	for _, rec := range r.table() {
		if match(rec) {
			out = append(out, copyRecord(rec))
		}
	}

	order := r.kind.Order()
	sort.Slice(out, func(i, j int) bool {
		if order != "id" {
			a, _ := out[i].Values[order].(int64)
			b, _ := out[j].Values[order].(int64)
			if a != b {
				return a < b
			}
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *memEntities) List(_ context.Context, filter models.Values) ([]*models.Record, error) {
	for col := range filter {
		allowed := false
		for _, f := range r.kind.Filters {
			allowed = allowed || f == col
		}
		if !allowed {
			return nil, fmt.Errorf("%w: unknown filter %s", common.ErrValidation, col)
		}
	}

	return r.list(func(rec *models.Record) bool {
		for col, want := range filter {
			if rec.Values[col] != want {
				return false
			}
		}
		return true
	}), nil
}

func (r *memEntities) ListByOwner(_ context.Context, ownerID int64) ([]*models.Record, error) {
	return r.list(func(rec *models.Record) bool { return !r.kind.HasOwner() || rec.OwnedBy(ownerID) }), nil
}

func (r *memEntities) Reorder(_ context.Context, ids []int64) error {
	if r.kind.OrderBy == "" {
		return fmt.Errorf("%w: %s cannot be reordered", common.ErrValidation, r.kind.Name)
	}

	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	t := r.table()
	for i, id := range ids {
		rec, ok := t[id]
		if !ok {
			return fmt.Errorf("id %d: %w", id, common.ErrorNotFound)
		}
		rec.Values[r.kind.OrderBy] = int64(i)
		rec.UpdatedAt = r.m.now()
	}
	return nil
}

// --- history ---

type memHistory struct {
	m    *InMemoryRepositoryManager
	kind *kinds.Kind
}

func (r *memHistory) Kind() *kinds.Kind {
	return r.kind
}

func (r *memHistory) Record(_ context.Context, entry *models.HistoryEntry) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if !r.kind.HasHistory() {
		return fmt.Errorf("%s has no history", r.kind.Name)
	}
	if r.m.FailHistory {
		return ErrHistoryUnavailable
	}

	entry.HistoryID = r.m.nextID()
	entry.ChangedAt = r.m.now()
	c := *entry
	c.Values = entry.Values.Clone()
	r.m.history[r.kind.Name] = append(r.m.history[r.kind.Name], &c)
	return nil
}

func (r *memHistory) ListByEntityID(_ context.Context, entityID int64) ([]*models.HistoryEntry, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if !r.kind.HasHistory() {
		return nil, fmt.Errorf("%s has no history", r.kind.Name)
	}

	rows := r.m.history[r.kind.Name]
	out := []*models.HistoryEntry{}
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].EntityID == entityID {
			c := *rows[i]
			c.Values = rows[i].Values.Clone()
			out = append(out, &c)
		}
	}
	return out, nil
}
