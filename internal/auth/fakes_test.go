package auth

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openblog/backend/internal/db"
	"github.com/openblog/backend/internal/storage"
)

type memUserStore struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*db.User
	failGet error
	creates int
	pwSets  int
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[uuid.UUID]*db.User)}
}

func (m *memUserStore) Create(_ context.Context, u *db.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return db.ErrEmailExists
		}
		if existing.Username == u.Username {
			return db.ErrUsernameExists
		}
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	m.users[u.ID] = &cp
	m.creates++
	return nil
}

func (m *memUserStore) GetByID(_ context.Context, id uuid.UUID) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	u, ok := m.users[id]
	if !ok {
		return nil, db.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserStore) GetByEmail(_ context.Context, email string) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, db.ErrUserNotFound
}

func (m *memUserStore) ExistsByEmailOrUsername(_ context.Context, email, username string, exclude uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID != exclude && (u.Email == email || u.Username == username) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUserStore) UpdateProfile(_ context.Context, id uuid.UUID, upd db.ProfileUpdate) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, db.ErrUserNotFound
	}
	u.FullName, u.Username, u.Email = upd.FullName, upd.Username, upd.Email
	if upd.Avatar != "" {
		u.Avatar = upd.Avatar
	}
	u.UpdatedAt = time.Now()
	cp := *u
	return &cp, nil
}

func (m *memUserStore) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return db.ErrUserNotFound
	}
	u.PasswordHash = hash
	m.pwSets++
	return nil
}

func (m *memUserStore) SetRefreshToken(_ context.Context, id uuid.UUID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return db.ErrUserNotFound
	}
	u.RefreshToken = sql.NullString{String: token, Valid: true}
	return nil
}

func (m *memUserStore) ClearRefreshToken(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return db.ErrUserNotFound
	}
	u.RefreshToken = sql.NullString{}
	return nil
}

func (m *memUserStore) get(id uuid.UUID) *db.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

type fakeUploader struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, folder string, file *storage.File) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "https://img.test/" + folder + "/" + file.Name, nil
}

type countingRecorder struct {
	mu      sync.Mutex
	results []string
}

func (c *countingRecorder) RecordLogin(result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, result)
}

func imageFile(name string) *storage.File {
	return &storage.File{Name: name, ContentType: "image/png", Size: 3, Body: io.NopCloser(strings.NewReader("png"))}
}

var errStoreDown = errors.New("store down")
