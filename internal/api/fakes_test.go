package api

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openblog/backend/internal/db"
	"github.com/openblog/backend/internal/storage"
)

// memStore backs both users and blogs so blog reads can join the author.
type memStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*db.User
	blogs map[uuid.UUID]*db.Blog
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[uuid.UUID]*db.User),
		blogs: make(map[uuid.UUID]*db.Blog),
	}
}

type memUsers struct{ *memStore }

type memBlogs struct{ *memStore }

func (m memUsers) Create(_ context.Context, u *db.User) error {
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
	u.CreatedAt, u.UpdatedAt = time.Now(), time.Now()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m memUsers) GetByID(_ context.Context, id uuid.UUID) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, db.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m memUsers) GetByEmail(_ context.Context, email string) (*db.User, error) {
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

func (m memUsers) ExistsByEmailOrUsername(_ context.Context, email, username string, exclude uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID != exclude && (u.Email == email || u.Username == username) {
			return true, nil
		}
	}
	return false, nil
}

func (m memUsers) UpdateProfile(_ context.Context, id uuid.UUID, upd db.ProfileUpdate) (*db.User, error) {
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
	cp := *u
	return &cp, nil
}

func (m memUsers) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return db.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m memUsers) SetRefreshToken(_ context.Context, id uuid.UUID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return db.ErrUserNotFound
	}
	u.RefreshToken = sql.NullString{String: token, Valid: true}
	return nil
}

func (m memUsers) ClearRefreshToken(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return db.ErrUserNotFound
	}
	u.RefreshToken = sql.NullString{}
	return nil
}

func (m memBlogs) withAuthor(b *db.Blog) *db.Blog {
	cp := *b
	if u, ok := m.users[b.AuthorID]; ok {
		cp.Author = &db.Author{ID: u.ID, FullName: u.FullName, Email: u.Email}
	}
	return &cp
}

func (m memBlogs) Create(_ context.Context, b *db.Blog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.blogs {
		if existing.Slug == b.Slug {
			return db.ErrSlugExists
		}
	}
	if _, ok := m.users[b.AuthorID]; !ok {
		return db.ErrUserNotFound
	}
	b.CreatedAt, b.UpdatedAt = time.Now(), time.Now()
	cp := *b
	m.blogs[b.ID] = &cp
	return nil
}

func (m memBlogs) SlugExists(_ context.Context, slug string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.blogs {
		if b.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (m memBlogs) GetByID(_ context.Context, id uuid.UUID) (*db.Blog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blogs[id]
	if !ok {
		return nil, db.ErrBlogNotFound
	}
	return m.withAuthor(b), nil
}

func (m memBlogs) List(_ context.Context) ([]db.Blog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]db.Blog, 0, len(m.blogs))
	for _, b := range m.blogs {
		out = append(out, *m.withAuthor(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m memBlogs) Update(_ context.Context, b *db.Blog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.blogs[b.ID]
	if !ok {
		return db.ErrBlogNotFound
	}
	existing.Title, existing.Slug, existing.Content, existing.FeatureImage = b.Title, b.Slug, b.Content, b.FeatureImage
	existing.UpdatedAt = time.Now()
	b.UpdatedAt = existing.UpdatedAt
	return nil
}

func (m memBlogs) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blogs[id]; !ok {
		return db.ErrBlogNotFound
	}
	delete(m.blogs, id)
	return nil
}

type stubUploader struct{}

func (stubUploader) Upload(_ context.Context, folder string, f *storage.File) (string, error) {
	return "https://img.test/" + folder + "/" + f.Name, nil
}
