package blog

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openblog/backend/internal/auth"
	"github.com/openblog/backend/internal/db"
	apperrors "github.com/openblog/backend/internal/errors"
	"github.com/openblog/backend/internal/logger"
	"github.com/openblog/backend/internal/storage"
)

const (
	cacheKeyAll    = "blogs:all"
	cacheKeyPrefix = "blogs:id:"
	// cacheGenKey versions every cached read. Mutations bump it instead of
	// deleting keys, so a read that raced a write caches under a dead version.
	cacheGenKey = "blogs:gen"
)

// Store is the persistence the blog service needs.
type Store interface {
	Create(ctx context.Context, b *db.Blog) error
	SlugExists(ctx context.Context, slug string) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*db.Blog, error)
	List(ctx context.Context) ([]db.Blog, error)
	Update(ctx context.Context, b *db.Blog) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ReadCache caches public reads. Implementations treat failures as misses.
type ReadCache interface {
	GetJSON(ctx context.Context, key string, dst any) bool
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration)
	Generation(ctx context.Context, key string) (int64, bool)
	Bump(ctx context.Context, key string)
}

type Author struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"fullName"`
	Email    string    `json:"email"`
}

// View is the public representation of a post.
type View struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	FeatureImage string    `json:"featureImage"`
	Content      string    `json:"content"`
	IsAuthor     bool      `json:"isAuthor"`
	Author       *Author   `json:"author"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func newView(b *db.Blog) *View {
	v := &View{
		ID:           b.ID,
		Title:        b.Title,
		Slug:         b.Slug,
		FeatureImage: b.FeatureImage,
		Content:      b.Content,
		IsAuthor:     b.IsAuthor,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
	if b.Author != nil {
		v.Author = &Author{ID: b.Author.ID, FullName: b.Author.FullName, Email: b.Author.Email}
	}
	return v
}

type CreateInput struct {
	Title        string
	Content      string
	FeatureImage *storage.File
}

// UpdateInput holds optional changes; blank fields and a nil image are kept.
type UpdateInput struct {
	Title        string
	Content      string
	FeatureImage *storage.File
}

type Service struct {
	store    Store
	uploader storage.ImageUploader
	cache    ReadCache
	cacheTTL time.Duration
	log      *logger.Logger
}

type Option func(*Service)

// WithCache serves public reads through c for ttl.
func WithCache(c ReadCache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

func NewService(store Store, uploader storage.ImageUploader, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.Default()
	}
	s := &Service{store: store, uploader: uploader, log: log.WithComponent("blog")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const msgBlogNotFound = "Blog not found"

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.NotFound(msgBlogNotFound)
	}
	return id, nil
}

// cacheKey returns base qualified with the current cache generation. ok is
// false when there is no cache or its generation cannot be read.
func (s *Service) cacheKey(ctx context.Context, base string) (key string, ok bool) {
	if s.cache == nil {
		return "", false
	}
	gen, ok := s.cache.Generation(ctx, cacheGenKey)
	if !ok {
		return "", false
	}
	return base + "@" + strconv.FormatInt(gen, 10), true
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Bump(ctx, cacheGenKey)
	}
}

// AuthorChanged drops cached reads after a user's public profile changed,
// since views embed the author's name and email.
func (s *Service) AuthorChanged(ctx context.Context, userID uuid.UUID) {
	s.invalidate(ctx)
	s.log.Debug(ctx, "blog cache invalidated for author", logger.Fields{"author_id": userID.String()})
}

// Create publishes a post authored by p.
func (s *Service) Create(ctx context.Context, p *auth.Principal, in CreateInput) (*View, error) {
	if p == nil {
		return nil, apperrors.Unauthorized("User authentication required")
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Content) == "" {
		return nil, apperrors.BadRequest("Title and content are required")
	}

	slug := CreationSlug(in.Title)
	exists, err := s.store.SlugExists(ctx, slug)
	if err != nil {
		return nil, apperrors.InternalError("failed to check slug").WithCause(err)
	}
	if exists {
		return nil, apperrors.Conflict("A blog with a similar title already exists")
	}

	if in.FeatureImage == nil {
		return nil, apperrors.BadRequest("Feature image is required")
	}
	imageURL, err := s.uploader.Upload(ctx, storage.FolderFeatureImages, in.FeatureImage)
	if err != nil {
		return nil, apperrors.UploadFailed("Failed to upload feature image").WithCause(err)
	}

	b := &db.Blog{
		ID:           uuid.New(),
		Title:        in.Title,
		Slug:         slug,
		FeatureImage: imageURL,
		Content:      in.Content,
		IsAuthor:     true,
		AuthorID:     p.ID,
		Author:       &db.Author{ID: p.ID, FullName: p.FullName, Email: p.Email},
	}
	if err := s.store.Create(ctx, b); err != nil {
		switch {
		case errors.Is(err, db.ErrSlugExists):
			return nil, apperrors.Conflict("A blog with a similar title already exists").WithCause(err)
		case errors.Is(err, db.ErrUserNotFound):
			return nil, apperrors.Unauthorized("Invalid Access Token").WithCause(err)
		default:
			return nil, apperrors.InternalError("Blog creation failed").WithCause(err)
		}
	}

	s.invalidate(ctx)
	s.log.Info(ctx, "blog created", logger.Fields{"blog_id": b.ID.String(), "author_id": p.ID.String()})
	return newView(b), nil
}

// List returns every post, newest first.
func (s *Service) List(ctx context.Context) ([]*View, error) {
	key, cacheable := s.cacheKey(ctx, cacheKeyAll)
	var cached []*View
	if cacheable && s.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	blogs, err := s.store.List(ctx)
	if err != nil {
		return nil, apperrors.InternalError("failed to list blogs").WithCause(err)
	}

	views := make([]*View, 0, len(blogs))
	for i := range blogs {
		views = append(views, newView(&blogs[i]))
	}

	if cacheable {
		s.cache.SetJSON(ctx, key, views, s.cacheTTL)
	}
	return views, nil
}

// Get returns one post. Unknown and malformed ids are both 404.
func (s *Service) Get(ctx context.Context, rawID string) (*View, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}

	key, cacheable := s.cacheKey(ctx, cacheKeyPrefix+id.String())
	var cached View
	if cacheable && s.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	b, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	v := newView(b)
	if cacheable {
		s.cache.SetJSON(ctx, key, v, s.cacheTTL)
	}
	return v, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*db.Blog, error) {
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrBlogNotFound) {
			return nil, apperrors.NotFound(msgBlogNotFound)
		}
		return nil, apperrors.InternalError("failed to load blog").WithCause(err)
	}
	return b, nil
}

// Update applies in to the post when p owns it. A new title recomputes the
// slug from the post id.
func (s *Service) Update(ctx context.Context, p *auth.Principal, rawID string, in UpdateInput) (*View, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	b, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := AuthorizeMutation(p, b, "update"); err != nil {
		return nil, err
	}

	if title := strings.TrimSpace(in.Title); title != "" {
		b.Title = in.Title
		b.Slug = StableSlug(in.Title, b.ID)
	}
	if strings.TrimSpace(in.Content) != "" {
		b.Content = in.Content
	}
	if in.FeatureImage != nil {
		imageURL, err := s.uploader.Upload(ctx, storage.FolderFeatureImages, in.FeatureImage)
		if err != nil {
			return nil, apperrors.UploadFailed("Failed to upload new feature image").WithCause(err)
		}
		b.FeatureImage = imageURL
	}

	if err := s.store.Update(ctx, b); err != nil {
		switch {
		case errors.Is(err, db.ErrBlogNotFound):
			return nil, apperrors.NotFound(msgBlogNotFound)
		case errors.Is(err, db.ErrSlugExists):
			return nil, apperrors.Conflict("A blog with a similar title already exists").WithCause(err)
		default:
			return nil, apperrors.InternalError("failed to update blog").WithCause(err)
		}
	}

	s.invalidate(ctx)
	return newView(b), nil
}

// Delete removes the post when p owns it.
func (s *Service) Delete(ctx context.Context, p *auth.Principal, rawID string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	b, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := AuthorizeMutation(p, b, "delete"); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, db.ErrBlogNotFound) {
			return apperrors.NotFound(msgBlogNotFound)
		}
		return apperrors.InternalError("failed to delete blog").WithCause(err)
	}

	s.invalidate(ctx)
	s.log.Info(ctx, "blog deleted", logger.Fields{"blog_id": id.String(), "author_id": p.ID.String()})
	return nil
}
