package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Author is the populated projection of a blog's owning user.
type Author struct {
	ID       uuid.UUID
	FullName string
	Email    string
}

type Blog struct {
	ID           uuid.UUID
	Title        string
	Slug         string
	FeatureImage string
	Content      string
	IsAuthor     bool
	AuthorID     uuid.UUID
	Author       *Author
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const blogSelect = `
	SELECT b.id, b.title, b.slug, b.feature_image, b.content, b.is_author, b.author_id,
		   b.created_at, b.updated_at, u.full_name, u.email
	FROM blogs b
	JOIN users u ON u.id = b.author_id
`

type BlogRepository struct {
	db DBTX
}

func NewBlogRepository(db DBTX) *BlogRepository {
	return &BlogRepository{db: db}
}

func scanBlog(row interface{ Scan(...any) error }) (*Blog, error) {
	var b Blog
	author := &Author{}
	err := row.Scan(
		&b.ID, &b.Title, &b.Slug, &b.FeatureImage, &b.Content, &b.IsAuthor, &b.AuthorID,
		&b.CreatedAt, &b.UpdatedAt, &author.FullName, &author.Email,
	)
	if err != nil {
		return nil, err
	}
	author.ID = b.AuthorID
	b.Author = author
	return &b, nil
}

// Create inserts a new blog. author_id is written here and never again.
func (r *BlogRepository) Create(ctx context.Context, b *Blog) error {
	query := `
		INSERT INTO blogs (id, title, slug, feature_image, content, is_author, author_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		b.ID, b.Title, b.Slug, b.FeatureImage, b.Content, b.IsAuthor, b.AuthorID,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if classified := classifyUniqueViolation(err); classified != err {
			return classified
		}
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("insert blog: %w", err)
	}
	return nil
}

func (r *BlogRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM blogs WHERE slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

// GetByID returns the blog with its author populated.
func (r *BlogRepository) GetByID(ctx context.Context, id uuid.UUID) (*Blog, error) {
	b, err := scanBlog(r.db.QueryRowContext(ctx, blogSelect+`WHERE b.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBlogNotFound
		}
		return nil, err
	}
	return b, nil
}

// List returns every blog, newest first, with authors populated.
func (r *BlogRepository) List(ctx context.Context) ([]Blog, error) {
	rows, err := r.db.QueryContext(ctx, blogSelect+`ORDER BY b.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	blogs := make([]Blog, 0)
	for rows.Next() {
		b, err := scanBlog(rows)
		if err != nil {
			return nil, err
		}
		blogs = append(blogs, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return blogs, nil
}

// Update persists title, slug, content and feature image.
func (r *BlogRepository) Update(ctx context.Context, b *Blog) error {
	query := `
		UPDATE blogs
		SET title = $2, slug = $3, content = $4, feature_image = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(ctx, query, b.ID, b.Title, b.Slug, b.Content, b.FeatureImage).Scan(&b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBlogNotFound
		}
		if classified := classifyUniqueViolation(err); classified != err {
			return classified
		}
		return fmt.Errorf("update blog: %w", err)
	}
	return nil
}

func (r *BlogRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM blogs WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrBlogNotFound
	}
	return nil
}
