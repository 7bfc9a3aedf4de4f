package db

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrEmailExists    = errors.New("email already exists")
	ErrUsernameExists = errors.New("username already exists")
	ErrBlogNotFound   = errors.New("blog not found")
	ErrSlugExists     = errors.New("slug already exists")
)

// classifyUniqueViolation maps a unique_violation on a known constraint to
// its sentinel. Other errors are returned unchanged.
func classifyUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code.Name() != "unique_violation" {
		return err
	}

	c := strings.ToLower(pqErr.Constraint)
	switch c {
	case "users_email_key":
		return ErrEmailExists
	case "users_username_key":
		return ErrUsernameExists
	case "blogs_slug_key":
		return ErrSlugExists
	}

	switch {
	case strings.Contains(c, "email"):
		return ErrEmailExists
	case strings.Contains(c, "username"):
		return ErrUsernameExists
	case strings.Contains(c, "slug"):
		return ErrSlugExists
	default:
		return err
	}
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation"
}
