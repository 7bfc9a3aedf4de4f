package blog

import (
	"github.com/google/uuid"

	"github.com/openblog/backend/internal/auth"
	"github.com/openblog/backend/internal/db"
	apperrors "github.com/openblog/backend/internal/errors"
)

// AuthorizeMutation allows action on b only when principal is its author
// and the post is flagged as authored. action names the operation in the
// rejection message ("update", "delete").
func AuthorizeMutation(principal *auth.Principal, b *db.Blog, action string) error {
	if principal == nil || b == nil || b.AuthorID == uuid.Nil ||
		principal.ID != b.AuthorID || !b.IsAuthor {
		return apperrors.Forbidden("You are not authorized to " + action + " this blog")
	}
	return nil
}
