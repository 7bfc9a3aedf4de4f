package blog

import (
	"strings"

	"github.com/google/uuid"
)

// Slugify lowercases title, drops every character outside [a-z0-9 ] and
// turns each run of spaces into a single hyphen. Leading and trailing
// spaces become hyphens too; non-ASCII letters are dropped, not folded.
func Slugify(title string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range strings.ToLower(title) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			inSpace = false
		case r == ' ':
			if !inSpace {
				b.WriteByte('-')
			}
			inSpace = true
		}
	}
	return b.String()
}

// CreationSlug makes a slug for a new post with a random uuid suffix.
func CreationSlug(title string) string {
	return Slugify(title) + "-" + uuid.NewString()
}

// StableSlug makes a slug suffixed with the post's own id, so retitling a
// post always yields the same slug for the same title.
func StableSlug(title string, id uuid.UUID) string {
	return Slugify(title) + "-" + id.String()
}
