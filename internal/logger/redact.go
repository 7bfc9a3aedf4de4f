package logger

import (
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

var (
	jwtPattern    = regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`)
)

// Redactor scrubs credentials from log fields and messages.
type Redactor struct {
	keys []string
}

func DefaultRedactor() *Redactor {
	return &Redactor{
		keys: []string{"password", "token", "secret", "authorization", "cookie"},
	}
}

func (r *Redactor) isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range r.keys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// RedactFields returns a copy of fields with sensitive values replaced.
func (r *Redactor) RedactFields(fields Fields) Fields {
	if fields == nil {
		return nil
	}
	out := make(Fields, len(fields))
	for k, v := range fields {
		if r.isSensitive(k) {
			out[k] = redacted
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = r.Redact(s)
			continue
		}
		out[k] = v
	}
	return out
}

// Redact masks bearer credentials and JWTs embedded in free text.
func (r *Redactor) Redact(s string) string {
	s = bearerPattern.ReplaceAllString(s, "Bearer "+redacted)
	return jwtPattern.ReplaceAllString(s, redacted)
}
