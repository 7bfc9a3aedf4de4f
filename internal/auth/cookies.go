package auth

import (
	"net/http"
	"time"
)

const cookieMaxAge = 7 * 24 * time.Hour

// CookieWriter sets and clears the token cookies.
type CookieWriter struct {
	Secure bool
}

func (c CookieWriter) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (c CookieWriter) SetTokens(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, c.cookie(AccessTokenCookie, access))
	http.SetCookie(w, c.cookie(RefreshTokenCookie, refresh))
}

func (c CookieWriter) ClearTokens(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		ck := c.cookie(name, "")
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
		http.SetCookie(w, ck)
	}
}
