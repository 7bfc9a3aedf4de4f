package middleware

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// etagResponseWriter captures the response for ETag calculation
type etagResponseWriter struct {
	http.ResponseWriter
	buf        bytes.Buffer
	statusCode int
}

func (w *etagResponseWriter) Write(b []byte) (int, error) {
	return w.buf.Write(b)
}

func (w *etagResponseWriter) WriteHeader(code int) {
	w.statusCode = code
}

// ETag buffers successful GET responses, tags them with a content hash and
// answers matching If-None-Match requests with 304.
func ETag(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		wrapped := &etagResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode != http.StatusOK {
			w.WriteHeader(wrapped.statusCode)
			w.Write(wrapped.buf.Bytes())
			return
		}

		etag := `"` + strconv.FormatUint(xxhash.Sum64(wrapped.buf.Bytes()), 16) + `"`
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "private, max-age=0, must-revalidate")

		if r.Header.Get("If-None-Match") == etag {
			w.Header().Del("Content-Type")
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write(wrapped.buf.Bytes())
	})
}
