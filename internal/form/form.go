// Package form reads request fields from multipart, urlencoded or JSON bodies
// behind a single accessor.
package form

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	apperrors "github.com/openblog/backend/internal/errors"
	"github.com/openblog/backend/internal/storage"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temp files.
const multipartMemory = 8 << 20

type Form struct {
	values map[string]string
	files  map[string]*multipart.FileHeader
	mf     *multipart.Form
	opened []multipart.File
}

// Parse reads the request body according to its Content-Type. Bodies larger
// than maxBytes are rejected with 413.
func Parse(w http.ResponseWriter, r *http.Request, maxBytes int64) (*Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	f := &Form{
		values: make(map[string]string),
		files:  make(map[string]*multipart.FileHeader),
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, bodyError(err)
		}
		f.mf = r.MultipartForm
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				f.values[k] = v[0]
			}
		}
		for k, v := range r.MultipartForm.File {
			if len(v) > 0 {
				f.files[k] = v[0]
			}
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, bodyError(err)
		}
		for k := range r.PostForm {
			f.values[k] = r.PostForm.Get(k)
		}
	case "application/json", "":
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, bodyError(err)
		}
		for k, v := range raw {
			switch val := v.(type) {
			case string:
				f.values[k] = val
			case nil:
			default:
				f.values[k] = fmt.Sprint(val)
			}
		}
	default:
		return nil, apperrors.BadRequest(fmt.Sprintf("unsupported content type %q", mediaType))
	}

	return f, nil
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperrors.New("PAYLOAD_TOO_LARGE", "Request body too large", apperrors.CategoryClient, http.StatusRequestEntityTooLarge)
	}
	return apperrors.BadRequest("invalid request body").WithCause(err)
}

// Value returns the named field, or "" when it is absent.
func (f *Form) Value(name string) string {
	return f.values[name]
}

// File opens the named upload. It returns nil, nil when no file was sent.
func (f *Form) File(name string) (*storage.File, error) {
	fh, ok := f.files[name]
	if !ok || fh.Size == 0 {
		return nil, nil
	}

	file, err := fh.Open()
	if err != nil {
		return nil, apperrors.BadRequest("could not read uploaded file").WithCause(err)
	}
	f.opened = append(f.opened, file)

	return &storage.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        file,
	}, nil
}

// Close releases opened uploads and any temp files.
func (f *Form) Close() error {
	for _, file := range f.opened {
		file.Close()
	}
	f.opened = nil
	if f.mf != nil {
		return f.mf.RemoveAll()
	}
	return nil
}
