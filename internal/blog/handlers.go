package blog

import (
	"net/http"

	"github.com/openblog/backend/internal/auth"
	apperrors "github.com/openblog/backend/internal/errors"
	"github.com/openblog/backend/internal/form"
)

type Handlers struct {
	service  *Service
	maxBytes int64
}

func NewHandlers(service *Service, maxBytes int64) *Handlers {
	return &Handlers{service: service, maxBytes: maxBytes}
}

func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) error {
	f, err := form.Parse(w, r, h.maxBytes)
	if err != nil {
		return err
	}
	defer f.Close()

	image, err := f.File("featureImage")
	if err != nil {
		return err
	}

	v, err := h.service.Create(r.Context(), auth.PrincipalFromContext(r.Context()), CreateInput{
		Title:        f.Value("title"),
		Content:      f.Value("content"),
		FeatureImage: image,
	})
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, http.StatusCreated, v, "Blog created successfully")
	return nil
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) error {
	views, err := h.service.List(r.Context())
	if err != nil {
		return err
	}
	apperrors.WriteJSON(w, http.StatusOK, views, "Blogs fetched successfully")
	return nil
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) error {
	v, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	apperrors.WriteJSON(w, http.StatusOK, v, "Blog fetched successfully")
	return nil
}

func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) error {
	f, err := form.Parse(w, r, h.maxBytes)
	if err != nil {
		return err
	}
	defer f.Close()

	image, err := f.File("featureImage")
	if err != nil {
		return err
	}

	v, err := h.service.Update(r.Context(), auth.PrincipalFromContext(r.Context()), r.PathValue("id"), UpdateInput{
		Title:        f.Value("title"),
		Content:      f.Value("content"),
		FeatureImage: image,
	})
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, http.StatusOK, v, "Blog updated successfully")
	return nil
}

func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) error {
	if err := h.service.Delete(r.Context(), auth.PrincipalFromContext(r.Context()), r.PathValue("id")); err != nil {
		return err
	}
	apperrors.WriteJSON(w, http.StatusOK, nil, "Blog deleted successfully")
	return nil
}
