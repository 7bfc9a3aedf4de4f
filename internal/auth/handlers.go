package auth

import (
	"net/http"

	apperrors "github.com/openblog/backend/internal/errors"
	"github.com/openblog/backend/internal/form"
)

type Handlers struct {
	service  *Service
	cookies  CookieWriter
	maxBytes int64
}

func NewHandlers(service *Service, cookies CookieWriter, maxBytes int64) *Handlers {
	return &Handlers{service: service, cookies: cookies, maxBytes: maxBytes}
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) error {
	f, err := form.Parse(w, r, h.maxBytes)
	if err != nil {
		return err
	}
	defer f.Close()

	avatar, err := f.File("avatar")
	if err != nil {
		return err
	}

	user, err := h.service.Register(r.Context(), RegisterInput{
		FullName: f.Value("fullName"),
		Username: f.Value("username"),
		Email:    f.Value("email"),
		Password: f.Value("password"),
		Avatar:   avatar,
	})
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, http.StatusCreated, user, "User registered successfully")
	return nil
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) error {
	f, err := form.Parse(w, r, h.maxBytes)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := h.service.Login(r.Context(), f.Value("email"), f.Value("password"))
	if err != nil {
		return err
	}

	h.cookies.SetTokens(w, res.AccessToken, res.RefreshToken)
	apperrors.WriteJSON(w, http.StatusOK, res, "User logged in successfully")
	return nil
}

func (h *Handlers) CurrentUser(w http.ResponseWriter, r *http.Request) error {
	p := PrincipalFromContext(r.Context())
	if p == nil {
		return apperrors.Unauthorized(msgUnauthorizedRequest)
	}
	apperrors.WriteJSON(w, http.StatusOK, p, "current user fetched successfully")
	return nil
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) error {
	if err := h.service.Logout(r.Context(), PrincipalFromContext(r.Context())); err != nil {
		return err
	}

	h.cookies.ClearTokens(w)
	apperrors.WriteJSON(w, http.StatusOK, struct{}{}, "User logged out")
	return nil
}

func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) error {
	f, err := form.Parse(w, r, h.maxBytes)
	if err != nil {
		return err
	}
	defer f.Close()

	avatar, err := f.File("avatar")
	if err != nil {
		return err
	}

	user, err := h.service.UpdateProfile(r.Context(), PrincipalFromContext(r.Context()), ProfileInput{
		FullName: f.Value("fullName"),
		Username: f.Value("username"),
		Email:    f.Value("email"),
		Avatar:   avatar,
	})
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, http.StatusOK, user, "User profile updated successfully")
	return nil
}

func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) error {
	f, err := form.Parse(w, r, h.maxBytes)
	if err != nil {
		return err
	}
	defer f.Close()

	err = h.service.ChangePassword(r.Context(), PrincipalFromContext(r.Context()), f.Value("oldPassword"), f.Value("newPassword"))
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, http.StatusOK, struct{}{}, "Password changed successfully")
	return nil
}
