package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/openblog/backend/internal/db"
	apperrors "github.com/openblog/backend/internal/errors"
	"github.com/openblog/backend/internal/logger"
	"github.com/openblog/backend/internal/storage"
)

// UserStore is the persistence the user service needs.
type UserStore interface {
	PrincipalResolver
	RefreshTokenStore
	Create(ctx context.Context, user *db.User) error
	GetByEmail(ctx context.Context, email string) (*db.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string, exclude uuid.UUID) (bool, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, upd db.ProfileUpdate) (*db.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ClearRefreshToken(ctx context.Context, id uuid.UUID) error
}

// LoginRecorder observes login outcomes.
type LoginRecorder interface {
	RecordLogin(result string)
}

type RegisterInput struct {
	FullName string
	Username string
	Email    string
	Password string
	Avatar   *storage.File
}

type ProfileInput struct {
	FullName string
	Username string
	Email    string
	Avatar   *storage.File
}

// LoginResult is returned to the client after a successful login.
type LoginResult struct {
	User         *Principal `json:"user"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
}

// ProfileListener is told when a user's public profile has changed.
type ProfileListener interface {
	AuthorChanged(ctx context.Context, userID uuid.UUID)
}

type Service struct {
	users    UserStore
	hasher   Hasher
	tokens   *TokenService
	uploader storage.ImageUploader
	recorder LoginRecorder
	listener ProfileListener
	log      *logger.Logger
}

type ServiceOption func(*Service)

// WithProfileListener notifies l after every successful profile update.
func WithProfileListener(l ProfileListener) ServiceOption {
	return func(s *Service) { s.listener = l }
}

func NewService(users UserStore, hasher Hasher, tokens *TokenService, uploader storage.ImageUploader, recorder LoginRecorder, log *logger.Logger, opts ...ServiceOption) *Service {
	if log == nil {
		log = logger.Default()
	}
	s := &Service{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		uploader: uploader,
		recorder: recorder,
		log:      log.WithComponent("auth"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func blank(fields ...string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			return true
		}
	}
	return false
}

// Identity fields are stored in NFC so canonically equal spellings collide
// on the unique constraints.
func normalizeEmail(email string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(email)))
}

func normalizeUsername(username string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(username)))
}

func normalizeFullName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

func uniquenessError(err error, message string) error {
	if errors.Is(err, db.ErrEmailExists) || errors.Is(err, db.ErrUsernameExists) {
		return apperrors.Conflict(message).WithCause(err)
	}
	return nil
}

// Register creates a user with an uploaded avatar.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Principal, error) {
	if blank(in.FullName, in.Username, in.Email, in.Password) {
		return nil, apperrors.BadRequest("All fields are required")
	}

	email := normalizeEmail(in.Email)
	username := normalizeUsername(in.Username)

	const conflictMsg = "User with this email or username already exists"
	exists, err := s.users.ExistsByEmailOrUsername(ctx, email, username, uuid.Nil)
	if err != nil {
		return nil, apperrors.InternalError("failed to check existing users").WithCause(err)
	}
	if exists {
		return nil, apperrors.Conflict(conflictMsg)
	}

	if in.Avatar == nil {
		return nil, apperrors.BadRequest("Avatar file is required")
	}
	avatarURL, err := s.uploader.Upload(ctx, storage.FolderAvatars, in.Avatar)
	if err != nil {
		return nil, apperrors.UploadFailed("Failed to upload avatar").WithCause(err)
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.InternalError("failed to hash password").WithCause(err)
	}

	user := &db.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		FullName:     normalizeFullName(in.FullName),
		Avatar:       avatarURL,
		PasswordHash: digest,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if cerr := uniquenessError(err, conflictMsg); cerr != nil {
			return nil, cerr
		}
		return nil, apperrors.InternalError("Something went wrong while registering the user").WithCause(err)
	}

	s.log.Info(ctx, "user registered", logger.Fields{"user_id": user.ID.String()})
	return NewPrincipal(user), nil
}

// Login checks credentials and issues a fresh token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if blank(email, password) {
		return nil, apperrors.BadRequest("Email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			s.record("unknown_user")
			return nil, apperrors.NotFound("User does not exist")
		}
		return nil, apperrors.InternalError("failed to load user").WithCause(err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, apperrors.InternalError("failed to verify credentials").WithCause(err)
	}
	if !ok {
		s.record("invalid_credentials")
		return nil, apperrors.Unauthorized("Invalid user credentials")
	}

	access, err := s.tokens.IssueAccess(user.ID)
	if err != nil {
		return nil, tokenIssueError(err)
	}
	refresh, err := s.tokens.IssueRefresh(ctx, user.ID)
	if err != nil {
		return nil, tokenIssueError(err)
	}

	s.record("success")
	return &LoginResult{
		User:         NewPrincipal(user),
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func tokenIssueError(err error) error {
	return apperrors.InternalError("Something went wrong while generating refresh and access token").WithCause(err)
}

func (s *Service) record(result string) {
	if s.recorder != nil {
		s.recorder.RecordLogin(result)
	}
}

// Logout drops the user's stored refresh token.
func (s *Service) Logout(ctx context.Context, p *Principal) error {
	if p == nil {
		return apperrors.Unauthorized(msgUnauthorizedRequest)
	}
	if err := s.users.ClearRefreshToken(ctx, p.ID); err != nil && !errors.Is(err, db.ErrUserNotFound) {
		return apperrors.InternalError("failed to log out").WithCause(err)
	}
	return nil
}

// UpdateProfile replaces name, username and email, and the avatar when a new
// one is supplied. The password digest is left untouched.
func (s *Service) UpdateProfile(ctx context.Context, p *Principal, in ProfileInput) (*Principal, error) {
	if p == nil {
		return nil, apperrors.Unauthorized(msgUnauthorizedRequest)
	}
	if blank(in.FullName, in.Username, in.Email) {
		return nil, apperrors.BadRequest("All fields are required")
	}

	email := normalizeEmail(in.Email)
	username := normalizeUsername(in.Username)

	const conflictMsg = "Email or username already in use by another user"
	exists, err := s.users.ExistsByEmailOrUsername(ctx, email, username, p.ID)
	if err != nil {
		return nil, apperrors.InternalError("failed to check existing users").WithCause(err)
	}
	if exists {
		return nil, apperrors.Conflict(conflictMsg)
	}

	var avatarURL string
	if in.Avatar != nil {
		avatarURL, err = s.uploader.Upload(ctx, storage.FolderAvatars, in.Avatar)
		if err != nil {
			return nil, apperrors.UploadFailed("Failed to upload avatar").WithCause(err)
		}
	}

	user, err := s.users.UpdateProfile(ctx, p.ID, db.ProfileUpdate{
		FullName: normalizeFullName(in.FullName),
		Username: username,
		Email:    email,
		Avatar:   avatarURL,
	})
	if err != nil {
		if cerr := uniquenessError(err, conflictMsg); cerr != nil {
			return nil, cerr
		}
		return nil, apperrors.InternalError("Failed to update user profile").WithCause(err)
	}

	if s.listener != nil {
		s.listener.AuthorChanged(ctx, user.ID)
	}
	return NewPrincipal(user), nil
}

// ChangePassword verifies the current password and stores a digest of the new
// one. The digest is only recomputed when the password actually changes.
func (s *Service) ChangePassword(ctx context.Context, p *Principal, oldPassword, newPassword string) error {
	if p == nil {
		return apperrors.Unauthorized(msgUnauthorizedRequest)
	}
	if blank(oldPassword, newPassword) {
		return apperrors.BadRequest("Old and new password are required")
	}

	user, err := s.users.GetByID(ctx, p.ID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return apperrors.Unauthorized(msgUnknownPrincipal)
		}
		return apperrors.InternalError("failed to load user").WithCause(err)
	}

	ok, err := s.hasher.Verify(oldPassword, user.PasswordHash)
	if err != nil {
		return apperrors.InternalError("failed to verify credentials").WithCause(err)
	}
	if !ok {
		return apperrors.Unauthorized("Invalid old password")
	}

	same, err := s.hasher.Verify(newPassword, user.PasswordHash)
	if err != nil {
		return apperrors.InternalError("failed to verify credentials").WithCause(err)
	}
	if same {
		return nil
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperrors.InternalError("failed to hash password").WithCause(err)
	}
	if err := s.users.UpdatePassword(ctx, p.ID, digest); err != nil {
		return apperrors.InternalError("failed to update password").WithCause(err)
	}
	return nil
}
