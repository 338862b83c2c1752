package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/foldr/foldr-go/internal/crypto"
	"github.com/foldr/foldr-go/internal/model"
	"github.com/foldr/foldr-go/internal/repository"
)

// MinPasswordLength is the shortest password accepted at signup and on
// password changes.
const MinPasswordLength = 6

// UserStore is the user persistence used by AuthService.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// TokenStore issues and resolves bearer tokens.
type TokenStore interface {
	Create(ctx context.Context, token, userID string) error
	UserID(ctx context.Context, token string) (string, error)
}

// AuthService handles signup, login and password management. Every
// successful signup or login issues a fresh token; existing tokens stay valid.
type AuthService struct {
	users      UserStore
	tokens     TokenStore
	inviteCode string
}

// NewAuthService creates a new AuthService. inviteCode gates signup and
// password reset.
func NewAuthService(users UserStore, tokens TokenStore, inviteCode string) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		inviteCode: inviteCode,
	}
}

// Signup creates a new account. The invite code is checked before anything
// else.
func (s *AuthService) Signup(ctx context.Context, req model.SignupRequest) (model.AuthResponse, error) {
	if !crypto.SecretEqual(req.InviteCode, s.inviteCode) {
		return model.AuthResponse{}, errInvalidInvite
	}

	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return model.AuthResponse{}, errCredentialsRequired
	}
	if len(req.Password) < MinPasswordLength {
		return model.AuthResponse{}, errPasswordTooShort
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return model.AuthResponse{}, fmt.Errorf("hashing password: %w", err)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return model.AuthResponse{}, errEmailTaken
		}
		return model.AuthResponse{}, err
	}

	return s.issue(ctx, user.ID)
}

// Login exchanges credentials for a new token.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.AuthResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return model.AuthResponse{}, err
	}
	return s.issue(ctx, user.ID)
}

// ChangePassword replaces the password of a user who knows the current one.
func (s *AuthService) ChangePassword(ctx context.Context, req model.ChangePasswordRequest) error {
	if req.NewPassword == "" {
		return newError(ErrValidation, "New password is required")
	}
	if len(req.NewPassword) < MinPasswordLength {
		return errPasswordTooShort
	}

	user, err := s.authenticate(ctx, req.Email, req.CurrentPassword)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, user.ID, req.NewPassword)
}

// ResetPassword sets a new password for email without the old one, gated by
// the invite code.
func (s *AuthService) ResetPassword(ctx context.Context, req model.ResetPasswordRequest) error {
	if !crypto.SecretEqual(req.InviteCode, s.inviteCode) {
		return errInvalidInvite
	}

	email := normalizeEmail(req.Email)
	if email == "" || req.NewPassword == "" {
		return newError(ErrValidation, "Email and new password are required")
	}
	if len(req.NewPassword) < MinPasswordLength {
		return errPasswordTooShort
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return errUserNotFound
		}
		return err
	}
	return s.setPassword(ctx, user.ID, req.NewPassword)
}

// Authenticate resolves a bearer token to its user id.
func (s *AuthService) Authenticate(ctx context.Context, token string) (string, error) {
	if !crypto.IsTokenFormat(token) {
		return "", newError(ErrAuth, "Unauthorized")
	}
	userID, err := s.tokens.UserID(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return "", newError(ErrAuth, "Unauthorized")
		}
		return "", err
	}
	return userID, nil
}

func (s *AuthService) authenticate(ctx context.Context, email, password string) (*model.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, errCredentialsRequired
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	match, err := crypto.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, errInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) setPassword(ctx context.Context, userID, password string) error {
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return errUserNotFound
		}
		return err
	}
	return nil
}

func (s *AuthService) issue(ctx context.Context, userID string) (model.AuthResponse, error) {
	token, err := crypto.NewToken()
	if err != nil {
		return model.AuthResponse{}, fmt.Errorf("generating token: %w", err)
	}
	if err := s.tokens.Create(ctx, token, userID); err != nil {
		return model.AuthResponse{}, fmt.Errorf("storing token: %w", err)
	}
	return model.AuthResponse{Success: true, UserID: userID, Token: token}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
