// Package authpw provides name/password authentication with remember tokens
// and email-based password resets.
package authpw

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"akredoc/api/internal/auth"
	"akredoc/api/internal/rbac"
	"akredoc/api/internal/store"
	"akredoc/api/internal/util"

	"golang.org/x/crypto/bcrypt"
)

const resetTokenTTL = 60 * time.Minute

var (
	ErrInvalidCredentials = errors.New("invalid name or password")
	ErrNameTaken          = errors.New("name already registered")
	ErrInvalidRole        = errors.New("role not recognized")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrMissingFields      = errors.New("name and password are required")
	ErrResetTokenInvalid  = errors.New("invalid or expired reset token")
)

// UserStore defines the storage interface for auth.
type UserStore interface {
	GetUserByName(ctx context.Context, name string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) error
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error
	SavePasswordResetToken(ctx context.Context, email, tokenHash string) error
	GetPasswordResetToken(ctx context.Context, email string) (store.PasswordResetToken, error)
	DeletePasswordResetToken(ctx context.Context, email string) error
}

// RememberStore persists remember tokens, keyed by their hash. Satisfied by
// the Redis store and by the Postgres fallback.
type RememberStore interface {
	SaveRememberToken(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRememberToken(ctx context.Context, tokenHash string) (string, error)
	RevokeRememberToken(ctx context.Context, tokenHash string) error
}

// Service provides name/password authentication.
type Service struct {
	store       UserStore
	remember    RememberStore
	rememberTTL time.Duration
}

// NewService creates a new auth service.
func NewService(userStore UserStore, remember RememberStore, rememberTTL time.Duration) *Service {
	return &Service{
		store:       userStore,
		remember:    remember,
		rememberTTL: rememberTTL,
	}
}

// RegisterRequest contains registration parameters.
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// Register creates a new user account. The role must be on the portal's
// allow-list.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (store.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.Password == "" {
		return store.User{}, ErrMissingFields
	}
	if len(req.Password) < 8 {
		return store.User{}, ErrWeakPassword
	}
	if !rbac.Valid(req.Role) {
		return store.User{}, ErrInvalidRole
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := store.User{
		ID:           util.NewID("usr"),
		Name:         name,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: string(hash),
		Role:         req.Role,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return store.User{}, ErrNameTaken
		}
		return store.User{}, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// LoginResult carries the authenticated user and, when requested, a raw
// remember token for the client to keep.
type LoginResult struct {
	User          store.User
	RememberToken string
}

// Login authenticates by unique name and password.
func (s *Service) Login(ctx context.Context, name, password string, rememberMe bool) (LoginResult, error) {
	if strings.TrimSpace(name) == "" || password == "" {
		return LoginResult{}, ErrMissingFields
	}

	user, err := s.store.GetUserByName(ctx, name)
	if err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !rbac.Valid(user.Role) {
		return LoginResult{}, ErrInvalidCredentials
	}

	result := LoginResult{User: user}
	if rememberMe && s.remember != nil {
		token, err := generateToken()
		if err != nil {
			return LoginResult{}, fmt.Errorf("generate remember token: %w", err)
		}
		expiresAt := time.Now().Add(s.rememberTTL)
		if err := s.remember.SaveRememberToken(ctx, auth.HashToken(token), user.ID, expiresAt); err != nil {
			return LoginResult{}, fmt.Errorf("save remember token: %w", err)
		}
		result.RememberToken = token
	}

	return result, nil
}

// LoginRemember authenticates with a previously issued remember token.
func (s *Service) LoginRemember(ctx context.Context, token string) (store.User, error) {
	if token == "" || s.remember == nil {
		return store.User{}, ErrInvalidCredentials
	}

	userID, err := s.remember.LookupRememberToken(ctx, auth.HashToken(token))
	if err != nil {
		return store.User{}, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	if !rbac.Valid(user.Role) {
		return store.User{}, ErrInvalidCredentials
	}

	return user, nil
}

// Logout revokes a remember token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) {
	if token == "" || s.remember == nil {
		return
	}
	_ = s.remember.RevokeRememberToken(ctx, auth.HashToken(token))
}

// RequestPasswordReset creates a reset token for the given email. It returns
// the user and the raw token so the caller can send the email. For unknown
// emails it returns ok=false with no error so handlers can stay uniform.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (store.User, string, bool, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return store.User{}, "", false, nil
	}

	token, err := generateToken()
	if err != nil {
		return store.User{}, "", false, fmt.Errorf("generate reset token: %w", err)
	}
	if err := s.store.SavePasswordResetToken(ctx, email, auth.HashToken(token)); err != nil {
		return store.User{}, "", false, fmt.Errorf("save reset token: %w", err)
	}

	return user, token, true, nil
}

// ResetPassword sets a new password when the reset token matches and is no
// older than 60 minutes. The token is purged on use and on expiry.
func (s *Service) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	if email == "" || token == "" || newPassword == "" {
		return ErrMissingFields
	}
	if len(newPassword) < 8 {
		return ErrWeakPassword
	}

	stored, err := s.store.GetPasswordResetToken(ctx, email)
	if err != nil {
		return ErrResetTokenInvalid
	}
	if time.Since(stored.CreatedAt) > resetTokenTTL {
		_ = s.store.DeletePasswordResetToken(ctx, email)
		return ErrResetTokenInvalid
	}
	if stored.TokenHash != auth.HashToken(token) {
		return ErrResetTokenInvalid
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return ErrResetTokenInvalid
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdateUserPassword(ctx, user.ID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.store.DeletePasswordResetToken(ctx, email); err != nil {
		// Password already changed, the stale token can no longer match.
		return nil
	}
	return nil
}

// SetPassword replaces a user's password without checking the current one.
// Used by the profile endpoint, which is already authenticated.
func (s *Service) SetPassword(ctx context.Context, userID, newPassword string) error {
	if len(newPassword) < 8 {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.store.UpdateUserPassword(ctx, userID, string(hash))
}

// ChangePassword updates a logged-in user's password after checking the
// current one.
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return ErrWeakPassword
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.store.UpdateUserPassword(ctx, userID, string(hash))
}

// generateToken creates a secure random 60-char token.
func generateToken() (string, error) {
	b := make([]byte, 30)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
