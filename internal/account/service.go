// Package account provides signup, login, email verification, password
// reset, and profile updates for user accounts.
package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"inkwell/api/internal/store"
)

// Service provides account management
type Service struct {
	store UserStore
}

// UserStore defines the storage interface for accounts
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByUsername(ctx context.Context, username string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) error
	UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	VerifyUserEmail(ctx context.Context, token string) error
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error
	UpdateUserProfile(ctx context.Context, userID, username string) (store.User, error)
	UpdateUserAvatar(ctx context.Context, userID, avatar string) (store.User, error)
	CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error
	GetPasswordReset(ctx context.Context, token string) (string, error)
	MarkPasswordResetUsed(ctx context.Context, token string) error
}

// NewService creates a new account service
func NewService(store UserStore) *Service {
	return &Service{store: store}
}

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotVerified        = errors.New("email not verified")
	ErrBadToken           = errors.New("invalid or expired token")
)

// InputError reports invalid user-supplied input.
type InputError string

func (e InputError) Error() string { return string(e) }

// SignUpRequest contains sign-up parameters
type SignUpRequest struct {
	Username string
	Email    string
	Password string
}

// SignUpResponse contains sign-up result
type SignUpResponse struct {
	UserID            string
	VerificationToken string
}

// SignUp creates a new user account with a pending email verification.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*SignUpResponse, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if username == "" || email == "" || req.Password == "" {
		return nil, InputError("username, email, and password are required")
	}
	if len(req.Password) < 8 {
		return nil, InputError("password must be at least 8 characters")
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	}
	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	verificationToken, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}

	// Verification window is 24 hours.
	expiresAt := time.Now().Add(24 * time.Hour)
	user := store.User{
		ID:                    generateID(),
		Username:              username,
		Email:                 email,
		PasswordHash:          string(hash),
		VerificationToken:     verificationToken,
		VerificationExpiresAt: &expiresAt,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return &SignUpResponse{
		UserID:            user.ID,
		VerificationToken: verificationToken,
	}, nil
}

// SignIn authenticates a user by email and password. Unverified accounts
// are rejected with ErrNotVerified.
func (s *Service) SignIn(ctx context.Context, email, password string) (store.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return store.User{}, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return store.User{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}

	if !user.IsVerified {
		return store.User{}, ErrNotVerified
	}

	return user, nil
}

// VerifyEmail verifies an email address using a token
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return InputError("verification token required")
	}
	if err := s.store.VerifyUserEmail(ctx, token); err != nil {
		return ErrBadToken
	}
	return nil
}

// RequestPasswordReset creates a password reset token. Unknown emails
// return an empty token without an error so the endpoint never reveals
// whether an account exists.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", nil
	}

	token, err := generateToken()
	if err != nil {
		return "", err
	}

	expiresAt := time.Now().Add(1 * time.Hour)
	if err := s.store.CreatePasswordReset(ctx, user.ID, token, expiresAt); err != nil {
		return "", err
	}

	return token, nil
}

// ResetPassword resets a user's password using a reset token
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return InputError("token and new password are required")
	}
	if len(newPassword) < 8 {
		return InputError("password must be at least 8 characters")
	}

	userID, err := s.store.GetPasswordReset(ctx, token)
	if err != nil {
		return ErrBadToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.store.UpdateUserPassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	// The password was reset either way; a stale used-marker only means the
	// token could be replayed until it expires.
	_ = s.store.MarkPasswordResetUsed(ctx, token)

	return nil
}

// UpdateProfile changes the user's display username.
func (s *Service) UpdateProfile(ctx context.Context, userID, username string) (store.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return store.User{}, InputError("username is required")
	}
	if existing, err := s.store.GetUserByUsername(ctx, username); err == nil && existing.ID != userID {
		return store.User{}, ErrUsernameTaken
	}
	return s.store.UpdateUserProfile(ctx, userID, username)
}

// UpdateAvatar stores a new avatar URL. The URL comes from the asset
// uploader; the binary itself never passes through here.
func (s *Service) UpdateAvatar(ctx context.Context, userID, avatarURL string) (store.User, error) {
	return s.store.UpdateUserAvatar(ctx, userID, strings.TrimSpace(avatarURL))
}

// GetByID loads a user record.
func (s *Service) GetByID(ctx context.Context, userID string) (store.User, error) {
	return s.store.GetUserByID(ctx, userID)
}

// generateToken creates a secure random token
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// generateID creates a simple ID
func generateID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
