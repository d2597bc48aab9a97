package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type Service struct {
	users  ports.UserStore
	tokens *TokenIssuer
}

// NewService authenticates against users and issues tokens.
func NewService(users ports.UserStore, tokens *TokenIssuer) *Service {
	return &Service{users: users, tokens: tokens}
}

// Session is the result of a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
}

// Register creates a user. Field problems come back as *core.ValidationError;
// a taken email as core.ErrConflict.
func (s *Service) Register(ctx context.Context, email, password string) (core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	verr := core.NewValidationError()
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		verr.Add("email", "must be a valid email address")
	}
	if len(password) < MinPasswordLength {
		verr.Add("password", ErrWeakPassword.Error())
	}
	if err := verr.Err(); err != nil {
		return core.User{}, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.CreateUser(ctx, core.User{Email: email, PasswordHash: hash})
	if err != nil {
		return core.User{}, err
	}
	slog.InfoContext(ctx, "User registered", "component", "auth", "user_id", u.ID)
	return u, nil
}

// Login checks credentials and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	if !CheckPassword(u.PasswordHash, password) {
		slog.WarnContext(ctx, "Failed login attempt", "component", "auth", "user_id", u.ID)
		return Session{}, ErrInvalidCredentials
	}
	token, exp, err := s.tokens.Issue(u.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, UserID: u.ID}, nil
}

// Tokens exposes the issuer for the middleware.
func (s *Service) Tokens() *TokenIssuer {
	return s.tokens
}
