// Package auth issues and verifies the bearer tokens used by the portal API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tccredit/portal/backend/internal/config"
	"github.com/tccredit/portal/backend/internal/logging"
	"github.com/tccredit/portal/backend/internal/model/portal"
)

var (
	ErrInvalidEmail       = errors.New("a valid email is required")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be 8 to 72 bytes long")
	ErrEmailTaken         = errors.New("an account with this email already exists")
)

const (
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordLength = 72
)

// Claims is the token payload. Subject carries the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// RegisterRequest creates a member account.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// LoginRequest identifies the member signing in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Service signs members in and validates their tokens.
type Service struct {
	users    portal.UserStore
	secret   []byte
	ttl      time.Duration
	devLogin bool
	cost     int
	now      func() time.Time
}

// NewService builds a Service from cfg.
func NewService(users portal.UserStore, cfg config.AuthConfig) *Service {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		users:    users,
		secret:   []byte(cfg.JWTSecret),
		ttl:      ttl,
		devLogin: cfg.DevLogin,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// Register creates a member account and signs it in. Registration never
// grants the admin role.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (string, portal.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return "", portal.User{}, err
	}
	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return "", portal.User{}, err
	}

	_, err = s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return "", portal.User{}, ErrEmailTaken
	case !errors.Is(err, portal.ErrNotFound):
		return "", portal.User{}, fmt.Errorf("lookup user: %w", err)
	}

	user, err := s.users.UpsertUser(ctx, portal.User{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         portal.RoleMember,
		PasswordHash: hash,
	})
	if errors.Is(err, portal.ErrDuplicate) {
		return "", portal.User{}, ErrEmailTaken
	}
	if err != nil {
		return "", portal.User{}, fmt.Errorf("save user: %w", err)
	}

	return s.signIn(user, "registered")
}

// Login checks req.Password against the stored hash and returns a signed
// token. With dev login enabled an empty password signs in (or creates) a
// member account that has no password; admins always need their password.
func (s *Service) Login(ctx context.Context, req LoginRequest) (string, portal.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return "", portal.User{}, err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	found := err == nil
	if err != nil && !errors.Is(err, portal.ErrNotFound) {
		return "", portal.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if req.Password == "" {
		if !s.devLogin {
			return "", portal.User{}, ErrInvalidCredentials
		}
		return s.devSignIn(ctx, email, user, found)
	}

	if !found || user.PasswordHash == "" {
		return "", portal.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return "", portal.User{}, ErrInvalidCredentials
	}
	return s.signIn(user, "signed in")
}

func (s *Service) devSignIn(ctx context.Context, email string, user portal.User, found bool) (string, portal.User, error) {
	if found && (user.IsAdmin() || user.PasswordHash != "") {
		return "", portal.User{}, ErrInvalidCredentials
	}
	if !found {
		var err error
		user, err = s.users.UpsertUser(ctx, portal.User{ID: uuid.NewString(), Email: email, Role: portal.RoleMember})
		if err != nil {
			return "", portal.User{}, fmt.Errorf("save user: %w", err)
		}
	}
	return s.signIn(user, "signed in without password")
}

// EnsureAdmin creates or updates the admin account for email and sets its
// password.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (portal.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return portal.User{}, err
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return portal.User{}, err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, portal.ErrNotFound):
		user = portal.User{ID: uuid.NewString(), Email: email}
	case err != nil:
		return portal.User{}, fmt.Errorf("lookup user: %w", err)
	}
	user.Role = portal.RoleAdmin
	user.PasswordHash = hash

	user, err = s.users.UpsertUser(ctx, user)
	if err != nil {
		return portal.User{}, fmt.Errorf("save admin: %w", err)
	}
	logging.L().Info("admin account ready", zap.String("user_id", user.ID))
	return user, nil
}

func (s *Service) signIn(user portal.User, event string) (string, portal.User, error) {
	token, err := s.IssueToken(user)
	if err != nil {
		return "", portal.User{}, err
	}
	logging.L().Info("user "+event, zap.String("user_id", user.ID), zap.String("role", user.Role))
	return token, user, nil
}

func (s *Service) hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

// IssueToken signs an HS256 token for u.
func (s *Service) IssueToken(u portal.User) (string, error) {
	now := s.now()
	claims := Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies raw and returns its claims.
func (s *Service) ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// CurrentUser loads the account behind a verified token.
func (s *Service) CurrentUser(ctx context.Context, userID string) (portal.User, error) {
	return s.users.GetUser(ctx, userID)
}
