package auth

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"knowledgehub/app/internal/content"
)

const minPasswordLength = 8

// Service handles registration, login and request authentication.
type Service struct {
	users  UserRepository
	tokens *TokenIssuer
	logger *logrus.Logger
}

// NewService wires the auth service.
func NewService(users UserRepository, tokens *TokenIssuer, logger *logrus.Logger) (*Service, error) {
	if users == nil {
		return nil, eris.New("user repository is required")
	}
	if tokens == nil {
		return nil, eris.New("token issuer is required")
	}

	return &Service{users: users, tokens: tokens, logger: logger}, nil
}

// Register creates a new account with a hashed password. The first variant
// of every deployment seeds an admin through this path.
func (s *Service) Register(ctx context.Context, username, name, password string, role content.Role) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, eris.New("username is required")
	}
	if len(password) < minPasswordLength {
		return nil, eris.Errorf("password must be at least %d characters", minPasswordLength)
	}
	if role == "" {
		role = content.RoleMember
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, eris.Wrapf(ErrUsernameTaken, "username %s", username)
	} else if !eris.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, eris.Wrap(err, "hashing password")
	}

	user := &User{
		Username:       username,
		Name:           strings.TrimSpace(name),
		HashedPassword: string(hash),
		Role:           role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.WithField("username", username).Info("registered user")
	}

	return user, nil
}

// Login verifies credentials and returns the user with a signed token.
func (s *Service) Login(ctx context.Context, username, password string) (*User, string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if eris.Is(err, ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	username, err := s.tokens.Subject(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if eris.Is(err, ErrNotFound) {
			return nil, eris.Wrap(ErrInvalidToken, "subject no longer exists")
		}
		return nil, err
	}

	return user, nil
}
