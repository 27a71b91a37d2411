package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/shoplens/shoplens-backend/internal/models"
	"github.com/shoplens/shoplens-backend/internal/repository"
)

const minPasswordLength = 8

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	// ErrEmailTaken is returned when the email is already registered
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned on a failed login
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidSignup is returned when signup fields fail validation
	ErrInvalidSignup = errors.New("invalid signup fields")
)

// Service provides authentication: account creation, login, and token
// validation. It is deliberately thin; the rest of the system consumes
// only the authenticated identity it resolves.
type Service struct {
	users repository.UserRepository
	jwt   *JWTService
	log   *logrus.Logger
}

// NewService creates an auth service
func NewService(users repository.UserRepository, jwtSecret string, log *logrus.Logger) *Service {
	return &Service{
		users: users,
		jwt:   NewJWTService(jwtSecret, "shoplens-backend"),
		log:   log,
	}
}

// Signup registers a user and returns an access token
func (s *Service) Signup(ctx context.Context, name, email, password string) (*repository.User, string, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" || !emailPattern.MatchString(email) || len(password) < minPasswordLength {
		return nil, "", ErrInvalidSignup
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return nil, "", ErrEmailTaken
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := &repository.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.jwt.GenerateAccessToken(user.ID.String(), user.Email, user.Name)
	if err != nil {
		return nil, "", err
	}

	s.log.WithField("user_id", user.ID).Info("user registered")
	return user, token, nil
}

// Login authenticates a user and returns an access token
func (s *Service) Login(ctx context.Context, email, password string) (*repository.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("lookup user: %w", err)
	}
	if user == nil || !CheckPassword(password, user.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateAccessToken(user.ID.String(), user.Email, user.Name)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// Validate resolves an access token to a user context
func (s *Service) Validate(ctx context.Context, token string) (*models.UserContext, error) {
	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrInvalidClaims
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}

	return &models.UserContext{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
	}, nil
}
