package auth

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/shoplens/shoplens-backend/internal/repository"
)

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*repository.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]*repository.User)}
}

func (r *memUserRepo) Create(_ context.Context, u *repository.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	r.users[u.ID] = u
	return nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*repository.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id], nil
}

func newTestService() *Service {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return NewService(newMemUserRepo(), "test-secret", log)
}

func TestSignupAndLogin(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	user, token, err := svc.Signup(ctx, "Ana", "ANA@Example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email, "email must be normalized")
	assert.NotEmpty(t, token)
	assert.NotEqual(t, "password123", user.PasswordHash)

	loggedIn, loginToken, err := svc.Login(ctx, "ana@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.NotEmpty(t, loginToken)

	userContext, err := svc.Validate(ctx, loginToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userContext.UserID)
	assert.Equal(t, "ana@example.com", userContext.Email)
}

func TestSignupValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	cases := []struct {
		name, userName, email, password string
	}{
		{"empty name", "", "a@b.co", "password123"},
		{"bad email", "Ana", "not-an-email", "password123"},
		{"email with spaces", "Ana", "a b@c.co", "password123"},
		{"short password", "Ana", "a@b.co", "short"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Signup(ctx, tc.userName, tc.email, tc.password)
			assert.ErrorIs(t, err, ErrInvalidSignup)
		})
	}
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, _, err := svc.Signup(ctx, "Ana", "ana@example.com", "password123")
	require.NoError(t, err)

	_, _, err = svc.Signup(ctx, "Other Ana", "ana@example.com", "different-pass")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, _, err := svc.Signup(ctx, "Ana", "ana@example.com", "password123")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "ana@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateRejectsTokenForDeletedUser(t *testing.T) {
	repo := newMemUserRepo()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	svc := NewService(repo, "test-secret", log)
	ctx := context.Background()

	user, token, err := svc.Signup(ctx, "Ana", "ana@example.com", "password123")
	require.NoError(t, err)

	repo.mu.Lock()
	delete(repo.users, user.ID)
	repo.mu.Unlock()

	_, err = svc.Validate(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
