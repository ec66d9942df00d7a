package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/postop-monitor/internal/model"
	"github.com/jwalitptl/postop-monitor/internal/repository/repotest"
	"github.com/jwalitptl/postop-monitor/pkg/auth"
	apperrors "github.com/jwalitptl/postop-monitor/pkg/errors"
	"github.com/jwalitptl/postop-monitor/pkg/logger"
	"github.com/jwalitptl/postop-monitor/pkg/security"
)

func newService(t *testing.T, users ...*model.User) *Service {
	t.Helper()
	return NewService(
		repotest.NewUsers(users...),
		auth.NewJWTService("test-secret", time.Hour),
		security.NewBcryptHasher(bcrypt.MinCost),
		logger.Nop(),
	)
}

func user(t *testing.T, email, password string, status string) *model.User {
	t.Helper()
	hash, err := security.NewBcryptHasher(bcrypt.MinCost).Hash(password)
	require.NoError(t, err)
	return &model.User{
		Base:         model.Base{ID: uuid.New()},
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleDoctor,
		Status:       status,
	}
}

func TestLogin(t *testing.T) {
	active := user(t, "dr.ortiz@example.com", "correct-horse", model.UserStatusActive)
	inactive := user(t, "retired@example.com", "correct-horse", model.UserStatusInactive)
	svc := newService(t, active, inactive)
	ctx := context.Background()

	resp, err := svc.Login(ctx, &model.LoginRequest{Email: " Dr.Ortiz@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.InDelta(t, time.Hour.Seconds(), float64(resp.ExpiresIn), 5)
	assert.Equal(t, active.ID, resp.User.ID)

	current, err := svc.Authenticate(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, model.CurrentUser{ID: active.ID, Role: model.RoleDoctor}, current)

	_, err = svc.Login(ctx, &model.LoginRequest{Email: active.Email, Password: "wrong-password"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthorized))
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)

	_, err = svc.Login(ctx, &model.LoginRequest{Email: "nobody@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)

	_, err = svc.Login(ctx, &model.LoginRequest{Email: inactive.Email, Password: "correct-horse"})
	assert.ErrorIs(t, err, model.ErrInactiveUser)

	_, err = svc.Authenticate("garbage")
	assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthorized))
}
