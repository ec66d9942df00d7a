package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jwalitptl/postop-monitor/internal/model"
	"github.com/jwalitptl/postop-monitor/internal/repository"
	"github.com/jwalitptl/postop-monitor/pkg/auth"
	apperrors "github.com/jwalitptl/postop-monitor/pkg/errors"
	"github.com/jwalitptl/postop-monitor/pkg/logger"
	"github.com/jwalitptl/postop-monitor/pkg/security"
)

type Service struct {
	userRepo repository.UserRepository
	jwtSvc   auth.JWTService
	hasher   security.PasswordHasher
	logger   *logger.Logger
}

func NewService(userRepo repository.UserRepository, jwtSvc auth.JWTService, hasher security.PasswordHasher, logger *logger.Logger) *Service {
	return &Service{
		userRepo: userRepo,
		jwtSvc:   jwtSvc,
		hasher:   hasher,
		logger:   logger,
	}
}

// Login exchanges credentials for an access token. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Unauthorized(model.ErrInvalidCredentials)
		}
		return nil, apperrors.Internal(err)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		if !errors.Is(err, security.ErrPasswordMismatch) {
			s.logger.Error(err, "Stored password hash is unusable", "user_id", user.ID.String())
		}
		return nil, apperrors.Unauthorized(model.ErrInvalidCredentials)
	}

	if user.Status != model.UserStatusActive {
		return nil, apperrors.Unauthorized(model.ErrInactiveUser)
	}

	token, expiresAt, err := s.jwtSvc.GenerateAccessToken(user)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.logger.Info("User logged in", "user_id", user.ID.String(), "role", string(user.Role))
	return &model.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
		User:        user,
	}, nil
}

// Authenticate resolves a bearer token to the calling user
func (s *Service) Authenticate(token string) (model.CurrentUser, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return model.CurrentUser{}, apperrors.Unauthorized(err)
	}
	return model.CurrentUser{ID: claims.UserID, Role: claims.Role}, nil
}
