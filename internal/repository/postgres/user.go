package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/postop-monitor/internal/model"
	"github.com/jwalitptl/postop-monitor/internal/repository"
)

const userColumns = `id, email, name, password_hash, role, status, band_id,
	date_of_birth, surgery_date, assigned_doctor_id, created_at, updated_at`

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", notFound(err))
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = $1`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, strings.ToLower(strings.TrimSpace(email))); err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", notFound(err))
	}
	return &user, nil
}

// ListPatients returns every active patient ordered by id
func (r *userRepository) ListPatients(ctx context.Context) ([]*model.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE role = $1 AND status = $2
		ORDER BY id`

	var users []*model.User
	if err := r.db.SelectContext(ctx, &users, query, model.RolePatient, model.UserStatusActive); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return users, nil
}
