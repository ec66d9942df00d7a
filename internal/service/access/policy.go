package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/postop-monitor/internal/model"
	"github.com/jwalitptl/postop-monitor/internal/repository"
	apperrors "github.com/jwalitptl/postop-monitor/pkg/errors"
)

// Policy answers which patients a caller may see. Super admins see everyone,
// doctors see the patients assigned to them, patients see themselves.
type Policy struct {
	users repository.UserRepository
}

func NewPolicy(users repository.UserRepository) *Policy {
	return &Policy{users: users}
}

func (p *Policy) CanViewPatient(ctx context.Context, user model.CurrentUser, patientID uuid.UUID) (bool, error) {
	switch user.Role {
	case model.RoleSuperAdmin:
		return true, nil
	case model.RolePatient:
		return user.ID == patientID, nil
	case model.RoleDoctor:
		patient, err := p.users.Get(ctx, patientID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return false, nil
			}
			return false, fmt.Errorf("failed to load patient: %w", err)
		}
		return patient.AssignedDoctorID != nil && *patient.AssignedDoctorID == user.ID, nil
	default:
		return false, nil
	}
}

// Authorize is CanViewPatient as an error. Staff get NotFound for an id that
// is not a patient and Forbidden when access is denied. Patients asking for
// anyone else get Forbidden without a lookup.
func (p *Policy) Authorize(ctx context.Context, user model.CurrentUser, patientID uuid.UUID) error {
	switch user.Role {
	case model.RoleSuperAdmin, model.RoleDoctor:
		patient, err := p.users.Get(ctx, patientID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFound("patient", err)
			}
			return apperrors.Internal(fmt.Errorf("failed to load patient: %w", err))
		}
		if !patient.IsPatient() {
			return apperrors.NotFound("patient", nil)
		}
		if user.Role == model.RoleSuperAdmin {
			return nil
		}
		if patient.AssignedDoctorID == nil || *patient.AssignedDoctorID != user.ID {
			return apperrors.Forbidden("not allowed to access this patient")
		}
		return nil
	}

	ok, err := p.CanViewPatient(ctx, user, patientID)
	if err != nil {
		return apperrors.Internal(err)
	}
	if !ok {
		return apperrors.Forbidden("not allowed to access this patient")
	}
	return nil
}

// ScopeAlerts narrows filter to what user may list
func (p *Policy) ScopeAlerts(ctx context.Context, user model.CurrentUser, filter model.AlertFilter) (model.AlertFilter, error) {
	if filter.PatientID != nil {
		if err := p.Authorize(ctx, user, *filter.PatientID); err != nil {
			return filter, err
		}
	}

	switch user.Role {
	case model.RoleSuperAdmin:
	case model.RoleDoctor:
		id := user.ID
		filter.DoctorID = &id
	case model.RolePatient:
		id := user.ID
		filter.PatientID = &id
	default:
		return filter, apperrors.Forbidden("unknown role")
	}
	return filter, nil
}

// CanManageAlerts reports whether user may change alert status
func CanManageAlerts(user model.CurrentUser) bool {
	return user.Role == model.RoleDoctor || user.Role == model.RoleSuperAdmin
}
