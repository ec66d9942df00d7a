package model

import (
	"time"

	"github.com/google/uuid"
)

// User status constants
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// Role is the access role carried by every user
type Role string

// Role constants
const (
	RolePatient    Role = "patient"
	RoleDoctor     Role = "doctor"
	RoleSuperAdmin Role = "super_admin"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleSuperAdmin:
		return true
	}
	return false
}

// User represents a system user. Patients carry the demographic fields the
// vitals generator derives its baseline from.
type User struct {
	Base
	Email            string     `json:"email" db:"email"`
	Name             string     `json:"name" db:"name"`
	PasswordHash     string     `json:"-" db:"password_hash"`
	Role             Role       `json:"role" db:"role"`
	Status           string     `json:"status" db:"status"`
	BandID           *string    `json:"band_id,omitempty" db:"band_id"`
	DateOfBirth      *time.Time `json:"date_of_birth,omitempty" db:"date_of_birth"`
	SurgeryDate      *time.Time `json:"surgery_date,omitempty" db:"surgery_date"`
	AssignedDoctorID *uuid.UUID `json:"assigned_doctor_id,omitempty" db:"assigned_doctor_id"`
}

// Age returns the age in whole years at now, or 0 when unknown
func (u *User) Age(now time.Time) int {
	if u.DateOfBirth == nil {
		return 0
	}
	dob := u.DateOfBirth.UTC()
	now = now.UTC()
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// DaysSinceSurgery returns whole days elapsed since surgery. Unknown
// surgery dates are treated as long past.
func (u *User) DaysSinceSurgery(now time.Time) int {
	if u.SurgeryDate == nil {
		return 365
	}
	days := int(now.Sub(*u.SurgeryDate).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// IsPatient reports whether the user is monitored by the pipeline
func (u *User) IsPatient() bool {
	return u.Role == RolePatient
}

// CurrentUser is the authenticated caller extracted from the bearer token
type CurrentUser struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}
