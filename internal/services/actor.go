package services

import (
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/utils"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Actor is the authenticated user performing an operation. The zero Actor is
// the system (scheduled jobs, maintenance commands).
type Actor struct {
	UserID string
	Role   models.Role
}

// IsSystem reports whether the actor is the system rather than a user.
func (a Actor) IsSystem() bool {
	return a.UserID == ""
}

// IsStaffOrAdmin reports whether the actor has front-office rights.
func (a Actor) IsStaffOrAdmin() bool {
	return a.Role == models.RoleStaff || a.Role == models.RoleAdmin
}

func (a Actor) idPtr() *string {
	if a.UserID == "" {
		return nil
	}
	id := a.UserID
	return &id
}

// doctorForUser loads the doctor profile of a doctor user.
func doctorForUser(tx *gorm.DB, userID string) (*models.Doctor, error) {
	var doctor models.Doctor
	if err := tx.Where("user_id = ?", userID).First(&doctor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("doctor profile: %w", utils.ErrNotFound)
		}
		return nil, err
	}
	return &doctor, nil
}

// patientForUser loads the patient profile of a patient user.
func patientForUser(tx *gorm.DB, userID string) (*models.PatientProfile, error) {
	var patient models.PatientProfile
	if err := tx.Where("user_id = ?", userID).First(&patient).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("complete your patient profile before booking: %w", utils.ErrValidation)
		}
		return nil, err
	}
	return &patient, nil
}

func notFound(what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, utils.ErrNotFound)
	}
	return err
}

// combine joins a YYYY-MM-DD date and HH:MM clock time in loc.
func combine(date, clock string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(models.DateLayout+" "+models.ClockLayout, date+" "+clock, loc)
}
