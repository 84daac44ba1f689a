package services

import (
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/utils"
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// AppointmentFilter narrows List. Dates are YYYY-MM-DD in clinic time.
type AppointmentFilter struct {
	Status    string `form:"status"`
	DoctorID  string `form:"doctorId"`
	PatientID string `form:"patientId"`
	From      string `form:"from"`
	To        string `form:"to"`
}

// DayStats counts appointments per status.
type DayStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Confirmed  int `json:"confirmed"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
	NoShow     int `json:"noShow"`
}

func (d *DayStats) add(status models.AppointmentStatus) {
	d.Total++
	switch status {
	case models.StatusPending:
		d.Pending++
	case models.StatusConfirmed:
		d.Confirmed++
	case models.StatusInProgress:
		d.InProgress++
	case models.StatusCompleted:
		d.Completed++
	case models.StatusCancelled:
		d.Cancelled++
	case models.StatusNoShow:
		d.NoShow++
	}
}

// DoctorBoard is the doctor's working list with per-status counts.
type DoctorBoard struct {
	Date         string               `json:"date,omitempty"`
	Appointments []models.Appointment `json:"appointments"`
	Stats        DayStats             `json:"stats"`
}

// dayRange returns [from 00:00, to+1 00:00) in UTC for clinic-local dates.
func (s *AppointmentService) dayRange(from, to string) (time.Time, time.Time, error) {
	loc := s.cfg.Location
	var start, end time.Time
	if from != "" {
		d, err := time.ParseInLocation(models.DateLayout, from, loc)
		if err != nil {
			return start, end, fmt.Errorf("from must be YYYY-MM-DD: %w", utils.ErrValidation)
		}
		start = d.UTC()
	}
	if to != "" {
		d, err := time.ParseInLocation(models.DateLayout, to, loc)
		if err != nil {
			return start, end, fmt.Errorf("to must be YYYY-MM-DD: %w", utils.ErrValidation)
		}
		end = d.AddDate(0, 0, 1).UTC()
	}
	return start, end, nil
}

// List returns the appointments visible to actor: patients see their own,
// doctors their own, staff and admins everything.
func (s *AppointmentService) List(ctx context.Context, actor Actor, f AppointmentFilter) ([]models.Appointment, error) {
	db := s.db.WithContext(ctx)
	q := db.Model(&models.Appointment{}).
		Preload("Patient.User").
		Preload("Doctor.User").
		Preload("Doctor.Specialty")

	switch {
	case actor.Role == models.RolePatient:
		var patient models.PatientProfile
		err := db.Select("id").Where("user_id = ?", actor.UserID).First(&patient).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []models.Appointment{}, nil
		}
		if err != nil {
			return nil, err
		}
		q = q.Where("patient_id = ?", patient.ID)
	case actor.Role == models.RoleDoctor:
		doctor, err := doctorForUser(db, actor.UserID)
		if err != nil {
			return nil, err
		}
		q = q.Where("doctor_id = ?", doctor.ID)
	case actor.IsStaffOrAdmin():
		if f.DoctorID != "" {
			q = q.Where("doctor_id = ?", f.DoctorID)
		}
		if f.PatientID != "" {
			q = q.Where("patient_id = ?", f.PatientID)
		}
	default:
		return nil, utils.ErrForbidden
	}

	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	start, end, err := s.dayRange(f.From, f.To)
	if err != nil {
		return nil, err
	}
	if !start.IsZero() {
		q = q.Where("appointment_at >= ?", start)
	}
	if !end.IsZero() {
		q = q.Where("appointment_at < ?", end)
	}

	var appts []models.Appointment
	if err := q.Order("appointment_at DESC").Find(&appts).Error; err != nil {
		return nil, err
	}
	return appts, nil
}

// Get returns an appointment with its record, invoice and log.
func (s *AppointmentService) Get(ctx context.Context, actor Actor, id string) (*models.Appointment, error) {
	db := s.db.WithContext(ctx)

	var appt models.Appointment
	err := db.
		Preload("Patient.User").
		Preload("Doctor.User").
		Preload("Doctor.Specialty").
		Preload("Schedule").
		Preload("MedicalRecord.Prescriptions").
		Preload("Invoice.Items").
		Preload("Logs", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Where("id = ?", id).First(&appt).Error
	if err != nil {
		return nil, notFound("appointment", err)
	}
	if err := authorizeViewer(db, actor, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

// DoctorToday lists the doctor's appointments of the current clinic day with
// their invoice status.
func (s *AppointmentService) DoctorToday(ctx context.Context, actor Actor) (*DoctorBoard, error) {
	db := s.db.WithContext(ctx)
	doctor, err := doctorForUser(db, actor.UserID)
	if err != nil {
		return nil, err
	}

	today := s.cfg.Now().In(s.cfg.Location).Format(models.DateLayout)
	start, end, err := s.dayRange(today, today)
	if err != nil {
		return nil, err
	}

	var appts []models.Appointment
	if err := db.Preload("Patient.User").Preload("Invoice").
		Where("doctor_id = ? AND appointment_at >= ? AND appointment_at < ?", doctor.ID, start, end).
		Order("appointment_at").Find(&appts).Error; err != nil {
		return nil, err
	}

	board := &DoctorBoard{Date: today, Appointments: appts}
	for _, a := range appts {
		board.Stats.add(a.Status)
	}
	return board, nil
}

// DoctorPending lists upcoming pending, confirmed and cancelled appointments of the doctor.
func (s *AppointmentService) DoctorPending(ctx context.Context, actor Actor) (*DoctorBoard, error) {
	db := s.db.WithContext(ctx)
	doctor, err := doctorForUser(db, actor.UserID)
	if err != nil {
		return nil, err
	}

	today := s.cfg.Now().In(s.cfg.Location).Format(models.DateLayout)
	start, _, err := s.dayRange(today, "")
	if err != nil {
		return nil, err
	}

	var appts []models.Appointment
	if err := db.Preload("Patient.User").
		Where("doctor_id = ? AND appointment_at >= ?", doctor.ID, start).
		Where("status IN ?", []models.AppointmentStatus{models.StatusPending, models.StatusConfirmed, models.StatusCancelled}).
		Order("appointment_at").Find(&appts).Error; err != nil {
		return nil, err
	}

	board := &DoctorBoard{Appointments: appts}
	for _, a := range appts {
		board.Stats.add(a.Status)
	}
	return board, nil
}

// History returns the completed visits of a patient with their records and
// prescriptions, newest first. Patients see their own history; doctors see
// patients they have an appointment with.
func (s *AppointmentService) History(ctx context.Context, actor Actor, patientID string) ([]models.Appointment, error) {
	db := s.db.WithContext(ctx)

	switch {
	case actor.IsStaffOrAdmin():
	case actor.Role == models.RolePatient:
		patient, err := patientForUser(db, actor.UserID)
		if err != nil {
			return nil, err
		}
		if patientID == "" {
			patientID = patient.ID
		}
		if patient.ID != patientID {
			return nil, utils.ErrForbidden
		}
	case actor.Role == models.RoleDoctor:
		doctor, err := doctorForUser(db, actor.UserID)
		if err != nil {
			return nil, err
		}
		var seen int64
		if err := db.Model(&models.Appointment{}).
			Where("doctor_id = ? AND patient_id = ?", doctor.ID, patientID).
			Count(&seen).Error; err != nil {
			return nil, err
		}
		if seen == 0 {
			return nil, utils.ErrForbidden
		}
	default:
		return nil, utils.ErrForbidden
	}

	var appts []models.Appointment
	if err := db.
		Preload("Doctor.User").
		Preload("Doctor.Specialty").
		Preload("MedicalRecord.Prescriptions").
		Where("patient_id = ? AND status = ?", patientID, models.StatusCompleted).
		Order("appointment_at DESC").
		Find(&appts).Error; err != nil {
		return nil, err
	}
	return appts, nil
}
