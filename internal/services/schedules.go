package services

import (
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/utils"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ScheduleService manages doctor working windows.
type ScheduleService struct {
	db  *gorm.DB
	loc *time.Location
	log *zap.Logger
}

func NewScheduleService(db *gorm.DB, loc *time.Location, log *zap.Logger) *ScheduleService {
	return &ScheduleService{db: db, loc: loc, log: log}
}

// ScheduleInput describes a new schedule window. DoctorID is ignored for doctors,
// who always create schedules for themselves.
type ScheduleInput struct {
	DoctorID     string `json:"doctorId"`
	WorkDate     string `json:"workDate" binding:"required"`
	StartTime    string `json:"startTime" binding:"required"`
	EndTime      string `json:"endTime" binding:"required"`
	SlotDuration int    `json:"slotDuration" binding:"required,gt=0"`
}

// ScheduleFilter narrows List.
type ScheduleFilter struct {
	DoctorID string `form:"doctorId"`
	From     string `form:"from"`
	To       string `form:"to"`
	Status   string `form:"status"`
}

// Create inserts an open schedule window.
func (s *ScheduleService) Create(ctx context.Context, actor Actor, in ScheduleInput) (*models.Schedule, error) {
	db := s.db.WithContext(ctx)

	doctorID := in.DoctorID
	switch {
	case actor.Role == models.RoleDoctor:
		doctor, err := doctorForUser(db, actor.UserID)
		if err != nil {
			return nil, err
		}
		doctorID = doctor.ID
	case actor.IsStaffOrAdmin():
		if doctorID == "" {
			return nil, fmt.Errorf("doctorId is required: %w", utils.ErrValidation)
		}
		var doctor models.Doctor
		if err := db.Select("id").Where("id = ?", doctorID).First(&doctor).Error; err != nil {
			return nil, notFound("doctor", err)
		}
	default:
		return nil, utils.ErrForbidden
	}

	if _, err := time.ParseInLocation(models.DateLayout, in.WorkDate, s.loc); err != nil {
		return nil, fmt.Errorf("workDate must be YYYY-MM-DD: %w", utils.ErrValidation)
	}
	start, err := combine(in.WorkDate, in.StartTime, s.loc)
	if err != nil {
		return nil, fmt.Errorf("startTime must be HH:MM: %w", utils.ErrValidation)
	}
	end, err := combine(in.WorkDate, in.EndTime, s.loc)
	if err != nil {
		return nil, fmt.Errorf("endTime must be HH:MM: %w", utils.ErrValidation)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("startTime must be before endTime: %w", utils.ErrValidation)
	}
	if in.SlotDuration <= 0 {
		return nil, fmt.Errorf("slotDuration must be positive: %w", utils.ErrValidation)
	}

	schedule := &models.Schedule{
		DoctorID:     doctorID,
		WorkDate:     in.WorkDate,
		StartTime:    start.Format(models.ClockLayout),
		EndTime:      end.Format(models.ClockLayout),
		SlotDuration: in.SlotDuration,
		Status:       models.ScheduleOpen,
	}
	if err := db.Create(schedule).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("schedule window: %w", utils.ErrConflict)
		}
		return nil, err
	}

	s.log.Info("schedule created",
		zap.String("schedule_id", schedule.ID),
		zap.String("doctor_id", doctorID),
		zap.String("work_date", schedule.WorkDate))
	return schedule, nil
}

// SetStatus opens or closes a schedule. Doctors may only change their own.
func (s *ScheduleService) SetStatus(ctx context.Context, actor Actor, id string, status models.ScheduleStatus) (*models.Schedule, error) {
	if status != models.ScheduleOpen && status != models.ScheduleClosed {
		return nil, fmt.Errorf("unknown schedule status %q: %w", status, utils.ErrValidation)
	}
	db := s.db.WithContext(ctx)

	var schedule models.Schedule
	if err := db.Where("id = ?", id).First(&schedule).Error; err != nil {
		return nil, notFound("schedule", err)
	}

	if actor.Role == models.RoleDoctor {
		doctor, err := doctorForUser(db, actor.UserID)
		if err != nil {
			return nil, err
		}
		if doctor.ID != schedule.DoctorID {
			return nil, utils.ErrForbidden
		}
	} else if !actor.IsStaffOrAdmin() {
		return nil, utils.ErrForbidden
	}

	if err := db.Model(&schedule).Update("status", status).Error; err != nil {
		return nil, err
	}
	return &schedule, nil
}

// List returns schedules ordered by date and start time. Doctors only see their own.
func (s *ScheduleService) List(ctx context.Context, actor Actor, f ScheduleFilter) ([]models.Schedule, error) {
	db := s.db.WithContext(ctx)
	q := db.Model(&models.Schedule{})

	if actor.Role == models.RoleDoctor {
		doctor, err := doctorForUser(db, actor.UserID)
		if err != nil {
			return nil, err
		}
		q = q.Where("doctor_id = ?", doctor.ID)
	} else if f.DoctorID != "" {
		q = q.Where("doctor_id = ?", f.DoctorID)
	}
	if f.From != "" {
		q = q.Where("work_date >= ?", f.From)
	}
	if f.To != "" {
		q = q.Where("work_date <= ?", f.To)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var schedules []models.Schedule
	if err := q.Order("work_date, start_time").Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}
