package services

import (
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/notify"
	"clinic-app-server/internal/utils"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AppointmentConfig holds the booking rules of the clinic.
type AppointmentConfig struct {
	Location          *time.Location
	BookingWindowDays int
	CancelBefore      time.Duration
	Now               func() time.Time
}

// AppointmentService books appointments and drives their status machine.
type AppointmentService struct {
	db        *gorm.DB
	slots     *SlotService
	pricing   *PricingResolver
	publisher notify.Publisher
	log       *zap.Logger
	cfg       AppointmentConfig
}

func NewAppointmentService(db *gorm.DB, slots *SlotService, pricing *PricingResolver, publisher notify.Publisher, log *zap.Logger, cfg AppointmentConfig) *AppointmentService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	return &AppointmentService{db: db, slots: slots, pricing: pricing, publisher: publisher, log: log, cfg: cfg}
}

// Location is the clinic time zone.
func (s *AppointmentService) Location() *time.Location {
	return s.cfg.Location
}

// BookingInput is a booking request. PatientID is required when staff book
// on behalf of a patient and ignored for patients.
type BookingInput struct {
	PatientID string `json:"patientId"`
	DoctorID  string `json:"doctorId" binding:"required"`
	Date      string `json:"date" binding:"required"`
	Time      string `json:"time" binding:"required"`
	Reason    string `json:"reason" binding:"max=255"`
	// ChatSessionToken links the booking to the caller's active assistant session.
	ChatSessionToken string `json:"chatSessionToken"`
}

// Book creates a pending appointment in a free slot.
func (s *AppointmentService) Book(ctx context.Context, actor Actor, in BookingInput) (*models.Appointment, error) {
	db := s.db.WithContext(ctx)
	loc := s.cfg.Location
	now := s.cfg.Now()

	var patient *models.PatientProfile
	source := models.SourcePortal
	switch {
	case actor.Role == models.RolePatient:
		p, err := patientForUser(db, actor.UserID)
		if err != nil {
			return nil, err
		}
		patient = p
	case actor.IsStaffOrAdmin():
		if in.PatientID == "" {
			return nil, fmt.Errorf("patientId is required: %w", utils.ErrValidation)
		}
		var p models.PatientProfile
		if err := db.Where("id = ?", in.PatientID).First(&p).Error; err != nil {
			return nil, notFound("patient", err)
		}
		patient = &p
		source = models.SourceStaff
	default:
		return nil, utils.ErrForbidden
	}

	var chatSessionID *string
	if in.ChatSessionToken != "" {
		session, err := chatSessionForBooking(db, actor, in.ChatSessionToken)
		if err != nil {
			return nil, err
		}
		chatSessionID = &session.ID
		source = models.SourceChatbot
	}

	var doctor models.Doctor
	if err := db.Preload("User").Where("id = ?", in.DoctorID).First(&doctor).Error; err != nil {
		return nil, notFound("doctor", err)
	}
	if doctor.User == nil || !doctor.User.IsActive {
		return nil, fmt.Errorf("doctor is not accepting appointments: %w", utils.ErrValidation)
	}

	day, err := time.ParseInLocation(models.DateLayout, in.Date, loc)
	if err != nil {
		return nil, fmt.Errorf("date must be YYYY-MM-DD: %w", utils.ErrValidation)
	}
	localNow := now.In(loc)
	today := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, loc)
	if day.Before(today) || day.After(today.AddDate(0, 0, s.cfg.BookingWindowDays)) {
		return nil, fmt.Errorf("date must be within %d days from today: %w", s.cfg.BookingWindowDays, utils.ErrValidation)
	}
	at, err := combine(in.Date, in.Time, loc)
	if err != nil {
		return nil, fmt.Errorf("time must be HH:MM: %w", utils.ErrValidation)
	}
	if !at.After(now) {
		return nil, fmt.Errorf("selected time has already passed: %w", utils.ErrValidation)
	}
	clock := at.Format(models.ClockLayout)

	var appt models.Appointment
	err = db.Transaction(func(tx *gorm.DB) error {
		slots, err := s.slots.availableSlots(tx, doctor.ID, in.Date)
		if err != nil {
			return err
		}
		if !slotOpen(slots, clock) {
			return utils.ErrSlotUnavailable
		}

		var schedule models.Schedule
		err = tx.Where("doctor_id = ? AND work_date = ? AND status = ? AND start_time <= ? AND end_time > ?",
			doctor.ID, in.Date, models.ScheduleOpen, clock, clock).
			Order("start_time").First(&schedule).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrSlotUnavailable
			}
			return err
		}

		hold := at.UTC()
		appt = models.Appointment{
			PatientID:        patient.ID,
			DoctorID:         doctor.ID,
			ScheduleID:       schedule.ID,
			AppointmentAt:    at.UTC(),
			SlotHold:         &hold,
			Status:           models.StatusPending,
			Reason:           in.Reason,
			Source:           source,
			ChatbotSessionID: chatSessionID,
		}
		if err := tx.Create(&appt).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return utils.ErrSlotUnavailable
			}
			return err
		}
		return addLog(tx, appt.ID, models.ActionCreate, actor, "")
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("appointment booked",
		zap.String("appointment_id", appt.ID),
		zap.String("doctor_id", appt.DoctorID),
		zap.Time("appointment_at", appt.AppointmentAt),
		zap.String("source", string(source)))
	s.publish(ctx, notify.AppointmentBooked, &appt)
	return &appt, nil
}

func slotOpen(slots []Slot, clock string) bool {
	for _, slot := range slots {
		if slot.Start == clock {
			return slot.Available
		}
	}
	return false
}

type authorizer func(tx *gorm.DB, actor Actor, appt *models.Appointment) error

// Confirm moves a pending appointment to confirmed.
func (s *AppointmentService) Confirm(ctx context.Context, actor Actor, id string) (*models.Appointment, error) {
	appt, err := s.transition(ctx, actor, id, models.StatusConfirmed, models.ActionConfirmed, "", authorizeDoctorOrFrontDesk)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, notify.AppointmentConfirmed, appt)
	return appt, nil
}

// Start begins the visit of a confirmed appointment.
func (s *AppointmentService) Start(ctx context.Context, actor Actor, id string) (*models.Appointment, error) {
	return s.transition(ctx, actor, id, models.StatusInProgress, models.ActionStarted, "", authorizeDoctorOrAdmin)
}

// Cancel releases the slot of a pending or confirmed appointment. Patients must
// cancel at least CancelBefore ahead of the appointment time.
func (s *AppointmentService) Cancel(ctx context.Context, actor Actor, id, reason string) (*models.Appointment, error) {
	appt, err := s.transition(ctx, actor, id, models.StatusCancelled, models.ActionCancel, reason, s.authorizeCancel)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, notify.AppointmentCancelled, appt)
	return appt, nil
}

// MarkNoShow flags an appointment whose patient did not come and releases its slot.
func (s *AppointmentService) MarkNoShow(ctx context.Context, actor Actor, id string) (*models.Appointment, error) {
	appt, err := s.transition(ctx, actor, id, models.StatusNoShow, models.ActionNoShow, "", s.authorizeNoShow)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, notify.AppointmentNoShow, appt)
	return appt, nil
}

func (s *AppointmentService) transition(ctx context.Context, actor Actor, id string, to models.AppointmentStatus, action, note string, authorize authorizer) (*models.Appointment, error) {
	var appt models.Appointment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&appt).Error; err != nil {
			return notFound("appointment", err)
		}
		if err := authorize(tx, actor, &appt); err != nil {
			return err
		}
		if !appt.Status.CanTransitionTo(to) {
			return fmt.Errorf("cannot move appointment from %s to %s: %w", appt.Status, to, utils.ErrInvalidTransition)
		}
		return applyTransition(tx, &appt, to, action, actor, note)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("appointment status changed",
		zap.String("appointment_id", appt.ID),
		zap.String("status", string(to)),
		zap.String("actor_id", actor.UserID))
	return &appt, nil
}

// applyTransition updates the status only if nobody changed it since it was read.
func applyTransition(tx *gorm.DB, appt *models.Appointment, to models.AppointmentStatus, action string, actor Actor, note string) error {
	updates := map[string]interface{}{"status": to}
	if !to.HoldsSlot() {
		updates["slot_hold"] = nil
	}

	res := tx.Model(&models.Appointment{}).Where("id = ? AND status = ?", appt.ID, appt.Status).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("appointment was modified concurrently: %w", utils.ErrInvalidTransition)
	}

	appt.Status = to
	if !to.HoldsSlot() {
		appt.SlotHold = nil
	}
	return addLog(tx, appt.ID, action, actor, note)
}

func addLog(tx *gorm.DB, appointmentID, action string, actor Actor, note string) error {
	return tx.Create(&models.AppointmentLog{
		AppointmentID: appointmentID,
		Action:        action,
		ActorID:       actor.idPtr(),
		Note:          note,
	}).Error
}

func isDoctorOwner(tx *gorm.DB, actor Actor, appt *models.Appointment) (bool, error) {
	if actor.Role != models.RoleDoctor {
		return false, nil
	}
	doctor, err := doctorForUser(tx, actor.UserID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return doctor.ID == appt.DoctorID, nil
}

func isPatientOwner(tx *gorm.DB, actor Actor, appt *models.Appointment) (bool, error) {
	if actor.Role != models.RolePatient {
		return false, nil
	}
	var patient models.PatientProfile
	err := tx.Select("id").Where("user_id = ?", actor.UserID).First(&patient).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return patient.ID == appt.PatientID, nil
}

func authorizeDoctorOrAdmin(tx *gorm.DB, actor Actor, appt *models.Appointment) error {
	if actor.Role == models.RoleAdmin {
		return nil
	}
	owner, err := isDoctorOwner(tx, actor, appt)
	if err != nil {
		return err
	}
	if !owner {
		return utils.ErrForbidden
	}
	return nil
}

func authorizeDoctorOrFrontDesk(tx *gorm.DB, actor Actor, appt *models.Appointment) error {
	if actor.IsStaffOrAdmin() {
		return nil
	}
	return authorizeDoctorOrAdmin(tx, actor, appt)
}

func authorizeViewer(tx *gorm.DB, actor Actor, appt *models.Appointment) error {
	if actor.IsStaffOrAdmin() {
		return nil
	}
	owner, err := isPatientOwner(tx, actor, appt)
	if err != nil {
		return err
	}
	if owner {
		return nil
	}
	return authorizeDoctorOrAdmin(tx, actor, appt)
}

func (s *AppointmentService) authorizeCancel(tx *gorm.DB, actor Actor, appt *models.Appointment) error {
	if actor.IsStaffOrAdmin() {
		return nil
	}
	owner, err := isPatientOwner(tx, actor, appt)
	if err != nil {
		return err
	}
	if !owner {
		return utils.ErrForbidden
	}
	if appt.AppointmentAt.Sub(s.cfg.Now()) < s.cfg.CancelBefore {
		return fmt.Errorf("appointments can only be cancelled at least %d minutes in advance: %w",
			int(s.cfg.CancelBefore.Minutes()), utils.ErrValidation)
	}
	return nil
}

func (s *AppointmentService) authorizeNoShow(tx *gorm.DB, actor Actor, appt *models.Appointment) error {
	if err := authorizeDoctorOrFrontDesk(tx, actor, appt); err != nil {
		return err
	}
	if appt.AppointmentAt.After(s.cfg.Now()) {
		return fmt.Errorf("cannot mark a future appointment as no-show: %w", utils.ErrValidation)
	}
	return nil
}

// SweepNoShows marks pending and confirmed appointments that started more than
// grace ago as no-show. It returns how many were marked.
func (s *AppointmentService) SweepNoShows(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := s.cfg.Now().Add(-grace).UTC()

	var stale []models.Appointment
	if err := s.db.WithContext(ctx).
		Where("status IN ? AND appointment_at < ?", []models.AppointmentStatus{models.StatusPending, models.StatusConfirmed}, cutoff).
		Find(&stale).Error; err != nil {
		return 0, err
	}

	marked := 0
	for i := range stale {
		appt := &stale[i]
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return applyTransition(tx, appt, models.StatusNoShow, models.ActionNoShow, Actor{}, "no-show after grace period")
		})
		if errors.Is(err, utils.ErrInvalidTransition) {
			continue
		}
		if err != nil {
			return marked, err
		}
		marked++
		s.publish(ctx, notify.AppointmentNoShow, appt)
	}

	if marked > 0 {
		s.log.Info("no-show sweep", zap.Int("marked", marked))
	}
	return marked, nil
}

func (s *AppointmentService) publish(ctx context.Context, eventType string, appt *models.Appointment) {
	event := notify.NewEvent(eventType, map[string]interface{}{
		"appointmentId": appt.ID,
		"doctorId":      appt.DoctorID,
		"patientId":     appt.PatientID,
		"appointmentAt": appt.AppointmentAt,
		"status":        appt.Status,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("publish event failed", zap.String("type", eventType), zap.Error(err))
	}
}
