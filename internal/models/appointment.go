package models

import "time"

// AppointmentStatus enum
type AppointmentStatus string

const (
	StatusPending    AppointmentStatus = "pending"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusInProgress AppointmentStatus = "in_progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusNoShow     AppointmentStatus = "no_show"
)

var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted},
}

// CanTransitionTo reports whether the status may move to next.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// HoldsSlot reports whether an appointment in this status occupies its slot.
func (s AppointmentStatus) HoldsSlot() bool {
	return s != StatusCancelled && s != StatusNoShow
}

// AppointmentSource enum
type AppointmentSource string

const (
	SourcePortal  AppointmentSource = "portal"
	SourceStaff   AppointmentSource = "staff"
	SourceChatbot AppointmentSource = "chatbot"
)

// Appointment is a booked visit of a patient with a doctor.
// SlotHold mirrors AppointmentAt while the appointment occupies its slot and is
// cleared on cancel or no-show, so the unique index only covers live bookings.
type Appointment struct {
	BaseModel
	PatientID     string            `gorm:"size:36;not null;index" json:"patientId"`
	DoctorID      string            `gorm:"size:36;not null;index;uniqueIndex:idx_doctor_slot_hold" json:"doctorId"`
	ScheduleID    string            `gorm:"size:36;not null;index" json:"scheduleId"`
	AppointmentAt time.Time         `gorm:"not null;index" json:"appointmentAt"`
	SlotHold      *time.Time        `gorm:"uniqueIndex:idx_doctor_slot_hold" json:"-"`
	Status        AppointmentStatus `gorm:"size:20;not null;index" json:"status"`
	Reason        string            `gorm:"size:255" json:"reason,omitempty"`
	Source        AppointmentSource `gorm:"size:10;not null" json:"source"`
	// ChatbotSessionID links appointments booked from an assistant conversation.
	ChatbotSessionID *string `gorm:"size:36;index" json:"chatbotSessionId,omitempty"`

	Patient       *PatientProfile  `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Doctor        *Doctor          `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
	Schedule      *Schedule        `gorm:"foreignKey:ScheduleID" json:"schedule,omitempty"`
	MedicalRecord *MedicalRecord   `gorm:"foreignKey:AppointmentID" json:"medicalRecord,omitempty"`
	Invoice       *Invoice         `gorm:"foreignKey:AppointmentID" json:"invoice,omitempty"`
	Logs          []AppointmentLog `gorm:"foreignKey:AppointmentID" json:"logs,omitempty"`
}

// Log actions
const (
	ActionCreate              = "CREATE"
	ActionConfirmed           = "CONFIRMED"
	ActionStarted             = "STARTED"
	ActionUpdatedRecord       = "UPDATED_RECORD"
	ActionUpdatedPrescription = "UPDATED_PRESCRIPTION"
	ActionCompleted           = "COMPLETED"
	ActionCancel              = "CANCEL"
	ActionNoShow              = "NO_SHOW"
)

// AppointmentLog is the audit trail of an appointment. ActorID is nil for system actions.
type AppointmentLog struct {
	BaseModel
	AppointmentID string  `gorm:"size:36;not null;index" json:"appointmentId"`
	Action        string  `gorm:"size:30;not null" json:"action"`
	ActorID       *string `gorm:"size:36" json:"actorId,omitempty"`
	Note          string  `gorm:"type:text" json:"note,omitempty"`
}
