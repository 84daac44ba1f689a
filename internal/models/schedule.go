package models

// ScheduleStatus enum
type ScheduleStatus string

const (
	ScheduleOpen   ScheduleStatus = "open"
	ScheduleClosed ScheduleStatus = "closed"
)

// DateLayout and ClockLayout are the storage formats of Schedule.WorkDate and its times.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Schedule is a doctor's working window on a date, split into fixed-length slots.
type Schedule struct {
	BaseModel
	DoctorID     string         `gorm:"size:36;not null;uniqueIndex:idx_schedule_window" json:"doctorId"`
	WorkDate     string         `gorm:"size:10;not null;uniqueIndex:idx_schedule_window;index" json:"workDate"`
	StartTime    string         `gorm:"size:5;not null;uniqueIndex:idx_schedule_window" json:"startTime"`
	EndTime      string         `gorm:"size:5;not null;uniqueIndex:idx_schedule_window" json:"endTime"`
	SlotDuration int            `gorm:"not null" json:"slotDuration"`
	Status       ScheduleStatus `gorm:"size:10;not null" json:"status"`

	Doctor *Doctor `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
}
