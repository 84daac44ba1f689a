package models

import "time"

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

type BloodType string

const (
	BloodA       BloodType = "A"
	BloodB       BloodType = "B"
	BloodAB      BloodType = "AB"
	BloodO       BloodType = "O"
	BloodUnknown BloodType = "UNKNOWN"
)

// PatientProfile holds the clinical identity of a patient user.
type PatientProfile struct {
	BaseModel
	UserID                string     `gorm:"size:36;uniqueIndex;not null" json:"userId"`
	CCCD                  string     `gorm:"column:cccd;size:12;uniqueIndex;not null" json:"cccd"`
	DateOfBirth           *time.Time `json:"dateOfBirth,omitempty"`
	Gender                Gender     `gorm:"size:10" json:"gender,omitempty"`
	Address               string     `gorm:"size:255" json:"address,omitempty"`
	InsuranceNumber       string     `gorm:"size:50" json:"insuranceNumber,omitempty"`
	EmergencyContactName  string     `gorm:"size:150" json:"emergencyContactName,omitempty"`
	EmergencyContactPhone string     `gorm:"size:20" json:"emergencyContactPhone,omitempty"`
	BloodType             BloodType  `gorm:"size:10;not null" json:"bloodType"`
	Allergies             string     `gorm:"type:text" json:"allergies,omitempty"`
	Notes                 string     `gorm:"type:text" json:"notes,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

type StaffStatus string

const (
	StaffActive   StaffStatus = "active"
	StaffOnLeave  StaffStatus = "on_leave"
	StaffInactive StaffStatus = "inactive"
)

// StaffProfile holds employment data for reception and cashier staff.
type StaffProfile struct {
	BaseModel
	UserID       string      `gorm:"size:36;uniqueIndex;not null" json:"userId"`
	EmployeeCode *string     `gorm:"size:30;uniqueIndex" json:"employeeCode,omitempty"`
	Position     string      `gorm:"size:100" json:"position,omitempty"`
	Shift        string      `gorm:"size:50" json:"shift,omitempty"`
	StartDate    *time.Time  `json:"startDate,omitempty"`
	Status       StaffStatus `gorm:"size:20;not null" json:"status"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
