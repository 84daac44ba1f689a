package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// MedicalRecord is the clinical note of one appointment.
type MedicalRecord struct {
	BaseModel
	AppointmentID string         `gorm:"size:36;uniqueIndex;not null" json:"appointmentId"`
	Symptoms      string         `gorm:"type:text" json:"symptoms,omitempty"`
	Diagnosis     string         `gorm:"type:text" json:"diagnosis,omitempty"`
	Advice        string         `gorm:"type:text" json:"advice,omitempty"`
	Attachments   datatypes.JSON `json:"attachments,omitempty"`

	Prescriptions []Prescription `gorm:"foreignKey:MedicalRecordID" json:"prescriptions,omitempty"`
}

// RecordAttachment is one entry of MedicalRecord.Attachments.
type RecordAttachment struct {
	Name string `json:"name" binding:"required"`
	URL  string `json:"url" binding:"required"`
	Kind string `json:"kind,omitempty"`
}

// Drug is a dispensable item of the clinic pharmacy.
type Drug struct {
	BaseModel
	Code      *string         `gorm:"size:30;uniqueIndex" json:"code,omitempty"`
	Name      string          `gorm:"size:200;not null;index" json:"name"`
	Unit      string          `gorm:"size:30;not null" json:"unit"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unitPrice"`
	Stock     int             `gorm:"not null" json:"stock"`
	IsActive  bool            `gorm:"not null" json:"isActive"`
}

// Prescription is a drug line of a medical record. Name, unit and price are
// snapshots taken when the prescription was written.
type Prescription struct {
	BaseModel
	MedicalRecordID string          `gorm:"size:36;not null;index" json:"medicalRecordId"`
	DrugID          string          `gorm:"size:36;not null;index" json:"drugId"`
	DrugName        string          `gorm:"size:200;not null" json:"drugName"`
	Unit            string          `gorm:"size:30;not null" json:"unit"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unitPrice"`
	Dosage          string          `gorm:"size:100" json:"dosage,omitempty"`
	Frequency       string          `gorm:"size:100" json:"frequency,omitempty"`
	DurationDays    int             `gorm:"not null" json:"durationDays"`
	Quantity        int             `gorm:"not null" json:"quantity"`
	Notes           string          `gorm:"type:text" json:"notes,omitempty"`
}

// LineTotal is quantity x snapshot price.
func (p Prescription) LineTotal() decimal.Decimal {
	return p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity)))
}
