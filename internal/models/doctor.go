package models

import "github.com/shopspring/decimal"

// Specialty is a medical department doctors belong to.
type Specialty struct {
	BaseModel
	Name        string `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
}

// Doctor is the professional profile attached to a doctor user.
type Doctor struct {
	BaseModel
	UserID          string          `gorm:"size:36;uniqueIndex;not null" json:"userId"`
	SpecialtyID     *string         `gorm:"size:36;index" json:"specialtyId,omitempty"`
	LicenseNumber   string          `gorm:"size:50;uniqueIndex;not null" json:"licenseNumber"`
	YearsExperience int             `gorm:"not null" json:"yearsExperience"`
	Bio             string          `gorm:"type:text" json:"bio,omitempty"`
	RoomNumber      string          `gorm:"size:20" json:"roomNumber,omitempty"`
	Rank            string          `gorm:"size:50" json:"rank"`
	ConsultationFee decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"consultationFee"`

	User      *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Specialty *Specialty `gorm:"foreignKey:SpecialtyID" json:"specialty,omitempty"`
}

// DoctorRankFee is the default consultation fee for a rank. Rank is stored normalised.
type DoctorRankFee struct {
	BaseModel
	Rank       string          `gorm:"size:20;uniqueIndex;not null" json:"rank"`
	DefaultFee decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"defaultFee"`
}
