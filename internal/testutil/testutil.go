// Package testutil provides an in-memory database and fixtures for tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"clinic-app-server/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory sqlite database private to the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(uuid.NewString(), "-", ""))
	db, err := models.Open(models.DatabaseConfig{Driver: "sqlite", DSN: dsn, LogLevel: logger.Silent})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts an active user with password "password123".
func CreateUser(t *testing.T, db *gorm.DB, role models.Role) *models.User {
	t.Helper()
	user := &models.User{
		Email:    fmt.Sprintf("%s-%s@clinic.test", role, uuid.NewString()[:8]),
		FullName: "Test " + string(role),
		Role:     role,
		IsActive: true,
	}
	if err := user.SetPassword("password123"); err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// CreatePatient inserts a patient user with a profile.
func CreatePatient(t *testing.T, db *gorm.DB) *models.PatientProfile {
	t.Helper()
	user := CreateUser(t, db, models.RolePatient)
	profile := &models.PatientProfile{
		UserID:    user.ID,
		CCCD:      fmt.Sprintf("%012d", uuid.New().ID()),
		BloodType: models.BloodUnknown,
	}
	if err := db.Create(profile).Error; err != nil {
		t.Fatalf("create patient: %v", err)
	}
	profile.User = user
	return profile
}

// CreateDoctor inserts a doctor user with the given rank.
func CreateDoctor(t *testing.T, db *gorm.DB, rank string) *models.Doctor {
	t.Helper()
	user := CreateUser(t, db, models.RoleDoctor)
	doctor := &models.Doctor{
		UserID:          user.ID,
		LicenseNumber:   "LIC-" + uuid.NewString()[:8],
		Rank:            rank,
		ConsultationFee: decimal.Zero,
	}
	if err := db.Omit("User", "Specialty").Create(doctor).Error; err != nil {
		t.Fatalf("create doctor: %v", err)
	}
	doctor.User = user
	return doctor
}

// CreateSchedule inserts an open schedule.
func CreateSchedule(t *testing.T, db *gorm.DB, doctorID, date, start, end string, minutes int) *models.Schedule {
	t.Helper()
	schedule := &models.Schedule{
		DoctorID:     doctorID,
		WorkDate:     date,
		StartTime:    start,
		EndTime:      end,
		SlotDuration: minutes,
		Status:       models.ScheduleOpen,
	}
	if err := db.Create(schedule).Error; err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	return schedule
}

// CreateDrug inserts an active drug.
func CreateDrug(t *testing.T, db *gorm.DB, name string, price int64, stock int) *models.Drug {
	t.Helper()
	drug := &models.Drug{
		Name:      name,
		Unit:      "tablet",
		UnitPrice: decimal.NewFromInt(price),
		Stock:     stock,
		IsActive:  true,
	}
	if err := db.Create(drug).Error; err != nil {
		t.Fatalf("create drug: %v", err)
	}
	return drug
}

// SetRankFee upserts a rank fee row.
func SetRankFee(t *testing.T, db *gorm.DB, rank string, fee int64) {
	t.Helper()
	row := &models.DoctorRankFee{Rank: rank, DefaultFee: decimal.NewFromInt(fee)}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("create rank fee: %v", err)
	}
}
