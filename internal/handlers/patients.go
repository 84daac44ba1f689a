package handlers

import (
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/utils"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PatientHandler serves patient profiles.
type PatientHandler struct {
	DB  *gorm.DB
	Log *zap.Logger
}

func NewPatientHandler(db *gorm.DB, log *zap.Logger) *PatientHandler {
	return &PatientHandler{DB: db, Log: log}
}

// PatientProfileRequest holds the editable fields of a patient profile.
// Empty fields are left unchanged.
type PatientProfileRequest struct {
	FullName              string `json:"fullName" binding:"max=150"`
	Phone                 string `json:"phone" binding:"max=20"`
	CCCD                  string `json:"cccd" binding:"omitempty,cccd"`
	DateOfBirth           string `json:"dateOfBirth" binding:"omitempty,datetime=2006-01-02"`
	Gender                string `json:"gender" binding:"omitempty,oneof=male female other"`
	Address               string `json:"address" binding:"max=255"`
	InsuranceNumber       string `json:"insuranceNumber" binding:"max=50"`
	EmergencyContactName  string `json:"emergencyContactName" binding:"max=150"`
	EmergencyContactPhone string `json:"emergencyContactPhone" binding:"max=20"`
	BloodType             string `json:"bloodType" binding:"omitempty,oneof=A B AB O UNKNOWN"`
	Allergies             string `json:"allergies"`
	Notes                 string `json:"notes"`
}

func (r PatientProfileRequest) profileUpdates() map[string]interface{} {
	updates := map[string]interface{}{}
	set := func(column, value string) {
		if value != "" {
			updates[column] = value
		}
	}
	set("cccd", r.CCCD)
	set("gender", r.Gender)
	set("address", r.Address)
	set("insurance_number", r.InsuranceNumber)
	set("emergency_contact_name", r.EmergencyContactName)
	set("emergency_contact_phone", r.EmergencyContactPhone)
	set("blood_type", r.BloodType)
	set("allergies", r.Allergies)
	set("notes", r.Notes)
	if r.DateOfBirth != "" {
		dob, _ := time.Parse(models.DateLayout, r.DateOfBirth)
		updates["date_of_birth"] = dob
	}
	return updates
}

func (r PatientProfileRequest) userUpdates() map[string]interface{} {
	updates := map[string]interface{}{}
	if r.FullName != "" {
		updates["full_name"] = r.FullName
	}
	if r.Phone != "" {
		updates["phone"] = r.Phone
	}
	return updates
}

func (h *PatientHandler) load(c *gin.Context, where string, arg interface{}) (*models.PatientProfile, error) {
	var profile models.PatientProfile
	err := h.DB.WithContext(c.Request.Context()).Preload("User").Where(where, arg).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("patient profile: %w", utils.ErrNotFound)
		}
		return nil, err
	}
	return &profile, nil
}

func (h *PatientHandler) update(c *gin.Context, profile *models.PatientProfile, req PatientProfileRequest) error {
	return h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if updates := req.profileUpdates(); len(updates) > 0 {
			if err := tx.Model(&models.PatientProfile{}).Where("id = ?", profile.ID).Updates(updates).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return fmt.Errorf("cccd is already registered: %w", utils.ErrConflict)
				}
				return err
			}
		}
		if updates := req.userUpdates(); len(updates) > 0 {
			if err := tx.Model(&models.User{}).Where("id = ?", profile.UserID).Updates(updates).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetMyProfile returns the patient profile of the authenticated patient.
func (h *PatientHandler) GetMyProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	profile, err := h.load(c, "user_id = ?", actor.UserID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Patient profile fetched successfully", profile)
}

// UpdateMyProfile updates the profile of the authenticated patient.
func (h *PatientHandler) UpdateMyProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req PatientProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	profile, err := h.load(c, "user_id = ?", actor.UserID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if err := h.update(c, profile, req); err != nil {
		utils.HandleError(c, err)
		return
	}
	profile, err = h.load(c, "id = ?", profile.ID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Patient profile updated successfully", profile)
}

// ListPatients lists patients for the front desk, searchable by name, phone or CCCD.
func (h *PatientHandler) ListPatients(c *gin.Context) {
	q := h.DB.WithContext(c.Request.Context()).
		Select("patient_profiles.*").
		Preload("User").
		Joins("JOIN users ON users.id = patient_profiles.user_id")
	if s := strings.TrimSpace(c.Query("q")); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(users.full_name) LIKE ? OR users.phone LIKE ? OR patient_profiles.cccd LIKE ?", like, like, like)
	}

	var patients []models.PatientProfile
	if err := q.Order("users.full_name").Find(&patients).Error; err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Patients fetched successfully", patients)
}

// GetPatient returns a patient profile by id.
func (h *PatientHandler) GetPatient(c *gin.Context) {
	profile, err := h.load(c, "id = ?", c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Patient fetched successfully", profile)
}

// CreatePatientRequest registers a walk-in patient at the front desk.
type CreatePatientRequest struct {
	RegisterRequest
	BloodType string `json:"bloodType" binding:"omitempty,oneof=A B AB O UNKNOWN"`
}

// CreatePatient creates a patient account and profile on behalf of a patient.
func (h *PatientHandler) CreatePatient(c *gin.Context) {
	var req CreatePatientRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user := models.User{
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		FullName: req.FullName,
		Phone:    req.Phone,
		Role:     models.RolePatient,
		IsActive: true,
	}
	if err := user.SetPassword(req.Password); err != nil {
		utils.HandleError(c, err)
		return
	}
	profile := models.PatientProfile{
		CCCD:      req.CCCD,
		Gender:    models.Gender(req.Gender),
		Address:   req.Address,
		BloodType: models.BloodUnknown,
	}
	if req.BloodType != "" {
		profile.BloodType = models.BloodType(req.BloodType)
	}
	if req.DateOfBirth != "" {
		dob, _ := time.Parse(models.DateLayout, req.DateOfBirth)
		profile.DateOfBirth = &dob
	}

	err := h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("email is already registered: %w", utils.ErrConflict)
			}
			return err
		}
		profile.UserID = user.ID
		if err := tx.Omit("User").Create(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("cccd is already registered: %w", utils.ErrConflict)
			}
			return err
		}
		return nil
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	h.Log.Info("patient created", zap.String("patient_id", profile.ID))
	profile.User = &user
	utils.Created(c, "Patient created successfully", profile)
}

// UpdatePatient updates a patient profile by id.
func (h *PatientHandler) UpdatePatient(c *gin.Context) {
	var req PatientProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	profile, err := h.load(c, "id = ?", c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if err := h.update(c, profile, req); err != nil {
		utils.HandleError(c, err)
		return
	}
	profile, err = h.load(c, "id = ?", profile.ID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Patient updated successfully", profile)
}
