package handlers

import (
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/services"
	"clinic-app-server/internal/utils"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DoctorHandler serves the doctor directory and its admin management.
type DoctorHandler struct {
	DB      *gorm.DB
	Pricing *services.PricingResolver
	Log     *zap.Logger
}

func NewDoctorHandler(db *gorm.DB, pricing *services.PricingResolver, log *zap.Logger) *DoctorHandler {
	return &DoctorHandler{DB: db, Pricing: pricing, Log: log}
}

// withFee fills the consultation fee from the current rank fee table.
func (h *DoctorHandler) withFee(ctx context.Context, doctors ...*models.Doctor) {
	for _, d := range doctors {
		d.ConsultationFee = h.Pricing.ConsultationFee(ctx, d)
	}
}

// ListDoctors lists active doctors, optionally of one specialty.
func (h *DoctorHandler) ListDoctors(c *gin.Context) {
	ctx := c.Request.Context()
	q := h.DB.WithContext(ctx).
		Select("doctors.*").
		Preload("User").
		Preload("Specialty").
		Joins("JOIN users ON users.id = doctors.user_id").
		Where("users.is_active = ?", true)
	if specialtyID := c.Query("specialtyId"); specialtyID != "" {
		q = q.Where("doctors.specialty_id = ?", specialtyID)
	}
	if s := strings.TrimSpace(c.Query("q")); s != "" {
		q = q.Where("LOWER(users.full_name) LIKE ?", "%"+strings.ToLower(s)+"%")
	}

	var doctors []models.Doctor
	if err := q.Order("users.full_name").Find(&doctors).Error; err != nil {
		utils.HandleError(c, err)
		return
	}
	for i := range doctors {
		h.withFee(ctx, &doctors[i])
	}
	utils.Success(c, "Doctors fetched successfully", doctors)
}

// GetDoctor returns a doctor with the fee charged for a visit.
func (h *DoctorHandler) GetDoctor(c *gin.Context) {
	ctx := c.Request.Context()
	var doctor models.Doctor
	err := h.DB.WithContext(ctx).Preload("User").Preload("Specialty").
		Where("id = ?", c.Param("id")).First(&doctor).Error
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	h.withFee(ctx, &doctor)
	utils.Success(c, "Doctor fetched successfully", doctor)
}

// CreateDoctorRequest creates a doctor account with its professional profile.
type CreateDoctorRequest struct {
	FullName        string  `json:"fullName" binding:"required,max=150"`
	Email           string  `json:"email" binding:"required,email"`
	Password        string  `json:"password" binding:"required,min=8"`
	Phone           string  `json:"phone" binding:"max=20"`
	SpecialtyID     *string `json:"specialtyId"`
	LicenseNumber   string  `json:"licenseNumber" binding:"required,max=50"`
	YearsExperience int     `json:"yearsExperience" binding:"gte=0"`
	Bio             string  `json:"bio"`
	RoomNumber      string  `json:"roomNumber" binding:"max=20"`
	Rank            string  `json:"rank" binding:"max=50"`
}

func (h *DoctorHandler) checkSpecialty(tx *gorm.DB, id *string) error {
	if id == nil || *id == "" {
		return nil
	}
	var count int64
	if err := tx.Model(&models.Specialty{}).Where("id = ?", *id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("specialty: %w", utils.ErrNotFound)
	}
	return nil
}

// CreateDoctor creates a doctor user and profile.
func (h *DoctorHandler) CreateDoctor(c *gin.Context) {
	var req CreateDoctorRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	ctx := c.Request.Context()

	user := models.User{
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		FullName: req.FullName,
		Phone:    req.Phone,
		Role:     models.RoleDoctor,
		IsActive: true,
	}
	if err := user.SetPassword(req.Password); err != nil {
		utils.HandleError(c, err)
		return
	}
	doctor := models.Doctor{
		SpecialtyID:     req.SpecialtyID,
		LicenseNumber:   req.LicenseNumber,
		YearsExperience: req.YearsExperience,
		Bio:             req.Bio,
		RoomNumber:      req.RoomNumber,
		Rank:            req.Rank,
	}
	doctor.ConsultationFee = h.Pricing.ConsultationFee(ctx, &doctor)

	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := h.checkSpecialty(tx, req.SpecialtyID); err != nil {
			return err
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("email is already registered: %w", utils.ErrConflict)
			}
			return err
		}
		doctor.UserID = user.ID
		if err := tx.Omit("User", "Specialty").Create(&doctor).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("license number is already registered: %w", utils.ErrConflict)
			}
			return err
		}
		return nil
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	h.Log.Info("doctor created", zap.String("doctor_id", doctor.ID), zap.String("rank", services.NormalizeRank(doctor.Rank)))
	doctor.User = &user
	utils.Created(c, "Doctor created successfully", doctor)
}

// UpdateDoctorRequest edits a doctor profile. Nil fields are left unchanged.
type UpdateDoctorRequest struct {
	FullName        *string `json:"fullName" binding:"omitempty,max=150"`
	Phone           *string `json:"phone" binding:"omitempty,max=20"`
	SpecialtyID     *string `json:"specialtyId"`
	LicenseNumber   *string `json:"licenseNumber" binding:"omitempty,max=50"`
	YearsExperience *int    `json:"yearsExperience" binding:"omitempty,gte=0"`
	Bio             *string `json:"bio"`
	RoomNumber      *string `json:"roomNumber" binding:"omitempty,max=20"`
	Rank            *string `json:"rank" binding:"omitempty,max=50"`
}

// UpdateDoctor updates a doctor profile by id.
func (h *DoctorHandler) UpdateDoctor(c *gin.Context) {
	var req UpdateDoctorRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	ctx := c.Request.Context()
	db := h.DB.WithContext(ctx)

	var doctor models.Doctor
	if err := db.Where("id = ?", c.Param("id")).First(&doctor).Error; err != nil {
		utils.HandleError(c, err)
		return
	}

	updates := map[string]interface{}{}
	if req.SpecialtyID != nil {
		if *req.SpecialtyID == "" {
			updates["specialty_id"] = nil
		} else {
			updates["specialty_id"] = *req.SpecialtyID
		}
	}
	if req.LicenseNumber != nil {
		updates["license_number"] = *req.LicenseNumber
	}
	if req.YearsExperience != nil {
		updates["years_experience"] = *req.YearsExperience
	}
	if req.Bio != nil {
		updates["bio"] = *req.Bio
	}
	if req.RoomNumber != nil {
		updates["room_number"] = *req.RoomNumber
	}
	if req.Rank != nil {
		doctor.Rank = *req.Rank
		updates["rank"] = doctor.Rank
		updates["consultation_fee"] = h.Pricing.ConsultationFee(ctx, &doctor)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := h.checkSpecialty(tx, req.SpecialtyID); err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.Doctor{}).Where("id = ?", doctor.ID).Updates(updates).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return fmt.Errorf("license number is already registered: %w", utils.ErrConflict)
				}
				return err
			}
		}
		userUpdates := map[string]interface{}{}
		if req.FullName != nil {
			userUpdates["full_name"] = *req.FullName
		}
		if req.Phone != nil {
			userUpdates["phone"] = *req.Phone
		}
		if len(userUpdates) == 0 {
			return nil
		}
		return tx.Model(&models.User{}).Where("id = ?", doctor.UserID).Updates(userUpdates).Error
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	if err := db.Preload("User").Preload("Specialty").Where("id = ?", doctor.ID).First(&doctor).Error; err != nil {
		utils.HandleError(c, err)
		return
	}
	h.withFee(ctx, &doctor)
	utils.Success(c, "Doctor updated successfully", doctor)
}

// ToggleActive flips whether the doctor's account is active. Inactive doctors
// are hidden from the directory and cannot be booked.
func (h *DoctorHandler) ToggleActive(c *gin.Context) {
	db := h.DB.WithContext(c.Request.Context())
	var doctor models.Doctor
	if err := db.Preload("User").Where("id = ?", c.Param("id")).First(&doctor).Error; err != nil {
		utils.HandleError(c, err)
		return
	}
	if doctor.User == nil {
		utils.HandleError(c, fmt.Errorf("doctor account: %w", utils.ErrNotFound))
		return
	}

	user, err := setUserActive(db, doctor.UserID, !doctor.User.IsActive)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	doctor.User = user
	h.Log.Info("doctor activity changed", zap.String("doctor_id", doctor.ID), zap.Bool("active", user.IsActive))
	utils.Success(c, "Doctor updated successfully", doctor)
}
