package handlers

import (
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/utils"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// StaffHandler serves staff profiles.
type StaffHandler struct {
	DB *gorm.DB
}

func NewStaffHandler(db *gorm.DB) *StaffHandler {
	return &StaffHandler{DB: db}
}

func (h *StaffHandler) load(c *gin.Context, where string, arg interface{}) (*models.StaffProfile, error) {
	var profile models.StaffProfile
	err := h.DB.WithContext(c.Request.Context()).Preload("User").Where(where, arg).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("staff profile: %w", utils.ErrNotFound)
		}
		return nil, err
	}
	return &profile, nil
}

// GetMyProfile returns the staff profile of the authenticated staff member.
func (h *StaffHandler) GetMyProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	profile, err := h.load(c, "user_id = ?", actor.UserID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Staff profile fetched successfully", profile)
}

// StaffSelfUpdateRequest is what staff may change about themselves.
type StaffSelfUpdateRequest struct {
	FullName string `json:"fullName" binding:"max=150"`
	Phone    string `json:"phone" binding:"max=20"`
	Shift    string `json:"shift" binding:"max=50"`
}

// UpdateMyProfile updates the authenticated staff member's contact data and shift.
func (h *StaffHandler) UpdateMyProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req StaffSelfUpdateRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	profile, err := h.load(c, "user_id = ?", actor.UserID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	err = h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if req.Shift != "" {
			if err := tx.Model(&models.StaffProfile{}).Where("id = ?", profile.ID).Update("shift", req.Shift).Error; err != nil {
				return err
			}
		}
		userUpdates := map[string]interface{}{}
		if req.FullName != "" {
			userUpdates["full_name"] = req.FullName
		}
		if req.Phone != "" {
			userUpdates["phone"] = req.Phone
		}
		if len(userUpdates) == 0 {
			return nil
		}
		return tx.Model(&models.User{}).Where("id = ?", actor.UserID).Updates(userUpdates).Error
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	profile, err = h.load(c, "id = ?", profile.ID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Staff profile updated successfully", profile)
}

// ListStaff lists staff profiles, optionally by status.
func (h *StaffHandler) ListStaff(c *gin.Context) {
	q := h.DB.WithContext(c.Request.Context()).Preload("User")
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	var staff []models.StaffProfile
	if err := q.Order("created_at").Find(&staff).Error; err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Staff fetched successfully", staff)
}

// StaffUpdateRequest is the admin edit of a staff profile.
type StaffUpdateRequest struct {
	EmployeeCode string `json:"employeeCode" binding:"max=30"`
	Position     string `json:"position" binding:"max=100"`
	Shift        string `json:"shift" binding:"max=50"`
	StartDate    string `json:"startDate" binding:"omitempty,datetime=2006-01-02"`
	Status       string `json:"status" binding:"omitempty,oneof=active on_leave inactive"`
}

// UpdateStaff updates a staff profile by id.
func (h *StaffHandler) UpdateStaff(c *gin.Context) {
	var req StaffUpdateRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	profile, err := h.load(c, "id = ?", c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	updates := map[string]interface{}{}
	if req.EmployeeCode != "" {
		updates["employee_code"] = req.EmployeeCode
	}
	if req.Position != "" {
		updates["position"] = req.Position
	}
	if req.Shift != "" {
		updates["shift"] = req.Shift
	}
	if req.Status != "" {
		updates["status"] = req.Status
	}
	if req.StartDate != "" {
		start, _ := time.Parse(models.DateLayout, req.StartDate)
		updates["start_date"] = start
	}
	if len(updates) > 0 {
		err := h.DB.WithContext(c.Request.Context()).Model(&models.StaffProfile{}).Where("id = ?", profile.ID).Updates(updates).Error
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				utils.Conflict(c, "Employee code is already used")
				return
			}
			utils.HandleError(c, err)
			return
		}
	}

	profile, err = h.load(c, "id = ?", profile.ID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Staff updated successfully", profile)
}
