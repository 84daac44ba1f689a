package handlers

import (
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/storage"
	"clinic-app-server/internal/utils"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserHandler handles admin account management.
type UserHandler struct {
	DB      *gorm.DB
	Avatars storage.AvatarStore
	Log     *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(db *gorm.DB, avatars storage.AvatarStore, log *zap.Logger) *UserHandler {
	return &UserHandler{DB: db, Avatars: avatars, Log: log}
}

// CreateUserRequest creates a back-office account. Doctors and patients are
// created through their own endpoints because they need a profile.
type CreateUserRequest struct {
	FullName     string `json:"fullName" binding:"required,max=150"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	Phone        string `json:"phone" binding:"max=20"`
	Role         string `json:"role" binding:"required,oneof=admin staff"`
	EmployeeCode string `json:"employeeCode" binding:"max=30"`
	Position     string `json:"position" binding:"max=100"`
	Shift        string `json:"shift" binding:"max=50"`
}

// CreateUser creates an admin or staff account. Staff get a staff profile.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user := models.User{
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		FullName: req.FullName,
		Phone:    req.Phone,
		Role:     models.Role(req.Role),
		IsActive: true,
	}
	if err := user.SetPassword(req.Password); err != nil {
		utils.HandleError(c, err)
		return
	}

	err := h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("email is already registered: %w", utils.ErrConflict)
			}
			return err
		}
		if user.Role != models.RoleStaff {
			return nil
		}
		profile := models.StaffProfile{
			UserID:   user.ID,
			Position: req.Position,
			Shift:    req.Shift,
			Status:   models.StaffActive,
		}
		if req.EmployeeCode != "" {
			code := req.EmployeeCode
			profile.EmployeeCode = &code
		}
		if err := tx.Omit("User").Create(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("employee code is already used: %w", utils.ErrConflict)
			}
			return err
		}
		return nil
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	h.Log.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	utils.Created(c, "User created successfully", user.Sanitize())
}

// UserFilter narrows GetUsers.
type UserFilter struct {
	Role   string `form:"role" binding:"omitempty,oneof=admin doctor staff patient"`
	Search string `form:"q"`
	Active string `form:"active" binding:"omitempty,oneof=true false"`
}

// GetUsers lists accounts, optionally by role, activity or a name/email search.
func (h *UserHandler) GetUsers(c *gin.Context) {
	var f UserFilter
	if !utils.BindQuery(c, &f) {
		return
	}

	q := h.DB.WithContext(c.Request.Context()).Model(&models.User{})
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.Active != "" {
		q = q.Where("is_active = ?", f.Active == "true")
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	var users []models.User
	if err := q.Order("created_at DESC").Find(&users).Error; err != nil {
		utils.HandleError(c, err)
		return
	}

	sanitized := make([]models.UserSanitized, len(users))
	for i := range users {
		sanitized[i] = sanitizeUser(c, h.Avatars, h.Log, &users[i])
	}
	utils.Success(c, "Users fetched successfully", sanitized)
}

// GetUserByID returns one account.
func (h *UserHandler) GetUserByID(c *gin.Context) {
	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).First(&user, "id = ?", c.Param("id")).Error; err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "User fetched successfully", sanitizeUser(c, h.Avatars, h.Log, &user))
}

// UpdateUserRequest holds the account fields an admin may change. The role of
// an account is fixed because it is tied to its profile.
type UpdateUserRequest struct {
	FullName string `json:"fullName" binding:"max=150"`
	Email    string `json:"email" binding:"omitempty,email"`
	Phone    string `json:"phone" binding:"max=20"`
	Password string `json:"password" binding:"omitempty,min=8"`
}

// UpdateUser updates an account by id.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req UpdateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	db := h.DB.WithContext(c.Request.Context())
	var user models.User
	if err := db.First(&user, "id = ?", c.Param("id")).Error; err != nil {
		utils.HandleError(c, err)
		return
	}

	updates := map[string]interface{}{}
	if req.FullName != "" {
		updates["full_name"] = req.FullName
	}
	if req.Phone != "" {
		updates["phone"] = req.Phone
	}
	if req.Email != "" {
		updates["email"] = strings.ToLower(strings.TrimSpace(req.Email))
	}
	if req.Password != "" {
		if err := user.SetPassword(req.Password); err != nil {
			utils.HandleError(c, err)
			return
		}
		updates["password"] = user.Password
	}

	if len(updates) > 0 {
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				utils.Conflict(c, "New email is already in use")
				return
			}
			utils.HandleError(c, err)
			return
		}
	}
	if err := db.First(&user, "id = ?", user.ID).Error; err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "User updated successfully", sanitizeUser(c, h.Avatars, h.Log, &user))
}

// SetActiveRequest toggles an account.
type SetActiveRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// SetActive activates or deactivates an account. Deactivation revokes its refresh tokens.
func (h *UserHandler) SetActive(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req SetActiveRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	id := c.Param("id")
	if id == actor.UserID && !*req.IsActive {
		utils.BadRequest(c, "You cannot deactivate your own account")
		return
	}

	user, err := setUserActive(h.DB.WithContext(c.Request.Context()), id, *req.IsActive)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	h.Log.Info("user activity changed", zap.String("user_id", id), zap.Bool("active", *req.IsActive), zap.String("actor_id", actor.UserID))
	utils.Success(c, "User updated successfully", user.Sanitize())
}

func setUserActive(db *gorm.DB, userID string, active bool) (*models.User, error) {
	var user models.User
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			return err
		}
		if err := tx.Model(&user).Update("is_active", active).Error; err != nil {
			return err
		}
		user.IsActive = active
		if active {
			return nil
		}
		return tx.Model(&models.RefreshToken{}).
			Where("user_id = ? AND is_revoked = ?", user.ID, false).
			Update("is_revoked", true).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes a back-office account. Patients and doctors carry
// clinical history and can only be deactivated.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if id == actor.UserID {
		utils.BadRequest(c, "You cannot delete your own account")
		return
	}

	err := h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", id).Error; err != nil {
			return err
		}
		if user.Role == models.RolePatient || user.Role == models.RoleDoctor {
			return fmt.Errorf("%s accounts can only be deactivated: %w", user.Role, utils.ErrValidation)
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.StaffProfile{}).Error; err != nil {
			return err
		}
		if err := models.DeleteChatbotSessions(tx, id); err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	h.Log.Info("user deleted", zap.String("user_id", id), zap.String("actor_id", actor.UserID))
	utils.Success(c, "User deleted successfully", nil)
}
