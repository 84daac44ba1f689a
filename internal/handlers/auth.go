package handlers

import (
	"clinic-app-server/internal/config"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/storage"
	"clinic-app-server/internal/utils"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const refreshCookie = "refresh_token"

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	DB      *gorm.DB
	Cfg     *config.Config
	Avatars storage.AvatarStore
	Log     *zap.Logger
}

// NewAuthHandler creates a new AuthHandler. avatars may be nil when object
// storage is not configured.
func NewAuthHandler(db *gorm.DB, cfg *config.Config, avatars storage.AvatarStore, log *zap.Logger) *AuthHandler {
	return &AuthHandler{DB: db, Cfg: cfg, Avatars: avatars, Log: log}
}

// RegisterRequest is the self-registration form of a patient.
type RegisterRequest struct {
	FullName    string `json:"fullName" binding:"required,max=150"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	Phone       string `json:"phone" binding:"max=20"`
	CCCD        string `json:"cccd" binding:"required,cccd"`
	DateOfBirth string `json:"dateOfBirth" binding:"omitempty,datetime=2006-01-02"`
	Gender      string `json:"gender" binding:"omitempty,oneof=male female other"`
	Address     string `json:"address" binding:"max=255"`
}

// Register creates a patient account together with its patient profile.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
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
		utils.HandleError(c, fmt.Errorf("hash password: %w", err))
		return
	}

	profile := models.PatientProfile{
		CCCD:      req.CCCD,
		Gender:    models.Gender(req.Gender),
		Address:   req.Address,
		BloodType: models.BloodUnknown,
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

	h.Log.Info("patient registered", zap.String("user_id", user.ID))
	utils.Created(c, "User registered successfully", user.Sanitize())
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the response body for successful login.
type LoginResponse struct {
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
	User         models.UserSanitized `json:"user"`
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var user models.User
	err := h.DB.WithContext(c.Request.Context()).
		Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Unauthorized(c, "Invalid email or password")
			return
		}
		utils.HandleError(c, err)
		return
	}

	if !user.CheckPassword(req.Password) {
		h.Log.Warn("failed login", zap.String("user_id", user.ID), zap.String("client_ip", c.ClientIP()))
		utils.Unauthorized(c, "Invalid email or password")
		return
	}
	if !user.IsActive {
		utils.Forbidden(c, "Account is deactivated")
		return
	}

	accessToken, refreshToken, err := h.issueTokens(c, &user)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, "Login successful", LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         h.sanitize(c, &user),
	})
}

// issueTokens signs a token pair, stores the refresh token and sets its cookie.
func (h *AuthHandler) issueTokens(c *gin.Context, user *models.User) (string, string, error) {
	accessToken, refreshToken, err := utils.GenerateTokens(user, h.Cfg)
	if err != nil {
		return "", "", err
	}
	stored := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: models.HashToken(refreshToken),
		ExpiresAt: time.Now().Add(time.Duration(h.Cfg.JWTRefreshExpirationHours) * time.Hour),
	}
	if err := h.DB.WithContext(c.Request.Context()).Omit("User").Create(&stored).Error; err != nil {
		return "", "", fmt.Errorf("store refresh token: %w", err)
	}

	c.SetCookie(refreshCookie, refreshToken, h.Cfg.JWTRefreshExpirationHours*60*60, "/", "",
		h.Cfg.Environment != "development", true)
	return accessToken, refreshToken, nil
}

// RefreshTokenRequest represents the request body for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshTokenResponse represents the response body for successful token refresh.
type RefreshTokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshToken exchanges a refresh token for a new pair and revokes the old one.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, err := c.Cookie(refreshCookie)
	if err != nil || token == "" {
		var req RefreshTokenRequest
		if !utils.BindAndValidate(c, &req) {
			return
		}
		token = req.RefreshToken
	}

	claims, err := utils.ValidateToken(token, h.Cfg.JWTRefreshSecret)
	if err != nil {
		utils.Unauthorized(c, "Invalid refresh token")
		return
	}

	db := h.DB.WithContext(c.Request.Context())
	var stored models.RefreshToken
	if err := db.Where("token_hash = ? AND user_id = ?", models.HashToken(token), claims.UserID).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Unauthorized(c, "Refresh token not found, expired, or revoked")
			return
		}
		utils.HandleError(c, err)
		return
	}
	if !stored.Usable(time.Now()) {
		utils.Unauthorized(c, "Refresh token not found, expired, or revoked")
		return
	}

	var user models.User
	if err := db.First(&user, "id = ?", claims.UserID).Error; err != nil {
		utils.HandleError(c, err)
		return
	}
	if !user.IsActive {
		utils.Forbidden(c, "Account is deactivated")
		return
	}

	res := db.Model(&models.RefreshToken{}).
		Where("id = ? AND is_revoked = ?", stored.ID, false).
		Update("is_revoked", true)
	if res.Error != nil {
		utils.HandleError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		utils.Unauthorized(c, "Refresh token not found, expired, or revoked")
		return
	}

	accessToken, refreshToken, err := h.issueTokens(c, &user)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Access token refreshed successfully", RefreshTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

// LogoutRequest represents the request body for user logout.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Logout revokes the refresh token and clears its cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	_ = c.ShouldBindJSON(&req)
	token := req.RefreshToken
	if token == "" {
		token, _ = c.Cookie(refreshCookie)
	}
	if token == "" {
		utils.BadRequest(c, "Refresh token is required")
		return
	}

	err := h.DB.WithContext(c.Request.Context()).Model(&models.RefreshToken{}).
		Where("token_hash = ? AND is_revoked = ?", models.HashToken(token), false).
		Updates(map[string]interface{}{"is_revoked": true, "expires_at": time.Now().UTC()}).Error
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	c.SetCookie(refreshCookie, "", -1, "/", "", h.Cfg.Environment != "development", true)
	utils.Success(c, "Logout successful. Refresh token has been invalidated.", nil)
}

// GetProfile returns the authenticated user.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).First(&user, "id = ?", actor.UserID).Error; err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Profile fetched successfully", h.sanitize(c, &user))
}

// UpdateProfileRequest holds the account fields a user may change.
type UpdateProfileRequest struct {
	FullName string `json:"fullName" binding:"max=150"`
	Phone    string `json:"phone" binding:"max=20"`
}

// UpdateProfile updates the authenticated user's name and phone.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	db := h.DB.WithContext(c.Request.Context())
	var user models.User
	if err := db.First(&user, "id = ?", actor.UserID).Error; err != nil {
		utils.HandleError(c, err)
		return
	}

	updates := map[string]interface{}{}
	if req.FullName != "" {
		updates["full_name"] = req.FullName
		user.FullName = req.FullName
	}
	if req.Phone != "" {
		updates["phone"] = req.Phone
		user.Phone = req.Phone
	}
	if len(updates) > 0 {
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			utils.HandleError(c, err)
			return
		}
	}
	utils.Success(c, "Profile updated successfully", h.sanitize(c, &user))
}

// ChangePasswordRequest is the body of ChangePassword.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8,nefield=CurrentPassword"`
}

// ChangePassword sets a new password and revokes every refresh token of the user.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	err := h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", actor.UserID).Error; err != nil {
			return err
		}
		if !user.CheckPassword(req.CurrentPassword) {
			return fmt.Errorf("current password is incorrect: %w", utils.ErrValidation)
		}
		if err := user.SetPassword(req.NewPassword); err != nil {
			return err
		}
		if err := tx.Model(&user).Update("password", user.Password).Error; err != nil {
			return err
		}
		return tx.Model(&models.RefreshToken{}).
			Where("user_id = ? AND is_revoked = ?", user.ID, false).
			Update("is_revoked", true).Error
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Password changed successfully", nil)
}

var avatarTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// UploadAvatar stores a jpeg or png profile picture in object storage.
func (h *AuthHandler) UploadAvatar(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if h.Avatars == nil {
		utils.Error(c, http.StatusServiceUnavailable, "Avatar storage is not configured")
		return
	}

	header, err := c.FormFile("avatar")
	if err != nil {
		utils.BadRequest(c, "avatar file is required")
		return
	}
	if header.Size > h.Cfg.Minio.MaxAvatarSize {
		utils.BadRequest(c, fmt.Sprintf("avatar must be at most %d bytes", h.Cfg.Minio.MaxAvatarSize))
		return
	}

	file, err := header.Open()
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	defer file.Close()

	sniff := make([]byte, 512)
	n, _ := file.Read(sniff)
	contentType := http.DetectContentType(sniff[:n])
	ext, allowed := avatarTypes[contentType]
	if !allowed {
		utils.BadRequest(c, "avatar must be a JPEG or PNG image")
		return
	}
	if _, err := file.Seek(0, 0); err != nil {
		utils.HandleError(c, err)
		return
	}
	if e := strings.ToLower(filepath.Ext(header.Filename)); e == ".jpeg" {
		ext = e
	}

	ctx := c.Request.Context()
	key := storage.AvatarKey(actor.UserID, ext)
	if err := h.Avatars.Upload(ctx, key, file, header.Size, contentType); err != nil {
		utils.HandleError(c, err)
		return
	}

	var user models.User
	db := h.DB.WithContext(ctx)
	if err := db.First(&user, "id = ?", actor.UserID).Error; err != nil {
		utils.HandleError(c, err)
		return
	}
	if err := db.Model(&user).Update("avatar_key", key).Error; err != nil {
		utils.HandleError(c, err)
		return
	}
	user.AvatarKey = key

	h.Log.Info("avatar uploaded", zap.String("user_id", user.ID), zap.String("key", key))
	utils.Success(c, "Avatar uploaded successfully", h.sanitize(c, &user))
}

// sanitize strips secrets and resolves the avatar link.
func (h *AuthHandler) sanitize(c *gin.Context, user *models.User) models.UserSanitized {
	return sanitizeUser(c, h.Avatars, h.Log, user)
}

func sanitizeUser(c *gin.Context, avatars storage.AvatarStore, log *zap.Logger, user *models.User) models.UserSanitized {
	out := user.Sanitize()
	if avatars == nil || user.AvatarKey == "" {
		return out
	}
	url, err := avatars.URL(c.Request.Context(), user.AvatarKey)
	if err != nil {
		log.Warn("presign avatar failed", zap.String("user_id", user.ID), zap.Error(err))
		return out
	}
	out.AvatarURL = url
	return out
}
