package handlers

import (
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/services"
	"clinic-app-server/internal/utils"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CatalogHandler manages specialties, drugs and rank fees.
type CatalogHandler struct {
	DB      *gorm.DB
	Pricing *services.PricingResolver
	Log     *zap.Logger
}

func NewCatalogHandler(db *gorm.DB, pricing *services.PricingResolver, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{DB: db, Pricing: pricing, Log: log}
}

func conflictAs(err error, msg string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w", msg, utils.ErrConflict)
	}
	return err
}

// Specialties

type SpecialtyRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
}

func (h *CatalogHandler) ListSpecialties(c *gin.Context) {
	var specialties []models.Specialty
	if err := h.DB.WithContext(c.Request.Context()).Order("name").Find(&specialties).Error; err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Specialties fetched successfully", specialties)
}

func (h *CatalogHandler) CreateSpecialty(c *gin.Context) {
	var req SpecialtyRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	specialty := models.Specialty{Name: strings.TrimSpace(req.Name), Description: req.Description}
	if err := h.DB.WithContext(c.Request.Context()).Create(&specialty).Error; err != nil {
		utils.HandleError(c, conflictAs(err, "specialty name is already used"))
		return
	}
	utils.Created(c, "Specialty created successfully", specialty)
}

func (h *CatalogHandler) UpdateSpecialty(c *gin.Context) {
	var req SpecialtyRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	db := h.DB.WithContext(c.Request.Context())
	var specialty models.Specialty
	if err := db.Where("id = ?", c.Param("id")).First(&specialty).Error; err != nil {
		utils.HandleError(c, err)
		return
	}
	specialty.Name = strings.TrimSpace(req.Name)
	specialty.Description = req.Description
	if err := db.Model(&specialty).Updates(map[string]interface{}{
		"name":        specialty.Name,
		"description": specialty.Description,
	}).Error; err != nil {
		utils.HandleError(c, conflictAs(err, "specialty name is already used"))
		return
	}
	utils.Success(c, "Specialty updated successfully", specialty)
}

// DeleteSpecialty removes a specialty that no doctor belongs to.
func (h *CatalogHandler) DeleteSpecialty(c *gin.Context) {
	id := c.Param("id")
	err := h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var used int64
		if err := tx.Model(&models.Doctor{}).Where("specialty_id = ?", id).Count(&used).Error; err != nil {
			return err
		}
		if used > 0 {
			return fmt.Errorf("specialty has %d doctor(s): %w", used, utils.ErrValidation)
		}
		res := tx.Where("id = ?", id).Delete(&models.Specialty{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("specialty: %w", utils.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Specialty deleted successfully", nil)
}

// Drugs

type DrugRequest struct {
	Code      string          `json:"code" binding:"max=30"`
	Name      string          `json:"name" binding:"required,max=200"`
	Unit      string          `json:"unit" binding:"required,max=30"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Stock     int             `json:"stock" binding:"gte=0"`
	IsActive  *bool           `json:"isActive"`
}

func (r DrugRequest) validate() error {
	if r.UnitPrice.IsNegative() {
		return fmt.Errorf("unitPrice cannot be negative: %w", utils.ErrValidation)
	}
	return nil
}

// ListDrugs lists the catalogue. Only active drugs are listed unless all=true.
func (h *CatalogHandler) ListDrugs(c *gin.Context) {
	q := h.DB.WithContext(c.Request.Context()).Model(&models.Drug{})
	if c.Query("all") != "true" {
		q = q.Where("is_active = ?", true)
	}
	if s := strings.TrimSpace(c.Query("q")); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", like, like)
	}
	var drugs []models.Drug
	if err := q.Order("name").Find(&drugs).Error; err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Drugs fetched successfully", drugs)
}

func (h *CatalogHandler) CreateDrug(c *gin.Context) {
	var req DrugRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if err := req.validate(); err != nil {
		utils.HandleError(c, err)
		return
	}
	drug := models.Drug{
		Name:      req.Name,
		Unit:      req.Unit,
		UnitPrice: req.UnitPrice,
		Stock:     req.Stock,
		IsActive:  req.IsActive == nil || *req.IsActive,
	}
	if req.Code != "" {
		code := req.Code
		drug.Code = &code
	}
	if err := h.DB.WithContext(c.Request.Context()).Create(&drug).Error; err != nil {
		utils.HandleError(c, conflictAs(err, "drug code is already used"))
		return
	}
	utils.Created(c, "Drug created successfully", drug)
}

// UpdateDrug replaces the editable fields of a drug. Past prescriptions keep
// their snapshot price.
func (h *CatalogHandler) UpdateDrug(c *gin.Context) {
	var req DrugRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if err := req.validate(); err != nil {
		utils.HandleError(c, err)
		return
	}
	db := h.DB.WithContext(c.Request.Context())
	var drug models.Drug
	if err := db.Where("id = ?", c.Param("id")).First(&drug).Error; err != nil {
		utils.HandleError(c, err)
		return
	}

	updates := map[string]interface{}{
		"name":       req.Name,
		"unit":       req.Unit,
		"unit_price": req.UnitPrice,
		"stock":      req.Stock,
	}
	if req.Code != "" {
		updates["code"] = req.Code
	} else {
		updates["code"] = nil
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if err := db.Model(&drug).Updates(updates).Error; err != nil {
		utils.HandleError(c, conflictAs(err, "drug code is already used"))
		return
	}
	if err := db.Where("id = ?", drug.ID).First(&drug).Error; err != nil {
		utils.HandleError(c, err)
		return
	}
	h.Log.Info("drug updated", zap.String("drug_id", drug.ID), zap.String("unit_price", drug.UnitPrice.String()), zap.Int("stock", drug.Stock))
	utils.Success(c, "Drug updated successfully", drug)
}

// DeleteDrug retires a drug. Prescriptions reference it, so it is only deactivated.
func (h *CatalogHandler) DeleteDrug(c *gin.Context) {
	res := h.DB.WithContext(c.Request.Context()).Model(&models.Drug{}).
		Where("id = ?", c.Param("id")).Update("is_active", false)
	if res.Error != nil {
		utils.HandleError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		utils.NotFound(c, "Drug not found")
		return
	}
	utils.Success(c, "Drug deactivated successfully", nil)
}

// Rank fees

type RankFeeRequest struct {
	Rank       string          `json:"rank" binding:"required,max=50"`
	DefaultFee decimal.Decimal `json:"defaultFee"`
}

// ListRankFees returns the stored table and the effective fees.
func (h *CatalogHandler) ListRankFees(c *gin.Context) {
	var rows []models.DoctorRankFee
	if err := h.DB.WithContext(c.Request.Context()).Order("default_fee").Find(&rows).Error; err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Rank fees fetched successfully", gin.H{
		"rows":      rows,
		"effective": h.Pricing.Fees(c.Request.Context()),
	})
}

// UpsertRankFee creates or updates the fee of a rank. The rank is stored normalised.
func (h *CatalogHandler) UpsertRankFee(c *gin.Context) {
	var req RankFeeRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if req.DefaultFee.IsNegative() {
		utils.BadRequest(c, "defaultFee cannot be negative")
		return
	}
	rank := services.NormalizeRank(req.Rank)
	if rank == "" {
		utils.BadRequest(c, "rank is required")
		return
	}

	ctx := c.Request.Context()
	var row models.DoctorRankFee
	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where(&models.DoctorRankFee{Rank: rank}).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = models.DoctorRankFee{Rank: rank, DefaultFee: req.DefaultFee}
			return tx.Create(&row).Error
		}
		if err != nil {
			return err
		}
		row.DefaultFee = req.DefaultFee
		return tx.Model(&row).Update("default_fee", req.DefaultFee).Error
	})
	if err != nil {
		utils.HandleError(c, conflictAs(err, "rank fee already exists"))
		return
	}

	h.Pricing.Invalidate(ctx)
	h.Log.Info("rank fee saved", zap.String("rank", rank), zap.String("fee", req.DefaultFee.String()))
	utils.Success(c, "Rank fee saved successfully", row)
}

// DeleteRankFee removes a rank fee row.
func (h *CatalogHandler) DeleteRankFee(c *gin.Context) {
	ctx := c.Request.Context()
	res := h.DB.WithContext(ctx).Where("id = ?", c.Param("id")).Delete(&models.DoctorRankFee{})
	if res.Error != nil {
		utils.HandleError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		utils.NotFound(c, "Rank fee not found")
		return
	}
	h.Pricing.Invalidate(ctx)
	utils.Success(c, "Rank fee deleted successfully", nil)
}
