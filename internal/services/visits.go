package services

import (
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/notify"
	"clinic-app-server/internal/utils"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RecordInput is the clinical note written during a visit. A nil Attachments
// keeps the stored attachments.
type RecordInput struct {
	Symptoms    string                    `json:"symptoms"`
	Diagnosis   string                    `json:"diagnosis"`
	Advice      string                    `json:"advice"`
	Attachments []models.RecordAttachment `json:"attachments" binding:"omitempty,dive"`
}

// PrescriptionInput is one prescribed drug.
type PrescriptionInput struct {
	DrugID       string `json:"drugId" binding:"required"`
	Quantity     int    `json:"quantity" binding:"required,gt=0"`
	Dosage       string `json:"dosage" binding:"max=100"`
	Frequency    string `json:"frequency" binding:"max=100"`
	DurationDays int    `json:"durationDays" binding:"gte=0"`
	Notes        string `json:"notes"`
}

// consultationDescription is the label of the consultation invoice line.
const consultationDescription = "Consultation fee"

// loadInProgress loads an appointment the actor may treat and checks it is in progress.
func loadInProgress(tx *gorm.DB, actor Actor, id string) (*models.Appointment, error) {
	var appt models.Appointment
	if err := tx.Where("id = ?", id).First(&appt).Error; err != nil {
		return nil, notFound("appointment", err)
	}
	if err := authorizeDoctorOrAdmin(tx, actor, &appt); err != nil {
		return nil, err
	}
	if appt.Status != models.StatusInProgress {
		return nil, fmt.Errorf("visit must be in progress, current status is %s: %w", appt.Status, utils.ErrInvalidTransition)
	}
	return &appt, nil
}

// SaveRecord creates or updates the medical record of an in-progress visit.
func (s *AppointmentService) SaveRecord(ctx context.Context, actor Actor, id string, in RecordInput) (*models.MedicalRecord, error) {
	var attachments datatypes.JSON
	if in.Attachments != nil {
		raw, err := json.Marshal(in.Attachments)
		if err != nil {
			return nil, fmt.Errorf("encode attachments: %w", err)
		}
		attachments = datatypes.JSON(raw)
	}

	var record models.MedicalRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadInProgress(tx, actor, id); err != nil {
			return err
		}

		err := tx.Where("appointment_id = ?", id).First(&record).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			record = models.MedicalRecord{
				AppointmentID: id,
				Symptoms:      in.Symptoms,
				Diagnosis:     in.Diagnosis,
				Advice:        in.Advice,
				Attachments:   attachments,
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			updates := map[string]interface{}{
				"symptoms":  in.Symptoms,
				"diagnosis": in.Diagnosis,
				"advice":    in.Advice,
			}
			if attachments != nil {
				updates["attachments"] = attachments
			}
			if err := tx.Model(&record).Updates(updates).Error; err != nil {
				return err
			}
		}
		return addLog(tx, id, models.ActionUpdatedRecord, actor, "")
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// SetPrescriptions replaces the prescriptions of an in-progress visit.
// Drug name, unit and price are copied from the catalogue at this moment.
func (s *AppointmentService) SetPrescriptions(ctx context.Context, actor Actor, id string, items []PrescriptionInput) ([]models.Prescription, error) {
	var created []models.Prescription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadInProgress(tx, actor, id); err != nil {
			return err
		}

		var record models.MedicalRecord
		if err := tx.Where("appointment_id = ?", id).First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("save the medical record before prescribing: %w", utils.ErrValidation)
			}
			return err
		}

		drugIDs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Quantity <= 0 {
				return fmt.Errorf("quantity must be positive: %w", utils.ErrValidation)
			}
			drugIDs = append(drugIDs, item.DrugID)
		}

		drugs := map[string]models.Drug{}
		if len(drugIDs) > 0 {
			var rows []models.Drug
			if err := tx.Where("id IN ? AND is_active = ?", drugIDs, true).Find(&rows).Error; err != nil {
				return err
			}
			for _, d := range rows {
				drugs[d.ID] = d
			}
		}

		if err := tx.Where("medical_record_id = ?", record.ID).Delete(&models.Prescription{}).Error; err != nil {
			return err
		}

		created = make([]models.Prescription, 0, len(items))
		for _, item := range items {
			drug, ok := drugs[item.DrugID]
			if !ok {
				return fmt.Errorf("drug %s is not available: %w", item.DrugID, utils.ErrValidation)
			}
			created = append(created, models.Prescription{
				MedicalRecordID: record.ID,
				DrugID:          drug.ID,
				DrugName:        drug.Name,
				Unit:            drug.Unit,
				UnitPrice:       drug.UnitPrice,
				Dosage:          item.Dosage,
				Frequency:       item.Frequency,
				DurationDays:    item.DurationDays,
				Quantity:        item.Quantity,
				Notes:           item.Notes,
			})
		}
		if len(created) > 0 {
			if err := tx.Create(&created).Error; err != nil {
				return err
			}
		}
		return addLog(tx, id, models.ActionUpdatedPrescription, actor, fmt.Sprintf("%d item(s)", len(created)))
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Complete finishes an in-progress visit and bills it: one consultation line at
// the doctor's rank fee and one line per prescription at its snapshot price.
// Stock is checked for every drug before any is decremented; any failure rolls
// back the whole completion.
func (s *AppointmentService) Complete(ctx context.Context, actor Actor, id string) (*models.Invoice, error) {
	db := s.db.WithContext(ctx)

	var appt models.Appointment
	if err := db.Preload("Doctor").Where("id = ?", id).First(&appt).Error; err != nil {
		return nil, notFound("appointment", err)
	}
	if err := authorizeDoctorOrAdmin(db, actor, &appt); err != nil {
		return nil, err
	}
	if appt.Status != models.StatusInProgress {
		return nil, fmt.Errorf("cannot complete an appointment in status %s: %w", appt.Status, utils.ErrInvalidTransition)
	}
	fee := s.pricing.ConsultationFee(ctx, appt.Doctor)

	var invoice models.Invoice
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Appointment{}).
			Where("id = ? AND status = ?", id, models.StatusInProgress).
			Update("status", models.StatusCompleted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("appointment was modified concurrently: %w", utils.ErrInvalidTransition)
		}

		inv, err := getOrCreateInvoice(tx, id, actor)
		if err != nil {
			return err
		}
		if err := tx.Where("invoice_id = ?", inv.ID).Delete(&models.InvoiceItem{}).Error; err != nil {
			return err
		}

		doctorID := appt.DoctorID
		items := []models.InvoiceItem{{
			InvoiceID:   inv.ID,
			ItemType:    models.ItemConsultation,
			RefID:       &doctorID,
			Description: consultationDescription,
			Unit:        "visit",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   fee,
		}}

		var record models.MedicalRecord
		err = tx.Preload("Prescriptions", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
			Where("appointment_id = ?", id).First(&record).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		needed := map[string]int{}
		for _, p := range record.Prescriptions {
			drugID := p.DrugID
			items = append(items, models.InvoiceItem{
				InvoiceID:   inv.ID,
				ItemType:    models.ItemDrug,
				RefID:       &drugID,
				Description: p.DrugName,
				Unit:        p.Unit,
				Quantity:    decimal.NewFromInt(int64(p.Quantity)),
				UnitPrice:   p.UnitPrice,
			})
			needed[p.DrugID] += p.Quantity
		}
		if err := consumeStock(tx, needed); err != nil {
			return err
		}

		// one recompute for the whole batch instead of one per row
		for i := range items {
			items[i].ID = uuid.NewString()
		}
		if err := tx.Session(&gorm.Session{SkipHooks: true}).Create(&items).Error; err != nil {
			return err
		}
		if err := models.RecomputeInvoiceTotals(tx, inv.ID); err != nil {
			return err
		}
		if err := addLog(tx, id, models.ActionCompleted, actor, ""); err != nil {
			return err
		}
		return tx.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("item_type, description") }).
			Where("id = ?", inv.ID).First(&invoice).Error
	})
	if err != nil {
		return nil, err
	}

	appt.Status = models.StatusCompleted
	s.log.Info("appointment completed",
		zap.String("appointment_id", id),
		zap.String("invoice_id", invoice.ID),
		zap.String("amount_due", invoice.AmountDue.String()))
	s.publish(ctx, notify.AppointmentCompleted, &appt)
	return &invoice, nil
}

func getOrCreateInvoice(tx *gorm.DB, appointmentID string, actor Actor) (*models.Invoice, error) {
	var inv models.Invoice
	err := tx.Where("appointment_id = ?", appointmentID).First(&inv).Error
	if err == nil {
		if inv.Status == models.InvoiceDraft {
			if err := tx.Model(&inv).Update("status", models.InvoiceUnpaid).Error; err != nil {
				return nil, err
			}
		}
		return &inv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	inv = models.Invoice{
		AppointmentID: appointmentID,
		Status:        models.InvoiceUnpaid,
		CreatedByID:   actor.idPtr(),
	}
	if err := tx.Create(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// consumeStock checks every drug has enough stock, then decrements them.
func consumeStock(tx *gorm.DB, needed map[string]int) error {
	if len(needed) == 0 {
		return nil
	}
	ids := make([]string, 0, len(needed))
	for id := range needed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var drugs []models.Drug
	if err := tx.Where("id IN ?", ids).Find(&drugs).Error; err != nil {
		return err
	}
	byID := make(map[string]models.Drug, len(drugs))
	for _, d := range drugs {
		byID[d.ID] = d
	}

	for _, id := range ids {
		drug, ok := byID[id]
		if !ok {
			return fmt.Errorf("drug %s no longer exists: %w", id, utils.ErrValidation)
		}
		if drug.Stock < needed[id] {
			return fmt.Errorf("%s: need %d, have %d: %w", drug.Name, needed[id], drug.Stock, utils.ErrInsufficientStock)
		}
	}

	for _, id := range ids {
		res := tx.Model(&models.Drug{}).
			Where("id = ? AND stock >= ?", id, needed[id]).
			Update("stock", gorm.Expr("stock - ?", needed[id]))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%s: %w", byID[id].Name, utils.ErrInsufficientStock)
		}
	}
	return nil
}
