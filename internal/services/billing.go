package services

import (
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/notify"
	"clinic-app-server/internal/utils"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BillingService handles invoice edits, payments and printing.
type BillingService struct {
	db        *gorm.DB
	pricing   *PricingResolver
	publisher notify.Publisher
	log       *zap.Logger
	now       func() time.Time
}

func NewBillingService(db *gorm.DB, pricing *PricingResolver, publisher notify.Publisher, log *zap.Logger, now func() time.Time) *BillingService {
	if now == nil {
		now = time.Now
	}
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	return &BillingService{db: db, pricing: pricing, publisher: publisher, log: log, now: now}
}

// InvoiceFilter narrows List.
type InvoiceFilter struct {
	Status string `form:"status"`
}

// ServiceItemInput is an extra billed service.
type ServiceItemInput struct {
	Description string          `json:"description" binding:"required,max=255"`
	Unit        string          `json:"unit" binding:"max=30"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice   decimal.Decimal `json:"unitPrice" binding:"required"`
}

func withInvoiceDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("item_type, description") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("paid_at") }).
		Preload("PrintLogs", func(db *gorm.DB) *gorm.DB { return db.Order("printed_at") }).
		Preload("Appointment.Patient.User").
		Preload("Appointment.Doctor.User").
		Preload("Appointment.Doctor.Specialty")
}

// List returns invoices visible to actor, newest first.
func (s *BillingService) List(ctx context.Context, actor Actor, f InvoiceFilter) ([]models.Invoice, error) {
	db := s.db.WithContext(ctx)
	q := db.Model(&models.Invoice{}).
		Preload("Appointment.Patient.User").
		Preload("Appointment.Doctor.User")

	switch {
	case actor.Role == models.RolePatient:
		var patient models.PatientProfile
		err := db.Select("id").Where("user_id = ?", actor.UserID).First(&patient).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []models.Invoice{}, nil
		}
		if err != nil {
			return nil, err
		}
		q = q.Where("appointment_id IN (?)", db.Model(&models.Appointment{}).Select("id").Where("patient_id = ?", patient.ID))
	case actor.Role == models.RoleDoctor:
		doctor, err := doctorForUser(db, actor.UserID)
		if err != nil {
			return nil, err
		}
		q = q.Where("appointment_id IN (?)", db.Model(&models.Appointment{}).Select("id").Where("doctor_id = ?", doctor.ID))
	case !actor.IsStaffOrAdmin():
		return nil, utils.ErrForbidden
	}

	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var invoices []models.Invoice
	if err := q.Order("created_at DESC").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

// Get returns an invoice with items, payments and print history.
func (s *BillingService) Get(ctx context.Context, actor Actor, id string) (*models.Invoice, error) {
	db := s.db.WithContext(ctx)
	var invoice models.Invoice
	if err := withInvoiceDetails(db).Where("id = ?", id).First(&invoice).Error; err != nil {
		return nil, notFound("invoice", err)
	}
	if invoice.Appointment != nil {
		if err := authorizeViewer(db, actor, invoice.Appointment); err != nil {
			return nil, err
		}
	} else if !actor.IsStaffOrAdmin() {
		return nil, utils.ErrForbidden
	}
	return &invoice, nil
}

func loadUnpaid(tx *gorm.DB, id string) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := tx.Where("id = ?", id).First(&invoice).Error; err != nil {
		return nil, notFound("invoice", err)
	}
	if invoice.Status != models.InvoiceUnpaid {
		return nil, fmt.Errorf("invoice is %s: %w", invoice.Status, utils.ErrInvoiceState)
	}
	return &invoice, nil
}

func (s *BillingService) reload(ctx context.Context, id string) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := withInvoiceDetails(s.db.WithContext(ctx)).Where("id = ?", id).First(&invoice).Error; err != nil {
		return nil, notFound("invoice", err)
	}
	return &invoice, nil
}

// AddServiceItem adds a service line to an unpaid invoice.
func (s *BillingService) AddServiceItem(ctx context.Context, id string, in ServiceItemInput) (*models.Invoice, error) {
	if !in.Quantity.IsPositive() {
		return nil, fmt.Errorf("quantity must be positive: %w", utils.ErrValidation)
	}
	if in.UnitPrice.IsNegative() {
		return nil, fmt.Errorf("unit price cannot be negative: %w", utils.ErrValidation)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := loadUnpaid(tx, id)
		if err != nil {
			return err
		}
		return tx.Create(&models.InvoiceItem{
			InvoiceID:   invoice.ID,
			ItemType:    models.ItemService,
			Description: in.Description,
			Unit:        in.Unit,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, id)
}

// RemoveItem deletes a line of an unpaid invoice.
func (s *BillingService) RemoveItem(ctx context.Context, id, itemID string) (*models.Invoice, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadUnpaid(tx, id); err != nil {
			return err
		}
		var item models.InvoiceItem
		if err := tx.Where("id = ? AND invoice_id = ?", itemID, id).First(&item).Error; err != nil {
			return notFound("invoice item", err)
		}
		return tx.Delete(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, id)
}

// SetDiscount sets the discount of an unpaid invoice. It cannot exceed the subtotal.
func (s *BillingService) SetDiscount(ctx context.Context, id string, discount decimal.Decimal) (*models.Invoice, error) {
	if discount.IsNegative() {
		return nil, fmt.Errorf("discount cannot be negative: %w", utils.ErrValidation)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := loadUnpaid(tx, id)
		if err != nil {
			return err
		}
		if discount.GreaterThan(invoice.Subtotal) {
			return fmt.Errorf("discount exceeds subtotal %s: %w", invoice.Subtotal.String(), utils.ErrValidation)
		}
		if err := tx.Model(invoice).Update("discount", discount).Error; err != nil {
			return err
		}
		return models.RecomputeInvoiceTotals(tx, id)
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, id)
}

// PayCash records a cash payment of the amount due and marks the invoice paid.
func (s *BillingService) PayCash(ctx context.Context, actor Actor, id, note string) (*models.Invoice, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := loadUnpaid(tx, id)
		if err != nil {
			return err
		}
		if err := setInvoiceStatus(tx, id, models.InvoiceUnpaid, models.InvoicePaid); err != nil {
			return err
		}
		payment = models.Payment{
			InvoiceID:    id,
			Amount:       invoice.AmountDue,
			Method:       models.PaymentCash,
			PaidAt:       s.now().UTC(),
			ReceivedByID: actor.idPtr(),
			Note:         note,
		}
		return tx.Create(&payment).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("invoice paid",
		zap.String("invoice_id", id),
		zap.String("amount", payment.Amount.String()),
		zap.String("cashier_id", actor.UserID))
	event := notify.NewEvent(notify.InvoicePaid, map[string]interface{}{
		"invoiceId": id,
		"amount":    payment.Amount.String(),
		"method":    payment.Method,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("publish event failed", zap.String("type", event.Type), zap.Error(err))
	}
	return s.reload(ctx, id)
}

// Refund marks a paid invoice refunded.
func (s *BillingService) Refund(ctx context.Context, actor Actor, id string) (*models.Invoice, error) {
	if err := s.changeStatus(ctx, id, models.InvoicePaid, models.InvoiceRefunded); err != nil {
		return nil, err
	}
	s.log.Info("invoice refunded", zap.String("invoice_id", id), zap.String("actor_id", actor.UserID))
	return s.reload(ctx, id)
}

// Void cancels an unpaid invoice.
func (s *BillingService) Void(ctx context.Context, actor Actor, id string) (*models.Invoice, error) {
	if err := s.changeStatus(ctx, id, models.InvoiceUnpaid, models.InvoiceVoid); err != nil {
		return nil, err
	}
	s.log.Info("invoice voided", zap.String("invoice_id", id), zap.String("actor_id", actor.UserID))
	return s.reload(ctx, id)
}

func (s *BillingService) changeStatus(ctx context.Context, id string, from, to models.InvoiceStatus) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invoice models.Invoice
		if err := tx.Where("id = ?", id).First(&invoice).Error; err != nil {
			return notFound("invoice", err)
		}
		if invoice.Status != from {
			return fmt.Errorf("invoice is %s, expected %s: %w", invoice.Status, from, utils.ErrInvoiceState)
		}
		return setInvoiceStatus(tx, id, from, to)
	})
}

func setInvoiceStatus(tx *gorm.DB, id string, from, to models.InvoiceStatus) error {
	res := tx.Model(&models.Invoice{}).Where("id = ? AND status = ?", id, from).Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("invoice was modified concurrently: %w", utils.ErrInvoiceState)
	}
	return nil
}

// Print logs a print of the invoice and returns it with its copy tag:
// ORIGINAL for the first print, COPY afterwards.
func (s *BillingService) Print(ctx context.Context, actor Actor, id, note string) (*models.Invoice, string, error) {
	var tag string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invoice models.Invoice
		if err := tx.Where("id = ?", id).First(&invoice).Error; err != nil {
			return notFound("invoice", err)
		}

		var printed int64
		if err := tx.Model(&models.InvoicePrintLog{}).Where("invoice_id = ?", id).Count(&printed).Error; err != nil {
			return err
		}
		tag = models.CopyOriginal
		if printed > 0 {
			tag = models.CopyDuplicate
		}

		now := s.now().UTC()
		if err := tx.Create(&models.InvoicePrintLog{
			InvoiceID:   id,
			PrintedByID: actor.idPtr(),
			PrintedAt:   now,
			CopyTag:     tag,
			Note:        note,
		}).Error; err != nil {
			return err
		}

		if invoice.PrintedAt == nil {
			return tx.Model(&invoice).Updates(map[string]interface{}{
				"printed_at":    now,
				"printed_by_id": actor.idPtr(),
			}).Error
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	invoice, err := s.reload(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return invoice, tag, nil
}

// Reprice refreshes the consultation line of unpaid invoices to the current
// rank fee and recomputes their totals. With all set, settled invoices are
// visited too but their lines and totals are left as billed. It returns the
// number of invoices changed.
func (s *BillingService) Reprice(ctx context.Context, all bool) (int, error) {
	db := s.db.WithContext(ctx)
	q := db.Preload("Appointment.Doctor")
	if !all {
		q = q.Where("status = ?", models.InvoiceUnpaid)
	}
	var invoices []models.Invoice
	if err := q.Find(&invoices).Error; err != nil {
		return 0, err
	}

	changed := 0
	for _, invoice := range invoices {
		if invoice.Status != models.InvoiceUnpaid {
			continue
		}
		var doctor *models.Doctor
		if invoice.Appointment != nil {
			doctor = invoice.Appointment.Doctor
		}
		fee := s.pricing.ConsultationFee(ctx, doctor)

		updated := false
		err := db.Transaction(func(tx *gorm.DB) error {
			var item models.InvoiceItem
			err := tx.Where("invoice_id = ? AND item_type = ?", invoice.ID, models.ItemConsultation).First(&item).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				var doctorID *string
				if invoice.Appointment != nil {
					id := invoice.Appointment.DoctorID
					doctorID = &id
				}
				item = models.InvoiceItem{
					InvoiceID:   invoice.ID,
					ItemType:    models.ItemConsultation,
					RefID:       doctorID,
					Description: consultationDescription,
					Unit:        "visit",
					Quantity:    decimal.NewFromInt(1),
					UnitPrice:   fee,
				}
				updated = true
				if err := tx.Create(&item).Error; err != nil {
					return err
				}
			case err != nil:
				return err
			case !item.UnitPrice.Equal(fee):
				updated = true
				if err := tx.Model(&item).Update("unit_price", fee).Error; err != nil {
					return err
				}
			}
			return models.RecomputeInvoiceTotals(tx, invoice.ID)
		})
		if err != nil {
			return changed, fmt.Errorf("reprice invoice %s: %w", invoice.ID, err)
		}
		if updated {
			changed++
		}
	}

	s.log.Info("invoices repriced", zap.Int("changed", changed), zap.Bool("all", all))
	return changed, nil
}

// RecomputeAll recomputes the totals of every unpaid invoice. Paid, refunded
// and void invoices keep the amounts they were settled with.
func (s *BillingService) RecomputeAll(ctx context.Context) (int, error) {
	db := s.db.WithContext(ctx)
	var ids []string
	if err := db.Model(&models.Invoice{}).
		Where("status = ?", models.InvoiceUnpaid).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := models.RecomputeInvoiceTotals(db, id); err != nil {
			return 0, fmt.Errorf("recompute invoice %s: %w", id, err)
		}
	}
	return len(ids), nil
}
