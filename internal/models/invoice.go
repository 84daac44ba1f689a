package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceStatus enum
type InvoiceStatus string

const (
	InvoiceDraft    InvoiceStatus = "draft"
	InvoiceUnpaid   InvoiceStatus = "unpaid"
	InvoicePaid     InvoiceStatus = "paid"
	InvoiceRefunded InvoiceStatus = "refunded"
	InvoiceVoid     InvoiceStatus = "void"
)

// ItemType enum
type ItemType string

const (
	ItemConsultation ItemType = "consultation"
	ItemDrug         ItemType = "drug"
	ItemService      ItemType = "service"
)

// Invoice is the bill of one appointment.
type Invoice struct {
	BaseModel
	AppointmentID string          `gorm:"size:36;uniqueIndex;not null" json:"appointmentId"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	Discount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount"`
	AmountDue     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amountDue"`
	Status        InvoiceStatus   `gorm:"size:10;not null;index" json:"status"`
	CreatedByID   *string         `gorm:"size:36" json:"createdById,omitempty"`
	PrintedAt     *time.Time      `json:"printedAt,omitempty"`
	PrintedByID   *string         `gorm:"size:36" json:"printedById,omitempty"`

	Appointment *Appointment      `gorm:"foreignKey:AppointmentID" json:"appointment,omitempty"`
	Items       []InvoiceItem     `gorm:"foreignKey:InvoiceID" json:"items,omitempty"`
	Payments    []Payment         `gorm:"foreignKey:InvoiceID" json:"payments,omitempty"`
	PrintLogs   []InvoicePrintLog `gorm:"foreignKey:InvoiceID" json:"printLogs,omitempty"`
}

// InvoiceItem is one billed line.
type InvoiceItem struct {
	BaseModel
	InvoiceID   string          `gorm:"size:36;not null;index" json:"invoiceId"`
	ItemType    ItemType        `gorm:"size:20;not null" json:"itemType"`
	RefID       *string         `gorm:"size:36" json:"refId,omitempty"`
	Description string          `gorm:"size:255;not null" json:"description"`
	Unit        string          `gorm:"size:30" json:"unit,omitempty"`
	Quantity    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unitPrice"`
}

// LineTotal is quantity x unit price.
func (i InvoiceItem) LineTotal() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice)
}

// The hooks keep invoice totals in step with single-row item changes.
// Batch deletes carry no InvoiceID and are recomputed by the caller.

func (i *InvoiceItem) AfterCreate(tx *gorm.DB) error {
	return recomputeFromHook(tx, i.InvoiceID)
}

func (i *InvoiceItem) AfterUpdate(tx *gorm.DB) error {
	return recomputeFromHook(tx, i.InvoiceID)
}

func (i *InvoiceItem) AfterDelete(tx *gorm.DB) error {
	return recomputeFromHook(tx, i.InvoiceID)
}

func recomputeFromHook(tx *gorm.DB, invoiceID string) error {
	if invoiceID == "" {
		return nil
	}
	return RecomputeInvoiceTotals(tx, invoiceID)
}

// RecomputeInvoiceTotals sets subtotal to the sum of line totals and
// amount due to subtotal minus discount, never below zero.
func RecomputeInvoiceTotals(tx *gorm.DB, invoiceID string) error {
	var items []InvoiceItem
	if err := tx.Where("invoice_id = ?", invoiceID).Find(&items).Error; err != nil {
		return err
	}

	var invoice Invoice
	if err := tx.Select("id", "discount").Where("id = ?", invoiceID).First(&invoice).Error; err != nil {
		return err
	}

	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}

	return tx.Model(&Invoice{}).Where("id = ?", invoiceID).Updates(map[string]interface{}{
		"subtotal":   subtotal,
		"amount_due": AmountDue(subtotal, invoice.Discount),
	}).Error
}

// AmountDue is subtotal minus discount clamped at zero.
func AmountDue(subtotal, discount decimal.Decimal) decimal.Decimal {
	due := subtotal.Sub(discount)
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}

type PaymentMethod string

const PaymentCash PaymentMethod = "CASH"

// Payment records money received for an invoice.
type Payment struct {
	BaseModel
	InvoiceID    string          `gorm:"size:36;not null;index" json:"invoiceId"`
	Amount       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Method       PaymentMethod   `gorm:"size:10;not null" json:"method"`
	PaidAt       time.Time       `gorm:"not null;index" json:"paidAt"`
	ReceivedByID *string         `gorm:"size:36" json:"receivedById,omitempty"`
	Note         string          `gorm:"size:255" json:"note,omitempty"`
}

// Print copy tags
const (
	CopyOriginal  = "ORIGINAL"
	CopyDuplicate = "COPY"
)

// InvoicePrintLog records each print of an invoice.
type InvoicePrintLog struct {
	BaseModel
	InvoiceID   string    `gorm:"size:36;not null;index" json:"invoiceId"`
	PrintedByID *string   `gorm:"size:36" json:"printedById,omitempty"`
	PrintedAt   time.Time `gorm:"not null" json:"printedAt"`
	CopyTag     string    `gorm:"size:10;not null" json:"copyTag"`
	Note        string    `gorm:"size:255" json:"note,omitempty"`
}
