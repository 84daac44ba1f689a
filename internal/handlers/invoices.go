package handlers

import (
	"clinic-app-server/internal/documents"
	"clinic-app-server/internal/services"
	"clinic-app-server/internal/utils"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// InvoiceHandler handles invoice edits, cash payment and printing.
type InvoiceHandler struct {
	Billing *services.BillingService
	Clinic  documents.ClinicInfo
	Loc     *time.Location
}

func NewInvoiceHandler(billing *services.BillingService, clinic documents.ClinicInfo, loc *time.Location) *InvoiceHandler {
	return &InvoiceHandler{Billing: billing, Clinic: clinic, Loc: loc}
}

func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var f services.InvoiceFilter
	if !utils.BindQuery(c, &f) {
		return
	}
	invoices, err := h.Billing.List(c.Request.Context(), actor, f)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Invoices fetched successfully", invoices)
}

func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	invoice, err := h.Billing.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Invoice fetched successfully", invoice)
}

// AddItem adds an extra service line to an unpaid invoice.
func (h *InvoiceHandler) AddItem(c *gin.Context) {
	var req services.ServiceItemInput
	if !utils.BindAndValidate(c, &req) {
		return
	}
	invoice, err := h.Billing.AddServiceItem(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Invoice item added", invoice)
}

func (h *InvoiceHandler) RemoveItem(c *gin.Context) {
	invoice, err := h.Billing.RemoveItem(c.Request.Context(), c.Param("id"), c.Param("itemId"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Invoice item removed", invoice)
}

type DiscountRequest struct {
	Discount decimal.Decimal `json:"discount"`
}

func (h *InvoiceHandler) SetDiscount(c *gin.Context) {
	var req DiscountRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	invoice, err := h.Billing.SetDiscount(c.Request.Context(), c.Param("id"), req.Discount)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Discount applied", invoice)
}

type NoteRequest struct {
	Note string `json:"note" binding:"max=255"`
}

// bindNote reads an optional {note} body.
func bindNote(c *gin.Context) (string, bool) {
	var req NoteRequest
	if c.Request.ContentLength > 0 && !utils.BindAndValidate(c, &req) {
		return "", false
	}
	return req.Note, true
}

// PayInvoice takes a cash payment of the amount due.
func (h *InvoiceHandler) PayInvoice(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	note, ok := bindNote(c)
	if !ok {
		return
	}
	invoice, err := h.Billing.PayCash(c.Request.Context(), actor, c.Param("id"), note)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Payment recorded", invoice)
}

// PrintInvoice logs a print and downloads the invoice PDF tagged ORIGINAL or COPY.
func (h *InvoiceHandler) PrintInvoice(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	note := c.Query("note")
	invoice, tag, err := h.Billing.Print(c.Request.Context(), actor, c.Param("id"), note)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	body, err := documents.InvoicePDF(h.Clinic, invoice, tag, h.Loc)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	name := fmt.Sprintf("invoice-%s-%s.pdf", invoice.ID, strings.ToLower(tag))
	utils.Attachment(c, name, "application/pdf", body)
}

func (h *InvoiceHandler) RefundInvoice(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	invoice, err := h.Billing.Refund(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Invoice refunded", invoice)
}

func (h *InvoiceHandler) VoidInvoice(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	invoice, err := h.Billing.Void(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Invoice voided", invoice)
}
