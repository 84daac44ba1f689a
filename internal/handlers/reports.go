package handlers

import (
	"clinic-app-server/internal/documents"
	"clinic-app-server/internal/services"
	"clinic-app-server/internal/utils"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler serves the admin dashboard and exports.
type ReportHandler struct {
	Reports *services.ReportService
}

func NewReportHandler(reports *services.ReportService) *ReportHandler {
	return &ReportHandler{Reports: reports}
}

// Dashboard returns today's KPIs and the series of the last ?days (7 or 30).
func (h *ReportHandler) Dashboard(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	board, err := h.Reports.Dashboard(c.Request.Context(), days)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Dashboard fetched successfully", board)
}

// ExportAppointments downloads the appointments of ?from..?to as XLSX.
func (h *ReportHandler) ExportAppointments(c *gin.Context) {
	var r services.ExportRange
	if !utils.BindQuery(c, &r) {
		return
	}
	appts, err := h.Reports.Appointments(c.Request.Context(), r)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	body, err := documents.AppointmentsXLSX(appts, h.Reports.Location())
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Attachment(c, fmt.Sprintf("appointments_%s_%s.xlsx", r.From, r.To), xlsxContentType, body)
}

// ExportInvoices downloads the invoices of ?from..?to as XLSX.
func (h *ReportHandler) ExportInvoices(c *gin.Context) {
	var r services.ExportRange
	if !utils.BindQuery(c, &r) {
		return
	}
	invoices, err := h.Reports.Invoices(c.Request.Context(), r)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	body, err := documents.InvoicesXLSX(invoices, h.Reports.Location())
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Attachment(c, fmt.Sprintf("invoices_%s_%s.xlsx", r.From, r.To), xlsxContentType, body)
}
