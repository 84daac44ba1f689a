package handlers

import (
	"clinic-app-server/internal/documents"
	"clinic-app-server/internal/services"
	"clinic-app-server/internal/utils"
	"fmt"

	"github.com/gin-gonic/gin"
)

// MedicalRecordHandler handles the clinical notes and prescriptions of a visit.
type MedicalRecordHandler struct {
	Appointments *services.AppointmentService
	Clinic       documents.ClinicInfo
}

// NewMedicalRecordHandler creates a new MedicalRecordHandler.
func NewMedicalRecordHandler(appointments *services.AppointmentService, clinic documents.ClinicInfo) *MedicalRecordHandler {
	return &MedicalRecordHandler{Appointments: appointments, Clinic: clinic}
}

// SaveRecord creates or updates the record of an in-progress visit.
func (h *MedicalRecordHandler) SaveRecord(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req services.RecordInput
	if !utils.BindAndValidate(c, &req) {
		return
	}
	record, err := h.Appointments.SaveRecord(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Medical record saved successfully", record)
}

// PrescriptionsRequest replaces the whole prescription list of a visit.
type PrescriptionsRequest struct {
	Items []services.PrescriptionInput `json:"items" binding:"dive"`
}

// SetPrescriptions replaces the prescriptions of an in-progress visit.
func (h *MedicalRecordHandler) SetPrescriptions(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req PrescriptionsRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	items, err := h.Appointments.SetPrescriptions(c.Request.Context(), actor, c.Param("id"), req.Items)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Prescriptions saved successfully", items)
}

// PatientHistory returns the completed visits of a patient. Without an :id
// the authenticated patient's own history is returned.
func (h *MedicalRecordHandler) PatientHistory(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	history, err := h.Appointments.History(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Medical history fetched successfully", history)
}

// VisitSummaryPDF downloads the record and prescriptions of a visit.
func (h *MedicalRecordHandler) VisitSummaryPDF(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	appt, err := h.Appointments.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if appt.MedicalRecord == nil {
		utils.NotFound(c, "This visit has no medical record yet")
		return
	}
	body, err := documents.VisitSummaryPDF(h.Clinic, appt, h.Appointments.Location())
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Attachment(c, fmt.Sprintf("visit-%s.pdf", appt.ID), "application/pdf", body)
}
