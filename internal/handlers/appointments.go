package handlers

import (
	"clinic-app-server/internal/services"
	"clinic-app-server/internal/utils"

	"github.com/gin-gonic/gin"
)

// AppointmentHandler handles booking and the appointment status flow.
type AppointmentHandler struct {
	Appointments *services.AppointmentService
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(appointments *services.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{Appointments: appointments}
}

// CreateAppointment books a slot. Patients book for themselves; staff pass patientId.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req services.BookingInput
	if !utils.BindAndValidate(c, &req) {
		return
	}
	appt, err := h.Appointments.Book(c.Request.Context(), actor, req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "Appointment booked successfully", appt)
}

// GetAppointments lists the appointments visible to the caller.
func (h *AppointmentHandler) GetAppointments(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var f services.AppointmentFilter
	if !utils.BindQuery(c, &f) {
		return
	}
	appts, err := h.Appointments.List(c.Request.Context(), actor, f)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Appointments fetched successfully", appts)
}

// GetAppointmentByID returns an appointment with its record, invoice and log.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	appt, err := h.Appointments.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Appointment fetched successfully", appt)
}

// ConfirmAppointment moves a pending appointment to confirmed.
func (h *AppointmentHandler) ConfirmAppointment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	appt, err := h.Appointments.Confirm(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Appointment confirmed", appt)
}

// CancelRequest carries an optional reason.
type CancelRequest struct {
	Reason string `json:"reason" binding:"max=255"`
}

// CancelAppointment cancels a pending or confirmed appointment and frees its slot.
func (h *AppointmentHandler) CancelAppointment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req CancelRequest
	if c.Request.ContentLength > 0 && !utils.BindAndValidate(c, &req) {
		return
	}
	appt, err := h.Appointments.Cancel(c.Request.Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Appointment cancelled", appt)
}

// StartAppointment begins the visit.
func (h *AppointmentHandler) StartAppointment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	appt, err := h.Appointments.Start(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Visit started", appt)
}

// CompleteAppointment finishes the visit and returns its invoice.
func (h *AppointmentHandler) CompleteAppointment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	invoice, err := h.Appointments.Complete(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Visit completed and invoice issued", invoice)
}

// MarkNoShow flags a past appointment whose patient did not come.
func (h *AppointmentHandler) MarkNoShow(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	appt, err := h.Appointments.MarkNoShow(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Appointment marked as no-show", appt)
}

// DoctorToday returns the doctor's appointments of today with counts per status.
func (h *AppointmentHandler) DoctorToday(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	board, err := h.Appointments.DoctorToday(c.Request.Context(), actor)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Today's appointments fetched successfully", board)
}

// DoctorPending returns the doctor's upcoming pending, confirmed and cancelled appointments.
func (h *AppointmentHandler) DoctorPending(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	board, err := h.Appointments.DoctorPending(c.Request.Context(), actor)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Pending appointments fetched successfully", board)
}
