package handlers

import (
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/services"
	"clinic-app-server/internal/utils"

	"github.com/gin-gonic/gin"
)

// ScheduleHandler serves doctor schedules and their bookable slots.
type ScheduleHandler struct {
	Schedules *services.ScheduleService
	Slots     *services.SlotService
}

func NewScheduleHandler(schedules *services.ScheduleService, slots *services.SlotService) *ScheduleHandler {
	return &ScheduleHandler{Schedules: schedules, Slots: slots}
}

// CreateSchedule opens a working window for a doctor.
func (h *ScheduleHandler) CreateSchedule(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req services.ScheduleInput
	if !utils.BindAndValidate(c, &req) {
		return
	}
	schedule, err := h.Schedules.Create(c.Request.Context(), actor, req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "Schedule created successfully", schedule)
}

// ListSchedules lists schedules visible to the caller.
func (h *ScheduleHandler) ListSchedules(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var f services.ScheduleFilter
	if !utils.BindQuery(c, &f) {
		return
	}
	schedules, err := h.Schedules.List(c.Request.Context(), actor, f)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Schedules fetched successfully", schedules)
}

func (h *ScheduleHandler) setStatus(c *gin.Context, status models.ScheduleStatus, message string) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	schedule, err := h.Schedules.SetStatus(c.Request.Context(), actor, c.Param("id"), status)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, message, schedule)
}

// OpenSchedule reopens a closed schedule.
func (h *ScheduleHandler) OpenSchedule(c *gin.Context) {
	h.setStatus(c, models.ScheduleOpen, "Schedule opened successfully")
}

// CloseSchedule stops new bookings in a schedule. Existing appointments are kept.
func (h *ScheduleHandler) CloseSchedule(c *gin.Context) {
	h.setStatus(c, models.ScheduleClosed, "Schedule closed successfully")
}

// SlotQuery is the query of AvailableSlots.
type SlotQuery struct {
	Date string `form:"date" binding:"required"`
}

// AvailableSlots lists a doctor's slots on a date with their availability.
func (h *ScheduleHandler) AvailableSlots(c *gin.Context) {
	var q SlotQuery
	if !utils.BindQuery(c, &q) {
		return
	}
	slots, err := h.Slots.AvailableSlots(c.Request.Context(), c.Param("id"), q.Date)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Slots fetched successfully", slots)
}
