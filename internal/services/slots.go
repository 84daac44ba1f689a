package services

import (
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/utils"
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
)

// Slot is a bookable start time of a doctor on a date.
type Slot struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Available bool   `json:"available"`
}

// Window is an open schedule window used for slot computation.
type Window struct {
	Start        string
	End          string
	SlotDuration int
}

// BuildSlots partitions every window into SlotDuration increments that fit
// entirely before the window end. A slot is unavailable when its start is in
// taken or, when date is today in loc, when now is at or past its end.
// Slots are sorted by start and deduplicated by start, keeping the first.
func BuildSlots(date string, windows []Window, taken map[string]bool, now time.Time, loc *time.Location) []Slot {
	isToday := now.In(loc).Format(models.DateLayout) == date

	var slots []Slot
	for _, w := range windows {
		if w.SlotDuration <= 0 {
			continue
		}
		start, err := combine(date, w.Start, loc)
		if err != nil {
			continue
		}
		end, err := combine(date, w.End, loc)
		if err != nil {
			continue
		}
		step := time.Duration(w.SlotDuration) * time.Minute

		for cur := start; !cur.Add(step).After(end); cur = cur.Add(step) {
			slotEnd := cur.Add(step)
			label := cur.Format(models.ClockLayout)
			available := !taken[label]
			if isToday && !now.Before(slotEnd) {
				available = false
			}
			slots = append(slots, Slot{
				Start:     label,
				End:       slotEnd.Format(models.ClockLayout),
				Available: available,
			})
		}
	}

	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Start < slots[j].Start })

	deduped := make([]Slot, 0, len(slots))
	seen := make(map[string]bool, len(slots))
	for _, s := range slots {
		if seen[s.Start] {
			continue
		}
		seen[s.Start] = true
		deduped = append(deduped, s)
	}
	return deduped
}

// SlotService computes available slots from the database.
type SlotService struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

func NewSlotService(db *gorm.DB, loc *time.Location, now func() time.Time) *SlotService {
	if now == nil {
		now = time.Now
	}
	return &SlotService{db: db, loc: loc, now: now}
}

// AvailableSlots lists the slots of doctorID on date (YYYY-MM-DD).
func (s *SlotService) AvailableSlots(ctx context.Context, doctorID, date string) ([]Slot, error) {
	return s.availableSlots(s.db.WithContext(ctx), doctorID, date)
}

func (s *SlotService) availableSlots(tx *gorm.DB, doctorID, date string) ([]Slot, error) {
	if _, err := time.ParseInLocation(models.DateLayout, date, s.loc); err != nil {
		return nil, fmt.Errorf("date must be YYYY-MM-DD: %w", utils.ErrValidation)
	}

	var schedules []models.Schedule
	if err := tx.Where("doctor_id = ? AND work_date = ? AND status = ?", doctorID, date, models.ScheduleOpen).
		Order("start_time").Find(&schedules).Error; err != nil {
		return nil, err
	}
	if len(schedules) == 0 {
		return []Slot{}, nil
	}

	taken, err := s.takenTimes(tx, doctorID, date)
	if err != nil {
		return nil, err
	}

	windows := make([]Window, 0, len(schedules))
	for _, sc := range schedules {
		windows = append(windows, Window{Start: sc.StartTime, End: sc.EndTime, SlotDuration: sc.SlotDuration})
	}
	return BuildSlots(date, windows, taken, s.now(), s.loc), nil
}

// takenTimes returns the HH:MM start times of live appointments on date.
func (s *SlotService) takenTimes(tx *gorm.DB, doctorID, date string) (map[string]bool, error) {
	dayStart, err := time.ParseInLocation(models.DateLayout, date, s.loc)
	if err != nil {
		return nil, err
	}
	dayEnd := dayStart.AddDate(0, 0, 1)

	var times []time.Time
	if err := tx.Model(&models.Appointment{}).
		Where("doctor_id = ? AND appointment_at >= ? AND appointment_at < ?", doctorID, dayStart.UTC(), dayEnd.UTC()).
		Where("status NOT IN ?", []models.AppointmentStatus{models.StatusCancelled, models.StatusNoShow}).
		Pluck("appointment_at", &times).Error; err != nil {
		return nil, err
	}

	taken := make(map[string]bool, len(times))
	for _, t := range times {
		taken[t.In(s.loc).Format(models.ClockLayout)] = true
	}
	return taken, nil
}
