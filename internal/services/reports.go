package services

import (
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/utils"
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReportService builds the admin dashboard and export data sets.
type ReportService struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

func NewReportService(db *gorm.DB, loc *time.Location, now func() time.Time) *ReportService {
	if now == nil {
		now = time.Now
	}
	return &ReportService{db: db, loc: loc, now: now}
}

// DayPoint is one day of the dashboard series.
type DayPoint struct {
	Date         string          `json:"date"`
	Appointments int             `json:"appointments"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// Dashboard holds the admin KPIs.
type Dashboard struct {
	AppointmentsToday int                              `json:"appointmentsToday"`
	RevenueToday      decimal.Decimal                  `json:"revenueToday"`
	UnpaidInvoices    int64                            `json:"unpaidInvoices"`
	ActiveDoctors     int64                            `json:"activeDoctors"`
	StatusToday       map[models.AppointmentStatus]int `json:"statusToday"`
	Series            []DayPoint                       `json:"series"`
}

type datedStatus struct {
	AppointmentAt time.Time
	Status        models.AppointmentStatus
}

type datedAmount struct {
	PaidAt time.Time
	Amount decimal.Decimal
}

// Dashboard computes today's KPIs and a per-day series over the last days
// (7 or 30, anything else means 7).
func (s *ReportService) Dashboard(ctx context.Context, days int) (*Dashboard, error) {
	if days != 30 {
		days = 7
	}
	db := s.db.WithContext(ctx)

	localNow := s.now().In(s.loc)
	today := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, s.loc)
	rangeStart := today.AddDate(0, 0, -(days - 1))
	rangeEnd := today.AddDate(0, 0, 1)
	todayKey := today.Format(models.DateLayout)

	var appts []datedStatus
	if err := db.Model(&models.Appointment{}).Select("appointment_at, status").
		Where("appointment_at >= ? AND appointment_at < ?", rangeStart.UTC(), rangeEnd.UTC()).
		Scan(&appts).Error; err != nil {
		return nil, err
	}

	var payments []datedAmount
	if err := db.Model(&models.Payment{}).Select("payments.paid_at, payments.amount").
		Joins("JOIN invoices ON invoices.id = payments.invoice_id").
		Where("invoices.status = ?", models.InvoicePaid).
		Where("payments.paid_at >= ? AND payments.paid_at < ?", rangeStart.UTC(), rangeEnd.UTC()).
		Scan(&payments).Error; err != nil {
		return nil, err
	}

	dash := &Dashboard{
		RevenueToday: decimal.Zero,
		StatusToday:  map[models.AppointmentStatus]int{},
	}

	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		key := rangeStart.AddDate(0, 0, i).Format(models.DateLayout)
		index[key] = i
		dash.Series = append(dash.Series, DayPoint{Date: key, Revenue: decimal.Zero})
	}

	for _, a := range appts {
		key := a.AppointmentAt.In(s.loc).Format(models.DateLayout)
		if i, ok := index[key]; ok {
			dash.Series[i].Appointments++
		}
		if key == todayKey {
			dash.AppointmentsToday++
			dash.StatusToday[a.Status]++
		}
	}
	for _, p := range payments {
		key := p.PaidAt.In(s.loc).Format(models.DateLayout)
		if i, ok := index[key]; ok {
			dash.Series[i].Revenue = dash.Series[i].Revenue.Add(p.Amount)
		}
		if key == todayKey {
			dash.RevenueToday = dash.RevenueToday.Add(p.Amount)
		}
	}

	if err := db.Model(&models.Invoice{}).Where("status = ?", models.InvoiceUnpaid).Count(&dash.UnpaidInvoices).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Doctor{}).
		Joins("JOIN users ON users.id = doctors.user_id").
		Where("users.is_active = ?", true).
		Count(&dash.ActiveDoctors).Error; err != nil {
		return nil, err
	}

	return dash, nil
}

// ExportRange is an inclusive clinic-local date range.
type ExportRange struct {
	From string `form:"from" binding:"required"`
	To   string `form:"to" binding:"required"`
}

func (s *ReportService) bounds(r ExportRange) (time.Time, time.Time, error) {
	from, err := time.ParseInLocation(models.DateLayout, r.From, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("from must be YYYY-MM-DD: %w", utils.ErrValidation)
	}
	to, err := time.ParseInLocation(models.DateLayout, r.To, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("to must be YYYY-MM-DD: %w", utils.ErrValidation)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("to is before from: %w", utils.ErrValidation)
	}
	return from.UTC(), to.AddDate(0, 0, 1).UTC(), nil
}

// Appointments returns the appointments scheduled in the range.
func (s *ReportService) Appointments(ctx context.Context, r ExportRange) ([]models.Appointment, error) {
	start, end, err := s.bounds(r)
	if err != nil {
		return nil, err
	}
	var appts []models.Appointment
	if err := s.db.WithContext(ctx).
		Preload("Patient.User").Preload("Doctor.User").Preload("Doctor.Specialty").
		Where("appointment_at >= ? AND appointment_at < ?", start, end).
		Order("appointment_at").Find(&appts).Error; err != nil {
		return nil, err
	}
	return appts, nil
}

// Invoices returns the invoices created in the range.
func (s *ReportService) Invoices(ctx context.Context, r ExportRange) ([]models.Invoice, error) {
	start, end, err := s.bounds(r)
	if err != nil {
		return nil, err
	}
	var invoices []models.Invoice
	if err := s.db.WithContext(ctx).
		Preload("Appointment.Patient.User").Preload("Appointment.Doctor.User").Preload("Payments").
		Where("created_at >= ? AND created_at < ?", start, end).
		Order("created_at").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

// Location is the clinic timezone used by the reports.
func (s *ReportService) Location() *time.Location {
	return s.loc
}
