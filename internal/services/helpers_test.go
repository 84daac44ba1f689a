package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/notify"
	"clinic-app-server/internal/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ict = time.FixedZone("ICT", 7*60*60)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	db       *gorm.DB
	now      time.Time
	pub      *recordingPublisher
	pricing  *PricingResolver
	slots    *SlotService
	appts    *AppointmentService
	billing  *BillingService
	reports  *ReportService
	schedule *ScheduleService
	chatbot  *ChatbotService
}

// newFixture builds the services on a fresh database with the clock at
// 2025-03-10 08:00 clinic time.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:  testutil.NewDB(t),
		now: time.Date(2025, 3, 10, 8, 0, 0, 0, ict),
		pub: &recordingPublisher{},
	}
	clock := func() time.Time { return f.now }
	log := zap.NewNop()

	f.pricing = NewPricingResolver(f.db, nil, log)
	f.slots = NewSlotService(f.db, ict, clock)
	f.schedule = NewScheduleService(f.db, ict, log)
	f.appts = NewAppointmentService(f.db, f.slots, f.pricing, f.pub, log, AppointmentConfig{
		Location:          ict,
		BookingWindowDays: 5,
		CancelBefore:      120 * time.Minute,
		Now:               clock,
	})
	f.billing = NewBillingService(f.db, f.pricing, f.pub, log, clock)
	f.reports = NewReportService(f.db, ict, clock)
	f.chatbot = NewChatbotService(f.db, log, clock)
	return f
}

func patientActor(p *models.PatientProfile) Actor {
	return Actor{UserID: p.UserID, Role: models.RolePatient}
}

func doctorActor(d *models.Doctor) Actor {
	return Actor{UserID: d.UserID, Role: models.RoleDoctor}
}

func staffActor(t *testing.T, db *gorm.DB) Actor {
	u := testutil.CreateUser(t, db, models.RoleStaff)
	return Actor{UserID: u.ID, Role: models.RoleStaff}
}

// startVisit books date/clock with a new patient and moves it to in progress.
func (f *fixture) startVisit(t *testing.T, doctor *models.Doctor, date, clock string) (*models.Appointment, *models.PatientProfile) {
	t.Helper()
	ctx := context.Background()
	patient := testutil.CreatePatient(t, f.db)

	appt, err := f.appts.Book(ctx, patientActor(patient), BookingInput{DoctorID: doctor.ID, Date: date, Time: clock})
	require.NoError(t, err)
	_, err = f.appts.Confirm(ctx, doctorActor(doctor), appt.ID)
	require.NoError(t, err)
	appt, err = f.appts.Start(ctx, doctorActor(doctor), appt.ID)
	require.NoError(t, err)
	return appt, patient
}
