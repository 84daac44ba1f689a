package services

import (
	"context"
	"testing"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/testutil"
	"clinic-app-server/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := testutil.CreateDoctor(t, f.db, "BS")
	testutil.CreateDoctor(t, f.db, "TS")
	testutil.CreateSchedule(t, f.db, doctor.ID, "2025-03-10", "08:00", "12:00", 30)
	testutil.CreateSchedule(t, f.db, doctor.ID, "2025-03-11", "08:00", "12:00", 30)
	patient := testutil.CreatePatient(t, f.db)

	today, err := f.appts.Book(ctx, patientActor(patient), BookingInput{DoctorID: doctor.ID, Date: "2025-03-10", Time: "09:00"})
	require.NoError(t, err)
	_, err = f.appts.Confirm(ctx, doctorActor(doctor), today.ID)
	require.NoError(t, err)
	_, err = f.appts.Book(ctx, patientActor(patient), BookingInput{DoctorID: doctor.ID, Date: "2025-03-10", Time: "10:00"})
	require.NoError(t, err)

	paid, _ := f.completedInvoice(t, doctor, "08:00")
	f.completedInvoice(t, doctor, "08:30")
	_, err = f.billing.PayCash(ctx, staffActor(t, f.db), paid.ID, "")
	require.NoError(t, err)

	dash, err := f.reports.Dashboard(ctx, 7)
	require.NoError(t, err)

	assert.Equal(t, 2, dash.AppointmentsToday)
	assert.Equal(t, 1, dash.StatusToday[models.StatusConfirmed])
	assert.Equal(t, 1, dash.StatusToday[models.StatusPending])
	assert.True(t, dash.RevenueToday.Equal(dec(200000)), dash.RevenueToday.String())
	assert.EqualValues(t, 1, dash.UnpaidInvoices)
	assert.EqualValues(t, 2, dash.ActiveDoctors)

	require.Len(t, dash.Series, 7)
	assert.Equal(t, "2025-03-04", dash.Series[0].Date)
	assert.Equal(t, "2025-03-10", dash.Series[6].Date)
	assert.Equal(t, 2, dash.Series[6].Appointments)
	assert.True(t, dash.Series[6].Revenue.Equal(dec(200000)))

	month, err := f.reports.Dashboard(ctx, 30)
	require.NoError(t, err)
	assert.Len(t, month.Series, 30)

	_, err = f.billing.Refund(ctx, staffActor(t, f.db), paid.ID)
	require.NoError(t, err)
	dash, err = f.reports.Dashboard(ctx, 0)
	require.NoError(t, err)
	assert.True(t, dash.RevenueToday.IsZero(), "refunded payments are not revenue")
}

func TestExportRanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := testutil.CreateDoctor(t, f.db, "BS")
	testutil.CreateSchedule(t, f.db, doctor.ID, "2025-03-11", "08:00", "12:00", 30)
	testutil.CreateSchedule(t, f.db, doctor.ID, "2025-03-12", "08:00", "12:00", 30)
	patient := testutil.CreatePatient(t, f.db)
	for _, d := range []string{"2025-03-11", "2025-03-12"} {
		_, err := f.appts.Book(ctx, patientActor(patient), BookingInput{DoctorID: doctor.ID, Date: d, Time: "08:00"})
		require.NoError(t, err)
	}

	appts, err := f.reports.Appointments(ctx, ExportRange{From: "2025-03-11", To: "2025-03-11"})
	require.NoError(t, err)
	require.Len(t, appts, 1)
	require.NotNil(t, appts[0].Patient)
	assert.NotNil(t, appts[0].Patient.User)

	appts, err = f.reports.Appointments(ctx, ExportRange{From: "2025-03-10", To: "2025-03-12"})
	require.NoError(t, err)
	assert.Len(t, appts, 2)

	_, err = f.reports.Appointments(ctx, ExportRange{From: "2025-03-12", To: "2025-03-10"})
	assert.ErrorIs(t, err, utils.ErrValidation)
	_, err = f.reports.Invoices(ctx, ExportRange{From: "bad", To: "2025-03-10"})
	assert.ErrorIs(t, err, utils.ErrValidation)
}
