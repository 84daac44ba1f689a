package services

import (
	"context"
	"testing"
	"time"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/notify"
	"clinic-app-server/internal/testutil"
	"clinic-app-server/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestBookCreatesPendingAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := testutil.CreateDoctor(t, f.db, "BS")
	testutil.CreateSchedule(t, f.db, doctor.ID, "2025-03-11", "08:00", "10:00", 30)
	patient := testutil.CreatePatient(t, f.db)

	appt, err := f.appts.Book(ctx, patientActor(patient), BookingInput{
		DoctorID: doctor.ID, Date: "2025-03-11", Time: "08:30", Reason: "Headache",
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, appt.Status)
	assert.Equal(t, models.SourcePortal, appt.Source)
	assert.Equal(t, patient.ID, appt.PatientID)
	assert.True(t, appt.AppointmentAt.Equal(time.Date(2025, 3, 11, 1, 30, 0, 0, time.UTC)))
	require.NotNil(t, appt.SlotHold)

	var logs []models.AppointmentLog
	require.NoError(t, f.db.Where("appointment_id = ?", appt.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ActionCreate, logs[0].Action)
	assert.Equal(t, []string{notify.AppointmentBooked}, f.pub.types())
}

func TestBookRejectsTakenSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := testutil.CreateDoctor(t, f.db, "BS")
	testutil.CreateSchedule(t, f.db, doctor.ID, "2025-03-11", "08:00", "10:00", 30)
	first := testutil.CreatePatient(t, f.db)
	second := testutil.CreatePatient(t, f.db)

	in := BookingInput{DoctorID: doctor.ID, Date: "2025-03-11", Time: "09:00"}
	_, err := f.appts.Book(ctx, patientActor(first), in)
	require.NoError(t, err)

	_, err = f.appts.Book(ctx, patientActor(second), in)
	assert.ErrorIs(t, err, utils.ErrSlotUnavailable)

	var count int64
	require.NoError(t, f.db.Model(&models.Appointment{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSlotHoldIndexBlocksDoubleBooking(t *testing.T) {
	f := newFixture(t)
	doctor := testutil.CreateDoctor(t, f.db, "BS")
	sc := testutil.CreateSchedule(t, f.db, doctor.ID, "2025-03-11", "08:00", "10:00", 30)
	patient := testutil.CreatePatient(t, f.db)

	at := time.Date(2025, 3, 11, 1, 0, 0, 0, time.UTC)
	newAppt := func() *models.Appointment {
		hold := at
		return &models.Appointment{
			PatientID: patient.ID, DoctorID: doctor.ID, ScheduleID: sc.ID,
			AppointmentAt: at, SlotHold: &hold, Status: models.StatusPending, Source: models.SourceStaff,
		}
	}
	require.NoError(t, f.db.Create(newAppt()).Error)
	err := f.db.Create(newAppt()).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	released := newAppt()
	released.SlotHold = nil
	released.Status = models.StatusCancelled
	assert.NoError(t, f.db.Create(released).Error, "released appointments do not hold the slot")
}

func TestBookValidatesDateWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := testutil.CreateDoctor(t, f.db, "BS")
	patient := testutil.CreatePatient(t, f.db)
	for _, d := range []string{"2025-03-10", "2025-03-15", "2025-03-16", "2025-03-09"} {
		testutil.CreateSchedule(t, f.db, doctor.ID, d, "07:00", "10:00", 30)
	}
	actor := patientActor(patient)

	_, err := f.appts.Book(ctx, actor, BookingInput{DoctorID: doctor.ID, Date: "2025-03-16", Time: "08:00"})
	assert.ErrorIs(t, err, utils.ErrValidation, "six days ahead")

	_, err = f.appts.Book(ctx, actor, BookingInput{DoctorID: doctor.ID, Date: "2025-03-09", Time: "08:00"})
	assert.ErrorIs(t, err, utils.ErrValidation, "yesterday")

	_, err = f.appts.Book(ctx, actor, BookingInput{DoctorID: doctor.ID, Date: "2025-03-10", Time: "07:30"})
	assert.ErrorIs(t, err, utils.ErrValidation, "earlier today")

	_, err = f.appts.Book(ctx, actor, BookingInput{DoctorID: doctor.ID, Date: "2025-03-10", Time: "7h"})
	assert.ErrorIs(t, err, utils.ErrValidation)

	_, err = f.appts.Book(ctx, actor, BookingInput{DoctorID: doctor.ID, Date: "2025-03-15", Time: "08:00"})
	assert.NoError(t, err, "last day of the window")

	_, err = f.appts.Book(ctx, actor, BookingInput{DoctorID: doctor.ID, Date: "2025-03-10", Time: "08:30"})
	assert.NoError(t, err, "later today")
}

func TestBookRejectsTimesOutsideOpenSchedules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := testutil.CreateDoctor(t, f.db, "BS")
	sc := testutil.CreateSchedule(t, f.db, doctor.ID, "2025-03-11", "08:00", "10:00", 30)
	patient := testutil.CreatePatient(t, f.db)
	actor := patientActor(patient)

	_, err := f.appts.Book(ctx, actor, BookingInput{DoctorID: doctor.ID, Date: "2025-03-11", Time: "08:15"})
	assert.ErrorIs(t, err, utils.ErrSlotUnavailable, "not a slot start")

	_, err = f.appts.Book(ctx, actor, BookingInput{DoctorID: doctor.ID, Date: "2025-03-11", Time: "10:00"})
	assert.ErrorIs(t, err, utils.ErrSlotUnavailable, "window end")

	require.NoError(t, f.db.Model(sc).Update("status", models.ScheduleClosed).Error)
	_, err = f.appts.Book(ctx, actor, BookingInput{DoctorID: doctor.ID, Date: "2025-03-11", Time: "08:00"})
	assert.ErrorIs(t, err, utils.ErrSlotUnavailable, "closed schedule")
}

func TestBookRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := testutil.CreateDoctor(t, f.db, "BS")
	testutil.CreateSchedule(t, f.db, doctor.ID, "2025-03-11", "08:00", "10:00", 30)
	patient := testutil.CreatePatient(t, f.db)
	in := BookingInput{DoctorID: doctor.ID, Date: "2025-03-11", Time: "08:00"}

	noProfile := testutil.CreateUser(t, f.db, models.RolePatient)
	_, err := f.appts.Book(ctx, Actor{UserID: noProfile.ID, Role: models.RolePatient}, in)
	assert.ErrorIs(t, err, utils.ErrValidation)

	_, err = f.appts.Book(ctx, doctorActor(doctor), in)
	assert.ErrorIs(t, err, utils.ErrForbidden)

	staff := staffActor(t, f.db)
	_, err = f.appts.Book(ctx, staff, in)
	assert.ErrorIs(t, err, utils.ErrValidation, "staff must name the patient")

	in.PatientID = patient.ID
	appt, err := f.appts.Book(ctx, staff, in)
	require.NoError(t, err)
	assert.Equal(t, models.SourceStaff, appt.Source)

	require.NoError(t, f.db.Model(doctor.User).Update("is_active", false).Error)
	in.Time = "08:30"
	_, err = f.appts.Book(ctx, staff, in)
	assert.ErrorIs(t, err, utils.ErrValidation, "inactive doctor")
}

func TestCancelReleasesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := testutil.CreateDoctor(t, f.db, "BS")
	testutil.CreateSchedule(t, f.db, doctor.ID, "2025-03-11", "08:00", "10:00", 30)
	first := testutil.CreatePatient(t, f.db)
	second := testutil.CreatePatient(t, f.db)
	in := BookingInput{DoctorID: doctor.ID, Date: "2025-03-11", Time: "08:00"}

	appt, err := f.appts.Book(ctx, patientActor(first), in)
	require.NoError(t, err)

	_, err = f.appts.Cancel(ctx, patientActor(second), appt.ID, "")
	assert.ErrorIs(t, err, utils.ErrForbidden, "not the owner")

	cancelled, err := f.appts.Cancel(ctx, patientActor(first), appt.ID, "changed plans")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.SlotHold)

	rebooked, err := f.appts.Book(ctx, patientActor(second), in)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, rebooked.Status)
}

func TestPatientCancelDeadline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := testutil.CreateDoctor(t, f.db, "BS")
	testutil.CreateSchedule(t, f.db, doctor.ID, "2025-03-10", "08:00", "12:00", 30)
	patient := testutil.CreatePatient(t, f.db)

	soon, err := f.appts.Book(ctx, patientActor(patient), BookingInput{DoctorID: doctor.ID, Date: "2025-03-10", Time: "09:30"})
	require.NoError(t, err)
	_, err = f.appts.Cancel(ctx, patientActor(patient), soon.ID, "")
	assert.ErrorIs(t, err, utils.ErrValidation, "90 minutes ahead is too late")

	later, err := f.appts.Book(ctx, patientActor(patient), BookingInput{DoctorID: doctor.ID, Date: "2025-03-10", Time: "10:00"})
	require.NoError(t, err)
	_, err = f.appts.Cancel(ctx, patientActor(patient), later.ID, "")
	assert.NoError(t, err, "exactly 120 minutes ahead")

	_, err = f.appts.Cancel(ctx, staffActor(t, f.db), soon.ID, "called in")
	assert.NoError(t, err, "staff are not bound by the deadline")
}

func TestStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := testutil.CreateDoctor(t, f.db, "BS")
	other := testutil.CreateDoctor(t, f.db, "BS")
	testutil.CreateSchedule(t, f.db, doctor.ID, "2025-03-11", "08:00", "10:00", 30)
	patient := testutil.CreatePatient(t, f.db)

	appt, err := f.appts.Book(ctx, patientActor(patient), BookingInput{DoctorID: doctor.ID, Date: "2025-03-11", Time: "08:00"})
	require.NoError(t, err)

	_, err = f.appts.Start(ctx, doctorActor(doctor), appt.ID)
	assert.ErrorIs(t, err, utils.ErrInvalidTransition, "pending cannot start")

	_, err = f.appts.Confirm(ctx, doctorActor(other), appt.ID)
	assert.ErrorIs(t, err, utils.ErrForbidden)

	_, err = f.appts.Confirm(ctx, patientActor(patient), appt.ID)
	assert.ErrorIs(t, err, utils.ErrForbidden)

	confirmed, err := f.appts.Confirm(ctx, doctorActor(doctor), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)

	_, err = f.appts.Confirm(ctx, doctorActor(doctor), appt.ID)
	assert.ErrorIs(t, err, utils.ErrInvalidTransition, "already confirmed")

	started, err := f.appts.Start(ctx, doctorActor(doctor), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, started.Status)

	_, err = f.appts.Cancel(ctx, staffActor(t, f.db), appt.ID, "")
	assert.ErrorIs(t, err, utils.ErrInvalidTransition, "in progress cannot be cancelled")

	_, err = f.appts.Complete(ctx, doctorActor(doctor), appt.ID)
	require.NoError(t, err)

	_, err = f.appts.Complete(ctx, doctorActor(doctor), appt.ID)
	assert.ErrorIs(t, err, utils.ErrInvalidTransition)

	detail, err := f.appts.Get(ctx, patientActor(patient), appt.ID)
	require.NoError(t, err)
	var actions []string
	for _, l := range detail.Logs {
		actions = append(actions, l.Action)
	}
	assert.Equal(t, []string{models.ActionCreate, models.ActionConfirmed, models.ActionStarted, models.ActionCompleted}, actions)
}

func TestCompleteBuildsInvoiceAndConsumesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SetRankFee(t, f.db, "THS", 300000)
	doctor := testutil.CreateDoctor(t, f.db, "ThS")
	testutil.CreateSchedule(t, f.db, doctor.ID, "2025-03-11", "08:00", "10:00", 30)
	paracetamol := testutil.CreateDrug(t, f.db, "Paracetamol", 5000, 100)
	amoxicillin := testutil.CreateDrug(t, f.db, "Amoxicillin", 12000, 5)

	appt, _ := f.startVisit(t, doctor, "2025-03-11", "08:00")
	_, err := f.appts.SaveRecord(ctx, doctorActor(doctor), appt.ID, RecordInput{Diagnosis: "Flu"})
	require.NoError(t, err)
	_, err = f.appts.SetPrescriptions(ctx, doctorActor(doctor), appt.ID, []PrescriptionInput{
		{DrugID: paracetamol.ID, Quantity: 10, Dosage: "1 tablet", Frequency: "twice a day", DurationDays: 5},
		{DrugID: amoxicillin.ID, Quantity: 2},
	})
	require.NoError(t, err)

	// a later price change does not affect the snapshot
	require.NoError(t, f.db.Model(paracetamol).Update("unit_price", decimal.NewFromInt(9000)).Error)

	invoice, err := f.appts.Complete(ctx, doctorActor(doctor), appt.ID)
	require.NoError(t, err)

	want := decimal.NewFromInt(300000 + 10*5000 + 2*12000)
	assert.True(t, invoice.Subtotal.Equal(want), invoice.Subtotal.String())
	assert.True(t, invoice.AmountDue.Equal(want), invoice.AmountDue.String())
	assert.Equal(t, models.InvoiceUnpaid, invoice.Status)
	require.Len(t, invoice.Items, 3)
	ids := map[string]bool{}
	for _, item := range invoice.Items {
		require.NotEmpty(t, item.ID)
		ids[item.ID] = true
	}
	assert.Len(t, ids, 3)
	assert.Equal(t, models.ItemConsultation, invoice.Items[0].ItemType)
	assert.True(t, invoice.Items[0].UnitPrice.Equal(decimal.NewFromInt(300000)))

	var paracetamolStock, amoxicillinStock models.Drug
	require.NoError(t, f.db.First(&paracetamolStock, "id = ?", paracetamol.ID).Error)
	assert.Equal(t, 90, paracetamolStock.Stock)
	require.NoError(t, f.db.First(&amoxicillinStock, "id = ?", amoxicillin.ID).Error)
	assert.Equal(t, 3, amoxicillinStock.Stock)

	var saved models.Appointment
	require.NoError(t, f.db.First(&saved, "id = ?", appt.ID).Error)
	assert.Equal(t, models.StatusCompleted, saved.Status)
	assert.Contains(t, f.pub.types(), notify.AppointmentCompleted)
}

func TestCompleteWithInsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := testutil.CreateDoctor(t, f.db, "BS")
	testutil.CreateSchedule(t, f.db, doctor.ID, "2025-03-11", "08:00", "10:00", 30)
	plenty := testutil.CreateDrug(t, f.db, "Vitamin C", 1000, 50)
	scarce := testutil.CreateDrug(t, f.db, "Insulin", 90000, 1)

	appt, _ := f.startVisit(t, doctor, "2025-03-11", "08:00")
	_, err := f.appts.SaveRecord(ctx, doctorActor(doctor), appt.ID, RecordInput{Diagnosis: "Diabetes"})
	require.NoError(t, err)
	_, err = f.appts.SetPrescriptions(ctx, doctorActor(doctor), appt.ID, []PrescriptionInput{
		{DrugID: plenty.ID, Quantity: 10},
		{DrugID: scarce.ID, Quantity: 2},
	})
	require.NoError(t, err)

	_, err = f.appts.Complete(ctx, doctorActor(doctor), appt.ID)
	assert.ErrorIs(t, err, utils.ErrInsufficientStock)

	var saved models.Appointment
	require.NoError(t, f.db.First(&saved, "id = ?", appt.ID).Error)
	assert.Equal(t, models.StatusInProgress, saved.Status)

	var invoices int64
	require.NoError(t, f.db.Model(&models.Invoice{}).Count(&invoices).Error)
	assert.Zero(t, invoices)

	var drug models.Drug
	require.NoError(t, f.db.First(&drug, "id = ?", plenty.ID).Error)
	assert.Equal(t, 50, drug.Stock)
}

func TestCompleteWithoutRecordBillsConsultationOnly(t *testing.T) {
	f := newFixture(t)
	doctor := testutil.CreateDoctor(t, f.db, "Giáo sư")
	testutil.CreateSchedule(t, f.db, doctor.ID, "2025-03-11", "08:00", "10:00", 30)
	appt, _ := f.startVisit(t, doctor, "2025-03-11", "09:30")

	invoice, err := f.appts.Complete(context.Background(), doctorActor(doctor), appt.ID)
	require.NoError(t, err)
	require.Len(t, invoice.Items, 1)
	assert.True(t, invoice.AmountDue.Equal(decimal.NewFromInt(1000000)))
}

func TestRecordAndPrescriptionRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := testutil.CreateDoctor(t, f.db, "BS")
	testutil.CreateSchedule(t, f.db, doctor.ID, "2025-03-11", "08:00", "10:00", 30)
	patient := testutil.CreatePatient(t, f.db)
	drug := testutil.CreateDrug(t, f.db, "Ibuprofen", 3000, 20)
	retired := testutil.CreateDrug(t, f.db, "Old syrup", 1000, 20)
	require.NoError(t, f.db.Model(retired).Update("is_active", false).Error)

	appt, err := f.appts.Book(ctx, patientActor(patient), BookingInput{DoctorID: doctor.ID, Date: "2025-03-11", Time: "08:00"})
	require.NoError(t, err)
	_, err = f.appts.SaveRecord(ctx, doctorActor(doctor), appt.ID, RecordInput{Diagnosis: "early"})
	assert.ErrorIs(t, err, utils.ErrInvalidTransition, "pending visit")

	_, err = f.appts.Confirm(ctx, doctorActor(doctor), appt.ID)
	require.NoError(t, err)
	_, err = f.appts.Start(ctx, doctorActor(doctor), appt.ID)
	require.NoError(t, err)

	_, err = f.appts.SetPrescriptions(ctx, doctorActor(doctor), appt.ID, []PrescriptionInput{{DrugID: drug.ID, Quantity: 1}})
	assert.ErrorIs(t, err, utils.ErrValidation, "record first")

	record, err := f.appts.SaveRecord(ctx, doctorActor(doctor), appt.ID, RecordInput{
		Symptoms:    "fever",
		Attachments: []models.RecordAttachment{{Name: "xray.png", URL: "https://files/xray.png"}},
	})
	require.NoError(t, err)
	updated, err := f.appts.SaveRecord(ctx, doctorActor(doctor), appt.ID, RecordInput{Symptoms: "fever", Diagnosis: "flu"})
	require.NoError(t, err)
	assert.Equal(t, record.ID, updated.ID, "record is upserted")

	var stored models.MedicalRecord
	require.NoError(t, f.db.First(&stored, "id = ?", record.ID).Error)
	assert.Equal(t, "flu", stored.Diagnosis)
	assert.Contains(t, string(stored.Attachments), "xray.png", "nil attachments keep the stored ones")

	_, err = f.appts.SetPrescriptions(ctx, doctorActor(doctor), appt.ID, []PrescriptionInput{{DrugID: retired.ID, Quantity: 1}})
	assert.ErrorIs(t, err, utils.ErrValidation, "inactive drug")

	_, err = f.appts.SetPrescriptions(ctx, doctorActor(doctor), appt.ID, []PrescriptionInput{{DrugID: drug.ID, Quantity: 2}, {DrugID: drug.ID, Quantity: 1}})
	require.NoError(t, err)
	items, err := f.appts.SetPrescriptions(ctx, doctorActor(doctor), appt.ID, []PrescriptionInput{{DrugID: drug.ID, Quantity: 4}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Ibuprofen", items[0].DrugName)

	var count int64
	require.NoError(t, f.db.Model(&models.Prescription{}).Where("medical_record_id = ?", record.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count, "prescriptions are replaced")
}

func TestMarkNoShowAndSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := testutil.CreateDoctor(t, f.db, "BS")
	testutil.CreateSchedule(t, f.db, doctor.ID, "2025-03-10", "08:00", "12:00", 30)
	patient := testutil.CreatePatient(t, f.db)
	actor := patientActor(patient)

	early, err := f.appts.Book(ctx, actor, BookingInput{DoctorID: doctor.ID, Date: "2025-03-10", Time: "08:30"})
	require.NoError(t, err)
	manual, err := f.appts.Book(ctx, actor, BookingInput{DoctorID: doctor.ID, Date: "2025-03-10", Time: "09:00"})
	require.NoError(t, err)
	late, err := f.appts.Book(ctx, actor, BookingInput{DoctorID: doctor.ID, Date: "2025-03-10", Time: "11:30"})
	require.NoError(t, err)

	_, err = f.appts.MarkNoShow(ctx, doctorActor(doctor), manual.ID)
	assert.ErrorIs(t, err, utils.ErrValidation, "future appointment")

	f.now = time.Date(2025, 3, 10, 10, 0, 0, 0, ict)

	marked, err := f.appts.MarkNoShow(ctx, doctorActor(doctor), manual.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoShow, marked.Status)

	count, err := f.appts.SweepNoShows(ctx, 60*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var swept models.Appointment
	require.NoError(t, f.db.First(&swept, "id = ?", early.ID).Error)
	assert.Equal(t, models.StatusNoShow, swept.Status)
	assert.Nil(t, swept.SlotHold)

	var upcoming models.Appointment
	require.NoError(t, f.db.First(&upcoming, "id = ?", late.ID).Error)
	assert.Equal(t, models.StatusPending, upcoming.Status)
	assert.NotNil(t, upcoming.SlotHold)

	var systemLog models.AppointmentLog
	require.NoError(t, f.db.Where("appointment_id = ? AND action = ?", early.ID, models.ActionNoShow).First(&systemLog).Error)
	assert.Nil(t, systemLog.ActorID)
}

func TestListAndBoards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := testutil.CreateDoctor(t, f.db, "BS")
	other := testutil.CreateDoctor(t, f.db, "BS")
	testutil.CreateSchedule(t, f.db, doctor.ID, "2025-03-10", "08:00", "12:00", 30)
	testutil.CreateSchedule(t, f.db, doctor.ID, "2025-03-11", "08:00", "12:00", 30)
	testutil.CreateSchedule(t, f.db, other.ID, "2025-03-11", "08:00", "12:00", 30)
	alice := testutil.CreatePatient(t, f.db)
	bob := testutil.CreatePatient(t, f.db)

	book := func(p *models.PatientProfile, d *models.Doctor, date, clock string) *models.Appointment {
		a, err := f.appts.Book(ctx, patientActor(p), BookingInput{DoctorID: d.ID, Date: date, Time: clock})
		require.NoError(t, err)
		return a
	}
	today := book(alice, doctor, "2025-03-10", "10:00")
	book(alice, doctor, "2025-03-11", "08:00")
	book(bob, other, "2025-03-11", "08:00")
	_, err := f.appts.Confirm(ctx, doctorActor(doctor), today.ID)
	require.NoError(t, err)

	mine, err := f.appts.List(ctx, patientActor(bob), AppointmentFilter{})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	docs, err := f.appts.List(ctx, doctorActor(doctor), AppointmentFilter{})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	all, err := f.appts.List(ctx, staffActor(t, f.db), AppointmentFilter{From: "2025-03-11", To: "2025-03-11"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.appts.Get(ctx, patientActor(bob), today.ID)
	assert.ErrorIs(t, err, utils.ErrForbidden)

	board, err := f.appts.DoctorToday(ctx, doctorActor(doctor))
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", board.Date)
	assert.Equal(t, 1, board.Stats.Total)
	assert.Equal(t, 1, board.Stats.Confirmed)

	pending, err := f.appts.DoctorPending(ctx, doctorActor(doctor))
	require.NoError(t, err)
	assert.Equal(t, 2, pending.Stats.Total)
	assert.Equal(t, 1, pending.Stats.Pending)
}

func TestHistoryVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := testutil.CreateDoctor(t, f.db, "BS")
	stranger := testutil.CreateDoctor(t, f.db, "BS")
	testutil.CreateSchedule(t, f.db, doctor.ID, "2025-03-11", "08:00", "10:00", 30)

	appt, patient := f.startVisit(t, doctor, "2025-03-11", "08:00")
	_, err := f.appts.SaveRecord(ctx, doctorActor(doctor), appt.ID, RecordInput{Diagnosis: "Sprain"})
	require.NoError(t, err)
	_, err = f.appts.Complete(ctx, doctorActor(doctor), appt.ID)
	require.NoError(t, err)

	own, err := f.appts.History(ctx, patientActor(patient), "")
	require.NoError(t, err)
	require.Len(t, own, 1)
	require.NotNil(t, own[0].MedicalRecord)
	assert.Equal(t, "Sprain", own[0].MedicalRecord.Diagnosis)

	_, err = f.appts.History(ctx, doctorActor(doctor), patient.ID)
	assert.NoError(t, err)
	_, err = f.appts.History(ctx, doctorActor(stranger), patient.ID)
	assert.ErrorIs(t, err, utils.ErrForbidden)

	other := testutil.CreatePatient(t, f.db)
	_, err = f.appts.History(ctx, patientActor(other), patient.ID)
	assert.ErrorIs(t, err, utils.ErrForbidden)
}
