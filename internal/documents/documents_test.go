package documents

import (
	"bytes"
	"testing"
	"time"

	"clinic-app-server/internal/models"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAppointment() *models.Appointment {
	appt := &models.Appointment{
		AppointmentAt: time.Date(2025, 3, 10, 2, 30, 0, 0, time.UTC),
		Status:        models.StatusCompleted,
		Source:        models.SourcePortal,
		Reason:        "Đau đầu kéo dài",
		Patient: &models.PatientProfile{
			CCCD: "012345678901",
			User: &models.User{FullName: "Nguyễn Văn An"},
		},
		Doctor: &models.Doctor{
			User:      &models.User{FullName: "Trần Thị Bình"},
			Specialty: &models.Specialty{Name: "Nội tổng quát"},
		},
		MedicalRecord: &models.MedicalRecord{
			Diagnosis: "Căng thẳng",
			Prescriptions: []models.Prescription{
				{DrugName: "Paracetamol 500mg", Unit: "viên", Quantity: 10, Dosage: "1 viên", Frequency: "2 lần/ngày", DurationDays: 5},
			},
		},
	}
	appt.ID = "appt-1"
	return appt
}

func TestPlain(t *testing.T) {
	assert.Equal(t, "Nguyen Van An", plain("Nguyễn Văn An"))
	assert.Equal(t, "Dau dau", plain("Đau đầu"))
}

func TestFormatVND(t *testing.T) {
	assert.Equal(t, "0 VND", FormatVND(decimal.Zero))
	assert.Equal(t, "200.000 VND", FormatVND(decimal.NewFromInt(200000)))
	assert.Equal(t, "1.250.000 VND", FormatVND(decimal.NewFromInt(1250000)))
	assert.Equal(t, "999 VND", FormatVND(decimal.NewFromInt(999)))
	assert.Equal(t, "-5.000 VND", FormatVND(decimal.NewFromInt(-5000)))
}

func TestCell(t *testing.T) {
	assert.Equal(t, "A1", cell(0, 1))
	assert.Equal(t, "Z2", cell(25, 2))
	assert.Equal(t, "AA3", cell(26, 3))
}

func TestVisitSummaryPDF(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Ho_Chi_Minh")
	body, err := VisitSummaryPDF(ClinicInfo{Name: "Phòng khám", Phone: "0281234567"}, sampleAppointment(), loc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestInvoicePDF(t *testing.T) {
	invoice := &models.Invoice{
		Appointment: sampleAppointment(),
		Status:      models.InvoiceUnpaid,
		Subtotal:    decimal.NewFromInt(250000),
		AmountDue:   decimal.NewFromInt(250000),
		Items: []models.InvoiceItem{
			{Description: "Consultation fee", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(200000)},
			{Description: "Paracetamol 500mg", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(5000)},
		},
	}
	body, err := InvoicePDF(ClinicInfo{Name: "Clinic"}, invoice, models.CopyOriginal, time.UTC)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestAppointmentsXLSX(t *testing.T) {
	body, err := AppointmentsXLSX([]models.Appointment{*sampleAppointment()}, time.UTC)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "Patient", f.GetCellValue("Appointments", "D1"))
	assert.Equal(t, "Nguyễn Văn An", f.GetCellValue("Appointments", "D2"))
	assert.Equal(t, "2025-03-10", f.GetCellValue("Appointments", "B2"))
}

func TestInvoicesXLSX(t *testing.T) {
	invoice := models.Invoice{
		Appointment: sampleAppointment(),
		Status:      models.InvoicePaid,
		Subtotal:    decimal.NewFromInt(200000),
		AmountDue:   decimal.NewFromInt(200000),
		Payments:    []models.Payment{{Amount: decimal.NewFromInt(200000)}},
	}
	body, err := InvoicesXLSX([]models.Invoice{invoice}, time.UTC)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "paid", f.GetCellValue("Invoices", "E2"))
	assert.Equal(t, "200000", f.GetCellValue("Invoices", "I2"))
}
