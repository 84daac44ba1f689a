package documents

import (
	"bytes"
	"fmt"
	"time"

	"clinic-app-server/internal/models"

	"github.com/360EntSecGroup-Skylar/excelize"
)

func newWorkbook(sheet string, headers []string) *excelize.File {
	f := excelize.NewFile()
	f.NewSheet(sheet)
	f.DeleteSheet("Sheet1")
	for i, h := range headers {
		f.SetCellValue(sheet, cell(i, 1), h)
	}
	return f
}

// cell returns the A1 reference of a zero-based column and one-based row.
func cell(col, row int) string {
	name := ""
	for col >= 0 {
		name = string(rune('A'+col%26)) + name
		col = col/26 - 1
	}
	return fmt.Sprintf("%s%d", name, row)
}

func workbookBytes(f *excelize.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// AppointmentsXLSX exports appointments, one row each.
func AppointmentsXLSX(appts []models.Appointment, loc *time.Location) ([]byte, error) {
	const sheet = "Appointments"
	f := newWorkbook(sheet, []string{"ID", "Date", "Time", "Patient", "Doctor", "Specialty", "Status", "Source", "Reason"})

	for i := range appts {
		a := &appts[i]
		row := i + 2
		at := a.AppointmentAt.In(loc)
		specialty := ""
		if a.Doctor != nil && a.Doctor.Specialty != nil {
			specialty = a.Doctor.Specialty.Name
		}
		values := []interface{}{
			a.ID,
			at.Format(models.DateLayout),
			at.Format(models.ClockLayout),
			patientName(a),
			doctorName(a),
			specialty,
			string(a.Status),
			string(a.Source),
			a.Reason,
		}
		for col, v := range values {
			f.SetCellValue(sheet, cell(col, row), v)
		}
	}
	return workbookBytes(f)
}

// InvoicesXLSX exports invoices with their totals and amount paid.
func InvoicesXLSX(invoices []models.Invoice, loc *time.Location) ([]byte, error) {
	const sheet = "Invoices"
	f := newWorkbook(sheet, []string{"ID", "Created", "Patient", "Doctor", "Status", "Subtotal", "Discount", "Amount due", "Paid"})

	for i := range invoices {
		inv := &invoices[i]
		row := i + 2
		paid := 0.0
		for _, p := range inv.Payments {
			paid += p.Amount.InexactFloat64()
		}
		values := []interface{}{
			inv.ID,
			inv.CreatedAt.In(loc).Format("2006-01-02 15:04"),
			patientName(inv.Appointment),
			doctorName(inv.Appointment),
			string(inv.Status),
			inv.Subtotal.InexactFloat64(),
			inv.Discount.InexactFloat64(),
			inv.AmountDue.InexactFloat64(),
			paid,
		}
		for col, v := range values {
			f.SetCellValue(sheet, cell(col, row), v)
		}
	}
	return workbookBytes(f)
}
