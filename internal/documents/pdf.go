package documents

import (
	"bytes"
	"fmt"
	"time"

	"clinic-app-server/internal/models"

	"github.com/goccy/go-json"
	"github.com/jung-kurt/gofpdf"
)

func newPDF(clinic ClinicInfo, title string) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 7, plain(clinic.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	if clinic.Address != "" {
		pdf.CellFormat(0, 5, plain(clinic.Address), "", 1, "L", false, 0, "")
	}
	if clinic.Phone != "" {
		pdf.CellFormat(0, 5, "Tel: "+plain(clinic.Phone), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	pdf.Ln(2)
	return pdf
}

func field(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(45, 6, label, "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 6, plain(value), "", "L", false)
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func patientName(a *models.Appointment) string {
	if a == nil || a.Patient == nil || a.Patient.User == nil {
		return ""
	}
	return a.Patient.User.FullName
}

func doctorName(a *models.Appointment) string {
	if a == nil || a.Doctor == nil || a.Doctor.User == nil {
		return ""
	}
	return a.Doctor.User.FullName
}

// VisitSummaryPDF renders the record and prescriptions of an appointment.
// The appointment must have Patient.User, Doctor.User and MedicalRecord.Prescriptions loaded.
func VisitSummaryPDF(clinic ClinicInfo, appt *models.Appointment, loc *time.Location) ([]byte, error) {
	pdf := newPDF(clinic, "VISIT SUMMARY")

	field(pdf, "Patient:", patientName(appt))
	if appt.Patient != nil {
		field(pdf, "CCCD:", appt.Patient.CCCD)
	}
	field(pdf, "Doctor:", doctorName(appt))
	if appt.Doctor != nil && appt.Doctor.Specialty != nil {
		field(pdf, "Specialty:", appt.Doctor.Specialty.Name)
	}
	field(pdf, "Date:", appt.AppointmentAt.In(loc).Format("02/01/2006 15:04"))
	field(pdf, "Reason:", appt.Reason)
	pdf.Ln(3)

	record := appt.MedicalRecord
	if record != nil {
		field(pdf, "Symptoms:", record.Symptoms)
		field(pdf, "Diagnosis:", record.Diagnosis)
		field(pdf, "Advice:", record.Advice)

		var attachments []models.RecordAttachment
		if len(record.Attachments) > 0 && json.Unmarshal(record.Attachments, &attachments) == nil {
			for _, a := range attachments {
				field(pdf, "Attachment:", a.Name)
			}
		}
	}

	if record != nil && len(record.Prescriptions) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, "Prescription", "", 1, "L", false, 0, "")

		widths := []float64{8, 62, 18, 20, 72}
		pdf.SetFont("Helvetica", "B", 9)
		for i, h := range []string{"#", "Drug", "Qty", "Unit", "Dosage / Frequency / Days"} {
			pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Helvetica", "", 9)
		for i, p := range record.Prescriptions {
			usage := fmt.Sprintf("%s / %s / %d", p.Dosage, p.Frequency, p.DurationDays)
			pdf.CellFormat(widths[0], 7, fmt.Sprint(i+1), "1", 0, "C", false, 0, "")
			pdf.CellFormat(widths[1], 7, plain(p.DrugName), "1", 0, "L", false, 0, "")
			pdf.CellFormat(widths[2], 7, fmt.Sprint(p.Quantity), "1", 0, "R", false, 0, "")
			pdf.CellFormat(widths[3], 7, plain(p.Unit), "1", 0, "L", false, 0, "")
			pdf.CellFormat(widths[4], 7, plain(usage), "1", 0, "L", false, 0, "")
			pdf.Ln(-1)
		}
	}

	return output(pdf)
}

// InvoicePDF renders an invoice. copyTag is printed under the title.
// The invoice must have Items and Appointment.Patient.User / Doctor.User loaded.
func InvoicePDF(clinic ClinicInfo, invoice *models.Invoice, copyTag string, loc *time.Location) ([]byte, error) {
	pdf := newPDF(clinic, "INVOICE")
	pdf.SetFont("Helvetica", "I", 9)
	pdf.CellFormat(0, 5, copyTag, "", 1, "C", false, 0, "")
	pdf.Ln(2)

	field(pdf, "Invoice:", invoice.ID)
	field(pdf, "Patient:", patientName(invoice.Appointment))
	field(pdf, "Doctor:", doctorName(invoice.Appointment))
	if invoice.Appointment != nil {
		field(pdf, "Visit date:", invoice.Appointment.AppointmentAt.In(loc).Format("02/01/2006 15:04"))
	}
	field(pdf, "Status:", string(invoice.Status))
	pdf.Ln(3)

	widths := []float64{8, 80, 20, 36, 36}
	pdf.SetFont("Helvetica", "B", 9)
	for i, h := range []string{"#", "Description", "Qty", "Unit price", "Amount"} {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for i, item := range invoice.Items {
		pdf.CellFormat(widths[0], 7, fmt.Sprint(i+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[1], 7, plain(item.Description), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 7, item.Quantity.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, FormatVND(item.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 7, FormatVND(item.LineTotal()), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(2)
	total := func(label, value string, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(144, 7, label, "", 0, "R", false, 0, "")
		pdf.CellFormat(36, 7, value, "", 1, "R", false, 0, "")
	}
	total("Subtotal", FormatVND(invoice.Subtotal), false)
	total("Discount", FormatVND(invoice.Discount), false)
	total("Amount due", FormatVND(invoice.AmountDue), true)

	return output(pdf)
}
