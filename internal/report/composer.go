package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/signintech/gopdf"

	"github.com/dermaflow/go-clinic/internal/domain/workflow"
)

// defaultFontPaths are tried in order when no font path is configured.
var defaultFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

// Composer renders a treatment report as a PDF document.
type Composer struct {
	fontPath string
	clinic   string
}

// NewComposer creates a composer. fontPath may be empty, in which case
// common DejaVuSans locations are tried.
func NewComposer(fontPath, clinicName string) *Composer {
	if clinicName == "" {
		clinicName = "DermaFlow Clinic"
	}
	return &Composer{fontPath: fontPath, clinic: clinicName}
}

// Compose renders the report for the given send request.
func (c *Composer) Compose(req *workflow.SendRequest) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := c.loadFont(&pdf); err != nil {
		return nil, err
	}

	if err := pdf.SetFont("report", "", 20); err != nil {
		return nil, err
	}
	pdf.Cell(nil, fmt.Sprintf("%s — Treatment Report", c.clinic))
	pdf.Br(30)

	if err := pdf.SetFont("report", "", 11); err != nil {
		return nil, err
	}
	pdf.Cell(nil, fmt.Sprintf("Date: %s", time.Now().Format("2006-01-02 15:04")))
	pdf.Br(14)
	pdf.Cell(nil, fmt.Sprintf("Patient ID: %s", req.PatientID))
	pdf.Br(14)
	if req.Doctor != "" {
		pdf.Cell(nil, fmt.Sprintf("Attending doctor: %s", req.Doctor))
		pdf.Br(14)
	}
	pdf.Br(10)

	plan := req.Plan

	if plan.Diagnosis != "" {
		if err := c.section(&pdf, "Diagnosis"); err != nil {
			return nil, err
		}
		c.paragraph(&pdf, plan.Diagnosis)
		if plan.DiagnosisDetails != "" {
			c.paragraph(&pdf, plan.DiagnosisDetails)
		}
		pdf.Br(10)
	}

	if len(plan.Medications) > 0 {
		if err := c.section(&pdf, "Medications"); err != nil {
			return nil, err
		}
		for _, m := range plan.Medications {
			line := fmt.Sprintf("- %s", m.Name)
			if m.Dosage != "" {
				line += fmt.Sprintf(", %s", m.Dosage)
			}
			if m.TimeToTake != "" {
				line += fmt.Sprintf(", take at %s", m.TimeToTake)
			}
			if m.DurationDays > 0 {
				line += fmt.Sprintf(", for %d days", m.DurationDays)
			}
			c.paragraph(&pdf, line)
		}
		pdf.Br(10)
	}

	if len(plan.SelectedTreatments) > 0 {
		if err := c.section(&pdf, "Treatments"); err != nil {
			return nil, err
		}
		for _, t := range plan.SelectedTreatments {
			line := fmt.Sprintf("- %s", t.Name)
			if t.Duration != "" {
				line += fmt.Sprintf(" (%s)", t.Duration)
			}
			c.paragraph(&pdf, line)
		}
		pdf.Br(10)
	}

	if len(plan.NextSteps) > 0 {
		if err := c.section(&pdf, "Next Steps"); err != nil {
			return nil, err
		}
		for _, step := range plan.NextSteps {
			c.paragraph(&pdf, "- "+step)
		}
		pdf.Br(10)
	}

	if plan.NextAppointment != "" {
		if err := c.section(&pdf, "Next Appointment"); err != nil {
			return nil, err
		}
		c.paragraph(&pdf, plan.NextAppointment)
		pdf.Br(10)
	}

	if plan.AdditionalNotes != "" {
		if err := c.section(&pdf, "Additional Notes"); err != nil {
			return nil, err
		}
		c.paragraph(&pdf, plan.AdditionalNotes)
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Composer) loadFont(pdf *gopdf.GoPdf) error {
	paths := defaultFontPaths
	if c.fontPath != "" {
		paths = []string{c.fontPath}
	}

	var lastErr error
	for _, path := range paths {
		if err := pdf.AddTTFFont("report", path); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("failed to load report font: %w", lastErr)
}

func (c *Composer) section(pdf *gopdf.GoPdf, title string) error {
	if err := pdf.SetFont("report", "", 14); err != nil {
		return err
	}
	pdf.Cell(nil, title)
	pdf.Br(16)
	return pdf.SetFont("report", "", 11)
}

func (c *Composer) paragraph(pdf *gopdf.GoPdf, text string) {
	lines, _ := pdf.SplitText(text, 500)
	for _, l := range lines {
		pdf.Cell(nil, l)
		pdf.Br(13)
	}
}
