package report

import (
	"bytes"
	"os"
	"testing"

	"github.com/dermaflow/go-clinic/internal/catalog"
	"github.com/dermaflow/go-clinic/internal/domain/patient"
	"github.com/dermaflow/go-clinic/internal/domain/workflow"
)

func fontAvailable() bool {
	for _, p := range defaultFontPaths {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

func TestComposeRendersPDF(t *testing.T) {
	if !fontAvailable() {
		t.Skip("no TTF font installed")
	}

	c := NewComposer("", "Test Clinic")
	req := &workflow.SendRequest{
		PatientID: "patient-001",
		Doctor:    "Dr. Carter",
		Plan: patient.TreatmentPlan{
			Diagnosis:        "Plaque psoriasis",
			DiagnosisDetails: "Moderate, affecting elbows and knees.",
			Medications: []patient.Medication{
				{Name: "Methotrexate", Dosage: "10mg", TimeToTake: "08:00, 20:00", DurationDays: 14},
			},
			SelectedTreatments: []catalog.Treatment{
				{ID: 4, Name: "Phototherapy", Duration: "6 weeks"},
			},
			NextSteps:       []string{"Blood work in 2 weeks"},
			NextAppointment: "2026-09-15",
			AdditionalNotes: "Avoid direct sun exposure after sessions.",
		},
	}

	pdf, err := c.Compose(req)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if len(pdf) == 0 {
		t.Fatal("empty PDF output")
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Errorf("output does not look like a PDF: %q", pdf[:8])
	}
}

func TestComposeMissingFont(t *testing.T) {
	c := NewComposer("/nonexistent/font.ttf", "")
	_, err := c.Compose(&workflow.SendRequest{PatientID: "p-1"})
	if err == nil {
		t.Fatal("expected font load error")
	}
}
