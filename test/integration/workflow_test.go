// Package integration provides integration tests for the clinic workflow.
package integration

import (
	"context"
	"testing"

	"github.com/dermaflow/go-clinic/internal/catalog"
	"github.com/dermaflow/go-clinic/internal/domain/patient"
	"github.com/dermaflow/go-clinic/internal/domain/workflow"
)

type memoryStore struct {
	patients map[string]*patient.Patient
}

func (s *memoryStore) GetByID(_ context.Context, id string) (*patient.Patient, error) {
	p, ok := s.patients[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memoryStore) Update(_ context.Context, id string, upd patient.Patient) (*patient.Patient, error) {
	base, ok := s.patients[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	merged := patient.Merge(*base, upd)
	merged.ID = id
	s.patients[id] = &merged
	cp := merged
	return &cp, nil
}

type captureSender struct {
	last *workflow.SendRequest
}

func (c *captureSender) Send(_ context.Context, req *workflow.SendRequest) error {
	c.last = req
	return nil
}

// The report handed to the sender must reflect the final persisted state:
// every committed edit and the full derived medication schedule.
func TestReportReflectsFinalState(t *testing.T) {
	store := &memoryStore{patients: map[string]*patient.Patient{
		"patient-001": {ID: "patient-001", Name: "Alice Nguyen", Condition: "Psoriasis"},
	}}
	sender := &captureSender{}
	engine := workflow.NewEngine(store, sender, nil)
	ctx := context.Background()

	s, err := engine.LoadSession(ctx, "patient-001", nil, "Dr. Carter")
	if err != nil {
		t.Fatalf("load session: %v", err)
	}

	// Step 1: information. Select items and set the diagnosis.
	s.SelectMedicine(catalog.Medicine{ID: 7, Name: "Methotrexate", Dosage: "10mg"})
	s.SelectTreatment(catalog.Treatment{ID: 4, Name: "Phototherapy"})
	if err := engine.CompleteStep(ctx, s, patient.Patient{
		TreatmentPlan: &patient.TreatmentPlan{Diagnosis: "Plaque psoriasis"},
	}); err != nil {
		t.Fatalf("step 1: %v", err)
	}

	// Step 2: review. Revisit step 1, adjust the selection, re-complete.
	if err := s.GoToStep(workflow.StepInformation); err != nil {
		t.Fatalf("go to step 1: %v", err)
	}
	s.SelectMedicine(catalog.Medicine{ID: 9, Name: "Cortizone Cream", Dosage: "1%"})
	if err := engine.CompleteStep(ctx, s, patient.Patient{}); err != nil {
		t.Fatalf("re-complete step 1: %v", err)
	}
	if err := engine.CompleteStep(ctx, s, patient.Patient{
		TreatmentPlan: &patient.TreatmentPlan{NextAppointment: "2026-09-15"},
	}); err != nil {
		t.Fatalf("step 2: %v", err)
	}

	// Step 3: send.
	s.Confirm(true)
	if err := engine.Finish(ctx, s); err != nil {
		t.Fatalf("finish: %v", err)
	}

	if sender.last == nil {
		t.Fatal("no report sent")
	}
	got := sender.last

	if got.PatientID != "patient-001" {
		t.Errorf("patientId = %q", got.PatientID)
	}
	if got.Doctor != "Dr. Carter" {
		t.Errorf("doctor = %q", got.Doctor)
	}
	if got.Plan.Diagnosis != "Plaque psoriasis" {
		t.Errorf("diagnosis = %q", got.Plan.Diagnosis)
	}
	if got.Plan.NextAppointment != "2026-09-15" {
		t.Errorf("nextAppointment = %q", got.Plan.NextAppointment)
	}

	if len(got.Plan.Medications) != 2 {
		t.Fatalf("medications = %d, want 2", len(got.Plan.Medications))
	}
	names := map[string]bool{}
	for _, m := range got.Plan.Medications {
		names[m.Name] = true
		if m.TimeToTake == "" || m.DurationDays == 0 {
			t.Errorf("medication %q missing schedule defaults: %+v", m.Name, m)
		}
	}
	if !names["Methotrexate"] || !names["Cortizone Cream"] {
		t.Errorf("unexpected medications: %v", names)
	}

	// The persisted record and the report agree.
	final := store.patients["patient-001"]
	if final.TreatmentPlan.Diagnosis != got.Plan.Diagnosis {
		t.Error("persisted diagnosis differs from report")
	}
	if len(final.TreatmentPlan.Medications) != len(got.Plan.Medications) {
		t.Error("persisted medications differ from report")
	}
}
